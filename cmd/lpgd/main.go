// Command lpgd drives the LPG block of a PMIC over its I2C register bridge,
// brings every LED to its configured default state and serves health,
// metrics and state on HTTP.
// Run with --mock to use an in-memory register file (no I2C device required).
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/micro-nova/lpg-go/internal/api"
	"github.com/micro-nova/lpg-go/internal/events"
	"github.com/micro-nova/lpg-go/internal/hardware"
	"github.com/micro-nova/lpg-go/internal/lpg"
	"github.com/micro-nova/lpg-go/internal/metrics"
	"github.com/micro-nova/lpg-go/internal/topology"
	"github.com/micro-nova/lpg-go/internal/zeroconf"
)

func main() {
	var (
		mock     = flag.Bool("mock", false, "use the in-memory register bus (no I2C device required)")
		topoPath = flag.String("topology", "", "TOML topology file (default: built-in pmi8994 RGB)")
		watch    = flag.Bool("watch", true, "reload the topology file when it changes")
		i2cBus   = flag.String("i2c-bus", "", "I2C bus name (default: first bus found)")
		i2cAddr  = flag.Uint("i2c-addr", hardware.DefaultI2CAddr, "7-bit I2C address of the register bridge")
		addr     = flag.String("addr", ":9100", "HTTP listen address")
		mdns     = flag.Bool("mdns", false, "advertise the HTTP endpoint over mDNS")
		debug    = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	topo := topology.Default()
	if *topoPath != "" {
		t, err := topology.Load(*topoPath)
		if err != nil {
			slog.Error("topology load failed", "err", err)
			os.Exit(1)
		}
		topo = t
	}

	var raw hardware.Bus
	var closer io.Closer
	if *mock {
		slog.Info("using mock register bus")
		raw = hardware.NewMock()
	} else {
		b, c, err := hardware.OpenHostI2C(*i2cBus, uint16(*i2cAddr))
		if err != nil {
			slog.Error("i2c open failed", "err", err)
			os.Exit(1)
		}
		raw, closer = b, c
	}
	if closer != nil {
		defer closer.Close()
	}
	bus := metrics.NewBus(raw)

	snapshots := events.NewBus()
	go observe(ctx, snapshots)

	devs := &deviceHolder{bus: bus, pub: snapshots}
	if err := devs.load(ctx, topo); err != nil {
		slog.Error("device initialization failed", "err", err)
		os.Exit(1)
	}

	var zc *zeroconf.Service
	if *mdns {
		if port, err := listenPort(*addr); err != nil {
			slog.Warn("mdns disabled", "addr", *addr, "err", err)
		} else {
			host, err := os.Hostname()
			if err != nil || host == "" {
				host = "lpgd"
			}
			zc = zeroconf.New(host, port, txtRecords(devs.chipName()))
			go func() {
				if err := zc.Run(ctx); err != nil {
					slog.Warn("zeroconf failed", "err", err)
				}
			}()
		}
	}

	if *topoPath != "" && *watch {
		w := topology.NewWatcher(*topoPath)
		w.OnReload(func(t *topology.Topology) {
			if err := devs.load(ctx, t); err != nil {
				slog.Error("device reload failed, keeping previous device", "err", err)
				return
			}
			if zc != nil {
				zc.SetTXT(txtRecords(devs.chipName()))
			}
		})
		go func() {
			if err := w.Run(ctx); err != nil {
				slog.Warn("topology watcher stopped", "err", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.NewRouter(snapshots),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		slog.Info("lpgd listening", "addr", *addr, "mock", *mock, "chip", devs.chipName())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}
	slog.Info("shutdown complete")
}

// deviceHolder rebuilds the device on topology changes. A failed rebuild
// keeps the previous device.
type deviceHolder struct {
	mu  sync.Mutex
	bus hardware.Bus
	pub lpg.Publisher
	dev *lpg.Device
}

func (h *deviceHolder) load(ctx context.Context, t *topology.Topology) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	dev, err := lpg.New(ctx, h.bus, t, lpg.WithPublisher(h.pub))
	if err != nil {
		return err
	}
	h.dev = dev
	leds := make([]string, 0, len(dev.LEDs()))
	for _, l := range dev.LEDs() {
		leds = append(leds, l.Name())
	}
	slog.Info("device loaded", "chip", t.Chip.Name, "leds", leds)
	return nil
}

// chipName returns the chip of the current device.
func (h *deviceHolder) chipName() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dev == nil {
		return ""
	}
	return h.dev.Chip().Name
}

func txtRecords(chip string) map[string]string {
	return map[string]string{"chip": chip, "path": "/metrics"}
}

func observe(ctx context.Context, bus *events.Bus) {
	ch := bus.Subscribe("metrics")
	defer bus.Unsubscribe("metrics")
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			metrics.Observe(snap)
		}
	}
}

func listenPort(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(p)
}
