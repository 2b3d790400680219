// Package lpg drives the Light Pulse Generator block of Qualcomm PMICs: PWM
// channels with an optional LUT-driven ramp generator feeding the TRILED
// current sinks.
package lpg

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/micro-nova/lpg-go/internal/hardware"
	"github.com/micro-nova/lpg-go/internal/topology"
)

// Publisher receives a snapshot after every successful request.
type Publisher interface {
	Publish(Snapshot)
}

// Option configures a Device.
type Option func(*Device)

// WithPublisher sets the snapshot publisher.
func WithPublisher(p Publisher) Option {
	return func(d *Device) { d.pub = p }
}

// Device is one LPG instance. A single lock serializes every request: the
// LUT bitmap, the TRILED aggregate and all channel state are only touched
// while it is held.
type Device struct {
	mu       sync.Mutex
	bus      hardware.Bus
	chip     topology.Chip
	lut      *LUT // nil if the chip has no LUT
	channels []*Channel
	leds     map[string]*LED
	order    []string
	pub      Publisher
}

// New initializes the LPG described by topo on bus and applies each LED's
// default state.
func New(ctx context.Context, bus hardware.Bus, topo *topology.Topology, opts ...Option) (*Device, error) {
	if topo == nil {
		return nil, invalidf("init", "nil topology")
	}
	if err := topo.Validate(); err != nil {
		return nil, newError("init", KindInvalidArgument, err)
	}

	d := &Device{
		bus:  bus,
		chip: topo.Chip,
		leds: make(map[string]*LED, len(topo.LEDs)),
	}
	for _, o := range opts {
		o(d)
	}

	for i, cd := range d.chip.Channels {
		d.channels = append(d.channels, &Channel{
			index:      i,
			base:       cd.Base,
			triledMask: cd.TriledMask,
			lutMask:    1 << i,
		})
	}

	if err := d.initTriled(ctx, topo.PowerSourceValue()); err != nil {
		return nil, err
	}
	if d.chip.HasLUT() {
		d.lut = NewLUT(bus, d.chip.LUTBase, d.chip.LUTSize)
	}

	for _, lc := range topo.LEDs {
		if err := d.addLED(lc); err != nil {
			return nil, err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, name := range d.order {
		l := d.leds[name]
		var level uint8
		if l.defaultOn {
			level = MaxBrightness
		}
		l.brightness = level
		if err := l.setBrightnessLocked(ctx, l.scaled(level)); err != nil {
			return nil, fmt.Errorf("led %s: %w", name, err)
		}
	}
	for _, c := range d.channels {
		if err := d.applyDTEST(ctx, c); err != nil {
			return nil, err
		}
	}

	slog.Info("lpg: device ready", "chip", d.chip.Name, "channels", len(d.channels),
		"leds", len(d.leds), "lut", d.chip.LUTSize, "triled", d.chip.HasTriled())
	d.publishLocked()
	return d, nil
}

func (d *Device) initTriled(ctx context.Context, src uint8) error {
	if !d.chip.HasTriled() {
		return nil
	}
	writes := []struct {
		reg hardware.TriledReg
		val byte
	}{
		{hardware.RegTriledATCCtl, 0},
		{hardware.RegTriledSrcSel, src},
		{hardware.RegTriledEnCtl, 0},
	}
	for _, w := range writes {
		if err := d.bus.Write(ctx, w.reg.At(d.chip.TriledBase), w.val); err != nil {
			return ioError("triled init", err)
		}
	}
	return nil
}

func (d *Device) addLED(lc topology.LED) error {
	if _, dup := d.leds[lc.Name]; dup {
		return invalidf("init", "duplicate led %q", lc.Name)
	}
	l := &LED{
		dev:       d,
		name:      lc.Name,
		color:     lc.Color,
		trigger:   lc.DefaultTrigger,
		defaultOn: lc.DefaultOn(),
	}
	for _, cc := range lc.Channels {
		idx := cc.Reg - 1
		if idx < 0 || idx >= len(d.channels) {
			return invalidf("init", "led %q: invalid channel %d", lc.Name, cc.Reg)
		}
		c := d.channels[idx]
		if c.inUse {
			return invalidf("init", "led %q: channel %d already in use", lc.Name, cc.Reg)
		}
		c.inUse = true
		c.color = cc.Color
		c.dtestLine = cc.DTESTLine()
		c.dtestValue = cc.DTESTValue()
		l.channels = append(l.channels, c)
		l.intensity = append(l.intensity, MaxBrightness)
	}
	d.leds[l.name] = l
	d.order = append(d.order, l.name)
	return nil
}

// LED returns the LED with the given name.
func (d *Device) LED(name string) (*LED, bool) {
	l, ok := d.leds[name]
	return l, ok
}

// LEDs returns all LEDs sorted by name.
func (d *Device) LEDs() []*LED {
	names := append([]string(nil), d.order...)
	sort.Strings(names)
	out := make([]*LED, 0, len(names))
	for _, n := range names {
		out = append(out, d.leds[n])
	}
	return out
}

// Chip returns the chip the device was built for.
func (d *Device) Chip() topology.Chip { return d.chip }

// run executes one request with the lock held and publishes the new state
// if it succeeds.
func (d *Device) run(op string, fn func() error) error {
	if err := fn(); err != nil {
		slog.Debug("lpg: request failed", "op", op, "err", err)
		return err
	}
	d.publishLocked()
	return nil
}

func (d *Device) publishLocked() {
	if d.pub != nil {
		d.pub.Publish(d.snapshotLocked())
	}
}

// ChannelState is the observable state of one channel.
type ChannelState struct {
	Index      int    `json:"index"`
	LED        string `json:"led,omitempty"`
	Color      string `json:"color,omitempty"`
	State      State  `json:"state"`
	PeriodUS   uint32 `json:"period_us"`
	Duty       uint16 `json:"duty"`
	Resolution uint8  `json:"resolution"`
	LoIdx      int    `json:"lo_idx"`
	HiIdx      int    `json:"hi_idx"`
}

// Snapshot is a consistent copy of the device state.
type Snapshot struct {
	Chip     string         `json:"chip"`
	Channels []ChannelState `json:"channels"`
	LUTUsed  int            `json:"lut_used"`
	LUTSize  int            `json:"lut_size"`
}

// Snapshot returns the current device state.
func (d *Device) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Device) snapshotLocked() Snapshot {
	owner := make(map[*Channel]string)
	for name, l := range d.leds {
		for _, c := range l.channels {
			owner[c] = name
		}
	}
	s := Snapshot{Chip: d.chip.Name, Channels: make([]ChannelState, len(d.channels))}
	for i, c := range d.channels {
		s.Channels[i] = ChannelState{
			Index:      c.index,
			LED:        owner[c],
			Color:      c.color,
			State:      c.State(),
			PeriodUS:   c.periodUS,
			Duty:       c.duty,
			Resolution: c.period.Resolution,
			LoIdx:      c.loIdx,
			HiIdx:      c.hiIdx,
		}
	}
	if d.lut != nil {
		s.LUTUsed = d.lut.Used()
		s.LUTSize = d.lut.Size()
	}
	return s
}
