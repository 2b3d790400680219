package hardware

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
	"tinygo.org/x/drivers"
)

const (
	// DefaultI2CAddr is the 7-bit address of the PMIC register bridge.
	DefaultI2CAddr = 0x08
	maxOpsPerSec   = 2000
	maxBurst       = 32
)

// I2CBus is the real register bus. Each transaction carries a 16-bit
// big-endian register address followed by the data bytes; the bridge
// auto-increments the address for bulk writes.
type I2CBus struct {
	mu      sync.Mutex
	i2c     drivers.I2C
	addr    uint16
	limiter *rate.Limiter
	wbuf    []byte
}

// NewI2CBus wraps an I2C controller. Any controller with a Tx method works:
// machine.I2C on TinyGo targets and periph.io buses on Linux hosts.
func NewI2CBus(i2c drivers.I2C, addr uint16) *I2CBus {
	if addr == 0 {
		addr = DefaultI2CAddr
	}
	return &I2CBus{
		i2c:     i2c,
		addr:    addr,
		limiter: rate.NewLimiter(rate.Limit(maxOpsPerSec), maxBurst),
		wbuf:    make([]byte, 0, 8),
	}
}

func (b *I2CBus) Write(ctx context.Context, addr Addr, val byte) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return &BusError{Op: "write", Addr: addr, Err: err}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writeLocked(addr, []byte{val})
}

func (b *I2CBus) WriteBulk(ctx context.Context, addr Addr, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return &BusError{Op: "write_bulk", Addr: addr, Err: err}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writeLocked(addr, data)
}

func (b *I2CBus) Read(ctx context.Context, addr Addr) (byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return 0, &BusError{Op: "read", Addr: addr, Err: err}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readLocked(addr)
}

// UpdateBits holds the bus lock across the read and the write so no other
// transaction can interleave. The write is skipped when nothing changes.
func (b *I2CBus) UpdateBits(ctx context.Context, addr Addr, mask, val byte) error {
	if err := b.limiter.WaitN(ctx, 2); err != nil {
		return &BusError{Op: "update_bits", Addr: addr, Err: err}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, err := b.readLocked(addr)
	if err != nil {
		return err
	}
	next := (cur &^ mask) | (val & mask)
	if next == cur {
		return nil
	}
	return b.writeLocked(addr, []byte{next})
}

func (b *I2CBus) writeLocked(addr Addr, data []byte) error {
	b.wbuf = append(b.wbuf[:0], byte(addr>>8), byte(addr))
	b.wbuf = append(b.wbuf, data...)
	if err := b.i2c.Tx(b.addr, b.wbuf, nil); err != nil {
		slog.Debug("i2c: write failed", "dev", fmt.Sprintf("0x%02x", b.addr), "reg", addr, "len", len(data), "err", err)
		return &BusError{Op: "write", Addr: addr, Err: err}
	}
	return nil
}

func (b *I2CBus) readLocked(addr Addr) (byte, error) {
	w := [2]byte{byte(addr >> 8), byte(addr)}
	var r [1]byte
	if err := b.i2c.Tx(b.addr, w[:], r[:]); err != nil {
		return 0, &BusError{Op: "read", Addr: addr, Err: err}
	}
	return r[0], nil
}

var _ Bus = (*I2CBus)(nil)
