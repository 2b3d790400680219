package metrics

import (
	"context"
	"time"

	"github.com/micro-nova/lpg-go/internal/hardware"
)

// Bus wraps a register bus and counts its traffic.
type Bus struct {
	next hardware.Bus
}

// NewBus instruments next.
func NewBus(next hardware.Bus) *Bus {
	return &Bus{next: next}
}

func (b *Bus) Write(ctx context.Context, addr hardware.Addr, val byte) error {
	defer observe("write", time.Now())
	return count("write", b.next.Write(ctx, addr, val))
}

func (b *Bus) WriteBulk(ctx context.Context, addr hardware.Addr, data []byte) error {
	defer observe("write_bulk", time.Now())
	return count("write_bulk", b.next.WriteBulk(ctx, addr, data))
}

func (b *Bus) UpdateBits(ctx context.Context, addr hardware.Addr, mask, val byte) error {
	defer observe("update_bits", time.Now())
	return count("update_bits", b.next.UpdateBits(ctx, addr, mask, val))
}

func (b *Bus) Read(ctx context.Context, addr hardware.Addr) (byte, error) {
	defer observe("read", time.Now())
	v, err := b.next.Read(ctx, addr)
	return v, count("read", err)
}

func observe(op string, start time.Time) {
	busLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func count(op string, err error) error {
	busOps.WithLabelValues(op).Inc()
	if err != nil {
		busErrors.WithLabelValues(op).Inc()
	}
	return err
}

var _ hardware.Bus = (*Bus)(nil)
