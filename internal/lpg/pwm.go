package lpg

import (
	"context"
	"math"
)

// PWMState is a raw PWM request for a channel exposed as a generic PWM
// output.
type PWMState struct {
	PeriodNS uint64
	DutyNS   uint64
	Enabled  bool
}

// NumPWM returns the number of channels on the device.
func (d *Device) NumPWM() int { return len(d.channels) }

// ApplyPWM programs channel idx directly. Channels claimed by an LED are
// busy.
func (d *Device) ApplyPWM(ctx context.Context, idx int, st PWMState) error {
	if idx < 0 || idx >= len(d.channels) {
		return invalidf("apply pwm", "channel %d out of range", idx)
	}
	periodUS := st.PeriodNS / nsPerUS
	if st.Enabled && periodUS == 0 {
		return invalidf("apply pwm", "period %d ns below 1 us", st.PeriodNS)
	}
	if periodUS > math.MaxUint32 {
		return invalidf("apply pwm", "period %d ns out of range", st.PeriodNS)
	}
	if st.DutyNS > st.PeriodNS {
		return invalidf("apply pwm", "duty %d ns exceeds period %d ns", st.DutyNS, st.PeriodNS)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.channels[idx]
	if c.inUse {
		return newError("apply pwm", KindBusy, nil)
	}
	return d.run("apply pwm", func() error {
		// A disabled request still records its period and duty.
		if periodUS > 0 {
			c.resolvePeriod(uint32(periodUS))
			c.setDuty(st.DutyNS / nsPerUS)
		}
		c.enabled = st.Enabled
		c.rampEnabled = false
		if err := d.apply(ctx, c); err != nil {
			return err
		}
		return d.commit(ctx, []*Channel{c})
	})
}
