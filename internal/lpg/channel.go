package lpg

import (
	"context"
	"fmt"

	"github.com/micro-nova/lpg-go/internal/hardware"
)

// State is the operating state of a channel.
type State uint8

const (
	StateDisabled State = iota
	StatePWM
	StateRamp
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StatePWM:
		return "pwm"
	case StateRamp:
		return "ramp"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(text []byte) error {
	for _, v := range []State{StateDisabled, StatePWM, StateRamp} {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("lpg: unknown channel state %q", text)
}

// Channel is one PWM / ramp generator unit. All fields are guarded by the
// owning Device's lock.
type Channel struct {
	index      int
	base       hardware.Addr
	triledMask byte
	lutMask    byte
	inUse      bool
	color      string
	dtestLine  uint8
	dtestValue uint8

	enabled     bool
	rampEnabled bool

	periodUS uint32
	duty     uint16
	period   PeriodParams

	loIdx, hiIdx int
	pingPong     bool
	oneshot      bool
	reverse      bool

	rampDurationMS uint32
	loPauseMS      uint32
	hiPauseMS      uint32
}

// State returns the channel's operating state.
func (c *Channel) State() State {
	switch {
	case !c.enabled:
		return StateDisabled
	case c.rampEnabled && c.hasPattern():
		return StateRamp
	default:
		return StatePWM
	}
}

func (c *Channel) hasPattern() bool { return c.loIdx != c.hiIdx }

// resolvePeriod updates the clock parameters for periodUS. Asking for the
// cached period again is a no-op.
func (c *Channel) resolvePeriod(periodUS uint32) {
	if periodUS == c.periodUS {
		return
	}
	c.period = FindPeriod(periodUS)
	c.periodUS = periodUS
}

// setDuty must be called after resolvePeriod for the same request.
func (c *Channel) setDuty(dutyUS uint64) {
	c.duty = QuantizeDuty(dutyUS, uint64(c.periodUS), c.period.Resolution)
}

func (c *Channel) clearPattern() {
	c.loIdx, c.hiIdx = 0, 0
	c.rampEnabled = false
	c.pingPong, c.oneshot = false, false
	c.rampDurationMS, c.loPauseMS, c.hiPauseMS = 0, 0, 0
}

func (c *Channel) setPattern(cp CompiledPattern) {
	c.rampDurationMS = cp.RampDurationMS
	c.pingPong = cp.PingPong
	c.oneshot = cp.Oneshot
	c.loPauseMS = cp.LoPauseMS
	c.hiPauseMS = cp.HiPauseMS
	c.loIdx = cp.LoIdx
	c.hiIdx = cp.HiIdx
}

// apply programs the channel's full state. The order is load bearing:
// glitch removal is off while the clock and size change, the duty value is
// written again after enabling (the PWM otherwise keeps a stale value), and
// the pattern is configured after the sync pulse.
func (d *Device) apply(ctx context.Context, c *Channel) error {
	steps := []func(context.Context, *Channel) error{
		d.disableGlitch,
		d.applyFreq,
		d.applyPWMValue,
		d.applyControl,
		d.applySync,
		d.applyLUTControl,
		d.enableGlitch,
	}
	for _, step := range steps {
		if err := step(ctx, c); err != nil {
			return ioError("apply", err)
		}
	}
	return nil
}

func (d *Device) disableGlitch(ctx context.Context, c *Channel) error {
	return d.bus.UpdateBits(ctx, hardware.RegTypeConfig.At(c.base),
		hardware.TypeConfigGlitchRemoval, hardware.TypeConfigGlitchRemoval)
}

func (d *Device) enableGlitch(ctx context.Context, c *Channel) error {
	return d.bus.UpdateBits(ctx, hardware.RegTypeConfig.At(c.base),
		hardware.TypeConfigGlitchRemoval, 0)
}

func (d *Device) applyFreq(ctx context.Context, c *Channel) error {
	if !c.enabled {
		return nil
	}
	val := c.period.Clock + 1
	if c.period.Resolution == Resolution9Bit {
		val |= d.chip.PWM9BitMask
	}
	if err := d.bus.Write(ctx, hardware.RegSizeClk.At(c.base), val); err != nil {
		return err
	}
	return d.bus.Write(ctx, hardware.RegPreDivClk.At(c.base), c.period.PreDiv<<5|c.period.Exponent)
}

func (d *Device) applyPWMValue(ctx context.Context, c *Channel) error {
	if !c.enabled {
		return nil
	}
	return d.bus.WriteBulk(ctx, hardware.RegPWMValue.At(c.base), hardware.PutLE16(c.duty))
}

func (d *Device) applyControl(ctx context.Context, c *Channel) error {
	ctrl := hardware.EnableBufferTristate
	if c.enabled {
		ctrl |= hardware.EnableOutput
	}
	if c.hasPattern() {
		ctrl |= hardware.EnableRampGen
	} else {
		ctrl |= hardware.EnableSrcPWM
	}
	if err := d.bus.Write(ctx, hardware.RegEnableControl.At(c.base), ctrl); err != nil {
		return err
	}
	// Hardware erratum: with PWM enabled the value must be written again.
	return d.applyPWMValue(ctx, c)
}

func (d *Device) applySync(ctx context.Context, c *Channel) error {
	return d.bus.Write(ctx, hardware.RegSync.At(c.base), hardware.SyncPWM)
}

func (d *Device) applyLUTControl(ctx context.Context, c *Channel) error {
	if !c.rampEnabled || !c.hasPattern() {
		return nil
	}
	r := c.rampRegs()

	var conf byte
	if !c.reverse {
		conf |= hardware.PatternLoToHi
	}
	if !c.oneshot {
		conf |= hardware.PatternRepeat
	}
	if c.pingPong {
		conf |= hardware.PatternToggle
	}
	if c.hiPauseMS != 0 {
		conf |= hardware.PatternPauseHi
	}
	if c.loPauseMS != 0 {
		conf |= hardware.PatternPauseLo
	}

	writes := []struct {
		reg hardware.ChannelReg
		val byte
	}{
		{hardware.RegPatternConfig, conf},
		{hardware.RegHiIdx, byte(c.hiIdx)},
		{hardware.RegLoIdx, byte(c.loIdx)},
	}
	for _, w := range writes {
		if err := d.bus.Write(ctx, w.reg.At(c.base), w.val); err != nil {
			return err
		}
	}
	timing := []struct {
		reg hardware.ChannelReg
		val uint16
	}{
		{hardware.RegRampDuration, r.step},
		{hardware.RegHiPause, r.hiPause},
		{hardware.RegLoPause, r.loPause},
	}
	for _, w := range timing {
		if err := d.bus.WriteBulk(ctx, w.reg.At(c.base), hardware.PutLE16(w.val)); err != nil {
			return err
		}
	}
	return nil
}

type rampRegs struct {
	step, hiPause, loPause uint16
}

// rampRegs converts the ramp timing to register units: the step time in ms
// and both pauses as step counts.
func (c *Channel) rampRegs() rampRegs {
	n := uint32(c.hiIdx - c.loIdx + 1)
	step := clamp16(divRoundUp(c.rampDurationMS, n))
	if step == 0 {
		step = 1
	}
	// Pauses are counted in programmed steps.
	return rampRegs{
		step:    step,
		hiPause: clamp16(divRoundUp(c.hiPauseMS, uint32(step))),
		loPause: clamp16(divRoundUp(c.loPauseMS, uint32(step))),
	}
}

// applyDTEST routes the channel output to its DTEST line, if configured.
func (d *Device) applyDTEST(ctx context.Context, c *Channel) error {
	if c.dtestLine == 0 {
		return nil
	}
	if err := d.bus.Write(ctx, hardware.RegSecAccess.At(c.base), hardware.SecAccessUnlock); err != nil {
		return ioError("dtest", err)
	}
	if err := d.bus.Write(ctx, hardware.RegDTEST(c.dtestLine).At(c.base), c.dtestValue); err != nil {
		return ioError("dtest", err)
	}
	return nil
}

func divRoundUp(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return uint32((uint64(a) + uint64(b) - 1) / uint64(b))
}

func clamp16(v uint32) uint16 {
	if v > 0xffff {
		return 0xffff
	}
	return uint16(v)
}
