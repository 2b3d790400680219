package lpg

import (
	"context"
	"math"
)

// MaxBrightness is the full scale of LED brightness levels.
const MaxBrightness = 255

// Fixed periods used by LED requests.
const (
	ledPeriodUS    = 1000
	defaultBlinkMS = 500
	usPerMS        = 1000
)

// LED is a user visible LED backed by one channel, or several for a
// multicolor LED. Its methods take the device lock for the whole request.
type LED struct {
	dev       *Device
	name      string
	color     string
	trigger   string
	defaultOn bool

	channels   []*Channel
	intensity  []uint8
	brightness uint8
}

// Name returns the LED's name.
func (l *LED) Name() string { return l.name }

// Color returns the LED's configured color.
func (l *LED) Color() string { return l.color }

// DefaultTrigger returns the LED's configured default trigger.
func (l *LED) DefaultTrigger() string { return l.trigger }

// NumChannels returns the number of channels behind the LED.
func (l *LED) NumChannels() int { return len(l.channels) }

// Brightness returns the last brightness set through SetBrightness with
// a single level.
func (l *LED) Brightness() uint8 {
	l.dev.mu.Lock()
	defer l.dev.mu.Unlock()
	return l.brightness
}

// SetIntensity sets the per-channel color intensities used to scale a
// single brightness level. It takes effect on the next SetBrightness.
func (l *LED) SetIntensity(levels ...uint8) error {
	if len(levels) != len(l.channels) {
		return invalidf("set intensity", "%d levels for %d channels", len(levels), len(l.channels))
	}
	l.dev.mu.Lock()
	defer l.dev.mu.Unlock()
	copy(l.intensity, levels)
	return nil
}

// SetBrightness sets a static brightness. A single level is fanned out to
// every channel scaled by its intensity; one level per channel addresses
// the channels individually. Channels with a pattern assigned start their
// ramp instead.
func (l *LED) SetBrightness(ctx context.Context, levels ...uint8) error {
	l.dev.mu.Lock()
	defer l.dev.mu.Unlock()
	targets, err := l.targets(levels)
	if err != nil {
		return err
	}
	if len(levels) == 1 {
		l.brightness = levels[0]
	}
	return l.dev.run("set brightness", func() error {
		return l.setBrightnessLocked(ctx, targets)
	})
}

func (l *LED) targets(levels []uint8) ([]uint8, error) {
	switch len(levels) {
	case 1:
		return l.scaled(levels[0]), nil
	case len(l.channels):
		return append([]uint8(nil), levels...), nil
	default:
		return nil, invalidf("set brightness", "%d levels for %d channels", len(levels), len(l.channels))
	}
}

// scaled fans b out over the channels by intensity.
func (l *LED) scaled(b uint8) []uint8 {
	out := make([]uint8, len(l.channels))
	for i := range out {
		out[i] = uint8(uint16(b) * uint16(l.intensity[i]) / MaxBrightness)
	}
	return out
}

func (l *LED) setBrightnessLocked(ctx context.Context, targets []uint8) error {
	for i, c := range l.channels {
		switch b := targets[i]; {
		case b == 0:
			c.enabled = false
			c.rampEnabled = false
		case c.hasPattern():
			c.resolvePeriod(ledPeriodUS)
			c.enabled = true
			c.rampEnabled = true
		default:
			c.resolvePeriod(ledPeriodUS)
			c.duty = QuantizeDuty(uint64(b), MaxBrightness, c.period.Resolution)
			c.enabled = true
			c.rampEnabled = false
		}
		if err := l.dev.apply(ctx, c); err != nil {
			return err
		}
	}
	return l.dev.commit(ctx, l.channels)
}

// SetBlink blinks the LED in hardware with the given on and off times.
// A zero pair selects 500 ms on, 500 ms off.
func (l *LED) SetBlink(ctx context.Context, onMS, offMS uint32) error {
	if onMS == 0 && offMS == 0 {
		onMS, offMS = defaultBlinkMS, defaultBlinkMS
	}
	periodUS := (uint64(onMS) + uint64(offMS)) * usPerMS
	if periodUS > math.MaxUint32 {
		return invalidf("set blink", "period %d ms out of range", uint64(onMS)+uint64(offMS))
	}
	dutyUS := uint64(onMS) * usPerMS

	l.dev.mu.Lock()
	defer l.dev.mu.Unlock()
	return l.dev.run("set blink", func() error {
		for _, c := range l.channels {
			c.resolvePeriod(uint32(periodUS))
			c.setDuty(dutyUS)
			c.enabled = true
			c.rampEnabled = false
			if err := l.dev.apply(ctx, c); err != nil {
				return err
			}
		}
		return l.dev.commit(ctx, l.channels)
	})
}

// SetPattern stores pattern in the LUT, assigns it to every channel of
// the LED and starts it at full brightness. A previous pattern's LUT
// range is released.
func (l *LED) SetPattern(ctx context.Context, pattern []Point, repeat Repeat) error {
	if l.dev.lut == nil {
		return newError("set pattern", KindUnsupported, ErrNoLUT)
	}
	cp, err := CompilePattern(pattern, repeat)
	if err != nil {
		return err
	}

	l.dev.mu.Lock()
	defer l.dev.mu.Unlock()
	return l.dev.run("set pattern", func() error {
		first := l.channels[0]
		lo, hi, err := l.dev.lut.Replace(ctx, first.loIdx, first.hiIdx, cp.Stored)
		if err != nil {
			return err
		}
		cp.LoIdx, cp.HiIdx = lo, hi
		for _, c := range l.channels {
			c.setPattern(cp)
		}

		l.brightness = MaxBrightness
		return l.setBrightnessLocked(ctx, l.scaled(MaxBrightness))
	})
}

// ClearPattern releases the LED's LUT range and switches its channels back
// to static PWM at the LED's last brightness. Disabled channels stay off.
func (l *LED) ClearPattern(ctx context.Context) error {
	l.dev.mu.Lock()
	defer l.dev.mu.Unlock()
	return l.dev.run("clear pattern", func() error {
		first := l.channels[0]
		if l.dev.lut != nil {
			l.dev.lut.Free(first.loIdx, first.hiIdx)
		}
		targets := l.scaled(l.brightness)
		for i, c := range l.channels {
			c.clearPattern()
			if !c.enabled {
				targets[i] = 0
			}
		}
		return l.setBrightnessLocked(ctx, targets)
	})
}
