package lpg

import (
	"context"

	"github.com/micro-nova/lpg-go/internal/hardware"
)

// commit publishes the aggregate state of a channel group after every
// channel in it has been applied: one TRILED enable write covering all
// touched lines, then one ramp control write starting every ramping
// generator together.
func (d *Device) commit(ctx context.Context, group []*Channel) error {
	var triledMask, triledEnabled, lutMask byte
	for _, c := range group {
		triledMask |= c.triledMask
		if c.enabled {
			triledEnabled |= c.triledMask
		}
		if c.enabled && c.rampEnabled && c.hasPattern() {
			lutMask |= c.lutMask
		}
	}

	if triledMask != 0 && d.chip.HasTriled() {
		addr := hardware.RegTriledEnCtl.At(d.chip.TriledBase)
		if err := d.bus.UpdateBits(ctx, addr, triledMask, triledEnabled); err != nil {
			return ioError("triled set", err)
		}
	}
	if lutMask != 0 && d.lut != nil {
		addr := hardware.RegRampControl.At(d.chip.LUTBase)
		if err := d.bus.Write(ctx, addr, lutMask); err != nil {
			return ioError("lut sync", err)
		}
	}
	return nil
}
