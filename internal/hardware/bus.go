// Package hardware provides the register bus abstraction for the LPG block.
// It defines the Bus interface, the typed register map, and the real I2C
// and mock implementations of the bus.
package hardware

import (
	"context"
	"fmt"
)

// Addr is an absolute 16-bit register address on the PMIC.
type Addr uint16

func (a Addr) String() string { return fmt.Sprintf("0x%04x", uint16(a)) }

// Bus is the register transport used by the LPG core.
// All operations are synchronous and safe for concurrent use.
type Bus interface {
	// Write writes a single byte to a register.
	Write(ctx context.Context, addr Addr, val byte) error

	// WriteBulk writes consecutive registers starting at addr.
	WriteBulk(ctx context.Context, addr Addr, data []byte) error

	// UpdateBits performs a read-modify-write of the bits selected by mask.
	UpdateBits(ctx context.Context, addr Addr, mask, val byte) error

	// Read reads a single byte from a register.
	Read(ctx context.Context, addr Addr) (byte, error)
}

// BusError is returned when a register transaction fails.
type BusError struct {
	Op   string
	Addr Addr
	Err  error
}

func (e *BusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("bus: %s %s failed", e.Op, e.Addr)
	}
	return fmt.Sprintf("bus: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }
