package hardware

import (
	"fmt"
	"io"
	"log/slog"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// OpenHostI2C opens a Linux I2C bus through periph.io and returns a register
// bus on it. An empty name selects the first bus found. The returned closer
// releases the underlying device.
func OpenHostI2C(name string, addr uint16) (*I2CBus, io.Closer, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("i2c: host init: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("i2c: open %q: %w", name, err)
	}
	slog.Info("i2c: bus opened", "bus", bus.String(), "addr", fmt.Sprintf("0x%02x", addr))
	return NewI2CBus(bus, addr), bus, nil
}
