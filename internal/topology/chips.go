// Package topology describes the LPG blocks of the supported PMICs and the
// LED wiring of a board, loaded from a TOML file.
package topology

import (
	"sort"

	"github.com/micro-nova/lpg-go/internal/hardware"
)

// ChannelData is the fixed per-channel layout of a chip.
type ChannelData struct {
	Base       hardware.Addr
	TriledMask byte // 0 if the channel is not routed to the TRILED block
}

// Chip is the fixed LPG layout of one PMIC variant.
type Chip struct {
	Name        string
	LUTBase     hardware.Addr // 0 if the chip has no LUT
	LUTSize     int
	TriledBase  hardware.Addr // 0 if the chip has no TRILED block
	PWM9BitMask byte          // size/clk bits selecting 9-bit resolution
	Channels    []ChannelData
}

// HasLUT reports whether the chip can play patterns.
func (c Chip) HasLUT() bool { return c.LUTBase != 0 && c.LUTSize > 0 }

// HasTriled reports whether the chip has a TRILED block.
func (c Chip) HasTriled() bool { return c.TriledBase != 0 }

// Chips lists the supported LPG variants by compatible name.
var Chips = map[string]Chip{
	"pm8916-pwm": {
		Name:        "pm8916-pwm",
		PWM9BitMask: 1 << 2,
		Channels: []ChannelData{
			{Base: 0xbc00},
		},
	},
	"pm8941-lpg": {
		Name:        "pm8941-lpg",
		LUTBase:     0xb000,
		LUTSize:     64,
		TriledBase:  0xd000,
		PWM9BitMask: 3 << 4,
		Channels: []ChannelData{
			{Base: 0xb100},
			{Base: 0xb200},
			{Base: 0xb300},
			{Base: 0xb400},
			{Base: 0xb500, TriledMask: 1 << 5},
			{Base: 0xb600, TriledMask: 1 << 6},
			{Base: 0xb700, TriledMask: 1 << 7},
			{Base: 0xb800},
		},
	},
	"pm8994-lpg": {
		Name:        "pm8994-lpg",
		LUTBase:     0xb000,
		LUTSize:     64,
		PWM9BitMask: 3 << 4,
		Channels: []ChannelData{
			{Base: 0xb100},
			{Base: 0xb200},
			{Base: 0xb300},
			{Base: 0xb400},
			{Base: 0xb500},
			{Base: 0xb600},
		},
	},
	"pmi8994-lpg": {
		Name:        "pmi8994-lpg",
		LUTBase:     0xb000,
		LUTSize:     24,
		TriledBase:  0xd000,
		PWM9BitMask: 1 << 4,
		Channels: []ChannelData{
			{Base: 0xb100, TriledMask: 1 << 5},
			{Base: 0xb200, TriledMask: 1 << 6},
			{Base: 0xb300, TriledMask: 1 << 7},
			{Base: 0xb400},
		},
	},
	"pmi8998-lpg": {
		Name:        "pmi8998-lpg",
		LUTBase:     0xb000,
		LUTSize:     49,
		PWM9BitMask: 1 << 4,
		Channels: []ChannelData{
			{Base: 0xb100},
			{Base: 0xb200},
			{Base: 0xb300, TriledMask: 1 << 5},
			{Base: 0xb400, TriledMask: 1 << 6},
			{Base: 0xb500, TriledMask: 1 << 7},
			{Base: 0xb600},
		},
	},
}

// ChipNames returns the supported chip names in sorted order.
func ChipNames() []string {
	names := make([]string, 0, len(Chips))
	for n := range Chips {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
