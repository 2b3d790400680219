package topology

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Colors accepted for LEDs and channels. ColorRGB groups several channels
// into one multicolor LED.
const (
	ColorRGB = "rgb"
)

// Channel is one channel reference of an LED.
type Channel struct {
	Reg   int     `toml:"reg"` // 1-based channel number
	Color string  `toml:"color"`
	DTEST []uint8 `toml:"dtest"` // [line, value]; line 0 disables
}

// DTESTLine returns the configured DTEST line, 0 if none.
func (c Channel) DTESTLine() uint8 {
	if len(c.DTEST) != 2 {
		return 0
	}
	return c.DTEST[0]
}

// DTESTValue returns the configured DTEST value.
func (c Channel) DTESTValue() uint8 {
	if len(c.DTEST) != 2 {
		return 0
	}
	return c.DTEST[1]
}

// LED is one logical LED made of one or more channels.
type LED struct {
	Name           string    `toml:"name"`
	Color          string    `toml:"color"`
	DefaultTrigger string    `toml:"default_trigger"`
	DefaultState   string    `toml:"default_state"` // "on", "off" or empty
	Channels       []Channel `toml:"channel"`
}

// DefaultOn reports whether the LED starts at full brightness.
func (l LED) DefaultOn() bool { return l.DefaultState == "on" }

// Topology is the full description of one LPG device.
type Topology struct {
	ChipName    string `toml:"chip"`
	PowerSource *uint8 `toml:"power_source"`
	LEDs        []LED  `toml:"led"`

	Chip Chip `toml:"-"`
}

// Load reads and validates a TOML topology file.
func Load(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("topology: read %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return t, nil
}

// Parse decodes and validates a TOML topology document.
func Parse(data []byte) (*Topology, error) {
	var t Topology
	if err := toml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("topology: parse: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate resolves the chip and checks the LED wiring against it.
func (t *Topology) Validate() error {
	chip, ok := Chips[t.ChipName]
	if !ok {
		return fmt.Errorf("topology: unknown chip %q (supported: %s)", t.ChipName, strings.Join(ChipNames(), ", "))
	}
	t.Chip = chip

	if chip.HasTriled() {
		if t.PowerSource == nil {
			return fmt.Errorf("topology: %s requires power_source", chip.Name)
		}
		if ps := *t.PowerSource; ps == 2 || ps > 3 {
			return fmt.Errorf("topology: invalid power_source %d", ps)
		}
	}

	names := make(map[string]bool, len(t.LEDs))
	claimed := make(map[int]string)
	for i, led := range t.LEDs {
		if led.Name == "" {
			return fmt.Errorf("topology: led %d has no name", i)
		}
		if names[led.Name] {
			return fmt.Errorf("topology: duplicate led %q", led.Name)
		}
		names[led.Name] = true

		switch {
		case len(led.Channels) == 0:
			return fmt.Errorf("topology: led %q has no channels", led.Name)
		case led.Color != ColorRGB && len(led.Channels) != 1:
			return fmt.Errorf("topology: led %q has %d channels, only rgb leds may have more than one", led.Name, len(led.Channels))
		}

		switch led.DefaultState {
		case "", "on", "off":
		default:
			return fmt.Errorf("topology: led %q: invalid default_state %q", led.Name, led.DefaultState)
		}

		for _, ch := range led.Channels {
			if ch.Reg < 1 || ch.Reg > len(chip.Channels) {
				return fmt.Errorf("topology: led %q: invalid reg %d (chip has %d channels)", led.Name, ch.Reg, len(chip.Channels))
			}
			if owner, dup := claimed[ch.Reg]; dup {
				return fmt.Errorf("topology: led %q: channel %d already used by %q", led.Name, ch.Reg, owner)
			}
			claimed[ch.Reg] = led.Name
			if len(ch.DTEST) != 0 && len(ch.DTEST) != 2 {
				return fmt.Errorf("topology: led %q: malformed dtest on channel %d", led.Name, ch.Reg)
			}
		}
	}
	return nil
}

// PowerSourceValue returns the configured TRILED power source, 0 if unset.
func (t *Topology) PowerSourceValue() uint8 {
	if t.PowerSource == nil {
		return 0
	}
	return *t.PowerSource
}

// Default returns an RGB topology on a pmi8994 for development and testing.
func Default() *Topology {
	ps := uint8(1)
	t := &Topology{
		ChipName:    "pmi8994-lpg",
		PowerSource: &ps,
		LEDs: []LED{
			{
				Name:         "rgb:status",
				Color:        ColorRGB,
				DefaultState: "off",
				Channels: []Channel{
					{Reg: 1, Color: "red"},
					{Reg: 2, Color: "green"},
					{Reg: 3, Color: "blue"},
				},
			},
		},
	}
	t.Chip = Chips[t.ChipName]
	return t
}
