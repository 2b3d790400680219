package topology_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/micro-nova/lpg-go/internal/topology"
)

const rgbDoc = `
chip = "pmi8994-lpg"
power_source = 1

[[led]]
name = "rgb:status"
color = "rgb"
default_trigger = "none"
default_state = "on"

  [[led.channel]]
  reg = 1
  color = "red"

  [[led.channel]]
  reg = 2
  color = "green"
  dtest = [1, 2]

  [[led.channel]]
  reg = 3
  color = "blue"

[[led]]
name = "white:kbd"
color = "white"

  [[led.channel]]
  reg = 4
`

func TestParseRGB(t *testing.T) {
	topo, err := topology.Parse([]byte(rgbDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if topo.Chip.Name != "pmi8994-lpg" || topo.Chip.LUTSize != 24 {
		t.Errorf("chip = %+v", topo.Chip)
	}
	if topo.PowerSourceValue() != 1 {
		t.Errorf("power source = %d, want 1", topo.PowerSourceValue())
	}
	if len(topo.LEDs) != 2 {
		t.Fatalf("got %d leds, want 2", len(topo.LEDs))
	}
	rgb := topo.LEDs[0]
	if !rgb.DefaultOn() || rgb.DefaultTrigger != "none" || len(rgb.Channels) != 3 {
		t.Errorf("rgb led = %+v", rgb)
	}
	if g := rgb.Channels[1]; g.DTESTLine() != 1 || g.DTESTValue() != 2 {
		t.Errorf("green dtest = %v", g.DTEST)
	}
	if r := rgb.Channels[0]; r.DTESTLine() != 0 {
		t.Errorf("red dtest line = %d, want 0", r.DTESTLine())
	}
	if topo.LEDs[1].DefaultOn() {
		t.Error("white led should default off")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown chip", `chip = "pm0000"`, "unknown chip"},
		{"missing power source", `chip = "pm8941-lpg"`, "requires power_source"},
		{"power source 2", "chip = \"pm8941-lpg\"\npower_source = 2", "invalid power_source"},
		{"power source 4", "chip = \"pm8941-lpg\"\npower_source = 4", "invalid power_source"},
		{"reg zero", `chip = "pm8994-lpg"
[[led]]
name = "a"
  [[led.channel]]
  reg = 0`, "invalid reg"},
		{"reg too large", `chip = "pm8916-pwm"
[[led]]
name = "a"
  [[led.channel]]
  reg = 2`, "invalid reg"},
		{"mono with two channels", `chip = "pm8994-lpg"
[[led]]
name = "a"
color = "red"
  [[led.channel]]
  reg = 1
  [[led.channel]]
  reg = 2`, "only rgb"},
		{"no channels", `chip = "pm8994-lpg"
[[led]]
name = "a"`, "no channels"},
		{"channel claimed twice", `chip = "pm8994-lpg"
[[led]]
name = "a"
  [[led.channel]]
  reg = 1
[[led]]
name = "b"
  [[led.channel]]
  reg = 1`, "already used"},
		{"duplicate name", `chip = "pm8994-lpg"
[[led]]
name = "a"
  [[led.channel]]
  reg = 1
[[led]]
name = "a"
  [[led.channel]]
  reg = 2`, "duplicate led"},
		{"bad dtest", `chip = "pm8994-lpg"
[[led]]
name = "a"
  [[led.channel]]
  reg = 1
  dtest = [1]`, "malformed dtest"},
		{"bad default state", `chip = "pm8994-lpg"
[[led]]
name = "a"
default_state = "keep"
  [[led.channel]]
  reg = 1`, "default_state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := topology.Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestParseNoTriledNeedsNoPowerSource(t *testing.T) {
	topo, err := topology.Parse([]byte(`chip = "pm8916-pwm"`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if topo.Chip.HasLUT() || topo.Chip.HasTriled() {
		t.Errorf("pm8916 should have neither LUT nor TRILED: %+v", topo.Chip)
	}
}

func TestParseMalformedTOML(t *testing.T) {
	if _, err := topology.Parse([]byte("chip = ")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lpg.toml")
	if err := os.WriteFile(path, []byte(rgbDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	topo, err := topology.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(topo.LEDs) != 2 {
		t.Errorf("got %d leds", len(topo.LEDs))
	}

	if _, err := topology.Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaultIsValid(t *testing.T) {
	topo := topology.Default()
	if err := topo.Validate(); err != nil {
		t.Fatalf("Default topology invalid: %v", err)
	}
	if len(topo.LEDs) != 1 || len(topo.LEDs[0].Channels) != 3 {
		t.Errorf("Default = %+v", topo.LEDs)
	}
}

func TestChipTable(t *testing.T) {
	names := topology.ChipNames()
	want := []string{"pm8916-pwm", "pm8941-lpg", "pm8994-lpg", "pmi8994-lpg", "pmi8998-lpg"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("ChipNames = %v, want %v", names, want)
	}
	for _, n := range names {
		chip := topology.Chips[n]
		if len(chip.Channels) == 0 || len(chip.Channels) > 8 {
			t.Errorf("%s: %d channels", n, len(chip.Channels))
		}
		if chip.PWM9BitMask == 0 {
			t.Errorf("%s: no 9-bit mask", n)
		}
	}
	if got := topology.Chips["pmi8998-lpg"].LUTSize; got != 49 {
		t.Errorf("pmi8998 LUT size = %d, want 49", got)
	}
}
