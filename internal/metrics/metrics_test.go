package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/micro-nova/lpg-go/internal/hardware"
	"github.com/micro-nova/lpg-go/internal/lpg"
)

func TestBusCountsOps(t *testing.T) {
	mock := hardware.NewMock()
	bus := NewBus(mock)
	ctx := context.Background()

	writes := testutil.ToFloat64(busOps.WithLabelValues("write"))
	failures := testutil.ToFloat64(busErrors.WithLabelValues("write"))

	if err := bus.Write(ctx, 0xb146, 0x80); err != nil {
		t.Fatal(err)
	}
	if got := mock.GetReg(0xb146); got != 0x80 {
		t.Errorf("write not forwarded: reg = 0x%02x", got)
	}
	mock.SetFailWrite(true)
	if err := bus.Write(ctx, 0xb146, 0); err == nil {
		t.Fatal("expected error")
	}

	if got := testutil.ToFloat64(busOps.WithLabelValues("write")) - writes; got != 2 {
		t.Errorf("write ops delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(busErrors.WithLabelValues("write")) - failures; got != 1 {
		t.Errorf("write errors delta = %v, want 1", got)
	}
}

func TestBusForwardsAllOps(t *testing.T) {
	mock := hardware.NewMock()
	bus := NewBus(mock)
	ctx := context.Background()

	if err := bus.WriteBulk(ctx, 0xb144, []byte{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := bus.UpdateBits(ctx, 0xb144, 0x0f, 0x05); err != nil {
		t.Fatal(err)
	}
	v, err := bus.Read(ctx, 0xb144)
	if err != nil || v != 0x05 {
		t.Errorf("Read = 0x%02x, %v; want 0x05", v, err)
	}
	if n := len(mock.Ops()); n != 2 {
		t.Errorf("mock saw %d mutating ops, want 2", n)
	}
}

func TestObserve(t *testing.T) {
	Observe(lpg.Snapshot{
		LUTUsed: 5,
		LUTSize: 24,
		Channels: []lpg.ChannelState{
			{Index: 0, LED: "rgb", State: lpg.StateRamp, PeriodUS: 1000, Duty: 511, Resolution: 9},
			{Index: 1, State: lpg.StateDisabled},
		},
	})

	if got := testutil.ToFloat64(lutUsed); got != 5 {
		t.Errorf("lut used = %v", got)
	}
	if got := testutil.ToFloat64(lutSize); got != 24 {
		t.Errorf("lut size = %v", got)
	}
	if got := testutil.ToFloat64(channelState.WithLabelValues("0", "rgb")); got != 2 {
		t.Errorf("channel 0 state = %v, want 2", got)
	}
	if got := testutil.ToFloat64(channelDuty.WithLabelValues("0")); got != 1 {
		t.Errorf("channel 0 duty = %v, want 1", got)
	}
	if got := testutil.ToFloat64(channelDuty.WithLabelValues("1")); got != 0 {
		t.Errorf("channel 1 duty = %v, want 0", got)
	}
	if got := testutil.ToFloat64(channelPeriod.WithLabelValues("0")); got != 1000 {
		t.Errorf("channel 0 period = %v", got)
	}
}
