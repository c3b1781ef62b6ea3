package flowcontrol_test

import (
	"testing"

	"github.com/momentics/totem-srp/flowcontrol"
)

func TestTransmitsAllowedClampedToWindow(t *testing.T) {
	fc := flowcontrol.New(50, 128)
	if got := fc.TransmitsAllowed(0); got != 50 {
		t.Fatalf("got %d, want 50", got)
	}
	if got := fc.TransmitsAllowed(40); got != 10 {
		t.Fatalf("got %d, want 10", got)
	}
	if got := fc.TransmitsAllowed(60); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}

func TestBrakingEngagesPastHoleWindow(t *testing.T) {
	fc := flowcontrol.New(50, 128)
	if fc.Braking(100, 100, 200) {
		t.Fatal("should not brake: within window")
	}
	if !fc.Braking(10, 10, 200) {
		t.Fatal("should brake: 10+128 < 200")
	}
}

func TestNextFccAccumulatesAndSubtractsOwnContribution(t *testing.T) {
	fc := flowcontrol.New(50, 128)
	got := fc.NextFcc(0, 5, 2)
	if got != 7 {
		t.Fatalf("first rotation fcc = %d, want 7", got)
	}
	got = fc.NextFcc(got, 3, 0)
	if got != 3 {
		t.Fatalf("second rotation fcc = %d, want 3", got)
	}
}
