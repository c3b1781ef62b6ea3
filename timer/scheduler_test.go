package timer_test

import (
	"testing"

	"github.com/momentics/totem-srp/timer"
)

func TestScheduleFiresOnceDeadlineReached(t *testing.T) {
	s := timer.New(0)
	fired := false
	_, err := s.Schedule(100, func() { fired = true })
	if err != nil {
		t.Fatal(err)
	}

	s.SetNow(50)
	if n := s.Poll(); n != 0 {
		t.Fatalf("fired %d callbacks early, want 0", n)
	}
	if fired {
		t.Fatal("callback ran before its deadline")
	}

	s.SetNow(100)
	if n := s.Poll(); n != 1 {
		t.Fatalf("fired %d callbacks, want 1", n)
	}
	if !fired {
		t.Fatal("callback did not run at deadline")
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	s := timer.New(0)
	fired := false
	c, _ := s.Schedule(10, func() { fired = true })
	if err := c.Cancel(); err != nil {
		t.Fatal(err)
	}

	s.SetNow(100)
	s.Poll()
	if fired {
		t.Fatal("canceled callback fired")
	}
}

func TestPollRunsInDeadlineOrder(t *testing.T) {
	s := timer.New(0)
	var order []int
	s.Schedule(30, func() { order = append(order, 3) })
	s.Schedule(10, func() { order = append(order, 1) })
	s.Schedule(20, func() { order = append(order, 2) })

	s.SetNow(100)
	s.Poll()
	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestNextDeadlineReportsEarliest(t *testing.T) {
	s := timer.New(0)
	if _, ok := s.NextDeadline(); ok {
		t.Fatal("expected no deadline on empty scheduler")
	}
	s.Schedule(50, func() {})
	s.Schedule(10, func() {})
	d, ok := s.NextDeadline()
	if !ok || d != 10 {
		t.Fatalf("NextDeadline = (%d, %v), want (10, true)", d, ok)
	}
}
