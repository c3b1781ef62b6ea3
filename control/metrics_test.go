package control

import "testing"

func TestIncrCreatesAndAccumulatesCounter(t *testing.T) {
	m := NewMetricsRegistry()
	m.Incr("stats_remcasts", 3)
	m.Incr("stats_remcasts", 2)

	snap := m.GetSnapshot()
	if snap["stats_remcasts"] != int64(5) {
		t.Fatalf("stats_remcasts = %v, want 5", snap["stats_remcasts"])
	}
}

func TestSetOverwritesValue(t *testing.T) {
	m := NewMetricsRegistry()
	m.Set("memb_state", "gather")
	m.Set("memb_state", "operational")

	snap := m.GetSnapshot()
	if snap["memb_state"] != "operational" {
		t.Fatalf("memb_state = %v, want operational", snap["memb_state"])
	}
}

func TestGetSnapshotIsACopy(t *testing.T) {
	m := NewMetricsRegistry()
	m.Incr("stats_orf_token_loss", 1)

	snap := m.GetSnapshot()
	snap["stats_orf_token_loss"] = int64(999)

	fresh := m.GetSnapshot()
	if fresh["stats_orf_token_loss"] != int64(1) {
		t.Fatalf("registry mutated via snapshot: got %v", fresh["stats_orf_token_loss"])
	}
}
