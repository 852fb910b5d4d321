package remote

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/thermostat/internal/logic"
)

var t0 = time.Date(2026, 1, 1, 7, 0, 0, 0, time.UTC)

func TestReconcilerRateLimit(t *testing.T) {
	r := NewReconciler(DefaultInterval, DefaultEpsilon)

	if !r.Due(t0) {
		t.Fatal("first attempt should be due")
	}
	// 200ms ticks: only every 1.5s is an exchange allowed.
	var due []time.Duration
	for dt := 200 * time.Millisecond; dt <= 4*time.Second; dt += 200 * time.Millisecond {
		if r.Due(t0.Add(dt)) {
			due = append(due, dt)
		}
	}
	want := []time.Duration{1600 * time.Millisecond, 3200 * time.Millisecond}
	if len(due) != len(want) {
		t.Fatalf("due at %v, want %v", due, want)
	}
	for i := range want {
		if due[i] != want[i] {
			t.Errorf("due[%d] = %v, want %v", i, due[i], want[i])
		}
	}
}

func TestReconcilerRelease(t *testing.T) {
	r := NewReconciler(DefaultInterval, DefaultEpsilon)
	r.Due(t0)
	r.Release()
	if !r.Due(t0.Add(200 * time.Millisecond)) {
		t.Error("released slot should be immediately due")
	}
}

func TestBuildReportPrefersFreshConfirmed(t *testing.T) {
	a := logic.ActuatorState{Commanded: logic.StateOn}
	a.Confirm(logic.StateOff, t0)

	r := BuildReport(logic.ReadingOf(18), a, t0.Add(2*time.Second), logic.DefaultFreshness)
	if r.Heater != logic.StateOff {
		t.Errorf("fresh confirmed: got %s, want OFF", r.Heater)
	}

	r = BuildReport(logic.ReadingOf(18), a, t0.Add(6*time.Second), logic.DefaultFreshness)
	if r.Heater != logic.StateOn {
		t.Errorf("stale confirmed: got %s, want commanded ON", r.Heater)
	}
}

func TestReconcilerAdoptsRemoteSetpoint(t *testing.T) {
	r := NewReconciler(DefaultInterval, DefaultEpsilon)
	current := logic.Setpoint{Value: 19, Preset: logic.PresetOn, Enabled: true}

	next, adopted := r.Apply(Result{At: t0, Response: Response{OK: true, Setpoint: Float(21)}}, current)
	if !adopted {
		t.Fatal("expected adoption")
	}
	if next.Value != 21 || next.Preset != logic.PresetRemote {
		t.Errorf("next: %+v", next)
	}

	snap := r.Snapshot()
	if !snap.OK || snap.Setpoint == nil || *snap.Setpoint != 21 || !snap.At.Equal(t0) {
		t.Errorf("snapshot: %+v", snap)
	}
}

func TestReconcilerIgnores(t *testing.T) {
	current := logic.Setpoint{Value: 19, Preset: logic.PresetOn, Enabled: true}
	tests := []struct {
		name string
		res  Result
	}{
		{"network error", Result{Err: errors.New("timeout")}},
		{"not ok", Result{Response: Response{OK: false, Setpoint: Float(25)}, Err: ErrNotOK}},
		{"no setpoint", Result{Response: Response{OK: true}}},
		{"within epsilon", Result{Response: Response{OK: true, Setpoint: Float(19.03)}}},
		{"out of range", Result{Response: Response{OK: true, Setpoint: Float(40)}}},
		{"actual temp only", Result{Response: Response{OK: true, ActualTemp: Float(12)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReconciler(DefaultInterval, DefaultEpsilon)
			next, adopted := r.Apply(tt.res, current)
			if adopted || next != current {
				t.Errorf("expected no change, got %+v adopted=%v", next, adopted)
			}
		})
	}
}

func TestReconcilerCounts(t *testing.T) {
	r := NewReconciler(DefaultInterval, DefaultEpsilon)
	sp := logic.DefaultSetpoint()
	r.Apply(Result{Response: Response{OK: true}}, sp)
	r.Apply(Result{Err: errors.New("refused")}, sp)
	r.Apply(Result{Err: errors.New("refused")}, sp)

	ok, failed := r.Counts()
	if ok != 1 || failed != 2 {
		t.Errorf("counts: ok=%d failed=%d", ok, failed)
	}
	if r.Snapshot().Err != "refused" {
		t.Errorf("snapshot err: %q", r.Snapshot().Err)
	}
}
