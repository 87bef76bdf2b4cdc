package ntpcheck

import (
	"testing"
	"time"
)

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseUnchecked, "unchecked"},
		{PhaseHealthy, "healthy"},
		{PhaseDrifting, "drifting"},
		{PhaseError, "error"},
		{Phase(0), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}

func TestCheckerStartsUnchecked(t *testing.T) {
	c := NewChecker()
	if got := c.Status().Phase; got != PhaseUnchecked {
		t.Errorf("initial phase = %v, want unchecked", got)
	}
}

func TestCheckerUsesCheckFunc(t *testing.T) {
	c := NewChecker(WithPool("ntp.example.org"), WithInterval(time.Hour))
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.CheckFunc = func() Status {
		return Status{Offset: 42 * time.Millisecond, Phase: PhaseHealthy, CheckedAt: at}
	}

	c.check()

	got := c.Status()
	if got.Phase != PhaseHealthy {
		t.Errorf("phase = %v, want healthy", got.Phase)
	}
	if got.Offset != 42*time.Millisecond {
		t.Errorf("offset = %v, want 42ms", got.Offset)
	}
	if !got.CheckedAt.Equal(at) {
		t.Errorf("checked at %v, want %v", got.CheckedAt, at)
	}
}
