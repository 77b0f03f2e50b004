package domain

import (
	"testing"
	"time"
)

func TestStepRoundTrip(t *testing.T) {
	for step, name := range stepNames {
		if got := ParseStep(name); got != step {
			t.Errorf("ParseStep(%q) = %v, want %v", name, got, step)
		}
		if got := step.String(); got != name {
			t.Errorf("%v.String() = %q, want %q", step, got, name)
		}
	}
}

func TestParseStepUnknownFallsBackToMenu(t *testing.T) {
	for _, name := range []string{"", "bogus", "cinema"} {
		if got := ParseStep(name); got != StepMenu {
			t.Errorf("ParseStep(%q) = %v, want StepMenu", name, got)
		}
	}
}

func TestAdvanceResetsCounters(t *testing.T) {
	now := time.Now()
	s := NewSessionRecord("user1", now)
	s.InvalidCount = 2
	s.NonNumericStreak = 2

	s.Advance(StepPlans, now)

	if s.Step != StepPlans {
		t.Errorf("Step = %v, want StepPlans", s.Step)
	}
	if s.InvalidCount != 0 {
		t.Errorf("InvalidCount = %d, want 0", s.InvalidCount)
	}
	if s.NonNumericStreak != 0 {
		t.Errorf("NonNumericStreak = %d, want 0", s.NonNumericStreak)
	}
}

func TestAdvanceKeepsSelectedPlan(t *testing.T) {
	now := time.Now()
	s := NewSessionRecord("user1", now)
	s.SelectedPlan = PlanDuo

	s.Advance(StepPayment, now)

	if s.SelectedPlan != PlanDuo {
		t.Errorf("SelectedPlan = %v, want PlanDuo", s.SelectedPlan)
	}
}

func TestExpired(t *testing.T) {
	start := time.Now()
	s := NewSessionRecord("user1", start)
	timeout := 12 * time.Hour

	if s.Expired(timeout, start.Add(timeout)) {
		t.Error("session expired at exactly the timeout, want not expired")
	}
	if !s.Expired(timeout, start.Add(timeout+time.Second)) {
		t.Error("session not expired past the timeout")
	}
}

func TestTrialCooldownBoundary(t *testing.T) {
	issued := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	rec := &TrialRecord{
		UserID:        "user1",
		LastIssuedAt:  issued,
		CooldownUntil: issued.Add(30 * 24 * time.Hour),
	}

	if !rec.InCooldown(issued.Add(29 * 24 * time.Hour)) {
		t.Error("day 29: want in cooldown")
	}
	// The boundary is inclusive on the allow side.
	if rec.InCooldown(rec.CooldownUntil) {
		t.Error("at exactly CooldownUntil: want allowed")
	}
}

func TestCooldownRemainingDaysRoundsUp(t *testing.T) {
	issued := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	rec := &TrialRecord{CooldownUntil: issued.Add(30 * 24 * time.Hour)}

	cases := []struct {
		at   time.Time
		want int
	}{
		{issued, 30},
		{issued.Add(29 * 24 * time.Hour), 1},
		{issued.Add(29*24*time.Hour + time.Minute), 1},
		{issued.Add(30 * 24 * time.Hour), 0},
		{issued.Add(31 * 24 * time.Hour), 0},
	}
	for _, tc := range cases {
		if got := rec.CooldownRemainingDays(tc.at); got != tc.want {
			t.Errorf("CooldownRemainingDays(%v) = %d, want %d", tc.at, got, tc.want)
		}
	}
}
