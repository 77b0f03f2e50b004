package trial

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rfarias/atendebot/internal/domain"
)

// fakeRepo implements the trial slice of store.Repository in memory.
type fakeRepo struct {
	trials  map[string]*domain.TrialRecord
	getErr  error
	saveErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{trials: make(map[string]*domain.TrialRecord)}
}

func (f *fakeRepo) GetTrial(_ context.Context, userID string) (*domain.TrialRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if t, ok := f.trials[userID]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeRepo) UpsertTrial(_ context.Context, t *domain.TrialRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := *t
	f.trials[t.UserID] = &cp
	return nil
}

func (f *fakeRepo) GetSession(context.Context, string) (*domain.SessionRecord, error) { return nil, nil }
func (f *fakeRepo) UpsertSession(context.Context, *domain.SessionRecord) error        { return nil }
func (f *fakeRepo) ListSessions(context.Context) ([]*domain.SessionRecord, error)     { return nil, nil }
func (f *fakeRepo) ClearSessions(context.Context) (int64, error)                      { return 0, nil }
func (f *fakeRepo) ListTrials(context.Context) ([]*domain.TrialRecord, error)         { return nil, nil }
func (f *fakeRepo) GetReferral(context.Context, string) (*domain.ReferralRecord, error) {
	return nil, nil
}
func (f *fakeRepo) UpsertReferral(context.Context, *domain.ReferralRecord) error  { return nil }
func (f *fakeRepo) ListReferrals(context.Context) ([]*domain.ReferralRecord, error) { return nil, nil }
func (f *fakeRepo) AppendLog(context.Context, *domain.LogEntry) error             { return nil }
func (f *fakeRepo) Ping(context.Context) error                                    { return nil }
func (f *fakeRepo) Close() error                                                  { return nil }

func TestCanIssueFirstTimeUser(t *testing.T) {
	limiter := NewLimiter(newFakeRepo(), 30*24*time.Hour)

	dec, err := limiter.CanIssue(context.Background(), "user1")
	if err != nil {
		t.Fatalf("CanIssue: %v", err)
	}
	if !dec.Allowed {
		t.Error("first-time user denied, want allowed")
	}
	if dec.PriorIssuance != nil {
		t.Error("first-time user has PriorIssuance, want nil")
	}
}

func TestCanIssueDuringCooldown(t *testing.T) {
	repo := newFakeRepo()
	limiter := NewLimiter(repo, 30*24*time.Hour)

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.trials["user1"] = &domain.TrialRecord{
		UserID:        "user1",
		TimesIssued:   1,
		LastIssuedAt:  issued,
		CooldownUntil: issued.Add(30 * 24 * time.Hour),
	}

	// Day 29: denied with one day remaining.
	limiter.now = func() time.Time { return issued.Add(29 * 24 * time.Hour) }
	dec, err := limiter.CanIssue(context.Background(), "user1")
	if err != nil {
		t.Fatalf("CanIssue: %v", err)
	}
	if dec.Allowed {
		t.Error("day 29: allowed, want denied")
	}
	if dec.CooldownRemainingDays != 1 {
		t.Errorf("day 29: remaining days = %d, want 1", dec.CooldownRemainingDays)
	}

	// Day 30: cooldown elapsed.
	limiter.now = func() time.Time { return issued.Add(30 * 24 * time.Hour) }
	dec, err = limiter.CanIssue(context.Background(), "user1")
	if err != nil {
		t.Fatalf("CanIssue: %v", err)
	}
	if !dec.Allowed {
		t.Error("day 30: denied, want allowed")
	}
	if dec.PriorIssuance == nil {
		t.Error("day 30: PriorIssuance nil, want previous record")
	}
}

func TestRecordIssuanceReanchorsCooldown(t *testing.T) {
	repo := newFakeRepo()
	limiter := NewLimiter(repo, 30*24*time.Hour)

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return first }
	if err := limiter.RecordIssuance(context.Background(), "user1", domain.DevicePhone); err != nil {
		t.Fatalf("RecordIssuance: %v", err)
	}

	// Second issuance 40 days later re-anchors from that moment, not from
	// the first issuance.
	second := first.Add(40 * 24 * time.Hour)
	limiter.now = func() time.Time { return second }
	if err := limiter.RecordIssuance(context.Background(), "user1", domain.DeviceTVBox); err != nil {
		t.Fatalf("RecordIssuance: %v", err)
	}

	rec := repo.trials["user1"]
	if rec.TimesIssued != 2 {
		t.Errorf("TimesIssued = %d, want 2", rec.TimesIssued)
	}
	if !rec.CooldownUntil.Equal(second.Add(30 * 24 * time.Hour)) {
		t.Errorf("CooldownUntil = %v, want %v", rec.CooldownUntil, second.Add(30*24*time.Hour))
	}
	if rec.DeviceKind != domain.DeviceTVBox {
		t.Errorf("DeviceKind = %q, want tvbox", rec.DeviceKind)
	}
}

func TestCanIssuePropagatesStoreError(t *testing.T) {
	repo := newFakeRepo()
	repo.getErr = errors.New("disk on fire")
	limiter := NewLimiter(repo, 30*24*time.Hour)

	if _, err := limiter.CanIssue(context.Background(), "user1"); err == nil {
		t.Error("CanIssue with failing store: want error")
	}
}
