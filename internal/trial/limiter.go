// Package trial gates and performs free-trial credential issuance.
package trial

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rfarias/atendebot/internal/domain"
	"github.com/rfarias/atendebot/internal/store"
)

// Decision is the outcome of a CanIssue check.
type Decision struct {
	Allowed bool
	// CooldownRemainingDays is the whole days left before the next trial,
	// rounded up. Only meaningful when Allowed is false.
	CooldownRemainingDays int
	// PriorIssuance is the existing record, nil for first-time users.
	PriorIssuance *domain.TrialRecord
}

// Limiter rate-limits trial issuance per user with a cooldown window
// anchored to the most recent issuance.
type Limiter struct {
	repo     store.Repository
	cooldown time.Duration
	now      func() time.Time
}

// NewLimiter creates a limiter backed by the given repository.
func NewLimiter(repo store.Repository, cooldown time.Duration) *Limiter {
	return &Limiter{repo: repo, cooldown: cooldown, now: time.Now}
}

// CanIssue reports whether a trial may be issued for the user right now.
// A user with no record is always allowed.
func (l *Limiter) CanIssue(ctx context.Context, userID string) (Decision, error) {
	record, err := l.repo.GetTrial(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("load trial record: %w", err)
	}
	if record == nil {
		return Decision{Allowed: true}, nil
	}

	now := l.now()
	if record.InCooldown(now) {
		return Decision{
			Allowed:               false,
			CooldownRemainingDays: record.CooldownRemainingDays(now),
			PriorIssuance:         record,
		}, nil
	}
	return Decision{Allowed: true, PriorIssuance: record}, nil
}

// RecordIssuance registers a successful issuance. The cooldown is always
// re-anchored to now, regardless of whether the previous one had elapsed,
// and the issuance counter always increments.
func (l *Limiter) RecordIssuance(ctx context.Context, userID string, device domain.DeviceKind) error {
	record, err := l.repo.GetTrial(ctx, userID)
	if err != nil {
		return fmt.Errorf("load trial record: %w", err)
	}

	now := l.now()
	if record == nil {
		record = &domain.TrialRecord{UserID: userID, CreatedAt: now}
	}
	record.TimesIssued++
	record.LastIssuedAt = now
	record.CooldownUntil = now.Add(l.cooldown)
	record.DeviceKind = device
	record.UpdatedAt = now

	if err := l.repo.UpsertTrial(ctx, record); err != nil {
		return fmt.Errorf("save trial record: %w", err)
	}

	slog.Info("Trial issuance recorded",
		"user_id", userID,
		"device", device,
		"times_issued", record.TimesIssued,
		"cooldown_until", record.CooldownUntil)
	return nil
}
