// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/rfarias/atendebot/internal/domain"
)

// Repository defines the interface for persisting conversation state,
// trial issuance records, referrals and the operational log.
type Repository interface {
	// GetSession retrieves the session record for a user, nil when absent.
	GetSession(ctx context.Context, userID string) (*domain.SessionRecord, error)

	// UpsertSession creates or updates a session record.
	UpsertSession(ctx context.Context, session *domain.SessionRecord) error

	// ListSessions returns every stored session record.
	ListSessions(ctx context.Context) ([]*domain.SessionRecord, error)

	// ClearSessions deletes all session records and returns how many went.
	ClearSessions(ctx context.Context) (int64, error)

	// GetTrial retrieves the trial record for a user, nil when absent.
	GetTrial(ctx context.Context, userID string) (*domain.TrialRecord, error)

	// UpsertTrial creates or updates a trial record.
	UpsertTrial(ctx context.Context, trial *domain.TrialRecord) error

	// ListTrials returns every trial record, most recently issued first.
	ListTrials(ctx context.Context) ([]*domain.TrialRecord, error)

	// GetReferral retrieves the referral record for a user, nil when absent.
	GetReferral(ctx context.Context, userID string) (*domain.ReferralRecord, error)

	// UpsertReferral creates or updates a referral record.
	UpsertReferral(ctx context.Context, ref *domain.ReferralRecord) error

	// ListReferrals returns every referral record, highest count first.
	ListReferrals(ctx context.Context) ([]*domain.ReferralRecord, error)

	// AppendLog inserts one append-only operational log row. Failures must
	// never interrupt message handling; callers log and move on.
	AppendLog(ctx context.Context, entry *domain.LogEntry) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
