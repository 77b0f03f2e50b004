package domain

import (
	"time"
)

// DeviceKind is the device a trial credential was issued for.
type DeviceKind string

// Device kinds mirror the trial device menu.
const (
	DevicePhone    DeviceKind = "phone"
	DeviceTVBox    DeviceKind = "tvbox"
	DeviceSmartTV  DeviceKind = "smarttv"
	DeviceComputer DeviceKind = "computer"
)

// TrialRecord tracks free-trial credential issuance for one user.
// CooldownUntil is always derived from LastIssuedAt at issuance time and
// only ever compared against the clock on reads.
type TrialRecord struct {
	UserID       string
	TimesIssued  int
	LastIssuedAt time.Time
	CooldownUntil time.Time
	DeviceKind   DeviceKind
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InCooldown reports whether issuance is still blocked at the given instant.
// The boundary is inclusive: at exactly CooldownUntil issuance is allowed.
func (t *TrialRecord) InCooldown(now time.Time) bool {
	return now.Before(t.CooldownUntil)
}

// CooldownRemainingDays returns the whole days left in the cooldown,
// rounded up. Zero when the cooldown has elapsed.
func (t *TrialRecord) CooldownRemainingDays(now time.Time) int {
	remaining := t.CooldownUntil.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// ReferralRecord counts referrals credited to one user.
type ReferralRecord struct {
	UserID    string
	Name      string
	Count     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LogEntry is one append-only operational log row.
type LogEntry struct {
	ID      int64
	Level   string
	Message string
	Origin  string
	UserID  string
	At      time.Time
}
