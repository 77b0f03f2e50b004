// Package domain contains core domain types for the atendebot application.
package domain

import (
	"time"
)

// Step identifies the current node of a user's conversation state machine.
// It is a closed enum so a step can never be "assigned into existence" by a
// typo inside a conditional; unknown persisted values parse to StepMenu.
type Step int

const (
	// StepMenu is the root menu shown to a fresh or expired session.
	StepMenu Step = iota
	// StepMenuRecovery is the root menu reached through the "0" command.
	StepMenuRecovery
	// StepPlans is the price-table submenu.
	StepPlans
	// StepTrialDevice asks which device the free trial will run on.
	StepTrialDevice
	// StepPhoneOS asks Android vs iPhone.
	StepPhoneOS
	// StepTVBrand asks the smart-TV brand.
	StepTVBrand
	// StepHowItWorks is the informational dead end; only "0" leaves it.
	StepHowItWorks
	// StepActivate asks which plan to activate.
	StepActivate
	// StepPayment asks card vs PIX for the already-selected plan.
	StepPayment
	// StepPaymentDone follows the payment instructions; only "0" leaves it.
	StepPaymentDone
	// StepPostTrial collects feedback after trial credentials were issued.
	StepPostTrial
	// StepHuman parks the conversation for a human operator. Sink state:
	// only "0" is honored, everything else is absorbed silently.
	StepHuman
)

var stepNames = map[Step]string{
	StepMenu:         "menu",
	StepMenuRecovery: "menuRecovery",
	StepPlans:        "plans",
	StepTrialDevice:  "trialDevice",
	StepPhoneOS:      "phoneOS",
	StepTVBrand:      "tvBrand",
	StepHowItWorks:   "howItWorks",
	StepActivate:     "activate",
	StepPayment:      "payment",
	StepPaymentDone:  "paymentDone",
	StepPostTrial:    "postTrial",
	StepHuman:        "human",
}

// String returns the stable storage name of the step.
func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "menu"
}

// ParseStep maps a stored step name back to its enum value.
// Unknown names fall back to StepMenu so a corrupt row resets the flow
// instead of wedging it.
func ParseStep(name string) Step {
	for step, n := range stepNames {
		if n == name {
			return step
		}
	}
	return StepMenu
}

// Plan is a subscription plan offered during activation.
type Plan int

const (
	// PlanCinema is the movies/series-only plan.
	PlanCinema Plan = iota + 1
	// PlanCompleto is the full channel lineup.
	PlanCompleto
	// PlanDuo is the two-screen plan.
	PlanDuo
)

var planNames = map[Plan]string{
	PlanCinema:   "cinema",
	PlanCompleto: "completo",
	PlanDuo:      "duo",
}

func (p Plan) String() string {
	if name, ok := planNames[p]; ok {
		return name
	}
	return ""
}

// ParsePlan maps a stored plan name to its enum value; false when unknown.
func ParsePlan(name string) (Plan, bool) {
	for plan, n := range planNames {
		if n == name {
			return plan, true
		}
	}
	return 0, false
}

// PaymentMethod is how the user chose to pay.
type PaymentMethod int

const (
	// PaymentCard pays through the card checkout link.
	PaymentCard PaymentMethod = iota + 1
	// PaymentPix pays through the PIX key.
	PaymentPix
)

func (m PaymentMethod) String() string {
	switch m {
	case PaymentCard:
		return "card"
	case PaymentPix:
		return "pix"
	default:
		return ""
	}
}

// ParsePaymentMethod maps a stored method name to its enum value.
func ParsePaymentMethod(name string) (PaymentMethod, bool) {
	switch name {
	case "card":
		return PaymentCard, true
	case "pix":
		return PaymentPix, true
	default:
		return 0, false
	}
}

// SessionRecord holds the conversation state for one user. There is exactly
// one record per user id; it is mutated only by the flow engine.
type SessionRecord struct {
	UserID           string
	Step             Step
	LastActivityAt   time.Time
	InvalidCount     int
	NonNumericStreak int
	SelectedPlan     Plan          // zero when none selected yet
	PaymentMethod    PaymentMethod // zero when none selected yet
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewSessionRecord creates a fresh record parked at the root menu.
func NewSessionRecord(userID string, now time.Time) *SessionRecord {
	return &SessionRecord{
		UserID:         userID,
		Step:           StepMenu,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Expired reports whether the session idled past the timeout.
func (s *SessionRecord) Expired(timeout time.Duration, now time.Time) bool {
	return now.Sub(s.LastActivityAt) > timeout
}

// Advance moves the session to the next step. Every state-advancing
// transition resets both counters; that invariant lives here so no handler
// can forget it.
func (s *SessionRecord) Advance(step Step, now time.Time) {
	s.Step = step
	s.InvalidCount = 0
	s.NonNumericStreak = 0
	s.LastActivityAt = now
	s.UpdatedAt = now
}

// Touch refreshes the activity timestamps without changing the step.
func (s *SessionRecord) Touch(now time.Time) {
	s.LastActivityAt = now
	s.UpdatedAt = now
}
