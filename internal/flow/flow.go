// Package flow implements the per-user conversation state machine.
package flow

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rfarias/atendebot/internal/domain"
	"github.com/rfarias/atendebot/internal/shared"
	"github.com/rfarias/atendebot/internal/store"
	"github.com/rfarias/atendebot/internal/supervisor"
	"github.com/rfarias/atendebot/internal/trial"
)

// Reply is one outbound message. When MediaPath is set the text rides
// along as the image caption.
type Reply struct {
	Text      string
	MediaPath string
}

// FixturesSource answers today's-fixtures questions.
type FixturesSource interface {
	TodayText(ctx context.Context) (string, error)
}

// TrialGate rate-limits trial issuance.
type TrialGate interface {
	CanIssue(ctx context.Context, userID string) (trial.Decision, error)
	RecordIssuance(ctx context.Context, userID string, device domain.DeviceKind) error
}

// Config carries the engine tunables.
type Config struct {
	SessionTimeout time.Duration
	MaxInvalid     int
	NonNumericCap  int
	AdminJID       string
	MediaDir       string
}

// Engine maps (session record, inbound text) to replies and side effects.
// Session records are held in memory and written through to the store; a
// failing store degrades to memory-only until the next flush.
type Engine struct {
	repo     store.Repository
	limiter  TrialGate
	issuer   trial.Issuer
	fixtures FixturesSource
	state    *supervisor.ProcessState

	cfg Config
	now func() time.Time

	// requestRestart asks the supervisor for a soft restart (admin command).
	requestRestart func()

	mu                sync.Mutex
	sessions          map[string]*domain.SessionRecord
	dirty             map[string]bool
	pendingClearUntil time.Time
}

// NewEngine wires the conversation engine.
func NewEngine(repo store.Repository, limiter TrialGate, issuer trial.Issuer, fixtures FixturesSource, state *supervisor.ProcessState, cfg Config, requestRestart func()) *Engine {
	if cfg.MaxInvalid <= 0 {
		cfg.MaxInvalid = 3
	}
	if cfg.NonNumericCap <= 0 {
		cfg.NonNumericCap = 3
	}
	if requestRestart == nil {
		requestRestart = func() {}
	}
	return &Engine{
		repo:           repo,
		limiter:        limiter,
		issuer:         issuer,
		fixtures:       fixtures,
		state:          state,
		cfg:            cfg,
		now:            time.Now,
		requestRestart: requestRestart,
		sessions:       make(map[string]*domain.SessionRecord),
		dirty:          make(map[string]bool),
	}
}

var numericRe = regexp.MustCompile(`^\d+$`)

// Preload restores all persisted session records into memory so in-flight
// conversations survive a process restart.
func (e *Engine) Preload(ctx context.Context) error {
	records, err := e.repo.ListSessions(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range records {
		e.sessions[s.UserID] = s
	}
	slog.Info("Sessions preloaded", "count", len(records))
	return nil
}

// Handle processes one inbound message and returns the replies to send.
// The session record is read once at entry and written once at exit.
// Digit options compare against the raw message body: "1" is an answer,
// " 1 " and "01" are not. Only keyword matching gets trimmed and lowered.
func (e *Engine) Handle(ctx context.Context, userID, pushName, text string) []Reply {
	input := text
	lower := strings.ToLower(strings.TrimSpace(text))
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.AdminJID != "" && userID == e.cfg.AdminJID {
		if replies, handled := e.handleAdmin(ctx, input, lower, now); handled {
			return replies
		}
	}

	s := e.loadSession(ctx, userID)

	// A missing or idle-expired record overrides any in-flight step.
	if s == nil || s.Expired(e.cfg.SessionTimeout, now) {
		s = domain.NewSessionRecord(userID, now)
		e.sessions[userID] = s
		e.save(ctx, s)
		return []Reply{{Text: textWelcome}}
	}

	// Universal intercepts, fixed priority. None of these touch the
	// invalid counter.
	switch {
	case lower == "/ajuda" || strings.HasPrefix(lower, "/ajuda "):
		return []Reply{{Text: textHelp}}
	case lower == "/jogos" || looksLikeFixturesQuestion(lower):
		return e.fixturesReply(ctx)
	case isThanks(lower):
		return []Reply{{Text: textThanksReply}}
	case isGreeting(lower):
		return []Reply{{Text: textGreetingReply}}
	case input == "0" || lower == "/menu":
		s.Advance(domain.StepMenuRecovery, now)
		e.save(ctx, s)
		return []Reply{{Text: textMenuAgain}}
	}

	// The human state is a sink: a real operator reads the raw chat, the
	// robot stays out of the way.
	if s.Step == domain.StepHuman {
		s.Touch(now)
		e.save(ctx, s)
		return nil
	}

	var prefix []Reply
	if e.state != nil && e.state.ShouldSendAwayNotice(userID) {
		prefix = append(prefix, Reply{Text: textAwayNotice})
	}

	// Circuit breaker for users who chat instead of picking numbers.
	if !numericRe.MatchString(input) {
		if len([]rune(input)) > 2 {
			s.NonNumericStreak++
			if s.NonNumericStreak >= e.cfg.NonNumericCap {
				s.Advance(domain.StepHuman, now)
				e.save(ctx, s)
				e.logEvent(ctx, "WARN", "non-numeric streak handoff", "flow", userID)
				return append(prefix, Reply{Text: textHandoffEscalated})
			}
		}
	} else {
		s.NonNumericStreak = 0
	}

	// Too many invalid answers: stay silent until a command or "0".
	if s.InvalidCount >= e.cfg.MaxInvalid {
		s.Touch(now)
		e.save(ctx, s)
		return prefix
	}

	replies := e.dispatch(ctx, s, userID, pushName, input, lower, now)
	e.save(ctx, s)
	return append(prefix, replies...)
}

// HumanParked counts sessions currently parked for a human operator. The
// supervisor uses it to widen the unanswered-message allowance.
func (e *Engine) HumanParked() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, s := range e.sessions {
		if s.Step == domain.StepHuman {
			n++
		}
	}
	return n
}

// FlushAll persists every in-memory session, continuing past individual
// failures. Returns how many records failed.
func (e *Engine) FlushAll(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	failed := 0
	for _, s := range e.sessions {
		if err := e.repo.UpsertSession(ctx, s); err != nil {
			failed++
			e.dirty[s.UserID] = true
			slog.Warn("Session flush failed", "user_id", s.UserID, "error", err)
			continue
		}
		delete(e.dirty, s.UserID)
	}
	if failed > 0 {
		slog.Warn("Session flush completed with failures", "failed", failed, "total", len(e.sessions))
	}
	return failed
}

// ClearSessions drops every session record, in memory and in the store.
func (e *Engine) ClearSessions(ctx context.Context) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions = make(map[string]*domain.SessionRecord)
	e.dirty = make(map[string]bool)
	return e.repo.ClearSessions(ctx)
}

// loadSession returns the in-memory record, falling back to the store.
// Store failures degrade to memory-only.
func (e *Engine) loadSession(ctx context.Context, userID string) *domain.SessionRecord {
	if s, ok := e.sessions[userID]; ok {
		return s
	}
	s, err := e.repo.GetSession(ctx, userID)
	if err != nil {
		slog.Warn("Session load failed, degrading to memory", "user_id", userID, "error", err)
		return nil
	}
	if s != nil {
		e.sessions[userID] = s
	}
	return s
}

// save writes the record through to the store, marking it dirty for the
// periodic flush when the write fails. Conflicts are not retried inline:
// e.mu is held here, so a backoff would stall every conversation.
func (e *Engine) save(ctx context.Context, s *domain.SessionRecord) {
	e.sessions[s.UserID] = s

	err := e.repo.UpsertSession(ctx, s)
	if err == nil {
		delete(e.dirty, s.UserID)
		return
	}
	e.dirty[s.UserID] = true
	if shared.IsSQLiteConflictError(err) {
		slog.Debug("Session write conflicted, deferred to flush", "user_id", s.UserID)
		return
	}
	slog.Warn("Session persist failed, keeping in memory", "user_id", s.UserID, "error", err)
}

func (e *Engine) fixturesReply(ctx context.Context) []Reply {
	if e.fixtures == nil {
		return []Reply{{Text: textFixturesEmpty}}
	}
	text, err := e.fixtures.TodayText(ctx)
	if err != nil {
		slog.Warn("Fixtures lookup failed", "error", err)
		return []Reply{{Text: textFixturesEmpty}}
	}
	return []Reply{{Text: text}}
}

// logEvent appends to the store's operational log, best effort.
func (e *Engine) logEvent(ctx context.Context, level, message, origin, userID string) {
	entry := &domain.LogEntry{Level: level, Message: message, Origin: origin, UserID: userID, At: e.now()}
	if err := e.repo.AppendLog(ctx, entry); err != nil {
		slog.Debug("Event log append failed", "error", err)
	}
}

func isThanks(lower string) bool {
	for _, kw := range []string{"obrigado", "obrigada", "vlw", "valeu"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isGreeting(lower string) bool {
	switch lower {
	case "oi", "olá", "ola", "bom dia", "boa tarde", "boa noite", "eai", "e ai", "opa":
		return true
	}
	return false
}

// looksLikeFixturesQuestion matches the natural phrasings people use to ask
// where today's matches are showing.
func looksLikeFixturesQuestion(lower string) bool {
	if strings.Contains(lower, "onde") && strings.Contains(lower, "vai") && strings.Contains(lower, "passar") {
		return true
	}
	if strings.Contains(lower, "jogo") && strings.Contains(lower, "assistir") {
		return true
	}
	return false
}
