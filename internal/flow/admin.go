package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/rfarias/atendebot/internal/domain"
)

// Window in which a /limpar must be confirmed before it is discarded.
const clearConfirmWindow = 30 * time.Second

// handleAdmin runs operator commands for the configured admin JID. Returns
// handled=false for anything that is not a command, so the admin can still
// walk the normal flow from their own phone.
func (e *Engine) handleAdmin(ctx context.Context, input, lower string, now time.Time) ([]Reply, bool) {
	fields := strings.Fields(lower)
	if len(fields) == 0 {
		return nil, false
	}

	switch fields[0] {
	case "/stats":
		return e.adminStats(ctx), true

	case "/ajustar":
		return e.adminAdjust(ctx, strings.Fields(input), now), true

	case "/reiniciar":
		e.logEvent(ctx, "WARN", "manual restart requested", "admin", e.cfg.AdminJID)
		// Fired from a goroutine so the supervisor can tear the transport
		// down without deadlocking on the message still being handled.
		go e.requestRestart()
		return []Reply{{Text: "🔄 Reinício solicitado."}}, true

	case "/limpar":
		e.pendingClearUntil = now.Add(clearConfirmWindow)
		return []Reply{{Text: "⚠️ Isso apaga TODAS as sessões. Responda CONFIRMAR em 30 segundos para prosseguir."}}, true

	case "confirmar":
		// Only the literal all-caps token confirms; anything else falls
		// through to the normal flow.
		if input != "CONFIRMAR" || now.After(e.pendingClearUntil) {
			return nil, false
		}
		e.pendingClearUntil = time.Time{}
		return e.adminClear(ctx), true

	case "/indicou":
		return e.adminReferral(ctx, strings.Fields(input), now), true

	case "/ausente":
		if e.state != nil {
			e.state.SetAwayMode(true)
		}
		e.logEvent(ctx, "INFO", "away mode enabled", "admin", e.cfg.AdminJID)
		return []Reply{{Text: "Modo ausente ativado."}}, true

	case "/ativo":
		if e.state != nil {
			e.state.SetAwayMode(false)
		}
		e.logEvent(ctx, "INFO", "away mode disabled", "admin", e.cfg.AdminJID)
		return []Reply{{Text: "Modo ausente desativado."}}, true
	}

	return nil, false
}

func (e *Engine) adminStats(ctx context.Context) []Reply {
	var b strings.Builder
	b.WriteString("📊 *Estatísticas*\n")

	trials, err := e.repo.ListTrials(ctx)
	if err != nil {
		slog.Error("Stats trial listing failed", "error", err)
		b.WriteString("\nTestes: erro ao consultar\n")
	} else {
		fmt.Fprintf(&b, "\nTestes emitidos: %d usuários\n", len(trials))
		for _, t := range trials {
			fmt.Fprintf(&b, "• %s — %dx, último em %s\n",
				t.UserID, t.TimesIssued, t.LastIssuedAt.Format("02/01/2006"))
		}
	}

	referrals, err := e.repo.ListReferrals(ctx)
	if err != nil {
		slog.Error("Stats referral listing failed", "error", err)
		b.WriteString("\nIndicações: erro ao consultar\n")
	} else {
		fmt.Fprintf(&b, "\nIndicações: %d usuários\n", len(referrals))
		for _, r := range referrals {
			fmt.Fprintf(&b, "• %s (%s): %d\n", r.Name, r.UserID, r.Count)
		}
	}

	fmt.Fprintf(&b, "\nSessões em memória: %d", len(e.sessions))
	return []Reply{{Text: b.String()}}
}

// adminAdjust rewrites a user's trial counter: /ajustar <user> <n>.
// n == 0 clears the record entirely, lifting the cooldown.
func (e *Engine) adminAdjust(ctx context.Context, fields []string, now time.Time) []Reply {
	if len(fields) != 3 {
		return []Reply{{Text: "Uso: /ajustar <usuário> <quantidade>"}}
	}
	userID := fields[1]
	n, err := strconv.Atoi(fields[2])
	if err != nil || n < 0 {
		return []Reply{{Text: "Quantidade inválida. Uso: /ajustar <usuário> <quantidade>"}}
	}

	record, err := e.repo.GetTrial(ctx, userID)
	if err != nil {
		slog.Error("Trial adjust lookup failed", "user_id", userID, "error", err)
		return []Reply{{Text: "⚠️ Erro ao consultar o registro de teste."}}
	}
	if record == nil {
		return []Reply{{Text: fmt.Sprintf("Usuário %s não tem registro de teste.", userID)}}
	}

	if n == 0 {
		record.TimesIssued = 0
		record.CooldownUntil = time.Time{}
	} else {
		record.TimesIssued = n
	}
	record.UpdatedAt = now
	if err := e.repo.UpsertTrial(ctx, record); err != nil {
		slog.Error("Trial adjust save failed", "user_id", userID, "error", err)
		return []Reply{{Text: "⚠️ Erro ao salvar o ajuste."}}
	}

	e.logEvent(ctx, "WARN", fmt.Sprintf("trial counter adjusted to %d for %s", n, userID), "admin", e.cfg.AdminJID)
	return []Reply{{Text: fmt.Sprintf("✅ Registro de %s ajustado para %d.", userID, n)}}
}

// adminReferral credits one referral: /indicou <user> <nome>.
func (e *Engine) adminReferral(ctx context.Context, fields []string, now time.Time) []Reply {
	if len(fields) < 3 {
		return []Reply{{Text: "Uso: /indicou <usuário> <nome>"}}
	}
	userID := fields[1]
	name := strings.Join(fields[2:], " ")

	record, err := e.repo.GetReferral(ctx, userID)
	if err != nil {
		slog.Error("Referral lookup failed", "user_id", userID, "error", err)
		return []Reply{{Text: "⚠️ Erro ao consultar indicações."}}
	}
	if record == nil {
		record = &domain.ReferralRecord{UserID: userID, CreatedAt: now}
	}
	record.Name = name
	record.Count++
	record.UpdatedAt = now

	if err := e.repo.UpsertReferral(ctx, record); err != nil {
		slog.Error("Referral save failed", "user_id", userID, "error", err)
		return []Reply{{Text: "⚠️ Erro ao salvar a indicação."}}
	}
	return []Reply{{Text: fmt.Sprintf("✅ Indicação registrada: %s agora tem %d.", name, record.Count)}}
}

// adminClear drops every session record. Caller already holds e.mu, so the
// maps are reset inline instead of going through ClearSessions.
func (e *Engine) adminClear(ctx context.Context) []Reply {
	e.sessions = make(map[string]*domain.SessionRecord)
	e.dirty = make(map[string]bool)

	n, err := e.repo.ClearSessions(ctx)
	if err != nil {
		slog.Error("Session clear failed", "error", err)
		return []Reply{{Text: "⚠️ Sessões em memória limpas, mas o banco retornou erro."}}
	}
	e.logEvent(ctx, "WARN", fmt.Sprintf("all sessions cleared (%d rows)", n), "admin", e.cfg.AdminJID)
	return []Reply{{Text: fmt.Sprintf("✅ Sessões limpas (%d registros).", n)}}
}
