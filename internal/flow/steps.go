package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rfarias/atendebot/internal/domain"
)

// appKind selects the credential layout sent after issuance. Each app asks
// for the login fields in a different order, so the message mirrors its
// form.
type appKind int

const (
	appGeneric appKind = iota
	appStreamPlayer
	appSmarters
	appXCloud
)

func (e *Engine) dispatch(ctx context.Context, s *domain.SessionRecord, userID, pushName, input, lower string, now time.Time) []Reply {
	switch s.Step {
	case domain.StepMenu, domain.StepMenuRecovery:
		return e.stepMenu(ctx, s, userID, input, now)
	case domain.StepPlans:
		return e.stepPlans(ctx, s, userID, input, now)
	case domain.StepTrialDevice:
		return e.stepTrialDevice(ctx, s, userID, pushName, input, lower, now)
	case domain.StepPhoneOS:
		return e.stepPhoneOS(ctx, s, userID, pushName, input, now)
	case domain.StepTVBrand:
		return e.stepTVBrand(ctx, s, userID, pushName, input, now)
	case domain.StepHowItWorks:
		return e.invalid(s, now, textHowItWorks)
	case domain.StepActivate:
		return e.stepActivate(s, input, now)
	case domain.StepPayment:
		return e.stepPayment(s, input, now)
	case domain.StepPaymentDone:
		s.Advance(domain.StepHuman, now)
		return []Reply{{Text: textHuman}}
	case domain.StepPostTrial:
		return e.stepPostTrial(s, input, now)
	default:
		// Unknown step in a persisted row: restart the flow.
		s.Advance(domain.StepMenu, now)
		return []Reply{{Text: textWelcome}}
	}
}

// invalid counts one invalid answer and re-emits the prompt while the user
// is still under the threshold.
func (e *Engine) invalid(s *domain.SessionRecord, now time.Time, prompt string) []Reply {
	s.InvalidCount++
	s.Touch(now)
	if s.InvalidCount < e.cfg.MaxInvalid {
		return []Reply{{Text: prompt}}
	}
	return nil
}

func (e *Engine) stepMenu(ctx context.Context, s *domain.SessionRecord, userID, input string, now time.Time) []Reply {
	switch input {
	case "1":
		s.Advance(domain.StepPlans, now)
		return []Reply{{Text: textPlansCaption, MediaPath: mediaPriceTable}}
	case "2":
		return e.enterTrialFlow(ctx, s, userID, now)
	case "3":
		s.Advance(domain.StepHowItWorks, now)
		return []Reply{{Text: textHowItWorks}}
	case "4":
		s.Advance(domain.StepActivate, now)
		return []Reply{{Text: textActivateCaption}}
	case "5":
		s.Advance(domain.StepHuman, now)
		return []Reply{{Text: textHuman}}
	default:
		return e.invalid(s, now, textMenuInvalid)
	}
}

func (e *Engine) stepPlans(ctx context.Context, s *domain.SessionRecord, userID, input string, now time.Time) []Reply {
	switch input {
	case "1":
		return e.enterTrialFlow(ctx, s, userID, now)
	case "2":
		s.Advance(domain.StepActivate, now)
		return []Reply{{Text: textActivateCaption}}
	case "3":
		s.Advance(domain.StepHowItWorks, now)
		return []Reply{{Text: textHowItWorks}}
	default:
		return e.invalid(s, now, textPlansCaption)
	}
}

// enterTrialFlow gates the trial funnel on the cooldown before asking which
// device the user has.
func (e *Engine) enterTrialFlow(ctx context.Context, s *domain.SessionRecord, userID string, now time.Time) []Reply {
	decision, err := e.limiter.CanIssue(ctx, userID)
	if err != nil {
		slog.Error("Trial gate check failed", "user_id", userID, "error", err)
		s.Touch(now)
		return []Reply{{Text: textTrialError}}
	}
	if !decision.Allowed {
		s.Touch(now)
		return []Reply{{Text: trialDeniedText(decision.CooldownRemainingDays)}}
	}
	s.Advance(domain.StepTrialDevice, now)
	return []Reply{{Text: textTrialDevice}}
}

func (e *Engine) stepTrialDevice(ctx context.Context, s *domain.SessionRecord, userID, pushName, input, lower string, now time.Time) []Reply {
	switch {
	case input == "1" || strings.Contains(lower, "celular"):
		s.Advance(domain.StepPhoneOS, now)
		return []Reply{{Text: textPhoneOS}}
	case input == "2" || strings.Contains(lower, "tvbox") || strings.Contains(lower, "tv box"):
		intro := []Reply{{Text: textInstructionsStreamPlayer, MediaPath: mediaStreamPlayer}}
		return e.issueTrial(ctx, s, userID, pushName, domain.DeviceTVBox, appStreamPlayer, intro, now)
	case input == "3" || strings.Contains(lower, "smart"):
		s.Advance(domain.StepTVBrand, now)
		return []Reply{{Text: textTVBrand}}
	case input == "4" || strings.Contains(lower, "computador"):
		intro := []Reply{{Text: textInstructionsComputer}}
		return e.issueTrial(ctx, s, userID, pushName, domain.DeviceComputer, appGeneric, intro, now)
	default:
		return e.invalid(s, now, textTrialDeviceInvalid)
	}
}

func (e *Engine) stepPhoneOS(ctx context.Context, s *domain.SessionRecord, userID, pushName, input string, now time.Time) []Reply {
	switch input {
	case "1":
		intro := []Reply{{Text: textInstructionsStreamPlayer, MediaPath: mediaStreamPlayer}}
		return e.issueTrial(ctx, s, userID, pushName, domain.DevicePhone, appStreamPlayer, intro, now)
	case "2":
		intro := []Reply{{Text: textInstructionsSmarters}}
		return e.issueTrial(ctx, s, userID, pushName, domain.DevicePhone, appSmarters, intro, now)
	default:
		return e.invalid(s, now, textPhoneOSInvalid)
	}
}

func (e *Engine) stepTVBrand(ctx context.Context, s *domain.SessionRecord, userID, pushName, input string, now time.Time) []Reply {
	switch input {
	case "1":
		intro := []Reply{{Text: textInstructionsSmartersTV}}
		return e.issueTrial(ctx, s, userID, pushName, domain.DeviceSmartTV, appSmarters, intro, now)
	case "2", "4":
		intro := []Reply{{Text: textInstructionsXCloud}}
		return e.issueTrial(ctx, s, userID, pushName, domain.DeviceSmartTV, appXCloud, intro, now)
	case "3":
		intro := []Reply{{Text: textInstructionsStreamPlayer, MediaPath: mediaStreamPlayer}}
		return e.issueTrial(ctx, s, userID, pushName, domain.DeviceSmartTV, appStreamPlayer, intro, now)
	case "5":
		// Can't tell the platform from here; a human sorts it out.
		s.Advance(domain.StepHuman, now)
		return []Reply{{Text: textUnknownBrand}}
	default:
		return e.invalid(s, now, textTVBrand)
	}
}

// issueTrial re-checks the cooldown, requests credentials from the panel and
// records the issuance. The re-check matters: the gate ran when the funnel
// was entered, possibly minutes ago.
func (e *Engine) issueTrial(ctx context.Context, s *domain.SessionRecord, userID, pushName string, device domain.DeviceKind, app appKind, intro []Reply, now time.Time) []Reply {
	decision, err := e.limiter.CanIssue(ctx, userID)
	if err != nil {
		slog.Error("Trial gate re-check failed", "user_id", userID, "error", err)
		s.Touch(now)
		return []Reply{{Text: textTrialError}}
	}
	if !decision.Allowed {
		s.Touch(now)
		return []Reply{{Text: trialDeniedText(decision.CooldownRemainingDays)}}
	}

	creds, err := e.issuer.Issue(ctx, userID, pushName)
	if err != nil {
		slog.Error("Trial issuance failed", "user_id", userID, "device", device, "error", err)
		e.logEvent(ctx, "ERROR", "trial issuance failed", "trial", userID)
		s.Touch(now)
		return []Reply{{Text: textTrialError}}
	}

	if err := e.limiter.RecordIssuance(ctx, userID, device); err != nil {
		// The credentials are already out; losing the record only risks an
		// extra trial, not a broken conversation.
		slog.Error("Trial record save failed", "user_id", userID, "error", err)
	}
	e.logEvent(ctx, "INFO", "trial issued", "trial", userID)

	s.Advance(domain.StepPostTrial, now)
	replies := append(intro, Reply{Text: credentialText(app, creds.Username, creds.Password)})
	return append(replies, Reply{Text: textPostTrial})
}

func (e *Engine) stepActivate(s *domain.SessionRecord, input string, now time.Time) []Reply {
	var plan domain.Plan
	switch input {
	case "1":
		plan = domain.PlanCinema
	case "2":
		plan = domain.PlanCompleto
	case "3":
		plan = domain.PlanDuo
	default:
		return e.invalid(s, now, textActivateCaption)
	}
	s.SelectedPlan = plan
	s.Advance(domain.StepPayment, now)
	return []Reply{{Text: paymentPromptText(plan)}}
}

func (e *Engine) stepPayment(s *domain.SessionRecord, input string, now time.Time) []Reply {
	// A payment step without a selected plan means the record predates the
	// selection or got clobbered; send the user back to pick one.
	if s.SelectedPlan == 0 {
		s.Advance(domain.StepActivate, now)
		return []Reply{{Text: textActivateCaption}}
	}

	info, ok := planDetails[s.SelectedPlan.String()]
	if !ok {
		s.SelectedPlan = 0
		s.Advance(domain.StepActivate, now)
		return []Reply{{Text: textActivateCaption}}
	}

	switch input {
	case "1":
		s.PaymentMethod = domain.PaymentCard
		s.Advance(domain.StepPaymentDone, now)
		return []Reply{
			{Text: textCardIntro + "\n\n" + info.CardLink},
			{Text: textPaymentDoneFollowup},
		}
	case "2":
		s.PaymentMethod = domain.PaymentPix
		s.Advance(domain.StepPaymentDone, now)
		return []Reply{
			{Text: textPixIntro},
			{Text: pixKey},
			{Text: textPaymentDoneFollowup},
		}
	default:
		return e.invalid(s, now, paymentPromptText(s.SelectedPlan))
	}
}

func (e *Engine) stepPostTrial(s *domain.SessionRecord, input string, now time.Time) []Reply {
	switch input {
	case "1":
		s.Advance(domain.StepActivate, now)
		return []Reply{{Text: textActivateCaption}}
	case "2":
		s.Advance(domain.StepHuman, now)
		return []Reply{{Text: textHuman}}
	default:
		return e.invalid(s, now, textPostTrial)
	}
}

// credentialText renders the login data in the field order of the app the
// user just installed.
func credentialText(app appKind, username, password string) string {
	switch app {
	case appXCloud:
		return "✅ Preencha os 3 campos na ordem abaixo:\n\n" +
			"🛜 *Provedor:* goldplaybr\n" +
			fmt.Sprintf("👤 *Usuário:* %s\n", username) +
			fmt.Sprintf("🔑 *Senha:* %s\n\n", password) +
			textTrialFooter
	case appStreamPlayer:
		return "✅ Preencha os 3 campos na ordem abaixo:\n\n" +
			fmt.Sprintf("👤 *Usuário:* %s\n", username) +
			fmt.Sprintf("🔑 *Senha:* %s\n", password) +
			"🛜 *Servidor:* http://gbbrtk.online\n\n" +
			textTrialFooter
	case appSmarters:
		return "✅ Preencha os 4 campos na ordem abaixo:\n\n" +
			"👤 *Nome:* gold\n" +
			fmt.Sprintf("👤 *Usuário:* %s\n", username) +
			fmt.Sprintf("🔑 *Senha:* %s\n", password) +
			"🛜 *Servidor:* http://gpthzhx.top\n\n" +
			textTrialFooter
	default:
		return "✅ Preencha os seus dados de acesso\n\n" +
			fmt.Sprintf("🔑 *Username:* %s\n", username) +
			fmt.Sprintf("🔒 *Password:* %s\n\n", password) +
			textTrialFooter
	}
}

func trialDeniedText(days int) string {
	unit := "dias"
	if days == 1 {
		unit = "dia"
	}
	return fmt.Sprintf("⚠️ Você já realizou um teste gratuito recentemente. "+
		"Um novo teste estará disponível em %d %s.\n\n0️⃣ Menu inicial", days, unit)
}

func paymentPromptText(plan domain.Plan) string {
	info := planDetails[plan.String()]
	return fmt.Sprintf("Perfeito, o plano escolhido custa apenas %s por mês, "+
		"você deseja efetuar o pagamento via cartão ou pix?\n\n"+
		"1️⃣ Cartão de crédito\n2️⃣ PIX\n\n"+
		"_Obs: No cartão tem taxa da operadora de cerca de 1 real_", info.PriceLabel)
}
