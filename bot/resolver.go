package bot

import (
	"context"

	"github.com/casewatch/casebot/bot/action"
	"github.com/casewatch/casebot/core/logger"
	"github.com/casewatch/casebot/core/telegram/keyboard"
	"github.com/casewatch/casebot/domain"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Page is the message an inline keyboard lives on. The resolver drives it
// without knowing about the transport.
type Page interface {
	// Ack answers the button press so the client stops its spinner.
	Ack() error
	Edit(text string, markup *tele.ReplyMarkup) error
	Delete() error
	ChatID() int64
	MessageID() int
	UserID() int64
}

// DistrictReporter delivers a full district report into a chat.
type DistrictReporter interface {
	SendDistrictReport(ctx context.Context, chatID int64, districtID int) error
}

// Resolver interprets callback tokens against per-message state. Every press
// is acknowledged exactly once; presses on retired messages do nothing else.
type Resolver struct {
	svc        domain.Service
	reports    DistrictReporter
	suppressed *SuppressedSet
	feedback   *FeedbackCache
}

// NewResolver wires a resolver with fresh per-message state.
func NewResolver(svc domain.Service, reports DistrictReporter) *Resolver {
	return &Resolver{
		svc:        svc,
		reports:    reports,
		suppressed: NewSuppressedSet(),
		feedback:   NewFeedbackCache(),
	}
}

// Feedback exposes the pending-feedback cache to the text handler.
func (r *Resolver) Feedback() *FeedbackCache { return r.feedback }

// Resolve handles one button press carrying the given callback data.
func (r *Resolver) Resolve(ctx context.Context, p Page, data string) error {
	_ = p.Ack()

	if r.suppressed.Contains(p.ChatID(), p.MessageID()) {
		logger.Debug(ctx, "tg", "callback.suppressed",
			slog.String("status", "skip"),
			slog.Int("message_id", p.MessageID()),
		)
		return nil
	}

	tok := action.Decode(data)
	userID := p.UserID()

	switch tok.Verb {
	case action.Subscribe:
		msg := r.svc.Subscribe(ctx, userID, tok.District)
		return p.Edit(msg, r.actionMarkup(ctx, userID, tok.District))

	case action.Unsubscribe:
		msg := r.svc.Unsubscribe(ctx, userID, tok.District)
		return p.Edit(msg, r.actionMarkup(ctx, userID, tok.District))

	case action.ChooseAction:
		text, actions := r.svc.PossibleActions(ctx, userID, tok.District)
		return p.Edit(text, ActionMarkup(actions, tok.District))

	case action.Report:
		err := r.reports.SendDistrictReport(ctx, p.ChatID(), tok.District)
		// The keyboard is spent even when delivery failed: a retry loop
		// on a stale message would double-send once the API recovers.
		r.suppressed.Add(p.ChatID(), p.MessageID())
		_ = p.Delete()
		return err

	case action.DeleteMe:
		msg, removed := r.svc.DeleteUser(ctx, userID)
		r.suppressed.Add(p.ChatID(), p.MessageID())
		logger.Info(ctx, "tg", "user.deleted",
			slog.String("status", "ok"),
			slog.Bool("removed", removed),
		)
		return p.Edit(msg, nil)

	case action.ConfirmFeedback:
		text, ok := r.feedback.Take(p.ChatID())
		if !ok {
			// The prompt outlived its pending text.
			return p.Edit(r.svc.ErrorMessage(ctx), nil)
		}
		if err := r.svc.AddFeedback(ctx, userID, text); err != nil {
			return err
		}
		return p.Edit(msgFeedbackThanks, nil)

	case action.Discard:
		r.feedback.Discard(p.ChatID())
		r.suppressed.Add(p.ChatID(), p.MessageID())
		_ = p.Delete()
		return nil

	default:
		logger.Warn(ctx, "tg", "callback.unrecognized",
			slog.String("status", "skip"),
			slog.String("cb_key", logger.SanitizeLimit(data, 128)),
		)
		return p.Edit(r.svc.UnknownAction(ctx), nil)
	}
}

func (r *Resolver) actionMarkup(ctx context.Context, userID int64, districtID int) *tele.ReplyMarkup {
	_, actions := r.svc.PossibleActions(ctx, userID, districtID)
	return ActionMarkup(actions, districtID)
}

// ActionMarkup renders the operations valid for a district as inline buttons.
func ActionMarkup(actions []domain.Action, districtID int) *tele.ReplyMarkup {
	if len(actions) == 0 {
		return nil
	}
	btns := make([]keyboard.InlineBtn, 0, len(actions))
	for _, a := range actions {
		var verb action.Verb
		switch a.Kind {
		case domain.ActionReport:
			verb = action.Report
		case domain.ActionSubscribe:
			verb = action.Subscribe
		case domain.ActionUnsubscribe:
			verb = action.Unsubscribe
		default:
			continue
		}
		btns = append(btns, keyboard.InlineBtn{
			Text: a.Label,
			Data: action.EncodeDistrict(verb, districtID),
		})
	}
	return keyboard.InlineButtons(btns)
}

// DistrictMarkup renders district candidates as one choose-action button each.
func DistrictMarkup(districts []domain.District) *tele.ReplyMarkup {
	if len(districts) == 0 {
		return nil
	}
	btns := make([]keyboard.InlineBtn, 0, len(districts))
	for _, d := range districts {
		btns = append(btns, keyboard.InlineBtn{
			Text: d.Name,
			Data: action.EncodeDistrict(action.ChooseAction, d.ID),
		})
	}
	return keyboard.InlineButtons(btns)
}
