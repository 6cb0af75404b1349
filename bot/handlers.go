package bot

import (
	"context"

	"github.com/casewatch/casebot/bot/action"
	"github.com/casewatch/casebot/bot/escalate"
	"github.com/casewatch/casebot/core/logger"
	tghelpers "github.com/casewatch/casebot/core/telegram/helpers"
	"github.com/casewatch/casebot/core/telegram/keyboard"
	"github.com/casewatch/casebot/domain"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Bot binds the command surface to the domain layer and the send primitive.
type Bot struct {
	svc       domain.Service
	viz       domain.Visualizer
	msg       *Messenger
	resolver  *Resolver
	esc       *escalate.Handler
	broadcast func(ctx context.Context, text string) error
	devChatID int64
}

// New assembles the interactive front end. The escalation handler is wired
// afterwards via SetEscalation because it needs the bot's own send methods.
func New(svc domain.Service, viz domain.Visualizer, msg *Messenger, devChatID int64) *Bot {
	b := &Bot{
		svc:       svc,
		viz:       viz,
		msg:       msg,
		devChatID: devChatID,
	}
	b.resolver = NewResolver(svc, b)
	return b
}

// SetEscalation attaches the escalation handler used for handler failures.
func (b *Bot) SetEscalation(h *escalate.Handler) { b.esc = h }

// SetBroadcaster attaches the ad-hoc broadcast entry point.
func (b *Bot) SetBroadcaster(fn func(ctx context.Context, text string) error) {
	b.broadcast = fn
}

// Resolver returns the callback resolver for wiring and tests.
func (b *Bot) Resolver() *Resolver { return b.resolver }

// Messenger returns the shared send primitive.
func (b *Bot) Messenger() *Messenger { return b.msg }

// NotifyDev sends a plain text to the operator chat.
func (b *Bot) NotifyDev(ctx context.Context, text string) error {
	if b.devChatID == 0 {
		return nil
	}
	_, err := b.msg.SendText(b.devChatID, text, nil)
	return err
}

// Apologize tells a user that their request failed.
func (b *Bot) Apologize(ctx context.Context, chatID int64) error {
	_, err := b.msg.SendText(chatID, b.svc.ErrorMessage(ctx), nil)
	return err
}

// SendDistrictReport delivers the report for one district with its graphs.
func (b *Bot) SendDistrictReport(ctx context.Context, chatID int64, districtID int) error {
	text := b.svc.DistrictReport(ctx, districtID)
	_, err := b.msg.SendReport(chatID, text, b.collectGraphs(ctx,
		func() (string, error) { return b.viz.InfectionsGraph(districtID) },
		func() (string, error) { return b.viz.IncidenceGraph(districtID) },
	), nil)
	return err
}

// SendDailyReport is the dispatcher's send function for one recipient.
func (b *Bot) SendDailyReport(ctx context.Context, userID int64, text string) (int, error) {
	return b.msg.SendReport(userID, text, b.collectGraphs(ctx,
		func() (string, error) { return b.viz.InfectionsGraph(0) },
	), nil)
}

// collectGraphs renders graphs, skipping the ones that fail. A missing
// graph degrades the message, it never blocks it.
func (b *Bot) collectGraphs(ctx context.Context, renders ...func() (string, error)) []string {
	var paths []string
	for _, render := range renders {
		path, err := render()
		if err != nil {
			logger.Warn(ctx, "tg", "graph.render",
				slog.String("status", "skip"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

func senderID(c tele.Context) int64 {
	if user := c.Sender(); user != nil {
		return user.ID
	}
	return 0
}

func chatID(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	return senderID(c)
}

func (b *Bot) handleStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	name, lang := "", ""
	if user := c.Sender(); user != nil {
		name = user.FirstName
		lang = user.LanguageCode
	}
	_, err := b.msg.SendText(chatID(c), b.svc.StartMessage(ctx, senderID(c), name, lang), nil)
	return err
}

func (b *Bot) handleHelp(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	_, err := b.msg.SendText(chatID(c), b.svc.HelpMessage(ctx, senderID(c)), nil)
	return err
}

func (b *Bot) handleInfo(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	_, err := b.msg.SendText(chatID(c), b.svc.ExplainMessage(ctx), nil)
	return err
}

func (b *Bot) handlePrivacy(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	_, err := b.msg.SendText(chatID(c), b.svc.PrivacyMessage(ctx), nil)
	return err
}

func (b *Bot) handleDebug(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	_, err := b.msg.SendText(chatID(c), b.svc.DebugReport(ctx, senderID(c)), nil)
	return err
}

func (b *Bot) handleLanguage(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	lang := tghelpers.Args(c)
	if lang == "" {
		_, err := b.msg.SendText(chatID(c), msgMissingLanguage, nil)
		return err
	}
	_, err := b.msg.SendText(chatID(c), b.svc.SetLanguage(ctx, senderID(c), lang), nil)
	return err
}

// handleDistrict implements the place lookup. A unique match gets its
// report right away instead of a one-button keyboard.
func (b *Bot) handleDistrict(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	query := tghelpers.Args(c)
	if query == "" {
		_, err := b.msg.SendText(chatID(c), msgAskDistrict, nil)
		return err
	}
	text, districts := b.svc.FindDistrict(ctx, query)
	if len(districts) == 1 {
		return b.SendDistrictReport(ctx, chatID(c), districts[0].ID)
	}
	return b.offerDistricts(ctx, c, text, districts)
}

func (b *Bot) handleLocation(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	msg := c.Message()
	if msg == nil || msg.Location == nil {
		return nil
	}
	loc := msg.Location
	text, districts := b.svc.FindDistrictByLocation(ctx, float64(loc.Lng), float64(loc.Lat))
	return b.offerDistricts(ctx, c, text, districts)
}

func (b *Bot) offerDistricts(ctx context.Context, c tele.Context, text string, districts []domain.District) error {
	switch len(districts) {
	case 0:
		_, err := b.msg.SendText(chatID(c), text, nil)
		return err
	case 1:
		actionsText, actions := b.svc.PossibleActions(ctx, senderID(c), districts[0].ID)
		_, err := b.msg.SendText(chatID(c), actionsText, ActionMarkup(actions, districts[0].ID))
		return err
	default:
		_, err := b.msg.SendText(chatID(c), text, DistrictMarkup(districts))
		return err
	}
}

func (b *Bot) handleSubscriptions(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	query := tghelpers.Args(c)

	if query == "" {
		text, districts := b.svc.Overview(ctx, senderID(c))
		_, err := b.msg.SendText(chatID(c), text, DistrictMarkup(districts))
		return err
	}

	text, districts := b.svc.FindDistrict(ctx, query)
	if len(districts) == 1 {
		msg := b.svc.Subscribe(ctx, senderID(c), districts[0].ID)
		_, actions := b.svc.PossibleActions(ctx, senderID(c), districts[0].ID)
		_, err := b.msg.SendText(chatID(c), msg, ActionMarkup(actions, districts[0].ID))
		return err
	}
	return b.offerDistricts(ctx, c, text, districts)
}

func (b *Bot) handleUnsubscribe(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	query := tghelpers.Args(c)

	if query == "" {
		text, districts := b.svc.Overview(ctx, senderID(c))
		_, err := b.msg.SendText(chatID(c), text, unsubscribeMarkup(districts))
		return err
	}

	text, districts := b.svc.FindDistrict(ctx, query)
	if len(districts) == 1 {
		msg := b.svc.Unsubscribe(ctx, senderID(c), districts[0].ID)
		_, err := b.msg.SendText(chatID(c), msg, nil)
		return err
	}
	if len(districts) == 0 {
		_, err := b.msg.SendText(chatID(c), text, nil)
		return err
	}
	_, err := b.msg.SendText(chatID(c), text, unsubscribeMarkup(districts))
	return err
}

func unsubscribeMarkup(districts []domain.District) *tele.ReplyMarkup {
	if len(districts) == 0 {
		return nil
	}
	btns := make([]keyboard.InlineBtn, 0, len(districts))
	for _, d := range districts {
		btns = append(btns, keyboard.InlineBtn{
			Text: d.Name,
			Data: action.EncodeDistrict(action.Unsubscribe, d.ID),
		})
	}
	return keyboard.InlineButtons(btns)
}

func (b *Bot) handleReport(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	text := b.svc.Report(ctx, senderID(c))
	_, err := b.msg.SendReport(chatID(c), text, b.collectGraphs(ctx,
		func() (string, error) { return b.viz.InfectionsGraph(0) },
	), nil)
	return err
}

func (b *Bot) handleVaccinations(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	text := b.svc.VaccinationOverview(ctx, 0)
	_, err := b.msg.SendReport(chatID(c), text, b.collectGraphs(ctx,
		func() (string, error) { return b.viz.VaccinationGraph(0) },
	), nil)
	return err
}

func (b *Bot) handleStatistic(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	text := b.svc.Statistic(ctx)
	_, err := b.msg.SendReport(chatID(c), text, b.collectGraphs(ctx,
		func() (string, error) { return b.viz.UserGraph() },
	), nil)
	return err
}

func (b *Bot) handleDeleteMe(c tele.Context) error {
	markup := keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: btnDeleteConfirm, Data: action.Encode(action.DeleteMe)},
		{Text: btnDeleteCancel, Data: action.Encode(action.Discard)},
	})
	_, err := b.msg.SendText(chatID(c), msgDeletePrompt, markup)
	return err
}

// handleFreeText first tries the text as a district search; a unique match
// advances straight into the action choice. Text that matches nothing
// becomes a feedback candidate, where a newer message replaces an older
// unconfirmed one.
func (b *Bot) handleFreeText(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	text := tghelpers.Args(c)
	if text == "" {
		text = c.Text()
	}
	if text == "" {
		return nil
	}
	found, districts := b.svc.FindDistrict(ctx, text)
	if len(districts) > 0 {
		return b.offerDistricts(ctx, c, found, districts)
	}
	b.resolver.Feedback().Put(chatID(c), text)
	markup := keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: btnFeedbackConfirm, Data: action.Encode(action.ConfirmFeedback)},
		{Text: btnFeedbackDiscard, Data: action.Encode(action.Discard)},
	})
	_, err := b.msg.SendText(chatID(c), msgFeedbackPrompt, markup)
	return err
}

// UnknownCommand answers a slash command that resolves to nothing.
func (b *Bot) UnknownCommand(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	_, err := b.msg.SendText(chatID(c), b.svc.UnknownAction(ctx), nil)
	return err
}

// handleBroadcast pushes a text to every known user. Only the maintainer
// chat may trigger it; everyone else falls through silently.
func (b *Bot) handleBroadcast(c tele.Context) error {
	if b.broadcast == nil || b.devChatID == 0 || chatID(c) != b.devChatID {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	text := tghelpers.Args(c)
	if text == "" {
		_, err := b.msg.SendText(chatID(c), "Nutzung: /broadcast <Text>", nil)
		return err
	}
	if err := b.broadcast(ctx, text); err != nil {
		return err
	}
	_, err := b.msg.SendText(chatID(c), "Broadcast verschickt.", nil)
	return err
}

func (b *Bot) handleCallback(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	return b.resolver.Resolve(ctx, telePage{c: c}, cb.Data)
}
