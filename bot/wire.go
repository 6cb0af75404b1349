package bot

import (
	"github.com/casewatch/casebot/core/logger"
	tg "github.com/casewatch/casebot/core/telegram"
	"github.com/casewatch/casebot/core/telegram/commands"
	tghelpers "github.com/casewatch/casebot/core/telegram/helpers"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Wire registers the command surface, the callback resolver, and the
// fallbacks on the registry. Command names follow the bot's German surface
// with English aliases where users expect them.
func (b *Bot) Wire(reg *tg.Registry) {
	register := func(name string, h tele.HandlerFunc, desc string, aliases ...string) {
		reg.RegisterCommand(name, commands.Command{
			Handler:     b.guard(h),
			Description: desc,
			Aliases:     aliases,
		})
	}

	register("/start", b.handleStart, "Bot starten")
	register("/hilfe", b.handleHelp, "Hilfe anzeigen", "/help")
	register("/info", b.handleInfo, "Erläuterung der Kennzahlen")
	register("/ort", b.handleDistrict, "Bericht für einen Ort", "/daten")
	register("/abo", b.handleSubscriptions, "Abos verwalten")
	register("/beende", b.handleUnsubscribe, "Abo beenden")
	register("/bericht", b.handleReport, "Persönlicher Bericht")
	register("/impfungen", b.handleVaccinations, "Impfbericht")
	register("/statistik", b.handleStatistic, "Nutzungsstatistik")
	register("/sprache", b.handleLanguage, "Sprache ändern")
	register("/datenschutz", b.handlePrivacy, "Datenschutzerklärung")
	register("/loeschmich", b.handleDeleteMe, "Alle Daten löschen")

	reg.RegisterCommand("/debug", commands.Command{
		Handler:     b.guard(b.handleDebug),
		Description: "Diagnose",
		Hidden:      true,
	})
	reg.RegisterCommand("/broadcast", commands.Command{
		Handler:     b.guard(b.handleBroadcast),
		Description: "Nachricht an alle Nutzer",
		Hidden:      true,
	})

	reg.SetCallbackHandler(b.guard(b.handleCallback))
	reg.SetTextFallback(b.guard(b.handleFreeText))
	reg.SetLocationFallback(b.guard(b.handleLocation))

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
	)
}

// guard funnels handler failures through the escalation handler so a revoked
// chat prunes the user and an unexplained error reaches the operator.
func (b *Bot) guard(h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		err := h(c)
		if err != nil && b.esc != nil {
			ctx := tghelpers.BuildContext(c)
			b.esc.HandleUpdateError(ctx, senderID(c), c.Update(), err)
		}
		return err
	}
}
