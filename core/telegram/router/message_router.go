package router

import (
	"strings"
	"time"

	tg "github.com/casewatch/casebot/core/telegram"
	tghelpers "github.com/casewatch/casebot/core/telegram/helpers"
	"github.com/casewatch/casebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// TextOptions controls command and fallback routing for message-like updates.
type TextOptions struct {
	// BotUsername returns the bot's username without the leading @, used
	// to strip a leading mention from channel posts before command
	// resolution. It is a getter because the username is only known once
	// the bot has connected.
	BotUsername func() string

	UnknownText tele.HandlerFunc
}

// TextRoutes builds handlers for text, location, edited-message, and
// channel-post updates. Command resolution goes through the registry so that
// slash-less and mixed-case input reaches the same handler as the canonical
// form.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	dispatchText := func(c tele.Context, text string) error {
		start := time.Now()

		if reg != nil {
			if key, args, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				tghelpers.StoreArgs(c, args)
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		// A slash prefix marks an intended command; text that resolves to
		// none of them must not fall into the free-text flow.
		if strings.HasPrefix(strings.TrimSpace(text), "/") {
			if opts.UnknownText != nil {
				return handleWithSummary(c, "unknown_command", start, "", "", func() error {
					return opts.UnknownText(c)
				})
			}
			logHandlerSummary(c, "unknown_command", start, "skip", "ok", nil)
			return nil
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				tghelpers.StoreArgs(c, strings.TrimSpace(text))
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	textHandler := func(c tele.Context) error {
		return dispatchText(c, c.Text())
	}

	// Channel posts may address the bot as "@botname command"; the mention
	// is stripped before resolution. Edited messages re-enter routing with
	// their current text.
	postHandler := func(c tele.Context) error {
		name := ""
		if opts.BotUsername != nil {
			name = opts.BotUsername()
		}
		return dispatchText(c, StripLeadingMention(c.Text(), name))
	}

	locationHandler := func(c tele.Context) error {
		start := time.Now()
		if reg != nil {
			if lh := reg.LocationFallback(); lh != nil {
				return handleWithSummary(c, "location", start, "", "", func() error {
					return lh(c)
				})
			}
		}
		logHandlerSummary(c, "location", start, "skip", "ok", nil)
		return nil
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(textHandler)},
		{Endpoint: tele.OnEdited, Handler: wrap(textHandler)},
		{Endpoint: tele.OnChannelPost, Handler: wrap(postHandler)},
		{Endpoint: tele.OnEditedChannelPost, Handler: wrap(postHandler)},
		{Endpoint: tele.OnLocation, Handler: wrap(locationHandler)},
	}
}

// StripLeadingMention removes a leading @username mention addressed to the
// bot. Mentions of other bots are left untouched so the text falls through
// to the unknown handler.
func StripLeadingMention(text, botUsername string) string {
	trimmed := strings.TrimSpace(text)
	if botUsername == "" || !strings.HasPrefix(trimmed, "@") {
		return trimmed
	}
	rest := trimmed[1:]
	name := rest
	if i := strings.IndexAny(rest, " \t\n"); i >= 0 {
		name = rest[:i]
		rest = strings.TrimSpace(rest[i:])
	} else {
		rest = ""
	}
	if !strings.EqualFold(name, botUsername) {
		return trimmed
	}
	return rest
}
