package router

import (
	"time"

	"github.com/casewatch/casebot/core/logger"
	tg "github.com/casewatch/casebot/core/telegram"
	"github.com/casewatch/casebot/core/telegram/middleware"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// CallbackRoute returns a handler that forwards inline button presses to the
// registry's callback handler. Acknowledgement of the press is owned by that
// handler, not the route.
func CallbackRoute(reg *tg.Registry) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		cb := c.Callback()
		if cb == nil {
			return nil
		}

		extras := []slog.Attr{slog.String("cb_key", logger.SanitizeLimit(cb.Data, 128))}

		resolver := reg.CallbackHandler()
		if resolver == nil {
			extras = append(extras, slog.String("reason", "no_resolver"))
			logHandlerSummary(c, "callback", start, "skip", "ok", nil, extras...)
			return nil
		}

		return handleWithSummary(c, "callback", start, "", "", func() error {
			return resolver(c)
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
