// Package escalate classifies Telegram delivery failures and drives the
// matching recovery action: pruning revoked recipients, logging transient
// platform errors, and requesting shutdown on anything unexplained.
package escalate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/casewatch/casebot/core/logger"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Kind is the outcome of classifying a delivery error.
type Kind int

const (
	// KindNone means no error.
	KindNone Kind = iota
	// KindRevoked means the recipient can no longer be reached: the user
	// blocked the bot, deleted their account, or the chat is gone.
	KindRevoked
	// KindTelegram covers all remaining Telegram API errors. They are
	// logged and the current operation moves on.
	KindTelegram
	// KindFatal is everything else: a bug or an unexpected platform
	// condition that warrants operator attention and a graceful stop.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRevoked:
		return "revoked"
	case KindTelegram:
		return "telegram"
	case KindFatal:
		return "fatal"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Classify maps a send error to its recovery category.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	switch {
	case errors.Is(err, tele.ErrBlockedByUser),
		errors.Is(err, tele.ErrUserIsDeactivated),
		errors.Is(err, tele.ErrNotStartedByUser),
		errors.Is(err, tele.ErrChatNotFound),
		errors.Is(err, tele.ErrNoRightsToSend):
		return KindRevoked
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return KindTelegram
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		// Remaining 403s mean some other form of lost access.
		if apiErr.Code == 403 {
			return KindRevoked
		}
		return KindTelegram
	}

	return KindFatal
}

// UserRemover prunes a recipient whose chat became unreachable.
type UserRemover interface {
	DeleteUser(ctx context.Context, userID int64) (string, bool)
}

// Handler reacts to handler and dispatch errors.
type Handler struct {
	Users UserRemover

	// NotifyDev sends a plain-text report to the operator chat.
	NotifyDev func(ctx context.Context, text string) error
	// Apologize tells the affected user that something went wrong.
	Apologize func(ctx context.Context, chatID int64) error
	// RequestStop asks the runtime for a graceful shutdown.
	RequestStop func()
}

// HandleSendError processes a failure to deliver to the given user. It
// returns the classification so callers can fold it into their own
// bookkeeping.
func (h *Handler) HandleSendError(ctx context.Context, userID int64, err error) Kind {
	return h.handle(ctx, userID, err, "")
}

// HandleUpdateError processes a failure while handling the given update.
// A fatal classification attaches the update payload to the operator
// report so the triggering input survives the shutdown.
func (h *Handler) HandleUpdateError(ctx context.Context, userID int64, upd tele.Update, err error) Kind {
	return h.handle(ctx, userID, err, describeUpdate(upd))
}

func (h *Handler) handle(ctx context.Context, userID int64, err error, detail string) Kind {
	kind := Classify(err)
	switch kind {
	case KindNone:
		return kind
	case KindRevoked:
		if h.Users != nil {
			h.Users.DeleteUser(ctx, userID)
		}
		logger.Esc.LogAttrs(ctx, slog.LevelInfo, "recipient removed",
			slog.String("event", "escalate.revoked"),
			slog.String("status", "revoked"),
			slog.Int64("user_id", userID),
		)
	case KindTelegram:
		logger.Esc.LogAttrs(ctx, slog.LevelWarn, "telegram error",
			slog.String("event", "escalate.telegram"),
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	case KindFatal:
		h.fatal(ctx, userID, err, detail)
	}
	return kind
}

func (h *Handler) fatal(ctx context.Context, chatID int64, err error, detail string) {
	logger.Esc.LogAttrs(ctx, slog.LevelError, "unexpected error, requesting shutdown",
		slog.String("event", "escalate.fatal"),
		slog.String("status", "fail"),
		slog.Int64("chat_id", chatID),
		slog.String("err", logger.SanitizeLimit(err.Error(), 512)),
	)
	if h.NotifyDev != nil {
		report := fmt.Sprintf("An unexpected error happened, shutting down: %s", err)
		if detail != "" {
			report += "\nUpdate: " + detail
		}
		if nerr := h.NotifyDev(ctx, report); nerr != nil {
			logger.Esc.LogAttrs(ctx, slog.LevelError, "dev notification failed",
				slog.String("event", "escalate.notify_dev"),
				slog.String("status", "fail"),
				slog.String("err", nerr.Error()),
			)
		}
	}
	if h.Apologize != nil && chatID != 0 {
		_ = h.Apologize(ctx, chatID)
	}
	if h.RequestStop != nil {
		h.RequestStop()
	}
}

// describeUpdate serializes the update for the operator report.
func describeUpdate(upd tele.Update) string {
	raw, err := json.Marshal(upd)
	if err != nil {
		return ""
	}
	return logger.SanitizeLimit(string(raw), 2048)
}
