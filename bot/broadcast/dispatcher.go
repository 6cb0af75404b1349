package broadcast

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/casewatch/casebot/bot/escalate"
	"github.com/casewatch/casebot/core/logger"
	"github.com/casewatch/casebot/domain"
	"log/slog"
)

// Status is the per-recipient result of a dispatch round.
type Status int

const (
	// StatusDelivered means the message reached the recipient and, for
	// daily reports, delivery was confirmed to the domain layer.
	StatusDelivered Status = iota
	// StatusRemoved means the recipient revoked access and was pruned.
	StatusRemoved
	// StatusFailed means a platform error was logged and the recipient
	// stays eligible for the next round.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusRemoved:
		return "removed"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Outcome records what happened for one recipient.
type Outcome struct {
	UserID int64
	Status Status
	Err    error
}

// SendFunc delivers one message and reports how many API calls it took.
// Long texts attached as photo captions split into two calls.
type SendFunc func(ctx context.Context, userID int64, text string) (calls int, err error)

// ReportSource hands out pending daily reports and accepts confirmations.
type ReportSource interface {
	UnconfirmedDailyReports(ctx context.Context) ([]domain.DailyReport, error)
	ConfirmDailyReport(ctx context.Context, userID int64) error
}

// Dispatcher drains a recipient set through a flood window. One recipient's
// failure never aborts the round; only context cancellation does.
type Dispatcher struct {
	Window     *FloodWindow
	Photos     *PhotoCache
	Send       SendFunc
	Escalation *escalate.Handler
}

// DispatchDaily sends every unconfirmed daily report. Graph handles cached
// from the previous batch are stale by definition and dropped up front.
func (d *Dispatcher) DispatchDaily(ctx context.Context, src ReportSource) ([]Outcome, error) {
	reports, err := src.UnconfirmedDailyReports(ctx)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, nil
	}

	if d.Photos != nil {
		d.Photos.Invalidate()
	}

	start := time.Now()
	outcomes := make([]Outcome, 0, len(reports))
	var errs *multierror.Error

	for _, report := range reports {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		outcome := d.deliver(ctx, report.UserID, report.Message)
		if outcome.Status == StatusDelivered {
			if err := src.ConfirmDailyReport(ctx, report.UserID); err != nil {
				logger.Dispatch.LogAttrs(ctx, slog.LevelError, "confirm failed",
					slog.String("event", "dispatch.confirm"),
					slog.String("status", "fail"),
					slog.Int64("user_id", report.UserID),
					slog.String("err", err.Error()),
				)
				errs = multierror.Append(errs, err)
			}
		}
		if outcome.Err != nil {
			errs = multierror.Append(errs, outcome.Err)
		}
		outcomes = append(outcomes, outcome)
	}

	d.logSummary(ctx, "dispatch.daily", outcomes, time.Since(start))
	return outcomes, errs.ErrorOrNil()
}

// Broadcast pushes the same text to every given recipient.
func (d *Dispatcher) Broadcast(ctx context.Context, userIDs []int64, text string) ([]Outcome, error) {
	if len(userIDs) == 0 || text == "" {
		return nil, nil
	}

	start := time.Now()
	outcomes := make([]Outcome, 0, len(userIDs))
	var errs *multierror.Error

	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		outcome := d.deliver(ctx, userID, text)
		if outcome.Err != nil {
			errs = multierror.Append(errs, outcome.Err)
		}
		outcomes = append(outcomes, outcome)
	}

	d.logSummary(ctx, "dispatch.broadcast", outcomes, time.Since(start))
	return outcomes, errs.ErrorOrNil()
}

func (d *Dispatcher) deliver(ctx context.Context, userID int64, text string) Outcome {
	if d.Window != nil {
		if err := d.Window.Wait(ctx); err != nil {
			return Outcome{UserID: userID, Status: StatusFailed, Err: err}
		}
	}

	calls, err := d.Send(ctx, userID, text)
	if calls > 0 && d.Window != nil {
		d.Window.Record(calls)
	}
	if err == nil {
		return Outcome{UserID: userID, Status: StatusDelivered}
	}

	kind := escalate.Classify(err)
	if d.Escalation != nil {
		kind = d.Escalation.HandleSendError(ctx, userID, err)
	}
	switch kind {
	case escalate.KindRevoked:
		// Pruned by the escalation handler; not an error for the round.
		return Outcome{UserID: userID, Status: StatusRemoved}
	default:
		return Outcome{UserID: userID, Status: StatusFailed, Err: err}
	}
}

func (d *Dispatcher) logSummary(ctx context.Context, event string, outcomes []Outcome, took time.Duration) {
	var delivered, removed, failed int
	for _, o := range outcomes {
		switch o.Status {
		case StatusDelivered:
			delivered++
		case StatusRemoved:
			removed++
		case StatusFailed:
			failed++
		}
	}
	logger.Dispatch.LogAttrs(ctx, slog.LevelInfo, "dispatch round finished",
		slog.String("event", event),
		slog.String("status", "ok"),
		slog.Int("recipients", len(outcomes)),
		slog.Int("delivered", delivered),
		slog.Int("removed", removed),
		slog.Int("failed", failed),
		slog.Duration("duration", logger.RoundMS(took)),
	)
}
