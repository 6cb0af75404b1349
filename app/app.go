// Package app assembles the bot: configuration, storage, domain service,
// Telegram wiring, and the daily-report loop.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/casewatch/casebot/bot"
	"github.com/casewatch/casebot/bot/broadcast"
	"github.com/casewatch/casebot/bot/escalate"
	"github.com/casewatch/casebot/core/bootstrap"
	"github.com/casewatch/casebot/core/logger"
	coretelegram "github.com/casewatch/casebot/core/telegram"
	"github.com/casewatch/casebot/core/telegram/router"
	"github.com/casewatch/casebot/domain"
	"github.com/casewatch/casebot/store"
	"github.com/casewatch/casebot/viz"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// App carries the assembled components between bootstrap and run.
type App struct {
	cfg *Config
	db  *sqlx.DB
	svc domain.Service
	viz domain.Visualizer
}

// Bootstrap initializes logging, storage and the domain service.
func Bootstrap(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}

	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg: cfg,
		db:  res.DB,
		svc: store.NewService(store.New(res.DB)),
		viz: viz.NewFileVisualizer(cfg.Graphs.Dir),
	}, nil
}

// TelegramRunOptions wires routes, middleware and lifecycle hooks.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	reg := coretelegram.NewRegistry()

	// Known once the bot connects; read lazily by the channel-post route.
	botUsername := ""

	var (
		frontend   *bot.Bot
		dispatcher *broadcast.Dispatcher
	)

	routes := router.TextRoutes(reg, router.TextOptions{
		BotUsername: func() string { return botUsername },
		UnknownText: func(c tele.Context) error {
			if frontend == nil {
				return nil
			}
			return frontend.UnknownCommand(c)
		},
	})
	routes = append(routes, router.CallbackRoute(reg))

	margin := time.Duration(core.Dispatch.MarginMS) * time.Millisecond

	opts := coretelegram.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		Routes:      routes,

		OnBot: func(ctx context.Context, rt coretelegram.Runtime) error {
			if rt.Bot.Me != nil {
				botUsername = rt.Bot.Me.Username
			}

			photos := broadcast.NewPhotoCache()
			msg := bot.NewMessenger(rt.Bot, photos)
			frontend = bot.New(a.svc, a.viz, msg, core.Telegram.DevChatID)

			esc := &escalate.Handler{
				Users:       a.svc,
				NotifyDev:   frontend.NotifyDev,
				Apologize:   frontend.Apologize,
				RequestStop: rt.Stop,
			}
			frontend.SetEscalation(esc)

			dispatcher = &broadcast.Dispatcher{
				Window:     broadcast.NewFloodWindow(core.Dispatch.DailyRate, margin),
				Photos:     photos,
				Send:       frontend.SendDailyReport,
				Escalation: esc,
			}

			adhoc := &broadcast.Dispatcher{
				Window:     broadcast.NewFloodWindow(core.Dispatch.BroadcastRate, margin),
				Send: func(ctx context.Context, userID int64, text string) (int, error) {
					return msg.SendText(userID, text, nil)
				},
				Escalation: esc,
			}
			frontend.SetBroadcaster(func(ctx context.Context, text string) error {
				userIDs, err := a.svc.AllUserIDs(ctx)
				if err != nil {
					return err
				}
				_, err = adhoc.Broadcast(ctx, userIDs, text)
				return err
			})

			frontend.Wire(reg)
			return nil
		},

		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			if err := frontend.NotifyDev(ctx, "Bot gestartet."); err != nil {
				logger.L.With("component", "app").Warn("startup notice failed",
					slog.String("event", "startup_notice"),
					slog.String("err", err.Error()),
				)
			}
			a.startReportLoop(ctx, dispatcher)
			return nil
		},

		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			return a.db.Close()
		},
	}
	return opts, nil
}

// startReportLoop polls for unconfirmed daily reports until ctx is done.
// The first round runs immediately so a restart never delays delivery.
func (a *App) startReportLoop(ctx context.Context, d *broadcast.Dispatcher) {
	interval := time.Duration(a.cfg.Core.Dispatch.ReportIntervalSeconds) * time.Second
	if interval <= 0 {
		return
	}
	src, ok := a.svc.(broadcast.ReportSource)
	if !ok {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if _, err := d.DispatchDaily(ctx, src); err != nil && ctx.Err() == nil {
				logger.Dispatch.Error("daily round failed",
					slog.String("event", "dispatch.daily"),
					slog.String("status", "fail"),
					slog.String("err", logger.SanitizeLimit(err.Error(), 512)),
				)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
