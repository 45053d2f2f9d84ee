package bot

import (
	"context"
	"fmt"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/Armin-kho/price-drop-bot/internal/config"
	"github.com/Armin-kho/price-drop-bot/internal/db"
	"github.com/Armin-kho/price-drop-bot/internal/extract"
	"github.com/Armin-kho/price-drop-bot/internal/fetcher"
	"github.com/Armin-kho/price-drop-bot/internal/logger"
	"github.com/Armin-kho/price-drop-bot/internal/scheduler"
	"github.com/Armin-kho/price-drop-bot/internal/status"
)

// App owns every long-lived resource: the store handle, the page fetcher's
// HTTP client and the Telegram client. Tasks receive them from here.
type App struct {
	cfg config.Config
	log *logger.Logger

	db      *db.DB
	bot     *tgbotapi.BotAPI
	fetcher *fetcher.Fetcher
	sender  *Sender

	sched      *scheduler.Scheduler
	dispatcher *Dispatcher
	status     *status.Server
}

func New(cfg config.Config, log *logger.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, err
	}
	matchers, err := extract.LoadMatchers(cfg.Fetch.PatternsFile)
	if err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	b, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("telegram: %w", err)
	}
	b.Debug = cfg.Debug

	// A configured zero means no redirects at all.
	maxRedirects := cfg.Fetch.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = -1
	}
	f := fetcher.New(fetcher.Options{
		Timeout:      cfg.Fetch.Timeout,
		MaxRedirects: maxRedirects,
		MaxConns:     cfg.Fetch.MaxConns,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		UserAgent:    cfg.Fetch.UserAgent,
		Extractor:    extract.New(matchers...),
	}, log)
	sender := NewSender(b, rate.Limit(cfg.Telegram.SendRate), cfg.Telegram.SendBurst)

	app := &App{
		cfg:     cfg,
		log:     log,
		db:      database,
		bot:     b,
		fetcher: f,
		sender:  sender,
	}

	app.sched = scheduler.New(database, f, sender, scheduler.Options{
		Interval:       cfg.Poll.Interval,
		Calendar:       cfg.Calendar,
		BackupSchedule: cfg.Poll.BackupSchedule,
		Backup:         app.backup,
	}, log)
	app.dispatcher = NewDispatcher(b, sender, database, f, DispatcherOptions{
		LongPollTimeout: cfg.Telegram.LongPollTimeout,
		RetryBackoff:    cfg.Telegram.RetryBackoff,
		RemoveTimeout:   cfg.Telegram.RemoveTimeout,
	}, log)
	if cfg.HTTPAddr != "" {
		app.status = status.New(cfg.HTTPAddr, database, app.sched, log)
	}
	return app, nil
}

func (a *App) backup(ctx context.Context) (string, error) {
	return a.db.Snapshot(ctx, a.cfg.BackupDir(), a.cfg.Poll.BackupKeep, time.Now())
}

// Run starts the poll loop and the status server, then dispatches updates
// until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("bot authorized", "username", a.bot.Self.UserName)

	if err := a.sched.Start(ctx); err != nil {
		return err
	}
	if a.status != nil {
		a.status.Start()
	}
	return a.dispatcher.Run(ctx)
}

func (a *App) Close() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.status != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.status.Shutdown(ctx)
		cancel()
	}
	_ = a.db.Close()
}
