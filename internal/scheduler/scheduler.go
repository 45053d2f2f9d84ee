package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/Armin-kho/price-drop-bot/internal/db"
	"github.com/Armin-kho/price-drop-bot/internal/fetcher"
	"github.com/Armin-kho/price-drop-bot/internal/logger"
	"github.com/Armin-kho/price-drop-bot/internal/render"
)

type Store interface {
	ListProducts(ctx context.Context) ([]db.Product, error)
}

type PageFetcher interface {
	FetchPriceAndDetails(ctx context.Context, url string, targetPrice float64) fetcher.Result
}

// Notifier delivers a message to a chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// BackupFunc writes a database snapshot and returns its path.
type BackupFunc func(ctx context.Context) (string, error)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Stats describes the most recent finished poll cycle.
type Stats struct {
	CycleID    string    `json:"cycle_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Checked    int       `json:"checked"`
	NoPrice    int       `json:"no_price"`
	Alerts     int       `json:"alerts"`
	Err        string    `json:"error,omitempty"`
	Cycles     int64     `json:"cycles"`
}

type Options struct {
	Interval       time.Duration
	Calendar       string
	BackupSchedule string
	Backup         BackupFunc
	Sleep          SleepFunc
	Now            func() time.Time
}

type Scheduler struct {
	store  Store
	fetch  PageFetcher
	notify Notifier
	log    *logger.Logger

	interval time.Duration
	calendar string

	backupSchedule string
	backup         BackupFunc
	cron           *cron.Cron

	sleep SleepFunc
	now   func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	last Stats
}

func New(store Store, fetch PageFetcher, notify Notifier, opts Options, log *logger.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		store:          store,
		fetch:          fetch,
		notify:         notify,
		log:            log.Component("scheduler"),
		interval:       opts.Interval,
		calendar:       opts.Calendar,
		backupSchedule: opts.BackupSchedule,
		backup:         opts.Backup,
		sleep:          opts.Sleep,
		now:            opts.Now,
	}
}

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the poll loop and, if configured, the backup job.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.backup != nil && s.backupSchedule != "" {
		c := cron.New(cron.WithSeconds())
		if _, err := c.AddFunc(s.backupSchedule, func() { s.RunBackup(ctx) }); err != nil {
			cancel()
			return fmt.Errorf("backup schedule %q: %w", s.backupSchedule, err)
		}
		s.cron = c
		c.Start()
		s.log.Info("backup job scheduled", "schedule", s.backupSchedule)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(ctx)
	}()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
}

// Run polls until ctx is cancelled. The interval is measured from the end
// of each cycle, so a slow cycle pushes the next one back.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("poll loop started", "interval", s.interval)
	for {
		s.RunCycle(ctx)
		if err := s.sleep(ctx, s.interval); err != nil {
			s.log.Info("poll loop stopped")
			return
		}
	}
}

// RunCycle checks every tracked product once, sequentially, and alerts the
// owner of each product whose best price is at or below its target.
func (s *Scheduler) RunCycle(ctx context.Context) Stats {
	st := Stats{CycleID: uuid.NewString(), StartedAt: s.now()}
	log := s.log.With("cycle", st.CycleID)

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		log.Error("list products", "err", err)
		st.Err = err.Error()
		return s.finish(st)
	}

	for _, p := range products {
		if ctx.Err() != nil {
			break
		}
		res := s.fetch.FetchPriceAndDetails(ctx, p.URL, p.TargetPrice)
		st.Checked++
		if !res.HasPrice() {
			st.NoPrice++
			continue
		}
		if *res.BestPrice > p.TargetPrice {
			continue
		}
		text := render.PriceDropAlert(render.Alert{
			Name:        res.ProductName,
			URL:         p.URL,
			Target:      p.TargetPrice,
			Current:     *res.BestPrice,
			Description: res.Description,
			CheckedAt:   s.now(),
			Calendar:    s.calendar,
		})
		if err := s.notify.Notify(ctx, p.UserID, text); err != nil {
			log.Error("send alert", "product", p.ID, "user", p.UserID, "err", err)
			continue
		}
		st.Alerts++
		log.Info("price drop alert sent", "product", p.ID, "user", p.UserID, "price", *res.BestPrice, "target", p.TargetPrice)
	}
	log.Debug("cycle finished", "checked", st.Checked, "alerts", st.Alerts)
	return s.finish(st)
}

func (s *Scheduler) finish(st Stats) Stats {
	st.FinishedAt = s.now()
	s.mu.Lock()
	st.Cycles = s.last.Cycles + 1
	s.last = st
	s.mu.Unlock()
	return st
}

// LastCycle returns stats of the latest finished cycle.
func (s *Scheduler) LastCycle() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// RunBackup takes one snapshot. Failures are logged only.
func (s *Scheduler) RunBackup(ctx context.Context) {
	if s.backup == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	path, err := s.backup(ctx)
	if err != nil {
		s.log.Error("backup failed", "err", err)
		return
	}
	s.log.Info("backup written", "path", path)
}
