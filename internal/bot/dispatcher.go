package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Armin-kho/price-drop-bot/internal/db"
	"github.com/Armin-kho/price-drop-bot/internal/fetcher"
	"github.com/Armin-kho/price-drop-bot/internal/logger"
	"github.com/Armin-kho/price-drop-bot/internal/render"
	"github.com/Armin-kho/price-drop-bot/internal/scheduler"
)

type Store interface {
	AddProduct(ctx context.Context, url string, targetPrice float64, userID int64) (db.Product, error)
	ListProductsByUser(ctx context.Context, userID int64) ([]db.Product, error)
	DeleteProduct(ctx context.Context, id, userID int64) error
}

type PageFetcher interface {
	FetchPriceAndDetails(ctx context.Context, url string, targetPrice float64) fetcher.Result
}

type Awaiting string

const (
	AwaitNone        Awaiting = ""
	AwaitRemoveIndex Awaiting = "remove_index"
)

// Session is the per-chat conversation state.
type Session struct {
	Await Awaiting

	// Product IDs in the order they were shown by /remove.
	ProductIDs []int64
	Deadline   time.Time
}

type DispatcherOptions struct {
	LongPollTimeout int
	RetryBackoff    time.Duration
	RemoveTimeout   time.Duration
	Sleep           scheduler.SleepFunc
	Now             func() time.Time
}

// Dispatcher reads the single update stream and routes commands. Two-step
// flows such as /remove keep their state in sessions and are resolved by a
// later update from the same stream.
type Dispatcher struct {
	api    BotAPI
	sender *Sender
	store  Store
	fetch  PageFetcher
	log    *logger.Logger

	longPollTimeout int
	retryBackoff    time.Duration
	removeTimeout   time.Duration
	sleep           scheduler.SleepFunc
	now             func() time.Time

	offset int

	sessMu sync.Mutex
	sess   map[int64]*Session // by chat id
}

func NewDispatcher(api BotAPI, sender *Sender, store Store, fetch PageFetcher, opts DispatcherOptions, log *logger.Logger) *Dispatcher {
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 5 * time.Second
	}
	if opts.RemoveTimeout <= 0 {
		opts.RemoveTimeout = 60 * time.Second
	}
	if opts.Sleep == nil {
		opts.Sleep = scheduler.Sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		api:             api,
		sender:          sender,
		store:           store,
		fetch:           fetch,
		log:             log.Component("dispatcher"),
		longPollTimeout: opts.LongPollTimeout,
		retryBackoff:    opts.RetryBackoff,
		removeTimeout:   opts.RemoveTimeout,
		sleep:           opts.Sleep,
		now:             opts.Now,
		sess:            map[int64]*Session{},
	}
}

type pollResult struct {
	updates []tgbotapi.Update
	err     error
}

// Run long-polls until ctx is cancelled. Transport errors are logged and
// retried forever after a fixed backoff. The offset moves past an update
// only once it has been handled, so a crash redelivers it.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		d.expireSessions(ctx)

		u := tgbotapi.NewUpdate(d.offset)
		u.Timeout = d.longPollTimeout
		u.AllowedUpdates = []string{"message"}

		ch := make(chan pollResult, 1)
		go func() {
			ups, err := d.api.GetUpdates(u)
			ch <- pollResult{ups, err}
		}()

		var res pollResult
		select {
		case res = <-ch:
		case <-ctx.Done():
			return nil
		}

		if res.err != nil {
			d.log.Error("get updates", "err", res.err, "retry_in", d.retryBackoff)
			if err := d.sleep(ctx, d.retryBackoff); err != nil {
				return nil
			}
			continue
		}
		for _, upd := range res.updates {
			d.HandleUpdate(ctx, upd)
			d.offset = upd.UpdateID + 1
		}
	}
}

// HandleUpdate processes one update. Only text messages are considered.
func (d *Dispatcher) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	cmd, args := parseCommand(text)
	if cmd != "" {
		if d.clearAwait(chatID) {
			d.log.Debug("pending removal cancelled by command", "chat", chatID, "command", cmd)
		}
		d.handleCommand(ctx, chatID, cmd, args)
		return
	}

	if sess, ok := d.takeAwait(chatID); ok {
		switch sess.Await {
		case AwaitRemoveIndex:
			d.resolveRemove(ctx, chatID, text, sess)
		}
	}
}

// parseCommand splits "/add@SomeBot url 10" into ("/add", [url 10]).
// Text that does not start with "/" is not a command.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	cmd := fields[0]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), fields[1:]
}

func (d *Dispatcher) ensureSession(chatID int64) *Session {
	s, ok := d.sess[chatID]
	if !ok {
		s = &Session{}
		d.sess[chatID] = s
	}
	return s
}

func (d *Dispatcher) setAwait(chatID int64, await Awaiting, ids []int64) {
	d.sessMu.Lock()
	defer d.sessMu.Unlock()
	s := d.ensureSession(chatID)
	s.Await = await
	s.ProductIDs = ids
	s.Deadline = d.now().Add(d.removeTimeout)
}

// clearAwait resets the chat's state and reports whether something was pending.
func (d *Dispatcher) clearAwait(chatID int64) bool {
	d.sessMu.Lock()
	defer d.sessMu.Unlock()
	s, ok := d.sess[chatID]
	if !ok || s.Await == AwaitNone {
		return false
	}
	delete(d.sess, chatID)
	return true
}

// takeAwait returns and clears the pending state of a chat.
func (d *Dispatcher) takeAwait(chatID int64) (Session, bool) {
	d.sessMu.Lock()
	defer d.sessMu.Unlock()
	s, ok := d.sess[chatID]
	if !ok || s.Await == AwaitNone {
		return Session{}, false
	}
	delete(d.sess, chatID)
	return *s, true
}

// Pending reports whether chatID is in the middle of a two-step flow.
func (d *Dispatcher) Pending(chatID int64) Awaiting {
	d.sessMu.Lock()
	defer d.sessMu.Unlock()
	if s, ok := d.sess[chatID]; ok {
		return s.Await
	}
	return AwaitNone
}

// expireSessions drops flows whose deadline passed and tells the user.
func (d *Dispatcher) expireSessions(ctx context.Context) {
	now := d.now()
	var expired []int64
	d.sessMu.Lock()
	for chatID, s := range d.sess {
		if s.Await != AwaitNone && now.After(s.Deadline) {
			expired = append(expired, chatID)
			delete(d.sess, chatID)
		}
	}
	d.sessMu.Unlock()

	for _, chatID := range expired {
		d.reply(ctx, chatID, render.RemoveTimedOut)
	}
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	if err := d.sender.Notify(ctx, chatID, text); err != nil {
		d.log.Error("reply failed", "chat", chatID, "err", err)
	}
}
