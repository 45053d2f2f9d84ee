package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Armin-kho/price-drop-bot/internal/db"
	"github.com/Armin-kho/price-drop-bot/internal/extract"
	"github.com/Armin-kho/price-drop-bot/internal/fetcher"
)

type fakeStore struct {
	products []db.Product
	err      error
}

func (f *fakeStore) ListProducts(ctx context.Context) ([]db.Product, error) {
	return f.products, f.err
}

type fakeFetcher struct {
	mu      sync.Mutex
	results map[string]fetcher.Result
	calls   []string
}

func (f *fakeFetcher) FetchPriceAndDetails(ctx context.Context, url string, target float64) fetcher.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	return f.results[url]
}

type sent struct {
	chatID int64
	text   string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{chatID, text})
	return nil
}

func priced(p float64, name string) fetcher.Result {
	return fetcher.Result{
		BestPrice:   &p,
		ProductName: name,
		Candidates:  []extract.Candidate{{Price: p, Context: name}},
	}
}

func TestRunCycleAlertsAtOrBelowTarget(t *testing.T) {
	store := &fakeStore{products: []db.Product{
		{ID: 1, URL: "https://a", TargetPrice: 20, UserID: 100},
		{ID: 2, URL: "https://b", TargetPrice: 20, UserID: 200},
		{ID: 3, URL: "https://c", TargetPrice: 20, UserID: 300},
		{ID: 4, URL: "https://d", TargetPrice: 20, UserID: 400},
	}}
	f := &fakeFetcher{results: map[string]fetcher.Result{
		"https://a": priced(20, "Equal"),
		"https://b": priced(20.01, "Above"),
		"https://c": priced(3.5, "Below"),
		// https://d has no price.
	}}
	n := &fakeNotifier{}
	s := New(store, f, n, Options{}, nil)

	st := s.RunCycle(context.Background())

	assert.Equal(t, []string{"https://a", "https://b", "https://c", "https://d"}, f.calls)
	require.Len(t, n.sent, 2)
	assert.Equal(t, int64(100), n.sent[0].chatID)
	assert.Contains(t, n.sent[0].text, "Product: Equal")
	assert.Contains(t, n.sent[0].text, "Current Price: $20.00")
	assert.Equal(t, int64(300), n.sent[1].chatID)
	assert.Contains(t, n.sent[1].text, "Current Price: $3.50")
	assert.Contains(t, n.sent[1].text, "Description: Not found")

	assert.Equal(t, 4, st.Checked)
	assert.Equal(t, 1, st.NoPrice)
	assert.Equal(t, 2, st.Alerts)
	assert.Equal(t, int64(1), st.Cycles)
	assert.NotEmpty(t, st.CycleID)
	assert.Equal(t, st, s.LastCycle())
}

func TestRunCycleStoreErrorSkipsCycle(t *testing.T) {
	f := &fakeFetcher{}
	n := &fakeNotifier{}
	s := New(&fakeStore{err: errors.New("disk gone")}, f, n, Options{}, nil)

	st := s.RunCycle(context.Background())
	assert.Equal(t, "disk gone", st.Err)
	assert.Empty(t, f.calls)
	assert.Empty(t, n.sent)
}

func TestRunCycleNotifyErrorContinues(t *testing.T) {
	store := &fakeStore{products: []db.Product{
		{ID: 1, URL: "https://a", TargetPrice: 5, UserID: 1},
		{ID: 2, URL: "https://b", TargetPrice: 5, UserID: 2},
	}}
	f := &fakeFetcher{results: map[string]fetcher.Result{
		"https://a": priced(1, "A"),
		"https://b": priced(1, "B"),
	}}
	s := New(store, f, &fakeNotifier{err: errors.New("blocked")}, Options{}, nil)

	st := s.RunCycle(context.Background())
	assert.Equal(t, 2, st.Checked)
	assert.Zero(t, st.Alerts)
}

func TestRunSleepsBetweenCycles(t *testing.T) {
	store := &fakeStore{products: []db.Product{{ID: 1, URL: "https://a", TargetPrice: 1, UserID: 1}}}
	f := &fakeFetcher{results: map[string]fetcher.Result{}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var slept []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		if len(slept) == 3 {
			cancel()
			return ctx.Err()
		}
		return nil
	}
	s := New(store, f, &fakeNotifier{}, Options{Interval: 42 * time.Second, Sleep: sleep}, nil)

	s.Run(ctx)

	assert.Equal(t, []time.Duration{42 * time.Second, 42 * time.Second, 42 * time.Second}, slept)
	assert.Len(t, f.calls, 3)
	assert.Equal(t, int64(3), s.LastCycle().Cycles)
}

func TestStartStop(t *testing.T) {
	store := &fakeStore{}
	s := New(store, &fakeFetcher{}, &fakeNotifier{}, Options{Interval: time.Hour}, nil)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestStartRejectsBadBackupSchedule(t *testing.T) {
	backup := func(ctx context.Context) (string, error) { return "", nil }
	s := New(&fakeStore{}, &fakeFetcher{}, &fakeNotifier{}, Options{BackupSchedule: "not a cron", Backup: backup}, nil)
	assert.Error(t, s.Start(context.Background()))
}

func TestRunBackup(t *testing.T) {
	calls := 0
	s := New(&fakeStore{}, &fakeFetcher{}, &fakeNotifier{}, Options{
		Backup: func(ctx context.Context) (string, error) {
			calls++
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return "/tmp/x.db", nil
		},
	}, nil)
	s.RunBackup(context.Background())
	assert.Equal(t, 1, calls)
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
