// Package fetcher downloads product pages and turns them into price data.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/Armin-kho/price-drop-bot/internal/extract"
	"github.com/Armin-kho/price-drop-bot/internal/logger"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrTooManyRedirects = errors.New("too many redirects")
)

// DefaultProductName is used when a page has no usable <title>.
const DefaultProductName = "Product"

const DefaultMaxRedirects = 5

// Result is the outcome of one page fetch. The zero value means no price
// could be determined.
type Result struct {
	BestPrice   *float64
	ProductName string
	Description string
	// Sorted by distance to the target price, closest first.
	Candidates []extract.Candidate
}

func (r Result) HasPrice() bool { return r.BestPrice != nil }

type Options struct {
	Timeout time.Duration
	// Zero means DefaultMaxRedirects; negative follows none.
	MaxRedirects int
	// Process-wide cap on concurrent page requests.
	MaxConns     int
	MaxBodyBytes int64
	UserAgent    string
	Extractor    *extract.Extractor
}

// Fetcher owns the one HTTP client used for every page request.
type Fetcher struct {
	client    *http.Client
	sem       chan struct{}
	extractor *extract.Extractor
	userAgent string
	maxBody   int64
	log       *logger.Logger
}

func New(opts Options, log *logger.Logger) *Fetcher {
	if opts.MaxConns <= 0 {
		opts.MaxConns = 10
	}
	switch {
	case opts.MaxRedirects == 0:
		opts.MaxRedirects = DefaultMaxRedirects
	case opts.MaxRedirects < 0:
		opts.MaxRedirects = 0
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 4 << 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Extractor == nil {
		opts.Extractor = extract.New()
	}
	if log == nil {
		log = logger.Nop()
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxConnsPerHost = opts.MaxConns
	tr.MaxIdleConns = opts.MaxConns
	tr.MaxIdleConnsPerHost = opts.MaxConns

	maxRedirects := opts.MaxRedirects
	return &Fetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: tr,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return fmt.Errorf("%w (%d)", ErrTooManyRedirects, maxRedirects)
				}
				return nil
			},
		},
		sem:       make(chan struct{}, opts.MaxConns),
		extractor: opts.Extractor,
		userAgent: opts.UserAgent,
		maxBody:   opts.MaxBodyBytes,
		log:       log.Component("fetcher"),
	}
}

// FetchPriceAndDetails never fails. Network errors, bad statuses and pages
// without candidates all yield the zero Result; the cause is logged.
func (f *Fetcher) FetchPriceAndDetails(ctx context.Context, url string, targetPrice float64) Result {
	doc, err := f.fetchDocument(ctx, url)
	if err != nil {
		if errors.Is(err, ErrUnexpectedStatus) {
			f.log.Warn("unexpected response status", "url", url, "err", err)
		} else {
			f.log.Error("fetch failed", "url", url, "err", err)
		}
		return Result{}
	}

	cands := f.extractor.ExtractDocument(doc)
	if len(cands) == 0 {
		f.log.Debug("no price candidates", "url", url)
		return Result{}
	}
	SortByDistance(cands, targetPrice)

	best := cands[0].Price
	res := Result{
		BestPrice:   &best,
		ProductName: DefaultProductName,
		Candidates:  cands,
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		res.ProductName = title
	}
	res.Description = metaDescription(doc)

	f.log.Debug("fetched", "url", url, "best", best, "candidates", len(cands))
	return res
}

// SortByDistance orders candidates by |price - target|, keeping input
// order among ties.
func SortByDistance(cands []extract.Candidate, target float64) {
	sort.SliceStable(cands, func(i, j int) bool {
		return math.Abs(cands[i].Price-target) < math.Abs(cands[j].Price-target)
	})
}

func metaDescription(doc *goquery.Document) string {
	var desc string
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if !strings.EqualFold(name, "description") {
			return true
		}
		content, ok := s.Attr("content")
		if !ok {
			return true
		}
		desc = strings.TrimSpace(content)
		return false
	})
	return desc
}

func (f *Fetcher) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	select {
	case f.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-f.sem }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("%w: http %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, f.maxBody)
	utf8Body, err := charset.NewReader(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(utf8Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}
