// Package extract finds price-looking numbers in arbitrary HTML by looking
// at elements whose class names hint at a price.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// MaxContextLen is the rune limit for Candidate.Context.
const MaxContextLen = 100

type Candidate struct {
	Price   float64
	Context string
}

type Extractor struct {
	matchers []Matcher
}

// New returns an Extractor that applies matchers in the given order.
// With no matchers it falls back to DefaultMatchers.
func New(matchers ...Matcher) *Extractor {
	if len(matchers) == 0 {
		matchers = DefaultMatchers()
	}
	return &Extractor{matchers: matchers}
}

var defaultExtractor = New()

// Extract runs the default matchers over html.
func Extract(htmlText string) []Candidate {
	return defaultExtractor.Extract(htmlText)
}

// Extract never fails: malformed markup is parsed best-effort and unusable
// elements are skipped. Results are ordered by matcher, then document order,
// and an element matched by several matchers appears once per matcher.
func (e *Extractor) Extract(htmlText string) []Candidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil
	}
	return e.ExtractDocument(doc)
}

func (e *Extractor) ExtractDocument(doc *goquery.Document) []Candidate {
	var out []Candidate
	classed := doc.Find("[class]")
	for _, m := range e.matchers {
		classed.Each(func(_ int, s *goquery.Selection) {
			class, _ := s.Attr("class")
			if !m.Match(class) {
				return
			}
			node := s.Get(0)
			text := StrippedText(node)
			if text == "" {
				return
			}
			price, ok := ParsePrice(text)
			if !ok {
				return
			}
			ctx := text
			if node.Parent != nil {
				ctx = StrippedText(node.Parent)
			}
			out = append(out, Candidate{Price: price, Context: truncateRunes(ctx, MaxContextLen)})
		})
	}
	return out
}

var numberRun = regexp.MustCompile(`[\p{Nd}.,]+`)

// ParsePrice reads the first run of digits, dots and commas in text. Digits
// of any script (Persian, Arabic-Indic, fullwidth) are read as their values.
// Commas become dots and every dot but the last is treated as a thousands
// separator, so "1.234,56" and "1,234.56" both parse as 1234.56.
func ParsePrice(text string) (float64, bool) {
	run := numberRun.FindString(text)
	if run == "" {
		return 0, false
	}
	s := strings.ReplaceAll(asciiDigits(run), ",", ".")
	if strings.Count(s, ".") > 1 {
		last := strings.LastIndex(s, ".")
		s = strings.ReplaceAll(s[:last], ".", "") + s[last:]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// asciiDigits maps every decimal digit in s to '0'-'9'. Unicode encodes
// each script's digits as contiguous runs of ten starting at zero, so the
// value is the offset from the start of the run modulo ten.
func asciiDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || !unicode.IsDigit(r) {
			return r
		}
		start := r
		for unicode.IsDigit(start - 1) {
			start--
		}
		return '0' + (r-start)%10
	}, s)
}

// StrippedText concatenates the trimmed text nodes under n, dropping empty
// ones. Script and style bodies are not text.
func StrippedText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(strings.TrimSpace(n.Data))
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
