package extract

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidMatcher = errors.New("invalid matcher")

// DefaultPatterns are the class-name fragments that usually mark a price.
var DefaultPatterns = []string{"price", "amount", "cost", "value", "currency", "sale", "discount", "regular"}

// Matcher decides whether an element's class attribute looks price-like.
type Matcher interface {
	Match(class string) bool
}

type MatcherFunc func(class string) bool

func (f MatcherFunc) Match(class string) bool { return f(class) }

type substringMatcher struct {
	needle string
}

// Substring matches when pattern occurs anywhere in the class attribute,
// ignoring case.
func Substring(pattern string) Matcher {
	return substringMatcher{needle: strings.ToLower(pattern)}
}

func (m substringMatcher) Match(class string) bool {
	return strings.Contains(strings.ToLower(class), m.needle)
}

func (m substringMatcher) String() string { return "substring:" + m.needle }

type regexpMatcher struct {
	re *regexp.Regexp
}

// Regexp matches when re matches the whole class attribute or any single
// class token, so anchored expressions like ^price$ behave as expected.
func Regexp(re *regexp.Regexp) Matcher {
	return regexpMatcher{re: re}
}

func (m regexpMatcher) Match(class string) bool {
	if m.re.MatchString(class) {
		return true
	}
	for _, tok := range strings.Fields(class) {
		if m.re.MatchString(tok) {
			return true
		}
	}
	return false
}

func (m regexpMatcher) String() string { return "regexp:" + m.re.String() }

func DefaultMatchers() []Matcher {
	out := make([]Matcher, 0, len(DefaultPatterns))
	for _, p := range DefaultPatterns {
		out = append(out, Substring(p))
	}
	return out
}

type matcherFile struct {
	Matchers []matcherEntry `yaml:"matchers"`
}

type matcherEntry struct {
	Substring string `yaml:"substring"`
	Regexp    string `yaml:"regexp"`
}

// LoadMatchers reads an ordered matcher list from a YAML file:
//
//	matchers:
//	  - substring: price
//	  - regexp: "(?i)^amount$"
//
// An empty path returns DefaultMatchers.
func LoadMatchers(path string) ([]Matcher, error) {
	if path == "" {
		return DefaultMatchers(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read matchers: %w", err)
	}
	return ParseMatchers(b)
}

func ParseMatchers(b []byte) ([]Matcher, error) {
	var f matcherFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMatcher, err)
	}
	if len(f.Matchers) == 0 {
		return nil, fmt.Errorf("%w: empty matcher list", ErrInvalidMatcher)
	}
	out := make([]Matcher, 0, len(f.Matchers))
	for i, e := range f.Matchers {
		switch {
		case e.Substring != "" && e.Regexp != "":
			return nil, fmt.Errorf("%w: entry %d sets both substring and regexp", ErrInvalidMatcher, i+1)
		case e.Substring != "":
			out = append(out, Substring(e.Substring))
		case e.Regexp != "":
			re, err := regexp.Compile(e.Regexp)
			if err != nil {
				return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidMatcher, i+1, err)
			}
			out = append(out, Regexp(re))
		default:
			return nil, fmt.Errorf("%w: entry %d is empty", ErrInvalidMatcher, i+1)
		}
	}
	return out, nil
}
