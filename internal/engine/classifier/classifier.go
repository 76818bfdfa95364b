package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/crimson-sun/tribewatch/internal/engine/rules"
	"github.com/crimson-sun/tribewatch/internal/model"
)

// Classifier assigns at most one category to a log line using an ordered
// rule table.
type Classifier struct {
	rules      []compiledRule
	qualifiers []string // lowercased; empty disables subject scoping
}

type compiledRule struct {
	category model.Category
	patterns []*regexp.Regexp
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithQualifiers enables subject scoping: a line is only classified when it
// contains at least one of the tokens, compared case-insensitively.
func WithQualifiers(tokens ...string) Option {
	return func(c *Classifier) {
		for _, t := range tokens {
			if t = strings.TrimSpace(t); t != "" {
				c.qualifiers = append(c.qualifiers, strings.ToLower(t))
			}
		}
	}
}

// New compiles table into a Classifier. Plain patterns match as
// case-insensitive substrings; patterns prefixed with "re:" are
// case-insensitive regular expressions.
func New(table rules.Table, opts ...Option) (*Classifier, error) {
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	c := &Classifier{rules: make([]compiledRule, 0, len(table))}
	for _, r := range table {
		cr := compiledRule{category: r.Category}
		for _, p := range r.Patterns {
			re, err := compile(p)
			if err != nil {
				return nil, fmt.Errorf("classifier: %s: %w", r.Category, err)
			}
			cr.patterns = append(cr.patterns, re)
		}
		c.rules = append(c.rules, cr)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func compile(pattern string) (*regexp.Regexp, error) {
	if expr, ok := strings.CutPrefix(pattern, rules.RegexPrefix); ok {
		return regexp.Compile("(?i)" + expr)
	}
	return regexp.Compile("(?i)" + regexp.QuoteMeta(pattern))
}

// Classify returns the category of the first pattern, in table order, that
// matches anywhere in text. The second result is false when nothing matches
// or when a required qualifier is absent.
func (c *Classifier) Classify(text string) (model.Category, bool) {
	if !c.qualified(text) {
		return "", false
	}
	for _, r := range c.rules {
		for _, re := range r.patterns {
			if re.MatchString(text) {
				return r.category, true
			}
		}
	}
	return "", false
}

// Event classifies rec and, on a match, returns it as a ClassifiedEvent with
// cleaned display text.
func (c *Classifier) Event(rec model.RawRecord) (model.ClassifiedEvent, bool) {
	cat, ok := c.Classify(rec.Text)
	if !ok {
		return model.ClassifiedEvent{}, false
	}
	return model.ClassifiedEvent{
		Category:    cat,
		Offset:      rec.Offset,
		RawText:     rec.Text,
		CleanedText: Clean(rec.Text),
	}, true
}

// Categories returns the categories the classifier can emit, in order.
func (c *Classifier) Categories() []model.Category {
	out := make([]model.Category, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.category
	}
	return out
}

func (c *Classifier) qualified(text string) bool {
	if len(c.qualifiers) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, q := range c.qualifiers {
		if strings.Contains(lower, q) {
			return true
		}
	}
	return false
}
