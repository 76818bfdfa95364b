package tribelog

import (
	"fmt"

	"github.com/crimson-sun/tribewatch/internal/engine"
	"github.com/crimson-sun/tribewatch/internal/engine/classifier"
	"github.com/crimson-sun/tribewatch/internal/engine/extractor"
	"github.com/crimson-sun/tribewatch/internal/engine/rules"
	"github.com/crimson-sun/tribewatch/internal/model"
)

// Record is one decoded string from the file's record table.
type Record struct {
	Offset int
	Text   string
}

// Event is a record that matched a category.
type Event struct {
	Category string
	Offset   int
	Raw      string // text as decoded
	Text     string // cleaned, display-ready
}

// Option configures a Tribelog.
type Option func(*options)

type options struct {
	rulesFile  string
	rules      rules.Table
	qualifiers []string
}

// WithRulesFile loads the rule table from a YAML file.
func WithRulesFile(path string) Option {
	return func(o *options) { o.rulesFile = path }
}

// WithRules uses the given category to patterns mapping, in slice order.
func WithRules(r []Rule) Option {
	return func(o *options) {
		o.rules = make(rules.Table, len(r))
		for i, rule := range r {
			o.rules[i] = rules.Rule{Category: model.ParseCategory(rule.Category), Patterns: rule.Patterns}
		}
	}
}

// WithQualifiers only classifies lines containing at least one token.
func WithQualifiers(tokens ...string) Option {
	return func(o *options) { o.qualifiers = append(o.qualifiers, tokens...) }
}

// Rule maps a category to its patterns. A pattern prefixed with "re:" is a
// regular expression; anything else is a case-insensitive substring.
type Rule struct {
	Category string
	Patterns []string
}

// DefaultRules returns the built-in rule table.
func DefaultRules() []Rule {
	table := rules.DefaultRules()
	out := make([]Rule, len(table))
	for i, r := range table {
		out[i] = Rule{Category: string(r.Category), Patterns: append([]string(nil), r.Patterns...)}
	}
	return out
}

// Tribelog classifies decoded records.
type Tribelog struct {
	engine     *engine.Engine
	classifier *classifier.Classifier
}

// New builds a Tribelog from the default rules unless overridden.
func New(opts ...Option) (*Tribelog, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	table := o.rules
	if table == nil {
		var err error
		table, err = rules.Load(o.rulesFile)
		if err != nil {
			return nil, fmt.Errorf("tribelog: %w", err)
		}
	}
	cls, err := classifier.New(table, classifier.WithQualifiers(o.qualifiers...))
	if err != nil {
		return nil, fmt.Errorf("tribelog: %w", err)
	}
	return &Tribelog{engine: engine.New(cls), classifier: cls}, nil
}

// Classify returns the category text falls into, or false.
func (t *Tribelog) Classify(text string) (string, bool) {
	cat, ok := t.classifier.Classify(text)
	return string(cat), ok
}

// Events extracts every record from buf and returns those that match, in
// file order.
func (t *Tribelog) Events(buf []byte) []Event {
	out := t.engine.Process(buf)
	events := make([]Event, len(out.Events))
	for i, ev := range out.Events {
		events[i] = Event{
			Category: string(ev.Category),
			Offset:   ev.Offset,
			Raw:      ev.RawText,
			Text:     ev.CleanedText,
		}
	}
	return events
}

// Extract decodes the record table of buf. complete is false when decoding
// stopped at a malformed frame; the records before it are still returned.
func Extract(buf []byte) (records []Record, complete bool) {
	res := extractor.Extract(buf)
	records = make([]Record, len(res.Records))
	for i, r := range res.Records {
		records[i] = Record{Offset: r.Offset, Text: r.Text}
	}
	return records, res.Complete()
}

// Clean strips timestamps, markup and metadata lines from a log string.
func Clean(text string) string {
	return classifier.Clean(text)
}
