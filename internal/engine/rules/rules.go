// Package rules defines the ordered classification table: a list of
// categories, each with the patterns that select it. Table order is
// significant; the first category with a matching pattern wins.
package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/tribewatch/internal/model"
)

// RegexPrefix marks a pattern as a regular expression rather than a
// plain substring.
const RegexPrefix = "re:"

// Rule maps one category to the patterns that select it.
type Rule struct {
	Category model.Category `yaml:"category"`
	Patterns []string       `yaml:"patterns"`
}

// Table is an ordered list of rules.
type Table []Rule

// File is the on-disk YAML layout of a rule table.
//
//	rules:
//	  - category: death
//	    patterns: ["was killed by", "re:\\bdied\\b"]
type File struct {
	Rules Table `yaml:"rules"`
}

// Categories returns the table's categories in evaluation order.
func (t Table) Categories() []model.Category {
	out := make([]model.Category, len(t))
	for i, r := range t {
		out[i] = r.Category
	}
	return out
}

// Validate checks that every rule names a category, has at least one
// pattern, that regex patterns compile, and that no category repeats.
func (t Table) Validate() error {
	if len(t) == 0 {
		return errors.New("rules: table is empty")
	}
	seen := make(map[model.Category]bool, len(t))
	var errs []error
	for i, r := range t {
		if r.Category == "" {
			errs = append(errs, fmt.Errorf("rules[%d]: missing category", i))
			continue
		}
		if seen[r.Category] {
			errs = append(errs, fmt.Errorf("rules[%d]: duplicate category %q", i, r.Category))
		}
		seen[r.Category] = true
		if len(r.Patterns) == 0 {
			errs = append(errs, fmt.Errorf("rules[%d] %s: no patterns", i, r.Category))
		}
		for j, p := range r.Patterns {
			if strings.TrimSpace(strings.TrimPrefix(p, RegexPrefix)) == "" {
				errs = append(errs, fmt.Errorf("rules[%d] %s: pattern %d is empty", i, r.Category, j))
				continue
			}
			if expr, ok := strings.CutPrefix(p, RegexPrefix); ok {
				if _, err := regexp.Compile(expr); err != nil {
					errs = append(errs, fmt.Errorf("rules[%d] %s: pattern %d: %w", i, r.Category, j, err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// Parse decodes a YAML rule table and validates it.
func Parse(data []byte) (Table, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("rules: parse: %w", err)
	}
	for i := range f.Rules {
		f.Rules[i].Category = model.ParseCategory(string(f.Rules[i].Category))
	}
	if err := f.Rules.Validate(); err != nil {
		return nil, err
	}
	return f.Rules, nil
}

// LoadFile reads and parses a YAML rule table from path.
func LoadFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	return Parse(data)
}

// Load returns the table at path, or DefaultRules when path is empty.
func Load(path string) (Table, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	return LoadFile(path)
}
