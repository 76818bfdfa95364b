package rules

import "github.com/crimson-sun/tribewatch/internal/model"

// DefaultRules returns the built-in table for tribe logs. Death is first so
// a line that also mentions a tame or claim is still reported as a death.
func DefaultRules() Table {
	return Table{
		{
			Category: model.Death,
			Patterns: []string{
				"was killed by",
				"was killed!",
				"was slain by",
				RegexPrefix + `\bdied\b`,
				"destroyed by",
				"starved to death",
			},
		},
		{
			Category: model.Tamed,
			Patterns: []string{
				RegexPrefix + `\btamed an? `,
			},
		},
		{
			Category: model.Demolished,
			Patterns: []string{
				RegexPrefix + `\bdemolished an? `,
			},
		},
		// unclaimed must be evaluated before claimed.
		{
			Category: model.Unclaimed,
			Patterns: []string{
				RegexPrefix + `\bunclaimed '`,
			},
		},
		{
			Category: model.Claimed,
			Patterns: []string{
				RegexPrefix + `\bclaimed '`,
			},
		},
	}
}
