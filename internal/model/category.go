package model

import "strings"

// Category is an event class assigned by the rule table.
type Category string

const (
	Death      Category = "death"
	Tamed      Category = "tamed"
	Demolished Category = "demolished"
	Claimed    Category = "claimed"
	Unclaimed  Category = "unclaimed"
)

// ParseCategory normalizes a category name from configuration.
func ParseCategory(s string) Category {
	return Category(strings.ToLower(strings.TrimSpace(s)))
}
