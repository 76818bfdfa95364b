package fetcher

import (
	"fmt"
	"sort"
)

// Constructor builds a Fetcher from its configuration.
type Constructor func(cfg Config) (Fetcher, error)

var registry = map[string]Constructor{}

// Register adds a fetcher constructor under the given provider name.
func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

// Get returns the fetcher constructor for the given provider name.
func Get(name string) (Constructor, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown fetcher provider: %s", name)
	}
	return ctor, nil
}

// New resolves cfg.Provider and constructs the fetcher.
func New(cfg Config) (Fetcher, error) {
	ctor, err := Get(cfg.Provider)
	if err != nil {
		return nil, err
	}
	return ctor(cfg)
}

// Providers returns the names of all registered providers, sorted.
func Providers() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
