// Package discord posts notifications to a Discord channel webhook.
package discord

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/crimson-sun/tribewatch/internal/httpclient"
	"github.com/crimson-sun/tribewatch/internal/notify"
)

const (
	// maxContentLen is Discord's limit for a message's content field, in runes.
	maxContentLen = 2000

	defaultTimeout = 10 * time.Second
	defaultRate    = rate.Limit(0.5)
	defaultBurst   = 5
)

// Option configures a Sink.
type Option func(*Sink)

// WithUsername overrides the webhook's display name.
func WithUsername(name string) Option {
	return func(s *Sink) { s.username = name }
}

// WithRate limits sends to r per second with the given burst. Default: 0.5/s, burst 5.
func WithRate(r rate.Limit, burst int) Option {
	return func(s *Sink) { s.limiter = rate.NewLimiter(r, burst) }
}

// WithClientOptions passes options to the underlying HTTP client.
func WithClientOptions(opts ...httpclient.Option) Option {
	return func(s *Sink) { s.clientOpts = append(s.clientOpts, opts...) }
}

// Sink posts each message as a webhook execution. 429 and 5xx responses are
// retried by the HTTP client; the limiter keeps bursts under Discord's
// per-webhook rate limit.
type Sink struct {
	client     *httpclient.Client
	username   string
	limiter    *rate.Limiter
	clientOpts []httpclient.Option
}

type payload struct {
	Content         string          `json:"content"`
	Username        string          `json:"username,omitempty"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

// allowedMentions with an empty Parse list stops log text such as "@everyone"
// from pinging the channel.
type allowedMentions struct {
	Parse []string `json:"parse"`
}

// New creates a Discord sink for webhookURL.
func New(webhookURL string, opts ...Option) (*Sink, error) {
	if webhookURL == "" {
		return nil, errors.New("discord: missing webhook URL")
	}
	s := &Sink{limiter: rate.NewLimiter(defaultRate, defaultBurst)}
	for _, opt := range opts {
		opt(s)
	}
	clientOpts := append([]httpclient.Option{httpclient.WithTimeout(defaultTimeout)}, s.clientOpts...)
	s.client = httpclient.New(webhookURL, "", clientOpts...)
	return s, nil
}

// Send waits for the rate limiter, then posts text, truncated to Discord's
// content limit.
func (s *Sink) Send(ctx context.Context, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return &notify.SendError{Sink: "discord", Err: err}
	}
	p := payload{
		Content:         truncate(text, maxContentLen),
		Username:        s.username,
		AllowedMentions: allowedMentions{Parse: []string{}},
	}
	if err := s.client.PostJSON(ctx, "", p); err != nil {
		return &notify.SendError{Sink: "discord", Err: err}
	}
	return nil
}

func (s *Sink) Close() error {
	return nil
}

// truncate shortens s to at most maxLen runes, marking the cut with "...".
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
