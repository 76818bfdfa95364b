// Package config loads settings from TRIBEWATCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/crimson-sun/tribewatch/internal/engine/dedup"
	"github.com/crimson-sun/tribewatch/internal/fetcher"
	"github.com/crimson-sun/tribewatch/internal/model"
)

// Prefix is prepended to every environment variable name.
const Prefix = "TRIBEWATCH_"

// Config holds all tribewatch configuration.
type Config struct {
	Poll    PollConfig
	Source  SourceConfig
	Engine  EngineConfig
	Notify  NotifyConfig
	Runtime RuntimeConfig
}

// PollConfig holds cycle timing.
type PollConfig struct {
	Interval     time.Duration `env:"POLL_INTERVAL" envDefault:"30s"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"20s"`
	SendTimeout  time.Duration `env:"SEND_TIMEOUT" envDefault:"10s"`
}

// SourceConfig selects and configures the fetcher.
type SourceConfig struct {
	Provider   string `env:"SOURCE" envDefault:"sftp"`
	RemotePath string `env:"REMOTE_PATH"`
	MaxBytes   int64  `env:"MAX_FILE_BYTES" envDefault:"67108864"`

	SFTPHost       string `env:"SFTP_HOST"`
	SFTPPort       int    `env:"SFTP_PORT" envDefault:"22"`
	SFTPUser       string `env:"SFTP_USER"`
	SFTPPassword   string `env:"SFTP_PASSWORD"`
	SFTPKeyFile    string `env:"SFTP_KEY_FILE"`
	SFTPKeyPass    string `env:"SFTP_KEY_PASSPHRASE"`
	SFTPKnownHosts string `env:"SFTP_KNOWN_HOSTS"`

	HTTPURL   string `env:"HTTP_URL"`
	HTTPToken string `env:"HTTP_TOKEN"`
}

// EngineConfig holds classification and dedup settings.
type EngineConfig struct {
	RulesFile    string   `env:"RULES_FILE"`
	Qualifiers   []string `env:"QUALIFIERS"`
	Baseline     bool     `env:"BASELINE" envDefault:"true"`
	SeenCapacity int      `env:"SEEN_CAPACITY" envDefault:"0"`
}

// NotifyConfig holds notification sink settings.
type NotifyConfig struct {
	Categories  []string `env:"NOTIFY_CATEGORIES" envDefault:"death"`
	WebhookURL  string   `env:"DISCORD_WEBHOOK_URL"`
	Username    string   `env:"DISCORD_USERNAME"`
	Rate        float64  `env:"NOTIFY_RATE" envDefault:"0.5"`
	Burst       int      `env:"NOTIFY_BURST" envDefault:"5"`
	DryRun      bool     `env:"DRY_RUN"`
	JournalPath string   `env:"JOURNAL_PATH"`
	RetryQueue  bool     `env:"RETRY_QUEUE"`
}

// RuntimeConfig holds process-level settings.
type RuntimeConfig struct {
	MetricsAddr string `env:"METRICS_ADDR"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads configuration from the environment. It does not validate;
// callers apply flag overrides first and then call Validate.
func Load() (Config, error) {
	return load(env.Options{Prefix: Prefix})
}

func load(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate reports every missing or inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Poll.Interval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if c.Poll.FetchTimeout < 0 || c.Poll.SendTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}

	switch c.Source.Provider {
	case "sftp":
		if c.Source.SFTPHost == "" {
			errs = append(errs, errors.New("SFTP_HOST is required for the sftp source"))
		}
		if c.Source.SFTPUser == "" {
			errs = append(errs, errors.New("SFTP_USER is required for the sftp source"))
		}
		if c.Source.SFTPPassword == "" && c.Source.SFTPKeyFile == "" {
			errs = append(errs, errors.New("SFTP_PASSWORD or SFTP_KEY_FILE is required for the sftp source"))
		}
		if c.Source.RemotePath == "" {
			errs = append(errs, errors.New("REMOTE_PATH is required"))
		}
	case "http":
		if c.Source.HTTPURL == "" {
			errs = append(errs, errors.New("HTTP_URL is required for the http source"))
		}
	case "file":
		if c.Source.RemotePath == "" {
			errs = append(errs, errors.New("REMOTE_PATH is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SOURCE %q", c.Source.Provider))
	}

	if !c.Notify.DryRun && c.Notify.WebhookURL == "" {
		errs = append(errs, errors.New("DISCORD_WEBHOOK_URL is required unless DRY_RUN is set"))
	}
	if c.Notify.Rate < 0 || c.Notify.Burst < 0 {
		errs = append(errs, errors.New("NOTIFY_RATE and NOTIFY_BURST must not be negative"))
	}
	if len(c.NotifyCategories()) == 0 {
		errs = append(errs, errors.New("NOTIFY_CATEGORIES must name at least one category"))
	}
	if c.Engine.SeenCapacity < 0 {
		errs = append(errs, errors.New("SEEN_CAPACITY must not be negative"))
	}
	return errors.Join(errs...)
}

// Dedup returns the seen-set settings. A single-cycle run never gets past
// the baseline, so it disables it and reports every matching record.
func (c Config) Dedup(singleCycle bool) dedup.Config {
	return dedup.Config{
		Baseline: c.Engine.Baseline && !singleCycle,
		Capacity: c.Engine.SeenCapacity,
	}
}

// NotifyCategories returns the normalized categories to forward.
func (c Config) NotifyCategories() []model.Category {
	var out []model.Category
	for _, s := range c.Notify.Categories {
		if cat := model.ParseCategory(s); cat != "" {
			out = append(out, cat)
		}
	}
	return out
}

// Qualifiers returns the non-blank qualifier tokens.
func (c Config) Qualifiers() []string {
	var out []string
	for _, q := range c.Engine.Qualifiers {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

// FetcherConfig maps the source settings onto the provider-neutral
// fetcher configuration.
func (c Config) FetcherConfig() fetcher.Config {
	s := c.Source
	fc := fetcher.Config{
		Provider: s.Provider,
		Path:     s.RemotePath,
		MaxBytes: s.MaxBytes,
	}
	switch s.Provider {
	case "sftp":
		fc.Endpoint = net.JoinHostPort(s.SFTPHost, strconv.Itoa(s.SFTPPort))
		fc.User = s.SFTPUser
		fc.Secret = s.SFTPPassword
		fc.Extra = map[string]string{}
		if s.SFTPKeyFile != "" {
			fc.Extra["key_file"] = s.SFTPKeyFile
		}
		if s.SFTPKeyPass != "" {
			fc.Extra["key_passphrase"] = s.SFTPKeyPass
		}
		if s.SFTPKnownHosts != "" {
			fc.Extra["known_hosts"] = s.SFTPKnownHosts
		}
	case "http":
		fc.Endpoint = s.HTTPURL
		fc.Secret = s.HTTPToken
	}
	return fc
}
