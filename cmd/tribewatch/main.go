// tribewatch polls a game server's binary tribe log, reports new deaths
// and other matching events to a Discord webhook, and exposes prometheus
// metrics about its progress.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/crimson-sun/tribewatch/internal/config"
	"github.com/crimson-sun/tribewatch/internal/engine"
	"github.com/crimson-sun/tribewatch/internal/engine/classifier"
	"github.com/crimson-sun/tribewatch/internal/engine/dedup"
	"github.com/crimson-sun/tribewatch/internal/engine/rules"
	"github.com/crimson-sun/tribewatch/internal/fetcher"
	"github.com/crimson-sun/tribewatch/internal/logging"
	"github.com/crimson-sun/tribewatch/internal/metrics"
	"github.com/crimson-sun/tribewatch/internal/notify"
	"github.com/crimson-sun/tribewatch/internal/notify/discord"
	"github.com/crimson-sun/tribewatch/internal/notify/file"
	"github.com/crimson-sun/tribewatch/internal/notify/multi"
	"github.com/crimson-sun/tribewatch/internal/notify/retry"
	"github.com/crimson-sun/tribewatch/internal/notify/stdout"
	"github.com/crimson-sun/tribewatch/internal/poller"

	// Register fetcher implementations.
	_ "github.com/crimson-sun/tribewatch/internal/fetcher/file"
	_ "github.com/crimson-sun/tribewatch/internal/fetcher/httpget"
	_ "github.com/crimson-sun/tribewatch/internal/fetcher/sftp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tribewatch: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var once bool
	flagSet := pflag.NewFlagSet("tribewatch", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.Engine.RulesFile, "rules", cfg.Engine.RulesFile, "YAML classification rules (default: built-in table)")
	flagSet.BoolVar(&once, "once", false, "run a single poll cycle without the baseline, reporting every matching event in the file, and exit (combine with --dry-run to inspect)")
	flagSet.BoolVar(&cfg.Notify.DryRun, "dry-run", cfg.Notify.DryRun, "print notifications to stdout instead of sending them")
	flagSet.StringVar(&cfg.Runtime.LogLevel, "log-level", cfg.Runtime.LogLevel, "debug, info, warn or error")
	flagSet.StringVar(&cfg.Runtime.MetricsAddr, "metrics-addr", cfg.Runtime.MetricsAddr, "listen address for /metrics and /health (empty disables)")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tribewatch [flags]\n\nSettings are read from %s* environment variables; flags override them.\nSources: %s\n\nFlags:\n",
			config.Prefix, strings.Join(fetcher.Providers(), ", "))
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	logging.Init(cfg.Runtime.LogFormat, logging.ParseLevel(cfg.Runtime.LogLevel))

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	table, err := rules.Load(cfg.Engine.RulesFile)
	if err != nil {
		return err
	}
	cls, err := classifier.New(table, classifier.WithQualifiers(cfg.Qualifiers()...))
	if err != nil {
		return err
	}

	src, err := fetcher.New(cfg.FetcherConfig())
	if err != nil {
		return err
	}

	m := metrics.New()
	sink, err := buildSink(cfg, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			slog.Warn("closing notification sink", "error", err)
		}
	}()

	p := poller.New(src, engine.New(cls),
		dedup.New(cfg.Dedup(once)),
		sink,
		poller.Config{
			Interval:     cfg.Poll.Interval,
			FetchTimeout: cfg.Poll.FetchTimeout,
			SendTimeout:  cfg.Poll.SendTimeout,
			Notify:       cfg.NotifyCategories(),
		},
		poller.WithRecorder(m),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if once {
		rep := p.RunCycle(ctx)
		slog.Info("single cycle done", "matched", rep.Matched, "sent", rep.Sent, "send_failures", rep.SendFailures)
		return rep.Err
	}

	slog.Info("tribewatch starting",
		"source", src.Name(),
		"categories", cfg.Notify.Categories,
		"rules", table.Categories(),
		"dry_run", cfg.Notify.DryRun,
	)

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Runtime.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.Runtime.MetricsAddr, m, 3*cfg.Poll.Interval+cfg.Poll.FetchTimeout)
		g.Go(func() error { return srv.Run(ctx) })
	}
	g.Go(func() error { return p.Run(ctx) })

	err = g.Wait()
	slog.Info("tribewatch stopped")
	return err
}

// buildSink assembles the notification destination: Discord, or stdout in
// dry-run mode, optionally behind a retry queue, fanned out with the
// journal when one is configured.
func buildSink(cfg config.Config, m *metrics.Metrics) (notify.Sink, error) {
	var primary notify.Sink
	if cfg.Notify.DryRun {
		primary = stdout.New()
	} else {
		limit := rate.Limit(cfg.Notify.Rate)
		if cfg.Notify.Rate == 0 {
			limit = rate.Inf
		}
		opts := []discord.Option{discord.WithRate(limit, cfg.Notify.Burst)}
		if cfg.Notify.Username != "" {
			opts = append(opts, discord.WithUsername(cfg.Notify.Username))
		}
		d, err := discord.New(cfg.Notify.WebhookURL, opts...)
		if err != nil {
			return nil, err
		}
		primary = d
	}
	if cfg.Notify.RetryQueue {
		primary = retry.New(primary,
			retry.WithSendTimeout(cfg.Poll.SendTimeout),
			retry.WithOnResult(m.Delivered),
		)
	}

	if cfg.Notify.JournalPath == "" {
		return primary, nil
	}
	journal, err := file.New(cfg.Notify.JournalPath)
	if err != nil {
		primary.Close()
		return nil, err
	}
	return multi.New(primary, journal), nil
}
