// Package poller drives the fetch, extract, classify, dedup and notify
// cycle on a fixed interval.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/crimson-sun/tribewatch/internal/engine"
	"github.com/crimson-sun/tribewatch/internal/engine/dedup"
	"github.com/crimson-sun/tribewatch/internal/fetcher"
	"github.com/crimson-sun/tribewatch/internal/metrics"
	"github.com/crimson-sun/tribewatch/internal/model"
	"github.com/crimson-sun/tribewatch/internal/notify"
)

// Recorder receives cycle statistics. *metrics.Metrics implements it.
type Recorder interface {
	CycleCompleted(result string, d time.Duration)
	Fetched(bytes, records int, malformed bool)
	NewEvent(category string)
	Notified(ok bool)
	SeenSize(n int)
}

type nopRecorder struct{}

func (nopRecorder) CycleCompleted(string, time.Duration) {}
func (nopRecorder) Fetched(int, int, bool)               {}
func (nopRecorder) NewEvent(string)                      {}
func (nopRecorder) Notified(bool)                        {}
func (nopRecorder) SeenSize(int)                         {}

// Config holds the timing and routing settings of a Poller.
type Config struct {
	Interval     time.Duration
	FetchTimeout time.Duration // 0 disables the per-fetch deadline
	SendTimeout  time.Duration // 0 disables the per-send deadline
	// Notify lists the categories forwarded to the sink. Events of other
	// categories are still marked seen.
	Notify []model.Category
}

// CycleReport summarises one RunCycle call. Sent counts messages the sink
// accepted; for a queueing sink that is enqueue, not delivery.
type CycleReport struct {
	Cycle        uint64
	Bytes        int
	Records      int
	Matched      int
	New          int
	Sent         int
	SendFailures int
	Malformed    bool
	Baseline     bool
	Err          error
	Duration     time.Duration
}

// Option configures a Poller.
type Option func(*Poller)

// WithRecorder sets the statistics recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Poller) { p.recorder = r }
}

// WithScheduler replaces the default IntervalScheduler.
func WithScheduler(s Scheduler) Option {
	return func(p *Poller) { p.scheduler = s }
}

// Poller owns the per-process monitoring state.
type Poller struct {
	fetcher   fetcher.Fetcher
	engine    *engine.Engine
	dedup     *dedup.Deduplicator
	sink      notify.Sink
	cfg       Config
	notify    map[model.Category]bool
	recorder  Recorder
	scheduler Scheduler
	cycle     atomic.Uint64
}

// New creates a Poller from its collaborators.
func New(f fetcher.Fetcher, eng *engine.Engine, d *dedup.Deduplicator, sink notify.Sink, cfg Config, opts ...Option) *Poller {
	p := &Poller{
		fetcher:   f,
		engine:    eng,
		dedup:     d,
		sink:      sink,
		cfg:       cfg,
		notify:    make(map[model.Category]bool, len(cfg.Notify)),
		recorder:  nopRecorder{},
		scheduler: NewIntervalScheduler(),
	}
	for _, c := range cfg.Notify {
		p.notify[c] = true
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is cancelled. A cycle in progress when ctx is
// cancelled has its fetch aborted; sends already under way complete.
func (p *Poller) Run(ctx context.Context) error {
	slog.Info("poller started",
		"fetcher", p.fetcher.Name(),
		"interval", p.cfg.Interval,
		"baseline", p.dedup.IsFirstRun(),
	)
	p.scheduler.Start(ctx, p.cfg.Interval, func(ctx context.Context) {
		p.RunCycle(ctx)
	})

	select {
	case <-ctx.Done():
	case <-p.scheduler.Done():
	}
	p.scheduler.Cancel()
	<-p.scheduler.Done()
	slog.Info("poller stopped", "cycles", p.cycle.Load())
	return nil
}

// RunCycle performs one fetch-to-notify pass. A fetch failure leaves all
// state untouched. Send failures are logged and counted, but the records
// stay marked seen.
func (p *Poller) RunCycle(ctx context.Context) CycleReport {
	start := time.Now()
	rep := CycleReport{Cycle: p.cycle.Add(1)}
	log := slog.With("cycle", rep.Cycle)

	buf, err := p.fetch(ctx)
	if err != nil {
		rep.Err = err
		rep.Duration = time.Since(start)
		log.Warn("fetch failed, skipping cycle", "fetcher", p.fetcher.Name(), "error", err)
		p.recorder.CycleCompleted(metrics.ResultFetchFailed, rep.Duration)
		return rep
	}

	out := p.engine.Process(buf)
	rep.Bytes = len(buf)
	rep.Records = len(out.Extraction.Records)
	rep.Matched = len(out.Events)
	if mf := out.Extraction.Malformed; mf != nil {
		rep.Malformed = true
		log.Warn("record table truncated", "offset", mf.Offset, "declared", mf.Declared, "records", rep.Records)
	}
	p.recorder.Fetched(rep.Bytes, rep.Records, rep.Malformed)

	rep.Baseline = p.dedup.IsFirstRun()
	fresh := p.dedup.FilterNew(out.Records())
	rep.New = len(fresh)
	p.recorder.SeenSize(p.dedup.Len())

	if rep.Baseline {
		log.Info("baseline established", "seen", p.dedup.Len(), "matched", rep.Matched)
	}

	byOffset := make(map[int]model.ClassifiedEvent, len(out.Events))
	for _, ev := range out.Events {
		byOffset[ev.Offset] = ev
	}

	sendCtx := context.WithoutCancel(ctx)
	for _, rec := range fresh {
		ev := byOffset[rec.Offset]
		p.recorder.NewEvent(string(ev.Category))
		if !p.notify[ev.Category] {
			log.Debug("event not forwarded", "category", ev.Category, "text", ev.CleanedText)
			continue
		}
		if ev.CleanedText == "" {
			log.Debug("event cleaned to nothing", "category", ev.Category, "raw", ev.RawText)
			continue
		}
		if err := p.send(sendCtx, ev.CleanedText); err != nil {
			rep.SendFailures++
			p.recorder.Notified(false)
			log.Error("notification failed", "category", ev.Category, "text", ev.CleanedText, "error", err)
			continue
		}
		rep.Sent++
		p.recorder.Notified(true)
	}

	rep.Duration = time.Since(start)
	result := metrics.ResultOK
	if rep.Baseline {
		result = metrics.ResultBaseline
	}
	p.recorder.CycleCompleted(result, rep.Duration)
	log.Info("cycle complete",
		"bytes", rep.Bytes,
		"records", rep.Records,
		"matched", rep.Matched,
		"new", rep.New,
		"sent", rep.Sent,
		"send_failures", rep.SendFailures,
		"duration", rep.Duration,
	)
	return rep
}

func (p *Poller) fetch(ctx context.Context) ([]byte, error) {
	if p.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.FetchTimeout)
		defer cancel()
	}
	buf, err := p.fetcher.Fetch(ctx)
	if err != nil {
		var te *fetcher.TransferError
		if !errors.As(err, &te) {
			err = &fetcher.TransferError{Provider: p.fetcher.Name(), Err: err}
		}
		return nil, err
	}
	return buf, nil
}

func (p *Poller) send(ctx context.Context, text string) error {
	if p.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.SendTimeout)
		defer cancel()
	}
	if err := p.sink.Send(ctx, text); err != nil {
		var se *notify.SendError
		if !errors.As(err, &se) {
			err = &notify.SendError{Sink: fmt.Sprintf("%T", p.sink), Err: err}
		}
		return err
	}
	return nil
}
