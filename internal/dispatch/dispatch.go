// Package dispatch runs analyses after a randomized delay and discards
// results that a newer submission from the same session has replaced.
package dispatch

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ZanzyTHEbar/profile-plausibility/internal/analysis"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/cache"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/monitoring"
)

// ErrSuperseded is returned to a request whose session submitted again
// before its delay elapsed.
var ErrSuperseded = errors.New("dispatch: superseded by a newer request")

// Analyzer computes a report from an extracted token
type Analyzer interface {
	AnalyzeToken(token string) analysis.Report
}

// ReportCache stores reports by token key
type ReportCache interface {
	Get(key string) (analysis.Report, bool)
	Set(key string, report analysis.Report)
	Size() int
}

// Metrics receives dispatch outcomes
type Metrics interface {
	IncrementAnalysisCompleted()
	IncrementAnalysisSuperseded()
	IncrementAnalysisCancelled()
}

// Config controls the artificial latency. Each request waits
// MinDelay plus a uniform draw from [0, Jitter).
type Config struct {
	MinDelay time.Duration
	Jitter   time.Duration
}

// DefaultConfig matches the latency of the interactive form
func DefaultConfig() Config {
	return Config{
		MinDelay: 1500 * time.Millisecond,
		Jitter:   time.Second,
	}
}

// Dispatcher schedules analyses per session
type Dispatcher struct {
	analyzer Analyzer
	cache    ReportCache
	metrics  Metrics
	logger   *monitoring.Logger
	delay    func() time.Duration

	tickets atomic.Uint64
	mu      sync.Mutex
	latest  map[string]uint64

	group singleflight.Group
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithLogger logs every outcome
func WithLogger(logger *monitoring.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithDelayFunc replaces the randomized delay
func WithDelayFunc(fn func() time.Duration) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.delay = fn
		}
	}
}

// New creates a dispatcher. reportCache and metrics may be nil.
func New(analyzer Analyzer, reportCache ReportCache, metrics Metrics, cfg Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		analyzer: analyzer,
		cache:    reportCache,
		metrics:  metrics,
		latest:   make(map[string]uint64),
	}
	d.delay = func() time.Duration {
		return randomDelay(cfg)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func randomDelay(cfg Config) time.Duration {
	delay := cfg.MinDelay
	if cfg.Jitter > 0 {
		delay += rand.N(cfg.Jitter)
	}
	if delay < 0 {
		return 0
	}
	return delay
}

// Submit waits the configured delay and then returns the report for
// identifier. If the same session submits again before the wait ends,
// this call returns ErrSuperseded instead. Requests with an empty session
// never supersede each other. Cancelling ctx abandons the wait.
func (d *Dispatcher) Submit(ctx context.Context, session, identifier string) (analysis.Report, error) {
	start := time.Now()
	wait := d.delay()
	ticket := d.register(session)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		d.release(session, ticket)
		d.record(session, identifier, "cancelled", analysis.Report{}, start, false)
		if d.metrics != nil {
			d.metrics.IncrementAnalysisCancelled()
		}
		return analysis.Report{}, ctx.Err()
	case <-timer.C:
	}

	if !d.release(session, ticket) {
		d.record(session, identifier, "superseded", analysis.Report{}, start, false)
		if d.metrics != nil {
			d.metrics.IncrementAnalysisSuperseded()
		}
		return analysis.Report{}, ErrSuperseded
	}

	report, cacheHit := d.compute(analysis.ExtractToken(identifier))
	d.record(session, identifier, "completed", report, start, cacheHit)
	if d.metrics != nil {
		d.metrics.IncrementAnalysisCompleted()
	}
	return report, nil
}

// Pending reports whether session has a submission still waiting
func (d *Dispatcher) Pending(session string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.latest[session]
	return ok
}

func (d *Dispatcher) register(session string) uint64 {
	ticket := d.tickets.Add(1)
	if session == "" {
		return ticket
	}

	d.mu.Lock()
	d.latest[session] = ticket
	d.mu.Unlock()
	return ticket
}

// release clears the session's entry if ticket is still its latest and
// reports whether it was.
func (d *Dispatcher) release(session string, ticket uint64) bool {
	if session == "" {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.latest[session] != ticket {
		return false
	}
	delete(d.latest, session)
	return true
}

func (d *Dispatcher) compute(token string) (analysis.Report, bool) {
	if d.cache == nil {
		return d.analyzer.AnalyzeToken(token), false
	}

	key := cache.KeyFor(token)
	if report, ok := d.cache.Get(key); ok {
		d.logCache("get", key, true)
		return report, true
	}
	d.logCache("get", key, false)

	v, _, _ := d.group.Do(key, func() (interface{}, error) {
		if report, ok := d.cache.Get(key); ok {
			return report, nil
		}
		report := d.analyzer.AnalyzeToken(token)
		d.cache.Set(key, report)
		d.logCache("set", key, false)
		return report, nil
	})
	return v.(analysis.Report), false
}

func (d *Dispatcher) logCache(operation, key string, hit bool) {
	if d.logger == nil {
		return
	}
	d.logger.CacheLogger(operation, key, hit, d.cache.Size())
}

func (d *Dispatcher) record(session, identifier, outcome string, report analysis.Report, start time.Time, cacheHit bool) {
	if d.logger == nil {
		return
	}
	d.logger.AnalysisLogger(session, len(analysis.ExtractToken(identifier)), outcome,
		report.CredibilityScore, time.Since(start), cacheHit)
}
