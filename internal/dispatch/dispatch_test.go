package dispatch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/profile-plausibility/internal/analysis"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/cache"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/monitoring"
)

type countingAnalyzer struct {
	calls atomic.Int64
	inner *analysis.Analyzer
}

func (a *countingAnalyzer) AnalyzeToken(token string) analysis.Report {
	a.calls.Add(1)
	return a.inner.AnalyzeToken(token)
}

func newCountingAnalyzer() *countingAnalyzer {
	return &countingAnalyzer{inner: analysis.NewAnalyzer()}
}

func noDelay() time.Duration { return 0 }

// delaySequence hands out the given delays in order, then zero
func delaySequence(delays ...time.Duration) func() time.Duration {
	var mu sync.Mutex
	return func() time.Duration {
		mu.Lock()
		defer mu.Unlock()
		if len(delays) == 0 {
			return 0
		}
		d := delays[0]
		delays = delays[1:]
		return d
	}
}

func TestSubmitReturnsCoreReport(t *testing.T) {
	d := New(analysis.NewAnalyzer(), nil, nil, Config{}, WithDelayFunc(noDelay))

	report, err := d.Submit(context.Background(), "s1", "https://www.linkedin.com/in/johndoe")
	require.NoError(t, err)
	assert.Equal(t, analysis.AnalyzeInput("https://www.linkedin.com/in/johndoe"), report)
	assert.False(t, d.Pending("s1"))
}

func TestNewerSubmissionSupersedesPending(t *testing.T) {
	metrics := monitoring.NewMetrics()
	d := New(analysis.NewAnalyzer(), nil, metrics, Config{},
		WithDelayFunc(delaySequence(200*time.Millisecond)))

	firstErr := make(chan error, 1)
	go func() {
		_, err := d.Submit(context.Background(), "session", "https://www.linkedin.com/in/first")
		firstErr <- err
	}()

	require.Eventually(t, func() bool { return d.Pending("session") }, time.Second, time.Millisecond)

	report, err := d.Submit(context.Background(), "session", "https://www.linkedin.com/in/second")
	require.NoError(t, err)
	assert.Equal(t, analysis.AnalyzeInput("second"), report)

	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("first submission never returned")
	}

	assert.Equal(t, int64(1), metrics.AnalysesCompleted)
	assert.Equal(t, int64(1), metrics.AnalysesSuperseded)
	assert.False(t, d.Pending("session"))
}

func TestSessionsAreIndependent(t *testing.T) {
	d := New(analysis.NewAnalyzer(), nil, nil, Config{},
		WithDelayFunc(delaySequence(100*time.Millisecond)))

	done := make(chan error, 1)
	go func() {
		_, err := d.Submit(context.Background(), "a", "alice")
		done <- err
	}()
	require.Eventually(t, func() bool { return d.Pending("a") }, time.Second, time.Millisecond)

	_, err := d.Submit(context.Background(), "b", "bob")
	require.NoError(t, err)
	assert.NoError(t, <-done)
}

func TestEmptySessionNeverSupersedes(t *testing.T) {
	d := New(analysis.NewAnalyzer(), nil, nil, Config{},
		WithDelayFunc(delaySequence(50*time.Millisecond, 50*time.Millisecond)))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = d.Submit(context.Background(), "", "anonymous")
		}(i)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.False(t, d.Pending(""))
}

func TestCancelledContextAbandonsWait(t *testing.T) {
	metrics := monitoring.NewMetrics()
	d := New(analysis.NewAnalyzer(), nil, metrics, Config{},
		WithDelayFunc(func() time.Duration { return time.Hour }))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := d.Submit(ctx, "s", "johndoe")
		errCh <- err
	}()

	require.Eventually(t, func() bool { return d.Pending("s") }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancel did not interrupt the wait")
	}
	assert.False(t, d.Pending("s"))
	assert.Equal(t, int64(1), metrics.AnalysesCancelled)
}

func TestCancelDoesNotClearNewerTicket(t *testing.T) {
	d := New(analysis.NewAnalyzer(), nil, nil, Config{},
		WithDelayFunc(func() time.Duration { return time.Hour }))

	oldTicket := d.register("s")
	newTicket := d.register("s")

	assert.False(t, d.release("s", oldTicket))
	assert.True(t, d.Pending("s"))
	assert.True(t, d.release("s", newTicket))
	assert.False(t, d.Pending("s"))
}

func TestTicketsAreMonotonic(t *testing.T) {
	d := New(analysis.NewAnalyzer(), nil, nil, Config{})

	var last uint64
	for i := 0; i < 100; i++ {
		ticket := d.register("s")
		assert.Greater(t, ticket, last)
		last = ticket
	}
}

func TestCacheAndCoalescing(t *testing.T) {
	analyzer := newCountingAnalyzer()
	reports := cache.NewCache(time.Minute)
	defer reports.Close()

	d := New(analyzer, reports, nil, Config{}, WithDelayFunc(noDelay))

	var wg sync.WaitGroup
	results := make([]analysis.Report, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// distinct sessions, same token
			report, err := d.Submit(context.Background(), string(rune('a'+i)), "https://linkedin.com/in/JohnDoe/")
			assert.NoError(t, err)
			results[i] = report
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), analyzer.calls.Load())
	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
	assert.Equal(t, 1, reports.Size())
}

func TestCacheOperationsAreLogged(t *testing.T) {
	reports := cache.NewCache(time.Minute)
	defer reports.Close()

	var buf bytes.Buffer
	logger := monitoring.NewLoggerWithWriter(&buf, slog.LevelDebug)
	d := New(newCountingAnalyzer(), reports, nil, Config{}, WithDelayFunc(noDelay), WithLogger(logger))

	for i := 0; i < 2; i++ {
		_, err := d.Submit(context.Background(), "s", "https://linkedin.com/in/johndoe")
		require.NoError(t, err)
	}

	type cacheEntry struct {
		Operation string `json:"operation"`
		Hit       bool   `json:"hit"`
		KeyHash   string `json:"key_hash"`
		CacheSize int    `json:"cache_size"`
	}
	var entries []cacheEntry
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		if line["msg"] != "Cache Operation" {
			continue
		}
		var entry cacheEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}

	require.Len(t, entries, 3)
	assert.Equal(t, cacheEntry{"get", false, cache.KeyFor("johndoe")[:8] + "...", 0}, entries[0])
	assert.Equal(t, cacheEntry{"set", false, cache.KeyFor("johndoe")[:8] + "...", 1}, entries[1])
	assert.Equal(t, cacheEntry{"get", true, cache.KeyFor("johndoe")[:8] + "...", 1}, entries[2])
}

func TestRandomDelayBounds(t *testing.T) {
	cfg := Config{MinDelay: 1500 * time.Millisecond, Jitter: time.Second}
	for i := 0; i < 200; i++ {
		delay := randomDelay(cfg)
		assert.GreaterOrEqual(t, delay, cfg.MinDelay)
		assert.Less(t, delay, cfg.MinDelay+cfg.Jitter)
	}

	assert.Equal(t, time.Duration(0), randomDelay(Config{}))
	assert.Equal(t, 2*time.Second, randomDelay(Config{MinDelay: 2 * time.Second}))
	assert.Equal(t, DefaultConfig(), cfg)
}
