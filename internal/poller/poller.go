// Package poller refreshes the fleet snapshot from independent feed sources on
// a re-armed interval and commits only the most recently started cycle.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"fleetglobe/internal/feed"
	"fleetglobe/internal/metrics"
	"fleetglobe/internal/model"
	"fleetglobe/internal/scene"
)

const (
	DefaultInterval           = 10 * time.Second
	DefaultRetryAfterFailures = 3
)

// Applier receives committed snapshots. *scene.Reconciler implements it.
type Applier interface {
	Apply(s model.Snapshot) scene.Stats
}

type Config struct {
	// Kinds lists the collections this visualization needs.
	Kinds    []feed.Kind
	Interval time.Duration
	// RetryAfterFailures is how many consecutive failures of one source
	// flip Status.RetryAdvised.
	RetryAfterFailures int
	// FetchTimeout bounds each fetch when positive.
	FetchTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if len(c.Kinds) == 0 {
		c.Kinds = feed.AllKinds
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.RetryAfterFailures <= 0 {
		c.RetryAfterFailures = DefaultRetryAfterFailures
	}
	return c
}

// SourceStatus is the health of one collection.
type SourceStatus struct {
	Kind                feed.Kind `json:"kind"`
	Records             int       `json:"records"`
	LastError           string    `json:"lastError,omitempty"`
	LastSuccess         time.Time `json:"lastSuccess,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
}

// Status is the UI-facing view of the poller.
type Status struct {
	// Generation is the latest started cycle; Committed the last applied one.
	Generation   uint64         `json:"generation"`
	Committed    uint64         `json:"committed"`
	LastCommit   time.Time      `json:"lastCommit,omitempty"`
	LastStats    scene.Stats    `json:"lastStats"`
	Sources      []SourceStatus `json:"sources"`
	RetryAdvised bool           `json:"retryAdvised"`
	Closed       bool           `json:"closed"`
}

type Poller struct {
	cfg     Config
	src     feed.Source
	norm    *feed.Normalizer
	applier Applier
	log     *slog.Logger
	now     func() time.Time

	gen       atomic.Uint64
	trigger   chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex // guards everything below and serializes commits
	closed   bool
	last     feed.Batch
	ordersOK bool // orders have a last-good batch
	status   Status
	snapshot model.Snapshot
	hooks    []func(model.Snapshot)
}

func New(cfg Config, src feed.Source, norm *feed.Normalizer, applier Applier, log *slog.Logger) *Poller {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	if norm == nil {
		norm = feed.NewNormalizer(nil, log)
	}
	p := &Poller{
		cfg:     cfg,
		src:     src,
		norm:    norm,
		applier: applier,
		log:     log,
		now:     time.Now,
		trigger: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, k := range cfg.Kinds {
		p.status.Sources = append(p.status.Sources, SourceStatus{Kind: k})
	}
	return p
}

// OnCommit registers fn to run after every committed snapshot. Hooks run
// inside the commit and must not call back into the Poller.
func (p *Poller) OnCommit(fn func(model.Snapshot)) {
	p.mu.Lock()
	p.hooks = append(p.hooks, fn)
	p.mu.Unlock()
}

type result struct {
	kind  feed.Kind
	batch feed.Batch
	err   error
}

// Refresh runs one cycle and reports whether it was committed. A cycle is
// discarded when a newer one started before it settled or the poller closed.
func (p *Poller) Refresh(ctx context.Context) bool {
	g := p.gen.Add(1)

	results := make([]result, len(p.cfg.Kinds))
	var wg sync.WaitGroup
	for i, k := range p.cfg.Kinds {
		wg.Add(1)
		go func(i int, k feed.Kind) {
			defer wg.Done()
			fctx := ctx
			if p.cfg.FetchTimeout > 0 {
				var cancel context.CancelFunc
				fctx, cancel = context.WithTimeout(ctx, p.cfg.FetchTimeout)
				defer cancel()
			}
			start := time.Now()
			b, err := feed.Fetch(fctx, p.src, k)
			metrics.FetchDuration.WithLabelValues(string(k)).Observe(time.Since(start).Seconds())
			results[i] = result{kind: k, batch: b, err: err}
		}(i, k)
	}
	wg.Wait()

	return p.commit(g, results)
}

func (p *Poller) commit(g uint64, results []result) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || g != p.gen.Load() {
		metrics.PollCycles.WithLabelValues("stale").Inc()
		p.log.Debug("poll result discarded", "generation", g, "latest", p.gen.Load(), "closed", p.closed)
		return false
	}

	now := p.now()
	failed := 0
	for i, r := range results {
		st := &p.status.Sources[i]
		if r.err != nil {
			failed++
			st.ConsecutiveFailures++
			st.LastError = r.err.Error()
			metrics.SourceFailures.WithLabelValues(string(r.kind)).Inc()
			p.log.Warn("feed fetch failed, keeping last good records", "source", r.kind, "failures", st.ConsecutiveFailures, "err", r.err)
			continue
		}
		p.last.Take(r.kind, r.batch)
		if r.kind == feed.KindOrders {
			p.ordersOK = true
		}
		st.ConsecutiveFailures = 0
		st.LastError = ""
		st.LastSuccess = now
		st.Records = r.batch.Len()
	}

	// Without any orders yet, per-order resolution would drop every route.
	snap := p.norm.Snapshot(p.last, p.wants(feed.KindOrders) && p.ordersOK)
	snap.Generation = g
	snap.TakenAt = now
	var stats scene.Stats
	if p.applier != nil {
		stats = p.applier.Apply(snap)
	}
	p.snapshot = snap
	p.status.Committed = g
	p.status.LastCommit = now
	p.status.LastStats = stats
	p.status.RetryAdvised = false
	for _, st := range p.status.Sources {
		if st.ConsecutiveFailures >= p.cfg.RetryAfterFailures {
			p.status.RetryAdvised = true
		}
	}
	for _, fn := range p.hooks {
		fn(snap)
	}

	switch {
	case failed == 0:
		metrics.PollCycles.WithLabelValues("committed").Inc()
	case failed == len(results):
		metrics.PollCycles.WithLabelValues("failed").Inc()
	default:
		metrics.PollCycles.WithLabelValues("partial").Inc()
	}
	metrics.Generation.Set(float64(g))
	return true
}

func (p *Poller) wants(k feed.Kind) bool {
	for _, c := range p.cfg.Kinds {
		if c == k {
			return true
		}
	}
	return false
}

// Run refreshes immediately, then re-arms the interval after each cycle
// completes so a slow fetch never overlaps its own next tick. Trigger
// short-circuits the wait. Run returns when ctx is done or Close is called.
func (p *Poller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		default:
		}
		p.Refresh(ctx)

		t := time.NewTimer(p.cfg.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-p.done:
			t.Stop()
			return
		case <-p.trigger:
			t.Stop()
		case <-t.C:
		}
	}
}

// Trigger asks the run loop for an immediate refresh. Repeated calls before
// the loop wakes collapse into one.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Close stops the run loop and turns any in-flight completion into a no-op.
// If the applier can be closed (the reconciler), its handles are disposed.
func (p *Poller) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.status.Closed = true
		close(p.done)
		if c, ok := p.applier.(interface{ Close() scene.Stats }); ok {
			c.Close()
		}
		p.mu.Unlock()
	})
}

// Status returns a copy of the current status.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.status
	st.Generation = p.gen.Load()
	st.Sources = append([]SourceStatus(nil), p.status.Sources...)
	return st
}

// Snapshot returns the last committed snapshot.
func (p *Poller) Snapshot() model.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}
