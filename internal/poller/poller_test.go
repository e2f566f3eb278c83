package poller

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fleetglobe/internal/feed"
	"fleetglobe/internal/model"
	"fleetglobe/internal/scene"
	"fleetglobe/internal/store"
)

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)) }

func fp(v float64) *float64 { return &v }

func drone(id int64, lat, lng float64) feed.AssetRecord {
	return feed.AssetRecord{ID: id, Latitude: fp(lat), Longitude: fp(lng), Status: "idle", Battery: 80}
}

// gatedSource serves assets from a queue of responses. Each call can be held
// on its own gate so tests control completion order.
type gatedSource struct {
	*store.Memory
	mu      sync.Mutex
	calls   int
	replies [][]feed.AssetRecord
	gates   []chan struct{}
	started chan int
}

func (g *gatedSource) ListAssets(ctx context.Context) ([]feed.AssetRecord, error) {
	g.mu.Lock()
	n := g.calls
	g.calls++
	g.mu.Unlock()
	if g.started != nil {
		g.started <- n
	}
	if n < len(g.gates) && g.gates[n] != nil {
		select {
		case <-g.gates[n]:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.replies[n], nil
}

func newPoller(src feed.Source, kinds ...feed.Kind) (*Poller, *scene.Reconciler) {
	r := scene.NewReconciler(scene.NewMemoryEngine(), scene.Options{ShowRegions: true}, quietLog())
	return New(Config{Kinds: kinds}, src, nil, r, quietLog()), r
}

func TestRefreshCommitsSnapshot(t *testing.T) {
	p, r := newPoller(store.NewDemo())
	if !p.Refresh(context.Background()) {
		t.Fatal("refresh not committed")
	}
	s := p.Snapshot()
	if s.Generation != 1 || len(s.Assets) != 4 || len(s.Regions) != 2 || len(s.Paths) != 2 {
		t.Fatalf("snapshot gen=%d assets=%d regions=%d paths=%d", s.Generation, len(s.Assets), len(s.Regions), len(s.Paths))
	}
	if r.Len() != 8 {
		t.Fatalf("reconciler has %d handles, want 8", r.Len())
	}
	st := p.Status()
	if st.Committed != 1 || st.RetryAdvised || len(st.Sources) != 4 {
		t.Fatalf("status %+v", st)
	}
}

func TestStaleResultIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	src := &gatedSource{
		Memory:  store.NewMemory(),
		replies: [][]feed.AssetRecord{{drone(1, 10, 10)}, {drone(2, 20, 20)}},
		gates:   []chan struct{}{gate, nil},
		started: make(chan int, 2),
	}
	p, r := newPoller(src, feed.KindAssets)

	first := make(chan bool)
	go func() { first <- p.Refresh(context.Background()) }()
	<-src.started // g1 is in flight

	if !p.Refresh(context.Background()) {
		t.Fatal("g2 should commit")
	}
	close(gate)
	if <-first {
		t.Fatal("g1 finished after g2 started and must be discarded")
	}

	s := p.Snapshot()
	if s.Generation != 2 || len(s.Assets) != 1 || s.Assets[0].ID != 2 {
		t.Fatalf("committed snapshot should be g2's: %+v", s)
	}
	if _, ok := r.Lookup("asset-1"); ok {
		t.Fatal("stale asset reached the scene")
	}
	if _, ok := r.Lookup("asset-2"); !ok {
		t.Fatal("fresh asset missing from the scene")
	}
}

func TestOlderCycleSettlingFirstIsStillDiscarded(t *testing.T) {
	gate1, gate2 := make(chan struct{}), make(chan struct{})
	src := &gatedSource{
		Memory:  store.NewMemory(),
		replies: [][]feed.AssetRecord{{drone(1, 10, 10)}, {drone(2, 20, 20)}},
		gates:   []chan struct{}{gate1, gate2},
		started: make(chan int, 2),
	}
	p, _ := newPoller(src, feed.KindAssets)

	r1, r2 := make(chan bool), make(chan bool)
	go func() { r1 <- p.Refresh(context.Background()) }()
	<-src.started
	go func() { r2 <- p.Refresh(context.Background()) }()
	<-src.started

	close(gate1)
	if <-r1 {
		t.Fatal("g1 committed although g2 had started")
	}
	close(gate2)
	if !<-r2 {
		t.Fatal("g2 should commit")
	}
	if got := p.Snapshot().Assets[0].ID; got != 2 {
		t.Fatalf("asset %d committed, want 2", got)
	}
}

func TestPartialFailureKeepsLastGood(t *testing.T) {
	mem := store.NewDemo()
	p, r := newPoller(mem)
	p.Refresh(context.Background())

	mem.SetError(feed.KindRegions, errors.New("403 forbidden"))
	mem.PutAsset(drone(9, 12.95, 77.6))
	if !p.Refresh(context.Background()) {
		t.Fatal("partial failure should still commit")
	}
	if _, ok := r.Lookup("asset-9"); !ok {
		t.Fatal("successful source not applied")
	}
	if _, ok := r.Lookup("region-1"); !ok {
		t.Fatal("failed source should keep its last good regions")
	}
	var regions SourceStatus
	for _, s := range p.Status().Sources {
		if s.Kind == feed.KindRegions {
			regions = s
		}
	}
	if regions.ConsecutiveFailures != 1 || regions.LastError == "" || regions.Records != 2 {
		t.Fatalf("regions status %+v", regions)
	}
}

func TestRetryAdvisedAfterRepeatedFailures(t *testing.T) {
	mem := store.NewDemo()
	mem.SetError(feed.KindAssets, errors.New("timeout"))
	r := scene.NewReconciler(scene.NewMemoryEngine(), scene.Options{}, quietLog())
	p := New(Config{Kinds: []feed.Kind{feed.KindAssets}, RetryAfterFailures: 2}, mem, nil, r, quietLog())

	p.Refresh(context.Background())
	if p.Status().RetryAdvised {
		t.Fatal("one failure should not advise retry")
	}
	p.Refresh(context.Background())
	if !p.Status().RetryAdvised {
		t.Fatal("two failures should advise retry")
	}
	mem.SetError(feed.KindAssets, nil)
	p.Refresh(context.Background())
	if st := p.Status(); st.RetryAdvised || st.Sources[0].ConsecutiveFailures != 0 {
		t.Fatalf("recovery not reflected: %+v", st)
	}
}

func TestCloseMakesInFlightCompletionNoop(t *testing.T) {
	gate := make(chan struct{})
	src := &gatedSource{
		Memory:  store.NewMemory(),
		replies: [][]feed.AssetRecord{{drone(1, 10, 10)}},
		gates:   []chan struct{}{gate},
		started: make(chan int, 1),
	}
	p, r := newPoller(src, feed.KindAssets)

	done := make(chan bool)
	go func() { done <- p.Refresh(context.Background()) }()
	<-src.started
	p.Close()
	close(gate)
	if <-done {
		t.Fatal("completion after Close committed")
	}
	if r.Len() != 0 {
		t.Fatalf("scene not empty after close: %d", r.Len())
	}
	if !p.Status().Closed {
		t.Fatal("status not closed")
	}
}

type countingSource struct {
	*store.Memory
	n atomic.Int32
}

func (c *countingSource) ListAssets(ctx context.Context) ([]feed.AssetRecord, error) {
	c.n.Add(1)
	return c.Memory.ListAssets(ctx)
}

func TestRunRearmsAndTriggers(t *testing.T) {
	src := &countingSource{Memory: store.NewDemo()}
	r := scene.NewReconciler(scene.NewMemoryEngine(), scene.Options{}, quietLog())
	p := New(Config{Kinds: []feed.Kind{feed.KindAssets}, Interval: time.Hour}, src, nil, r, quietLog())

	var commits atomic.Int32
	committed := make(chan struct{}, 4)
	p.OnCommit(func(model.Snapshot) {
		commits.Add(1)
		committed <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(stopped)
	}()

	waitCommit(t, committed)
	p.Trigger()
	waitCommit(t, committed)

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if got := src.n.Load(); got != 2 {
		t.Fatalf("want 2 fetches (initial + trigger), got %d", got)
	}
	if commits.Load() != 2 {
		t.Fatalf("want 2 commits, got %d", commits.Load())
	}
}

func waitCommit(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for commit")
	}
}

func TestRoutesWithoutOrdersRenderDirectly(t *testing.T) {
	p, r := newPoller(store.NewDemo(), feed.KindAssets, feed.KindRoutes)
	p.Refresh(context.Background())
	if _, ok := r.Lookup("path-101"); !ok {
		t.Fatal("route should render keyed by its order")
	}
	if _, ok := r.Lookup("path-102"); ok {
		t.Fatal("no orders fetched, nothing to synthesize")
	}
}

func TestRoutesRenderWhileOrdersNeverFetched(t *testing.T) {
	mem := store.NewDemo()
	mem.SetError(feed.KindOrders, errors.New("403 forbidden"))
	p, r := newPoller(mem)
	if !p.Refresh(context.Background()) {
		t.Fatal("refresh not committed")
	}
	if _, ok := r.Lookup("path-101"); !ok {
		t.Fatal("fetched route dropped while orders are failing")
	}
	if _, ok := r.Lookup("path-102"); ok {
		t.Fatal("no orders yet, nothing to synthesize")
	}

	mem.SetError(feed.KindOrders, nil)
	p.Refresh(context.Background())
	if _, ok := r.Lookup("path-102"); !ok {
		t.Fatal("pending order should be synthesized once orders arrive")
	}

	// Orders failing later keep the last good batch and per-order resolution.
	mem.SetError(feed.KindOrders, errors.New("timeout"))
	p.Refresh(context.Background())
	if _, ok := r.Lookup("path-102"); !ok {
		t.Fatal("last good orders should still drive synthesis")
	}
}
