// Package scene keeps a 3D engine's entity collection in step with the latest
// fleet snapshot.
package scene

import (
	"log/slog"
	"sort"
	"sync"

	"fleetglobe/internal/metrics"
	"fleetglobe/internal/model"
)

// Handle is a live engine entity as last applied.
type Handle struct {
	ID     HandleID `json:"handle"`
	Entity Entity   `json:"entity"`
}

// Options are the recognized viewer toggles.
type Options struct {
	ShowLabels  bool
	ShowRegions bool
}

// Stats counts the engine calls one Apply made.
type Stats struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Disposed  int `json:"disposed"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// Reconciler is the sole owner of the key -> handle map. Apply is the only
// path that mutates it; everything else is a read-only view.
type Reconciler struct {
	mu      sync.RWMutex
	engine  Engine
	handles map[string]Handle
	opts    Options
	log     *slog.Logger
}

func NewReconciler(engine Engine, opts Options, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{engine: engine, handles: map[string]Handle{}, opts: opts, log: log}
}

// desired holds the incoming entities of one kind, in snapshot order.
type desired struct {
	order []string
	byKey map[string]Entity
}

func (d *desired) add(e Entity) {
	if _, dup := d.byKey[e.Key]; !dup {
		d.order = append(d.order, e.Key)
	}
	d.byKey[e.Key] = e
}

func (r *Reconciler) build(s model.Snapshot) map[model.Kind]*desired {
	out := map[model.Kind]*desired{}
	for _, k := range model.Kinds {
		out[k] = &desired{byKey: map[string]Entity{}}
	}
	for _, a := range s.Assets {
		if e, ok := assetEntity(a, r.opts.ShowLabels); ok {
			out[model.KindAsset].add(e)
		}
	}
	for _, p := range s.Paths {
		if e, ok := pathEntity(p, r.opts.ShowLabels); ok {
			out[model.KindPath].add(e)
		}
	}
	if r.opts.ShowRegions {
		for _, g := range s.Regions {
			if e, ok := regionEntity(g, r.opts.ShowLabels); ok {
				out[model.KindRegion].add(e)
			}
		}
	}
	return out
}

// Apply diffs s against the live handles. Per kind, stale handles are
// disposed first, then existing ones are updated in place and missing ones
// created. Unchanged entities cost no engine call.
func (r *Reconciler) Apply(s model.Snapshot) Stats {
	want := r.build(s)

	r.mu.Lock()
	defer r.mu.Unlock()

	var st Stats
	for _, kind := range model.Kinds {
		d := want[kind]
		for _, key := range r.keysOf(kind) {
			if _, keep := d.byKey[key]; keep {
				continue
			}
			h := r.handles[key]
			if err := r.engine.Dispose(h.ID); err != nil {
				// keep it so the next pass retries the disposal
				r.log.Error("dispose failed", "key", key, "handle", h.ID, "err", err)
				st.Failed++
				metrics.ReconcileOps.WithLabelValues(string(kind), "failed").Inc()
				continue
			}
			delete(r.handles, key)
			st.Disposed++
			metrics.ReconcileOps.WithLabelValues(string(kind), "dispose").Inc()
		}
		for _, key := range d.order {
			e := d.byKey[key]
			h, ok := r.handles[key]
			switch {
			case ok && h.Entity.equal(e):
				st.Unchanged++
			case ok:
				if err := r.engine.Update(h.ID, e); err != nil {
					r.log.Error("update failed", "key", key, "handle", h.ID, "err", err)
					st.Failed++
					metrics.ReconcileOps.WithLabelValues(string(kind), "failed").Inc()
					continue
				}
				r.handles[key] = Handle{ID: h.ID, Entity: e}
				st.Updated++
				metrics.ReconcileOps.WithLabelValues(string(kind), "update").Inc()
			default:
				id, err := r.engine.Create(e)
				if err != nil {
					r.log.Error("create failed", "key", key, "err", err)
					st.Failed++
					metrics.ReconcileOps.WithLabelValues(string(kind), "failed").Inc()
					continue
				}
				r.handles[key] = Handle{ID: id, Entity: e}
				st.Created++
				metrics.ReconcileOps.WithLabelValues(string(kind), "create").Inc()
			}
		}
		metrics.LiveHandles.WithLabelValues(string(kind)).Set(float64(len(r.keysOf(kind))))
	}
	if st.Created+st.Disposed+st.Failed > 0 {
		r.log.Debug("scene reconciled", "generation", s.Generation,
			"created", st.Created, "updated", st.Updated, "disposed", st.Disposed, "failed", st.Failed)
	}
	return st
}

// keysOf returns the live keys of one kind, sorted. Caller holds mu.
func (r *Reconciler) keysOf(kind model.Kind) []string {
	var keys []string
	for key, h := range r.handles {
		if h.Entity.Kind == kind {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the live handle for key.
func (r *Reconciler) Lookup(key string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[key]
	return h, ok
}

// Len returns the number of live handles.
func (r *Reconciler) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Keys returns every live key, sorted.
func (r *Reconciler) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.handles))
	for k := range r.handles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Handles returns a copy of the live handles ordered by key.
func (r *Reconciler) Handles() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entity.Key < out[j].Entity.Key })
	return out
}

// Close disposes every live handle. Used on unmount.
func (r *Reconciler) Close() Stats {
	return r.Apply(model.Snapshot{})
}
