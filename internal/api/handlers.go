package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"fleetglobe/internal/camera"
	"fleetglobe/internal/model"
)

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

// ReadyHandler pings every dependency and fails once the poller is closed.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.Ready))
	for name := range s.Ready {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		err := s.Ready[name].Ping(ctx)
		cancel()
		if err != nil {
			writeProblem(w, 503, "Not Ready", name+": "+err.Error(), r.URL.Path)
			return
		}
	}
	if s.Poller != nil && s.Poller.Status().Closed {
		writeProblem(w, 503, "Not Ready", "poller closed", r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}

// SceneHandler lists the live engine entities.
func (s *Server) SceneHandler(w http.ResponseWriter, r *http.Request) {
	hs := s.Scene.Handles()
	if kind := r.URL.Query().Get("kind"); kind != "" {
		out := hs[:0]
		for _, h := range hs {
			if string(h.Entity.Kind) == kind {
				out = append(out, h)
			}
		}
		hs = out
	}
	writeJSON(w, 200, map[string]any{"entities": hs, "count": len(hs)})
}

// EntityHandler returns one live entity by composite key, e.g. asset-3.
func (s *Server) EntityHandler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if _, _, err := model.ParseKey(key); err != nil {
		keyProblem(w, r, 400, "Invalid key", key)
		return
	}
	h, ok := s.Scene.Lookup(key)
	if !ok {
		keyProblem(w, r, 404, "Not Found", key)
		return
	}
	writeJSON(w, 200, h)
}

// SnapshotHandler returns the last committed domain snapshot.
func (s *Server) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.Poller.Snapshot())
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.Poller.Status())
}

// RefreshHandler wakes the poll loop. The cycle runs asynchronously.
func (s *Server) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	s.Poller.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "triggered", "generation": s.Poller.Status().Generation})
}

type selectRequest struct {
	Key string `json:"key"`
}

// SelectHandler performs an entity click, the same as a viewer click.
func (s *Server) SelectHandler(w http.ResponseWriter, r *http.Request) {
	var in selectRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if _, _, err := model.ParseKey(in.Key); err != nil {
		keyProblem(w, r, 400, "Invalid key", in.Key)
		return
	}
	if _, ok := s.Scene.Lookup(in.Key); !ok {
		keyProblem(w, r, 404, "Not Found", in.Key)
		return
	}
	if s.Clicks == nil || !s.Clicks.Dispatch(in.Key) {
		keyProblem(w, r, 422, "Not Selectable", in.Key)
		return
	}
	writeJSON(w, 200, map[string]any{"selected": in.Key, "camera": s.Camera.State()})
}

func (s *Server) CameraHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.Camera.State())
}

type followRequest struct {
	ID json.Number `json:"id"`
}

func (s *Server) FollowHandler(w http.ResponseWriter, r *http.Request) {
	var in followRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	id, err := strconv.ParseInt(in.ID.String(), 10, 64)
	if err != nil {
		writeProblem(w, 400, "Invalid id", "id must be an integer", r.URL.Path)
		return
	}
	st, err := s.Camera.Follow(id)
	switch {
	case errors.Is(err, camera.ErrNotLive):
		writeProblem(w, 404, "Not Found", err.Error(), r.URL.Path)
		return
	case err != nil:
		s.log().Error("camera follow failed", "asset", id, "err", err)
		writeProblem(w, 500, "Follow failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, st)
}

func (s *Server) ResetHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.Camera.Reset()
	if err != nil {
		s.log().Warn("camera untrack failed", "err", err)
	}
	writeJSON(w, 200, st)
}
