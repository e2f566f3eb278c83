// Package api exposes the scene, poller and camera over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetglobe/internal/camera"
	"fleetglobe/internal/metrics"
	"fleetglobe/internal/model"
	"fleetglobe/internal/poller"
	"fleetglobe/internal/scene"
)

// PollControl is the part of *poller.Poller the API drives.
type PollControl interface {
	Status() poller.Status
	Snapshot() model.Snapshot
	Trigger()
}

// SceneView is the read-only view of the reconciler.
type SceneView interface {
	Handles() []scene.Handle
	Lookup(key string) (scene.Handle, bool)
}

// CameraControl is *camera.Controller.
type CameraControl interface {
	State() camera.State
	Select(id int64) (camera.State, error)
	Follow(id int64) (camera.State, error)
	Reset() (camera.State, error)
}

// Pinger is a dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	Poller PollControl
	Scene  SceneView
	Camera CameraControl
	Clicks *scene.Dispatcher
	// Viewer serves the websocket scene protocol on /ws.
	Viewer http.Handler
	// Ready maps a dependency name to its health check.
	Ready map[string]Pinger
	// Settings is reported by /v1/debug; callers must leave secrets out.
	Settings map[string]any
	Log      *slog.Logger
}

func (s *Server) log() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

// Routes builds the service mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /v1/scene", s.SceneHandler)
	mux.HandleFunc("GET /v1/scene/{key}", s.EntityHandler)
	mux.HandleFunc("GET /v1/snapshot", s.SnapshotHandler)
	mux.HandleFunc("GET /v1/status", s.StatusHandler)
	mux.HandleFunc("POST /v1/refresh", s.RefreshHandler)
	mux.HandleFunc("POST /v1/select", s.SelectHandler)

	mux.HandleFunc("GET /v1/camera", s.CameraHandler)
	mux.HandleFunc("POST /v1/camera/follow", s.FollowHandler)
	mux.HandleFunc("POST /v1/camera/reset", s.ResetHandler)

	mux.HandleFunc("GET /v1/debug", s.DebugJSON)
	mux.HandleFunc("GET /openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("GET /openapi.json", s.OpenAPIJSONHandler)
	mux.HandleFunc("GET /docs", s.DocsHandler)

	if s.Viewer != nil {
		mux.Handle("GET /ws", s.Viewer)
	}
	return mux
}
