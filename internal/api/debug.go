package api

import (
	"net/http"
	"time"

	"fleetglobe/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build":  buildinfo.Info(),
		"time":   time.Now().UTC().Format(time.RFC3339),
		"config": s.Settings,
	}
	if s.Poller != nil {
		st := s.Poller.Status()
		info["generation"] = st.Generation
		info["committed"] = st.Committed
	}
	if s.Camera != nil {
		info["camera"] = s.Camera.State()
	}
	writeJSON(w, 200, info)
}
