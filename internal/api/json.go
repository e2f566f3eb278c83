package api

import (
	"encoding/json"
	"net/http"

	"fleetglobe/internal/model"
)

// Problem is an RFC 7807 body. Key and Kind are set when the failure is about
// one scene entity so clients can drop it without parsing Detail.
type Problem struct {
	Type     string     `json:"type"`
	Title    string     `json:"title"`
	Status   int        `json:"status"`
	Detail   string     `json:"detail,omitempty"`
	Instance string     `json:"instance,omitempty"`
	Key      string     `json:"key,omitempty"`
	Kind     model.Kind `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sendProblem(w http.ResponseWriter, p Problem) {
	if p.Type == "" {
		p.Type = "about:blank"
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	sendProblem(w, Problem{Title: title, Status: status, Detail: detail, Instance: instance})
}

// keyProblem reports a failure scoped to one scene key. An unparsable key
// yields 400 regardless of status.
func keyProblem(w http.ResponseWriter, r *http.Request, status int, title, key string) {
	p := Problem{Title: title, Status: status, Instance: r.URL.Path, Key: key}
	kind, _, err := model.ParseKey(key)
	switch {
	case err != nil:
		p.Status, p.Title, p.Detail = http.StatusBadRequest, "Invalid key", err.Error()
	case status == http.StatusNotFound:
		p.Kind, p.Detail = kind, "no live entity "+key
	default:
		p.Kind = kind
	}
	sendProblem(w, p)
}
