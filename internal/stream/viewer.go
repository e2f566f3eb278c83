package stream

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fleetglobe/internal/camera"
	"fleetglobe/internal/metrics"
	"fleetglobe/internal/model"
	"fleetglobe/internal/scene"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingEvery    = 20 * time.Second
)

// Hello is the first frame a viewer receives.
type Hello struct {
	Session     string      `json:"session"`
	Home        model.Point `json:"home"`
	ShowLabels  bool        `json:"showLabels"`
	ShowRegions bool        `json:"showRegions"`
	Version     string      `json:"version,omitempty"`
}

type snapshotPayload struct {
	Entities []scene.Handle `json:"entities"`
}

type clickPayload struct {
	Key string `json:"key"`
}

type followPayload struct {
	ID int64 `json:"id"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// CameraControl is the part of camera.Controller viewers may drive.
type CameraControl interface {
	State() camera.State
	Follow(id int64) (camera.State, error)
	Reset() (camera.State, error)
}

// Viewer serves the scene protocol on a WebSocket:
//
//	server -> client: hello, snapshot, mutation, camera, selected, error, pong
//	client -> server: click {key}, follow {id}, reset, ping
type Viewer struct {
	Broker EventBroker
	Engine *Engine
	Camera CameraControl
	Clicks *scene.Dispatcher
	Hello  Hello
	Log    *slog.Logger
}

// conn serializes writes; gorilla allows one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(m)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (v *Viewer) log() *slog.Logger {
	if v.Log == nil {
		return slog.Default()
	}
	return v.Log
}

// ServeHTTP handles /ws.
func (v *Viewer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &conn{ws: ws}
	defer func() { _ = ws.Close() }()

	session := uuid.NewString()
	log := v.log().With("session", session)
	metrics.ViewerConnections.Inc()
	defer metrics.ViewerConnections.Dec()
	log.Info("viewer connected", "remote", r.RemoteAddr)

	// subscribe before the snapshot so no mutation falls in between
	mutations := v.Broker.Subscribe(TopicScene)
	cams := v.Broker.Subscribe(TopicCamera)
	selections := v.Broker.Subscribe(TopicSelection)
	defer v.Broker.Unsubscribe(TopicScene, mutations)
	defer v.Broker.Unsubscribe(TopicCamera, cams)
	defer v.Broker.Unsubscribe(TopicSelection, selections)

	hello := v.Hello
	hello.Session = session
	if err := c.send(NewMessage("hello", hello)); err != nil {
		return
	}
	if err := c.send(NewMessage("snapshot", snapshotPayload{Entities: v.Engine.Entities()})); err != nil {
		return
	}
	if v.Camera != nil {
		if err := c.send(NewMessage("camera", v.Camera.State())); err != nil {
			return
		}
	}

	done := make(chan struct{})
	defer close(done)
	go v.fanout(c, mutations, cams, selections, done)

	ws.SetReadLimit(1 << 16)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error { return ws.SetReadDeadline(time.Now().Add(readTimeout)) })

	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("viewer read ended", "err", err)
			}
			break
		}
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
		if reply, ok := v.handle(msg); ok {
			if err := c.send(reply); err != nil {
				break
			}
		}
	}
	log.Info("viewer disconnected")
}

// fanout relays broker traffic and keeps the connection alive. Scene and
// camera frames from other replicas are dropped: they address handles this
// viewer's snapshot never contained.
func (v *Viewer) fanout(c *conn, mutations, cams, selections <-chan Message, done <-chan struct{}) {
	origin := v.Engine.Origin()
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		var (
			m  Message
			ok bool
		)
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
			continue
		case m, ok = <-mutations:
			if ok && m.Origin != origin {
				continue
			}
		case m, ok = <-cams:
			if ok && m.Origin != origin {
				continue
			}
		case m, ok = <-selections:
		}
		if !ok {
			return
		}
		if err := c.send(m); err != nil {
			return
		}
	}
}

// handle applies one client frame and returns the direct reply, if any.
// Camera changes reach the client through the camera topic instead.
func (v *Viewer) handle(msg Message) (Message, bool) {
	switch msg.Type {
	case "ping":
		return Message{Type: "pong"}, true
	case "click":
		var p clickPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Key == "" {
			return errorMessage("click needs a key"), true
		}
		if v.Clicks == nil || !v.Clicks.Dispatch(p.Key) {
			return errorMessage("unknown entity " + p.Key), true
		}
	case "follow":
		var p followPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return errorMessage("follow needs an id"), true
		}
		if v.Camera == nil {
			return errorMessage("camera unavailable"), true
		}
		if _, err := v.Camera.Follow(p.ID); err != nil {
			if errors.Is(err, camera.ErrNotLive) {
				return errorMessage("asset not in scene"), true
			}
			return errorMessage(err.Error()), true
		}
	case "reset":
		if v.Camera != nil {
			if _, err := v.Camera.Reset(); err != nil {
				return errorMessage(err.Error()), true
			}
		}
	default:
		return errorMessage("unknown message type " + msg.Type), true
	}
	return Message{}, false
}

func errorMessage(s string) Message { return NewMessage("error", errorPayload{Message: s}) }
