package stream

import (
	"github.com/google/uuid"

	"fleetglobe/internal/camera"
	"fleetglobe/internal/model"
	"fleetglobe/internal/scene"
)

// Mutation ops. Viewers apply create and update as upserts by handle, and
// ignore disposals of handles they never saw.
const (
	OpCreate  = "create"
	OpUpdate  = "update"
	OpDispose = "dispose"
	OpTrack   = "track"
	OpUntrack = "untrack"
)

type Mutation struct {
	Op     string         `json:"op"`
	Handle scene.HandleID `json:"handle,omitempty"`
	Entity *scene.Entity  `json:"entity,omitempty"`
}

// Engine is a scene.Engine that keeps the authoritative entity set in memory
// and publishes every successful mutation on TopicScene, stamped with its
// origin. Replicas sharing a Redis broker each run their own Engine; handle
// ids from one are meaningless to viewers of another.
type Engine struct {
	mem    *scene.MemoryEngine
	broker EventBroker
	origin string
}

func NewEngine(broker EventBroker) *Engine {
	return &Engine{mem: scene.NewMemoryEngine(), broker: broker, origin: uuid.NewString()}
}

// Origin identifies this engine's messages on a shared broker.
func (e *Engine) Origin() string { return e.origin }

func (e *Engine) Create(ent scene.Entity) (scene.HandleID, error) {
	h, err := e.mem.Create(ent)
	if err != nil {
		return "", err
	}
	e.publish(Mutation{Op: OpCreate, Handle: h, Entity: &ent})
	return h, nil
}

func (e *Engine) Update(h scene.HandleID, ent scene.Entity) error {
	if err := e.mem.Update(h, ent); err != nil {
		return err
	}
	e.publish(Mutation{Op: OpUpdate, Handle: h, Entity: &ent})
	return nil
}

func (e *Engine) Dispose(h scene.HandleID) error {
	if err := e.mem.Dispose(h); err != nil {
		return err
	}
	e.publish(Mutation{Op: OpDispose, Handle: h})
	return nil
}

func (e *Engine) Track(h scene.HandleID) error {
	if err := e.mem.Track(h); err != nil {
		return err
	}
	e.publish(Mutation{Op: OpTrack, Handle: h})
	return nil
}

func (e *Engine) Untrack() error {
	if err := e.mem.Untrack(); err != nil {
		return err
	}
	e.publish(Mutation{Op: OpUntrack})
	return nil
}

// Entities returns the live entity set for a joining viewer's snapshot.
func (e *Engine) Entities() []scene.Handle { return e.mem.List() }

// Tracked returns the handle the camera is locked to, if any.
func (e *Engine) Tracked() scene.HandleID { return e.mem.Tracked() }

func (e *Engine) publish(m Mutation) {
	e.send(TopicScene, NewMessage("mutation", m))
}

func (e *Engine) send(topic string, msg Message) {
	msg.Origin = e.origin
	e.broker.Publish(topic, msg)
}

// Selection is broadcast to every viewer on every replica when an entity is
// clicked.
type Selection struct {
	Kind model.Kind `json:"kind"`
	ID   int64      `json:"id"`
	Key  string     `json:"key"`
}

// CameraPublisher returns a camera.Controller OnChange hook that broadcasts
// state changes to this engine's viewers.
func (e *Engine) CameraPublisher() func(camera.State) {
	return func(st camera.State) { e.send(TopicCamera, NewMessage("camera", st)) }
}

// PublishSelection announces a click to viewers of every replica.
func (e *Engine) PublishSelection(kind model.Kind, id int64) {
	e.send(TopicSelection, NewMessage("selected", Selection{Kind: kind, ID: id, Key: model.Key(kind, id)}))
}
