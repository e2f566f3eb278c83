// Package camera tracks whether the globe camera is free or following an asset.
package camera

import (
	"errors"
	"fmt"
	"sync"

	"fleetglobe/internal/model"
	"fleetglobe/internal/scene"
)

// ErrNotLive is returned when following an asset that has no live handle.
var ErrNotLive = errors.New("camera: asset not in scene")

type Mode string

const (
	ModeFree   Mode = "free"
	ModeFollow Mode = "follow"
)

// State is the controller's current mode. AssetID is set only when following.
type State struct {
	Mode    Mode           `json:"mode"`
	AssetID int64          `json:"assetId,omitempty"`
	Handle  scene.HandleID `json:"handle,omitempty"`
	Home    model.Point    `json:"home"`
}

// HandleLookup is the read-only view of the reconciler's handle map.
type HandleLookup interface {
	Lookup(key string) (scene.Handle, bool)
}

// Tracker performs the actual camera lock in the engine.
type Tracker interface {
	Track(h scene.HandleID) error
	Untrack() error
}

// Controller is a two-state machine: free and follow(id).
type Controller struct {
	mu      sync.Mutex
	handles HandleLookup
	tracker Tracker
	home    model.Point
	state   State

	// OnChange, if set, receives every state transition. Called without mu held.
	OnChange func(State)
}

func NewController(handles HandleLookup, tracker Tracker, home model.Point) *Controller {
	return &Controller{
		handles: handles,
		tracker: tracker,
		home:    home,
		state:   State{Mode: ModeFree, Home: home},
	}
}

// State returns the current camera state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Select handles a click on asset id: a click on the tracked asset returns to
// free, any other click follows it. Assets without a live handle leave the
// state unchanged and return ErrNotLive.
func (c *Controller) Select(id int64) (State, error) {
	c.mu.Lock()
	if c.state.Mode == ModeFollow && c.state.AssetID == id {
		st, err := c.freeLocked()
		c.mu.Unlock()
		c.notify(st, nil)
		return st, err
	}
	st, err := c.followLocked(id)
	c.mu.Unlock()
	c.notify(st, err)
	return st, err
}

// Follow locks the camera to asset id. Following the tracked asset is a no-op.
func (c *Controller) Follow(id int64) (State, error) {
	c.mu.Lock()
	if c.state.Mode == ModeFollow && c.state.AssetID == id {
		st := c.state
		c.mu.Unlock()
		return st, nil
	}
	st, err := c.followLocked(id)
	c.mu.Unlock()
	c.notify(st, err)
	return st, err
}

// Reset returns the camera to free mode.
func (c *Controller) Reset() (State, error) {
	c.mu.Lock()
	if c.state.Mode == ModeFree {
		st := c.state
		c.mu.Unlock()
		return st, nil
	}
	st, err := c.freeLocked()
	c.mu.Unlock()
	c.notify(st, nil)
	return st, err
}

// Sync drops back to free when the tracked asset left the scene, and
// re-locks when the asset's handle changed underneath us.
func (c *Controller) Sync() State {
	c.mu.Lock()
	if c.state.Mode != ModeFollow {
		st := c.state
		c.mu.Unlock()
		return st
	}
	h, ok := c.handles.Lookup(model.Key(model.KindAsset, c.state.AssetID))
	switch {
	case !ok:
		st, _ := c.freeLocked()
		c.mu.Unlock()
		c.notify(st, nil)
		return st
	case h.ID != c.state.Handle:
		if err := c.tracker.Track(h.ID); err == nil {
			c.state.Handle = h.ID
		}
	}
	st := c.state
	c.mu.Unlock()
	return st
}

func (c *Controller) followLocked(id int64) (State, error) {
	h, ok := c.handles.Lookup(model.Key(model.KindAsset, id))
	if !ok {
		return c.state, fmt.Errorf("follow asset %d: %w", id, ErrNotLive)
	}
	if err := c.tracker.Track(h.ID); err != nil {
		return c.state, fmt.Errorf("follow asset %d: %w", id, err)
	}
	c.state = State{Mode: ModeFollow, AssetID: id, Handle: h.ID, Home: c.home}
	return c.state, nil
}

// freeLocked always leaves the controller in free mode, even if the engine
// refuses to untrack.
func (c *Controller) freeLocked() (State, error) {
	err := c.tracker.Untrack()
	c.state = State{Mode: ModeFree, Home: c.home}
	return c.state, err
}

func (c *Controller) notify(st State, err error) {
	if c.OnChange != nil && err == nil {
		c.OnChange(st)
	}
}
