// Package model holds the canonical value types shared by the feed, the
// route synthesizer and the scene.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultCruiseAltitude is the nominal altitude in meters given to path
// vertices that carry no altitude of their own.
const DefaultCruiseAltitude = 120.0

// Point is a canonical 3D position.
type Point struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Altitude float64 `json:"altitude"`
}

// LatLng is a canonical 2D position.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LatLng drops the altitude.
func (p Point) LatLng() LatLng { return LatLng{Lat: p.Lat, Lng: p.Lng} }

// At lifts a 2D position to the given altitude.
func (ll LatLng) At(alt float64) Point { return Point{Lat: ll.Lat, Lng: ll.Lng, Altitude: alt} }

type AssetStatus string

const (
	StatusIdle        AssetStatus = "idle"
	StatusCharging    AssetStatus = "charging"
	StatusAssigned    AssetStatus = "assigned"
	StatusDelivering  AssetStatus = "delivering"
	StatusReturning   AssetStatus = "returning"
	StatusMaintenance AssetStatus = "maintenance"
	StatusOffline     AssetStatus = "offline"
)

// ParseAssetStatus normalizes a feed status string. Unknown values map to
// offline so they never qualify for route synthesis.
func ParseAssetStatus(s string) AssetStatus {
	switch st := AssetStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusIdle, StatusCharging, StatusAssigned, StatusDelivering,
		StatusReturning, StatusMaintenance, StatusOffline:
		return st
	default:
		return StatusOffline
	}
}

// Asset is a tracked drone. Position is nil when the feed reported no
// coordinates.
type Asset struct {
	ID       int64       `json:"id"`
	Position *Point      `json:"position,omitempty"`
	Heading  *float64    `json:"heading,omitempty"`
	Pitch    *float64    `json:"pitch,omitempty"`
	Roll     *float64    `json:"roll,omitempty"`
	Status   AssetStatus `json:"status"`
	Battery  float64     `json:"battery"`
}

// Color is a presentation hint for paths.
type Color string

const (
	ColorActive      Color = "#00bcd4"
	ColorCompleted   Color = "#9e9e9e"
	ColorSynthesized Color = "#ff9800"
)

// PathColor derives the display color from completion and synthesis state.
func PathColor(completed, synthesized bool) Color {
	switch {
	case synthesized:
		return ColorSynthesized
	case completed:
		return ColorCompleted
	default:
		return ColorActive
	}
}

// Path is a planned or synthesized route keyed by order id.
type Path struct {
	ID          int64   `json:"id"`
	Points      []Point `json:"points"`
	Completed   bool    `json:"completed"`
	Synthesized bool    `json:"synthesized"`
	Color       Color   `json:"color"`
}

type RegionType string

const (
	RegionOperational RegionType = "operational"
	RegionNoFly       RegionType = "no-fly"
)

// ParseRegionType accepts the spellings seen in zone feeds. Anything that is
// not recognizably a no-fly zone is treated as operational.
func ParseRegionType(s string) RegionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "no-fly", "no_fly", "nofly", "restricted":
		return RegionNoFly
	default:
		return RegionOperational
	}
}

type AltitudeRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Region is a named geofenced area.
type Region struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Type          RegionType     `json:"type"`
	Boundary      []LatLng       `json:"boundary"`
	AltitudeRange *AltitudeRange `json:"altitudeRange,omitempty"`
}

// Order is the part of a delivery order the scene cares about.
type Order struct {
	ID            int64   `json:"id"`
	Status        string  `json:"status"`
	AssignedAsset *int64  `json:"assignedAsset,omitempty"`
	Pickup        *LatLng `json:"pickup,omitempty"`
	Delivery      *LatLng `json:"delivery,omitempty"`
}

// Active reports whether the order still has a route worth drawing.
func (o Order) Active() bool {
	switch strings.ToLower(strings.TrimSpace(o.Status)) {
	case "delivered", "cancelled", "canceled", "failed":
		return false
	}
	return true
}

// Snapshot is the merged result of one poll cycle.
type Snapshot struct {
	Generation uint64    `json:"generation"`
	TakenAt    time.Time `json:"takenAt"`
	Assets     []Asset   `json:"assets"`
	Paths      []Path    `json:"paths"`
	Regions    []Region  `json:"regions"`
}

type Kind string

const (
	KindAsset  Kind = "asset"
	KindPath   Kind = "path"
	KindRegion Kind = "region"
)

// Kinds lists every entity kind in reconciliation order.
var Kinds = []Kind{KindRegion, KindPath, KindAsset}

// Key builds the composite scene key "<kind>-<id>".
func Key(kind Kind, id int64) string {
	return string(kind) + "-" + strconv.FormatInt(id, 10)
}

// ParseKey splits a composite key back into kind and id.
func ParseKey(key string) (Kind, int64, error) {
	k, idStr, ok := strings.Cut(key, "-")
	if !ok {
		return "", 0, fmt.Errorf("malformed key %q", key)
	}
	kind := Kind(k)
	switch kind {
	case KindAsset, KindPath, KindRegion:
	default:
		return "", 0, fmt.Errorf("unknown kind in key %q", key)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("bad id in key %q: %w", key, err)
	}
	return kind, id, nil
}
