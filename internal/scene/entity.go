package scene

import (
	"fmt"
	"reflect"

	"fleetglobe/internal/geometry"
	"fleetglobe/internal/model"
)

// Orientation in degrees.
type Orientation struct {
	Heading float64 `json:"heading"`
	Pitch   float64 `json:"pitch"`
	Roll    float64 `json:"roll"`
}

// Style carries the presentation fields the engine applies verbatim.
type Style struct {
	Color   string `json:"color,omitempty"`
	Fill    string `json:"fill,omitempty"`
	Outline string `json:"outline,omitempty"`
	// Extrusion bounds in meters; set only for regions with an altitude range.
	ExtrudeFrom *float64 `json:"extrudeFrom,omitempty"`
	ExtrudeTo   *float64 `json:"extrudeTo,omitempty"`
	Dashed      bool     `json:"dashed,omitempty"`
}

// Entity is the engine-facing description of one scene object. It holds the
// mutable fields an update may change in place.
type Entity struct {
	Key         string         `json:"key"`
	Kind        model.Kind     `json:"kind"`
	ID          int64          `json:"id"`
	Label       string         `json:"label,omitempty"`
	Position    *model.Point   `json:"position,omitempty"`
	Orientation *Orientation   `json:"orientation,omitempty"`
	Points      []model.Point  `json:"points,omitempty"`
	Boundary    []model.LatLng `json:"boundary,omitempty"`
	// Circle bounds a region for hit-testing and label placement.
	Circle *geometry.Circle `json:"circle,omitempty"`
	Style  Style            `json:"style"`
}

func (e Entity) equal(o Entity) bool { return reflect.DeepEqual(e, o) }

const (
	noFlyFill          = "rgba(213,0,0,0.25)"
	noFlyOutline       = "#d50000"
	operationalFill    = "rgba(0,200,83,0.15)"
	operationalOutline = "#00c853"
)

var assetColor = map[model.AssetStatus]string{
	model.StatusIdle:        "#4caf50",
	model.StatusCharging:    "#ffeb3b",
	model.StatusAssigned:    "#2196f3",
	model.StatusDelivering:  "#3f51b5",
	model.StatusReturning:   "#9c27b0",
	model.StatusMaintenance: "#ff5722",
	model.StatusOffline:     "#607d8b",
}

func assetEntity(a model.Asset, labels bool) (Entity, bool) {
	if a.Position == nil {
		return Entity{}, false
	}
	pos := *a.Position
	e := Entity{
		Key:      model.Key(model.KindAsset, a.ID),
		Kind:     model.KindAsset,
		ID:       a.ID,
		Position: &pos,
		Style:    Style{Color: assetColor[a.Status]},
	}
	if a.Heading != nil || a.Pitch != nil || a.Roll != nil {
		e.Orientation = &Orientation{Heading: deref(a.Heading), Pitch: deref(a.Pitch), Roll: deref(a.Roll)}
	}
	if labels {
		e.Label = fmt.Sprintf("Drone %d (%s, %.0f%%)", a.ID, a.Status, a.Battery)
	}
	return e, true
}

func pathEntity(p model.Path, labels bool) (Entity, bool) {
	if len(p.Points) == 0 {
		return Entity{}, false
	}
	e := Entity{
		Key:    model.Key(model.KindPath, p.ID),
		Kind:   model.KindPath,
		ID:     p.ID,
		Points: append([]model.Point(nil), p.Points...),
		Style:  Style{Color: string(p.Color), Dashed: p.Synthesized},
	}
	if labels {
		e.Label = fmt.Sprintf("Order %d", p.ID)
	}
	return e, true
}

func regionEntity(r model.Region, labels bool) (Entity, bool) {
	if len(r.Boundary) == 0 {
		return Entity{}, false
	}
	e := Entity{
		Key:      model.Key(model.KindRegion, r.ID),
		Kind:     model.KindRegion,
		ID:       r.ID,
		Boundary: append([]model.LatLng(nil), r.Boundary...),
		Style:    regionStyle(r),
	}
	if c, ok := geometry.EnclosingCircle(r.Boundary); ok {
		e.Circle = &c
	}
	if labels {
		e.Label = r.Name
	}
	return e, true
}

func regionStyle(r model.Region) Style {
	s := Style{Fill: operationalFill, Outline: operationalOutline}
	if r.Type == model.RegionNoFly {
		s = Style{Fill: noFlyFill, Outline: noFlyOutline}
	}
	if ar := r.AltitudeRange; ar != nil {
		lo, hi := ar.Min, ar.Max
		if hi < lo {
			lo, hi = hi, lo
		}
		s.ExtrudeFrom, s.ExtrudeTo = &lo, &hi
	}
	return s
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
