// Package route builds fallback paths for orders that have no persisted route.
package route

import (
	"fleetglobe/internal/geo"
	"fleetglobe/internal/model"
)

// Statuses an unassigned order may draw a fallback start position from.
var candidateStatus = map[model.AssetStatus]bool{
	model.StatusIdle:      true,
	model.StatusAssigned:  true,
	model.StatusReturning: true,
}

// Candidates returns the assets eligible to start the fallback path, in input
// order. An assigned asset is the only candidate; otherwise any positioned
// asset in an eligible status qualifies.
func Candidates(o model.Order, assets []model.Asset) []model.Asset {
	if o.AssignedAsset != nil {
		for _, a := range assets {
			if a.ID == *o.AssignedAsset && a.Position != nil {
				return []model.Asset{a}
			}
		}
		return nil
	}
	var out []model.Asset
	for _, a := range assets {
		if a.Position != nil && candidateStatus[a.Status] {
			out = append(out, a)
		}
	}
	return out
}

// Nearest returns the asset closest to p. Ties go to the earliest asset.
func Nearest(assets []model.Asset, p model.LatLng) (model.Asset, bool) {
	best := -1
	bestD := 0.0
	for i, a := range assets {
		if a.Position == nil {
			continue
		}
		d := geo.Distance(a.Position.LatLng(), p)
		if best < 0 || d < bestD {
			best, bestD = i, d
		}
	}
	if best < 0 {
		return model.Asset{}, false
	}
	return assets[best], true
}

// Synthesize builds a start -> pickup -> delivery path at cruise altitude.
// The start is the nearest candidate asset, or the pickup point when there is
// none. ok is false when the order lacks pickup or delivery coordinates.
func Synthesize(o model.Order, assets []model.Asset) (model.Path, bool) {
	if o.Pickup == nil || o.Delivery == nil {
		return model.Path{}, false
	}
	start := *o.Pickup
	if a, ok := Nearest(Candidates(o, assets), *o.Pickup); ok {
		start = a.Position.LatLng()
	}
	alt := model.DefaultCruiseAltitude
	return model.Path{
		ID:          o.ID,
		Points:      []model.Point{start.At(alt), o.Pickup.At(alt), o.Delivery.At(alt)},
		Synthesized: true,
		Color:       model.PathColor(false, true),
	}, true
}
