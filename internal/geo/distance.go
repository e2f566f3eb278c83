// Package geo is the distance utility used by route synthesis and region
// approximation.
package geo

import (
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"

	"fleetglobe/internal/model"
)

// Distance returns the great-circle (haversine) distance in meters.
func Distance(a, b model.LatLng) float64 {
	return orbgeo.DistanceHaversine(Point(a), Point(b))
}

// Point converts to orb's [lng, lat] order.
func Point(ll model.LatLng) orb.Point { return orb.Point{ll.Lng, ll.Lat} }

// LatLng converts from orb's [lng, lat] order.
func LatLng(p orb.Point) model.LatLng { return model.LatLng{Lat: p.Lat(), Lng: p.Lon()} }
