package geometry

import (
	"fleetglobe/internal/geo"
	"fleetglobe/internal/model"
)

// Circle is an approximate enclosing circle for a region.
type Circle struct {
	Center       model.LatLng `json:"center"`
	RadiusMeters float64      `json:"radiusMeters"`
}

// EnclosingCircle approximates a circle that contains every vertex of poly.
// The center is the arithmetic mean of the vertices and the radius is the
// largest haversine distance from it, which over-approximates the minimum
// enclosing circle. A closing vertex equal to the first is not counted twice.
func EnclosingCircle(poly []model.LatLng) (Circle, bool) {
	verts := poly
	if n := len(verts); n > 1 && verts[0] == verts[n-1] {
		verts = verts[:n-1]
	}
	if len(verts) == 0 {
		return Circle{}, false
	}
	var sumLat, sumLng float64
	for _, v := range verts {
		sumLat += v.Lat
		sumLng += v.Lng
	}
	n := float64(len(verts))
	c := Circle{Center: model.LatLng{Lat: sumLat / n, Lng: sumLng / n}}
	for _, v := range verts {
		if d := geo.Distance(c.Center, v); d > c.RadiusMeters {
			c.RadiusMeters = d
		}
	}
	return c, true
}
