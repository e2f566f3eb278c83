package feed

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"fleetglobe/internal/model"
)

func f(v float64) *float64 { return &v }
func i(v int64) *int64 { return &v }

func newNormalizer() *Normalizer {
	return NewNormalizer(nil, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
}

func TestAssetPositionSources(t *testing.T) {
	n := newNormalizer()

	a := n.Asset(AssetRecord{ID: 1, Latitude: f(12.97), Longitude: f(77.59), Altitude: f(80), Status: "DELIVERING", Battery: 140})
	if a.Position == nil || *a.Position != (model.Point{Lat: 12.97, Lng: 77.59, Altitude: 80}) {
		t.Fatalf("split position %+v", a.Position)
	}
	if a.Status != model.StatusDelivering || a.Battery != 100 {
		t.Fatalf("status/battery %+v", a)
	}

	b := n.Asset(AssetRecord{ID: 2, Location: json.RawMessage(`{"type":"Point","coordinates":[77.6,12.9]}`)})
	if b.Position == nil || b.Position.Lat != 12.9 || b.Position.Altitude != 0 {
		t.Fatalf("geometry position %+v", b.Position)
	}

	c := n.Asset(AssetRecord{ID: 3, Latitude: f(12.9)})
	if c.Position != nil {
		t.Fatalf("half a position should be unresolved: %+v", c.Position)
	}
	d := n.Asset(AssetRecord{ID: 4, Latitude: f(200), Longitude: f(0)})
	if d.Position != nil {
		t.Fatal("out of range position accepted")
	}
}

func TestRouteGeometryThenWaypoints(t *testing.T) {
	n := newNormalizer()
	p := n.Route(RouteRecord{ID: 9, OrderID: 4, Path: json.RawMessage(`{"type":"LineString","coordinates":[[77.5,12.9],[77.6,13.0,90]]}`), Completed: true})
	if p.ID != 4 || len(p.Points) != 2 || p.Points[0].Altitude != model.DefaultCruiseAltitude || p.Points[1].Altitude != 90 {
		t.Fatalf("line route %+v", p)
	}
	if p.Color != model.ColorCompleted {
		t.Fatalf("completed color %s", p.Color)
	}

	w := n.Route(RouteRecord{ID: 10, OrderID: 5, Path: json.RawMessage(`null`), Waypoints: nil})
	if len(w.Points) != 0 {
		t.Fatalf("no geometry should give empty path: %+v", w)
	}
}

func TestRegionNormalization(t *testing.T) {
	n := newNormalizer()
	g := n.Region(RegionRecord{ID: 1, Name: "Airport", ZoneType: "restricted",
		Area: json.RawMessage(`"{\"type\":\"Polygon\",\"coordinates\":[[[77.7,13.2],[77.8,13.2],[77.8,13.3],[77.7,13.2]]]}"`), MaxAltitude: f(500)})
	if g.Type != model.RegionNoFly || len(g.Boundary) != 4 {
		t.Fatalf("region %+v", g)
	}
	if g.AltitudeRange == nil || g.AltitudeRange.Min != 0 || g.AltitudeRange.Max != 500 {
		t.Fatalf("altitude %+v", g.AltitudeRange)
	}
	if h := n.Region(RegionRecord{ID: 2, MinAltitude: f(10)}); h.AltitudeRange != nil {
		t.Fatal("min alone should not produce a range")
	}
}

func TestSnapshotResolvesOrders(t *testing.T) {
	n := newNormalizer()
	b := Batch{
		Assets: []AssetRecord{{ID: 1, Latitude: f(12.97), Longitude: f(77.59), Status: "idle"}},
		Orders: []OrderRecord{
			{ID: 7, Status: "pending", PickupLat: f(12.90), PickupLng: f(77.60), DeliveryLat: f(12.95), DeliveryLng: f(77.55)},
			{ID: 8, Status: "in_transit", AssignedDrone: i(1)},
		},
		Routes: []RouteRecord{{ID: 1, OrderID: 8, Waypoints: nil}},
	}
	s := n.Snapshot(b, true)
	if len(s.Paths) != 1 || s.Paths[0].ID != 7 || !s.Paths[0].Synthesized {
		t.Fatalf("paths %+v", s.Paths)
	}
	if s.Paths[0].Points[0].Lat != 12.97 {
		t.Fatalf("synthesized start %+v", s.Paths[0].Points[0])
	}

	raw := n.Snapshot(b, false)
	if len(raw.Paths) != 1 || raw.Paths[0].ID != 8 {
		t.Fatalf("routes without orders: %+v", raw.Paths)
	}
}
