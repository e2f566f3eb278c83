package geometry

import (
	"bytes"
	"log/slog"
	"math"
	"strings"
	"testing"

	"fleetglobe/internal/geo"
	"fleetglobe/internal/model"
)

func TestParseLineSwapsAndKeepsAltitude(t *testing.T) {
	raw := []byte(`{"type":"LineString","coordinates":[[77.59,12.97,80],[77.60,12.90],[77.55,12.95,150.5]]}`)
	pts, err := ParseLine(raw, 120)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	want := []model.Point{
		{Lat: 12.97, Lng: 77.59, Altitude: 80},
		{Lat: 12.90, Lng: 77.60, Altitude: 120},
		{Lat: 12.95, Lng: 77.55, Altitude: 150.5},
	}
	if len(pts) != len(want) {
		t.Fatalf("got %d points, want %d", len(pts), len(want))
	}
	for i := range want {
		if pts[i] != want[i] {
			t.Fatalf("point %d: got %+v want %+v", i, pts[i], want[i])
		}
	}
}

func TestParseLineFromStringEncoding(t *testing.T) {
	raw := []byte(`"{\"type\":\"LineString\",\"coordinates\":[[1,2],[3,4]]}"`)
	pts, err := ParseLine(raw, 50)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if len(pts) != 2 || pts[1].Lat != 4 || pts[1].Lng != 3 || pts[1].Altitude != 50 {
		t.Fatalf("unexpected %+v", pts)
	}
}

func TestDecoderFailsSoft(t *testing.T) {
	var buf bytes.Buffer
	d := NewDecoder(slog.New(slog.NewTextHandler(&buf, nil)))
	bad := [][]byte{
		[]byte(`{"type":"Polygon","coordinates":[[[0,0],[1,1],[0,1],[0,0]]]}`),
		[]byte(`{"type":"LineString","coordinates":"nope"}`),
		[]byte(`{"type":"LineString","coordinates":[[1]]}`),
		[]byte(`not json`),
	}
	for _, raw := range bad {
		pts := d.Line(raw)
		if pts == nil || len(pts) != 0 {
			t.Fatalf("want empty non-nil slice for %s, got %v", raw, pts)
		}
	}
	if got := strings.Count(buf.String(), "geometry decode failed"); got != len(bad) {
		t.Fatalf("want %d warnings, got %d: %s", len(bad), got, buf.String())
	}

	buf.Reset()
	if pts := d.Line(nil); len(pts) != 0 {
		t.Fatal("nil line should be empty")
	}
	if buf.Len() != 0 {
		t.Fatalf("missing geometry should not warn: %s", buf.String())
	}
}

func TestParsePolygon(t *testing.T) {
	raw := []byte(`{"type":"Polygon","coordinates":[[[77.5,12.9],[77.6,12.9],[77.6,13.0],[77.5,12.9]]]}`)
	ring, err := ParsePolygon(raw)
	if err != nil {
		t.Fatalf("ParsePolygon: %v", err)
	}
	if len(ring) != 4 {
		t.Fatalf("want closing vertex kept, got %d", len(ring))
	}
	if ring[2] != (model.LatLng{Lat: 13.0, Lng: 77.6}) {
		t.Fatalf("vertex 2: %+v", ring[2])
	}
	if _, err := ParsePolygon([]byte(`{"type":"LineString","coordinates":[[1,2],[3,4]]}`)); err == nil {
		t.Fatal("expected type error")
	}
	d := NewDecoder(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if got := d.Polygon([]byte(`{"type":"Polygon","coordinates":7}`)); len(got) != 0 {
		t.Fatalf("want empty, got %v", got)
	}
}

func TestParsePoint(t *testing.T) {
	p, err := ParsePoint([]byte(`{"type":"Point","coordinates":[77.59,12.97,40]}`), 0)
	if err != nil {
		t.Fatalf("ParsePoint: %v", err)
	}
	if p != (model.Point{Lat: 12.97, Lng: 77.59, Altitude: 40}) {
		t.Fatalf("got %+v", p)
	}
	if _, err := ParsePoint([]byte(`{"type":"Point","coordinates":[200,12]}`), 0); err == nil {
		t.Fatal("expected range error")
	}
}

func TestEnclosingCircle(t *testing.T) {
	sq := []model.LatLng{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 2}, {Lat: 2, Lng: 2}, {Lat: 2, Lng: 0}, {Lat: 0, Lng: 0}}
	c, ok := EnclosingCircle(sq)
	if !ok {
		t.Fatal("expected circle")
	}
	if math.Abs(c.Center.Lat-1) > 1e-9 || math.Abs(c.Center.Lng-1) > 1e-9 {
		t.Fatalf("center should ignore closing vertex: %+v", c.Center)
	}
	for _, v := range sq {
		if d := geo.Distance(c.Center, v); d > c.RadiusMeters+1e-6 {
			t.Fatalf("vertex %+v outside circle (%f > %f)", v, d, c.RadiusMeters)
		}
	}
	if _, ok := EnclosingCircle(nil); ok {
		t.Fatal("empty polygon has no circle")
	}
}

func TestWaypoints(t *testing.T) {
	alt := 60.0
	ws := []Waypoint{{Lat: 12.9, Lng: 77.6, Altitude: &alt}, {Lat: 12.95, Lng: 77.55}}
	pts, err := ParseWaypoints(ws, 120)
	if err != nil {
		t.Fatal(err)
	}
	if pts[0] != (model.Point{Lat: 12.9, Lng: 77.6, Altitude: 60}) || pts[1].Altitude != 120 {
		t.Fatalf("unexpected %+v", pts)
	}

	var buf bytes.Buffer
	d := NewDecoder(slog.New(slog.NewTextHandler(&buf, nil)))
	if pts := d.Waypoints([]Waypoint{{Lat: 91, Lng: 0}}); len(pts) != 0 {
		t.Fatalf("out of range waypoint accepted: %+v", pts)
	}
	if !strings.Contains(buf.String(), "waypoints") {
		t.Fatalf("no warning logged: %s", buf.String())
	}
}
