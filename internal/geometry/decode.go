// Package geometry turns GeoJSON-encoded feed geometry into canonical
// coordinate sequences.
//
// The Parse* functions are pure and return errors. Decoder wraps them with the
// fail-soft contract the scene relies on: malformed input yields an empty
// result and a warning, never an error.
package geometry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"fleetglobe/internal/model"
)

// ErrEmpty is returned for null or missing geometry.
var ErrEmpty = errors.New("geometry: empty")

type envelope struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// unwrap accepts a geometry either as a JSON object or as a JSON string that
// holds the object, which is how some REST serializers emit GIS fields.
func unwrap(raw []byte) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrEmpty
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("geometry: bad string encoding: %w", err)
		}
		return unwrap([]byte(s))
	}
	return raw, nil
}

func parseEnvelope(raw []byte, want string) (envelope, error) {
	raw, err := unwrap(raw)
	if err != nil {
		return envelope{}, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, fmt.Errorf("geometry: %w", err)
	}
	if env.Type != want {
		return envelope{}, fmt.Errorf("geometry: want type %s, got %q", want, env.Type)
	}
	return env, nil
}

func position(c []float64) (model.LatLng, error) {
	if len(c) < 2 {
		return model.LatLng{}, fmt.Errorf("geometry: position needs at least 2 values, got %d", len(c))
	}
	for _, v := range c {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.LatLng{}, fmt.Errorf("geometry: non-finite coordinate")
		}
	}
	if c[1] < -90 || c[1] > 90 || c[0] < -180 || c[0] > 180 {
		return model.LatLng{}, fmt.Errorf("geometry: coordinate out of range [%g %g]", c[0], c[1])
	}
	return model.LatLng{Lat: c[1], Lng: c[0]}, nil
}

// CheckLatLng reports whether lat/lng is a finite, in-range position.
func CheckLatLng(lat, lng float64) error {
	_, err := position([]float64{lng, lat})
	return err
}

// ParseLine decodes a LineString whose positions are [lng, lat, alt?].
// Positions without altitude get defaultAlt. Order is preserved.
func ParseLine(raw []byte, defaultAlt float64) ([]model.Point, error) {
	env, err := parseEnvelope(raw, "LineString")
	if err != nil {
		return nil, err
	}
	var coords [][]float64
	if err := json.Unmarshal(env.Coordinates, &coords); err != nil {
		return nil, fmt.Errorf("geometry: LineString coordinates: %w", err)
	}
	out := make([]model.Point, 0, len(coords))
	for i, c := range coords {
		ll, err := position(c)
		if err != nil {
			return nil, fmt.Errorf("vertex %d: %w", i, err)
		}
		alt := defaultAlt
		if len(c) >= 3 {
			alt = c[2]
		}
		out = append(out, ll.At(alt))
	}
	return out, nil
}

// ParsePolygon decodes the outer ring of a Polygon. Holes are ignored and the
// ring is returned as given, closing vertex included.
func ParsePolygon(raw []byte) ([]model.LatLng, error) {
	raw, err := unwrap(raw)
	if err != nil {
		return nil, err
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("geometry: %w", err)
	}
	poly, ok := g.Coordinates.(orb.Polygon)
	if !ok {
		return nil, fmt.Errorf("geometry: want type Polygon, got %q", g.Type)
	}
	if len(poly) == 0 {
		return []model.LatLng{}, nil
	}
	out := make([]model.LatLng, 0, len(poly[0]))
	for i, p := range poly[0] {
		ll, err := position([]float64{p[0], p[1]})
		if err != nil {
			return nil, fmt.Errorf("vertex %d: %w", i, err)
		}
		out = append(out, ll)
	}
	return out, nil
}

// ParsePoint decodes a Point whose position is [lng, lat, alt?].
func ParsePoint(raw []byte, defaultAlt float64) (model.Point, error) {
	env, err := parseEnvelope(raw, "Point")
	if err != nil {
		return model.Point{}, err
	}
	var c []float64
	if err := json.Unmarshal(env.Coordinates, &c); err != nil {
		return model.Point{}, fmt.Errorf("geometry: Point coordinates: %w", err)
	}
	ll, err := position(c)
	if err != nil {
		return model.Point{}, err
	}
	alt := defaultAlt
	if len(c) >= 3 {
		alt = c[2]
	}
	return ll.At(alt), nil
}

// Waypoint is one entry of an explicit waypoint list.
type Waypoint struct {
	Lat      float64  `json:"latitude"`
	Lng      float64  `json:"longitude"`
	Altitude *float64 `json:"altitude,omitempty"`
}

// ParseWaypoints converts a waypoint list to points, filling missing
// altitudes with defaultAlt.
func ParseWaypoints(ws []Waypoint, defaultAlt float64) ([]model.Point, error) {
	out := make([]model.Point, 0, len(ws))
	for i, w := range ws {
		ll, err := position([]float64{w.Lng, w.Lat})
		if err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
		alt := defaultAlt
		if w.Altitude != nil {
			alt = *w.Altitude
		}
		out = append(out, ll.At(alt))
	}
	return out, nil
}

// Decoder applies the fail-soft contract on top of the Parse functions.
type Decoder struct {
	// CruiseAltitude fills in missing path altitudes.
	CruiseAltitude float64
	log            *slog.Logger
}

func NewDecoder(log *slog.Logger) *Decoder {
	if log == nil {
		log = slog.Default()
	}
	return &Decoder{CruiseAltitude: model.DefaultCruiseAltitude, log: log}
}

// Line returns the decoded path or an empty slice.
func (d *Decoder) Line(raw []byte) []model.Point {
	pts, err := ParseLine(raw, d.CruiseAltitude)
	if err != nil {
		d.warn("line", err)
		return []model.Point{}
	}
	return pts
}

// Waypoints returns the converted waypoint list or an empty slice.
func (d *Decoder) Waypoints(ws []Waypoint) []model.Point {
	pts, err := ParseWaypoints(ws, d.CruiseAltitude)
	if err != nil {
		d.warn("waypoints", err)
		return []model.Point{}
	}
	return pts
}

// Polygon returns the decoded outer ring or an empty slice.
func (d *Decoder) Polygon(raw []byte) []model.LatLng {
	ring, err := ParsePolygon(raw)
	if err != nil {
		d.warn("polygon", err)
		return []model.LatLng{}
	}
	return ring
}

// Point returns the decoded position; ok is false when it could not be read.
// Asset positions default to ground level.
func (d *Decoder) Point(raw []byte) (model.Point, bool) {
	p, err := ParsePoint(raw, 0)
	if err != nil {
		d.warn("point", err)
		return model.Point{}, false
	}
	return p, true
}

func (d *Decoder) warn(shape string, err error) {
	// missing geometry is routine, not worth a warning
	if errors.Is(err, ErrEmpty) {
		return
	}
	d.log.Warn("geometry decode failed", "shape", shape, "err", err)
}
