package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"fleetglobe/internal/feed"
)

// Memory is a simple in-memory store used when no DATABASE_URL or feed URL is
// set, and as the fixture source in tests.
type Memory struct {
	mu      sync.Mutex
	assets  map[int64]feed.AssetRecord
	orders  map[int64]feed.OrderRecord
	routes  map[int64]feed.RouteRecord
	regions map[int64]feed.RegionRecord
	errs    map[feed.Kind]error // injected list failures
}

func NewMemory() *Memory {
	return &Memory{
		assets:  map[int64]feed.AssetRecord{},
		orders:  map[int64]feed.OrderRecord{},
		routes:  map[int64]feed.RouteRecord{},
		regions: map[int64]feed.RegionRecord{},
		errs:    map[feed.Kind]error{},
	}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
func (m *Memory) Close() error { return nil }

// SetError makes every List call for kind k fail with err until cleared with nil.
func (m *Memory) SetError(k feed.Kind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, k)
		return
	}
	m.errs[k] = err
}

func (m *Memory) PutAsset(r feed.AssetRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[r.ID] = r
}

func (m *Memory) PutOrder(r feed.OrderRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[r.ID] = r
}

func (m *Memory) PutRoute(r feed.RouteRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[r.ID] = r
}

func (m *Memory) PutRegion(r feed.RegionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regions[r.ID] = r
}

// UpdateAsset applies fn to asset id under the store lock.
func (m *Memory) UpdateAsset(id int64, fn func(*feed.AssetRecord)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.assets[id]
	if !ok {
		return fmt.Errorf("asset %d: %w", id, ErrNotFound)
	}
	fn(&r)
	m.assets[id] = r
	return nil
}

// Step moves every airborne drone that has a heading by meters along it. The
// demo command calls it on a ticker so the globe has something to animate.
func (m *Memory) Step(meters float64) int {
	m.mu.Lock()
	var ids []int64
	for id, r := range m.assets {
		if airborne(r) {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	moved := 0
	for _, id := range ids {
		err := m.UpdateAsset(id, func(r *feed.AssetRecord) {
			next := geo.PointAtBearingAndDistance(orb.Point{*r.Longitude, *r.Latitude}, *r.Heading, meters)
			// Fresh pointers: records already handed out by List share the old ones.
			r.Latitude, r.Longitude = fp(next.Lat()), fp(next.Lon())
		})
		if err == nil {
			moved++
		}
	}
	return moved
}

func airborne(r feed.AssetRecord) bool {
	if r.Heading == nil || r.Latitude == nil || r.Longitude == nil {
		return false
	}
	return r.Status == "delivering" || r.Status == "returning"
}

func (m *Memory) ListAssets(ctx context.Context) ([]feed.AssetRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[feed.KindAssets]; err != nil {
		return nil, err
	}
	return sortedValues(m.assets), nil
}

func (m *Memory) ListOrders(ctx context.Context) ([]feed.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[feed.KindOrders]; err != nil {
		return nil, err
	}
	return sortedValues(m.orders), nil
}

func (m *Memory) ListRoutes(ctx context.Context) ([]feed.RouteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[feed.KindRoutes]; err != nil {
		return nil, err
	}
	return sortedValues(m.routes), nil
}

func (m *Memory) ListRegions(ctx context.Context) ([]feed.RegionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[feed.KindRegions]; err != nil {
		return nil, err
	}
	return sortedValues(m.regions), nil
}

// sortedValues returns a copy of m ordered by id so list output is stable.
func sortedValues[T any](m map[int64]T) []T {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func fp(v float64) *float64 { return &v }

// NewDemo returns a Memory seeded with a small fleet around Bengaluru: four
// drones, three orders (one with a persisted route), and two zones.
func NewDemo() *Memory {
	m := NewMemory()
	drones := []feed.AssetRecord{
		{ID: 1, Latitude: fp(12.9716), Longitude: fp(77.5946), Altitude: fp(0), Status: "idle", Battery: 96},
		{ID: 2, Latitude: fp(12.9352), Longitude: fp(77.6245), Altitude: fp(110), Heading: fp(135), Status: "delivering", Battery: 64},
		{ID: 3, Location: json.RawMessage(`{"type":"Point","coordinates":[77.6408,12.9784,0]}`), Status: "charging", Battery: 22},
		{ID: 4, Latitude: fp(13.0358), Longitude: fp(77.5970), Altitude: fp(90), Status: "returning", Battery: 41},
	}
	for _, d := range drones {
		m.assets[d.ID] = d
	}
	two := int64(2)
	orders := []feed.OrderRecord{
		{ID: 101, Status: "in_transit", AssignedDrone: &two,
			PickupLat: fp(12.9279), PickupLng: fp(77.6271), DeliveryLat: fp(12.9141), DeliveryLng: fp(77.6446)},
		{ID: 102, Status: "pending",
			PickupLat: fp(12.9698), PickupLng: fp(77.7500), DeliveryLat: fp(12.9591), DeliveryLng: fp(77.6974)},
		{ID: 103, Status: "delivered",
			PickupLat: fp(12.9121), PickupLng: fp(77.6446), DeliveryLat: fp(12.9250), DeliveryLng: fp(77.5938)},
	}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	m.routes[1] = feed.RouteRecord{ID: 1, OrderID: 101,
		Path: json.RawMessage(`{"type":"LineString","coordinates":[[77.6245,12.9352,110],[77.6271,12.9279,120],[77.6446,12.9141,120]]}`)}
	m.regions[1] = feed.RegionRecord{ID: 1, Name: "Kempegowda Airport", ZoneType: "no_fly",
		Area:        json.RawMessage(`{"type":"Polygon","coordinates":[[[77.68,13.17],[77.73,13.17],[77.73,13.22],[77.68,13.22],[77.68,13.17]]]}`),
		MaxAltitude: fp(1500)}
	m.regions[2] = feed.RegionRecord{ID: 2, Name: "Koramangala Ops", ZoneType: "operational",
		Area: json.RawMessage(`{"type":"Polygon","coordinates":[[[77.60,12.92],[77.64,12.92],[77.64,12.95],[77.60,12.95],[77.60,12.92]]]}`)}
	return m
}
