// Package feed defines the raw records the fleet backend serves, the Source
// interface over them, and their normalization into canonical model values.
package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"fleetglobe/internal/geometry"
)

// AssetRecord is a drone as the backend reports it. Position arrives either
// as split latitude/longitude/altitude fields or as a Point geometry.
type AssetRecord struct {
	ID        int64           `json:"id"`
	Latitude  *float64        `json:"latitude,omitempty"`
	Longitude *float64        `json:"longitude,omitempty"`
	Altitude  *float64        `json:"altitude,omitempty"`
	Location  json.RawMessage `json:"location,omitempty"`
	Heading   *float64        `json:"heading,omitempty"`
	Pitch     *float64        `json:"pitch,omitempty"`
	Roll      *float64        `json:"roll,omitempty"`
	Status    string          `json:"status"`
	Battery   float64         `json:"battery_level"`
}

// OrderRecord carries pickup and delivery coordinates and a lifecycle status.
type OrderRecord struct {
	ID            int64    `json:"id"`
	Status        string   `json:"status"`
	AssignedDrone *int64   `json:"assigned_drone,omitempty"`
	PickupLat     *float64 `json:"pickup_lat,omitempty"`
	PickupLng     *float64 `json:"pickup_lng,omitempty"`
	DeliveryLat   *float64 `json:"delivery_lat,omitempty"`
	DeliveryLng   *float64 `json:"delivery_lng,omitempty"`
}

// RouteRecord is a persisted route. Path is a LineString geometry; when it is
// absent the ordered Waypoints are used instead.
type RouteRecord struct {
	ID        int64               `json:"id"`
	OrderID   int64               `json:"order_id"`
	Path      json.RawMessage     `json:"path,omitempty"`
	Waypoints []geometry.Waypoint `json:"waypoints,omitempty"`
	Completed bool                `json:"is_completed"`
}

// RegionRecord is a geofenced zone with an encoded Polygon area.
type RegionRecord struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	ZoneType    string          `json:"zone_type"`
	Area        json.RawMessage `json:"area"`
	MinAltitude *float64        `json:"min_altitude,omitempty"`
	MaxAltitude *float64        `json:"max_altitude,omitempty"`
}

// Kind names one independently fetched collection.
type Kind string

const (
	KindAssets  Kind = "assets"
	KindOrders  Kind = "orders"
	KindRoutes  Kind = "routes"
	KindRegions Kind = "regions"
)

// AllKinds is every collection a visualization can request.
var AllKinds = []Kind{KindAssets, KindOrders, KindRoutes, KindRegions}

// ParseKind validates a collection name from configuration.
func ParseKind(s string) (Kind, error) {
	for _, k := range AllKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("feed: unknown source kind %q", s)
}

// Source lists the current records of each collection. Implementations must
// be safe for concurrent use; the poller calls them in parallel.
type Source interface {
	ListAssets(ctx context.Context) ([]AssetRecord, error)
	ListOrders(ctx context.Context) ([]OrderRecord, error)
	ListRoutes(ctx context.Context) ([]RouteRecord, error)
	ListRegions(ctx context.Context) ([]RegionRecord, error)
}

// Batch holds the records of one poll, one field per kind.
type Batch struct {
	Assets  []AssetRecord
	Orders  []OrderRecord
	Routes  []RouteRecord
	Regions []RegionRecord
}

// Fetch lists a single kind from src into a Batch with only that field set.
func Fetch(ctx context.Context, src Source, k Kind) (Batch, error) {
	var (
		b   Batch
		err error
	)
	switch k {
	case KindAssets:
		b.Assets, err = src.ListAssets(ctx)
	case KindOrders:
		b.Orders, err = src.ListOrders(ctx)
	case KindRoutes:
		b.Routes, err = src.ListRoutes(ctx)
	case KindRegions:
		b.Regions, err = src.ListRegions(ctx)
	default:
		return b, fmt.Errorf("feed: unknown source kind %q", k)
	}
	if err != nil {
		return Batch{}, fmt.Errorf("list %s: %w", k, err)
	}
	return b, nil
}

// Take copies kind k's records from o into b.
func (b *Batch) Take(k Kind, o Batch) {
	switch k {
	case KindAssets:
		b.Assets = o.Assets
	case KindOrders:
		b.Orders = o.Orders
	case KindRoutes:
		b.Routes = o.Routes
	case KindRegions:
		b.Regions = o.Regions
	}
}

// Len is the total number of records in b.
func (b Batch) Len() int {
	return len(b.Assets) + len(b.Orders) + len(b.Routes) + len(b.Regions)
}
