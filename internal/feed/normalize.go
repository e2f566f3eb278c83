package feed

import (
	"log/slog"

	"fleetglobe/internal/geometry"
	"fleetglobe/internal/model"
	"fleetglobe/internal/route"
)

// Normalizer turns raw records into canonical values. Geometry problems never
// surface as errors: the affected field comes back empty and is logged.
type Normalizer struct {
	dec *geometry.Decoder
	log *slog.Logger
}

func NewNormalizer(dec *geometry.Decoder, log *slog.Logger) *Normalizer {
	if log == nil {
		log = slog.Default()
	}
	if dec == nil {
		dec = geometry.NewDecoder(log)
	}
	return &Normalizer{dec: dec, log: log}
}

// Asset resolves the drone's position from split fields first, then from the
// point geometry. Position stays nil when neither is usable.
func (n *Normalizer) Asset(r AssetRecord) model.Asset {
	a := model.Asset{
		ID:      r.ID,
		Heading: r.Heading,
		Pitch:   r.Pitch,
		Roll:    r.Roll,
		Status:  model.ParseAssetStatus(r.Status),
		Battery: clamp(r.Battery, 0, 100),
	}
	switch {
	case r.Latitude != nil && r.Longitude != nil:
		if err := geometry.CheckLatLng(*r.Latitude, *r.Longitude); err != nil {
			n.log.Warn("asset position rejected", "asset", r.ID, "err", err)
			break
		}
		alt := 0.0
		if r.Altitude != nil {
			alt = *r.Altitude
		}
		a.Position = &model.Point{Lat: *r.Latitude, Lng: *r.Longitude, Altitude: alt}
	case len(r.Location) > 0:
		if p, ok := n.dec.Point(r.Location); ok {
			if r.Altitude != nil {
				p.Altitude = *r.Altitude
			}
			a.Position = &p
		}
	}
	return a
}

func (n *Normalizer) Order(r OrderRecord) model.Order {
	return model.Order{
		ID:            r.ID,
		Status:        r.Status,
		AssignedAsset: r.AssignedDrone,
		Pickup:        n.latLng("pickup", r.ID, r.PickupLat, r.PickupLng),
		Delivery:      n.latLng("delivery", r.ID, r.DeliveryLat, r.DeliveryLng),
	}
}

func (n *Normalizer) latLng(field string, order int64, lat, lng *float64) *model.LatLng {
	if lat == nil || lng == nil {
		return nil
	}
	if err := geometry.CheckLatLng(*lat, *lng); err != nil {
		n.log.Warn("order coordinate rejected", "order", order, "field", field, "err", err)
		return nil
	}
	return &model.LatLng{Lat: *lat, Lng: *lng}
}

// Route keys the path by its order. The line geometry wins over waypoints.
func (n *Normalizer) Route(r RouteRecord) model.Path {
	var pts []model.Point
	if len(r.Path) > 0 && string(r.Path) != "null" {
		pts = n.dec.Line(r.Path)
	} else {
		pts = n.dec.Waypoints(r.Waypoints)
	}
	id := r.OrderID
	if id == 0 {
		id = r.ID
	}
	return model.Path{
		ID:        id,
		Points:    pts,
		Completed: r.Completed,
		Color:     model.PathColor(r.Completed, false),
	}
}

func (n *Normalizer) Region(r RegionRecord) model.Region {
	g := model.Region{
		ID:       r.ID,
		Name:     r.Name,
		Type:     model.ParseRegionType(r.ZoneType),
		Boundary: n.dec.Polygon(r.Area),
	}
	if r.MaxAltitude != nil {
		lo := 0.0
		if r.MinAltitude != nil {
			lo = *r.MinAltitude
		}
		g.AltitudeRange = &model.AltitudeRange{Min: lo, Max: *r.MaxAltitude}
	}
	return g
}

// Snapshot builds the canonical snapshot from b. When orders were fetched,
// paths are resolved per active order with synthesis as the fallback;
// otherwise every route is shown as is.
func (n *Normalizer) Snapshot(b Batch, withOrders bool) model.Snapshot {
	s := model.Snapshot{
		Assets:  make([]model.Asset, 0, len(b.Assets)),
		Regions: make([]model.Region, 0, len(b.Regions)),
	}
	for _, r := range b.Assets {
		s.Assets = append(s.Assets, n.Asset(r))
	}
	for _, r := range b.Regions {
		s.Regions = append(s.Regions, n.Region(r))
	}
	routes := make([]model.Path, 0, len(b.Routes))
	for _, r := range b.Routes {
		routes = append(routes, n.Route(r))
	}
	if !withOrders {
		s.Paths = routes
		return s
	}
	orders := make([]model.Order, 0, len(b.Orders))
	for _, r := range b.Orders {
		orders = append(orders, n.Order(r))
	}
	s.Paths = route.Resolve(orders, routes, s.Assets)
	return s
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
