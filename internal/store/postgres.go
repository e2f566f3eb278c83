package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetglobe/internal/feed"
	"fleetglobe/internal/geometry"
)

// Postgres reads the fleet tables directly. It issues SELECTs only.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) ListAssets(ctx context.Context) ([]feed.AssetRecord, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, latitude, longitude, altitude, ST_AsGeoJSON(location), heading, pitch, roll, status, COALESCE(battery_level, 0) FROM drones ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list drones: %w", err)
	}
	defer rows.Close()
	out := []feed.AssetRecord{}
	for rows.Next() {
		var r feed.AssetRecord
		var lat, lng, alt, hdg, pitch, roll sql.NullFloat64
		var loc, status sql.NullString
		if err := rows.Scan(&r.ID, &lat, &lng, &alt, &loc, &hdg, &pitch, &roll, &status, &r.Battery); err != nil {
			return nil, err
		}
		r.Latitude, r.Longitude, r.Altitude = nullFloat(lat), nullFloat(lng), nullFloat(alt)
		r.Heading, r.Pitch, r.Roll = nullFloat(hdg), nullFloat(pitch), nullFloat(roll)
		r.Location = nullJSON(loc)
		r.Status = status.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) ListOrders(ctx context.Context) ([]feed.OrderRecord, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, status, assigned_drone_id, pickup_lat, pickup_lng, delivery_lat, delivery_lng FROM orders ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	out := []feed.OrderRecord{}
	for rows.Next() {
		var r feed.OrderRecord
		var drone sql.NullInt64
		var plat, plng, dlat, dlng sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.Status, &drone, &plat, &plng, &dlat, &dlng); err != nil {
			return nil, err
		}
		if drone.Valid {
			id := drone.Int64
			r.AssignedDrone = &id
		}
		r.PickupLat, r.PickupLng = nullFloat(plat), nullFloat(plng)
		r.DeliveryLat, r.DeliveryLng = nullFloat(dlat), nullFloat(dlng)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) ListRoutes(ctx context.Context) ([]feed.RouteRecord, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, order_id, ST_AsGeoJSON(path), waypoints, is_completed FROM routes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	defer rows.Close()
	out := []feed.RouteRecord{}
	for rows.Next() {
		var r feed.RouteRecord
		var path sql.NullString
		var waypoints []byte
		if err := rows.Scan(&r.ID, &r.OrderID, &path, &waypoints, &r.Completed); err != nil {
			return nil, err
		}
		r.Path = nullJSON(path)
		if len(waypoints) > 0 {
			var ws []geometry.Waypoint
			if err := json.Unmarshal(waypoints, &ws); err != nil {
				return nil, fmt.Errorf("route %d waypoints: %w", r.ID, err)
			}
			r.Waypoints = ws
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) ListRegions(ctx context.Context) ([]feed.RegionRecord, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name, zone_type, ST_AsGeoJSON(area), min_altitude, max_altitude FROM zones WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	defer rows.Close()
	out := []feed.RegionRecord{}
	for rows.Next() {
		var r feed.RegionRecord
		var area sql.NullString
		var lo, hi sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.Name, &r.ZoneType, &area, &lo, &hi); err != nil {
			return nil, err
		}
		r.Area = nullJSON(area)
		r.MinAltitude, r.MaxAltitude = nullFloat(lo), nullFloat(hi)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullJSON(v sql.NullString) json.RawMessage {
	if !v.Valid || v.String == "" {
		return nil
	}
	return json.RawMessage(v.String)
}
