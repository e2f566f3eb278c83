package route

import (
	"testing"

	"fleetglobe/internal/model"
)

func TestResolvePrefersPersistedRoute(t *testing.T) {
	assets := []model.Asset{asset(1, 12.97, 77.59, model.StatusIdle)}
	orders := []model.Order{
		{ID: 1, Status: "in_transit", Pickup: ll(12.9, 77.6), Delivery: ll(12.95, 77.55)},
		{ID: 2, Status: "pending", Pickup: ll(12.9, 77.6), Delivery: ll(12.95, 77.55)},
		{ID: 3, Status: "delivered", Pickup: ll(12.9, 77.6), Delivery: ll(12.95, 77.55)},
		{ID: 4, Status: "pending"},
	}
	routes := []model.Path{
		{ID: 1, Points: []model.Point{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}, Color: model.ColorActive},
		{ID: 2},
		{ID: 3, Points: []model.Point{{Lat: 1, Lng: 1}}},
	}

	got := Resolve(orders, routes, assets)
	if len(got) != 2 {
		t.Fatalf("want 2 paths, got %+v", got)
	}
	if got[0].ID != 1 || got[0].Synthesized || len(got[0].Points) != 2 {
		t.Fatalf("order 1 should use its route: %+v", got[0])
	}
	if got[1].ID != 2 || !got[1].Synthesized {
		t.Fatalf("order 2 has an empty route and should be synthesized: %+v", got[1])
	}
}

func TestResolveNoOrders(t *testing.T) {
	if got := Resolve(nil, []model.Path{{ID: 1, Points: []model.Point{{}}}}, nil); len(got) != 0 {
		t.Fatalf("routes without orders: %+v", got)
	}
}
