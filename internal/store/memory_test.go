package store

import (
	"context"
	"errors"
	"testing"

	"fleetglobe/internal/feed"
)

func TestMemoryListsSortedCopies(t *testing.T) {
	m := NewMemory()
	m.PutAsset(feed.AssetRecord{ID: 9, Status: "idle"})
	m.PutAsset(feed.AssetRecord{ID: 2, Status: "idle"})

	got, err := m.ListAssets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 9 {
		t.Fatalf("order %+v", got)
	}
	got[0].Status = "offline"
	again, _ := m.ListAssets(context.Background())
	if again[0].Status != "idle" {
		t.Fatal("list leaked internal state")
	}
}

func TestMemoryUpdateUnknownAsset(t *testing.T) {
	m := NewMemory()
	if err := m.UpdateAsset(5, func(*feed.AssetRecord) {}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMemoryInjectedError(t *testing.T) {
	m := NewDemo()
	boom := errors.New("forbidden")
	m.SetError(feed.KindRegions, boom)
	if _, err := m.ListRegions(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("want injected error, got %v", err)
	}
	m.SetError(feed.KindRegions, nil)
	regions, err := m.ListRegions(context.Background())
	if err != nil || len(regions) != 2 {
		t.Fatalf("regions %d err=%v", len(regions), err)
	}
}

func TestDemoNormalizes(t *testing.T) {
	m := NewDemo()
	ctx := context.Background()
	var b feed.Batch
	for _, k := range feed.AllKinds {
		part, err := feed.Fetch(ctx, m, k)
		if err != nil {
			t.Fatal(err)
		}
		b.Take(k, part)
	}
	s := feed.NewNormalizer(nil, nil).Snapshot(b, true)
	if len(s.Assets) != 4 {
		t.Fatalf("assets %d", len(s.Assets))
	}
	for _, a := range s.Assets {
		if a.Position == nil {
			t.Fatalf("demo asset %d unpositioned", a.ID)
		}
	}
	// 101 has a persisted route, 102 is synthesized, 103 is delivered
	if len(s.Paths) != 2 || s.Paths[0].Synthesized || !s.Paths[1].Synthesized {
		t.Fatalf("paths %+v", s.Paths)
	}
	for _, g := range s.Regions {
		if len(g.Boundary) != 5 {
			t.Fatalf("region %d boundary %d", g.ID, len(g.Boundary))
		}
	}
}

func TestStepMovesAirborneDrones(t *testing.T) {
	m := NewDemo()
	before, _ := m.ListAssets(context.Background())
	if n := m.Step(100); n != 1 {
		t.Fatalf("moved %d drones, want only the delivering one with a heading", n)
	}
	after, _ := m.ListAssets(context.Background())
	// Drone 2 heads 135 degrees: south-east.
	if !(*after[1].Latitude < *before[1].Latitude && *after[1].Longitude > *before[1].Longitude) {
		t.Fatalf("drone 2 %v,%v -> %v,%v", *before[1].Latitude, *before[1].Longitude, *after[1].Latitude, *after[1].Longitude)
	}
	if *after[0].Latitude != *before[0].Latitude {
		t.Fatal("idle drone moved")
	}
}
