package availability

import (
	"context"
	"testing"
	"time"

	"ysksales/backend/internal/domain"
)

func TestResolveSubtractsReservations(t *testing.T) {
	engine := NewEngine(nil, time.Second)
	products := map[string]domain.Product{
		"prd-1": {ID: "prd-1", Stock: 10},
		"prd-2": {ID: "prd-2", Stock: 3},
	}
	reserved := map[string]int{"prd-1": 4}

	resp := engine.Resolve(context.Background(), domain.AvailabilityRequest{
		ProductIDs: []string{"prd-2", "prd-1", "prd-1", ""},
	}, products, reserved)

	if len(resp.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(resp.Items))
	}
	// Normalized order is sorted by product id.
	if resp.Items[0].ProductID != "prd-1" || resp.Items[0].Available != 6 {
		t.Fatalf("prd-1 availability = %+v, want available 6", resp.Items[0])
	}
	if resp.Items[1].ProductID != "prd-2" || resp.Items[1].Available != 3 {
		t.Fatalf("prd-2 availability = %+v, want available 3", resp.Items[1])
	}
}

func TestResolveOverbookedGoesNegative(t *testing.T) {
	engine := NewEngine(nil, time.Second)
	products := map[string]domain.Product{"prd-1": {ID: "prd-1", Stock: 2}}
	reserved := map[string]int{"prd-1": 5}

	resp := engine.Resolve(context.Background(), domain.AvailabilityRequest{
		ProductIDs: []string{"prd-1"},
	}, products, reserved)

	if resp.Items[0].Available != -3 {
		t.Fatalf("available = %d, want -3", resp.Items[0].Available)
	}
}

func TestSellable(t *testing.T) {
	product := domain.Product{ID: "prd-1", Stock: 10}

	if !Sellable(product, 4, 6) {
		t.Fatal("6 of 10 with 4 reserved should be sellable")
	}
	if Sellable(product, 4, 7) {
		t.Fatal("7 of 10 with 4 reserved should not be sellable")
	}
	if Sellable(product, 0, 0) {
		t.Fatal("zero quantity is never sellable")
	}
}

func TestCacheKeyIgnoresOrderAndDuplicates(t *testing.T) {
	a := buildCacheKey(domain.AvailabilityRequest{ProductIDs: []string{"b", "a", "a"}})
	b := buildCacheKey(domain.AvailabilityRequest{ProductIDs: []string{"a", "b"}})
	if a != b {
		t.Fatalf("cache keys differ for equivalent requests: %s vs %s", a, b)
	}

	c := buildCacheKey(domain.AvailabilityRequest{ProductIDs: []string{"a", "b"}, ExcludeBookingID: "bok-1"})
	if a == c {
		t.Fatal("exclude booking id must change the cache key")
	}
}
