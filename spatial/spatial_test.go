package spatial

import "testing"

func TestInsertGetRemove(t *testing.T) {
	x := New()

	x.Insert("u1", 51.5074, -0.1278)
	pos, ok := x.Get("u1")
	if !ok || pos.Lat != 51.5074 {
		t.Fatalf("Get after Insert = %+v, %v", pos, ok)
	}

	// moving replaces the old point
	x.Insert("u1", 48.8566, 2.3522)
	pos, _ = x.Get("u1")
	if pos.Lat != 48.8566 {
		t.Errorf("position after move = %+v", pos)
	}
	if x.Len() != 1 {
		t.Errorf("Len after move = %d, want 1", x.Len())
	}

	x.Remove("u1")
	if _, ok := x.Get("u1"); ok {
		t.Error("Get after Remove succeeded")
	}
	// removing twice is fine
	x.Remove("u1")
}

func TestNearby(t *testing.T) {
	x := New()
	x.Insert("near", 37.7750, -122.4195)
	x.Insert("far", 40.7128, -74.0060)

	results := x.Nearby(37.7749, -122.4194, 500, 10)
	if len(results) != 1 || results[0].ID != "near" {
		t.Errorf("Nearby = %+v, want just near", results)
	}

	results = x.Nearby(0, 0, 500, 10)
	if len(results) != 0 {
		t.Errorf("Nearby empty area = %+v, want none", results)
	}
}
