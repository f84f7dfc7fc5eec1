package feature

import "testing"

func TestPosition_Point(t *testing.T) {
	f := Feature{ID: 1, Geometry: Point, Coordinates: [][2]float64{{-21.9419851, 64.14602}}}
	p, err := f.Position()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Lat != 64.14602 || p.Lon != -21.9419851 {
		t.Fatalf("unexpected position %+v", p)
	}
	if f.OSMType() != "node" {
		t.Fatalf("want node, got %s", f.OSMType())
	}
}

func TestPosition_LineStringUsesFirstVertex(t *testing.T) {
	f := Feature{
		ID:          2,
		Geometry:    LineString,
		Coordinates: [][2]float64{{2.0, 48.0}, {2.1, 48.1}, {2.2, 48.2}},
	}
	p, err := f.Position()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Lat != 48.0 || p.Lon != 2.0 {
		t.Fatalf("want first vertex, got %+v", p)
	}
	if f.OSMType() != "way" {
		t.Fatalf("want way, got %s", f.OSMType())
	}
}

func TestPosition_Errors(t *testing.T) {
	if _, err := (Feature{ID: 3, Geometry: Point}).Position(); err == nil {
		t.Fatal("expected error for empty coordinates")
	}
	f := Feature{ID: 4, Geometry: "Polygon", Coordinates: [][2]float64{{0, 0}}}
	if _, err := f.Position(); err == nil {
		t.Fatal("expected error for unsupported geometry")
	}
}

func TestProperties(t *testing.T) {
	var nilProps Properties
	if nilProps.Get("x") != "" || nilProps.Has("x") {
		t.Fatal("nil properties should behave as empty")
	}
	p := Properties{"name": "Bakery", "empty": ""}
	if !p.Has("name") || p.Has("empty") || p.Has("missing") {
		t.Fatal("unexpected Has results")
	}
	c := p.Clone()
	c["name"] = "changed"
	if p["name"] != "Bakery" {
		t.Fatal("clone must not alias the original")
	}
}
