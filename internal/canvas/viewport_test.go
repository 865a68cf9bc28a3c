package canvas

import (
	"math"
	"testing"
)

func TestScreenWorldRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		scale float64
		pan   Point
		p     Point
	}{
		{"identity", 1, Point{}, Point{X: 300, Y: 200}},
		{"zoomed in", 2, Point{X: 100, Y: -50}, Point{X: 512, Y: 384}},
		{"zoomed out", 0.5, Point{X: -240, Y: 120}, Point{X: 0, Y: 0}},
		{"negative coords", 1.3, Point{X: 17, Y: 91}, Point{X: -40, Y: -10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := &Viewport{Scale: tc.scale, Pan: tc.pan}
			got := v.WorldToScreen(v.ScreenToWorld(tc.p))
			if math.Abs(got.X-tc.p.X) > 1e-9 || math.Abs(got.Y-tc.p.Y) > 1e-9 {
				t.Fatalf("round trip: got %+v want %+v", got, tc.p)
			}
		})
	}
}

func TestScreenToWorld(t *testing.T) {
	v := &Viewport{Scale: 2, Pan: Point{X: 100, Y: 50}}
	got := v.ScreenToWorld(Point{X: 300, Y: 250})
	want := Point{X: 100, Y: 100}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestZoomClamping(t *testing.T) {
	v := NewViewport()

	v.ZoomTo(10)
	if v.Scale != MaxZoom {
		t.Fatalf("scale = %v, want %v", v.Scale, MaxZoom)
	}

	v.ZoomTo(0.01)
	if v.Scale != MinZoom {
		t.Fatalf("scale = %v, want %v", v.Scale, MinZoom)
	}

	v.ZoomTo(1)
	for i := 0; i < 50; i++ {
		v.ZoomOut()
	}
	if v.Scale != MinZoom {
		t.Fatalf("repeated zoom out: scale = %v, want %v", v.Scale, MinZoom)
	}
	for i := 0; i < 50; i++ {
		v.ZoomIn()
	}
	if v.Scale != MaxZoom {
		t.Fatalf("repeated zoom in: scale = %v, want %v", v.Scale, MaxZoom)
	}
}

func TestZoomPreservesPan(t *testing.T) {
	v := &Viewport{Scale: 1, Pan: Point{X: 33, Y: -7}}
	v.ZoomIn()
	if v.Pan != (Point{X: 33, Y: -7}) {
		t.Fatalf("pan changed on zoom: %+v", v.Pan)
	}
}

func TestClampNodePosition(t *testing.T) {
	cases := []struct {
		name         string
		x, y         float64
		wantX, wantY float64
	}{
		{"inside", 500, 400, 500, 400},
		{"negative", -30, -10, 0, 0},
		{"past right edge", CanvasWidth + 100, 0, CanvasWidth - NodeWidth, 0},
		{"past bottom edge", 0, CanvasHeight + 5, 0, CanvasHeight - NodeHeight},
		{"exact corner", CanvasWidth - NodeWidth, CanvasHeight - NodeHeight, CanvasWidth - NodeWidth, CanvasHeight - NodeHeight},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x, y := ClampNodePosition(tc.x, tc.y)
			if x != tc.wantX || y != tc.wantY {
				t.Fatalf("got (%v,%v) want (%v,%v)", x, y, tc.wantX, tc.wantY)
			}
		})
	}
}
