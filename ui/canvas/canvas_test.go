package canvas

import (
	"math"
	"os"
	"testing"

	"fyne.io/fyne/v2/test"
)

func TestMain(m *testing.M) {
	test.NewApp()
	os.Exit(m.Run())
}

func TestFitToWindowToggle(t *testing.T) {
	pc := NewPageCanvas()

	if pc.GetFitToWindow() {
		t.Fatal("auto-fit should be disabled on a new canvas")
	}

	pc.SetFitToWindow(true)
	if !pc.GetFitToWindow() {
		t.Error("SetFitToWindow(true) not reflected by GetFitToWindow")
	}

	pc.SetFitToWindow(false)
	if pc.GetFitToWindow() {
		t.Error("SetFitToWindow(false) not reflected by GetFitToWindow")
	}
}

func TestSetZoomClamps(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"within range", 2.0, 2.0},
		{"below minimum", 0.01, minZoom},
		{"above maximum", 50.0, maxZoom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := NewPageCanvas()
			pc.SetZoom(tt.in)
			if got := pc.GetZoom(); got != tt.want {
				t.Errorf("SetZoom(%v): got %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCoordinateMappingRoundTrip(t *testing.T) {
	pc := NewPageCanvas()
	pc.SetZoom(2.5)

	cx, cy := pc.ImageToCanvas(120, 340)
	ix, iy := pc.CanvasToImage(cx, cy)

	if math.Abs(ix-120) > 1e-9 || math.Abs(iy-340) > 1e-9 {
		t.Errorf("round trip gave (%v, %v), want (120, 340)", ix, iy)
	}
}
