package measure

import (
	"errors"
	"math"
	"testing"

	"pdf-measure/pkg/geometry"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewRectangleNormalization(t *testing.T) {
	p1 := geometry.Point2D{X: 100, Y: 300}
	p2 := geometry.Point2D{X: 50, Y: 50}

	// Construction must be identical regardless of click order.
	for name, pair := range map[string][2]geometry.Point2D{
		"forward":  {p1, p2},
		"reversed": {p2, p1},
	} {
		t.Run(name, func(t *testing.T) {
			r, err := NewRectangle(GroupPre, 0, pair[0], pair[1], 0)
			if err != nil {
				t.Fatalf("NewRectangle() error = %v", err)
			}
			if r.BottomLeftPx != (geometry.Point2D{X: 50, Y: 300}) {
				t.Errorf("BottomLeftPx = %+v", r.BottomLeftPx)
			}
			if r.TopRightPx != (geometry.Point2D{X: 100, Y: 50}) {
				t.Errorf("TopRightPx = %+v", r.TopRightPx)
			}
			if r.BottomRightPx != (geometry.Point2D{X: 100, Y: 300}) {
				t.Errorf("BottomRightPx = %+v", r.BottomRightPx)
			}
			if r.TopLeftPx != (geometry.Point2D{X: 50, Y: 50}) {
				t.Errorf("TopLeftPx = %+v", r.TopLeftPx)
			}
			if r.WidthPx != 50 || r.HeightPx != 250 {
				t.Errorf("dimensions = %v x %v, want 50 x 250", r.WidthPx, r.HeightPx)
			}
		})
	}
}

func TestNewRectangleDegenerate(t *testing.T) {
	tests := []struct {
		name   string
		p1, p2 geometry.Point2D
	}{
		{"identical points", geometry.Point2D{X: 10, Y: 10}, geometry.Point2D{X: 10, Y: 10}},
		{"shared x", geometry.Point2D{X: 10, Y: 10}, geometry.Point2D{X: 10, Y: 90}},
		{"shared y", geometry.Point2D{X: 10, Y: 10}, geometry.Point2D{X: 90, Y: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRectangle(GroupPre, 0, tt.p1, tt.p2, 0.1)
			if !errors.Is(err, ErrDegenerateRect) {
				t.Errorf("error = %v, want ErrDegenerateRect", err)
			}
			if r != nil {
				t.Errorf("rectangle constructed despite rejection: %+v", r)
			}
		})
	}
}

func TestRectangleMMCorners(t *testing.T) {
	r, err := NewRectangle(GroupPost, 1,
		geometry.Point2D{X: 100, Y: 300}, geometry.Point2D{X: 50, Y: 50}, 0.1)
	if err != nil {
		t.Fatal(err)
	}

	if !almostEqual(r.WidthMM, 5.0) || !almostEqual(r.HeightMM, 25.0) {
		t.Errorf("mm dimensions = %v x %v, want 5 x 25", r.WidthMM, r.HeightMM)
	}
	if r.BottomLeftMM != (geometry.Point2D{}) {
		t.Errorf("BottomLeftMM = %+v, want origin", r.BottomLeftMM)
	}
	if !almostEqual(r.BottomRightMM.X, 5) || !almostEqual(r.BottomRightMM.Y, 0) {
		t.Errorf("BottomRightMM = %+v", r.BottomRightMM)
	}
	if !almostEqual(r.TopLeftMM.X, 0) || !almostEqual(r.TopLeftMM.Y, 25) {
		t.Errorf("TopLeftMM = %+v", r.TopLeftMM)
	}
	if !almostEqual(r.TopRightMM.X, 5) || !almostEqual(r.TopRightMM.Y, 25) {
		t.Errorf("TopRightMM = %+v", r.TopRightMM)
	}
}

func TestRectangleUncalibratedPlaceholders(t *testing.T) {
	r, err := NewRectangle(GroupPre, 0,
		geometry.Point2D{X: 0, Y: 0}, geometry.Point2D{X: 10, Y: 20}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if r.WidthMM != 0 || r.HeightMM != 0 || r.TopRightMM != (geometry.Point2D{}) {
		t.Errorf("mm fields not zero placeholders: %+v", r)
	}

	// Calibrating afterwards fills them in from unchanged pixel data.
	r.Recalibrate(0.5)
	if !almostEqual(r.WidthMM, 5) || !almostEqual(r.HeightMM, 10) {
		t.Errorf("after recalibrate: %v x %v, want 5 x 10", r.WidthMM, r.HeightMM)
	}
	if r.WidthPx != 10 || r.HeightPx != 20 {
		t.Errorf("pixel dimensions changed: %v x %v", r.WidthPx, r.HeightPx)
	}
}

func TestProjectToMMAxisInversion(t *testing.T) {
	r, err := NewRectangle(GroupPre, 0,
		geometry.Point2D{X: 50, Y: 50}, geometry.Point2D{X: 100, Y: 300}, 0.1)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		point geometry.Point2D
		want  geometry.Point2D
	}{
		{"origin corner", geometry.Point2D{X: 50, Y: 300}, geometry.Point2D{X: 0, Y: 0}},
		{"50px above origin", geometry.Point2D{X: 50, Y: 250}, geometry.Point2D{X: 0, Y: 5}},
		{"right along bottom", geometry.Point2D{X: 100, Y: 300}, geometry.Point2D{X: 5, Y: 0}},
		{"outside left and below", geometry.Point2D{X: 40, Y: 310}, geometry.Point2D{X: -1, Y: -1}},
		{"above the top edge", geometry.Point2D{X: 50, Y: 0}, geometry.Point2D{X: 0, Y: 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ProjectToMM(tt.point, 0.1)
			if !almostEqual(got.X, tt.want.X) || !almostEqual(got.Y, tt.want.Y) {
				t.Errorf("ProjectToMM(%+v) = %+v, want %+v", tt.point, got, tt.want)
			}
		})
	}
}

func TestProjectToMMSentinel(t *testing.T) {
	var nilRect *Rectangle
	if got := nilRect.ProjectToMM(geometry.Point2D{X: 7, Y: 9}, 0.1); got != (geometry.Point2D{}) {
		t.Errorf("nil rectangle projection = %+v, want sentinel", got)
	}

	r, _ := NewRectangle(GroupPre, 0, geometry.Point2D{X: 0, Y: 0}, geometry.Point2D{X: 10, Y: 10}, 0.1)
	if got := r.ProjectToMM(geometry.Point2D{X: 7, Y: 9}, 0); got != (geometry.Point2D{}) {
		t.Errorf("uncalibrated projection = %+v, want sentinel", got)
	}
}
