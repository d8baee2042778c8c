package calibration

import (
	"errors"
	"math"
	"testing"

	"pdf-measure/pkg/geometry"
)

func TestFromPageGeometry(t *testing.T) {
	cal, err := FromPageGeometry(210.0, 1240)
	if err != nil {
		t.Fatalf("FromPageGeometry() error = %v", err)
	}
	if math.Abs(cal.MMPerPixel-0.169355) > 1e-5 {
		t.Errorf("MMPerPixel = %v, want ~0.169355", cal.MMPerPixel)
	}
	if cal.Source != SourcePage {
		t.Errorf("Source = %q, want %q", cal.Source, SourcePage)
	}
}

func TestFromPageGeometryInvalid(t *testing.T) {
	tests := []struct {
		name    string
		widthMM float64
		widthPx int
		wantErr error
	}{
		{"zero pixels", 210.0, 0, ErrZeroPageWidth},
		{"negative pixels", 210.0, -5, ErrZeroPageWidth},
		{"zero mm", 0, 1240, nil},
		{"negative mm", -210.0, 1240, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromPageGeometry(tt.widthMM, tt.widthPx)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromKnownLength(t *testing.T) {
	cal, err := FromKnownLength(geometry.Point2D{X: 0, Y: 0}, geometry.Point2D{X: 300, Y: 400}, 50, 2)
	if err != nil {
		t.Fatalf("FromKnownLength() error = %v", err)
	}
	// Pixel distance is 500, so 50mm / 500px = 0.1 mm/px.
	if math.Abs(cal.MMPerPixel-0.1) > 1e-12 {
		t.Errorf("MMPerPixel = %v, want 0.1", cal.MMPerPixel)
	}
	if cal.Source != SourceManual {
		t.Errorf("Source = %q, want %q", cal.Source, SourceManual)
	}
	if cal.PageIndex != 2 {
		t.Errorf("PageIndex = %d, want 2", cal.PageIndex)
	}
	if cal.Point1Px == nil || cal.Point2Px == nil {
		t.Fatal("reference points not recorded")
	}
	if *cal.Point2Px != (geometry.Point2D{X: 300, Y: 400}) {
		t.Errorf("Point2Px = %+v", *cal.Point2Px)
	}
	if cal.KnownLengthMM != 50 {
		t.Errorf("KnownLengthMM = %v, want 50", cal.KnownLengthMM)
	}
}

func TestFromKnownLengthInvalid(t *testing.T) {
	p := geometry.Point2D{X: 10, Y: 10}

	if _, err := FromKnownLength(p, p, 50, 0); !errors.Is(err, ErrCoincidentPoints) {
		t.Errorf("coincident points: error = %v, want ErrCoincidentPoints", err)
	}
	if _, err := FromKnownLength(p, geometry.Point2D{X: 20, Y: 10}, 0, 0); !errors.Is(err, ErrNonPositiveLength) {
		t.Errorf("zero length: error = %v, want ErrNonPositiveLength", err)
	}
	if _, err := FromKnownLength(p, geometry.Point2D{X: 20, Y: 10}, -3, 0); !errors.Is(err, ErrNonPositiveLength) {
		t.Errorf("negative length: error = %v, want ErrNonPositiveLength", err)
	}
}

func TestConversionRoundTrip(t *testing.T) {
	cal, err := FromPageGeometry(297.0, 1754)
	if err != nil {
		t.Fatal(err)
	}

	for _, d := range []float64{0.5, 1, 42, 1337.25, 1e6} {
		got := cal.MMToPixels(cal.PixelsToMM(d))
		if math.Abs(got-d) > 1e-9*d {
			t.Errorf("round trip for %v px = %v", d, got)
		}
	}
}
