package export

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pdf-measure/internal/calibration"
	"pdf-measure/internal/measure"
	"pdf-measure/pkg/geometry"
)

func pt(x, y float64) geometry.Point2D {
	return geometry.Point2D{X: x, Y: y}
}

func buildSession(t *testing.T) (*measure.Collection, calibration.Calibration) {
	t.Helper()
	cal, err := calibration.FromKnownLength(pt(0, 0), pt(300, 400), 50, 0)
	if err != nil {
		t.Fatal(err)
	}

	c := measure.NewCollection()
	if _, err := c.AddRectangle(measure.GroupPre, 0, pt(50, 50), pt(100, 300), cal.MMPerPixel); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddRectangle(measure.GroupPost, 1, pt(200, 100), pt(300, 400), cal.MMPerPixel); err != nil {
		t.Fatal(err)
	}
	c.AddMeasurement("M1", 0, pt(0, 0), pt(300, 400), cal.MMPerPixel, "pre", "specimen edge")
	c.AddMeasurement("M2", 1, pt(5, 5), pt(5, 55), cal.MMPerPixel, "post", "")
	c.AddParticle("P1", pt(60, 250), pt(220, 350), 0, 1, cal.MMPerPixel)
	c.AddParticle("P2", pt(75, 120), pt(240, 180), 0, 1, cal.MMPerPixel)
	return c, cal
}

func TestJSONRoundTrip(t *testing.T) {
	c, cal := buildSession(t)
	path := filepath.Join(t.TempDir(), "session.json")

	if err := SaveJSON(path, c, &cal); err != nil {
		t.Fatalf("SaveJSON() error = %v", err)
	}

	loaded, loadedCal, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON() error = %v", err)
	}

	if diff := cmp.Diff(c.Measurements, loaded.Measurements); diff != "" {
		t.Errorf("measurements differ (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(c.Particles, loaded.Particles); diff != "" {
		t.Errorf("particles differ (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(c.PreRectangle, loaded.PreRectangle); diff != "" {
		t.Errorf("pre rectangle differs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(c.PostRectangle, loaded.PostRectangle); diff != "" {
		t.Errorf("post rectangle differs (-want +got):\n%s", diff)
	}

	// Counters come back as max(id)+1.
	if loaded.NextMeasurementID() != 3 {
		t.Errorf("NextMeasurementID = %d, want 3", loaded.NextMeasurementID())
	}
	if loaded.NextParticleID() != 3 {
		t.Errorf("NextParticleID = %d, want 3", loaded.NextParticleID())
	}

	if loadedCal == nil || math.Abs(loadedCal.MMPerPixel-cal.MMPerPixel) > 1e-12 {
		t.Errorf("calibration = %+v, want %+v", loadedCal, cal)
	}
	if loadedCal.Source != calibration.SourceManual {
		t.Errorf("calibration source = %q", loadedCal.Source)
	}
}

func TestLoadJSONEmptySession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := SaveJSON(path, measure.NewCollection(), nil); err != nil {
		t.Fatal(err)
	}

	loaded, cal, err := LoadJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	if cal != nil {
		t.Errorf("calibration = %+v, want nil", cal)
	}
	if loaded.NextMeasurementID() != 1 || loaded.NextParticleID() != 1 {
		t.Error("fresh counters expected for empty session")
	}
}

func TestSaveCSV(t *testing.T) {
	c, cal := buildSession(t)
	path := filepath.Join(t.TempDir(), "session.csv")

	if err := SaveCSV(path, c, &cal); err != nil {
		t.Fatalf("SaveCSV() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)

	for _, want := range []string{
		"# Calibration: 0.100000 mm/pixel (manual)",
		"# === RECTANGLES ===",
		"# === MEASUREMENTS ===",
		"# === PARTICLE DISPLACEMENTS ===",
		"M1,pre,0",
		"specimen edge",
		"# Summary: 2 particles",
		strings.Join(measurementColumns, ","),
		strings.Join(particleColumns, ","),
	} {
		if !strings.Contains(text, want) {
			t.Errorf("CSV missing %q:\n%s", want, text)
		}
	}

	// M1 spans 500 px at 0.1 mm/px.
	if !strings.Contains(text, ",500,50,") {
		t.Errorf("CSV missing measurement distance/length 500/50:\n%s", text)
	}
}

// The flat export views drive serialization; their field names are the
// contract loaders and the CSV columns rely on.
func TestExportMapFieldNames(t *testing.T) {
	c, _ := buildSession(t)

	tests := []struct {
		name   string
		fields map[string]interface{}
		want   []string
	}{
		{
			"measurement", c.Measurements[0].ExportMap(),
			[]string{
				"id", "label", "group", "page",
				"x1_px", "y1_px", "x2_px", "y2_px",
				"dx_px", "dy_px", "pixel_distance",
				"length_mm", "angle_deg", "timestamp", "notes",
			},
		},
		{
			"rectangle", c.PreRectangle.ExportMap(),
			[]string{
				"group", "page",
				"bottom_left_px", "bottom_right_px", "top_left_px", "top_right_px",
				"bottom_left_mm", "bottom_right_mm", "top_left_mm", "top_right_mm",
				"width_px", "height_px", "width_mm", "height_mm", "timestamp",
			},
		},
		{
			"particle", c.Particles[0].ExportMap(),
			[]string{
				"id", "label",
				"pre_x_px", "pre_y_px", "post_x_px", "post_y_px",
				"pre_x_mm", "pre_y_mm", "post_x_mm", "post_y_mm",
				"pre_page", "post_page",
				"dx_px", "dy_px", "magnitude_px",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range tt.want {
				if _, ok := tt.fields[key]; !ok {
					t.Errorf("export map missing %q", key)
				}
			}
			if len(tt.fields) != len(tt.want) {
				t.Errorf("export map has %d fields, want %d", len(tt.fields), len(tt.want))
			}
		})
	}

	// The calibrated measurement carries a concrete length; stripping the
	// calibration makes the same field absent, not zero.
	if got := c.Measurements[0].ExportMap()["length_mm"]; got != 50.0 {
		t.Errorf("length_mm = %v, want 50", got)
	}
	uncal := measure.NewCollection()
	m := uncal.AddMeasurement("M1", 0, pt(0, 0), pt(10, 0), 0, "default", "")
	if got := m.ExportMap()["length_mm"]; got != nil {
		t.Errorf("uncalibrated length_mm = %v, want nil", got)
	}
}

func TestSaveCSVUncalibrated(t *testing.T) {
	c := measure.NewCollection()
	c.AddMeasurement("M1", 0, pt(0, 0), pt(10, 0), 0, "default", "")
	path := filepath.Join(t.TempDir(), "uncal.csv")

	if err := SaveCSV(path, c, nil); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "N/A") {
		t.Errorf("uncalibrated length should export as N/A:\n%s", data)
	}
	if strings.Contains(string(data), "# Calibration") {
		t.Error("calibration header written without calibration")
	}
}

func TestSummarize(t *testing.T) {
	c, cal := buildSession(t)

	s := Summarize(c, &cal)
	if s == nil {
		t.Fatal("expected summary")
	}
	if s.ParticleCount != 2 || s.Unit != "mm" {
		t.Errorf("summary = %+v", s)
	}
	// P1 moves (160,100) px, P2 moves (165,60) px; at 0.1 mm/px the mean of
	// the two magnitudes is (18.8680 + 17.5570)/2 ≈ 18.21 mm.
	if math.Abs(s.MeanMagnitude-18.2125) > 0.01 {
		t.Errorf("MeanMagnitude = %v", s.MeanMagnitude)
	}

	if Summarize(measure.NewCollection(), &cal) != nil {
		t.Error("expected nil summary for empty collection")
	}

	if s := Summarize(c, nil); s.Unit != "px" {
		t.Errorf("uncalibrated summary unit = %q, want px", s.Unit)
	}
}
