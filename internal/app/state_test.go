package app

import (
	"path/filepath"
	"testing"

	"pdf-measure/internal/calibration"
	"pdf-measure/internal/measure"
	"pdf-measure/pkg/geometry"
)

func calibratedState(t *testing.T, mmPerPixel float64) *State {
	t.Helper()
	s := NewState()
	cal, err := calibration.FromKnownLength(
		geometry.NewPoint2D(0, 0), geometry.NewPoint2D(100, 0), 100*mmPerPixel, 0)
	if err != nil {
		t.Fatalf("calibration setup: %v", err)
	}
	s.Calibration = &cal
	return s
}

func TestMeasureClickWorkflow(t *testing.T) {
	s := calibratedState(t, 0.1)
	s.StartMeasurement()

	var changed int
	s.On(EventMeasurementsChanged, func(interface{}) { changed++ })

	if err := s.HandleClick(geometry.NewPoint2D(10, 10)); err != nil {
		t.Fatalf("first click: %v", err)
	}
	if got := s.PendingClicks(); got != 1 {
		t.Errorf("pending clicks = %d, want 1", got)
	}
	if err := s.HandleClick(geometry.NewPoint2D(310, 410)); err != nil {
		t.Fatalf("second click: %v", err)
	}

	if changed != 1 {
		t.Errorf("measurement event fired %d times, want 1", changed)
	}
	if len(s.Collection.Measurements) != 1 {
		t.Fatalf("measurement count = %d, want 1", len(s.Collection.Measurements))
	}
	m := s.Collection.Measurements[0]
	if m.Label != "M1" {
		t.Errorf("label = %q, want M1", m.Label)
	}
	if m.PixelDistance != 500 {
		t.Errorf("pixel distance = %v, want 500", m.PixelDistance)
	}
	if !m.Calibrated || m.LengthMM != 50 {
		t.Errorf("length = %v mm (calibrated=%v), want 50", m.LengthMM, m.Calibrated)
	}
	// Measure mode stays active for the next pair of clicks.
	if s.Mode() != ModeMeasure {
		t.Errorf("mode after measurement = %v, want ModeMeasure", s.Mode())
	}
	if !s.Modified {
		t.Error("session not marked modified")
	}
}

func TestCalibrateClickWorkflow(t *testing.T) {
	s := NewState()
	s.StartCalibration(50)

	if err := s.HandleClick(geometry.NewPoint2D(0, 0)); err != nil {
		t.Fatalf("first click: %v", err)
	}
	if err := s.HandleClick(geometry.NewPoint2D(300, 400)); err != nil {
		t.Fatalf("second click: %v", err)
	}

	if s.Calibration == nil {
		t.Fatal("no calibration stored")
	}
	if got := s.MMPerPixel(); got != 0.1 {
		t.Errorf("mm/pixel = %v, want 0.1", got)
	}
	if s.Calibration.Source != calibration.SourceManual {
		t.Errorf("source = %q, want manual", s.Calibration.Source)
	}
	if s.Mode() != ModeView {
		t.Errorf("mode after calibration = %v, want ModeView", s.Mode())
	}
}

func TestCalibrateRejectsCoincidentPoints(t *testing.T) {
	s := NewState()
	s.StartCalibration(10)

	s.HandleClick(geometry.NewPoint2D(5, 5))
	if err := s.HandleClick(geometry.NewPoint2D(5, 5)); err == nil {
		t.Fatal("expected error for coincident calibration points")
	}
	if s.Calibration != nil {
		t.Error("failed calibration must not be stored")
	}
}

func TestRectangleClickWorkflow(t *testing.T) {
	s := calibratedState(t, 0.1)
	s.StartRectangle(measure.GroupPre)

	s.HandleClick(geometry.NewPoint2D(250, 300))
	if err := s.HandleClick(geometry.NewPoint2D(50, 50)); err != nil {
		t.Fatalf("rectangle completion: %v", err)
	}

	rect := s.Collection.PreRectangle
	if rect == nil {
		t.Fatal("pre rectangle not stored")
	}
	if rect.WidthPx != 200 || rect.HeightPx != 250 {
		t.Errorf("rectangle size = %v x %v px, want 200 x 250", rect.WidthPx, rect.HeightPx)
	}
	if s.Mode() != ModeView {
		t.Errorf("mode after rectangle = %v, want ModeView", s.Mode())
	}
}

func TestRectangleClickDegenerate(t *testing.T) {
	s := NewState()
	s.StartRectangle(measure.GroupPost)

	s.HandleClick(geometry.NewPoint2D(100, 100))
	if err := s.HandleClick(geometry.NewPoint2D(100, 300)); err == nil {
		t.Fatal("expected error for zero-width rectangle")
	}
	if s.Collection.PostRectangle != nil {
		t.Error("degenerate rectangle must not be stored")
	}
}

func TestParticleTrackingWorkflow(t *testing.T) {
	s := calibratedState(t, 0.1)
	s.StartParticleTracking()

	if s.Mode() != ModeParticlePre {
		t.Fatalf("mode = %v, want ModeParticlePre", s.Mode())
	}
	s.HandleClick(geometry.NewPoint2D(100, 200))
	if s.Mode() != ModeParticlePost {
		t.Fatalf("mode after pre click = %v, want ModeParticlePost", s.Mode())
	}
	if err := s.HandleClick(geometry.NewPoint2D(130, 160)); err != nil {
		t.Fatalf("post click: %v", err)
	}

	if len(s.Collection.Particles) != 1 {
		t.Fatalf("particle count = %d, want 1", len(s.Collection.Particles))
	}
	p := s.Collection.Particles[0]
	if p.Label != "P1" {
		t.Errorf("label = %q, want P1", p.Label)
	}
	if d := p.DisplacementPx(); d.X != 30 || d.Y != -40 {
		t.Errorf("displacement = %v, want (30, -40)", d)
	}
	if p.DisplacementMagnitudePx() != 50 {
		t.Errorf("magnitude = %v, want 50", p.DisplacementMagnitudePx())
	}
	if s.Mode() != ModeView {
		t.Errorf("mode after particle = %v, want ModeView", s.Mode())
	}
}

func TestCancelModeClearsPendingClicks(t *testing.T) {
	s := NewState()
	s.StartMeasurement()
	s.HandleClick(geometry.NewPoint2D(10, 10))
	s.CancelMode()

	if s.Mode() != ModeView {
		t.Errorf("mode = %v, want ModeView", s.Mode())
	}
	if s.PendingClicks() != 0 {
		t.Errorf("pending clicks = %d, want 0", s.PendingClicks())
	}
	if len(s.Collection.Measurements) != 0 {
		t.Error("canceled measurement must not be stored")
	}
}

func TestToggleGroupCycles(t *testing.T) {
	s := NewState()
	want := []string{"post", "fiber", "edge", "other", "pre"}
	for i, w := range want {
		if got := s.ToggleGroup(); got != w {
			t.Fatalf("toggle %d = %q, want %q", i+1, got, w)
		}
	}
}

func TestDeleteLastFallsBackToParticles(t *testing.T) {
	s := calibratedState(t, 0.1)

	s.StartParticleTracking()
	s.HandleClick(geometry.NewPoint2D(10, 10))
	s.HandleClick(geometry.NewPoint2D(20, 20))

	s.StartMeasurement()
	s.HandleClick(geometry.NewPoint2D(0, 0))
	s.HandleClick(geometry.NewPoint2D(30, 40))

	if got := s.DeleteLast(); got != "M1" {
		t.Errorf("first delete = %q, want M1", got)
	}
	if got := s.DeleteLast(); got != "P1" {
		t.Errorf("second delete = %q, want P1", got)
	}
	if got := s.DeleteLast(); got != "" {
		t.Errorf("empty delete = %q, want empty string", got)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := calibratedState(t, 0.1)
	s.StartMeasurement()
	s.HandleClick(geometry.NewPoint2D(0, 0))
	s.HandleClick(geometry.NewPoint2D(300, 400))

	path := filepath.Join(t.TempDir(), "session.json")
	if err := s.SaveSession(path); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if s.Modified {
		t.Error("save must clear the modified flag")
	}

	s2 := NewState()
	if err := s2.LoadSession(path); err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if len(s2.Collection.Measurements) != 1 {
		t.Fatalf("restored measurement count = %d, want 1", len(s2.Collection.Measurements))
	}
	if got := s2.MMPerPixel(); got != 0.1 {
		t.Errorf("restored mm/pixel = %v, want 0.1", got)
	}
	// The next label continues past the restored ids.
	if got := s2.Collection.NextMeasurementID(); got != 2 {
		t.Errorf("next measurement id = %d, want 2", got)
	}
}
