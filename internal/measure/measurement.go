package measure

import (
	"time"

	"pdf-measure/pkg/geometry"
)

// Measurement is a two-point distance annotation, independent of the
// specimen rectangles. The pixel distance is fixed at creation; the
// millimeter length is a derived view recomputed on recalibration.
type Measurement struct {
	ID        int              `json:"id"`
	Label     string           `json:"label"`
	PageIndex int              `json:"page"`
	Point1Px  geometry.Point2D `json:"point1_px"`
	Point2Px  geometry.Point2D `json:"point2_px"`

	PixelDistance float64 `json:"pixel_distance"`
	LengthMM      float64 `json:"length_mm"`
	// Calibrated distinguishes a true zero-length calibrated measurement
	// from one taken with no calibration in effect.
	Calibrated bool `json:"calibrated"`

	Group     string    `json:"group"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DxPx returns the horizontal pixel displacement from point 1 to point 2.
func (m *Measurement) DxPx() float64 {
	return m.Point2Px.X - m.Point1Px.X
}

// DyPx returns the vertical pixel displacement from point 1 to point 2.
func (m *Measurement) DyPx() float64 {
	return m.Point2Px.Y - m.Point1Px.Y
}

// AngleDegrees returns the angle of the measurement line from horizontal.
func (m *Measurement) AngleDegrees() float64 {
	return m.Point1Px.AngleDegrees(m.Point2Px)
}

// Recalibrate recomputes the millimeter length from the immutable pixel
// distance. A zero factor marks the measurement uncalibrated.
func (m *Measurement) Recalibrate(mmPerPixel float64) {
	if mmPerPixel <= 0 {
		m.LengthMM = 0
		m.Calibrated = false
		return
	}
	m.LengthMM = m.PixelDistance * mmPerPixel
	m.Calibrated = true
}

// ExportMap returns the flat field mapping used by the serialization layer.
// LengthMM exports as nil when the measurement is uncalibrated.
func (m *Measurement) ExportMap() map[string]interface{} {
	var lengthMM interface{}
	if m.Calibrated {
		lengthMM = m.LengthMM
	}
	return map[string]interface{}{
		"id":             m.ID,
		"label":          m.Label,
		"group":          m.Group,
		"page":           m.PageIndex,
		"x1_px":          m.Point1Px.X,
		"y1_px":          m.Point1Px.Y,
		"x2_px":          m.Point2Px.X,
		"y2_px":          m.Point2Px.Y,
		"dx_px":          m.DxPx(),
		"dy_px":          m.DyPx(),
		"pixel_distance": m.PixelDistance,
		"length_mm":      lengthMM,
		"angle_deg":      m.AngleDegrees(),
		"timestamp":      m.Timestamp.Format(time.RFC3339Nano),
		"notes":          m.Notes,
	}
}
