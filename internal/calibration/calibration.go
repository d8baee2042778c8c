// Package calibration derives and applies the millimeters-per-pixel scale
// factor used to convert on-screen pixel distances to physical lengths.
package calibration

import (
	"errors"
	"fmt"
	"math"

	"pdf-measure/pkg/geometry"
)

// Source identifies how a calibration factor was derived.
type Source string

const (
	// SourcePage means the factor came from the page's physical geometry.
	SourcePage Source = "page"
	// SourceManual means the factor came from a user-supplied reference length.
	SourceManual Source = "manual"
)

var (
	// ErrZeroPageWidth is returned when the rendered page width is not positive.
	ErrZeroPageWidth = errors.New("page width in pixels must be positive")
	// ErrCoincidentPoints is returned when the two reference points are identical.
	ErrCoincidentPoints = errors.New("reference points coincide")
	// ErrNonPositiveLength is returned when the known reference length is not positive.
	ErrNonPositiveLength = errors.New("known length must be positive")
)

// Calibration is an immutable value object holding the scale factor and its
// provenance. Replacing a calibration means constructing a new one and
// recalibrating the measurement collection; the factor is never mutated.
type Calibration struct {
	MMPerPixel    float64           `json:"mm_per_pixel"`
	Source        Source            `json:"source"`
	PageIndex     int               `json:"page_index,omitempty"`
	Point1Px      *geometry.Point2D `json:"point1_px,omitempty"`
	Point2Px      *geometry.Point2D `json:"point2_px,omitempty"`
	KnownLengthMM float64           `json:"known_length_mm,omitempty"`
}

// FromPageGeometry builds a calibration from the page's physical width and
// its rendered width in pixels. This assumes the page is rendered at true scale.
func FromPageGeometry(pageWidthMM float64, pageWidthPx int) (Calibration, error) {
	if pageWidthPx <= 0 {
		return Calibration{}, fmt.Errorf("page geometry calibration: %w (got %d)", ErrZeroPageWidth, pageWidthPx)
	}
	if pageWidthMM <= 0 || math.IsInf(pageWidthMM, 0) || math.IsNaN(pageWidthMM) {
		return Calibration{}, fmt.Errorf("page geometry calibration: invalid page width %.3f mm", pageWidthMM)
	}
	return Calibration{
		MMPerPixel: pageWidthMM / float64(pageWidthPx),
		Source:     SourcePage,
	}, nil
}

// FromKnownLength builds a calibration from two clicked reference points a
// known physical distance apart. The reference points are retained for
// traceability.
func FromKnownLength(p1, p2 geometry.Point2D, knownLengthMM float64, pageIndex int) (Calibration, error) {
	if knownLengthMM <= 0 {
		return Calibration{}, fmt.Errorf("manual calibration: %w (got %.3f)", ErrNonPositiveLength, knownLengthMM)
	}
	pixelDistance := p1.Distance(p2)
	if pixelDistance == 0 {
		return Calibration{}, fmt.Errorf("manual calibration: %w", ErrCoincidentPoints)
	}
	return Calibration{
		MMPerPixel:    knownLengthMM / pixelDistance,
		Source:        SourceManual,
		PageIndex:     pageIndex,
		Point1Px:      &p1,
		Point2Px:      &p2,
		KnownLengthMM: knownLengthMM,
	}, nil
}

// PixelsToMM converts a pixel distance to millimeters.
func (c Calibration) PixelsToMM(pixelDistance float64) float64 {
	return pixelDistance * c.MMPerPixel
}

// MMToPixels converts a millimeter distance to pixels.
func (c Calibration) MMToPixels(mmDistance float64) float64 {
	return mmDistance / c.MMPerPixel
}
