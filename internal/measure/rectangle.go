// Package measure holds the measurement bookkeeping engine: specimen
// rectangles, two-point distance measurements, tracked particle
// displacements, and the collection that keeps all derived millimeter
// values consistent when the calibration factor changes.
package measure

import (
	"errors"
	"fmt"
	"time"

	"pdf-measure/pkg/geometry"
)

// Group partitions measurements and rectangles into logical categories.
// Rectangles use exactly GroupPre or GroupPost, one live instance each.
type Group string

const (
	GroupPre  Group = "pre"
	GroupPost Group = "post"
)

// ErrDegenerateRect is returned when two clicked points span a zero-area
// rectangle. Callers branch on it with errors.Is and prompt for re-entry.
var ErrDegenerateRect = errors.New("degenerate rectangle: zero width or height")

// Rectangle is one physical specimen outline on a page. The pixel corners
// are the durable primary data; the millimeter corners are a derived view
// anchored at the rectangle's own bottom-left pixel corner, with the
// y axis pointing up (physical convention), so BottomLeftMM is always (0,0).
//
// "Bottom" follows the millimeter-space convention: larger pixel y is
// visually lower on the page and therefore the millimeter-space bottom.
type Rectangle struct {
	Group     Group `json:"group"`
	PageIndex int   `json:"page"`

	BottomLeftPx  geometry.Point2D `json:"bottom_left_px"`
	BottomRightPx geometry.Point2D `json:"bottom_right_px"`
	TopLeftPx     geometry.Point2D `json:"top_left_px"`
	TopRightPx    geometry.Point2D `json:"top_right_px"`

	BottomLeftMM  geometry.Point2D `json:"bottom_left_mm"`
	BottomRightMM geometry.Point2D `json:"bottom_right_mm"`
	TopLeftMM     geometry.Point2D `json:"top_left_mm"`
	TopRightMM    geometry.Point2D `json:"top_right_mm"`

	WidthPx  float64 `json:"width_px"`
	HeightPx float64 `json:"height_px"`
	WidthMM  float64 `json:"width_mm"`
	HeightMM float64 `json:"height_mm"`

	Timestamp time.Time `json:"timestamp"`
}

// NewRectangle builds a normalized axis-aligned rectangle from two diagonal
// corner clicks, in either order. A non-positive width or height (coincident
// points, or points sharing an x or y coordinate) is rejected with
// ErrDegenerateRect and nothing is constructed.
//
// mmPerPixel of zero means uncalibrated: the millimeter fields stay at their
// zero placeholders until Recalibrate supplies a factor.
func NewRectangle(group Group, pageIndex int, p1, p2 geometry.Point2D, mmPerPixel float64) (*Rectangle, error) {
	box := geometry.BoundingBox([]geometry.Point2D{p1, p2})
	if box.Width <= 0 || box.Height <= 0 {
		return nil, fmt.Errorf("%w: clicks (%.1f,%.1f) and (%.1f,%.1f)",
			ErrDegenerateRect, p1.X, p1.Y, p2.X, p2.Y)
	}

	minX, minY := box.X, box.Y
	maxX, maxY := box.X+box.Width, box.Y+box.Height

	r := &Rectangle{
		Group:         group,
		PageIndex:     pageIndex,
		BottomLeftPx:  geometry.Point2D{X: minX, Y: maxY},
		BottomRightPx: geometry.Point2D{X: maxX, Y: maxY},
		TopLeftPx:     geometry.Point2D{X: minX, Y: minY},
		TopRightPx:    geometry.Point2D{X: maxX, Y: minY},
		WidthPx:       box.Width,
		HeightPx:      box.Height,
		Timestamp:     time.Now(),
	}
	r.Recalibrate(mmPerPixel)
	return r, nil
}

// Recalibrate recomputes the millimeter dimensions and corners from the
// unchanged pixel dimensions. The pixel corners are never touched. A zero
// factor resets the millimeter fields to their uncalibrated placeholders.
func (r *Rectangle) Recalibrate(mmPerPixel float64) {
	if mmPerPixel <= 0 {
		r.WidthMM, r.HeightMM = 0, 0
		r.BottomLeftMM = geometry.Point2D{}
		r.BottomRightMM = geometry.Point2D{}
		r.TopLeftMM = geometry.Point2D{}
		r.TopRightMM = geometry.Point2D{}
		return
	}

	r.WidthMM = r.WidthPx * mmPerPixel
	r.HeightMM = r.HeightPx * mmPerPixel
	r.BottomLeftMM = geometry.Point2D{X: 0, Y: 0}
	r.BottomRightMM = geometry.Point2D{X: r.WidthMM, Y: 0}
	r.TopLeftMM = geometry.Point2D{X: 0, Y: r.HeightMM}
	r.TopRightMM = geometry.Point2D{X: r.WidthMM, Y: r.HeightMM}
}

// ProjectToMM projects an arbitrary pixel-space point into this rectangle's
// local millimeter frame. The x axis keeps the pixel direction (rightward
// positive); the y axis is inverted because pixel y grows downward while
// millimeter y grows upward. The result is not clipped to the rectangle:
// points outside the drawn boundary legitimately yield negative or
// over-range coordinates.
func (r *Rectangle) ProjectToMM(p geometry.Point2D, mmPerPixel float64) geometry.Point2D {
	if r == nil || mmPerPixel <= 0 {
		return geometry.Point2D{}
	}
	dx := p.X - r.BottomLeftPx.X
	dy := r.BottomLeftPx.Y - p.Y
	return geometry.Point2D{X: dx * mmPerPixel, Y: dy * mmPerPixel}
}

// ExportMap returns the flat field mapping used by the serialization layer.
func (r *Rectangle) ExportMap() map[string]interface{} {
	return map[string]interface{}{
		"group":           string(r.Group),
		"page":            r.PageIndex,
		"bottom_left_px":  r.BottomLeftPx,
		"bottom_right_px": r.BottomRightPx,
		"top_left_px":     r.TopLeftPx,
		"top_right_px":    r.TopRightPx,
		"bottom_left_mm":  r.BottomLeftMM,
		"bottom_right_mm": r.BottomRightMM,
		"top_left_mm":     r.TopLeftMM,
		"top_right_mm":    r.TopRightMM,
		"width_px":        r.WidthPx,
		"height_px":       r.HeightPx,
		"width_mm":        r.WidthMM,
		"height_mm":       r.HeightMM,
		"timestamp":       r.Timestamp.Format(time.RFC3339Nano),
	}
}
