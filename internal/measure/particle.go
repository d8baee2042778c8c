package measure

import (
	"math"

	"pdf-measure/pkg/geometry"
)

// ParticleDisplacement is one tracked physical point observed before and
// after a test. Each side's pixel position is projected into the millimeter
// frame of the matching rectangle (pre rectangle for the pre position, post
// rectangle for the post position). When that side's rectangle or the
// calibration is absent the millimeter position is the zero point — an
// "uncalibrated" sentinel, not a real coordinate.
type ParticleDisplacement struct {
	ID    int    `json:"id"`
	Label string `json:"label"`

	PrePositionPx  geometry.Point2D `json:"pre_position_px"`
	PostPositionPx geometry.Point2D `json:"post_position_px"`
	PrePositionMM  geometry.Point2D `json:"pre_position_mm"`
	PostPositionMM geometry.Point2D `json:"post_position_mm"`

	PrePageIndex  int `json:"pre_page"`
	PostPageIndex int `json:"post_page"`
}

// DisplacementPx returns the raw pixel-space displacement from the pre
// position to the post position.
func (p *ParticleDisplacement) DisplacementPx() geometry.Point2D {
	return p.PostPositionPx.Sub(p.PrePositionPx)
}

// DisplacementMagnitudePx returns the pixel-space displacement magnitude.
func (p *ParticleDisplacement) DisplacementMagnitudePx() float64 {
	d := p.DisplacementPx()
	return math.Sqrt(d.X*d.X + d.Y*d.Y)
}

// DisplacementMagnitudeMM returns the displacement magnitude scaled to
// millimeters, or 0 when uncalibrated.
func (p *ParticleDisplacement) DisplacementMagnitudeMM(mmPerPixel float64) float64 {
	if mmPerPixel <= 0 {
		return 0
	}
	return p.DisplacementMagnitudePx() * mmPerPixel
}

// Reproject recomputes both millimeter positions against the given
// rectangle slots and factor. A nil rectangle or zero factor yields the
// zero-point sentinel for that side. The pixel positions never change.
func (p *ParticleDisplacement) Reproject(preRect, postRect *Rectangle, mmPerPixel float64) {
	p.PrePositionMM = preRect.ProjectToMM(p.PrePositionPx, mmPerPixel)
	p.PostPositionMM = postRect.ProjectToMM(p.PostPositionPx, mmPerPixel)
}

// ExportMap returns the flat field mapping used by the serialization layer.
func (p *ParticleDisplacement) ExportMap() map[string]interface{} {
	d := p.DisplacementPx()
	return map[string]interface{}{
		"id":           p.ID,
		"label":        p.Label,
		"pre_x_px":     p.PrePositionPx.X,
		"pre_y_px":     p.PrePositionPx.Y,
		"post_x_px":    p.PostPositionPx.X,
		"post_y_px":    p.PostPositionPx.Y,
		"pre_x_mm":     p.PrePositionMM.X,
		"pre_y_mm":     p.PrePositionMM.Y,
		"post_x_mm":    p.PostPositionMM.X,
		"post_y_mm":    p.PostPositionMM.Y,
		"pre_page":     p.PrePageIndex,
		"post_page":    p.PostPageIndex,
		"dx_px":        d.X,
		"dy_px":        d.Y,
		"magnitude_px": p.DisplacementMagnitudePx(),
	}
}
