package measure

import (
	"time"

	"pdf-measure/pkg/geometry"
)

// Collection is the aggregate session state: at most one pre and one post
// rectangle, the ordered measurement list, the ordered particle list, and
// the per-session id counters. Pixel data is the durable primary data;
// every millimeter value is a derived view the collection can recompute on
// demand from a new scale factor.
//
// A Collection is not safe for concurrent mutation. Callers serialize
// access; several operations read then write multiple fields, so a
// multi-threaded host must wrap whole operations in one critical section.
type Collection struct {
	PreRectangle  *Rectangle              `json:"pre_rectangle,omitempty"`
	PostRectangle *Rectangle              `json:"post_rectangle,omitempty"`
	Measurements  []*Measurement          `json:"measurements"`
	Particles     []*ParticleDisplacement `json:"particles"`

	nextMeasurementID int
	nextParticleID    int
}

// NewCollection creates an empty collection with id counters at 1.
func NewCollection() *Collection {
	return &Collection{
		nextMeasurementID: 1,
		nextParticleID:    1,
	}
}

// RectangleFor returns the live rectangle for the group, or nil.
func (c *Collection) RectangleFor(group Group) *Rectangle {
	if group == GroupPost {
		return c.PostRectangle
	}
	return c.PreRectangle
}

// AddRectangle builds a rectangle from two diagonal clicks and stores it in
// the group's slot, replacing any existing rectangle for that group. On a
// degenerate click pair it returns ErrDegenerateRect and the prior slot is
// left untouched. Stored particles are re-projected against the new slot so
// no stale millimeter position survives the replacement.
func (c *Collection) AddRectangle(group Group, pageIndex int, p1, p2 geometry.Point2D, mmPerPixel float64) (*Rectangle, error) {
	rect, err := NewRectangle(group, pageIndex, p1, p2, mmPerPixel)
	if err != nil {
		return nil, err
	}

	if group == GroupPost {
		c.PostRectangle = rect
	} else {
		c.PreRectangle = rect
	}
	c.reprojectSide(group, rect, mmPerPixel)
	return rect, nil
}

// DeleteRectangle removes and returns the group's rectangle, or nil when the
// slot is empty. Particle positions projected against the removed rectangle
// fall back to the zero-point sentinel.
func (c *Collection) DeleteRectangle(group Group) *Rectangle {
	var removed *Rectangle
	if group == GroupPost {
		removed, c.PostRectangle = c.PostRectangle, nil
	} else {
		removed, c.PreRectangle = c.PreRectangle, nil
	}
	if removed != nil {
		c.reprojectSide(group, nil, 0)
	}
	return removed
}

// reprojectSide recomputes one side's millimeter position for every stored
// particle against the given rectangle (nil means sentinel).
func (c *Collection) reprojectSide(group Group, rect *Rectangle, mmPerPixel float64) {
	for _, p := range c.Particles {
		if group == GroupPost {
			p.PostPositionMM = rect.ProjectToMM(p.PostPositionPx, mmPerPixel)
		} else {
			p.PrePositionMM = rect.ProjectToMM(p.PrePositionPx, mmPerPixel)
		}
	}
}

// AddMeasurement appends a new two-point measurement. Any pair of finite
// points is accepted, coincident ones included: the pixel distance may be 0.
func (c *Collection) AddMeasurement(label string, pageIndex int, p1, p2 geometry.Point2D, mmPerPixel float64, group, notes string) *Measurement {
	m := &Measurement{
		ID:            c.nextMeasurementID,
		Label:         label,
		PageIndex:     pageIndex,
		Point1Px:      p1,
		Point2Px:      p2,
		PixelDistance: p1.Distance(p2),
		Group:         group,
		Notes:         notes,
		Timestamp:     time.Now(),
	}
	m.Recalibrate(mmPerPixel)
	c.Measurements = append(c.Measurements, m)
	c.nextMeasurementID++
	return m
}

// AddParticle appends a tracked particle, projecting each side's position
// against the collection's current rectangle slot for that side.
func (c *Collection) AddParticle(label string, prePx, postPx geometry.Point2D, prePage, postPage int, mmPerPixel float64) *ParticleDisplacement {
	p := &ParticleDisplacement{
		ID:             c.nextParticleID,
		Label:          label,
		PrePositionPx:  prePx,
		PostPositionPx: postPx,
		PrePageIndex:   prePage,
		PostPageIndex:  postPage,
	}
	p.Reproject(c.PreRectangle, c.PostRectangle, mmPerPixel)
	c.Particles = append(c.Particles, p)
	c.nextParticleID++
	return p
}

// DeleteLastMeasurement removes and returns the most recently added
// measurement, or nil when the list is empty. Ids are never reused.
func (c *Collection) DeleteLastMeasurement() *Measurement {
	if len(c.Measurements) == 0 {
		return nil
	}
	m := c.Measurements[len(c.Measurements)-1]
	c.Measurements = c.Measurements[:len(c.Measurements)-1]
	return m
}

// DeleteLastParticle removes and returns the most recently added particle,
// or nil when the list is empty.
func (c *Collection) DeleteLastParticle() *ParticleDisplacement {
	if len(c.Particles) == 0 {
		return nil
	}
	p := c.Particles[len(c.Particles)-1]
	c.Particles = c.Particles[:len(c.Particles)-1]
	return p
}

// ClearAll empties both lists, clears both rectangle slots, and resets both
// id counters to 1. Irreversible.
func (c *Collection) ClearAll() {
	c.PreRectangle = nil
	c.PostRectangle = nil
	c.Measurements = nil
	c.Particles = nil
	c.nextMeasurementID = 1
	c.nextParticleID = 1
}

// Recalibrate re-derives every stored millimeter value from the new factor:
// measurement lengths, rectangle dimensions and corners, and particle
// projections against the current rectangle slots. This is the single code
// path that keeps the whole aggregate consistent after the factor changes.
func (c *Collection) Recalibrate(mmPerPixel float64) {
	for _, m := range c.Measurements {
		m.Recalibrate(mmPerPixel)
	}
	if c.PreRectangle != nil {
		c.PreRectangle.Recalibrate(mmPerPixel)
	}
	if c.PostRectangle != nil {
		c.PostRectangle.Recalibrate(mmPerPixel)
	}
	for _, p := range c.Particles {
		p.Reproject(c.PreRectangle, c.PostRectangle, mmPerPixel)
	}
}

// MeasurementsByGroup returns the measurements tagged with the group,
// in insertion order.
func (c *Collection) MeasurementsByGroup(group string) []*Measurement {
	var out []*Measurement
	for _, m := range c.Measurements {
		if m.Group == group {
			out = append(out, m)
		}
	}
	return out
}

// MeasurementsByPage returns the measurements on the page, in insertion order.
func (c *Collection) MeasurementsByPage(pageIndex int) []*Measurement {
	var out []*Measurement
	for _, m := range c.Measurements {
		if m.PageIndex == pageIndex {
			out = append(out, m)
		}
	}
	return out
}

// NextMeasurementID reports the id the next AddMeasurement call will assign.
func (c *Collection) NextMeasurementID() int { return c.nextMeasurementID }

// NextParticleID reports the id the next AddParticle call will assign.
func (c *Collection) NextParticleID() int { return c.nextParticleID }

// RestoreMeasurement re-attaches a deserialized measurement, keeping its
// original id and bumping the counter so future ids stay unique.
func (c *Collection) RestoreMeasurement(m *Measurement) {
	c.Measurements = append(c.Measurements, m)
	if m.ID >= c.nextMeasurementID {
		c.nextMeasurementID = m.ID + 1
	}
}

// RestoreParticle re-attaches a deserialized particle, keeping its original
// id and bumping the counter so future ids stay unique.
func (c *Collection) RestoreParticle(p *ParticleDisplacement) {
	c.Particles = append(c.Particles, p)
	if p.ID >= c.nextParticleID {
		c.nextParticleID = p.ID + 1
	}
}

// RestoreRectangle re-attaches a deserialized rectangle to its group slot.
func (c *Collection) RestoreRectangle(r *Rectangle) {
	if r == nil {
		return
	}
	if r.Group == GroupPost {
		c.PostRectangle = r
	} else {
		c.PreRectangle = r
	}
}
