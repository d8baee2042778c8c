// Package canvas provides drawing primitives for the page canvas.
package canvas

import (
	"image"
	"image/color"

	"pdf-measure/internal/measure"
)

// Overlay colors follow the measurement conventions: red lines with
// yellow endpoints, blue pre rectangle, green post rectangle.
var (
	colorMeasureLine  = color.RGBA{R: 220, G: 40, B: 40, A: 255}
	colorMeasurePoint = color.RGBA{R: 255, G: 220, B: 0, A: 255}
	colorRectPre      = color.RGBA{R: 40, G: 90, B: 220, A: 255}
	colorRectPost     = color.RGBA{R: 30, G: 160, B: 60, A: 255}
	colorParticlePre  = color.RGBA{R: 60, G: 230, B: 60, A: 255}
	colorParticlePost = color.RGBA{R: 240, G: 140, B: 20, A: 255}
	colorPending      = color.RGBA{R: 255, G: 220, B: 0, A: 255}
	colorLabelText    = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

// digitPatterns contains 3x5 pixel patterns for digits 0-9.
// Each digit is represented as 5 rows of 3 bits.
var digitPatterns = [10][5]uint8{
	{0b111, 0b101, 0b101, 0b101, 0b111}, // 0
	{0b010, 0b110, 0b010, 0b010, 0b111}, // 1
	{0b111, 0b001, 0b111, 0b100, 0b111}, // 2
	{0b111, 0b001, 0b111, 0b001, 0b111}, // 3
	{0b101, 0b101, 0b111, 0b001, 0b001}, // 4
	{0b111, 0b100, 0b111, 0b001, 0b111}, // 5
	{0b111, 0b100, 0b111, 0b101, 0b111}, // 6
	{0b111, 0b001, 0b001, 0b001, 0b001}, // 7
	{0b111, 0b101, 0b111, 0b101, 0b111}, // 8
	{0b111, 0b101, 0b111, 0b001, 0b111}, // 9
}

// letterPatterns contains 3x5 pixel patterns for letters and symbols
// used in measurement labels.
var letterPatterns = map[rune][5]uint8{
	'M': {0b101, 0b111, 0b101, 0b101, 0b101},
	'P': {0b110, 0b101, 0b110, 0b100, 0b100},
	'C': {0b011, 0b100, 0b100, 0b100, 0b011},
	'R': {0b110, 0b101, 0b110, 0b101, 0b101},
	'E': {0b111, 0b100, 0b110, 0b100, 0b111},
	'O': {0b010, 0b101, 0b101, 0b101, 0b010},
	'S': {0b011, 0b100, 0b010, 0b001, 0b110},
	'T': {0b111, 0b010, 0b010, 0b010, 0b010},
	'.': {0b000, 0b000, 0b000, 0b000, 0b010},
	'+': {0b000, 0b010, 0b111, 0b010, 0b000},
	'-': {0b000, 0b000, 0b111, 0b000, 0b000},
	' ': {0b000, 0b000, 0b000, 0b000, 0b000},
}

// getCharPattern returns the 3x5 pixel pattern for a character.
// Returns a zero pattern for unsupported characters.
func getCharPattern(ch rune) [5]uint8 {
	if ch >= '0' && ch <= '9' {
		return digitPatterns[ch-'0']
	}
	if ch >= 'a' && ch <= 'z' {
		ch = ch - 'a' + 'A'
	}
	if pattern, ok := letterPatterns[ch]; ok {
		return pattern
	}
	return [5]uint8{}
}

// drawOverlays draws measurements, rectangles, particles, and pending
// click markers for the displayed page.
func (pc *PageCanvas) drawOverlays(output *image.RGBA) {
	for _, m := range pc.measurements {
		if m == nil || m.PageIndex != pc.pageIndex {
			continue
		}
		pc.drawMeasurement(output, m)
	}

	if pc.preRect != nil && pc.preRect.PageIndex == pc.pageIndex {
		pc.drawRectangle(output, pc.preRect, colorRectPre)
	}
	if pc.postRect != nil && pc.postRect.PageIndex == pc.pageIndex {
		pc.drawRectangle(output, pc.postRect, colorRectPost)
	}

	for _, p := range pc.particles {
		if p == nil {
			continue
		}
		pc.drawParticle(output, p)
	}

	for _, pt := range pc.pendingPoints {
		x, y := pc.toCanvas(pt.X, pt.Y)
		pc.drawCrosshair(output, x, y, colorPending)
	}
}

func (pc *PageCanvas) drawMeasurement(output *image.RGBA, m *measure.Measurement) {
	x1, y1 := pc.toCanvas(m.Point1Px.X, m.Point1Px.Y)
	x2, y2 := pc.toCanvas(m.Point2Px.X, m.Point2Px.Y)

	pc.drawLine(output, x1, y1, x2, y2, colorMeasureLine, 2)
	pc.fillDot(output, x1, y1, 4, colorMeasurePoint)
	pc.fillDot(output, x2, y2, 4, colorMeasurePoint)

	pc.drawTextLabel(output, m.Label, (x1+x2)/2, (y1+y2)/2-10)
}

func (pc *PageCanvas) drawRectangle(output *image.RGBA, r *measure.Rectangle, col color.RGBA) {
	x1, y1 := pc.toCanvas(r.TopLeftPx.X, r.TopLeftPx.Y)
	x2, y2 := pc.toCanvas(r.BottomRightPx.X, r.BottomRightPx.Y)

	pc.drawLine(output, x1, y1, x2, y1, col, 2)
	pc.drawLine(output, x2, y1, x2, y2, col, 2)
	pc.drawLine(output, x2, y2, x1, y2, col, 2)
	pc.drawLine(output, x1, y2, x1, y1, col, 2)

	label := "PRE"
	if r.Group == measure.GroupPost {
		label = "POST"
	}
	pc.drawTextLabel(output, label, x1+14, y1+10)
}

func (pc *PageCanvas) drawParticle(output *image.RGBA, p *measure.ParticleDisplacement) {
	prePage := p.PrePageIndex == pc.pageIndex
	postPage := p.PostPageIndex == pc.pageIndex

	if prePage {
		x, y := pc.toCanvas(p.PrePositionPx.X, p.PrePositionPx.Y)
		pc.fillDot(output, x, y, 5, colorParticlePre)
		pc.drawTextLabel(output, p.Label, x+8, y-8)
	}
	if postPage {
		x, y := pc.toCanvas(p.PostPositionPx.X, p.PostPositionPx.Y)
		pc.fillDot(output, x, y, 5, colorParticlePost)
		pc.drawTextLabel(output, p.Label, x+8, y-8)
	}

	// Connect the two positions when both fall on this page.
	if prePage && postPage {
		x1, y1 := pc.toCanvas(p.PrePositionPx.X, p.PrePositionPx.Y)
		x2, y2 := pc.toCanvas(p.PostPositionPx.X, p.PostPositionPx.Y)
		pc.drawLine(output, x1, y1, x2, y2, colorParticlePost, 1)
	}
}

func (pc *PageCanvas) toCanvas(imgX, imgY float64) (int, int) {
	return int(imgX * pc.zoom), int(imgY * pc.zoom)
}

// drawLine draws a line between two points using Bresenham's algorithm.
func (pc *PageCanvas) drawLine(output *image.RGBA, x1, y1, x2, y2 int, col color.RGBA, thickness int) {
	bounds := output.Bounds()

	dx := x2 - x1
	dy := y2 - y1
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}

	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}

	err := dx - dy

	for {
		// Draw thick point
		for t := -thickness / 2; t <= thickness/2; t++ {
			for s := -thickness / 2; s <= thickness/2; s++ {
				px, py := x1+s, y1+t
				if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
					output.Set(px, py, col)
				}
			}
		}

		if x1 == x2 && y1 == y2 {
			break
		}

		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func (pc *PageCanvas) fillDot(output *image.RGBA, cx, cy, r int, col color.RGBA) {
	bounds := output.Bounds()
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			if x*x+y*y > r*r {
				continue
			}
			px, py := cx+x, cy+y
			if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
				output.Set(px, py, col)
			}
		}
	}
}

func (pc *PageCanvas) drawCrosshair(output *image.RGBA, cx, cy int, col color.RGBA) {
	const arm = 7
	pc.drawLine(output, cx-arm, cy, cx+arm, cy, col, 1)
	pc.drawLine(output, cx, cy-arm, cx, cy+arm, col, 1)
}

// drawTextLabel draws a label using the 3x5 bitmap font, scaled by zoom.
func (pc *PageCanvas) drawTextLabel(output *image.RGBA, label string, centerX, centerY int) {
	scale := int(pc.zoom * 2)
	if scale < 1 {
		scale = 1
	}
	if scale > 6 {
		scale = 6
	}

	charWidth := 3 * scale
	charHeight := 5 * scale
	spacing := scale
	labelWidth := len(label)*charWidth + (len(label)-1)*spacing

	startX := centerX - labelWidth/2
	startY := centerY - charHeight/2

	bounds := output.Bounds()

	// Light backing so the label stays readable over page content.
	backing := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for py := startY - scale; py < startY+charHeight+scale; py++ {
		for px := startX - scale; px < startX+labelWidth+scale; px++ {
			if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
				output.Set(px, py, backing)
			}
		}
	}

	for i, ch := range label {
		pattern := getCharPattern(ch)
		charX := startX + i*(charWidth+spacing)

		for row := 0; row < 5; row++ {
			for c := 0; c < 3; c++ {
				if (pattern[row] & (1 << (2 - c))) == 0 {
					continue
				}
				for dy := 0; dy < scale; dy++ {
					for dx := 0; dx < scale; dx++ {
						px := charX + c*scale + dx
						py := startY + row*scale + dy
						if px >= bounds.Min.X && px < bounds.Max.X &&
							py >= bounds.Min.Y && py < bounds.Max.Y {
							output.Set(px, py, colorLabelText)
						}
					}
				}
			}
		}
	}
}
