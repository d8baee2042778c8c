// Package plot renders measurement sessions to PNG images. The main
// output is a side-by-side view of the pre- and post-test specimen
// rectangles in millimeter space with every tracked particle marked
// and labeled, so displacement results can be reviewed without the
// source PDFs at hand.
package plot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"pdf-measure/internal/measure"
	"pdf-measure/pkg/geometry"
)

// ErrNothingToPlot is returned when the collection holds neither a pre
// nor a post rectangle.
var ErrNothingToPlot = errors.New("no rectangles to plot")

// Options controls the output image layout.
type Options struct {
	PanelWidth  int // pixels per panel
	PanelHeight int
	Margin      int // outer margin and inter-panel gap
}

// DefaultOptions matches the proportions of a 14x7 inch figure.
func DefaultOptions() Options {
	return Options{
		PanelWidth:  640,
		PanelHeight: 640,
		Margin:      50,
	}
}

var (
	colorBackground = color.RGBA{255, 255, 255, 255}
	colorOutline    = color.RGBA{0, 0, 0, 255}
	colorGrid       = color.RGBA{210, 210, 210, 255}
	colorParticle   = color.RGBA{220, 40, 40, 255}
	colorLabelBox   = color.RGBA{255, 246, 160, 255}
	colorMuted      = color.RGBA{140, 140, 140, 255}
)

// SaveVisualization writes a side-by-side pre/post PNG next to
// outputPath, named <stem>_visualization.png, and returns the path it
// wrote. It returns ErrNothingToPlot when the collection has no
// rectangles.
func SaveVisualization(outputPath string, c *measure.Collection, opts Options) (string, error) {
	ext := filepath.Ext(outputPath)
	stem := strings.TrimSuffix(filepath.Base(outputPath), ext)
	vizPath := filepath.Join(filepath.Dir(outputPath), stem+"_visualization.png")

	f, err := os.Create(vizPath)
	if err != nil {
		return "", fmt.Errorf("failed to create visualization file: %w", err)
	}
	defer f.Close()

	if err := WriteVisualization(f, c, opts); err != nil {
		os.Remove(vizPath)
		return "", err
	}
	return vizPath, nil
}

// WriteVisualization encodes the side-by-side visualization as PNG.
func WriteVisualization(w io.Writer, c *measure.Collection, opts Options) error {
	if c == nil || (c.PreRectangle == nil && c.PostRectangle == nil) {
		return ErrNothingToPlot
	}
	if opts.PanelWidth <= 0 || opts.PanelHeight <= 0 {
		opts = DefaultOptions()
	}

	titleBand := 40
	width := opts.Margin*3 + opts.PanelWidth*2
	height := opts.Margin*2 + opts.PanelHeight + titleBand

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill(img, colorBackground)

	titleFace, err := newFace(18)
	if err != nil {
		return err
	}
	labelFace, err := newFace(12)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("Specimen Measurement Visualization (%d particles)", len(c.Particles))
	drawTextCentered(img, titleFace, width/2, opts.Margin/2+titleBand/2, title, colorOutline)

	prePanel := image.Rect(
		opts.Margin, opts.Margin+titleBand,
		opts.Margin+opts.PanelWidth, opts.Margin+titleBand+opts.PanelHeight)
	postPanel := image.Rect(
		opts.Margin*2+opts.PanelWidth, opts.Margin+titleBand,
		opts.Margin*2+opts.PanelWidth*2, opts.Margin+titleBand+opts.PanelHeight)

	renderPanel(img, prePanel, labelFace, c.PreRectangle, c.Particles, measure.GroupPre, "Pre-Test Specimen")
	renderPanel(img, postPanel, labelFace, c.PostRectangle, c.Particles, measure.GroupPost, "Post-Test Specimen")

	return png.Encode(w, img)
}

// panelSpace maps rectangle-local mm coordinates onto panel pixels,
// keeping equal aspect and inverting the y axis so mm-y grows upward.
type panelSpace struct {
	panel    image.Rectangle
	widthMM  float64
	heightMM float64
	scale    float64 // px per mm
	originX  int     // pixel position of mm (0,0)
	originY  int
}

func newPanelSpace(panel image.Rectangle, widthMM, heightMM float64) panelSpace {
	// 10% padding on every side of the rectangle.
	padW := widthMM * 0.1
	padH := heightMM * 0.1
	spanX := widthMM + 2*padW
	spanY := heightMM + 2*padH

	sx := float64(panel.Dx()) / spanX
	sy := float64(panel.Dy()) / spanY
	scale := math.Min(sx, sy)

	// Center the drawn span inside the panel.
	offX := (float64(panel.Dx()) - spanX*scale) / 2
	offY := (float64(panel.Dy()) - spanY*scale) / 2

	return panelSpace{
		panel:    panel,
		widthMM:  widthMM,
		heightMM: heightMM,
		scale:    scale,
		originX:  panel.Min.X + int(offX+padW*scale),
		originY:  panel.Max.Y - int(offY+padH*scale),
	}
}

func (ps panelSpace) toPixel(xMM, yMM float64) (int, int) {
	return ps.originX + int(xMM*ps.scale), ps.originY - int(yMM*ps.scale)
}

func renderPanel(img *image.RGBA, panel image.Rectangle, face font.Face,
	rect *measure.Rectangle, particles []*measure.ParticleDisplacement,
	group measure.Group, title string) {

	drawTextCentered(img, face, (panel.Min.X+panel.Max.X)/2, panel.Min.Y-8, title, colorOutline)

	if rect == nil {
		msg := "No Pre Rectangle"
		if group == measure.GroupPost {
			msg = "No Post Rectangle"
		}
		drawTextCentered(img, face, (panel.Min.X+panel.Max.X)/2, (panel.Min.Y+panel.Max.Y)/2, msg, colorMuted)
		return
	}

	widthMM := rect.WidthMM
	heightMM := rect.HeightMM
	if widthMM <= 0 || heightMM <= 0 {
		// Uncalibrated session: plot in pixel units instead.
		widthMM = rect.WidthPx
		heightMM = rect.HeightPx
	}
	ps := newPanelSpace(panel, widthMM, heightMM)

	drawGrid(img, ps)

	// Rectangle outline.
	x0, y0 := ps.toPixel(0, 0)
	x1, y1 := ps.toPixel(widthMM, heightMM)
	drawRectOutline(img, x0, y1, x1, y0, colorOutline, 2)

	// Dimensions annotation in the panel corner.
	dims := fmt.Sprintf("%.2f x %.2f mm", widthMM, heightMM)
	drawText(img, face, panel.Min.X+6, panel.Min.Y+16, dims, colorOutline)

	for _, p := range particles {
		var pos geometry.Point2D
		if group == measure.GroupPre {
			pos = p.PrePositionMM
		} else {
			pos = p.PostPositionMM
		}
		px, py := ps.toPixel(pos.X, pos.Y)
		fillCircle(img, px, py, 5, colorParticle)
		drawCircleOutline(img, px, py, 5, colorOutline)

		label := fmt.Sprintf("%s (%.2f, %.2f)", p.Label, pos.X, pos.Y)
		drawLabelBox(img, face, px+8, py-8, label)
	}
}

// drawGrid draws light dashed gridlines at a round mm step.
func drawGrid(img *image.RGBA, ps panelSpace) {
	step := niceStep(math.Max(ps.widthMM, ps.heightMM))
	if step <= 0 {
		return
	}
	for x := 0.0; x <= ps.widthMM+step/2; x += step {
		px, py0 := ps.toPixel(x, 0)
		_, py1 := ps.toPixel(x, ps.heightMM)
		drawDashedLine(img, px, py0, px, py1, colorGrid)
	}
	for y := 0.0; y <= ps.heightMM+step/2; y += step {
		px0, py := ps.toPixel(0, y)
		px1, _ := ps.toPixel(ps.widthMM, y)
		drawDashedLine(img, px0, py, px1, py, colorGrid)
	}
}

// niceStep picks a 1/2/5-series gridline spacing giving roughly 5-10
// divisions over span.
func niceStep(span float64) float64 {
	if span <= 0 {
		return 0
	}
	raw := span / 8
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 5, 10} {
		if raw <= m*mag {
			return m * mag
		}
	}
	return 10 * mag
}

func newFace(size float64) (font.Face, error) {
	fnt, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded font: %w", err)
	}
	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}

func fill(img *image.RGBA, c color.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func drawText(img *image.RGBA, face font.Face, x, y int, text string, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func drawTextCentered(img *image.RGBA, face font.Face, x, y int, text string, c color.Color) {
	width := font.MeasureString(face, text).Ceil()
	ascent := face.Metrics().Ascent.Ceil()
	drawText(img, face, x-width/2, y+ascent/2, text, c)
}

func drawLabelBox(img *image.RGBA, face font.Face, x, y int, text string) {
	width := font.MeasureString(face, text).Ceil()
	m := face.Metrics()
	h := (m.Ascent + m.Descent).Ceil()

	box := image.Rect(x-3, y-h-1, x+width+3, y+3)
	for py := box.Min.Y; py < box.Max.Y; py++ {
		for px := box.Min.X; px < box.Max.X; px++ {
			if (image.Point{px, py}).In(img.Bounds()) {
				img.SetRGBA(px, py, colorLabelBox)
			}
		}
	}
	drawRectOutline(img, box.Min.X, box.Min.Y, box.Max.X, box.Max.Y, colorOutline, 1)
	drawText(img, face, x, y, text, colorOutline)
}

func drawRectOutline(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA, thickness int) {
	for t := 0; t < thickness; t++ {
		drawLine(img, x0+t, y0+t, x1-t, y0+t, c)
		drawLine(img, x1-t, y0+t, x1-t, y1-t, c)
		drawLine(img, x1-t, y1-t, x0+t, y1-t, c)
		drawLine(img, x0+t, y1-t, x0+t, y0+t, c)
	}
}

// drawLine draws a line using Bresenham's algorithm.
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	errAcc := dx - dy

	bounds := img.Bounds()
	for {
		if (image.Point{x1, y1}).In(bounds) {
			img.SetRGBA(x1, y1, c)
		}
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * errAcc
		if e2 > -dy {
			errAcc -= dy
			x1 += sx
		}
		if e2 < dx {
			errAcc += dx
			y1 += sy
		}
	}
}

func drawDashedLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := float64(x2 - x1)
	dy := float64(y2 - y1)
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	const dash, gap = 4.0, 4.0
	bounds := img.Bounds()
	for d := 0.0; d < length; d += dash + gap {
		end := math.Min(d+dash, length)
		for t := d; t <= end; t++ {
			x := x1 + int(dx*t/length)
			y := y1 + int(dy*t/length)
			if (image.Point{x, y}).In(bounds) {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func fillCircle(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	bounds := img.Bounds()
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			if x*x+y*y <= r*r && (image.Point{cx + x, cy + y}).In(bounds) {
				img.SetRGBA(cx+x, cy+y, c)
			}
		}
	}
}

func drawCircleOutline(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	bounds := img.Bounds()
	for a := 0.0; a < 2*math.Pi; a += 0.02 {
		x := cx + int(math.Round(float64(r)*math.Cos(a)))
		y := cy + int(math.Round(float64(r)*math.Sin(a)))
		if (image.Point{x, y}).In(bounds) {
			img.SetRGBA(x, y, c)
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
