// Package canvas provides a page canvas with pan, zoom, and click-to-measure.
package canvas

import (
	"image"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"pdf-measure/internal/measure"
	"pdf-measure/pkg/geometry"
)

const (
	minZoom  = 0.1
	maxZoom  = 10.0
	zoomStep = 1.25
)

// PageCanvas displays a rendered PDF page with measurement overlays.
type PageCanvas struct {
	widget.BaseWidget

	// Page raster being displayed
	pageImg   image.Image
	pageIndex int

	// Overlay data, filtered to pageIndex at draw time
	measurements []*measure.Measurement
	preRect      *measure.Rectangle
	postRect     *measure.Rectangle
	particles    []*measure.ParticleDisplacement

	// In-progress clicks (first point of a pair, pending pre-position)
	pendingPoints []geometry.Point2D

	// Display state
	raster *fynecanvas.Raster
	zoom   float64

	// Container
	scroll  *zoomScroll
	content *draggableContent
	imgSize fyne.Size

	// Fit to window
	fitToWindow    bool
	lastScrollSize fyne.Size

	// Callbacks
	onZoomChange func(zoom float64)
	onLeftClick  func(x, y float64) // Left click at image coordinates
	onRightClick func(x, y float64) // Right click at image coordinates
}

// zoomScroll wraps a scroll container but intercepts wheel for zoom.
type zoomScroll struct {
	widget.BaseWidget
	scroll *container.Scroll
	canvas *PageCanvas
}

func newZoomScroll(content fyne.CanvasObject, canvas *PageCanvas) *zoomScroll {
	scroll := container.NewScroll(content)
	scroll.Direction = container.ScrollBoth
	zs := &zoomScroll{scroll: scroll, canvas: canvas}
	zs.ExtendBaseWidget(zs)
	return zs
}

func (zs *zoomScroll) Scrolled(ev *fyne.ScrollEvent) {
	// Use wheel for zoom, not scroll
	if ev.Scrolled.DY > 0 {
		zs.canvas.ZoomIn()
	} else if ev.Scrolled.DY < 0 {
		zs.canvas.ZoomOut()
	}
}

func (zs *zoomScroll) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(zs.scroll)
}

// Offset returns the scroll container's current offset.
func (zs *zoomScroll) Offset() fyne.Position {
	return zs.scroll.Offset
}

// Size returns the scroll container's size.
func (zs *zoomScroll) Size() fyne.Size {
	return zs.scroll.Size()
}

// Refresh refreshes the scroll container.
func (zs *zoomScroll) Refresh() {
	zs.scroll.Refresh()
	zs.BaseWidget.Refresh()
}

// Resize sets the size of the scroll container.
func (zs *zoomScroll) Resize(size fyne.Size) {
	zs.scroll.Resize(size)
	zs.BaseWidget.Resize(size)
}

// draggableContent wraps the raster to handle mouse events.
type draggableContent struct {
	widget.BaseWidget
	canvas *PageCanvas
	raster *fynecanvas.Raster
}

func newDraggableContent(pc *PageCanvas, raster *fynecanvas.Raster) *draggableContent {
	dc := &draggableContent{
		canvas: pc,
		raster: raster,
	}
	dc.ExtendBaseWidget(dc)
	return dc
}

func (dc *draggableContent) CreateRenderer() fyne.WidgetRenderer {
	return &draggableContentRenderer{content: dc}
}

func (dc *draggableContent) MinSize() fyne.Size {
	return dc.raster.MinSize()
}

func (dc *draggableContent) Scrolled(ev *fyne.ScrollEvent) {
	if ev.Scrolled.DY > 0 {
		dc.canvas.ZoomIn()
	} else if ev.Scrolled.DY < 0 {
		dc.canvas.ZoomOut()
	}
}

// Tapped handles left-click events.
func (dc *draggableContent) Tapped(ev *fyne.PointEvent) {
	if dc.canvas.onLeftClick == nil {
		return
	}

	// Workaround for Fyne bug: reject clicks outside widget bounds
	size := dc.Size()
	if ev.Position.X < 0 || ev.Position.Y < 0 ||
		ev.Position.X > size.Width || ev.Position.Y > size.Height {
		return
	}

	imgX, imgY := dc.canvas.eventToImage(ev)
	dc.canvas.onLeftClick(imgX, imgY)
}

// TappedSecondary handles right-click events.
func (dc *draggableContent) TappedSecondary(ev *fyne.PointEvent) {
	if dc.canvas.onRightClick == nil {
		return
	}

	size := dc.Size()
	if ev.Position.X < 0 || ev.Position.Y < 0 ||
		ev.Position.X > size.Width || ev.Position.Y > size.Height {
		return
	}

	imgX, imgY := dc.canvas.eventToImage(ev)
	dc.canvas.onRightClick(imgX, imgY)
}

// eventToImage converts a pointer event position to image coordinates.
func (pc *PageCanvas) eventToImage(ev *fyne.PointEvent) (float64, float64) {
	scrollOffset := pc.scroll.Offset()
	canvasX := float64(ev.Position.X + scrollOffset.X)
	canvasY := float64(ev.Position.Y + scrollOffset.Y)
	return canvasX / pc.zoom, canvasY / pc.zoom
}

type draggableContentRenderer struct {
	content *draggableContent
}

func (r *draggableContentRenderer) Layout(size fyne.Size) {
	r.content.raster.Resize(size)
}

func (r *draggableContentRenderer) MinSize() fyne.Size {
	return r.content.raster.MinSize()
}

func (r *draggableContentRenderer) Refresh() {
	r.content.raster.Refresh()
}

func (r *draggableContentRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.content.raster}
}

func (r *draggableContentRenderer) Destroy() {}

// NewPageCanvas creates a new page canvas.
func NewPageCanvas() *PageCanvas {
	pc := &PageCanvas{
		zoom:    1.0,
		imgSize: fyne.NewSize(400, 300),
	}

	pc.raster = fynecanvas.NewRaster(pc.draw)
	pc.raster.ScaleMode = fynecanvas.ImageScalePixels
	pc.raster.SetMinSize(pc.imgSize)

	// Wrap raster in draggable content for mouse events
	pc.content = newDraggableContent(pc, pc.raster)

	// Create zoomable scroll container (wheel = zoom, drag = pan)
	pc.scroll = newZoomScroll(pc.content, pc)

	pc.ExtendBaseWidget(pc)
	return pc
}

// Container returns the canvas container for embedding in layouts.
func (pc *PageCanvas) Container() fyne.CanvasObject {
	return pc.scroll
}

// SetPage sets the rendered page image to display.
func (pc *PageCanvas) SetPage(img image.Image, pageIndex int) {
	pc.pageImg = img
	pc.pageIndex = pageIndex
	pc.updateContentSize()
}

// PageIndex returns the displayed page index.
func (pc *PageCanvas) PageIndex() int {
	return pc.pageIndex
}

// SetMeasurements sets the measurements to overlay. Only those on the
// displayed page are drawn.
func (pc *PageCanvas) SetMeasurements(ms []*measure.Measurement) {
	pc.measurements = ms
	pc.Refresh()
}

// SetRectangles sets the specimen rectangles to overlay.
func (pc *PageCanvas) SetRectangles(pre, post *measure.Rectangle) {
	pc.preRect = pre
	pc.postRect = post
	pc.Refresh()
}

// SetParticles sets the particle displacements to overlay.
func (pc *PageCanvas) SetParticles(ps []*measure.ParticleDisplacement) {
	pc.particles = ps
	pc.Refresh()
}

// SetPendingPoints marks in-progress click positions.
func (pc *PageCanvas) SetPendingPoints(points []geometry.Point2D) {
	pc.pendingPoints = points
	pc.Refresh()
}

// SetZoom sets the zoom level.
func (pc *PageCanvas) SetZoom(zoom float64) {
	if zoom < minZoom {
		zoom = minZoom
	}
	if zoom > maxZoom {
		zoom = maxZoom
	}
	pc.zoom = zoom
	pc.updateContentSize()

	if pc.onZoomChange != nil {
		pc.onZoomChange(zoom)
	}
}

// GetZoom returns the current zoom level.
func (pc *PageCanvas) GetZoom() float64 {
	return pc.zoom
}

// ZoomIn increases the zoom level.
func (pc *PageCanvas) ZoomIn() {
	pc.SetZoom(pc.zoom * zoomStep)
}

// ZoomOut decreases the zoom level.
func (pc *PageCanvas) ZoomOut() {
	pc.SetZoom(pc.zoom / zoomStep)
}

// FitToWindow adjusts zoom to fit the page in the visible area.
func (pc *PageCanvas) FitToWindow() {
	bounds := pc.pageBounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return
	}

	viewSize := pc.scroll.Size()
	if viewSize.Width <= 0 || viewSize.Height <= 0 {
		return
	}

	zoomX := float64(viewSize.Width) / float64(bounds.Dx())
	zoomY := float64(viewSize.Height) / float64(bounds.Dy())

	zoom := zoomX
	if zoomY < zoomX {
		zoom = zoomY
	}

	pc.SetZoom(zoom * 0.95) // Leave a small margin
}

// SetFitToWindow enables or disables auto-fit on resize.
func (pc *PageCanvas) SetFitToWindow(fit bool) {
	pc.fitToWindow = fit
	if fit {
		pc.FitToWindow()
	}
}

// GetFitToWindow returns whether auto-fit is enabled.
func (pc *PageCanvas) GetFitToWindow() bool {
	return pc.fitToWindow
}

// CheckResize checks if the scroll container was resized and auto-fits
// if enabled.
func (pc *PageCanvas) CheckResize(size fyne.Size) {
	if !pc.fitToWindow {
		return
	}
	if size.Width > 0 && size.Height > 0 && size != pc.lastScrollSize {
		pc.lastScrollSize = size
		pc.FitToWindow()
	}
}

// OnZoomChange sets a callback for zoom changes.
func (pc *PageCanvas) OnZoomChange(callback func(zoom float64)) {
	pc.onZoomChange = callback
}

// OnLeftClick sets a callback for left-click events.
// Coordinates are in image space (not zoomed).
func (pc *PageCanvas) OnLeftClick(callback func(x, y float64)) {
	pc.onLeftClick = callback
}

// OnRightClick sets a callback for right-click events.
// Coordinates are in image space (not zoomed).
func (pc *PageCanvas) OnRightClick(callback func(x, y float64)) {
	pc.onRightClick = callback
}

// ImageToCanvas converts image coordinates to canvas coordinates.
func (pc *PageCanvas) ImageToCanvas(imgX, imgY float64) (canvasX, canvasY float64) {
	return imgX * pc.zoom, imgY * pc.zoom
}

// CanvasToImage converts canvas coordinates to image coordinates.
func (pc *PageCanvas) CanvasToImage(canvasX, canvasY float64) (imgX, imgY float64) {
	return canvasX / pc.zoom, canvasY / pc.zoom
}

// Refresh refreshes the canvas display.
func (pc *PageCanvas) Refresh() {
	pc.raster.Refresh()
}

func (pc *PageCanvas) pageBounds() image.Rectangle {
	if pc.pageImg == nil {
		return image.Rectangle{}
	}
	return pc.pageImg.Bounds()
}

// updateContentSize updates the content size based on image and zoom.
func (pc *PageCanvas) updateContentSize() {
	bounds := pc.pageBounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		pc.imgSize = fyne.NewSize(400, 300)
	} else {
		width := float32(float64(bounds.Dx()) * pc.zoom)
		height := float32(float64(bounds.Dy()) * pc.zoom)
		pc.imgSize = fyne.NewSize(width, height)
	}

	pc.raster.SetMinSize(pc.imgSize)
	pc.raster.Resize(pc.imgSize)
	if pc.content != nil {
		pc.content.Resize(pc.imgSize)
		pc.content.Refresh()
	}
	pc.raster.Refresh()
	if pc.scroll != nil {
		pc.scroll.Refresh()
	}
}

// draw is the raster drawing function.
func (pc *PageCanvas) draw(w, h int) image.Image {
	// Check for size change and auto-fit if enabled
	currentSize := fyne.NewSize(float32(w), float32(h))
	if pc.fitToWindow && currentSize != pc.lastScrollSize && w > 0 && h > 0 {
		pc.lastScrollSize = currentSize
		// Schedule fit after this draw completes
		go func() {
			pc.FitToWindow()
		}()
	}

	output := image.NewRGBA(image.Rect(0, 0, w, h))

	// Fill with a dark neutral background
	for i := 0; i < len(output.Pix); i += 4 {
		output.Pix[i] = 0x28
		output.Pix[i+1] = 0x28
		output.Pix[i+2] = 0x28
		output.Pix[i+3] = 0xFF
	}

	pc.compositePage(output, w, h)
	pc.drawOverlays(output)

	return output
}

// compositePage draws the page image scaled by zoom.
func (pc *PageCanvas) compositePage(output *image.RGBA, w, h int) {
	if pc.pageImg == nil {
		return
	}
	src := pc.pageImg
	srcBounds := src.Bounds()

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			srcX := srcBounds.Min.X + int(float64(x)/pc.zoom)
			srcY := srcBounds.Min.Y + int(float64(y)/pc.zoom)
			if srcX < srcBounds.Min.X || srcX >= srcBounds.Max.X ||
				srcY < srcBounds.Min.Y || srcY >= srcBounds.Max.Y {
				continue
			}
			output.Set(x, y, src.At(srcX, srcY))
		}
	}
}

// CreateRenderer implements fyne.Widget.
func (pc *PageCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &pageCanvasRenderer{canvas: pc}
}

type pageCanvasRenderer struct {
	canvas *PageCanvas
}

func (r *pageCanvasRenderer) Layout(size fyne.Size) {
	if r.canvas.scroll != nil {
		r.canvas.scroll.Resize(size)
	} else if r.canvas.content != nil {
		r.canvas.content.Resize(size)
	}
	r.canvas.CheckResize(size)
}

func (r *pageCanvasRenderer) MinSize() fyne.Size {
	return fyne.NewSize(100, 100)
}

func (r *pageCanvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
}

func (r *pageCanvasRenderer) Objects() []fyne.CanvasObject {
	if r.canvas.scroll != nil {
		return []fyne.CanvasObject{r.canvas.scroll}
	}
	return []fyne.CanvasObject{r.canvas.content}
}

func (r *pageCanvasRenderer) Destroy() {}
