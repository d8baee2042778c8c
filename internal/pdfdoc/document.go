// Package pdfdoc loads PDF documents and renders pages as bitmaps with
// their physical dimensions, using the tabula PDF parser.
package pdfdoc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"

	"github.com/tsawler/tabula/pages"
	"github.com/tsawler/tabula/reader"
	xdraw "golang.org/x/image/draw"
)

const (
	// DefaultDPI is the default page rendering resolution.
	DefaultDPI = 150
	// PointsPerInch is the PDF unit density (1 pt = 1/72 inch).
	PointsPerInch = 72.0
	// MMPerInch converts inches to millimeters.
	MMPerInch = 25.4
)

// PointsToMM converts a PDF point length to millimeters.
func PointsToMM(pts float64) float64 {
	return pts / PointsPerInch * MMPerInch
}

// PageImage is a rendered PDF page with its physical metadata. The
// (WidthMM, WidthPx) pair feeds page-geometry calibration.
type PageImage struct {
	Image     image.Image
	WidthPx   int
	HeightPx  int
	WidthMM   float64
	HeightMM  float64
	PageIndex int
	DPI       int
}

// MMPerPixel returns the scale factor implied by the page dimensions.
func (p *PageImage) MMPerPixel() float64 {
	return p.WidthMM / float64(p.WidthPx)
}

type renderKey struct {
	page int
	dpi  int
}

// Document wraps an open PDF file with page rendering and a render cache.
type Document struct {
	Path string

	reader    *reader.Reader
	pageCount int
	cache     map[renderKey]*PageImage
}

// Open loads a PDF document from a file path.
func Open(path string) (*Document, error) {
	r, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	count, err := r.PageCount()
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("read page count of %s: %w", path, err)
	}

	return &Document{
		Path:      path,
		reader:    r,
		pageCount: count,
		cache:     make(map[renderKey]*PageImage),
	}, nil
}

// NumPages returns the number of pages in the document.
func (d *Document) NumPages() int {
	return d.pageCount
}

// PageSizeMM returns the physical page size in millimeters.
func (d *Document) PageSizeMM(pageIndex int) (widthMM, heightMM float64, err error) {
	page, err := d.reader.GetPage(pageIndex)
	if err != nil {
		return 0, 0, fmt.Errorf("page %d: %w", pageIndex, err)
	}
	wPts, err := page.Width()
	if err != nil {
		return 0, 0, fmt.Errorf("page %d width: %w", pageIndex, err)
	}
	hPts, err := page.Height()
	if err != nil {
		return 0, 0, fmt.Errorf("page %d height: %w", pageIndex, err)
	}
	return PointsToMM(wPts), PointsToMM(hPts), nil
}

// RenderPage renders a page at the requested DPI. The page's embedded scan
// image, when present, is scaled to fill the page; pages without raster
// content render as a blank white bitmap so clicks still land in a
// well-defined pixel space. Renders are cached per (page, dpi).
func (d *Document) RenderPage(pageIndex, dpi int) (*PageImage, error) {
	if pageIndex < 0 || pageIndex >= d.pageCount {
		return nil, fmt.Errorf("page index %d out of range [0,%d)", pageIndex, d.pageCount)
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	key := renderKey{page: pageIndex, dpi: dpi}
	if cached, ok := d.cache[key]; ok {
		return cached, nil
	}

	page, err := d.reader.GetPage(pageIndex)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageIndex, err)
	}
	wPts, err := page.Width()
	if err != nil {
		return nil, fmt.Errorf("page %d width: %w", pageIndex, err)
	}
	hPts, err := page.Height()
	if err != nil {
		return nil, fmt.Errorf("page %d height: %w", pageIndex, err)
	}

	widthPx := int(wPts / PointsPerInch * float64(dpi))
	heightPx := int(hPts / PointsPerInch * float64(dpi))
	if widthPx <= 0 || heightPx <= 0 {
		return nil, fmt.Errorf("page %d has degenerate size %.1fx%.1f pt", pageIndex, wPts, hPts)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, widthPx, heightPx))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	if content := d.largestPageImage(page); content != nil {
		xdraw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), content, content.Bounds(), draw.Src, nil)
	}

	result := &PageImage{
		Image:     canvas,
		WidthPx:   widthPx,
		HeightPx:  heightPx,
		WidthMM:   PointsToMM(wPts),
		HeightMM:  PointsToMM(hPts),
		PageIndex: pageIndex,
		DPI:       dpi,
	}
	d.cache[key] = result
	return result, nil
}

// largestPageImage decodes the largest raster XObject on the page, which on
// scanned documents is the page scan itself. Returns nil when the page has
// no decodable raster content.
func (d *Document) largestPageImage(page *pages.Page) image.Image {
	images, err := d.reader.ExtractPageImages(page)
	if err != nil || len(images) == 0 {
		return nil
	}

	best := -1
	for i, img := range images {
		if best < 0 || img.Width*img.Height > images[best].Width*images[best].Height {
			best = i
		}
	}

	decoded, err := decodePageImage(&images[best])
	if err != nil {
		return nil
	}
	return decoded
}

// decodePageImage turns an extracted XObject into a Go image. DCT streams
// are still JPEG-encoded after stream decode; everything else goes through
// tabula's raw-sample PNG conversion.
func decodePageImage(img *reader.PageImage) (image.Image, error) {
	if img.Filter == "DCTDecode" {
		decoded, _, err := image.Decode(bytes.NewReader(img.Data))
		return decoded, err
	}

	pngData, err := img.ToPNG()
	if err != nil {
		return nil, err
	}
	return png.Decode(bytes.NewReader(pngData))
}

// Close releases the underlying file handle.
func (d *Document) Close() error {
	return d.reader.Close()
}
