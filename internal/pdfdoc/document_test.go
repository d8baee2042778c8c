package pdfdoc

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// writeMinimalPDF writes a single-page PDF with the given MediaBox size in
// points and a correctly computed xref table.
func writeMinimalPDF(t *testing.T, widthPts, heightPts float64) string {
	t.Helper()

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] >>", widthPts, heightPts),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects)+1)
	for i, body := range objects {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets[1:] {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xrefStart)

	path := filepath.Join(t.TempDir(), "test.pdf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPointsToMM(t *testing.T) {
	tests := []struct {
		name string
		pts  float64
		want float64
	}{
		{"one inch", 72, 25.4},
		{"a4 width", 595.2755905511812, 210.0},
		{"letter width", 612, 215.9},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PointsToMM(tt.pts); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("PointsToMM(%v) = %v, want %v", tt.pts, got, tt.want)
			}
		})
	}
}

func TestOpenAndPageGeometry(t *testing.T) {
	path := writeMinimalPDF(t, 595, 842)

	doc, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer doc.Close()

	if doc.NumPages() != 1 {
		t.Fatalf("NumPages() = %d, want 1", doc.NumPages())
	}

	wMM, hMM, err := doc.PageSizeMM(0)
	if err != nil {
		t.Fatalf("PageSizeMM() error = %v", err)
	}
	if math.Abs(wMM-209.903) > 0.01 || math.Abs(hMM-297.039) > 0.01 {
		t.Errorf("page size = %.3f x %.3f mm", wMM, hMM)
	}
}

func TestRenderPage(t *testing.T) {
	path := writeMinimalPDF(t, 595, 842)

	doc, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()

	page, err := doc.RenderPage(0, 150)
	if err != nil {
		t.Fatalf("RenderPage() error = %v", err)
	}

	// 595pt at 150 DPI is 1239px.
	if page.WidthPx != 1239 {
		t.Errorf("WidthPx = %d, want 1239", page.WidthPx)
	}
	if page.HeightPx != 1754 {
		t.Errorf("HeightPx = %d, want 1754", page.HeightPx)
	}
	if page.Image.Bounds().Dx() != page.WidthPx || page.Image.Bounds().Dy() != page.HeightPx {
		t.Error("bitmap size disagrees with metadata")
	}

	// A page without raster content renders blank white.
	r, g, b, _ := page.Image.At(10, 10).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff {
		t.Errorf("blank page pixel = %v", color.RGBA64{uint16(r), uint16(g), uint16(b), 0xffff})
	}

	if math.Abs(page.MMPerPixel()-209.903/1239) > 1e-6 {
		t.Errorf("MMPerPixel() = %v", page.MMPerPixel())
	}

	// Cache returns the identical render.
	again, err := doc.RenderPage(0, 150)
	if err != nil {
		t.Fatal(err)
	}
	if again != page {
		t.Error("expected cached render")
	}

	if _, err := doc.RenderPage(5, 150); err == nil {
		t.Error("expected error for out-of-range page")
	}
}
