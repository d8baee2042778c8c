// Command pdfinfo prints page geometry and the automatic calibration
// a PDF would get when opened in the measurement tool.
package main

import (
	"flag"
	"fmt"
	"os"

	"pdf-measure/internal/calibration"
	"pdf-measure/internal/pdfdoc"
)

func main() {
	dpi := flag.Int("dpi", pdfdoc.DefaultDPI, "Rendering DPI")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: pdfinfo [-dpi 150] <file.pdf>")
		os.Exit(1)
	}
	path := flag.Arg(0)

	doc, err := pdfdoc.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open PDF: %v\n", err)
		os.Exit(1)
	}
	defer doc.Close()

	fmt.Printf("File: %s\n", path)
	fmt.Printf("Pages: %d\n", doc.NumPages())
	fmt.Printf("Rendering DPI: %d\n\n", *dpi)

	for i := 0; i < doc.NumPages(); i++ {
		wMM, hMM, err := doc.PageSizeMM(i)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Page %d: %v\n", i+1, err)
			continue
		}

		img, err := doc.RenderPage(i, *dpi)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Page %d render: %v\n", i+1, err)
			continue
		}

		cal, err := calibration.FromPageGeometry(wMM, img.WidthPx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Page %d calibration: %v\n", i+1, err)
			continue
		}

		fmt.Printf("Page %d: %.2f x %.2f mm, %d x %d px, %.6f mm/pixel (%s)\n",
			i+1, wMM, hMM, img.WidthPx, img.HeightPx, cal.MMPerPixel, cal.Source)
	}
}
