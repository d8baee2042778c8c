// Command measureexport converts a saved measurement session to CSV and,
// when specimen rectangles are present, renders the side-by-side
// visualization PNG.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pdf-measure/internal/export"
	"pdf-measure/internal/plot"
)

func main() {
	outDir := flag.String("out", "", "Output directory (default: next to the session file)")
	noViz := flag.Bool("no-viz", false, "Skip the visualization PNG")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: measureexport [-out dir] [-no-viz] <session.json>")
		os.Exit(1)
	}
	sessionPath := flag.Arg(0)

	collection, cal, err := export.LoadJSON(sessionPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load session: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded %s: %d measurements, %d particles\n",
		sessionPath, len(collection.Measurements), len(collection.Particles))
	if cal != nil {
		fmt.Printf("Calibration: %.6f mm/pixel (%s)\n", cal.MMPerPixel, cal.Source)
	} else {
		fmt.Println("Calibration: none (pixel units only)")
	}

	dir := *outDir
	if dir == "" {
		dir = filepath.Dir(sessionPath)
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	stem := strings.TrimSuffix(filepath.Base(sessionPath), filepath.Ext(sessionPath))
	csvPath := filepath.Join(dir, stem+".csv")
	if err := export.SaveCSV(csvPath, collection, cal); err != nil {
		fmt.Fprintf(os.Stderr, "CSV export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", csvPath)

	if summary := export.Summarize(collection, cal); summary != nil {
		fmt.Printf("Displacement summary: %d particles, mean %.4f %s, std dev %.4f %s\n",
			summary.ParticleCount, summary.MeanMagnitude, summary.Unit, summary.StdDev, summary.Unit)
	}

	if *noViz {
		return
	}

	vizPath, err := plot.SaveVisualization(csvPath, collection, plot.DefaultOptions())
	if errors.Is(err, plot.ErrNothingToPlot) {
		fmt.Println("No rectangles in session, skipping visualization")
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Visualization failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", vizPath)
}
