// Package main provides the entry point for the PDF Measure application.
package main

import (
	"flag"
	"log"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"

	"pdf-measure/internal/app"
	"pdf-measure/internal/pdfdoc"
	"pdf-measure/internal/version"
	"pdf-measure/ui/mainwindow"
	"pdf-measure/ui/prefs"
)

const appTitle = "PDF Measure"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	dpi := flag.Int("dpi", 0, "rendering DPI (default from preferences, then 150)")
	flag.Parse()

	log.Printf("Starting %s v%s", appTitle, version.Version)

	appPrefs := prefs.Load()
	if *dpi <= 0 {
		*dpi = appPrefs.IntWithFallback("render_dpi", pdfdoc.DefaultDPI)
	} else {
		appPrefs.SetInt("render_dpi", *dpi)
		if err := appPrefs.Save(); err != nil {
			log.Printf("failed to save preferences: %v", err)
		}
	}

	fyneApp := fyneapp.NewWithID("io.pdfmeasure.app")
	fyneApp.Settings().SetTheme(&app.MeasureTheme{})

	state := app.NewState()
	state.DPI = *dpi
	defer state.Close()

	win := mainwindow.New(fyneApp, state)
	win.Resize(fyne.NewSize(1400, 900))

	// A PDF path on the command line opens immediately.
	if flag.NArg() > 0 {
		path := flag.Arg(0)
		if err := state.OpenDocument(path); err != nil {
			log.Printf("Failed to open %s: %v", path, err)
		}
	}

	win.ShowAndRun()
}
