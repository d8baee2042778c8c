// Package mainwindow provides the main application window.
package mainwindow

import (
	"fmt"
	"log"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"pdf-measure/internal/app"
	"pdf-measure/internal/markers"
	"pdf-measure/internal/measure"
	"pdf-measure/internal/version"
	"pdf-measure/pkg/geometry"
	"pdf-measure/ui/canvas"
	"pdf-measure/ui/panels"
)

const (
	prefKeyLastDir     = "lastDirectory"
	prefKeyLastPDF     = "lastDocument"
	snapSearchRadiusPx = 40
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app       fyne.App
	state     *app.State
	canvas    *canvas.PageCanvas
	sidePanel *panels.SidePanel
	statusBar *widget.Label

	// Menu items that need state tracking
	fitToWindowItem *fyne.MenuItem
}

// New creates a new main window.
func New(fyneApp fyne.App, state *app.State) *MainWindow {
	win := fyneApp.NewWindow("PDF Measure")

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupShortcuts()
	mw.setupEventHandlers()
	mw.restoreLastDocument()

	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.NewPageCanvas()
	mw.canvas.OnLeftClick(mw.onCanvasClick)
	mw.canvas.OnRightClick(mw.onCanvasSnapClick)

	mw.sidePanel = panels.NewSidePanel(mw.state)
	mw.sidePanel.SetWindow(mw.Window)

	mw.statusBar = widget.NewLabel("Ready - press 'h' for shortcuts")

	toolbar := mw.createToolbar()

	canvasArea := container.NewBorder(
		toolbar,               // top
		nil,                   // bottom
		nil,                   // left
		nil,                   // right
		mw.canvas.Container(), // center
	)

	split := container.NewHSplit(
		mw.sidePanel.Container(),
		canvasArea,
	)
	split.SetOffset(0.28)

	content := container.NewBorder(
		nil,                               // top
		container.NewPadded(mw.statusBar), // bottom
		nil,                               // left
		nil,                               // right
		split,                             // center
	)

	mw.SetContent(content)
}

// createToolbar creates the toolbar with zoom and page controls.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	zoomOutBtn := widget.NewButton("-", mw.onZoomOut)
	zoomInBtn := widget.NewButton("+", mw.onZoomIn)
	fitBtn := widget.NewButton("Fit", mw.onToggleFitToWindow)
	actualBtn := widget.NewButton("1:1", mw.onActualSize)

	prevBtn := widget.NewButton("< Page", func() {
		mw.state.PrevPage()
	})
	nextBtn := widget.NewButton("Page >", func() {
		mw.state.NextPage()
	})

	return container.NewHBox(
		widget.NewLabel("Zoom:"),
		zoomOutBtn,
		zoomInBtn,
		fitBtn,
		actualBtn,
		widget.NewSeparator(),
		prevBtn,
		nextBtn,
	)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open PDF...", mw.onOpenPDF),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Open Session...", mw.onOpenSession),
		fyne.NewMenuItem("Save Session", mw.onSaveSession),
		fyne.NewMenuItem("Save Session As...", mw.onSaveSessionAs),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export Results...", mw.onExportResults),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { mw.app.Quit() }),
	)

	measureMenu := fyne.NewMenu("Measure",
		fyne.NewMenuItem("Measure Distance", mw.state.StartMeasurement),
		fyne.NewMenuItem("Calibrate...", func() { mw.typedRune('c') }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Set Pre Rectangle", func() { mw.state.StartRectangle(measure.GroupPre) }),
		fyne.NewMenuItem("Set Post Rectangle", func() { mw.state.StartRectangle(measure.GroupPost) }),
		fyne.NewMenuItem("Track Particle", mw.state.StartParticleTracking),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Toggle Group", func() { mw.state.ToggleGroup() }),
		fyne.NewMenuItem("Delete Last", func() { mw.typedRune('d') }),
		fyne.NewMenuItem("Clear All", func() { mw.typedRune('x') }),
		fyne.NewMenuItem("Cancel Mode", mw.state.CancelMode),
	)

	mw.fitToWindowItem = fyne.NewMenuItem("  Fit to Window", mw.onToggleFitToWindow)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", mw.onZoomIn),
		fyne.NewMenuItem("Zoom Out", mw.onZoomOut),
		mw.fitToWindowItem,
		fyne.NewMenuItem("Actual Size", mw.onActualSize),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Next Page", mw.state.NextPage),
		fyne.NewMenuItem("Previous Page", mw.state.PrevPage),
		fyne.NewMenuItem("First Page", func() { mw.state.SetPage(0) }),
		fyne.NewMenuItem("Last Page", func() { mw.state.SetPage(mw.state.NumPages() - 1) }),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("Shortcuts", mw.onShowShortcuts),
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mainMenu := fyne.NewMainMenu(fileMenu, measureMenu, viewMenu, helpMenu)
	mw.SetMainMenu(mainMenu)
}

// setupShortcuts wires the single-key bindings.
func (mw *MainWindow) setupShortcuts() {
	mw.Canvas().SetOnTypedRune(mw.typedRune)
	mw.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyEscape:
			mw.state.CancelMode()
		case fyne.KeyLeft:
			mw.state.PrevPage()
		case fyne.KeyRight:
			mw.state.NextPage()
		case fyne.KeyHome:
			mw.state.SetPage(0)
		case fyne.KeyEnd:
			mw.state.SetPage(mw.state.NumPages() - 1)
		}
	})
}

func (mw *MainWindow) typedRune(r rune) {
	switch r {
	case 'm':
		mw.state.StartMeasurement()
	case 'c':
		mw.promptCalibration()
	case 'r':
		mw.state.StartRectangle(measure.GroupPre)
	case 'R':
		mw.state.StartRectangle(measure.GroupPost)
	case 't':
		mw.state.StartParticleTracking()
	case 'g':
		mw.state.ToggleGroup()
	case 's':
		mw.onExportResults()
	case 'd':
		if label := mw.state.DeleteLast(); label != "" {
			mw.updateStatus("Deleted " + label)
		} else {
			mw.updateStatus("Nothing to delete")
		}
	case 'x':
		dialog.ShowConfirm("Clear all", "Remove every measurement, particle, and rectangle?",
			func(ok bool) {
				if ok {
					mw.state.ClearAll()
				}
			}, mw.Window)
	case 'h', '?':
		mw.onShowShortcuts()
	case '[':
		mw.state.PrevPage()
	case ']':
		mw.state.NextPage()
	}
}

func (mw *MainWindow) promptCalibration() {
	entry := widget.NewEntry()
	entry.SetPlaceHolder("e.g. 50.0")
	dialog.ShowForm("Calibrate", "Start", "Cancel",
		[]*widget.FormItem{widget.NewFormItem("Known distance (mm)", entry)},
		func(ok bool) {
			if !ok {
				return
			}
			var mm float64
			if _, err := fmt.Sscanf(entry.Text, "%f", &mm); err != nil || mm <= 0 {
				dialog.ShowError(fmt.Errorf("invalid distance %q", entry.Text), mw.Window)
				return
			}
			mw.state.StartCalibration(mm)
		}, mw.Window)
}

// onCanvasClick feeds a left click into the active mode.
func (mw *MainWindow) onCanvasClick(x, y float64) {
	if err := mw.state.HandleClick(geometry.NewPoint2D(x, y)); err != nil {
		dialog.ShowError(err, mw.Window)
	}
	mw.syncOverlays()
}

// onCanvasSnapClick is a right click: in particle modes it snaps the
// click to the nearest detected blob before recording it.
func (mw *MainWindow) onCanvasSnapClick(x, y float64) {
	mode := mw.state.Mode()
	if mode != app.ModeParticlePre && mode != app.ModeParticlePost {
		return
	}

	point := geometry.NewPoint2D(x, y)
	img, err := mw.state.CurrentImage()
	if err == nil {
		region := geometry.Rect{
			X:      x - 3*snapSearchRadiusPx,
			Y:      y - 3*snapSearchRadiusPx,
			Width:  6 * snapSearchRadiusPx,
			Height: 6 * snapSearchRadiusPx,
		}
		candidates, derr := markers.DetectCandidates(img.Image, region, markers.DefaultParams())
		if derr != nil {
			log.Printf("marker detection failed: %v", derr)
		} else if c := markers.NearestCandidate(candidates, point, snapSearchRadiusPx); c != nil {
			point = c.Center
			mw.updateStatus(fmt.Sprintf("Snapped to blob at (%.1f, %.1f)", point.X, point.Y))
		}
	}

	if err := mw.state.HandleClick(point); err != nil {
		dialog.ShowError(err, mw.Window)
	}
	mw.syncOverlays()
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventDocumentLoaded, func(data interface{}) {
		if path, ok := data.(string); ok {
			mw.SetTitle("PDF Measure - " + filepath.Base(path))
			mw.updateStatus(fmt.Sprintf("Loaded %s (%d pages)", path, mw.state.NumPages()))
		}
	})

	mw.state.On(app.EventPageChanged, func(interface{}) {
		mw.showCurrentPage()
	})

	mw.state.On(app.EventModeChanged, func(data interface{}) {
		if mode, ok := data.(app.Mode); ok {
			mw.updateStatus(mode.String())
		}
		mw.syncOverlays()
	})

	mw.state.On(app.EventStatus, func(data interface{}) {
		if text, ok := data.(string); ok {
			mw.updateStatus(text)
		}
	})

	for _, ev := range []app.EventType{
		app.EventMeasurementsChanged,
		app.EventParticlesChanged,
		app.EventRectanglesChanged,
		app.EventSessionLoaded,
	} {
		mw.state.On(ev, func(interface{}) {
			mw.syncOverlays()
		})
	}

	mw.state.On(app.EventModified, func(data interface{}) {
		if modified, ok := data.(bool); ok && modified {
			title := mw.Title()
			if len(title) > 0 && title[len(title)-1] != '*' {
				mw.SetTitle(title + " *")
			}
		}
	})
}

// showCurrentPage renders the current page onto the canvas.
func (mw *MainWindow) showCurrentPage() {
	img, err := mw.state.CurrentImage()
	if err != nil {
		mw.updateStatus("Render failed: " + err.Error())
		return
	}
	mw.canvas.SetPage(img.Image, img.PageIndex)
	mw.syncOverlays()
	mw.updateStatus(fmt.Sprintf("Page %d / %d", mw.state.Page()+1, mw.state.NumPages()))
}

// syncOverlays pushes the session data onto the canvas.
func (mw *MainWindow) syncOverlays() {
	c := mw.state.Collection
	mw.canvas.SetMeasurements(c.Measurements)
	mw.canvas.SetRectangles(c.PreRectangle, c.PostRectangle)
	mw.canvas.SetParticles(c.Particles)
	mw.canvas.SetPendingPoints(mw.state.PendingPoints())
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.app.Preferences().String(prefKeyLastDir)
	if path == "" {
		return nil
	}
	uri := storage.NewFileURI(path)
	listable, err := storage.ListerForURI(uri)
	if err != nil {
		return nil
	}
	return listable
}

// saveLastDir saves the directory of the given file path.
func (mw *MainWindow) saveLastDir(filePath string) {
	dir := filepath.Dir(filePath)
	mw.app.Preferences().SetString(prefKeyLastDir, dir)
}

// restoreLastDocument reopens the previously used PDF.
func (mw *MainWindow) restoreLastDocument() {
	path := mw.app.Preferences().String(prefKeyLastPDF)
	if path == "" {
		return
	}
	if err := mw.state.OpenDocument(path); err != nil {
		log.Printf("failed to restore document %s: %v", path, err)
		return
	}
	mw.showCurrentPage()
	mw.state.SetModified(false)
}

// Menu action handlers

func (mw *MainWindow) onOpenPDF() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)
		if err := mw.state.OpenDocument(path); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.app.Preferences().SetString(prefKeyLastPDF, path)
		mw.showCurrentPage()
		mw.canvas.SetFitToWindow(true)
		mw.fitToWindowItem.Label = "✓ Fit to Window"
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".pdf"}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onOpenSession() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)
		if err := mw.state.LoadSession(path); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.updateStatus("Session loaded: " + path)
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".json"}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onSaveSession() {
	if mw.state.SessionPath == "" {
		mw.onSaveSessionAs()
		return
	}
	if err := mw.state.SaveSession(mw.state.SessionPath); err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.updateStatus("Session saved: " + mw.state.SessionPath)
}

func (mw *MainWindow) onSaveSessionAs() {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		if filepath.Ext(path) != ".json" {
			path += ".json"
		}
		mw.saveLastDir(path)
		if err := mw.state.SaveSession(path); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.updateStatus("Session saved: " + path)
	}, mw.Window)
	fd.SetFileName("session.json")
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onExportResults() {
	fd := dialog.NewFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil || uri == nil {
			return
		}
		dir := uri.Path()
		mw.saveLastDir(dir)
		paths, err := mw.state.ExportResults(dir)
		if err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.updateStatus(fmt.Sprintf("Exported %d files to %s", len(paths), dir))
	}, mw.Window)
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onZoomIn() {
	mw.disableFitToWindow()
	mw.canvas.ZoomIn()
}

func (mw *MainWindow) onZoomOut() {
	mw.disableFitToWindow()
	mw.canvas.ZoomOut()
}

func (mw *MainWindow) onToggleFitToWindow() {
	enabled := !mw.canvas.GetFitToWindow()
	mw.canvas.SetFitToWindow(enabled)

	if enabled {
		mw.fitToWindowItem.Label = "✓ Fit to Window"
	} else {
		mw.fitToWindowItem.Label = "  Fit to Window"
	}
}

func (mw *MainWindow) onActualSize() {
	mw.disableFitToWindow()
	mw.canvas.SetZoom(1.0)
}

func (mw *MainWindow) disableFitToWindow() {
	if mw.canvas.GetFitToWindow() {
		mw.canvas.SetFitToWindow(false)
		mw.fitToWindowItem.Label = "  Fit to Window"
	}
}

func (mw *MainWindow) onShowShortcuts() {
	dialog.ShowInformation("Shortcuts",
		"m\tMeasure (click 2 points)\n"+
			"c\tCalibrate (known distance)\n"+
			"r / R\tPre / post rectangle\n"+
			"t\tTrack particle (pre then post)\n"+
			"g\tToggle group\n"+
			"s\tExport results\n"+
			"d\tDelete last\n"+
			"x\tClear all\n"+
			"Esc\tCancel mode\n"+
			"← / → or [ / ]\tChange page\n"+
			"Right-click\tSnap particle click to nearest blob",
		mw.Window)
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About PDF Measure",
		fmt.Sprintf("PDF Measure v%s\n\n"+
			"Interactive distance and particle displacement\n"+
			"measurement on PDF scans.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}
