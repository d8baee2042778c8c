// Package panels provides UI panels for the application.
package panels

import (
	"fmt"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"pdf-measure/internal/app"
	"pdf-measure/internal/calibration"
	"pdf-measure/internal/export"
	"pdf-measure/internal/measure"
)

// SidePanel provides the main side panel with tabbed sections.
type SidePanel struct {
	state     *app.State
	container *container.AppTabs

	sessionPanel      *SessionPanel
	measurementsPanel *MeasurementsPanel
	particlesPanel    *ParticlesPanel
}

// NewSidePanel creates a new side panel.
func NewSidePanel(state *app.State) *SidePanel {
	sp := &SidePanel{state: state}

	sp.sessionPanel = NewSessionPanel(state)
	sp.measurementsPanel = NewMeasurementsPanel(state)
	sp.particlesPanel = NewParticlesPanel(state)

	sp.container = container.NewAppTabs(
		container.NewTabItem("Session", sp.sessionPanel.Container()),
		container.NewTabItem("Measurements", sp.measurementsPanel.Container()),
		container.NewTabItem("Particles", sp.particlesPanel.Container()),
	)

	return sp
}

// Container returns the panel container.
func (sp *SidePanel) Container() fyne.CanvasObject {
	return sp.container
}

// SetWindow sets the parent window for dialogs.
func (sp *SidePanel) SetWindow(w fyne.Window) {
	sp.sessionPanel.SetWindow(w)
}

// SessionPanel shows document and calibration info and the mode controls.
type SessionPanel struct {
	state     *app.State
	window    fyne.Window
	container fyne.CanvasObject

	docLabel   *widget.Label
	pageLabel  *widget.Label
	calLabel   *widget.Label
	groupLabel *widget.Label
	modeLabel  *widget.Label
}

// NewSessionPanel creates the session tab.
func NewSessionPanel(state *app.State) *SessionPanel {
	p := &SessionPanel{state: state}

	p.docLabel = widget.NewLabel("No document loaded")
	p.docLabel.Wrapping = fyne.TextWrapWord
	p.pageLabel = widget.NewLabel("")
	p.calLabel = widget.NewLabel("Not calibrated")
	p.groupLabel = widget.NewLabel("Group: " + state.CurrentGroup())
	p.modeLabel = widget.NewLabel("Mode: VIEW")

	measureBtn := widget.NewButton("Measure (m)", func() {
		state.StartMeasurement()
	})
	calibrateBtn := widget.NewButton("Calibrate... (c)", func() {
		p.promptCalibration()
	})
	rectPreBtn := widget.NewButton("Rectangle: pre (r)", func() {
		state.StartRectangle(measure.GroupPre)
	})
	rectPostBtn := widget.NewButton("Rectangle: post (R)", func() {
		state.StartRectangle(measure.GroupPost)
	})
	particleBtn := widget.NewButton("Track particle (t)", func() {
		state.StartParticleTracking()
	})
	groupBtn := widget.NewButton("Toggle group (g)", func() {
		state.ToggleGroup()
	})
	deleteBtn := widget.NewButton("Delete last (d)", func() {
		if label := state.DeleteLast(); label == "" {
			state.Emit(app.EventStatus, "Nothing to delete")
		}
	})
	clearBtn := widget.NewButton("Clear all (x)", func() {
		p.promptClearAll()
	})

	p.container = container.NewVBox(
		widget.NewLabelWithStyle("Document", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		p.docLabel,
		p.pageLabel,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Calibration", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		p.calLabel,
		widget.NewSeparator(),
		p.modeLabel,
		p.groupLabel,
		measureBtn,
		calibrateBtn,
		rectPreBtn,
		rectPostBtn,
		particleBtn,
		groupBtn,
		widget.NewSeparator(),
		deleteBtn,
		clearBtn,
	)

	state.On(app.EventDocumentLoaded, func(data interface{}) {
		if path, ok := data.(string); ok {
			p.docLabel.SetText(path)
		}
		p.updatePageLabel()
	})
	state.On(app.EventPageChanged, func(interface{}) {
		p.updatePageLabel()
	})
	state.On(app.EventCalibrationChanged, func(data interface{}) {
		if cal, ok := data.(calibration.Calibration); ok {
			p.calLabel.SetText(fmt.Sprintf("%.4f mm/px (%s)", cal.MMPerPixel, cal.Source))
		}
	})
	state.On(app.EventModeChanged, func(data interface{}) {
		if mode, ok := data.(app.Mode); ok {
			p.modeLabel.SetText("Mode: " + mode.String())
		}
	})
	state.On(app.EventStatus, func(interface{}) {
		p.groupLabel.SetText("Group: " + state.CurrentGroup())
	})

	return p
}

// Container returns the panel content.
func (p *SessionPanel) Container() fyne.CanvasObject {
	return container.NewVScroll(p.container)
}

// SetWindow sets the parent window for dialogs.
func (p *SessionPanel) SetWindow(w fyne.Window) {
	p.window = w
}

func (p *SessionPanel) updatePageLabel() {
	n := p.state.NumPages()
	if n == 0 {
		p.pageLabel.SetText("")
		return
	}
	p.pageLabel.SetText(fmt.Sprintf("Page %d / %d", p.state.Page()+1, n))
}

// promptCalibration asks for the known distance, then arms calibrate mode.
func (p *SessionPanel) promptCalibration() {
	if p.window == nil {
		return
	}
	entry := widget.NewEntry()
	entry.SetPlaceHolder("e.g. 50.0")
	dialog.ShowForm("Calibrate", "Start", "Cancel",
		[]*widget.FormItem{widget.NewFormItem("Known distance (mm)", entry)},
		func(ok bool) {
			if !ok {
				return
			}
			mm, err := strconv.ParseFloat(entry.Text, 64)
			if err != nil || mm <= 0 {
				dialog.ShowError(fmt.Errorf("invalid distance %q", entry.Text), p.window)
				return
			}
			p.state.StartCalibration(mm)
		}, p.window)
}

func (p *SessionPanel) promptClearAll() {
	if p.window == nil {
		p.state.ClearAll()
		return
	}
	dialog.ShowConfirm("Clear all", "Remove every measurement, particle, and rectangle?",
		func(ok bool) {
			if ok {
				p.state.ClearAll()
			}
		}, p.window)
}

// MeasurementsPanel lists distance measurements in a table.
type MeasurementsPanel struct {
	state     *app.State
	table     *widget.Table
	container fyne.CanvasObject
}

var measurementColumns = []string{"Label", "Page", "Pixels", "mm", "Group"}

// NewMeasurementsPanel creates the measurements tab.
func NewMeasurementsPanel(state *app.State) *MeasurementsPanel {
	p := &MeasurementsPanel{state: state}

	p.table = widget.NewTable(
		func() (int, int) {
			return len(state.Collection.Measurements) + 1, len(measurementColumns)
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("placeholder")
		},
		func(id widget.TableCellID, cell fyne.CanvasObject) {
			label := cell.(*widget.Label)
			if id.Row == 0 {
				label.TextStyle = fyne.TextStyle{Bold: true}
				label.SetText(measurementColumns[id.Col])
				return
			}
			label.TextStyle = fyne.TextStyle{}
			ms := state.Collection.Measurements
			if id.Row-1 >= len(ms) {
				label.SetText("")
				return
			}
			m := ms[id.Row-1]
			switch id.Col {
			case 0:
				label.SetText(m.Label)
			case 1:
				label.SetText(strconv.Itoa(m.PageIndex + 1))
			case 2:
				label.SetText(fmt.Sprintf("%.1f", m.PixelDistance))
			case 3:
				if m.Calibrated {
					label.SetText(fmt.Sprintf("%.3f", m.LengthMM))
				} else {
					label.SetText("N/A")
				}
			case 4:
				label.SetText(m.Group)
			}
		},
	)
	for i := range measurementColumns {
		p.table.SetColumnWidth(i, 70)
	}
	p.container = p.table

	refresh := func(interface{}) { p.table.Refresh() }
	state.On(app.EventMeasurementsChanged, refresh)
	state.On(app.EventCalibrationChanged, refresh)
	state.On(app.EventSessionLoaded, refresh)

	return p
}

// Container returns the panel content.
func (p *MeasurementsPanel) Container() fyne.CanvasObject {
	return p.container
}

// ParticlesPanel lists particle displacements and their summary statistics.
type ParticlesPanel struct {
	state        *app.State
	table        *widget.Table
	summaryLabel *widget.Label
	container    fyne.CanvasObject
}

var particleColumns = []string{"Label", "Pre", "Post", "Magnitude"}

// NewParticlesPanel creates the particles tab.
func NewParticlesPanel(state *app.State) *ParticlesPanel {
	p := &ParticlesPanel{state: state}

	p.summaryLabel = widget.NewLabel("No particles tracked")
	p.summaryLabel.Wrapping = fyne.TextWrapWord

	p.table = widget.NewTable(
		func() (int, int) {
			return len(state.Collection.Particles) + 1, len(particleColumns)
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("placeholder")
		},
		func(id widget.TableCellID, cell fyne.CanvasObject) {
			label := cell.(*widget.Label)
			if id.Row == 0 {
				label.TextStyle = fyne.TextStyle{Bold: true}
				label.SetText(particleColumns[id.Col])
				return
			}
			label.TextStyle = fyne.TextStyle{}
			ps := state.Collection.Particles
			if id.Row-1 >= len(ps) {
				label.SetText("")
				return
			}
			particle := ps[id.Row-1]
			switch id.Col {
			case 0:
				label.SetText(particle.Label)
			case 1:
				label.SetText(fmt.Sprintf("(%.0f, %.0f)", particle.PrePositionPx.X, particle.PrePositionPx.Y))
			case 2:
				label.SetText(fmt.Sprintf("(%.0f, %.0f)", particle.PostPositionPx.X, particle.PostPositionPx.Y))
			case 3:
				if mm := state.MMPerPixel(); mm > 0 {
					label.SetText(fmt.Sprintf("%.3f mm", particle.DisplacementMagnitudeMM(mm)))
				} else {
					label.SetText(fmt.Sprintf("%.1f px", particle.DisplacementMagnitudePx()))
				}
			}
		},
	)
	for i := range particleColumns {
		p.table.SetColumnWidth(i, 90)
	}

	p.container = container.NewBorder(nil, p.summaryLabel, nil, nil, p.table)

	refresh := func(interface{}) {
		p.table.Refresh()
		p.updateSummary()
	}
	state.On(app.EventParticlesChanged, refresh)
	state.On(app.EventCalibrationChanged, refresh)
	state.On(app.EventSessionLoaded, refresh)

	return p
}

// Container returns the panel content.
func (p *ParticlesPanel) Container() fyne.CanvasObject {
	return p.container
}

func (p *ParticlesPanel) updateSummary() {
	summary := export.Summarize(p.state.Collection, p.state.Calibration)
	if summary == nil {
		p.summaryLabel.SetText("No particles tracked")
		return
	}
	p.summaryLabel.SetText(fmt.Sprintf("%d particles, mean %.3f %s, std dev %.3f %s",
		summary.ParticleCount, summary.MeanMagnitude, summary.Unit, summary.StdDev, summary.Unit))
}
