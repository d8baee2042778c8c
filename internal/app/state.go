// Package app provides application lifecycle management, session state, and events.
package app

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pdf-measure/internal/calibration"
	"pdf-measure/internal/export"
	"pdf-measure/internal/measure"
	"pdf-measure/internal/pdfdoc"
	"pdf-measure/internal/plot"
	"pdf-measure/pkg/geometry"
)

// Mode identifies the active click interaction.
type Mode int

const (
	ModeView Mode = iota
	ModeMeasure
	ModeCalibrate
	ModeRectPre
	ModeRectPost
	ModeParticlePre
	ModeParticlePost
)

// String returns a short status-bar description of the mode.
func (m Mode) String() string {
	switch m {
	case ModeView:
		return "VIEW"
	case ModeMeasure:
		return "MEASURE - click 2 points"
	case ModeCalibrate:
		return "CALIBRATE - click 2 points of known distance"
	case ModeRectPre:
		return "RECTANGLE (pre) - click 2 opposite corners"
	case ModeRectPost:
		return "RECTANGLE (post) - click 2 opposite corners"
	case ModeParticlePre:
		return "PARTICLE TRACK - click PRE-test position"
	case ModeParticlePost:
		return "PARTICLE TRACK - click POST-test position"
	}
	return ""
}

// MeasurementGroups is the cycle order used by the group toggle.
var MeasurementGroups = []string{"pre", "post", "fiber", "edge", "other"}

// EventType identifies different application events.
type EventType int

const (
	EventDocumentLoaded EventType = iota
	EventPageChanged
	EventModeChanged
	EventCalibrationChanged
	EventMeasurementsChanged
	EventParticlesChanged
	EventRectanglesChanged
	EventSessionSaved
	EventSessionLoaded
	EventModified
	EventStatus
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// State holds the application state: the open document, the measurement
// session, and the active interaction mode.
type State struct {
	mu sync.RWMutex

	// Document
	Document    *pdfdoc.Document
	CurrentPage int
	DPI         int

	// Session
	SessionPath string
	Modified    bool
	Collection  *measure.Collection
	Calibration *calibration.Calibration

	// Interaction
	mode         Mode
	currentGroup string

	// Temporary click storage
	clickPoints     []geometry.Point2D
	particlePre     *geometry.Point2D
	particlePrePage int
	knownLengthMM   float64

	// Event listeners
	listeners map[EventType][]EventListener
}

// NewState creates a new application state.
func NewState() *State {
	return &State{
		DPI:          pdfdoc.DefaultDPI,
		Collection:   measure.NewCollection(),
		currentGroup: MeasurementGroups[0],
		listeners:    make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SetModified marks the session as modified and emits an event.
func (s *State) SetModified(modified bool) {
	s.mu.Lock()
	s.Modified = modified
	s.mu.Unlock()
	s.Emit(EventModified, modified)
}

// OpenDocument opens a PDF, resets the session, and calibrates from the
// first page's geometry.
func (s *State) OpenDocument(path string) error {
	doc, err := pdfdoc.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}

	s.mu.Lock()
	if s.Document != nil {
		s.Document.Close()
	}
	s.Document = doc
	s.CurrentPage = 0
	s.SessionPath = ""
	s.Collection = measure.NewCollection()
	s.Calibration = nil
	s.mode = ModeView
	s.clickPoints = nil
	s.particlePre = nil
	s.mu.Unlock()

	if err := s.autoCalibrate(); err != nil {
		log.Printf("page calibration unavailable: %v", err)
	}

	s.Emit(EventDocumentLoaded, path)
	s.Emit(EventPageChanged, 0)
	return nil
}

// autoCalibrate derives mm-per-pixel from the current page's PDF geometry.
func (s *State) autoCalibrate() error {
	img, err := s.CurrentImage()
	if err != nil {
		return err
	}

	cal, err := calibration.FromPageGeometry(img.WidthMM, img.WidthPx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.Calibration = &cal
	s.Collection.Recalibrate(cal.MMPerPixel)
	s.mu.Unlock()

	s.Emit(EventCalibrationChanged, cal)
	return nil
}

// CurrentImage renders the current page at the session DPI.
func (s *State) CurrentImage() (*pdfdoc.PageImage, error) {
	s.mu.RLock()
	doc := s.Document
	page := s.CurrentPage
	dpi := s.DPI
	s.mu.RUnlock()

	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	return doc.RenderPage(page, dpi)
}

// NumPages returns the page count of the open document, 0 when none.
func (s *State) NumPages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Document == nil {
		return 0
	}
	return s.Document.NumPages()
}

// SetPage switches to the given page. Out-of-range indices are ignored.
func (s *State) SetPage(index int) {
	s.mu.Lock()
	if s.Document == nil || index < 0 || index >= s.Document.NumPages() {
		s.mu.Unlock()
		return
	}
	s.CurrentPage = index
	s.mu.Unlock()

	s.Emit(EventPageChanged, index)
}

// NextPage advances to the following page.
func (s *State) NextPage() { s.SetPage(s.Page() + 1) }

// PrevPage goes back one page.
func (s *State) PrevPage() { s.SetPage(s.Page() - 1) }

// Page returns the current page index.
func (s *State) Page() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CurrentPage
}

// MMPerPixel returns the active calibration factor, 0 when uncalibrated.
func (s *State) MMPerPixel() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Calibration == nil {
		return 0
	}
	return s.Calibration.MMPerPixel
}

// Mode returns the active interaction mode.
func (s *State) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// PendingClicks reports how many points of a two-click operation are stored.
func (s *State) PendingClicks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clickPoints)
}

// PendingPoints returns the stored in-progress click positions,
// including a recorded particle pre-position.
func (s *State) PendingPoints() []geometry.Point2D {
	s.mu.RLock()
	defer s.mu.RUnlock()
	points := append([]geometry.Point2D(nil), s.clickPoints...)
	if s.particlePre != nil && s.particlePrePage == s.CurrentPage {
		points = append(points, *s.particlePre)
	}
	return points
}

// CurrentGroup returns the active measurement group.
func (s *State) CurrentGroup() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentGroup
}

// ToggleGroup cycles through the measurement groups and returns the new one.
func (s *State) ToggleGroup() string {
	s.mu.Lock()
	idx := -1
	for i, g := range MeasurementGroups {
		if g == s.currentGroup {
			idx = i
			break
		}
	}
	s.currentGroup = MeasurementGroups[(idx+1)%len(MeasurementGroups)]
	group := s.currentGroup
	s.mu.Unlock()

	s.Emit(EventStatus, fmt.Sprintf("Group set to: %s", group))
	return group
}

// StartMeasurement enters measure mode.
func (s *State) StartMeasurement() { s.setMode(ModeMeasure) }

// StartCalibration enters calibrate mode. The two clicked points will be
// assigned the given physical distance.
func (s *State) StartCalibration(knownLengthMM float64) {
	s.mu.Lock()
	s.knownLengthMM = knownLengthMM
	s.mu.Unlock()
	s.setMode(ModeCalibrate)
}

// StartRectangle enters corner-picking mode for the given specimen side.
func (s *State) StartRectangle(group measure.Group) {
	if group == measure.GroupPost {
		s.setMode(ModeRectPost)
		return
	}
	s.setMode(ModeRectPre)
}

// StartParticleTracking enters the pre-then-post particle workflow.
func (s *State) StartParticleTracking() { s.setMode(ModeParticlePre) }

// CancelMode aborts any in-progress clicks and returns to view mode.
func (s *State) CancelMode() { s.setMode(ModeView) }

func (s *State) setMode(mode Mode) {
	s.mu.Lock()
	s.mode = mode
	s.clickPoints = nil
	s.particlePre = nil
	s.mu.Unlock()

	s.Emit(EventModeChanged, mode)
}

// HandleClick feeds one image-space click into the active mode's workflow.
func (s *State) HandleClick(p geometry.Point2D) error {
	switch s.Mode() {
	case ModeMeasure:
		return s.handleMeasureClick(p)
	case ModeCalibrate:
		return s.handleCalibrateClick(p)
	case ModeRectPre:
		return s.handleRectangleClick(p, measure.GroupPre)
	case ModeRectPost:
		return s.handleRectangleClick(p, measure.GroupPost)
	case ModeParticlePre:
		s.handleParticlePreClick(p)
		return nil
	case ModeParticlePost:
		return s.handleParticlePostClick(p)
	}
	return nil
}

func (s *State) handleMeasureClick(p geometry.Point2D) error {
	s.mu.Lock()
	s.clickPoints = append(s.clickPoints, p)
	if len(s.clickPoints) < 2 {
		s.mu.Unlock()
		s.Emit(EventStatus, "First point set, click the second")
		return nil
	}
	p1, p2 := s.clickPoints[0], s.clickPoints[1]
	s.clickPoints = nil
	label := fmt.Sprintf("M%d", s.Collection.NextMeasurementID())
	m := s.Collection.AddMeasurement(label, s.CurrentPage, p1, p2, s.factorLocked(), s.currentGroup, "")
	s.mu.Unlock()

	if m.Calibrated {
		s.Emit(EventStatus, fmt.Sprintf("[%s] %.1f px = %.3f mm (group: %s)", m.Label, m.PixelDistance, m.LengthMM, m.Group))
	} else {
		s.Emit(EventStatus, fmt.Sprintf("[%s] %.1f px, uncalibrated (group: %s)", m.Label, m.PixelDistance, m.Group))
	}
	s.Emit(EventMeasurementsChanged, m)
	s.SetModified(true)
	return nil
}

func (s *State) handleCalibrateClick(p geometry.Point2D) error {
	s.mu.Lock()
	s.clickPoints = append(s.clickPoints, p)
	if len(s.clickPoints) < 2 {
		s.mu.Unlock()
		s.Emit(EventStatus, "First point set, click the second")
		return nil
	}
	p1, p2 := s.clickPoints[0], s.clickPoints[1]
	knownMM := s.knownLengthMM
	page := s.CurrentPage
	s.clickPoints = nil
	s.mode = ModeView
	s.mu.Unlock()

	cal, err := calibration.FromKnownLength(p1, p2, knownMM, page)
	if err != nil {
		s.Emit(EventModeChanged, ModeView)
		return err
	}

	s.mu.Lock()
	s.Calibration = &cal
	s.Collection.Recalibrate(cal.MMPerPixel)
	s.mu.Unlock()

	s.Emit(EventModeChanged, ModeView)
	s.Emit(EventCalibrationChanged, cal)
	s.Emit(EventStatus, fmt.Sprintf("Calibrated: %.6f mm/pixel (manual)", cal.MMPerPixel))
	s.SetModified(true)
	return nil
}

func (s *State) handleRectangleClick(p geometry.Point2D, group measure.Group) error {
	s.mu.Lock()
	s.clickPoints = append(s.clickPoints, p)
	if len(s.clickPoints) < 2 {
		s.mu.Unlock()
		s.Emit(EventStatus, "First corner set, click the opposite corner")
		return nil
	}
	p1, p2 := s.clickPoints[0], s.clickPoints[1]
	s.clickPoints = nil
	s.mode = ModeView
	rect, err := s.Collection.AddRectangle(group, s.CurrentPage, p1, p2, s.factorLocked())
	s.mu.Unlock()

	s.Emit(EventModeChanged, ModeView)
	if err != nil {
		return fmt.Errorf("failed to add %s rectangle: %w", group, err)
	}

	s.Emit(EventRectanglesChanged, rect)
	s.Emit(EventStatus, fmt.Sprintf("%s rectangle set: %.1f x %.1f px", group, rect.WidthPx, rect.HeightPx))
	s.SetModified(true)
	return nil
}

func (s *State) handleParticlePreClick(p geometry.Point2D) {
	s.mu.Lock()
	pre := p
	s.particlePre = &pre
	s.particlePrePage = s.CurrentPage
	s.mode = ModeParticlePost
	s.mu.Unlock()

	s.Emit(EventModeChanged, ModeParticlePost)
	s.Emit(EventStatus, fmt.Sprintf("PRE position recorded at (%.1f, %.1f), click POST position", p.X, p.Y))
}

func (s *State) handleParticlePostClick(p geometry.Point2D) error {
	s.mu.Lock()
	if s.particlePre == nil {
		s.mode = ModeView
		s.mu.Unlock()
		s.Emit(EventModeChanged, ModeView)
		return fmt.Errorf("no pre-test position recorded")
	}
	pre := *s.particlePre
	prePage := s.particlePrePage
	s.particlePre = nil
	s.mode = ModeView
	label := fmt.Sprintf("P%d", s.Collection.NextParticleID())
	particle := s.Collection.AddParticle(label, pre, p, prePage, s.CurrentPage, s.factorLocked())
	s.mu.Unlock()

	d := particle.DisplacementPx()
	s.Emit(EventModeChanged, ModeView)
	s.Emit(EventParticlesChanged, particle)
	s.Emit(EventStatus, fmt.Sprintf("[%s] displacement (%.1f, %.1f) px, magnitude %.1f px",
		particle.Label, d.X, d.Y, particle.DisplacementMagnitudePx()))
	s.SetModified(true)
	return nil
}

// factorLocked reads the calibration factor; callers must hold s.mu.
func (s *State) factorLocked() float64 {
	if s.Calibration == nil {
		return 0
	}
	return s.Calibration.MMPerPixel
}

// DeleteLast removes the most recent measurement, or the most recent
// particle when no measurements remain. It returns the deleted label.
func (s *State) DeleteLast() string {
	s.mu.Lock()
	if m := s.Collection.DeleteLastMeasurement(); m != nil {
		s.mu.Unlock()
		s.Emit(EventMeasurementsChanged, nil)
		s.SetModified(true)
		return m.Label
	}
	if p := s.Collection.DeleteLastParticle(); p != nil {
		s.mu.Unlock()
		s.Emit(EventParticlesChanged, nil)
		s.SetModified(true)
		return p.Label
	}
	s.mu.Unlock()
	return ""
}

// ClearAll removes every measurement, particle, and rectangle.
func (s *State) ClearAll() {
	s.mu.Lock()
	s.Collection.ClearAll()
	s.mu.Unlock()

	s.Emit(EventMeasurementsChanged, nil)
	s.Emit(EventParticlesChanged, nil)
	s.Emit(EventRectanglesChanged, nil)
	s.SetModified(true)
}

// SaveSession writes the session as JSON to the given path.
func (s *State) SaveSession(path string) error {
	s.mu.RLock()
	c := s.Collection
	cal := s.Calibration
	s.mu.RUnlock()

	if err := export.SaveJSON(path, c, cal); err != nil {
		return err
	}

	s.mu.Lock()
	s.SessionPath = path
	s.Modified = false
	s.mu.Unlock()

	s.Emit(EventSessionSaved, path)
	return nil
}

// LoadSession restores a saved JSON session. Label counters continue
// past the highest restored id.
func (s *State) LoadSession(path string) error {
	c, cal, err := export.LoadJSON(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.Collection = c
	s.Calibration = cal
	s.SessionPath = path
	s.Modified = false
	s.mu.Unlock()

	s.Emit(EventSessionLoaded, path)
	s.Emit(EventMeasurementsChanged, nil)
	s.Emit(EventParticlesChanged, nil)
	s.Emit(EventRectanglesChanged, nil)
	if cal != nil {
		s.Emit(EventCalibrationChanged, *cal)
	}
	return nil
}

// ExportResults writes CSV and JSON files named after the document into
// dir, plus a visualization PNG when rectangles exist. It returns the
// paths written.
func (s *State) ExportResults(dir string) ([]string, error) {
	s.mu.RLock()
	c := s.Collection
	cal := s.Calibration
	doc := s.Document
	s.mu.RUnlock()

	if len(c.Measurements) == 0 && len(c.Particles) == 0 {
		return nil, fmt.Errorf("no measurements to save")
	}

	base := "measurements"
	if doc != nil {
		base = strings.TrimSuffix(filepath.Base(doc.Path), filepath.Ext(doc.Path))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	csvPath := filepath.Join(dir, base+"_measurements.csv")
	if err := export.SaveCSV(csvPath, c, cal); err != nil {
		return nil, err
	}
	jsonPath := filepath.Join(dir, base+"_measurements.json")
	if err := export.SaveJSON(jsonPath, c, cal); err != nil {
		return nil, err
	}
	paths := []string{csvPath, jsonPath}

	if c.PreRectangle != nil || c.PostRectangle != nil {
		vizPath, err := plot.SaveVisualization(jsonPath, c, plot.DefaultOptions())
		if err != nil {
			return paths, fmt.Errorf("visualization failed: %w", err)
		}
		paths = append(paths, vizPath)
	}

	s.Emit(EventSessionSaved, dir)
	return paths, nil
}

// Close releases the open document.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Document != nil {
		s.Document.Close()
		s.Document = nil
	}
}
