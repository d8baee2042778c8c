// Package export flattens a measurement collection to CSV and JSON files
// and reconstructs a collection from a previously saved JSON file.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"

	"pdf-measure/internal/calibration"
	"pdf-measure/internal/measure"
)

// Summary aggregates the particle displacement magnitudes of a session.
// Magnitudes are in millimeters when a calibration is in effect, otherwise
// in pixels (Unit says which).
type Summary struct {
	ParticleCount int     `json:"particle_count"`
	Unit          string  `json:"unit"`
	MeanMagnitude float64 `json:"mean_magnitude"`
	StdDev        float64 `json:"std_dev_magnitude"`
}

// Summarize computes displacement statistics for the collection's particles.
// Returns nil when there are no particles.
func Summarize(c *measure.Collection, cal *calibration.Calibration) *Summary {
	if len(c.Particles) == 0 {
		return nil
	}

	unit := "px"
	factor := 0.0
	if cal != nil && cal.MMPerPixel > 0 {
		unit = "mm"
		factor = cal.MMPerPixel
	}

	mags := make([]float64, len(c.Particles))
	for i, p := range c.Particles {
		if factor > 0 {
			mags[i] = p.DisplacementMagnitudeMM(factor)
		} else {
			mags[i] = p.DisplacementMagnitudePx()
		}
	}

	return &Summary{
		ParticleCount: len(mags),
		Unit:          unit,
		MeanMagnitude: stat.Mean(mags, nil),
		StdDev:        stat.StdDev(mags, nil),
	}
}

// sessionFile is the JSON structure of a saved measurement session.
type sessionFile struct {
	Metadata      metadata                        `json:"metadata"`
	PreRectangle  *measure.Rectangle              `json:"pre_rectangle,omitempty"`
	PostRectangle *measure.Rectangle              `json:"post_rectangle,omitempty"`
	Measurements  []*measure.Measurement          `json:"measurements"`
	Particles     []*measure.ParticleDisplacement `json:"particles"`
	Summary       *Summary                        `json:"summary,omitempty"`
}

type metadata struct {
	Exported    time.Time                `json:"exported"`
	Calibration *calibration.Calibration `json:"calibration,omitempty"`
}

// SaveJSON writes the collection and calibration to a JSON session file.
func SaveJSON(path string, c *measure.Collection, cal *calibration.Calibration) error {
	file := sessionFile{
		Metadata:      metadata{Exported: time.Now(), Calibration: cal},
		PreRectangle:  c.PreRectangle,
		PostRectangle: c.PostRectangle,
		Measurements:  c.Measurements,
		Particles:     c.Particles,
		Summary:       Summarize(c, cal),
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadJSON reconstructs a collection and its calibration from a session
// file. Id counters come back as max(existing id) + 1 for each list.
func LoadJSON(path string) (*measure.Collection, *calibration.Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var file sessionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parse session %s: %w", path, err)
	}

	c := measure.NewCollection()
	c.RestoreRectangle(file.PreRectangle)
	c.RestoreRectangle(file.PostRectangle)
	for _, m := range file.Measurements {
		c.RestoreMeasurement(m)
	}
	for _, p := range file.Particles {
		c.RestoreParticle(p)
	}

	return c, file.Metadata.Calibration, nil
}

// CSV column order for the entity sections. Rows come from each
// entity's ExportMap, so the columns stay in step with the flat
// export view.
var (
	measurementColumns = []string{
		"id", "label", "group", "page",
		"x1_px", "y1_px", "x2_px", "y2_px",
		"dx_px", "dy_px", "pixel_distance",
		"length_mm", "angle_deg", "timestamp", "notes",
	}
	particleColumns = []string{
		"id", "label",
		"pre_x_px", "pre_y_px", "post_x_px", "post_y_px",
		"pre_x_mm", "pre_y_mm", "post_x_mm", "post_y_mm",
		"pre_page", "post_page",
		"dx_px", "dy_px", "magnitude_px",
	}
)

// rowFrom renders one CSV row from a flat export map. Absent values
// (an uncalibrated length_mm) come out as "N/A".
func rowFrom(fields map[string]interface{}, columns []string) []string {
	row := make([]string, len(columns))
	for i, col := range columns {
		row[i] = formatCell(fields[col])
	}
	return row
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "N/A"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// SaveCSV writes the collection as a CSV file with a commented metadata
// header and one section per entity kind.
func SaveCSV(path string, c *measure.Collection, cal *calibration.Calibration) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if cal != nil {
		fmt.Fprintf(f, "# Calibration: %.6f mm/pixel (%s)\n", cal.MMPerPixel, cal.Source)
	}
	fmt.Fprintf(f, "# Exported: %s\n", time.Now().Format(time.RFC3339))

	w := csv.NewWriter(f)

	if c.PreRectangle != nil || c.PostRectangle != nil {
		fmt.Fprintln(f, "# === RECTANGLES ===")
		w.Write([]string{
			"group", "page",
			"bl_x_px", "bl_y_px", "tr_x_px", "tr_y_px",
			"width_px", "height_px", "width_mm", "height_mm",
		})
		for _, r := range []*measure.Rectangle{c.PreRectangle, c.PostRectangle} {
			if r == nil {
				continue
			}
			w.Write([]string{
				string(r.Group), fmt.Sprint(r.PageIndex),
				fmt.Sprintf("%.2f", r.BottomLeftPx.X), fmt.Sprintf("%.2f", r.BottomLeftPx.Y),
				fmt.Sprintf("%.2f", r.TopRightPx.X), fmt.Sprintf("%.2f", r.TopRightPx.Y),
				fmt.Sprintf("%.2f", r.WidthPx), fmt.Sprintf("%.2f", r.HeightPx),
				fmt.Sprintf("%.4f", r.WidthMM), fmt.Sprintf("%.4f", r.HeightMM),
			})
		}
		w.Flush()
	}

	if len(c.Measurements) > 0 {
		fmt.Fprintln(f, "# === MEASUREMENTS ===")
		w.Write(measurementColumns)
		for _, m := range c.Measurements {
			w.Write(rowFrom(m.ExportMap(), measurementColumns))
		}
		w.Flush()
	}

	if len(c.Particles) > 0 {
		fmt.Fprintln(f, "# === PARTICLE DISPLACEMENTS ===")
		w.Write(particleColumns)
		for _, p := range c.Particles {
			w.Write(rowFrom(p.ExportMap(), particleColumns))
		}
		w.Flush()
	}

	if s := Summarize(c, cal); s != nil {
		fmt.Fprintf(f, "# Summary: %d particles, mean displacement %.4f %s (stddev %.4f)\n",
			s.ParticleCount, s.MeanMagnitude, s.Unit, s.StdDev)
	}

	return w.Error()
}
