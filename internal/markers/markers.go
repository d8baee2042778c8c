// Package markers detects candidate particle markers in rendered page
// images. Particles show up as small dark blobs against the lighter
// fiber background, so the pipeline thresholds the inverted grayscale
// image and keeps compact contours within a plausible size range.
package markers

import (
	"fmt"
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"

	"pdf-measure/pkg/geometry"
)

// Params controls blob detection.
type Params struct {
	// ThresholdValue is the grayscale cutoff (0-255). Zero selects
	// Otsu's method, which adapts to scan exposure.
	ThresholdValue int

	// Size constraints in pixels of contour area.
	MinAreaPx float64
	MaxAreaPx float64

	// CircularityMin rejects elongated artifacts like fiber edges.
	CircularityMin float64

	// BlurKernel is the Gaussian kernel size used before thresholding.
	// Must be odd.
	BlurKernel int

	// MaxCandidates caps the result, largest blobs first.
	MaxCandidates int
}

// DefaultParams returns parameters tuned for 150 DPI fiber scans.
func DefaultParams() Params {
	return Params{
		ThresholdValue: 0,
		MinAreaPx:      12,
		MaxAreaPx:      4000,
		CircularityMin: 0.35,
		BlurKernel:     5,
		MaxCandidates:  50,
	}
}

// Candidate is a detected blob, in full-image pixel coordinates.
type Candidate struct {
	Center      geometry.Point2D
	AreaPx      float64
	Circularity float64
}

// DetectCandidates finds particle-like blobs inside region. Pass a
// zero-size region to scan the whole image. Centers are returned in
// the source image's coordinate space, largest area first.
func DetectCandidates(srcImg image.Image, region geometry.Rect, params Params) ([]Candidate, error) {
	mat, err := imageToMat(srcImg)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	// Clamp the search region to image bounds.
	x1 := clamp(int(region.X), 0, mat.Cols()-1)
	y1 := clamp(int(region.Y), 0, mat.Rows()-1)
	x2 := clamp(int(region.X+region.Width), x1+1, mat.Cols())
	y2 := clamp(int(region.Y+region.Height), y1+1, mat.Rows())
	if region.Width <= 0 || region.Height <= 0 {
		x1, y1, x2, y2 = 0, 0, mat.Cols(), mat.Rows()
	}

	roi := mat.Region(image.Rect(x1, y1, x2, y2))
	defer roi.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(roi, &gray, gocv.ColorBGRToGray)

	// Light blur to suppress scan grain without merging nearby blobs.
	k := params.BlurKernel
	if k < 3 {
		k = 3
	}
	if k%2 == 0 {
		k++
	}
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{k, k}, 0, 0, gocv.BorderDefault)

	// Dark blobs become foreground via inverted threshold.
	mask := gocv.NewMat()
	defer mask.Close()
	if params.ThresholdValue <= 0 {
		gocv.Threshold(blurred, &mask, 0, 255, gocv.ThresholdBinaryInv|gocv.ThresholdOtsu)
	} else {
		gocv.Threshold(blurred, &mask, float32(params.ThresholdValue), 255, gocv.ThresholdBinaryInv)
	}

	// Open to drop single-pixel noise, close to solidify blob interiors.
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{3, 3})
	defer kernel.Close()
	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, kernel)
	gocv.MorphologyEx(mask, &mask, gocv.MorphClose, kernel)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	candidates := make([]Candidate, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)

		area := gocv.ContourArea(contour)
		if area < params.MinAreaPx || area > params.MaxAreaPx {
			continue
		}

		perimeter := gocv.ArcLength(contour, true)
		if perimeter <= 0 {
			continue
		}
		circularity := 4 * math.Pi * area / (perimeter * perimeter)
		if circularity < params.CircularityMin {
			continue
		}

		cx, cy, _ := gocv.MinEnclosingCircle(contour)
		candidates = append(candidates, Candidate{
			Center:      geometry.NewPoint2D(float64(x1)+float64(cx), float64(y1)+float64(cy)),
			AreaPx:      area,
			Circularity: circularity,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].AreaPx > candidates[j].AreaPx
	})

	if params.MaxCandidates > 0 && len(candidates) > params.MaxCandidates {
		candidates = candidates[:params.MaxCandidates]
	}

	return candidates, nil
}

// NearestCandidate returns the candidate closest to p, or nil when the
// slice is empty or nothing lies within maxDistPx.
func NearestCandidate(candidates []Candidate, p geometry.Point2D, maxDistPx float64) *Candidate {
	var best *Candidate
	bestDist := maxDistPx
	for i := range candidates {
		d := candidates[i].Center.Distance(p)
		if d <= bestDist {
			best = &candidates[i]
			bestDist = d
		}
	}
	return best
}

func imageToMat(srcImg image.Image) (gocv.Mat, error) {
	bounds := srcImg.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return gocv.Mat{}, fmt.Errorf("empty image")
	}

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := srcImg.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// Convert from 16-bit to 8-bit and BGR order for OpenCV
			mat.SetUCharAt(y, x*3+0, uint8(b>>8))
			mat.SetUCharAt(y, x*3+1, uint8(g>>8))
			mat.SetUCharAt(y, x*3+2, uint8(r>>8))
		}
	}

	return mat, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
