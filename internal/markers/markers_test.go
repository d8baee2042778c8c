package markers

import (
	"testing"

	"pdf-measure/pkg/geometry"
)

func TestNearestCandidate(t *testing.T) {
	candidates := []Candidate{
		{Center: geometry.NewPoint2D(100, 100), AreaPx: 40},
		{Center: geometry.NewPoint2D(120, 100), AreaPx: 30},
		{Center: geometry.NewPoint2D(500, 500), AreaPx: 90},
	}

	tests := []struct {
		name    string
		point   geometry.Point2D
		maxDist float64
		want    *geometry.Point2D
	}{
		{
			name:    "closest of two nearby blobs",
			point:   geometry.NewPoint2D(118, 102),
			maxDist: 30,
			want:    &candidates[1].Center,
		},
		{
			name:    "nothing within radius",
			point:   geometry.NewPoint2D(300, 300),
			maxDist: 20,
			want:    nil,
		},
		{
			name:    "distant blob still found with large radius",
			point:   geometry.NewPoint2D(480, 480),
			maxDist: 100,
			want:    &candidates[2].Center,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NearestCandidate(candidates, tt.point, tt.maxDist)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("expected no candidate, got center %v", got.Center)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected candidate at %v, got nil", *tt.want)
			}
			if got.Center != *tt.want {
				t.Errorf("wrong candidate: got center %v, want %v", got.Center, *tt.want)
			}
		})
	}
}

func TestNearestCandidateEmpty(t *testing.T) {
	if got := NearestCandidate(nil, geometry.NewPoint2D(0, 0), 10); got != nil {
		t.Errorf("expected nil for empty slice, got %v", got)
	}
}
