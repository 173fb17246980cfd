package normalize_test

import (
	"math"
	"testing"

	"github.com/kohtzk/mediaplayer-go/internal/normalize"
)

func TestBoundaryExactness(t *testing.T) {
	cases := []struct {
		name           string
		srcMin, srcMax float64
		tgtMin, tgtMax float64
	}{
		{"volumeUp", 0, 100, 0.0, 1.0},
		{"volumeDown", 0.0, 1.0, 0, 100},
		{"delta", -100, 100, -1.0, 1.0},
		{"negative", -50, -10, 3, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := normalize.New(tc.srcMin, tc.srcMax, tc.tgtMin, tc.tgtMax)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if got := n.Normalize(tc.srcMin); got != tc.tgtMin {
				t.Errorf("Normalize(min) = %v, want %v", got, tc.tgtMin)
			}
			if got := n.Normalize(tc.srcMax); got != tc.tgtMax {
				t.Errorf("Normalize(max) = %v, want %v", got, tc.tgtMax)
			}
		})
	}
}

func TestMidpoint(t *testing.T) {
	n, err := normalize.New(0, 100, 0.0, 1.0)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := n.Normalize(50); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Normalize(50) = %v, want 0.5", got)
	}
}

func TestNoClamping(t *testing.T) {
	n, err := normalize.New(0, 100, 0.0, 1.0)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := n.Normalize(150); math.Abs(got-1.5) > 1e-9 {
		t.Errorf("Normalize(150) = %v, want 1.5 (no clamping)", got)
	}
}

func TestConstructionFailures(t *testing.T) {
	cases := []struct {
		name           string
		srcMin, srcMax float64
		tgtMin, tgtMax float64
		want           error
	}{
		{"emptySource", 5, 5, 0, 1, normalize.ErrEmptySourceRange},
		{"invertedSource", 100, 0, 0, 1, normalize.ErrInvertedRange},
		{"invertedTarget", 0, 100, 1, 0, normalize.ErrInvertedRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := normalize.New(tc.srcMin, tc.srcMax, tc.tgtMin, tc.tgtMax); err != tc.want {
				t.Errorf("New() error = %v, want %v", err, tc.want)
			}
		})
	}
}
