package crosstalk_test

import (
	"errors"
	"math"
	"testing"

	"github.com/rubin-sim/readoutsim/crosstalk"
	"github.com/rubin-sim/readoutsim/pix"
)

func sample(seed float64) *pix.Image {
	im := pix.NewImage(pix.Bounds{Xmin: 1, Xmax: 4, Ymin: 1, Ymax: 3})
	for i := range im.Data {
		im.Data[i] = seed + float64(i)*0.5
	}
	return im
}

func TestNilCoeffsIsIdentity(t *testing.T) {
	arrays := []*pix.Image{sample(1), sample(100)}
	out, err := crosstalk.Apply(arrays, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for i := range arrays {
		if out[i] != arrays[i] {
			t.Errorf("amp %d: nil coefficients must return the input array itself", i)
		}
	}
}

func TestTwoByTwoMixing(t *testing.T) {
	a := sample(1)
	b := sample(100)
	coeffs := [][]float64{{0, 0.01}, {0.02, 0}}
	out, err := crosstalk.Apply([]*pix.Image{a, b}, coeffs)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for k := range a.Data {
		wantA := a.Data[k] + 0.01*b.Data[k]
		wantB := b.Data[k] + 0.02*a.Data[k]
		if math.Abs(out[0].Data[k]-wantA) > 1e-15 {
			t.Fatalf("pixel %d of amp 0: %v, want %v", k, out[0].Data[k], wantA)
		}
		if math.Abs(out[1].Data[k]-wantB) > 1e-15 {
			t.Fatalf("pixel %d of amp 1: %v, want %v", k, out[1].Data[k], wantB)
		}
	}
	// mixing must read the original inputs, not partially mixed ones
	if a.Data[0] != 1 || b.Data[0] != 100 {
		t.Error("Apply mutated its inputs")
	}
}

func TestShapeMismatch(t *testing.T) {
	a := sample(1)
	small := pix.NewImage(pix.Bounds{Xmin: 1, Xmax: 2, Ymin: 1, Ymax: 2})
	coeffs := [][]float64{{0, 0}, {0, 0}}
	_, err := crosstalk.Apply([]*pix.Image{a, small}, coeffs)
	var shapeErr *pix.ShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected ShapeError for mismatched arrays, got %v", err)
	}

	_, err = crosstalk.Apply([]*pix.Image{a, sample(2)}, [][]float64{{0, 0}})
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected ShapeError for non-square matrix, got %v", err)
	}

	_, err = crosstalk.Apply([]*pix.Image{a, sample(2)}, [][]float64{{0, 0}, {0}})
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected ShapeError for ragged matrix, got %v", err)
	}
}
