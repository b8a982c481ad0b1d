/*Package cte models charge-transfer inefficiency during readout clocking.

Each pixel-to-pixel transfer leaves behind a fraction cti of a pixel's
charge.  After the full clocking sequence the apparent charge q is
related to the true charge q0 by a linear operator, q = M q0, where the
entries of M follow from counting how many of a pixel's transfer
opportunities lost charge.  The operator is applied once per column for
parallel clocking and once per row for serial clocking.
*/
package cte

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/combin"

	"github.com/rubin-sim/readoutsim/pix"
)

// DefaultMaxTransfers caps how many pixels of trailed charge are
// tracked behind each pixel; contributions beyond the cap are negligible
// for realistic cti values.
const DefaultMaxTransfers = 20

// Operator is the CTE operator for one axis length.  It is immutable
// once built and safe for concurrent use.
type Operator struct {
	npix int
	m    *mat.Dense
}

// Build constructs the npix x npix CTE operator for the given charge
// transfer inefficiency.  maxTransfers bounds the trailing-charge model;
// values <= 0 select DefaultMaxTransfers.
//
// The 0-indexed pixel i undergoes i+1 transfers before reaching the
// sense node, so the diagonal is (1-cti)^(i+1).  Off the diagonal, the
// charge that started in pixel j and is measured in pixel i (j < i) had
// to lose out in exactly i-j of the i available transfer opportunities
// and survive the remaining j+1, giving
//
//	M[i][j] = C(i, i-j) * (1-cti)^(j+1) * cti^(i-j)
func Build(npix int, cti float64, maxTransfers int) *Operator {
	if maxTransfers <= 0 {
		maxTransfers = DefaultMaxTransfers
	}
	m := mat.NewDense(npix, npix, nil)
	for i := 0; i < npix; i++ {
		m.Set(i, i, math.Pow(1-cti, float64(i+1)))
		jmin := i - maxTransfers
		if jmin < 0 {
			jmin = 0
		}
		for j := jmin; j < i; j++ {
			v := combin.GeneralizedBinomial(float64(i), float64(i-j)) *
				math.Pow(1-cti, float64(j+1)) *
				math.Pow(cti, float64(i-j))
			m.Set(i, j, v)
		}
	}
	return &Operator{npix: npix, m: m}
}

// Len returns the axis length the operator applies to.
func (op *Operator) Len() int { return op.npix }

// At returns entry (i, j) of the operator matrix.
func (op *Operator) At(i, j int) float64 { return op.m.At(i, j) }

// Apply multiplies the operator into q in place.
func (op *Operator) Apply(q []float64) error {
	if len(q) != op.npix {
		return &pix.ShapeError{Op: "cte.Apply", Want: itoa(op.npix), Got: itoa(len(q))}
	}
	in := mat.NewVecDense(op.npix, q)
	var out mat.VecDense
	out.MulVec(op.m, in)
	copy(q, out.RawVector().Data)
	return nil
}

// ApplyColumns applies the operator to every column of im in place,
// modeling parallel (vertical) transfer.  The operator length must equal
// the image height.
func (op *Operator) ApplyColumns(im *pix.Image) error {
	h, w := im.Height(), im.Width()
	if h != op.npix {
		return &pix.ShapeError{Op: "cte.ApplyColumns", Want: itoa(op.npix), Got: itoa(h)}
	}
	col := make([]float64, h)
	var out mat.VecDense
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = im.Data[y*w+x]
		}
		out.MulVec(op.m, mat.NewVecDense(h, col))
		for y := 0; y < h; y++ {
			im.Data[y*w+x] = out.AtVec(y)
		}
	}
	return nil
}

// ApplyRows applies the operator to every row of im in place, modeling
// serial (horizontal) transfer.  The operator length must equal the
// image width.
func (op *Operator) ApplyRows(im *pix.Image) error {
	h, w := im.Height(), im.Width()
	if w != op.npix {
		return &pix.ShapeError{Op: "cte.ApplyRows", Want: itoa(op.npix), Got: itoa(w)}
	}
	var out mat.VecDense
	for y := 0; y < h; y++ {
		row := im.Data[y*w : (y+1)*w]
		out.MulVec(op.m, mat.NewVecDense(w, row))
		copy(row, out.RawVector().Data)
	}
	return nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
