package cte_test

import (
	"math"
	"sync"
	"testing"

	"github.com/rubin-sim/readoutsim/cte"
	"github.com/rubin-sim/readoutsim/pix"
)

func TestZeroCTIIsIdentity(t *testing.T) {
	for _, npix := range []int{1, 4, 33} {
		op := cte.Build(npix, 0, 0)
		for i := 0; i < npix; i++ {
			for j := 0; j < npix; j++ {
				want := 0.0
				if i == j {
					want = 1.0
				}
				if op.At(i, j) != want {
					t.Fatalf("npix=%d: entry (%d,%d) = %v, want %v", npix, i, j, op.At(i, j), want)
				}
			}
		}
		q := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}[:min(npix, 9)]
		orig := append([]float64(nil), q...)
		if npix == len(q) {
			if err := op.Apply(q); err != nil {
				t.Fatalf("Apply: %v", err)
			}
			for i := range q {
				if q[i] != orig[i] {
					t.Fatalf("identity operator changed charge vector at %d", i)
				}
			}
		}
	}
}

func TestRowSumsConserveCharge(t *testing.T) {
	const npix = 4
	const cti = 1e-4
	// With maxTransfers covering the full row width, each row sums to
	// exactly 1-cti: the one fraction cti lost on the final transfer
	// into the sense node never lands in another pixel.  Within a
	// tolerance of order cti the rows sum to 1.
	op := cte.Build(npix, cti, npix)
	for i := 0; i < npix; i++ {
		sum := 0.0
		for j := 0; j < npix; j++ {
			sum += op.At(i, j)
		}
		if math.Abs(sum-(1-cti)) > 1e-12 {
			t.Errorf("row %d sums to %v, want %v", i, sum, 1-cti)
		}
		if math.Abs(sum-1) > 2*cti {
			t.Errorf("row %d sums to %v, not within %v of 1", i, sum, 2*cti)
		}
	}

	// with truncation, trailed charge is dropped: row sums can only
	// shrink and never exceed 1
	opTrunc := cte.Build(npix, cti, 1)
	for i := 0; i < npix; i++ {
		sum, full := 0.0, 0.0
		for j := 0; j < npix; j++ {
			sum += opTrunc.At(i, j)
			full += op.At(i, j)
		}
		if sum > full+1e-15 || sum > 1 {
			t.Errorf("truncated row %d sums to %v, exceeds untruncated %v", i, sum, full)
		}
	}

	// Charge leaving the first pixel has the whole array ahead of it:
	// its column sums to 1 - cti^npix, unity at double precision.
	colSum := 0.0
	for i := 0; i < npix; i++ {
		colSum += op.At(i, 0)
	}
	if math.Abs(colSum-1) > 1e-12 {
		t.Errorf("first column sums to %v, want 1 (conservation)", colSum)
	}
}

func TestDiagonalMatchesTransferCount(t *testing.T) {
	const cti = 1e-3
	op := cte.Build(6, cti, 0)
	for i := 0; i < 6; i++ {
		want := math.Pow(1-cti, float64(i+1))
		if math.Abs(op.At(i, i)-want) > 1e-15 {
			t.Errorf("diagonal %d: %v, want %v", i, op.At(i, i), want)
		}
	}
	// first trailing entry: C(i, 1) * (1-cti)^i * cti
	i := 3
	want := 3 * math.Pow(1-cti, 3) * cti
	if math.Abs(op.At(i, i-1)-want) > 1e-15 {
		t.Errorf("trail entry (3,2): %v, want %v", op.At(i, i-1), want)
	}
	// entries above the diagonal stay zero: charge only trails behind
	if op.At(2, 4) != 0 {
		t.Error("found charge ahead of the transfer direction")
	}
}

func TestApplyColumnsAndRows(t *testing.T) {
	const cti = 0.01
	im := pix.NewImage(pix.Bounds{Xmin: 1, Xmax: 3, Ymin: 1, Ymax: 4})
	im.Fill(100)
	op := cte.Build(4, cti, 0)
	if err := op.ApplyColumns(im); err != nil {
		t.Fatalf("ApplyColumns: %v", err)
	}
	// first row sees exactly one transfer: 100*(1-cti)
	if math.Abs(im.At(1, 1)-100*(1-cti)) > 1e-9 {
		t.Errorf("first row after parallel transfer: %v", im.At(1, 1))
	}
	// every column is transformed identically
	if im.At(1, 3) != im.At(2, 3) || im.At(2, 3) != im.At(3, 3) {
		t.Error("columns diverged under a column-wise operator")
	}

	if err := op.ApplyRows(im); err == nil {
		t.Fatal("expected shape error applying length-4 operator to width-3 rows")
	}
	op3 := cte.Build(3, cti, 0)
	if err := op3.ApplyRows(im); err != nil {
		t.Fatalf("ApplyRows: %v", err)
	}
}

func TestCacheSkipsZeroCTI(t *testing.T) {
	c := cte.NewCache()
	if op := c.Get(128, 0); op != nil {
		t.Fatal("cti=0 must not materialize an operator")
	}
}

func TestCacheSharesOperators(t *testing.T) {
	c := cte.NewCache()
	var wg sync.WaitGroup
	ops := make([]*cte.Operator, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ops[i] = c.Get(64, 1e-6)
		}(i)
	}
	wg.Wait()
	for i := 1; i < 8; i++ {
		if ops[i] != ops[0] {
			t.Fatal("concurrent gets built distinct operators")
		}
	}
	if other := c.Get(64, 2e-6); other == ops[0] {
		t.Fatal("distinct cti values must not share an operator")
	}
}
