package pix_test

import (
	"fmt"
	"testing"

	"github.com/rubin-sim/readoutsim/pix"
)

func ExampleBounds_String() {
	b := pix.Bounds{Xmin: 1, Xmax: 512, Ymin: 1, Ymax: 2002}
	fmt.Println(b)
	// Output: [1:512,1:2002]
}

func ramp(b pix.Bounds) *pix.Image {
	im := pix.NewImage(b)
	for i := range im.Data {
		im.Data[i] = float64(i)
	}
	return im
}

func TestBoundsDims(t *testing.T) {
	b := pix.Bounds{Xmin: 3, Xmax: 12, Ymin: 1, Ymax: 5}
	if b.Width() != 10 {
		t.Errorf("expected width 10, got %d", b.Width())
	}
	if b.Height() != 5 {
		t.Errorf("expected height 5, got %d", b.Height())
	}
	if b.Area() != 50 {
		t.Errorf("expected area 50, got %d", b.Area())
	}
}

func TestBoundsOverlaps(t *testing.T) {
	a := pix.Bounds{Xmin: 1, Xmax: 10, Ymin: 1, Ymax: 10}
	cases := []struct {
		o    pix.Bounds
		want bool
	}{
		{pix.Bounds{Xmin: 11, Xmax: 20, Ymin: 1, Ymax: 10}, false},
		{pix.Bounds{Xmin: 10, Xmax: 19, Ymin: 1, Ymax: 10}, true},
		{pix.Bounds{Xmin: 1, Xmax: 10, Ymin: 11, Ymax: 20}, false},
		{pix.Bounds{Xmin: 5, Xmax: 6, Ymin: 5, Ymax: 6}, true},
	}
	for _, tc := range cases {
		if got := a.Overlaps(tc.o); got != tc.want {
			t.Errorf("%s overlaps %s = %v, want %v", a, tc.o, got, tc.want)
		}
		if got := tc.o.Overlaps(a); got != tc.want {
			t.Errorf("overlap is not symmetric for %s and %s", a, tc.o)
		}
	}
}

func TestSubImageCopiesRegion(t *testing.T) {
	im := ramp(pix.Bounds{Xmin: 1, Xmax: 4, Ymin: 1, Ymax: 4})
	sub, err := im.SubImage(pix.Bounds{Xmin: 2, Xmax: 3, Ymin: 2, Ymax: 3})
	if err != nil {
		t.Fatalf("SubImage: %v", err)
	}
	want := []float64{5, 6, 9, 10}
	for i, v := range want {
		if sub.Data[i] != v {
			t.Errorf("pixel %d: expected %v got %v", i, v, sub.Data[i])
		}
	}
	// mutating the copy must not touch the parent
	sub.Data[0] = -1
	if im.At(2, 2) != 5 {
		t.Error("SubImage aliases parent storage")
	}
}

func TestSubImageOutOfBounds(t *testing.T) {
	im := ramp(pix.Bounds{Xmin: 1, Xmax: 4, Ymin: 1, Ymax: 4})
	_, err := im.SubImage(pix.Bounds{Xmin: 3, Xmax: 6, Ymin: 1, Ymax: 2})
	if err == nil {
		t.Fatal("expected error for out of bounds region")
	}
}

func TestFlipInvolution(t *testing.T) {
	im := ramp(pix.Bounds{Xmin: 1, Xmax: 5, Ymin: 1, Ymax: 3})
	back := im.FlipX().FlipY().FlipY().FlipX()
	for i := range im.Data {
		if im.Data[i] != back.Data[i] {
			t.Fatalf("pixel %d changed after double flip: %v != %v", i, back.Data[i], im.Data[i])
		}
	}
}

func TestFlipXReversesColumns(t *testing.T) {
	im := ramp(pix.Bounds{Xmin: 1, Xmax: 3, Ymin: 1, Ymax: 1})
	f := im.FlipX()
	want := []float64{2, 1, 0}
	for i, v := range want {
		if f.Data[i] != v {
			t.Errorf("column %d: expected %v got %v", i, v, f.Data[i])
		}
	}
}

func TestAddIntoOffsetRegion(t *testing.T) {
	raw := pix.NewImage(pix.Bounds{Xmin: 1, Xmax: 6, Ymin: 1, Ymax: 4})
	data := ramp(pix.Bounds{Xmin: 1, Xmax: 2, Ymin: 1, Ymax: 2})
	region := pix.Bounds{Xmin: 4, Xmax: 5, Ymin: 2, Ymax: 3}
	if err := raw.AddInto(data, region); err != nil {
		t.Fatalf("AddInto: %v", err)
	}
	if raw.At(4, 2) != 0 || raw.At(5, 2) != 1 || raw.At(4, 3) != 2 || raw.At(5, 3) != 3 {
		t.Error("embedded data landed in the wrong place")
	}
	if raw.At(1, 1) != 0 || raw.At(6, 4) != 0 {
		t.Error("pixels outside the region were modified")
	}
}

func TestAddIntoShapeMismatch(t *testing.T) {
	raw := pix.NewImage(pix.Bounds{Xmin: 1, Xmax: 6, Ymin: 1, Ymax: 4})
	data := pix.NewImage(pix.Bounds{Xmin: 1, Xmax: 3, Ymin: 1, Ymax: 2})
	err := raw.AddInto(data, pix.Bounds{Xmin: 1, Xmax: 2, Ymin: 1, Ymax: 2})
	if err == nil {
		t.Fatal("expected shape error")
	}
}
