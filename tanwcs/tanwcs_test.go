package tanwcs_test

import (
	"math"
	"testing"

	"github.com/rubin-sim/readoutsim/camgeom"
	"github.com/rubin-sim/readoutsim/pix"
	"github.com/rubin-sim/readoutsim/tanwcs"
)

func testDetector() *camgeom.Detector {
	return &camgeom.Detector{
		Name:   "R22_S11",
		Bounds: pix.Bounds{Xmin: 1, Xmax: 4000, Ymin: 1, Ymax: 4000},
	}
}

func TestFactoryDeterminism(t *testing.T) {
	b := tanwcs.Builder{}
	f1, err := b.MakeFactory(15, -30, 25, 60000, "r", camgeom.LsstCam)
	if err != nil {
		t.Fatalf("MakeFactory: %v", err)
	}
	f2, _ := b.MakeFactory(15, -30, 25, 60000, "r", camgeom.LsstCam)
	w1, err := f1.GetWCS(testDetector())
	if err != nil {
		t.Fatalf("GetWCS: %v", err)
	}
	w2, _ := f2.GetWCS(testDetector())
	if w1.CD() != w2.CD() {
		t.Error("identical inputs produced different CD matrices")
	}
	x1, y1 := w1.RefPix()
	x2, y2 := w2.RefPix()
	if x1 != x2 || y1 != y2 {
		t.Error("identical inputs produced different reference pixels")
	}
}

func TestUnknownBand(t *testing.T) {
	_, err := tanwcs.Builder{}.MakeFactory(0, 0, 0, 60000, "q", camgeom.LsstCam)
	if err == nil {
		t.Fatal("expected error for band outside ugrizy")
	}
}

func TestRefPixIsDetectorCenter(t *testing.T) {
	f, _ := tanwcs.Builder{}.MakeFactory(0, 0, 0, 60000, "r", camgeom.LsstCam)
	w, err := f.GetWCS(testDetector())
	if err != nil {
		t.Fatalf("GetWCS: %v", err)
	}
	x, y := w.RefPix()
	if x != 2000.5 || y != 2000.5 {
		t.Errorf("reference pixel (%v, %v), want detector center (2000.5, 2000.5)", x, y)
	}
}

func TestToImageRoundTripAtReference(t *testing.T) {
	f, _ := tanwcs.Builder{}.MakeFactory(15, -30, 37, 60000, "i", camgeom.LsstCam)
	w, _ := f.GetWCS(testDetector())
	ra, dec := w.RefSky()
	x, y := w.ToImage(ra, dec)
	cx, cy := w.RefPix()
	if math.Abs(x-cx) > 1e-9 || math.Abs(y-cy) > 1e-9 {
		t.Errorf("reference sky position maps to (%v, %v), want (%v, %v)", x, y, cx, cy)
	}
}

func TestNorthDirectionMatchesRotator(t *testing.T) {
	// with zero rotator angle and the u band's zero optics offset, +y
	// points at Celestial North: stepping north on the sky moves up
	// the detector with no x component
	f, _ := tanwcs.Builder{}.MakeFactory(0, 0, 0, 60000, "u", camgeom.LsstCam)
	w, _ := f.GetWCS(testDetector())
	cx, cy := w.RefPix()
	x, y := w.ToImage(0, 0.01)
	if math.Abs(x-cx) > 1e-6 {
		t.Errorf("north step moved x by %v pixels with zero rotation", x-cx)
	}
	if y <= cy {
		t.Errorf("north step moved y by %v, expected positive", y-cy)
	}
}
