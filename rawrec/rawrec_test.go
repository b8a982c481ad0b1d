package rawrec_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/astrogo/fitsio"

	"github.com/rubin-sim/readoutsim/rawrec"
	"github.com/rubin-sim/readoutsim/readout"
)

func TestRecordWritesObservationFolder(t *testing.T) {
	root := t.TempDir()
	rec := rawrec.Recorder{Root: root, Enabled: true}
	out := &readout.RawOutput{
		DetName: "R22_S11",
		Primary: []fitsio.Card{{Name: "OBSID", Value: "5000007"}},
	}
	fn, err := rec.Record("5000007", out)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	want := filepath.Join(root, "5000007", "5000007_R22_S11.fits")
	if fn != want {
		t.Errorf("path %s, want %s", fn, want)
	}
	if _, err := os.Stat(fn); err != nil {
		t.Fatalf("recorded file missing: %v", err)
	}
}

func TestPrefix(t *testing.T) {
	rec := rawrec.Recorder{Root: "/data", Prefix: "raw_"}
	fn := rec.Path("5000007", "R22_S11")
	if filepath.Base(fn) != "raw_5000007_R22_S11.fits" {
		t.Errorf("unexpected filename %s", fn)
	}
}
