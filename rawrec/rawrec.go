// Package rawrec contains a recorder used to automatically save raw detector files to disk.
package rawrec

import (
	"fmt"
	"os"
	"path"

	"github.com/rubin-sim/readoutsim/readout"
)

// Recorder records raw detector files in per-observation subfolders.
// Record may be called from concurrent workers as long as the fields
// are not mutated during a run.
type Recorder struct {
	// Root is the root path
	Root string

	// Prefix is an optional prefix for the filenames
	Prefix string

	// Enabled is a flag unused by this struct that allows consumers to disable its use in their code
	Enabled bool
}

// Path returns the file path a detector's raw output will be written to.
func (r *Recorder) Path(obsID, detName string) string {
	fn := fmt.Sprintf("%s%s_%s.fits", r.Prefix, obsID, detName)
	return path.Join(r.Root, obsID, fn)
}

// Record writes one detector's raw output under the observation's
// folder and returns the file path.
func (r *Recorder) Record(obsID string, out *readout.RawOutput) (string, error) {
	fldr := path.Join(r.Root, obsID)
	if err := os.MkdirAll(fldr, 0777); err != nil {
		return "", err
	}
	fn := r.Path(obsID, out.DetName)
	if err := readout.WriteRawFile(fn, out); err != nil {
		return "", err
	}
	return fn, nil
}
