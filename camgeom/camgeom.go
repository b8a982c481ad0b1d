/*Package camgeom describes the electronic and pixel geometry of the camera.

A Camera is an ordered set of Detectors; a Detector is an ordered set of
Amps (amplifier segments) plus detector-level properties such as the
intra-detector crosstalk matrix.  Everything here is a fully populated
value struct copied out of an external geometry Provider at load time;
once built, records are never mutated in place.  Layered overrides are
expressed with Merge, which returns a new snapshot.
*/
package camgeom

import (
	"fmt"

	"github.com/rubin-sim/readoutsim/pix"
)

// DefaultBiasLevel is the bias level (ADU) assumed when the geometry
// source does not carry one; camera geometry descriptions typically don't.
const DefaultBiasLevel = 1000.0

// ConfigurationError indicates an unknown or unsupported camera
// configuration, such as a family name outside the supported set.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Msg
}

// Family identifies a supported camera family.  The family selects the
// header-keyword convention used when assembling raw output.
type Family int

const (
	// LsstCam is the full LSST camera.
	LsstCam Family = iota
	// LsstComCam is the commissioning camera.
	LsstComCam
	// LsstCamImSim is the simulation variant of LsstCam, which uses a
	// legacy keyword convention and rotation-angle sign.
	LsstCamImSim
)

var familyNames = map[Family]string{
	LsstCam:      "LsstCam",
	LsstComCam:   "LsstComCam",
	LsstCamImSim: "LsstCamImSim",
}

func (f Family) String() string {
	if s, ok := familyNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// ParseFamily converts a camera family name to its enum value.  Unknown
// names return a *ConfigurationError.
func ParseFamily(s string) (Family, error) {
	for f, name := range familyNames {
		if s == name {
			return f, nil
		}
	}
	return 0, &ConfigurationError{Msg: fmt.Sprintf("unknown camera family %q", s)}
}

// Amp holds the pixel geometry and electronic readout properties of one
// amplifier segment.
type Amp struct {
	// Name is the amplifier name, unique within a detector, e.g. "C10".
	Name string

	// Bounds is the segment's light-sensitive region in detector
	// coordinates.
	Bounds pix.Bounds

	// RawBounds is the full raw frame including prescan and overscan,
	// in amp-local coordinates.
	RawBounds pix.Bounds

	// RawDataBounds is the sub-rectangle of RawBounds holding the
	// visible-pixel data.
	RawDataBounds pix.Bounds

	// RawFlipX and RawFlipY indicate that the raw readout order is
	// reversed relative to detector orientation along each axis.
	RawFlipX bool
	RawFlipY bool

	// Gain converts electrons to ADU (e-/ADU).
	Gain float64

	// ReadNoise is the amplifier read noise in electrons.
	ReadNoise float64

	// BiasLevel is the bias offset in ADU.
	BiasLevel float64
}

// Detector holds the amplifier segments of one CCD in readout-channel
// order, along with detector-level properties.
type Detector struct {
	// Name is the detector name in the focal plane, e.g. "R22_S11".
	Name string

	// Bounds covers the union of the amplifier visible bounds.
	Bounds pix.Bounds

	// Amps lists the amplifier segments; order is the physical
	// readout-channel order and is significant.
	Amps []Amp

	// Crosstalk is the intra-detector crosstalk matrix; entry [i][j] is
	// the fraction of amp j's signal appearing in amp i.  nil means no
	// crosstalk.
	Crosstalk [][]float64
}

// Amp returns the amplifier with the given name, or nil.
func (d *Detector) Amp(name string) *Amp {
	for i := range d.Amps {
		if d.Amps[i].Name == name {
			return &d.Amps[i]
		}
	}
	return nil
}

// Camera is an ordered set of detectors keyed by name.
type Camera struct {
	// Family is the camera family this geometry describes.
	Family Family

	// Detectors lists the detectors in focal-plane order.
	Detectors []Detector
}

// Detector returns the detector with the given name, or nil.
func (c *Camera) Detector(name string) *Detector {
	for i := range c.Detectors {
		if c.Detectors[i].Name == name {
			return &c.Detectors[i]
		}
	}
	return nil
}

// DetectorNames returns the detector names in focal-plane order.
func (c *Camera) DetectorNames() []string {
	names := make([]string, len(c.Detectors))
	for i := range c.Detectors {
		names[i] = c.Detectors[i].Name
	}
	return names
}

// RawDetector is the plain-data geometry handle an external Provider
// exposes for one detector.
type RawDetector struct {
	Name      string
	Amps      []RawAmp
	Crosstalk [][]float64
}

// RawAmp is the plain-data geometry handle for one amplifier segment.
type RawAmp struct {
	Name          string
	Bounds        pix.Bounds
	RawBounds     pix.Bounds
	RawDataBounds pix.Bounds
	RawFlipX      bool
	RawFlipY      bool
	Gain          float64
	ReadNoise     float64
}

// Provider is the external source of camera geometry.
type Provider interface {
	// DetectorNames lists the detectors the provider knows, in
	// focal-plane order.
	DetectorNames() []string

	// Detector returns the raw geometry handle for one detector.
	Detector(name string) (*RawDetector, error)
}

// Load copies the full geometry of family out of the provider into an
// immutable Camera snapshot.  Amplifier records are fully populated at
// load time; nothing delegates back to the provider afterwards.
func Load(family Family, p Provider) (*Camera, error) {
	names := p.DetectorNames()
	cam := &Camera{Family: family, Detectors: make([]Detector, 0, len(names))}
	for _, name := range names {
		raw, err := p.Detector(name)
		if err != nil {
			return nil, fmt.Errorf("loading detector %s: %w", name, err)
		}
		det, err := buildDetector(raw)
		if err != nil {
			return nil, err
		}
		cam.Detectors = append(cam.Detectors, *det)
	}
	return cam, nil
}

func buildDetector(raw *RawDetector) (*Detector, error) {
	if len(raw.Amps) == 0 {
		return nil, &ConfigurationError{Msg: fmt.Sprintf("detector %s has no amplifiers", raw.Name)}
	}
	if raw.Crosstalk != nil && len(raw.Crosstalk) != len(raw.Amps) {
		return nil, &ConfigurationError{
			Msg: fmt.Sprintf("detector %s crosstalk matrix is %dx? for %d amps",
				raw.Name, len(raw.Crosstalk), len(raw.Amps)),
		}
	}
	det := &Detector{Name: raw.Name}
	for i, ra := range raw.Amps {
		if ra.Gain <= 0 {
			return nil, &ConfigurationError{
				Msg: fmt.Sprintf("amp %s_%s has non-positive gain %g", raw.Name, ra.Name, ra.Gain),
			}
		}
		if !ra.RawBounds.Contains(ra.RawDataBounds) {
			return nil, &ConfigurationError{
				Msg: fmt.Sprintf("amp %s_%s raw data bounds %s outside raw bounds %s",
					raw.Name, ra.Name, ra.RawDataBounds, ra.RawBounds),
			}
		}
		for j := range det.Amps {
			if det.Amps[j].Bounds.Overlaps(ra.Bounds) {
				return nil, &ConfigurationError{
					Msg: fmt.Sprintf("amp %s_%s bounds %s overlap amp %s bounds %s",
						raw.Name, ra.Name, ra.Bounds, det.Amps[j].Name, det.Amps[j].Bounds),
				}
			}
		}
		det.Amps = append(det.Amps, Amp{
			Name:          ra.Name,
			Bounds:        ra.Bounds,
			RawBounds:     ra.RawBounds,
			RawDataBounds: ra.RawDataBounds,
			RawFlipX:      ra.RawFlipX,
			RawFlipY:      ra.RawFlipY,
			Gain:          ra.Gain,
			ReadNoise:     ra.ReadNoise,
			BiasLevel:     DefaultBiasLevel,
		})
		if i == 0 {
			det.Bounds = ra.Bounds
		} else {
			det.Bounds = det.Bounds.Union(ra.Bounds)
		}
	}
	if raw.Crosstalk != nil {
		det.Crosstalk = make([][]float64, len(raw.Crosstalk))
		for i, row := range raw.Crosstalk {
			if len(row) != len(raw.Amps) {
				return nil, &ConfigurationError{
					Msg: fmt.Sprintf("detector %s crosstalk row %d has %d entries for %d amps",
						raw.Name, i, len(row), len(raw.Amps)),
				}
			}
			det.Crosstalk[i] = append([]float64(nil), row...)
		}
	}
	return det, nil
}

// Merge layers override onto base and returns a new snapshot.  Detectors
// and amps present in override replace or extend those in base at the
// amplifier level; records only in base are carried through untouched.
// Neither input is modified.
func Merge(base, override *Camera) *Camera {
	out := &Camera{Family: base.Family}
	seen := make(map[string]bool)
	for _, det := range base.Detectors {
		if od := override.Detector(det.Name); od != nil {
			out.Detectors = append(out.Detectors, mergeDetector(det, *od))
		} else {
			out.Detectors = append(out.Detectors, copyDetector(det))
		}
		seen[det.Name] = true
	}
	for _, det := range override.Detectors {
		if !seen[det.Name] {
			out.Detectors = append(out.Detectors, copyDetector(det))
		}
	}
	return out
}

func mergeDetector(base, override Detector) Detector {
	out := copyDetector(base)
	if override.Crosstalk != nil {
		out.Crosstalk = copyMatrix(override.Crosstalk)
	}
	for _, amp := range override.Amps {
		if existing := out.Amp(amp.Name); existing != nil {
			*existing = amp
		} else {
			out.Amps = append(out.Amps, amp)
		}
	}
	return out
}

func copyDetector(d Detector) Detector {
	out := d
	out.Amps = append([]Amp(nil), d.Amps...)
	out.Crosstalk = copyMatrix(d.Crosstalk)
	return out
}

func copyMatrix(m [][]float64) [][]float64 {
	if m == nil {
		return nil
	}
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
