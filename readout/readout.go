/*Package readout converts a noiseless electron image of one detector
into the multi-segment raw output a real camera would produce.

The transform chain is strictly ordered: saturation bleed, dark current,
segmentation with gain and readout flips, crosstalk, embedding into the
prescan/overscan-inclusive raw frame, charge-transfer inefficiency, and
finally bias plus read noise.  Each stage consumes the whole output of
the previous one.  A run either yields the full set of amplifier frames
with their headers or fails with no partial output.

Runs over distinct detectors are independent and may proceed in
parallel; the geometry, CTE-operator, and rotation-angle caches they
share are safe for concurrent reads, and the random source is supplied
per run so results are reproducible from a seed.
*/
package readout

import (
	"fmt"
	"log"
	"strings"

	"github.com/astrogo/fitsio"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rubin-sim/readoutsim/camgeom"
	"github.com/rubin-sim/readoutsim/crosstalk"
	"github.com/rubin-sim/readoutsim/cte"
	"github.com/rubin-sim/readoutsim/pix"
)

// Params are the scalar readout parameters of one detector run.
type Params struct {
	// ExpTime is the exposure time in seconds.
	ExpTime float64

	// ReadoutTime is the sensor readout time in seconds; dark current
	// accumulates over ExpTime+ReadoutTime.
	ReadoutTime float64

	// DarkCurrent is the dark current rate in e-/s.
	DarkCurrent float64

	// BiasLevel, when nonzero, overrides the per-amp bias level (ADU).
	BiasLevel float64

	// SCTI and PCTI are the serial and parallel charge-transfer
	// inefficiencies.  Zero disables the corresponding stage.
	SCTI float64
	PCTI float64

	// FullWell is the saturation level in electrons handed to the
	// bleed transform.
	FullWell float64
}

// DefaultParams returns the documented defaults: 30 s exposure, 2 s
// readout, 0.02 e-/s dark current, per-amp bias, 1e-6 CTI on both axes,
// and a 1e5 e- full well.
func DefaultParams() Params {
	return Params{
		ExpTime:     30,
		ReadoutTime: 2,
		DarkCurrent: 0.02,
		SCTI:        1e-6,
		PCTI:        1e-6,
		FullWell:    1e5,
	}
}

// Exposure is the per-exposure metadata that accompanies an electron
// image.  ObsID, MJD, MJDObs, ExpTime and ImageType are required; the
// band is validated and coerced rather than required.
type Exposure struct {
	ObsID     string
	SeqNum    int
	MJD       float64
	MJDObs    float64
	ExpTime   float64
	ImageType string
	Band      string
	RATel     float64
	DecTel    float64
	RotTelPos float64
	HAStart   float64
	HAEnd     float64
	AMStart   float64
	AMEnd     float64
}

func (e Exposure) validate() error {
	switch {
	case e.ObsID == "":
		return &MissingMetadataError{Field: "OBSID"}
	case e.MJD == 0:
		return &MissingMetadataError{Field: "MJD"}
	case e.MJDObs == 0:
		return &MissingMetadataError{Field: "MJD-OBS"}
	case e.ExpTime == 0:
		return &MissingMetadataError{Field: "EXPTIME"}
	case e.ImageType == "":
		return &MissingMetadataError{Field: "IMGTYPE"}
	}
	return nil
}

// Readout simulates the serial readout of a single detector.  The zero
// value is not usable; construct with New and override collaborators as
// needed before the first Run.
type Readout struct {
	// Det is the detector being read out.
	Det *camgeom.Detector

	// Family selects the header keyword convention.
	Family camgeom.Family

	// Params are the readout parameters.
	Params Params

	// Bleed is the external saturation-bleed transform; nil skips the
	// stage.
	Bleed BleedFunc

	// WCS constructs the coordinate solutions for header assembly.
	WCS WCSBuilder

	// CTE caches transfer operators; share one across runs.
	CTE *cte.Cache

	// Angles caches the focal-plane rotation angle; share one across
	// runs.
	Angles *RotAngleCache

	// Logger receives non-fatal anomaly warnings; nil silences them.
	Logger *log.Logger
}

// New returns a Readout for det with freshly allocated caches.  Callers
// running many detectors should assign shared CTE and Angles caches.
func New(det *camgeom.Detector, family camgeom.Family, params Params) *Readout {
	return &Readout{
		Det:    det,
		Family: family,
		Params: params,
		CTE:    cte.NewCache(),
		Angles: NewRotAngleCache(),
	}
}

// RawOutput is one detector's complete raw readout: the primary header
// and the ordered amplifier frames.
type RawOutput struct {
	// DetName is the detector name, e.g. R22_S11.
	DetName string

	// Primary holds the primary header cards.
	Primary []fitsio.Card

	// Amps holds one frame per amplifier in readout-channel order.
	Amps []AmpFrame
}

// AmpFrame is one amplifier's raw frame and extension header.
type AmpFrame struct {
	// AmpName is the qualified amp name, e.g. R22_S11_C10.
	AmpName string

	// Channel is the readout channel label, e.g. "10".
	Channel string

	// ExtName is the FITS extension name, "Segment"+Channel.
	ExtName string

	// Image is the raw frame in ADU, including prescan and overscan.
	Image *pix.Image

	// Cards holds the extension header cards.
	Cards []fitsio.Card
}

func (r *Readout) logf(format string, args ...interface{}) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}

// Run executes the full transform chain on eimage and returns the raw
// amplifier frames with their headers.  The electron image must cover
// exactly the detector's bounds.  rng drives the dark-current and
// read-noise draws; supply one per run, seeded, for reproducibility.
// eimage is not modified.
func (r *Readout) Run(eimage *pix.Image, exp Exposure, rng *rand.Rand) (*RawOutput, error) {
	if err := exp.validate(); err != nil {
		return nil, err
	}
	if exp.Band == "" || len(exp.Band) != 1 || !strings.Contains("ugrizy", exp.Band) {
		r.logf("band %q is not one of ugrizy, using r", exp.Band)
		exp.Band = "r"
	}
	if eimage.Bounds != r.Det.Bounds {
		return nil, &GeometryMismatchError{
			Msg: fmt.Sprintf("electron image bounds %s != detector %s bounds %s",
				eimage.Bounds, r.Det.Name, r.Det.Bounds),
		}
	}
	if rng == nil && (r.Params.DarkCurrent > 0 || r.maxReadNoise() > 0) {
		return nil, fmt.Errorf("readout: nil rng with noise stages enabled")
	}

	img := eimage.Copy()

	// stage 1: saturation bleed, before segmentation, since bleed
	// trails cross amp boundaries along the parallel direction
	if r.Bleed != nil {
		img = r.Bleed(img, r.Params.FullWell)
		if img.Bounds != r.Det.Bounds {
			return nil, &GeometryMismatchError{Msg: "bleed transform changed the image bounds"}
		}
	}

	// stage 2: dark current accumulated over exposure plus readout
	darkTime := r.Params.ExpTime + r.Params.ReadoutTime
	if mean := r.Params.DarkCurrent * darkTime; mean > 0 {
		poisson := distuv.Poisson{Lambda: mean, Src: rng}
		for i := range img.Data {
			img.Data[i] += poisson.Rand()
		}
	}

	// stage 3: segment into amps, convert to ADU, flip to readout order
	ampArrays := make([]*pix.Image, 0, len(r.Det.Amps))
	for i := range r.Det.Amps {
		amp := &r.Det.Amps[i]
		seg, err := img.SubImage(amp.Bounds)
		if err != nil {
			return nil, &GeometryMismatchError{
				Msg: fmt.Sprintf("amp %s_%s: %v", r.Det.Name, amp.Name, err),
			}
		}
		seg.Scale(1 / amp.Gain)
		if amp.RawFlipX {
			seg = seg.FlipX()
		}
		if amp.RawFlipY {
			seg = seg.FlipY()
		}
		ampArrays = append(ampArrays, seg)
	}

	// stage 4: intra-detector crosstalk, one linear pass
	ampArrays, err := crosstalk.Apply(ampArrays, r.Det.Crosstalk)
	if err != nil {
		return nil, err
	}

	// stage 5: embed into raw frames; prescan/overscan start at zero
	frames := make([]*pix.Image, len(ampArrays))
	for i, arr := range ampArrays {
		amp := &r.Det.Amps[i]
		frame := pix.NewImage(amp.RawBounds)
		if err := frame.AddInto(arr, amp.RawDataBounds); err != nil {
			return nil, &GeometryMismatchError{
				Msg: fmt.Sprintf("amp %s_%s: visible data does not fit raw data bounds: %v",
					r.Det.Name, amp.Name, err),
			}
		}
		frames[i] = frame
	}

	// stage 6: charge transfer, parallel clocking then serial clocking.
	// The order is physical: parallel transfer happens during sensor
	// read, serial transfer during each row's clock-out.
	for _, frame := range frames {
		if op := r.CTE.Get(frame.Height(), r.Params.PCTI); op != nil {
			if err := op.ApplyColumns(frame); err != nil {
				return nil, err
			}
		}
		if op := r.CTE.Get(frame.Width(), r.Params.SCTI); op != nil {
			if err := op.ApplyRows(frame); err != nil {
				return nil, err
			}
		}
	}

	// stage 7: bias and read noise, each amp using its own values
	for i, frame := range frames {
		amp := &r.Det.Amps[i]
		bias := amp.BiasLevel
		if r.Params.BiasLevel != 0 {
			bias = r.Params.BiasLevel
		}
		frame.AddConst(bias)
		if amp.ReadNoise > 0 {
			// shot noise is already in the electron image;
			// this draw is read noise only
			noise := distuv.Normal{Mu: 0, Sigma: amp.ReadNoise, Src: rng}
			for k := range frame.Data {
				frame.Data[k] += noise.Rand()
			}
		}
	}

	return r.assemble(frames, exp, darkTime)
}

func (r *Readout) maxReadNoise() float64 {
	max := 0.0
	for i := range r.Det.Amps {
		if rn := r.Det.Amps[i].ReadNoise; rn > max {
			max = rn
		}
	}
	return max
}

// assemble builds the primary and per-amp metadata records around the
// finished frames.  Nothing is returned unless every record builds.
func (r *Readout) assemble(frames []*pix.Image, exp Exposure, darkTime float64) (*RawOutput, error) {
	if r.WCS == nil {
		return nil, &camgeom.ConfigurationError{Msg: "no WCS builder supplied"}
	}
	rotAngle, err := r.Angles.RotSkyPos(r.WCS, r.Det, r.Family,
		exp.RATel, exp.DecTel, exp.RotTelPos, exp.MJDObs, exp.Band, r.Logger)
	if err != nil {
		return nil, err
	}
	primary, err := primaryCards(exp, r.Family, r.Det.Name, darkTime, rotAngle)
	if err != nil {
		return nil, err
	}

	factory, err := r.WCS.MakeFactory(exp.RATel, exp.DecTel, exp.RotTelPos, exp.MJDObs, exp.Band, r.Family)
	if err != nil {
		return nil, fmt.Errorf("making WCS factory: %w", err)
	}
	wcs, err := factory.GetWCS(r.Det)
	if err != nil {
		return nil, fmt.Errorf("solving WCS for %s: %w", r.Det.Name, err)
	}

	out := &RawOutput{DetName: r.Det.Name, Primary: primary}
	for i, frame := range frames {
		label := ChannelLabel(i)
		// section keywords come from the amp the channel label names;
		// fall back to readout order for detectors with nonstandard
		// amp naming
		ampGeom := r.Det.Amp("C" + label)
		if ampGeom == nil {
			ampGeom = &r.Det.Amps[i]
		}
		frameRec := AmpFrame{
			AmpName: r.Det.Name + "_C" + label,
			Channel: label,
			ExtName: "Segment" + label,
			Image:   frame,
			Cards:   ampCards(wcs, r.Family, i, ampGeom),
		}
		r.logf("amp %s has bounds %s", frameRec.AmpName,
			sectionKeyword(ampGeom.Bounds, ampGeom.RawFlipX, ampGeom.RawFlipY))
		out.Amps = append(out.Amps, frameRec)
	}
	return out, nil
}
