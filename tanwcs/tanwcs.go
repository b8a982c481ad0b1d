/*Package tanwcs is a tangent-projection WCS factory for the readout
pipeline.

It is a deliberately simple stand-in for a full optical model: a
gnomonic projection about the boresight, rotated by the telescope
rotator angle plus a fixed per-band offset from the filter optics.  It
is pure math, deterministic for identical inputs, and sufficient for
header assembly and rotation-angle bookkeeping.
*/
package tanwcs

import (
	"fmt"
	"math"

	"github.com/rubin-sim/readoutsim/camgeom"
	"github.com/rubin-sim/readoutsim/readout"
)

// DefaultPixelScale is the assumed plate scale in arcsec per pixel.
const DefaultPixelScale = 0.2

// bandOffsets is the rotation each filter's optics add, in degrees.
var bandOffsets = map[string]float64{
	"u": 0.0,
	"g": 0.15,
	"r": 0.3,
	"i": 0.45,
	"z": 0.6,
	"y": 0.75,
}

// Builder constructs tangent-projection WCS factories.  The zero value
// uses DefaultPixelScale.
type Builder struct {
	// PixelScale is the plate scale in arcsec per pixel; zero selects
	// DefaultPixelScale.
	PixelScale float64
}

// MakeFactory implements readout.WCSBuilder.
func (b Builder) MakeFactory(boresightRA, boresightDec, rotTelPos, obsMJD float64, band string, family camgeom.Family) (readout.WCSFactory, error) {
	offset, ok := bandOffsets[band]
	if !ok {
		return nil, &camgeom.ConfigurationError{Msg: fmt.Sprintf("no optics model for band %q", band)}
	}
	scale := b.PixelScale
	if scale == 0 {
		scale = DefaultPixelScale
	}
	return &factory{
		ra0:   boresightRA,
		dec0:  boresightDec,
		theta: rotTelPos + offset,
		scale: scale,
	}, nil
}

type factory struct {
	ra0, dec0 float64
	theta     float64 // position angle of +y wrt North, degrees
	scale     float64 // arcsec per pixel
}

// GetWCS implements readout.WCSFactory.  The reference pixel is the
// detector center; the reference sky position is the boresight.
func (f *factory) GetWCS(det *camgeom.Detector) (readout.WCS, error) {
	if det == nil {
		return nil, &camgeom.ConfigurationError{Msg: "nil detector"}
	}
	s := f.scale / 3600 // degrees per pixel
	sin, cos := math.Sincos(f.theta * math.Pi / 180)
	w := &wcs{
		crpix1: float64(det.Bounds.Xmin+det.Bounds.Xmax) / 2,
		crpix2: float64(det.Bounds.Ymin+det.Bounds.Ymax) / 2,
		ra0:    f.ra0,
		dec0:   f.dec0,
	}
	// pure rotation scaled to the plate scale; +y at theta from North
	w.cd = [2][2]float64{
		{s * cos, -s * sin},
		{s * sin, s * cos},
	}
	return w, nil
}

type wcs struct {
	crpix1, crpix2 float64
	ra0, dec0      float64
	cd             [2][2]float64
}

func (w *wcs) RefPix() (float64, float64) { return w.crpix1, w.crpix2 }

func (w *wcs) RefSky() (float64, float64) { return w.ra0, w.dec0 }

func (w *wcs) CD() [2][2]float64 { return w.cd }

// ToImage maps a sky position to pixel coordinates by gnomonic
// projection about the reference point followed by the inverse CD
// transform.
func (w *wcs) ToImage(ra, dec float64) (float64, float64) {
	const d2r = math.Pi / 180
	sinDec, cosDec := math.Sincos(dec * d2r)
	sinDec0, cosDec0 := math.Sincos(w.dec0 * d2r)
	sinDRA, cosDRA := math.Sincos((ra - w.ra0) * d2r)

	den := sinDec*sinDec0 + cosDec*cosDec0*cosDRA
	xi := cosDec * sinDRA / den / d2r
	eta := (sinDec*cosDec0 - cosDec*sinDec0*cosDRA) / den / d2r

	det := w.cd[0][0]*w.cd[1][1] - w.cd[0][1]*w.cd[1][0]
	dx := (w.cd[1][1]*xi - w.cd[0][1]*eta) / det
	dy := (-w.cd[1][0]*xi + w.cd[0][0]*eta) / det
	return w.crpix1 + dx, w.crpix2 + dy
}
