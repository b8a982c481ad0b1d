package readout

import (
	"github.com/rubin-sim/readoutsim/camgeom"
	"github.com/rubin-sim/readoutsim/pix"
)

// WCS exposes the pieces of a world coordinate solution the readout
// pipeline needs for header assembly: the reference pixel, the reference
// sky position, the linear transform matrix, and the inverse sky-to-pixel
// mapping.  Implementations must be deterministic for identical inputs.
type WCS interface {
	// RefPix returns the reference pixel (CRPIX1, CRPIX2).
	RefPix() (x, y float64)

	// RefSky returns the reference sky position in degrees
	// (CRVAL1, CRVAL2).
	RefSky() (ra, dec float64)

	// CD returns the CD transform matrix in degrees per pixel;
	// CD[0][0] is CD1_1, CD[0][1] is CD1_2, and so on.
	CD() [2][2]float64

	// ToImage maps a sky position in degrees to pixel coordinates.
	ToImage(ra, dec float64) (x, y float64)
}

// WCSFactory produces the WCS for a detector within one observation.
type WCSFactory interface {
	GetWCS(det *camgeom.Detector) (WCS, error)
}

// WCSBuilder constructs WCS factories from observation parameters.  The
// boresight is in degrees, the rotator angle in degrees, the observation
// time in MJD, and band is one of ugrizy.
type WCSBuilder interface {
	MakeFactory(boresightRA, boresightDec, rotTelPos, obsMJD float64, band string, family camgeom.Family) (WCSFactory, error)
}

// BleedFunc moves charge from saturated pixels into their neighbors
// along the parallel-transfer direction.  Implementations must be pure:
// same shape out as in, no retained references.
type BleedFunc func(im *pix.Image, fullWell float64) *pix.Image
