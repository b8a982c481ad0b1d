package readout

import (
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/rubin-sim/readoutsim/camgeom"
)

// rotSkyPos triangulation parameters: leg length of the triangle walked
// on the sky, and the assumed pixel scale.
const (
	rotAngleLegPixels  = 100.0
	rotAnglePixelScale = 0.2 // arcsec per pixel
)

// RotAngleCache memoizes the rotation of the focal plane with respect to
// Celestial North by the exact observation input tuple.  The underlying
// WCS construction is expensive and deterministic for identical inputs,
// so one computation serves every detector of an observation.  The cache
// is safe for concurrent use.
type RotAngleCache struct {
	mu      sync.Mutex
	entries map[rotAngleKey]float64
}

type rotAngleKey struct {
	ra, dec, rotTelPos, mjd float64
	band                    string
	family                  camgeom.Family
}

// NewRotAngleCache returns an empty rotation-angle cache.
func NewRotAngleCache() *RotAngleCache {
	return &RotAngleCache{entries: make(map[rotAngleKey]float64)}
}

// RotSkyPos computes the nominal rotation angle in degrees of the focal
// plane with respect to Celestial North, using the +y pixel direction as
// the focal-plane reference direction.  det supplies the WCS solution;
// the angle is a focal-plane quantity, so the cache key is the
// observation tuple alone.  The result is normalized into [0, 360).
func (c *RotAngleCache) RotSkyPos(b WCSBuilder, det *camgeom.Detector, family camgeom.Family, ra0, dec0, rotTelPos, mjd float64, band string, logger *log.Logger) (float64, error) {
	key := rotAngleKey{ra: ra0, dec: dec0, rotTelPos: rotTelPos, mjd: mjd, band: band, family: family}
	c.mu.Lock()
	if theta, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return theta, nil
	}
	c.mu.Unlock()

	theta, err := computeRotSkyPos(b, det, family, ra0, dec0, rotTelPos, mjd, band)
	if err != nil {
		return 0, err
	}
	if logger != nil {
		logger.Printf("rotSkyPos for (%.4f, %.4f) rot %.2f mjd %.5f band %s: %.4f deg",
			ra0, dec0, rotTelPos, mjd, band, theta)
	}
	c.mu.Lock()
	c.entries[key] = theta
	c.mu.Unlock()
	return theta, nil
}

// computeRotSkyPos walks a small triangle on the detector: one leg along
// +y in pixels, one leg toward Celestial North on the sky, and measures
// the angle between them with the law of cosines.
func computeRotSkyPos(b WCSBuilder, det *camgeom.Detector, family camgeom.Family, ra0, dec0, rotTelPos, mjd float64, band string) (float64, error) {
	factory, err := b.MakeFactory(ra0, dec0, rotTelPos, mjd, band, family)
	if err != nil {
		return 0, fmt.Errorf("making WCS factory: %w", err)
	}
	wcs, err := factory.GetWCS(det)
	if err != nil {
		return 0, fmt.Errorf("solving WCS for %s: %w", det.Name, err)
	}

	x0, y0 := wcs.RefPix()
	// leg 1: straight up the detector in pixel coordinates
	x1, y1 := x0, y0+rotAngleLegPixels
	// leg 2: the same distance toward Celestial North on the sky
	ra, dec := wcs.RefSky()
	x2, y2 := wcs.ToImage(ra, dec+rotAnglePixelScale*rotAngleLegPixels/3600)

	a2 := (x1-x0)*(x1-x0) + (y1-y0)*(y1-y0)
	b2 := (x2-x0)*(x2-x0) + (y2-y0)*(y2-y0)
	c2 := (x1-x2)*(x1-x2) + (y2-y1)*(y2-y1)
	cosTheta := (a2 + b2 - c2) / 2 / math.Sqrt(a2*b2)
	if cosTheta > 1 {
		cosTheta = 1
	} else if cosTheta < -1 {
		cosTheta = -1
	}
	theta := math.Acos(cosTheta) * 180 / math.Pi
	// the angle is positive when North lies counter-clockwise of +y
	if x2 < x1 {
		theta = 360 - theta
	}
	if family == camgeom.LsstCamImSim {
		// legacy imSim data carries a sign change and 90 degree offset
		theta = 90 - theta
	}
	for theta < 0 {
		theta += 360
	}
	for theta >= 360 {
		theta -= 360
	}
	return theta, nil
}
