package readout

import (
	"fmt"
	"strings"
	"time"

	"github.com/astrogo/fitsio"

	"github.com/rubin-sim/readoutsim/camgeom"
	"github.com/rubin-sim/readoutsim/pix"
)

// Version is stamped into the primary header of every raw file.
var Version = "0.3.0"

// sensorAssembly is the hardware identifier of the simulated raft tower
// module, carried for compatibility with downstream ingest.
const sensorAssembly = "LCA-11021_RTM-000"

// channelLabels maps physical amplifier index to readout channel label.
// The table is fixed by the detector wiring and is independent of the
// amplifier names in the geometry.
var channelLabels = [16]string{
	"10", "11", "12", "13", "14", "15", "16", "17",
	"07", "06", "05", "04", "03", "02", "01", "00",
}

// xSegOffsets gives, per physical amp index, how many segment widths the
// amp's reference pixel is offset along x in the raw mosaic.
var xSegOffsets = [16]int{1, 2, 3, 4, 5, 6, 7, 8, 8, 7, 6, 5, 4, 3, 2, 1}

// ySegOffsets gives the per-amp segment-height offsets along y; the two
// amp rows swap places between the imSim convention and the modern one.
func ySegOffsets(family camgeom.Family) [16]int {
	if family == camgeom.LsstCamImSim {
		return [16]int{0, 0, 0, 0, 0, 0, 0, 0, 2, 2, 2, 2, 2, 2, 2, 2}
	}
	return [16]int{2, 2, 2, 2, 2, 2, 2, 2, 0, 0, 0, 0, 0, 0, 0, 0}
}

// cdSign is the family-wide sign convention applied to the per-amp CD
// matrix entries.
func cdSign(family camgeom.Family) float64 {
	if family == camgeom.LsstCamImSim {
		return -1
	}
	return 1
}

// ChannelLabel returns the readout channel label for a physical amp
// index, e.g. index 0 is "10".
func ChannelLabel(index int) string {
	return channelLabels[index%len(channelLabels)]
}

// sectionKeyword packages bounds as a NOAO image section value, swapping
// the limits of a flipped axis.
func sectionKeyword(b pix.Bounds, flipx, flipy bool) string {
	xmin, xmax := b.Xmin, b.Xmax
	ymin, ymax := b.Ymin, b.Ymax
	if flipx {
		xmin, xmax = xmax, xmin
	}
	if flipy {
		ymin, ymax = ymax, ymin
	}
	return fmt.Sprintf("[%d:%d,%d:%d]", xmin, xmax, ymin, ymax)
}

// mjdUnixEpoch is the Unix epoch expressed as a Modified Julian Date.
const mjdUnixEpoch = 40587.0

// mjdToTime converts a Modified Julian Date to a wall-clock time.  The
// timescale of the input is the timescale of the output; TIMESYS in the
// primary header records which one the pipeline uses.
func mjdToTime(mjd float64) time.Time {
	sec := (mjd - mjdUnixEpoch) * 86400.0
	whole := int64(sec)
	frac := sec - float64(whole)
	return time.Unix(whole, int64(frac*1e9)).UTC()
}

// isot formats a time in the ISO-8601 style FITS headers use.
func isot(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000")
}

// dayObs formats the observation day as yyyymmdd.
func dayObs(t time.Time) string {
	return t.Format("20060102")
}

// splitDetectorName splits a focal-plane detector name such as R22_S11
// into its raft and sensor identifiers.
func splitDetectorName(name string) (raft, sensor string, err error) {
	parts := strings.SplitN(name, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &camgeom.ConfigurationError{
			Msg: fmt.Sprintf("detector name %q is not of the raft_sensor form", name),
		}
	}
	return parts[0], parts[1], nil
}

// primaryCards assembles the primary header for one detector's raw file.
func primaryCards(exp Exposure, family camgeom.Family, detName string, darkTime, rotAngle float64) ([]fitsio.Card, error) {
	raft, sensor, err := splitDetectorName(detName)
	if err != nil {
		return nil, err
	}
	date := mjdToTime(exp.MJD)
	obsStart := mjdToTime(exp.MJDObs)
	obsEnd := mjdToTime(exp.MJDObs + exp.ExpTime/86400.0)

	cards := []fitsio.Card{
		{Name: "RUNNUM", Value: exp.ObsID, Comment: "run number"},
		{Name: "OBSID", Value: exp.ObsID, Comment: "observation id"},
		{Name: "MJD", Value: exp.MJD, Comment: "modified julian date"},
		{Name: "DATE", Value: isot(date)},
		{Name: "DAYOBS", Value: dayObs(date), Comment: "observation day, yyyymmdd"},
		{Name: "SEQNUM", Value: exp.SeqNum, Comment: "exposure sequence number"},
		{Name: "EXPTIME", Value: exp.ExpTime, Comment: "exposure time (s)"},
		{Name: "DARKTIME", Value: darkTime, Comment: "exposure plus readout time (s)"},
		{Name: "TIMESYS", Value: "TAI"},
		{Name: "LSST_NUM", Value: sensorAssembly},
		{Name: "IMGTYPE", Value: exp.ImageType},
		{Name: "OBSTYPE", Value: exp.ImageType},
		{Name: "MONOWL", Value: -1, Comment: "monochromator wavelength, unused"},
	}
	cards = append(cards, conventionCards(family)(raft, sensor, exp.RATel, exp.DecTel)...)
	cards = append(cards,
		fitsio.Card{Name: "ROTANGLE", Value: rotAngle, Comment: "rotation wrt Celestial North (deg)"},
		fitsio.Card{Name: "MJD-OBS", Value: exp.MJDObs, Comment: "MJD at exposure start"},
		fitsio.Card{Name: "FILTER", Value: exp.Band},
		fitsio.Card{Name: "HASTART", Value: exp.HAStart, Comment: "hour angle at start"},
		fitsio.Card{Name: "HAEND", Value: exp.HAEnd, Comment: "hour angle at end"},
		fitsio.Card{Name: "DATE-OBS", Value: isot(obsStart)},
		fitsio.Card{Name: "DATE-END", Value: isot(obsEnd)},
		fitsio.Card{Name: "AMSTART", Value: exp.AMStart, Comment: "airmass at start"},
		fitsio.Card{Name: "AMEND", Value: exp.AMEnd, Comment: "airmass at end"},
		fitsio.Card{Name: "IMSIMVER", Value: Version, Comment: "simulator version"},
		fitsio.Card{Name: "PKG00000", Value: "throughputs"},
		fitsio.Card{Name: "VER00000", Value: "1.4"},
		fitsio.Card{Name: "CHIPID", Value: detName},
	)
	return cards, nil
}

// conventionCards selects the keyword-convention builder for a family.
// Two conventions exist: the legacy imSim set and the observatory set.
func conventionCards(family camgeom.Family) func(raft, sensor string, ra, dec float64) []fitsio.Card {
	if family == camgeom.LsstCamImSim {
		return imSimConventionCards
	}
	return func(raft, sensor string, ra, dec float64) []fitsio.Card {
		return observatoryConventionCards(family, raft, sensor, ra, dec)
	}
}

func imSimConventionCards(raft, sensor string, ra, dec float64) []fitsio.Card {
	return []fitsio.Card{
		{Name: "TESTTYPE", Value: "IMSIM"},
		{Name: "RAFTNAME", Value: raft},
		{Name: "SENSNAME", Value: sensor},
		{Name: "RATEL", Value: ra, Comment: "boresight RA (deg)"},
		{Name: "DECTEL", Value: dec, Comment: "boresight Dec (deg)"},
	}
}

func observatoryConventionCards(family camgeom.Family, raft, sensor string, ra, dec float64) []fitsio.Card {
	instrument := "LSSTCam"
	if family == camgeom.LsstComCam {
		instrument = "LSSTComCam"
	}
	return []fitsio.Card{
		{Name: "INSTRUME", Value: instrument},
		{Name: "RAFTBAY", Value: raft},
		{Name: "CCDSLOT", Value: sensor},
		{Name: "RA", Value: ra, Comment: "boresight RA (deg)"},
		{Name: "DEC", Value: dec, Comment: "boresight Dec (deg)"},
		{Name: "ROTCOORD", Value: "sky"},
	}
}

// ampCards assembles the header for one amplifier extension.  The WCS of
// the full detector is rewritten so the extension carries its own
// reference pixel and a flip-adjusted transform matrix.  ampGeom is the
// amplifier the channel label names, which supplies the section
// keywords; index is the physical amp index.
func ampCards(wcs WCS, family camgeom.Family, index int, ampGeom *camgeom.Amp) []fitsio.Card {
	label := ChannelLabel(index)
	crpix1, crpix2 := wcs.RefPix()
	crval1, crval2 := wcs.RefSky()
	cd := wcs.CD()

	xsign, ysign := 1.0, 1.0
	if ampGeom.RawFlipX {
		xsign = -1
	}
	if ampGeom.RawFlipY {
		ysign = -1
	}
	sign := cdSign(family)
	width := ampGeom.RawDataBounds.Width()
	height := ampGeom.RawDataBounds.Height()
	yOff := ySegOffsets(family)

	return []fitsio.Card{
		{Name: "EXTNAME", Value: "Segment" + label},
		{Name: "CTYPE1", Value: "RA---TAN"},
		{Name: "CTYPE2", Value: "DEC--TAN"},
		{Name: "CRVAL1", Value: crval1, Comment: "reference RA (deg)"},
		{Name: "CRVAL2", Value: crval2, Comment: "reference Dec (deg)"},
		{Name: "CRPIX1", Value: xsign*crpix1 + float64(xSegOffsets[index%16]*width)},
		{Name: "CRPIX2", Value: ysign*crpix2 + float64(yOff[index%16]*height)},
		{Name: "CD1_1", Value: cd[0][0] * sign * ysign},
		{Name: "CD1_2", Value: cd[0][1] * sign * xsign},
		{Name: "CD2_1", Value: cd[1][0] * sign * ysign},
		{Name: "CD2_2", Value: cd[1][1] * sign * xsign},
		{Name: "DATASEC", Value: sectionKeyword(ampGeom.RawDataBounds, false, false), Comment: "data section in the raw frame"},
		{Name: "DETSEC", Value: sectionKeyword(ampGeom.Bounds, ampGeom.RawFlipX, ampGeom.RawFlipY), Comment: "data section in the detector"},
	}
}
