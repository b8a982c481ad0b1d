package readout

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/astrogo/fitsio"

	"github.com/rubin-sim/readoutsim/pix"
	"github.com/rubin-sim/readoutsim/util"
)

// WriteRaw streams a raw detector file to w: the primary header followed
// by one 32-bit integer image extension per amplifier, named
// Segment<channel>.  Pixel values are rounded and clamped to the int32
// range.
func WriteRaw(w io.Writer, out *RawOutput) error {
	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer f.Close()

	primary := fitsio.NewImage(8, []int{})
	defer primary.Close()
	if err := primary.Header().Append(out.Primary...); err != nil {
		return err
	}
	if err := f.Write(primary); err != nil {
		return err
	}

	for i := range out.Amps {
		amp := &out.Amps[i]
		im := fitsio.NewImage(32, []int{amp.Image.Width(), amp.Image.Height()})
		if err := im.Header().Append(amp.Cards...); err != nil {
			im.Close()
			return err
		}
		buf := make([]int32, len(amp.Image.Data))
		for k, v := range amp.Image.Data {
			buf[k] = int32(math.Round(util.Clamp(v, math.MinInt32, math.MaxInt32)))
		}
		if err := im.Write(buf); err != nil {
			im.Close()
			return err
		}
		err = f.Write(im)
		im.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteRawFile writes the raw detector file to path, recording the
// output file name in the primary header.
func WriteRawFile(path string, out *RawOutput) error {
	withName := *out
	withName.Primary = append(append([]fitsio.Card(nil), out.Primary...),
		fitsio.Card{Name: "OUTFILE", Value: filepath.Base(path)})
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteRaw(f, &withName)
}

// EImage is an electron image plus the metadata that arrived with it.
type EImage struct {
	// Image holds expected photoelectron counts over the detector
	// bounds.
	Image *pix.Image

	// Exposure is the per-exposure metadata from the file header.
	Exposure Exposure

	// DetName is the detector the image covers, e.g. R22_S11.
	DetName string

	// CameraName is the camera family name from the header.
	CameraName string
}

// ReadEImage loads an electron image and its metadata from a FITS file
// produced by the upstream rendering stage.  Identification fields are
// required; their absence is a *MissingMetadataError.
func ReadEImage(path string) (*EImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fits, err := fitsio.Open(f)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer fits.Close()

	hdu := fits.HDU(0)
	img, ok := hdu.(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("%s: primary HDU is not an image", path)
	}
	hdr := img.Header()
	axes := hdr.Axes()
	if len(axes) != 2 || axes[0] <= 0 || axes[1] <= 0 {
		return nil, &GeometryMismatchError{Msg: fmt.Sprintf("%s: expected a 2D image, axes %v", path, axes)}
	}
	w, h := axes[0], axes[1]

	out := pix.NewImage(pix.Bounds{Xmin: 1, Xmax: w, Ymin: 1, Ymax: h})
	switch hdr.Bitpix() {
	case -64:
		buf := make([]float64, 0, w*h)
		if err := img.Read(&buf); err != nil {
			return nil, err
		}
		copy(out.Data, buf)
	case -32:
		buf := make([]float32, 0, w*h)
		if err := img.Read(&buf); err != nil {
			return nil, err
		}
		for k, v := range buf {
			out.Data[k] = float64(v)
		}
	case 32:
		buf := make([]int32, 0, w*h)
		if err := img.Read(&buf); err != nil {
			return nil, err
		}
		for k, v := range buf {
			out.Data[k] = float64(v)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported bitpix %d for an electron image", path, hdr.Bitpix())
	}

	ei := &EImage{Image: out}
	if ei.DetName, err = strKey(hdr, "DET_NAME"); err != nil {
		return nil, err
	}
	if ei.CameraName, err = strKey(hdr, "CAMERA"); err != nil {
		return nil, err
	}
	if ei.Exposure.ObsID, err = strKey(hdr, "OBSID"); err != nil {
		return nil, err
	}
	if ei.Exposure.MJD, err = floatKey(hdr, "MJD"); err != nil {
		return nil, err
	}
	if ei.Exposure.MJDObs, err = floatKey(hdr, "MJD-OBS"); err != nil {
		return nil, err
	}
	if ei.Exposure.ExpTime, err = floatKey(hdr, "EXPTIME"); err != nil {
		return nil, err
	}
	if ei.Exposure.ImageType, err = strKey(hdr, "IMGTYPE"); err != nil {
		return nil, err
	}
	ei.Exposure.SeqNum = optInt(hdr, "SEQNUM")
	ei.Exposure.Band = optStr(hdr, "FILTER")
	ei.Exposure.RATel = optFloat(hdr, "RATEL")
	ei.Exposure.DecTel = optFloat(hdr, "DECTEL")
	ei.Exposure.RotTelPos = optFloat(hdr, "ROTTELPOS")
	ei.Exposure.HAStart = optFloat(hdr, "HASTART")
	ei.Exposure.HAEnd = optFloat(hdr, "HAEND")
	ei.Exposure.AMStart = optFloat(hdr, "AMSTART")
	ei.Exposure.AMEnd = optFloat(hdr, "AMEND")
	return ei, nil
}

func strKey(hdr *fitsio.Header, name string) (string, error) {
	card := hdr.Get(name)
	if card == nil {
		return "", &MissingMetadataError{Field: name}
	}
	s, ok := card.Value.(string)
	if !ok || s == "" {
		return "", &MissingMetadataError{Field: name}
	}
	return s, nil
}

func floatKey(hdr *fitsio.Header, name string) (float64, error) {
	card := hdr.Get(name)
	if card == nil {
		return 0, &MissingMetadataError{Field: name}
	}
	switch v := card.Value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, &MissingMetadataError{Field: name}
}

func optFloat(hdr *fitsio.Header, name string) float64 {
	v, err := floatKey(hdr, name)
	if err != nil {
		return 0
	}
	return v
}

func optInt(hdr *fitsio.Header, name string) int {
	return int(optFloat(hdr, name))
}

func optStr(hdr *fitsio.Header, name string) string {
	s, err := strKey(hdr, name)
	if err != nil {
		return ""
	}
	return s
}
