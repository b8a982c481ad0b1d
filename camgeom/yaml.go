package camgeom

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/rubin-sim/readoutsim/pix"
)

// YAMLProvider is a geometry Provider backed by a YAML camera
// description.  The document lists detectors in focal-plane order; each
// detector lists its amplifier segments in readout-channel order.
// Bounds are written as [xmin, xmax, ymin, ymax] in the FITS convention.
type YAMLProvider struct {
	doc yamlCamera
}

type yamlCamera struct {
	Name      string         `yaml:"name"`
	Detectors []yamlDetector `yaml:"detectors"`
}

type yamlDetector struct {
	Name      string      `yaml:"name"`
	Crosstalk [][]float64 `yaml:"crosstalk,omitempty"`
	Amps      []yamlAmp   `yaml:"amps"`
}

type yamlAmp struct {
	Name          string  `yaml:"name"`
	Bounds        []int   `yaml:"bounds"`
	RawBounds     []int   `yaml:"rawbounds"`
	RawDataBounds []int   `yaml:"rawdatabounds"`
	FlipX         bool    `yaml:"flipx"`
	FlipY         bool    `yaml:"flipy"`
	Gain          float64 `yaml:"gain"`
	ReadNoise     float64 `yaml:"readnoise"`
}

// NewYAMLProvider parses a camera description from r.
func NewYAMLProvider(r io.Reader) (*YAMLProvider, error) {
	p := &YAMLProvider{}
	if err := yaml.NewDecoder(r).Decode(&p.doc); err != nil {
		return nil, fmt.Errorf("parsing camera geometry: %w", err)
	}
	return p, nil
}

// OpenYAMLProvider parses a camera description from a file.
func OpenYAMLProvider(path string) (*YAMLProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewYAMLProvider(f)
}

// Name returns the camera name declared in the document.
func (p *YAMLProvider) Name() string {
	return p.doc.Name
}

// DetectorNames implements Provider.
func (p *YAMLProvider) DetectorNames() []string {
	names := make([]string, len(p.doc.Detectors))
	for i, det := range p.doc.Detectors {
		names[i] = det.Name
	}
	return names
}

// Detector implements Provider.
func (p *YAMLProvider) Detector(name string) (*RawDetector, error) {
	for _, det := range p.doc.Detectors {
		if det.Name != name {
			continue
		}
		raw := &RawDetector{Name: det.Name, Crosstalk: det.Crosstalk}
		for _, amp := range det.Amps {
			b, err := parseBounds(amp.Bounds, det.Name, amp.Name, "bounds")
			if err != nil {
				return nil, err
			}
			rb, err := parseBounds(amp.RawBounds, det.Name, amp.Name, "rawbounds")
			if err != nil {
				return nil, err
			}
			rdb, err := parseBounds(amp.RawDataBounds, det.Name, amp.Name, "rawdatabounds")
			if err != nil {
				return nil, err
			}
			raw.Amps = append(raw.Amps, RawAmp{
				Name:          amp.Name,
				Bounds:        b,
				RawBounds:     rb,
				RawDataBounds: rdb,
				RawFlipX:      amp.FlipX,
				RawFlipY:      amp.FlipY,
				Gain:          amp.Gain,
				ReadNoise:     amp.ReadNoise,
			})
		}
		return raw, nil
	}
	return nil, &ConfigurationError{Msg: fmt.Sprintf("geometry has no detector %q", name)}
}

func parseBounds(v []int, det, amp, field string) (pix.Bounds, error) {
	if len(v) != 4 {
		return pix.Bounds{}, &ConfigurationError{
			Msg: fmt.Sprintf("amp %s_%s %s must be [xmin, xmax, ymin, ymax], got %v", det, amp, field, v),
		}
	}
	return pix.Bounds{Xmin: v[0], Xmax: v[1], Ymin: v[2], Ymax: v[3]}, nil
}
