// Package profile holds the named x264 parameter sets used to build encode
// pipelines, and the file-backed registry they are resolved from.
package profile

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultName is the name of the profile synthesized when no usable profile file exists.
const DefaultName = "default"

// X264 holds the encoder parameters passed to x264 for every video encode stage.
type X264 struct {
	CRF     float64 `yaml:"crf" json:"crf"`
	Preset  Preset  `yaml:"preset" json:"preset"`
	Keyint  int     `yaml:"I" json:"I"` // -I, maximum GOP size
	BRef    int     `yaml:"r" json:"r"` // -r, reference frames
	BFrames int     `yaml:"b" json:"b"` // -b, consecutive B-frames
	OpenCL  bool    `yaml:"opencl_acceleration" json:"opencl_acceleration"`
}

// Profile is a named, immutable encoding parameter set.
type Profile struct {
	Name string `yaml:"name" json:"name"`
	X264 X264   `yaml:"x264" json:"x264"`
}

// Default returns the profile used when the profile file is missing or unusable.
func Default() Profile {
	return Profile{
		Name: DefaultName,
		X264: X264{
			CRF:     23.5,
			Preset:  PresetSlower,
			Keyint:  600,
			BRef:    4,
			BFrames: 3,
		},
	}
}

// UnmarshalYAML decodes a profile on top of the default values so that
// fields omitted from the file keep their defaults.
func (p *Profile) UnmarshalYAML(value *yaml.Node) error {
	type plain Profile
	out := plain(Default())
	if err := value.Decode(&out); err != nil {
		return err
	}
	*p = Profile(out)
	return nil
}

// Validate reports whether the profile can be handed to the encoder.
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile has no name")
	}
	if !IsValidCRF(p.X264.CRF) {
		return fmt.Errorf("profile %q: crf %v out of range (%v, %v)", p.Name, p.X264.CRF, MinCRF, MaxCRF)
	}
	if !p.X264.Preset.Valid() {
		return fmt.Errorf("profile %q: unknown preset %q", p.Name, p.X264.Preset)
	}
	return nil
}

// Preset is one of x264's named speed/quality trade-offs.
type Preset string

const (
	PresetUltrafast Preset = "ultrafast"
	PresetSuperfast Preset = "superfast"
	PresetVeryfast  Preset = "veryfast"
	PresetFaster    Preset = "faster"
	PresetFast      Preset = "fast"
	PresetMedium    Preset = "medium"
	PresetSlow      Preset = "slow"
	PresetSlower    Preset = "slower"
	PresetVeryslow  Preset = "veryslow"
)

// Presets lists every preset, fastest first.
var Presets = []Preset{
	PresetUltrafast,
	PresetSuperfast,
	PresetVeryfast,
	PresetFaster,
	PresetFast,
	PresetMedium,
	PresetSlow,
	PresetSlower,
	PresetVeryslow,
}

// Valid reports whether p is a known preset name.
func (p Preset) Valid() bool {
	for _, known := range Presets {
		if p == known {
			return true
		}
	}
	return false
}

// UnmarshalYAML accepts a preset name, or the numeric index older profile
// files stored in its place.
func (p *Preset) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.Tag == "!!int" {
		idx, err := strconv.Atoi(value.Value)
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(Presets) {
			return fmt.Errorf("preset index %d out of range", idx)
		}
		*p = Presets[idx]
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	*p = Preset(s)
	return nil
}
