package authsecret

import (
	"errors"
	"fmt"
)

// ErrUnknownLength is returned when a byte count is not one of the offered presets.
var ErrUnknownLength = errors.New("secret length is not one of the supported presets")

// LengthOption describes one selectable secret size.
type LengthOption struct {
	Label       string `yaml:"label" mapstructure:"label"`
	Bytes       int    `yaml:"bytes" mapstructure:"bytes"`
	Description string `yaml:"description" mapstructure:"description"`
}

// Chars is the length of the hex rendering of a secret of this size.
func (o LengthOption) Chars() int {
	return o.Bytes * 2
}

func (o LengthOption) String() string {
	return fmt.Sprintf("%s [%d chars]", o.Label, o.Chars())
}

// Presets is the fixed, ordered set of sizes a secret may be generated with.
var Presets = []LengthOption{
	{Label: "Standard (32 bytes)", Bytes: 32, Description: "Official Better Auth recommendation (openssl rand -base64 32)"},
	{Label: "Enhanced (48 bytes)", Bytes: 48, Description: "Higher security for sensitive data"},
	{Label: "Maximum (64 bytes)", Bytes: 64, Description: "Maximum security for enterprise use"},
}

// DefaultPreset is selected before the user picks anything.
func DefaultPreset() LengthOption {
	return Presets[0]
}

// PresetFor looks up the preset with the given byte count.
func PresetFor(bytes int) (LengthOption, error) {
	return Lookup(Presets, bytes)
}

// Lookup finds the option with the given byte count in options.
func Lookup(options []LengthOption, bytes int) (LengthOption, error) {
	for _, o := range options {
		if o.Bytes == bytes {
			return o, nil
		}
	}
	return LengthOption{}, fmt.Errorf("%w: %d bytes", ErrUnknownLength, bytes)
}

// ValidateOptions checks that every option has a positive, unique byte count.
func ValidateOptions(options []LengthOption) error {
	if len(options) == 0 {
		return errors.New("at least one length option is required")
	}
	seen := make(map[int]bool, len(options))
	for _, o := range options {
		if o.Bytes <= 0 {
			return fmt.Errorf("length option %q must have a positive byte count", o.Label)
		}
		if seen[o.Bytes] {
			return fmt.Errorf("duplicate length option for %d bytes", o.Bytes)
		}
		seen[o.Bytes] = true
	}
	return nil
}
