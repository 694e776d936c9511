// Package family loads tag families: a layout plus an ordered table of
// accepted code words, from a TOML configuration and a packed binary code
// table, matching the pair-of-files storage format the generator produces.
package family

import (
	"github.com/BurntSushi/toml"

	"github.com/quadtag/apriltag/internal/bitcode"
	"github.com/quadtag/apriltag/internal/layout"
)

// LayoutConfig is the tagged layout variant parsed from the "layout" table
// of a family's TOML configuration.
type LayoutConfig struct {
	Type     string `toml:"type"`
	GridSize int    `toml:"grid_size"`
	Data     string `toml:"data"`
}

// Config is a family's TOML-decoded configuration.
type Config struct {
	Name          string       `toml:"name"`
	MinHamming    int          `toml:"min_hamming"`
	MinComplexity *int         `toml:"min_complexity"`
	Layout        LayoutConfig `toml:"layout"`
}

// TagFamily is a fully loaded family: its configuration, parsed layout,
// ordered code table, and precomputed bit-location list.
type TagFamily struct {
	Config       Config
	Layout       *layout.Layout
	Codes        []uint64
	BitLocations []bitcode.Location
}

// FromConfigAndCodes builds a TagFamily from an already-parsed config and
// code list, constructing the layout and its bit locations.
func FromConfigAndCodes(config Config, codes []uint64) (*TagFamily, error) {
	l, err := buildLayout(config.Layout)
	if err != nil {
		return nil, err
	}
	return &TagFamily{
		Config:       config,
		Layout:       l,
		Codes:        codes,
		BitLocations: l.BitLocations(),
	}, nil
}

// FromTOMLAndBin parses a TOML configuration string and a packed binary
// code table (little-endian uint64 entries) into a TagFamily.
func FromTOMLAndBin(tomlStr string, binData []byte) (*TagFamily, error) {
	var config Config
	if _, err := toml.Decode(tomlStr, &config); err != nil {
		return nil, &Error{Kind: ConfigError, Detail: err.Error(), Err: err}
	}
	codes, err := ParseBinCodes(binData)
	if err != nil {
		return nil, err
	}
	return FromConfigAndCodes(config, codes)
}

func buildLayout(c LayoutConfig) (*layout.Layout, error) {
	switch c.Type {
	case "classic":
		return layout.Classic(c.GridSize)
	case "standard":
		return layout.Standard(c.GridSize)
	case "circle":
		return layout.Circle(c.GridSize)
	case "custom":
		return layout.FromDataString(c.Data)
	default:
		return nil, &Error{Kind: ConfigError, Detail: "unrecognized layout type: " + c.Type}
	}
}

// ParseBinCodes parses a flat array of little-endian uint64 code words.
func ParseBinCodes(data []byte) ([]uint64, error) {
	if len(data)%8 != 0 {
		return nil, &Error{Kind: InvalidBinary, Detail: "binary data length is not a multiple of 8"}
	}
	codes := make([]uint64, len(data)/8)
	for i := range codes {
		off := i * 8
		var v uint64
		for b := 0; b < 8; b++ {
			v |= uint64(data[off+b]) << (8 * uint(b))
		}
		codes[i] = v
	}
	return codes, nil
}
