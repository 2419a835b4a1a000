// Package export serialises the merged and flat datasets and checks that what
// was written reads back to the same shape.
package export

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Format is an output serialisation.
type Format string

const (
	// FormatNQuads keeps named graphs; it is the only format for the merged
	// dataset that preserves contexts line by line.
	FormatNQuads Format = "nquads"

	// FormatTurtle is used for the flat graph, which has no named graphs.
	FormatTurtle Format = "turtle"

	// FormatJSONLD serves both datasets.
	FormatJSONLD Format = "jsonld"
)

// ErrUnknownFormat is returned for a path whose extension maps to no format.
var ErrUnknownFormat = errors.New("unknown output format")

// FormatInfo provides metadata about an output format.
type FormatInfo struct {
	Name      Format
	MIMEType  string
	Extension string
	// Quads reports whether the format can carry named graphs.
	Quads bool
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatNQuads: {
		Name:      FormatNQuads,
		MIMEType:  "application/n-quads",
		Extension: ".nq",
		Quads:     true,
	},
	FormatTurtle: {
		Name:      FormatTurtle,
		MIMEType:  "text/turtle",
		Extension: ".ttl",
	},
	FormatJSONLD: {
		Name:      FormatJSONLD,
		MIMEType:  "application/ld+json",
		Extension: ".jsonld",
		Quads:     true,
	},
}

// FormatFor picks the format of an output path from its extension.
func FormatFor(path string) (FormatInfo, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, info := range FormatRegistry {
		if info.Extension == ext {
			return info, nil
		}
	}
	return FormatInfo{}, errors.Wrapf(ErrUnknownFormat, "%s", path)
}
