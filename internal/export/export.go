// Package export converts a site's record file into other formats.
package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/jonesrussell/newsharvest/internal/domain"
)

// ErrUnknownFormat is returned by New for unsupported formats.
var ErrUnknownFormat = errors.New("unknown export format")

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

// Exporter writes records to w.
type Exporter interface {
	Export(w io.Writer, records []domain.ArticleRecord) error
	// Extension is the file extension for the format, without the dot.
	Extension() string
}

// New returns the exporter for format.
func New(format string) (Exporter, error) {
	switch format {
	case FormatCSV:
		return NewCSVExporter(), nil
	case FormatJSON:
		return NewJSONExporter(), nil
	case FormatXLSX:
		return NewXLSXExporter(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Formats lists the supported formats.
func Formats() []string {
	return []string{FormatCSV, FormatJSON, FormatXLSX}
}
