package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jonesrussell/newsharvest/internal/domain"
)

type JSONExporter struct{}

func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

func (e *JSONExporter) Extension() string { return FormatJSON }

// Export writes the records as an indented JSON array, keeping nulls.
func (e *JSONExporter) Export(w io.Writer, records []domain.ArticleRecord) error {
	if records == nil {
		records = []domain.ArticleRecord{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
