package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gocarina/gocsv"

	"github.com/jonesrussell/newsharvest/internal/domain"
)

// RecordRow is the flat CSV form of a record. Null fields become empty cells.
type RecordRow struct {
	ResponseCode   string `csv:"Response Code"`
	ArticleURL     string `csv:"Article URL"`
	Title          string `csv:"Title"`
	AuthorName     string `csv:"Author Name"`
	AuthorURL      string `csv:"Author URL"`
	ArticleContent string `csv:"Article Content"`
	PublishedDate  string `csv:"Published Date"`
}

type CSVExporter struct{}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func (e *CSVExporter) Extension() string { return FormatCSV }

func (e *CSVExporter) Export(w io.Writer, records []domain.ArticleRecord) error {
	rows := make([]*RecordRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, toRow(rec))
	}

	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func toRow(rec domain.ArticleRecord) *RecordRow {
	return &RecordRow{
		ResponseCode:   strconv.Itoa(rec.ResponseCode),
		ArticleURL:     rec.ArticleURL,
		Title:          deref(rec.Title),
		AuthorName:     deref(rec.AuthorName),
		AuthorURL:      deref(rec.AuthorURL),
		ArticleContent: deref(rec.ArticleContent),
		PublishedDate:  deref(rec.PublishedDate),
	}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
