package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/jonesrussell/newsharvest/internal/domain"
)

// SheetName is the worksheet holding exported records.
const SheetName = "Records"

var xlsxHeader = []any{
	"Response Code", "Article URL", "Title", "Author Name",
	"Author URL", "Article Content", "Published Date",
}

type XLSXExporter struct{}

func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

func (e *XLSXExporter) Extension() string { return FormatXLSX }

// Export writes one header row and one row per record. Response codes stay numeric.
func (e *XLSXExporter) Export(w io.Writer, records []domain.ArticleRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &xlsxHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			rec.ResponseCode,
			rec.ArticleURL,
			deref(rec.Title),
			deref(rec.AuthorName),
			deref(rec.AuthorURL),
			deref(rec.ArticleContent),
			deref(rec.PublishedDate),
		}
		if err = f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
