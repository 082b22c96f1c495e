package exporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/models"
	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel", "spreadsheet":
		return FormatXLSX, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string { return string(f) }

// ContentType returns the MIME type for download responses.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// columns is the fixed flat-export column order. The id..url prefix is
// stable; additions only ever append.
var columns = []string{
	"id", "title", "price_amount", "price_currency", "moq",
	"supplier_id", "url", "image_url", "rating", "source_urls",
}

// sourceURLDelimiter joins source URLs in flat formats.
const sourceURLDelimiter = ";"

// Export serializes records into the requested format. It performs no
// I/O; the caller decides where the bytes go.
func Export(records []*models.ProductRecord, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return exportCSV(records)
	case FormatXLSX:
		return exportXLSX(records)
	case FormatJSON:
		return exportJSON(records)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// ImportJSON reverses a JSON export. Together with Export(FormatJSON)
// it round-trips a record set unchanged.
func ImportJSON(data []byte) ([]*models.ProductRecord, error) {
	var records []*models.ProductRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}

func exportJSON(records []*models.ProductRecord) ([]byte, error) {
	if records == nil {
		records = []*models.ProductRecord{}
	}
	return json.MarshalIndent(records, "", "  ")
}

func exportCSV(records []*models.ProductRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(columns); err != nil {
		return nil, err
	}
	for _, rec := range records {
		row := flatRow(rec)
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		if err := w.Write(cells); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exportXLSX(records []*models.ProductRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Products"
	f.SetSheetName("Sheet1", sheet)

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := flatRow(rec)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// flatRow flattens one record following the fixed column order. Flat
// formats carry only the lower price bound.
func flatRow(rec *models.ProductRecord) []interface{} {
	var amount, currency, moq, rating string
	if rec.Price != nil {
		amount = strconv.FormatFloat(rec.Price.Amount, 'f', -1, 64)
		currency = rec.Price.Currency
	}
	if rec.MOQ != nil {
		moq = strconv.Itoa(*rec.MOQ)
	}
	if rec.Rating > 0 {
		rating = strconv.FormatFloat(rec.Rating, 'f', -1, 64)
	}

	return []interface{}{
		rec.ID,
		rec.Title,
		amount,
		currency,
		moq,
		rec.SupplierID,
		rec.URL,
		rec.ImageURL,
		rating,
		strings.Join(rec.SourceURLs, sourceURLDelimiter),
	}
}
