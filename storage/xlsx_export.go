package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"listing-leads/models"
)

const leadsSheet = "Leads"

var leadHeaders = []string{
	"Score", "Estado", "Title", "Zone", "Type", "Price", "Area m²", "€/m²", "Rooms",
	"Phone", "Seller", "Portal", "Sources", "URL", "First Seen", "Updated",
}

var leadColumnWidths = []float64{8, 12, 48, 18, 10, 12, 10, 10, 7, 14, 24, 12, 8, 60, 18, 18}

// XLSXExporter writes one workbook per tenant into a directory.
type XLSXExporter struct {
	dir string
}

func NewXLSXExporter(dir string) *XLSXExporter {
	return &XLSXExporter{dir: dir}
}

// Export writes <dir>/leads-<tenant>.xlsx, replacing any previous export.
func (x *XLSXExporter) Export(tenantID string, leads []*models.Lead) error {
	data, err := LeadsWorkbook(leads)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(x.dir, 0755); err != nil {
		return fmt.Errorf("xlsx: create output dir: %w", err)
	}
	path := filepath.Join(x.dir, "leads-"+tenantID+".xlsx")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("xlsx: write %q: %w", path, err)
	}
	return nil
}

// LeadsWorkbook renders leads into an in-memory workbook with a frozen header row.
func LeadsWorkbook(leads []*models.Lead) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(leadsSheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx: create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("xlsx: drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx: header style: %w", err)
	}

	for col, header := range leadHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(leadsSheet, cell, header); err != nil {
			return nil, fmt.Errorf("xlsx: header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(leadsSheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("xlsx: header style %s: %w", cell, err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(leadsSheet, name, name, leadColumnWidths[col]); err != nil {
			return nil, fmt.Errorf("xlsx: column width: %w", err)
		}
	}

	for i, l := range leads {
		row := []interface{}{
			l.Score, l.Workflow.Estado, l.Title, l.Zone, l.PropertyType,
			optFloat(l.Price), optFloat(l.Area), optFloat(l.PricePerArea), optInt(l.Rooms),
			l.Phone, l.SellerName, l.Portal, len(l.Sources), l.URL,
			l.FirstSeenAt.Format(time.DateTime), l.UpdatedAt.Format(time.DateTime),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(leadsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("xlsx: row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(leadsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("xlsx: freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("xlsx: write: %w", err)
	}
	return buf.Bytes(), nil
}

func optFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func optInt(i *int) interface{} {
	if i == nil {
		return nil
	}
	return *i
}
