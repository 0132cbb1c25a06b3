package artifacts

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// WorkbookName is the file name of the XLSX export.
const WorkbookName = "factor_analysis.xlsx"

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return x.Format(dateLayout)
	default:
		return fmt.Sprint(x)
	}
}

// WriteCSV writes t to dir/<name>.csv and returns the path.
func WriteCSV(dir string, t Table) (string, error) {
	path := filepath.Join(dir, t.Name+".csv")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(t.Header); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(t.Header))
	for _, row := range t.Rows {
		for i, cell := range row {
			record[i] = formatCell(cell)
		}
		if err := writer.Write(record[:len(row)]); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("flush csv %s: %w", path, err)
	}
	return path, file.Close()
}

// WriteWorkbook writes all tables to dir/factor_analysis.xlsx, one sheet per table, and
// returns the path. Numbers stay numeric; dates are written as ISO strings.
func WriteWorkbook(dir string, tables []Table) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", t.Name); err != nil {
				return "", fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(t.Name); err != nil {
			return "", fmt.Errorf("create sheet %s: %w", t.Name, err)
		}

		header := make([]interface{}, len(t.Header))
		for j, h := range t.Header {
			header[j] = h
		}
		if err := f.SetSheetRow(t.Name, "A1", &header); err != nil {
			return "", fmt.Errorf("write %s header: %w", t.Name, err)
		}
		for r, row := range t.Rows {
			cells := make([]interface{}, len(row))
			for j, v := range row {
				if d, ok := v.(time.Time); ok {
					cells[j] = d.Format(dateLayout)
				} else {
					cells[j] = v
				}
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return "", err
			}
			if err := f.SetSheetRow(t.Name, cell, &cells); err != nil {
				return "", fmt.Errorf("write %s row %d: %w", t.Name, r+1, err)
			}
		}
	}

	path := filepath.Join(dir, WorkbookName)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook %s: %w", path, err)
	}
	return path, nil
}
