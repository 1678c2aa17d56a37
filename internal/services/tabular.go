package services

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ConvertTabularToText renders a csv/xls/xlsx file as tab-separated plain
// text at destPath, one row per line. Retrieval indexes handle plain text
// far better than spreadsheet formats.
func ConvertTabularToText(path, destPath string) error {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSVRows(path)
	case ".xls", ".xlsx":
		rows, err = readExcelRows(path)
	default:
		return fmt.Errorf("extension not supported for conversion: %s", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("read tabular file %s: %w", filepath.Base(path), err)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := out.WriteString(strings.Join(row, "\t") + "\n"); err != nil {
			_ = out.Close()
			_ = os.Remove(destPath)
			return fmt.Errorf("write %s: %w", destPath, err)
		}
	}
	return out.Close()
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

func readExcelRows(path string) ([][]string, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return wb.GetRows(sheets[0])
}
