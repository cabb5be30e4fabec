// Package excel imports region profiles from spreadsheets and exports the
// audit log to xlsx workbooks
package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"warpmine/domain/core"
	"warpmine/domain/geology"

	"github.com/xuri/excelize/v2"
)

// RegionReader handles reading region profiles from Excel and CSV files.
// The first sheet (or the CSV) must have a header row naming region_id and
// the four feature columns; other columns are ignored.
type RegionReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

// NewRegionReader creates a reader for path, choosing the format by extension
func NewRegionReader(filePath string) *RegionReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &RegionReader{filePath: filePath, fileType: fileType}
}

var regionColumns = []string{
	"region_id",
	geology.FeatureSoilAnomaly,
	geology.FeatureStructural,
	geology.FeatureAlteration,
	geology.FeatureGeophysical,
}

// ReadRegions parses every data row into a profile. Values are not range
// checked here; the exploration engine validates them.
func (r *RegionReader) ReadRegions() ([]geology.RegionProfile, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSV()
	default:
		rows, err = r.readExcel()
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s file must have a header row and at least one region", strings.ToUpper(r.fileType))
	}
	return processRows(rows)
}

func (r *RegionReader) readExcel() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("Excel file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheets[0], err)
	}
	return rows, nil
}

func (r *RegionReader) readCSV() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func processRows(rows [][]string) ([]geology.RegionProfile, error) {
	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range regionColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	cell := func(row []string, col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []geology.RegionProfile
	for n, row := range rows[1:] {
		line := n + 2
		id := cell(row, "region_id")
		if id == "" && allEmpty(row) {
			continue
		}
		values := make([]float64, 4)
		for i, col := range regionColumns[1:] {
			raw := cell(row, col)
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %s: %q is not a number", line, col, raw)
			}
			values[i] = v
		}
		out = append(out, geology.RegionProfile{
			RegionID: core.RegionID(id),
			Features: geology.Features{
				SoilAnomalyIndex:       values[0],
				StructuralControlScore: values[1],
				AlterationIndex:        values[2],
				GeophysicalSignature:   values[3],
			},
		})
	}
	return out, nil
}

func allEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
