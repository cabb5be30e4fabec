package excel

import (
	"fmt"
	"io"
	"sort"

	"warpmine/domain/history"

	"github.com/xuri/excelize/v2"
)

const (
	historySheet = "History"
	summarySheet = "Summary"
)

var historyHeaders = []string{"Key", "Timestamp", "Request ID", "Kind", "Duration (ms)", "Error", "Request", "Result"}

// ExportHistory writes entries to a workbook with a History sheet (one row
// per entry) and a Summary sheet (entry and failure counts per kind)
func ExportHistory(w io.Writer, entries []history.Entry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeRow(f, historySheet, 1, toCells(historyHeaders)); err != nil {
		return err
	}
	for i, e := range entries {
		row := []interface{}{
			e.Key, e.Timestamp.String(), e.RequestID.String(), string(e.Kind),
			e.DurationMS, e.Error, string(e.Request), string(e.Result),
		}
		if err := writeRow(f, historySheet, i+2, row); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	if err := f.SetRowStyle(historySheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetPanes(historySheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := writeSummary(f, entries, bold); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, entries []history.Entry, headerStyle int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	type tally struct{ total, failed int }
	counts := map[history.Kind]*tally{}
	for _, e := range entries {
		t, ok := counts[e.Kind]
		if !ok {
			t = &tally{}
			counts[e.Kind] = t
		}
		t.total++
		if e.Error != "" {
			t.failed++
		}
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	if err := writeRow(f, summarySheet, 1, []interface{}{"Kind", "Entries", "Failed"}); err != nil {
		return err
	}
	for i, k := range kinds {
		t := counts[history.Kind(k)]
		if err := writeRow(f, summarySheet, i+2, []interface{}{k, t.total, t.failed}); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(summarySheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style summary header: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toCells(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
