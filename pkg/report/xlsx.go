package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
)

// Sheet names in exported workbooks.
const (
	SheetSummary      = "Summary"
	SheetFindings     = "Findings"
	SheetRepositories = "Repositories"
)

var (
	findingsHeader = []any{"Source", "Kind", "Language", "Score", "Vulnerabilities", "Details", "Error"}
	reposHeader    = []any{"Repository", "Description", "Language", "Private", "Stars", "Updated", "URL"}
)

// WriteXLSX saves the report as a workbook at path.
func WriteXLSX(path string, r Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return wrapXLSX(err, path)
	}
	for _, name := range []string{SheetFindings, SheetRepositories} {
		if _, err := f.NewSheet(name); err != nil {
			return wrapXLSX(err, path)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return wrapXLSX(err, path)
	}

	if err := writeSummary(f, r, bold); err != nil {
		return wrapXLSX(err, path)
	}

	rows := make([][]any, 0, len(r.Findings))
	for _, fd := range r.Findings {
		rows = append(rows, []any{
			fd.Source, fd.Kind, fd.Language, fd.SecurityScore, fd.VulnerabilityCount,
			strings.Join(fd.Vulnerabilities, "; "), fd.Error,
		})
	}
	if err := writeTable(f, SheetFindings, findingsHeader, rows, bold); err != nil {
		return wrapXLSX(err, path)
	}

	rows = rows[:0]
	for _, repo := range r.Repositories {
		rows = append(rows, []any{
			repo.Key(), repo.Description, repo.Language, repo.Private, repo.Stars, repo.UpdatedAt, repo.URL,
		})
	}
	if err := writeTable(f, SheetRepositories, reposHeader, rows, bold); err != nil {
		return wrapXLSX(err, path)
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return verrors.Wrap(err, verrors.ErrCodeStorageWrite, "save workbook").WithContext("path", path)
	}
	return nil
}

func writeSummary(f *excelize.File, r Report, bold int) error {
	sum := r.Summarize()
	generated := ""
	if !r.GeneratedAt.IsZero() {
		generated = r.GeneratedAt.UTC().Format(time.RFC3339)
	}
	rows := [][]any{
		{"Title", r.Title},
		{"Generated", generated},
		{"Account", r.Account},
		{"Sources analyzed", sum.Sources},
		{"Failed", sum.Failed},
		{"Vulnerabilities", sum.Vulnerabilities},
		{"Average score", sum.AverageScore},
		{"Lowest score", sum.LowestScore},
		{"Lowest source", sum.LowestSource},
		{"Repositories", len(r.Repositories)},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetSummary, "A1", "A"+strconv.Itoa(len(rows)), bold); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "A", "A", 20)
}

func writeTable(f *excelize.File, sheet string, header []any, rows [][]any, bold int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func wrapXLSX(err error, path string) error {
	return verrors.Wrap(err, verrors.ErrCodeInternal, "build workbook").WithContext("path", path)
}
