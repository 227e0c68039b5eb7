package reports

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"bitbucket.org/mmdatafocus/integrity_backend/models"
	"github.com/xuri/excelize/v2"
)

const (
	TriageSheet  = "Triage"
	SummarySheet = "Summary"
)

var triageHeaders = []string{
	"ReportId", "Title", "Category", "Severity", "Status", "Source",
	"Score", "Level", "Confidence", "Corroborations", "SubmittedAt", "InvolvedParties",
}

// BuildTriageWorkbook lays out the triage queue, highest risk first, plus an optional summary sheet.
func BuildTriageWorkbook(queue []*models.ScoredReport, stats *models.ReportStatistics) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", TriageSheet); err != nil {
		return nil, err
	}

	for i, h := range triageHeaders {
		if err := setCell(f, TriageSheet, i+1, 1, h); err != nil {
			return nil, err
		}
	}
	for i, s := range queue {
		source := "Employee"
		if s.IsAutomatedFlag {
			source = "Automated"
		}
		row := []interface{}{
			s.ID,
			s.Title,
			string(s.Category),
			string(s.Severity),
			string(s.Status),
			source,
			s.Risk.Score,
			strings.ToUpper(string(s.Risk.Level)),
			s.Risk.Confidence,
			strings.Join(s.Corroborations, ", "),
			s.SubmittedAt.Format("2006-01-02 15:04"),
			s.InvolvedParties,
		}
		for col, v := range row {
			if err := setCell(f, TriageSheet, col+1, i+2, v); err != nil {
				return nil, err
			}
		}
	}

	if stats != nil {
		if _, err := f.NewSheet(SummarySheet); err != nil {
			return nil, err
		}
		rows := [][]interface{}{
			{"Total", stats.Total},
			{"New", stats.NewCount},
			{"InProgress", stats.InProgress},
			{"Resolved", stats.Resolved},
			{"Critical", stats.Critical},
			{"ThisMonth", stats.ThisMonth},
			{"ResolutionRate", fmt.Sprintf("%d%%", stats.ResolutionRate)},
		}
		for i, r := range rows {
			for col, v := range r {
				if err := setCell(f, SummarySheet, col+1, i+1, v); err != nil {
					return nil, err
				}
			}
		}
	}
	return f, nil
}

func WriteTriageWorkbook(w io.Writer, queue []*models.ScoredReport, stats *models.ReportStatistics) error {
	f, err := BuildTriageWorkbook(queue, stats)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func TriageWorkbookBytes(queue []*models.ScoredReport, stats *models.ReportStatistics) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteTriageWorkbook(&buf, queue, stats); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setCell(f *excelize.File, sheet string, col int, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}
