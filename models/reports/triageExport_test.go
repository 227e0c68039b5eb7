package reports

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/integrity_backend/models"
	"github.com/xuri/excelize/v2"
)

func TestBuildTriageWorkbook_RowsFollowQueueOrder(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	all := []*models.Report{
		{ID: "REP-000001", Title: "Loud music", Category: models.ReportCategoryOther, Severity: models.ReportSeverityLow, Status: models.ReportStatusNew, SubmittedAt: now},
		{ID: "REP-000002", Title: "Kickbacks", Category: models.ReportCategoryCorruption, Severity: models.ReportSeverityCritical, Status: models.ReportStatusNew, SubmittedAt: now.Add(-60 * 24 * time.Hour), IsAutomatedFlag: true},
	}
	queue := models.BuildTriageQueue(all, models.TriageFilter{})
	stats := models.ComputeStatistics(all, now)

	f, err := BuildTriageWorkbook(queue, &stats)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer f.Close()

	assertCell(t, f, TriageSheet, "A1", "ReportId")
	assertCell(t, f, TriageSheet, "A2", "REP-000002")
	assertCell(t, f, TriageSheet, "F2", "Automated")
	assertCell(t, f, TriageSheet, "H2", "CRITICAL")
	assertCell(t, f, TriageSheet, "A3", "REP-000001")
	assertCell(t, f, SummarySheet, "B1", "2")
}

func TestTriageWorkbookBytes_WithoutSummary(t *testing.T) {
	data, err := TriageWorkbookBytes(nil, nil)
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected workbook bytes")
	}
}

func assertCell(t *testing.T, f *excelize.File, sheet string, cell string, want string) {
	t.Helper()
	got, err := f.GetCellValue(sheet, cell)
	if err != nil {
		t.Fatalf("%s!%s: %v", sheet, cell, err)
	}
	if got != want {
		t.Fatalf("%s!%s: expected %q, got %q", sheet, cell, want, got)
	}
}
