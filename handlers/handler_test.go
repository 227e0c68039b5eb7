package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/integrity_backend/models"
	"bitbucket.org/mmdatafocus/integrity_backend/utils"
	"bitbucket.org/mmdatafocus/integrity_backend/workflow"
	"github.com/gin-gonic/gin"
)

type testApp struct {
	router  *gin.Engine
	reports *models.ReportStore
	ledger  *models.TamperDetector
	outbox  *workflow.Outbox
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	outbox := workflow.NewOutbox(nil)
	reports := models.NewReportStore(nil, outbox)
	ledger := models.NewTamperDetector(reports, nil, outbox)
	ledger.LoadEntries(models.DefaultLedgerEntries())

	h := &Handler{Reports: reports, Ledger: ledger, Outbox: outbox}
	return &testApp{router: NewRouter(h), reports: reports, ledger: ledger, outbox: outbox}
}

func tokenFor(t *testing.T, id string, name string, role string) string {
	t.Helper()
	token, err := utils.JwtGenerate(id, name, role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (a *testApp) do(t *testing.T, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("token", token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)
	if w := app.do(t, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}

func TestSession_RequiresValidToken(t *testing.T) {
	app := newTestApp(t)

	if w := app.do(t, http.MethodGet, "/api/reports/mine", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", w.Code)
	}
	if w := app.do(t, http.MethodGet, "/api/reports/mine", "not-a-jwt", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", w.Code)
	}
}

func TestSubmitReport_AndListMine(t *testing.T) {
	app := newTestApp(t)
	employee := tokenFor(t, "u-1", "Ana Lopez", utils.RoleEmployee)

	w := app.do(t, http.MethodPost, "/api/reports", employee, map[string]any{
		"title":       "Expense padding",
		"description": "Receipts look altered",
		"category":    "fraud",
		"severity":    "medium",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decode[map[string]string](t, w)
	if created["id"] == "" {
		t.Fatalf("expected report id")
	}

	w = app.do(t, http.MethodPost, "/api/reports", employee, map[string]any{
		"title":     "Anonymous tip",
		"category":  "safety",
		"severity":  "high",
		"anonymous": true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("anonymous submit: expected 201, got %d", w.Code)
	}

	w = app.do(t, http.MethodGet, "/api/reports/mine", employee, nil)
	mine := decode[[]models.Report](t, w)
	if len(mine) != 1 || mine[0].ID != created["id"] {
		t.Fatalf("expected only the named report, got %+v", mine)
	}
}

func TestSubmitReport_RejectsInvalidInput(t *testing.T) {
	app := newTestApp(t)
	employee := tokenFor(t, "u-1", "Ana Lopez", utils.RoleEmployee)

	cases := []map[string]any{
		{"title": "", "category": "fraud", "severity": "low"},
		{"title": "   ", "category": "fraud", "severity": "low"},
		{"title": "x", "category": "gossip", "severity": "low"},
		{"title": "x", "category": "fraud", "severity": "urgent"},
	}
	for _, body := range cases {
		if w := app.do(t, http.MethodPost, "/api/reports", employee, body); w.Code != http.StatusBadRequest {
			t.Fatalf("%v: expected 400, got %d", body, w.Code)
		}
	}
	if n := len(app.reports.All()); n != 0 {
		t.Fatalf("invalid submissions must not create reports, got %d", n)
	}
}

func TestSubmitReport_AcceptsFormIncidentDates(t *testing.T) {
	app := newTestApp(t)
	employee := tokenFor(t, "u-1", "Ana Lopez", utils.RoleEmployee)

	cases := []struct {
		incidentDate string
		want         string
	}{
		{incidentDate: "", want: ""},
		{incidentDate: "2025-01-15", want: "2025-01-15"},
		{incidentDate: "2025-01-15T08:30:00Z", want: "2025-01-15"},
	}
	for _, tc := range cases {
		w := app.do(t, http.MethodPost, "/api/reports", employee, map[string]any{
			"title":         "Missing petty cash",
			"category":      "fraud",
			"severity":      "medium",
			"incident_date": tc.incidentDate,
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("incident_date=%q: expected 201, got %d: %s", tc.incidentDate, w.Code, w.Body.String())
		}
		created := decode[map[string]string](t, w)
		report, err := app.reports.Get(created["id"])
		if err != nil {
			t.Fatalf("Get(%s): %v", created["id"], err)
		}
		got := ""
		if report.IncidentDate != nil {
			got = report.IncidentDate.Format(models.LedgerDateLayout)
		}
		if got != tc.want {
			t.Fatalf("incident_date=%q: expected stored %q, got %q", tc.incidentDate, tc.want, got)
		}
	}
}

func TestModeratorRoutes_RequireRole(t *testing.T) {
	app := newTestApp(t)
	employee := tokenFor(t, "u-1", "Ana Lopez", utils.RoleEmployee)

	for _, path := range []string{"/api/reports", "/api/triage", "/api/statistics", "/api/ledger/tamper-logs"} {
		if w := app.do(t, http.MethodGet, path, employee, nil); w.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d", path, w.Code)
		}
	}
	moderator := tokenFor(t, "m-1", "Mo", utils.RoleModerator)
	if w := app.do(t, http.MethodGet, "/internal/ops/outbox", moderator, nil); w.Code != http.StatusForbidden {
		t.Fatalf("ops: expected 403 for moderator, got %d", w.Code)
	}
	admin := tokenFor(t, "a-1", "Ad", utils.RoleAdmin)
	if w := app.do(t, http.MethodGet, "/internal/ops/outbox", admin, nil); w.Code != http.StatusOK {
		t.Fatalf("ops: expected 200 for admin, got %d", w.Code)
	}
}

func TestModeration_StatusAssignAndNotes(t *testing.T) {
	app := newTestApp(t)
	moderator := tokenFor(t, "m-1", "Mo", utils.RoleModerator)
	report := app.reports.CreateReport(&models.NewReport{Title: "Bribe", Category: models.ReportCategoryCorruption, Severity: models.ReportSeverityHigh})
	base := "/api/reports/" + report.ID

	if w := app.do(t, http.MethodPost, base+"/status", moderator, map[string]string{"status": "reviewing"}); w.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", w.Code)
	}
	if w := app.do(t, http.MethodPost, base+"/assign", moderator, map[string]string{"assignee_id": "m-1"}); w.Code != http.StatusOK {
		t.Fatalf("assign: expected 200, got %d", w.Code)
	}
	if w := app.do(t, http.MethodPost, base+"/notes", moderator, map[string]string{"content": "Interviewed vendor"}); w.Code != http.StatusCreated {
		t.Fatalf("note: expected 201, got %d", w.Code)
	}
	if w := app.do(t, http.MethodPost, base+"/notes", moderator, map[string]string{"content": " "}); w.Code != http.StatusBadRequest {
		t.Fatalf("blank note: expected 400, got %d", w.Code)
	}
	if w := app.do(t, http.MethodPost, base+"/status", moderator, map[string]string{"status": "resolved"}); w.Code != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d", w.Code)
	}
	if w := app.do(t, http.MethodPost, base+"/status", moderator, map[string]string{"status": "reviewing"}); w.Code != http.StatusConflict {
		t.Fatalf("reopen: expected 409, got %d", w.Code)
	}
	if w := app.do(t, http.MethodPost, "/api/reports/REP-999999/status", moderator, map[string]string{"status": "reviewing"}); w.Code != http.StatusNotFound {
		t.Fatalf("unknown: expected 404, got %d", w.Code)
	}

	got, _ := app.reports.Get(report.ID)
	if got.Status != models.ReportStatusResolved || len(got.Notes) != 1 || got.Notes[0].AuthorId != "m-1" {
		t.Fatalf("unexpected report state %+v", got)
	}
}

func TestLedger_UpdateRaisesAutomatedReport(t *testing.T) {
	app := newTestApp(t)
	clerk := tokenFor(t, "u-7", "Dana Whit", utils.RoleEmployee)
	moderator := tokenFor(t, "m-1", "Mo", utils.RoleModerator)

	w := app.do(t, http.MethodPatch, "/api/ledger/LED-001", clerk, map[string]string{"field": "amount", "value": "2450.50"})
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[struct {
		Entry     models.LedgerEntry `json:"entry"`
		TamperLog *models.TamperLog  `json:"tamper_log"`
	}](t, w)
	if resp.TamperLog == nil || resp.TamperLog.ReportId == "" || resp.Entry.IsOriginal {
		t.Fatalf("expected tamper log and touched entry, got %+v", resp)
	}

	w = app.do(t, http.MethodGet, "/api/reports/"+resp.TamperLog.ReportId, moderator, nil)
	report := decode[models.Report](t, w)
	if !report.IsAutomatedFlag || report.Submitter == nil || report.Submitter.ID != models.SystemSubmitter.ID {
		t.Fatalf("expected automated report, got %+v", report)
	}

	w = app.do(t, http.MethodGet, "/api/ledger/tamper-logs", moderator, nil)
	if logs := decode[[]models.TamperLog](t, w); len(logs) != 1 || logs[0].UserId != "u-7" {
		t.Fatalf("unexpected tamper logs %+v", logs)
	}

	// same value again: touched, not reported
	w = app.do(t, http.MethodPatch, "/api/ledger/LED-001", clerk, map[string]string{"field": "amount", "value": "2450.5"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"tamper_log":null`) {
		t.Fatalf("unchanged update: expected no tamper log, got %d %s", w.Code, w.Body.String())
	}
}

func TestLedger_ErrorMapping(t *testing.T) {
	app := newTestApp(t)
	clerk := tokenFor(t, "u-7", "Dana Whit", utils.RoleEmployee)

	cases := []struct {
		path string
		body map[string]string
		want int
	}{
		{"/api/ledger/LED-001", map[string]string{"field": "amount", "value": "lots"}, http.StatusBadRequest},
		{"/api/ledger/LED-001", map[string]string{"field": "owner", "value": "x"}, http.StatusBadRequest},
		{"/api/ledger/LED-404", map[string]string{"field": "amount", "value": "1"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		if w := app.do(t, http.MethodPatch, tc.path, clerk, tc.body); w.Code != tc.want {
			t.Fatalf("%s %v: expected %d, got %d", tc.path, tc.body, tc.want, w.Code)
		}
	}

	if w := app.do(t, http.MethodDelete, "/api/ledger/LED-005", clerk, nil); w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}
	if w := app.do(t, http.MethodDelete, "/api/ledger/LED-005", clerk, nil); w.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", w.Code)
	}
	if n := len(app.reports.All()); n != 1 {
		t.Fatalf("expected one automated report from the delete, got %d", n)
	}
}

func TestLedger_AddEntry(t *testing.T) {
	app := newTestApp(t)
	clerk := tokenFor(t, "u-7", "Dana Whit", utils.RoleEmployee)

	w := app.do(t, http.MethodPost, "/api/ledger", clerk, map[string]any{
		"date":        "2025-02-03",
		"description": "Courier",
		"amount":      "42.10",
		"category":    "Operations",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	entry := decode[models.LedgerEntry](t, w)
	if entry.ID != "LED-006" || entry.IsOriginal || entry.Date.String() != "2025-02-03" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if len(app.ledger.TamperLogs()) != 0 {
		t.Fatalf("adding must not log tampering")
	}
}

func TestRiskTriageAndStatistics(t *testing.T) {
	app := newTestApp(t)
	moderator := tokenFor(t, "m-1", "Mo", utils.RoleModerator)
	high := app.reports.CreateReport(&models.NewReport{Title: "Kickbacks", Category: models.ReportCategoryCorruption, Severity: models.ReportSeverityCritical, InvolvedParties: "Finance Director"})
	app.reports.CreateReport(&models.NewReport{Title: "Loud music", Category: models.ReportCategoryOther, Severity: models.ReportSeverityLow})

	w := app.do(t, http.MethodGet, "/api/reports/"+high.ID+"/risk", moderator, nil)
	risk := decode[map[string]any](t, w)
	if risk["formatted"] != "100/100 (CRITICAL)" {
		t.Fatalf("unexpected risk %v", risk)
	}
	if w := app.do(t, http.MethodGet, "/api/reports/REP-999999/risk", moderator, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown risk: expected 404, got %d", w.Code)
	}

	w = app.do(t, http.MethodGet, "/api/triage", moderator, nil)
	queue := decode[[]models.ScoredReport](t, w)
	if len(queue) != 2 || queue[0].ID != high.ID {
		t.Fatalf("expected critical report first, got %+v", queue)
	}
	w = app.do(t, http.MethodGet, "/api/triage?level=critical", moderator, nil)
	if q := decode[[]models.ScoredReport](t, w); len(q) != 1 {
		t.Fatalf("level filter: expected 1, got %d", len(q))
	}
	if w := app.do(t, http.MethodGet, "/api/triage?level=extreme", moderator, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad level: expected 400, got %d", w.Code)
	}

	w = app.do(t, http.MethodGet, "/api/statistics?months=3", moderator, nil)
	stats := decode[models.ReportStatistics](t, w)
	if stats.Total != 2 || stats.Critical != 1 || len(stats.Monthly) != 3 {
		t.Fatalf("unexpected statistics %+v", stats)
	}
	if w := app.do(t, http.MethodGet, "/api/statistics?months=0", moderator, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("months=0: expected 400, got %d", w.Code)
	}
}

func TestExportTriage_ReturnsWorkbook(t *testing.T) {
	app := newTestApp(t)
	moderator := tokenFor(t, "m-1", "Mo", utils.RoleModerator)
	app.reports.CreateReport(&models.NewReport{Title: "Kickbacks", Category: models.ReportCategoryCorruption, Severity: models.ReportSeverityCritical})

	w := app.do(t, http.MethodGet, "/api/triage/export", moderator, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != utils.ContentTypeXLSX {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected a zip based xlsx body")
	}
}

func TestGraphQL_ModeratorQueryAndMutation(t *testing.T) {
	app := newTestApp(t)
	employee := tokenFor(t, "u-1", "Ana Lopez", utils.RoleEmployee)
	moderator := tokenFor(t, "m-1", "Mo", utils.RoleModerator)

	report := app.reports.CreateReport(&models.NewReport{Title: "Expense padding", Category: models.ReportCategoryFraud, Severity: models.ReportSeverityHigh, InvolvedParties: "Finance team"})

	query := map[string]any{"query": `{ reports { id status risk { score level } } }`}
	if w := app.do(t, http.MethodPost, "/api/query", employee, query); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for employee, got %d", w.Code)
	}

	w := app.do(t, http.MethodPost, "/api/query", moderator, query)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	type riskView struct {
		Score int    `json:"score"`
		Level string `json:"level"`
	}
	listed := decode[struct {
		Data struct {
			Reports []struct {
				ID     string   `json:"id"`
				Status string   `json:"status"`
				Risk   riskView `json:"risk"`
			} `json:"reports"`
		} `json:"data"`
	}](t, w)
	want := models.ScoreReport(report, app.reports.All()).Risk
	if len(listed.Data.Reports) != 1 || listed.Data.Reports[0].ID != report.ID {
		t.Fatalf("unexpected reports %+v", listed.Data.Reports)
	}
	if got := listed.Data.Reports[0].Risk; got.Score != want.Score || got.Level != string(want.Level) {
		t.Fatalf("expected risk %d/%s, got %+v", want.Score, want.Level, got)
	}

	mutation := map[string]any{
		"query":     `mutation($id: ID!, $content: String!) { addReportNote(id: $id, content: $content) { authorId authorName content } }`,
		"variables": map[string]any{"id": report.ID, "content": "called the vendor"},
	}
	w = app.do(t, http.MethodPost, "/api/query", moderator, mutation)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	added := decode[struct {
		Data struct {
			AddReportNote struct {
				AuthorId   string `json:"authorId"`
				AuthorName string `json:"authorName"`
				Content    string `json:"content"`
			} `json:"addReportNote"`
		} `json:"data"`
	}](t, w)
	if added.Data.AddReportNote.AuthorId != "m-1" || added.Data.AddReportNote.Content != "called the vendor" {
		t.Fatalf("unexpected note %+v", added.Data.AddReportNote)
	}
	stored, _ := app.reports.Get(report.ID)
	if len(stored.Notes) != 1 || stored.Notes[0].AuthorName != "Mo" {
		t.Fatalf("note not stored with the session author: %+v", stored.Notes)
	}
}
