package models

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/integrity_backend/utils"
)

// stepClock starts at base and advances one second per call.
func stepClock(base time.Time) Clock {
	var mu sync.Mutex
	next := base
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(time.Second)
		return t
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Enqueue(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) kinds() []EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]EventKind, 0, len(s.events))
	for _, e := range s.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

var testBase = time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)

func newTestStore() (*ReportStore, *recordingSink) {
	sink := &recordingSink{}
	return NewReportStore(stepClock(testBase), sink), sink
}

func employeeReport(title string, category ReportCategory, severity ReportSeverity) *NewReport {
	return &NewReport{
		Title:         title,
		Description:   "Observed during quarterly review",
		Category:      category,
		Severity:      severity,
		SubmitterId:   "u-1",
		SubmitterName: "Ana Lopez",
	}
}

func TestCreateReport_AssignsFreshIdsAndDefaults(t *testing.T) {
	store, sink := newTestStore()

	first := store.CreateReport(employeeReport("Expense padding", ReportCategoryFraud, ReportSeverityMedium))
	second := store.CreateReport(employeeReport("Rude manager", ReportCategoryHarassment, ReportSeverityLow))

	if first.ID != "REP-0000000001" || second.ID != "REP-0000000002" {
		t.Fatalf("unexpected ids %s, %s", first.ID, second.ID)
	}
	if first.Status != ReportStatusNew {
		t.Fatalf("expected status new, got %s", first.Status)
	}
	if len(first.Notes) != 0 {
		t.Fatalf("expected no notes, got %d", len(first.Notes))
	}
	if first.Submitter == nil || first.Submitter.ID != "u-1" || first.Submitter.Name != "Ana Lopez" {
		t.Fatalf("expected submitter identity, got %+v", first.Submitter)
	}
	if !first.SubmittedAt.Equal(testBase) {
		t.Fatalf("expected submitted at store clock, got %s", first.SubmittedAt)
	}
	kinds := sink.kinds()
	if len(kinds) != 2 || kinds[0] != EventKindReportCreated || kinds[1] != EventKindReportCreated {
		t.Fatalf("expected two created events, got %v", kinds)
	}
}

func TestCreateReport_AnonymousStoresNoIdentity(t *testing.T) {
	store, _ := newTestStore()

	input := employeeReport("Safety shortcut", ReportCategorySafety, ReportSeverityHigh)
	input.Anonymous = true
	report := store.CreateReport(input)

	if report.Submitter != nil {
		t.Fatalf("anonymous report kept submitter %+v", report.Submitter)
	}
	if got := store.ListBySubmitter("u-1", "Ana Lopez"); len(got) != 0 {
		t.Fatalf("anonymous report listed for submitter: %d", len(got))
	}
}

func TestCreateReport_AutomatedCarriesSystemSubmitter(t *testing.T) {
	store, _ := newTestStore()

	report := store.CreateReport(&NewReport{
		Title:           "Ledger Tampering Detected - Entry LED-001",
		Category:        ReportCategoryFraud,
		Severity:        ReportSeverityHigh,
		Anonymous:       true,
		SubmitterId:     "u-9",
		IsAutomatedFlag: true,
	})

	if !report.IsAutomatedFlag {
		t.Fatalf("expected automated flag")
	}
	if report.Anonymous {
		t.Fatalf("automated reports are never anonymous")
	}
	if report.Submitter == nil || *report.Submitter != SystemSubmitter {
		t.Fatalf("expected system submitter, got %+v", report.Submitter)
	}
}

func TestUpdateStatus_LifecycleAndTerminalStates(t *testing.T) {
	store, sink := newTestStore()
	report := store.CreateReport(employeeReport("Bid rigging", ReportCategoryCorruption, ReportSeverityHigh))

	for _, status := range []ReportStatus{ReportStatusReviewing, ReportStatusPending, ReportStatusEscalated, ReportStatusReviewing, ReportStatusResolved} {
		updated, err := store.UpdateStatus(report.ID, status)
		if err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
		if updated.Status != status {
			t.Fatalf("expected %s, got %s", status, updated.Status)
		}
	}
	eventsBefore := len(sink.kinds())

	for _, status := range []ReportStatus{ReportStatusReviewing, ReportStatusNew, ReportStatusDismissed} {
		_, err := store.UpdateStatus(report.ID, status)
		if !errors.Is(err, utils.ErrorInvalidTransition) {
			t.Fatalf("expected invalid transition for %s, got %v", status, err)
		}
	}
	got, _ := store.Get(report.ID)
	if got.Status != ReportStatusResolved {
		t.Fatalf("terminal status changed to %s", got.Status)
	}
	if len(sink.kinds()) != eventsBefore {
		t.Fatalf("rejected transitions must not emit events")
	}
}

func TestUpdateStatus_UnknownIdIsNoOp(t *testing.T) {
	store, sink := newTestStore()
	store.CreateReport(employeeReport("Data leak", ReportCategoryData, ReportSeverityCritical))

	if _, err := store.UpdateStatus("REP-999999", ReportStatusReviewing); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Assign("REP-999999", "mod-1"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.AddNote("REP-999999", Submitter{ID: "mod-1"}, "hello"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(sink.kinds()) != 1 {
		t.Fatalf("expected only the create event, got %v", sink.kinds())
	}
}

func TestAssign_RejectedOnClosedReport(t *testing.T) {
	store, _ := newTestStore()
	report := store.CreateReport(employeeReport("Vendor conflict", ReportCategoryConflict, ReportSeverityMedium))

	assigned, err := store.Assign(report.ID, "mod-7")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.AssigneeId == nil || *assigned.AssigneeId != "mod-7" {
		t.Fatalf("expected assignee mod-7, got %v", assigned.AssigneeId)
	}

	if _, err := store.UpdateStatus(report.ID, ReportStatusDismissed); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if _, err := store.Assign(report.ID, "mod-8"); !errors.Is(err, utils.ErrorInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	got, _ := store.Get(report.ID)
	if *got.AssigneeId != "mod-7" {
		t.Fatalf("assignee changed on closed report: %s", *got.AssigneeId)
	}
}

func TestAddNote_AppendsWithFreshIds(t *testing.T) {
	store, _ := newTestStore()
	report := store.CreateReport(employeeReport("Slur in meeting", ReportCategoryDiscrimination, ReportSeverityHigh))

	first, err := store.AddNote(report.ID, Submitter{ID: "mod-1", Name: "Mo"}, "Called witness")
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	second, _ := store.AddNote(report.ID, Submitter{ID: "mod-1", Name: "Mo"}, "Witness confirmed")

	if first.ID == second.ID {
		t.Fatalf("note ids reused: %s", first.ID)
	}
	got, _ := store.Get(report.ID)
	if len(got.Notes) != 2 || got.Notes[0].Content != "Called witness" || got.Notes[1].Content != "Witness confirmed" {
		t.Fatalf("unexpected notes %+v", got.Notes)
	}
	if got.Notes[0].AuthorName != "Mo" {
		t.Fatalf("expected author name, got %q", got.Notes[0].AuthorName)
	}
}

func TestListBySubmitter_MatchesIdOrName(t *testing.T) {
	store, _ := newTestStore()
	store.CreateReport(employeeReport("One", ReportCategoryOther, ReportSeverityLow))

	other := employeeReport("Two", ReportCategoryOther, ReportSeverityLow)
	other.SubmitterId = "u-2"
	store.CreateReport(other)

	renamed := employeeReport("Three", ReportCategoryOther, ReportSeverityLow)
	renamed.SubmitterId = "u-legacy"
	store.CreateReport(renamed)

	byId := store.ListBySubmitter("u-1", "")
	if len(byId) != 1 || byId[0].Title != "One" {
		t.Fatalf("expected one report by id, got %d", len(byId))
	}
	byName := store.ListBySubmitter("", "Ana Lopez")
	if len(byName) != 3 {
		t.Fatalf("expected three reports by name, got %d", len(byName))
	}
	if byName[0].Title != "One" || byName[2].Title != "Three" {
		t.Fatalf("expected creation order, got %s..%s", byName[0].Title, byName[2].Title)
	}
	if got := store.ListBySubmitter("", ""); len(got) != 0 {
		t.Fatalf("empty identity must not match, got %d", len(got))
	}
}

func TestAll_ReturnsIndependentCopies(t *testing.T) {
	store, _ := newTestStore()
	report := store.CreateReport(employeeReport("Petty cash", ReportCategoryFraud, ReportSeverityLow))
	store.AddNote(report.ID, Submitter{ID: "mod-1"}, "first")

	snapshot := store.All()
	snapshot[0].Notes[0].Content = "edited"
	snapshot[0].Status = ReportStatusResolved
	snapshot[0].Submitter.Name = "someone else"

	got, _ := store.Get(report.ID)
	if got.Notes[0].Content != "first" || got.Status != ReportStatusNew || got.Submitter.Name != "Ana Lopez" {
		t.Fatalf("snapshot mutation leaked into store: %+v", got)
	}
}

func TestReportStore_ConcurrentWritersKeepIdsUnique(t *testing.T) {
	store, _ := newTestStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := store.CreateReport(employeeReport("Concurrent", ReportCategoryOther, ReportSeverityLow))
			store.AddNote(r.ID, Submitter{ID: "mod-1"}, "seen")
			_ = store.Statistics()
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, r := range store.All() {
		if seen[r.ID] {
			t.Fatalf("duplicate id %s", r.ID)
		}
		seen[r.ID] = true
		if len(r.Notes) != 1 {
			t.Fatalf("expected one note on %s, got %d", r.ID, len(r.Notes))
		}
	}
	if len(seen) != 50 {
		t.Fatalf("expected 50 reports, got %d", len(seen))
	}
}

func TestCreateReport_IdsSortInCreationOrderPastAMillion(t *testing.T) {
	store, _ := newTestStore()
	store.seq = 999998

	var created []string
	for i := 0; i < 4; i++ {
		created = append(created, store.CreateReport(employeeReport("Bulk", ReportCategoryOther, ReportSeverityLow)).ID)
	}
	sorted := append([]string(nil), created...)
	sort.Strings(sorted)
	for i := range created {
		if sorted[i] != created[i] {
			t.Fatalf("ids do not sort in creation order: created=%v sorted=%v", created, sorted)
		}
	}
}

func TestIncidentDate_AcceptsBlankDateAndTimestamp(t *testing.T) {
	cases := []struct {
		raw  string
		want *time.Time
	}{
		{raw: `{"incident_date": ""}`, want: nil},
		{raw: `{"incident_date": null}`, want: nil},
		{raw: `{}`, want: nil},
		{raw: `{"incident_date": "2025-01-15"}`, want: ptrTime(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))},
		{raw: `{"incident_date": "2025-01-15T08:30:00Z"}`, want: ptrTime(time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC))},
	}
	for _, tc := range cases {
		var input NewReport
		if err := json.Unmarshal([]byte(tc.raw), &input); err != nil {
			t.Fatalf("%s: %v", tc.raw, err)
		}
		got := input.IncidentDate.Time
		if (got == nil) != (tc.want == nil) || (got != nil && !got.Equal(*tc.want)) {
			t.Fatalf("%s: expected %v, got %v", tc.raw, tc.want, got)
		}
	}

	var input NewReport
	if err := json.Unmarshal([]byte(`{"incident_date": "last tuesday"}`), &input); err == nil {
		t.Fatalf("expected an error for an unparseable date")
	}

	store, _ := newTestStore()
	withDate := employeeReport("Dated", ReportCategoryOther, ReportSeverityLow)
	withDate.IncidentDate = NewIncidentDate(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	report := store.CreateReport(withDate)
	if report.IncidentDate == nil || report.IncidentDate.Format(LedgerDateLayout) != "2025-01-15" {
		t.Fatalf("expected incident date to be stored, got %v", report.IncidentDate)
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
