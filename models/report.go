package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/integrity_backend/utils"
)

// SystemSubmitter is the fixed identity carried by every automated report.
var SystemSubmitter = Submitter{
	ID:   "system",
	Name: "JJF - Automated Detection",
}

type Submitter struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Note struct {
	ID         string    `json:"id"`
	AuthorId   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

type Report struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Category        ReportCategory `json:"category"`
	Severity        ReportSeverity `json:"severity"`
	SubmittedAt     time.Time      `json:"submitted_at"`
	IncidentDate    *time.Time     `json:"incident_date,omitempty"`
	InvolvedParties string         `json:"involved_parties,omitempty"`
	Evidence        string         `json:"evidence,omitempty"`
	Anonymous       bool           `json:"anonymous"`
	Submitter       *Submitter     `json:"submitter,omitempty"`
	IsAutomatedFlag bool           `json:"is_automated_flag"`
	Status          ReportStatus   `json:"status"`
	AssigneeId      *string        `json:"assignee_id,omitempty"`
	Notes           []Note         `json:"notes"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NewReport is the submission input. Submitter and automation fields are set by the caller
// (session identity or the tamper detector), never by the request body.
type NewReport struct {
	Title           string         `json:"title" binding:"required,notblank"`
	Description     string         `json:"description"`
	Category        ReportCategory `json:"category" binding:"required"`
	Severity        ReportSeverity `json:"severity" binding:"required"`
	IncidentDate    IncidentDate   `json:"incident_date"`
	InvolvedParties string         `json:"involved_parties"`
	Evidence        string         `json:"evidence"`
	Anonymous       bool           `json:"anonymous"`

	SubmitterId     string     `json:"-"`
	SubmitterName   string     `json:"-"`
	IsAutomatedFlag bool       `json:"-"`
	SubmittedAt     *time.Time `json:"-"`
}

// IncidentDate is the optional incident date of a submission. It accepts null, "",
// YYYY-MM-DD or RFC3339; blank means no date was given.
type IncidentDate struct {
	Time *time.Time
}

func NewIncidentDate(t time.Time) IncidentDate {
	return IncidentDate{Time: &t}
}

func (d IncidentDate) MarshalJSON() ([]byte, error) {
	if d.Time == nil {
		return []byte("null"), nil
	}
	return json.Marshal(d.Time)
}

func (d *IncidentDate) UnmarshalJSON(b []byte) error {
	var str *string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("incident date must be string")
	}
	d.Time = nil
	if str == nil || strings.TrimSpace(*str) == "" {
		return nil
	}
	value := strings.TrimSpace(*str)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		d.Time = &t
		return nil
	}
	if t, err := time.Parse(LedgerDateLayout, value); err == nil {
		d.Time = &t
		return nil
	}
	return errors.New("incident date must be YYYY-MM-DD or RFC3339")
}

// Clock returns the current time; stores take one so tests can pin "now".
type Clock func() time.Time

// ReportStore owns every report and note. All mutation goes through its methods;
// readers get deep copies so they never observe a half-applied change.
type ReportStore struct {
	mu      sync.RWMutex
	reports []*Report
	index   map[string]*Report
	seq     int
	noteSeq int
	now     Clock
	sink    EventSink
}

// NewReportStore builds an empty store. clock and sink may be nil.
func NewReportStore(clock Clock, sink EventSink) *ReportStore {
	if clock == nil {
		clock = time.Now
	}
	return &ReportStore{
		index: make(map[string]*Report),
		now:   clock,
		sink:  sink,
	}
}

func (s *ReportStore) CreateReport(input *NewReport) *Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.seq++
	report := &Report{
		ID:              fmt.Sprintf("REP-%010d", s.seq),
		Title:           input.Title,
		Description:     input.Description,
		Category:        input.Category,
		Severity:        input.Severity,
		SubmittedAt:     utils.DereferencePtr(input.SubmittedAt, now),
		InvolvedParties: input.InvolvedParties,
		Evidence:        input.Evidence,
		Anonymous:       input.Anonymous,
		IsAutomatedFlag: input.IsAutomatedFlag,
		Status:          ReportStatusNew,
		Notes:           []Note{},
		UpdatedAt:       now,
	}
	if input.IncidentDate.Time != nil {
		d := *input.IncidentDate.Time
		report.IncidentDate = &d
	}

	switch {
	case input.IsAutomatedFlag:
		submitter := SystemSubmitter
		report.Submitter = &submitter
		report.Anonymous = false
	case input.Anonymous:
		report.Submitter = nil
	case input.SubmitterId != "" || input.SubmitterName != "":
		report.Submitter = &Submitter{ID: input.SubmitterId, Name: input.SubmitterName}
	}

	s.reports = append(s.reports, report)
	s.index[report.ID] = report
	s.emit(EventKindReportCreated, report)
	return report.clone()
}

// UpdateStatus moves a report through the review lifecycle.
// Unknown ids return ErrorRecordNotFound; closed reports return ErrorInvalidTransition.
// In both cases nothing changes.
func (s *ReportStore) UpdateStatus(id string, status ReportStatus) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.index[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	if report.Status.IsTerminal() || !status.IsValid() {
		return report.clone(), utils.ErrorInvalidTransition
	}
	if report.Status == status {
		return report.clone(), nil
	}
	report.Status = status
	report.UpdatedAt = s.now()
	s.emit(EventKindReportUpdated, report)
	return report.clone(), nil
}

func (s *ReportStore) Assign(id string, assigneeId string) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.index[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	if report.Status.IsTerminal() {
		return report.clone(), utils.ErrorInvalidTransition
	}
	report.AssigneeId = utils.NilIfEmpty(assigneeId)
	report.UpdatedAt = s.now()
	s.emit(EventKindReportUpdated, report)
	return report.clone(), nil
}

// AddNote appends an investigation note. Notes are accepted in every status.
func (s *ReportStore) AddNote(id string, author Submitter, content string) (*Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.index[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	now := s.now()
	s.noteSeq++
	note := Note{
		ID:         fmt.Sprintf("NOTE-%010d", s.noteSeq),
		AuthorId:   author.ID,
		AuthorName: author.Name,
		Content:    content,
		CreatedAt:  now,
	}
	report.Notes = append(report.Notes, note)
	report.UpdatedAt = now
	s.emit(EventKindReportUpdated, report)
	return &note, nil
}

func (s *ReportStore) Get(id string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.index[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return report.clone(), nil
}

// All returns a point-in-time copy of every report in creation order.
func (s *ReportStore) All() []*Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*Report, 0, len(s.reports))
	for _, r := range s.reports {
		results = append(results, r.clone())
	}
	return results
}

// ListBySubmitter matches on submitter id or display name. Anonymous reports never match.
func (s *ReportStore) ListBySubmitter(submitterId string, submitterName string) []*Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*Report, 0)
	for _, r := range s.reports {
		if r.Anonymous || r.Submitter == nil {
			continue
		}
		if (submitterId != "" && r.Submitter.ID == submitterId) ||
			(submitterName != "" && r.Submitter.Name == submitterName) {
			results = append(results, r.clone())
		}
	}
	return results
}

func (s *ReportStore) Statistics() ReportStatistics {
	return ComputeStatistics(s.All(), s.now())
}

// Now exposes the store clock so read-side projections share it.
func (s *ReportStore) Now() time.Time {
	return s.now()
}

// caller holds s.mu
func (s *ReportStore) emit(kind EventKind, report *Report) {
	if s.sink == nil {
		return
	}
	s.sink.Enqueue(NewReportEvent(kind, report.clone(), s.now()))
}

func (r *Report) clone() *Report {
	c := *r
	if r.IncidentDate != nil {
		d := *r.IncidentDate
		c.IncidentDate = &d
	}
	if r.Submitter != nil {
		sub := *r.Submitter
		c.Submitter = &sub
	}
	if r.AssigneeId != nil {
		a := *r.AssigneeId
		c.AssigneeId = &a
	}
	c.Notes = make([]Note, len(r.Notes))
	copy(c.Notes, r.Notes)
	return &c
}
