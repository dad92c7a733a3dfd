package models

import "time"

// HistoryType distinguishes remarks from stage transitions.
type HistoryType string

const (
	HistoryRemark HistoryType = "remark"
	HistoryStage  HistoryType = "stage"
)

// HistoryEntry is one immutable record in a lead's timeline.
type HistoryEntry struct {
	Type      HistoryType `json:"type"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	User      string      `json:"user"`
	From      Stage       `json:"from,omitempty"`
	To        Stage       `json:"to,omitempty"`
}

// Lead is a prospective student moving through the funnel.
type Lead struct {
	ID             string         `json:"id"`
	StudentName    string         `json:"student_name"`
	PhoneNumber    string         `json:"phone_number"`
	Date           time.Time      `json:"date"`
	CourseSelected string         `json:"course_selected"`
	Stage          Stage          `json:"stage"`
	Origin         string         `json:"origin"`
	AssignedTo     string         `json:"assigned_to,omitempty"`
	LastUpdated    *time.Time     `json:"last_updated,omitempty"`
	Remarks        string         `json:"remarks,omitempty"`
	History        []HistoryEntry `json:"history"`
}

// Clone returns a deep copy so callers never share history slices or timestamps.
func (l Lead) Clone() Lead {
	out := l
	if l.LastUpdated != nil {
		ts := *l.LastUpdated
		out.LastUpdated = &ts
	}
	out.History = make([]HistoryEntry, len(l.History))
	copy(out.History, l.History)
	return out
}

// IsAssigned reports whether a counselor owns the lead.
func (l Lead) IsAssigned() bool {
	return l.AssignedTo != ""
}

// LeadInput carries the fields accepted when creating a lead.
type LeadInput struct {
	StudentName    string     `json:"student_name" validate:"required,max=120"`
	PhoneNumber    string     `json:"phone_number" validate:"required,numeric,min=7,max=15"`
	CourseSelected string     `json:"course_selected" validate:"required,max=120"`
	Origin         string     `json:"origin" validate:"required,max=60"`
	Stage          Stage      `json:"stage,omitempty"`
	AssignedTo     string     `json:"assigned_to,omitempty"`
	Date           *time.Time `json:"date,omitempty"`
	Remarks        string     `json:"remarks,omitempty"`
}

// LeadPatch is a shallow merge; nil fields are left untouched. History, when
// present, replaces the stored sequence and must extend it.
type LeadPatch struct {
	StudentName    *string         `json:"student_name,omitempty"`
	PhoneNumber    *string         `json:"phone_number,omitempty"`
	Date           *time.Time      `json:"date,omitempty"`
	CourseSelected *string         `json:"course_selected,omitempty"`
	Stage          *Stage          `json:"stage,omitempty"`
	Origin         *string         `json:"origin,omitempty"`
	AssignedTo     *string         `json:"assigned_to,omitempty"`
	LastUpdated    *time.Time      `json:"last_updated,omitempty"`
	Remarks        *string         `json:"remarks,omitempty"`
	History        *[]HistoryEntry `json:"history,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p LeadPatch) IsEmpty() bool {
	return p.StudentName == nil && p.PhoneNumber == nil && p.Date == nil &&
		p.CourseSelected == nil && p.Stage == nil && p.Origin == nil &&
		p.AssignedTo == nil && p.LastUpdated == nil && p.Remarks == nil && p.History == nil
}

// LeadView is a lead as rendered in listings.
type LeadView struct {
	Lead
	Overdue bool `json:"overdue"`
}

// LeadList is one page of the lead management table.
type LeadList struct {
	Items []LeadView `json:"items"`
	Total int        `json:"total"`
	Sort  SortState  `json:"sort"`
	Range *TimeRange `json:"range,omitempty"`
}

// AssignResult reports how many leads a bulk assignment touched.
type AssignResult struct {
	Counselor string `json:"counselor"`
	Updated   int    `json:"updated"`
}
