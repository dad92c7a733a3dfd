package dto

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/leadflow-api/internal/models"
	appErrors "github.com/noah-isme/leadflow-api/pkg/errors"
)

const dateLayout = "2006-01-02"

// RangeQuery carries a date range selection from the query string.
type RangeQuery struct {
	Range string `form:"range"`
	Start string `form:"start"`
	End   string `form:"end"`
}

// Selection converts the query into a selection. Dates are YYYY-MM-DD in loc
// or RFC 3339 timestamps. Supplying start or end without a range implies custom.
func (q RangeQuery) Selection(loc *time.Location) (models.DateRangeSelection, error) {
	sel := models.DateRangeSelection{Preset: models.DatePreset(strings.ToLower(strings.TrimSpace(q.Range)))}
	start, err := parseDate("start", q.Start, loc)
	if err != nil {
		return sel, err
	}
	end, err := parseDate("end", q.End, loc)
	if err != nil {
		return sel, err
	}
	sel.Start, sel.End = start, end
	if sel.Preset == "" && (start != nil || end != nil) {
		sel.Preset = models.PresetCustom
	}
	return sel, nil
}

// IsZero reports whether no range parameter was given.
func (q RangeQuery) IsZero() bool {
	return strings.TrimSpace(q.Range) == "" && strings.TrimSpace(q.Start) == "" && strings.TrimSpace(q.End) == ""
}

// LeadListQuery binds lead table filters.
type LeadListQuery struct {
	RangeQuery
	Search     string `form:"search"`
	Stage      string `form:"stage"`
	Origin     string `form:"origin"`
	Course     string `form:"course"`
	AssignedTo string `form:"assigned_to"`
	Sort       string `form:"sort"`
	Direction  string `form:"direction"`
}

// ToQuery converts the bound values into a lead query.
func (q LeadListQuery) ToQuery(loc *time.Location) (models.LeadQuery, error) {
	out := models.LeadQuery{
		Search:     q.Search,
		Origin:     strings.TrimSpace(q.Origin),
		Course:     strings.TrimSpace(q.Course),
		AssignedTo: strings.TrimSpace(q.AssignedTo),
	}
	if raw := strings.TrimSpace(q.Stage); raw != "" {
		stage, ok := models.ParseStage(raw)
		if !ok {
			return out, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown stage %q", raw))
		}
		out.Stage = stage
	}
	if key := strings.TrimSpace(q.Sort); key != "" {
		dir := models.SortDirection(strings.ToLower(strings.TrimSpace(q.Direction)))
		if dir == "" {
			dir = models.SortAsc
		}
		out.Sort = models.SortState{Key: models.SortKey(key), Direction: dir}
	}
	if !q.RangeQuery.IsZero() {
		sel, err := q.RangeQuery.Selection(loc)
		if err != nil {
			return out, err
		}
		out.DateRange = &sel
	}
	return out, nil
}

// ExportQuery binds export parameters.
type ExportQuery struct {
	LeadListQuery
	Format string `form:"format"`
}

// LeadDetailsRequest carries the lead fields editable through PATCH.
type LeadDetailsRequest struct {
	StudentName    *string    `json:"student_name"`
	PhoneNumber    *string    `json:"phone_number" binding:"omitempty,numeric,min=7,max=15"`
	Date           *time.Time `json:"date"`
	CourseSelected *string    `json:"course_selected"`
	Origin         *string    `json:"origin"`
	AssignedTo     *string    `json:"assigned_to"`
	Remarks        *string    `json:"remarks"`

	Stage       json.RawMessage `json:"stage,omitempty" swaggerignore:"true"`
	History     json.RawMessage `json:"history,omitempty" swaggerignore:"true"`
	LastUpdated json.RawMessage `json:"last_updated,omitempty" swaggerignore:"true"`
}

// ReadOnlyFields names the fields present in the request that PATCH may not set.
func (r LeadDetailsRequest) ReadOnlyFields() []string {
	var fields []string
	for name, raw := range map[string]json.RawMessage{"history": r.History, "last_updated": r.LastUpdated, "stage": r.Stage} {
		if len(raw) > 0 {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return fields
}

// ToPatch converts the request into a store patch.
func (r LeadDetailsRequest) ToPatch() models.LeadPatch {
	return models.LeadPatch{
		StudentName:    r.StudentName,
		PhoneNumber:    r.PhoneNumber,
		Date:           r.Date,
		CourseSelected: r.CourseSelected,
		Origin:         r.Origin,
		AssignedTo:     r.AssignedTo,
		Remarks:        r.Remarks,
	}
}

// AssignRequest hands leads to a counselor.
type AssignRequest struct {
	Counselor string   `json:"counselor" binding:"required"`
	LeadIDs   []string `json:"lead_ids" binding:"required,min=1"`
}

// StageChangeRequest moves a lead to another stage.
type StageChangeRequest struct {
	Stage  string `json:"stage" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// RemarkRequest appends a remark.
type RemarkRequest struct {
	Text string `json:"text" binding:"required"`
}

// MessageRequest selects a template or custom body for a set of leads.
type MessageRequest struct {
	Template string   `json:"template"`
	Body     string   `json:"body"`
	LeadIDs  []string `json:"lead_ids" binding:"required,min=1"`
}

// MessagePreviewResponse lists resolved messages.
type MessagePreviewResponse struct {
	Messages []models.ComposedMessage `json:"messages"`
	Skipped  []string                 `json:"skipped,omitempty"`
}

// CounselorsResponse lists valid assignment targets.
type CounselorsResponse struct {
	Counselors []string `json:"counselors"`
}

// StagesResponse describes the stage vocabulary.
type StagesResponse struct {
	Stages               []models.StageMeta `json:"stages"`
	OverdueThresholdDays int                `json:"overdue_threshold_days"`
}

func parseDate(field, raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(dateLayout, raw, loc); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid %s date, expected YYYY-MM-DD", field))
}
