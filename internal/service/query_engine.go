package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/leadflow-api/internal/models"
	appErrors "github.com/noah-isme/leadflow-api/pkg/errors"
)

const day = 24 * time.Hour

var presetDays = map[models.DatePreset]int{
	models.Preset7Days:  7,
	models.Preset15Days: 15,
	models.Preset30Days: 30,
	models.Preset1Month: 30,
	models.Preset90Days: 90,
}

// QueryEngine resolves date windows and produces filtered, sorted lead views.
type QueryEngine struct {
	now func() time.Time
	loc *time.Location
}

// NewQueryEngine builds an engine whose calendar arithmetic happens in loc.
func NewQueryEngine(now func() time.Time, loc *time.Location) *QueryEngine {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &QueryEngine{now: now, loc: loc}
}

// Location returns the calendar location used for day boundaries.
func (e *QueryEngine) Location() *time.Location {
	return e.loc
}

// DefaultPreset is used when a selection is empty or an incomplete custom range.
func DefaultPreset(variant models.RangeVariant) models.DatePreset {
	if variant == models.VariantReport {
		return models.Preset7Days
	}
	return models.PresetToday
}

// ResolveDateRange turns a preset or custom selection into concrete instants.
//
// Dashboard presets start at local midnight N days ago; report presets start
// exactly N*24h before now. Both end at now. "yesterday" is half-open and
// "custom" spans whole local days.
func (e *QueryEngine) ResolveDateRange(sel models.DateRangeSelection, variant models.RangeVariant) (models.TimeRange, error) {
	now := e.now().In(e.loc)
	midnight := startOfDay(now)

	preset := sel.Preset
	if preset == "" || (preset == models.PresetCustom && (sel.Start == nil || sel.End == nil)) {
		preset = DefaultPreset(variant)
	}

	switch preset {
	case models.PresetToday:
		return models.TimeRange{Start: midnight, End: now, Preset: preset}, nil
	case models.PresetYesterday:
		return models.TimeRange{Start: midnight.AddDate(0, 0, -1), End: midnight, EndExclusive: true, Preset: preset}, nil
	case models.PresetCustom:
		start := startOfDay(sel.Start.In(e.loc))
		end := endOfDay(sel.End.In(e.loc))
		if start.After(end) {
			return models.TimeRange{}, appErrors.Clone(appErrors.ErrValidation, "start date must not be after end date")
		}
		return models.TimeRange{Start: start, End: end, Preset: preset}, nil
	}

	n, ok := presetDays[preset]
	if !ok {
		return models.TimeRange{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown date range %q", preset))
	}
	if variant == models.VariantReport {
		return models.TimeRange{Start: now.Add(-time.Duration(n) * day), End: now, Preset: preset}, nil
	}
	return models.TimeRange{Start: midnight.AddDate(0, 0, -n), End: now, Preset: preset}, nil
}

// Window keeps leads whose inquiry date falls inside r.
func (e *QueryEngine) Window(leads []models.Lead, r models.TimeRange) []models.Lead {
	out := make([]models.Lead, 0, len(leads))
	for _, l := range leads {
		if r.Contains(l.Date) {
			out = append(out, l)
		}
	}
	return out
}

// Filter applies search and equality filters, ANDed together. Empty values do not constrain.
func (e *QueryEngine) Filter(leads []models.Lead, q models.LeadQuery) []models.Lead {
	search := strings.TrimSpace(q.Search)
	needle := strings.ToLower(search)
	out := make([]models.Lead, 0, len(leads))
	for _, l := range leads {
		if search != "" &&
			!strings.Contains(strings.ToLower(l.StudentName), needle) &&
			!strings.Contains(l.PhoneNumber, search) &&
			!strings.Contains(strings.ToLower(l.CourseSelected), needle) {
			continue
		}
		if q.Stage != "" && l.Stage != q.Stage {
			continue
		}
		if q.Origin != "" && l.Origin != q.Origin {
			continue
		}
		if q.Course != "" && l.CourseSelected != q.Course {
			continue
		}
		if q.AssignedTo != "" && l.AssignedTo != q.AssignedTo {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Sort orders leads by key without disturbing the relative order of ties.
func (e *QueryEngine) Sort(leads []models.Lead, key models.SortKey, dir models.SortDirection) ([]models.Lead, error) {
	less, err := lessFor(key)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = models.SortAsc
	}
	if dir != models.SortAsc && dir != models.SortDesc {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown sort direction %q", dir))
	}

	out := make([]models.Lead, len(leads))
	copy(out, leads)
	sort.SliceStable(out, func(i, j int) bool {
		if dir == models.SortDesc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out, nil
}

// Apply windows, filters and sorts in that order.
func (e *QueryEngine) Apply(leads []models.Lead, q models.LeadQuery, variant models.RangeVariant) ([]models.Lead, *models.TimeRange, error) {
	view := leads
	var resolved *models.TimeRange
	if q.DateRange != nil {
		r, err := e.ResolveDateRange(*q.DateRange, variant)
		if err != nil {
			return nil, nil, err
		}
		resolved = &r
		view = e.Window(view, r)
	}
	view = e.Filter(view, q)

	s := q.Sort
	if s.Key == "" {
		s = models.DefaultSort()
	}
	sorted, err := e.Sort(view, s.Key, s.Direction)
	if err != nil {
		return nil, nil, err
	}
	return sorted, resolved, nil
}

func lessFor(key models.SortKey) (func(a, b models.Lead) bool, error) {
	switch key {
	case models.SortByDate:
		return func(a, b models.Lead) bool { return a.Date.Before(b.Date) }, nil
	case models.SortByLastUpdated:
		return func(a, b models.Lead) bool {
			if a.LastUpdated == nil || b.LastUpdated == nil {
				return a.LastUpdated == nil && b.LastUpdated != nil
			}
			return a.LastUpdated.Before(*b.LastUpdated)
		}, nil
	}

	field, ok := stringFields[key]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown sort key %q", key))
	}
	return func(a, b models.Lead) bool { return field(a) < field(b) }, nil
}

var stringFields = map[models.SortKey]func(models.Lead) string{
	models.SortByStudentName: func(l models.Lead) string { return l.StudentName },
	models.SortByPhone:       func(l models.Lead) string { return l.PhoneNumber },
	models.SortByCourse:      func(l models.Lead) string { return l.CourseSelected },
	models.SortByStage:       func(l models.Lead) string { return string(l.Stage) },
	models.SortByOrigin:      func(l models.Lead) string { return l.Origin },
	models.SortByAssignedTo:  func(l models.Lead) string { return l.AssignedTo },
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
