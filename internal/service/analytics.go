package service

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/noah-isme/leadflow-api/internal/models"
	appErrors "github.com/noah-isme/leadflow-api/pkg/errors"
)

// LeadField names a categorical lead attribute used for breakdowns.
type LeadField string

const (
	FieldStage      LeadField = "stage"
	FieldOrigin     LeadField = "origin"
	FieldCourse     LeadField = "course"
	FieldAssignedTo LeadField = "assigned_to"
)

// UnassignedLabel buckets leads without a counselor.
const UnassignedLabel = "Unassigned"

const (
	DefaultOverdueDays = 5
	DefaultFreshDays   = 1
)

// CountByField tallies leads per value of field.
func CountByField(leads []models.Lead, field LeadField) (map[string]int, error) {
	value, err := fieldValue(field)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, l := range leads {
		counts[value(l)]++
	}
	return counts, nil
}

// Breakdown returns CountByField as chart items, largest first and by name on ties.
func Breakdown(leads []models.Lead, field LeadField) ([]models.BreakdownItem, error) {
	counts, err := CountByField(leads, field)
	if err != nil {
		return nil, err
	}
	items := make([]models.BreakdownItem, 0, len(counts))
	for name, v := range counts {
		items = append(items, models.BreakdownItem{Name: name, Value: v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Value != items[j].Value {
			return items[i].Value > items[j].Value
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

// DailyTrend buckets leads by the calendar day of their inquiry date in loc,
// oldest day first. Days without leads are omitted.
func DailyTrend(leads []models.Lead, loc *time.Location) []models.TrendPoint {
	if loc == nil {
		loc = time.UTC
	}
	counts := make(map[string]int)
	labels := make(map[string]string)
	for _, l := range leads {
		local := l.Date.In(loc)
		key := local.Format("2006-01-02")
		counts[key]++
		labels[key] = local.Format("Jan 02")
	}
	points := make([]models.TrendPoint, 0, len(counts))
	for k, c := range counts {
		points = append(points, models.TrendPoint{Day: k, Label: labels[k], Count: c})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Day < points[j].Day })
	return points
}

// ConversionRate is the share of leads in Admission, as a percentage with one
// decimal. An empty collection yields 0.
func ConversionRate(leads []models.Lead) float64 {
	return percentage(countStages(leads, models.StageAdmission), len(leads))
}

// DemoConversionRate relates admissions to leads sitting in Demo or Demo
// Completed. Without such leads the rate is 0.
func DemoConversionRate(leads []models.Lead) float64 {
	demos := countStages(leads, models.StageDemo, models.StageDemoCompleted)
	return percentage(countStages(leads, models.StageAdmission), demos)
}

// IsOverdue reports whether lead was last touched more than thresholdDays ago.
// Leads without a LastUpdated are never overdue.
func IsOverdue(lead models.Lead, thresholdDays int, now time.Time) bool {
	if lead.LastUpdated == nil {
		return false
	}
	return lead.LastUpdated.Before(now.Add(-time.Duration(thresholdDays) * day))
}

// OverdueCount counts overdue leads.
func OverdueCount(leads []models.Lead, thresholdDays int, now time.Time) int {
	n := 0
	for _, l := range leads {
		if IsOverdue(l, thresholdDays, now) {
			n++
		}
	}
	return n
}

// FreshCount counts leads never touched or touched within thresholdDays.
func FreshCount(leads []models.Lead, thresholdDays int, now time.Time) int {
	cutoff := now.Add(-time.Duration(thresholdDays) * day)
	n := 0
	for _, l := range leads {
		if l.LastUpdated == nil || l.LastUpdated.After(cutoff) {
			n++
		}
	}
	return n
}

// Metrics computes the headline report numbers.
func Metrics(leads []models.Lead) models.ReportMetrics {
	return models.ReportMetrics{
		TotalLeads:         len(leads),
		Admissions:         countStages(leads, models.StageAdmission),
		Demos:              countStages(leads, models.StageDemo, models.StageDemoCompleted),
		DemosCompleted:     countStages(leads, models.StageDemoCompleted),
		Interested:         countStages(leads, models.StageInterested),
		ConversionRate:     ConversionRate(leads),
		DemoConversionRate: DemoConversionRate(leads),
	}
}

func countStages(leads []models.Lead, stages ...models.Stage) int {
	n := 0
	for _, l := range leads {
		for _, s := range stages {
			if l.Stage == s {
				n++
				break
			}
		}
	}
	return n
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

func fieldValue(field LeadField) (func(models.Lead) string, error) {
	switch field {
	case FieldStage:
		return func(l models.Lead) string { return string(l.Stage) }, nil
	case FieldOrigin:
		return func(l models.Lead) string { return l.Origin }, nil
	case FieldCourse:
		return func(l models.Lead) string { return l.CourseSelected }, nil
	case FieldAssignedTo:
		return func(l models.Lead) string {
			if l.AssignedTo == "" {
				return UnassignedLabel
			}
			return l.AssignedTo
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown breakdown field %q", field))
	}
}
