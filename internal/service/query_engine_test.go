package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leadflow-api/internal/models"
	appErrors "github.com/noah-isme/leadflow-api/pkg/errors"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 3, day, hour, minute, 0, 0, time.UTC)
}

func TestResolveDateRangePresets(t *testing.T) {
	engine := NewQueryEngine(fixedClock, time.UTC)

	cases := []struct {
		name      string
		preset    models.DatePreset
		variant   models.RangeVariant
		start     time.Time
		end       time.Time
		exclusive bool
	}{
		{"today", models.PresetToday, models.VariantDashboard, at(10, 0, 0), testNow, false},
		{"yesterday", models.PresetYesterday, models.VariantDashboard, at(9, 0, 0), at(10, 0, 0), true},
		{"dashboard 7 days", models.Preset7Days, models.VariantDashboard, at(3, 0, 0), testNow, false},
		{"report 7 days", models.Preset7Days, models.VariantReport, at(3, 12, 0), testNow, false},
		{"dashboard 15 days", models.Preset15Days, models.VariantDashboard, time.Date(2024, 2, 24, 0, 0, 0, 0, time.UTC), testNow, false},
		{"report 1 month", models.Preset1Month, models.VariantReport, time.Date(2024, 2, 9, 12, 0, 0, 0, time.UTC), testNow, false},
		{"report 90 days", models.Preset90Days, models.VariantReport, testNow.Add(-90 * 24 * time.Hour), testNow, false},
		{"dashboard default", "", models.VariantDashboard, at(10, 0, 0), testNow, false},
		{"report default", "", models.VariantReport, at(3, 12, 0), testNow, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := engine.ResolveDateRange(models.DateRangeSelection{Preset: tc.preset}, tc.variant)
			require.NoError(t, err)
			assert.True(t, tc.start.Equal(r.Start), "start %s", r.Start)
			assert.True(t, tc.end.Equal(r.End), "end %s", r.End)
			assert.Equal(t, tc.exclusive, r.EndExclusive)
		})
	}
}

func TestResolveDateRangeCustom(t *testing.T) {
	engine := NewQueryEngine(fixedClock, time.UTC)

	start, end := at(1, 15, 0), at(5, 2, 0)
	r, err := engine.ResolveDateRange(models.DateRangeSelection{Preset: models.PresetCustom, Start: &start, End: &end}, models.VariantReport)
	require.NoError(t, err)
	assert.True(t, at(1, 0, 0).Equal(r.Start))
	assert.True(t, time.Date(2024, 3, 5, 23, 59, 59, 999999999, time.UTC).Equal(r.End))

	sameDay := at(4, 9, 0)
	r, err = engine.ResolveDateRange(models.DateRangeSelection{Preset: models.PresetCustom, Start: &sameDay, End: &sameDay}, models.VariantDashboard)
	require.NoError(t, err)
	assert.True(t, r.Contains(at(4, 23, 59)))

	_, err = engine.ResolveDateRange(models.DateRangeSelection{Preset: models.PresetCustom, Start: &end, End: &start}, models.VariantReport)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	r, err = engine.ResolveDateRange(models.DateRangeSelection{Preset: models.PresetCustom, Start: &start}, models.VariantReport)
	require.NoError(t, err)
	assert.Equal(t, models.Preset7Days, r.Preset)

	_, err = engine.ResolveDateRange(models.DateRangeSelection{Preset: "fortnight"}, models.VariantReport)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestResolveDateRangeUsesLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	engine := NewQueryEngine(fixedClock, ist)

	r, err := engine.ResolveDateRange(models.DateRangeSelection{Preset: models.PresetToday}, models.VariantDashboard)
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 9, 18, 30, 0, 0, time.UTC).Equal(r.Start))
}

func TestWindowIsClosedInterval(t *testing.T) {
	engine := NewQueryEngine(fixedClock, time.UTC)
	r := models.TimeRange{Start: at(3, 0, 0), End: at(5, 0, 0)}
	leads := []models.Lead{
		{ID: "before", Date: at(2, 23, 59)},
		{ID: "start", Date: at(3, 0, 0)},
		{ID: "inside", Date: at(4, 12, 0)},
		{ID: "end", Date: at(5, 0, 0)},
		{ID: "after", Date: at(5, 0, 1)},
	}

	got := ids(engine.Window(leads, r))
	assert.Equal(t, []string{"start", "inside", "end"}, got)

	r.EndExclusive = true
	assert.Equal(t, []string{"start", "inside"}, ids(engine.Window(leads, r)))
}

func TestFilter(t *testing.T) {
	engine := NewQueryEngine(fixedClock, time.UTC)
	leads := []models.Lead{
		{ID: "1", StudentName: "Rahul Verma", PhoneNumber: "9876500001", CourseSelected: "DevOps", Stage: models.StageDemo, Origin: "DGM", AssignedTo: "admin1"},
		{ID: "2", StudentName: "Anita Rao", PhoneNumber: "9123400002", CourseSelected: "Data Science", Stage: models.StageRNR, Origin: "Website Lead", AssignedTo: "admin2"},
		{ID: "3", StudentName: "Devika Nair", PhoneNumber: "9876500003", CourseSelected: "Cybersecurity", Stage: models.StageDemo, Origin: "DGM"},
	}

	assert.Equal(t, []string{"1", "3"}, ids(engine.Filter(leads, models.LeadQuery{Search: "dev"})))
	assert.Equal(t, []string{"2"}, ids(engine.Filter(leads, models.LeadQuery{Search: "DATA"})))
	assert.Equal(t, []string{"1", "3"}, ids(engine.Filter(leads, models.LeadQuery{Search: "98765"})))
	assert.Equal(t, []string{"3"}, ids(engine.Filter(leads, models.LeadQuery{Stage: models.StageDemo, Course: "Cybersecurity"})))
	assert.Equal(t, []string{"2"}, ids(engine.Filter(leads, models.LeadQuery{AssignedTo: "admin2"})))
	assert.Empty(t, engine.Filter(leads, models.LeadQuery{Origin: "dgm"}))
	assert.Len(t, engine.Filter(leads, models.LeadQuery{}), 3)
}

func TestFilterComposesAsIntersection(t *testing.T) {
	engine := NewQueryEngine(fixedClock, time.UTC)
	leads := []models.Lead{
		{ID: "1", Stage: models.StageDemo, Origin: "DGM"},
		{ID: "2", Stage: models.StageDemo, Origin: "Website Lead"},
		{ID: "3", Stage: models.StageRNR, Origin: "DGM"},
		{ID: "4", Stage: models.StageDemo, Origin: "DGM"},
		{ID: "5", Stage: models.StageAdmission, Origin: "Referral"},
	}

	cases := []struct {
		stage  models.Stage
		origin string
	}{
		{models.StageDemo, "DGM"},
		{models.StageRNR, "Website Lead"},
		{models.StageAdmission, "Referral"},
	}
	for _, tc := range cases {
		byStage := engine.Filter(leads, models.LeadQuery{Stage: tc.stage})
		byOrigin := engine.Filter(leads, models.LeadQuery{Origin: tc.origin})
		combined := ids(engine.Filter(leads, models.LeadQuery{Stage: tc.stage, Origin: tc.origin}))

		inOrigin := make(map[string]bool)
		for _, l := range byOrigin {
			inOrigin[l.ID] = true
		}
		intersection := make([]string, 0)
		for _, l := range byStage {
			if inOrigin[l.ID] {
				intersection = append(intersection, l.ID)
			}
		}

		assert.Equal(t, intersection, combined, "%s/%s", tc.stage, tc.origin)
		assert.Equal(t, combined, ids(engine.Filter(byStage, models.LeadQuery{Origin: tc.origin})))
		assert.Equal(t, combined, ids(engine.Filter(byOrigin, models.LeadQuery{Stage: tc.stage})))
	}
}

func TestSortIsStable(t *testing.T) {
	engine := NewQueryEngine(fixedClock, time.UTC)
	leads := []models.Lead{
		{ID: "1", Origin: "DGM", Date: at(2, 0, 0)},
		{ID: "2", Origin: "Website Lead", Date: at(1, 0, 0)},
		{ID: "3", Origin: "DGM", Date: at(3, 0, 0)},
		{ID: "4", Origin: "Direct Call", Date: at(1, 0, 0)},
	}

	asc, err := engine.Sort(leads, models.SortByOrigin, models.SortAsc)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3", "4", "2"}, ids(asc))

	desc, err := engine.Sort(leads, models.SortByOrigin, models.SortDesc)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "4", "1", "3"}, ids(desc))

	byDate, err := engine.Sort(leads, models.SortByDate, models.SortAsc)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "4", "1", "3"}, ids(byDate))

	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(leads))

	_, err = engine.Sort(leads, "priority", models.SortAsc)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	_, err = engine.Sort(leads, models.SortByDate, "sideways")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestSortByLastUpdatedPutsUntouchedFirst(t *testing.T) {
	engine := NewQueryEngine(fixedClock, time.UTC)
	early, late := at(1, 0, 0), at(2, 0, 0)
	leads := []models.Lead{
		{ID: "late", LastUpdated: &late},
		{ID: "never"},
		{ID: "early", LastUpdated: &early},
	}

	sorted, err := engine.Sort(leads, models.SortByLastUpdated, models.SortAsc)
	require.NoError(t, err)
	assert.Equal(t, []string{"never", "early", "late"}, ids(sorted))
}

func TestSortStateToggle(t *testing.T) {
	s := models.SortState{}.Toggle(models.SortByStudentName)
	assert.Equal(t, models.SortState{Key: models.SortByStudentName, Direction: models.SortAsc}, s)
	s = s.Toggle(models.SortByStudentName)
	assert.Equal(t, models.SortDesc, s.Direction)
	s = s.Toggle(models.SortByStage)
	assert.Equal(t, models.SortState{Key: models.SortByStage, Direction: models.SortAsc}, s)
}

func TestApplyWindowsFiltersAndSorts(t *testing.T) {
	engine := NewQueryEngine(fixedClock, time.UTC)
	leads := []models.Lead{
		{ID: "old", Date: at(1, 0, 0), Stage: models.StageDemo},
		{ID: "a", Date: at(9, 8, 0), Stage: models.StageDemo},
		{ID: "b", Date: at(10, 9, 0), Stage: models.StageDemo},
		{ID: "c", Date: at(10, 10, 0), Stage: models.StageRNR},
	}

	view, r, err := engine.Apply(leads, models.LeadQuery{
		Stage:     models.StageDemo,
		DateRange: &models.DateRangeSelection{Preset: models.Preset7Days},
	}, models.VariantDashboard)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, []string{"b", "a"}, ids(view))

	view, r, err = engine.Apply(leads, models.LeadQuery{}, models.VariantDashboard)
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.Equal(t, []string{"c", "b", "a", "old"}, ids(view))

	_, _, err = engine.Apply(leads, models.LeadQuery{DateRange: &models.DateRangeSelection{Preset: "bogus"}}, models.VariantDashboard)
	assert.Error(t, err)
}

func ids(leads []models.Lead) []string {
	out := make([]string, len(leads))
	for i, l := range leads {
		out[i] = l.ID
	}
	return out
}
