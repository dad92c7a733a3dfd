package models

import "time"

// DatePreset names a relative reporting window.
type DatePreset string

const (
	PresetToday     DatePreset = "today"
	PresetYesterday DatePreset = "yesterday"
	Preset7Days     DatePreset = "7days"
	Preset15Days    DatePreset = "15days"
	Preset30Days    DatePreset = "30days"
	Preset1Month    DatePreset = "1month"
	Preset90Days    DatePreset = "90days"
	PresetCustom    DatePreset = "custom"
)

// RangeVariant selects the date arithmetic used by a screen.
type RangeVariant string

const (
	// VariantDashboard aligns multi-day presets to local midnight.
	VariantDashboard RangeVariant = "dashboard"
	// VariantReport subtracts whole 24h periods from the current instant.
	VariantReport RangeVariant = "report"
)

// DateRangeSelection is the user's choice before resolution.
type DateRangeSelection struct {
	Preset DatePreset `form:"range" json:"range"`
	Start  *time.Time `json:"start,omitempty"`
	End    *time.Time `json:"end,omitempty"`
}

// TimeRange is a resolved window. End is inclusive unless EndExclusive is set.
type TimeRange struct {
	Start        time.Time  `json:"start"`
	End          time.Time  `json:"end"`
	EndExclusive bool       `json:"end_exclusive,omitempty"`
	Preset       DatePreset `json:"preset"`
}

// Contains applies the window bounds to t.
func (r TimeRange) Contains(t time.Time) bool {
	if t.Before(r.Start) {
		return false
	}
	if r.EndExclusive {
		return t.Before(r.End)
	}
	return !t.After(r.End)
}

// SortKey names a sortable lead column.
type SortKey string

const (
	SortByDate        SortKey = "date"
	SortByStudentName SortKey = "student_name"
	SortByPhone       SortKey = "phone_number"
	SortByCourse      SortKey = "course_selected"
	SortByStage       SortKey = "stage"
	SortByOrigin      SortKey = "origin"
	SortByAssignedTo  SortKey = "assigned_to"
	SortByLastUpdated SortKey = "last_updated"
)

// SortDirection is asc or desc.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortState remembers the active column ordering of a table view.
type SortState struct {
	Key       SortKey       `json:"key"`
	Direction SortDirection `json:"direction"`
}

// DefaultSort orders leads newest first.
func DefaultSort() SortState {
	return SortState{Key: SortByDate, Direction: SortDesc}
}

// Toggle flips the direction when key is already active, otherwise selects key ascending.
func (s SortState) Toggle(key SortKey) SortState {
	if s.Key == key {
		if s.Direction == SortAsc {
			return SortState{Key: key, Direction: SortDesc}
		}
		return SortState{Key: key, Direction: SortAsc}
	}
	return SortState{Key: key, Direction: SortAsc}
}

// LeadQuery is the transient filter and sort configuration of a lead listing.
type LeadQuery struct {
	Search     string
	Stage      Stage
	Origin     string
	Course     string
	AssignedTo string
	Sort       SortState
	DateRange  *DateRangeSelection
}
