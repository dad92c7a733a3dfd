package models

// BreakdownItem is one bar or slice of a categorical chart.
type BreakdownItem struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// TrendPoint counts leads created on one calendar day.
type TrendPoint struct {
	Day   string `json:"day"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// DashboardSummary feeds the landing dashboard cards and charts.
type DashboardSummary struct {
	Range           TimeRange       `json:"range"`
	TotalLeads      int             `json:"total_leads"`
	ConversionRate  float64         `json:"conversion_rate"`
	FreshLeads      int             `json:"fresh_leads"`
	OverdueLeads    int             `json:"overdue_leads"`
	StageBreakdown  []BreakdownItem `json:"stage_breakdown"`
	OriginBreakdown []BreakdownItem `json:"origin_breakdown"`
}

// ReportMetrics are the headline numbers of the reports screen.
type ReportMetrics struct {
	TotalLeads         int     `json:"total_leads"`
	Admissions         int     `json:"admissions"`
	Demos              int     `json:"demos"`
	DemosCompleted     int     `json:"demos_completed"`
	Interested         int     `json:"interested"`
	ConversionRate     float64 `json:"conversion_rate"`
	DemoConversionRate float64 `json:"demo_conversion_rate"`
}

// ReportSummary is the full reports payload.
type ReportSummary struct {
	Range           TimeRange       `json:"range"`
	Metrics         ReportMetrics   `json:"metrics"`
	StageBreakdown  []BreakdownItem `json:"stage_breakdown"`
	SourceBreakdown []BreakdownItem `json:"source_breakdown"`
	CourseBreakdown []BreakdownItem `json:"course_breakdown"`
	DailyTrend      []TrendPoint    `json:"daily_trend"`
}
