package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/leadflow-api/internal/models"
)

// DashboardCachePattern matches every cached dashboard and report payload.
const DashboardCachePattern = "dash:*"

type leadSnapshotter interface {
	All() []models.Lead
	Revision() uint64
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL             time.Duration
	OverdueThresholdDays int
	FreshThresholdDays   int
}

// DashboardService composes dashboard and report payloads from the role-visible leads.
type DashboardService struct {
	leads  leadSnapshotter
	policy AccessPolicy
	query  *QueryEngine
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
	cfg    DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Leads  leadSnapshotter
	Policy AccessPolicy
	Query  *QueryEngine
	Cache  *CacheService
	Logger *zap.Logger
	Now    func() time.Time
	Config DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.OverdueThresholdDays <= 0 {
		cfg.OverdueThresholdDays = DefaultOverdueDays
	}
	if cfg.FreshThresholdDays <= 0 {
		cfg.FreshThresholdDays = DefaultFreshDays
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	query := params.Query
	if query == nil {
		query = NewQueryEngine(now, time.UTC)
	}
	return &DashboardService{
		leads:  params.Leads,
		policy: params.Policy,
		query:  query,
		cache:  params.Cache,
		logger: logger,
		now:    now,
		cfg:    cfg,
	}
}

// OverdueThresholdDays exposes the configured staleness threshold.
func (s *DashboardService) OverdueThresholdDays() int {
	return s.cfg.OverdueThresholdDays
}

// Dashboard returns the landing summary for the selected window and whether it came from cache.
// The overdue count is store-wide: it ignores both the window and the user's
// visibility.
func (s *DashboardService) Dashboard(ctx context.Context, user models.User, sel models.DateRangeSelection) (*models.DashboardSummary, bool, error) {
	r, err := s.query.ResolveDateRange(sel, models.VariantDashboard)
	if err != nil {
		return nil, false, err
	}
	key := s.cacheKey(models.VariantDashboard, user, r)

	var cached models.DashboardSummary
	if s.tryCache(ctx, key, &cached) {
		return &cached, true, nil
	}

	now := s.now()
	all := s.leads.All()
	visible := s.policy.VisibleLeads(all, user)
	windowed := s.query.Window(visible, r)

	stages, err := Breakdown(windowed, FieldStage)
	if err != nil {
		return nil, false, err
	}
	origins, err := Breakdown(windowed, FieldOrigin)
	if err != nil {
		return nil, false, err
	}

	summary := &models.DashboardSummary{
		Range:           r,
		TotalLeads:      len(windowed),
		ConversionRate:  ConversionRate(windowed),
		FreshLeads:      FreshCount(windowed, s.cfg.FreshThresholdDays, now),
		OverdueLeads:    OverdueCount(all, s.cfg.OverdueThresholdDays, now),
		StageBreakdown:  stages,
		OriginBreakdown: origins,
	}
	s.persistCache(ctx, key, summary)
	return summary, false, nil
}

// Report returns the reports screen payload for the selected window.
func (s *DashboardService) Report(ctx context.Context, user models.User, sel models.DateRangeSelection) (*models.ReportSummary, bool, error) {
	r, err := s.query.ResolveDateRange(sel, models.VariantReport)
	if err != nil {
		return nil, false, err
	}
	key := s.cacheKey(models.VariantReport, user, r)

	var cached models.ReportSummary
	if s.tryCache(ctx, key, &cached) {
		return &cached, true, nil
	}

	windowed := s.ReportLeads(user, r)
	stages, err := Breakdown(windowed, FieldStage)
	if err != nil {
		return nil, false, err
	}
	sources, err := Breakdown(windowed, FieldOrigin)
	if err != nil {
		return nil, false, err
	}
	courses, err := Breakdown(windowed, FieldCourse)
	if err != nil {
		return nil, false, err
	}

	summary := &models.ReportSummary{
		Range:           r,
		Metrics:         Metrics(windowed),
		StageBreakdown:  stages,
		SourceBreakdown: sources,
		CourseBreakdown: courses,
		DailyTrend:      DailyTrend(windowed, s.query.Location()),
	}
	s.persistCache(ctx, key, summary)
	return summary, false, nil
}

// ReportLeads returns the visible leads inside r, oldest first.
func (s *DashboardService) ReportLeads(user models.User, r models.TimeRange) []models.Lead {
	windowed := s.query.Window(s.policy.VisibleLeads(s.leads.All(), user), r)
	sorted, _ := s.query.Sort(windowed, models.SortByDate, models.SortAsc)
	return sorted
}

// ResolveReportRange exposes report window resolution to exporters.
func (s *DashboardService) ResolveReportRange(sel models.DateRangeSelection) (models.TimeRange, error) {
	return s.query.ResolveDateRange(sel, models.VariantReport)
}

// Invalidate drops every cached payload after the lead collection changed.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, DashboardCachePattern)
}

// cacheKey scopes entries per user, window (to the minute) and store revision.
func (s *DashboardService) cacheKey(variant models.RangeVariant, user models.User, r models.TimeRange) string {
	return CacheKey("dash", string(variant), string(user.Role), user.Username, string(r.Preset),
		strconv.FormatInt(r.Start.Unix(), 10), strconv.FormatInt(r.End.Unix()/60, 10),
		"r"+strconv.FormatUint(s.leads.Revision(), 10))
}

func (s *DashboardService) tryCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	return err == nil && hit
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}
