package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/leadflow-api/internal/models"
	appErrors "github.com/noah-isme/leadflow-api/pkg/errors"
)

type leadStore interface {
	All() []models.Lead
	Get(id string) (*models.Lead, error)
	Create(ctx context.Context, input models.LeadInput) (*models.Lead, error)
	Update(ctx context.Context, id string, patch models.LeadPatch) (*models.Lead, error)
	Remove(ctx context.Context, id string) error
	Assign(ctx context.Context, counselor string, ids []string) (int, error)
}

type counselorDirectory interface {
	Lookup(username string) (models.User, bool)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// LeadServiceParams groups constructor dependencies.
type LeadServiceParams struct {
	Store                leadStore
	Policy               AccessPolicy
	Stages               *StageMachine
	Query                *QueryEngine
	Directory            counselorDirectory
	Cache                cacheInvalidator
	Logger               *zap.Logger
	Now                  func() time.Time
	OverdueThresholdDays int
}

// LeadService applies role rules on top of the lead store for the HTTP layer.
type LeadService struct {
	store       leadStore
	policy      AccessPolicy
	stages      *StageMachine
	query       *QueryEngine
	directory   counselorDirectory
	cache       cacheInvalidator
	logger      *zap.Logger
	now         func() time.Time
	overdueDays int
}

// NewLeadService constructs a LeadService.
func NewLeadService(params LeadServiceParams) *LeadService {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	stages := params.Stages
	if stages == nil {
		stages = NewStageMachine(now)
	}
	query := params.Query
	if query == nil {
		query = NewQueryEngine(now, time.UTC)
	}
	overdue := params.OverdueThresholdDays
	if overdue <= 0 {
		overdue = DefaultOverdueDays
	}
	return &LeadService{
		store:       params.Store,
		policy:      params.Policy,
		stages:      stages,
		query:       query,
		directory:   params.Directory,
		cache:       params.Cache,
		logger:      logger,
		now:         now,
		overdueDays: overdue,
	}
}

// List returns the visible leads after windowing, filtering and sorting.
func (s *LeadService) List(user models.User, q models.LeadQuery) (*models.LeadList, error) {
	leads, r, err := s.Query(user, q)
	if err != nil {
		return nil, err
	}
	now := s.now()
	items := make([]models.LeadView, len(leads))
	for i, l := range leads {
		items[i] = models.LeadView{Lead: l, Overdue: IsOverdue(l, s.overdueDays, now)}
	}
	sortState := q.Sort
	if sortState.Key == "" {
		sortState = models.DefaultSort()
	}
	return &models.LeadList{Items: items, Total: len(items), Sort: sortState, Range: r}, nil
}

// Query is List without the presentation wrapper; exports reuse it.
func (s *LeadService) Query(user models.User, q models.LeadQuery) ([]models.Lead, *models.TimeRange, error) {
	visible := s.policy.VisibleLeads(s.store.All(), user)
	return s.query.Apply(visible, s.policy.ScopeQuery(q, user), models.VariantDashboard)
}

// Get returns one lead. Leads outside the user's scope are reported as missing.
func (s *LeadService) Get(user models.User, id string) (*models.Lead, error) {
	lead, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanView(*lead, user) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
	}
	return lead, nil
}

// Create adds a lead. Admin-created leads are always assigned to their creator.
func (s *LeadService) Create(ctx context.Context, user models.User, input models.LeadInput) (*models.Lead, error) {
	if user.IsSuperAdmin() {
		if input.AssignedTo = strings.TrimSpace(input.AssignedTo); input.AssignedTo != "" {
			if err := s.requireCounselor(input.AssignedTo); err != nil {
				return nil, err
			}
		}
	} else {
		input.AssignedTo = user.Username
	}

	lead, err := s.store.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	s.mutated(ctx, "create", user, zap.String("lead_id", lead.ID))
	return lead, nil
}

// UpdateDetails patches editable fields and bumps LastUpdated. Stage and
// history change only through ChangeStage and AddRemark. Only a superadmin may
// move a lead to another counselor.
func (s *LeadService) UpdateDetails(ctx context.Context, user models.User, id string, patch models.LeadPatch) (*models.Lead, error) {
	if patch.IsEmpty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no fields to update")
	}
	if patch.Stage != nil || patch.History != nil || patch.LastUpdated != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "stage, history and last_updated cannot be edited directly")
	}
	if _, err := s.Get(user, id); err != nil {
		return nil, err
	}
	if patch.AssignedTo != nil {
		if !s.policy.CanAssign(user) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only a superadmin can reassign leads")
		}
		if target := strings.TrimSpace(*patch.AssignedTo); target != "" {
			if err := s.requireCounselor(target); err != nil {
				return nil, err
			}
		}
	}
	if patch.LastUpdated == nil {
		ts := s.now().UTC()
		patch.LastUpdated = &ts
	}

	lead, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.mutated(ctx, "update", user, zap.String("lead_id", id))
	return lead, nil
}

// Delete removes a lead. Superadmin only.
func (s *LeadService) Delete(ctx context.Context, user models.User, id string) error {
	if !s.policy.CanDelete(user) {
		return appErrors.Clone(appErrors.ErrForbidden, "only a superadmin can delete leads")
	}
	if _, err := s.store.Get(id); err != nil {
		return err
	}
	if err := s.store.Remove(ctx, id); err != nil {
		return err
	}
	s.mutated(ctx, "remove", user, zap.String("lead_id", id))
	return nil
}

// Assign hands the given leads to counselor. No history entry is recorded.
func (s *LeadService) Assign(ctx context.Context, user models.User, counselor string, ids []string) (*models.AssignResult, error) {
	if !s.policy.CanAssign(user) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only a superadmin can assign leads")
	}
	counselor = strings.TrimSpace(counselor)
	if err := s.requireCounselor(counselor); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lead_ids must not be empty")
	}

	n, err := s.store.Assign(ctx, counselor, ids)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		s.mutated(ctx, "assign", user, zap.String("counselor", counselor), zap.Int("updated", n))
	}
	return &models.AssignResult{Counselor: counselor, Updated: n}, nil
}

// ChangeStage moves a lead to target, recording reason in its history.
func (s *LeadService) ChangeStage(ctx context.Context, user models.User, id string, target models.Stage, reason string) (*models.Lead, error) {
	current, err := s.Get(user, id)
	if err != nil {
		return nil, err
	}
	next, err := s.stages.Transition(*current, target, reason, user.Username)
	if err != nil {
		return nil, err
	}
	lead, err := s.store.Update(ctx, id, historyPatch(next, true))
	if err != nil {
		return nil, err
	}
	s.mutated(ctx, "stage", user, zap.String("lead_id", id),
		zap.String("from", string(current.Stage)), zap.String("to", string(target)))
	return lead, nil
}

// AddRemark appends a free text remark to the lead's history.
func (s *LeadService) AddRemark(ctx context.Context, user models.User, id, text string) (*models.Lead, error) {
	current, err := s.Get(user, id)
	if err != nil {
		return nil, err
	}
	next, err := s.stages.AddRemark(*current, text, user.Username)
	if err != nil {
		return nil, err
	}
	lead, err := s.store.Update(ctx, id, historyPatch(next, false))
	if err != nil {
		return nil, err
	}
	s.mutated(ctx, "remark", user, zap.String("lead_id", id))
	return lead, nil
}

func (s *LeadService) requireCounselor(username string) error {
	if username == "" {
		return appErrors.Clone(appErrors.ErrValidation, "counselor is required")
	}
	if s.directory == nil {
		return nil
	}
	u, ok := s.directory.Lookup(username)
	if !ok || u.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%q is not a counselor", username))
	}
	return nil
}

func (s *LeadService) mutated(ctx context.Context, op string, user models.User, fields ...zap.Field) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	fields = append([]zap.Field{zap.String("operation", op), zap.String("actor", user.Username)}, fields...)
	s.logger.Info("lead mutated", fields...)
}

func historyPatch(lead models.Lead, withStage bool) models.LeadPatch {
	history := lead.History
	patch := models.LeadPatch{History: &history, LastUpdated: lead.LastUpdated}
	if withStage {
		stage := lead.Stage
		patch.Stage = &stage
	}
	return patch
}
