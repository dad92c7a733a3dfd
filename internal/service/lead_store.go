package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/leadflow-api/internal/models"
	appErrors "github.com/noah-isme/leadflow-api/pkg/errors"
)

// maxClockSkew bounds how far ahead of the store clock a written timestamp may be.
const maxClockSkew = time.Minute

// LeadPersister loads and saves the full lead collection.
type LeadPersister interface {
	Load(ctx context.Context) ([]models.Lead, error)
	Save(ctx context.Context, leads []models.Lead) error
}

// LeadStoreParams groups constructor dependencies.
type LeadStoreParams struct {
	Persister LeadPersister
	Validator *validator.Validate
	Metrics   *MetricsService
	Logger    *zap.Logger
	Now       func() time.Time
	NewID     func() string
}

// LeadStore is the single owner of the lead collection. Every successful
// mutation is followed by a synchronous save of the whole collection; a failed
// save leaves the in-memory state untouched.
type LeadStore struct {
	mu        sync.RWMutex
	persister LeadPersister
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string

	leads    []models.Lead
	index    map[string]int
	revision uint64
}

// NewLeadStore constructs an empty store. Call Load before serving traffic.
func NewLeadStore(params LeadStoreParams) *LeadStore {
	s := &LeadStore{
		persister: params.Persister,
		validator: params.Validator,
		metrics:   params.Metrics,
		logger:    params.Logger,
		now:       params.Now,
		newID:     params.NewID,
		index:     map[string]int{},
	}
	if s.validator == nil {
		s.validator = NewValidator()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Load replaces the in-memory collection with the persisted one.
func (s *LeadStore) Load(ctx context.Context) error {
	start := time.Now()
	leads, err := s.persister.Load(ctx)
	s.metrics.ObservePersist("load", time.Since(start))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leads")
	}

	cleaned := make([]models.Lead, 0, len(leads))
	seen := make(map[string]struct{}, len(leads))
	for _, lead := range leads {
		if lead.ID == "" {
			s.logger.Warn("skipping stored lead without id", zap.String("student_name", lead.StudentName))
			continue
		}
		if _, dup := seen[lead.ID]; dup {
			s.logger.Warn("skipping duplicate stored lead", zap.String("lead_id", lead.ID))
			continue
		}
		seen[lead.ID] = struct{}{}
		if !lead.Stage.IsKnown() {
			s.logger.Warn("stored lead has unknown stage", zap.String("lead_id", lead.ID), zap.String("stage", string(lead.Stage)))
		}
		if lead.History == nil {
			lead.History = []models.HistoryEntry{}
		}
		cleaned = append(cleaned, lead.Clone())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = cleaned
	s.reindex()
	s.revision++
	s.metrics.SetLeadCount(len(s.leads))
	s.logger.Info("leads loaded", zap.Int("count", len(s.leads)))
	return nil
}

// All returns copies of every lead in collection order.
func (s *LeadStore) All() []models.Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Lead, len(s.leads))
	for i, l := range s.leads {
		out[i] = l.Clone()
	}
	return out
}

// Get returns a copy of one lead.
func (s *LeadStore) Get(id string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
	}
	lead := s.leads[i].Clone()
	return &lead, nil
}

// Len reports the collection size.
func (s *LeadStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.leads)
}

// Revision increases by one for every applied mutation or load.
func (s *LeadStore) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Create validates input and appends a new lead with an empty history.
func (s *LeadStore) Create(ctx context.Context, input models.LeadInput) (*models.Lead, error) {
	input.StudentName = strings.TrimSpace(input.StudentName)
	input.PhoneNumber = strings.TrimSpace(input.PhoneNumber)
	input.CourseSelected = strings.TrimSpace(input.CourseSelected)
	input.Origin = strings.TrimSpace(input.Origin)
	input.AssignedTo = strings.TrimSpace(input.AssignedTo)

	if err := s.validator.Struct(input); err != nil {
		return nil, validationError(err)
	}

	stage := input.Stage
	if stage == "" {
		stage = models.InitialStage
	}
	if !stage.IsCanonical() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown stage %q", stage))
	}

	now := s.clock()
	date := now
	if input.Date != nil && !input.Date.IsZero() {
		date = truncate(*input.Date)
	}

	lead := models.Lead{
		ID:             s.newID(),
		StudentName:    input.StudentName,
		PhoneNumber:    input.PhoneNumber,
		Date:           date,
		CourseSelected: input.CourseSelected,
		Stage:          stage,
		Origin:         input.Origin,
		AssignedTo:     input.AssignedTo,
		LastUpdated:    &now,
		Remarks:        input.Remarks,
		History:        []models.HistoryEntry{},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index[lead.ID]; exists {
		return nil, appErrors.Clone(appErrors.ErrInternal, "generated duplicate lead id")
	}

	next := make([]models.Lead, len(s.leads), len(s.leads)+1)
	copy(next, s.leads)
	next = append(next, lead)
	if err := s.commit(ctx, "create", next); err != nil {
		return nil, err
	}
	out := lead.Clone()
	return &out, nil
}

// Import appends fully formed leads, e.g. generated sample data, in one save.
func (s *LeadStore) Import(ctx context.Context, leads []models.Lead) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]models.Lead, len(s.leads), len(s.leads)+len(leads))
	copy(next, s.leads)
	seen := make(map[string]struct{}, len(leads))
	for _, lead := range leads {
		if lead.ID == "" {
			lead.ID = s.newID()
		}
		if _, exists := s.index[lead.ID]; exists {
			return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("lead %s already exists", lead.ID))
		}
		if _, dup := seen[lead.ID]; dup {
			return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("lead %s appears twice", lead.ID))
		}
		seen[lead.ID] = struct{}{}
		if !lead.Stage.IsKnown() {
			return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown stage %q", lead.Stage))
		}
		lead = lead.Clone()
		truncateTimes(&lead)
		next = append(next, lead)
	}
	if len(leads) == 0 {
		return 0, nil
	}
	if err := s.commit(ctx, "import", next); err != nil {
		return 0, err
	}
	return len(leads), nil
}

// Update shallow-merges patch into the lead. It rejects history rewrites,
// stage changes without a matching stage entry and unknown stages. A
// LastUpdated older than the stored value is ignored; one ahead of the store
// clock is rejected.
func (s *LeadStore) Update(ctx context.Context, id string, patch models.LeadPatch) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
	}
	current := s.leads[i]
	updated, err := applyPatch(current, patch, s.clock())
	if err != nil {
		return nil, err
	}

	next := make([]models.Lead, len(s.leads))
	copy(next, s.leads)
	next[i] = updated
	if err := s.commit(ctx, "update", next); err != nil {
		return nil, err
	}
	out := updated.Clone()
	return &out, nil
}

// Remove deletes the lead. Removing an absent id is a no-op.
func (s *LeadStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return nil
	}
	next := make([]models.Lead, 0, len(s.leads)-1)
	next = append(next, s.leads[:i]...)
	next = append(next, s.leads[i+1:]...)
	return s.commit(ctx, "remove", next)
}

// Assign sets the counselor on every existing lead in ids and reports how many
// were updated. Unknown ids are skipped.
func (s *LeadStore) Assign(ctx context.Context, counselor string, ids []string) (int, error) {
	counselor = strings.TrimSpace(counselor)
	if counselor == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "counselor is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]models.Lead, len(s.leads))
	copy(next, s.leads)
	updated := 0
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		i, ok := s.index[id]
		if !ok {
			continue
		}
		lead := next[i].Clone()
		lead.AssignedTo = counselor
		next[i] = lead
		updated++
	}
	if updated == 0 {
		return 0, nil
	}
	if err := s.commit(ctx, "assign", next); err != nil {
		return 0, err
	}
	return updated, nil
}

// commit persists next and swaps it in. Callers hold s.mu.
func (s *LeadStore) commit(ctx context.Context, op string, next []models.Lead) error {
	start := time.Now()
	err := s.persister.Save(ctx, next)
	s.metrics.ObservePersist("save", time.Since(start))
	s.metrics.RecordLeadMutation(op, err)
	if err != nil {
		s.logger.Error("persist leads failed", zap.String("operation", op), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist leads")
	}
	s.leads = next
	s.reindex()
	s.revision++
	s.metrics.SetLeadCount(len(s.leads))
	return nil
}

// clock returns the store time at the precision every persister keeps.
func (s *LeadStore) clock() time.Time {
	return truncate(s.now())
}

func truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func truncateTimes(lead *models.Lead) {
	lead.Date = truncate(lead.Date)
	if lead.LastUpdated != nil {
		ts := truncate(*lead.LastUpdated)
		lead.LastUpdated = &ts
	}
	for i := range lead.History {
		lead.History[i].Timestamp = truncate(lead.History[i].Timestamp)
	}
}

func (s *LeadStore) reindex() {
	s.index = make(map[string]int, len(s.leads))
	for i, l := range s.leads {
		s.index[l.ID] = i
	}
}

func applyPatch(current models.Lead, patch models.LeadPatch, now time.Time) (models.Lead, error) {
	lead := current.Clone()

	text := []struct {
		field string
		src   *string
		dst   *string
	}{
		{"student_name", patch.StudentName, &lead.StudentName},
		{"phone_number", patch.PhoneNumber, &lead.PhoneNumber},
		{"course_selected", patch.CourseSelected, &lead.CourseSelected},
		{"origin", patch.Origin, &lead.Origin},
	}
	for _, t := range text {
		if t.src == nil {
			continue
		}
		value := strings.TrimSpace(*t.src)
		if err := requireText(t.field, value); err != nil {
			return models.Lead{}, err
		}
		*t.dst = value
	}
	if patch.AssignedTo != nil {
		lead.AssignedTo = strings.TrimSpace(*patch.AssignedTo)
	}
	if patch.Remarks != nil {
		lead.Remarks = *patch.Remarks
	}
	if patch.Date != nil {
		if patch.Date.IsZero() {
			return models.Lead{}, appErrors.Clone(appErrors.ErrValidation, "date is required")
		}
		lead.Date = truncate(*patch.Date)
	}

	if patch.History != nil {
		appended, err := appendedHistory(current.History, *patch.History, now)
		if err != nil {
			return models.Lead{}, err
		}
		lead.History = append(lead.History, appended...)
	}

	target := current.Stage
	if patch.Stage != nil {
		target = *patch.Stage
	}
	if err := checkStageChange(current, target, lead.History[len(current.History):]); err != nil {
		return models.Lead{}, err
	}
	lead.Stage = target

	if patch.LastUpdated != nil {
		ts := truncate(*patch.LastUpdated)
		if ts.After(now.Add(maxClockSkew)) {
			return models.Lead{}, appErrors.Clone(appErrors.ErrValidation, "last_updated cannot be in the future")
		}
		if lead.LastUpdated == nil || ts.After(*lead.LastUpdated) {
			lead.LastUpdated = &ts
		}
	}
	return lead, nil
}

// appendedHistory returns the entries of next beyond prev, provided prev is an
// exact prefix and every new entry is well formed.
func appendedHistory(prev, next []models.HistoryEntry, now time.Time) ([]models.HistoryEntry, error) {
	if len(next) < len(prev) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "history entries cannot be removed")
	}
	for i := range prev {
		if !sameEntry(prev[i], next[i]) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("history entry %d cannot be modified", i))
		}
	}
	added := make([]models.HistoryEntry, 0, len(next)-len(prev))
	for _, e := range next[len(prev):] {
		if e.Type != models.HistoryRemark && e.Type != models.HistoryStage {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown history type %q", e.Type))
		}
		if strings.TrimSpace(e.Content) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "history content is required")
		}
		if e.Type == models.HistoryStage && !e.To.IsCanonical() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown stage %q", e.To))
		}
		if e.Timestamp.IsZero() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "history timestamp is required")
		}
		e.Timestamp = truncate(e.Timestamp)
		if e.Timestamp.After(now.Add(maxClockSkew)) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "history timestamp cannot be in the future")
		}
		added = append(added, e)
	}
	return added, nil
}

func checkStageChange(current models.Lead, target models.Stage, added []models.HistoryEntry) error {
	var stageEntries []models.HistoryEntry
	for _, e := range added {
		if e.Type == models.HistoryStage {
			stageEntries = append(stageEntries, e)
		}
	}

	if target == current.Stage {
		for _, e := range stageEntries {
			if e.From != current.Stage || e.To != current.Stage {
				return appErrors.Clone(appErrors.ErrValidation, "stage entry does not match the lead stage")
			}
		}
		return nil
	}

	if !target.IsCanonical() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown stage %q", target))
	}
	if len(stageEntries) != 1 {
		return appErrors.Clone(appErrors.ErrValidation, "a stage change must record exactly one stage history entry")
	}
	if stageEntries[0].From != current.Stage || stageEntries[0].To != target {
		return appErrors.Clone(appErrors.ErrValidation, "stage history entry does not match the stage change")
	}
	return nil
}

func sameEntry(a, b models.HistoryEntry) bool {
	return a.Type == b.Type && a.Content == b.Content && a.User == b.User &&
		a.From == b.From && a.To == b.To && a.Timestamp.Equal(b.Timestamp)
}
