package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/leadflow-api/internal/models"
	appErrors "github.com/noah-isme/leadflow-api/pkg/errors"
)

// StageMachine applies stage transitions and remarks to a lead copy. Any
// canonical stage may follow any other; the legacy stage is never a target.
type StageMachine struct {
	now func() time.Time
}

// NewStageMachine constructs a machine using now as its clock.
func NewStageMachine(now func() time.Time) *StageMachine {
	if now == nil {
		now = time.Now
	}
	return &StageMachine{now: now}
}

// Transition moves lead to target and records a stage entry carrying reason.
func (m *StageMachine) Transition(lead models.Lead, target models.Stage, reason, actor string) (models.Lead, error) {
	if strings.TrimSpace(string(target)) == "" {
		return models.Lead{}, appErrors.Clone(appErrors.ErrValidation, "stage is required")
	}
	if !target.IsCanonical() {
		return models.Lead{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%q is not a valid target stage", target))
	}
	if blank(reason) {
		return models.Lead{}, appErrors.Clone(appErrors.ErrValidation, "a reason is required to change stage")
	}

	out := lead.Clone()
	ts := m.stamp(lead)
	out.History = append(out.History, models.HistoryEntry{
		Type:      models.HistoryStage,
		Content:   reason,
		Timestamp: ts,
		User:      actor,
		From:      lead.Stage,
		To:        target,
	})
	out.Stage = target
	out.LastUpdated = &ts
	return out, nil
}

// AddRemark appends a remark entry and bumps LastUpdated.
func (m *StageMachine) AddRemark(lead models.Lead, text, actor string) (models.Lead, error) {
	if blank(text) {
		return models.Lead{}, appErrors.Clone(appErrors.ErrValidation, "remark cannot be empty")
	}

	out := lead.Clone()
	ts := m.stamp(lead)
	out.History = append(out.History, models.HistoryEntry{
		Type:      models.HistoryRemark,
		Content:   text,
		Timestamp: ts,
		User:      actor,
	})
	out.LastUpdated = &ts
	return out, nil
}

func blank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// stamp returns the current time at microsecond precision, nudged past the
// lead's LastUpdated so the timestamp strictly increases even on coarse or
// skewed clocks.
func (m *StageMachine) stamp(lead models.Lead) time.Time {
	ts := m.now().UTC().Truncate(time.Microsecond)
	if lead.LastUpdated != nil && !ts.After(*lead.LastUpdated) {
		ts = lead.LastUpdated.Add(time.Millisecond)
	}
	return ts
}
