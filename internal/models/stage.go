package models

import "strings"

// Stage is a position in the sales funnel.
type Stage string

const (
	StageRNR           Stage = "RNR"
	StageInterested    Stage = "Interested"
	StageNotInterested Stage = "Not Interested"
	StageWalkIn        Stage = "Walk-in"
	StageDemo          Stage = "Demo"
	StageDemoCompleted Stage = "Demo Completed"
	StageAdmission     Stage = "Admission"

	// StageInterestedWalkIn only appears on records created before the
	// vocabulary was split into Interested and Walk-in.
	StageInterestedWalkIn Stage = "Interested Walk-in"
)

// InitialStage is assigned to leads created without an explicit stage.
const InitialStage = StageRNR

var canonicalStages = []Stage{
	StageRNR,
	StageInterested,
	StageNotInterested,
	StageWalkIn,
	StageDemo,
	StageDemoCompleted,
	StageAdmission,
}

// StageMeta carries display hints for a stage.
type StageMeta struct {
	Stage  Stage  `json:"stage"`
	Label  string `json:"label"`
	Color  string `json:"color"`
	Icon   string `json:"icon"`
	Legacy bool   `json:"legacy,omitempty"`
}

var stageMetadata = map[Stage]StageMeta{
	StageRNR:              {Stage: StageRNR, Label: "RNR", Color: "orange", Icon: "phone-missed"},
	StageInterested:       {Stage: StageInterested, Label: "Interested", Color: "blue", Icon: "thumbs-up"},
	StageNotInterested:    {Stage: StageNotInterested, Label: "Not Interested", Color: "red", Icon: "thumbs-down"},
	StageWalkIn:           {Stage: StageWalkIn, Label: "Walk-in", Color: "violet", Icon: "footprints"},
	StageDemo:             {Stage: StageDemo, Label: "Demo", Color: "indigo", Icon: "presentation"},
	StageDemoCompleted:    {Stage: StageDemoCompleted, Label: "Demo Completed", Color: "green", Icon: "circle-check"},
	StageAdmission:        {Stage: StageAdmission, Label: "Admission", Color: "emerald", Icon: "graduation-cap"},
	StageInterestedWalkIn: {Stage: StageInterestedWalkIn, Label: "Interested Walk-in", Color: "purple", Icon: "user-check", Legacy: true},
}

// Stages returns the canonical stages in funnel order. The legacy value is not included.
func Stages() []Stage {
	out := make([]Stage, len(canonicalStages))
	copy(out, canonicalStages)
	return out
}

// IsCanonical reports whether s may be used as a transition target.
func (s Stage) IsCanonical() bool {
	for _, c := range canonicalStages {
		if c == s {
			return true
		}
	}
	return false
}

// IsKnown reports whether s may appear on a stored lead.
func (s Stage) IsKnown() bool {
	return s.IsCanonical() || s == StageInterestedWalkIn
}

// Metadata returns display hints; unknown stages render as their raw value in gray.
func (s Stage) Metadata() StageMeta {
	if meta, ok := stageMetadata[s]; ok {
		return meta
	}
	return StageMeta{Stage: s, Label: string(s), Color: "gray", Icon: "circle"}
}

// ParseStage matches raw case-insensitively against the known vocabulary.
func ParseStage(raw string) (Stage, bool) {
	trimmed := strings.TrimSpace(raw)
	for s := range stageMetadata {
		if strings.EqualFold(string(s), trimmed) {
			return s, true
		}
	}
	return Stage(trimmed), false
}
