package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/leadflow-api/internal/models"
)

var (
	sampleCourses = []string{"Full Stack Development", "Data Science", "Cloud Computing", "DevOps", "Cybersecurity"}
	sampleOrigins = []string{"DGM", "Website Lead", "Facebook Lead", "Direct Call"}
	sampleStages  = []models.Stage{
		models.StageRNR,
		models.StageInterested,
		models.StageNotInterested,
		models.StageWalkIn,
		models.StageInterestedWalkIn,
		models.StageDemo,
		models.StageDemoCompleted,
		models.StageAdmission,
	}
)

// SampleGenerator produces demo leads spread over the last 30 days.
type SampleGenerator struct {
	rnd        *rand.Rand
	now        func() time.Time
	counselors []string
}

// NewSampleGenerator builds a generator. A zero seed uses the current time.
func NewSampleGenerator(seed int64, counselors []string, now func() time.Time) *SampleGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if now == nil {
		now = time.Now
	}
	return &SampleGenerator{rnd: rand.New(rand.NewSource(seed)), now: now, counselors: counselors}
}

// Generate returns count leads without ids, numbered from offset+1.
func (g *SampleGenerator) Generate(count, offset int) []models.Lead {
	now := g.now().UTC()
	leads := make([]models.Lead, 0, count)
	for i := 0; i < count; i++ {
		n := offset + i + 1
		updated := now
		lead := models.Lead{
			StudentName:    fmt.Sprintf("Student %d", n),
			PhoneNumber:    fmt.Sprintf("98765%05d", (43210+n-1)%100000),
			Date:           now.AddDate(0, 0, -g.rnd.Intn(30)),
			CourseSelected: sampleCourses[g.rnd.Intn(len(sampleCourses))],
			Stage:          sampleStages[g.rnd.Intn(len(sampleStages))],
			Origin:         sampleOrigins[g.rnd.Intn(len(sampleOrigins))],
			LastUpdated:    &updated,
			History:        []models.HistoryEntry{},
		}
		if len(g.counselors) > 0 {
			lead.AssignedTo = g.counselors[g.rnd.Intn(len(g.counselors))]
		}
		leads = append(leads, lead)
	}
	return leads
}

type leadImporter interface {
	Len() int
	Import(ctx context.Context, leads []models.Lead) (int, error)
}

// SeedLeads imports count generated leads. With onlyIfEmpty it does nothing
// when the store already holds leads.
func SeedLeads(ctx context.Context, store leadImporter, gen *SampleGenerator, count int, onlyIfEmpty bool, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	existing := store.Len()
	if count <= 0 || (onlyIfEmpty && existing > 0) {
		return 0, nil
	}
	n, err := store.Import(ctx, gen.Generate(count, existing))
	if err != nil {
		return 0, err
	}
	logger.Info("sample leads imported", zap.Int("count", n))
	return n, nil
}
