package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leadflow-api/internal/models"
	appErrors "github.com/noah-isme/leadflow-api/pkg/errors"
)

type stubDirectory map[string]models.User

func (d stubDirectory) Lookup(username string) (models.User, bool) {
	u, ok := d[username]
	return u, ok
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) { c.calls++ }

func newTestLeadService(t *testing.T, seed ...models.Lead) (*LeadService, *LeadStore, *fakePersister, *countingInvalidator) {
	t.Helper()
	store, p := newTestStore(t, seed...)
	inv := &countingInvalidator{}
	svc := NewLeadService(LeadServiceParams{
		Store:     store,
		Policy:    NewAccessPolicy(),
		Stages:    NewStageMachine(fixedClock),
		Query:     NewQueryEngine(fixedClock, time.UTC),
		Directory: stubDirectory{"admin1": adminOne, "admin2": adminTwo, "root": superUser},
		Cache:     inv,
		Now:       fixedClock,
	})
	return svc, store, p, inv
}

func TestLeadServiceListScopesAndFlagsOverdue(t *testing.T) {
	svc, _, _, _ := newTestLeadService(t, dashboardFixture()...)

	list, err := svc.List(adminOne, models.LeadQuery{AssignedTo: "admin2"})
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total)
	assert.Equal(t, models.DefaultSort(), list.Sort)
	assert.Nil(t, list.Range)
	got := make(map[string]bool)
	for _, item := range list.Items {
		got[item.ID] = item.Overdue
	}
	assert.Equal(t, map[string]bool{"1": false, "3": true, "5": false}, got)

	list, err = svc.List(superUser, models.LeadQuery{AssignedTo: "admin2"})
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "2", list.Items[0].ID)

	list, err = svc.List(superUser, models.LeadQuery{
		DateRange: &models.DateRangeSelection{Preset: models.PresetToday},
		Sort:      models.SortState{Key: models.SortByDate, Direction: models.SortAsc},
	})
	require.NoError(t, err)
	require.NotNil(t, list.Range)
	assert.Equal(t, "2", list.Items[0].ID)
	assert.Equal(t, "1", list.Items[1].ID)
}

func TestLeadServiceGetHidesOtherCounselorsLeads(t *testing.T) {
	svc, _, _, _ := newTestLeadService(t, dashboardFixture()...)

	_, err := svc.Get(adminOne, "2")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	lead, err := svc.Get(adminTwo, "2")
	require.NoError(t, err)
	assert.Equal(t, models.StageDemo, lead.Stage)
}

func TestLeadServiceCreateAssignment(t *testing.T) {
	svc, _, _, inv := newTestLeadService(t)
	ctx := context.Background()

	input := validInput()
	input.AssignedTo = "admin2"
	lead, err := svc.Create(ctx, adminOne, input)
	require.NoError(t, err)
	assert.Equal(t, "admin1", lead.AssignedTo)
	assert.Equal(t, 1, inv.calls)

	lead, err = svc.Create(ctx, superUser, input)
	require.NoError(t, err)
	assert.Equal(t, "admin2", lead.AssignedTo)

	input.AssignedTo = ""
	lead, err = svc.Create(ctx, superUser, input)
	require.NoError(t, err)
	assert.False(t, lead.IsAssigned())

	input.AssignedTo = "root"
	_, err = svc.Create(ctx, superUser, input)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestLeadServiceUpdateDetails(t *testing.T) {
	svc, _, _, inv := newTestLeadService(t, dashboardFixture()...)
	ctx := context.Background()

	lead, err := svc.UpdateDetails(ctx, adminOne, "5", models.LeadPatch{Remarks: ptr("prefers weekends")})
	require.NoError(t, err)
	assert.Equal(t, "prefers weekends", lead.Remarks)
	require.NotNil(t, lead.LastUpdated)
	assert.Equal(t, testNow, *lead.LastUpdated)
	assert.Equal(t, 1, inv.calls)

	_, err = svc.UpdateDetails(ctx, adminOne, "5", models.LeadPatch{AssignedTo: ptr("admin2")})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.UpdateDetails(ctx, adminOne, "2", models.LeadPatch{Remarks: ptr("x")})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.UpdateDetails(ctx, adminOne, "5", models.LeadPatch{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	lead, err = svc.UpdateDetails(ctx, superUser, "5", models.LeadPatch{AssignedTo: ptr("admin2")})
	require.NoError(t, err)
	assert.Equal(t, "admin2", lead.AssignedTo)
}

func TestLeadServiceDelete(t *testing.T) {
	svc, store, _, inv := newTestLeadService(t, dashboardFixture()...)
	ctx := context.Background()

	err := svc.Delete(ctx, adminOne, "1")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, svc.Delete(ctx, superUser, "1"))
	assert.Equal(t, 4, store.Len())
	assert.Equal(t, 1, inv.calls)

	err = svc.Delete(ctx, superUser, "1")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestLeadServiceAssign(t *testing.T) {
	svc, store, _, inv := newTestLeadService(t, dashboardFixture()...)
	ctx := context.Background()

	_, err := svc.Assign(ctx, adminOne, "admin1", []string{"2"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Assign(ctx, superUser, "ghost", []string{"2"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Assign(ctx, superUser, "admin1", nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	res, err := svc.Assign(ctx, superUser, "admin1", []string{"2", "4", "missing"})
	require.NoError(t, err)
	assert.Equal(t, &models.AssignResult{Counselor: "admin1", Updated: 2}, res)
	assert.Equal(t, 1, inv.calls)

	lead, err := store.Get("4")
	require.NoError(t, err)
	assert.Equal(t, "admin1", lead.AssignedTo)
	assert.Empty(t, lead.History)
}

func TestLeadServiceAssignChangesVisibility(t *testing.T) {
	svc, store, _, _ := newTestLeadService(t,
		models.Lead{ID: "A", StudentName: "A", Stage: models.StageRNR, AssignedTo: "admin1"},
		models.Lead{ID: "B", StudentName: "B", Stage: models.StageRNR, AssignedTo: "admin2"},
		models.Lead{ID: "C", StudentName: "C", Stage: models.StageRNR, AssignedTo: "admin1"},
	)
	policy := NewAccessPolicy()
	assert.Equal(t, []string{"B"}, ids(policy.VisibleLeads(store.All(), adminTwo)))

	_, err := svc.Assign(context.Background(), superUser, "admin2", []string{"A"})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, ids(policy.VisibleLeads(store.All(), adminTwo)))
	assert.Equal(t, []string{"C"}, ids(policy.VisibleLeads(store.All(), adminOne)))

	list, err := svc.List(adminTwo, models.LeadQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)
}

func TestLeadServiceUpdateDetailsCannotBypassStageMachine(t *testing.T) {
	svc, store, p, _ := newTestLeadService(t, dashboardFixture()...)
	ctx := context.Background()
	before, _ := store.Get("5")
	savesBefore := p.saves

	admission := models.StageAdmission
	forged := []models.HistoryEntry{{
		Type: models.HistoryStage, Content: "", User: "root",
		Timestamp: testNow.AddDate(-3, 0, 0), From: models.StageInterested, To: admission,
	}}
	future := testNow.AddDate(1, 0, 0)

	patches := []models.LeadPatch{
		{Stage: &admission, History: &forged, LastUpdated: &future},
		{Stage: &admission},
		{History: &forged},
		{LastUpdated: &future},
		{Remarks: ptr("x"), LastUpdated: &future},
	}
	for i, patch := range patches {
		_, err := svc.UpdateDetails(ctx, adminOne, "5", patch)
		assert.True(t, appErrors.Is(err, appErrors.ErrValidation), "patch %d", i)
	}

	after, _ := store.Get("5")
	assert.Equal(t, before, after)
	assert.Equal(t, savesBefore, p.saves)
}

func TestLeadServiceChangeStageAndRemark(t *testing.T) {
	svc, _, p, inv := newTestLeadService(t, dashboardFixture()...)
	ctx := context.Background()

	lead, err := svc.ChangeStage(ctx, adminOne, "5", models.StageDemo, "demo booked")
	require.NoError(t, err)
	assert.Equal(t, models.StageDemo, lead.Stage)
	require.Len(t, lead.History, 1)
	assert.Equal(t, models.StageInterested, lead.History[0].From)
	assert.Equal(t, "admin1", lead.History[0].User)
	assert.Equal(t, models.StageDemo, p.stored[4].Stage)

	lead, err = svc.AddRemark(ctx, adminOne, "5", "attended with parent")
	require.NoError(t, err)
	require.Len(t, lead.History, 2)
	assert.Equal(t, models.HistoryRemark, lead.History[1].Type)
	assert.True(t, lead.History[1].Timestamp.After(lead.History[0].Timestamp))
	assert.Equal(t, 2, inv.calls)

	_, err = svc.ChangeStage(ctx, adminOne, "5", models.StageAdmission, "  ")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.ChangeStage(ctx, adminTwo, "5", models.StageAdmission, "joined")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.AddRemark(ctx, superUser, "5", "")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, 2, inv.calls)
}

func TestLeadServicePersistFailureSurfaces(t *testing.T) {
	svc, store, p, inv := newTestLeadService(t, dashboardFixture()...)
	p.saveErr = errors.New("redis down")

	_, err := svc.ChangeStage(context.Background(), superUser, "1", models.StageDemo, "rollback")
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
	assert.Zero(t, inv.calls)

	lead, err := store.Get("1")
	require.NoError(t, err)
	assert.Equal(t, models.StageAdmission, lead.Stage)
	assert.Empty(t, lead.History)
}
