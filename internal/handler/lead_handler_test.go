package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leadflow-api/internal/models"
	"github.com/noah-isme/leadflow-api/internal/service"
	appErrors "github.com/noah-isme/leadflow-api/pkg/errors"
)

type fakeLeadSrv struct {
	leads      []models.Lead
	err        error
	lastQuery  models.LeadQuery
	lastInput  models.LeadInput
	lastPatch  models.LeadPatch
	lastStage  models.Stage
	lastReason string
	lastIDs    []string
}

func (f *fakeLeadSrv) List(_ models.User, q models.LeadQuery) (*models.LeadList, error) {
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	items := make([]models.LeadView, 0, len(f.leads))
	for _, l := range f.leads {
		items = append(items, models.LeadView{Lead: l})
	}
	return &models.LeadList{Items: items, Total: len(items), Sort: models.DefaultSort()}, nil
}

func (f *fakeLeadSrv) Query(_ models.User, q models.LeadQuery) ([]models.Lead, *models.TimeRange, error) {
	f.lastQuery = q
	return f.leads, nil, f.err
}

func (f *fakeLeadSrv) Get(_ models.User, id string) (*models.Lead, error) {
	for _, l := range f.leads {
		if l.ID == id {
			lead := l
			return &lead, nil
		}
	}
	return nil, appErrors.ErrNotFound
}

func (f *fakeLeadSrv) Create(_ context.Context, _ models.User, input models.LeadInput) (*models.Lead, error) {
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return &models.Lead{ID: "new", StudentName: input.StudentName, Stage: models.StageRNR}, nil
}

func (f *fakeLeadSrv) UpdateDetails(_ context.Context, _ models.User, id string, patch models.LeadPatch) (*models.Lead, error) {
	f.lastPatch = patch
	if f.err != nil {
		return nil, f.err
	}
	return &models.Lead{ID: id}, nil
}

func (f *fakeLeadSrv) Delete(_ context.Context, _ models.User, _ string) error {
	return f.err
}

func (f *fakeLeadSrv) Assign(_ context.Context, _ models.User, counselor string, ids []string) (*models.AssignResult, error) {
	f.lastIDs = ids
	if f.err != nil {
		return nil, f.err
	}
	return &models.AssignResult{Counselor: counselor, Updated: len(ids)}, nil
}

func (f *fakeLeadSrv) ChangeStage(_ context.Context, _ models.User, id string, target models.Stage, reason string) (*models.Lead, error) {
	f.lastStage, f.lastReason = target, reason
	if f.err != nil {
		return nil, f.err
	}
	return &models.Lead{ID: id, Stage: target}, nil
}

func (f *fakeLeadSrv) AddRemark(_ context.Context, _ models.User, id, text string) (*models.Lead, error) {
	f.lastReason = text
	if f.err != nil {
		return nil, f.err
	}
	return &models.Lead{ID: id, Remarks: text}, nil
}

type staticCounselors []string

func (s staticCounselors) Counselors() []string { return s }

func newLeadHandlerUnderTest(srv *fakeLeadSrv) *LeadHandler {
	return NewLeadHandler(srv, service.NewExportService(time.UTC, nil, nil, nil), staticCounselors{"admin1", "admin2"}, LeadHandlerConfig{Location: time.UTC})
}

func TestLeadHandlerListBindsFilters(t *testing.T) {
	srv := &fakeLeadSrv{leads: []models.Lead{{ID: "1", StudentName: "Asha"}}}
	handler := newLeadHandlerUnderTest(srv)
	c, rec := newTestContext(http.MethodGet, "/leads?search=ash&stage=demo&origin=Referral&sort=student_name&direction=desc&range=7days", "")
	withUser(c, "admin1", models.RoleAdmin)

	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ash", srv.lastQuery.Search)
	assert.Equal(t, models.StageDemo, srv.lastQuery.Stage)
	assert.Equal(t, "Referral", srv.lastQuery.Origin)
	assert.Equal(t, models.SortState{Key: models.SortByStudentName, Direction: models.SortDesc}, srv.lastQuery.Sort)
	require.NotNil(t, srv.lastQuery.DateRange)
	assert.Equal(t, models.Preset7Days, srv.lastQuery.DateRange.Preset)

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, float64(1), envelope.Data["total"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
}

func TestLeadHandlerListRejectsUnknownStage(t *testing.T) {
	handler := newLeadHandlerUnderTest(&fakeLeadSrv{})
	c, rec := newTestContext(http.MethodGet, "/leads?stage=Enrolled", "")
	withUser(c, "admin1", models.RoleAdmin)

	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeadHandlerGetNotFound(t *testing.T) {
	handler := newLeadHandlerUnderTest(&fakeLeadSrv{})
	c, rec := newTestContext(http.MethodGet, "/leads/missing", "")
	c.AddParam("id", "missing")
	withUser(c, "admin1", models.RoleAdmin)

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeadHandlerCreate(t *testing.T) {
	srv := &fakeLeadSrv{}
	handler := newLeadHandlerUnderTest(srv)
	c, rec := newTestContext(http.MethodPost, "/leads", `{"student_name":"Asha","phone_number":"9876543210","course_selected":"DevOps","origin":"Walk-in"}`)
	withUser(c, "admin1", models.RoleAdmin)

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Asha", srv.lastInput.StudentName)
	assert.Equal(t, "Walk-in", srv.lastInput.Origin)
}

func TestLeadHandlerCreateRejectsMalformedJSON(t *testing.T) {
	handler := newLeadHandlerUnderTest(&fakeLeadSrv{})
	c, rec := newTestContext(http.MethodPost, "/leads", `{"student_name":`)
	withUser(c, "admin1", models.RoleAdmin)

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeadHandlerUpdatePassesPatch(t *testing.T) {
	srv := &fakeLeadSrv{}
	handler := newLeadHandlerUnderTest(srv)
	c, rec := newTestContext(http.MethodPatch, "/leads/7", `{"course_selected":"Data Science"}`)
	c.AddParam("id", "7")
	withUser(c, "admin1", models.RoleAdmin)

	handler.Update(c)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.lastPatch.CourseSelected)
	assert.Equal(t, "Data Science", *srv.lastPatch.CourseSelected)
	assert.Nil(t, srv.lastPatch.StudentName)
}

func TestLeadHandlerUpdateRejectsStageAndHistory(t *testing.T) {
	srv := &fakeLeadSrv{}
	handler := newLeadHandlerUnderTest(srv)
	body := `{"stage":"Admission","history":[{"type":"stage","content":"","user":"superadmin","from":"RNR","to":"Admission"}],"last_updated":"2030-01-01T00:00:00Z"}`
	c, rec := newTestContext(http.MethodPatch, "/leads/7", body)
	c.AddParam("id", "7")
	withUser(c, "admin1", models.RoleAdmin)

	handler.Update(c)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, envelope.Error.Code)
	assert.True(t, srv.lastPatch.IsEmpty())
}

func TestLeadHandlerDeleteForbidden(t *testing.T) {
	handler := newLeadHandlerUnderTest(&fakeLeadSrv{err: appErrors.ErrForbidden})
	c, rec := newTestContext(http.MethodDelete, "/leads/7", "")
	c.AddParam("id", "7")
	withUser(c, "admin1", models.RoleAdmin)

	handler.Delete(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLeadHandlerDelete(t *testing.T) {
	handler := newLeadHandlerUnderTest(&fakeLeadSrv{})
	c, _ := newTestContext(http.MethodDelete, "/leads/7", "")
	c.AddParam("id", "7")
	withUser(c, "boss", models.RoleSuperAdmin)

	handler.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
}

func TestLeadHandlerAssign(t *testing.T) {
	srv := &fakeLeadSrv{}
	handler := newLeadHandlerUnderTest(srv)
	c, rec := newTestContext(http.MethodPost, "/leads/assign", `{"counselor":"admin2","lead_ids":["1","2"]}`)
	withUser(c, "boss", models.RoleSuperAdmin)

	handler.Assign(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"1", "2"}, srv.lastIDs)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, float64(2), envelope.Data["updated"])
}

func TestLeadHandlerAssignRequiresIDs(t *testing.T) {
	handler := newLeadHandlerUnderTest(&fakeLeadSrv{})
	c, rec := newTestContext(http.MethodPost, "/leads/assign", `{"counselor":"admin2","lead_ids":[]}`)
	withUser(c, "boss", models.RoleSuperAdmin)

	handler.Assign(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeadHandlerChangeStage(t *testing.T) {
	srv := &fakeLeadSrv{}
	handler := newLeadHandlerUnderTest(srv)
	c, rec := newTestContext(http.MethodPost, "/leads/3/stage", `{"stage":"walk-in","reason":"Visited campus"}`)
	c.AddParam("id", "3")
	withUser(c, "admin1", models.RoleAdmin)

	handler.ChangeStage(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StageWalkIn, srv.lastStage)
	assert.Equal(t, "Visited campus", srv.lastReason)
}

func TestLeadHandlerChangeStageRequiresReason(t *testing.T) {
	handler := newLeadHandlerUnderTest(&fakeLeadSrv{})
	c, rec := newTestContext(http.MethodPost, "/leads/3/stage", `{"stage":"Demo"}`)
	c.AddParam("id", "3")
	withUser(c, "admin1", models.RoleAdmin)

	handler.ChangeStage(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeadHandlerAddRemark(t *testing.T) {
	srv := &fakeLeadSrv{}
	handler := newLeadHandlerUnderTest(srv)
	c, rec := newTestContext(http.MethodPost, "/leads/3/remarks", `{"text":"Call back after exams"}`)
	c.AddParam("id", "3")
	withUser(c, "admin1", models.RoleAdmin)

	handler.AddRemark(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Call back after exams", srv.lastReason)
}

func TestLeadHandlerExportPDF(t *testing.T) {
	srv := &fakeLeadSrv{leads: []models.Lead{{
		ID: "1", StudentName: "Asha", PhoneNumber: "9876543210", CourseSelected: "DevOps",
		Stage: models.StageDemo, Origin: "Walk-in", Date: time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC),
	}}}
	handler := newLeadHandlerUnderTest(srv)
	c, rec := newTestContext(http.MethodGet, "/leads/export?format=pdf&stage=Demo", "")
	withUser(c, "admin1", models.RoleAdmin)

	handler.Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".pdf")
	assert.True(t, len(rec.Body.Bytes()) > 4)
	assert.Equal(t, "%PDF", string(rec.Body.Bytes()[:4]))
	assert.Equal(t, models.StageDemo, srv.lastQuery.Stage)
}

func TestLeadHandlerStagesAndCounselors(t *testing.T) {
	handler := newLeadHandlerUnderTest(&fakeLeadSrv{})

	c, rec := newTestContext(http.MethodGet, "/stages", "")
	handler.Stages(c)
	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	stages, ok := envelope.Data["stages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, stages, len(models.Stages())+1)
	assert.Equal(t, float64(service.DefaultOverdueDays), envelope.Data["overdue_threshold_days"])

	c, rec = newTestContext(http.MethodGet, "/counselors", "")
	handler.Counselors(c)
	require.Equal(t, http.StatusOK, rec.Code)
	envelope = decodeEnvelope(t, rec)
	assert.Equal(t, []interface{}{"admin1", "admin2"}, envelope.Data["counselors"])
}
