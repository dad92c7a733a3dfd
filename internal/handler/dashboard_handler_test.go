package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leadflow-api/internal/middleware"
	"github.com/noah-isme/leadflow-api/internal/models"
	"github.com/noah-isme/leadflow-api/internal/service"
	appErrors "github.com/noah-isme/leadflow-api/pkg/errors"
)

type fakeDashboardSrv struct {
	summary   *models.DashboardSummary
	report    *models.ReportSummary
	hit       bool
	err       error
	leads     []models.Lead
	lastSel   models.DateRangeSelection
	lastUser  models.User
	lastRange models.TimeRange
}

func (f *fakeDashboardSrv) Dashboard(_ context.Context, user models.User, sel models.DateRangeSelection) (*models.DashboardSummary, bool, error) {
	f.lastUser, f.lastSel = user, sel
	return f.summary, f.hit, f.err
}

func (f *fakeDashboardSrv) Report(_ context.Context, user models.User, sel models.DateRangeSelection) (*models.ReportSummary, bool, error) {
	f.lastUser, f.lastSel = user, sel
	return f.report, f.hit, f.err
}

func (f *fakeDashboardSrv) ResolveReportRange(sel models.DateRangeSelection) (models.TimeRange, error) {
	f.lastSel = sel
	if f.err != nil {
		return models.TimeRange{}, f.err
	}
	return f.lastRange, nil
}

func (f *fakeDashboardSrv) ReportLeads(user models.User, _ models.TimeRange) []models.Lead {
	f.lastUser = user
	return f.leads
}

type responseEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newTestContext(method, target string, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	c.Request = req
	return c, rec
}

func withUser(c *gin.Context, username string, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{Username: username, Role: role})
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestDashboardHandlerRequiresUser(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{}, nil, time.UTC)
	c, rec := newTestContext(http.MethodGet, "/dashboard", "")

	handler.Dashboard(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardHandlerSuccess(t *testing.T) {
	srv := &fakeDashboardSrv{summary: &models.DashboardSummary{TotalLeads: 4, OverdueLeads: 1}, hit: true}
	handler := NewDashboardHandler(srv, nil, time.UTC)
	c, rec := newTestContext(http.MethodGet, "/dashboard?range=7days", "")
	withUser(c, "admin1", models.RoleAdmin)

	handler.Dashboard(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
	assert.Equal(t, float64(4), envelope.Data["total_leads"])
	assert.Equal(t, models.Preset7Days, srv.lastSel.Preset)
	assert.Equal(t, "admin1", srv.lastUser.Username)
}

func TestDashboardHandlerCustomRange(t *testing.T) {
	srv := &fakeDashboardSrv{summary: &models.DashboardSummary{}}
	handler := NewDashboardHandler(srv, nil, time.UTC)
	c, rec := newTestContext(http.MethodGet, "/dashboard?start=2024-03-01&end=2024-03-05", "")
	withUser(c, "boss", models.RoleSuperAdmin)

	handler.Dashboard(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.PresetCustom, srv.lastSel.Preset)
	require.NotNil(t, srv.lastSel.Start)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *srv.lastSel.Start)
}

func TestDashboardHandlerInvalidDate(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{}, nil, time.UTC)
	c, rec := newTestContext(http.MethodGet, "/dashboard?range=custom&start=03/01/2024", "")
	withUser(c, "boss", models.RoleSuperAdmin)

	handler.Dashboard(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardHandlerReportError(t *testing.T) {
	srv := &fakeDashboardSrv{err: appErrors.Clone(appErrors.ErrValidation, "unknown date range preset")}
	handler := NewDashboardHandler(srv, nil, time.UTC)
	c, rec := newTestContext(http.MethodGet, "/reports?range=fortnight", "")
	withUser(c, "boss", models.RoleSuperAdmin)

	handler.Report(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, envelope.Error.Code)
}

func TestDashboardHandlerReportExportCSV(t *testing.T) {
	srv := &fakeDashboardSrv{leads: []models.Lead{{
		ID: "1", StudentName: "Asha", PhoneNumber: "9876543210", CourseSelected: "DevOps",
		Stage: models.StageDemo, Origin: "Walk-in", AssignedTo: "admin1",
		Date: time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC),
	}}}
	handler := NewDashboardHandler(srv, service.NewExportService(time.UTC, nil, nil, nil), time.UTC)
	c, rec := newTestContext(http.MethodGet, "/reports/export?format=csv&range=30days", "")
	withUser(c, "admin1", models.RoleAdmin)

	handler.ReportExport(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "report_")
	assert.Contains(t, rec.Body.String(), "Asha")
	assert.Equal(t, models.Preset30Days, srv.lastSel.Preset)
}

func TestDashboardHandlerReportExportRejectsFormat(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{}, service.NewExportService(time.UTC, nil, nil, nil), time.UTC)
	c, rec := newTestContext(http.MethodGet, "/reports/export?format=xlsx", "")
	withUser(c, "admin1", models.RoleAdmin)

	handler.ReportExport(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
