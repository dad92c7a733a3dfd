package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/leadflow-api/internal/dto"
	"github.com/noah-isme/leadflow-api/internal/middleware"
	"github.com/noah-isme/leadflow-api/internal/models"
	appErrors "github.com/noah-isme/leadflow-api/pkg/errors"
	"github.com/noah-isme/leadflow-api/pkg/export"
	"github.com/noah-isme/leadflow-api/pkg/response"
)

type dashboardService interface {
	Dashboard(ctx context.Context, user models.User, sel models.DateRangeSelection) (*models.DashboardSummary, bool, error)
	Report(ctx context.Context, user models.User, sel models.DateRangeSelection) (*models.ReportSummary, bool, error)
	ResolveReportRange(sel models.DateRangeSelection) (models.TimeRange, error)
	ReportLeads(user models.User, r models.TimeRange) []models.Lead
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service  dashboardService
	exporter leadExporter
	loc      *time.Location
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService, exporter leadExporter, loc *time.Location) *DashboardHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardHandler{service: service, exporter: exporter, loc: loc}
}

// Dashboard godoc
// @Summary Dashboard summary
// @Description Totals, conversion, fresh and overdue counts with stage and origin breakdowns
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Param range query string false "today, yesterday, 7days, 15days, 30days, 1month, 90days or custom"
// @Param start query string false "Custom start (YYYY-MM-DD)"
// @Param end query string false "Custom end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	sel, ok := h.selection(c)
	if !ok {
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.service.Dashboard(c.Request.Context(), user, sel)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, middleware.ResponseMeta(c, start))
}

// Report godoc
// @Summary Reports summary
// @Description Headline metrics, breakdowns and daily trend for the selected window
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param range query string false "Date preset"
// @Param start query string false "Custom start (YYYY-MM-DD)"
// @Param end query string false "Custom end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports [get]
func (h *DashboardHandler) Report(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	sel, ok := h.selection(c)
	if !ok {
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.service.Report(c.Request.Context(), user, sel)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, middleware.ResponseMeta(c, start))
}

// ReportExport godoc
// @Summary Export report leads
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf"
// @Param range query string false "Date preset"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /reports/export [get]
func (h *DashboardHandler) ReportExport(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(c.Query("format"))))
	if err != nil {
		response.Error(c, bindError(err, err.Error()))
		return
	}
	sel, ok := h.selection(c)
	if !ok {
		return
	}
	window, err := h.service.ResolveReportRange(sel)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.Render(format, "report", h.service.ReportLeads(user, window))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export"))
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

func (h *DashboardHandler) selection(c *gin.Context) (models.DateRangeSelection, bool) {
	var params dto.RangeQuery
	if err := c.ShouldBindQuery(&params); err != nil {
		response.Error(c, bindError(err, "invalid range parameters"))
		return models.DateRangeSelection{}, false
	}
	sel, err := params.Selection(h.loc)
	if err != nil {
		response.Error(c, err)
		return models.DateRangeSelection{}, false
	}
	return sel, true
}
