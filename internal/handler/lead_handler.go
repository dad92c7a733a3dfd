package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/leadflow-api/internal/dto"
	"github.com/noah-isme/leadflow-api/internal/middleware"
	"github.com/noah-isme/leadflow-api/internal/models"
	"github.com/noah-isme/leadflow-api/internal/service"
	appErrors "github.com/noah-isme/leadflow-api/pkg/errors"
	"github.com/noah-isme/leadflow-api/pkg/export"
	"github.com/noah-isme/leadflow-api/pkg/response"
)

type leadService interface {
	List(user models.User, q models.LeadQuery) (*models.LeadList, error)
	Query(user models.User, q models.LeadQuery) ([]models.Lead, *models.TimeRange, error)
	Get(user models.User, id string) (*models.Lead, error)
	Create(ctx context.Context, user models.User, input models.LeadInput) (*models.Lead, error)
	UpdateDetails(ctx context.Context, user models.User, id string, patch models.LeadPatch) (*models.Lead, error)
	Delete(ctx context.Context, user models.User, id string) error
	Assign(ctx context.Context, user models.User, counselor string, ids []string) (*models.AssignResult, error)
	ChangeStage(ctx context.Context, user models.User, id string, target models.Stage, reason string) (*models.Lead, error)
	AddRemark(ctx context.Context, user models.User, id, text string) (*models.Lead, error)
}

type leadExporter interface {
	Render(format export.Format, name string, leads []models.Lead) (*service.ExportFile, error)
}

type counselorLister interface {
	Counselors() []string
}

// LeadHandlerConfig carries presentation settings.
type LeadHandlerConfig struct {
	Location             *time.Location
	OverdueThresholdDays int
}

// LeadHandler exposes lead management endpoints.
type LeadHandler struct {
	service    leadService
	exporter   leadExporter
	counselors counselorLister
	cfg        LeadHandlerConfig
}

// NewLeadHandler constructs the handler.
func NewLeadHandler(svc leadService, exporter leadExporter, counselors counselorLister, cfg LeadHandlerConfig) *LeadHandler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.OverdueThresholdDays <= 0 {
		cfg.OverdueThresholdDays = service.DefaultOverdueDays
	}
	return &LeadHandler{service: svc, exporter: exporter, counselors: counselors, cfg: cfg}
}

// List godoc
// @Summary List leads
// @Description Leads visible to the caller, windowed, filtered and sorted
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name, phone or course substring"
// @Param stage query string false "Stage"
// @Param origin query string false "Origin"
// @Param course query string false "Course"
// @Param assigned_to query string false "Counselor (superadmin only)"
// @Param sort query string false "Sort key"
// @Param direction query string false "asc or desc"
// @Param range query string false "Date preset"
// @Param start query string false "Custom start (YYYY-MM-DD)"
// @Param end query string false "Custom end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /leads [get]
func (h *LeadHandler) List(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	start := time.Now()
	var params dto.LeadListQuery
	if err := c.ShouldBindQuery(&params); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	q, err := params.ToQuery(h.cfg.Location)
	if err != nil {
		response.Error(c, err)
		return
	}

	list, err := h.service.List(user, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, middleware.ResponseMeta(c, start))
}

// Get godoc
// @Summary Get lead
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leads/{id} [get]
func (h *LeadHandler) Get(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	lead, err := h.service.Get(user, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead)
}

// Create godoc
// @Summary Create lead
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.LeadInput true "Lead payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /leads [post]
func (h *LeadHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var input models.LeadInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, bindError(err, "invalid lead payload"))
		return
	}
	lead, err := h.service.Create(c.Request.Context(), user, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lead)
}

// Update godoc
// @Summary Update lead details
// @Description Shallow merge of detail fields; stage and history change through their own endpoints
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Param payload body dto.LeadDetailsRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leads/{id} [patch]
func (h *LeadHandler) Update(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.LeadDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid lead payload"))
		return
	}
	if fields := req.ReadOnlyFields(); len(fields) > 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("%s cannot be set here; use the stage and remarks endpoints", strings.Join(fields, ", "))))
		return
	}
	lead, err := h.service.UpdateDetails(c.Request.Context(), user, c.Param("id"), req.ToPatch())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead)
}

// Delete godoc
// @Summary Delete lead
// @Tags Leads
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leads/{id} [delete]
func (h *LeadHandler) Delete(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), user, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Assign godoc
// @Summary Assign leads to a counselor
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AssignRequest true "Assignment"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /leads/assign [post]
func (h *LeadHandler) Assign(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "counselor and lead_ids are required"))
		return
	}
	res, err := h.service.Assign(c.Request.Context(), user, req.Counselor, req.LeadIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// ChangeStage godoc
// @Summary Move lead to another stage
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Param payload body dto.StageChangeRequest true "Target stage and reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leads/{id}/stage [post]
func (h *LeadHandler) ChangeStage(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.StageChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "stage and reason are required"))
		return
	}
	target, _ := models.ParseStage(req.Stage)
	lead, err := h.service.ChangeStage(c.Request.Context(), user, c.Param("id"), target, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead)
}

// AddRemark godoc
// @Summary Add remark
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Param payload body dto.RemarkRequest true "Remark"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leads/{id}/remarks [post]
func (h *LeadHandler) AddRemark(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.RemarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "text is required"))
		return
	}
	lead, err := h.service.AddRemark(c.Request.Context(), user, c.Param("id"), req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lead)
}

// Export godoc
// @Summary Export leads
// @Description Current filtered lead view as CSV or PDF
// @Tags Leads
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /leads/export [get]
func (h *LeadHandler) Export(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var params dto.ExportQuery
	if err := c.ShouldBindQuery(&params); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	format, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(params.Format)))
	if err != nil {
		response.Error(c, bindError(err, err.Error()))
		return
	}
	q, err := params.ToQuery(h.cfg.Location)
	if err != nil {
		response.Error(c, err)
		return
	}
	leads, _, err := h.service.Query(user, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.Render(format, "leads", leads)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export"))
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// Stages godoc
// @Summary Stage vocabulary
// @Description Canonical and legacy stages with display metadata
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /stages [get]
func (h *LeadHandler) Stages(c *gin.Context) {
	stages := models.Stages()
	stages = append(stages, models.StageInterestedWalkIn)
	metas := make([]models.StageMeta, 0, len(stages))
	for _, s := range stages {
		metas = append(metas, s.Metadata())
	}
	response.JSON(c, http.StatusOK, dto.StagesResponse{Stages: metas, OverdueThresholdDays: h.cfg.OverdueThresholdDays})
}

// Counselors godoc
// @Summary Assignable counselors
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /counselors [get]
func (h *LeadHandler) Counselors(c *gin.Context) {
	response.JSON(c, http.StatusOK, dto.CounselorsResponse{Counselors: h.counselors.Counselors()})
}
