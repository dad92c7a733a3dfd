package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/leadflow-api/internal/dto"
	"github.com/noah-isme/leadflow-api/internal/models"
	"github.com/noah-isme/leadflow-api/internal/service"
	"github.com/noah-isme/leadflow-api/pkg/response"
)

type messagingService interface {
	Templates() []models.MessageTemplate
	Preview(user models.User, req service.MessageRequest) ([]models.ComposedMessage, []string, error)
	Send(ctx context.Context, user models.User, req service.MessageRequest) (*models.DispatchResult, error)
}

// MessageHandler exposes templated outreach endpoints.
type MessageHandler struct {
	service messagingService
}

// NewMessageHandler constructs the handler.
func NewMessageHandler(svc messagingService) *MessageHandler {
	return &MessageHandler{service: svc}
}

// Templates godoc
// @Summary Message templates
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /messages/templates [get]
func (h *MessageHandler) Templates(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Templates())
}

// Preview godoc
// @Summary Preview messages
// @Description Resolves placeholders for each selected lead without sending
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.MessageRequest true "Template or body with recipients"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /messages/preview [post]
func (h *MessageHandler) Preview(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "lead_ids are required"))
		return
	}
	msgs, skipped, err := h.service.Preview(user, toMessageRequest(req))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.MessagePreviewResponse{Messages: msgs, Skipped: skipped})
}

// Send godoc
// @Summary Send messages
// @Description Queues one delivery per recipient
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.MessageRequest true "Template or body with recipients"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /messages/send [post]
func (h *MessageHandler) Send(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "lead_ids are required"))
		return
	}
	result, err := h.service.Send(c.Request.Context(), user, toMessageRequest(req))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, result)
}

func toMessageRequest(req dto.MessageRequest) service.MessageRequest {
	return service.MessageRequest{Template: req.Template, Body: req.Body, LeadIDs: req.LeadIDs}
}
