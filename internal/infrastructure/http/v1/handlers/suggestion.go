package handlers

import (
	"github.com/gin-gonic/gin"

	"shajara/internal/core/apperror"
	"shajara/internal/core/id"
	"shajara/internal/domain/suggestion"
	"shajara/internal/infrastructure/http/v1/dto"
)

// SuggestionHandler handles the propose-and-review endpoints.
type SuggestionHandler struct {
	*BaseHandler
	service *suggestion.Service
}

// NewSuggestionHandler creates a new suggestion handler.
func NewSuggestionHandler(base *BaseHandler, service *suggestion.Service) *SuggestionHandler {
	return &SuggestionHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Submit handles POST /suggestions
func (h *SuggestionHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SubmitSuggestionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	targetID, err := id.Parse(req.TargetID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid target id"))
		return
	}

	s, err := h.service.Submit(ctx, targetID, req.Patch, req.Note)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, s.ID)
}

// Approve handles POST /suggestions/:id/approve
func (h *SuggestionHandler) Approve(c *gin.Context) {
	ctx := c.Request.Context()

	suggestionID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.ReviewSuggestionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	updated, err := h.service.Approve(ctx, suggestionID, req.ReviewNote)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, updated)
}

// Reject handles POST /suggestions/:id/reject
func (h *SuggestionHandler) Reject(c *gin.Context) {
	ctx := c.Request.Context()

	suggestionID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.ReviewSuggestionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.Reject(ctx, suggestionID, req.ReviewNote); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Mine handles GET /suggestions/mine
func (h *SuggestionHandler) Mine(c *gin.Context) {
	ctx := c.Request.Context()

	items, err := h.service.ListMine(ctx)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": items})
}

// PendingForTarget handles GET /profiles/:id/suggestions
func (h *SuggestionHandler) PendingForTarget(c *gin.Context) {
	ctx := c.Request.Context()

	targetID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	items, err := h.service.ListPendingForTarget(ctx, targetID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": items})
}

// RegisterRoutes registers suggestion routes.
func (h *SuggestionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Submit)
	rg.GET("/mine", h.Mine)
	rg.POST("/:id/approve", h.Approve)
	rg.POST("/:id/reject", h.Reject)
}
