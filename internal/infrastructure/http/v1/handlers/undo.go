package handlers

import (
	"github.com/gin-gonic/gin"

	"shajara/internal/domain/undo"
	"shajara/internal/infrastructure/http/v1/dto"
)

// UndoHandler exposes the undo engine.
type UndoHandler struct {
	*BaseHandler
	service *undo.Service
}

// NewUndoHandler creates a new undo handler.
func NewUndoHandler(base *BaseHandler, service *undo.Service) *UndoHandler {
	return &UndoHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Check handles GET /undo/:entryId/check
func (h *UndoHandler) Check(c *gin.Context) {
	ctx := c.Request.Context()

	entryID, ok := h.ParseIDParam(c, "entryId")
	if !ok {
		return
	}

	check, err := h.service.CheckPermission(ctx, entryID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, check)
}

// Undo handles POST /undo/:entryId
func (h *UndoHandler) Undo(c *gin.Context) {
	ctx := c.Request.Context()

	entryID, ok := h.ParseIDParam(c, "entryId")
	if !ok {
		return
	}

	// The body is optional; an empty POST undoes without a stated reason.
	var req dto.UndoRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}

	clr, err := h.service.Undo(ctx, entryID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, clr)
}

// UndoCascade handles POST /undo/groups/:groupId
func (h *UndoHandler) UndoCascade(c *gin.Context) {
	ctx := c.Request.Context()

	groupID, ok := h.ParseIDParam(c, "groupId")
	if !ok {
		return
	}

	var req dto.UndoRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.UndoCascade(ctx, groupID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// RegisterRoutes registers undo routes.
func (h *UndoHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:entryId/check", h.Check)
	rg.POST("/groups/:groupId", h.UndoCascade)
	rg.POST("/:entryId", h.Undo)
}
