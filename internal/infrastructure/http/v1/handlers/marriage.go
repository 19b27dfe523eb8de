package handlers

import (
	"github.com/gin-gonic/gin"

	"shajara/internal/domain/mutation"
	"shajara/internal/infrastructure/http/v1/dto"
)

// MarriageHandler handles marriage endpoints. All writes go through the
// mutation gateway; marriage reads live under the profile routes.
type MarriageHandler struct {
	*BaseHandler
	mutations *mutation.Service
}

// NewMarriageHandler creates a new marriage handler.
func NewMarriageHandler(base *BaseHandler, mutations *mutation.Service) *MarriageHandler {
	return &MarriageHandler{
		BaseHandler: base,
		mutations:   mutations,
	}
}

// Create handles POST /marriages
func (h *MarriageHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateMarriageRequest
	if !h.BindJSON(c, &req) {
		return
	}

	m, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.mutations.CreateMarriage(ctx, m); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, m.ID)
}

// Update handles PATCH /marriages/:id
func (h *MarriageHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	marriageID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateMarriageRequest
	if !h.BindJSON(c, &req) {
		return
	}

	updated, err := h.mutations.UpdateMarriage(ctx, marriageID, req.Version, req.Patch)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, updated)
}

// Delete handles DELETE /marriages/:id
func (h *MarriageHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	marriageID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.VersionedRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.mutations.SoftDeleteMarriage(ctx, marriageID, req.Version); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// RegisterRoutes registers marriage routes.
func (h *MarriageHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.PATCH("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}
