package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"shajara/internal/core/tx"
	"shajara/internal/domain/marriage"
	"shajara/internal/domain/mutation"
	"shajara/internal/domain/profile"
	"shajara/internal/infrastructure/http/v1/dto"
)

// ProfileHandler handles profile endpoints. Reads go straight to the
// repository under the read statement budget; every write goes through the
// mutation gateway.
type ProfileHandler struct {
	*BaseHandler
	mutations *mutation.Service
	profiles  profile.Repository
	marriages marriage.Repository

	txm         tx.Manager
	readTimeout time.Duration
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(
	base *BaseHandler,
	mutations *mutation.Service,
	profiles profile.Repository,
	marriages marriage.Repository,
	txm tx.Manager,
	readTimeout time.Duration,
) *ProfileHandler {
	return &ProfileHandler{
		BaseHandler: base,
		mutations:   mutations,
		profiles:    profiles,
		marriages:   marriages,
		txm:         txm,
		readTimeout: readTimeout,
	}
}

// Get handles GET /profiles/:id
func (h *ProfileHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	profileID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var p *profile.Profile
	err := h.txm.RunWithTimeout(ctx, h.readTimeout, func(ctx context.Context) error {
		var err error
		p, err = h.profiles.GetByID(ctx, profileID)
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, p)
}

// Children handles GET /profiles/:id/children
func (h *ProfileHandler) Children(c *gin.Context) {
	ctx := c.Request.Context()

	profileID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var children []*profile.Profile
	err := h.txm.RunWithTimeout(ctx, h.readTimeout, func(ctx context.Context) error {
		var err error
		children, err = h.profiles.ChildrenOf(ctx, profileID)
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": children})
}

// Marriages handles GET /profiles/:id/marriages
func (h *ProfileHandler) Marriages(c *gin.Context) {
	ctx := c.Request.Context()

	profileID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var items []*marriage.Marriage
	err := h.txm.RunWithTimeout(ctx, h.readTimeout, func(ctx context.Context) error {
		var err error
		items, err = h.marriages.ListByProfile(ctx, profileID)
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": items})
}

// Create handles POST /profiles
func (h *ProfileHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateProfileRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.mutations.CreateProfile(ctx, p); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, p.ID)
}

// Update handles PATCH /profiles/:id
func (h *ProfileHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	profileID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateProfileRequest
	if !h.BindJSON(c, &req) {
		return
	}

	updated, err := h.mutations.UpdateProfile(ctx, profileID, req.Version, req.Patch)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, updated)
}

// Delete handles DELETE /profiles/:id
func (h *ProfileHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	profileID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.VersionedRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.mutations.SoftDeleteProfile(ctx, profileID, req.Version); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Restore handles POST /profiles/:id/restore
func (h *ProfileHandler) Restore(c *gin.Context) {
	ctx := c.Request.Context()

	profileID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	restored, err := h.mutations.RestoreProfile(ctx, profileID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, restored)
}

// CascadeDelete handles POST /profiles/:id/cascade-delete
func (h *ProfileHandler) CascadeDelete(c *gin.Context) {
	ctx := c.Request.Context()

	profileID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.CascadeDeleteRequest
	if !h.BindJSON(c, &req) {
		return
	}

	preview, err := h.mutations.CascadeDeleteProfile(ctx, profileID, req.Version, req.Confirmed, req.MaxDescendants)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, preview)
}

// Reorder handles PUT /profiles/:id/children/order
func (h *ProfileHandler) Reorder(c *gin.Context) {
	ctx := c.Request.Context()

	parentID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.ReorderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	items, err := req.ToItems()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.mutations.ReorderChildren(ctx, parentID, items)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// BatchSave handles POST /profiles/batch
func (h *ProfileHandler) BatchSave(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.BatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ops, err := req.ToOps()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.mutations.BatchSave(ctx, ops, req.Description)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// RegisterRoutes registers profile routes.
func (h *ProfileHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.POST("/batch", h.BatchSave)
	rg.GET("/:id", h.Get)
	rg.GET("/:id/children", h.Children)
	rg.GET("/:id/marriages", h.Marriages)
	rg.PATCH("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/restore", h.Restore)
	rg.POST("/:id/cascade-delete", h.CascadeDelete)
	rg.PUT("/:id/children/order", h.Reorder)
}
