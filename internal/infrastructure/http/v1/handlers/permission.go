package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"shajara/internal/core/apperror"
	appctx "shajara/internal/core/context"
	"shajara/internal/core/id"
	"shajara/internal/core/tx"
	"shajara/internal/domain/permission"
)

// LevelResolver answers permission checks. The handler receives the cached
// resolver; the mutation gateway keeps its own uncached one.
type LevelResolver interface {
	Resolve(ctx context.Context, actorID, targetID id.ID) (permission.Level, error)
}

// PermissionHandler exposes the read-only permission check endpoint.
type PermissionHandler struct {
	*BaseHandler
	resolver LevelResolver

	txm     tx.Manager
	timeout time.Duration
}

// NewPermissionHandler creates a new permission handler. The timeout is the
// statement budget for resolver graph walks.
func NewPermissionHandler(base *BaseHandler, resolver LevelResolver, txm tx.Manager, timeout time.Duration) *PermissionHandler {
	return &PermissionHandler{
		BaseHandler: base,
		resolver:    resolver,
		txm:         txm,
		timeout:     timeout,
	}
}

// Check handles GET /permissions/check/:targetId
func (h *PermissionHandler) Check(c *gin.Context) {
	ctx := c.Request.Context()

	targetID, ok := h.ParseIDParam(c, "targetId")
	if !ok {
		return
	}

	actorID := appctx.GetActorProfileID(ctx)
	if id.IsNil(actorID) {
		h.Error(c, apperror.NewAuthenticationRequired())
		return
	}

	var level permission.Level
	err := h.txm.RunWithTimeout(ctx, h.timeout, func(ctx context.Context) error {
		var err error
		level, err = h.resolver.Resolve(ctx, actorID, targetID)
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{
		"targetId":   targetID.String(),
		"level":      level,
		"canEdit":    level.CanEdit(),
		"canSuggest": level.CanSuggest(),
	})
}

// RegisterRoutes registers permission routes.
func (h *PermissionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/check/:targetId", h.Check)
}
