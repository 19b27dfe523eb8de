package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"shajara/internal/core/id"
	"shajara/internal/core/tx"
	"shajara/internal/domain/audit"
)

// AuditHandler exposes the read-only audit feed.
type AuditHandler struct {
	*BaseHandler
	auditLog audit.Repository

	txm         tx.Manager
	readTimeout time.Duration
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(base *BaseHandler, auditLog audit.Repository, txm tx.Manager, readTimeout time.Duration) *AuditHandler {
	return &AuditHandler{
		BaseHandler: base,
		auditLog:    auditLog,
		txm:         txm,
		readTimeout: readTimeout,
	}
}

// List handles GET /audit
func (h *AuditHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := audit.ListFilter{
		TargetType: audit.TargetType(c.Query("targetType")),
		ActionKind: c.Query("actionKind"),
		Severity:   audit.Severity(c.Query("severity")),
		Limit:      h.ParseIntQuery(c, "limit", 50),
		Offset:     h.ParseIntQuery(c, "offset", 0),
	}
	if raw := c.Query("targetId"); raw != "" {
		if parsed, err := id.Parse(raw); err == nil {
			filter.TargetID = parsed
		}
	}
	if raw := c.Query("actorId"); raw != "" {
		if parsed, err := id.Parse(raw); err == nil {
			filter.ActorID = parsed
		}
	}
	if raw := c.Query("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.Since = t
		}
	}
	if raw := c.Query("until"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.Until = t
		}
	}

	var entries []*audit.Entry
	err := h.txm.RunWithTimeout(ctx, h.readTimeout, func(ctx context.Context) error {
		var err error
		entries, err = h.auditLog.List(ctx, filter)
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": entries})
}

// Get handles GET /audit/:id
func (h *AuditHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	entryID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var entry *audit.Entry
	err := h.txm.RunWithTimeout(ctx, h.readTimeout, func(ctx context.Context) error {
		var err error
		entry, err = h.auditLog.GetByID(ctx, entryID)
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, entry)
}

// Group handles GET /audit/groups/:groupId
func (h *AuditHandler) Group(c *gin.Context) {
	ctx := c.Request.Context()

	groupID, ok := h.ParseIDParam(c, "groupId")
	if !ok {
		return
	}

	var entries []*audit.Entry
	err := h.txm.RunWithTimeout(ctx, h.readTimeout, func(ctx context.Context) error {
		var err error
		entries, err = h.auditLog.ListByGroup(ctx, groupID)
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": entries})
}

// RegisterRoutes registers audit routes.
func (h *AuditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/groups/:groupId", h.Group)
	rg.GET("/:id", h.Get)
}
