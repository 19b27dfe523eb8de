package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shajara/internal/core/apperror"
	"shajara/internal/core/id"
	"shajara/internal/domain/auth"
	"shajara/internal/infrastructure/http/v1/dto"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *BaseHandler, service *auth.Service) *AuthHandler {
	return &AuthHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RegisterRequest
	if !h.BindJSON(c, &req) {
		return
	}

	account, err := h.service.Register(ctx, req.Email, req.Password)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromAccount(account))
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	token, account, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.LoginResponse{
		Token:   token,
		Account: dto.FromAccount(account),
	})
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	resp := gin.H{"accountId": actor.AccountID.String()}
	if actor.ProfileID != nil {
		resp["profileId"] = actor.ProfileID.String()
	}
	h.OK(c, resp)
}

// LinkProfile handles POST /auth/link-profile
func (h *AuthHandler) LinkProfile(c *gin.Context) {
	ctx := c.Request.Context()

	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	var req dto.LinkProfileRequest
	if !h.BindJSON(c, &req) {
		return
	}

	profileID, err := id.Parse(req.ProfileID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid profile id"))
		return
	}

	if err := h.service.LinkProfile(ctx, actor.AccountID, profileID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// RegisterRoutes registers auth routes.
func (h *AuthHandler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.POST("/register", h.Register)
	public.POST("/login", h.Login)

	protected.GET("/me", h.Me)
	protected.POST("/link-profile", h.LinkProfile)
}
