package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/internal/interfaces/http/response"
)

// AuthService is implemented by usecases.AuthUsecase
type AuthService interface {
	Register(ctx context.Context, input *entities.RegisterInput, ip string) (*entities.AuthResponse, error)
	Login(ctx context.Context, input *entities.LoginInput, ip string) (*entities.AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*entities.AuthResponse, error)
	Me(ctx context.Context, actor entities.Actor) (*entities.User, error)
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authUsecase AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authUsecase AuthService) *AuthHandler {
	return &AuthHandler{authUsecase: authUsecase}
}

// Register handles invite-based registration
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var input entities.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	authResponse, err := h.authUsecase.Register(c.Request.Context(), &input, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, authResponse)
}

// Login handles user login
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var input entities.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	authResponse, err := h.authUsecase.Login(c.Request.Context(), &input, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, authResponse)
}

// RefreshToken exchanges a refresh token for a new token pair
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var input entities.RefreshInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("Refresh token is required"))
		return
	}

	authResponse, err := h.authUsecase.RefreshToken(c.Request.Context(), input.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, authResponse)
}

// Me returns the authenticated user
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	user, err := h.authUsecase.Me(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}
