package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/internal/interfaces/http/response"
)

// UserService is implemented by usecases.UserUsecase
type UserService interface {
	ListUsers(ctx context.Context, actor entities.Actor, filter entities.UserFilter) ([]*entities.User, int64, error)
	GetUser(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.User, error)
	BanUser(ctx context.Context, actor entities.Actor, id uuid.UUID, reason string) (*entities.User, error)
	UnbanUser(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.User, error)
	ChangeRole(ctx context.Context, actor entities.Actor, id uuid.UUID, role entities.UserRole) (*entities.User, error)
}

// UserHandler handles user administration endpoints
type UserHandler struct {
	userUsecase UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userUsecase UserService) *UserHandler {
	return &UserHandler{userUsecase: userUsecase}
}

// ListUsers lists users
// GET /api/v1/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	filter := entities.UserFilter{
		Search: c.Query("search"),
		Role:   entities.UserRole(c.Query("role")),
	}
	if raw := c.Query("banned"); raw != "" {
		banned, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, domainerrors.BadRequest("Invalid banned filter"))
			return
		}
		filter.IsBanned = &banned
	}
	page := pagination(c)
	filter.Limit, filter.Offset = page.Limit, page.Offset()

	users, total, err := h.userUsecase.ListUsers(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.List(c, http.StatusOK, users, total, page)
}

// GetUser returns one user
// GET /api/v1/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	user, err := h.userUsecase.GetUser(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}

// BanUser bans a user
// POST /api/v1/users/:id/ban
func (h *UserHandler) BanUser(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var input entities.BanUserInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			response.Error(c, domainerrors.BadRequest(err.Error()))
			return
		}
	}

	user, err := h.userUsecase.BanUser(c.Request.Context(), actor, id, input.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}

// UnbanUser lifts a ban
// POST /api/v1/users/:id/unban
func (h *UserHandler) UnbanUser(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	user, err := h.userUsecase.UnbanUser(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}

// ChangeRole changes a user's role
// POST /api/v1/users/:id/role
func (h *UserHandler) ChangeRole(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var input entities.ChangeRoleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	user, err := h.userUsecase.ChangeRole(c.Request.Context(), actor, id, input.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}
