package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/internal/interfaces/http/response"
)

// DiscordService is implemented by usecases.DiscordUsecase
type DiscordService interface {
	GenerateBindingCode(ctx context.Context, actor entities.Actor) (*entities.BindingCode, error)
	Bind(ctx context.Context, actor entities.Actor, input *entities.DiscordBindInput) (*entities.User, error)
	GetByDiscordID(ctx context.Context, actor entities.Actor, discordID string) (*entities.User, error)
}

// DiscordHandler handles Discord account binding
type DiscordHandler struct {
	discordUsecase DiscordService
}

// NewDiscordHandler creates a new discord handler
func NewDiscordHandler(discordUsecase DiscordService) *DiscordHandler {
	return &DiscordHandler{discordUsecase: discordUsecase}
}

// GenerateBindingCode issues (or returns the pending) binding code for the caller
// POST /api/v1/discord/binding-code
func (h *DiscordHandler) GenerateBindingCode(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	code, err := h.discordUsecase.GenerateBindingCode(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, code)
}

// Bind is called by the bot when a user redeems a binding code
// POST /api/v1/discord/bind
func (h *DiscordHandler) Bind(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var input entities.DiscordBindInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	user, err := h.discordUsecase.Bind(c.Request.Context(), actor, &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}

// GetByDiscordID looks up the account bound to a Discord id
// GET /api/v1/discord/users/:discordId
func (h *DiscordHandler) GetByDiscordID(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	user, err := h.discordUsecase.GetByDiscordID(c.Request.Context(), actor, c.Param("discordId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}
