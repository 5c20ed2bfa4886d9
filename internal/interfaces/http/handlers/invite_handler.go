package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/internal/interfaces/http/response"
)

// InviteService is implemented by usecases.InviteUsecase
type InviteService interface {
	CreateInvite(ctx context.Context, actor entities.Actor, input *entities.CreateInviteInput) (*entities.Invite, error)
	RevokeInvite(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.Invite, error)
	ValidateInvite(ctx context.Context, code string) (*entities.InviteValidation, error)
	GetInvite(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.Invite, error)
	ListInvites(ctx context.Context, actor entities.Actor, filter entities.InviteFilter) ([]*entities.Invite, int64, error)
	Quota(ctx context.Context, actor entities.Actor) (*entities.InviteQuota, error)
}

// InviteHandler handles invite endpoints
type InviteHandler struct {
	inviteUsecase InviteService
}

// NewInviteHandler creates a new invite handler
func NewInviteHandler(inviteUsecase InviteService) *InviteHandler {
	return &InviteHandler{inviteUsecase: inviteUsecase}
}

// ListInvites lists the caller's invites, or all invites for staff
// GET /api/v1/invites
func (h *InviteHandler) ListInvites(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	page := pagination(c)
	invites, total, err := h.inviteUsecase.ListInvites(c.Request.Context(), actor, entities.InviteFilter{
		Status: entities.InviteStatus(c.Query("status")),
		Limit:  page.Limit,
		Offset: page.Offset(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.List(c, http.StatusOK, invites, total, page)
}

// CreateInvite creates an invite against the caller's monthly quota
// POST /api/v1/invites
func (h *InviteHandler) CreateInvite(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var input entities.CreateInviteInput
	// An empty body means default expiry.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			response.Error(c, domainerrors.BadRequest(err.Error()))
			return
		}
	}

	invite, err := h.inviteUsecase.CreateInvite(c.Request.Context(), actor, &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, invite)
}

// Quota returns the caller's remaining invites for the period
// GET /api/v1/invites/quota
func (h *InviteHandler) Quota(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	quota, err := h.inviteUsecase.Quota(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, quota)
}

// GetInvite returns one invite
// GET /api/v1/invites/:id
func (h *InviteHandler) GetInvite(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	invite, err := h.inviteUsecase.GetInvite(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, invite)
}

// RevokeInvite revokes an unused invite
// POST /api/v1/invites/:id/revoke
func (h *InviteHandler) RevokeInvite(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	invite, err := h.inviteUsecase.RevokeInvite(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, invite)
}

// ValidateInvite reports whether a code can be used to register
// POST /api/v1/invites/validate
func (h *InviteHandler) ValidateInvite(c *gin.Context) {
	var input entities.ValidateInviteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	result, err := h.inviteUsecase.ValidateInvite(c.Request.Context(), input.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}
