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

// KeyService is implemented by usecases.KeyUsecase
type KeyService interface {
	CreateKey(ctx context.Context, actor entities.Actor, input *entities.CreateKeyInput) (*entities.KeyView, error)
	ActivateKey(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.KeyView, error)
	ActivateKeyByCode(ctx context.Context, actor entities.Actor, code string) (*entities.KeyView, error)
	RevokeKey(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.KeyView, error)
	GetKey(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.KeyDetail, error)
	KeyStatus(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.KeyView, error)
	ListKeys(ctx context.Context, actor entities.Actor, filter entities.KeyFilter) ([]*entities.KeyView, int64, error)
}

// KeyHandler handles key endpoints
type KeyHandler struct {
	keyUsecase KeyService
}

// NewKeyHandler creates a new key handler
func NewKeyHandler(keyUsecase KeyService) *KeyHandler {
	return &KeyHandler{keyUsecase: keyUsecase}
}

// ListKeys lists keys visible to the caller
// GET /api/v1/keys
func (h *KeyHandler) ListKeys(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	keyType := entities.KeyType(c.Query("type"))
	if keyType != "" && !keyType.Valid() {
		response.Error(c, domainerrors.BadRequest("Invalid key type"))
		return
	}
	createdBy, ok := optionalUUIDQuery(c, "createdBy")
	if !ok {
		return
	}
	activatedBy, ok := optionalUUIDQuery(c, "activatedBy")
	if !ok {
		return
	}

	page := pagination(c)
	keys, total, err := h.keyUsecase.ListKeys(c.Request.Context(), actor, entities.KeyFilter{
		Status:      entities.KeyStatus(c.Query("status")),
		KeyType:     keyType,
		CreatedBy:   createdBy,
		ActivatedBy: activatedBy,
		Limit:       page.Limit,
		Offset:      page.Offset(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.List(c, http.StatusOK, keys, total, page)
}

// CreateKey issues a new key
// POST /api/v1/keys
func (h *KeyHandler) CreateKey(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var input entities.CreateKeyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	key, err := h.keyUsecase.CreateKey(c.Request.Context(), actor, &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, key)
}

// GetKey returns a key with its history
// GET /api/v1/keys/:id
func (h *KeyHandler) GetKey(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	key, err := h.keyUsecase.GetKey(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, key)
}

// ActivateKey redeems a key by id
// POST /api/v1/keys/:id/activate
func (h *KeyHandler) ActivateKey(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	key, err := h.keyUsecase.ActivateKey(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, key)
}

// ActivateKeyByCode redeems a key by its code
// POST /api/v1/keys/activate
func (h *KeyHandler) ActivateKeyByCode(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var input entities.ActivateKeyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	key, err := h.keyUsecase.ActivateKeyByCode(c.Request.Context(), actor, input.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, key)
}

// RevokeKey revokes a key
// POST /api/v1/keys/:id/revoke
func (h *KeyHandler) RevokeKey(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	key, err := h.keyUsecase.RevokeKey(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, key)
}
