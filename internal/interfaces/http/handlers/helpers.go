package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/internal/interfaces/http/middleware"
	"keygate.backend/internal/interfaces/http/response"
	"keygate.backend/pkg/utils"
)

const defaultPageSize = 20

// requireActor writes a 401 and returns false when the request is unauthenticated.
func requireActor(c *gin.Context) (entities.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("Unauthorized"))
		return entities.Actor{}, false
	}
	return actor, true
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

func pagination(c *gin.Context) utils.PaginationParams {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return utils.NewPage(page, limit, defaultPageSize)
}

// optionalUUIDQuery parses an optional uuid filter; a malformed value is a 400.
func optionalUUIDQuery(c *gin.Context, name string) (uuid.NullUUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return uuid.NullUUID{}, true
	}
	id, ok := utils.ParseOptionalUUID(raw)
	if !ok {
		response.Error(c, domainerrors.BadRequest("Invalid "+name))
		return uuid.NullUUID{}, false
	}
	return uuid.NullUUID{UUID: id, Valid: true}, true
}
