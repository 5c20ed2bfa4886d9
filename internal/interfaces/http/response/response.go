package response

import (
	"github.com/gin-gonic/gin"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/pkg/utils"
)

// Success sends a success response
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// List sends a page of items with pagination metadata
func List(c *gin.Context, status int, items interface{}, total int64, page utils.PaginationParams) {
	c.JSON(status, gin.H{
		"items":      items,
		"pagination": page.Meta(total),
	})
}

// Error sends an error response
func Error(c *gin.Context, err error) {
	appErr := domainerrors.FromError(err)

	c.JSON(appErr.Status, gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
	})
}

// Abort sends an error response and stops the handler chain
func Abort(c *gin.Context, err error) {
	appErr := domainerrors.FromError(err)

	c.AbortWithStatusJSON(appErr.Status, gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
	})
}

// ErrorWithError sends an error response with a specific status and message
func ErrorWithError(c *gin.Context, status int, code string, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}
