package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/presale/backend/internal/infrastructure/logger"
	"github.com/presale/backend/internal/interfaces/http/dto"
)

// abortWithError stops the chain with the standard error envelope
func abortWithError(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(dto.GetHTTPStatus(code),
		dto.NewErrorResponseWithRequestID(code, message, c.GetString(logger.GinRequestIDKey)))
}
