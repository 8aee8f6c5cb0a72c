package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/infrastructure/logger"
	"github.com/presale/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader lets clients make a mutating request safe to retry
const IdempotencyKeyHeader = "Idempotency-Key"

// MaxIdempotencyKeyLength bounds client supplied keys
const MaxIdempotencyKeyLength = 128

const idempotencyKeyPrefix = "http:"

// Idempotency rejects a repeated request carrying the same Idempotency-Key
// from the same caller on the same route. Keys of requests that failed are
// released so the client can retry. Requests without the header pass through.
func Idempotency(store shared.IdempotencyStore, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		value := c.GetHeader(IdempotencyKeyHeader)
		if value == "" || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		if len(value) > MaxIdempotencyKeyLength {
			abortWithError(c, dto.ErrCodeBadRequest, "Idempotency-Key is too long")
			return
		}

		key := idempotencyKeyPrefix + c.GetString(logger.GinCallerKey) + ":" + c.Request.Method + " " + c.FullPath() + ":" + value
		log := logger.FromContext(c.Request.Context())

		fresh, err := store.MarkProcessed(c.Request.Context(), key, ttl)
		if err != nil {
			log.Error("Idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !fresh {
			abortWithError(c, shared.ErrDuplicateRequest.Code, "Request with this Idempotency-Key was already processed")
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			// detached so a cancelled client still frees its key
			if err := store.Release(context.WithoutCancel(c.Request.Context()), key); err != nil {
				log.Warn("Failed to release idempotency key", zap.Error(err))
			}
		}
	}
}
