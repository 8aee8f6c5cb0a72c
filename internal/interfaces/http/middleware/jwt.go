package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/infrastructure/auth"
	"github.com/presale/backend/internal/infrastructure/logger"
	"github.com/presale/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// JWT context keys
const (
	JWTClaimsKey  = "jwt_claims"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// JWTMiddlewareConfig holds configuration for JWT middleware
type JWTMiddlewareConfig struct {
	JWTService *auth.JWTService
	// Revocations is optional; when set, revoked token ids are rejected
	Revocations *auth.RevocationList
	Logger      *zap.Logger
}

// JWTAuth requires a valid bearer access token. The token's subject becomes
// the caller identity for every handler behind it.
func JWTAuth(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		token, ok := strings.CutPrefix(header, BearerPrefix)
		if header == "" || !ok || token == "" {
			abortWithError(c, dto.ErrCodeUnauthenticated, "Missing bearer token")
			return
		}

		claims, err := cfg.JWTService.ValidateAccessToken(token)
		if err != nil {
			log.Debug("JWT authentication failed", zap.Error(err), zap.String("path", c.Request.URL.Path))
			code, message := authErrorCode(err)
			abortWithError(c, code, message)
			return
		}

		if cfg.Revocations != nil && claims.ID != "" {
			revoked, err := cfg.Revocations.IsRevoked(c.Request.Context(), claims.ID)
			switch {
			case err != nil:
				// fail open: an unreachable store must not lock everyone out
				log.Error("Failed to check token revocation", zap.String("jti", claims.ID), zap.Error(err))
			case revoked:
				abortWithError(c, dto.ErrCodeTokenRevoked, "Token has been revoked")
				return
			}
		}

		caller, _ := claims.Identity()
		c.Set(JWTClaimsKey, claims)
		c.Set(logger.GinCallerKey, caller.String())

		ctx, _ := logger.WithIdentity(c.Request.Context(), logger.FromContext(c.Request.Context()), caller.String())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func authErrorCode(err error) (string, string) {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenRevoked):
		return dto.ErrCodeTokenRevoked, "Token has been revoked"
	default:
		return dto.ErrCodeTokenInvalid, "Invalid token"
	}
}

// GetJWTClaims retrieves JWT claims from gin.Context
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(JWTClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// GetCaller returns the authenticated caller identity
func GetCaller(c *gin.Context) (valueobject.Identity, bool) {
	claims := GetJWTClaims(c)
	if claims == nil {
		return valueobject.ZeroIdentity, false
	}
	id, err := claims.Identity()
	if err != nil {
		return valueobject.ZeroIdentity, false
	}
	return id, true
}

// RequireAdministrator admits only callers in the administrator set.
// It must run after JWTAuth.
func RequireAdministrator(isAdmin func(valueobject.Identity) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := GetCaller(c)
		if !ok {
			abortWithError(c, dto.ErrCodeUnauthenticated, "Authentication required")
			return
		}
		if !isAdmin(caller) {
			abortWithError(c, dto.ErrCodeForbidden, "Administrator access required")
			return
		}
		c.Next()
	}
}
