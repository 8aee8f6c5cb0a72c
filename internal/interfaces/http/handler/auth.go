package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/domain/voucher"
	"github.com/presale/backend/internal/infrastructure/auth"
	"github.com/presale/backend/internal/infrastructure/logger"
	"github.com/presale/backend/internal/interfaces/http/dto"
	"github.com/presale/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// AuthHandler exchanges wallet signatures for access tokens
type AuthHandler struct {
	BaseHandler
	jwtService  *auth.JWTService
	revocations *auth.RevocationList
	now         func() time.Time
}

// NewAuthHandler creates a new auth handler. revocations may be nil, in
// which case logout is accepted but tokens stay valid until they expire.
func NewAuthHandler(jwtService *auth.JWTService, revocations *auth.RevocationList) *AuthHandler {
	return &AuthHandler{
		jwtService:  jwtService,
		revocations: revocations,
		now:         time.Now,
	}
}

// ChallengeRequest asks for a login challenge
type ChallengeRequest struct {
	Identity string `json:"identity" binding:"required,base58id"`
}

// TokenRequest trades a signed challenge for an access token
type TokenRequest struct {
	Identity  string `json:"identity" binding:"required,base58id"`
	Challenge string `json:"challenge" binding:"required"`
	Signature string `json:"signature" binding:"required,base64"`
}

// MeResponse describes the authenticated caller
type MeResponse struct {
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Challenge godoc
// @ID           authChallenge
// @Summary      Request a login challenge
// @Description  Returns a short-lived challenge the wallet must sign with its ed25519 key
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ChallengeRequest true "Wallet identity"
// @Success      200 {object} APIResponse[auth.Challenge]
// @Failure      400 {object} ErrorResponse
// @Router       /auth/challenge [post]
func (h *AuthHandler) Challenge(c *gin.Context) {
	var req ChallengeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	challenge, err := h.jwtService.IssueChallenge(valueobject.MustParseIdentity(req.Identity))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, challenge)
}

// Token godoc
// @ID           authToken
// @Summary      Exchange a signed challenge for an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body TokenRequest true "Signed challenge"
// @Success      200 {object} APIResponse[auth.AccessToken]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Router       /auth/token [post]
func (h *AuthHandler) Token(c *gin.Context) {
	var req TokenRequest
	if !h.bindJSON(c, &req) {
		return
	}
	signature, err := voucher.DecodeSignature(req.Signature)
	if err != nil {
		h.BadRequest(c, "Invalid signature encoding")
		return
	}

	token, err := h.jwtService.Login(valueobject.MustParseIdentity(req.Identity), req.Challenge, signature)
	if err != nil {
		logger.FromContext(c.Request.Context()).Info("Login rejected",
			zap.String("identity", req.Identity), zap.Error(err))
		code := dto.ErrCodeTokenInvalid
		if errors.Is(err, auth.ErrExpiredToken) {
			code = dto.ErrCodeTokenExpired
		}
		h.ErrorWithCode(c, code, "Challenge verification failed")
		return
	}
	h.Success(c, token)
}

// Logout godoc
// @ID           authLogout
// @Summary      Revoke the current access token
// @Tags         auth
// @Produce      json
// @Success      200 {object} APIResponse[map[string]bool]
// @Failure      401 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.ErrorWithCode(c, dto.ErrCodeUnauthenticated, "Authentication required")
		return
	}

	if h.revocations != nil {
		if err := h.revocations.Revoke(c.Request.Context(), claims.ID, claims.RemainingTTL(h.now())); err != nil {
			h.HandleError(c, err)
			return
		}
	}
	h.Success(c, gin.H{"revoked": true})
}

// Me returns the caller behind the current token
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.ErrorWithCode(c, dto.ErrCodeUnauthenticated, "Authentication required")
		return
	}
	me := MeResponse{Identity: claims.Subject}
	if claims.ExpiresAt != nil {
		me.ExpiresAt = claims.ExpiresAt.Time
	}
	h.Success(c, me)
}
