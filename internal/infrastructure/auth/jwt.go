package auth

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/infrastructure/config"
)

// TokenType distinguishes login challenges from access tokens
type TokenType string

const (
	TokenTypeAccess    TokenType = "access"
	TokenTypeChallenge TokenType = "challenge"
)

// Common errors
var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
	ErrInvalidTokenType   = errors.New("invalid token type")
	ErrInvalidClaims      = errors.New("invalid token claims")
	ErrTokenNotYetValid   = errors.New("token is not yet valid")
	ErrInvalidSubject     = errors.New("token subject is not a valid identity")
	ErrChallengeMismatch  = errors.New("challenge was issued to a different identity")
	ErrChallengeSignature = errors.New("challenge signature does not verify")
	ErrTokenRevoked       = errors.New("token has been revoked")
)

// Claims are the JWT claims for both token types. Subject is the caller's
// base58 identity.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
}

// Identity parses the subject into an identity
func (c *Claims) Identity() (valueobject.Identity, error) {
	id, err := valueobject.ParseIdentity(c.Subject)
	if err != nil {
		return valueobject.ZeroIdentity, ErrInvalidSubject
	}
	return id, nil
}

// RemainingTTL is the time left before the token expires
func (c *Claims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(c.ExpiresAt.Sub(now), 0)
}

// AccessToken is a signed bearer token
type AccessToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Identity    string    `json:"identity"`
}

// Challenge is a short-lived token a wallet signs to prove key ownership
type Challenge struct {
	Challenge string    `json:"challenge"`
	ExpiresAt time.Time `json:"expires_at"`
}

// JWTService issues and validates caller tokens
type JWTService struct {
	secret              []byte
	issuer              string
	accessExpiration    time.Duration
	challengeExpiration time.Duration
	now                 func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret:              []byte(cfg.Secret),
		issuer:              cfg.Issuer,
		accessExpiration:    cfg.AccessTokenExpiration,
		challengeExpiration: cfg.ChallengeExpiration,
		now:                 time.Now,
	}
}

// WithClock replaces the wall clock used for issuing and validating tokens
func (s *JWTService) WithClock(now func() time.Time) *JWTService {
	s.now = now
	return s
}

// AccessTokenExpiration returns the configured access token lifetime
func (s *JWTService) AccessTokenExpiration() time.Duration {
	return s.accessExpiration
}

// IssueAccessToken signs an access token for identity
func (s *JWTService) IssueAccessToken(identity valueobject.Identity) (*AccessToken, error) {
	if identity.IsZero() {
		return nil, ErrInvalidSubject
	}
	signed, expiresAt, err := s.sign(identity, TokenTypeAccess, s.accessExpiration)
	if err != nil {
		return nil, err
	}
	return &AccessToken{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		Identity:    identity.String(),
	}, nil
}

// IssueChallenge signs a login challenge bound to identity. The challenge
// string itself is the message the wallet signs.
func (s *JWTService) IssueChallenge(identity valueobject.Identity) (*Challenge, error) {
	if identity.IsZero() {
		return nil, ErrInvalidSubject
	}
	signed, expiresAt, err := s.sign(identity, TokenTypeChallenge, s.challengeExpiration)
	if err != nil {
		return nil, err
	}
	return &Challenge{Challenge: signed, ExpiresAt: expiresAt}, nil
}

// Login exchanges a challenge signed by identity's ed25519 key for an access token
func (s *JWTService) Login(identity valueobject.Identity, challenge string, signature []byte) (*AccessToken, error) {
	claims, err := s.validate(challenge, TokenTypeChallenge)
	if err != nil {
		return nil, err
	}
	subject, err := claims.Identity()
	if err != nil {
		return nil, err
	}
	if subject != identity {
		return nil, ErrChallengeMismatch
	}
	if len(signature) != ed25519.SignatureSize || !ed25519.Verify(identity.PublicKey(), []byte(challenge), signature) {
		return nil, ErrChallengeSignature
	}
	return s.IssueAccessToken(identity)
}

// ValidateAccessToken validates an access token and returns its claims
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := s.validate(tokenString, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	if _, err := claims.Identity(); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *JWTService) sign(identity valueobject.Identity, typ TokenType, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   identity.String(),
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		TokenType: typ,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *JWTService) validate(tokenString string, expected TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.TokenType != expected {
		return nil, ErrInvalidTokenType
	}
	return claims, nil
}
