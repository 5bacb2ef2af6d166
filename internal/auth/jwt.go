package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/learnhub/server/internal/model"
)

const (
	// SessionTTL is mirrored in both the cookie MaxAge and the token expiry.
	SessionTTL = 7 * 24 * time.Hour
	// SessionCookieName is the HTTP-only cookie carrying the session token.
	SessionCookieName = "learnhub_session"
)

// SessionClaims is the signed session payload.
type SessionClaims struct {
	UserID uuid.UUID  `json:"uid"`
	Role   model.Role `json:"role"`
	Email  string     `json:"email"`
	Name   string     `json:"name"`
	jwt.RegisteredClaims
}

// JWTService signs and verifies session tokens with a process-wide symmetric key.
type JWTService struct {
	secret []byte
}

// NewJWTService creates a new JWT service
func NewJWTService(secret string) *JWTService {
	return &JWTService{secret: []byte(secret)}
}

// Sign mints a session token for the user with a 7-day expiry.
func (s *JWTService) Sign(u model.User) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID: u.ID,
		Role:   u.Role,
		Email:  u.Email,
		Name:   u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return tokenString, nil
}

// Decode verifies a session token. Any failure (bad signature, wrong
// algorithm, expired, malformed) reports no session rather than an error, so
// callers treat a missing cookie and an invalid one uniformly.
func (s *JWTService) Decode(tokenString string) (*SessionClaims, bool) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, false
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, false
	}
	return claims, true
}
