package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/guest-requests/internal/domain"
)

// TokenManager handles issuing and validating JWT tokens. Tokens are issued
// by the identity system; Generate exists for tooling and tests.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret, issuer string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    time.Duration(ttlMinutes) * time.Minute,
		now:    time.Now,
	}
}

// Claims describes JWT payload: the actor acting on tickets.
type Claims struct {
	ActorType    domain.ActorType  `json:"actor_type"`
	Role         *domain.StaffRole `json:"role,omitempty"`
	LocationID   string            `json:"location_id"`
	DepartmentID *string           `json:"department_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts the claims.
func (c *Claims) Actor() domain.Actor {
	actor := domain.Actor{
		Type:         c.ActorType,
		Role:         c.Role,
		LocationID:   c.LocationID,
		DepartmentID: c.DepartmentID,
	}
	if c.Subject != "" {
		id := c.Subject
		actor.ID = &id
	}
	return actor
}

// GenerateToken builds and signs a JWT for actor.
func (tm *TokenManager) GenerateToken(actor domain.Actor) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		ActorType:    actor.Type,
		Role:         actor.Role,
		LocationID:   actor.LocationID,
		DepartmentID: actor.DepartmentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.IDValue(),
			Issuer:    tm.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(tm.now)}
	if tm.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tm.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// PeekActor reads the actor from a token without verifying its signature.
// Clients use it to know who they act as; the server still verifies.
func PeekActor(tokenStr string) (domain.Actor, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return domain.Actor{}, err
	}
	return claims.Actor(), nil
}
