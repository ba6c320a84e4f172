package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/guest-requests/internal/domain"
	apperrors "github.com/spec-kit/guest-requests/pkg/util/errorutil"
)

const actorKey = "auth_actor"

// AuthMiddleware validates bearer tokens and resolves the actor.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	actor := claims.Actor()
	if err := validateActor(actor); err != nil {
		return err
	}
	c.Locals(actorKey, actor)
	return c.Next()
}

func validateActor(actor domain.Actor) error {
	if !actor.Type.Valid() {
		return apperrors.NewUnauthorized("unknown actor type")
	}
	if actor.Type == domain.ActorTypeSystem {
		return apperrors.NewForbidden("system tokens are not accepted over HTTP")
	}
	if actor.ID == nil {
		return apperrors.NewUnauthorized("token has no subject")
	}
	if actor.LocationID == "" {
		return apperrors.NewUnauthorized("token has no location")
	}
	if actor.Type == domain.ActorTypeStaff && actor.Role == nil {
		return apperrors.NewUnauthorized("staff token has no role")
	}
	return nil
}

// ActorFromContext retrieves the authenticated actor.
func ActorFromContext(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(actorKey).(domain.Actor)
	return actor, ok
}
