package http

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/guest-requests/internal/auth"
	"github.com/spec-kit/guest-requests/internal/observability"
	"github.com/spec-kit/guest-requests/internal/repository"
	apperrors "github.com/spec-kit/guest-requests/pkg/util/errorutil"
)

// IdempotencyKeyHeader carries the client-chosen key of a write.
const IdempotencyKeyHeader = "Idempotency-Key"

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := toDomainError(err)
				metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
				response := fiber.Map{"error": fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				}}
				if len(domainErr.Details) > 0 {
					response["error"].(fiber.Map)["details"] = domainErr.Details
				}
				if domainErr.HTTPStatus >= 500 {
					logger.Error("request failed", zap.Error(domainErr))
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(response)
				err = nil
			}
		}()
		return c.Next()
	}
}

// toDomainError also maps fiber's own errors (route guards, unknown routes).
func toDomainError(err error) *apperrors.DomainError {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		switch fe.Code {
		case fiber.StatusUnauthorized:
			return apperrors.NewUnauthorized(fe.Message).(*apperrors.DomainError)
		case fiber.StatusForbidden:
			return apperrors.NewForbidden(fe.Message).(*apperrors.DomainError)
		case fiber.StatusNotFound:
			return apperrors.NewDomainError(apperrors.CodeNotFound, fe.Message, fe.Code, nil)
		}
		if fe.Code < fiber.StatusInternalServerError {
			return apperrors.NewDomainError(apperrors.CodeValidation, fe.Message, fe.Code, nil)
		}
	}
	return apperrors.ToDomainError(err)
}

// IdempotencyMiddleware replays the first successful response of a write for
// a repeated Idempotency-Key. Keys are scoped to the calling actor and the
// method and path of the write, so a reused key never replays another
// ticket's or transition's response. Failed
// requests release the key so the client can retry with it.
func IdempotencyMiddleware(store repository.IdempotencyStore, ttl time.Duration, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(IdempotencyKeyHeader)
		if key == "" || store == nil {
			return c.Next()
		}
		actor, ok := auth.ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("actor required")
		}
		scoped := actor.IDValue() + ":" + c.Method() + " " + c.Path() + ":" + key

		stored, err := store.Begin(c.UserContext(), scoped, ttl)
		if err != nil {
			if errors.Is(err, repository.ErrRequestInFlight) {
				return apperrors.NewConflict(err.Error(), map[string]any{"idempotency_key": key})
			}
			return apperrors.NewTransient(err)
		}
		if stored != nil {
			c.Set("Idempotent-Replayed", "true")
			if stored.ContentType != "" {
				c.Set(fiber.HeaderContentType, stored.ContentType)
			}
			return c.Status(stored.Status).Send(stored.Body)
		}

		if err := c.Next(); err != nil {
			if releaseErr := store.Release(context.Background(), scoped); releaseErr != nil {
				logger.Warn("release idempotency key", zap.Error(releaseErr))
			}
			return err
		}

		status := c.Response().StatusCode()
		if status >= fiber.StatusBadRequest {
			_ = store.Release(context.Background(), scoped)
			return nil
		}
		resp := repository.StoredResponse{
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		}
		if err := store.Complete(context.Background(), scoped, resp, ttl); err != nil {
			logger.Warn("store idempotent response", zap.Error(err))
		}
		return nil
	}
}
