package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError_PassesThroughWrapped(t *testing.T) {
	guard := NewGuardViolation("ticket is not in progress", map[string]any{"status": "NEW"})
	wrapped := fmt.Errorf("complete: %w", guard)

	de := ToDomainError(wrapped)
	require.NotNil(t, de)
	assert.Equal(t, CodeGuardViolation, de.Code)
	assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	assert.True(t, IsGuardViolation(wrapped))
	assert.False(t, IsConflict(wrapped))
}

func TestToDomainError_MapsKnownCauses(t *testing.T) {
	assert.Equal(t, CodeNotFound, ToDomainError(pgx.ErrNoRows).Code)
	assert.Equal(t, CodeTransient, ToDomainError(context.DeadlineExceeded).Code)
	assert.Equal(t, CodeInternal, ToDomainError(errors.New("boom")).Code)
	assert.Nil(t, ToDomainError(nil))
}

func TestTransientUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewTransient(cause)
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, cause)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestToDomainError_RetryableCauses(t *testing.T) {
	assert.Equal(t, CodeTransient, ToDomainError(fmt.Errorf("dial: %w", timeoutErr{})).Code)
	assert.Equal(t, CodeTransient, ToDomainError(&pgconn.PgError{Code: "40001"}).Code)
	assert.Equal(t, CodeInternal, ToDomainError(&pgconn.PgError{Code: "23505"}).Code)
}
