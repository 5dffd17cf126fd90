package util

import (
	"errors"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.Nil(t, ToDomainError(nil))
	})

	t.Run("domain error is preserved", func(t *testing.T) {
		original := NewValidationError("bad input", map[string]any{"field": "title"})
		mapped := ToDomainError(original)
		require.NotNil(t, mapped)
		assert.Equal(t, "VALIDATION_FAILED", mapped.Code)
		assert.Equal(t, http.StatusBadRequest, mapped.HTTPStatus)
		assert.Equal(t, "title", mapped.Details["field"])
	})

	t.Run("no rows maps to not found", func(t *testing.T) {
		mapped := ToDomainError(pgx.ErrNoRows)
		require.NotNil(t, mapped)
		assert.Equal(t, "NOT_FOUND", mapped.Code)
		assert.Equal(t, http.StatusNotFound, mapped.HTTPStatus)
	})

	t.Run("unknown error maps to store error", func(t *testing.T) {
		cause := errors.New("connection refused")
		mapped := ToDomainError(cause)
		require.NotNil(t, mapped)
		assert.Equal(t, "STORE_ERROR", mapped.Code)
		assert.Equal(t, http.StatusInternalServerError, mapped.HTTPStatus)
		assert.ErrorIs(t, mapped, cause)
	})
}

func TestDomainError_Error(t *testing.T) {
	bare := &DomainError{Message: "storage operation failed"}
	assert.Equal(t, "storage operation failed", bare.Error())

	wrapped := &DomainError{Message: "storage operation failed", Err: errors.New("timeout")}
	assert.Equal(t, "storage operation failed: timeout", wrapped.Error())
	assert.EqualError(t, wrapped.Unwrap(), "timeout")
}

func TestNewStoreError_HidesCauseFromMessage(t *testing.T) {
	err := NewStoreError(errors.New("password=hunter2 dial failed"))
	var domErr *DomainError
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, "storage operation failed", domErr.Message)
}
