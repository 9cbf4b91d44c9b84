package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("report lookup: %w", Clone(ErrNotFound, "report not found"))

	got := FromError(wrapped)
	assert.Equal(t, ErrNotFound.Code, got.Code)
	assert.Equal(t, http.StatusNotFound, got.Status)
	assert.Equal(t, "report not found", got.Message)
}

func TestFromErrorWrapsUnknownAsInternal(t *testing.T) {
	got := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.ErrorIs(t, got, sql.ErrConnDone)
}

func TestIsComparesCodes(t *testing.T) {
	err := fmt.Errorf("outer: %w", Clone(ErrConflict, "already pending"))
	assert.True(t, Is(err, ErrConflict))
	assert.False(t, Is(err, ErrForbidden))
	assert.False(t, Is(sql.ErrNoRows, ErrConflict))
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrForbidden, "not yours")
	assert.Equal(t, "forbidden", ErrForbidden.Message)
	assert.Equal(t, "not yours", clone.Message)
}
