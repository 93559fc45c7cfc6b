package errorutil_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/examcell/duty-roster/pkg/util/errorutil"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := apperrors.NewCapacityExceeded("target full", map[string]any{"headroom": 1})
	wrapped := fmt.Errorf("transfer: %w", err)

	assert.ErrorIs(t, wrapped, apperrors.ErrCapacityExceeded)
	assert.NotErrorIs(t, wrapped, apperrors.ErrConflict)
}

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"domain passthrough", apperrors.NewNotFound("staff", nil), apperrors.CodeNotFound, http.StatusNotFound},
		{"invalid date", apperrors.NewInvalidDate("32-01-2026"), apperrors.CodeInvalidDate, http.StatusBadRequest},
		{"store failure", apperrors.NewStoreUnavailable("commit", errors.New("dial tcp")), apperrors.CodeStoreUnavailable, http.StatusServiceUnavailable},
		{"plain error", errors.New("boom"), apperrors.CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := apperrors.ToDomainError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantStatus, got.HTTPStatus)
		})
	}

	assert.Nil(t, apperrors.ToDomainError(nil))
}

func TestIsDomain(t *testing.T) {
	assert.True(t, apperrors.IsDomain(apperrors.NewConflict("same day", nil)))
	assert.True(t, apperrors.IsDomain(apperrors.NewInvalidInput("bad", nil)))
	assert.False(t, apperrors.IsDomain(apperrors.NewStoreUnavailable("list", errors.New("down"))))
	assert.False(t, apperrors.IsDomain(apperrors.NewTransferIncomplete("S1", errors.New("down"))))
	assert.False(t, apperrors.IsDomain(errors.New("plain")))
}

func TestStoreUnavailable_Unwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := apperrors.NewStoreUnavailable("list", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}
