package api_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/airdrop/airdrop"
	"github.com/screwyprof/airdrop/web/api"
)

func TestAPIErrorHandling(t *testing.T) {
	t.Parallel()

	t.Run("it exposes all error details safely for BadRequest", func(t *testing.T) {
		t.Parallel()

		// Arrange - any validation error
		validationErr := errors.New("invalid amount: not a decimal number")

		// Act
		apiErr := api.BadRequest(validationErr)

		// Assert
		assert.Equal(t, http.StatusBadRequest, apiErr.HTTPCode())
		assert.Equal(t, "invalid amount: not a decimal number", apiErr.Error())
		assert.Equal(t, validationErr, apiErr.Cause())
	})

	t.Run("it hides sensitive details for InternalServerError", func(t *testing.T) {
		t.Parallel()

		// Arrange - internal database error (should NOT be exposed)
		internalErr := errors.New("claim ledger failed: password authentication failed for user 'airdrop'")

		// Act
		apiErr := api.InternalServerError(internalErr)

		// Assert
		assert.Equal(t, http.StatusInternalServerError, apiErr.HTTPCode())
		assert.Equal(t, "Internal Server Error", apiErr.Error()) // Generic message, no sensitive info
		assert.Equal(t, internalErr, apiErr.Cause())             // Original error still available for logging
	})

	t.Run("it classifies unknown errors as InternalServerError", func(t *testing.T) {
		t.Parallel()

		// Arrange
		unknownErr := errors.New("some random error")

		// Act
		apiErr := api.Wrap(unknownErr)

		// Assert
		require.NotNil(t, apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.HTTPCode())
		assert.Equal(t, "Internal Server Error", apiErr.Error())
		assert.Equal(t, unknownErr, apiErr.Cause())
	})

	t.Run("it creates correct JSON structure when marshaling", func(t *testing.T) {
		t.Parallel()

		// Arrange
		validationErr := errors.New("invalid proof: element 0 is not a 32-byte hash")
		apiErr := api.BadRequest(validationErr)

		// Act
		jsonBytes, err := json.Marshal(apiErr)

		// Assert
		require.NoError(t, err)

		var response map[string]any
		err = json.Unmarshal(jsonBytes, &response)
		require.NoError(t, err)

		assert.Equal(t, float64(http.StatusBadRequest), response["code"])
		assert.Equal(t, "invalid proof: element 0 is not a 32-byte hash", response["message"])
	})

	t.Run("it prevents double-wrapping of API errors", func(t *testing.T) {
		t.Parallel()

		// Arrange
		originalErr := errors.New("some validation error")
		apiErr1 := api.BadRequest(originalErr)

		// Act - try to wrap an already wrapped error
		apiErr2 := api.Wrap(apiErr1)

		// Assert - should return the same error, not double-wrap
		assert.Same(t, apiErr1, apiErr2)
	})

	t.Run("it supports error unwrapping correctly", func(t *testing.T) {
		t.Parallel()

		// Arrange
		originalErr := errors.New("original error")
		apiErr := api.BadRequest(originalErr)

		// Act & Assert - errors.Is should work through the wrapper
		assert.True(t, errors.Is(apiErr, originalErr))
		assert.Equal(t, originalErr, errors.Unwrap(apiErr))
	})

	t.Run("it returns nil when wrapping a nil error", func(t *testing.T) {
		t.Parallel()

		// Act
		result := api.Wrap(nil)

		// Assert
		assert.Nil(t, result)
	})
}

func TestWrapClassifiesDistributionErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		code int
	}{
		{"it maps invalid amounts to 400", airdrop.ErrInvalidAmount, http.StatusBadRequest},
		{"it maps governor checks to 403", airdrop.ErrOnlyGovernor, http.StatusForbidden},
		{"it maps proof failures to 422", airdrop.ErrNotInMerkle, http.StatusUnprocessableEntity},
		{"it maps expired claims to 409", airdrop.ErrExpired, http.StatusConflict},
		{"it maps early retrieval to 409", airdrop.ErrNotExpired, http.StatusConflict},
		{"it maps repeated claims to 409", airdrop.ErrAlreadyClaimed, http.StatusConflict},
		{"it maps a drained pool to 409", airdrop.ErrInsufficientPool, http.StatusConflict},
		{"it maps refused transfers to 409", airdrop.ErrTransferRefused, http.StatusConflict},
		{"it maps token failures to 500", airdrop.ErrTokenTransfer, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			err := fmt.Errorf("%w: 0x00000000000000000000000000000000000a11ce", tt.err)

			// Act
			apiErr := api.Wrap(err)

			// Assert
			require.NotNil(t, apiErr)
			assert.Equal(t, tt.code, apiErr.HTTPCode())
			assert.ErrorIs(t, apiErr, tt.err)
		})
	}

	t.Run("it exposes the cause of client errors", func(t *testing.T) {
		t.Parallel()

		// Arrange
		err := fmt.Errorf("%w: update-merkle-root by 0xabc", airdrop.ErrOnlyGovernor)

		// Act
		apiErr := api.Wrap(err)

		// Assert
		assert.Equal(t, err.Error(), apiErr.Error())
	})
}
