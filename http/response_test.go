package http_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sagarc03/edgeshelf"
	edgehttp "github.com/sagarc03/edgeshelf/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		errCode string
	}{
		{"not found", edgeshelf.ErrNotFound, http.StatusNotFound, "not_found"},
		{"wrapped not found", fmt.Errorf("serve cat.png: %w", edgeshelf.ErrNotFound), http.StatusNotFound, "not_found"},
		{"joined not found", errors.Join(errors.New("context"), edgeshelf.ErrNotFound), http.StatusNotFound, "not_found"},
		{"invalid input", edgeshelf.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{"unauthorized", edgeshelf.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"origin fault", fmt.Errorf("fetch: %w: %w", edgeshelf.ErrOriginFault, errors.New("disk gone")), http.StatusInternalServerError, "internal_error"},
		{"too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, "too_large"},
		{"unexpected", errors.New("some unexpected error"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			edgehttp.HandleError(rec, tt.err)

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body edgehttp.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.errCode, body.Error)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestHandleError_OriginFaultHidesDetails(t *testing.T) {
	rec := httptest.NewRecorder()

	edgehttp.HandleError(rec, fmt.Errorf("%w: dial tcp 10.0.0.5:9000: refused", edgeshelf.ErrOriginFault))

	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	err := edgehttp.WriteJSON(rec, http.StatusCreated, map[string]string{"status": "ok"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
