package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloo-solutions/remind/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_WritesFlatAnswer(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, map[string]string{"kind": "direct", "answer": "Paris."})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"kind":"direct","answer":"Paris."}`, w.Body.String())
}

func TestJSON_NilData(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestSuccess_Envelope(t *testing.T) {
	w := httptest.NewRecorder()

	Success(w, http.StatusCreated, map[string]int{"chunks": 2})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"data":{"chunks":2}}`, w.Body.String())
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusBadRequest, "invalid cursor")

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var result ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "invalid cursor", result.Error)
}

func TestDecode(t *testing.T) {
	type body struct {
		Query string `json:"query"`
	}

	tests := []struct {
		name       string
		payload    string
		limit      int64
		allowEmpty bool
		ok         bool
		status     int
	}{
		{"valid", `{"query":"what did I read"}`, 0, false, true, 0},
		{"empty rejected", ``, 0, false, false, http.StatusBadRequest},
		{"empty allowed", ``, 0, true, true, 0},
		{"malformed", `{"query":`, 0, true, false, http.StatusBadRequest},
		{"too large", `{"query":"` + strings.Repeat("x", 64) + `"}`, 16, false, false, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(tt.payload))
			if tt.limit > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, tt.limit)
			}

			var got body
			assert.Equal(t, tt.ok, Decode(w, r, &got, tt.allowEmpty))
			if !tt.ok {
				assert.Equal(t, tt.status, w.Code)
			}
		})
	}
}

func TestDomainErrorToHTTP(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, http.StatusOK},
		{"validation error", domain.ErrEmptyQuestion, http.StatusBadRequest},
		{"not found error", domain.ErrRecordNotFound, http.StatusNotFound},
		{"unauthorized error", domain.ErrInvalidAPIToken, http.StatusUnauthorized},
		{"unavailable error", domain.ErrModelUnavailable, http.StatusServiceUnavailable},
		{"wrapped unavailable error", fmt.Errorf("%w: dial tcp: refused", domain.ErrIndexUnavailable), http.StatusServiceUnavailable},
		{"internal error", domain.ErrCorpusWriteFailed, http.StatusInternalServerError},
		{"unknown domain error", domain.NewDomainError("UNKNOWN", "unknown"), http.StatusInternalServerError},
		{"non-domain error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DomainErrorToHTTP(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestHandleError(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, domain.ErrEmptyDocument)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var result ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Contains(t, result.Error, "document text cannot be empty")
}
