package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/iris-network/coordinator/infrastructure/errors"
)

func TestWriteJSONSetsContentTypeAndStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]string{"ok": "yes"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	assert.Equal(t, "yes", decoded["ok"])
}

func TestWriteErrorUsesCoordinatorErrorStatusAndCode(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set("X-Trace-ID", "trace-1")
	r := httptest.NewRequest(http.MethodGet, "/x", nil)

	WriteError(w, r, ierrors.NotFound("task", "t1"))

	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_FOUND", resp.Code)
	assert.Equal(t, "trace-1", resp.TraceID)
	assert.NotNil(t, resp.Details)
}

func TestWriteErrorDefaultsToInternalForPlainError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/x", nil)

	WriteError(w, r, assertError("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL", resp.Code)
}

type assertError string

func (e assertError) Error() string { return string(e) }

func TestParseJSONBodyDecodesValidBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"name":"widget"}`))

	var dst struct {
		Name string `json:"name"`
	}
	require.NoError(t, ParseJSONBody(r, &dst))
	assert.Equal(t, "widget", dst.Name)
}

func TestParseJSONBodyRejectsMalformedJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{not json`))

	var dst map[string]string
	err := ParseJSONBody(r, &dst)
	require.Error(t, err)
	assert.True(t, ierrors.Is(err, ierrors.CodeInvalidFormat))
}
