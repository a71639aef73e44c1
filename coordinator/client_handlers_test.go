package coordinator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitTask(t *testing.T, srv *httptest.Server, principal string, body submitRequest) (*http.Response, submitResponse) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/tasks", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if principal != "" {
		req.Header.Set(principalHeader, principal)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded submitResponse
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestSubmitTaskRejectsMissingPrincipal(t *testing.T) {
	c := newTestCoordinator(t)
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	resp, _ := submitTask(t, srv, "", submitRequest{Prompt: "hi", Mode: "subtasks"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSubmitTaskRejectsEmptyPrompt(t *testing.T) {
	c := newTestCoordinator(t)
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	resp, _ := submitTask(t, srv, "principal-1", submitRequest{Prompt: "", Mode: "subtasks"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitTaskRejectsUnknownMode(t *testing.T) {
	c := newTestCoordinator(t)
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	resp, _ := submitTask(t, srv, "principal-1", submitRequest{Prompt: "hi", Mode: "nonsense"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitTaskWithNoWorkersAccepts(t *testing.T) {
	c := newTestCoordinator(t)
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	resp, decoded := submitTask(t, srv, "principal-1", submitRequest{Prompt: "hi there", Mode: "subtasks"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.NotEmpty(t, decoded.TaskID)
	assert.Equal(t, "pending", decoded.Status)
}

func TestGetTaskRejectsWrongPrincipal(t *testing.T) {
	c := newTestCoordinator(t)
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	_, submitted := submitTask(t, srv, "principal-1", submitRequest{Prompt: "hi there", Mode: "subtasks"})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/tasks/"+submitted.TaskID, nil)
	require.NoError(t, err)
	req.Header.Set(principalHeader, "someone-else")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGetTaskUnknownReturnsNotFound(t *testing.T) {
	c := newTestCoordinator(t)
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/tasks/ghost", nil)
	require.NoError(t, err)
	req.Header.Set(principalHeader, "principal-1")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetTaskReturnsOwnedTask(t *testing.T) {
	c := newTestCoordinator(t)
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	_, submitted := submitTask(t, srv, "principal-1", submitRequest{Prompt: "hi there", Mode: "subtasks"})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/tasks/"+submitted.TaskID, nil)
	require.NoError(t, err)
	req.Header.Set(principalHeader, "principal-1")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got getTaskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.NotEmpty(t, got.Status)
}

func TestHealthzReportsOK(t *testing.T) {
	c := newTestCoordinator(t)
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSubscribeStreamUnknownSessionReturnsNotFound(t *testing.T) {
	c := newTestCoordinator(t)
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/v1/tasks/ghost/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
