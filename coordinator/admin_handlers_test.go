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

func TestGenerateAccountReturnsDisplayAndRawKey(t *testing.T) {
	c := newTestCoordinator(t)
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/v1/admin/accounts", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got generateAccountResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.NotEmpty(t, got.AccountID)
	assert.Len(t, got.Key, 16)
	assert.NotEqual(t, got.Key, got.Display)
}

func TestMintTokenLifecycle(t *testing.T) {
	c := newTestCoordinator(t)
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	body, err := json.Marshal(mintTokenRequest{Label: "gpu-box-1"})
	require.NoError(t, err)

	resp, err := srv.Client().Post(srv.URL+"/v1/admin/enrollment-tokens", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var minted mintTokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&minted))
	assert.NotEmpty(t, minted.Token)
	assert.NotEmpty(t, minted.TokenID)

	listResp, err := srv.Client().Get(srv.URL + "/v1/admin/enrollment-tokens")
	require.NoError(t, err)
	defer listResp.Body.Close()
	assert.Equal(t, http.StatusOK, listResp.StatusCode)

	delReq, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/admin/enrollment-tokens/"+minted.TokenID, nil)
	require.NoError(t, err)
	delResp, err := srv.Client().Do(delReq)
	require.NoError(t, err)
	defer delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	delAgain, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/admin/enrollment-tokens/"+minted.TokenID, nil)
	require.NoError(t, err)
	delAgainResp, err := srv.Client().Do(delAgain)
	require.NoError(t, err)
	defer delAgainResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, delAgainResp.StatusCode)
}

func TestRevokeUnknownTokenReturnsNotFound(t *testing.T) {
	c := newTestCoordinator(t)
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/admin/enrollment-tokens/ghost", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLeaderboardReturnsEmptyWithNoNodes(t *testing.T) {
	c := newTestCoordinator(t)
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/v1/admin/leaderboard")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var board []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&board))
	assert.Empty(t, board)
}

func TestRecalcTiersReturnsZeroUpdatedWithNoNodes(t *testing.T) {
	c := newTestCoordinator(t)
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/v1/admin/tiers/recalculate", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got recalcTiersResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 0, got.Updated)
}
