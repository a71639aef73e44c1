package cmd

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureStdout runs fn with os.Stdout redirected to a pipe and
// returns everything written to it. The irisctl subcommands print
// directly with fmt.Printf rather than cmd.OutOrStdout(), so this is
// the only way to assert on their output.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)

	original := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = original }()

	fn()

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func runCLI(t *testing.T, serverURL string, args ...string) string {
	t.Helper()
	return captureStdout(t, func() {
		root := Root()
		root.SetArgs(append([]string{"--addr", serverURL}, args...))
		require.NoError(t, root.Execute())
	})
}

func TestAccountGeneratePrintsDisplayAndRawKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/admin/accounts", r.URL.Path)
		_ = json.NewEncoder(w).Encode(generateAccountResult{
			AccountID: "acct-1", Key: "1234567812345678", Display: "1234 5678 1234 5678",
		})
	}))
	defer srv.Close()

	out := runCLI(t, srv.URL, "account", "generate")
	assert.Contains(t, out, "acct-1")
	assert.Contains(t, out, "1234 5678 1234 5678")
	assert.Contains(t, out, "1234567812345678")
}

func TestTokenMintPrintsTokenAndExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		_ = json.NewEncoder(w).Encode(mintTokenResult{TokenID: "tok-1", Token: "signed.token.value", ExpiresAt: "2026-08-01T00:00:00.000Z"})
	}))
	defer srv.Close()

	out := runCLI(t, srv.URL, "token", "mint", "--label", "gpu-box")
	assert.Contains(t, out, "tok-1")
	assert.Contains(t, out, "signed.token.value")
	assert.Contains(t, out, "2026-08-01T00:00:00.000Z")
}

func TestTokenListFormatsStatusColumn(t *testing.T) {
	used := "2026-07-01T00:00:00Z"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]tokenRecord{
			{ID: "active-1", Label: "a"},
			{ID: "used-1", Label: "b", UsedAt: &used},
			{ID: "revoked-1", Label: "c", Revoked: true},
		})
	}))
	defer srv.Close()

	out := runCLI(t, srv.URL, "token", "list")
	assert.Contains(t, out, "active-1")
	assert.Contains(t, out, "active")
	assert.Contains(t, out, "used-1")
	assert.Contains(t, out, "used")
	assert.Contains(t, out, "revoked-1")
	assert.Contains(t, out, "revoked")
}

func TestTokenRevokeSendsDelete(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	runCLI(t, srv.URL, "token", "revoke", "tok-1")
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/v1/admin/enrollment-tokens/tok-1", gotPath)
}

func TestLeaderboardPrintsTableByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]leaderboardEntry{
			{ID: "node-1", Tier: "gold", Reputation: 95.5, TasksCompleted: 10, TokensPerSecond: 42.1},
		})
	}))
	defer srv.Close()

	out := runCLI(t, srv.URL, "leaderboard")
	assert.Contains(t, out, "node-1")
	assert.Contains(t, out, "gold")
	assert.Contains(t, out, "95.5")
}

func TestLeaderboardPrintsYAMLWhenRequested(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]leaderboardEntry{
			{ID: "node-1", Tier: "gold", Reputation: 95.5},
		})
	}))
	defer srv.Close()

	out := runCLI(t, srv.URL, "leaderboard", "--format", "yaml")
	assert.Contains(t, out, "node_id: node-1")
	assert.Contains(t, out, "tier: gold")
}

func TestTiersRecalcPrintsUpdatedCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(recalcTiersResult{Updated: 4})
	}))
	defer srv.Close()

	out := runCLI(t, srv.URL, "recalc-tiers")
	assert.Contains(t, out, "updated 4 node")
}

func TestAPIClientPropagatesCoordinatorErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":"INTERNAL","message":"boom"}`))
	}))
	defer srv.Close()

	root := Root()
	root.SetArgs([]string{"--addr", srv.URL, "recalc-tiers"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
