package classifierclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteReturnsFirstChoiceContent(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(chatResponse{Choices: []chatChoice{
			{Message: chatMessage{Role: "assistant", Content: "complex"}},
		}})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-key", 2*time.Second)
	out, err := c.Complete(context.Background(), "classify this", "what is 2+2")
	require.NoError(t, err)

	assert.Equal(t, "complex", out)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
	assert.Equal(t, "classify this", gotBody.Messages[0].Content)
	assert.Equal(t, "what is 2+2", gotBody.Messages[1].Content)
}

func TestCompleteOmitsAuthorizationWhenNoAPIKey(t *testing.T) {
	var gotAuth string
	var sawHeader bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth, sawHeader = r.Header.Get("Authorization"), r.Header.Get("Authorization") != ""
		_ = json.NewEncoder(w).Encode(chatResponse{Choices: []chatChoice{{Message: chatMessage{Content: "simple"}}}})
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	_, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.False(t, sawHeader)
	assert.Empty(t, gotAuth)
}

func TestCompleteErrorsOnNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("upstream overloaded"))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	_, err := c.Complete(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream overloaded")
}

func TestCompleteErrorsOnEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	_, err := c.Complete(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestCompleteRespectsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(chatResponse{Choices: []chatChoice{{Message: chatMessage{Content: "late"}}}})
	}))
	defer srv.Close()

	c := New(srv.URL, "", 5*time.Millisecond)
	_, err := c.Complete(context.Background(), "sys", "user")
	require.Error(t, err)
}
