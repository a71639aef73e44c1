package coordinator

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/iris-network/coordinator/accountgate"
	"github.com/iris-network/coordinator/domain/node"
	"github.com/iris-network/coordinator/infrastructure/enroll"
	ierrors "github.com/iris-network/coordinator/infrastructure/errors"
	"github.com/iris-network/coordinator/infrastructure/httputil"
)

// This file implements the small operator surface cmd/irisctl drives
// over HTTP: account key issuance, enrollment token lifecycle,
// leaderboard, and tier recalculation (SPEC_FULL.md §C).

type generateAccountResponse struct {
	AccountID string `json:"account_id"`
	Key       string `json:"key"`
	Display   string `json:"display"`
}

func (c *Coordinator) handleGenerateAccount(w http.ResponseWriter, r *http.Request) {
	key, acct, err := c.accounts.Generate(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, generateAccountResponse{
		AccountID: acct.ID,
		Key:       key,
		Display:   accountgate.Display(key),
	})
}

type mintTokenRequest struct {
	Label      string `json:"label,omitempty"`
	ExpiresInS int64  `json:"expires_in_s,omitempty"`
}

type mintTokenResponse struct {
	Token     string  `json:"token"`
	TokenID   string  `json:"token_id"`
	ExpiresAt *string `json:"expires_at,omitempty"`
}

func (c *Coordinator) handleMintToken(w http.ResponseWriter, r *http.Request) {
	if c.enroll == nil {
		httputil.WriteError(w, r, ierrors.Internal("enrollment token signing is not configured", nil))
		return
	}

	var req mintTokenRequest
	if err := httputil.ParseJSONBody(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	token, payload, err := c.enroll.Generate(req.Label, time.Duration(req.ExpiresInS)*time.Second)
	if err != nil {
		httputil.WriteError(w, r, ierrors.Internal("mint enrollment token", err))
		return
	}

	rec := enroll.Record{
		ID:        payload.ID,
		Label:     payload.Label,
		TokenHash: enroll.HashToken(token),
		CreatedAt: time.Now(),
	}
	if payload.ExpiresAt != nil {
		exp := time.Unix(*payload.ExpiresAt, 0)
		rec.ExpiresAt = &exp
	}
	if err := c.store.SaveToken(r.Context(), rec); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	resp := mintTokenResponse{Token: token, TokenID: payload.ID}
	if rec.ExpiresAt != nil {
		formatted := rec.ExpiresAt.Format(rfc3339Milli)
		resp.ExpiresAt = &formatted
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (c *Coordinator) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := c.store.ListTokens(r.Context(), true, true)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tokens)
}

func (c *Coordinator) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	tokenID := mux.Vars(r)["token_id"]
	revoked, err := c.store.RevokeToken(r.Context(), tokenID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if !revoked {
		httputil.WriteError(w, r, ierrors.NotFound("enrollment token", tokenID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Coordinator) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 20
	board, err := c.reputation.Leaderboard(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, board)
}

type recalcTiersResponse struct {
	Updated int `json:"updated"`
}

// handleRecalcTiers recomputes every persisted node's tier from its
// stored capabilities, grounded in §4.5 and SPEC_FULL.md §C.3.
func (c *Coordinator) handleRecalcTiers(w http.ResponseWriter, r *http.Request) {
	nodes, err := c.store.AllNodes(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	updated := 0
	for _, n := range nodes {
		_, tier := node.ScoreTier(node.Capabilities{
			VRAMGB:          n.VRAMGB,
			ModelParamsB:    n.ModelParamsB,
			TokensPerSecond: n.TokensPerSecond,
		})
		if tier == n.Tier {
			continue
		}
		n.Tier = tier
		if err := c.store.UpsertNode(r.Context(), n); err != nil {
			httputil.WriteError(w, r, err)
			return
		}
		updated++
	}

	httputil.WriteJSON(w, http.StatusOK, recalcTiersResponse{Updated: updated})
}
