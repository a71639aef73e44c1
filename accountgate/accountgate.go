// Package accountgate implements the 16-digit account key credential
// (§4.3): generation, normalization, and verification against the
// account store. The raw key crosses the wire and logs exactly once,
// at generation time; only its hash and 4-digit prefix persist.
package accountgate

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iris-network/coordinator/domain/account"
	ierrors "github.com/iris-network/coordinator/infrastructure/errors"
	"github.com/iris-network/coordinator/infrastructure/logging"
	"github.com/iris-network/coordinator/store"
)

var normalizedKeyPattern = regexp.MustCompile(`^\d{16}$`)

// Accounts store saved the raw generated key: never, by construction.
type Gate struct {
	store store.Accounts
	log   *logging.Logger
}

// New constructs a Gate over the given Accounts store.
func New(store store.Accounts, log *logging.Logger) *Gate {
	return &Gate{store: store, log: log}
}

// Normalize strips whitespace and dashes, the transform §4.3's display
// format and verify() both apply before validation.
func Normalize(raw string) string {
	s := strings.ReplaceAll(raw, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}

// Display groups a normalized 16-digit key into `dddd dddd dddd dddd`.
func Display(normalized string) string {
	if !normalizedKeyPattern.MatchString(normalized) {
		return normalized
	}
	return fmt.Sprintf("%s %s %s %s", normalized[0:4], normalized[4:8], normalized[8:12], normalized[12:16])
}

// Mask renders a key for logs/UI as `dddd **** **** ****`.
func Mask(normalized string) string {
	if !normalizedKeyPattern.MatchString(normalized) {
		return "****"
	}
	return fmt.Sprintf("%s **** **** ****", normalized[0:4])
}

func hashKey(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// generateDigits returns a cryptographically random n-digit numeric
// string, allowing leading zeros.
func generateDigits(n int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("read random key: %w", err)
	}
	return fmt.Sprintf("%0*d", n, v), nil
}

// Generate mints a new account key and persists its hash. The raw key
// is returned exactly once in Key; callers must hand it to the client
// and never log or persist it themselves.
func (g *Gate) Generate(ctx context.Context) (key string, acct account.Account, err error) {
	raw, err := generateDigits(16)
	if err != nil {
		return "", account.Account{}, err
	}

	now := time.Now()
	acct = account.Account{
		ID:             uuid.New().String(),
		KeyHash:        hashKey(raw),
		KeyPrefix:      raw[:4],
		Status:         account.StatusActive,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := g.store.CreateAccount(ctx, acct); err != nil {
		return "", account.Account{}, err
	}

	g.log.LogSecurityEvent(ctx, "account_key_generated", map[string]interface{}{
		"account_id": acct.ID,
		"prefix":     acct.KeyPrefix,
	})
	return raw, acct, nil
}

// Verify normalizes key, validates its shape, and looks up the active
// account it hashes to. Any failure collapses to Unauthorized — the
// caller never learns whether the key was malformed, unknown, or
// merely suspended.
func (g *Gate) Verify(ctx context.Context, key string) (account.Account, error) {
	normalized := Normalize(key)
	if !normalizedKeyPattern.MatchString(normalized) {
		return account.Account{}, ierrors.Unauthorized("invalid account key")
	}

	acct, ok, err := g.store.AccountByKeyHash(ctx, hashKey(normalized))
	if err != nil {
		return account.Account{}, err
	}
	if !ok || !acct.IsActive() {
		return account.Account{}, ierrors.Unauthorized("invalid account key")
	}

	if err := g.store.TouchLastActivity(ctx, acct.ID, time.Now()); err != nil {
		return account.Account{}, err
	}
	return acct, nil
}
