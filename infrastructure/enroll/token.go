// Package enroll implements HMAC-signed node enrollment tokens, the
// legacy authentication path §4.4 step 1 allows when a registering
// node presents no account_key.
package enroll

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const tokenVersion = "iris_v1"

// Payload is the signed body of an enrollment token.
type Payload struct {
	ID        string     `json:"jti"`
	IssuedAt  int64      `json:"iat"`
	ExpiresAt *int64     `json:"exp,omitempty"`
	Label     string     `json:"label,omitempty"`
}

// Record is the persisted state of a minted token.
type Record struct {
	ID           string
	Label        string
	TokenHash    string
	CreatedAt    time.Time
	ExpiresAt    *time.Time
	UsedAt       *time.Time
	UsedByNodeID string
	Revoked      bool
}

// Issuer mints and verifies tokens against a secret key.
type Issuer struct {
	secret []byte
}

// NewIssuer constructs an Issuer from a secret key. The secret should
// be at least 32 bytes; callers are responsible for sourcing it from
// the coordinator's secrets configuration.
func NewIssuer(secret []byte) *Issuer {
	return &Issuer{secret: secret}
}

func (i *Issuer) sign(payload string) string {
	mac := hmac.New(sha256.New, i.secret)
	_, _ = mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Generate mints a new token, optionally labeled and/or expiring after
// expiresIn (zero means never expires).
func (i *Issuer) Generate(label string, expiresIn time.Duration) (token string, payload Payload, err error) {
	now := time.Now()
	payload = Payload{
		ID:       uuid.New().String(),
		IssuedAt: now.Unix(),
		Label:    label,
	}
	if expiresIn > 0 {
		exp := now.Add(expiresIn).Unix()
		payload.ExpiresAt = &exp
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", Payload{}, fmt.Errorf("marshal payload: %w", err)
	}
	payloadB64 := base64.RawURLEncoding.EncodeToString(body)
	sig := i.sign(payloadB64)

	token = fmt.Sprintf("%s.%s.%s", tokenVersion, payloadB64, sig)
	return token, payload, nil
}

// Parse validates a token's structure and signature without consulting
// any persisted state.
func (i *Issuer) Parse(token string) (Payload, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Payload{}, fmt.Errorf("malformed token: expected 3 parts, got %d", len(parts))
	}
	version, payloadB64, sig := parts[0], parts[1], parts[2]
	if version != tokenVersion {
		return Payload{}, fmt.Errorf("unsupported token version %q", version)
	}

	expected := i.sign(payloadB64)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return Payload{}, fmt.Errorf("invalid signature")
	}

	body, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Payload{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	return payload, nil
}

// HashToken returns the value stored in place of the raw token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// IsExpired reports whether payload has passed its expiry, if any.
func (p Payload) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && now.Unix() > *p.ExpiresAt
}
