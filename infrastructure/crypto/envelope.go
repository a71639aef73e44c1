// Package crypto implements the end-to-end envelope terminating at the
// coordinator for routing but opaque on the wire through it: X25519
// ECDH + HKDF-SHA256 + AES-256-GCM (§4.1).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	hkdfInfo  = "iris-e2e"
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
)

// KeyPair is an X25519 keypair used by either the coordinator or a
// worker to seal/open envelopes addressed to/from the other side.
type KeyPair struct {
	Private [32]byte
	Public  [32]byte
}

// GenerateKeyPair creates a new random X25519 keypair.
func GenerateKeyPair() (*KeyPair, error) {
	var priv [32]byte
	if _, err := io.ReadFull(rand.Reader, priv[:]); err != nil {
		return nil, fmt.Errorf("read random private key: %w", err)
	}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	kp := &KeyPair{Private: priv}
	copy(kp.Public[:], pub)
	return kp, nil
}

// LoadOrGenerateKeyPair loads a keypair from path, or generates one and
// persists it with owner-only permissions if the file does not exist.
func LoadOrGenerateKeyPair(path string) (*KeyPair, error) {
	if data, err := os.ReadFile(path); err == nil {
		if len(data) != 32 {
			return nil, fmt.Errorf("keypair file %s: expected 32 bytes, got %d", path, len(data))
		}
		var priv [32]byte
		copy(priv[:], data)
		pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
		if err != nil {
			return nil, fmt.Errorf("derive public key: %w", err)
		}
		kp := &KeyPair{Private: priv}
		copy(kp.Public[:], pub)
		return kp, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read keypair file %s: %w", path, err)
	}

	kp, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, kp.Private[:], 0o600); err != nil {
		return nil, fmt.Errorf("persist keypair to %s: %w", path, err)
	}
	return kp, nil
}

func deriveSharedKey(ourPriv, theirPub [32]byte, salt []byte) ([]byte, error) {
	shared, err := curve25519.X25519(ourPriv[:], theirPub[:])
	if err != nil {
		return nil, fmt.Errorf("ecdh: %w", err)
	}
	reader := hkdf.New(sha256.New, shared, salt, []byte(hkdfInfo))
	key := make([]byte, keySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext for recipientPub using our private key,
// producing base64(salt || nonce || ciphertext || tag).
func (kp *KeyPair) Seal(recipientPub [32]byte, plaintext []byte) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key, err := deriveSharedKey(kp.Private, recipientPub, salt)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	buf := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	buf = append(buf, salt...)
	buf = append(buf, nonce...)
	buf = append(buf, ciphertext...)
	return base64.StdEncoding.EncodeToString(buf), nil
}

// ErrDecryptionFailed is returned by Open on tag mismatch or malformed
// input, surfacing as errors.CodeDecryptionFailed at the caller.
var ErrDecryptionFailed = fmt.Errorf("decryption failed")

// Open decrypts a blob produced by senderPub's Seal, authenticating it
// against our own private key.
func (kp *KeyPair) Open(senderPub [32]byte, blob string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if len(raw) < saltSize+nonceSize {
		return nil, ErrDecryptionFailed
	}

	salt := raw[:saltSize]
	nonce := raw[saltSize : saltSize+nonceSize]
	ciphertext := raw[saltSize+nonceSize:]

	key, err := deriveSharedKey(kp.Private, senderPub, salt)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
