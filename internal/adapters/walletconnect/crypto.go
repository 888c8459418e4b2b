package walletconnect

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	envelopeType0 byte = 0
	keySize            = 32
)

var errEnvelope = errors.New("invalid walletconnect envelope")

type keyPair struct {
	private []byte
	public  []byte
}

func randomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return buf, nil
}

func newKeyPair() (keyPair, error) {
	private, err := randomBytes(keySize)
	if err != nil {
		return keyPair{}, err
	}
	public, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return keyPair{}, fmt.Errorf("derive x25519 public key: %w", err)
	}
	return keyPair{private: private, public: public}, nil
}

// deriveSymKey runs X25519 with the peer's public key and expands the shared
// secret with HKDF-SHA256 into a session key.
func deriveSymKey(private []byte, peerPublicHex string) ([]byte, error) {
	peerPublic, err := hex.DecodeString(peerPublicHex)
	if err != nil || len(peerPublic) != keySize {
		return nil, fmt.Errorf("peer public key %q: %w", peerPublicHex, errEnvelope)
	}

	shared, err := curve25519.X25519(private, peerPublic)
	if err != nil {
		return nil, fmt.Errorf("x25519: %w", err)
	}

	symKey := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, nil), symKey); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return symKey, nil
}

// topicFor is the relay topic bound to a symmetric key.
func topicFor(symKey []byte) string {
	sum := sha256.Sum256(symKey)
	return hex.EncodeToString(sum[:])
}

// seal produces a type 0 envelope: base64(0x00 || iv || ciphertext).
func seal(symKey, plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.New(symKey)
	if err != nil {
		return "", fmt.Errorf("init chacha20poly1305: %w", err)
	}
	iv, err := randomBytes(aead.NonceSize())
	if err != nil {
		return "", err
	}

	out := make([]byte, 0, 1+len(iv)+len(plaintext)+aead.Overhead())
	out = append(out, envelopeType0)
	out = append(out, iv...)
	out = aead.Seal(out, iv, plaintext, nil)

	return base64.StdEncoding.EncodeToString(out), nil
}

func unseal(symKey []byte, message string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(message)
	if err != nil {
		return nil, fmt.Errorf("decode envelope: %w", errEnvelope)
	}
	if len(raw) < 1+chacha20poly1305.NonceSize || raw[0] != envelopeType0 {
		return nil, fmt.Errorf("unsupported envelope: %w", errEnvelope)
	}

	aead, err := chacha20poly1305.New(symKey)
	if err != nil {
		return nil, fmt.Errorf("init chacha20poly1305: %w", err)
	}
	iv := raw[1 : 1+chacha20poly1305.NonceSize]
	plaintext, err := aead.Open(nil, iv, raw[1+chacha20poly1305.NonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("open envelope: %w", errEnvelope)
	}
	return plaintext, nil
}
