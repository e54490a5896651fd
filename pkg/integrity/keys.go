// SPDX-License-Identifier: MPL-2.0

package integrity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/opencontainers/go-digest"
)

// KeyFile is the JSON form of a signing key (private and public part) or a
// trusted key (public part only).
type KeyFile struct {
	Algorithm  string `json:"algorithm"`
	KeyID      string `json:"keyId"`
	PublicKey  []byte `json:"publicKey"`
	PrivateKey []byte `json:"privateKey,omitempty"`
}

// KeyID derives a short identifier from a public key.
func KeyID(pub ed25519.PublicKey) string {
	return digest.FromBytes(pub).Encoded()[:16]
}

// GenerateKey creates a new ed25519 signing key.
func GenerateKey() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return priv, nil
}

// MarshalPrivateKey encodes a signing key file.
func MarshalPrivateKey(priv ed25519.PrivateKey) ([]byte, error) {
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, ErrMalformedKey
	}
	return json.MarshalIndent(KeyFile{Algorithm: Algorithm, KeyID: KeyID(pub), PublicKey: pub, PrivateKey: priv.Seed()}, "", "  ")
}

// MarshalPublicKey encodes a trusted key file.
func MarshalPublicKey(pub ed25519.PublicKey) ([]byte, error) {
	return json.MarshalIndent(KeyFile{Algorithm: Algorithm, KeyID: KeyID(pub), PublicKey: pub}, "", "  ")
}

func decodeKeyFile(data []byte) (*KeyFile, error) {
	var kf KeyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	if kf.Algorithm != Algorithm {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedKey, kf.Algorithm)
	}
	return &kf, nil
}

// ParsePrivateKey decodes a signing key file.
func ParsePrivateKey(data []byte) (ed25519.PrivateKey, error) {
	kf, err := decodeKeyFile(data)
	if err != nil {
		return nil, err
	}
	if len(kf.PrivateKey) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: key file has no private key", ErrMalformedKey)
	}
	return ed25519.NewKeyFromSeed(kf.PrivateKey), nil
}

// ParsePublicKey decodes the public part of a key file of either kind.
func ParsePublicKey(data []byte) (ed25519.PublicKey, error) {
	kf, err := decodeKeyFile(data)
	if err != nil {
		return nil, err
	}
	if len(kf.PublicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: bad public key length %d", ErrMalformedKey, len(kf.PublicKey))
	}
	return ed25519.PublicKey(kf.PublicKey), nil
}

// ReadPrivateKey loads a signing key file from disk.
func ReadPrivateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return ParsePrivateKey(data)
}

// ReadPublicKey loads a trusted key file from disk.
func ReadPublicKey(path string) (ed25519.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return ParsePublicKey(data)
}
