// Package keystore reads and writes the voucher issuer keypair. The plain
// file format is a JSON array of the 64 bytes seed||public key, the layout
// wallet tooling uses for ed25519 keypairs. A sealed file holds the same
// bytes encrypted under a passphrase.
package keystore

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/infrastructure/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrInvalidKeypair = errors.New("keystore: keypair must be 64 bytes")
	ErrKeyMismatch    = errors.New("keystore: public half does not match the seed")
	ErrIssuerMismatch = errors.New("keystore: keypair does not match presale.issuer_public_key")
)

// Generate returns a fresh issuer keypair
func Generate() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return priv, nil
}

// Decode parses the JSON byte-array form and checks the public half
func Decode(data []byte) (ed25519.PrivateKey, error) {
	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse keypair: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKeypair
	}
	buf := make([]byte, ed25519.PrivateKeySize)
	for i, v := range raw {
		if v < 0 || v > 255 {
			return nil, ErrInvalidKeypair
		}
		buf[i] = byte(v)
	}

	priv := ed25519.NewKeyFromSeed(buf[:ed25519.SeedSize])
	if !bytes.Equal(priv[ed25519.SeedSize:], buf[ed25519.SeedSize:]) {
		return nil, ErrKeyMismatch
	}
	return priv, nil
}

// Encode renders the keypair as a JSON byte array
func Encode(priv ed25519.PrivateKey) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKeypair
	}
	raw := make([]int, len(priv))
	for i, b := range priv {
		raw[i] = int(b)
	}
	return json.Marshal(raw)
}

// Load reads a keypair file. passphrase is only used for sealed files.
func Load(path, passphrase string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair %s: %w", path, err)
	}
	if IsSealed(data) {
		return Open(data, passphrase)
	}
	return Decode(data)
}

// Save writes a plain keypair file readable only by its owner
func Save(path string, priv ed25519.PrivateKey) error {
	data, err := Encode(priv)
	if err != nil {
		return err
	}
	return writeKeyFile(path, data)
}

// SaveSealed writes the keypair encrypted under passphrase
func SaveSealed(path string, priv ed25519.PrivateKey, passphrase string) error {
	data, err := Seal(priv, passphrase)
	if err != nil {
		return err
	}
	return writeKeyFile(path, data)
}

func writeKeyFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create keypair directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write keypair %s: %w", path, err)
	}
	return nil
}

// Issuer is the resolved voucher issuer configuration. Private is nil when
// only the public key is configured; the service then verifies vouchers
// but cannot issue them.
type Issuer struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// CanIssue reports whether a private key is available
func (i Issuer) CanIssue() bool {
	return i.Private != nil
}

// Identity returns the issuer public key as an identity
func (i Issuer) Identity() valueobject.Identity {
	id, _ := valueobject.IdentityFromPublicKey(i.Public)
	return id
}

// Resolve loads the issuer key from presale configuration. When both the
// keypair path and the public key are set they must agree.
func Resolve(cfg config.PresaleConfig) (Issuer, error) {
	var configured *valueobject.Identity
	if cfg.IssuerPublicKey != "" {
		id, err := valueobject.ParseIdentity(cfg.IssuerPublicKey)
		if err != nil {
			return Issuer{}, fmt.Errorf("invalid presale.issuer_public_key: %w", err)
		}
		configured = &id
	}

	if cfg.IssuerKeyPath == "" {
		if configured == nil {
			return Issuer{}, errors.New("keystore: no issuer key configured")
		}
		return Issuer{Public: configured.PublicKey()}, nil
	}

	priv, err := Load(cfg.IssuerKeyPath, cfg.IssuerKeyPassphrase)
	if err != nil {
		return Issuer{}, err
	}
	pub := priv.Public().(ed25519.PublicKey)
	if configured != nil && !bytes.Equal(pub, configured.Bytes()) {
		return Issuer{}, ErrIssuerMismatch
	}
	return Issuer{Public: pub, Private: priv}, nil
}
