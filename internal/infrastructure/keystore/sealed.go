package keystore

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/presale/backend/internal/domain/shared/valueobject"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	sealedVersion = 1
	kdfScrypt     = "scrypt"
	saltSize      = 16
	nonceSize     = 24
)

// scryptN is the scrypt cost for newly sealed files. Opening uses the cost
// recorded in the file.
var scryptN = 1 << 15

var (
	ErrPassphraseRequired = errors.New("keystore: keypair is sealed and needs a passphrase")
	ErrWrongPassphrase    = errors.New("keystore: passphrase does not open the keypair")
	ErrUnsupportedSealing = errors.New("keystore: unsupported sealed keypair format")
)

// sealedFile is a keypair encrypted with secretbox under a scrypt-derived
// key. Identity is kept in clear so operators can tell files apart.
type sealedFile struct {
	Version    int                  `json:"version"`
	Identity   valueobject.Identity `json:"identity"`
	KDF        kdfParams            `json:"kdf"`
	Nonce      string               `json:"nonce"`
	Ciphertext string               `json:"ciphertext"`
}

type kdfParams struct {
	Name string `json:"name"`
	N    int    `json:"n"`
	R    int    `json:"r"`
	P    int    `json:"p"`
	Salt string `json:"salt"`
}

// IsSealed reports whether data holds a sealed keypair rather than the
// plain byte array
func IsSealed(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// Seal encrypts the keypair under passphrase
func Seal(priv ed25519.PrivateKey, passphrase string) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKeypair
	}
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}
	id, err := valueobject.IdentityFromPublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}

	params := kdfParams{Name: kdfScrypt, N: scryptN, R: 8, P: 1}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}
	params.Salt = base64.StdEncoding.EncodeToString(salt)

	key, err := params.derive(passphrase, salt)
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to read nonce: %w", err)
	}

	return json.MarshalIndent(sealedFile{
		Version:    sealedVersion,
		Identity:   id,
		KDF:        params,
		Nonce:      base64.StdEncoding.EncodeToString(nonce[:]),
		Ciphertext: base64.StdEncoding.EncodeToString(secretbox.Seal(nil, priv, &nonce, key)),
	}, "", "  ")
}

// Open decrypts a sealed keypair and checks it against the recorded identity
func Open(data []byte, passphrase string) (ed25519.PrivateKey, error) {
	var f sealedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sealed keypair: %w", err)
	}
	if f.Version != sealedVersion || f.KDF.Name != kdfScrypt {
		return nil, ErrUnsupportedSealing
	}
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}

	salt, err := base64.StdEncoding.DecodeString(f.KDF.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	rawNonce, err := base64.StdEncoding.DecodeString(f.Nonce)
	if err != nil || len(rawNonce) != nonceSize {
		return nil, ErrUnsupportedSealing
	}
	box, err := base64.StdEncoding.DecodeString(f.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	key, err := f.KDF.derive(passphrase, salt)
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], rawNonce)
	plain, ok := secretbox.Open(nil, box, &nonce, key)
	if !ok {
		return nil, ErrWrongPassphrase
	}
	if len(plain) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKeypair
	}

	priv := ed25519.NewKeyFromSeed(plain[:ed25519.SeedSize])
	if !bytes.Equal(priv[ed25519.SeedSize:], plain[ed25519.SeedSize:]) {
		return nil, ErrKeyMismatch
	}
	if !bytes.Equal(priv[ed25519.SeedSize:], f.Identity.Bytes()) {
		return nil, ErrKeyMismatch
	}
	return priv, nil
}

func (p kdfParams) derive(passphrase string, salt []byte) (*[32]byte, error) {
	raw, err := scrypt.Key([]byte(passphrase), salt, p.N, p.R, p.P, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}
