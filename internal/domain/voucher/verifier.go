package voucher

import "crypto/ed25519"

// Verifier checks a detached signature over message with publicKey.
// Implementations must never accept unconditionally.
type Verifier interface {
	Verify(message, signature, publicKey []byte) bool
}

// Ed25519Verifier verifies Ed25519 signatures
type Ed25519Verifier struct{}

// NewEd25519Verifier creates an Ed25519Verifier
func NewEd25519Verifier() *Ed25519Verifier {
	return &Ed25519Verifier{}
}

// Verify implements Verifier
func (Ed25519Verifier) Verify(message, signature, publicKey []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}
