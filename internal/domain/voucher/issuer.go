package voucher

import (
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
)

// IssueParams are the caller-chosen fields of a new voucher
type IssueParams struct {
	Buyer         valueobject.Identity
	Sale          valueobject.Identity
	MaxAllocation uint64
	Expiry        int64
}

// SignedVoucher is a voucher together with the issuer's signature
type SignedVoucher struct {
	Voucher   Voucher
	Signature []byte
	Signer    valueobject.Identity
}

// Issuer signs vouchers with the issuer private key. Nonces are the issue
// time in microseconds, bumped when two vouchers land in the same tick.
type Issuer struct {
	key       ed25519.PrivateKey
	signer    valueobject.Identity
	mu        sync.Mutex
	lastNonce uint64
}

// NewIssuer creates an issuer from a 64-byte ed25519 private key
func NewIssuer(key ed25519.PrivateKey) (*Issuer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, shared.ErrIssuerKeyNotAvailable
	}
	signer, err := valueobject.IdentityFromPublicKey(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &Issuer{key: key, signer: signer}, nil
}

// Signer returns the issuer public key as an identity
func (i *Issuer) Signer() valueobject.Identity {
	return i.signer
}

// Issue validates the parameters, assigns a nonce and signs the canonical message
func (i *Issuer) Issue(p IssueParams, now time.Time) (*SignedVoucher, error) {
	if p.Buyer.IsZero() || p.Sale.IsZero() {
		return nil, shared.ErrInvalidIdentity
	}
	if p.MaxAllocation == 0 {
		return nil, shared.ErrInvalidAllocation
	}
	if p.Expiry < now.Unix() {
		return nil, shared.ErrVoucherExpired
	}

	v := Voucher{
		Buyer:         p.Buyer,
		Sale:          p.Sale,
		MaxAllocation: p.MaxAllocation,
		Nonce:         i.nextNonce(now),
		Expiry:        p.Expiry,
	}
	return &SignedVoucher{
		Voucher:   v,
		Signature: ed25519.Sign(i.key, v.Message()),
		Signer:    i.signer,
	}, nil
}

func (i *Issuer) nextNonce(now time.Time) uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	n := uint64(now.UnixMicro())
	if n <= i.lastNonce {
		n = i.lastNonce + 1
	}
	i.lastNonce = n
	return n
}
