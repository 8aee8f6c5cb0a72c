// Package voucher models the signed, single-use purchase authorization and
// the gate that redeems it.
package voucher

import (
	"encoding/base64"
	"encoding/binary"

	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
)

// MessageSize is the exact length of the canonical signed message:
// buyer(32) sale(32) max_allocation(8) nonce(8) expiry(8)
const MessageSize = valueobject.IdentitySize*2 + 8 + 8 + 8

// SignatureSize is the length of an Ed25519 signature
const SignatureSize = 64

// Voucher is the transient capability token. It authorizes but never
// records a purchase.
type Voucher struct {
	Buyer         valueobject.Identity `json:"buyer"`
	Sale          valueobject.Identity `json:"sale"`
	MaxAllocation uint64               `json:"max_allocation"`
	Nonce         uint64               `json:"nonce"`
	Expiry        int64                `json:"expiry_ts"`
}

// Message returns the canonical byte string the issuer signs. Field order,
// widths and little-endian encoding must match the issuer bit for bit.
func (v Voucher) Message() []byte {
	msg := make([]byte, 0, MessageSize)
	msg = append(msg, v.Buyer[:]...)
	msg = append(msg, v.Sale[:]...)
	msg = binary.LittleEndian.AppendUint64(msg, v.MaxAllocation)
	msg = binary.LittleEndian.AppendUint64(msg, v.Nonce)
	msg = binary.LittleEndian.AppendUint64(msg, uint64(v.Expiry))
	return msg
}

// ParseMessage is the inverse of Message
func ParseMessage(msg []byte) (Voucher, error) {
	var v Voucher
	if len(msg) != MessageSize {
		return v, shared.ErrInvalidVoucher
	}
	copy(v.Buyer[:], msg[0:32])
	copy(v.Sale[:], msg[32:64])
	v.MaxAllocation = binary.LittleEndian.Uint64(msg[64:72])
	v.Nonce = binary.LittleEndian.Uint64(msg[72:80])
	v.Expiry = int64(binary.LittleEndian.Uint64(msg[80:88]))
	return v, nil
}

// DecodeSignature decodes a base64 signature as handed out by the issuer
func DecodeSignature(s string) ([]byte, error) {
	sig, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(sig) != SignatureSize {
		return nil, shared.ErrInvalidVoucher
	}
	return sig, nil
}

// EncodeSignature renders a signature as base64
func EncodeSignature(sig []byte) string {
	return base64.StdEncoding.EncodeToString(sig)
}
