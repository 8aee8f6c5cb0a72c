package valueobject

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the precision of the native currency (lamport-style base units)
const NativeDecimals int32 = 9

// FormatUnits renders an integer amount of base units as a decimal string,
// e.g. FormatUnits(1500000, 6) == "1.5".
func FormatUnits(amount uint64, decimals int32) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -decimals).String()
}
