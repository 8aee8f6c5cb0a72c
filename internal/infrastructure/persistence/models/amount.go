package models

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/presale/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Units is an unsigned 64-bit amount column. Postgres has no unsigned
// bigint, so there it is numeric(20,0). sqlite would give a numeric column
// REAL affinity above MaxInt64, so there it is text holding the value
// zero-padded to 20 digits, which keeps ORDER BY numeric.
type Units uint64

const unitsWidth = 20

var errLossyAmount = errors.New("models: amount column returned a floating point value")

// GormDBDataType returns the column type for the connected dialect
func (Units) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "text"
	}
	return "numeric(20,0)"
}

// Value writes the amount as zero-padded decimal text
func (u Units) Value() (driver.Value, error) {
	return fmt.Sprintf("%0*d", unitsWidth, uint64(u)), nil
}

// Scan reads a numeric or text column back into the amount
func (u *Units) Scan(src any) error {
	var text string
	switch v := src.(type) {
	case int64:
		if v < 0 {
			return shared.ErrUnderflow
		}
		*u = Units(v)
		return nil
	case []byte:
		text = string(v)
	case string:
		text = v
	case float64:
		return errLossyAmount
	default:
		return fmt.Errorf("models: cannot scan %T into an amount", src)
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return fmt.Errorf("models: invalid amount %q: %w", text, err)
	}
	v, err := Uint64(d)
	if err != nil {
		return err
	}
	*u = Units(v)
	return nil
}

// Uint64 converts a decimal amount, rejecting values outside uint64
func Uint64(d decimal.Decimal) (uint64, error) {
	if d.IsNegative() {
		return 0, shared.ErrUnderflow
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("models: amount %s is not whole", d)
	}
	bi := d.BigInt()
	if !bi.IsUint64() {
		return 0, shared.ErrOverflow
	}
	return bi.Uint64(), nil
}
