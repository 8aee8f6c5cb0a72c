package escrow

import (
	"testing"

	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id(b byte) valueobject.Identity {
	var v valueobject.Identity
	v[0] = b
	return v
}

func params() CreateParams {
	return CreateParams{Address: id(1), Sale: id(2), Buyer: id(3), Allocation: 60, Payment: 300, Nonce: 9}
}

func TestCreate(t *testing.T) {
	t.Run("creates with nothing claimed", func(t *testing.T) {
		e, err := Create(params(), nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(60), e.Allocation)
		assert.Equal(t, uint64(0), e.Claimed)
		assert.Equal(t, uint64(60), e.Unclaimed())

		events := e.PendingEvents()
		require.Len(t, events, 1)
		ev := events[0].(*AllocationPurchasedEvent)
		assert.Equal(t, uint64(300), ev.Payment)
		assert.Equal(t, id(3), ev.Buyer)
	})

	t.Run("rejects an existing allocation", func(t *testing.T) {
		existing, err := Create(params(), nil)
		require.NoError(t, err)
		_, err = Create(params(), existing)
		assert.ErrorIs(t, err, shared.ErrVoucherAlreadyUsed)
	})

	t.Run("an empty record does not block creation", func(t *testing.T) {
		_, err := Create(params(), &PurchaseEscrow{})
		assert.NoError(t, err)
	})

	t.Run("rejects zero allocation", func(t *testing.T) {
		p := params()
		p.Allocation = 0
		_, err := Create(p, nil)
		assert.ErrorIs(t, err, shared.ErrInvalidAllocation)
	})
}
