package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/presale/backend/internal/domain/escrow"
	"github.com/presale/backend/internal/domain/sale"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func identity(b byte) valueobject.Identity {
	var id valueobject.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

func saleOpened(t *testing.T) *sale.SaleOpenedEvent {
	t.Helper()
	s, err := sale.Open(sale.OpenParams{
		Address:        identity(1),
		Owner:          identity(2),
		Asset:          identity(3),
		Treasury:       identity(4),
		Price:          5,
		StartTime:      1000,
		EndTime:        2000,
		TotalAllocated: 100,
	})
	require.NoError(t, err)
	ev, ok := s.PendingEvents()[0].(*sale.SaleOpenedEvent)
	require.True(t, ok)
	return ev
}

func allocationPurchased() *escrow.AllocationPurchasedEvent {
	return &escrow.AllocationPurchasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(escrow.EventTypeAllocationPurchased, escrow.AggregateType, identity(9).String()),
		Sale:            identity(1),
		Buyer:           identity(7),
		Allocation:      40,
		Payment:         200,
		Nonce:           3,
	}
}

// recordingHandler collects handled events and fails while err is set
type recordingHandler struct {
	mu      sync.Mutex
	types   []string
	handled []shared.DomainEvent
	err     error
	panics  bool
}

func newRecordingHandler(types ...string) *recordingHandler {
	return &recordingHandler{types: types}
}

func (h *recordingHandler) Handle(_ context.Context, ev shared.DomainEvent) error {
	if h.panics {
		panic("handler exploded")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, ev)
	return h.err
}

func (h *recordingHandler) EventTypes() []string {
	return h.types
}

func (h *recordingHandler) events() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func (h *recordingHandler) setErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&shared.OutboxEntry{}))
	return db
}

func newSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterPresaleEvents(s)
	return s
}

func past() time.Time {
	return time.Now().Add(-time.Hour)
}
