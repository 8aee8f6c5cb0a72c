package persistence

import (
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/presale/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return NewDatabaseFromGorm(db), mock
}

func TestDatabase_WithSQLMock(t *testing.T) {
	t.Run("ping reaches the driver", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		mock.ExpectPing()

		require.NoError(t, db.Ping())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stats reflect the pool", func(t *testing.T) {
		db, _ := newMockDatabase(t)
		stats, err := db.Stats()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, stats.OpenConnections, 0)
		assert.Equal(t, stats.InUse+stats.Idle, stats.OpenConnections)
	})

	t.Run("close closes the pool", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		mock.ExpectClose()

		require.NoError(t, db.Close())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("row lock is requested on postgres", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		mock.ExpectQuery(`SELECT \* FROM "sales" WHERE address = \$1 ORDER BY .* FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"address"}))

		found, err := NewGormSaleRepository(db.DB).FindByAddressForUpdate(t.Context(), identity(1))
		require.NoError(t, err)
		assert.Nil(t, found)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNewDatabase(t *testing.T) {
	t.Run("sqlite file database", func(t *testing.T) {
		db, err := NewDatabase(&config.DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "presale.db"),
		})
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, db.AutoMigrate())
		assert.True(t, db.DB.Migrator().HasTable("sales"))
		assert.True(t, db.DB.Migrator().HasTable("event_outbox"))
		stats, err := db.Stats()
		require.NoError(t, err)
		assert.Equal(t, 1, stats.MaxOpenConnections)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := NewDatabase(&config.DatabaseConfig{Driver: "oracle"})
		assert.ErrorContains(t, err, "unsupported database driver")
	})
}
