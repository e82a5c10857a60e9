package client

import (
	"fmt"
	"testing"
	"time"

	"paypal-billing/internal/config"
	"paypal-billing/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestInitDatabase_SQLite(t *testing.T) {
	db, err := InitDatabase(config.Database{
		Driver:          config.DriverSQLite,
		URL:             fmt.Sprintf("file:client_%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano()),
		MaxIdleConns:    1,
		MaxOpenConns:    1,
		ConnMaxLifetime: time.Hour,
		AutoMigrate:     true,
	}, zap.NewNop())
	require.NoError(t, err)

	for _, table := range []string{"organizations", "users", "transactions", "paypal_notifications"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestInitDatabase_UnknownDriver(t *testing.T) {
	_, err := InitDatabase(config.Database{Driver: "oracle", URL: "x"}, zap.NewNop())
	assert.Error(t, err)
}

func TestInitDatabase_SQLiteEnforcesForeignKeys(t *testing.T) {
	db, err := InitDatabase(config.Database{
		Driver:       config.DriverSQLite,
		URL:          fmt.Sprintf("file:client_fk_%d?mode=memory&cache=shared", time.Now().UnixNano()),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	}, zap.NewNop())
	require.NoError(t, err)

	orgID := uuid.New()
	err = db.Create(&model.Transaction{
		ID:             uuid.New(),
		Gateway:        model.GatewayPayPal,
		GatewayID:      "S1",
		Amount:         decimal.RequireFromString("10.00"),
		CreationDate:   time.Now(),
		OrganizationID: &orgID,
		Type:           model.TransactionTypeCharge,
	}).Error
	assert.ErrorIs(t, err, gorm.ErrForeignKeyViolated)
}

func TestInitDatabase_SQLiteForeignKeysOff(t *testing.T) {
	_, err := InitDatabase(config.Database{
		Driver:       config.DriverSQLite,
		URL:          fmt.Sprintf("file:client_nofk_%d?mode=memory&cache=shared&_foreign_keys=off", time.Now().UnixNano()),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	}, zap.NewNop())
	assert.ErrorContains(t, err, "foreign keys are disabled")
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "app.db?_foreign_keys=on", sqliteDSN("app.db"))
	assert.Equal(t, "file:x?mode=memory&_foreign_keys=on", sqliteDSN("file:x?mode=memory"))
	assert.Equal(t, "file:x?_fk=1", sqliteDSN("file:x?_fk=1"))
}
