// Package dbtest opens throwaway SQLite databases carrying the full stockflow schema.
package dbtest

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/stockflow-backend/pkg/db"
	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
)

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{
		&models.Product{},
		&models.Warehouse{},
		&models.Client{},
		&models.Supplier{},
		&models.Inventory{},
		&models.InventoryMovement{},
		&models.Carrier{},
		&models.SalesOrder{},
		&models.SalesOrderLine{},
		&models.Shipment{},
		&models.PurchaseOrder{},
		&models.PurchaseOrderLine{},
		&models.OutboxEvent{},
	}
}

// Open returns a client backed by a file database under t.TempDir(). Transactions begin
// IMMEDIATE so concurrent writers queue on the busy timeout instead of failing.
func Open(t *testing.T) *db.Client {
	t.Helper()

	path := filepath.Join(t.TempDir(), "stockflow.db")
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on", path)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}

	client := db.NewFromConn(conn)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// MustCreate inserts each value or fails the test.
func MustCreate(t *testing.T, client *db.Client, values ...any) {
	t.Helper()
	for _, value := range values {
		if err := client.DB().Create(value).Error; err != nil {
			t.Fatalf("seed %T: %v", value, err)
		}
	}
}
