package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/stockflow-backend/pkg/config"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
)

type ledgerRow struct {
	ID  int
	Ref string
}

func newTestClient(t *testing.T) (*Client, *gorm.DB) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:client_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&ledgerRow{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return NewFromConn(conn), conn
}

func countRows(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := conn.Model(&ledgerRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return count
}

func TestWithTx(t *testing.T) {
	tests := []struct {
		name string
		fn   func(tx *gorm.DB) error
		want int64
		err  bool
	}{
		{
			name: "commit",
			fn:   func(tx *gorm.DB) error { return tx.Create(&ledgerRow{Ref: "PO-1"}).Error },
			want: 1,
		},
		{
			name: "rollback on error",
			fn: func(tx *gorm.DB) error {
				if err := tx.Create(&ledgerRow{Ref: "SO-1"}).Error; err != nil {
					return err
				}
				return errors.New("reservation failed")
			},
			want: 0,
			err:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, conn := newTestClient(t)
			err := client.WithTx(context.Background(), tt.fn)
			if (err != nil) != tt.err {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got := countRows(t, conn); got != tt.want {
				t.Fatalf("expected %d rows, got %d", tt.want, got)
			}
		})
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	client, conn := newTestClient(t)

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&ledgerRow{Ref: "ADJ-1"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	}()

	if got := countRows(t, conn); got != 0 {
		t.Fatalf("expected panic rollback to leave 0 rows, got %d", got)
	}
}

func TestPingAndPoolMetrics(t *testing.T) {
	client, _ := newTestClient(t)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}

	reg := prometheus.NewRegistry()
	if err := client.RegisterMetrics(reg, "stockflow"); err != nil {
		t.Fatalf("register metrics: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found bool
	for _, mf := range families {
		if mf.GetName() == "go_sql_max_open_connections" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected pool gauges to be registered")
	}
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(context.Background(), configWithoutDSN(), nil); err == nil {
		t.Fatal("expected error without dsn")
	}
}

func TestQueryLoggerReportsSlowAndFailedQueries(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	ql := newQueryLogger(logg, 10*time.Millisecond)
	ctx := context.Background()
	stmt := func() (string, int64) { return "SELECT 1", 1 }

	ql.Trace(ctx, time.Now(), stmt, nil)
	if buf.Len() != 0 {
		t.Fatalf("fast query should not log, got %s", buf.String())
	}

	ql.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	if !strings.Contains(buf.String(), "slow query") || !strings.Contains(buf.String(), `"sql":"SELECT 1"`) {
		t.Fatalf("expected slow query entry, got %s", buf.String())
	}

	buf.Reset()
	ql.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("record not found should not log, got %s", buf.String())
	}

	ql.Trace(ctx, time.Now(), stmt, errors.New("relation does not exist"))
	if !strings.Contains(buf.String(), "query failed") {
		t.Fatalf("expected failure entry, got %s", buf.String())
	}

	buf.Reset()
	ql.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), stmt, errors.New("ignored"))
	if buf.Len() != 0 {
		t.Fatalf("silent mode should not log, got %s", buf.String())
	}
}

func configWithoutDSN() config.DBConfig {
	return config.DBConfig{Driver: "postgres"}
}
