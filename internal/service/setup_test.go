package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tapcard/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter atomic.Int64

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:service-test-%d-%d?mode=memory&cache=shared", time.Now().UnixNano(), testDBCounter.Add(1))
	gdb, err := db.Open(db.DriverSQLite, dsn, logger.Silent)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func createTestUser(t *testing.T, gdb *gorm.DB, username string) *db.Profile {
	t.Helper()

	_, profile, err := NewAuthService(gdb).createAccount(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return profile
}

func strPtr(v string) *string {
	return &v
}

func boolPtr(v bool) *bool {
	return &v
}
