package db

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/tapcard/internal/theme"
	"gorm.io/gorm/logger"
)

func TestInitCreatesParentDirAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tapcard.db")
	if err := Init(DriverSQLite, path); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := DB.DB(); err == nil {
			sqlDB.Close()
		}
	})

	for _, model := range Models() {
		if !DB.Migrator().HasTable(model) {
			t.Fatalf("expected table for %T", model)
		}
	}
	if !DB.Migrator().HasColumn(&Profile{}, "linkedin") {
		t.Fatal("expected linkedin column")
	}
	if !DB.Migrator().HasColumn(&ProfileDesignSettings{}, "background_gradient_start") {
		t.Fatal("expected embedded design columns")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "x", logger.Silent); err == nil {
		t.Fatal("expected unsupported driver error")
	}
	if _, err := Open(DriverPostgres, "", logger.Silent); err == nil {
		t.Fatal("expected postgres without dsn to fail")
	}
}

func TestConnectionPairIsUnique(t *testing.T) {
	dsn := fmt.Sprintf("file:db-test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := Open(DriverSQLite, dsn, logger.Silent)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	if err := gdb.Create(&Connection{UserID: 1, ConnectedUserID: 2}).Error; err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := gdb.Create(&Connection{UserID: 1, ConnectedUserID: 2}).Error; err == nil {
		t.Fatal("expected duplicate pair to be rejected")
	}
	if err := gdb.Create(&Connection{UserID: 2, ConnectedUserID: 1}).Error; err != nil {
		t.Fatalf("reverse pair should be allowed: %v", err)
	}

	row := ProfileDesignSettings{UserID: 1, Settings: theme.Defaults()}
	if err := gdb.Create(&row).Error; err != nil {
		t.Fatalf("create design settings: %v", err)
	}
	var loaded ProfileDesignSettings
	if err := gdb.Where("user_id = ?", 1).First(&loaded).Error; err != nil {
		t.Fatalf("load design settings: %v", err)
	}
	if loaded.Settings != theme.Defaults() {
		t.Fatalf("expected embedded settings round trip, got %#v", loaded.Settings)
	}
}

func TestProfileCreateKeepsDisabledNetworkSaves(t *testing.T) {
	dsn := fmt.Sprintf("file:db-test-profile-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := Open(DriverSQLite, dsn, logger.Silent)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	if err := gdb.Create(&Profile{ID: 7, Slug: "private", AllowNetworkSaves: false}).Error; err != nil {
		t.Fatalf("create profile: %v", err)
	}
	var loaded Profile
	if err := gdb.First(&loaded, 7).Error; err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if loaded.AllowNetworkSaves {
		t.Fatal("expected allow_network_saves=false to be stored as given")
	}
}
