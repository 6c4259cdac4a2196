package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 是一个全局的数据库连接实例
var DB *gorm.DB

const (
	// DriverSQLite 为默认的嵌入式存储。
	DriverSQLite = "sqlite"
	// DriverPostgres 用于生产部署。
	DriverPostgres = "postgres"
)

// Models 返回需要自动迁移的全部模型。
func Models() []interface{} {
	return []interface{}{
		&User{},
		&Profile{},
		&ProfileDesignSettings{},
		&Connection{},
		&ProfileView{},
		&LinkClick{},
	}
}

// Open 根据驱动名称打开数据库连接，sqlite 的 dsn 为文件路径。
func Open(driver, dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		path := strings.TrimSpace(dsn)
		if path == "" {
			path = "tapcard.db"
		}
		if !strings.HasPrefix(path, "file:") {
			if err := ensureParentDir(path); err != nil {
				return nil, err
			}
		}
		dialector = sqlite.Open(path)
	case DriverPostgres, "postgresql":
		if strings.TrimSpace(dsn) == "" {
			return nil, errors.New("postgres driver requires DATABASE_URL")
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	return gdb, nil
}

// Migrate 为核心模型创建或更新表结构。
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Init 初始化数据库连接并执行自动迁移。
func Init(driver, dsn string) error {
	gdb, err := Open(driver, dsn, logger.Warn)
	if err != nil {
		return err
	}
	if err := Migrate(gdb); err != nil {
		return err
	}
	DB = gdb
	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
