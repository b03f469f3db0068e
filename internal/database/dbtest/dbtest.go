// Package dbtest 提供基于内存 SQLite 的测试数据库。
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"

	"resumeBuilder/internal/config"
	"resumeBuilder/internal/database"
)

var seq atomic.Int64

// New 为每个测试创建独立的内存数据库并完成迁移，测试结束时关闭连接。
func New(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	db, err := database.InitDatabase(config.DatabaseConfig{Driver: "sqlite", SQLitePath: dsn})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
