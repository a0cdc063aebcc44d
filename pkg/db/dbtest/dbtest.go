// Package dbtest opens throwaway sqlite stores for package tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var seq atomic.Int64

// Open returns an in-memory database private to the calling test, with the
// given DDL applied.
func Open(t testing.TB, ddl ...string) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:taxmate_%d?mode=memory&cache=shared", seq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range ddl {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply ddl: %v", err)
		}
	}
	return conn
}
