package db

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func TestAutoMigrateAllCreatesTables(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open("file:migrate_test?mode=memory&cache=shared"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrateAll(gdb); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}
	if err := EnsureIndexes(gdb); err != nil {
		t.Fatalf("EnsureIndexes on sqlite: %v", err)
	}
	for _, table := range []string{"user", "organization", "organization_member", "questionnaire_session", "audit_log"} {
		if !gdb.Migrator().HasTable(table) {
			t.Fatalf("table %s: want present", table)
		}
	}
}

func TestPostgresConfigDSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: "5432", User: "orgdesk", Password: "p@ss word", Name: "orgdesk"}
	want := "postgres://orgdesk:p%40ss%20word@db:5432/orgdesk?sslmode=disable"
	if got := cfg.dsn(); got != want {
		t.Fatalf("dsn: want=%s got=%s", want, got)
	}
	cfg.DSN = "postgres://override"
	if got := cfg.dsn(); got != "postgres://override" {
		t.Fatalf("dsn override: got=%s", got)
	}
}
