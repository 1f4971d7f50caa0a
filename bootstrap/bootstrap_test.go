package bootstrap_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/printforge/genmeter/bootstrap"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "genmeter.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestBootstrap_SqliteDriver(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	path := writeTestConfig(t, `
database:
  driver: "sqlite"
  dsn: "`+dbPath+`"
`)

	app, err := bootstrap.New(path)
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	defer app.Shutdown()

	if app.DB == nil {
		t.Error("DB should not be nil for sqlite driver")
	}
	if app.HTTPServer == nil {
		t.Error("HTTPServer should not be nil")
	}
	if app.Meter == nil {
		t.Error("Meter should not be nil")
	}

	// Migrations ran: tables should be queryable
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	if err := app.DB.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM usage_records").Scan(&count); err != nil {
		t.Errorf("query usage_records table: %v", err)
	}
	if err := app.DB.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM usage_events").Scan(&count); err != nil {
		t.Errorf("query usage_events table: %v", err)
	}
}

func TestBootstrap_MemoryDriver(t *testing.T) {
	path := writeTestConfig(t, `
database:
  driver: "memory"
`)

	app, err := bootstrap.New(path)
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	defer app.Shutdown()

	if app.DB != nil {
		t.Error("DB should be nil for memory driver")
	}

	// Service is usable end to end against the memory store
	ctx := context.Background()
	decision, err := app.Meter.CheckQuota(ctx, "boot-user")
	if err != nil {
		t.Fatalf("CheckQuota error: %v", err)
	}
	if !decision.Allowed {
		t.Error("fresh user should be allowed")
	}

	if err := app.Meter.RecordUsage(ctx, "boot-user", "test"); err != nil {
		t.Fatalf("RecordUsage error: %v", err)
	}

	stats, err := app.Meter.GetStats(ctx, "boot-user")
	if err != nil {
		t.Fatalf("GetStats error: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("Total = %d, want 1", stats.Total)
	}
}

func TestBootstrap_MeterLimitsFromConfig(t *testing.T) {
	path := writeTestConfig(t, `
database:
  driver: "memory"
quota:
  hourly_limit: 2
  daily_limit: 4
`)

	app, err := bootstrap.New(path)
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	defer app.Shutdown()

	limits := app.Meter.Limits()
	if limits.HourlyLimit != 2 {
		t.Errorf("HourlyLimit = %d, want 2", limits.HourlyLimit)
	}
	if limits.DailyLimit != 4 {
		t.Errorf("DailyLimit = %d, want 4", limits.DailyLimit)
	}
}

func TestBootstrap_MalformedConfigFile(t *testing.T) {
	path := writeTestConfig(t, `
database:
  driver: "postgres"
`)

	if _, err := bootstrap.New(path); err == nil {
		t.Fatal("expected error for a config file that fails validation")
	}
}

func TestBootstrap_InvalidYAMLConfigFile(t *testing.T) {
	path := writeTestConfig(t, `
database: [not a mapping
`)

	if _, err := bootstrap.New(path); err == nil {
		t.Fatal("expected error for unparseable config file")
	}
}

func TestBootstrap_MissingConfigFallsBackToEnv(t *testing.T) {
	os.Setenv("GENMETER_DATABASE_DRIVER", "memory")
	defer os.Unsetenv("GENMETER_DATABASE_DRIVER")

	app, err := bootstrap.New("/nonexistent/genmeter.yaml")
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	defer app.Shutdown()

	if app.DB != nil {
		t.Error("DB should be nil for memory driver from env")
	}
}

func TestBootstrap_GracefulShutdown(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "shutdown-test.db")

	path := writeTestConfig(t, `
database:
  driver: "sqlite"
  dsn: "`+dbPath+`"
`)

	app, err := bootstrap.New(path)
	if err != nil {
		t.Fatalf("create app: %v", err)
	}

	if err := app.Shutdown(); err != nil {
		t.Errorf("shutdown error: %v", err)
	}

	// DB is closed; queries must fail
	if _, err := app.DB.DB.Query("SELECT 1"); err == nil {
		t.Error("expected error querying closed database")
	}
}
