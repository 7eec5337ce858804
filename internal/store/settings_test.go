package store

import (
	"context"
	"testing"

	"github.com/erazemk/evidenca/internal/db"
)

func TestEnsureSettingKeepsFirstValue(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	first, err := EnsureSetting(ctx, database, SettingCreatedAt, "2024-01-01")
	if err != nil {
		t.Fatal(err)
	}
	second, err := EnsureSetting(ctx, database, SettingCreatedAt, "2025-01-01")
	if err != nil {
		t.Fatal(err)
	}
	if first != "2024-01-01" || second != first {
		t.Errorf("expected first value to persist, got %q then %q", first, second)
	}
}

func TestSetAndGetSetting(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	v, err := GetSetting(ctx, database, SettingAuditLastCleared)
	if err != nil || v != "" {
		t.Fatalf("expected empty unset value, got %q, %v", v, err)
	}

	SetSetting(ctx, database, SettingAuditLastCleared, "a")
	SetSetting(ctx, database, SettingAuditLastCleared, "b")

	v, _ = GetSetting(ctx, database, SettingAuditLastCleared)
	if v != "b" {
		t.Errorf("expected overwritten value b, got %q", v)
	}
}
