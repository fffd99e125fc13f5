package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/stockflow-backend/pkg/config"
)

func TestCreateSQLMigrationWritesValidFile(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	path, err := createSQLMigrationAt(dir, "Add Carrier Regions!", at)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20260302093000_add_carrier_regions.sql" {
		t.Fatalf("unexpected filename %s", filepath.Base(path))
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
	if _, err := createSQLMigrationAt(dir, "add carrier regions", at); err == nil {
		t.Fatal("expected duplicate file to be rejected")
	}
	if _, err := createSQLMigrationAt(dir, "!!!", at); err == nil {
		t.Fatal("expected empty sanitized name to be rejected")
	}
}

func TestValidateDirRejectsBrokenFiles(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		body     string
		wantErr  string
	}{
		{name: "bad filename", filename: "001_init.sql", body: "", wantErr: "invalid migration filename"},
		{name: "missing down", filename: "20260101000000_a.sql", body: "-- +goose Up\nSELECT 1;\n", wantErr: "missing"},
		{name: "down before up", filename: "20260101000000_a.sql", body: "-- +goose Down\n-- +goose Up\n", wantErr: "must come before"},
		{name: "unterminated block", filename: "20260101000000_a.sql", body: "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n", wantErr: "unterminated"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, tc.filename), []byte(tc.body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			err := ValidateDir(dir)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidateDirRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	body := []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")
	for _, name := range []string{"20260101000000_a.sql", "20260101000000_b.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), body, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := ValidateDir(dir); err == nil || !strings.Contains(err.Error(), "duplicate migration version") {
		t.Fatalf("expected duplicate version error, got %v", err)
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := ParseVersion(" 20260301090400 "); err != nil || v != 20260301090400 {
		t.Fatalf("expected parsed version, got %d (%v)", v, err)
	}
	for _, raw := range []string{"", "2026", "2026030109040x", "-0260301090400"} {
		if _, err := ParseVersion(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestShouldAutoRun(t *testing.T) {
	cases := []struct {
		env  string
		flag bool
		want bool
	}{
		{env: "dev", flag: true, want: true},
		{env: "dev", flag: false},
		{env: "prod", flag: true},
	}
	for _, tc := range cases {
		cfg := &config.Config{}
		cfg.App.Env = tc.env
		cfg.FeatureFlags.AutoMigrate = tc.flag
		if got := ShouldAutoRun(cfg); got != tc.want {
			t.Fatalf("env=%s flag=%v: got %v want %v", tc.env, tc.flag, got, tc.want)
		}
	}
	if ShouldAutoRun(nil) {
		t.Fatalf("nil config must not auto-run")
	}
}
