package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ledgerq/internal/config"
	"ledgerq/internal/core"
)

func TestCreateMemoryBackend(t *testing.T) {
	f := NewFactory(nil, nil)
	res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()

	months, err := res.Store.Months(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(months) != 0 {
		t.Errorf("fresh memory store has months %v", months)
	}
}

func TestCreateSeededMemoryBackend(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.txt")
	data := "# date;amount;description\n2026-10-02;12.50;coffee beans\n2026-09-15;40;groceries\n"
	if err := os.WriteFile(seed, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := NewFactory(nil, nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, SeedFile: seed})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	recs, err := res.Store.Load(context.Background(), core.MonthKey{Year: 2026, Month: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Amount.Cents != 1250 {
		t.Fatalf("october records = %+v", recs)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "ledger.db")
	res, err := NewFactory(nil, nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	if err := res.Cleanup(); err != nil {
		t.Errorf("Cleanup: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestCreateBackendInvalid(t *testing.T) {
	f := NewFactory(nil, nil)
	for _, cfg := range []Config{
		{Type: "sheets"},
		{Type: SQLiteBackend},
	} {
		if _, err := f.CreateBackend(context.Background(), cfg); err == nil {
			t.Errorf("CreateBackend(%+v) succeeded", cfg)
		}
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("nil config accepted")
	}

	app := config.Defaults()
	app.DataBackend = "sqlite"
	app.SQLiteDBPath = "/tmp/x.db"
	cfg, err := FromAppConfig(&app)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "/tmp/x.db" {
		t.Errorf("cfg = %+v", cfg)
	}

	app.DataBackend = "postgres"
	if _, err := FromAppConfig(&app); err == nil {
		t.Error("unknown backend accepted")
	}
}

func TestBackendTypeStrings(t *testing.T) {
	got := GetBackendTypeStrings()
	if len(got) != 2 || got[0] != "sqlite" || got[1] != "memory" {
		t.Errorf("GetBackendTypeStrings() = %v", got)
	}
}
