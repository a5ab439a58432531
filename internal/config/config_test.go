package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Missing.NotAttempted != "Y" {
		t.Errorf("expected NotAttempted=Y, got %s", cfg.Missing.NotAttempted)
	}
	if cfg.Missing.NotResponded != "W" {
		t.Errorf("expected NotResponded=W, got %s", cfg.Missing.NotResponded)
	}
	if cfg.Missing.NotRequired != "Z" {
		t.Errorf("expected NotRequired=Z, got %s", cfg.Missing.NotRequired)
	}
	if cfg.DailyExportDays != 3 {
		t.Errorf("expected DailyExportDays=3, got %d", cfg.DailyExportDays)
	}
	if len(cfg.ExpectedVariables) != 2 || cfg.ExpectedVariables[0] != "duration" {
		t.Errorf("unexpected ExpectedVariables: %v", cfg.ExpectedVariables)
	}
	if len(cfg.ExoticVocabulary) == 0 {
		t.Error("expected a default exotic vocabulary")
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "export.yaml")

	cfg := DefaultConfig()
	cfg.DeliveriesDir = "/srv/deliveries"
	cfg.Missing.NotAttempted = "NA"
	cfg.ForcedIdentifiers = []ForcedIdentifier{
		{Delivery: "d1", ItemRef: "item-1", Identifier: "forced"},
	}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.DeliveriesDir != "/srv/deliveries" {
		t.Errorf("expected DeliveriesDir=/srv/deliveries, got %s", loaded.DeliveriesDir)
	}
	if loaded.Missing.NotAttempted != "NA" {
		t.Errorf("expected NotAttempted=NA, got %s", loaded.Missing.NotAttempted)
	}
	if len(loaded.ForcedIdentifiers) != 1 || loaded.ForcedIdentifiers[0].Identifier != "forced" {
		t.Errorf("unexpected ForcedIdentifiers: %v", loaded.ForcedIdentifiers)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.yaml")
	partial := "deliveries_dir: /srv/deliveries\ndaily_export_days: 0\n"
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DeliveriesDir != "/srv/deliveries" {
		t.Errorf("expected DeliveriesDir from file, got %s", cfg.DeliveriesDir)
	}
	if cfg.Missing.NotResponded != "W" {
		t.Errorf("expected default NotResponded=W, got %s", cfg.Missing.NotResponded)
	}
	if cfg.DailyExportDays != 3 {
		t.Errorf("expected DailyExportDays reset to default, got %d", cfg.DailyExportDays)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestForcedIdentifierFor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ForcedIdentifiers = []ForcedIdentifier{
		{Delivery: "d1", ItemRef: "item-1", Identifier: "forced"},
	}

	id, ok := cfg.ForcedIdentifierFor("d1", "item-1")
	if !ok || id != "forced" {
		t.Errorf("expected forced identifier, got %q ok=%v", id, ok)
	}
	if _, ok := cfg.ForcedIdentifierFor("d1", "item-2"); ok {
		t.Error("expected no forced identifier for item-2")
	}
	if _, ok := cfg.ForcedIdentifierFor("d2", "item-1"); ok {
		t.Error("expected no forced identifier for delivery d2")
	}
}
