// Package config holds the run configuration of the result exporter.
// One ExportConfig is constructed per run and threaded explicitly through
// every component.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ExportConfig holds everything a single export run needs.
type ExportConfig struct {
	// DeliveriesDir is the root directory scanned for delivery manifests.
	DeliveriesDir string `yaml:"deliveries_dir"`

	// ResultsDB is the path of the SQLite result store.
	ResultsDB string `yaml:"results_db"`

	// ExportDir is the base directory export artifacts are written under.
	ExportDir string `yaml:"export_dir"`

	// Missing data encodings written for unset cells.
	Missing MissingDataConfig `yaml:"missing_data"`

	// MissingOverrides remap missing data codes, per column or globally.
	MissingOverrides []MissingOverride `yaml:"missing_data_overrides,omitempty"`

	// DailyExportDays is how many trailing days a daily export covers.
	DailyExportDays int `yaml:"daily_export_days"`

	// ExpectedVariables are the built-in per-item variables exported even
	// though items do not declare them.
	ExpectedVariables []string `yaml:"expected_variables"`

	// ExoticVocabulary lists character sequences stripped from free-text
	// responses unless exotic export is allowed.
	ExoticVocabulary []string `yaml:"exotic_vocabulary"`

	// ForcedIdentifiers override the identifier strategy for single items.
	ForcedIdentifiers []ForcedIdentifier `yaml:"forced_identifiers,omitempty"`
}

// MissingDataConfig holds the three placeholder codes for unset cells.
type MissingDataConfig struct {
	NotAttempted string `yaml:"not_attempted"`
	NotResponded string `yaml:"not_responded"`
	NotRequired  string `yaml:"not_required"`
}

// MissingOverride remaps one missing data code to an alternate output token.
// An empty Column makes the override global.
type MissingOverride struct {
	Column      string `yaml:"column,omitempty"`
	Code        string `yaml:"code"`
	Replacement string `yaml:"replacement"`
}

// ForcedIdentifier pins the exported identifier of one item ref within one
// delivery, winning over any identifier strategy.
type ForcedIdentifier struct {
	Delivery   string `yaml:"delivery"`
	ItemRef    string `yaml:"item_ref"`
	Identifier string `yaml:"identifier"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *ExportConfig {
	return &ExportConfig{
		DeliveriesDir: "deliveries",
		ResultsDB:     "results.db",
		ExportDir:     "export",
		Missing: MissingDataConfig{
			NotAttempted: "Y",
			NotResponded: "W",
			NotRequired:  "Z",
		},
		DailyExportDays:   3,
		ExpectedVariables: []string{"duration", "numAttempts"},
		// Stray control characters that broke downstream CSV ingestion.
		ExoticVocabulary: []string{
			"\u0081", "\u008d", "\u008f", "\u0090", "\u009d",
			"\u00ad", "\ufeff",
		},
	}
}

// Load reads a config file, filling unset fields from the defaults.
func Load(path string) (*ExportConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.DailyExportDays <= 0 {
		cfg.DailyExportDays = DefaultConfig().DailyExportDays
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories.
func (c *ExportConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// ForcedIdentifierFor resolves a forced identifier override, if any.
func (c *ExportConfig) ForcedIdentifierFor(deliveryID, itemRefID string) (string, bool) {
	for _, f := range c.ForcedIdentifiers {
		if f.Delivery == deliveryID && f.ItemRef == itemRefID {
			return f.Identifier, true
		}
	}
	return "", false
}
