package config_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/ginjaninja78/invoice-dashboard/internal/config"
	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg, config.Default()) {
		t.Errorf("Load(missing) = %+v, want Default()", cfg)
	}
	if cfg.CSV.Delimiter != "auto" || cfg.CSV.HeaderRows != 1 {
		t.Errorf("csv defaults = %+v", cfg.CSV)
	}
	if !cfg.ContinuesOnError() {
		t.Errorf("continue_on_error should default to true")
	}
	if cfg.Server.SessionTTL != 2*time.Hour {
		t.Errorf("session_ttl = %v", cfg.Server.SessionTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
log_level: debug
timezone: Asia/Riyadh
workbook:
  sheet: Invoices
date_layouts: ["DD/MM/YYYY"]
continue_on_error: false
column_bindings:
  client: "Customer (billing)"
csv:
  delimiter: ";"
  encoding: Windows-1256
server:
  addr: ":9090"
  session_ttl: 30m
transformation_rules:
  - field: payment_status
    actions:
      - type: lookup
        lookup_table:
          Settled: paid
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.CSV.Delimiter != ";" || cfg.CSV.Encoding != "Windows-1256" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.SessionTTL != 30*time.Minute {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.ContinuesOnError() {
		t.Errorf("continue_on_error: false was ignored")
	}
	if got := cfg.Bindings(); got[schema.Client] != "Customer (billing)" {
		t.Errorf("Bindings() = %v", got)
	}
	if loc, err := cfg.Location(); err != nil || loc.String() != "Asia/Riyadh" {
		t.Errorf("Location() = %v, %v", loc, err)
	}
	if cfg.Workbook.Sheet != "Invoices" {
		t.Errorf("workbook.sheet = %q", cfg.Workbook.Sheet)
	}
	if cfg.Server.MaxUploadMB != 25 {
		t.Errorf("unset max_upload_mb should default, got %d", cfg.Server.MaxUploadMB)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad log level", "log_level: loud"},
		{"unknown binding", "column_bindings: {vendor: X}"},
		{"unknown rule field", "transformation_rules: [{field: vendor}]"},
		{"negative header rows", "csv: {header_rows: -1}"},
		{"unknown timezone", "timezone: Mars/Olympus"},
		{"malformed yaml", "log_level: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := config.Parse([]byte(tt.yaml)); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", tt.yaml)
			}
		})
	}
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.InputDir = filepath.Join(root, "in")
	cfg.OutputDir = filepath.Join(root, "out", "nested")

	if err := cfg.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{cfg.InputDir, cfg.OutputDir} {
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			t.Errorf("%s not created: %v", dir, err)
		}
	}
}
