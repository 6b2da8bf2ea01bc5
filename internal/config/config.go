// =============================================================================
// Invoice Dashboard - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing the application
// configuration. A single YAML file drives the CLI, the HTTP server and the
// ingestion pipeline.
//
// CONFIGURATION FILE:
//   config.yaml: Global application settings. A missing file is not an error;
//   the built-in defaults are used instead.
//
// ARCHITECTURE:
//   Load reads the file, applies defaults for every unset option and then
//   validates the result. Directories are created on demand.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the global application configuration.
type Config struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned by the report command when no files are given.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir receives exports and error logs.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile is an optional path that receives a copy of the log stream.
	LogFile string `yaml:"log_file"`

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// =========================================================================
	// NORMALIZATION SETTINGS
	// =========================================================================

	// CurrencyTokens are stripped from amount cells before parsing.
	// Default: ["SAR", "ر.س"]
	CurrencyTokens []string `yaml:"currency_tokens"`

	// DateLayouts are tried in order when parsing date cells. Both Go layouts
	// ("2006-01-02") and pattern tokens ("DD/MM/YYYY") are accepted.
	//
	// CUSTOMIZATION: Put "DD/MM/YYYY" first if your exports are day-first.
	DateLayouts []string `yaml:"date_layouts"`

	// PaidStatusLabels are payment_status values counted as paid.
	// Default: ["مدفوع", "paid"]
	PaidStatusLabels []string `yaml:"paid_status_labels"`

	// Timezone is the IANA zone that dates without an offset are read in. It
	// also drives the cleanup schedule.
	// Default: UTC
	//
	// Example: "Asia/Riyadh"
	Timezone string `yaml:"timezone,omitempty"`

	// ColumnBindings pins canonical fields to specific headers, bypassing
	// alias resolution for those fields.
	//
	// Example:
	//   column_bindings:
	//     client: "Customer (billing)"
	ColumnBindings map[string]string `yaml:"column_bindings,omitempty"`

	// =========================================================================
	// PARSING SETTINGS
	// =========================================================================

	// CSV contains settings for parsing delimited files.
	CSV CSVSettings `yaml:"csv"`

	// Workbook contains settings for .xlsx and .xlsm files.
	Workbook WorkbookSettings `yaml:"workbook"`

	// TransformationRules are applied to raw cell text before normalization.
	TransformationRules []TransformationRule `yaml:"transformation_rules"`

	// =========================================================================
	// SERVICE SETTINGS
	// =========================================================================

	Server    ServerConfig    `yaml:"server"`
	Assistant AssistantConfig `yaml:"assistant"`
	Business  BusinessConfig  `yaml:"business"`
	Report    ReportConfig    `yaml:"report"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency is the maximum number of files processed concurrently by
	// the report command. Set to 1 for sequential processing.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// ContinueOnError keeps a batch going when one file fails.
	// Default: true
	ContinueOnError *bool `yaml:"continue_on_error"`
}

// =============================================================================
// CSV SETTINGS STRUCTURE
// =============================================================================

// CSVSettings contains settings for parsing CSV files.
type CSVSettings struct {
	// Delimiter separates fields. "auto" sniffs the first line.
	// Common values: "auto", ",", ";", "|", "tab"
	// Default: "auto"
	Delimiter string `yaml:"delimiter"`

	// Encoding is the character encoding of the file.
	// Supported: "UTF-8", "UTF-16", "ISO-8859-1", "Windows-1252", "Windows-1256"
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`

	// HeaderRows is the number of header rows. Multi-row headers are merged
	// column by column.
	// Default: 1
	HeaderRows int `yaml:"header_rows"`
}

// WorkbookSettings selects what to read from a spreadsheet.
type WorkbookSettings struct {
	// Sheet is the worksheet to read. Empty means the first one. Legacy .xls
	// files always use their first sheet.
	Sheet string `yaml:"sheet,omitempty"`
}

// =============================================================================
// TRANSFORMATION RULE STRUCTURE
// =============================================================================

// TransformationRule defines transformations for one canonical field.
type TransformationRule struct {
	// Field is a canonical field name, e.g. "client" or "payment_status".
	Field string `yaml:"field"`

	// Actions are applied in order.
	Actions []TransformationAction `yaml:"actions"`
}

// TransformationAction defines a single transformation action.
type TransformationAction struct {
	// Type is the type of transformation to apply.
	// Supported types:
	//   - "trim"                 : Remove leading and trailing whitespace
	//   - "uppercase"            : Convert to uppercase
	//   - "lowercase"            : Convert to lowercase
	//   - "normalize_whitespace" : Collapse runs of whitespace to one space
	//   - "prepend_string"       : Add Value to the beginning
	//   - "append_string"        : Add Value to the end
	//   - "replace"              : Replace Find with Value
	//   - "regex_replace"        : Replace the pattern Find with Value
	//   - "lookup"               : Replace using LookupTable
	//   - "if_empty_use_default" : Use Value when the cell is empty
	//   - "pad_zeros_to_length"  : Pad with leading zeros to Value characters
	Type string `yaml:"type"`

	// Value is the parameter for the transformation.
	Value string `yaml:"value"`

	// Find is used by "replace" and "regex_replace".
	Find string `yaml:"find,omitempty"`

	// LookupTable is used by "lookup". Keys are compared case-insensitively.
	//
	// Example:
	//   lookup_table:
	//     "Paid": "مدفوع"
	//     "Settled": "مدفوع"
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// =============================================================================
// SERVICE STRUCTURES
// =============================================================================

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address. Default: ":8080"
	Addr string `yaml:"addr"`

	// MaxUploadMB caps multipart uploads. Default: 25
	MaxUploadMB int64 `yaml:"max_upload_mb"`

	// SessionTTL evicts sessions idle for longer. Default: 2h
	SessionTTL time.Duration `yaml:"session_ttl"`

	// CleanupSchedule is a cron spec for the eviction sweep.
	// Default: "@every 10m"
	CleanupSchedule string `yaml:"cleanup_schedule"`
}

// AssistantConfig configures the data assistant.
type AssistantConfig struct {
	// Model is the OpenAI model name. Default: "gpt-4o-mini"
	Model string `yaml:"model"`

	// Timeout bounds one request. Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries on transient failures. Default: 2
	MaxRetries int `yaml:"max_retries"`

	// APIKeyEnv names the environment variable holding the key.
	// Default: "OPENAI_API_KEY"
	APIKeyEnv string `yaml:"api_key_env"`

	// ContextRows is the number of sample rows sent as context. Default: 50
	ContextRows int `yaml:"context_rows"`
}

// APIKey returns the key from the configured environment variable.
func (a AssistantConfig) APIKey() string {
	return strings.TrimSpace(os.Getenv(a.APIKeyEnv))
}

// BusinessConfig identifies the seller on QR codes and PDF invoices.
type BusinessConfig struct {
	SellerName string `yaml:"seller_name"`
	VATNumber  string `yaml:"vat_number"`

	// VATRate is a fraction. Default: "0.15"
	VATRate string `yaml:"vat_rate"`
}

// ReportConfig configures exports.
type ReportConfig struct {
	// OutputNameFormat names export files.
	// Placeholders:
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {source}    - Input file name without extension
	//   {ext}       - Input file extension, e.g. "csv"
	// Default: "{source}_{ext}_{timestamp}"
	OutputNameFormat string `yaml:"output_name_format"`

	// TopN is the size of ranked charts. Default: 5
	TopN int `yaml:"top_n"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	applyDefaults(c)
	return c
}

// Load loads the configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the configuration file.
//
// RETURNS:
//   - The configuration with defaults applied. A missing file yields Default().
//   - An error if the file cannot be read, parsed or validated.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(config *Config) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if len(config.CurrencyTokens) == 0 {
		config.CurrencyTokens = []string{"SAR", "ر.س"}
	}
	if len(config.PaidStatusLabels) == 0 {
		config.PaidStatusLabels = []string{"مدفوع", "paid"}
	}

	if config.CSV.Delimiter == "" {
		config.CSV.Delimiter = "auto"
	}
	if config.CSV.Encoding == "" {
		config.CSV.Encoding = "UTF-8"
	}
	if config.CSV.HeaderRows == 0 {
		config.CSV.HeaderRows = 1
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.MaxUploadMB == 0 {
		config.Server.MaxUploadMB = 25
	}
	if config.Server.SessionTTL == 0 {
		config.Server.SessionTTL = 2 * time.Hour
	}
	if config.Server.CleanupSchedule == "" {
		config.Server.CleanupSchedule = "@every 10m"
	}

	if config.Assistant.Model == "" {
		config.Assistant.Model = "gpt-4o-mini"
	}
	if config.Assistant.Timeout == 0 {
		config.Assistant.Timeout = 60 * time.Second
	}
	if config.Assistant.MaxRetries == 0 {
		config.Assistant.MaxRetries = 2
	}
	if config.Assistant.APIKeyEnv == "" {
		config.Assistant.APIKeyEnv = "OPENAI_API_KEY"
	}
	if config.Assistant.ContextRows == 0 {
		config.Assistant.ContextRows = 50
	}

	if config.Business.VATRate == "" {
		config.Business.VATRate = "0.15"
	}

	if config.Report.OutputNameFormat == "" {
		config.Report.OutputNameFormat = "{source}_{ext}_{timestamp}"
	}
	if config.Report.TopN == 0 {
		config.Report.TopN = 5
	}

	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}
	if config.ContinueOnError == nil {
		t := true
		config.ContinueOnError = &t
	}
}

// Validate checks option values that defaults cannot repair.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	if c.CSV.HeaderRows < 1 {
		return fmt.Errorf("csv.header_rows must be at least 1")
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	for f := range c.ColumnBindings {
		if _, ok := schema.Parse(f); !ok {
			return fmt.Errorf("column_bindings: unknown field %q", f)
		}
	}
	for _, r := range c.TransformationRules {
		if _, ok := schema.Parse(r.Field); !ok {
			return fmt.Errorf("transformation_rules: unknown field %q", r.Field)
		}
	}
	return nil
}

// Location returns the configured timezone, or UTC when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ContinuesOnError reports the effective continue_on_error setting.
func (c *Config) ContinuesOnError() bool {
	return c.ContinueOnError == nil || *c.ContinueOnError
}

// Bindings returns ColumnBindings keyed by canonical field.
func (c *Config) Bindings() map[schema.Field]string {
	if len(c.ColumnBindings) == 0 {
		return nil
	}
	out := make(map[schema.Field]string, len(c.ColumnBindings))
	for k, v := range c.ColumnBindings {
		if f, ok := schema.Parse(k); ok {
			out[f] = v
		}
	}
	return out
}

// EnsureDirs creates the input and output directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.InputDir, c.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
