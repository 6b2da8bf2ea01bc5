// =============================================================================
// Invoice Dashboard - Ingestion Pipeline
// =============================================================================
//
// This module turns an uploaded file into a normalized dataset. It
// orchestrates the ingestion pipeline for a single file, from parsing to the
// data-quality report.
//
// INGESTION PIPELINE:
//   1. Read the file into a raw table (CSV/TSV, XLSX or XLS)
//   2. Resolve headers onto the canonical fields
//   3. Apply the configured transformation rules to mapped columns
//   4. Normalize every mapped cell and derive the outstanding amount
//   5. Record cell defects in the quality report
//
// CONCURRENCY:
//   A Converter holds only immutable, precompiled state. One instance can load
//   many files from different goroutines.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ginjaninja78/invoice-dashboard/internal/config"
	"github.com/ginjaninja78/invoice-dashboard/internal/csvparser"
	"github.com/ginjaninja78/invoice-dashboard/internal/dataset"
	"github.com/ginjaninja78/invoice-dashboard/internal/normalize"
	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
	"github.com/ginjaninja78/invoice-dashboard/internal/types"
	"github.com/ginjaninja78/invoice-dashboard/internal/xlsxparser"
	"github.com/ginjaninja78/invoice-dashboard/pkg/utils"
)

// ErrUnsupportedFileType is returned for extensions the pipeline cannot read.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of loading a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// Dataset is the loaded dataset. It is nil if loading failed.
	Dataset *dataset.Dataset

	// Success indicates whether the processing was successful.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// RowsProcessed is the number of data rows read.
	RowsProcessed int

	// MappedFields is the number of canonical fields found in the headers.
	MappedFields int

	// MalformedCells and MissingCells count normalization defects.
	MalformedCells int
	MissingCells   int

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter loads files into datasets.
type Converter struct {
	cfg         *config.Config
	normalizer  *normalize.Normalizer
	transformer *Transformer
	bindings    map[schema.Field]string
	logger      *zap.Logger
}

// New creates a Converter from cfg. A nil logger discards output.
func New(cfg *config.Config, logger *zap.Logger) (*Converter, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t, err := NewTransformer(cfg.TransformationRules)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	return &Converter{
		cfg: cfg,
		normalizer: normalize.New(
			normalize.WithCurrencyTokens(cfg.CurrencyTokens...),
			normalize.WithDateLayouts(cfg.DateLayouts...),
			normalize.WithLocation(loc),
		),
		transformer: t,
		bindings:    cfg.Bindings(),
		logger:      logger,
	}, nil
}

// =============================================================================
// MAIN PROCESSING FUNCTIONS
// =============================================================================

// Run loads the file at path and reports the outcome. It never panics on bad
// input; failures are carried in Result.Error.
func (c *Converter) Run(ctx context.Context, path string) Result {
	start := time.Now()
	result := Result{FilePath: path}

	c.logger.Info("processing file", zap.String("file", path))

	ds, err := c.Load(ctx, path)
	if err != nil {
		result.Error = err
		c.logger.Error("file failed", zap.String("file", path), zap.Error(err))
		return result
	}

	result.Dataset = ds
	result.Success = true
	result.Stats = ProcessingStats{
		RowsProcessed:  ds.Len(),
		MappedFields:   len(ds.Mapping.Mapped()),
		MalformedCells: ds.Quality.Malformed(),
		MissingCells:   ds.Quality.Missing(),
		ProcessingTime: time.Since(start),
	}

	c.logger.Info("file loaded",
		zap.String("file", path),
		zap.Int("rows", result.Stats.RowsProcessed),
		zap.Int("mapped_fields", result.Stats.MappedFields),
		zap.Int("malformed", result.Stats.MalformedCells),
		zap.Duration("elapsed", result.Stats.ProcessingTime),
	)
	return result
}

// Load reads and builds the dataset for the file at path.
func (c *Converter) Load(ctx context.Context, path string) (*dataset.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return c.LoadReader(ctx, path, file)
}

// LoadReader reads and builds the dataset for an uploaded stream. name
// selects the parser by extension and becomes the dataset's source.
func (c *Converter) LoadReader(ctx context.Context, name string, r io.Reader) (*dataset.Dataset, error) {
	table, err := c.ReadTable(name, r)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Build(table), nil
}

// ReadTable parses r into a raw table according to the extension of name.
func (c *Converter) ReadTable(name string, r io.Reader) (*types.RawTable, error) {
	var (
		table *types.RawTable
		err   error
	)
	opts := xlsxparser.Options{Sheet: c.cfg.Workbook.Sheet, HeaderRows: c.cfg.CSV.HeaderRows}

	ext := strings.ToLower(filepath.Ext(name))
	if !utils.IsSupported(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}
	switch ext {
	case ".xlsx", ".xlsm":
		table, err = xlsxparser.ParseXLSXReader(name, r, opts)
	case ".xls":
		table, err = xlsxparser.ParseXLSReader(name, r, opts)
	default:
		table, err = csvparser.ParseReader(name, r, c.cfg.CSV)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(name), err)
	}

	c.logger.Debug("parsed table",
		zap.String("file", name),
		zap.Int("rows", table.Len()),
		zap.Strings("headers", table.Headers),
	)
	return table, nil
}

// Build resolves, transforms and normalizes table.
func (c *Converter) Build(table *types.RawTable) *dataset.Dataset {
	mapping := schema.ResolveWith(table.Headers, c.bindings)

	if missing := mapping.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, f := range missing {
			names[i] = string(f)
		}
		c.logger.Debug("unmapped fields", zap.String("file", table.SourceFile), zap.Strings("fields", names))
	}

	table = c.transform(table, mapping)
	return dataset.Build(table, mapping, c.normalizer)
}

// transform returns a copy of table with the transformation rules applied to
// the mapped columns. table itself is left untouched.
func (c *Converter) transform(table *types.RawTable, mapping schema.ColumnMapping) *types.RawTable {
	var fields []schema.Field
	for _, f := range mapping.Mapped() {
		if c.transformer.Has(f) {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return table
	}

	out := table.Clone()
	for _, f := range fields {
		col, _ := mapping.Column(f)
		for i := range out.Rows {
			out.Rows[i].Values[col] = c.transformer.Transform(f, out.Rows[i].Values[col])
		}
	}
	return out
}
