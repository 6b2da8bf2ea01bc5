// =============================================================================
// Invoice Dashboard - Report Command
// =============================================================================
//
// This file defines the 'report' command, which runs the full pipeline over
// one or more invoice exports and prints or writes the results.
//
// COMMAND USAGE:
//   invoicedash report [files...] [flags]
//
// With no files, every supported file in input_dir is processed.
//
// FLAGS:
//   --client, --status, --method   : Keep only these values (repeatable)
//   --issue-from, --issue-to       : Issue date range (YYYY-MM-DD)
//   --due-from, --due-to           : Due date range (YYYY-MM-DD)
//   --delay-min, --delay-max       : Delay-days range
//   --json                         : Print KPIs and charts as JSON
//   --xlsx, --xml                  : Write exports to output_dir
//   --xsd                          : Write the schema of the XML export
//
// A filter flag naming a column a file does not have is skipped for that
// file and listed in its report.
//
// PROCESSING PIPELINE:
//   1. Discover input files
//   2. For each file (concurrently, up to max_concurrency):
//      a. Parse, resolve columns and normalize
//      b. Apply the filter flags
//      c. Compute KPIs and charts
//      d. Write the requested exports and the data-quality log
//   3. Print and write the processing summary
//
// =============================================================================

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/invoice-dashboard/internal/converter"
	"github.com/ginjaninja78/invoice-dashboard/internal/dataset"
	"github.com/ginjaninja78/invoice-dashboard/internal/filter"
	"github.com/ginjaninja78/invoice-dashboard/internal/kpi"
	"github.com/ginjaninja78/invoice-dashboard/internal/reportwriter"
	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
	"github.com/ginjaninja78/invoice-dashboard/internal/validation"
	"github.com/ginjaninja78/invoice-dashboard/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// reportFlags holds the filter and output flags of the report command.
type reportFlags struct {
	clients  []string
	statuses []string
	methods  []string

	issueFrom, issueTo string
	dueFrom, dueTo     string
	delayMin, delayMax string

	json bool
	xlsx bool
	xml  bool
	xsd  bool
}

var reportOpts reportFlags

// =============================================================================
// REPORT COMMAND DEFINITION
// =============================================================================

var reportCmd = &cobra.Command{
	Use:   "report [files...]",
	Short: "Compute KPIs over invoice exports and write reports",
	Long: `The report command loads each file, applies the filter flags and computes
the dashboard KPIs and charts over the remaining invoices.

Files are processed concurrently. An error in one file does not stop the
others unless continue_on_error is false.

For every file:
  - KPIs are printed (or emitted as JSON with --json)
  - Exports are written to the output directory with --xlsx and --xml
  - A data-quality log is written when cells are malformed or missing

A processing summary is written to the output directory at the end.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd.Context(), cmd.OutOrStdout(), args, reportOpts)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	f := reportCmd.Flags()
	f.StringSliceVar(&reportOpts.clients, "client", nil, "Keep only these clients (repeatable)")
	f.StringSliceVar(&reportOpts.statuses, "status", nil, "Keep only these payment statuses (repeatable)")
	f.StringSliceVar(&reportOpts.methods, "method", nil, "Keep only these payment methods (repeatable)")
	f.StringVar(&reportOpts.issueFrom, "issue-from", "", "Earliest issue date (YYYY-MM-DD)")
	f.StringVar(&reportOpts.issueTo, "issue-to", "", "Latest issue date (YYYY-MM-DD)")
	f.StringVar(&reportOpts.dueFrom, "due-from", "", "Earliest due date (YYYY-MM-DD)")
	f.StringVar(&reportOpts.dueTo, "due-to", "", "Latest due date (YYYY-MM-DD)")
	f.StringVar(&reportOpts.delayMin, "delay-min", "", "Minimum delay in days")
	f.StringVar(&reportOpts.delayMax, "delay-max", "", "Maximum delay in days")
	f.BoolVar(&reportOpts.json, "json", false, "Print KPIs and charts as JSON")
	f.BoolVar(&reportOpts.xlsx, "xlsx", false, "Write an XLSX export per file")
	f.BoolVar(&reportOpts.xml, "xml", false, "Write an XML export per file")
	f.BoolVar(&reportOpts.xsd, "xsd", false, "Write the XSD of the XML export per file")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// fileReport is the outcome of one file after filtering.
type fileReport struct {
	File     string      `json:"file"`
	Rows     int         `json:"rows"`
	ViewRows int         `json:"view_rows"`
	Warning  string      `json:"warning,omitempty"`
	Skipped  []string    `json:"skipped_filters,omitempty"`
	KPIs     kpi.KPISet  `json:"kpis"`
	Charts   []kpi.Chart `json:"charts"`
	Outputs  []string    `json:"outputs,omitempty"`

	elapsed   time.Duration
	malformed int
	missing   int
}

func runReport(ctx context.Context, out io.Writer, files []string, flags reportFlags) error {
	startTime := time.Now()

	// =========================================================================
	// STEP 1: DISCOVER INPUT FILES
	// =========================================================================

	fm := utils.NewFileManager(cfg.InputDir, cfg.OutputDir)
	if err := fm.EnsureDirectories(); err != nil {
		return err
	}

	if len(files) == 0 {
		var err error
		if files, err = fm.DiscoverInputFiles(); err != nil {
			return err
		}
	}
	if len(files) == 0 {
		logger.Info("no input files found", zap.String("input_dir", cfg.InputDir))
		return nil
	}

	conv, err := converter.New(cfg, logger)
	if err != nil {
		return err
	}
	apply, err := flags.filters(logger)
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 2: PROCESS FILES CONCURRENTLY
	// =========================================================================

	type outcome struct {
		result converter.Result
		report *fileReport
		err    error
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, cfg.MaxConcurrency)
	results := make(chan outcome, len(files))

	for _, file := range files {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := conv.Run(ctx, path)
			if !res.Success {
				results <- outcome{result: res, err: res.Error}
				return
			}
			rep, err := buildReport(res, apply, flags, fm)
			results <- outcome{result: res, report: rep, err: err}
		}(file)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// =========================================================================
	// STEP 3: COLLECT RESULTS AND WRITE SUMMARY
	// =========================================================================

	summary := utils.ProcessingSummary{StartTime: startTime, TotalFiles: len(files)}
	reports := []*fileReport{}

	for o := range results {
		name := filepath.Base(o.result.FilePath)
		if o.err != nil {
			summary.FailedFiles++
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
				InputFile:    o.result.FilePath,
				ErrorMessage: o.err.Error(),
			})
			if !flags.json {
				fmt.Fprintf(out, "  ✗ %s: %v\n", name, o.err)
			}
			continue
		}

		r := o.report
		summary.SuccessfulFiles++
		summary.TotalRows += r.Rows
		summary.MalformedCells += r.malformed
		summary.MissingCells += r.missing
		summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
			InputFile:   o.result.FilePath,
			OutputFiles: r.Outputs,
			Rows:        r.Rows,
			ViewRows:    r.ViewRows,
			Malformed:   r.malformed,
			ProcessTime: r.elapsed,
		})
		reports = append(reports, r)
		if !flags.json {
			printReport(out, r)
		}
	}
	summary.EndTime = time.Now()

	if flags.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, "\n=== Processing Complete ===")
		fmt.Fprintf(out, "Total files:     %d\n", summary.TotalFiles)
		fmt.Fprintf(out, "Successful:      %d\n", summary.SuccessfulFiles)
		fmt.Fprintf(out, "Errors:          %d\n", summary.FailedFiles)
		fmt.Fprintf(out, "Time elapsed:    %s\n", summary.EndTime.Sub(startTime))
	}

	summaryPath, err := utils.WriteSummaryLog(summary, cfg.OutputDir)
	if err != nil {
		logger.Warn("summary log not written", zap.Error(err))
	} else {
		logger.Info("summary written", zap.String("path", summaryPath))
	}

	if summary.FailedFiles > 0 && !cfg.ContinuesOnError() {
		return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}

// buildReport filters one loaded dataset, computes its KPIs and writes the
// requested exports.
func buildReport(res converter.Result, apply filterFunc, flags reportFlags, fm *utils.FileManager) (*fileReport, error) {
	start := time.Now()
	ds := res.Dataset

	m := filter.NewManager()
	m.Load(ds)
	skipped, err := apply(m)
	if err != nil {
		return nil, err
	}
	view, err := m.View()
	if err != nil {
		return nil, err
	}

	rep := &fileReport{
		File:      res.FilePath,
		Skipped:   skipped,
		Rows:      ds.Len(),
		ViewRows:  view.Len(),
		malformed: ds.Quality.Malformed(),
		missing:   ds.Quality.Missing(),
	}

	opts := kpiOptions()
	rep.KPIs, err = kpi.Summarize(view, opts)
	switch {
	case errors.Is(err, kpi.ErrEmptyView):
		rep.Warning = err.Error()
	case err != nil:
		return nil, err
	default:
		if rep.Charts, err = kpi.Charts(view, opts); err != nil {
			return nil, err
		}
	}

	params := map[string]string{
		"source": utils.SourceName(res.FilePath),
		"ext":    utils.ExtName(res.FilePath),
	}
	outName := func(ext string) string {
		return fm.OutputPath(utils.GenerateOutputFileName(cfg.Report.OutputNameFormat, params, ext))
	}

	if flags.xlsx {
		path := outName(".xlsx")
		wb := reportwriter.Workbook{View: view, KPIs: rep.KPIs, Charts: rep.Charts, Quality: ds.Quality, Warning: rep.Warning}
		if err := reportwriter.SaveXLSX(path, wb); err != nil {
			return nil, err
		}
		rep.Outputs = append(rep.Outputs, path)
	}
	if flags.xml {
		path := outName(".xml")
		if err := writeXML(path, view, filepath.Base(res.FilePath)); err != nil {
			return nil, err
		}
		rep.Outputs = append(rep.Outputs, path)
	}
	if flags.xsd {
		path := outName(".xsd")
		if err := writeXSD(path, view); err != nil {
			return nil, err
		}
		rep.Outputs = append(rep.Outputs, path)
	}

	if ds.Quality.HasDefects() {
		logPath := fm.OutputPath(utils.GenerateOutputFileName("{source}_{ext}_quality", params, ".log"))
		if err := validation.WriteErrorLog(ds.Quality, res.FilePath, logPath); err != nil {
			logger.Warn("quality log not written", zap.String("file", res.FilePath), zap.Error(err))
		} else {
			rep.Outputs = append(rep.Outputs, logPath)
		}
	}

	rep.elapsed = res.Stats.ProcessingTime + time.Since(start)
	return rep, nil
}

func printReport(out io.Writer, r *fileReport) {
	fmt.Fprintf(out, "  ✓ %s (%d of %d rows)\n", filepath.Base(r.File), r.ViewRows, r.Rows)
	if r.Warning != "" {
		fmt.Fprintf(out, "      ! %s\n", r.Warning)
	}
	for _, f := range r.Skipped {
		fmt.Fprintf(out, "      ! filter on %s skipped: column not found\n", f)
	}
	for _, k := range r.KPIs {
		fmt.Fprintf(out, "      %-22s %s\n", k.Label, k.Formatted)
	}
	for _, o := range r.Outputs {
		fmt.Fprintf(out, "      -> %s\n", o)
	}
}

// =============================================================================
// FILTER FLAGS
// =============================================================================

// filterFunc applies the filter flags to a loaded manager and returns the
// fields it had to skip because the dataset does not map them.
type filterFunc func(*filter.Manager) ([]string, error)

// filters validates the flags once and returns a function applying them to a
// loaded manager. Range bounds left empty keep the dataset's own extent. A
// dimension the dataset does not map is skipped, not rejected, so one batch
// can mix files with different columns.
func (f reportFlags) filters(log *zap.Logger) (filterFunc, error) {
	type dateBounds struct {
		field    schema.Field
		from, to *time.Time
	}

	var dates []dateBounds
	for _, d := range []struct {
		field    schema.Field
		from, to string
	}{
		{schema.IssueDate, f.issueFrom, f.issueTo},
		{schema.DueDate, f.dueFrom, f.dueTo},
	} {
		from, err := parseFlagDate(d.from)
		if err != nil {
			return nil, err
		}
		to, err := parseFlagDate(d.to)
		if err != nil {
			return nil, err
		}
		if from != nil || to != nil {
			dates = append(dates, dateBounds{d.field, from, to})
		}
	}

	delayMin, err := parseFlagDecimal("delay-min", f.delayMin)
	if err != nil {
		return nil, err
	}
	delayMax, err := parseFlagDecimal("delay-max", f.delayMax)
	if err != nil {
		return nil, err
	}

	categories := map[schema.Field][]string{
		schema.Client:        f.clients,
		schema.PaymentStatus: f.statuses,
		schema.PaymentMethod: f.methods,
	}

	return func(m *filter.Manager) ([]string, error) {
		defaults := m.Defaults()

		var skipped []string
		skip := func(field schema.Field) {
			skipped = append(skipped, string(field))
			log.Debug("filter skipped, column not mapped",
				zap.String("field", string(field)),
				zap.String("file", m.Dataset().Source),
			)
		}

		for _, field := range filter.CategoricalFields {
			values := categories[field]
			if len(values) == 0 {
				continue
			}
			if _, ok := defaults.Categories[field]; !ok {
				skip(field)
				continue
			}
			if err := m.SetFilter(field, filter.Select(values...)); err != nil {
				return nil, err
			}
		}

		for _, d := range dates {
			r, ok := defaults.Dates[d.field]
			if !ok {
				skip(d.field)
				continue
			}
			r.IncludeMissing = false
			if d.from != nil {
				r.From = *d.from
			}
			if d.to != nil {
				r.To = *d.to
			}
			if err := m.SetFilter(d.field, r); err != nil {
				return nil, err
			}
		}

		switch {
		case delayMin == nil && delayMax == nil:
		case defaults.Delay == nil:
			skip(schema.DelayDays)
		default:
			r := *defaults.Delay
			r.IncludeMissing = false
			if delayMin != nil {
				r.Min = *delayMin
			}
			if delayMax != nil {
				r.Max = *delayMax
			}
			if err := m.SetFilter(schema.DelayDays, r); err != nil {
				return nil, err
			}
		}
		return skipped, nil
	}, nil
}

func parseFlagDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return &t, nil
}

func parseFlagDecimal(name, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q", name, s)
	}
	return &d, nil
}

// writeXML writes the XML export of view to path.
func writeXML(path string, view dataset.View, source string) error {
	data, err := reportwriter.GenerateXML(view, source)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write XML export: %w", err)
	}
	return nil
}

// writeXSD writes the schema of the XML export of view to path.
func writeXSD(path string, view dataset.View) error {
	data, err := reportwriter.GenerateXSD(view.Mapping, reportwriter.DefaultGenerateOptions())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write XSD: %w", err)
	}
	return nil
}
