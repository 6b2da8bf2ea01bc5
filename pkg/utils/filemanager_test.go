package utils_test

import (
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/ginjaninja78/invoice-dashboard/pkg/utils"
)

func TestDiscoverInputFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.xlsx", "a.csv", "notes.md", ".hidden.csv", "c.XLS", "d.tsv", "e.xlsm"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755); err != nil {
		t.Fatal(err)
	}

	fm := utils.NewFileManager(dir, t.TempDir())
	got, err := fm.DiscoverInputFiles()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, p := range got {
		names = append(names, filepath.Base(p))
	}
	if want := []string{"a.csv", "b.xlsx", "c.XLS", "d.tsv", "e.xlsm"}; !reflect.DeepEqual(names, want) {
		t.Errorf("DiscoverInputFiles = %v, want %v", names, want)
	}
}

func TestGenerateOutputFileName(t *testing.T) {
	got := utils.GenerateOutputFileName("{source}_{timestamp}", map[string]string{"source": "q1"}, ".xlsx")
	if !regexp.MustCompile(`^q1_\d{8}_\d{6}\.xlsx$`).MatchString(got) {
		t.Errorf("name = %q", got)
	}

	got = utils.GenerateOutputFileName("{uuid}.xml", nil, ".xml")
	if strings.Count(got, ".xml") != 1 || len(got) != 36+4 {
		t.Errorf("uuid name = %q", got)
	}
}

func TestSourceName(t *testing.T) {
	if got := utils.SourceName("/in/q1 invoices.xlsx"); got != "q1 invoices" {
		t.Errorf("SourceName = %q", got)
	}
}

func TestExtName(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"/in/a.csv", "csv"},
		{"A.XLSX", "xlsx"},
		{"noext", ""},
	}
	for _, tt := range tests {
		if got := utils.ExtName(tt.path); got != tt.want {
			t.Errorf("ExtName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}

	params := map[string]string{"source": "a", "ext": utils.ExtName("a.csv")}
	if got := utils.GenerateOutputFileName("{source}_{ext}_quality", params, ".log"); got != "a_csv_quality.log" {
		t.Errorf("name = %q", got)
	}
}

func TestWriteSummaryLog(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	path, err := utils.WriteSummaryLog(utils.ProcessingSummary{
		StartTime:       start,
		EndTime:         start.Add(2 * time.Second),
		TotalFiles:      2,
		SuccessfulFiles: 1,
		FailedFiles:     1,
		ProcessedFiles:  []utils.ProcessedFileInfo{{InputFile: "a.csv", OutputFiles: []string{"a.xlsx"}, Rows: 3, ViewRows: 2}},
		FailedFilesList: []utils.FailedFileInfo{{InputFile: "b.pdf", ErrorMessage: "unsupported file type"}},
	}, dir)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Duration:       2s", "Output:       a.xlsx", "Rows:         3 (2 after filters)", "Error: unsupported file type"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("summary missing %q:\n%s", want, data)
		}
	}
}
