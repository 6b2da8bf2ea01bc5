package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintInspection(t *testing.T) {
	useTestConfig(t)
	ds := loadCSV(t, "a.csv", "Client,Amount,Notes\nAcme,oops,x\n")

	var out bytes.Buffer
	printInspection(&out, ds, true)

	for _, want := range []string{
		"File: a.csv (1 rows)",
		"Headers: Client | Amount | Notes",
		`client           <- "Client"`,
		"due_date            (not found)",
		"Unused headers:\n  \"Notes\"",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}
