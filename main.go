// =============================================================================
// Invoice Dashboard - Main Entry Point
// =============================================================================
//
// USAGE:
//   invoicedash inspect <file>       - Show the column mapping and data quality
//   invoicedash report [files...]    - KPIs and exports over filtered data
//   invoicedash serve                - Start the HTTP API
//   invoicedash ask <file> <q>       - Ask the data assistant one question
//   invoicedash qr                   - Build a QR payment payload
//   invoicedash invoice <file.yaml>  - Render a PDF tax invoice
//   invoicedash version              - Display the application version
//
// ARCHITECTURE:
//   - cmd/      : CLI command definitions (Cobra)
//   - internal/ : core business logic (not for external import)
//   - pkg/      : shared utilities
//
// =============================================================================

package main

import (
	// Embedded zone data keeps the timezone setting working on hosts without
	// a system zoneinfo database.
	_ "time/tzdata"

	"github.com/ginjaninja78/invoice-dashboard/cmd"
)

func main() {
	cmd.Execute()
}
