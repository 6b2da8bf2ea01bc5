package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/invoice-dashboard/internal/pdfgen"
	"github.com/ginjaninja78/invoice-dashboard/pkg/utils"
)

var invoiceFlags struct {
	output   string
	fontPath string
}

// invoiceCmd renders a PDF tax invoice from a YAML description:
//
//	number: INV-0001
//	client: Acme Trading
//	date: 2025-01-15T10:00:00Z
//	items:
//	  - description: Consulting
//	    quantity: 2
//	    unit_price: 100
var invoiceCmd = &cobra.Command{
	Use:   "invoice <invoice.yaml>",
	Short: "Render a PDF tax invoice with a QR payment code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read invoice: %w", err)
		}
		var inv pdfgen.Invoice
		if err := yaml.Unmarshal(data, &inv); err != nil {
			return fmt.Errorf("failed to parse invoice: %w", err)
		}

		rate, err := pdfgen.ParseVATRate(cfg.Business.VATRate)
		if err != nil {
			return err
		}

		out := invoiceFlags.output
		if out == "" {
			if err := cfg.EnsureDirs(); err != nil {
				return err
			}
			name := inv.Number
			if name == "" {
				name = utils.SourceName(args[0])
			}
			out = filepath.Join(cfg.OutputDir, name+".pdf")
		}

		res, err := pdfgen.RenderFile(out,
			inv,
			pdfgen.Seller{Name: cfg.Business.SellerName, VATNumber: cfg.Business.VATNumber},
			pdfgen.Options{VATRate: rate, FontPath: invoiceFlags.fontPath},
		)
		if err != nil {
			return err
		}

		logger.Info("invoice written",
			zap.String("path", out),
			zap.String("total", res.Totals.Total.StringFixed(2)),
			zap.String("vat", res.Totals.VAT.StringFixed(2)),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "%s\nTotal: %s  VAT: %s\nQR: %s\n",
			out, res.Totals.Total.StringFixed(2), res.Totals.VAT.StringFixed(2), res.Payload)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(invoiceCmd)
	invoiceCmd.Flags().StringVarP(&invoiceFlags.output, "output", "o", "", "PDF path (default <output_dir>/<number>.pdf)")
	invoiceCmd.Flags().StringVar(&invoiceFlags.fontPath, "font", "", "UTF-8 TTF font for Arabic text")
}
