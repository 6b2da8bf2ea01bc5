package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/invoice-dashboard/internal/assistant"
	"github.com/ginjaninja78/invoice-dashboard/internal/converter"
)

var askHTML bool

// askCmd asks the data assistant one question about a whole file.
var askCmd = &cobra.Command{
	Use:   "ask <file> <question...>",
	Short: "Ask the data assistant a question about a file",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := assistant.NewOpenAIClient(cfg.Assistant)
		if err != nil {
			return err
		}

		conv, err := converter.New(cfg, logger)
		if err != nil {
			return err
		}
		ds, err := conv.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Assistant.Timeout)
		defer cancel()

		a := assistant.New(client, cfg.Assistant.ContextRows, kpiOptions(), logger.Named("assistant"))
		answer, _, err := a.Ask(ctx, ds.All(), nil, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}

		if askHTML {
			fmt.Fprint(cmd.OutOrStdout(), answer.HTML)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), answer.Markdown)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askHTML, "html", false, "Print the answer rendered as HTML")
}
