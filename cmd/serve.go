package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/invoice-dashboard/internal/assistant"
	"github.com/ginjaninja78/invoice-dashboard/internal/converter"
	"github.com/ginjaninja78/invoice-dashboard/internal/server"
	"github.com/ginjaninja78/invoice-dashboard/internal/session"
)

var serveAddr string

// serveCmd starts the HTTP API. Idle sessions are swept on the configured
// cron schedule.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		conv, err := converter.New(cfg, logger)
		if err != nil {
			return err
		}

		opts := kpiOptions()
		var asst *assistant.Assistant
		if client, err := assistant.NewOpenAIClient(cfg.Assistant); err != nil {
			logger.Warn("assistant disabled", zap.Error(err))
		} else {
			asst = assistant.New(client, cfg.Assistant.ContextRows, opts, logger.Named("assistant"))
		}

		store := session.NewStore(cfg.Server.SessionTTL)
		srv := server.New(server.Options{
			Store:          store,
			Converter:      conv,
			Assistant:      asst,
			KPI:            opts,
			MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
			Logger:         logger.Named("http"),
		})

		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		sweeper := cron.New(cron.WithLocation(loc))
		if _, err := sweeper.AddFunc(cfg.Server.CleanupSchedule, func() {
			if ids := store.CleanupExpired(); len(ids) > 0 {
				logger.Info("expired sessions removed", zap.Strings("sessions", ids), zap.Int("remaining", store.Len()))
			}
		}); err != nil {
			return fmt.Errorf("invalid cleanup_schedule %q: %w", cfg.Server.CleanupSchedule, err)
		}
		sweeper.Start()
		defer func() { <-sweeper.Stop().Done() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("starting server",
			zap.String("addr", addr),
			zap.Duration("session_ttl", store.TTL()),
			zap.Bool("assistant", asst != nil),
		)
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}
