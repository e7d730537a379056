package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/expense-reconciler/internal/api"
	"github.com/eshaffer321/expense-reconciler/internal/application/service"
)

func newServeCommand(g *globalFlags) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.openApp(cmd.ErrOrStderr(), "api")
			if err != nil {
				return err
			}
			defer a.close()

			apiCfg := api.Config{
				Port:           a.cfg.API.Port,
				AllowedOrigins: a.cfg.API.AllowedOrigins,
			}
			if cmd.Flags().Changed("port") {
				apiCfg.Port = port
			}
			return runServe(a, apiCfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default from config)")
	return cmd
}

// runServe runs the API server until SIGINT or SIGTERM.
func runServe(a *app, apiCfg api.Config) error {
	logger := a.logger

	jobs := service.NewJobService(a.service, logger)
	jobs.StartBackgroundCleanup(5 * time.Minute)
	defer jobs.StopBackgroundCleanup()

	server := api.NewServer(apiCfg, a.store, a.service, jobs, logger)

	// Handle graceful shutdown
	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	go func() {
		<-quit
		logger.Info("received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		return err
	}

	<-done
	logger.Info("server stopped")
	return nil
}
