package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/intelliweb/config"
	"github.com/mohammad-safakhou/intelliweb/internal/runtime"
	srv "github.com/mohammad-safakhou/intelliweb/internal/server"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var serveAddr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP chat API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(*cfgPath)
			if serveAddr == "" {
				serveAddr = cfg.Server.Address
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tel, _, _, err := runtime.SetupTelemetry(ctx, cfg.Telemetry, runtime.TelemetryOptions{
				ServiceName: "intelliweb",
				MetricsPort: cfg.Telemetry.MetricsPort,
			})
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tel.Shutdown(shutdownCtx); err != nil {
					log.Printf("telemetry shutdown: %v", err)
				}
			}()

			orch, err := buildAssistant(ctx, cfg)
			if err != nil {
				return err
			}
			return srv.Run(ctx, srv.New(orch, tel), serveAddr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (default is server.address)")
	return serve
}
