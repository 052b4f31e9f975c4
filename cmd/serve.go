package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bioleads/internal/export"
	"github.com/sells-group/bioleads/internal/model"
	"github.com/sells-group/bioleads/internal/pipeline"
	"github.com/sells-group/bioleads/internal/server"
)

var (
	servePort  int
	serveInput string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve scored leads over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if serveInput != "" {
			cfg.Server.Input = serveInput
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		srv, err := buildServer(ctx)
		if err != nil {
			return err
		}

		hs := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = hs.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveInput, "input", "", "JSON array of scored leads to serve (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildServer loads the configured result set. Without an input file the
// server starts empty and only the POST endpoints are useful.
func buildServer(ctx context.Context) (*server.Server, error) {
	engine, err := pipeline.NewEngine(cfg.Scoring)
	if err != nil {
		return nil, err
	}

	var leads []*model.LeadRecord
	if cfg.Server.Input != "" {
		leads, err = export.ReadLeadsFile(ctx, cfg.Server.Input)
		if err != nil {
			return nil, err
		}
	} else {
		zap.L().Warn("serve: no input file configured, serving an empty result set")
	}

	return server.New(leads, pipeline.NewDeduplicator(cfg.Linkage), engine,
		server.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	), nil
}
