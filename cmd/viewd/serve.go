package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	apihttp "github.com/weisyn/viewd/internal/api/http"
	"github.com/weisyn/viewd/internal/config"
)

var serveFlags struct {
	addr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the resident worker pool, serving only /metrics and /health over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", ":8080", "HTTP listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	opts, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	application, err := buildApp(ctx, opts)
	if err != nil {
		return err
	}
	defer application.close(context.Background())

	engine := apihttp.NewEngine(application.resolver, application.logger)
	srv := &http.Server{
		Addr:    serveFlags.addr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		application.logger.Infof("viewd: listening on %s", serveFlags.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("viewd: server: %w", err)
	case <-sigCh:
		application.logger.Info("viewd: shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
