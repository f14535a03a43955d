package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/cardwise/internal/api"
	"github.com/Veraticus/cardwise/internal/certs"
	"github.com/Veraticus/cardwise/internal/cli"
	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/config"
	"github.com/Veraticus/cardwise/internal/importer"
	"github.com/Veraticus/cardwise/internal/jobs"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API with an embedded worker pool",
		Long: `Serve the job API:

  POST /v1/sessions                       upload extracted records, queue a job
  POST /v1/jobs                           queue a job for a session
  GET  /v1/jobs/{id}                      job status and progress
  GET  /v1/sessions/{id}/recommendations  ranked recommendations
  GET  /healthz                           liveness

Workers run in the same process unless --no-workers is set.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default: api.addr)")
	cmd.Flags().Bool("no-workers", false, "Only accept jobs; run workers elsewhere")
	cmd.Flags().Bool("no-upload", false, "Reject statement uploads")
	cmd.Flags().StringSlice("allowed-origins", nil, "CORS origins (default: any)")
	cmd.Flags().Bool("tls", false, "Serve HTTPS with a self-signed certificate")
	cmd.Flags().StringSlice("tls-host", nil, "Extra host names or IPs the certificate must cover")
	cmd.Flags().String("cert-dir", "", "Certificate directory (default: $HOME/.config/cardwise/certs)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	noWorkers, _ := cmd.Flags().GetBool("no-workers")
	noUpload, _ := cmd.Flags().GetBool("no-upload")
	origins, _ := cmd.Flags().GetStringSlice("allowed-origins")
	useTLS, _ := cmd.Flags().GetBool("tls")
	tlsHosts, _ := cmd.Flags().GetStringSlice("tls-host")
	certDir, _ := cmd.Flags().GetString("cert-dir")
	if addr == "" {
		addr = viper.GetString(config.KeyAPIAddr)
	}

	handler := cli.NewInterruptHandler(cmd.OutOrStdout(), "Shutting down server...", "")
	ctx := handler.HandleInterrupts(cmd.Context())

	a, err := newApp(ctx, !noWorkers)
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler := jobs.NewScheduler(a.store)
	var imp api.Importer
	if !noUpload {
		imp = importer.New(a.store, scheduler, common.ComponentLogger("importer"))
	}

	h := api.NewHandler(scheduler, imp, a.store, api.HandlerOptions{Logger: common.ComponentLogger("api")})
	router := api.NewRouter(h, api.RouterOptions{
		Tracer:         a.tracer,
		Logger:         common.ComponentLogger("http"),
		AllowedOrigins: origins,
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	scheme := "http"
	if useTLS {
		if certDir == "" {
			certDir = filepath.Join(config.DefaultConfigDir(), "certs")
		}
		srv.TLSConfig, err = certs.NewManager(config.ExpandPath(certDir), tlsHosts...).TLSConfig()
		if err != nil {
			return fmt.Errorf("failed to prepare TLS certificate: %w", err)
		}
		scheme = "https"
	}

	var rt *workerRuntime
	if !noWorkers {
		rt, err = startRuntime(ctx, a, 0)
		if err != nil {
			return err
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API listening", "addr", addr, "scheme", scheme)
		var err error
		if srv.TLSConfig != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.LogError(err, "API server stopped", common.Fields{"addr": addr})
			serveErr <- err
		}
		close(serveErr)
	}()

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Serving on "+scheme+"://"+addr))

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		slog.Warn("HTTP server shutdown failed", "error", shutdownErr)
	}

	if rt != nil {
		if stopErr := rt.stop(); stopErr != nil && err == nil {
			err = stopErr
		}
	}

	if err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
