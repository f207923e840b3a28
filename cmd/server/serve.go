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

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/warp/billing-engine/api"
	"github.com/warp/billing-engine/internal/cache"
	"github.com/warp/billing-engine/internal/config"
	"github.com/warp/billing-engine/internal/lock"
	"github.com/warp/billing-engine/internal/mailer"
	"github.com/warp/billing-engine/internal/objectstore"
	"github.com/warp/billing-engine/store/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP API and the background balance verifier.

Optional integrations are enabled by their environment keys:
  REDIS_ADDR      report cache and per-account locks shared across replicas
  GCS_BUCKET      uploads and invoice PDFs in Cloud Storage
  RESEND_API_KEY  invoice emails sent through the mail API`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// app holds everything opened at startup so it can be closed in order.
type app struct {
	store   *sqlite.Store
	handler *api.Handler
	closers []func() error
}

func (a *app) Close(log zerolog.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

// openApp opens the database and wires the optional integrations.
func openApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	a := &app{store: store, closers: []func() error{store.Close}}

	opts := api.Options{
		ReportTTL:   cfg.ReportCacheTTL,
		PhoneRegion: cfg.PhoneRegion,
		Production:  cfg.IsProduction(),
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			a.Close(log)
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		a.closers = append(a.closers, rdb.Close)
		opts.Cache = cache.NewRedis(rdb)
		opts.Locker = lock.NewRedis(redislock.New(rdb), cfg.LockTTL)
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis cache and locks enabled")
	}

	if cfg.GCSBucket != "" {
		gcs, err := objectstore.NewGCS(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile, cfg.UploadURLTTL)
		if err != nil {
			a.Close(log)
			return nil, fmt.Errorf("open bucket %s: %w", cfg.GCSBucket, err)
		}
		a.closers = append(a.closers, gcs.Close)
		opts.Objects = gcs
		log.Info().Str("bucket", cfg.GCSBucket).Msg("cloud storage enabled")
	}

	if cfg.ResendAPIKey != "" {
		sender, err := mailer.NewHTTPSender(cfg.MailAPIURL, cfg.ResendAPIKey, cfg.MailFrom)
		if err != nil {
			a.Close(log)
			return nil, err
		}
		opts.Mailer = sender
		log.Info().Str("from", cfg.MailFrom).Msg("email delivery enabled")
	}

	a.handler = api.NewHandler(store, opts)
	return a, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(log)

	verifier := api.NewBalanceVerifier(a.store, a.handler.Projection, cfg.VerifyInterval)
	verifier.RunOnStart = cfg.VerifyOnStart
	verifier.Start()
	defer verifier.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(a.handler, log, cfg.CORSAllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("env", cfg.Env).Str("db", cfg.DBPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal or a failed listener
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}
