package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aaal/envanter/internal/api"
	"github.com/aaal/envanter/internal/audit"
	"github.com/aaal/envanter/internal/auth"
	"github.com/aaal/envanter/internal/config"
	"github.com/aaal/envanter/internal/db"
	"github.com/aaal/envanter/internal/ledger"
	"github.com/aaal/envanter/internal/lifecycle"
	"github.com/aaal/envanter/internal/metrics"
	"github.com/aaal/envanter/internal/model"
	"github.com/aaal/envanter/internal/photos"
	"github.com/aaal/envanter/internal/store"
)

// tokenPurgeInterval is how often expired revocations are dropped.
const tokenPurgeInterval = time.Hour

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger sends INFO/WARN to stdout and ERROR to stderr, and every level
// to logPath as well when it is set. The returned cleanup may be nil.
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

func main() {
	cfg, err := config.Load(os.Args[1:], ".env", os.Stdout)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	slog.Info("database ready", "path", cfg.DBPath)

	if err := bootstrapAdmin(ctx, database, cfg); err != nil {
		return err
	}

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		if jwtSecret, err = store.GetJWTSecret(ctx, database); err != nil {
			return fmt.Errorf("loading JWT secret: %w", err)
		}
	}

	blobs, prefix, err := photoStore(ctx, database, cfg)
	if err != nil {
		return err
	}

	l := ledger.New(database)
	rec := audit.New(database)
	engine := lifecycle.New(database, l, rec)

	router := api.NewRouter(api.Deps{
		DB:         database,
		JWTSecret:  jwtSecret,
		BcryptCost: cfg.BcryptCost,
		Engine:     engine,
		Ledger:     l,
		Audit:      rec,
		Photos:     photos.New(database, blobs, prefix, cfg.PhotoMaxDim),
	})

	var handler http.Handler = api.LoggingMiddleware(router)
	if cfg.Metrics {
		m := metrics.New()
		engine.AddHook(m)
		router.Handle("GET /metrics", m.Handler())
		handler = m.Middleware(router, handler)
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server started", "addr", cfg.Addr, "photos", cfg.PhotoDriver, "metrics", cfg.Metrics)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		purgeTokens(gctx, database)
		ticker := time.NewTicker(tokenPurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				purgeTokens(gctx, database)
			}
		}
	})

	err = g.Wait()
	slog.Info("server stopped, closing database")
	return err
}

func purgeTokens(ctx context.Context, database *sql.DB) {
	n, err := store.PurgeExpiredTokens(ctx, database)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("failed to purge revoked tokens", "error", err)
		}
		return
	}
	if n > 0 {
		slog.Info("purged expired token revocations", "count", n)
	}
}

// photoStore picks the blob backend for item photos and the key prefix to use
// with it.
func photoStore(ctx context.Context, database *sql.DB, cfg *config.Config) (photos.Store, string, error) {
	switch cfg.PhotoDriver {
	case config.PhotoDriverS3:
		s, err := photos.NewS3Store(ctx, photos.S3Config{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, "", fmt.Errorf("setting up s3 photo store: %w", err)
		}
		slog.Info("storing photos in s3", "bucket", cfg.S3.Bucket, "prefix", cfg.S3.Prefix)
		return s, cfg.S3.Prefix, nil
	default:
		return photos.NewDBStore(database), "items/", nil
	}
}

// bootstrapAdmin creates the first admin account on an empty database and
// prints its generated password.
func bootstrapAdmin(ctx context.Context, database *sql.DB, cfg *config.Config) error {
	n, err := store.CountUsers(ctx, database)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if n > 0 {
		return nil
	}

	password, err := generatePassword(16)
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}

	hash, err := auth.HashPassword(password, cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	admin, err := store.CreateUser(ctx, database, &model.User{
		FirstName:    cfg.AdminFirstName,
		LastName:     cfg.AdminLastName,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	printInitResult(cfg.DBPath, admin, password)
	return nil
}

func printInitResult(dbPath string, admin *model.User, password string) {
	fmt.Printf("Database initialized: %s\n", dbPath)
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  First name: %s\n", admin.FirstName)
	fmt.Printf("  Last name:  %s\n", admin.LastName)
	fmt.Printf("  Password:   %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
	fmt.Println()
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
