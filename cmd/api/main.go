package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/api-yamdb/internal/application/auth"
	"github.com/api-yamdb/internal/application/user"
	"github.com/api-yamdb/internal/application/verification"
	"github.com/api-yamdb/internal/config"
	"github.com/api-yamdb/internal/infrastructure/dynamo"
	jwtinfra "github.com/api-yamdb/internal/infrastructure/jwt"
	"github.com/api-yamdb/internal/infrastructure/memory"
	redisinfra "github.com/api-yamdb/internal/infrastructure/redis"
	"github.com/api-yamdb/internal/infrastructure/smtp"
	"github.com/api-yamdb/internal/infrastructure/sns"
	"github.com/api-yamdb/internal/pkg/message"
	transporthttp "github.com/api-yamdb/internal/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})))

	// run owns every resource, so its defers have finished before we exit.
	if err := run(cfg); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables, cfg.CodeStore == config.CodeStoreDynamo)

	store, closeStore, err := newCodeStore(ctx, cfg, dynamoClient)
	if err != nil {
		return fmt.Errorf("code store %q not available: %w", cfg.CodeStore, err)
	}
	defer closeStore()

	notifier, err := newNotifier(cfg)
	if err != nil {
		return fmt.Errorf("notifier %q not available: %w", cfg.Notifier, err)
	}

	// JWT provider (falls back to an in-memory key outside production).
	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		if cfg.AppEnv == "production" {
			return fmt.Errorf("JWT provider not available: %w", err)
		}
		slog.Warn("JWT keys not loaded, using an ephemeral key", "err", err)
		if jwtProvider, err = jwtinfra.NewEphemeralProvider(cfg.JWTExpiry); err != nil {
			return fmt.Errorf("JWT provider not available: %w", err)
		}
	}

	verifier := verification.NewService(verification.ServiceDeps{
		Store:     store,
		Notifier:  notifier,
		Generator: verification.NewDigitGenerator(cfg.Verification.CodeLength),
		TTL:       cfg.Verification.CodeTTL,
		KeyPrefix: cfg.Verification.KeyPrefix,
	})
	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)

	deps := &transporthttp.Deps{
		AuthService: auth.NewService(auth.ServiceDeps{
			UserRepo:   userRepo,
			Verifier:   verifier,
			Signer:     jwtProvider,
			CodeLength: cfg.Verification.CodeLength,
		}),
		UserService: user.NewService(user.ServiceDeps{UserRepo: userRepo}),
		JWTProvider: jwtProvider,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv,
			"code_store", cfg.CodeStore, "notifier", cfg.Notifier)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func newCodeStore(ctx context.Context, cfg *config.Config, dynamoClient *dynamodb.Client) (verification.CodeStore, func(), error) {
	retention := cfg.Verification.ExpiredRetention
	switch cfg.CodeStore {
	case config.CodeStoreRedis:
		client, err := redisinfra.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return redisinfra.NewCodeStore(client, retention), func() { _ = client.Close() }, nil
	case config.CodeStoreDynamo:
		return dynamo.NewCodeStore(dynamoClient, cfg.DynamoTables.VerificationCodes, retention), func() {}, nil
	default:
		s := memory.NewCodeStore(retention)
		return s, s.Close, nil
	}
}

func newNotifier(cfg *config.Config) (verification.Notifier, error) {
	tpl, err := message.New(cfg.Verification.MailSubject, cfg.Verification.MailBodyTemplate)
	if err != nil {
		return nil, err
	}
	if cfg.Notifier == config.NotifierSNS {
		n, err := sns.NewCodeNotifier(cfg, tpl)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
	return smtp.NewCodeNotifier(smtp.NewMailer(cfg), tpl), nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
