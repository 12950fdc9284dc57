package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	_ "cardvault/docs" // swagger docs

	"cardvault/internal/auth"
	"cardvault/internal/cache"
	"cardvault/internal/cardnumber"
	"cardvault/internal/config"
	"cardvault/internal/db"
	"cardvault/internal/handler"
	"cardvault/internal/logging"
	"cardvault/internal/notify"
	"cardvault/internal/repository"
	"cardvault/internal/router"
	"cardvault/internal/scheduler"
	"cardvault/internal/service"
)

// @title Card Vault API
// @version 1.0
// @description Bank card vault with encrypted card numbers, balance transfers and JWT authentication.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	store, err := openStore(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("storage init")
	}

	codec, err := newCodec(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("card number codec init")
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	if err := cacheClient.Ping(context.Background()); err != nil {
		log.WithError(err).Warn("redis unreachable, tokens and sweep locks degrade")
	}

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if cfg.SMTPHost != "" {
		notifier = notify.NewEmailNotifier(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		}, log)
	}

	audit := service.NewAuditLog(store.CardEvents(), log)
	defer audit.Close()

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	retry := service.RetryPolicy{Attempts: cfg.TransferRetries, Base: cfg.TransferRetryBase}
	authService := service.NewAuthService(store.Users(), jwtService, tokenStore)
	userService := service.NewUserService(store, cacheClient, tokenStore, log)
	cardService := service.NewCardService(store, codec, audit, notifier, log)
	transferService := service.NewTransferService(store, retry, log)
	sweeper := service.NewExpirySweeper(store, audit, notifier, log)

	if cfg.AdminPassword != "" {
		admin, created, err := service.EnsureAdmin(context.Background(), store, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			log.WithError(err).Fatal("admin bootstrap")
		}
		log.WithFields(logrus.Fields{"user_id": admin.ID, "created": created}).Info("admin account ready")
	}

	job := scheduler.NewExpiryJob(sweeper, cacheClient, log)
	sched, err := scheduler.New(cfg.SweepSchedule, job, log)
	if err != nil {
		log.WithError(err).Fatal("scheduler init")
	}
	if cfg.SweepOnStart {
		if _, err := job.RunOnce(context.Background()); err != nil {
			log.WithError(err).Error("startup expiry sweep failed")
		}
	}
	sched.Start()

	e := echo.New()
	router.Register(e, cfg, log, jwtService, tokenStore, router.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		Cards:        handler.NewCardHandler(cardService),
		Transactions: handler.NewTransactionHandler(transferService),
		Users:        handler.NewUserHandler(userService),
	})

	log.Infof("Swagger documentation available at: %s", swaggerURL(cfg))

	go func() {
		addr := ":" + cfg.ServerPort
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	sched.Stop(ctx)
	if err := e.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	log.Info("server stopped")
}

func openStore(cfg *config.Config, log *logrus.Logger) (repository.Store, error) {
	switch cfg.Storage {
	case "memory":
		log.Warn("using in-memory storage, data is lost on restart")
		return repository.NewMemoryStore(time.Duration(cfg.LockWaitTimeout) * time.Second), nil
	case "mysql":
		gormDB, err := db.NewMySQL(cfg.MySQLDSN, cfg.LockWaitTimeout, log)
		if err != nil {
			return nil, fmt.Errorf("database init: %w", err)
		}

		// Drop tables if RESET_DB environment variable is set
		if os.Getenv("RESET_DB") == "true" {
			log.Warn("RESET_DB=true detected, dropping all tables")
			db.Reset(gormDB, log)
		}

		if err := db.Migrate(gormDB); err != nil {
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
		return repository.NewGormStore(gormDB), nil
	}
	return nil, fmt.Errorf("unknown STORAGE %q", cfg.Storage)
}

func newCodec(cfg *config.Config, log *logrus.Logger) (*cardnumber.Codec, error) {
	keys, active := cfg.CardKeys, cfg.CardKeyActive
	if len(keys) == 0 {
		log.Warn("CARD_KEYS unset, deriving a development key from CARD_SECRET")
		keys = map[byte][]byte{0: cardnumber.DeriveKey(cfg.CardSecret)}
		active = 0
	}
	keyring, err := cardnumber.NewKeyring(keys, active)
	if err != nil {
		return nil, err
	}
	return cardnumber.NewCodec(keyring), nil
}

func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.ServerPort
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host + "/swagger/index.html"
	}
	return "http://" + host + "/swagger/index.html"
}
