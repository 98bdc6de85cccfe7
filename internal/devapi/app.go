// Package devapi собирает локальный бэкенд консоли: хранилище, сервисы,
// обработчики и роутер.
package devapi

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xela07ax/vintrade-console/internal/audit"
	"github.com/xela07ax/vintrade-console/internal/devapi/handler"
	"github.com/xela07ax/vintrade-console/internal/devapi/server"
	"github.com/xela07ax/vintrade-console/internal/devapi/service"
	"github.com/xela07ax/vintrade-console/internal/infra"
	"github.com/xela07ax/vintrade-console/internal/infra/auth"
	"github.com/xela07ax/vintrade-console/internal/repository/memory"
	"github.com/xela07ax/vintrade-console/internal/repository/postgres"
	"github.com/xela07ax/vintrade-console/internal/repository/redisrepo"
	"github.com/xela07ax/vintrade-console/internal/risk"
)

const (
	defaultUsername = "operator"
	defaultPassword = "operator"
)

type App struct {
	Handler http.Handler
	Auth    *service.AuthService
	Trading *service.TradingService
	journal *audit.Journal
	rdb     *redis.Client
	pg      *postgres.Store
}

// NewApp. Без PEM ключа в конфиге генерирует временный RSA ключ:
// токены перестают быть валидными после рестарта.
func NewApp(ctx context.Context, cfg *infra.Config, reg prometheus.Registerer, logger *zap.Logger) (*App, error) {
	privateKey, err := loadSigningKey(cfg.Auth, logger)
	if err != nil {
		return nil, err
	}

	username, passwordHash, err := operatorCredentials(cfg)
	if err != nil {
		return nil, err
	}

	seed := DefaultSeed(username, passwordHash, time.Now())
	base := memory.NewStore(seed)
	app := &App{}

	var store service.Store = base
	switch {
	case cfg.Postgres.DSN != "":
		pg, err := postgres.NewStore(ctx, cfg.Postgres.DSN, logger)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx, seed); err != nil {
			pg.Close()
			return nil, err
		}
		app.pg = pg
		store = pg
		logger.Info("devapi state stored in postgres")
	case cfg.Redis.Addr != "":
		rdb, err := redisrepo.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		app.rdb = rdb
		store = redisrepo.NewStore(rdb, base, logger)
		logger.Info("devapi state stored in redis", zap.String("addr", cfg.Redis.Addr))
	}

	app.Auth = service.NewAuthService(store, privateKey, cfg.Auth.TokenTTL)
	app.journal = audit.NewJournal(store, logger, audit.Options{})
	app.journal.Start()
	app.Trading = service.NewTradingService(store, risk.NewAnalyzer(logger), app.journal, logger)

	// в Postgres алерты переживают рестарт, повторный прогон их бы задублировал
	if app.pg == nil {
		if n, err := app.Trading.Rescan(ctx); err != nil {
			logger.Warn("initial rule scan failed", zap.Error(err))
		} else if n > 0 {
			logger.Info("alert rules breached on startup", zap.Int("alerts", n))
		}
	}

	app.Handler = server.New(logger, reg, app.Auth,
		handler.NewAuthHandler(app.Auth, logger),
		handler.NewTradingHandler(app.Trading, logger),
	)
	return app, nil
}

// Close дописывает журнал и только потом закрывает хранилища.
func (a *App) Close() error {
	if a.journal != nil {
		a.journal.Stop()
	}
	if a.pg != nil {
		a.pg.Close()
	}
	if a.rdb != nil {
		return a.rdb.Close()
	}
	return nil
}

func loadSigningKey(cfg infra.AuthConfig, logger *zap.Logger) (*rsa.PrivateKey, error) {
	if len(cfg.PrivateKey) > 0 {
		return auth.ParseRSAPrivateKey(cfg.PrivateKey)
	}
	logger.Warn("no private key configured, generating an ephemeral RS256 key")
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return key, nil
}

// operatorCredentials: хэш из devapi.password_hash, иначе bcrypt от auth.password.
func operatorCredentials(cfg *infra.Config) (string, string, error) {
	username := cfg.Auth.Username
	if username == "" {
		username = defaultUsername
	}
	if cfg.DevAPI.PasswordHash != "" {
		return username, cfg.DevAPI.PasswordHash, nil
	}

	password := cfg.Auth.Password
	if password == "" {
		password = defaultPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash operator password: %w", err)
	}
	return username, string(hash), nil
}
