// Package app wires configuration, storage, caching, and the HTTP surface
// into a runnable gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gragdev/grag-gateway/internal/auth"
	"github.com/gragdev/grag-gateway/internal/authcache"
	"github.com/gragdev/grag-gateway/internal/config"
	"github.com/gragdev/grag-gateway/internal/db"
	"github.com/gragdev/grag-gateway/internal/httpapi"
	"github.com/gragdev/grag-gateway/internal/store"
	"github.com/gragdev/grag-gateway/internal/upstream"
	"github.com/gragdev/grag-gateway/internal/usage"

	log "github.com/sirupsen/logrus"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the gateway with database-backed components and serves
// until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	encryptionKey, errKey := config.LoadEncryptionKey(configPath)
	if errKey != nil {
		return errKey
	}
	jwtConfig, errJWT := config.LoadJWTConfig(configPath)
	if errJWT != nil {
		return errJWT
	}
	if jwtConfig.Secret == "" {
		return fmt.Errorf("missing jwt secret (set `jwt.secret` in config file or env %s)", config.EnvJWTSecret)
	}
	cacheConfig, errCache := config.LoadCacheConfig(configPath)
	if errCache != nil {
		return errCache
	}

	var redisCfg *authcache.RedisConfig
	if cacheConfig.RedisAddr != "" {
		redisCfg = &authcache.RedisConfig{
			Addr:     cacheConfig.RedisAddr,
			Password: cacheConfig.RedisPassword,
			Prefix:   cacheConfig.RedisPrefix,
			DB:       cacheConfig.RedisDB,
		}
	}
	cache := authcache.NewManager(redisCfg)

	gormStore := store.NewGormStore(conn)
	ledger := usage.NewLedger(conn)
	gemini := upstream.NewClient("")
	authenticator := auth.NewAuthenticator(gormStore, cache, ledger, encryptionKey, cacheConfig.TTL)

	handlers := httpapi.NewHandlers(gormStore, ledger, gemini, jwtConfig, encryptionKey)
	engine := httpapi.BuildRouter(handlers, authenticator)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("gateway listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return fmt.Errorf("app: shutdown: %w", errShutdown)
		}
		return nil
	case errServe := <-errCh:
		if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", errServe)
		}
		return nil
	}
}
