package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if errWrite := os.WriteFile(path, []byte(contents), 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	return path
}

func TestLoadDatabaseDSN(t *testing.T) {
	path := writeConfig(t, "database-dsn: \"file:app.db\"\n")
	dsn, errLoad := LoadDatabaseDSN(path)
	if errLoad != nil {
		t.Fatalf("load dsn: %v", errLoad)
	}
	if dsn != "file:app.db" {
		t.Fatalf("dsn mismatch: %q", dsn)
	}

	nested := writeConfig(t, "database:\n  dsn: \"postgres://u:p@localhost/app\"\n")
	dsn, errLoad = LoadDatabaseDSN(nested)
	if errLoad != nil {
		t.Fatalf("load nested dsn: %v", errLoad)
	}
	if dsn != "postgres://u:p@localhost/app" {
		t.Fatalf("nested dsn mismatch: %q", dsn)
	}

	t.Setenv(EnvDBConnection, "file:env.db")
	dsn, errLoad = LoadDatabaseDSN(path)
	if errLoad != nil {
		t.Fatalf("load env dsn: %v", errLoad)
	}
	if dsn != "file:env.db" {
		t.Fatalf("env override ignored: %q", dsn)
	}
}

func TestLoadDatabaseDSNMissing(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: s\n")
	if _, errLoad := LoadDatabaseDSN(path); errLoad != ErrMissingDatabaseDSN {
		t.Fatalf("expected ErrMissingDatabaseDSN, got %v", errLoad)
	}
}

func TestLoadJWTConfig(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: file-secret\n  expiry: 2h\n")
	cfg, errLoad := LoadJWTConfig(path)
	if errLoad != nil {
		t.Fatalf("load jwt: %v", errLoad)
	}
	if cfg.Secret != "file-secret" || cfg.Expiry != 2*time.Hour {
		t.Fatalf("jwt config mismatch: %+v", cfg)
	}

	t.Setenv(EnvJWTSecret, "env-secret")
	t.Setenv(EnvJWTExpiry, "45m")
	cfg, errLoad = LoadJWTConfig(path)
	if errLoad != nil {
		t.Fatalf("load jwt with env: %v", errLoad)
	}
	if cfg.Secret != "env-secret" || cfg.Expiry != 45*time.Minute {
		t.Fatalf("env overrides ignored: %+v", cfg)
	}
}

func TestLoadEncryptionKey(t *testing.T) {
	path := writeConfig(t, "encryption-key: from-file\n")
	key, errLoad := LoadEncryptionKey(path)
	if errLoad != nil {
		t.Fatalf("load key: %v", errLoad)
	}
	if key != "from-file" {
		t.Fatalf("key mismatch: %q", key)
	}

	t.Setenv(EnvEncryptionKey, "from-env")
	key, errLoad = LoadEncryptionKey(path)
	if errLoad != nil {
		t.Fatalf("load key with env: %v", errLoad)
	}
	if key != "from-env" {
		t.Fatalf("env override ignored: %q", key)
	}
}

func TestLoadEncryptionKeyMissing(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: s\n")
	if _, errLoad := LoadEncryptionKey(path); errLoad != ErrMissingEncryptionKey {
		t.Fatalf("expected ErrMissingEncryptionKey, got %v", errLoad)
	}
}

func TestLoadCacheConfigDefaults(t *testing.T) {
	cfg, errLoad := LoadCacheConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if errLoad != nil {
		t.Fatalf("load cache config: %v", errLoad)
	}
	if cfg.TTL != time.Hour || cfg.RedisAddr != "" {
		t.Fatalf("defaults mismatch: %+v", cfg)
	}

	path := writeConfig(t, "auth-cache:\n  redis-addr: \"localhost:6379\"\n  ttl: 30m\n")
	cfg, errLoad = LoadCacheConfig(path)
	if errLoad != nil {
		t.Fatalf("load cache config: %v", errLoad)
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.TTL != 30*time.Minute {
		t.Fatalf("cache config mismatch: %+v", cfg)
	}
}
