// Package config loads the server's settings from the environment, with
// secrets optionally pulled from Vault when VAULT_ADDR is set.
package config

import (
	"errors"
	"os"
)

// Config holds everything the server needs at startup. The server owns no
// on-disk state; all persistence lives behind the Redis key store.
type Config struct {
	ListenAddr    string
	RedisURL      string
	NATSURL       string
	SessionSecret string
	Debug         bool
}

// Load reads configuration from the environment. When VAULT_ADDR is set,
// REDIS_URL, NATS_URL, and SESSION_SECRET are read from the Vault KV2 path
// in VAULT_SECRET_PATH instead, with the environment as fallback.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:    getenv("LISTEN_ADDR", ":8080"),
		RedisURL:      os.Getenv("REDIS_URL"),
		NATSURL:       os.Getenv("NATS_URL"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		Debug:         os.Getenv("DEBUG") == "true",
	}

	if vaultAddr := os.Getenv("VAULT_ADDR"); vaultAddr != "" {
		manager, err := NewSecretManager(vaultAddr, os.Getenv("VAULT_TOKEN"))
		if err != nil {
			return Config{}, err
		}
		secrets, err := manager.GetKV2(getenv("VAULT_SECRET_PATH", "secret/data/cue/server"))
		if err != nil {
			return Config{}, err
		}
		if v, ok := secrets["REDIS_URL"].(string); ok {
			cfg.RedisURL = v
		}
		if v, ok := secrets["NATS_URL"].(string); ok {
			cfg.NATSURL = v
		}
		if v, ok := secrets["SESSION_SECRET"].(string); ok {
			cfg.SessionSecret = v
		}
	}

	if cfg.RedisURL == "" {
		return Config{}, errors.New("REDIS_URL is required")
	}
	if cfg.NATSURL == "" {
		return Config{}, errors.New("NATS_URL is required")
	}
	if cfg.SessionSecret == "" {
		return Config{}, errors.New("SESSION_SECRET is required")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
