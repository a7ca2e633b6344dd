// Package config is the Config Bundle (C11): an env-loaded, process-start
// EnvConfig for things that can't change without a restart (listener
// address, database path, upstream credentials), plus a hot-swappable
// Bundle published through an AtomicSnapshot and change-logged in
// internal/db's config_items/config_changes tables (§4.11).
//
// Grounded on the teacher's internal/config's Load()/getEnv* helper style,
// generalized from PLEX_TUNER_* IPTV settings to this module's own env
// surface.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig holds the settings that are only read once, at process start
// (§6: bind_address, database path, upstream credentials — opaque to the
// core, never hot-swapped).
type EnvConfig struct {
	BindAddress  string
	DatabasePath string
	BundlePath   string // YAML snapshot file for the hot-swappable Bundle
	WebhookURL   string

	SessData        string
	BiliJCT         string
	Buvid3          string
	Buvid4          string
	DedeUserID      string
	DedeUserIDCKMD5 string
	ACTimeValue     string
}

// Load reads EnvConfig from the environment. Call LoadEnvFile(".env") first
// to source a .env file into the process environment.
func Load() EnvConfig {
	return EnvConfig{
		BindAddress:  getEnv("BILI_SYNC_BIND_ADDRESS", "127.0.0.1:12345"),
		DatabasePath: getEnv("BILI_SYNC_DATABASE_PATH", "./bili-sync.db"),
		BundlePath:   getEnv("BILI_SYNC_CONFIG_PATH", "./bili-sync.yaml"),
		WebhookURL:   os.Getenv("BILI_SYNC_WEBHOOK_URL"),

		SessData:        os.Getenv("BILI_SYNC_SESSDATA"),
		BiliJCT:         os.Getenv("BILI_SYNC_BILI_JCT"),
		Buvid3:          os.Getenv("BILI_SYNC_BUVID3"),
		Buvid4:          os.Getenv("BILI_SYNC_BUVID4"),
		DedeUserID:      os.Getenv("BILI_SYNC_DEDEUSERID"),
		DedeUserIDCKMD5: os.Getenv("BILI_SYNC_DEDEUSERID_CKMD5"),
		ACTimeValue:     os.Getenv("BILI_SYNC_AC_TIME_VALUE"),
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
