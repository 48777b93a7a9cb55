package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr string

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/mizan.db"

	// Live tracking
	PollIntervalSeconds int // per-record recompute interval (default 15)
	DebounceMillis      int // snapshot coalescing window (default 300)

	// UnlockReasonKeyHex is the 32-byte hex key for encrypting unlock
	// justifications before they reach the audit ledger.
	UnlockReasonKeyHex string

	// Static per-gram metal prices used by the built-in price source.
	GoldPricePerGram   string
	SilverPricePerGram string
}

func FromEnv() Config {
	addr := getenvDefault("MIZAN_HTTP_ADDR", ":8080")

	env := strings.ToLower(getenvDefault("MIZAN_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	dbPath := getenvDefault("MIZAN_DB_PATH", "./data/mizan.db")

	pollInterval := getenvInt("MIZAN_POLL_INTERVAL_SECONDS", 15)
	debounce := getenvInt("MIZAN_DEBOUNCE_MILLIS", 300)

	keyHex := strings.TrimSpace(os.Getenv("MIZAN_UNLOCK_KEY_HEX"))

	goldPrice := getenvDefault("MIZAN_GOLD_PRICE_PER_GRAM", "85.00")
	silverPrice := getenvDefault("MIZAN_SILVER_PRICE_PER_GRAM", "1.05")

	return Config{
		HTTPAddr: addr,
		Env:      env,
		DBPath:   dbPath,

		PollIntervalSeconds: pollInterval,
		DebounceMillis:      debounce,

		UnlockReasonKeyHex: keyHex,

		GoldPricePerGram:   goldPrice,
		SilverPricePerGram: silverPrice,
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
