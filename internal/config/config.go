package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath   string
	RawDir   string
	LogLevel string

	Language        string
	IndexBaseURL    string
	MeetingWeekday  time.Weekday
	RangeStart      string
	FetchTimeoutMs  int
	FetchRateRPS    int
	FetchUserAgent  string
	StructuredOnly  bool
	EnrichParallel  int
	IngestPauseMs   int
	BackfillYears   int
	DiscoverMonths  int
	RedisURL        string
	CacheTTLSec     int
	AssetBucket     string
	AssetRegion     string
	AssetPublicBase string
	AssetPresignSec int

	HTTPAddr         string
	WatchIntervalSec int
	WatchMode        string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:   getEnv("DB_PATH", filepath.Join(cwd, "data", "mwb.db")),
		RawDir:   getEnv("RAW_DIR", filepath.Join(cwd, "data", "raw")),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Language:        strings.ToLower(getEnv("MWB_LANGUAGE", "pt")),
		IndexBaseURL:    getEnv("MWB_INDEX_BASE_URL", "https://www.jw.org"),
		MeetingWeekday:  time.Weekday(clamp(getEnvInt("MWB_MEETING_WEEKDAY", int(time.Wednesday)), 0, 6)),
		RangeStart:      getEnv("MWB_RANGE_START", "2024-01-01"),
		FetchTimeoutMs:  getEnvInt("MWB_FETCH_TIMEOUT_MS", 20000),
		FetchRateRPS:    getEnvInt("MWB_FETCH_RATE_LIMIT_RPS", 4),
		FetchUserAgent:  getEnv("MWB_FETCH_USER_AGENT", "mwb/1.0"),
		StructuredOnly:  getEnvBool("MWB_STRUCTURED_ONLY", false),
		EnrichParallel:  getEnvInt("MWB_ENRICH_CONCURRENCY", 4),
		IngestPauseMs:   getEnvInt("MWB_INGEST_PAUSE_MS", 300),
		BackfillYears:   getEnvInt("MWB_BACKFILL_YEARS", 6),
		DiscoverMonths:  getEnvInt("MWB_DISCOVER_MONTHS", 4),
		RedisURL:        getEnv("REDIS_URL", ""),
		CacheTTLSec:     getEnvInt("CACHE_TTL_SEC", 6*3600),
		AssetBucket:     getEnv("ASSET_BUCKET", ""),
		AssetRegion:     getEnv("ASSET_REGION", "us-east-1"),
		AssetPublicBase: getEnv("ASSET_PUBLIC_BASE_URL", ""),
		AssetPresignSec: getEnvInt("ASSET_PRESIGN_TTL_SEC", 0),

		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		WatchIntervalSec: getEnvInt("WATCH_INTERVAL_SEC", 6*3600),
		WatchMode:        getEnv("WATCH_MODE", "pair"),
	}

	if cfg.Language != "pt" && cfg.Language != "en" {
		return Config{}, fmt.Errorf("unsupported MWB_LANGUAGE: %s", cfg.Language)
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMs) * time.Millisecond
}

func (c Config) IngestPause() time.Duration {
	return time.Duration(c.IngestPauseMs) * time.Millisecond
}

// LanguageTag is the language column value of stored rows.
func (c Config) LanguageTag() string {
	if c.Language == "en" {
		return "en"
	}
	return "pt-BR"
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
