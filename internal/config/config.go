// internal/config/config.go
//
// Process configuration, read once at startup.
// A .env file in the working directory is loaded first (missing is fine);
// real environment variables always win over it.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds every tunable of the server.
type Config struct {
	Port         string
	LogLevel     zerolog.Level
	ClientOrigin string

	AnswersFile string
	AllowedFile string

	// DBPath is the archive location; "off" disables the archive.
	DBPath string

	SessionSecret string
	SessionTTL    time.Duration

	MaxRooms   int
	RoundGrace time.Duration

	ChooserPoints    int
	SolvePoints      int
	SpeedBonusPoints int
}

// ArchiveEnabled reports whether finished rounds should be stored.
func (c Config) ArchiveEnabled() bool {
	return c.DBPath != "" && !strings.EqualFold(c.DBPath, "off")
}

// Load reads .env (if present) and the environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() Config {
	c := Config{
		Port:             getEnv("PORT", "5175"),
		LogLevel:         zerolog.InfoLevel,
		ClientOrigin:     getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		AnswersFile:      os.Getenv("WORDS_ANSWERS_FILE"),
		AllowedFile:      os.Getenv("WORDS_ALLOWED_FILE"),
		DBPath:           getEnv("DB_PATH", "./data/party.db"),
		SessionSecret:    getEnv("SESSION_SECRET", "dev_secret_change_me"),
		SessionTTL:       time.Duration(getInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		MaxRooms:         getInt("MAX_ROOMS", 1000),
		RoundGrace:       time.Duration(getInt("ROUND_GRACE_MS", 3000)) * time.Millisecond,
		ChooserPoints:    getInt("CHOOSER_POINTS", 1),
		SolvePoints:      getInt("SOLVE_POINTS", 10),
		SpeedBonusPoints: getInt("SPEED_BONUS_POINTS", 5),
	}
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil && lvl != zerolog.NoLevel {
		c.LogLevel = lvl
	}
	if c.SessionSecret == "dev_secret_change_me" {
		log.Warn().Msg("SESSION_SECRET not set, using development secret")
	}
	return c
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Warn().Str("key", k).Str("value", v).Int("default", def).Msg("invalid integer, using default")
		return def
	}
	return n
}
