// Package config loads server settings from the environment, with a .env
// file honored in development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr  string
	DatabaseDSN string // empty means in-memory store
	DevLogging  bool

	Countdown       time.Duration
	DrawTimeout     time.Duration
	MinParticipants int
	WriteAttempts   int
	WriteBackoff    time.Duration

	SweepInterval time.Duration
	RetireGrace   time.Duration
	LobbyTTL      time.Duration
}

func Load() Config {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	return Config{
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		DatabaseDSN:     getEnv("DATABASE_DSN", ""),
		DevLogging:      getBool("DEV_LOGGING", false),
		Countdown:       getDuration("BATTLE_COUNTDOWN", 3*time.Second),
		DrawTimeout:     getDuration("DRAW_TIMEOUT", 5*time.Second),
		MinParticipants: getInt("MIN_PARTICIPANTS", 2),
		WriteAttempts:   getInt("WRITE_ATTEMPTS", 3),
		WriteBackoff:    getDuration("WRITE_BACKOFF", 100*time.Millisecond),
		SweepInterval:   getDuration("SWEEP_INTERVAL", 15*time.Second),
		RetireGrace:     getDuration("RETIRE_GRACE", 60*time.Second),
		LobbyTTL:        getDuration("LOBBY_TTL", 10*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
