package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the tracker.
type Config struct {
	TelegramToken  string
	DatabaseURL    string
	DailyTarget    int    // default daily point goal for newly resolved dates
	DefaultTaskMax int    // completion ceiling when a task does not set one
	RolloverTime   string // HH:MM, routine templates roll onto the new day
	DigestTime     string // HH:MM, "off" disables the evening digest
	AllowedChatID  int64  // 0 means any chat
	SeedDemoTasks  bool
}

// Load reads configuration from environment variables with sane defaults.
// A .env file next to the binary is honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken:  strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DailyTarget:    parseInt(os.Getenv("DAILY_TARGET"), 5),
		DefaultTaskMax: parseInt(os.Getenv("DEFAULT_TASK_MAX"), 10),
		RolloverTime:   strings.TrimSpace(os.Getenv("ROLLOVER_TIME")),
		DigestTime:     strings.TrimSpace(os.Getenv("DIGEST_TIME")),
		AllowedChatID:  parseInt64(os.Getenv("ALLOWED_CHAT_ID")),
		SeedDemoTasks:  parseBool(os.Getenv("SEED_DEMO_TASKS")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "habit_points.db"
	}
	if cfg.RolloverTime == "" {
		cfg.RolloverTime = "00:05"
	}
	switch cfg.DigestTime {
	case "":
		cfg.DigestTime = "21:00"
	case "off":
		cfg.DigestTime = ""
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

func parseInt(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseInt64(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return value
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
