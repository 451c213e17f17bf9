package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App     AppConfig
	Gateway GatewayConfig
	Ticket  TicketConfig
	Redis   RedisConfig
	Logger  LoggerConfig
}

// AppConfig controls process level behavior.
type AppConfig struct {
	Name       string
	Env        string
	Version    string
	HealthAddr string
}

// GatewayConfig identifies the messaging platform resources the bot operates on.
type GatewayConfig struct {
	Token          string
	GuildID        string
	PanelChannelID string
	TicketParentID string
	LogChannelID   string
	ManagerRoleID  string
}

// TicketConfig tunes lifecycle behavior.
type TicketConfig struct {
	CooldownSeconds    int
	DeleteGraceSeconds int
	HistoryFetchLimit  int
}

// RedisConfig holds Redis connection values. Redis is optional; when Addr is
// empty the cooldown guard runs in-process.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	Env   string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}
	guildID := os.Getenv("GUILD_ID")
	if guildID == "" {
		return nil, fmt.Errorf("GUILD_ID is required")
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:       getEnv("APP_NAME", "ticket-bot"),
			Env:        getEnv("APP_ENV", "development"),
			Version:    getEnv("APP_VERSION", "dev"),
			HealthAddr: getEnv("HEALTH_ADDR", "0.0.0.0:8080"),
		},
		Gateway: GatewayConfig{
			Token:          token,
			GuildID:        guildID,
			PanelChannelID: os.Getenv("PANEL_CHANNEL_ID"),
			TicketParentID: os.Getenv("TICKET_PARENT_ID"),
			LogChannelID:   os.Getenv("LOG_CHANNEL_ID"),
			ManagerRoleID:  os.Getenv("MANAGER_ROLE_ID"),
		},
		Ticket: TicketConfig{
			CooldownSeconds:    getEnvAsInt("TICKET_COOLDOWN_SECONDS", 60),
			DeleteGraceSeconds: getEnvAsInt("TICKET_DELETE_GRACE_SECONDS", 5),
			HistoryFetchLimit:  getEnvAsInt("TICKET_HISTORY_FETCH_LIMIT", 100),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			Env:   getEnv("APP_ENV", "development"),
		},
	}

	return cfg, nil
}

// CooldownWindow returns the configured submission cooldown duration.
func (t TicketConfig) CooldownWindow() time.Duration {
	if t.CooldownSeconds <= 0 {
		return 0
	}
	return time.Duration(t.CooldownSeconds) * time.Second
}

// DeleteGrace returns the delay between close and conversation deletion.
func (t TicketConfig) DeleteGrace() time.Duration {
	if t.DeleteGraceSeconds <= 0 {
		return 0
	}
	return time.Duration(t.DeleteGraceSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
