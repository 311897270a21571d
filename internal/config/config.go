package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port        string
	Env         string
	DatabaseDSN string
	StoreDriver string

	APIBasePath       string
	PromptFormPath    string
	ManagePromptsPath string
	PublicDir         string
	HomepageURL       string

	BotToken         string
	Prefix           string
	AdminRoleID      string
	HostURL          string
	BotMessageURL    string
	TemplateRefresh  time.Duration
	ArchiveChannelID string
	PromptChannelIDs []string
	Timezone         string

	RequestTimeout time.Duration
	TokenBytes     int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// getint 读取非负整数，非法值回退到默认值。
func getint(key string, def int) int {
	v, err := strconv.Atoi(getenv(key, ""))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func Load() Config {
	channels := make([]string, 0, 5)
	for i := 1; i <= 5; i++ {
		if id := strings.TrimSpace(os.Getenv("CH_PROMPT" + strconv.Itoa(i))); id != "" {
			channels = append(channels, id)
		}
	}
	return Config{
		Port:              getenv("APP_PORT", getenv("PORT", "8000")),
		Env:               getenv("APP_ENV", "dev"),
		DatabaseDSN:       getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=promptbot port=5432 sslmode=disable TimeZone=UTC"),
		StoreDriver:       getenv("STORE_DRIVER", DriverPostgres),
		APIBasePath:       "/" + strings.Trim(getenv("API_BASE_PATH", "/api"), "/"),
		PromptFormPath:    strings.Trim(getenv("PROMPT_FORM_PATH", "promptForm"), "/"),
		ManagePromptsPath: strings.Trim(getenv("MANAGE_PROMPTS_PATH", "managePrompts"), "/"),
		PublicDir:         getenv("PUBLIC_DIR", "./public"),
		HomepageURL:       os.Getenv("HOMEPAGE_URL"),
		BotToken:          os.Getenv("BOT_APITOKEN"),
		Prefix:            getenv("PREFIX", "!"),
		AdminRoleID:       os.Getenv("DISCORD_ADMIN_ROLEID"),
		HostURL:           getenv("HOST_URL", "http://localhost:8000"),
		BotMessageURL:     os.Getenv("BOT_MESSAGE_URL"),
		TemplateRefresh:   time.Duration(getint("BOT_MESSAGE_REFRESH_MINUTES", 0)) * time.Minute,
		ArchiveChannelID:  os.Getenv("CH_ARCHIVE"),
		PromptChannelIDs:  channels,
		Timezone:          getenv("TIMEZONE", "UTC"),
		RequestTimeout:    time.Duration(getint("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
		TokenBytes:        getint("TOKEN_BYTES", 16),
	}
}

// Validate 检查配置是否可用于启动。
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("port is required")
	}
	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseDSN == "" {
			return errors.New("DATABASE_DSN is required for the postgres store")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if cfg.Prefix == "" {
		return errors.New("command prefix is required")
	}
	if cfg.TokenBytes != 0 && cfg.TokenBytes < 8 {
		return errors.New("TOKEN_BYTES must be at least 8")
	}
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	if cfg.Env != "dev" {
		if cfg.BotToken == "" {
			return errors.New("BOT_APITOKEN is required outside dev")
		}
		if cfg.ArchiveChannelID == "" {
			return errors.New("CH_ARCHIVE is required outside dev")
		}
	}
	return nil
}

// Location 返回公告日期使用的时区。
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}
