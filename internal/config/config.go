package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string             `yaml:"discord_token"`
	AdminUserID   string             `yaml:"admin_user_id"`
	DatabaseURL   string             `yaml:"database_url"`
	LogLevel      string             `yaml:"log_level"`
	HTTP          HTTPConfig         `yaml:"http"`
	OAuth         OAuthConfig        `yaml:"oauth"`
	AntiSpam      AntiSpamConfig     `yaml:"antispam"`
	Giveaway      GiveawayConfig     `yaml:"giveaway"`
	Verification  VerificationConfig `yaml:"verification"`
	Reviews       ReviewsConfig      `yaml:"reviews"`
	Moderation    ModerationConfig   `yaml:"moderation"`
	Tickets       TicketsConfig      `yaml:"tickets"`
	Notifications NotifyConfig       `yaml:"notifications"`
}

type HTTPConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Addr      string  `yaml:"addr"`
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

type OAuthConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
}

type AntiSpamConfig struct {
	MessageLimit     int `yaml:"message_limit"`
	WindowSeconds    int `yaml:"window_seconds"`
	WarningThreshold int `yaml:"warning_threshold"`
	TimeoutSeconds   int `yaml:"timeout_seconds"`
}

type GiveawayConfig struct {
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
}

type VerificationConfig struct {
	TTLMinutes int    `yaml:"ttl_minutes"`
	RoleName   string `yaml:"role_name"`
	RoleColor  int    `yaml:"role_color"`
}

type ReviewsConfig struct {
	CustomerRoleName string `yaml:"customer_role_name"`
	ChannelID        string `yaml:"channel_id"`
	MaxImageBytes    int    `yaml:"max_image_bytes"`
	DraftTTLSeconds  int    `yaml:"draft_ttl_seconds"`
}

type ModerationConfig struct {
	MaxMuteSeconds int `yaml:"max_mute_seconds"`
}

type TicketsConfig struct {
	CategoryName      string   `yaml:"category_name"`
	CategoryKeywords  []string `yaml:"category_keywords"`
	StaffRoleKeywords []string `yaml:"staff_role_keywords"`
}

type NotifyConfig struct {
	ModLogChannel    string      `yaml:"mod_log_channel"`
	WelcomeDMEnabled bool        `yaml:"welcome_dm_enabled"`
	EmbedColors      EmbedColors `yaml:"embed_colors"`
}

type EmbedColors struct {
	Action   int `yaml:"action"`
	Warning  int `yaml:"warning"`
	Error    int `yaml:"error"`
	Success  int `yaml:"success"`
	Giveaway int `yaml:"giveaway"`
	Brand    int `yaml:"brand"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		HTTP:     HTTPConfig{Enabled: true, Addr: ":5000", RateLimit: 5, Burst: 10},
		OAuth: OAuthConfig{
			Scopes: []string{"identify", "guilds.join"},
		},
		AntiSpam: AntiSpamConfig{
			MessageLimit:     5,
			WindowSeconds:    10,
			WarningThreshold: 3,
			TimeoutSeconds:   300,
		},
		Giveaway:     GiveawayConfig{SweepIntervalSeconds: 60},
		Verification: VerificationConfig{TTLMinutes: 30, RoleName: "| Voralith | Verified", RoleColor: 0x9B59B6},
		Reviews: ReviewsConfig{
			CustomerRoleName: "| Voralith | Customer",
			MaxImageBytes:    10 * 1024 * 1024,
			DraftTTLSeconds:  300,
		},
		Moderation: ModerationConfig{MaxMuteSeconds: 86400},
		Tickets: TicketsConfig{
			CategoryName:      "🎫 Tickets",
			CategoryKeywords:  []string{"ticket", "support", "aide"},
			StaffRoleKeywords: []string{"staff", "support", "mod", "admin"},
		},
		Notifications: NotifyConfig{
			WelcomeDMEnabled: true,
			EmbedColors: EmbedColors{
				Action:   0x5865F2,
				Warning:  0xF59E0B,
				Error:    0xEF4444,
				Success:  0x22C55E,
				Giveaway: 0xE91E63,
				Brand:    0x5B2C6F,
			},
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}

	normalize(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.AdminUserID = envString("ADMIN_USER_ID", cfg.AdminUserID)
	cfg.DatabaseURL = envString("DATABASE_URL", cfg.DatabaseURL)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.HTTP.Enabled = envBool("HTTP_ENABLED", cfg.HTTP.Enabled)
	cfg.HTTP.Addr = envString("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.RateLimit = envFloat("HTTP_RATE_LIMIT", cfg.HTTP.RateLimit)
	cfg.HTTP.Burst = envInt("HTTP_BURST", cfg.HTTP.Burst)
	cfg.OAuth.ClientID = envString("DISCORD_CLIENT_ID", cfg.OAuth.ClientID)
	cfg.OAuth.ClientSecret = envString("DISCORD_CLIENT_SECRET", cfg.OAuth.ClientSecret)
	cfg.OAuth.RedirectURL = envString("OAUTH_REDIRECT_URL", cfg.OAuth.RedirectURL)
	cfg.AntiSpam.MessageLimit = envInt("SPAM_LIMIT", cfg.AntiSpam.MessageLimit)
	cfg.AntiSpam.WindowSeconds = envInt("SPAM_WINDOW_SECONDS", cfg.AntiSpam.WindowSeconds)
	cfg.AntiSpam.WarningThreshold = envInt("SPAM_WARNING_THRESHOLD", cfg.AntiSpam.WarningThreshold)
	cfg.AntiSpam.TimeoutSeconds = envInt("SPAM_TIMEOUT_SECONDS", cfg.AntiSpam.TimeoutSeconds)
	cfg.Giveaway.SweepIntervalSeconds = envInt("GIVEAWAY_SWEEP_SECONDS", cfg.Giveaway.SweepIntervalSeconds)
	cfg.Verification.TTLMinutes = envInt("VERIFICATION_TTL_MINUTES", cfg.Verification.TTLMinutes)
	cfg.Verification.RoleName = envString("VERIFIED_ROLE_NAME", cfg.Verification.RoleName)
	cfg.Reviews.CustomerRoleName = envString("CUSTOMER_ROLE_NAME", cfg.Reviews.CustomerRoleName)
	cfg.Reviews.ChannelID = envString("REVIEWS_CHANNEL_ID", cfg.Reviews.ChannelID)
	cfg.Reviews.MaxImageBytes = envInt("REVIEWS_MAX_IMAGE_BYTES", cfg.Reviews.MaxImageBytes)
	cfg.Moderation.MaxMuteSeconds = envInt("MAX_MUTE_SECONDS", cfg.Moderation.MaxMuteSeconds)
	cfg.Tickets.CategoryName = envString("TICKETS_CATEGORY_NAME", cfg.Tickets.CategoryName)
	cfg.Notifications.ModLogChannel = envString("MOD_LOG_CHANNEL", cfg.Notifications.ModLogChannel)
	cfg.Notifications.WelcomeDMEnabled = envBool("WELCOME_DM_ENABLED", cfg.Notifications.WelcomeDMEnabled)
	cfg.Notifications.EmbedColors.Action = envInt("EMBED_COLOR_ACTION", cfg.Notifications.EmbedColors.Action)
	cfg.Notifications.EmbedColors.Warning = envInt("EMBED_COLOR_WARNING", cfg.Notifications.EmbedColors.Warning)
	cfg.Notifications.EmbedColors.Error = envInt("EMBED_COLOR_ERROR", cfg.Notifications.EmbedColors.Error)
	cfg.Notifications.EmbedColors.Success = envInt("EMBED_COLOR_SUCCESS", cfg.Notifications.EmbedColors.Success)
	cfg.Notifications.EmbedColors.Brand = envInt("EMBED_COLOR_BRAND", cfg.Notifications.EmbedColors.Brand)
}

// normalize replaces non-positive limits with their defaults.
func normalize(cfg *Config) {
	defaults := DefaultConfig()
	positive := func(value *int, fallback int) {
		if *value <= 0 {
			*value = fallback
		}
	}
	positive(&cfg.AntiSpam.MessageLimit, defaults.AntiSpam.MessageLimit)
	positive(&cfg.AntiSpam.WindowSeconds, defaults.AntiSpam.WindowSeconds)
	positive(&cfg.AntiSpam.WarningThreshold, defaults.AntiSpam.WarningThreshold)
	positive(&cfg.AntiSpam.TimeoutSeconds, defaults.AntiSpam.TimeoutSeconds)
	positive(&cfg.Giveaway.SweepIntervalSeconds, defaults.Giveaway.SweepIntervalSeconds)
	positive(&cfg.Verification.TTLMinutes, defaults.Verification.TTLMinutes)
	positive(&cfg.Reviews.MaxImageBytes, defaults.Reviews.MaxImageBytes)
	positive(&cfg.Reviews.DraftTTLSeconds, defaults.Reviews.DraftTTLSeconds)
	positive(&cfg.Moderation.MaxMuteSeconds, defaults.Moderation.MaxMuteSeconds)
	positive(&cfg.HTTP.Burst, defaults.HTTP.Burst)
	if cfg.HTTP.RateLimit <= 0 {
		cfg.HTTP.RateLimit = defaults.HTTP.RateLimit
	}
	if len(cfg.OAuth.Scopes) == 0 {
		cfg.OAuth.Scopes = defaults.OAuth.Scopes
	}
	if strings.TrimSpace(cfg.Verification.RoleName) == "" {
		cfg.Verification.RoleName = defaults.Verification.RoleName
	}
	if strings.TrimSpace(cfg.Tickets.CategoryName) == "" {
		cfg.Tickets.CategoryName = defaults.Tickets.CategoryName
	}
}

func (c AntiSpamConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

func (c AntiSpamConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Enabled reports whether enough OAuth settings are present to run the
// verification handshake.
func (c OAuthConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

func (c OAuthConfig) OAuth2() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://discord.com/oauth2/authorize",
			TokenURL:  "https://discord.com/api/oauth2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
