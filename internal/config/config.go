// Package config handles loading and validating the civicbot configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the civicbot daemon.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Transports    TransportsConfig    `mapstructure:"transports"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Translation   TranslationConfig   `mapstructure:"translation"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Hazard        HazardConfig        `mapstructure:"hazard"`
	Monitor       MonitorConfig       `mapstructure:"monitor"`
	Notify        NotifyConfig        `mapstructure:"notify"`
	Chat          ChatConfig          `mapstructure:"chat"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP/SSE transport.
type HTTPConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Port         int      `mapstructure:"port"`
	AllowOrigins []string `mapstructure:"allow_origins"`
	MaxAudioMB   int      `mapstructure:"max_audio_mb"`
}

// LLMConfig configures the hosted chat-completion endpoint.
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// TranslationConfig selects and configures the translator.
type TranslationConfig struct {
	Backend  string        `mapstructure:"backend"` // "google" or "none"
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TranscriptionConfig configures the speech-to-text endpoint.
type TranscriptionConfig struct {
	Backend       string        `mapstructure:"backend"` // "openai" (default) or "asr" (ahmetoner/whisper-asr-webservice)
	Endpoint      string        `mapstructure:"endpoint"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	FallbackModel string        `mapstructure:"fallback_model"`
	Language      string        `mapstructure:"language"` // ISO-639-1 hint, empty for auto-detect
	Timeout       time.Duration `mapstructure:"timeout"`
}

// HazardConfig configures the NWS and OpenFEMA feeds.
type HazardConfig struct {
	Region       string        `mapstructure:"region"` // two-letter state code
	AlertsURL    string        `mapstructure:"alerts_url"`
	DisastersURL string        `mapstructure:"disasters_url"`
	UserAgent    string        `mapstructure:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// MonitorConfig configures the background hazard monitor.
type MonitorConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"` // cron expression or descriptor, e.g. "@every 30m"
	Dedupe   bool   `mapstructure:"dedupe"`
}

// NotifyConfig holds the notifier channels used by the monitor.
type NotifyConfig struct {
	SMS     SMSConfig     `mapstructure:"sms"`
	Slack   SlackConfig   `mapstructure:"slack"`
	Discord DiscordConfig `mapstructure:"discord"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
}

// SMSConfig holds Twilio credentials and phone numbers.
type SMSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	APIKeySID  string `mapstructure:"api_key_sid"` // optional; when set, AuthToken is the API key secret
	From       string `mapstructure:"from"`
	To         string `mapstructure:"to"`
}

// SlackConfig configures the Slack incoming-webhook notifier.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
}

// DiscordConfig configures the Discord bot notifier.
type DiscordConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BotToken  string `mapstructure:"bot_token"`
	ChannelID string `mapstructure:"channel_id"`
}

// MQTTConfig configures the MQTT notifier.
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
}

// ChatConfig holds session settings.
type ChatConfig struct {
	PivotLanguage string        `mapstructure:"pivot_language"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./civicbot.yaml, ./configs/civicbot.yaml, /etc/civicbot/civicbot.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("civicbot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/civicbot")
	}

	// Environment variables: CIVICBOT_LLM_MODEL, CIVICBOT_MONITOR_ENABLED, etc.
	v.SetEnvPrefix("CIVICBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The config file is optional; env vars and defaults are sufficient.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.resolveSecrets()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", true)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.http.allow_origins", []string{"*"})
	v.SetDefault("transports.http.max_audio_mb", 25)

	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.api_key", "${GROQ_API_KEY}")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout", "60s")

	v.SetDefault("translation.backend", "google")
	v.SetDefault("translation.endpoint", "https://translate.googleapis.com/translate_a/single")
	v.SetDefault("translation.timeout", "15s")

	v.SetDefault("transcription.backend", "openai")
	v.SetDefault("transcription.endpoint", "https://api.groq.com/openai/v1/audio/transcriptions")
	v.SetDefault("transcription.api_key", "${GROQ_API_KEY}")
	v.SetDefault("transcription.model", "whisper-large-v3")
	v.SetDefault("transcription.fallback_model", "whisper-large-v3-turbo")
	v.SetDefault("transcription.language", "")
	v.SetDefault("transcription.timeout", "120s")

	v.SetDefault("hazard.region", "IN")
	v.SetDefault("hazard.alerts_url", "https://api.weather.gov/alerts/active")
	v.SetDefault("hazard.disasters_url", "https://www.fema.gov/api/open/v2/DisasterDeclarationsSummaries")
	v.SetDefault("hazard.user_agent", "civicbot (hazard alerts)")
	v.SetDefault("hazard.timeout", "10s")

	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.schedule", "@every 30m")
	v.SetDefault("monitor.dedupe", false)

	v.SetDefault("notify.sms.enabled", true)
	v.SetDefault("notify.sms.account_sid", "${TWILIO_ACCOUNT_SID}")
	v.SetDefault("notify.sms.auth_token", "${TWILIO_AUTH_TOKEN}")
	v.SetDefault("notify.sms.api_key_sid", "${TWILIO_API_KEY_SID}")
	v.SetDefault("notify.sms.from", "${TWILIO_FROM_NUMBER}")
	v.SetDefault("notify.sms.to", "${TWILIO_TO_NUMBER}")
	v.SetDefault("notify.slack.enabled", false)
	v.SetDefault("notify.slack.webhook_url", "${SLACK_WEBHOOK_URL}")
	v.SetDefault("notify.discord.enabled", false)
	v.SetDefault("notify.discord.bot_token", "${DISCORD_BOT_TOKEN}")
	v.SetDefault("notify.mqtt.enabled", false)
	v.SetDefault("notify.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("notify.mqtt.topic", "civicbot/hazards")
	v.SetDefault("notify.mqtt.client_id", "civicbot")

	v.SetDefault("chat.pivot_language", "en")
	v.SetDefault("chat.session_ttl", "24h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// resolveSecrets expands "${VAR}" references in credential fields.
func (c *Config) resolveSecrets() {
	for _, p := range []*string{
		&c.LLM.APIKey,
		&c.Transcription.APIKey,
		&c.Notify.SMS.AccountSID,
		&c.Notify.SMS.AuthToken,
		&c.Notify.SMS.APIKeySID,
		&c.Notify.SMS.From,
		&c.Notify.SMS.To,
		&c.Notify.Slack.WebhookURL,
		&c.Notify.Discord.BotToken,
	} {
		*p = resolveEnvRef(*p)
	}
}

// validate checks settings that would otherwise fail late and obscurely.
// Missing credentials are deliberately not checked: they fail at call time.
func (c *Config) validate() error {
	switch c.Translation.Backend {
	case "google", "none":
	default:
		return fmt.Errorf("config: unknown translation backend %q", c.Translation.Backend)
	}
	switch c.Transcription.Backend {
	case "openai", "asr":
	default:
		return fmt.Errorf("config: unknown transcription backend %q", c.Transcription.Backend)
	}
	if c.Hazard.Timeout <= 0 {
		return fmt.Errorf("config: hazard.timeout must be positive")
	}
	if len(c.Hazard.Region) != 2 {
		return fmt.Errorf("config: hazard.region must be a two-letter state code, got %q", c.Hazard.Region)
	}
	if c.Monitor.Enabled && c.Monitor.Schedule == "" {
		return fmt.Errorf("config: monitor.schedule is required when the monitor is enabled")
	}
	return nil
}

// resolveEnvRef replaces a "${VAR_NAME}" value with the corresponding env var.
// An unset variable resolves to the empty string.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return os.Getenv(val[2 : len(val)-1])
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
