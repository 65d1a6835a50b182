package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultChatWebhookURL             = "https://n8n.shopchat.app/webhook/chat"
	DefaultSaveConversationWebhookURL = "https://n8n.shopchat.app/webhook/save-conversation"
	DefaultStorefrontOrigin           = "https://shopchat-demo.myshopify.com"
	ShopifyCDNOrigin                  = "https://cdn.shopify.com"
)

type Config struct {
	Server    ServerConfig    `json:"server" mapstructure:"server"`
	Database  DatabaseConfig  `json:"database" mapstructure:"database"`
	Webhook   WebhookConfig   `json:"webhook" mapstructure:"webhook"`
	Bridge    BridgeConfig    `json:"bridge" mapstructure:"bridge"`
	Analytics AnalyticsConfig `json:"analytics" mapstructure:"analytics"`
	Log       LogConfig       `json:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

type DatabaseConfig struct {
	// Driver is "postgres" (lib/pq) or "pgx" (jackc/pgx stdlib).
	Driver   string `json:"driver" mapstructure:"driver"`
	URL      string `json:"url" mapstructure:"url"`
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	User     string `json:"user" mapstructure:"user"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"sslmode" mapstructure:"sslmode"`
}

type WebhookConfig struct {
	ChatURL             string        `json:"chat_url" mapstructure:"chat_url"`
	SaveConversationURL string        `json:"save_conversation_url" mapstructure:"save_conversation_url"`
	TestURLs            []string      `json:"test_urls" mapstructure:"test_urls"`
	Timeout             time.Duration `json:"timeout" mapstructure:"timeout"`
	// AllowedHosts restricts client supplied webhookUrl values. Empty allows any host.
	AllowedHosts []string `json:"allowed_hosts" mapstructure:"allowed_hosts"`
}

type BridgeConfig struct {
	AllowedOrigins    []string      `json:"allowed_origins" mapstructure:"allowed_origins"`
	HandshakeAttempts int           `json:"handshake_attempts" mapstructure:"handshake_attempts"`
	HandshakeInterval time.Duration `json:"handshake_interval" mapstructure:"handshake_interval"`
	RequestTimeout    time.Duration `json:"request_timeout" mapstructure:"request_timeout"`
	SessionWait       time.Duration `json:"session_wait" mapstructure:"session_wait"`
}

type AnalyticsConfig struct {
	// Store is "memory" (volatile, non-production) or "postgres".
	Store     string `json:"store" mapstructure:"store"`
	MaxEvents int    `json:"max_events" mapstructure:"max_events"`
}

type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

// ErrNoDatabase is returned when no store credentials were configured.
var ErrNoDatabase = errors.New("database is not configured: set DATABASE_URL or POSTGRES_HOST")

// Load reads the configuration and validates what the server needs.
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadBridge reads only the bridge settings. Tools that speak the bridge
// protocol need no store credentials.
func LoadBridge() (BridgeConfig, error) {
	cfg, err := read()
	if err != nil {
		return BridgeConfig{}, err
	}
	return cfg.Bridge, nil
}

func read() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".shopchat"))
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvOverrides(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "require")
	v.SetDefault("webhook.chat_url", DefaultChatWebhookURL)
	v.SetDefault("webhook.save_conversation_url", DefaultSaveConversationWebhookURL)
	v.SetDefault("webhook.timeout", 10*time.Second)
	v.SetDefault("bridge.allowed_origins", []string{DefaultStorefrontOrigin, ShopifyCDNOrigin})
	v.SetDefault("bridge.handshake_attempts", 5)
	v.SetDefault("bridge.handshake_interval", 2*time.Second)
	v.SetDefault("bridge.request_timeout", 10*time.Second)
	v.SetDefault("bridge.session_wait", 5*time.Second)
	v.SetDefault("analytics.store", "memory")
	v.SetDefault("analytics.max_events", 10000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func loadEnvOverrides(cfg *Config) {
	if port := os.Getenv("SHOPCHAT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if host := os.Getenv("SHOPCHAT_HOST"); host != "" {
		cfg.Server.Host = host
	}

	// Supabase exposes its Postgres connection string under either name.
	if url := firstEnv("DATABASE_URL", "SUPABASE_DB_URL"); url != "" {
		cfg.Database.URL = url
	}
	if driver := os.Getenv("SHOPCHAT_DB_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}
	if dbHost := os.Getenv("POSTGRES_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("POSTGRES_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			cfg.Database.Port = port
		}
	}
	if dbUser := os.Getenv("POSTGRES_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPass := os.Getenv("POSTGRES_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if dbName := os.Getenv("POSTGRES_DB"); dbName != "" {
		cfg.Database.Database = dbName
	}
	if sslMode := os.Getenv("POSTGRES_SSLMODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}

	if url := os.Getenv("N8N_WEBHOOK_URL"); url != "" {
		cfg.Webhook.ChatURL = url
	}
	if url := os.Getenv("N8N_SAVE_CONVERSATION_URL"); url != "" {
		cfg.Webhook.SaveConversationURL = url
	}
	if urls := os.Getenv("N8N_TEST_WEBHOOK_URLS"); urls != "" {
		cfg.Webhook.TestURLs = splitList(urls)
	}
	if hosts := os.Getenv("SHOPCHAT_WEBHOOK_ALLOWED_HOSTS"); hosts != "" {
		cfg.Webhook.AllowedHosts = splitList(hosts)
	}
	if origins := os.Getenv("SHOPCHAT_ALLOWED_ORIGINS"); origins != "" {
		cfg.Bridge.AllowedOrigins = splitList(origins)
	}

	if store := os.Getenv("SHOPCHAT_ANALYTICS_STORE"); store != "" {
		cfg.Analytics.Store = store
	}
	if level := os.Getenv("SHOPCHAT_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if format := os.Getenv("SHOPCHAT_LOG_FORMAT"); format != "" {
		cfg.Log.Format = format
	}
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Database.URL == "" && c.Database.Host == "" {
		return ErrNoDatabase
	}
	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		return errors.New("database.driver must be 'postgres' or 'pgx'")
	}
	switch c.Analytics.Store {
	case "memory", "postgres":
	default:
		return errors.New("analytics.store must be 'memory' or 'postgres'")
	}
	if c.Webhook.Timeout <= 0 {
		c.Webhook.Timeout = 10 * time.Second
	}
	if c.Bridge.HandshakeAttempts <= 0 {
		c.Bridge.HandshakeAttempts = 5
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// WebhookURLs lists every configured automation endpoint without duplicates.
func (c *Config) WebhookURLs() []string {
	seen := make(map[string]bool)
	var urls []string
	for _, u := range append([]string{c.Webhook.ChatURL, c.Webhook.SaveConversationURL}, c.Webhook.TestURLs...) {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
