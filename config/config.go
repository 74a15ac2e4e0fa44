package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"ShopChat/models"

	"github.com/spf13/viper"
)

type Config struct {
	Chat      ChatConfig      `mapstructure:"chat"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	DevServer DevServerConfig `mapstructure:"devserver"`
}

// ChatConfig configures the chat client.
type ChatConfig struct {
	WSURL      string `mapstructure:"ws_url"`   // channel endpoint, e.g. ws://localhost:8080/ws
	APIBaseURL string `mapstructure:"api_url"`  // side-channel base, e.g. http://localhost:8080
	LoginPath  string `mapstructure:"login_path"`
	// OptimisticLocalEcho renders sent messages before the server echoes them.
	OptimisticLocalEcho bool          `mapstructure:"optimistic_local_echo"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	Username            string        `mapstructure:"username"`
	Password            string        `mapstructure:"password"`
}

type CacheConfig struct {
	Backend string `mapstructure:"backend"` // memory, file, redis
	Path    string `mapstructure:"path"`    // file backend
	Key     string `mapstructure:"key"`     // persisted key name
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type KafkaConfig struct {
	Brokers   []string `mapstructure:"brokers"`
	Topic     string   `mapstructure:"topic"`
	GroupID   string   `mapstructure:"group_id"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Mechanism string   `mapstructure:"mechanism"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	UseTLS    bool     `mapstructure:"use_tls"`
	CertFile  string   `mapstructure:"cert_file"`
	KeyFile   string   `mapstructure:"key_file"`
	CAFile    string   `mapstructure:"ca_file"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"` // empty keeps the devserver in memory
}

type AuthConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret"`
	TokenExpiry int    `mapstructure:"token_expiry"` // in hours
}

type DevServerConfig struct {
	Addr string `mapstructure:"addr"`
	// RateLimit is requests per RateWindow per client IP; 0 disables limiting.
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
	// RateStrategy is fixed_window or token_bucket.
	RateStrategy string        `mapstructure:"rate_strategy"`
	Users        []models.User `mapstructure:"users"`
}

// LoadConfig reads path (config/config.json when empty) and applies
// SHOPCHAT_* environment overrides, e.g. SHOPCHAT_CHAT_WS_URL. A missing
// file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		path = "config/config.json"
	}
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetEnvPrefix("shopchat")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chat.ws_url", "ws://localhost:8080/ws")
	v.SetDefault("chat.api_url", "http://localhost:8080")
	v.SetDefault("chat.login_path", "/login")
	v.SetDefault("chat.optimistic_local_echo", false)
	v.SetDefault("chat.request_timeout", 10*time.Second)
	v.SetDefault("chat.username", "")
	v.SetDefault("chat.password", "")
	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.path", ".shopchat/session.json")
	v.SetDefault("cache.key", "currentChatID")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "")
	v.SetDefault("kafka.group_id", "shopchat-audit")
	v.SetDefault("kafka.mechanism", "PLAIN")
	v.SetDefault("database.dsn", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_expiry", 24)
	v.SetDefault("devserver.addr", ":8080")
	v.SetDefault("devserver.rate_limit", 0)
	v.SetDefault("devserver.rate_window", time.Minute)
	v.SetDefault("devserver.rate_strategy", "fixed_window")
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "memory", "file", "redis":
	default:
		return errors.New("cache.backend must be one of memory, file, redis")
	}
	if c.Cache.Backend == "file" && c.Cache.Path == "" {
		return errors.New("cache.path is required for the file backend")
	}
	if c.Chat.WSURL == "" {
		return errors.New("chat.ws_url is required")
	}
	if c.Chat.RequestTimeout <= 0 {
		return errors.New("chat.request_timeout must be positive")
	}
	return nil
}
