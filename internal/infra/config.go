package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultBaseURL: локальный бэкенд разработчика, если в конфиге ничего нет.
const DefaultBaseURL = "http://localhost:8000"

// Config: корневая структура конфигурации консоли.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Poll     PollConfig     `mapstructure:"poll"`
	Gates    GatesConfig    `mapstructure:"gates"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	DevAPI   DevAPIConfig   `mapstructure:"devapi"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// APIConfig передается в apiclient.New явно, клиент не читает окружение сам.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`

	// Ограничение частоты запросов со всех панелей вместе
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`

	// Настройки Circuit Breaker для бэкенда
	CBMaxRequests uint32        `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
	CBFailures    uint32        `mapstructure:"cb_failures"`
}

// AuthConfig: учетные данные оператора (клиент) и ключи RS256 (devapi).
type AuthConfig struct {
	Token         string `mapstructure:"token"` // Готовый bearer, если логин не нужен
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	LoginAttempts uint   `mapstructure:"login_attempts"`

	PublicKeyPath  string        `mapstructure:"public_key_path"`
	PrivateKeyPath string        `mapstructure:"private_key_path"` // Только для devapi
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	PublicKey      []byte
	PrivateKey     []byte
}

type PollConfig struct {
	Alerts     time.Duration `mapstructure:"alerts"`
	Gates      time.Duration `mapstructure:"gates"`
	Strategies time.Duration `mapstructure:"strategies"`
}

// GatesConfig. EmptyStatus: что показывать, если у исполнения нет ни одного гейта.
type GatesConfig struct {
	EmptyStatus string `mapstructure:"empty_status"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // пусто: /metrics не поднимаем
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// DevAPIConfig: настройки локального бэкенда для разработки и e2e.
type DevAPIConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// bcrypt-хэш пароля оператора
	PasswordHash string `mapstructure:"password_hash"`
}

// RedisConfig: если Addr пустой, devapi хранит состояние в памяти.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PostgresConfig: постоянное хранилище devapi. Важнее Redis, если заданы оба.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
// Если path не пустой, читается именно этот файл.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// API_BASE_URL=https://... перекроет api.base_url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет, работаем на ENV и дефолтах
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if strings.TrimSpace(cfg.API.BaseURL) == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")
	cfg.Auth.PrivateKey = loadKeyResource(cfg.Auth.PrivateKeyPath, "AUTH_PRIVATE_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", DefaultBaseURL)
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.rate_limit", 20.0)
	v.SetDefault("api.rate_burst", 10)
	v.SetDefault("api.cb_max_requests", 3)
	v.SetDefault("api.cb_interval", 5*time.Second)
	v.SetDefault("api.cb_timeout", 30*time.Second)
	v.SetDefault("api.cb_failures", 5)

	// пустые значения нужны, чтобы viper увидел AUTH_TOKEN, REDIS_ADDR и т.п. без файла
	for _, key := range []string{
		"auth.token", "auth.username", "auth.password", "auth.public_key_path", "auth.private_key_path",
		"metrics.addr", "devapi.password_hash", "redis.addr", "redis.password", "postgres.dsn",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.login_attempts", 3)
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("poll.alerts", 30*time.Second)
	v.SetDefault("poll.gates", 5*time.Second)
	v.SetDefault("poll.strategies", time.Minute)

	v.SetDefault("gates.empty_status", "PASSED")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("devapi.addr", ":8000")
	v.SetDefault("devapi.read_timeout", 5*time.Second)
	v.SetDefault("devapi.write_timeout", 10*time.Second)
}

// loadKeyResource: PEM из ENV (Docker/K8s) важнее файла по пути из конфига.
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
