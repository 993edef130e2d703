package config

import (
	"errors"
	"io/fs"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Хранилища журнала кликов
const (
	ClickStorePostgres   = "postgres"
	ClickStoreClickHouse = "clickhouse"
)

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	ClickHouse ClickHouseConfig
	Clicks     ClickLogConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Pixel      PixelConfig
}

type AppConfig struct {
	Port         string
	BaseURL      string
	TimeZone     string
	FallbackPath string
	CORSOrigins  []string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
}

type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

type ClickLogConfig struct {
	Store            string
	Partitions       []string // дополнительные партиции, которые читаются помимо обнаруженных
	FetchTimeout     time.Duration
	FetchConcurrency int
	MaintenanceCron  string
}

type AuthConfig struct {
	APIKeys           map[string]string // API key -> name/description
	AdminUsername     string
	AdminPasswordHash string
	JWTSecret         string
	JWTTTL            time.Duration
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

type PixelConfig struct {
	EventsEndpoint string
	AccessToken    string
	Timeout        time.Duration
	MaxAttempts    int
}

// Location возвращает часовой пояс отчётов
func (c AppConfig) Location() *time.Location {
	if c.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load читает конфиг из .env в рабочей директории и переменных окружения
func Load() (*Config, error) {
	return LoadFrom(".env")
}

// LoadFrom читает конфиг из указанного файла. Отсутствие файла не является ошибкой.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			return nil, err
		}
	}

	var cfg Config
	cfg.App.Port = v.GetString("APP_PORT")
	cfg.App.BaseURL = strings.TrimRight(v.GetString("APP_BASE_URL"), "/")
	cfg.App.TimeZone = v.GetString("APP_TIMEZONE")
	cfg.App.FallbackPath = v.GetString("FALLBACK_PATH")
	cfg.App.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetString("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.Name = v.GetString("DB_NAME")
	cfg.DB.SSLMode = v.GetString("DB_SSLMODE")
	cfg.DB.MaxConns = v.GetInt32("DB_MAX_CONNS")
	cfg.DB.MinConns = v.GetInt32("DB_MIN_CONNS")

	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetString("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Redis.PoolSize = v.GetInt("REDIS_POOL_SIZE")

	cfg.ClickHouse.Host = v.GetString("CLICKHOUSE_HOST")
	cfg.ClickHouse.Port = v.GetString("CLICKHOUSE_PORT")
	cfg.ClickHouse.Database = v.GetString("CLICKHOUSE_DB")
	cfg.ClickHouse.User = v.GetString("CLICKHOUSE_USER")
	cfg.ClickHouse.Password = v.GetString("CLICKHOUSE_PASSWORD")

	cfg.Clicks.Store = strings.ToLower(v.GetString("CLICK_STORE"))
	if cfg.Clicks.Store != ClickStoreClickHouse {
		cfg.Clicks.Store = ClickStorePostgres
	}
	cfg.Clicks.Partitions = splitList(v.GetString("CLICK_PARTITIONS"))
	sort.Strings(cfg.Clicks.Partitions)
	cfg.Clicks.FetchTimeout = v.GetDuration("PARTITION_FETCH_TIMEOUT")
	cfg.Clicks.FetchConcurrency = v.GetInt("PARTITION_FETCH_CONCURRENCY")
	if cfg.Clicks.FetchConcurrency < 1 {
		cfg.Clicks.FetchConcurrency = 1
	}
	cfg.Clicks.MaintenanceCron = v.GetString("PARTITION_CRON")

	// Auth config - parse API keys from comma-separated string
	// Format: key1:name1,key2:name2
	cfg.Auth.APIKeys = parseAPIKeys(v.GetString("API_KEYS"))
	cfg.Auth.AdminUsername = v.GetString("ADMIN_USERNAME")
	cfg.Auth.AdminPasswordHash = v.GetString("ADMIN_PASSWORD_HASH")
	cfg.Auth.JWTSecret = v.GetString("JWT_SECRET")
	cfg.Auth.JWTTTL = v.GetDuration("JWT_TTL")

	cfg.RateLimit.RequestsPerSecond = v.GetFloat64("RATE_LIMIT_RPS")
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	cfg.RateLimit.BurstSize = v.GetInt("RATE_LIMIT_BURST")
	if cfg.RateLimit.BurstSize == 0 {
		cfg.RateLimit.BurstSize = 20
	}

	cfg.Pixel.EventsEndpoint = v.GetString("PIXEL_EVENTS_ENDPOINT")
	cfg.Pixel.AccessToken = v.GetString("PIXEL_ACCESS_TOKEN")
	cfg.Pixel.Timeout = v.GetDuration("PIXEL_TIMEOUT")
	cfg.Pixel.MaxAttempts = v.GetInt("PIXEL_MAX_ATTEMPTS")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")
	v.SetDefault("APP_TIMEZONE", "Asia/Tokyo")
	v.SetDefault("FALLBACK_PATH", "/")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 25)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_POOL_SIZE", 50)
	v.SetDefault("CLICK_STORE", ClickStorePostgres)
	v.SetDefault("CLICKHOUSE_PORT", "9000")
	v.SetDefault("CLICKHOUSE_DB", "default")
	v.SetDefault("PARTITION_FETCH_TIMEOUT", "10s")
	v.SetDefault("PARTITION_FETCH_CONCURRENCY", 4)
	v.SetDefault("PARTITION_CRON", "0 3 25 * *")
	v.SetDefault("JWT_TTL", "12h")
	v.SetDefault("PIXEL_TIMEOUT", "2s")
	v.SetDefault("PIXEL_MAX_ATTEMPTS", 3)
}

// parseAPIKeys parses comma-separated API keys in format "key1:name1,key2:name2"
func parseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	if raw == "" {
		return keys
	}

	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	return keys
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
