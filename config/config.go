package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

// Config 进程配置，来源依次为 .env 文件、环境变量、默认值
type Config struct {
	Addr      string
	LogFile   string
	LogLevel  string
	LogStdout bool

	// Store postgres | memory | none
	Store       string
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	DefaultMaxPlayers int
	WorldWidth        float64
	WorldHeight       float64
	HostPolicy        string
	SweepInterval     time.Duration
	EmptySessionTTL   time.Duration
	SendQueueSize     int
}

// Load 读取配置。缺少 .env 不算错误；格式错误的变量全部收集后一起返回。
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var errs error
	c := &Config{
		Addr:        GetEnv("ADDR", ":8080"),
		LogFile:     GetEnv("LOG_FILE", "logs/astroarena.log"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		Store:       strings.ToLower(GetEnv("STORE", "memory")),
		DatabaseURL: GetEnv("DATABASE_URL", ""),
		DBHost:      GetEnv("DB_HOST", "localhost"),
		DBPort:      GetEnv("DB_PORT", "5432"),
		DBUser:      GetEnv("DB_USER", "astro"),
		DBPassword:  GetEnv("DB_PASSWORD", "astro"),
		DBName:      GetEnv("DB_NAME", "astroarena"),
		HostPolicy:  strings.ToLower(GetEnv("HOST_POLICY", "promote")),
	}
	c.LogStdout = parseBool("LOG_STDOUT", false, &errs)
	c.DefaultMaxPlayers = parseInt("DEFAULT_MAX_PLAYERS", 4, &errs)
	c.WorldWidth = parseFloat("WORLD_WIDTH", 2000, &errs)
	c.WorldHeight = parseFloat("WORLD_HEIGHT", 1500, &errs)
	c.SweepInterval = parseDuration("SWEEP_INTERVAL", time.Minute, &errs)
	c.EmptySessionTTL = parseDuration("EMPTY_SESSION_TTL", 10*time.Minute, &errs)
	c.SendQueueSize = parseInt("SEND_QUEUE_SIZE", 64, &errs)

	switch c.Store {
	case "postgres", "memory", "none":
	default:
		errs = multierr.Append(errs, fmt.Errorf("STORE: unknown store %q", c.Store))
	}
	switch c.HostPolicy {
	case "promote", "teardown":
	default:
		errs = multierr.Append(errs, fmt.Errorf("HOST_POLICY: unknown policy %q", c.HostPolicy))
	}
	if errs != nil {
		return nil, errs
	}
	return c, nil
}

// DSN postgres 连接串；DATABASE_URL 优先
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

// GetEnv returns the value of the environment variable named by the key,
// or fallback if the variable is not set.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func parseInt(key string, def int, errs *error) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = multierr.Append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func parseFloat(key string, def float64, errs *error) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = multierr.Append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func parseBool(key string, def bool, errs *error) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = multierr.Append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func parseDuration(key string, def time.Duration, errs *error) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = multierr.Append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
