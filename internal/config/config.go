package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Logger  LoggerConfig
	Trivia  TriviaConfig
	Quiz    QuizConfig
	Session SessionConfig
	Redis   RedisConfig
	Records RecordsConfig

	// File is the absolute path of the config file that was read, if any
	File string
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LoggerConfig struct {
	Env   string
	Level string
}

// TriviaConfig points at the remote question source
type TriviaConfig struct {
	BaseURL string
	Timeout time.Duration
}

// QuizConfig holds the gameplay timing knobs
type QuizConfig struct {
	TickInterval time.Duration
	Seed         int64
}

// SessionConfig controls how long idle HTTP sessions live
type SessionConfig struct {
	IdleTTL         time.Duration
	JanitorInterval time.Duration
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// RecordsConfig controls the persisted game-record log
type RecordsConfig struct {
	TTL time.Duration
}

// Enabled reports whether a Redis address was configured
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "20s")
	v.SetDefault("server.write_timeout", "20s")

	v.SetDefault("logger.env", "development")
	v.SetDefault("logger.level", "info")

	v.SetDefault("trivia.base_url", "https://opentdb.com/api.php")
	v.SetDefault("trivia.timeout", "8s")

	v.SetDefault("quiz.tick_interval", "1s")
	v.SetDefault("quiz.seed", 0)

	v.SetDefault("session.idle_ttl", "30m")
	v.SetDefault("session.janitor_interval", "1m")

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("records.ttl", "720h")
}

// LoadConfig reads config.yaml from the usual locations. The file is optional;
// every key has a default and can be overridden with a TRIVIA_ prefixed variable.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Add config paths based on environment
	if os.Getenv("ENV") == "test" {
		v.AddConfigPath("../../config")
		v.AddConfigPath("../../")
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	return load(v)
}

// LoadConfigFile reads an explicit config file path
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("TRIVIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The logger is not initialized yet; callers log File once it is
	var usedFile string
	if configFile := v.ConfigFileUsed(); configFile != "" {
		usedFile, _ = filepath.Abs(configFile)
	}

	config := &Config{
		Server: ServerConfig{
			Port:         v.GetInt("server.port"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Logger: LoggerConfig{
			Env:   v.GetString("logger.env"),
			Level: v.GetString("logger.level"),
		},
		Trivia: TriviaConfig{
			BaseURL: v.GetString("trivia.base_url"),
			Timeout: v.GetDuration("trivia.timeout"),
		},
		Quiz: QuizConfig{
			TickInterval: v.GetDuration("quiz.tick_interval"),
			Seed:         v.GetInt64("quiz.seed"),
		},
		Session: SessionConfig{
			IdleTTL:         v.GetDuration("session.idle_ttl"),
			JanitorInterval: v.GetDuration("session.janitor_interval"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Records: RecordsConfig{
			TTL: v.GetDuration("records.ttl"),
		},
		File: usedFile,
	}

	// Override with environment variables if set
	if env := os.Getenv("ENV"); env != "" {
		config.Logger.Env = env
	}
	if redisAddress := os.Getenv("REDIS_ADDRESS"); redisAddress != "" {
		config.Redis.Address = redisAddress
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.Redis.Password = redisPassword
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Trivia.Timeout <= 0 {
		return fmt.Errorf("trivia.timeout must be positive")
	}
	if c.Quiz.TickInterval <= 0 {
		return fmt.Errorf("quiz.tick_interval must be positive")
	}
	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("session.idle_ttl must be positive")
	}
	if c.Session.JanitorInterval <= 0 {
		return fmt.Errorf("session.janitor_interval must be positive")
	}
	return nil
}
