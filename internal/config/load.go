package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every configuration environment variable,
// e.g. DRILL_DATABASE_URL.
const EnvPrefix = "DRILL"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("srs.interval_ladder_days", []int{1, 2, 4, 7, 10, 14, 20, 28, 42, 56})

	v.SetDefault("schedule.warmup_size", 5)
	v.SetDefault("schedule.sub_lesson_size", 10)
	v.SetDefault("schedule.review_intervals", []int{1, 2, 4, 7, 10, 14, 20, 28, 42, 56})
	v.SetDefault("schedule.refresh_interval", 15*time.Minute)
}

// Load reads configuration from a .env file (if present), config.yaml in
// the working directory or ./config (if present) and DRILL_ environment
// variables. Returns an error if loading or validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// FlagBindings maps configuration keys to the command-line flags that may
// override them.
var FlagBindings = map[string]string{
	"database.driver":  "driver",
	"database.url":     "database-url",
	"server.log_level": "log-level",
}

// LoadFile is like Load but reads the given config file instead of searching
// for config.yaml. An empty path searches the default locations.
func LoadFile(path string) (*Config, error) {
	return LoadWithFlags(path, nil)
}

// LoadWithFlags is like LoadFile, and flags named in FlagBindings take
// precedence over every other source when set on the command line. Flags
// missing from the set are ignored.
func LoadWithFlags(path string, flags *pflag.FlagSet) (*Config, error) {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range FlagBindings {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %q: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the struct tags of cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
