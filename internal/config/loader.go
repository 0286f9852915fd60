package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix  = "TRANSMAIL"
	configName = "transmail"
)

// configPaths are searched in order when no explicit file is given.
var configPaths = []string{
	".",
	"./configs",
}

// dotEnvPaths are candidate .env locations, loaded best-effort before viper
// reads the environment. Existing process variables always win.
var dotEnvPaths = []string{
	".env",
	"./configs/.env",
}

// Load reads configuration from path, or searches the default locations when
// path is empty. A missing file in the search case is fine: defaults plus
// environment variables make a complete config. An explicit path that cannot
// be read is an error.
func Load(path string) (*Config, error) {
	loadDotEnv()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		for _, p := range configPaths {
			v.AddConfigPath(p)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func loadDotEnv() {
	for _, path := range dotEnvPaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
}

// setDefaults registers every scalar key. AutomaticEnv only surfaces keys
// viper already knows about, so a key without a default would be invisible
// to environment-only configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database_path", "transmail.db")
	v.SetDefault("lookback_days", 30)

	v.SetDefault("gmail.credentials_file", "credentials.json")
	v.SetDefault("gmail.token_file", "token.json")

	v.SetDefault("ledger.base_url", "")
	v.SetDefault("ledger.token", "")
	v.SetDefault("ledger.budget_id", "")

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.initial_interval", "500ms")
	v.SetDefault("retry.max_interval", "15s")
	v.SetDefault("retry.multiplier", 2.0)
}
