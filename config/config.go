package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
type Config struct {
	ListenAddr    string `mapstructure:"listen_addr"`
	CORSOrigins   string `mapstructure:"cors_origins"`
	GamesRoot     string `mapstructure:"games_root"`
	OpenAIAPIKey  string `mapstructure:"openai_api_key"`
	ModelName     string `mapstructure:"model_name"`
	TellmURL      string `mapstructure:"tellm_url"`
	TscBin        string `mapstructure:"tsc_bin"`
	SoundStockDir string `mapstructure:"sound_stock_dir"`
	LogLevel      string `mapstructure:"log_level"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:   ":8000",
		CORSOrigins:  "http://localhost:3000,http://localhost:8080",
		GamesRoot:    "games",
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		ModelName:    "gpt-4o-mini",
		TscBin:       "tsc",
		LogLevel:     "info",
	}
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".gamesmith"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; defaults and env still apply
	}

	// Environment variables
	v.SetEnvPrefix("GAMESMITH")
	v.AutomaticEnv()
	v.BindEnv("openai_api_key", "OPENAI_API_KEY")
	v.BindEnv("cors_origins", "CORS_ORIGINS")

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

func validateConfig(config *Config) error {
	if config.OpenAIAPIKey == "" {
		return fmt.Errorf("OpenAI API key is required")
	}
	if config.GamesRoot == "" {
		return fmt.Errorf("games root directory is required")
	}
	return nil
}
