package config

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server  Server
	API     API
	Storage Storage
	Cache   Cache
}

// Server is the localhost bridge the UI shell talks to.
type Server struct {
	Port string
}

// API is the remote exam backend consumed by the engine.
type API struct {
	BaseURL        string
	RequestTimeout time.Duration
}

type Storage struct {
	// Path to the sqlite file backing the durable key-value store.
	Path string
}

type Cache struct {
	// DefaultTTL applies to cached API responses (paginated lists, test detail).
	DefaultTTL time.Duration
	// QuestionTTL applies to downloaded offline question packs.
	QuestionTTL time.Duration
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "7380")
	viper.SetDefault("API_BASE_URL", "http://localhost:8000")
	viper.SetDefault("API_REQUEST_TIMEOUT_SECONDS", 15)
	viper.SetDefault("STORAGE_PATH", "examengine.db")
	viper.SetDefault("CACHE_TTL_MINUTES", 5)
	viper.SetDefault("QUESTION_CACHE_TTL_HOURS", 168) // 7 days

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config
	config.Server.Port = viper.GetString("SERVER_PORT")
	config.API.BaseURL = viper.GetString("API_BASE_URL")
	config.API.RequestTimeout = time.Duration(viper.GetInt("API_REQUEST_TIMEOUT_SECONDS")) * time.Second
	config.Storage.Path = viper.GetString("STORAGE_PATH")
	config.Cache.DefaultTTL = time.Duration(viper.GetInt("CACHE_TTL_MINUTES")) * time.Minute
	config.Cache.QuestionTTL = time.Duration(viper.GetInt("QUESTION_CACHE_TTL_HOURS")) * time.Hour

	log.Info().Interface("config", config).Msg("Config loaded")
	return &config, nil
}
