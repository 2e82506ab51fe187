package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Mongo      MongoConfig
	Redis      RedisConfig
	Freepik    FreepikConfig
	OpenAI     OpenAIConfig
	Weaviate   WeaviateConfig
	Credits    CreditsConfig
	Generation GenerationConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=autoscape"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

type FreepikConfig struct {
	APIKey  string `env:"FREEPIK_API_KEY"`
	BaseURL string `env:"FREEPIK_BASE_URL, default=https://api.freepik.com"`
}

type OpenAIConfig struct {
	APIKey string `env:"OPENAI_API_KEY"`
	Model  string `env:"OPENAI_MODEL, default=gpt-4o-mini"`
}

type WeaviateConfig struct {
	Host   string `env:"WEAVIATE_HOST"`
	Scheme string `env:"WEAVIATE_SCHEME, default=http"`
}

type CreditsConfig struct {
	// AnonAllowance is the fixed number of free generations per anonymous device.
	AnonAllowance int `env:"ANON_ALLOWANCE, default=2"`
	// SignupGrant is the starting balance for new accounts.
	SignupGrant int `env:"SIGNUP_GRANT, default=3"`
}

type GenerationConfig struct {
	// Timeout is the ceiling on one external generation call; on expiry the
	// flow is treated as failed and the credit refunded.
	Timeout      time.Duration `env:"GENERATION_TIMEOUT, default=60s"`
	VideoWorkers int           `env:"VIDEO_WORKERS, default=4"`
	// HandoffTTL bounds how long an unpersisted result survives in the
	// session hand-off cache.
	HandoffTTL time.Duration `env:"HANDOFF_TTL, default=24h"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
