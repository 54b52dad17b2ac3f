package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"data/geminibot.db"`

	GeminiAPIKey      string `env:"GEMINI_API_KEY,required"`
	GeminiBaseURL     string `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta/openai"`
	GeminiModel       string `env:"GEMINI_MODEL" envDefault:"gemini-flash-latest"`
	GeminiVisionModel string `env:"GEMINI_VISION_MODEL" envDefault:"gemini-pro-vision"`

	SafetySettingsPath  string `env:"SAFETY_SETTINGS_PATH" envDefault:"safety_settings.json"`
	Language            string `env:"LANGUAGE" envDefault:"en"`
	ModelTimeoutSeconds int    `env:"MODEL_TIMEOUT_SECONDS" envDefault:"60"`
	HistoryPageSize     int    `env:"HISTORY_PAGE_SIZE" envDefault:"5"`

	RedisAddr              string `env:"REDIS_ADDR"`
	RedisPassword          string `env:"REDIS_PASSWORD"`
	RedisDB                int    `env:"REDIS_DB" envDefault:"0"`
	RateLimitWindowSeconds int    `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`
	RateLimitMax           int    `env:"RATE_LIMIT_MAX" envDefault:"20"`

	OpsJWTSecret       string `env:"OPS_JWT_SECRET"`
	OpsTokenTTLMinutes int    `env:"OPS_TOKEN_TTL_MINUTES" envDefault:"60"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
