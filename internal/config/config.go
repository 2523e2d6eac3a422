package config

import (
	"fmt"
	"os"
	"strconv"

	"validation-gateway/internal/domain"

	"github.com/joho/godotenv"
)

// Config representa todas as configurações da aplicação
type Config struct {
	// Rate Limiting Configuration
	MaxRequests     int
	WindowSeconds   int
	BurstAllowance  int
	CooldownSeconds int
	TrackBySession  bool

	// Server Configuration
	ServerPort string
	GinMode    string

	// Logging Configuration
	LogLevel  string
	LogFormat string
}

// ConfigLoader implementa a interface domain.ConfigLoader
type ConfigLoader struct {
	config *Config
}

// NewConfigLoader cria uma nova instância do ConfigLoader
func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

// LoadConfig carrega as configurações do .env e variáveis de ambiente
func (c *ConfigLoader) LoadConfig() (*domain.RateLimitConfig, error) {
	// Carrega o arquivo .env se existir
	if err := godotenv.Load(); err != nil {
		// Se não encontrar .env, continua com variáveis do sistema
		fmt.Println("Warning: .env file not found, using system environment variables")
	}

	config, err := c.loadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	c.config = config

	return &domain.RateLimitConfig{
		MaxRequests:     config.MaxRequests,
		WindowSeconds:   config.WindowSeconds,
		BurstAllowance:  config.BurstAllowance,
		CooldownSeconds: config.CooldownSeconds,
		TrackBySession:  config.TrackBySession,
	}, nil
}

// Reload recarrega todas as configurações
func (c *ConfigLoader) Reload() error {
	_, err := c.LoadConfig()
	return err
}

// GetConfig retorna a configuração atual
func (c *ConfigLoader) GetConfig() *Config {
	return c.config
}

// loadFromEnv carrega configurações das variáveis de ambiente
func (c *ConfigLoader) loadFromEnv() (*Config, error) {
	config := &Config{
		// Server defaults
		ServerPort: getEnvWithDefault("SERVER_PORT", "8080"),
		GinMode:    getEnvWithDefault("GIN_MODE", "debug"),

		// Logging defaults
		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "json"),
	}

	// Parse rate limiting configuration
	maxRequests, err := strconv.Atoi(getEnvWithDefault("RATE_MAX_REQUESTS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_MAX_REQUESTS value: %w", err)
	}
	config.MaxRequests = maxRequests

	windowSeconds, err := strconv.Atoi(getEnvWithDefault("RATE_WINDOW_SECONDS", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_WINDOW_SECONDS value: %w", err)
	}
	config.WindowSeconds = windowSeconds

	burstAllowance, err := strconv.Atoi(getEnvWithDefault("RATE_BURST_ALLOWANCE", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_BURST_ALLOWANCE value: %w", err)
	}
	config.BurstAllowance = burstAllowance

	cooldownSeconds, err := strconv.Atoi(getEnvWithDefault("RATE_COOLDOWN_SECONDS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_COOLDOWN_SECONDS value: %w", err)
	}
	config.CooldownSeconds = cooldownSeconds

	trackBySession, err := strconv.ParseBool(getEnvWithDefault("RATE_TRACK_BY_SESSION", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_TRACK_BY_SESSION value: %w", err)
	}
	config.TrackBySession = trackBySession

	// Valida configurações obrigatórias
	if err := c.validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateConfig valida se as configurações são válidas.
// Um limiter mal configurado (ex.: janela zero) bloquearia todo o tráfego
// ou admitiria tráfego ilimitado, então qualquer valor inválido é fatal.
func (c *ConfigLoader) validateConfig(config *Config) error {
	if config.MaxRequests <= 0 {
		return fmt.Errorf("RATE_MAX_REQUESTS must be greater than 0")
	}

	if config.WindowSeconds <= 0 {
		return fmt.Errorf("RATE_WINDOW_SECONDS must be greater than 0")
	}

	if config.BurstAllowance < 0 {
		return fmt.Errorf("RATE_BURST_ALLOWANCE must not be negative")
	}

	if config.CooldownSeconds <= 0 {
		return fmt.Errorf("RATE_COOLDOWN_SECONDS must be greater than 0")
	}

	return nil
}

// getEnvWithDefault retorna o valor da variável de ambiente ou um valor padrão
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
