package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avvvet/naturalcheck/internal/models"
)

type Config struct {
	// NATS configuration
	NatsURL           string
	NatsTimeout       time.Duration
	NatsSubjectPrefix string

	// Redis configuration
	RedisURL         string
	TranscriptTTL    time.Duration
	ProfileCacheSize int
	ProfileCacheTTL  time.Duration

	// LLM client configuration
	HTTPTimeout          time.Duration
	AnalyzeTimeout       time.Duration
	RetryDelay           time.Duration
	LLMRequestsPerSecond float64
	LLMBurst             int
	Debug                bool
	LogLevel             string

	// Default analysis profile
	DefaultProfile models.AnalysisConfig

	// Service configuration
	ServiceName string
}

const (
	DefaultEndpoint    = "https://openrouter.ai/api/v1"
	DefaultModel       = "deepseek/deepseek-chat-v3-0324:free"
	DefaultLanguage    = "Japanese"
	DefaultTemperature = 0.7
	DefaultMaxAttempts = 3
)

// Subjects derived from NatsSubjectPrefix.
func (c *Config) AnalyzeSubject() string { return c.NatsSubjectPrefix + ".analyze" }
func (c *Config) ProbeSubject() string   { return c.NatsSubjectPrefix + ".probe" }
func (c *Config) ModelsSubject() string  { return c.NatsSubjectPrefix + ".models" }
func (c *Config) ReportSubject() string  { return c.NatsSubjectPrefix + ".report" }

func Load() (*Config, error) {
	l := &loader{}
	cfg := &Config{
		// NATS settings
		NatsURL:           getEnv("NATS_URL", "nats://localhost:4222"),
		NatsTimeout:       l.durationEnv("NATS_TIMEOUT", 10*time.Second),
		NatsSubjectPrefix: strings.TrimSuffix(getEnv("NATS_SUBJECT_PREFIX", "naturalness"), "."),

		// Redis settings
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		TranscriptTTL:    l.durationEnv("TRANSCRIPT_TTL", 72*time.Hour),
		ProfileCacheSize: l.intEnv("PROFILE_CACHE_SIZE", 128),
		ProfileCacheTTL:  l.durationEnv("PROFILE_CACHE_TTL", 30*time.Second),

		// LLM client settings
		HTTPTimeout:          l.durationEnv("HTTP_TIMEOUT", 30*time.Second),
		AnalyzeTimeout:       l.durationEnv("ANALYZE_TIMEOUT", 3*time.Minute),
		RetryDelay:           l.durationEnv("RETRY_DELAY", 500*time.Millisecond),
		LLMRequestsPerSecond: l.floatEnv("LLM_REQUESTS_PER_SECOND", 0),
		LLMBurst:             l.intEnv("LLM_BURST", 1),
		Debug:                l.boolEnv("DEBUG", false),
		LogLevel:             getEnv("LOG_LEVEL", "info"),

		DefaultProfile: models.AnalysisConfig{
			Endpoint:    getEnv("LLM_ENDPOINT", DefaultEndpoint),
			APIKey:      strings.TrimSpace(os.Getenv("LLM_API_KEY")),
			Model:       getEnv("LLM_MODEL", DefaultModel),
			Temperature: l.floatEnv("LLM_TEMPERATURE", DefaultTemperature),
			Language:    getEnv("LLM_LANGUAGE", DefaultLanguage),
			MaxAttempts: l.intEnv("LLM_MAX_ATTEMPTS", DefaultMaxAttempts),
		},

		// Service settings
		ServiceName: getEnv("SERVICE_NAME", "naturalcheck"),
	}
	if l.err != nil {
		return nil, l.err
	}
	if cfg.ProfileCacheSize <= 0 {
		return nil, fmt.Errorf("PROFILE_CACHE_SIZE must be positive, got %d", cfg.ProfileCacheSize)
	}
	if cfg.ProfileCacheTTL < 0 {
		return nil, fmt.Errorf("PROFILE_CACHE_TTL must not be negative, got %s", cfg.ProfileCacheTTL)
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", cfg.HTTPTimeout)
	}
	if err := cfg.DefaultProfile.Validate(); err != nil {
		return nil, fmt.Errorf("default profile: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// loader keeps the first parse error so Load can report it.
type loader struct {
	err error
}

func (l *loader) fail(key, value string, err error) {
	if l.err == nil {
		l.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
}

func (l *loader) durationEnv(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		l.fail(key, value, err)
		return defaultValue
	}
	return d
}

func (l *loader) intEnv(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		l.fail(key, value, err)
		return defaultValue
	}
	return n
}

func (l *loader) floatEnv(key string, defaultValue float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		l.fail(key, value, err)
		return defaultValue
	}
	return f
}

func (l *loader) boolEnv(key string, defaultValue bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		l.fail(key, value, err)
		return defaultValue
	}
	return b
}

// NewLogger builds the service logger. DEBUG forces debug level so the HTTP
// trace is visible.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
		logger.WithField("log_level", c.LogLevel).Warn("Unknown log level, using info")
	}
	if c.Debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}
