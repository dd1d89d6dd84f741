package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/avvvet/naturalcheck/internal/config"
	"github.com/avvvet/naturalcheck/internal/handlers"
	"github.com/avvvet/naturalcheck/internal/llm"
	"github.com/avvvet/naturalcheck/internal/memory"
	"github.com/avvvet/naturalcheck/internal/models"
	"github.com/avvvet/naturalcheck/internal/profile"
)

type globalFlags struct {
	envFile     string
	profile     string
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	language    string
	maxAttempts int
	json        bool
	debug       bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
	logger     *logrus.Logger

	redisOnce sync.Once
	redis     *redis.Client
	redisErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if err := loadEnvFile(c.flags.envFile); err != nil {
			c.configErr = err
			return
		}
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		if c.flags.debug {
			cfg.Debug = true
		}
		c.config = cfg
		c.logger = cfg.NewLogger()
		if !cfg.Debug && cfg.LogLevel == "info" {
			// keep CLI output clean unless asked
			c.logger.SetLevel(logrus.WarnLevel)
		}
	})
	return c.config, c.configErr
}

func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func (c *commandContext) log() logrus.FieldLogger {
	if c.logger == nil {
		return logrus.StandardLogger()
	}
	return c.logger
}

func (c *commandContext) client() *llm.HTTPClient {
	cfg := c.config
	return llm.NewHTTPClient(
		llm.WithTimeout(cfg.HTTPTimeout),
		llm.WithLogger(c.log()),
		llm.WithDebugTrace(cfg.Debug),
		llm.WithRateLimit(cfg.LLMRequestsPerSecond, cfg.LLMBurst),
	)
}

func (c *commandContext) analyzer(client llm.ChatClient) *handlers.Analyzer {
	return handlers.NewAnalyzer(client,
		handlers.WithRetryDelay(c.config.RetryDelay),
		handlers.WithLogger(c.log()),
	)
}

func (c *commandContext) redisClient() (*redis.Client, error) {
	c.redisOnce.Do(func() {
		c.redis, c.redisErr = memory.OpenRedis(c.config.RedisURL)
	})
	return c.redis, c.redisErr
}

func (c *commandContext) close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

func (c *commandContext) profileStore() (*profile.Store, error) {
	client, err := c.redisClient()
	if err != nil {
		return nil, err
	}
	return profile.NewStore(client, c.config.ProfileCacheSize, c.config.ProfileCacheTTL, c.log())
}

func (c *commandContext) transcripts() (*memory.Manager, error) {
	client, err := c.redisClient()
	if err != nil {
		return nil, err
	}
	return memory.NewManager(memory.NewRedisStore(client, c.config.TranscriptTTL), c.log()), nil
}

// analysisConfig starts from the stored profile (or the env default) and
// applies any provider flags the user set explicitly.
func (c *commandContext) analysisConfig(cmd *cobra.Command) (models.AnalysisConfig, error) {
	cfg := c.config.DefaultProfile
	if id := strings.TrimSpace(c.flags.profile); id != "" {
		store, err := c.profileStore()
		if err != nil {
			return cfg, err
		}
		p, err := store.Get(cmd.Context(), id)
		if err != nil {
			return cfg, err
		}
		cfg = p.Config()
	}

	pf := cmd.Flags()
	if pf.Changed("endpoint") {
		cfg.Endpoint = c.flags.endpoint
	}
	if pf.Changed("api-key") {
		cfg.APIKey = strings.TrimSpace(c.flags.apiKey)
	}
	if pf.Changed("model") {
		cfg.Model = c.flags.model
	}
	if pf.Changed("temperature") {
		cfg.Temperature = c.flags.temperature
	}
	if pf.Changed("language") {
		cfg.Language = c.flags.language
	}
	if pf.Changed("max-attempts") {
		cfg.MaxAttempts = c.flags.maxAttempts
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
