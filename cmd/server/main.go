package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/avvvet/naturalcheck/internal/config"
	"github.com/avvvet/naturalcheck/internal/handlers"
	"github.com/avvvet/naturalcheck/internal/llm"
	"github.com/avvvet/naturalcheck/internal/memory"
	"github.com/avvvet/naturalcheck/internal/profile"
	"github.com/avvvet/naturalcheck/internal/transport"
)

func main() {
	// Load .env file if it exists (for development)
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}
	log := cfg.NewLogger()

	log.WithFields(logrus.Fields{
		"service":  cfg.ServiceName,
		"nats_url": cfg.NatsURL,
		"endpoint": cfg.DefaultProfile.Endpoint,
		"model":    cfg.DefaultProfile.Model,
		"api_key":  llm.KeyFingerprint(cfg.DefaultProfile.APIKey),
	}).Info("Starting naturalness check service")

	log.Info("Connecting to Redis...")
	redisClient, err := memory.OpenRedis(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisClient.Close()

	transcripts := memory.NewManager(memory.NewRedisStore(redisClient, cfg.TranscriptTTL), log)

	profiles, err := profile.NewStore(redisClient, cfg.ProfileCacheSize, cfg.ProfileCacheTTL, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize profile store")
	}

	client := llm.NewHTTPClient(
		llm.WithTimeout(cfg.HTTPTimeout),
		llm.WithLogger(log),
		llm.WithDebugTrace(cfg.Debug),
		llm.WithRateLimit(cfg.LLMRequestsPerSecond, cfg.LLMBurst),
	)
	analyzer := handlers.NewAnalyzer(client,
		handlers.WithRetryDelay(cfg.RetryDelay),
		handlers.WithLogger(log),
	)

	service := transport.NewService(transport.ServiceDeps{
		Analyzer: analyzer,
		Chat:     client,
		Catalog:  client,
		Profiles: profiles,
		Reports:  transcripts,
		Defaults: cfg.DefaultProfile,
		Timeout:  cfg.AnalyzeTimeout,
		Logger:   log,
	})

	natsTransport, err := transport.NewNATSTransport(cfg, service, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize NATS transport")
	}

	if err := natsTransport.Start(); err != nil {
		log.WithError(err).Fatal("Failed to start NATS transport")
	}

	log.WithField("prefix", cfg.NatsSubjectPrefix).Info("Naturalness check service is running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithField("signal", sig.String()).Info("Shutting down gracefully...")

	if err := natsTransport.Close(); err != nil {
		log.WithError(err).Warn("Error closing NATS transport")
	}

	log.Info("Naturalness check service stopped")
}
