package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/uxpulse/uxpulse/internal/bus"
	"github.com/uxpulse/uxpulse/internal/collaborator"
	"github.com/uxpulse/uxpulse/internal/config"
	"github.com/uxpulse/uxpulse/internal/consumer"
	"github.com/uxpulse/uxpulse/internal/decision"
	"github.com/uxpulse/uxpulse/internal/loop"
	"github.com/uxpulse/uxpulse/internal/neural"
	"github.com/uxpulse/uxpulse/internal/notifier"
	"github.com/uxpulse/uxpulse/internal/predictor"
	"github.com/uxpulse/uxpulse/internal/server"
	"github.com/uxpulse/uxpulse/internal/sessions"
	"github.com/uxpulse/uxpulse/internal/storage"
	"github.com/uxpulse/uxpulse/internal/telemetry"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load config
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/uxpulse.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("Failed to load config")
	}

	log.Info().
		Int("http_port", cfg.Server.HTTPPort).
		Str("autonomy_level", cfg.Autonomy.Level).
		Strs("kafka_brokers", cfg.Kafka.Brokers).
		Msg("Configuration loaded")

	// Core pipeline
	eventBus := bus.New()
	aggregator := telemetry.NewAggregator(cfg.Telemetry, eventBus)
	seqPredictor := predictor.New()
	network := neural.New(cfg.Neural, eventBus, rand.New(rand.NewSource(time.Now().UnixNano())))

	var collab collaborator.Collaborator
	if cfg.Collaborator.APIKey != "" {
		collab = collaborator.NewOpenAIReasoner(cfg.Collaborator)
		log.Info().Str("model", cfg.Collaborator.Model).Msg("LLM collaborator initialized")
	} else {
		log.Info().Msg("No collaborator API key, using heuristic recommendations only")
	}

	engine := decision.NewEngine(cfg.RateLimit, collab, eventBus)
	controller := loop.NewController(aggregator, seqPredictor, network, engine, cfg.Cycles, cfg.Autonomy.Level)

	// Redis session mirror
	if cfg.Redis.Addr != "" {
		mirror := sessions.NewMirror(cfg.Redis)
		aggregator.SetSessionSink(mirror)
		defer mirror.Close()
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis session mirror initialized")
	}

	// ClickHouse archival
	var archiver *storage.Archiver
	if cfg.ClickHouse.Addr != "" {
		ch, err := storage.NewClickHouse(cfg.ClickHouse)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to ClickHouse")
		}
		defer ch.Close()
		archiver = storage.NewArchiver(ch, eventBus)
		log.Info().Msg("Connected to ClickHouse")
	}

	// Kafka change notifier
	changeNotifier := notifier.New(cfg.Kafka, eventBus)
	defer changeNotifier.Close()

	// Kafka intake
	ctx, cancel := context.WithCancel(context.Background())
	var kafkaConsumer *consumer.KafkaConsumer
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topics["events"] != "" {
		kafkaConsumer = consumer.NewKafkaConsumer(cfg.Kafka, controller)
		go kafkaConsumer.Start(ctx)
		log.Info().Str("topic", cfg.Kafka.Topics["events"]).Msg("Kafka consumer started")
	}

	network.Start()
	controller.SetEnabled(true)

	// HTTP server
	r := server.NewHandler(controller).Router()
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: r,
	}

	go func() {
		log.Info().Int("port", cfg.Server.HTTPPort).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to serve HTTP")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	cancel()
	if kafkaConsumer != nil {
		kafkaConsumer.Close()
	}
	httpServer.Shutdown(context.Background())
	controller.Close()
	network.Stop()
	if archiver != nil {
		archiver.Stop()
	}

	log.Info().Msg("Shutdown complete")
}
