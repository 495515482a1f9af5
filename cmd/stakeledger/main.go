package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/energyfi-network/stakeledger/internal/bar"
	"github.com/energyfi-network/stakeledger/internal/chain"
	"github.com/energyfi-network/stakeledger/internal/chef"
	"github.com/energyfi-network/stakeledger/internal/config"
	"github.com/energyfi-network/stakeledger/internal/logger"
	"github.com/energyfi-network/stakeledger/internal/pricing"
	"github.com/energyfi-network/stakeledger/internal/source"
	"github.com/energyfi-network/stakeledger/internal/state"
	"github.com/energyfi-network/stakeledger/internal/types"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// main is the entry point for the stake ledger indexer.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Stake Ledger Indexer Starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Connect to the chain node
	client, err := ethclient.Dial(config.NodeRPC)
	if err != nil {
		log.Fatal().Err(err).Str("endpoint", config.NodeRPC).Msg("Failed to connect to chain node")
	}
	defer client.Close()
	log.Info().Str("endpoint", config.NodeRPC).Msg("Chain node connected")

	// --- 2. Wire the processors ---
	reader, err := chain.NewReader(client, config.BarAddress, config.TokenAddress, config.PairAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create chain reader")
	}

	oracle, err := pricing.NewOracle(reader)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create price oracle")
	}

	barProcessor, err := bar.NewProcessor(bar.Config{
		Store: state.NewBarStore(),
		Chain: reader,
		Price: oracle,
		BarID: types.AccountKey(config.BarAddress),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bar processor")
	}

	chefProcessor, err := chef.NewProcessor(chef.Config{
		Store:  state.NewChefStore(),
		ChefID: types.AccountKey(config.ChefAddress),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create chef processor")
	}

	dispatcher, err := source.NewDispatcher(source.DispatcherConfig{
		BarAddress:  config.BarAddress,
		ChefAddress: config.ChefAddress,
		Bar:         barProcessor,
		Chef:        chefProcessor,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create dispatcher")
	}

	runner, err := source.NewRunner(source.RunnerConfig{
		Client:     client,
		Dispatcher: dispatcher,
		StartBlock: config.StartBlock,
		BatchSize:  config.BlockBatchSize,
		Poll:       time.Duration(config.PollIntervalSeconds) * time.Second,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create runner")
	}

	// --- 3. Run until interrupted ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("Log stream stopped")
	}
	log.Info().Msg("Shutdown complete")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
