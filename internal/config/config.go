package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// Application configuration loaded from environment variables. These are
// populated at startup by LoadConfig.
var (
	// NodeRPC is the JSON-RPC endpoint of the chain node to index from.
	NodeRPC string

	// BarAddress is the bar (share token) contract.
	BarAddress common.Address
	// TokenAddress is the underlying staked-token contract.
	TokenAddress common.Address
	// PairAddress is the token/USDT pair used for the price lookup.
	PairAddress common.Address
	// ChefAddress is the reward-pool contract.
	ChefAddress common.Address

	// StartBlock is the first block to scan for events.
	StartBlock uint64
	// BlockBatchSize is the maximum number of blocks fetched per log query.
	BlockBatchSize uint64
	// PollIntervalSeconds is how long to wait at the chain head before
	// asking for new blocks again.
	PollIntervalSeconds uint64
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	NodeRPC, err = getEnv("NODE_RPC")
	if err != nil {
		return err
	}

	BarAddress, err = getEnvAsAddress("BAR_ADDRESS")
	if err != nil {
		return err
	}

	TokenAddress, err = getEnvAsAddress("TOKEN_ADDRESS")
	if err != nil {
		return err
	}

	PairAddress, err = getEnvAsAddress("PAIR_ADDRESS")
	if err != nil {
		return err
	}

	ChefAddress, err = getEnvAsAddress("CHEF_ADDRESS")
	if err != nil {
		return err
	}

	StartBlock, err = getEnvAsUint64("START_BLOCK")
	if err != nil {
		return err
	}

	BlockBatchSize, err = getEnvAsUint64("BLOCK_BATCH_SIZE")
	if err != nil {
		return err
	}

	PollIntervalSeconds, err = getEnvAsUint64("POLL_INTERVAL_SECONDS")
	if err != nil {
		return err
	}

	log.Debug().
		Str("NodeRPC", NodeRPC).
		Str("BarAddress", BarAddress.Hex()).
		Str("ChefAddress", ChefAddress.Hex()).
		Uint64("StartBlock", StartBlock).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsAddress retrieves an environment variable as a hex contract address.
func getEnvAsAddress(key string) (common.Address, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(valueStr) {
		return common.Address{}, errors.New("environment variable " + key + " must be a valid hex address, got: " + valueStr)
	}
	return common.HexToAddress(valueStr), nil
}
