package config

import (
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/logger"
)

// Config holds the configuration for the relay client service
type Config struct {
	RPCURL              string
	PrivateKey          string
	MetricsPort         string
	MetricsAPIKey       string
	HTTPTimeout         time.Duration
	GasPriceRefresh     time.Duration
	MaxViewableGasLimit uint64
	RelayClient         RelayClientConfig
	KnownRelays         KnownRelaysConfig
	LoggerConfig        LoggerConfig
}

// RelayClientConfig holds the parameters used while building and sending relay requests
type RelayClientConfig struct {
	RelayHubAddress                  common.Address
	ForwarderAddress                 common.Address
	PaymasterAddress                 common.Address
	ClientID                         string
	GasPriceFactorPercent            int
	MinGasPrice                      *big.Int
	MaxRelayNonceGap                 uint64
	SkipRecipientForwarderValidation bool
	MaxConcurrentPings               int
}

// KnownRelaysConfig holds the relay directory configuration
type KnownRelaysConfig struct {
	PreferredRelays         []string
	RelayLookupWindowBlocks uint64
	RelayTimeoutGrace       time.Duration
	FailureThreshold        int
	MaxTrackedRelays        int
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	rpcURL, err := GetEnvRPCURL()
	if err != nil {
		return nil, err
	}

	relayHub, err := GetEnvAddress("RELAY_HUB_ADDRESS", "")
	if err != nil {
		return nil, err
	}

	forwarder, err := GetEnvAddress("FORWARDER_ADDRESS", DefaultForwarderAddress)
	if err != nil {
		return nil, err
	}

	paymaster, err := GetEnvAddress("PAYMASTER_ADDRESS", DefaultPaymasterAddress)
	if err != nil {
		return nil, err
	}

	clientID, err := GetEnvClientID()
	if err != nil {
		return nil, err
	}

	gasPriceFactor, err := GetEnvGasPriceFactorPercent()
	if err != nil {
		return nil, err
	}

	minGasPrice, err := GetEnvMinGasPrice()
	if err != nil {
		return nil, err
	}

	maxNonceGap, err := GetEnvMaxRelayNonceGap()
	if err != nil {
		return nil, err
	}

	skipForwarderValidation, err := GetEnvBool("SKIP_RECIPIENT_FORWARDER_VALIDATION", DefaultSkipRecipientForwarderValidation)
	if err != nil {
		return nil, err
	}

	maxConcurrentPings, err := GetEnvPositiveInt("MAX_CONCURRENT_PINGS", DefaultMaxConcurrentPings)
	if err != nil {
		return nil, err
	}

	preferredRelays, err := GetEnvPreferredRelays()
	if err != nil {
		return nil, err
	}

	lookupWindow, err := GetEnvRelayLookupWindowBlocks()
	if err != nil {
		return nil, err
	}

	timeoutGrace, err := GetEnvDuration("RELAY_TIMEOUT_GRACE", DefaultRelayTimeoutGrace)
	if err != nil {
		return nil, err
	}

	failureThreshold, err := GetEnvPositiveInt("RELAY_FAILURE_THRESHOLD", DefaultRelayFailureThreshold)
	if err != nil {
		return nil, err
	}

	httpTimeout, err := GetEnvDuration("HTTP_TIMEOUT", DefaultHTTPTimeout)
	if err != nil {
		return nil, err
	}

	gasPriceRefresh, err := GetEnvDuration("GAS_PRICE_REFRESH_INTERVAL", DefaultGasPriceRefreshInterval)
	if err != nil {
		return nil, err
	}

	maxViewableGasLimit, err := GetEnvMaxViewableGasLimit()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvBool("LOG_COLORING", DefaultLogColoring)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCURL:              rpcURL,
		PrivateKey:          os.Getenv("PRIVATE_KEY"),
		MetricsPort:         metricsPort,
		MetricsAPIKey:       os.Getenv("METRICS_API_KEY"),
		HTTPTimeout:         httpTimeout,
		GasPriceRefresh:     gasPriceRefresh,
		MaxViewableGasLimit: maxViewableGasLimit,
		RelayClient: RelayClientConfig{
			RelayHubAddress:                  relayHub,
			ForwarderAddress:                 forwarder,
			PaymasterAddress:                 paymaster,
			ClientID:                         clientID,
			GasPriceFactorPercent:            gasPriceFactor,
			MinGasPrice:                      minGasPrice,
			MaxRelayNonceGap:                 maxNonceGap,
			SkipRecipientForwarderValidation: skipForwarderValidation,
			MaxConcurrentPings:               maxConcurrentPings,
		},
		KnownRelays: KnownRelaysConfig{
			PreferredRelays:         preferredRelays,
			RelayLookupWindowBlocks: lookupWindow,
			RelayTimeoutGrace:       timeoutGrace,
			FailureThreshold:        failureThreshold,
			MaxTrackedRelays:        DefaultMaxTrackedRelays,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	// Validate required environment variables
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.RPCURL == "" {
		return fmt.Errorf("RPC_URL environment variable is required")
	}
	if cfg.RelayClient.RelayHubAddress == (common.Address{}) {
		return fmt.Errorf("RELAY_HUB_ADDRESS environment variable is required")
	}
	if cfg.RelayClient.GasPriceFactorPercent <= -100 {
		return fmt.Errorf("GAS_PRICE_FACTOR_PERCENT must be greater than -100")
	}
	if cfg.MaxViewableGasLimit == 0 {
		return fmt.Errorf("MAX_VIEWABLE_GAS_LIMIT must be greater than 0")
	}
	return nil
}
