package config

import (
	"fmt"
	"math/big"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/logger"
)

const (
	// DefaultForwarderAddress means the forwarder is read from the recipient contract
	DefaultForwarderAddress = "0x0000000000000000000000000000000000000000"

	// DefaultPaymasterAddress defines the default paymaster, expected to be set per transaction when left empty
	DefaultPaymasterAddress = "0x0000000000000000000000000000000000000000"

	// DefaultClientID defines the client identifier embedded in relay requests
	DefaultClientID = "1"

	// DefaultGasPriceFactorPercent defines how much above the network gas price relay requests are priced
	DefaultGasPriceFactorPercent = 20

	// DefaultMaxRelayNonceGap defines how many transactions ahead of its current nonce a relay worker may be
	DefaultMaxRelayNonceGap = 3

	// DefaultSkipRecipientForwarderValidation defines whether isTrustedForwarder is checked on the recipient
	DefaultSkipRecipientForwarderValidation = false

	// DefaultMaxConcurrentPings defines how many relays are pinged at the same time
	DefaultMaxConcurrentPings = 5

	// DefaultRelayLookupWindowBlocks defines how far back RelayHub registrations are read
	DefaultRelayLookupWindowBlocks = 6000

	// DefaultRelayTimeoutGrace defines for how long a failing relay stays deprioritized
	DefaultRelayTimeoutGrace = 30 * time.Minute

	// DefaultRelayFailureThreshold defines the number of failures within the grace period that deprioritize a relay
	DefaultRelayFailureThreshold = 1

	// DefaultMaxTrackedRelays bounds the failure bookkeeping
	DefaultMaxTrackedRelays = 1024

	// DefaultHTTPTimeout defines the timeout for requests to relay servers
	DefaultHTTPTimeout = 10 * time.Second

	// DefaultGasPriceRefreshInterval defines how often the network gas price is refreshed, 0 disables the routine
	DefaultGasPriceRefreshInterval = 15 * time.Second

	// DefaultMaxViewableGasLimit defines the highest gas limit accepted on a relayed transaction
	DefaultMaxViewableGasLimit = 12000000

	// DefaultMetricsPort defines the default port for the metrics server
	DefaultMetricsPort = "8080"

	// DefaultLogLevel defines the default logging level
	DefaultLogLevel = "info"

	// DefaultLogColoring defines whether console output is colored
	DefaultLogColoring = true
)

// GetEnvRPCURL returns the chain RPC endpoint from environment variables
func GetEnvRPCURL() (string, error) {
	rpcURL := os.Getenv("RPC_URL")
	if rpcURL == "" {
		return "", nil
	}

	// Validate URL format
	if _, err := url.ParseRequestURI(rpcURL); err != nil {
		return "", fmt.Errorf("invalid RPC_URL value: %s, must be a valid URL", rpcURL)
	}
	return rpcURL, nil
}

// GetEnvAddress returns an Ethereum address from environment variables
func GetEnvAddress(key string, defaultValue string) (common.Address, error) {
	address := os.Getenv(key)
	if address == "" {
		address = defaultValue
	}
	if address == "" {
		return common.Address{}, nil
	}

	// Validate Ethereum address format
	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("invalid %s value: %s, must be a valid Ethereum address", key, address)
	}
	return common.HexToAddress(address), nil
}

// GetEnvClientID returns the client identifier from environment variables
func GetEnvClientID() (string, error) {
	clientID := os.Getenv("CLIENT_ID")
	if clientID == "" {
		return DefaultClientID, nil
	}

	if _, ok := new(big.Int).SetString(clientID, 10); !ok {
		return "", fmt.Errorf("invalid CLIENT_ID value: %s, must be a decimal integer", clientID)
	}
	return clientID, nil
}

// GetEnvGasPriceFactorPercent returns the gas price factor from environment variables
func GetEnvGasPriceFactorPercent() (int, error) {
	factor := os.Getenv("GAS_PRICE_FACTOR_PERCENT")
	if factor == "" {
		return DefaultGasPriceFactorPercent, nil
	}

	factorInt, err := strconv.Atoi(factor)
	if err != nil {
		return 0, fmt.Errorf("invalid GAS_PRICE_FACTOR_PERCENT value: %s, must be an integer", factor)
	}
	return factorInt, nil
}

// GetEnvMinGasPrice returns the gas price floor from environment variables, nil when unset
func GetEnvMinGasPrice() (*big.Int, error) {
	minGasPrice := os.Getenv("MIN_GAS_PRICE")
	if minGasPrice == "" {
		return nil, nil
	}

	minGasPriceBig := new(big.Int)
	if _, ok := minGasPriceBig.SetString(minGasPrice, 10); !ok {
		return nil, fmt.Errorf("invalid MIN_GAS_PRICE value: %s, must be a valid integer string", minGasPrice)
	}

	if minGasPriceBig.Sign() < 0 {
		return nil, fmt.Errorf("MIN_GAS_PRICE must be greater than or equal to 0")
	}
	return minGasPriceBig, nil
}

// GetEnvMaxRelayNonceGap returns the max relay nonce gap from environment variables
func GetEnvMaxRelayNonceGap() (uint64, error) {
	gap := os.Getenv("MAX_RELAY_NONCE_GAP")
	if gap == "" {
		return DefaultMaxRelayNonceGap, nil
	}

	gapInt, err := strconv.ParseUint(gap, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid MAX_RELAY_NONCE_GAP value: %s, must be a non-negative integer", gap)
	}
	return gapInt, nil
}

// GetEnvPreferredRelays returns the comma separated list of relay URLs tried first
func GetEnvPreferredRelays() ([]string, error) {
	relays := os.Getenv("PREFERRED_RELAYS")
	if relays == "" {
		return nil, nil
	}

	var result []string
	for _, relay := range strings.Split(relays, ",") {
		relay = strings.TrimSpace(relay)
		if relay == "" {
			continue
		}
		if _, err := url.ParseRequestURI(relay); err != nil {
			return nil, fmt.Errorf("invalid PREFERRED_RELAYS entry: %s, must be a valid URL", relay)
		}
		result = append(result, strings.TrimSuffix(relay, "/"))
	}
	return result, nil
}

// GetEnvRelayLookupWindowBlocks returns the RelayHub registration lookup window from environment variables
func GetEnvRelayLookupWindowBlocks() (uint64, error) {
	window := os.Getenv("RELAY_LOOKUP_WINDOW_BLOCKS")
	if window == "" {
		return DefaultRelayLookupWindowBlocks, nil
	}

	windowInt, err := strconv.ParseUint(window, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid RELAY_LOOKUP_WINDOW_BLOCKS value: %s, must be a non-negative integer", window)
	}
	return windowInt, nil
}

// GetEnvMaxViewableGasLimit returns the gas limit bound for relayed transactions
func GetEnvMaxViewableGasLimit() (uint64, error) {
	limit := os.Getenv("MAX_VIEWABLE_GAS_LIMIT")
	if limit == "" {
		return DefaultMaxViewableGasLimit, nil
	}

	limitInt, err := strconv.ParseUint(limit, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid MAX_VIEWABLE_GAS_LIMIT value: %s, must be a non-negative integer", limit)
	}
	return limitInt, nil
}

// GetEnvPositiveInt returns a strictly positive integer from environment variables
func GetEnvPositiveInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	valueInt, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be an integer", key, value)
	}
	if valueInt <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return valueInt, nil
}

// GetEnvDuration returns a duration from environment variables
func GetEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be a valid duration string", key, value)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return parsed, nil
}

// GetEnvBool returns a boolean from environment variables
func GetEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	if value == "true" {
		return true, nil
	} else if value == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid %s value: %s, must be 'true' or 'false'", key, value)
}

// GetEnvMetricsPort returns the metrics server port from environment variables
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}

	// Validate port format
	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvLogLevel returns the logging level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = DefaultLogLevel
	}

	parsed, err := logger.ParseLevel(level)
	if err != nil {
		return logger.InfoLevel, fmt.Errorf("invalid LOG_LEVEL value: %s, must be one of debug, info, notice, warn, error", level)
	}
	return parsed, nil
}
