// Package relayclient relays transactions through untrusted relay servers so that the sender
// does not pay for gas.
package relayclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/config"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/logger"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/metrics"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/relayselection"
)

// Dependencies are the collaborators of the relay client. Chain, Signer, Directory, Wire and
// Validator are required, the other fields have defaults.
type Dependencies struct {
	Chain         ChainGateway
	Signer        AccountSigner
	Directory     RelayDirectory
	Wire          WireClient
	Validator     TransactionValidator
	PingFilter    relayselection.PingFilter
	PaymasterData DataCallback
	ApprovalData  DataCallback
	Logger        logger.Logger
	Clock         func() time.Time
}

// RelayClient relays transactions through the known relay servers, one at a time
type RelayClient struct {
	cfg config.RelayClientConfig

	chain         ChainGateway
	signer        AccountSigner
	directory     RelayDirectory
	wire          WireClient
	validator     TransactionValidator
	pingFilter    relayselection.PingFilter
	paymasterData DataCallback
	approvalData  DataCallback
	logger        logger.Logger
	now           func() time.Time

	initMu       sync.Mutex
	initialized  atomic.Bool
	initializing atomic.Bool

	listenersMu    sync.RWMutex
	listeners      []registeredListener
	nextListenerID ListenerID
}

// New creates a relay client. Init should be called before the first transaction.
func New(cfg config.RelayClientConfig, deps Dependencies) *RelayClient {
	c := &RelayClient{
		cfg:           cfg,
		chain:         deps.Chain,
		signer:        deps.Signer,
		directory:     deps.Directory,
		wire:          deps.Wire,
		validator:     deps.Validator,
		pingFilter:    deps.PingFilter,
		paymasterData: deps.PaymasterData,
		approvalData:  deps.ApprovalData,
		logger:        deps.Logger,
		now:           deps.Clock,
	}

	if c.pingFilter == nil {
		c.pingFilter = GasPricePingFilter
	}
	if c.paymasterData == nil {
		c.paymasterData = EmptyDataCallback
	}
	if c.approvalData == nil {
		c.approvalData = EmptyDataCallback
	}
	if c.logger == nil {
		c.logger = &logger.EmptyLogger{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Init initializes the chain gateway. Concurrent callers wait for a single initialization,
// later calls return immediately. A failed initialization is retried by the next call.
func (c *RelayClient) Init(ctx context.Context) (*RelayClient, error) {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized.Load() {
		return c, nil
	}

	c.initializing.Store(true)
	defer c.initializing.Store(false)

	c.emit(Event{Kind: EventInit})
	if err := c.chain.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize relay client: %w", err)
	}

	c.initialized.Store(true)
	metrics.Initializations.Inc()
	c.logger.Info("Relay client initialized with RelayHub %s", c.cfg.RelayHubAddress.Hex())
	return c, nil
}

// IsInitialized returns whether Init completed
func (c *RelayClient) IsInitialized() bool {
	return c.initialized.Load()
}

// RelayTransaction relays the transaction through the first relay that accepts it. The gas
// price and gas limit of details are filled in when missing.
func (c *RelayClient) RelayTransaction(ctx context.Context, details *models.TransactionDetails) (*RelayingResult, error) {
	start := c.now()
	result, err := c.relayTransaction(ctx, details)

	status := "success"
	switch {
	case errors.Is(err, ErrNoRegisteredRelayers):
		status = "no_relays"
	case err != nil:
		status = "error"
	case result.Transaction == nil:
		status = "failed"
	}
	metrics.RelayTransactions.WithLabelValues(status).Inc()
	metrics.RelayTransactionTime.WithLabelValues(status).Observe(c.now().Sub(start).Seconds())

	return result, err
}

func (c *RelayClient) relayTransaction(ctx context.Context, details *models.TransactionDetails) (*RelayingResult, error) {
	if !c.initialized.Load() {
		if !c.initializing.Load() {
			c.logger.Warn("better call Init() in advance (to make first request faster)")
		}
		if _, err := c.Init(ctx); err != nil {
			return nil, err
		}
	}

	c.emit(Event{Kind: EventRefreshRelays})
	if err := c.directory.Refresh(ctx); err != nil {
		c.logger.Warn("Failed to refresh known relays, using the previous list: %v", err)
	}

	if details.ForceGasPrice != "" {
		details.GasPrice = details.ForceGasPrice
	} else {
		gasPrice, err := c.calculateGasPrice(ctx)
		if err != nil {
			return nil, err
		}
		details.GasPrice = gasPrice
	}

	if details.Gas == "" {
		estimated, err := c.chain.EstimateGas(ctx, details)
		if err != nil {
			return nil, err
		}
		details.Gas = hexutil.EncodeUint64(estimated)
	}

	selection, err := relayselection.New(details, c.directory, c.wire, c.pingFilter, c.logger,
		relayselection.Config{MaxConcurrentPings: c.cfg.MaxConcurrentPings}).Init(ctx)
	if err != nil {
		return nil, err
	}

	count := len(selection.RelaysLeft())
	c.emit(Event{Kind: EventDoneRefreshRelays, RelaysCount: count})

	result := newRelayingResult(selection.Errors())
	if count == 0 {
		return result, ErrNoRegisteredRelayers
	}

	// Relays are tried strictly one after the other, two accepted requests would spend the sender nonce twice
	for relay := selection.SelectNext(); relay != nil; relay = selection.SelectNext() {
		relayURL := relay.RelayInfo.RelayURL
		c.emit(Event{Kind: EventNextRelay, RelayURL: relayURL})

		tx, err := c.attemptRelay(ctx, relay, details)
		if isFatalConfigError(err) {
			c.logger.Error("Relaying aborted for transaction from %s: %v", details.From.Hex(), err)
			return nil, err
		}
		if tx != nil {
			metrics.RelayAttempts.WithLabelValues(relayURL, "success").Inc()
			result.Transaction = tx
			return result, nil
		}

		if err == nil {
			err = errNoReason
		}
		metrics.RelayAttempts.WithLabelValues(relayURL, "failed").Inc()
		metrics.RelayingErrors.WithLabelValues(relayURL, classifyRelayError(err)).Inc()
		c.logger.WarnWithRelay(relayURL, "Relaying failed: %v", err)
		result.RelayingErrors[relayURL] = err
	}

	c.logger.Error("Failed to relay transaction from %s:\n%s", details.From.Hex(), DumpRelayingResult(result))
	return result, nil
}

// calculateGasPrice returns the network gas price raised by the configured factor, rounded
// half up and clamped to the configured minimum, as a 0x-prefixed hex string
func (c *RelayClient) calculateGasPrice(ctx context.Context) (string, error) {
	networkGasPrice, err := c.chain.GasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get network gas price: %w", err)
	}

	price, overflow := uint256.FromBig(networkGasPrice)
	if overflow || networkGasPrice.Sign() < 0 {
		return "", fmt.Errorf("network gas price out of range: %s", networkGasPrice.String())
	}

	factor := 100 + c.cfg.GasPriceFactorPercent
	if factor <= 0 {
		return "", fmt.Errorf("invalid gas price factor percent: %d", c.cfg.GasPriceFactorPercent)
	}

	scaled, overflow := new(uint256.Int).MulOverflow(price, uint256.NewInt(uint64(factor)))
	if overflow {
		return "", fmt.Errorf("gas price overflow: %s * %d%%", networkGasPrice.String(), factor)
	}

	gasPrice, remainder := new(uint256.Int).DivMod(scaled, uint256.NewInt(100), new(uint256.Int))
	if remainder.GtUint64(49) {
		gasPrice.AddUint64(gasPrice, 1)
	}

	if minGasPrice := c.cfg.MinGasPrice; minGasPrice != nil && gasPrice.ToBig().Cmp(minGasPrice) < 0 {
		return hexutil.EncodeBig(new(big.Int).Set(minGasPrice)), nil
	}
	return gasPrice.Hex(), nil
}
