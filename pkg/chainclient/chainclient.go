package chainclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/contracts"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/logger"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/metrics"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
)

const (
	// rpcTimeout bounds a single gas price request
	rpcTimeout = 10 * time.Second

	// gasPriceMaxAge is how long a gas price fetched by the refresh routine stays usable
	gasPriceMaxAge = 30 * time.Second

	// codeCacheTTL is how long a positive contract code check is remembered
	codeCacheTTL = 10 * time.Minute
)

// Backend is the subset of the go-ethereum client used by the chain gateway
type Backend interface {
	bind.ContractBackend
	ethereum.ChainStateReader
	ethereum.TransactionReader
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Client gives the relay client read and write access to the chain
type Client struct {
	RPCURL   string
	RelayHub common.Address

	backend   Backend
	closer    func()
	hub       *contracts.RelayHub
	codeCache *CodeCache
	logger    logger.Logger

	mu              sync.RWMutex
	chainID         *big.Int
	signer          types.Signer
	currentGasPrice *big.Int
	gasPriceUpdated time.Time
}

// New creates a new client connected to the given RPC endpoint
func New(ctx context.Context, rpcURL string, relayHub common.Address, log logger.Logger) (*Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to client: %v", err)
	}

	c, err := NewWithBackend(client, relayHub, log)
	if err != nil {
		client.Close()
		return nil, err
	}
	c.RPCURL = rpcURL
	c.closer = client.Close
	return c, nil
}

// NewWithBackend creates a new client on top of an existing backend
func NewWithBackend(backend Backend, relayHub common.Address, log logger.Logger) (*Client, error) {
	hub, err := contracts.NewRelayHub(relayHub, backend)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize relay hub contract: %v", err)
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}

	return &Client{
		RelayHub:  relayHub,
		backend:   backend,
		hub:       hub,
		codeCache: NewCodeCache(codeCacheTTL),
		logger:    log,
	}, nil
}

// Init reads the network parameters and checks the RelayHub deployment
func (c *Client) Init(ctx context.Context) error {
	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain ID: %v", err)
	}

	deployed, err := c.IsContractDeployed(ctx, c.RelayHub)
	if err != nil {
		return fmt.Errorf("failed to check relay hub code: %v", err)
	}
	if !deployed {
		return fmt.Errorf("no RelayHub contract deployed at %s", c.RelayHub.Hex())
	}

	version, err := c.hub.VersionHub(&bind.CallOpts{Context: ctx})
	if err != nil {
		c.logger.Warn("Failed to read RelayHub version at %s: %v", c.RelayHub.Hex(), err)
	} else {
		c.logger.Info("Connected to RelayHub %s version %s on chain %s", c.RelayHub.Hex(), version, chainID.String())
	}

	c.mu.Lock()
	c.chainID = chainID
	c.signer = types.LatestSignerForChainID(chainID)
	c.mu.Unlock()

	return nil
}

// Close releases the RPC connection
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// ChainID returns the chain ID read during Init
func (c *Client) ChainID() *big.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.chainID == nil {
		return nil
	}
	return new(big.Int).Set(c.chainID)
}

// Signer returns the transaction signer matching the network, used to decode relayed transactions
func (c *Client) Signer() types.Signer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.signer
}

// UpdateGasPrice fetches the network gas price and caches it
func (c *Client) UpdateGasPrice(ctx context.Context) (*big.Int, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	gasPrice, err := c.backend.SuggestGasPrice(timeoutCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %v", err)
	}

	c.mu.Lock()
	c.currentGasPrice = gasPrice
	c.gasPriceUpdated = time.Now()
	c.mu.Unlock()

	metrics.GasPrice.Set(weiToGwei(gasPrice))

	return gasPrice, nil
}

// GasPrice returns the network gas price, from the cache when it is recent enough
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	c.mu.RLock()
	cached := c.currentGasPrice
	fresh := time.Since(c.gasPriceUpdated) < gasPriceMaxAge
	c.mu.RUnlock()

	if cached != nil && fresh {
		return new(big.Int).Set(cached), nil
	}
	return c.UpdateGasPrice(ctx)
}

// EstimateGas estimates the gas of the call as if it was sent directly by the sender
func (c *Client) EstimateGas(ctx context.Context, details *models.TransactionDetails) (uint64, error) {
	to := details.To
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  details.From,
		To:    &to,
		Value: details.Value,
		Data:  details.Data,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %v", err)
	}
	return gas, nil
}

// SenderNonce returns the next nonce of the sender as seen by the forwarder
func (c *Client) SenderNonce(ctx context.Context, sender, forwarder common.Address) (*big.Int, error) {
	caller, err := contracts.NewForwarderCaller(forwarder, c.backend)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize forwarder contract: %v", err)
	}

	nonce, err := caller.GetNonce(&bind.CallOpts{Context: ctx}, sender)
	if err != nil {
		return nil, fmt.Errorf("failed to get sender nonce from forwarder %s: %v", forwarder.Hex(), err)
	}
	return nonce, nil
}

// TransactionCount returns the number of transactions sent from the address
func (c *Client) TransactionCount(ctx context.Context, address common.Address) (uint64, error) {
	count, err := c.backend.NonceAt(ctx, address, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get transaction count of %s: %v", address.Hex(), err)
	}
	return count, nil
}

// IsContractDeployed checks whether code exists at the address. Positive answers are cached.
func (c *Client) IsContractDeployed(ctx context.Context, address common.Address) (bool, error) {
	if c.codeCache.Get(address) {
		return true, nil
	}

	code, err := c.backend.CodeAt(ctx, address, nil)
	if err != nil {
		return false, fmt.Errorf("failed to get code at %s: %v", address.Hex(), err)
	}
	if len(code) == 0 {
		return false, nil
	}

	c.codeCache.Set(address)
	return true, nil
}

// IsTrustedForwarder asks the recipient whether it trusts the forwarder
func (c *Client) IsTrustedForwarder(ctx context.Context, recipient, forwarder common.Address) (bool, error) {
	caller, err := contracts.NewRecipientCaller(recipient, c.backend)
	if err != nil {
		return false, fmt.Errorf("failed to initialize recipient contract: %v", err)
	}
	return caller.IsTrustedForwarder(&bind.CallOpts{Context: ctx}, forwarder)
}

// GetForwarder reads the trusted forwarder of the recipient
func (c *Client) GetForwarder(ctx context.Context, recipient common.Address) (common.Address, error) {
	caller, err := contracts.NewRecipientCaller(recipient, c.backend)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to initialize recipient contract: %v", err)
	}
	return caller.GetTrustedForwarder(&bind.CallOpts{Context: ctx})
}

// ValidateRelayCall runs relayCall as a view call from the relay worker. An execution
// failure is reported in the result as a revert, transport failures are returned as errors.
func (c *Client) ValidateRelayCall(ctx context.Context, maxAcceptanceBudget uint64, req *models.RelayRequest, signature, approvalData []byte) (*models.RelayCallResult, error) {
	gasPrice, err := models.ParseUint256("gasPrice", req.RelayData.GasPrice)
	if err != nil {
		return nil, err
	}

	externalGasLimit, err := c.maxViewableGasLimit(ctx, req.RelayData.RelayWorker, gasPrice)
	if err != nil {
		return nil, err
	}

	data, err := contracts.PackRelayCall(maxAcceptanceBudget, req, signature, approvalData, externalGasLimit)
	if err != nil {
		return nil, err
	}

	hub := c.RelayHub
	output, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		From:     req.RelayData.RelayWorker,
		To:       &hub,
		Gas:      externalGasLimit,
		GasPrice: gasPrice,
		Data:     data,
	}, nil)
	if err != nil {
		if !isExecutionError(err) {
			return nil, fmt.Errorf("relayCall view call failed: %w", err)
		}
		c.logger.Debug("relayCall view call reverted: %v", err)
		return &models.RelayCallResult{
			Reverted:    true,
			ReturnValue: revertData(err),
		}, nil
	}

	return contracts.UnpackRelayCall(output)
}

// maxViewableGasLimit bounds the view call by the block gas limit and by what the worker can pay for
func (c *Client) maxViewableGasLimit(ctx context.Context, worker common.Address, gasPrice *big.Int) (uint64, error) {
	header, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block header: %v", err)
	}
	limit := header.GasLimit

	if gasPrice.Sign() == 0 {
		return limit, nil
	}

	balance, err := c.backend.BalanceAt(ctx, worker, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance of relay worker %s: %v", worker.Hex(), err)
	}
	workerLimit := new(big.Int).Div(balance, gasPrice)
	if workerLimit.IsUint64() && workerLimit.Uint64() < limit {
		limit = workerLimit.Uint64()
	}
	return limit, nil
}

// isExecutionError reports whether an eth_call error comes from the EVM rather than from the transport
func isExecutionError(err error) bool {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "execution reverted") ||
		strings.Contains(message, "out of gas") ||
		strings.Contains(message, "invalid opcode")
}

// revertData extracts the revert payload from an eth_call error when the node provides it
func revertData(err error) []byte {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if encoded, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(encoded); decodeErr == nil {
				return data
			}
		}
	}
	return []byte(err.Error())
}

// SendSignedTransaction broadcasts a raw signed transaction
func (c *Client) SendSignedTransaction(ctx context.Context, rawTx string) error {
	data, err := hexutil.Decode(rawTx)
	if err != nil {
		return fmt.Errorf("invalid raw transaction: %v", err)
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("failed to decode raw transaction: %v", err)
	}

	return c.backend.SendTransaction(ctx, tx)
}

// TransactionReceipt returns the receipt of a mined transaction, nil when it is not mined
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// PendingTransactions returns the hashes of the transactions in the pending block
func (c *Client) PendingTransactions(ctx context.Context) ([]common.Hash, error) {
	block, err := c.backend.BlockByNumber(ctx, big.NewInt(int64(rpc.PendingBlockNumber)))
	if err != nil {
		return nil, fmt.Errorf("failed to get pending block: %v", err)
	}

	hashes := make([]common.Hash, 0, len(block.Transactions()))
	for _, tx := range block.Transactions() {
		hashes = append(hashes, tx.Hash())
	}
	return hashes, nil
}

// BlockNumber returns the latest block number
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.backend.BlockNumber(ctx)
}

// RegisteredRelays reads the RelayServerRegistered events emitted since fromBlock
func (c *Client) RegisteredRelays(ctx context.Context, fromBlock uint64) ([]models.RelayRegistration, error) {
	it, err := c.hub.FilterRelayServerRegistered(&bind.FilterOpts{Start: fromBlock, Context: ctx}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to filter relay registrations: %v", err)
	}
	defer func() {
		_ = it.Close()
	}()

	var relays []models.RelayRegistration
	for it.Next() {
		relays = append(relays, models.RelayRegistration{
			RelayManager: it.Event.RelayManager,
			RelayURL:     it.Event.RelayUrl,
			BaseRelayFee: it.Event.BaseRelayFee.String(),
			PctRelayFee:  it.Event.PctRelayFee.String(),
		})
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("failed to read relay registrations: %v", err)
	}
	return relays, nil
}

// weiToGwei converts a wei amount to gwei for reporting
func weiToGwei(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	gwei, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e9)).Float64()
	return gwei
}
