package relayclient

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/relayselection"
)

// ChainGateway gives read and write access to the chain
type ChainGateway interface {
	Init(ctx context.Context) error
	GasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, details *models.TransactionDetails) (uint64, error)
	SenderNonce(ctx context.Context, sender, forwarder common.Address) (*big.Int, error)
	TransactionCount(ctx context.Context, address common.Address) (uint64, error)
	IsContractDeployed(ctx context.Context, address common.Address) (bool, error)
	IsTrustedForwarder(ctx context.Context, recipient, forwarder common.Address) (bool, error)
	GetForwarder(ctx context.Context, recipient common.Address) (common.Address, error)
	ValidateRelayCall(ctx context.Context, maxAcceptanceBudget uint64, req *models.RelayRequest, signature, approvalData []byte) (*models.RelayCallResult, error)
	SendSignedTransaction(ctx context.Context, rawTx string) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	PendingTransactions(ctx context.Context) ([]common.Hash, error)
}

// AccountSigner signs relay requests on behalf of the sender
type AccountSigner interface {
	Sign(ctx context.Context, req *models.RelayRequest) ([]byte, error)
}

// RelayDirectory knows the relay candidates and remembers their failures
type RelayDirectory interface {
	relayselection.Directory
	Refresh(ctx context.Context) error
	SaveRelayFailure(at time.Time, relayManager common.Address, relayURL string)
}

// WireClient exchanges requests with relay servers
type WireClient interface {
	relayselection.Pinger
	RelayTransaction(ctx context.Context, relayURL string, req *models.RelayTransactionRequest) (string, error)
}

// TransactionValidator checks the transaction a relay returned against the request
type TransactionValidator interface {
	ValidateRelayResponse(req *models.RelayTransactionRequest, maxAcceptanceBudget uint64, tx *types.Transaction) error
}

// DataCallback computes paymaster or approval data for a relay request
type DataCallback func(ctx context.Context, req *models.RelayRequest) ([]byte, error)
