// Package mocks provides in-memory collaborators for relay client tests.
package mocks

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
)

// MockChainGateway is a configurable chain gateway that records the calls it receives
type MockChainGateway struct {
	mu sync.Mutex

	InitErr   error
	InitDelay time.Duration
	initCalls int

	NetworkGasPrice *big.Int
	GasPriceErr     error
	EstimatedGas    uint64
	SenderNonceVal  *big.Int
	WorkerTxCount   uint64

	RecipientDeployed bool
	ForwarderTrusted  bool
	RecipientForward  common.Address
	GetForwarderErr   error

	// ValidateRelayCallFunc overrides the default dry run that accepts every request
	ValidateRelayCallFunc func(maxAcceptanceBudget uint64, req *models.RelayRequest, signature, approvalData []byte) (*models.RelayCallResult, error)

	SendErr    error
	Receipts   map[common.Hash]*types.Receipt
	ReceiptErr error
	Pending    []common.Hash
	PendingErr error

	sent  []string
	calls []string
}

// NewMockChainGateway creates a gateway with a 1 gwei gas price and a deployed recipient trusting any forwarder
func NewMockChainGateway() *MockChainGateway {
	return &MockChainGateway{
		NetworkGasPrice:   big.NewInt(1000000000),
		EstimatedGas:      100000,
		SenderNonceVal:    big.NewInt(0),
		RecipientDeployed: true,
		ForwarderTrusted:  true,
		Receipts:          make(map[common.Hash]*types.Receipt),
	}
}

func (m *MockChainGateway) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

// Calls returns the names of the methods called so far
func (m *MockChainGateway) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// CallCount returns how many times the method was called
func (m *MockChainGateway) CallCount(call string) int {
	count := 0
	for _, c := range m.Calls() {
		if c == call {
			count++
		}
	}
	return count
}

// InitCalls returns how many times Init ran
func (m *MockChainGateway) InitCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initCalls
}

// SentTransactions returns the raw transactions broadcast through the gateway
func (m *MockChainGateway) SentTransactions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

func (m *MockChainGateway) Init(_ context.Context) error {
	m.record("Init")
	if m.InitDelay > 0 {
		time.Sleep(m.InitDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initCalls++
	return m.InitErr
}

func (m *MockChainGateway) GasPrice(_ context.Context) (*big.Int, error) {
	m.record("GasPrice")
	if m.GasPriceErr != nil {
		return nil, m.GasPriceErr
	}
	return new(big.Int).Set(m.NetworkGasPrice), nil
}

func (m *MockChainGateway) EstimateGas(_ context.Context, _ *models.TransactionDetails) (uint64, error) {
	m.record("EstimateGas")
	return m.EstimatedGas, nil
}

func (m *MockChainGateway) SenderNonce(_ context.Context, _, _ common.Address) (*big.Int, error) {
	m.record("SenderNonce")
	return new(big.Int).Set(m.SenderNonceVal), nil
}

func (m *MockChainGateway) TransactionCount(_ context.Context, _ common.Address) (uint64, error) {
	m.record("TransactionCount")
	return m.WorkerTxCount, nil
}

func (m *MockChainGateway) IsContractDeployed(_ context.Context, _ common.Address) (bool, error) {
	m.record("IsContractDeployed")
	return m.RecipientDeployed, nil
}

func (m *MockChainGateway) IsTrustedForwarder(_ context.Context, _, _ common.Address) (bool, error) {
	m.record("IsTrustedForwarder")
	return m.ForwarderTrusted, nil
}

func (m *MockChainGateway) GetForwarder(_ context.Context, _ common.Address) (common.Address, error) {
	m.record("GetForwarder")
	return m.RecipientForward, m.GetForwarderErr
}

func (m *MockChainGateway) ValidateRelayCall(_ context.Context, maxAcceptanceBudget uint64, req *models.RelayRequest, signature, approvalData []byte) (*models.RelayCallResult, error) {
	m.record("ValidateRelayCall")
	if m.ValidateRelayCallFunc != nil {
		return m.ValidateRelayCallFunc(maxAcceptanceBudget, req, signature, approvalData)
	}
	return &models.RelayCallResult{PaymasterAccepted: true}, nil
}

func (m *MockChainGateway) SendSignedTransaction(_ context.Context, rawTx string) error {
	m.record("SendSignedTransaction")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.sent = append(m.sent, rawTx)
	return nil
}

func (m *MockChainGateway) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	m.record("TransactionReceipt")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReceiptErr != nil {
		return nil, m.ReceiptErr
	}
	return m.Receipts[hash], nil
}

func (m *MockChainGateway) PendingTransactions(_ context.Context) ([]common.Hash, error) {
	m.record("PendingTransactions")
	return m.Pending, m.PendingErr
}
