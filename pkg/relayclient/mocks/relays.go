package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
)

// RelayFailure is a failure saved in the MockDirectory
type RelayFailure struct {
	At           time.Time
	RelayManager common.Address
	RelayURL     string
}

// MockDirectory serves a fixed list of relays
type MockDirectory struct {
	mu         sync.Mutex
	Relays     []models.RelayRegistration
	RefreshErr error
	refreshes  int
	failures   []RelayFailure
}

// NewMockDirectory creates a directory with the given relays in a single tier
func NewMockDirectory(relays ...models.RelayRegistration) *MockDirectory {
	return &MockDirectory{Relays: relays}
}

func (m *MockDirectory) RelaysForTransaction(_ *models.TransactionDetails) [][]models.RelayRegistration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return [][]models.RelayRegistration{append([]models.RelayRegistration(nil), m.Relays...)}
}

func (m *MockDirectory) Refresh(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
	return m.RefreshErr
}

func (m *MockDirectory) SaveRelayFailure(at time.Time, relayManager common.Address, relayURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, RelayFailure{At: at, RelayManager: relayManager, RelayURL: relayURL})
}

// Refreshes returns how many times Refresh was called
func (m *MockDirectory) Refreshes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshes
}

// Failures returns the saved relay failures
func (m *MockDirectory) Failures() []RelayFailure {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RelayFailure(nil), m.failures...)
}

// MockWireClient answers pings and relay requests per URL
type MockWireClient struct {
	mu sync.Mutex

	PingResponses map[string]*models.PingResponse
	PingErrors    map[string]error

	// RelayFuncs produce the raw signed transaction returned by each relay
	RelayFuncs map[string]func(req *models.RelayTransactionRequest) (string, error)

	requests map[string][]*models.RelayTransactionRequest
}

// NewMockWireClient creates a wire client without relays
func NewMockWireClient() *MockWireClient {
	return &MockWireClient{
		PingResponses: make(map[string]*models.PingResponse),
		PingErrors:    make(map[string]error),
		RelayFuncs:    make(map[string]func(req *models.RelayTransactionRequest) (string, error)),
		requests:      make(map[string][]*models.RelayTransactionRequest),
	}
}

func (m *MockWireClient) GetPingResponse(_ context.Context, relayURL string) (*models.PingResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.PingErrors[relayURL]; ok {
		return nil, err
	}
	if ping, ok := m.PingResponses[relayURL]; ok {
		copied := *ping
		return &copied, nil
	}
	return nil, errors.New("connection refused")
}

func (m *MockWireClient) RelayTransaction(_ context.Context, relayURL string, req *models.RelayTransactionRequest) (string, error) {
	m.mu.Lock()
	m.requests[relayURL] = append(m.requests[relayURL], req)
	relayFunc, ok := m.RelayFuncs[relayURL]
	m.mu.Unlock()

	if !ok {
		return "", errors.New("connection refused")
	}
	return relayFunc(req)
}

// Requests returns the envelopes sent to the relay
func (m *MockWireClient) Requests(relayURL string) []*models.RelayTransactionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.RelayTransactionRequest(nil), m.requests[relayURL]...)
}

// MockSigner returns a fixed signature and keeps the requests it signed
type MockSigner struct {
	mu        sync.Mutex
	Signature []byte
	Err       error
	signed    []models.RelayRequest
}

// NewMockSigner creates a signer returning a 65 byte signature
func NewMockSigner() *MockSigner {
	signature := make([]byte, 65)
	signature[64] = 27
	return &MockSigner{Signature: signature}
}

func (m *MockSigner) Sign(_ context.Context, req *models.RelayRequest) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	// Copy so later changes of the request do not alter what was signed
	copied := *req
	copied.RelayData.PaymasterData = append([]byte(nil), req.RelayData.PaymasterData...)
	m.signed = append(m.signed, copied)
	return append([]byte(nil), m.Signature...), nil
}

// Signed returns the requests as they were when signed
func (m *MockSigner) Signed() []models.RelayRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.RelayRequest(nil), m.signed...)
}

// MockValidator accepts every transaction unless Err is set
type MockValidator struct {
	mu    sync.Mutex
	Err   error
	calls int
}

func (m *MockValidator) ValidateRelayResponse(_ *models.RelayTransactionRequest, _ uint64, _ *types.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.Err
}

// Calls returns how many transactions were validated
func (m *MockValidator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
