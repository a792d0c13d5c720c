package relayclient

import (
	"crypto/ecdsa"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/config"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/logger"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/relayclient/mocks"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/testutil"
	"github.com/stretchr/testify/require"
)

var (
	testHub       = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	testForwarder = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	testPaymaster = common.HexToAddress("0x00000000000000000000000000000000000000f3")
	testSender    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testRecipient = common.HexToAddress("0x00000000000000000000000000000000000000a2")
)

type testRelay struct {
	url     string
	manager common.Address
	key     *ecdsa.PrivateKey
	worker  common.Address
}

type testEnv struct {
	client    *RelayClient
	chain     *mocks.MockChainGateway
	directory *mocks.MockDirectory
	wire      *mocks.MockWireClient
	signer    *mocks.MockSigner
	validator *mocks.MockValidator

	mu     sync.Mutex
	events []Event
}

func testConfig() config.RelayClientConfig {
	return config.RelayClientConfig{
		RelayHubAddress:       testHub,
		ForwarderAddress:      testForwarder,
		PaymasterAddress:      testPaymaster,
		ClientID:              "1",
		GasPriceFactorPercent: 10,
		MaxRelayNonceGap:      3,
		MaxConcurrentPings:    2,
	}
}

func newTestEnv(t *testing.T, cfg config.RelayClientConfig, deps Dependencies) *testEnv {
	env := &testEnv{
		chain:     mocks.NewMockChainGateway(),
		directory: mocks.NewMockDirectory(),
		wire:      mocks.NewMockWireClient(),
		signer:    mocks.NewMockSigner(),
		validator: &mocks.MockValidator{},
	}

	deps.Chain = env.chain
	deps.Directory = env.directory
	deps.Wire = env.wire
	deps.Signer = env.signer
	deps.Validator = env.validator
	if deps.Logger == nil {
		deps.Logger = &logger.EmptyLogger{}
	}

	env.client = New(cfg, deps)
	env.client.RegisterEventListener(func(event Event) {
		env.mu.Lock()
		defer env.mu.Unlock()
		env.events = append(env.events, event)
	})
	return env
}

func (e *testEnv) recordedEvents() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Event(nil), e.events...)
}

func (e *testEnv) eventKinds() []EventKind {
	var kinds []EventKind
	for _, event := range e.recordedEvents() {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

// addRelay registers a ready relay that answers with a transaction signed by its worker
func (e *testEnv) addRelay(t *testing.T, url string) *testRelay {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	relay := &testRelay{
		url:     url,
		manager: testutil.GenerateAddress(),
		key:     key,
		worker:  crypto.PubkeyToAddress(key.PublicKey),
	}

	e.directory.Relays = append(e.directory.Relays, models.RelayRegistration{
		RelayManager: relay.manager,
		RelayURL:     url,
		BaseRelayFee: "0",
		PctRelayFee:  "10",
	})
	e.wire.PingResponses[url] = &models.PingResponse{
		RelayWorkerAddress:  relay.worker,
		RelayManagerAddress: relay.manager,
		RelayHubAddress:     testHub,
		MinGasPrice:         "0",
		MaxAcceptanceBudget: "285252",
		Ready:               true,
		Version:             "2.2.0",
	}
	e.wire.RelayFuncs[url] = func(req *models.RelayTransactionRequest) (string, error) {
		return relay.signedTx(t, req.Metadata.RelayMaxNonce-3), nil
	}
	return relay
}

func (r *testRelay) signedTx(t *testing.T, nonce uint64) string {
	hub := testHub
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &hub,
		Gas:      500000,
		GasPrice: big.NewInt(1100000000),
		Data:     []byte{0x01},
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(testutil.SimulatedChainID), r.key)
	require.NoError(t, err)

	raw, err := signed.MarshalBinary()
	require.NoError(t, err)
	return hexutil.Encode(raw)
}

func testDetails() *models.TransactionDetails {
	return &models.TransactionDetails{
		From: testSender,
		To:   testRecipient,
		Data: []byte{0xde, 0xad, 0xbe, 0xef},
	}
}

// revertPayload encodes an Error(string) revert
func revertPayload(t *testing.T, reason string) []byte {
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)

	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	require.NoError(t, err)
	return append(crypto.Keccak256([]byte("Error(string)"))[:4], packed...)
}

func decodeRaw(t *testing.T, rawTx string) *types.Transaction {
	tx, err := decodeTransaction(rawTx)
	require.NoError(t, err)
	return tx
}
