package account

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRelayRequest(from common.Address) *models.RelayRequest {
	return &models.RelayRequest{
		Request: models.ForwardRequest{
			From:  from,
			To:    common.HexToAddress("0x00000000000000000000000000000000000000a2"),
			Value: "0",
			Gas:   "100000",
			Nonce: "4",
			Data:  []byte{0xca, 0xfe},
		},
		RelayData: models.RelayData{
			GasPrice:     "110",
			PctRelayFee:  "10",
			BaseRelayFee: "0",
			RelayWorker:  common.HexToAddress("0x00000000000000000000000000000000000000b1"),
			Paymaster:    common.HexToAddress("0x00000000000000000000000000000000000000b2"),
			Forwarder:    common.HexToAddress("0x00000000000000000000000000000000000000b3"),
			ClientID:     "1",
		},
	}
}

func TestManager_AddAccount(t *testing.T) {
	manager := New(StaticChainID{ID: testutil.SimulatedChainID})

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	expected := crypto.PubkeyToAddress(key.PublicKey)

	address, err := manager.AddAccount("0x" + common.Bytes2Hex(crypto.FromECDSA(key)))
	require.NoError(t, err)
	assert.Equal(t, expected, address)

	signature, err := manager.Sign(context.Background(), testRelayRequest(expected))
	require.NoError(t, err)
	signer, err := RecoverSigner(testutil.SimulatedChainID, testRelayRequest(expected), signature)
	require.NoError(t, err)
	assert.Equal(t, expected, signer)

	_, err = manager.AddAccount("zz")
	assert.Error(t, err)
}

func TestManager_Sign(t *testing.T) {
	ctx := context.Background()
	manager := New(StaticChainID{ID: testutil.SimulatedChainID})

	from, err := manager.NewAccount()
	require.NoError(t, err)

	t.Run("signature recovers to the sender", func(t *testing.T) {
		req := testRelayRequest(from)

		signature, err := manager.Sign(ctx, req)
		require.NoError(t, err)
		require.Len(t, signature, crypto.SignatureLength)
		assert.GreaterOrEqual(t, signature[crypto.RecoveryIDOffset], byte(27))

		signer, err := RecoverSigner(testutil.SimulatedChainID, req, signature)
		require.NoError(t, err)
		assert.Equal(t, from, signer)
	})

	t.Run("paymaster data is covered by the signature", func(t *testing.T) {
		req := testRelayRequest(from)
		signature, err := manager.Sign(ctx, req)
		require.NoError(t, err)

		req.RelayData.PaymasterData = []byte{0x01}
		signer, err := RecoverSigner(testutil.SimulatedChainID, req, signature)
		require.NoError(t, err)
		assert.NotEqual(t, from, signer)
	})

	t.Run("unknown sender", func(t *testing.T) {
		_, err := manager.Sign(ctx, testRelayRequest(testutil.GenerateAddress()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no signing key")
	})

	t.Run("chain ID not yet known", func(t *testing.T) {
		uninitialized := New(StaticChainID{})
		sender, err := uninitialized.NewAccount()
		require.NoError(t, err)

		_, err = uninitialized.Sign(ctx, testRelayRequest(sender))
		assert.ErrorIs(t, err, ErrChainIDUnknown)
	})
}

func TestTypedDataHash(t *testing.T) {
	from := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	base, err := TypedDataHash(big.NewInt(1), testRelayRequest(from))
	require.NoError(t, err)
	require.Len(t, base, 32)

	again, err := TypedDataHash(big.NewInt(1), testRelayRequest(from))
	require.NoError(t, err)
	assert.Equal(t, base, again)

	tests := []struct {
		name    string
		chainID *big.Int
		modify  func(req *models.RelayRequest)
	}{
		{
			name:    "chain ID",
			chainID: big.NewInt(5),
			modify:  func(req *models.RelayRequest) {},
		},
		{
			name:    "forwarder is the verifying contract",
			chainID: big.NewInt(1),
			modify: func(req *models.RelayRequest) {
				req.RelayData.Forwarder = common.HexToAddress("0x00000000000000000000000000000000000000c1")
			},
		},
		{
			name:    "nonce",
			chainID: big.NewInt(1),
			modify:  func(req *models.RelayRequest) { req.Request.Nonce = "5" },
		},
		{
			name:    "relay worker",
			chainID: big.NewInt(1),
			modify: func(req *models.RelayRequest) {
				req.RelayData.RelayWorker = common.HexToAddress("0x00000000000000000000000000000000000000c2")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRelayRequest(from)
			tt.modify(req)

			digest, err := TypedDataHash(tt.chainID, req)
			require.NoError(t, err)
			assert.NotEqual(t, base, digest)
		})
	}

	t.Run("malformed quantity", func(t *testing.T) {
		req := testRelayRequest(from)
		req.Request.Gas = "lots"

		_, err := TypedDataHash(big.NewInt(1), req)
		assert.Error(t, err)
	})
}

func TestRecoverSigner_InvalidSignature(t *testing.T) {
	_, err := RecoverSigner(big.NewInt(1), testRelayRequest(common.Address{}), []byte{0x01})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid signature length")
}
