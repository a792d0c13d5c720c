package relayclient

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastRawTx(t *testing.T) {
	tests := []struct {
		name       string
		configure  func(env *testEnv, tx *types.Transaction)
		expected   BroadcastResult
		expectErr  string
		expectSent bool
	}{
		{
			name: "already mined",
			configure: func(env *testEnv, tx *types.Transaction) {
				env.chain.Receipts[tx.Hash()] = &types.Receipt{Status: types.ReceiptStatusSuccessful}
			},
			expected: BroadcastResult{HasReceipt: true},
		},
		{
			name: "already pending",
			configure: func(env *testEnv, tx *types.Transaction) {
				env.chain.Pending = []common.Hash{common.HexToHash("0x01"), tx.Hash()}
			},
			expected: BroadcastResult{HasReceipt: true},
		},
		{
			name:       "sent by the client",
			expected:   BroadcastResult{HasReceipt: true},
			expectSent: true,
		},
		{
			name: "pending block unavailable",
			configure: func(env *testEnv, _ *types.Transaction) {
				env.chain.PendingErr = errors.New("pending block is not available")
			},
			expected:   BroadcastResult{HasReceipt: true},
			expectSent: true,
		},
		{
			name: "relay already broadcast it",
			configure: func(env *testEnv, _ *types.Transaction) {
				env.chain.SendErr = errors.New("already known")
			},
			expected:  BroadcastResult{WrongNonce: true},
			expectErr: "already known",
		},
		{
			name: "nonce taken by another transaction",
			configure: func(env *testEnv, _ *types.Transaction) {
				env.chain.SendErr = errors.New("nonce too low")
			},
			expected:  BroadcastResult{WrongNonce: true},
			expectErr: "nonce too low",
		},
		{
			name: "send failure",
			configure: func(env *testEnv, _ *types.Transaction) {
				env.chain.SendErr = errors.New("insufficient funds for gas * price + value")
			},
			expectErr: "insufficient funds",
		},
		{
			name: "receipt lookup failure",
			configure: func(env *testEnv, _ *types.Transaction) {
				env.chain.ReceiptErr = errors.New("rpc down")
			},
			expectErr: "failed to get transaction receipt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testConfig(), Dependencies{})
			relay := env.addRelay(t, "https://relay-a")
			tx := decodeRaw(t, relay.signedTx(t, 1))

			if tt.configure != nil {
				tt.configure(env, tx)
			}

			result := env.client.broadcastRawTx(context.Background(), tx)
			assert.Equal(t, tt.expected.HasReceipt, result.HasReceipt)
			assert.Equal(t, tt.expected.WrongNonce, result.WrongNonce)
			if tt.expectErr != "" {
				require.Error(t, result.Err)
				assert.Contains(t, result.Err.Error(), tt.expectErr)
			} else {
				assert.NoError(t, result.Err)
			}

			sent := env.chain.SentTransactions()
			if tt.expectSent {
				require.Len(t, sent, 1)
				assert.Equal(t, tx.Hash(), decodeRaw(t, sent[0]).Hash())
			} else {
				assert.Empty(t, sent)
			}
		})
	}
}

func TestRelayTransaction_BroadcastFailureKeepsTransaction(t *testing.T) {
	env := newTestEnv(t, testConfig(), Dependencies{})
	env.addRelay(t, "https://relay-a")
	env.chain.SendErr = errors.New("insufficient funds for gas * price + value")

	result, err := env.client.RelayTransaction(context.Background(), testDetails())
	require.NoError(t, err)
	assert.NotNil(t, result.Transaction)
	assert.Empty(t, result.RelayingErrors)
}
