package chainclient

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/logger"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// callBackend answers eth_call with a fixed error, the other methods are not used
type callBackend struct {
	Backend
	callErr error
}

func (b *callBackend) HeaderByNumber(_ context.Context, _ *big.Int) (*types.Header, error) {
	return &types.Header{GasLimit: 10000000}, nil
}

func (b *callBackend) CallContract(_ context.Context, _ ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	return nil, b.callErr
}

// revertError mimics the JSON-RPC error carrying revert data
type revertError struct {
	data string
}

func (e revertError) Error() string          { return "execution reverted" }
func (e revertError) ErrorCode() int         { return 3 }
func (e revertError) ErrorData() interface{} { return e.data }

func viewCallRequest() *models.RelayRequest {
	return &models.RelayRequest{
		Request: models.ForwardRequest{
			From:  common.HexToAddress("0x00000000000000000000000000000000000000a1"),
			To:    common.HexToAddress("0x00000000000000000000000000000000000000a2"),
			Value: "0",
			Gas:   "100000",
			Nonce: "0",
		},
		RelayData: models.RelayData{
			GasPrice:     "0",
			PctRelayFee:  "10",
			BaseRelayFee: "0",
			RelayWorker:  common.HexToAddress("0x00000000000000000000000000000000000000b1"),
			ClientID:     "1",
		},
	}
}

func TestClient_ValidateRelayCall_Errors(t *testing.T) {
	tests := []struct {
		name           string
		callErr        error
		expectReverted bool
		expectedData   []byte
		expectedErr    error
	}{
		{
			name:           "revert with data",
			callErr:        revertError{data: "0xdeadbeef"},
			expectReverted: true,
			expectedData:   []byte{0xde, 0xad, 0xbe, 0xef},
		},
		{
			name:           "revert without data",
			callErr:        errors.New("execution reverted"),
			expectReverted: true,
			expectedData:   []byte("execution reverted"),
		},
		{
			name:           "out of gas",
			callErr:        errors.New("out of gas"),
			expectReverted: true,
			expectedData:   []byte("out of gas"),
		},
		{
			name:    "connection refused",
			callErr: errors.New("dial tcp 127.0.0.1:8545: connect: connection refused"),
		},
		{
			name:        "cancelled context",
			callErr:     context.Canceled,
			expectedErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewWithBackend(&callBackend{callErr: tt.callErr}, testutil.GenerateAddress(), &logger.EmptyLogger{})
			require.NoError(t, err)

			result, err := client.ValidateRelayCall(context.Background(), 285252, viewCallRequest(), make([]byte, 65), nil)
			if !tt.expectReverted {
				require.Error(t, err)
				assert.Nil(t, result)
				assert.Contains(t, err.Error(), "relayCall view call failed")
				if tt.expectedErr != nil {
					assert.ErrorIs(t, err, tt.expectedErr)
				}
				return
			}

			require.NoError(t, err)
			require.NotNil(t, result)
			assert.True(t, result.Reverted)
			assert.False(t, result.PaymasterAccepted)
			assert.Equal(t, tt.expectedData, result.ReturnValue)
		})
	}
}
