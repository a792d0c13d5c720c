package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/logger"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	return New(time.Second, &logger.EmptyLogger{})
}

func TestGetPingResponse(t *testing.T) {
	worker := common.HexToAddress("0x00000000000000000000000000000000000000b1")

	t.Run("decodes the ping response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/getaddr", r.URL.Path)
			_ = json.NewEncoder(w).Encode(models.PingResponse{
				RelayWorkerAddress:  worker,
				MinGasPrice:         "1000",
				MaxAcceptanceBudget: "285252",
				Ready:               true,
				Version:             "2.2.0",
			})
		}))
		defer server.Close()

		// Trailing slash must not produce a double slash in the path
		ping, err := newTestClient().GetPingResponse(context.Background(), server.URL+"/")
		require.NoError(t, err)
		assert.Equal(t, worker, ping.RelayWorkerAddress)
		assert.True(t, ping.Ready)
		assert.Equal(t, "1000", ping.MinGasPrice)
	})

	t.Run("non 200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := newTestClient().GetPingResponse(context.Background(), server.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status code: 503")
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer server.Close()

		_, err := newTestClient().GetPingResponse(context.Background(), server.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode ping response")
	})

	t.Run("client timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		client := New(50*time.Millisecond, nil)
		_, err := client.GetPingResponse(context.Background(), server.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Timeout")
	})
}

func TestRelayTransaction(t *testing.T) {
	envelope := &models.RelayTransactionRequest{
		RelayRequest: models.RelayRequest{
			Request: models.ForwardRequest{
				From:  common.HexToAddress("0x00000000000000000000000000000000000000a1"),
				To:    common.HexToAddress("0x00000000000000000000000000000000000000a2"),
				Value: "0",
				Gas:   "100000",
				Nonce: "3",
			},
		},
		Metadata: models.RelayMetadata{
			Signature:     []byte{0x01, 0x02},
			RelayMaxNonce: 7,
		},
	}

	tests := []struct {
		name        string
		status      int
		body        string
		expected    string
		errContains string
	}{
		{
			name:     "signed transaction returned",
			status:   http.StatusOK,
			body:     `{"signedTx":"0xf86c"}`,
			expected: "0xf86c",
		},
		{
			name:        "relay reports an error",
			status:      http.StatusOK,
			body:        `{"error":"paymaster rejected"}`,
			errContains: "relay error: paymaster rejected",
		},
		{
			name:        "missing signed transaction",
			status:      http.StatusOK,
			body:        `{}`,
			errContains: "no signedTx",
		},
		{
			name:        "server error",
			status:      http.StatusInternalServerError,
			body:        `{"error":"boom"}`,
			errContains: "unexpected status code: 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/relay", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var received models.RelayTransactionRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
				assert.Equal(t, envelope.RelayRequest.Request.From, received.RelayRequest.Request.From)
				assert.Equal(t, uint64(7), received.Metadata.RelayMaxNonce)

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			signedTx, err := newTestClient().RelayTransaction(context.Background(), server.URL, envelope)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, signedTx)
		})
	}
}
