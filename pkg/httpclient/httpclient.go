// Package httpclient provides a client for the relay server HTTP protocol.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/speedrun-hq/speedrun-relayclient/pkg/logger"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
)

const (
	pingPath  = "/getaddr"
	relayPath = "/relay"
)

// RelayResponse is the answer of a relay server to a /relay request
type RelayResponse struct {
	SignedTx string `json:"signedTx,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Client talks to relay servers
type Client struct {
	httpClient *http.Client
	logger     logger.Logger
}

// New creates a new relay server client
func New(timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Client{
		httpClient: createHTTPClient(timeout),
		logger:     log,
	}
}

// GetPingResponse asks the relay for its worker address and acceptance terms
func (c *Client) GetPingResponse(ctx context.Context, relayURL string) (*models.PingResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint(relayURL, pingPath), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ping request: %v", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var ping models.PingResponse
	if err := json.Unmarshal(body, &ping); err != nil {
		return nil, fmt.Errorf("failed to decode ping response: %v, body: %s", err, string(body))
	}

	c.logger.DebugWithRelay(relayURL, "Ping response: worker %s, ready %t, version %s",
		ping.RelayWorkerAddress.Hex(), ping.Ready, ping.Version)
	return &ping, nil
}

// RelayTransaction sends the signed envelope to the relay and returns the raw transaction it signed
func (c *Client) RelayTransaction(ctx context.Context, relayURL string, envelope *models.RelayTransactionRequest) (string, error) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to encode relay request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(relayURL, relayPath), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create relay request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var resp RelayResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode relay response: %v, body: %s", err, string(body))
	}
	if resp.Error != "" {
		return "", fmt.Errorf("relay error: %s", resp.Error)
	}
	if resp.SignedTx == "" {
		return "", fmt.Errorf("relay response has no signedTx, body: %s", string(body))
	}

	c.logger.DebugWithRelay(relayURL, "Relay returned signed transaction")
	return resp.SignedTx, nil
}

// do executes the request and returns the body of a 200 response
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URL.String(), err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.logger.Error("Failed to close response body: %v", err)
		}
	}(resp.Body)

	// Read the response body regardless of status code
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}
	return bodyBytes, nil
}

func endpoint(relayURL, path string) string {
	return strings.TrimRight(relayURL, "/") + path
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
