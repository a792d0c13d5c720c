package models

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
)

// RelayRegistration represents a relay server as known from the RelayHub or from configuration
type RelayRegistration struct {
	RelayManager common.Address `json:"relayManager"`
	RelayURL     string         `json:"relayUrl"`
	BaseRelayFee string         `json:"baseRelayFee"`
	PctRelayFee  string         `json:"pctRelayFee"`
}

// PingResponse is the answer of a relay server to a /getaddr request
type PingResponse struct {
	RelayWorkerAddress  common.Address `json:"relayWorkerAddress"`
	RelayManagerAddress common.Address `json:"relayManagerAddress"`
	RelayHubAddress     common.Address `json:"relayHubAddress"`
	MinGasPrice         string         `json:"minGasPrice"`
	MaxAcceptanceBudget string         `json:"maxAcceptanceBudget"`
	NetworkID           string         `json:"networkId,omitempty"`
	ChainID             string         `json:"chainId,omitempty"`
	Ready               bool           `json:"ready"`
	Version             string         `json:"version"`
}

// RelayInfo is a relay candidate that answered a ping
type RelayInfo struct {
	RelayInfo    RelayRegistration `json:"relayInfo"`
	PingResponse PingResponse      `json:"pingResponse"`
}

// ForwardRequest is the part of the relay request verified by the forwarder
type ForwardRequest struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Value string         `json:"value"`
	Gas   string         `json:"gas"`
	Nonce string         `json:"nonce"`
	Data  hexutil.Bytes  `json:"data"`
}

// RelayData carries the fee terms and the parties involved in relaying
type RelayData struct {
	GasPrice      string         `json:"gasPrice"`
	PctRelayFee   string         `json:"pctRelayFee"`
	BaseRelayFee  string         `json:"baseRelayFee"`
	RelayWorker   common.Address `json:"relayWorker"`
	Paymaster     common.Address `json:"paymaster"`
	Forwarder     common.Address `json:"forwarder"`
	PaymasterData hexutil.Bytes  `json:"paymasterData"`
	ClientID      string         `json:"clientId"`
}

// RelayRequest is the payload signed by the sender
type RelayRequest struct {
	Request   ForwardRequest `json:"request"`
	RelayData RelayData      `json:"relayData"`
}

// RelayMetadata holds the envelope fields that are not covered by the signature
type RelayMetadata struct {
	RelayHubAddress common.Address `json:"relayHubAddress"`
	Signature       hexutil.Bytes  `json:"signature"`
	ApprovalData    hexutil.Bytes  `json:"approvalData"`
	RelayMaxNonce   uint64         `json:"relayMaxNonce"`
}

// RelayTransactionRequest is the envelope sent to a relay server
type RelayTransactionRequest struct {
	RelayRequest RelayRequest  `json:"relayRequest"`
	Metadata     RelayMetadata `json:"metadata"`
}

// RelayCallResult is the outcome of a local dry run of relayCall
type RelayCallResult struct {
	PaymasterAccepted bool
	Reverted          bool
	ReturnValue       []byte
}

// ParseUint256 parses a decimal or 0x-prefixed hex quantity as used on the relay wire format.
// An empty string is read as zero.
func ParseUint256(field, value string) (*big.Int, error) {
	if value == "" {
		return new(big.Int), nil
	}
	parsed, ok := math.ParseBig256(value)
	if !ok {
		return nil, fmt.Errorf("invalid %s value: %s", field, value)
	}
	return parsed, nil
}

// MinGasPriceValue returns the minimal gas price accepted by the relay
func (p PingResponse) MinGasPriceValue() (*big.Int, error) {
	return ParseUint256("minGasPrice", p.MinGasPrice)
}

// MaxAcceptanceBudgetValue returns the gas budget the relay guarantees for paymaster acceptance checks
func (p PingResponse) MaxAcceptanceBudgetValue() (uint64, error) {
	budget, err := ParseUint256("maxAcceptanceBudget", p.MaxAcceptanceBudget)
	if err != nil {
		return 0, err
	}
	if !budget.IsUint64() {
		return 0, fmt.Errorf("maxAcceptanceBudget out of range: %s", p.MaxAcceptanceBudget)
	}
	return budget.Uint64(), nil
}
