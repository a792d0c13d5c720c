package contracts

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
)

// ForwardRequestTuple is the ABI representation of IForwarder.ForwardRequest
type ForwardRequestTuple struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Gas   *big.Int
	Nonce *big.Int
	Data  []byte
}

// RelayDataTuple is the ABI representation of GsnTypes.RelayData
type RelayDataTuple struct {
	GasPrice      *big.Int
	PctRelayFee   *big.Int
	BaseRelayFee  *big.Int
	RelayWorker   common.Address
	Paymaster     common.Address
	Forwarder     common.Address
	PaymasterData []byte
	ClientId      *big.Int
}

// RelayRequestTuple is the ABI representation of GsnTypes.RelayRequest
type RelayRequestTuple struct {
	Request   ForwardRequestTuple
	RelayData RelayDataTuple
}

var (
	relayHubABIOnce     sync.Once
	relayHubABI         abi.ABI
	relayHubABIParseErr error
)

// ParsedRelayHubABI returns the parsed RelayHub ABI
func ParsedRelayHubABI() (abi.ABI, error) {
	relayHubABIOnce.Do(func() {
		relayHubABI, relayHubABIParseErr = abi.JSON(strings.NewReader(RelayHubABI))
	})
	return relayHubABI, relayHubABIParseErr
}

// NewRelayRequestTuple converts the wire representation of a relay request into its ABI form
func NewRelayRequestTuple(req *models.RelayRequest) (RelayRequestTuple, error) {
	var tuple RelayRequestTuple

	fields := []struct {
		name   string
		value  string
		target **big.Int
	}{
		{"value", req.Request.Value, &tuple.Request.Value},
		{"gas", req.Request.Gas, &tuple.Request.Gas},
		{"nonce", req.Request.Nonce, &tuple.Request.Nonce},
		{"gasPrice", req.RelayData.GasPrice, &tuple.RelayData.GasPrice},
		{"pctRelayFee", req.RelayData.PctRelayFee, &tuple.RelayData.PctRelayFee},
		{"baseRelayFee", req.RelayData.BaseRelayFee, &tuple.RelayData.BaseRelayFee},
		{"clientId", req.RelayData.ClientID, &tuple.RelayData.ClientId},
	}
	for _, field := range fields {
		parsed, err := models.ParseUint256(field.name, field.value)
		if err != nil {
			return RelayRequestTuple{}, err
		}
		*field.target = parsed
	}

	tuple.Request.From = req.Request.From
	tuple.Request.To = req.Request.To
	tuple.Request.Data = nonNilBytes(req.Request.Data)
	tuple.RelayData.RelayWorker = req.RelayData.RelayWorker
	tuple.RelayData.Paymaster = req.RelayData.Paymaster
	tuple.RelayData.Forwarder = req.RelayData.Forwarder
	tuple.RelayData.PaymasterData = nonNilBytes(req.RelayData.PaymasterData)

	return tuple, nil
}

// PackRelayCall encodes the calldata of RelayHub.relayCall
func PackRelayCall(maxAcceptanceBudget uint64, req *models.RelayRequest, signature, approvalData []byte, externalGasLimit uint64) ([]byte, error) {
	parsed, err := ParsedRelayHubABI()
	if err != nil {
		return nil, err
	}

	tuple, err := NewRelayRequestTuple(req)
	if err != nil {
		return nil, err
	}

	data, err := parsed.Pack("relayCall",
		new(big.Int).SetUint64(maxAcceptanceBudget),
		tuple,
		nonNilBytes(signature),
		nonNilBytes(approvalData),
		new(big.Int).SetUint64(externalGasLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack relayCall: %w", err)
	}
	return data, nil
}

// UnpackRelayCall decodes the return data of RelayHub.relayCall
func UnpackRelayCall(output []byte) (*models.RelayCallResult, error) {
	parsed, err := ParsedRelayHubABI()
	if err != nil {
		return nil, err
	}

	values, err := parsed.Unpack("relayCall", output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack relayCall result: %w", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected relayCall result length: %d", len(values))
	}

	accepted, ok := values[0].(bool)
	if !ok {
		return nil, fmt.Errorf("unexpected paymasterAccepted type %T", values[0])
	}
	returnValue, ok := values[1].([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected returnValue type %T", values[1])
	}

	return &models.RelayCallResult{
		PaymasterAccepted: accepted,
		ReturnValue:       returnValue,
	}, nil
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
