// Package account keeps sender keys in memory and signs relay requests with them.
package account

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
)

const (
	domainName    = "GSN Relayed Transaction"
	domainVersion = "2"
)

// ErrChainIDUnknown is returned when signing before the network parameters are known
var ErrChainIDUnknown = errors.New("chain ID unknown, chain client not initialized")

// ChainIDSource provides the chain ID used in the signing domain
type ChainIDSource interface {
	ChainID() *big.Int
}

// StaticChainID is a ChainIDSource with a fixed value
type StaticChainID struct {
	ID *big.Int
}

// ChainID returns the fixed chain ID
func (s StaticChainID) ChainID() *big.Int {
	return s.ID
}

var relayRequestTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"RelayRequest": {
		{Name: "from", Type: "address"},
		{Name: "to", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "gas", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "data", Type: "bytes"},
		{Name: "relayData", Type: "RelayData"},
	},
	"RelayData": {
		{Name: "gasPrice", Type: "uint256"},
		{Name: "pctRelayFee", Type: "uint256"},
		{Name: "baseRelayFee", Type: "uint256"},
		{Name: "relayWorker", Type: "address"},
		{Name: "paymaster", Type: "address"},
		{Name: "forwarder", Type: "address"},
		{Name: "paymasterData", Type: "bytes"},
		{Name: "clientId", Type: "uint256"},
	},
}

// Manager holds the private keys of the senders
type Manager struct {
	chain ChainIDSource

	mu   sync.RWMutex
	keys map[common.Address]*ecdsa.PrivateKey
}

// New creates an account manager signing for the chain reported by the source
func New(chain ChainIDSource) *Manager {
	return &Manager{
		chain: chain,
		keys:  make(map[common.Address]*ecdsa.PrivateKey),
	}
}

// AddAccount imports a hex encoded private key and returns its address
func (m *Manager) AddAccount(privateKeyHex string) (common.Address, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to parse private key: %v", err)
	}
	return m.addKey(privateKey), nil
}

// NewAccount generates a fresh key and returns its address
func (m *Manager) NewAccount() (common.Address, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to generate private key: %v", err)
	}
	return m.addKey(privateKey), nil
}

func (m *Manager) addKey(privateKey *ecdsa.PrivateKey) common.Address {
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	m.mu.Lock()
	m.keys[address] = privateKey
	m.mu.Unlock()

	return address
}

// Sign signs the typed data hash of the relay request with the key of its sender
func (m *Manager) Sign(_ context.Context, req *models.RelayRequest) ([]byte, error) {
	m.mu.RLock()
	privateKey, ok := m.keys[req.Request.From]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no signing key for %s", req.Request.From.Hex())
	}

	chainID := m.chain.ChainID()
	if chainID == nil {
		return nil, ErrChainIDUnknown
	}

	digest, err := TypedDataHash(chainID, req)
	if err != nil {
		return nil, err
	}

	signature, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign relay request: %v", err)
	}
	signature[crypto.RecoveryIDOffset] += 27

	// The forwarder recovers the sender from the same digest, a mismatch would only fail on chain
	signer, err := RecoverSigner(chainID, req, signature)
	if err != nil {
		return nil, err
	}
	if signer != req.Request.From {
		return nil, fmt.Errorf("signature recovers to %s instead of %s", signer.Hex(), req.Request.From.Hex())
	}
	return signature, nil
}

// RecoverSigner returns the address that produced the signature over the relay request
func RecoverSigner(chainID *big.Int, req *models.RelayRequest, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}

	digest, err := TypedDataHash(chainID, req)
	if err != nil {
		return common.Address{}, err
	}

	sig := common.CopyBytes(signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	publicKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %v", err)
	}
	return crypto.PubkeyToAddress(*publicKey), nil
}

// TypedDataHash computes the EIP-712 digest of the relay request. The forwarder is the verifying contract.
func TypedDataHash(chainID *big.Int, req *models.RelayRequest) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       relayRequestTypes,
		PrimaryType: "RelayRequest",
		Domain: apitypes.TypedDataDomain{
			Name:              domainName,
			Version:           domainVersion,
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: req.RelayData.Forwarder.Hex(),
		},
		Message: relayRequestMessage(req),
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash signing domain: %v", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash relay request: %v", err)
	}

	raw := make([]byte, 0, 2+len(domainSeparator)+len(messageHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, messageHash...)
	return crypto.Keccak256(raw), nil
}

func relayRequestMessage(req *models.RelayRequest) apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"from":  req.Request.From.Hex(),
		"to":    req.Request.To.Hex(),
		"value": quantity(req.Request.Value),
		"gas":   quantity(req.Request.Gas),
		"nonce": quantity(req.Request.Nonce),
		"data":  hexutil.Encode(req.Request.Data),
		"relayData": map[string]interface{}{
			"gasPrice":      quantity(req.RelayData.GasPrice),
			"pctRelayFee":   quantity(req.RelayData.PctRelayFee),
			"baseRelayFee":  quantity(req.RelayData.BaseRelayFee),
			"relayWorker":   req.RelayData.RelayWorker.Hex(),
			"paymaster":     req.RelayData.Paymaster.Hex(),
			"forwarder":     req.RelayData.Forwarder.Hex(),
			"paymasterData": hexutil.Encode(req.RelayData.PaymasterData),
			"clientId":      quantity(req.RelayData.ClientID),
		},
	}
}

// quantity maps an empty wire value to zero, the encoder rejects empty strings
func quantity(value string) string {
	if value == "" {
		return "0"
	}
	return value
}
