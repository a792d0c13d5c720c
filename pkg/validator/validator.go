// Package validator checks the transactions returned by relay servers against the request they were given.
package validator

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/contracts"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/logger"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
)

// ErrInvalidRelayTransaction is wrapped by every rule violation
var ErrInvalidRelayTransaction = errors.New("invalid relayed transaction")

// SignerSource provides the transaction signer of the network
type SignerSource interface {
	Signer() types.Signer
}

// Validator checks relayed transactions
type Validator struct {
	chain       SignerSource
	maxGasLimit uint64
	logger      logger.Logger
}

// New creates a new validator. Transactions with a gas limit above maxGasLimit are rejected.
func New(chain SignerSource, maxGasLimit uint64, log logger.Logger) *Validator {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Validator{
		chain:       chain,
		maxGasLimit: maxGasLimit,
		logger:      log,
	}
}

// ValidateRelayResponse checks that tx is a relayCall to the hub carrying exactly the request,
// signed by the relay worker within the nonce and gas bounds of the envelope
func (v *Validator) ValidateRelayResponse(req *models.RelayTransactionRequest, maxAcceptanceBudget uint64, tx *types.Transaction) error {
	if err := v.validate(req, maxAcceptanceBudget, tx); err != nil {
		v.logger.Warn("Relayed transaction %s rejected: %v", tx.Hash().Hex(), err)
		return err
	}
	return nil
}

func (v *Validator) validate(req *models.RelayTransactionRequest, maxAcceptanceBudget uint64, tx *types.Transaction) error {
	switch tx.Type() {
	case types.LegacyTxType, types.AccessListTxType, types.DynamicFeeTxType:
	default:
		return fmt.Errorf("%w: unsupported transaction type %d", ErrInvalidRelayTransaction, tx.Type())
	}

	to := tx.To()
	if to == nil {
		return fmt.Errorf("%w: contract creation", ErrInvalidRelayTransaction)
	}
	if *to != req.Metadata.RelayHubAddress {
		return fmt.Errorf("%w: destination %s is not the relay hub %s",
			ErrInvalidRelayTransaction, to.Hex(), req.Metadata.RelayHubAddress.Hex())
	}

	if tx.Gas() > v.maxGasLimit {
		return fmt.Errorf("%w: gas limit %d exceeds %d", ErrInvalidRelayTransaction, tx.Gas(), v.maxGasLimit)
	}

	requestedGasPrice, err := models.ParseUint256("gasPrice", req.RelayRequest.RelayData.GasPrice)
	if err != nil {
		return err
	}
	// GasPrice is the fee cap for dynamic fee transactions. The hub reverts below the
	// requested price and the sender pays for anything above it.
	switch offered := tx.GasPrice(); offered.Cmp(requestedGasPrice) {
	case -1:
		return fmt.Errorf("%w: gas price %s is below the requested %s",
			ErrInvalidRelayTransaction, offered.String(), requestedGasPrice.String())
	case 1:
		return fmt.Errorf("%w: gas price %s exceeds the requested %s",
			ErrInvalidRelayTransaction, offered.String(), requestedGasPrice.String())
	}

	if tx.Nonce() > req.Metadata.RelayMaxNonce {
		return fmt.Errorf("%w: nonce %d exceeds relayMaxNonce %d",
			ErrInvalidRelayTransaction, tx.Nonce(), req.Metadata.RelayMaxNonce)
	}

	expected, err := contracts.PackRelayCall(maxAcceptanceBudget, &req.RelayRequest,
		req.Metadata.Signature, req.Metadata.ApprovalData, tx.Gas())
	if err != nil {
		return err
	}
	if !bytes.Equal(expected, tx.Data()) {
		return fmt.Errorf("%w: calldata does not match the relay request", ErrInvalidRelayTransaction)
	}

	signer := v.chain.Signer()
	if signer == nil {
		return fmt.Errorf("%w: network signer not available", ErrInvalidRelayTransaction)
	}
	sender, err := types.Sender(signer, tx)
	if err != nil {
		return fmt.Errorf("%w: failed to recover sender: %v", ErrInvalidRelayTransaction, err)
	}
	if sender != req.RelayRequest.RelayData.RelayWorker {
		return fmt.Errorf("%w: signed by %s instead of relay worker %s",
			ErrInvalidRelayTransaction, sender.Hex(), req.RelayRequest.RelayData.RelayWorker.Hex())
	}

	return nil
}
