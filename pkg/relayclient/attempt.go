package relayclient

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
)

// attemptRelay relays the transaction through a single relay. The request is dry run
// locally first so a relay is never contacted for a request the RelayHub would reject.
func (c *RelayClient) attemptRelay(ctx context.Context, relay *models.RelayInfo, details *models.TransactionDetails) (*types.Transaction, error) {
	relayURL := relay.RelayInfo.RelayURL
	c.logger.InfoWithRelay(relayURL, "Attempting relay: worker %s, transaction from %s to %s, gas %s at %s",
		relay.PingResponse.RelayWorkerAddress.Hex(), details.From.Hex(), details.To.Hex(), details.Gas, details.GasPrice)

	maxAcceptanceBudget, err := relay.PingResponse.MaxAcceptanceBudgetValue()
	if err != nil {
		return nil, err
	}

	envelope, err := c.prepareRelayHTTPRequest(ctx, relay, details)
	if err != nil {
		return nil, err
	}

	c.emit(Event{Kind: EventValidateRequest})

	callResult, err := c.chain.ValidateRelayCall(ctx, maxAcceptanceBudget, &envelope.RelayRequest,
		envelope.Metadata.Signature, envelope.Metadata.ApprovalData)
	if err != nil {
		return nil, fmt.Errorf("local view call to 'relayCall()' failed: %w", err)
	}
	if !callResult.PaymasterAccepted {
		reason := ErrPaymasterRejected
		if callResult.Reverted {
			reason = ErrLocalViewCallReverted
		}
		return nil, fmt.Errorf("%w: %s", reason, decodeRevertReason(callResult.ReturnValue))
	}

	c.emit(Event{Kind: EventSendToRelayer, RelayURL: relayURL})
	rawTx, err := c.wire.RelayTransaction(ctx, relayURL, envelope)
	if err != nil {
		if isTimeoutError(err) {
			c.directory.SaveRelayFailure(c.now(), relayManager(relay), relayURL)
		}
		c.logger.InfoWithRelay(relayURL, "relayTransaction failed for request from %s with nonce %s: %v",
			envelope.RelayRequest.Request.From.Hex(), envelope.RelayRequest.Request.Nonce, err)
		return nil, err
	}

	tx, err := decodeTransaction(rawTx)
	if err != nil {
		return nil, err
	}

	if err := c.validator.ValidateRelayResponse(envelope, maxAcceptanceBudget, tx); err != nil {
		c.emit(Event{Kind: EventRelayerResponse, Success: false})
		c.directory.SaveRelayFailure(c.now(), relayManager(relay), relayURL)
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	c.emit(Event{Kind: EventRelayerResponse, Success: true})

	broadcast := c.broadcastRawTx(ctx, tx)
	if broadcast.Err != nil && !broadcast.WrongNonce {
		c.logger.WarnWithRelay(relayURL, "Broadcast of relayed transaction %s failed: %v", tx.Hash().Hex(), broadcast.Err)
	}

	return tx, nil
}

// prepareRelayHTTPRequest builds and signs the request for the relay. Paymaster data is part
// of the signed request, approval data is computed after signing and is not.
func (c *RelayClient) prepareRelayHTTPRequest(ctx context.Context, relay *models.RelayInfo, details *models.TransactionDetails) (*models.RelayTransactionRequest, error) {
	forwarder, err := c.resolveForwarder(ctx, details)
	if err != nil {
		return nil, err
	}

	paymaster := c.cfg.PaymasterAddress
	if details.Paymaster != nil {
		paymaster = *details.Paymaster
	}

	senderNonce, err := c.chain.SenderNonce(ctx, details.From, forwarder)
	if err != nil {
		return nil, err
	}

	relayWorker := relay.PingResponse.RelayWorkerAddress
	if details.GasPrice == "" || details.Gas == "" {
		return nil, ErrGasNotCalculated
	}
	gasPrice, err := parseHexQuantity("gasPrice", details.GasPrice)
	if err != nil {
		return nil, err
	}
	gasLimit, err := parseHexQuantity("gasLimit", details.Gas)
	if err != nil {
		return nil, err
	}

	value := "0"
	if details.Value != nil {
		value = details.Value.String()
	}

	req := &models.RelayRequest{
		Request: models.ForwardRequest{
			From:  details.From,
			To:    details.To,
			Value: value,
			Gas:   gasLimit,
			Nonce: senderNonce.String(),
			Data:  details.Data,
		},
		RelayData: models.RelayData{
			GasPrice:      gasPrice,
			PctRelayFee:   relay.RelayInfo.PctRelayFee,
			BaseRelayFee:  relay.RelayInfo.BaseRelayFee,
			RelayWorker:   relayWorker,
			Paymaster:     paymaster,
			Forwarder:     forwarder,
			PaymasterData: []byte{},
			ClientID:      c.cfg.ClientID,
		},
	}

	paymasterData, err := c.paymasterData(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to compute paymaster data: %w", err)
	}
	req.RelayData.PaymasterData = paymasterData

	c.emit(Event{Kind: EventSignRequest})
	signature, err := c.signer.Sign(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to sign relay request: %w", err)
	}

	approvalData, err := c.approvalData(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to compute approval data: %w", err)
	}

	// The max nonce is not signed, contracts cannot read the nonce of an account
	transactionCount, err := c.chain.TransactionCount(ctx, relayWorker)
	if err != nil {
		return nil, err
	}

	envelope := &models.RelayTransactionRequest{
		RelayRequest: *req,
		Metadata: models.RelayMetadata{
			RelayHubAddress: c.cfg.RelayHubAddress,
			Signature:       signature,
			ApprovalData:    approvalData,
			RelayMaxNonce:   transactionCount + c.cfg.MaxRelayNonceGap,
		},
	}
	c.logger.DebugWithRelay(relay.RelayInfo.RelayURL, "Created relay request: sender nonce %s, forwarder %s, paymaster %s, relayMaxNonce %d",
		req.Request.Nonce, forwarder.Hex(), paymaster.Hex(), envelope.Metadata.RelayMaxNonce)

	return envelope, nil
}

// resolveForwarder returns the forwarder of the transaction. A configured forwarder must be
// trusted by the recipient, otherwise the forwarder is read from the recipient.
func (c *RelayClient) resolveForwarder(ctx context.Context, details *models.TransactionDetails) (common.Address, error) {
	forwarder := c.cfg.ForwarderAddress
	if details.Forwarder != nil {
		forwarder = *details.Forwarder
	}

	if forwarder != (common.Address{}) {
		deployed, err := c.chain.IsContractDeployed(ctx, details.To)
		if err != nil {
			return common.Address{}, err
		}
		if !deployed {
			c.logger.Warn("No recipient code at %s, proceeding without validating isTrustedForwarder. "+
				"Unless a counterfactual deployment is used the transaction will fail", details.To.Hex())
			return forwarder, nil
		}
		if c.cfg.SkipRecipientForwarderValidation {
			return forwarder, nil
		}

		trusted, err := c.chain.IsTrustedForwarder(ctx, details.To, forwarder)
		if err != nil {
			return common.Address{}, err
		}
		if !trusted {
			return common.Address{}, ErrForwarderNotTrusted
		}
		return forwarder, nil
	}

	c.logger.Info("Will attempt to get trusted forwarder from %s", details.To.Hex())
	forwarder, err := c.chain.GetForwarder(ctx, details.To)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrNoForwarder, err)
	}
	c.logger.Info("On-chain forwarder for %s is %s", details.To.Hex(), forwarder.Hex())
	return forwarder, nil
}

// parseHexQuantity converts a 0x-prefixed hex quantity into the decimal form of the wire format
func parseHexQuantity(field, value string) (string, error) {
	if !has0xPrefix(value) {
		return "", fmt.Errorf("%w: %s %s", ErrInvalidGasHex, field, value)
	}
	parsed, err := models.ParseUint256(field, value)
	if err != nil {
		return "", fmt.Errorf("%w: %s %s", ErrInvalidGasHex, field, value)
	}
	return parsed.String(), nil
}

func has0xPrefix(value string) bool {
	return len(value) >= 2 && value[0] == '0' && (value[1] == 'x' || value[1] == 'X')
}

// decodeTransaction decodes the raw signed transaction returned by a relay
func decodeTransaction(rawTx string) (*types.Transaction, error) {
	data, err := hexutil.Decode(rawTx)
	if err != nil {
		return nil, fmt.Errorf("invalid relayed transaction: %v", err)
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("failed to decode relayed transaction: %v", err)
	}
	return tx, nil
}

// relayManager returns the manager of the relay, from the ping response for preferred relays
func relayManager(relay *models.RelayInfo) common.Address {
	if relay.RelayInfo.RelayManager != (common.Address{}) {
		return relay.RelayInfo.RelayManager
	}
	return relay.PingResponse.RelayManagerAddress
}
