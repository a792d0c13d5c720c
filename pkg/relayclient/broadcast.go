package relayclient

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// broadcastRawTx sends the relayed transaction unless it is already mined or pending. A relay
// could sign a transaction and never send it, or sign another one with the same nonce. A nonce
// error on broadcast shows the latter.
func (c *RelayClient) broadcastRawTx(ctx context.Context, tx *types.Transaction) BroadcastResult {
	hash := tx.Hash()
	c.logger.Info("Broadcasting raw transaction signed by relay. TxHash: %s", hash.Hex())

	raw, err := tx.MarshalBinary()
	if err != nil {
		metrics.BroadcastResults.WithLabelValues("error").Inc()
		return BroadcastResult{Err: fmt.Errorf("failed to encode transaction: %w", err)}
	}

	submitted, err := c.isAlreadySubmitted(ctx, hash)
	if err != nil {
		metrics.BroadcastResults.WithLabelValues("error").Inc()
		return BroadcastResult{Err: err}
	}
	if submitted {
		metrics.BroadcastResults.WithLabelValues("already_submitted").Inc()
		return BroadcastResult{HasReceipt: true}
	}

	// Not mined and not in the pending block, send it ourselves
	if err := c.chain.SendSignedTransaction(ctx, hexutil.Encode(raw)); err != nil {
		if benignBroadcastError.MatchString(err.Error()) {
			metrics.BroadcastResults.WithLabelValues("wrong_nonce").Inc()
			return BroadcastResult{WrongNonce: true, Err: err}
		}
		metrics.BroadcastResults.WithLabelValues("error").Inc()
		return BroadcastResult{Err: err}
	}

	metrics.BroadcastResults.WithLabelValues("sent").Inc()
	return BroadcastResult{HasReceipt: true}
}

// isAlreadySubmitted looks for the transaction among the mined and the pending ones concurrently.
// Nodes without a pending block are treated as having no pending transactions.
func (c *RelayClient) isAlreadySubmitted(ctx context.Context, hash common.Hash) (bool, error) {
	var (
		receipt *types.Receipt
		pending []common.Hash
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		receipt, err = c.chain.TransactionReceipt(gctx, hash)
		if err != nil {
			return fmt.Errorf("failed to get transaction receipt: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		pending, err = c.chain.PendingTransactions(gctx)
		if err != nil {
			c.logger.Debug("Pending block not available: %v", err)
			pending = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return false, err
	}

	if receipt != nil {
		return true, nil
	}
	for _, pendingHash := range pending {
		if pendingHash == hash {
			return true, nil
		}
	}
	return false, nil
}
