package relayclient

import (
	"context"
	"fmt"

	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
)

// EmptyDataCallback returns empty paymaster or approval data
func EmptyDataCallback(_ context.Context, _ *models.RelayRequest) ([]byte, error) {
	return []byte{}, nil
}

// GasPricePingFilter rejects relays that require a higher gas price than the transaction offers
func GasPricePingFilter(ping *models.PingResponse, details *models.TransactionDetails) error {
	if details.GasPrice == "" {
		return nil
	}

	proposed, err := models.ParseUint256("gasPrice", details.GasPrice)
	if err != nil {
		return err
	}
	minGasPrice, err := ping.MinGasPriceValue()
	if err != nil {
		return err
	}

	if minGasPrice.Cmp(proposed) > 0 {
		return fmt.Errorf("proposed gas price: %s; relay's minGasPrice: %s", details.GasPrice, ping.MinGasPrice)
	}
	return nil
}
