package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TransactionDetails represents a call the sender wants executed through a relay.
// GasPrice and Gas are filled in by the relay client when absent and are kept as
// 0x-prefixed hex strings.
type TransactionDetails struct {
	From          common.Address  `json:"from"`
	To            common.Address  `json:"to"`
	Data          hexutil.Bytes   `json:"data"`
	Value         *big.Int        `json:"value,omitempty"`
	Gas           string          `json:"gas,omitempty"`
	GasPrice      string          `json:"gasPrice,omitempty"`
	ForceGasPrice string          `json:"forceGasPrice,omitempty"`
	Forwarder     *common.Address `json:"forwarder,omitempty"`
	Paymaster     *common.Address `json:"paymaster,omitempty"`
}
