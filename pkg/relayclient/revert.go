package relayclient

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// decodeRevertReason turns the return value of a failed relayCall into a readable reason.
// Error(string) payloads are decoded, plain text is kept and anything else is shown as hex.
func decodeRevertReason(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if reason, err := abi.UnpackRevert(data); err == nil {
		return reason
	}
	if isPrintable(data) {
		return string(data)
	}
	return hexutil.Encode(data)
}

func isPrintable(data []byte) bool {
	for _, b := range data {
		if b < 0x20 || b > 0x7e {
			return false
		}
	}
	return true
}
