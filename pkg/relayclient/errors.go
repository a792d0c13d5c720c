package relayclient

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strings"

	"github.com/speedrun-hq/speedrun-relayclient/pkg/relayselection"
)

var (
	// ErrNoRegisteredRelayers is returned when no relay answered the ping round
	ErrNoRegisteredRelayers = errors.New("no registered relayers")

	// ErrGasNotCalculated means the gas price or gas limit was not resolved before building a request
	ErrGasNotCalculated = errors.New("relay client internal error: gas price or gas limit still not calculated")

	// ErrInvalidGasHex means the gas price or gas limit of the transaction is not a 0x-prefixed hex quantity
	ErrInvalidGasHex = errors.New("invalid gas hex string")

	// ErrForwarderNotTrusted is returned when the recipient does not trust the configured forwarder
	ErrForwarderNotTrusted = errors.New("the forwarder address configured but is not trusted by the recipient contract")

	// ErrNoForwarder is returned when no forwarder is configured and the recipient does not expose one
	ErrNoForwarder = errors.New("no forwarder address configured and no getTrustedForwarder in target contract (fetching from recipient failed)")

	// ErrValidationFailed is returned when the relay signed a transaction that does not match the request
	ErrValidationFailed = errors.New("returned transaction did not pass validation")

	// ErrLocalViewCallReverted is returned when the dry run of relayCall reverted
	ErrLocalViewCallReverted = errors.New("local view call to 'relayCall()' reverted")

	// ErrPaymasterRejected is returned when the paymaster refused the request in the dry run
	ErrPaymasterRejected = errors.New("paymaster rejected in local view call to 'relayCall()'")

	// ErrRelayerNotReady is recorded as a ping error for relays that are not ready
	ErrRelayerNotReady = relayselection.ErrRelayNotReady

	errNoReason = errors.New("no error reason was given")
)

// benignBroadcastError matches node answers meaning the transaction was already broadcast by someone else
var benignBroadcastError = regexp.MustCompile(`the tx doesn't have the correct nonce|known transaction|already known|incorrect nonce|nonce too low`)

// isFatalConfigError reports whether err comes from the transaction or the client configuration.
// Every other relay would fail the same way, so relaying stops at the first one.
func isFatalConfigError(err error) bool {
	return errors.Is(err, ErrGasNotCalculated) ||
		errors.Is(err, ErrInvalidGasHex) ||
		errors.Is(err, ErrForwarderNotTrusted) ||
		errors.Is(err, ErrNoForwarder)
}

// isTimeoutError reports whether a wire error looks like the relay did not answer in time
func isTimeoutError(err error) bool {
	if err == nil || err.Error() == "" {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// classifyRelayError maps a relaying error to the error_type metric label
func classifyRelayError(err error) string {
	switch {
	case errors.Is(err, ErrLocalViewCallReverted):
		return "dry_run_reverted"
	case errors.Is(err, ErrPaymasterRejected):
		return "paymaster_rejected"
	case errors.Is(err, ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, ErrForwarderNotTrusted), errors.Is(err, ErrNoForwarder):
		return "forwarder_error"
	case isTimeoutError(err):
		return "timeout"
	}

	errStr := err.Error()

	// Network errors
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "EOF") {
		return "network_error"
	}

	// The relay answered but refused the request
	if strings.Contains(errStr, "unexpected status code") ||
		strings.Contains(errStr, "relay error") {
		return "relay_rejected"
	}

	// Nonce-related errors
	if strings.Contains(errStr, "nonce too low") ||
		strings.Contains(errStr, "nonce too high") {
		return "nonce_error"
	}

	return "unknown_error"
}
