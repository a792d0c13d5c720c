package relayclient

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/core/types"
)

// RelayingResult is the outcome of RelayTransaction. Both error maps are never nil and may be
// non-empty on success when earlier relays failed.
type RelayingResult struct {
	Transaction    *types.Transaction
	PingErrors     map[string]error
	RelayingErrors map[string]error
}

// BroadcastResult is the outcome of the client side broadcast of a relayed transaction
type BroadcastResult struct {
	HasReceipt bool
	WrongNonce bool
	Err        error
}

func newRelayingResult(pingErrors map[string]error) *RelayingResult {
	if pingErrors == nil {
		pingErrors = make(map[string]error)
	}
	return &RelayingResult{
		PingErrors:     pingErrors,
		RelayingErrors: make(map[string]error),
	}
}

// DumpRelayingResult formats the errors of a relaying result for logs
func DumpRelayingResult(result *RelayingResult) string {
	if result == nil {
		return ""
	}

	var sb strings.Builder
	writeErrors(&sb, "Ping errors", result.PingErrors)
	writeErrors(&sb, "Relaying errors", result.RelayingErrors)
	return sb.String()
}

func writeErrors(sb *strings.Builder, title string, errs map[string]error) {
	if len(errs) == 0 {
		return
	}

	urls := make([]string, 0, len(errs))
	for url := range errs {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	fmt.Fprintf(sb, "%s (%d):\n", title, len(errs))
	for _, url := range urls {
		message := "<nil>"
		if errs[url] != nil {
			message = errs[url].Error()
		}
		fmt.Fprintf(sb, "%s => %s\n", url, message)
	}
}
