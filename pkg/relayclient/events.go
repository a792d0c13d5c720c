package relayclient

// EventKind identifies a step of the relaying lifecycle
type EventKind int

const (
	// EventInit is emitted when the one-time initialization starts
	EventInit EventKind = iota
	// EventRefreshRelays is emitted before the relay directory is refreshed
	EventRefreshRelays
	// EventDoneRefreshRelays carries the number of relays that answered the ping round
	EventDoneRefreshRelays
	// EventNextRelay carries the URL of the relay about to be tried
	EventNextRelay
	// EventValidateRequest is emitted before the local dry run of the request
	EventValidateRequest
	// EventSignRequest is emitted right before the request is signed
	EventSignRequest
	// EventSendToRelayer carries the URL the request is sent to
	EventSendToRelayer
	// EventRelayerResponse carries whether the returned transaction passed validation
	EventRelayerResponse
)

var eventKindNames = map[EventKind]string{
	EventInit:              "init",
	EventRefreshRelays:     "refresh_relays",
	EventDoneRefreshRelays: "done_refresh_relays",
	EventNextRelay:         "next_relay",
	EventValidateRequest:   "validate_request",
	EventSignRequest:       "sign_request",
	EventSendToRelayer:     "send_to_relayer",
	EventRelayerResponse:   "relayer_response",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is a lifecycle notification. Only the field matching the kind is set.
type Event struct {
	Kind        EventKind
	RelaysCount int
	RelayURL    string
	Success     bool
}

// EventListener receives lifecycle events
type EventListener func(Event)

// ListenerID identifies a registered listener
type ListenerID uint64

type registeredListener struct {
	id       ListenerID
	listener EventListener
}

// RegisterEventListener adds a listener. Listeners run synchronously in registration order.
func (c *RelayClient) RegisterEventListener(listener EventListener) ListenerID {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	c.nextListenerID++
	id := c.nextListenerID
	c.listeners = append(c.listeners, registeredListener{id: id, listener: listener})
	return id
}

// UnregisterEventListener removes a listener, unknown IDs are ignored
func (c *RelayClient) UnregisterEventListener(id ListenerID) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	for i, registered := range c.listeners {
		if registered.id == id {
			c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
			return
		}
	}
}

func (c *RelayClient) emit(event Event) {
	c.listenersMu.RLock()
	listeners := make([]EventListener, 0, len(c.listeners))
	for _, registered := range c.listeners {
		listeners = append(listeners, registered.listener)
	}
	c.listenersMu.RUnlock()

	for _, listener := range listeners {
		listener(event)
	}
}
