// Package knownrelays keeps the directory of relay servers and their recent failures.
package knownrelays

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/circuitbreaker"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/config"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/logger"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/metrics"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
)

// RegistrationSource reads relay registrations from the chain
type RegistrationSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	RegisteredRelays(ctx context.Context, fromBlock uint64) ([]models.RelayRegistration, error)
}

// RelayStatus describes a known relay and its failure state
type RelayStatus struct {
	RelayURL       string         `json:"relayUrl"`
	RelayManager   common.Address `json:"relayManager"`
	Preferred      bool           `json:"preferred"`
	RecentFailures int            `json:"recentFailures"`
	LastFailure    *time.Time     `json:"lastFailure,omitempty"`
	Deprioritized  bool           `json:"deprioritized"`
}

// Manager is the relay directory
type Manager struct {
	source RegistrationSource
	cfg    config.KnownRelaysConfig
	logger logger.Logger
	now    func() time.Time

	mu         sync.RWMutex
	preferred  []models.RelayRegistration
	registered []models.RelayRegistration
	failures   *lru.Cache
}

// New creates a relay directory seeded with the preferred relays of the configuration
func New(source RegistrationSource, cfg config.KnownRelaysConfig, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if cfg.MaxTrackedRelays <= 0 {
		cfg.MaxTrackedRelays = config.DefaultMaxTrackedRelays
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = config.DefaultRelayFailureThreshold
	}
	if cfg.RelayTimeoutGrace <= 0 {
		cfg.RelayTimeoutGrace = config.DefaultRelayTimeoutGrace
	}

	failures, err := lru.New(cfg.MaxTrackedRelays)
	if err != nil {
		return nil, fmt.Errorf("failed to create relay failure cache: %v", err)
	}

	seen := mapset.NewThreadUnsafeSet[string]()
	preferred := make([]models.RelayRegistration, 0, len(cfg.PreferredRelays))
	for _, url := range cfg.PreferredRelays {
		url = normalizeURL(url)
		if url == "" || !seen.Add(url) {
			continue
		}
		preferred = append(preferred, models.RelayRegistration{
			RelayURL:     url,
			BaseRelayFee: "0",
			PctRelayFee:  "0",
		})
	}

	return &Manager{
		source:    source,
		cfg:       cfg,
		logger:    log,
		now:       time.Now,
		preferred: preferred,
		failures:  failures,
	}, nil
}

// WithClock replaces the time source used to age failures
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Refresh reloads the relays registered on the RelayHub within the lookup window
func (m *Manager) Refresh(ctx context.Context) error {
	if m.source == nil {
		metrics.KnownRelays.Set(float64(len(m.preferred)))
		return nil
	}

	latest, err := m.source.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to get latest block: %v", err)
	}

	var fromBlock uint64
	if latest > m.cfg.RelayLookupWindowBlocks {
		fromBlock = latest - m.cfg.RelayLookupWindowBlocks
	}

	registrations, err := m.source.RegisteredRelays(ctx, fromBlock)
	if err != nil {
		return err
	}

	registered := m.latestRegistrations(registrations)

	m.mu.Lock()
	m.registered = registered
	m.mu.Unlock()

	metrics.KnownRelays.Set(float64(len(m.preferred) + len(registered)))
	m.logger.Debug("Relay directory refreshed from block %d: %d registered, %d preferred",
		fromBlock, len(registered), len(m.preferred))
	return nil
}

// latestRegistrations keeps the last registration of every manager and drops URLs already known
func (m *Manager) latestRegistrations(registrations []models.RelayRegistration) []models.RelayRegistration {
	byManager := make(map[common.Address]int, len(registrations))
	var order []common.Address
	for i, registration := range registrations {
		if _, ok := byManager[registration.RelayManager]; !ok {
			order = append(order, registration.RelayManager)
		}
		byManager[registration.RelayManager] = i
	}

	seen := mapset.NewThreadUnsafeSet[string]()
	for _, preferred := range m.preferred {
		seen.Add(preferred.RelayURL)
	}

	result := make([]models.RelayRegistration, 0, len(order))
	for _, manager := range order {
		registration := registrations[byManager[manager]]
		registration.RelayURL = normalizeURL(registration.RelayURL)
		if registration.RelayURL == "" || !seen.Add(registration.RelayURL) {
			continue
		}
		result = append(result, registration)
	}
	return result
}

// Relays returns every known relay, preferred relays first
func (m *Manager) Relays() []models.RelayRegistration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	relays := make([]models.RelayRegistration, 0, len(m.preferred)+len(m.registered))
	relays = append(relays, m.preferred...)
	relays = append(relays, m.registered...)
	return relays
}

// RelaysForTransaction returns the relays in priority tiers. The first tier holds the preferred
// relays, the second the registered ones from cheapest to most expensive for this transaction,
// with recently failing relays moved to the end.
func (m *Manager) RelaysForTransaction(details *models.TransactionDetails) [][]models.RelayRegistration {
	m.mu.RLock()
	preferred := append([]models.RelayRegistration(nil), m.preferred...)
	registered := append([]models.RelayRegistration(nil), m.registered...)
	m.mu.RUnlock()

	gas, _ := models.ParseUint256("gas", details.Gas)
	gasPrice, _ := models.ParseUint256("gasPrice", details.GasPrice)

	type scored struct {
		relay         models.RelayRegistration
		cost          *big.Int
		deprioritized bool
	}
	candidates := make([]scored, 0, len(registered))
	for _, relay := range registered {
		candidates = append(candidates, scored{
			relay:         relay,
			cost:          transactionCost(relay, gas, gasPrice),
			deprioritized: m.IsDeprioritized(relay.RelayURL),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].deprioritized != candidates[j].deprioritized {
			return !candidates[i].deprioritized
		}
		return candidates[i].cost.Cmp(candidates[j].cost) < 0
	})

	sorted := make([]models.RelayRegistration, 0, len(candidates))
	for _, candidate := range candidates {
		sorted = append(sorted, candidate.relay)
	}
	return [][]models.RelayRegistration{preferred, sorted}
}

// transactionCost is the fee the relay charges for the transaction, base fee plus its percentage over the gas cost
func transactionCost(relay models.RelayRegistration, gas, gasPrice *big.Int) *big.Int {
	base, err := models.ParseUint256("baseRelayFee", relay.BaseRelayFee)
	if err != nil {
		base = new(big.Int)
	}
	pct, err := models.ParseUint256("pctRelayFee", relay.PctRelayFee)
	if err != nil {
		pct = new(big.Int)
	}
	if gas == nil || gasPrice == nil {
		return base
	}

	cost := new(big.Int).Mul(gas, gasPrice)
	cost.Mul(cost, new(big.Int).Add(big.NewInt(100), pct))
	cost.Div(cost, big.NewInt(100))
	return cost.Add(cost, base)
}

// SaveRelayFailure records a failure of the relay observed at the given time
func (m *Manager) SaveRelayFailure(at time.Time, relayManager common.Address, relayURL string) {
	relayURL = normalizeURL(relayURL)
	breaker := m.breaker(relayURL)
	tripped := breaker.RecordFailureAt(at)

	metrics.RelayFailuresRecorded.WithLabelValues(relayURL).Inc()
	if tripped {
		m.logger.WarnWithRelay(relayURL, "Relay %s deprioritized after %d failures", relayManager.Hex(), breaker.RecentFailures())
	} else {
		m.logger.DebugWithRelay(relayURL, "Failure of relay %s recorded", relayManager.Hex())
	}
}

func (m *Manager) breaker(relayURL string) *circuitbreaker.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if value, ok := m.failures.Get(relayURL); ok {
		return value.(*circuitbreaker.CircuitBreaker)
	}

	breaker := circuitbreaker.NewCircuitBreaker(true, m.cfg.FailureThreshold, m.cfg.RelayTimeoutGrace, m.cfg.RelayTimeoutGrace).
		WithClock(func() time.Time { return m.now() })
	m.failures.Add(relayURL, breaker)
	return breaker
}

func (m *Manager) lookupBreaker(relayURL string) (*circuitbreaker.CircuitBreaker, bool) {
	value, ok := m.failures.Peek(normalizeURL(relayURL))
	if !ok {
		return nil, false
	}
	return value.(*circuitbreaker.CircuitBreaker), true
}

// IsDeprioritized returns whether the relay failed too often within the grace period
func (m *Manager) IsDeprioritized(relayURL string) bool {
	breaker, ok := m.lookupBreaker(relayURL)
	return ok && breaker.IsOpen()
}

// ResetFailures forgets the failures of the relay, returns false if none were recorded
func (m *Manager) ResetFailures(relayURL string) bool {
	breaker, ok := m.lookupBreaker(relayURL)
	if !ok {
		return false
	}

	failureCount, lastFailure, _, _ := breaker.GetState()
	if failureCount == 0 && lastFailure.IsZero() {
		return false
	}
	breaker.Reset()
	m.logger.InfoWithRelay(normalizeURL(relayURL), "Failures of relay reset")
	return true
}

// Statuses reports every known relay with its failure state
func (m *Manager) Statuses() []RelayStatus {
	m.mu.RLock()
	preferredCount := len(m.preferred)
	m.mu.RUnlock()

	relays := m.Relays()
	statuses := make([]RelayStatus, 0, len(relays))
	for i, relay := range relays {
		status := RelayStatus{
			RelayURL:     relay.RelayURL,
			RelayManager: relay.RelayManager,
			Preferred:    i < preferredCount,
		}
		if breaker, ok := m.lookupBreaker(relay.RelayURL); ok {
			_, lastFailure, _, _ := breaker.GetState()
			status.RecentFailures = breaker.RecentFailures()
			status.Deprioritized = breaker.IsOpen()
			if !lastFailure.IsZero() {
				status.LastFailure = &lastFailure
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func normalizeURL(url string) string {
	return strings.TrimRight(strings.TrimSpace(url), "/")
}
