// Package relayselection probes relay candidates and hands them out in priority order.
package relayselection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/logger"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/metrics"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
	"golang.org/x/sync/errgroup"
)

// ErrRelayNotReady is recorded for relays that answer the ping but do not accept requests
var ErrRelayNotReady = errors.New("relay not ready")

// PingFilter rejects relays whose ping response does not suit the transaction
type PingFilter func(ping *models.PingResponse, details *models.TransactionDetails) error

// Directory provides the relay candidates grouped in priority tiers
type Directory interface {
	RelaysForTransaction(details *models.TransactionDetails) [][]models.RelayRegistration
}

// Pinger asks a relay for its current state
type Pinger interface {
	GetPingResponse(ctx context.Context, relayURL string) (*models.PingResponse, error)
}

// Config holds the selection parameters
type Config struct {
	MaxConcurrentPings int
}

// Manager selects relays for a single transaction
type Manager struct {
	details   *models.TransactionDetails
	directory Directory
	pinger    Pinger
	filter    PingFilter
	logger    logger.Logger
	cfg       Config

	mu          sync.Mutex
	initialized bool
	candidates  []models.RelayInfo
	errors      map[string]error
}

// New creates a selection manager for the transaction
func New(details *models.TransactionDetails, directory Directory, pinger Pinger, filter PingFilter, log logger.Logger, cfg Config) *Manager {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if cfg.MaxConcurrentPings <= 0 {
		cfg.MaxConcurrentPings = 1
	}
	return &Manager{
		details:   details,
		directory: directory,
		pinger:    pinger,
		filter:    filter,
		logger:    log,
		cfg:       cfg,
		errors:    make(map[string]error),
	}
}

type pingResult struct {
	relay models.RelayRegistration
	ping  *models.PingResponse
	err   error
}

// Init pings every candidate of the directory. Candidates that fail keep their error and
// are never offered, the others keep the directory order.
func (m *Manager) Init(ctx context.Context) (*Manager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return m, nil
	}

	var relays []models.RelayRegistration
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, tier := range m.directory.RelaysForTransaction(m.details) {
		for _, relay := range tier {
			if !seen.Add(relay.RelayURL) {
				continue
			}
			relays = append(relays, relay)
		}
	}

	results := make([]pingResult, len(relays))
	var g errgroup.Group
	g.SetLimit(m.cfg.MaxConcurrentPings)
	for i, relay := range relays {
		i, relay := i, relay
		g.Go(func() error {
			ping, err := m.ping(ctx, relay)
			results[i] = pingResult{relay: relay, ping: ping, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("relay selection interrupted: %w", err)
	}

	for _, result := range results {
		if result.err != nil {
			m.errors[result.relay.RelayURL] = result.err
			metrics.PingErrors.WithLabelValues(result.relay.RelayURL).Inc()
			m.logger.WarnWithRelay(result.relay.RelayURL, "Relay skipped: %v", result.err)
			continue
		}
		m.candidates = append(m.candidates, models.RelayInfo{
			RelayInfo:    result.relay,
			PingResponse: *result.ping,
		})
	}

	m.initialized = true
	metrics.AvailableRelays.Set(float64(len(m.candidates)))
	m.logger.Debug("Relay selection ready: %d candidates, %d ping errors", len(m.candidates), len(m.errors))
	return m, nil
}

func (m *Manager) ping(ctx context.Context, relay models.RelayRegistration) (*models.PingResponse, error) {
	ping, err := m.pinger.GetPingResponse(ctx, relay.RelayURL)
	if err != nil {
		return nil, err
	}
	if !ping.Ready {
		return nil, fmt.Errorf("%w: version %s", ErrRelayNotReady, ping.Version)
	}
	if m.filter != nil {
		if err := m.filter(ping, m.details); err != nil {
			return nil, err
		}
	}
	return ping, nil
}

// SelectNext returns the next candidate, nil once all of them were handed out
func (m *Manager) SelectNext() *models.RelayInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.candidates) == 0 {
		return nil
	}
	next := m.candidates[0]
	m.candidates = m.candidates[1:]
	return &next
}

// RelaysLeft returns the candidates not handed out yet
func (m *Manager) RelaysLeft() []models.RelayInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.RelayInfo(nil), m.candidates...)
}

// Errors returns the ping errors by relay URL
func (m *Manager) Errors() map[string]error {
	m.mu.Lock()
	defer m.mu.Unlock()

	errs := make(map[string]error, len(m.errors))
	for url, err := range m.errors {
		errs[url] = err
	}
	return errs
}
