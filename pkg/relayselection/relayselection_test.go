package relayselection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/speedrun-hq/speedrun-relayclient/pkg/logger"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	tiers [][]models.RelayRegistration
}

func (f *fakeDirectory) RelaysForTransaction(_ *models.TransactionDetails) [][]models.RelayRegistration {
	return f.tiers
}

type fakePinger struct {
	mu        sync.Mutex
	responses map[string]*models.PingResponse
	errs      map[string]error
	calls     map[string]int
	delay     time.Duration

	inFlight    int32
	maxInFlight int32
}

func newFakePinger() *fakePinger {
	return &fakePinger{
		responses: make(map[string]*models.PingResponse),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
	}
}

func (f *fakePinger) GetPingResponse(_ context.Context, relayURL string) (*models.PingResponse, error) {
	current := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		observed := atomic.LoadInt32(&f.maxInFlight)
		if current <= observed || atomic.CompareAndSwapInt32(&f.maxInFlight, observed, current) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[relayURL]++
	if err, ok := f.errs[relayURL]; ok {
		return nil, err
	}
	if ping, ok := f.responses[relayURL]; ok {
		return ping, nil
	}
	return &models.PingResponse{Ready: true, MinGasPrice: "1"}, nil
}

func relay(url string) models.RelayRegistration {
	return models.RelayRegistration{RelayURL: url, BaseRelayFee: "0", PctRelayFee: "0"}
}

func TestManager_Init(t *testing.T) {
	directory := &fakeDirectory{tiers: [][]models.RelayRegistration{
		{relay("https://preferred")},
		{relay("https://a"), relay("https://down"), relay("https://preferred"), relay("https://busy"), relay("https://pricey"), relay("https://b")},
	}}

	pinger := newFakePinger()
	pinger.errs["https://down"] = errors.New("connection refused")
	pinger.responses["https://busy"] = &models.PingResponse{Ready: false, Version: "2.2.0"}
	pinger.responses["https://pricey"] = &models.PingResponse{Ready: true, MinGasPrice: "1000"}

	filterErr := errors.New("gas price too low")
	filter := func(ping *models.PingResponse, _ *models.TransactionDetails) error {
		if ping.MinGasPrice == "1000" {
			return filterErr
		}
		return nil
	}

	manager := New(&models.TransactionDetails{GasPrice: "0x64"}, directory, pinger, filter, &logger.EmptyLogger{}, Config{MaxConcurrentPings: 3})
	_, err := manager.Init(context.Background())
	require.NoError(t, err)

	t.Run("duplicates are pinged once", func(t *testing.T) {
		assert.Equal(t, 1, pinger.calls["https://preferred"])
	})

	t.Run("failures are recorded by url", func(t *testing.T) {
		errs := manager.Errors()
		require.Len(t, errs, 3)
		assert.EqualError(t, errs["https://down"], "connection refused")
		assert.ErrorIs(t, errs["https://busy"], ErrRelayNotReady)
		assert.ErrorIs(t, errs["https://pricey"], filterErr)
	})

	t.Run("candidates keep the directory order", func(t *testing.T) {
		var order []string
		for _, candidate := range manager.RelaysLeft() {
			order = append(order, candidate.RelayInfo.RelayURL)
		}
		assert.Equal(t, []string{"https://preferred", "https://a", "https://b"}, order)

		first := manager.SelectNext()
		require.NotNil(t, first)
		assert.Equal(t, "https://preferred", first.RelayInfo.RelayURL)
		assert.True(t, first.PingResponse.Ready)
		assert.Len(t, manager.RelaysLeft(), 2)

		assert.NotNil(t, manager.SelectNext())
		assert.NotNil(t, manager.SelectNext())
		assert.Nil(t, manager.SelectNext())
	})

	t.Run("errors are a copy", func(t *testing.T) {
		errs := manager.Errors()
		delete(errs, "https://down")
		assert.Len(t, manager.Errors(), 3)
	})

	t.Run("init is idempotent", func(t *testing.T) {
		_, err := manager.Init(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, pinger.calls["https://a"])
	})
}

func TestManager_Init_ConcurrencyLimit(t *testing.T) {
	var relays []models.RelayRegistration
	for _, url := range []string{"https://1", "https://2", "https://3", "https://4", "https://5", "https://6"} {
		relays = append(relays, relay(url))
	}

	pinger := newFakePinger()
	pinger.delay = 20 * time.Millisecond

	manager := New(&models.TransactionDetails{}, &fakeDirectory{tiers: [][]models.RelayRegistration{relays}}, pinger, nil, nil, Config{MaxConcurrentPings: 2})
	_, err := manager.Init(context.Background())
	require.NoError(t, err)

	assert.Len(t, manager.RelaysLeft(), 6)
	assert.LessOrEqual(t, atomic.LoadInt32(&pinger.maxInFlight), int32(2))
}

func TestManager_Init_NoCandidates(t *testing.T) {
	manager := New(&models.TransactionDetails{}, &fakeDirectory{}, newFakePinger(), nil, nil, Config{})
	_, err := manager.Init(context.Background())
	require.NoError(t, err)

	assert.Nil(t, manager.SelectNext())
	assert.Empty(t, manager.Errors())
}

func TestManager_Init_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	directory := &fakeDirectory{tiers: [][]models.RelayRegistration{{relay("https://a")}}}
	manager := New(&models.TransactionDetails{}, directory, newFakePinger(), nil, nil, Config{})
	_, err := manager.Init(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
