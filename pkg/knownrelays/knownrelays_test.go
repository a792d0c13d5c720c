package knownrelays

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/config"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/logger"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	block         uint64
	registrations []models.RelayRegistration
	err           error
	fromBlock     uint64
}

func (f *fakeSource) BlockNumber(_ context.Context) (uint64, error) {
	return f.block, nil
}

func (f *fakeSource) RegisteredRelays(_ context.Context, fromBlock uint64) ([]models.RelayRegistration, error) {
	f.fromBlock = fromBlock
	return f.registrations, f.err
}

var (
	managerA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	managerB = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	managerC = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func testConfig() config.KnownRelaysConfig {
	return config.KnownRelaysConfig{
		PreferredRelays:         []string{"https://preferred.relay/", "https://preferred.relay"},
		RelayLookupWindowBlocks: 100,
		RelayTimeoutGrace:       time.Minute,
		FailureThreshold:        1,
		MaxTrackedRelays:        16,
	}
}

func urls(relays []models.RelayRegistration) []string {
	result := make([]string, 0, len(relays))
	for _, relay := range relays {
		result = append(result, relay.RelayURL)
	}
	return result
}

func TestManager_Refresh(t *testing.T) {
	source := &fakeSource{
		block: 1000,
		registrations: []models.RelayRegistration{
			{RelayManager: managerA, RelayURL: "https://a.relay/old", BaseRelayFee: "0", PctRelayFee: "10"},
			{RelayManager: managerB, RelayURL: "https://b.relay", BaseRelayFee: "0", PctRelayFee: "10"},
			{RelayManager: managerA, RelayURL: "https://a.relay/", BaseRelayFee: "0", PctRelayFee: "10"},
			{RelayManager: managerC, RelayURL: "https://preferred.relay", BaseRelayFee: "0", PctRelayFee: "10"},
		},
	}

	manager, err := New(source, testConfig(), &logger.EmptyLogger{})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://preferred.relay"}, urls(manager.Relays()))

	require.NoError(t, manager.Refresh(context.Background()))
	assert.Equal(t, uint64(900), source.fromBlock)

	// Latest registration per manager wins and preferred URLs are not duplicated
	assert.Equal(t, []string{"https://preferred.relay", "https://a.relay", "https://b.relay"}, urls(manager.Relays()))
}

func TestManager_Refresh_Errors(t *testing.T) {
	source := &fakeSource{block: 10, err: errors.New("rpc unavailable")}

	manager, err := New(source, testConfig(), nil)
	require.NoError(t, err)

	err = manager.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, uint64(0), source.fromBlock, "lookup window larger than the chain starts at genesis")
	assert.Len(t, manager.Relays(), 1)
}

func TestManager_RelaysForTransaction(t *testing.T) {
	source := &fakeSource{
		block: 10,
		registrations: []models.RelayRegistration{
			{RelayManager: managerA, RelayURL: "https://expensive.relay", BaseRelayFee: "0", PctRelayFee: "50"},
			{RelayManager: managerB, RelayURL: "https://cheap.relay", BaseRelayFee: "0", PctRelayFee: "5"},
			{RelayManager: managerC, RelayURL: "https://base-fee.relay", BaseRelayFee: "1000000", PctRelayFee: "0"},
		},
	}
	now := time.Unix(1700000000, 0)

	manager, err := New(source, testConfig(), nil)
	require.NoError(t, err)
	manager.WithClock(func() time.Time { return now })
	require.NoError(t, manager.Refresh(context.Background()))

	details := &models.TransactionDetails{Gas: "0x186a0", GasPrice: "0x64"} // 100000 gas at 100 wei

	t.Run("ordered by cost", func(t *testing.T) {
		tiers := manager.RelaysForTransaction(details)
		require.Len(t, tiers, 2)
		assert.Equal(t, []string{"https://preferred.relay"}, urls(tiers[0]))
		assert.Equal(t, []string{"https://cheap.relay", "https://base-fee.relay", "https://expensive.relay"}, urls(tiers[1]))
	})

	t.Run("failing relay moved last", func(t *testing.T) {
		manager.SaveRelayFailure(now, managerB, "https://cheap.relay/")
		assert.True(t, manager.IsDeprioritized("https://cheap.relay"))

		tiers := manager.RelaysForTransaction(details)
		assert.Equal(t, []string{"https://base-fee.relay", "https://expensive.relay", "https://cheap.relay"}, urls(tiers[1]))
	})

	t.Run("failure expires after the grace period", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		assert.False(t, manager.IsDeprioritized("https://cheap.relay"))

		tiers := manager.RelaysForTransaction(details)
		assert.Equal(t, "https://cheap.relay", tiers[1][0].RelayURL)
	})
}

func TestManager_FailureBookkeeping(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 2
	now := time.Unix(1700000000, 0)

	manager, err := New(nil, cfg, nil)
	require.NoError(t, err)
	manager.WithClock(func() time.Time { return now })
	require.NoError(t, manager.Refresh(context.Background()))

	manager.SaveRelayFailure(now, managerA, "https://preferred.relay")
	assert.False(t, manager.IsDeprioritized("https://preferred.relay"))

	manager.SaveRelayFailure(now.Add(time.Second), managerA, "https://preferred.relay")
	assert.True(t, manager.IsDeprioritized("https://preferred.relay"))

	statuses := manager.Statuses()
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Preferred)
	assert.True(t, statuses[0].Deprioritized)
	assert.Equal(t, 2, statuses[0].RecentFailures)
	require.NotNil(t, statuses[0].LastFailure)
	assert.Equal(t, now.Add(time.Second), *statuses[0].LastFailure)

	assert.True(t, manager.ResetFailures("https://preferred.relay/"))
	assert.False(t, manager.IsDeprioritized("https://preferred.relay"))
	assert.False(t, manager.ResetFailures("https://preferred.relay"))
	assert.Nil(t, manager.Statuses()[0].LastFailure)
	assert.False(t, manager.ResetFailures("https://unknown.relay"))

	// The breaker is kept and counts again from zero
	manager.SaveRelayFailure(now.Add(2*time.Second), managerA, "https://preferred.relay")
	assert.False(t, manager.IsDeprioritized("https://preferred.relay"))
	assert.Equal(t, 1, manager.Statuses()[0].RecentFailures)
}

func TestManager_ConcurrentFailures(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 100

	manager, err := New(nil, cfg, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			manager.SaveRelayFailure(time.Now(), managerA, "https://preferred.relay")
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, manager.Statuses()[0].RecentFailures)
}
