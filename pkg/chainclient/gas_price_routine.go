package chainclient

import (
	"context"
	"sync"
	"time"

	"github.com/speedrun-hq/speedrun-relayclient/pkg/logger"
)

// GasPriceRoutine periodically refreshes the cached network gas price
type GasPriceRoutine struct {
	ctx      context.Context
	client   *Client
	interval time.Duration
	stopChan chan struct{}
	done     chan struct{}
	mu       sync.RWMutex
	running  bool
	logger   logger.Logger
}

// NewGasPriceRoutine creates a new gas price routine
func NewGasPriceRoutine(ctx context.Context, client *Client, interval time.Duration) *GasPriceRoutine {
	return &GasPriceRoutine{
		ctx:      ctx,
		client:   client,
		interval: interval,
		logger:   client.logger,
	}
}

// Start begins the periodic gas price updates
func (r *GasPriceRoutine) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running || r.interval <= 0 {
		return
	}

	r.stopChan = make(chan struct{})
	r.done = make(chan struct{})
	r.running = true

	go r.run(r.stopChan, r.done)
}

// Stop halts the periodic gas price updates and waits for the goroutine to exit
func (r *GasPriceRoutine) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}

	close(r.stopChan)
	done := r.done
	r.stopChan = nil
	r.running = false
	r.mu.Unlock()

	<-done
}

// IsRunning returns whether the routine is currently running
func (r *GasPriceRoutine) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// run is the main goroutine that performs periodic updates
func (r *GasPriceRoutine) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Perform initial update
	r.updateGasPrice()

	for {
		select {
		case <-ticker.C:
			r.updateGasPrice()
		case <-stop:
			return
		case <-r.ctx.Done():
			return
		}
	}
}

// updateGasPrice performs a single refresh of the network gas price
func (r *GasPriceRoutine) updateGasPrice() {
	gasPrice, err := r.client.UpdateGasPrice(r.ctx)
	if err != nil {
		r.logger.Error("Failed to update gas price: %v", err)
		return
	}
	r.logger.Debug("Network gas price updated: %s wei", gasPrice.String())
}
