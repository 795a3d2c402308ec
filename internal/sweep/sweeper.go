// Package sweep runs the periodic transfer expiry sweep. It is the only
// externally-timed trigger the core depends on.
package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/cellarlot/backend/internal/app"
	"github.com/rs/zerolog/log"
)

const defaultInterval = time.Minute

// Sweeper periodically expires pending transfers whose acceptance
// window has passed. Each cycle is idempotent, so overlapping with
// manual accept and cancel calls is safe.
type Sweeper struct {
	transfers *app.TransferCoordinator
	interval  time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func New(transfers *app.TransferCoordinator, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Sweeper{
		transfers: transfers,
		interval:  interval,
	}
}

// Start begins sweeping in a background goroutine. A stopped Sweeper
// can be started again.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	log.Info().Dur("interval", s.interval).Msg("transfer expiry sweep started")
}

// Stop halts the sweeper and waits for a running cycle to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}

	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil

	log.Info().Msg("transfer expiry sweep stopped")
}

func (s *Sweeper) run(ticker *time.Ticker, stop chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep runs one cycle. Errors are logged and retried on the next
// cycle, never escalated.
func (s *Sweeper) sweep() {
	expired, err := s.transfers.ExpireDue(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("transfer expiry sweep failed, will retry on next cycle")
		return
	}

	if expired > 0 {
		log.Info().Int("expired", expired).Msg("transfer expiry sweep completed")
	}
}
