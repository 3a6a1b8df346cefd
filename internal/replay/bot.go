// Package replay implements the synthetic trade replay bot (§1,
// external collaborator; §5, "serialize extrinsic submissions per
// signer, cap concurrency by a worker pool, await finalization before
// next submission from the same signer"). It drives chain.Host the
// same way any external client would — through PlaceOrder/CancelOrder
// — and carries no knowledge of matching internals.
package replay

import (
	"sync"
	"time"

	"github.com/abdoElHodaky/clobchain/internal/clobtypes"
	"github.com/panjf2000/ants/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config bounds the bot's concurrency and per-signer trip behavior.
type Config struct {
	PoolSize int

	// BreakerMaxRequests/BreakerInterval/BreakerTimeout/
	// BreakerFailureRatio parameterize gobreaker.Settings the same way
	// the teacher's resilience.DefaultSettings does.
	BreakerMaxRequests  uint32
	BreakerInterval     time.Duration
	BreakerTimeout      time.Duration
	BreakerFailureRatio float64
}

// DefaultConfig mirrors the teacher's resilience.DefaultSettings order
// of magnitude, scaled down for a single replay bot rather than a
// shared multi-tenant factory.
func DefaultConfig() Config {
	return Config{
		PoolSize:            16,
		BreakerMaxRequests:  3,
		BreakerInterval:     30 * time.Second,
		BreakerTimeout:      10 * time.Second,
		BreakerFailureRatio: 0.5,
	}
}

// Bot caps concurrent submissions with an ants worker pool and
// serializes per-signer submissions with a mutex, so no two
// submissions from the same signing account are ever in flight at
// once (avoiding nonce races, per §5). Each signer additionally gets
// its own gobreaker.CircuitBreaker so a signer whose submissions keep
// failing trips open and stops consuming pool capacity instead of
// retrying into a stuck chain.
type Bot struct {
	pool   *ants.Pool
	logger *zap.Logger

	cfg Config

	mu       sync.Mutex
	locks    map[clobtypes.AccountId]*sync.Mutex
	breakers map[clobtypes.AccountId]*gobreaker.CircuitBreaker
}

// NewBot creates a Bot with the given config.
func NewBot(cfg Config, logger *zap.Logger) (*Bot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := ants.NewPool(cfg.PoolSize)
	if err != nil {
		return nil, err
	}
	return &Bot{
		pool:     pool,
		logger:   logger,
		cfg:      cfg,
		locks:    make(map[clobtypes.AccountId]*sync.Mutex),
		breakers: make(map[clobtypes.AccountId]*gobreaker.CircuitBreaker),
	}, nil
}

// Release shuts down the underlying worker pool. Call once on
// shutdown; in-flight submissions are allowed to finish.
func (b *Bot) Release() { b.pool.Release() }

func (b *Bot) signerLock(signer clobtypes.AccountId) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	lock, ok := b.locks[signer]
	if !ok {
		lock = &sync.Mutex{}
		b.locks[signer] = lock
	}
	return lock
}

func (b *Bot) signerBreaker(signer clobtypes.AccountId) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	cb, ok := b.breakers[signer]
	if ok {
		return cb
	}
	name := signer.String()
	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: b.cfg.BreakerMaxRequests,
		Interval:    b.cfg.BreakerInterval,
		Timeout:     b.cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= b.cfg.BreakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("replay signer circuit breaker state change",
				zap.String("signer", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	b.breakers[signer] = cb
	return cb
}

// Submit runs fn — a single submission (e.g. host.PlaceOrder wrapped
// to return only an error) — on the bot's worker pool, serialized
// against any other in-flight submission from the same signer and
// guarded by that signer's circuit breaker. Submit blocks until fn has
// run (or the breaker refused it), matching §5's "await finalization
// before next submission from the same signer" at the call-site level.
func (b *Bot) Submit(signer clobtypes.AccountId, fn func() error) error {
	done := make(chan error, 1)

	submitErr := b.pool.Submit(func() {
		lock := b.signerLock(signer)
		lock.Lock()
		defer lock.Unlock()

		cb := b.signerBreaker(signer)
		_, err := cb.Execute(func() (interface{}, error) {
			return nil, fn()
		})
		done <- err
	})
	if submitErr != nil {
		return submitErr
	}
	return <-done
}
