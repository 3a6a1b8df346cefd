// Package ledger implements C1: the authoritative custody of free and
// locked balances with only four mutation primitives (§4.1).
package ledger

import (
	"sync"

	"github.com/abdoElHodaky/clobchain/internal/amount"
	"github.com/abdoElHodaky/clobchain/internal/clobtypes"
	"github.com/abdoElHodaky/clobchain/internal/events"
	clobErrors "github.com/abdoElHodaky/clobchain/pkg/errors"
	"go.uber.org/zap"
)

type key struct {
	account clobtypes.AccountId
	asset   clobtypes.AssetId
}

type balance struct {
	free   amount.Amount
	locked amount.Amount
}

// Ledger is a plain mutex-guarded balance table. It carries no
// persistence of its own — balances live for the process lifetime,
// matching the teacher's single-writer, in-memory core state style;
// durable storage of balances is out of scope per spec §1.
type Ledger struct {
	mu       sync.Mutex
	balances map[key]balance
	bus      events.Bus
	logger   *zap.Logger
}

// New creates an empty ledger that publishes its events onto bus.
func New(bus events.Bus, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		balances: make(map[key]balance),
		bus:      bus,
		logger:   logger,
	}
}

func (l *Ledger) get(k key) balance { return l.balances[k] }

func validateAsset(asset clobtypes.AssetId) error {
	if !asset.Valid() {
		return clobErrors.New(clobErrors.ErrInvalidAsset, "asset must be base or quote")
	}
	return nil
}

func validateAmount(amt amount.Amount) error {
	if amt.IsZero() {
		return clobErrors.New(clobErrors.ErrAmountZero, "amount must be greater than zero")
	}
	return nil
}

// Free returns the free balance of (account, asset).
func (l *Ledger) Free(account clobtypes.AccountId, asset clobtypes.AssetId) amount.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(key{account, asset}).free
}

// Locked returns the locked balance of (account, asset).
func (l *Ledger) Locked(account clobtypes.AccountId, asset clobtypes.AssetId) amount.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(key{account, asset}).locked
}

// Deposit increments free[account,asset] with saturating add.
func (l *Ledger) Deposit(account clobtypes.AccountId, asset clobtypes.AssetId, amt amount.Amount) error {
	if err := validateAsset(asset); err != nil {
		return err
	}
	if err := validateAmount(amt); err != nil {
		return err
	}

	l.mu.Lock()
	k := key{account, asset}
	b := l.get(k)
	b.free = b.free.SaturatingAdd(amt)
	l.balances[k] = b
	l.mu.Unlock()

	l.publish(events.Deposited{Account: account, Asset: asset, Amount: amt})
	return nil
}

// Withdraw decrements free[account,asset], failing if insufficient.
func (l *Ledger) Withdraw(account clobtypes.AccountId, asset clobtypes.AssetId, amt amount.Amount) error {
	if err := validateAsset(asset); err != nil {
		return err
	}
	if err := validateAmount(amt); err != nil {
		return err
	}

	l.mu.Lock()
	k := key{account, asset}
	b := l.get(k)
	newFree, ok := b.free.TrySub(amt)
	if !ok {
		l.mu.Unlock()
		return clobErrors.New(clobErrors.ErrInsufficientFreeBalance, "insufficient free balance")
	}
	b.free = newFree
	l.balances[k] = b
	l.mu.Unlock()

	l.publish(events.Withdrawn{Account: account, Asset: asset, Amount: amt})
	return nil
}

// Lock moves amt from free to locked, atomically. On failure no state
// changes (all-or-nothing, per §4.1).
func (l *Ledger) Lock(account clobtypes.AccountId, asset clobtypes.AssetId, amt amount.Amount) error {
	if err := validateAsset(asset); err != nil {
		return err
	}
	if err := validateAmount(amt); err != nil {
		return err
	}

	l.mu.Lock()
	k := key{account, asset}
	b := l.get(k)
	newFree, ok := b.free.TrySub(amt)
	if !ok {
		l.mu.Unlock()
		return clobErrors.New(clobErrors.ErrInsufficientFreeBalance, "insufficient free balance to lock")
	}
	b.free = newFree
	b.locked = b.locked.SaturatingAdd(amt)
	l.balances[k] = b
	l.mu.Unlock()

	l.publish(events.Locked{Account: account, Asset: asset, Amount: amt})
	return nil
}

// Unlock moves amt from locked back to free, atomically.
func (l *Ledger) Unlock(account clobtypes.AccountId, asset clobtypes.AssetId, amt amount.Amount) error {
	if err := validateAsset(asset); err != nil {
		return err
	}
	if err := validateAmount(amt); err != nil {
		return err
	}

	l.mu.Lock()
	k := key{account, asset}
	b := l.get(k)
	newLocked, ok := b.locked.TrySub(amt)
	if !ok {
		l.mu.Unlock()
		return clobErrors.New(clobErrors.ErrInsufficientLockedBalance, "insufficient locked balance to unlock")
	}
	b.locked = newLocked
	b.free = b.free.SaturatingAdd(amt)
	l.balances[k] = b
	l.mu.Unlock()

	l.publish(events.Unlocked{Account: account, Asset: asset, Amount: amt})
	return nil
}

// TransferLocked moves amt from from's locked balance to to's free
// balance, atomically. This is how settlement moves value between
// counterparties without ever routing through an intermediate free
// balance of the sender.
func (l *Ledger) TransferLocked(from, to clobtypes.AccountId, asset clobtypes.AssetId, amt amount.Amount) error {
	if err := validateAsset(asset); err != nil {
		return err
	}
	if err := validateAmount(amt); err != nil {
		return err
	}

	l.mu.Lock()
	fromKey := key{from, asset}
	toKey := key{to, asset}
	fromBal := l.get(fromKey)
	newLocked, ok := fromBal.locked.TrySub(amt)
	if !ok {
		l.mu.Unlock()
		return clobErrors.New(clobErrors.ErrInsufficientLockedBalance, "insufficient locked balance to transfer")
	}
	fromBal.locked = newLocked
	l.balances[fromKey] = fromBal

	toBal := l.get(toKey)
	toBal.free = toBal.free.SaturatingAdd(amt)
	l.balances[toKey] = toBal
	l.mu.Unlock()

	l.publish(events.Transferred{From: from, To: to, Asset: asset, Amount: amt})
	return nil
}

func (l *Ledger) publish(ev events.Event) {
	if l.bus == nil {
		return
	}
	if err := l.bus.Publish(ev); err != nil {
		l.logger.Warn("failed to publish ledger event", zap.Error(err), zap.String("event_type", ev.EventType()))
	}
}
