package airdrop

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryClaimLedger is a process-local ClaimLedger
type MemoryClaimLedger struct {
	mu      sync.Mutex
	claimed map[common.Address]struct{}
}

// NewMemoryClaimLedger creates an empty ledger
func NewMemoryClaimLedger() *MemoryClaimLedger {
	return &MemoryClaimLedger{claimed: make(map[common.Address]struct{})}
}

// IsClaimed reports whether account has been paid
func (l *MemoryClaimLedger) IsClaimed(_ context.Context, account common.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.claimed[account]
	return ok, nil
}

// TryMarkClaimed holds the ledger lock across payout, so a concurrent
// attempt for any account waits until this one has settled.
func (l *MemoryClaimLedger) TryMarkClaimed(ctx context.Context, account common.Address, payout func(context.Context) error) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.claimed[account]; ok {
		return false, nil
	}

	if payout != nil {
		if err := payout(ctx); err != nil {
			return false, err
		}
	}

	l.claimed[account] = struct{}{}
	return true, nil
}

// Len returns the number of claimed accounts
func (l *MemoryClaimLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.claimed)
}
