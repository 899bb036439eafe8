package airdrop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/screwyprof/airdrop/merkle"
	"github.com/screwyprof/airdrop/pkg/clock"
	"github.com/screwyprof/airdrop/token"
)

// Option configures the Distribution
// ----------------------------------
type Option func(*Distribution)

// WithClock injects a custom Clock (e.g., for testing)
func WithClock(c Clock) Option {
	return func(d *Distribution) { d.clock = c }
}

// WithClaimLedger replaces the default in-memory claim ledger
func WithClaimLedger(l ClaimLedger) Option {
	return func(d *Distribution) { d.claims = l }
}

// WithJournal sets where committed events are recorded
func WithJournal(j Journal) Option {
	return func(d *Distribution) { d.journal = j }
}

// WithConfigStore persists administrative updates before they take effect
func WithConfigStore(s ConfigStore) Option {
	return func(d *Distribution) { d.store = s }
}

// Distribution is the claim and payout state machine of one airdrop.
// ------------------------------------------------------------------
// Every operation runs under a single lock, so no two operations interleave.
// All checks of an operation precede its first effect.
type Distribution struct {
	mu      sync.Mutex
	address common.Address
	cfg     Config
	token   TokenLedger
	claims  ClaimLedger
	clock   Clock
	journal Journal
	store   ConfigStore
}

// NewDistribution creates a distribution whose pool is held by address on the token ledger.
// By default it uses the system clock, an in-memory claim ledger and no journal.
func NewDistribution(address common.Address, cfg Config, token TokenLedger, opts ...Option) *Distribution {
	d := &Distribution{
		address: address,
		cfg:     cfg,
		token:   token,
		claims:  NewMemoryClaimLedger(),
		clock:   clock.SystemClock{},
		journal: nopJournal{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deposit pulls amount from depositor into the pool using the depositor's allowance.
// Deposits are accepted at any time, including after expiration.
func (d *Distribution) Deposit(ctx context.Context, depositor common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.token.TransferFrom(ctx, d.address, depositor, d.address, amount); err != nil {
		return transferErr(err)
	}

	return d.record(ctx, Deposited{
		Depositor: depositor,
		Amount:    amount.Clone(),
		At:        d.clock.Now(),
	})
}

// Claim pays beneficiary's own allocation to beneficiary
func (d *Distribution) Claim(ctx context.Context, beneficiary common.Address, amount *uint256.Int, proof []common.Hash) error {
	return d.claim(ctx, beneficiary, beneficiary, beneficiary, amount, proof)
}

// ClaimAndTransfer pays caller's own allocation to destination
func (d *Distribution) ClaimAndTransfer(ctx context.Context, caller, destination common.Address, amount *uint256.Int, proof []common.Hash) error {
	return d.claim(ctx, caller, caller, destination, amount, proof)
}

// ClaimAndSendToClaimee lets caller trigger beneficiary's payout.
// The funds always go to beneficiary.
func (d *Distribution) ClaimAndSendToClaimee(ctx context.Context, caller, beneficiary common.Address, amount *uint256.Int, proof []common.Hash) error {
	return d.claim(ctx, caller, beneficiary, beneficiary, amount, proof)
}

// claim proves subject's allocation and pays it to destination
func (d *Distribution) claim(ctx context.Context, caller, subject, destination common.Address, amount *uint256.Int, proof []common.Hash) error {
	if amount == nil {
		return ErrInvalidAmount
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.expired() {
		return fmt.Errorf("%w: deadline %d", ErrExpired, d.cfg.ExpirationTimestamp)
	}

	leaf := merkle.Leaf(subject, amount)
	if !merkle.Verify(proof, d.cfg.MerkleRoot, leaf) {
		return fmt.Errorf("%w: %s", ErrNotInMerkle, subject.Hex())
	}

	claimed, err := d.claims.IsClaimed(ctx, subject)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrClaimLedger, err)
	}
	if claimed {
		return fmt.Errorf("%w: %s", ErrAlreadyClaimed, subject.Hex())
	}

	balance, err := d.token.BalanceOf(ctx, d.address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBalanceQuery, err)
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientPool, balance.Dec(), amount.Dec())
	}

	marked, err := d.claims.TryMarkClaimed(ctx, subject, func(ctx context.Context) error {
		if err := d.token.Transfer(ctx, d.address, destination, amount); err != nil {
			return fmt.Errorf("%w: %w", ErrPayoutRejected, transferErr(err))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPayoutRejected) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrClaimLedger, err)
	}
	if !marked {
		return fmt.Errorf("%w: %s", ErrAlreadyClaimed, subject.Hex())
	}

	return d.record(ctx, Claimed{
		Caller:      caller,
		Destination: destination,
		Amount:      amount.Clone(),
		At:          d.clock.Now(),
	})
}

// RetrieveUnclaimedTokens sweeps the whole pool to the administrator once expired.
// It returns the swept amount, which is zero on repeated calls.
func (d *Distribution) RetrieveUnclaimedTokens(ctx context.Context, caller common.Address) (*uint256.Int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := authorize(caller, d.cfg.Administrator, OpRetrieveUnclaimed); err != nil {
		return nil, err
	}

	if !d.expired() {
		return nil, fmt.Errorf("%w: deadline %d", ErrNotExpired, d.cfg.ExpirationTimestamp)
	}

	balance, err := d.token.BalanceOf(ctx, d.address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBalanceQuery, err)
	}

	if err := d.token.Transfer(ctx, d.address, d.cfg.Administrator, balance); err != nil {
		return nil, transferErr(err)
	}

	err = d.record(ctx, Retrieved{
		Administrator: d.cfg.Administrator,
		Amount:        balance.Clone(),
		At:            d.clock.Now(),
	})
	return balance, err
}

// UpdateMerkleRoot replaces the committed root. The claim ledger is left untouched.
func (d *Distribution) UpdateMerkleRoot(ctx context.Context, caller common.Address, root common.Hash) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := authorize(caller, d.cfg.Administrator, OpUpdateMerkleRoot); err != nil {
		return err
	}

	next := d.cfg
	next.MerkleRoot = root
	if err := d.apply(ctx, next); err != nil {
		return err
	}

	return d.record(ctx, MerkleRootUpdated{Root: root, At: d.clock.Now()})
}

// UpdateExpirationTimestamp replaces the deadline. Past values are accepted.
func (d *Distribution) UpdateExpirationTimestamp(ctx context.Context, caller common.Address, timestamp uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := authorize(caller, d.cfg.Administrator, OpUpdateExpiration); err != nil {
		return err
	}

	next := d.cfg
	next.ExpirationTimestamp = timestamp
	if err := d.apply(ctx, next); err != nil {
		return err
	}

	return d.record(ctx, ExpirationUpdated{ExpirationTimestamp: timestamp, At: d.clock.Now()})
}

// Address returns the account holding the pool
func (d *Distribution) Address() common.Address {
	return d.address
}

// Config returns a snapshot of the administrative state
func (d *Distribution) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

func (d *Distribution) Administrator() common.Address { return d.Config().Administrator }
func (d *Distribution) Token() common.Address         { return d.Config().Token }
func (d *Distribution) ExpirationTimestamp() uint64   { return d.Config().ExpirationTimestamp }
func (d *Distribution) MerkleRoot() common.Hash       { return d.Config().MerkleRoot }

// Expired reports whether claims are currently rejected
func (d *Distribution) Expired() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.expired()
}

// IsClaimed reports whether account has been paid
func (d *Distribution) IsClaimed(ctx context.Context, account common.Address) (bool, error) {
	claimed, err := d.claims.IsClaimed(ctx, account)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrClaimLedger, err)
	}
	return claimed, nil
}

// PoolBalance returns the tokens currently held for the distribution
func (d *Distribution) PoolBalance(ctx context.Context) (*uint256.Int, error) {
	balance, err := d.token.BalanceOf(ctx, d.address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBalanceQuery, err)
	}
	return balance, nil
}

// expired compares the clock with the deadline; callers hold d.mu
func (d *Distribution) expired() bool {
	now := d.clock.Now().Unix()
	if now < 0 {
		return false
	}
	return uint64(now) >= d.cfg.ExpirationTimestamp
}

// apply persists next, then makes it current; callers hold d.mu
func (d *Distribution) apply(ctx context.Context, next Config) error {
	if d.store != nil {
		if err := d.store.SaveConfig(ctx, next); err != nil {
			return fmt.Errorf("%w: %w", ErrConfigPersist, err)
		}
	}
	d.cfg = next
	return nil
}

// transferErr separates ledger refusals the caller can act on from ledger failures
func transferErr(err error) error {
	if token.IsRefusal(err) {
		return fmt.Errorf("%w: %w", ErrTransferRefused, err)
	}
	return fmt.Errorf("%w: %w", ErrTokenTransfer, err)
}

// record hands a committed event to the journal; callers hold d.mu
func (d *Distribution) record(ctx context.Context, event Event) error {
	if err := d.journal.Record(ctx, event); err != nil {
		return fmt.Errorf("%w: %w", ErrJournalFailed, err)
	}
	return nil
}
