// Package airdrop pays a fixed token pool out to the accounts committed in a Merkle root,
// at most once per account and only until the expiration deadline.
package airdrop

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Sentinel errors for rejected operations
var (
	ErrExpired          = errors.New("airdrop expired")
	ErrNotExpired       = errors.New("airdrop not expired yet")
	ErrNotInMerkle      = errors.New("allocation not in merkle tree")
	ErrAlreadyClaimed   = errors.New("allocation already claimed")
	ErrOnlyGovernor     = errors.New("caller is not the governor")
	ErrInsufficientPool = errors.New("pool balance too low")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrTransferRefused  = errors.New("token transfer refused")
)

// Sentinel errors for collaborator failures
var (
	ErrTokenTransfer  = errors.New("token transfer failed")
	ErrBalanceQuery   = errors.New("token balance query failed")
	ErrClaimLedger    = errors.New("claim ledger failed")
	ErrConfigPersist  = errors.New("config persistence failed")
	ErrJournalFailed  = errors.New("event journal failed")
	ErrPayoutRejected = errors.New("payout rejected")
)

// TokenLedger is the external fungible-token ledger the pool is held on
// ----------------------------------------------------------------------
// Refusals are reported with the token package's sentinels (see token.IsRefusal).
type TokenLedger interface {
	// Transfer moves amount from the from account, which must be the caller's own custody.
	Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error
	// TransferFrom moves amount from from to to, spending spender's allowance.
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount *uint256.Int) error
	BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error)
}

// ClaimLedger records which accounts have been paid
type ClaimLedger interface {
	IsClaimed(ctx context.Context, account common.Address) (bool, error)
	// TryMarkClaimed marks account as claimed unless it already is, running payout
	// while the mark is pending. The mark is only kept when payout returns nil.
	// It returns false without calling payout if the account was already claimed.
	TryMarkClaimed(ctx context.Context, account common.Address, payout func(context.Context) error) (bool, error)
}

// Journal durably records events after their operation has committed
type Journal interface {
	Record(ctx context.Context, event Event) error
}

// ConfigStore persists administrative config updates
type ConfigStore interface {
	SaveConfig(ctx context.Context, cfg Config) error
}

// Clock abstracts time for production and testing
type Clock interface {
	Now() time.Time
}

// Config is the distribution's administrative state.
// Token and Administrator are fixed at construction.
type Config struct {
	Administrator       common.Address
	Token               common.Address
	ExpirationTimestamp uint64
	MerkleRoot          common.Hash
}

// Event represents an externally observable distribution record
// -------------------------------------------------------------
type Event any

type Deposited struct {
	Depositor common.Address
	Amount    *uint256.Int
	At        time.Time
}

type Claimed struct {
	Caller      common.Address
	Destination common.Address
	Amount      *uint256.Int
	At          time.Time
}

type Retrieved struct {
	Administrator common.Address
	Amount        *uint256.Int
	At            time.Time
}

type MerkleRootUpdated struct {
	Root common.Hash
	At   time.Time
}

type ExpirationUpdated struct {
	ExpirationTimestamp uint64
	At                  time.Time
}
