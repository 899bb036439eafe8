// Package token is a reference fungible-token ledger with ERC20 transfer semantics.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrZeroAddress           = errors.New("zero address")
	ErrOverflow              = errors.New("amount overflows uint256")
	ErrNilAmount             = errors.New("nil amount")
)

// IsRefusal reports whether err is the ledger declining the requested transfer,
// as opposed to the ledger itself failing
func IsRefusal(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInsufficientAllowance) ||
		errors.Is(err, ErrZeroAddress) ||
		errors.Is(err, ErrOverflow) ||
		errors.Is(err, ErrNilAmount)
}

// MaxAllowance is treated as infinite: spending from it never decrements it
var MaxAllowance = new(uint256.Int).SetAllOne()

type allowanceKey struct {
	owner, spender common.Address
}

// Ledger keeps balances and allowances in memory
type Ledger struct {
	mu         sync.Mutex
	supply     *uint256.Int
	balances   map[common.Address]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{
		supply:     new(uint256.Int),
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
	}
}

// Mint creates amount new tokens owned by to
func (l *Ledger) Mint(_ context.Context, to common.Address, amount *uint256.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: mint to", ErrZeroAddress)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	supply, overflow := new(uint256.Int).AddOverflow(l.supply, amount)
	if overflow {
		return fmt.Errorf("%w: total supply", ErrOverflow)
	}
	l.supply = supply
	l.balances[to] = new(uint256.Int).Add(l.balance(to), amount)
	return nil
}

// Transfer moves amount from from to to
func (l *Ledger) Transfer(_ context.Context, from, to common.Address, amount *uint256.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.move(from, to, amount)
}

// TransferFrom moves amount from from to to, spending spender's allowance over from
func (l *Ledger) TransferFrom(_ context.Context, spender, from, to common.Address, amount *uint256.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := allowanceKey{owner: from, spender: spender}
	allowance := l.allowance(key)
	if allowance.Lt(amount) {
		return fmt.Errorf("%w: %s may spend %s of %s, wants %s",
			ErrInsufficientAllowance, spender.Hex(), allowance.Dec(), from.Hex(), amount.Dec())
	}

	if err := l.move(from, to, amount); err != nil {
		return err
	}

	if !allowance.Eq(MaxAllowance) {
		l.allowances[key] = new(uint256.Int).Sub(allowance, amount)
	}
	return nil
}

// Approve sets spender's allowance over owner's balance
func (l *Ledger) Approve(_ context.Context, owner, spender common.Address, amount *uint256.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return fmt.Errorf("%w: approve", ErrZeroAddress)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.allowances[allowanceKey{owner: owner, spender: spender}] = amount.Clone()
	return nil
}

// BalanceOf returns a copy of account's balance
func (l *Ledger) BalanceOf(_ context.Context, account common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(account).Clone(), nil
}

// Allowance returns a copy of spender's allowance over owner's balance
func (l *Ledger) Allowance(_ context.Context, owner, spender common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowance(allowanceKey{owner: owner, spender: spender}).Clone(), nil
}

// TotalSupply returns the amount minted so far
func (l *Ledger) TotalSupply(context.Context) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply.Clone(), nil
}

func (l *Ledger) move(from, to common.Address, amount *uint256.Int) error {
	if from == (common.Address{}) || to == (common.Address{}) {
		return fmt.Errorf("%w: transfer %s -> %s", ErrZeroAddress, from.Hex(), to.Hex())
	}

	balance := l.balance(from)
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, wants %s", ErrInsufficientBalance, from.Hex(), balance.Dec(), amount.Dec())
	}

	// supply bounds every balance, so the credit cannot overflow
	l.balances[from] = new(uint256.Int).Sub(balance, amount)
	l.balances[to] = new(uint256.Int).Add(l.balance(to), amount)
	return nil
}

func (l *Ledger) balance(account common.Address) *uint256.Int {
	if b, ok := l.balances[account]; ok {
		return b
	}
	return new(uint256.Int)
}

func (l *Ledger) allowance(key allowanceKey) *uint256.Int {
	if a, ok := l.allowances[key]; ok {
		return a
	}
	return new(uint256.Int)
}

func checkAmount(amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	return nil
}
