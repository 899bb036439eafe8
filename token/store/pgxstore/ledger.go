package pgxstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screwyprof/airdrop/pkg/pgxdb"
	"github.com/screwyprof/airdrop/token"
)

// Sentinel errors for ledger operations
var (
	ErrTransactionFailed = errors.New("transaction failed")
	ErrQueryFailed       = errors.New("ledger query failed")
	ErrUpdateFailed      = errors.New("ledger update failed")
)

// SQL queries
const (
	balanceSQL = `SELECT balance::text FROM token_balances WHERE account = $1`

	debitSQL = `
		UPDATE token_balances SET balance = balance - $2::text::numeric
		WHERE account = $1 AND balance >= $2::text::numeric`

	creditSQL = `
		INSERT INTO token_balances (account, balance) VALUES ($1, $2::text::numeric)
		ON CONFLICT (account) DO UPDATE SET balance = token_balances.balance + EXCLUDED.balance`

	allowanceSQL = `SELECT allowance::text FROM token_allowances WHERE owner = $1 AND spender = $2`

	allowanceForUpdateSQL = allowanceSQL + ` FOR UPDATE`

	spendAllowanceSQL = `
		UPDATE token_allowances SET allowance = allowance - $3::text::numeric
		WHERE owner = $1 AND spender = $2`

	approveSQL = `
		INSERT INTO token_allowances (owner, spender, allowance) VALUES ($1, $2, $3::text::numeric)
		ON CONFLICT (owner, spender) DO UPDATE SET allowance = EXCLUDED.allowance`

	supplyForUpdateSQL = `SELECT total::text FROM token_supply FOR UPDATE`

	supplySQL = `SELECT total::text FROM token_supply`

	setSupplySQL = `
		INSERT INTO token_supply (single_row, total) VALUES (TRUE, $1::text::numeric)
		ON CONFLICT (single_row) DO UPDATE SET total = EXCLUDED.total`
)

// Ledger implements token.Ledger semantics on PostgreSQL.
// Every mutation runs in one transaction with the touched rows locked.
// A transaction carried by the context (see pgxdb.WithTx) is joined through a savepoint.
type Ledger struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL ledger with an existing connection pool
// Returns the ledger and a closer function
func New(pool *pgxpool.Pool) (*Ledger, func()) {
	ledger := &Ledger{pool: pool}
	closer := func() {
		pool.Close()
	}
	return ledger, closer
}

// Mint creates amount new tokens owned by to
func (l *Ledger) Mint(ctx context.Context, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return token.ErrNilAmount
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: mint to", token.ErrZeroAddress)
	}

	return l.inTx(ctx, func(tx pgx.Tx) error {
		supply, err := queryAmount(ctx, tx, supplyForUpdateSQL)
		if err != nil {
			return err
		}

		next, overflow := new(uint256.Int).AddOverflow(supply, amount)
		if overflow {
			return fmt.Errorf("%w: total supply", token.ErrOverflow)
		}

		if _, err := tx.Exec(ctx, setSupplySQL, next.Dec()); err != nil {
			return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
		}
		if _, err := tx.Exec(ctx, creditSQL, to.Bytes(), amount.Dec()); err != nil {
			return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
		}
		return nil
	})
}

// Transfer moves amount from from to to
func (l *Ledger) Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return token.ErrNilAmount
	}

	return l.inTx(ctx, func(tx pgx.Tx) error {
		return move(ctx, tx, from, to, amount)
	})
}

// TransferFrom moves amount from from to to, spending spender's allowance over from
func (l *Ledger) TransferFrom(ctx context.Context, spender, from, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return token.ErrNilAmount
	}

	return l.inTx(ctx, func(tx pgx.Tx) error {
		allowance, err := queryAmount(ctx, tx, allowanceForUpdateSQL, from.Bytes(), spender.Bytes())
		if err != nil {
			return err
		}
		if allowance.Lt(amount) {
			return fmt.Errorf("%w: %s may spend %s of %s, wants %s",
				token.ErrInsufficientAllowance, spender.Hex(), allowance.Dec(), from.Hex(), amount.Dec())
		}

		if err := move(ctx, tx, from, to, amount); err != nil {
			return err
		}

		if allowance.Eq(token.MaxAllowance) || amount.IsZero() {
			return nil
		}
		if _, err := tx.Exec(ctx, spendAllowanceSQL, from.Bytes(), spender.Bytes(), amount.Dec()); err != nil {
			return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
		}
		return nil
	})
}

// Approve sets spender's allowance over owner's balance
func (l *Ledger) Approve(ctx context.Context, owner, spender common.Address, amount *uint256.Int) error {
	if amount == nil {
		return token.ErrNilAmount
	}
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return fmt.Errorf("%w: approve", token.ErrZeroAddress)
	}

	if _, err := l.conn(ctx).Exec(ctx, approveSQL, owner.Bytes(), spender.Bytes(), amount.Dec()); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	return nil
}

// BalanceOf returns account's balance, zero for unknown accounts
func (l *Ledger) BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error) {
	return queryAmount(ctx, l.conn(ctx), balanceSQL, account.Bytes())
}

// Allowance returns spender's allowance over owner's balance
func (l *Ledger) Allowance(ctx context.Context, owner, spender common.Address) (*uint256.Int, error) {
	return queryAmount(ctx, l.conn(ctx), allowanceSQL, owner.Bytes(), spender.Bytes())
}

// TotalSupply returns the amount minted so far
func (l *Ledger) TotalSupply(ctx context.Context) (*uint256.Int, error) {
	return queryAmount(ctx, l.conn(ctx), supplySQL)
}

func (l *Ledger) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := pgxdb.Begin(ctx, l.pool)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // No-op if commit succeeds

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	return nil
}

func move(ctx context.Context, tx pgx.Tx, from, to common.Address, amount *uint256.Int) error {
	if from == (common.Address{}) || to == (common.Address{}) {
		return fmt.Errorf("%w: transfer %s -> %s", token.ErrZeroAddress, from.Hex(), to.Hex())
	}
	if amount.IsZero() {
		return nil
	}

	tag, err := tx.Exec(ctx, debitSQL, from.Bytes(), amount.Dec())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s wants %s", token.ErrInsufficientBalance, from.Hex(), amount.Dec())
	}

	if _, err := tx.Exec(ctx, creditSQL, to.Bytes(), amount.Dec()); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	return nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// conn reads and writes through the transaction carried by ctx, so its uncommitted state is visible
func (l *Ledger) conn(ctx context.Context) querier {
	if tx, ok := pgxdb.TxFromContext(ctx); ok {
		return tx
	}
	return l.pool
}

// queryAmount scans a single decimal column, treating a missing row as zero
func queryAmount(ctx context.Context, q querier, sql string, args ...any) (*uint256.Int, error) {
	var dec string
	err := q.QueryRow(ctx, sql, args...).Scan(&dec)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	amount, err := uint256.FromDecimal(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrQueryFailed, dec, err)
	}
	return amount, nil
}
