package pgxstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screwyprof/airdrop/airdrop"
	"github.com/screwyprof/airdrop/airdrop/store/dbrow"
	"github.com/screwyprof/airdrop/pkg/pgxdb"
)

// Sentinel errors for store operations
var (
	ErrTransactionFailed = errors.New("transaction failed")
	ErrClaimFailed       = errors.New("claim operation failed")
	ErrConfigNotFound    = errors.New("airdrop config not found")
	ErrConfigFailed      = errors.New("config operation failed")
	ErrInsertFailed      = errors.New("insert operation failed")
	ErrQueryFailed       = errors.New("event query failed")
)

// SQL queries
const (
	isClaimedSQL = `SELECT EXISTS (SELECT 1 FROM airdrop_claims WHERE account = $1)`

	markClaimedSQL = `
		INSERT INTO airdrop_claims (account) VALUES ($1)
		ON CONFLICT (account) DO NOTHING`

	loadConfigSQL = `
		SELECT administrator, token, expiration_timestamp::text, merkle_root
		FROM airdrop_config`

	saveConfigSQL = `
		INSERT INTO airdrop_config (single_row, administrator, token, expiration_timestamp, merkle_root)
		VALUES (TRUE, $1, $2, $3::text::numeric, $4)
		ON CONFLICT (single_row) DO UPDATE SET
			administrator = EXCLUDED.administrator,
			token = EXCLUDED.token,
			expiration_timestamp = EXCLUDED.expiration_timestamp,
			merkle_root = EXCLUDED.merkle_root,
			updated_at = CURRENT_TIMESTAMP`

	recordEventSQL = `
		INSERT INTO airdrop_events (event_id, kind, caller, destination, amount, merkle_root, expiration, occurred_at)
		VALUES ($1::text::uuid, $2, $3, $4, $5::text::numeric, $6, $7::text::numeric, $8)`

	findEventsSQL = `
		SELECT seq, event_id::text AS event_id, kind, caller, destination,
			amount::text AS amount, merkle_root, expiration::text AS expiration, occurred_at
		FROM airdrop_events`
)

// Store implements the claim ledger, config store and journal of a distribution using pgx
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL store with an existing connection pool
// Returns the store and a closer function
func New(pool *pgxpool.Pool) (*Store, func()) {
	store := &Store{pool: pool}
	closer := func() {
		pool.Close()
	}
	return store, closer
}

// IsClaimed reports whether account has a committed claim
func (s *Store) IsClaimed(ctx context.Context, account common.Address) (bool, error) {
	var claimed bool
	if err := s.pool.QueryRow(ctx, isClaimedSQL, account.Bytes()).Scan(&claimed); err != nil {
		return false, fmt.Errorf("%w: %w", ErrClaimFailed, err)
	}
	return claimed, nil
}

// TryMarkClaimed inserts the claim row and runs payout inside the same transaction.
// A concurrent insert for the same account blocks on the primary key until
// this transaction settles, so at most one payout ever commits.
// Stores sharing the pool join the transaction through the payout's context.
// Once payout succeeds the commit no longer depends on the caller's context.
func (s *Store) TryMarkClaimed(ctx context.Context, account common.Address, payout func(context.Context) error) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }() // No-op if commit succeeds

	tag, err := tx.Exec(ctx, markClaimedSQL, account.Bytes())
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrClaimFailed, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if payout != nil {
		if err := payout(pgxdb.WithTx(ctx, tx)); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(context.WithoutCancel(ctx)); err != nil {
		return false, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	return true, nil
}

// LoadConfig returns the persisted config, or ErrConfigNotFound before the first save
func (s *Store) LoadConfig(ctx context.Context) (airdrop.Config, error) {
	var (
		admin, token, root []byte
		expiration         string
	)

	err := s.pool.QueryRow(ctx, loadConfigSQL).Scan(&admin, &token, &expiration, &root)
	if errors.Is(err, pgx.ErrNoRows) {
		return airdrop.Config{}, ErrConfigNotFound
	}
	if err != nil {
		return airdrop.Config{}, fmt.Errorf("%w: %w", ErrConfigFailed, err)
	}

	exp, err := strconv.ParseUint(expiration, 10, 64)
	if err != nil {
		return airdrop.Config{}, fmt.Errorf("%w: expiration %q: %w", ErrConfigFailed, expiration, err)
	}

	return airdrop.Config{
		Administrator:       common.BytesToAddress(admin),
		Token:               common.BytesToAddress(token),
		ExpirationTimestamp: exp,
		MerkleRoot:          common.BytesToHash(root),
	}, nil
}

// SaveConfig upserts the singleton config row
func (s *Store) SaveConfig(ctx context.Context, cfg airdrop.Config) error {
	_, err := s.pool.Exec(ctx, saveConfigSQL,
		cfg.Administrator.Bytes(),
		cfg.Token.Bytes(),
		strconv.FormatUint(cfg.ExpirationTimestamp, 10),
		cfg.MerkleRoot.Bytes(),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigFailed, err)
	}
	return nil
}

// Record appends event to the journal under a fresh event id
func (s *Store) Record(ctx context.Context, event airdrop.Event) error {
	row, err := dbrow.FromEvent(uuid.New(), event)
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, recordEventSQL, row.Args()...); err != nil {
		return fmt.Errorf("%w: %w", ErrInsertFailed, err)
	}
	return nil
}

// FindEvents lists journal events newest first.
// Uses LIMIT n+1 to detect further pages without a count query.
func (s *Store) FindEvents(ctx context.Context, criteria airdrop.EventsCriteria) (*airdrop.EventsPage, error) {
	query, args, err := buildFindEventsQuery(criteria)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	dbRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.Event])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	events := make([]airdrop.RecordedEvent, 0, len(dbRows))
	for _, r := range dbRows {
		rec, err := r.ToRecorded()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
		}
		events = append(events, rec)
	}

	hasMore := len(events) > int(criteria.Size)
	if hasMore {
		events = events[:criteria.Size]
	}

	return &airdrop.EventsPage{
		Events:  events,
		HasMore: hasMore,
		Number:  criteria.Page,
		Size:    criteria.Size,
	}, nil
}

func buildFindEventsQuery(criteria airdrop.EventsCriteria) (string, []any, error) {
	var conditions []string
	var args []any

	if criteria.Kind != "" {
		args = append(args, criteria.Kind)
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}

	query := findEventsSQL
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY seq DESC"

	offset, err := criteria.Offset()
	if err != nil {
		return "", nil, err
	}

	args = append(args, criteria.Size.Uint64()+1)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	return query, args, nil
}
