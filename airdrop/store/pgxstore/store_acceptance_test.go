//go:build acceptance

package pgxstore_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/airdrop/airdrop"
	"github.com/screwyprof/airdrop/airdrop/store/pgxstore"
	"github.com/screwyprof/airdrop/migrator/migratortest"
	tokenstore "github.com/screwyprof/airdrop/token/store/pgxstore"
)

const migrationsDir = "../../../migrator/migrations"

var (
	alice       = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob         = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	distributor = common.HexToAddress("0x000000000000000000000000000000000000d157")
)

// TestClaimLedgerAcceptance checks the claim ledger against a real PostgreSQL
func TestClaimLedgerAcceptance(t *testing.T) {
	t.Parallel()

	t.Run("it commits the mark with a successful payout", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := newStore(t)

		// Act
		marked, err := store.TryMarkClaimed(t.Context(), alice, func(context.Context) error { return nil })

		// Assert
		require.NoError(t, err)
		assert.True(t, marked)
		assertClaimed(t, store, alice, true)
		assertClaimed(t, store, bob, false)
	})

	t.Run("it rolls the mark back when the payout fails", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := newStore(t)
		payoutErr := errors.New("transfer reverted")

		// Act
		marked, err := store.TryMarkClaimed(t.Context(), alice, func(context.Context) error { return payoutErr })

		// Assert
		require.ErrorIs(t, err, payoutErr)
		assert.False(t, marked)
		assertClaimed(t, store, alice, false)
	})

	t.Run("it runs exactly one payout under concurrent attempts", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := newStore(t)
		var payouts atomic.Int32
		var wg sync.WaitGroup

		// Act
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.TryMarkClaimed(t.Context(), alice, func(context.Context) error {
					payouts.Add(1)
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		// Assert
		assert.Equal(t, int32(1), payouts.Load())
		assertClaimed(t, store, alice, true)
	})
}

// TestClaimPayoutAcceptance checks that a claim and its token payout commit as one unit
func TestClaimPayoutAcceptance(t *testing.T) {
	t.Parallel()

	t.Run("it commits the payout and the mark together when the caller goes away", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store, ledger := newStoreWithLedger(t)
		require.NoError(t, ledger.Mint(t.Context(), distributor, uint256.NewInt(10)))
		ctx, cancel := context.WithCancel(t.Context())

		// Act
		marked, err := store.TryMarkClaimed(ctx, alice, func(ctx context.Context) error {
			defer cancel()
			return ledger.Transfer(ctx, distributor, alice, uint256.NewInt(10))
		})

		// Assert
		require.NoError(t, err)
		assert.True(t, marked)
		assertClaimed(t, store, alice, true)
		assertBalance(t, ledger, alice, 10)
		assertBalance(t, ledger, distributor, 0)
	})

	t.Run("it undoes the payout when the mark is rolled back", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store, ledger := newStoreWithLedger(t)
		require.NoError(t, ledger.Mint(t.Context(), distributor, uint256.NewInt(10)))
		lateErr := errors.New("failed after transfer")

		// Act
		marked, err := store.TryMarkClaimed(t.Context(), alice, func(ctx context.Context) error {
			if err := ledger.Transfer(ctx, distributor, alice, uint256.NewInt(10)); err != nil {
				return err
			}
			return lateErr
		})

		// Assert
		require.ErrorIs(t, err, lateErr)
		assert.False(t, marked)
		assertClaimed(t, store, alice, false)
		assertBalance(t, ledger, alice, 0)
		assertBalance(t, ledger, distributor, 10)
	})

	t.Run("it leaves neither mark nor payout when cancelled before the payout", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store, ledger := newStoreWithLedger(t)
		require.NoError(t, ledger.Mint(t.Context(), distributor, uint256.NewInt(10)))
		ctx, cancel := context.WithCancel(t.Context())

		// Act
		marked, err := store.TryMarkClaimed(ctx, alice, func(ctx context.Context) error {
			cancel()
			return ledger.Transfer(ctx, distributor, alice, uint256.NewInt(10))
		})

		// Assert
		require.Error(t, err)
		assert.False(t, marked)
		assertClaimed(t, store, alice, false)
		assertBalance(t, ledger, alice, 0)
		assertBalance(t, ledger, distributor, 10)
	})
}

// TestConfigStoreAcceptance checks config persistence against a real PostgreSQL
func TestConfigStoreAcceptance(t *testing.T) {
	t.Parallel()

	t.Run("it reports a missing config", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := newStore(t)

		// Act
		_, err := store.LoadConfig(t.Context())

		// Assert
		require.ErrorIs(t, err, pgxstore.ErrConfigNotFound)
	})

	t.Run("it loads the last saved config", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := newStore(t)
		first := airdrop.Config{
			Administrator:       alice,
			Token:               bob,
			ExpirationTimestamp: 1_700_000_000,
			MerkleRoot:          common.HexToHash("0x01"),
		}
		second := first
		second.ExpirationTimestamp = ^uint64(0)
		second.MerkleRoot = common.HexToHash("0x02")

		// Act
		require.NoError(t, store.SaveConfig(t.Context(), first))
		require.NoError(t, store.SaveConfig(t.Context(), second))
		loaded, err := store.LoadConfig(t.Context())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, second, loaded)
	})
}

// TestJournalAcceptance checks event recording and listing against a real PostgreSQL
func TestJournalAcceptance(t *testing.T) {
	t.Parallel()

	t.Run("it lists recorded events newest first", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := newStore(t)
		at := time.Unix(1_700_000_000, 0).UTC()
		events := []airdrop.Event{
			airdrop.Deposited{Depositor: alice, Amount: uint256.NewInt(30), At: at},
			airdrop.Claimed{Caller: bob, Destination: bob, Amount: uint256.NewInt(10), At: at},
			airdrop.ExpirationUpdated{ExpirationTimestamp: 42, At: at},
		}
		for _, e := range events {
			require.NoError(t, store.Record(t.Context(), e))
		}

		// Act
		page, err := store.FindEvents(t.Context(), airdrop.EventsCriteria{Page: 1, Size: 2})

		// Assert
		require.NoError(t, err)
		require.Len(t, page.Events, 2)
		assert.True(t, page.HasNext())
		assert.False(t, page.HasPrevious())
		assert.Equal(t, events[2], normalize(page.Events[0].Event))
		assert.Equal(t, events[1], normalize(page.Events[1].Event))
		assert.Greater(t, page.Events[0].Seq, page.Events[1].Seq)
	})

	t.Run("it filters by kind", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := newStore(t)
		at := time.Unix(1_700_000_000, 0).UTC()
		require.NoError(t, store.Record(t.Context(), airdrop.Deposited{Depositor: alice, Amount: uint256.NewInt(1), At: at}))
		require.NoError(t, store.Record(t.Context(), airdrop.MerkleRootUpdated{Root: common.HexToHash("0xff"), At: at}))

		// Act
		page, err := store.FindEvents(t.Context(), airdrop.EventsCriteria{Kind: airdrop.KindMerkleRootUpdated, Page: 1, Size: 10})

		// Assert
		require.NoError(t, err)
		require.Len(t, page.Events, 1)
		assert.False(t, page.HasNext())
		assert.Equal(t, common.HexToHash("0xff"), page.Events[0].Event.(airdrop.MerkleRootUpdated).Root)
	})
}

func newStore(t *testing.T) *pgxstore.Store {
	t.Helper()

	pool := migratortest.CreateTestDatabase(t, migrationsDir)
	store, _ := pgxstore.New(pool)
	return store
}

func newStoreWithLedger(t *testing.T) (*pgxstore.Store, *tokenstore.Ledger) {
	t.Helper()

	pool := migratortest.CreateTestDatabase(t, migrationsDir)
	store, _ := pgxstore.New(pool)
	ledger, _ := tokenstore.New(pool)
	return store, ledger
}

func assertBalance(t *testing.T, ledger *tokenstore.Ledger, account common.Address, want uint64) {
	t.Helper()

	balance, err := ledger.BalanceOf(t.Context(), account)
	require.NoError(t, err)
	assert.Equal(t, want, balance.Uint64())
}

func assertClaimed(t *testing.T, store *pgxstore.Store, account common.Address, want bool) {
	t.Helper()

	claimed, err := store.IsClaimed(t.Context(), account)
	require.NoError(t, err)
	assert.Equal(t, want, claimed)
}

// normalize drops the location so timestamps read back from the database compare equal
func normalize(event airdrop.Event) airdrop.Event {
	switch e := event.(type) {
	case airdrop.Deposited:
		e.At = e.At.UTC()
		return e
	case airdrop.Claimed:
		e.At = e.At.UTC()
		return e
	case airdrop.Retrieved:
		e.At = e.At.UTC()
		return e
	case airdrop.MerkleRootUpdated:
		e.At = e.At.UTC()
		return e
	case airdrop.ExpirationUpdated:
		e.At = e.At.UTC()
		return e
	default:
		return event
	}
}
