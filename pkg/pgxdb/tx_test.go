package pgxdb_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/airdrop/pkg/pgxdb"
)

// recordingTx only implements Begin; other pgx.Tx methods are never called here
type recordingTx struct {
	pgx.Tx
	begun int
}

func (tx *recordingTx) Begin(context.Context) (pgx.Tx, error) {
	tx.begun++
	return tx, nil
}

func TestBegin(t *testing.T) {
	t.Parallel()

	t.Run("it starts a fresh transaction without one in the context", func(t *testing.T) {
		t.Parallel()

		// Arrange
		db := &recordingTx{}

		// Act
		_, err := pgxdb.Begin(t.Context(), db)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 1, db.begun)
	})

	t.Run("it nests inside the transaction carried by the context", func(t *testing.T) {
		t.Parallel()

		// Arrange
		db := &recordingTx{}
		outer := &recordingTx{}
		ctx := pgxdb.WithTx(t.Context(), outer)

		// Act
		tx, err := pgxdb.Begin(ctx, db)

		// Assert
		require.NoError(t, err)
		assert.Same(t, outer, tx)
		assert.Equal(t, 1, outer.begun)
		assert.Zero(t, db.begun)
	})
}

func TestTxFromContext(t *testing.T) {
	t.Parallel()

	t.Run("it reports a missing transaction", func(t *testing.T) {
		t.Parallel()

		// Act
		_, ok := pgxdb.TxFromContext(t.Context())

		// Assert
		assert.False(t, ok)
	})
}
