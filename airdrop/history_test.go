package airdrop_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/airdrop/airdrop"
)

func TestParsePageFromUint64(t *testing.T) {
	t.Parallel()

	t.Run("when page is zero", func(t *testing.T) {
		t.Parallel()

		// Act
		page := airdrop.ParsePageFromUint64(0)

		// Assert
		assert.Equal(t, airdrop.Page(airdrop.DefaultPage), page, "Zero should default to first page")
	})

	t.Run("when page is positive", func(t *testing.T) {
		t.Parallel()

		for _, input := range []uint64{1, 2, 999, ^uint64(0)} {
			// Act
			page := airdrop.ParsePageFromUint64(input)

			// Assert
			assert.Equal(t, input, page.Uint64())
		}
	})
}

func TestParsePerPageFromUint64(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    uint64
		expected airdrop.PerPage
		err      error
	}{
		{name: "zero defaults", input: 0, expected: airdrop.DefaultPerPage},
		{name: "minimum", input: 1, expected: 1},
		{name: "maximum", input: airdrop.MaxPerPage, expected: airdrop.MaxPerPage},
		{name: "too large", input: airdrop.MaxPerPage + 1, err: airdrop.ErrPerPageTooLarge},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// Act
			perPage, err := airdrop.ParsePerPageFromUint64(tc.input)

			// Assert
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, perPage)
		})
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	t.Run("it accepts known kinds and the empty filter", func(t *testing.T) {
		t.Parallel()

		for _, kind := range []string{"", airdrop.KindClaimed, airdrop.KindExpirationUpdated} {
			// Act
			got, err := airdrop.ParseKind(kind)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, kind, got)
		}
	})

	t.Run("it rejects unknown kinds", func(t *testing.T) {
		t.Parallel()

		// Act
		_, err := airdrop.ParseKind("minted")

		// Assert
		require.ErrorIs(t, err, airdrop.ErrUnknownKind)
	})
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	t.Run("it names every event", func(t *testing.T) {
		t.Parallel()

		// Assert
		assert.Equal(t, airdrop.KindDeposited, airdrop.KindOf(airdrop.Deposited{}))
		assert.Equal(t, airdrop.KindClaimed, airdrop.KindOf(airdrop.Claimed{}))
		assert.Equal(t, airdrop.KindRetrieved, airdrop.KindOf(airdrop.Retrieved{}))
		assert.Equal(t, airdrop.KindMerkleRootUpdated, airdrop.KindOf(airdrop.MerkleRootUpdated{}))
		assert.Equal(t, airdrop.KindExpirationUpdated, airdrop.KindOf(airdrop.ExpirationUpdated{}))
		assert.Empty(t, airdrop.KindOf("something else"))
	})
}

func TestEventsCriteriaOffset(t *testing.T) {
	t.Parallel()

	t.Run("it skips the preceding pages", func(t *testing.T) {
		t.Parallel()

		// Act
		offset, err := airdrop.EventsCriteria{Page: 3, Size: 20}.Offset()

		// Assert
		require.NoError(t, err)
		assert.Equal(t, uint64(40), offset)
	})

	t.Run("it defaults to the first page", func(t *testing.T) {
		t.Parallel()

		// Act
		offset, err := airdrop.EventsCriteria{}.Offset()

		// Assert
		require.NoError(t, err)
		assert.Zero(t, offset)
	})

	t.Run("it rejects pages beyond a bigint offset", func(t *testing.T) {
		t.Parallel()

		// Act
		_, err := airdrop.EventsCriteria{Page: airdrop.Page(^uint64(0)), Size: airdrop.MaxPerPage}.Offset()

		// Assert
		require.ErrorIs(t, err, airdrop.ErrPageOutOfRange)
	})
}
