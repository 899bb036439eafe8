package migrator_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/airdrop/airdrop"
	"github.com/screwyprof/airdrop/merkle"
	"github.com/screwyprof/airdrop/migrator"
)

const migrationsDir = "migrations"

var (
	distributor = common.HexToAddress("0x000000000000000000000000000000000000d157")
	admin       = common.HexToAddress("0x000000000000000000000000000000000000ad01")
	erc20       = common.HexToAddress("0x0000000000000000000000000000000000070c3e")

	allocations = []merkle.Allocation{
		{Account: common.HexToAddress("0x00000000000000000000000000000000000a11ce"), Amount: uint256.NewInt(10)},
		{Account: common.HexToAddress("0x0000000000000000000000000000000000000b0b"), Amount: uint256.NewInt(20)},
	}
)

func TestSeededMigratorHash(t *testing.T) {
	t.Parallel()

	base := airdrop.Config{Administrator: admin, Token: erc20, ExpirationTimestamp: 4_102_444_800}

	t.Run("it is stable for the same seed", func(t *testing.T) {
		t.Parallel()

		// Act
		first, err := migrator.NewSeededMigrator(migrationsDir, distributor, base, allocations).Hash()
		require.NoError(t, err)
		second, err := migrator.NewSeededMigrator(migrationsDir, distributor, base, allocations).Hash()
		require.NoError(t, err)

		// Assert
		assert.Equal(t, first, second)
	})

	t.Run("it distinguishes every seeded config field", func(t *testing.T) {
		t.Parallel()

		// Arrange
		otherAdmin := base
		otherAdmin.Administrator = common.HexToAddress("0x000000000000000000000000000000000000ad02")
		otherToken := base
		otherToken.Token = common.HexToAddress("0x0000000000000000000000000000000000070c3f")
		otherDeadline := base
		otherDeadline.ExpirationTimestamp++

		want, err := migrator.NewSeededMigrator(migrationsDir, distributor, base, allocations).Hash()
		require.NoError(t, err)

		for _, cfg := range []airdrop.Config{otherAdmin, otherToken, otherDeadline} {
			// Act
			got, err := migrator.NewSeededMigrator(migrationsDir, distributor, cfg, allocations).Hash()

			// Assert
			require.NoError(t, err)
			assert.NotEqual(t, want, got)
		}
	})

	t.Run("it differs from the schema-only hash", func(t *testing.T) {
		t.Parallel()

		// Act
		seeded, err := migrator.NewSeededMigrator(migrationsDir, distributor, base, allocations).Hash()
		require.NoError(t, err)
		schema, err := migrator.NewSchemaMigrator(migrationsDir).Hash()
		require.NoError(t, err)

		// Assert
		assert.NotEqual(t, schema, seeded)
	})
}
