package merkle_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/airdrop/merkle"
)

func TestReadAllocations(t *testing.T) {
	t.Parallel()

	t.Run("it keeps the file order", func(t *testing.T) {
		t.Parallel()

		// Arrange
		input := `[
			{"address": "0x0000000000000000000000000000000000000b0b", "amount": "20"},
			{"address": "0x00000000000000000000000000000000000a11ce", "amount": "1000000000000000000000"}
		]`

		// Act
		allocations, err := merkle.ReadAllocations(strings.NewReader(input))

		// Assert
		require.NoError(t, err)
		require.Len(t, allocations, 2)
		assert.Equal(t, common.HexToAddress("0x0b0b"), allocations[0].Account)
		assert.Equal(t, uint64(20), allocations[0].Amount.Uint64())
		assert.Equal(t, "1000000000000000000000", allocations[1].Amount.Dec())
	})

	tests := []struct {
		name  string
		input string
	}{
		{"it rejects invalid JSON", `[{"address":`},
		{"it rejects unknown fields", `[{"address":"0x0000000000000000000000000000000000000b0b","amount":"1","note":"x"}]`},
		{"it rejects a malformed address", `[{"address":"bob","amount":"1"}]`},
		{"it rejects a negative amount", `[{"address":"0x0000000000000000000000000000000000000b0b","amount":"-1"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Act
			_, err := merkle.ReadAllocations(strings.NewReader(tt.input))

			// Assert
			require.ErrorIs(t, err, merkle.ErrMalformedAllocations)
		})
	}

	t.Run("it reads what it writes", func(t *testing.T) {
		t.Parallel()

		// Arrange
		want := []merkle.Allocation{
			{Account: common.HexToAddress("0x0a11ce"), Amount: uint256.NewInt(10)},
			{Account: common.HexToAddress("0x0b0b"), Amount: uint256.NewInt(0)},
		}
		var buf bytes.Buffer
		require.NoError(t, merkle.WriteAllocations(&buf, want))

		// Act
		got, err := merkle.ReadAllocations(&buf)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}
