package airdrop

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Operation names an administrator-only action
type Operation string

const (
	OpUpdateMerkleRoot  Operation = "update-merkle-root"
	OpUpdateExpiration  Operation = "update-expiration"
	OpRetrieveUnclaimed Operation = "retrieve-unclaimed"
)

// authorize allows op only when caller is the stored administrator
func authorize(caller, administrator common.Address, op Operation) error {
	if caller != administrator {
		return fmt.Errorf("%w: %s by %s", ErrOnlyGovernor, op, caller.Hex())
	}
	return nil
}
