package merkle

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Sentinel errors for tree construction and proof generation
var (
	ErrEmptyTree        = errors.New("allocation list is empty")
	ErrDuplicateAccount = errors.New("account allocated more than once")
	ErrNilAmount        = errors.New("allocation amount is missing")
	ErrLeafNotFound     = errors.New("allocation not found in tree")
)

// Allocation is one (account, amount) entry of a distribution list
type Allocation struct {
	Account common.Address
	Amount  *uint256.Int
}

// Tree is a fully materialised sorted-pair Merkle tree.
// layers[0] holds the leaves in input order, the last layer holds the root.
type Tree struct {
	layers [][]common.Hash
	index  map[common.Hash]int
}

// NewTree builds a tree over allocations, keeping their order.
// A trailing node without a sibling is promoted to the next layer unchanged.
func NewTree(allocations []Allocation) (*Tree, error) {
	if len(allocations) == 0 {
		return nil, ErrEmptyTree
	}

	seen := make(map[common.Address]struct{}, len(allocations))
	leaves := make([]common.Hash, len(allocations))
	index := make(map[common.Hash]int, len(allocations))

	for i, a := range allocations {
		if a.Amount == nil {
			return nil, fmt.Errorf("%w: %s", ErrNilAmount, a.Account.Hex())
		}
		if _, ok := seen[a.Account]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAccount, a.Account.Hex())
		}
		seen[a.Account] = struct{}{}

		leaf := Leaf(a.Account, a.Amount)
		leaves[i] = leaf
		index[leaf] = i
	}

	layers := [][]common.Hash{leaves}
	for level := leaves; len(level) > 1; {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, HashPair(level[i], level[i+1]))
		}
		layers = append(layers, next)
		level = next
	}

	return &Tree{layers: layers, index: index}, nil
}

// Root returns the committed root
func (t *Tree) Root() common.Hash {
	return t.layers[len(t.layers)-1][0]
}

// Len returns the number of leaves
func (t *Tree) Len() int {
	return len(t.layers[0])
}

// Proof returns the sibling path for the given allocation.
func (t *Tree) Proof(account common.Address, amount *uint256.Int) ([]common.Hash, error) {
	leaf := Leaf(account, amount)
	i, ok := t.index[leaf]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLeafNotFound, account.Hex())
	}
	return t.proofAt(i), nil
}

func (t *Tree) proofAt(i int) []common.Hash {
	var proof []common.Hash
	for _, level := range t.layers[:len(t.layers)-1] {
		sibling := i ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		i /= 2
	}
	return proof
}
