// Package merkle verifies membership proofs against a sorted-pair keccak256 Merkle root
// and builds the matching trees off-chain.
package merkle

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// LeafSize is the length of an encoded allocation: a 20-byte address followed by
// a 32-byte big-endian amount.
const LeafSize = common.AddressLength + 32

// Leaf hashes one allocation record.
// The encoding is fixed-width, so (account, amount) pairs can never collide across boundaries.
func Leaf(account common.Address, amount *uint256.Int) common.Hash {
	return crypto.Keccak256Hash(EncodeLeaf(account, amount))
}

// EncodeLeaf returns the packed preimage of a leaf.
func EncodeLeaf(account common.Address, amount *uint256.Int) []byte {
	var buf [LeafSize]byte
	copy(buf[:common.AddressLength], account.Bytes())
	if amount != nil {
		word := amount.Bytes32()
		copy(buf[common.AddressLength:], word[:])
	}
	return buf[:]
}

// HashPair hashes two nodes in ascending byte order.
func HashPair(a, b common.Hash) common.Hash {
	var buf [2 * common.HashLength]byte
	if bytes.Compare(a[:], b[:]) <= 0 {
		copy(buf[:common.HashLength], a[:])
		copy(buf[common.HashLength:], b[:])
	} else {
		copy(buf[:common.HashLength], b[:])
		copy(buf[common.HashLength:], a[:])
	}
	return crypto.Keccak256Hash(buf[:])
}

// ProcessProof folds the proof into leaf and returns the resulting root.
func ProcessProof(proof []common.Hash, leaf common.Hash) common.Hash {
	computed := leaf
	for _, sibling := range proof {
		computed = HashPair(computed, sibling)
	}
	return computed
}

// Verify reports whether proof links leaf to root.
func Verify(proof []common.Hash, root, leaf common.Hash) bool {
	return ProcessProof(proof, leaf) == root
}
