package merkle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrMalformedAllocations is returned for an unreadable allocation list
var ErrMalformedAllocations = errors.New("malformed allocation list")

type allocationJSON struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// ReadAllocations decodes a JSON list of {"address": "0x..", "amount": "<decimal>"} entries, keeping their order
func ReadAllocations(r io.Reader) ([]Allocation, error) {
	var raw []allocationJSON

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedAllocations, err)
	}

	allocations := make([]Allocation, len(raw))
	for i, a := range raw {
		if !common.IsHexAddress(a.Address) {
			return nil, fmt.Errorf("%w: entry %d: address %q", ErrMalformedAllocations, i, a.Address)
		}
		amount, err := uint256.FromDecimal(a.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: amount %q: %w", ErrMalformedAllocations, i, a.Amount, err)
		}
		allocations[i] = Allocation{Account: common.HexToAddress(a.Address), Amount: amount}
	}
	return allocations, nil
}

// WriteAllocations encodes allocations in the format ReadAllocations accepts
func WriteAllocations(w io.Writer, allocations []Allocation) error {
	raw := make([]allocationJSON, len(allocations))
	for i, a := range allocations {
		raw[i] = allocationJSON{Address: a.Account.Hex(), Amount: a.Amount.Dec()}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(raw)
}
