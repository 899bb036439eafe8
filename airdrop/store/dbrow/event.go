package dbrow

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/screwyprof/airdrop/airdrop"
)

// ErrMalformedEvent is returned when an event cannot be mapped to or from a row
var ErrMalformedEvent = errors.New("malformed event row")

// Event represents a journal record as stored in the database.
// Numeric columns travel as decimal text.
type Event struct {
	Seq         int64     `db:"seq"`
	EventID     string    `db:"event_id"`
	Kind        string    `db:"kind"`
	Caller      []byte    `db:"caller"`
	Destination []byte    `db:"destination"`
	Amount      *string   `db:"amount"`
	MerkleRoot  []byte    `db:"merkle_root"`
	Expiration  *string   `db:"expiration"`
	OccurredAt  time.Time `db:"occurred_at"`
	// seq and created_at are assigned by the database
}

// FromEvent flattens a domain event into a row
func FromEvent(id uuid.UUID, event airdrop.Event) (Event, error) {
	row := Event{EventID: id.String(), Kind: airdrop.KindOf(event)}

	switch e := event.(type) {
	case airdrop.Deposited:
		row.Caller = e.Depositor.Bytes()
		row.Amount = decimal(e.Amount)
		row.OccurredAt = e.At
	case airdrop.Claimed:
		row.Caller = e.Caller.Bytes()
		row.Destination = e.Destination.Bytes()
		row.Amount = decimal(e.Amount)
		row.OccurredAt = e.At
	case airdrop.Retrieved:
		row.Destination = e.Administrator.Bytes()
		row.Amount = decimal(e.Amount)
		row.OccurredAt = e.At
	case airdrop.MerkleRootUpdated:
		row.MerkleRoot = e.Root.Bytes()
		row.OccurredAt = e.At
	case airdrop.ExpirationUpdated:
		exp := strconv.FormatUint(e.ExpirationTimestamp, 10)
		row.Expiration = &exp
		row.OccurredAt = e.At
	default:
		return Event{}, fmt.Errorf("%w: unsupported event %T", ErrMalformedEvent, event)
	}

	return row, nil
}

// Args returns the insert arguments in column order:
// event_id, kind, caller, destination, amount, merkle_root, expiration, occurred_at
func (r Event) Args() []any {
	return []any{r.EventID, r.Kind, r.Caller, r.Destination, r.Amount, r.MerkleRoot, r.Expiration, r.OccurredAt}
}

// ToRecorded converts a row back into a domain event
func (r Event) ToRecorded() (airdrop.RecordedEvent, error) {
	id, err := uuid.Parse(r.EventID)
	if err != nil {
		return airdrop.RecordedEvent{}, fmt.Errorf("%w: event id: %w", ErrMalformedEvent, err)
	}

	rec := airdrop.RecordedEvent{Seq: r.Seq, ID: id}
	at := r.OccurredAt

	switch r.Kind {
	case airdrop.KindDeposited:
		amount, err := parseAmount(r.Amount)
		if err != nil {
			return airdrop.RecordedEvent{}, err
		}
		rec.Event = airdrop.Deposited{Depositor: common.BytesToAddress(r.Caller), Amount: amount, At: at}
	case airdrop.KindClaimed:
		amount, err := parseAmount(r.Amount)
		if err != nil {
			return airdrop.RecordedEvent{}, err
		}
		rec.Event = airdrop.Claimed{
			Caller:      common.BytesToAddress(r.Caller),
			Destination: common.BytesToAddress(r.Destination),
			Amount:      amount,
			At:          at,
		}
	case airdrop.KindRetrieved:
		amount, err := parseAmount(r.Amount)
		if err != nil {
			return airdrop.RecordedEvent{}, err
		}
		rec.Event = airdrop.Retrieved{Administrator: common.BytesToAddress(r.Destination), Amount: amount, At: at}
	case airdrop.KindMerkleRootUpdated:
		rec.Event = airdrop.MerkleRootUpdated{Root: common.BytesToHash(r.MerkleRoot), At: at}
	case airdrop.KindExpirationUpdated:
		if r.Expiration == nil {
			return airdrop.RecordedEvent{}, fmt.Errorf("%w: missing expiration", ErrMalformedEvent)
		}
		exp, err := strconv.ParseUint(*r.Expiration, 10, 64)
		if err != nil {
			return airdrop.RecordedEvent{}, fmt.Errorf("%w: expiration: %w", ErrMalformedEvent, err)
		}
		rec.Event = airdrop.ExpirationUpdated{ExpirationTimestamp: exp, At: at}
	default:
		return airdrop.RecordedEvent{}, fmt.Errorf("%w: kind %q", ErrMalformedEvent, r.Kind)
	}

	return rec, nil
}

func decimal(amount *uint256.Int) *string {
	if amount == nil {
		return nil
	}
	s := amount.Dec()
	return &s
}

func parseAmount(s *string) (*uint256.Int, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: missing amount", ErrMalformedEvent)
	}
	amount, err := uint256.FromDecimal(*s)
	if err != nil {
		return nil, fmt.Errorf("%w: amount: %w", ErrMalformedEvent, err)
	}
	return amount, nil
}
