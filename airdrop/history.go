package airdrop

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Event kinds as stored in the journal
const (
	KindDeposited         = "deposited"
	KindClaimed           = "claimed"
	KindRetrieved         = "retrieved"
	KindMerkleRootUpdated = "merkle_root_updated"
	KindExpirationUpdated = "expiration_updated"
)

// Default pagination values
const (
	DefaultPage    = 1
	DefaultPerPage = 50
	MaxPerPage     = 100
)

// Page represents a page number for pagination
type Page uint64

// PerPage represents items per page for pagination
type PerPage uint64

// History validation errors
var (
	ErrPerPageTooLarge = errors.New("per_page exceeds maximum limit")
	ErrPageOutOfRange  = errors.New("page out of range")
	ErrUnknownKind     = errors.New("unknown event kind")
)

// ParsePageFromUint64 creates a Page from uint64, zero meaning the first page
func ParsePageFromUint64(page uint64) Page {
	if page == 0 {
		return Page(DefaultPage)
	}
	return Page(page)
}

// ParsePerPageFromUint64 creates a PerPage from uint64 with domain validation
func ParsePerPageFromUint64(perPage uint64) (PerPage, error) {
	if perPage == 0 {
		return PerPage(DefaultPerPage), nil
	}

	if perPage > MaxPerPage {
		return 0, fmt.Errorf("%w: must be between 1 and %d", ErrPerPageTooLarge, MaxPerPage)
	}

	return PerPage(perPage), nil
}

// ParseKind validates an event kind filter; empty means all kinds
func ParseKind(kind string) (string, error) {
	switch kind {
	case "", KindDeposited, KindClaimed, KindRetrieved, KindMerkleRootUpdated, KindExpirationUpdated:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Uint64 returns the underlying uint64 value
func (p Page) Uint64() uint64 {
	return uint64(p)
}

// Uint64 returns the underlying uint64 value
func (pp PerPage) Uint64() uint64 {
	return uint64(pp)
}

// KindOf names the kind of a journal event, or "" for foreign values
func KindOf(event Event) string {
	switch event.(type) {
	case Deposited:
		return KindDeposited
	case Claimed:
		return KindClaimed
	case Retrieved:
		return KindRetrieved
	case MerkleRootUpdated:
		return KindMerkleRootUpdated
	case ExpirationUpdated:
		return KindExpirationUpdated
	default:
		return ""
	}
}

// RecordedEvent is an event as read back from a durable journal
type RecordedEvent struct {
	Seq   int64
	ID    uuid.UUID
	Event Event
}

// EventsCriteria specifies criteria for listing journal events
type EventsCriteria struct {
	Kind string // "" means every kind
	Page Page
	Size PerPage
}

// Offset returns how many events precede the requested page.
// It must fit a signed 64-bit integer, the range of a SQL OFFSET.
func (c EventsCriteria) Offset() (uint64, error) {
	page := c.Page.Uint64()
	if page == 0 {
		page = DefaultPage
	}
	size := c.Size.Uint64()
	if size == 0 {
		size = DefaultPerPage
	}

	if page-1 > math.MaxInt64/size {
		return 0, fmt.Errorf("%w: page %d of %d events each", ErrPageOutOfRange, page, size)
	}
	return (page - 1) * size, nil
}

// EventsPage is a page of journal events, newest first
type EventsPage struct {
	Events  []RecordedEvent
	HasMore bool
	Number  Page
	Size    PerPage
}

// Helper methods for pagination state
func (p *EventsPage) HasNext() bool     { return p.HasMore }
func (p *EventsPage) HasPrevious() bool { return p.Number > 1 }

// EventsFinder lists journal events
type EventsFinder interface {
	FindEvents(ctx context.Context, criteria EventsCriteria) (*EventsPage, error)
}
