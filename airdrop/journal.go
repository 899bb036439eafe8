package airdrop

import (
	"context"
	"errors"
	"sync"
)

// ErrJournalClosed is returned when recording into a closed ChannelJournal
var ErrJournalClosed = errors.New("journal closed")

type nopJournal struct{}

func (nopJournal) Record(context.Context, Event) error { return nil }

// Journals fans an event out to every journal, in order.
// All journals are attempted; their errors are joined.
func Journals(journals ...Journal) Journal {
	return multiJournal(journals)
}

type multiJournal []Journal

func (m multiJournal) Record(ctx context.Context, event Event) error {
	var errs []error
	for _, j := range m {
		if err := j.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ChannelJournal publishes events on a channel for NewSubscriber.
//
// Shutdown pattern:
//  1. Stop issuing operations on the distribution
//  2. Close the journal: journal.Close()
//  3. Wait for the subscriber: closer()
type ChannelJournal struct {
	mu     sync.RWMutex
	closed bool
	events chan Event
}

// NewChannelJournal creates a journal with the given channel buffer
func NewChannelJournal(buffer int) *ChannelJournal {
	return &ChannelJournal{events: make(chan Event, buffer)}
}

// Events returns the channel events are published on
func (j *ChannelJournal) Events() <-chan Event {
	return j.events
}

// Record blocks until the event is accepted or ctx is done
func (j *ChannelJournal) Record(ctx context.Context, event Event) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return ErrJournalClosed
	}

	select {
	case j.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the events channel. It is safe to call more than once.
func (j *ChannelJournal) Close() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.closed {
		j.closed = true
		close(j.events)
	}
}
