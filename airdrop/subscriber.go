package airdrop

// Subscriber dispatches distribution events to typed handlers.
type Subscriber struct {
	done              chan struct{}
	depositedHandler  func(Deposited)
	claimedHandler    func(Claimed)
	retrievedHandler  func(Retrieved)
	rootHandler       func(MerkleRootUpdated)
	expirationHandler func(ExpirationUpdated)
}

// OnDeposited sets the handler for Deposited events
func OnDeposited(fn func(Deposited)) func(*Subscriber) {
	return func(s *Subscriber) { s.depositedHandler = fn }
}

// OnClaimed sets the handler for Claimed events
func OnClaimed(fn func(Claimed)) func(*Subscriber) {
	return func(s *Subscriber) { s.claimedHandler = fn }
}

// OnRetrieved sets the handler for Retrieved events
func OnRetrieved(fn func(Retrieved)) func(*Subscriber) {
	return func(s *Subscriber) { s.retrievedHandler = fn }
}

// OnMerkleRootUpdated sets the handler for MerkleRootUpdated events
func OnMerkleRootUpdated(fn func(MerkleRootUpdated)) func(*Subscriber) {
	return func(s *Subscriber) { s.rootHandler = fn }
}

// OnExpirationUpdated sets the handler for ExpirationUpdated events
func OnExpirationUpdated(fn func(ExpirationUpdated)) func(*Subscriber) {
	return func(s *Subscriber) { s.expirationHandler = fn }
}

// NewSubscriber creates a Subscriber with the given options and starts the dispatch loop.
// Returns a closer function that waits for all events to be processed.
//
// Example:
//
//	journal := airdrop.NewChannelJournal(16)
//	closer := airdrop.NewSubscriber(journal.Events(),
//	  airdrop.OnClaimed(func(e airdrop.Claimed) { ... }),
//	)
//	defer closer()
//	defer journal.Close()
//
// The subscriber processes events until the events channel closes.
func NewSubscriber(events <-chan Event, opts ...func(*Subscriber)) func() {
	s := &Subscriber{
		done:              make(chan struct{}),
		depositedHandler:  func(Deposited) {},
		claimedHandler:    func(Claimed) {},
		retrievedHandler:  func(Retrieved) {},
		rootHandler:       func(MerkleRootUpdated) {},
		expirationHandler: func(ExpirationUpdated) {},
	}

	for _, opt := range opts {
		opt(s)
	}

	go func() {
		defer close(s.done)
		for ev := range events {
			switch e := ev.(type) {
			case Deposited:
				s.depositedHandler(e)
			case Claimed:
				s.claimedHandler(e)
			case Retrieved:
				s.retrievedHandler(e)
			case MerkleRootUpdated:
				s.rootHandler(e)
			case ExpirationUpdated:
				s.expirationHandler(e)
			}
		}
	}()

	return func() {
		<-s.done
	}
}
