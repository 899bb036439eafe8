package main

import (
	"log/slog"

	"github.com/screwyprof/airdrop/airdrop"
	"github.com/screwyprof/airdrop/pkg/metrics"
)

// newEventLogger logs committed distribution events and counts them by kind
func newEventLogger(feed *airdrop.ChannelJournal, log *slog.Logger, m *metrics.Metrics) func() {
	count := func(e airdrop.Event) {
		m.Events.WithLabelValues(airdrop.KindOf(e)).Inc()
	}

	return airdrop.NewSubscriber(feed.Events(),
		airdrop.OnDeposited(func(e airdrop.Deposited) {
			count(e)
			log.Info("Pool funded",
				slog.String("depositor", e.Depositor.Hex()),
				slog.String("amount", e.Amount.Dec()))
		}),
		airdrop.OnClaimed(func(e airdrop.Claimed) {
			count(e)
			log.Info("Allocation claimed",
				slog.String("caller", e.Caller.Hex()),
				slog.String("destination", e.Destination.Hex()),
				slog.String("amount", e.Amount.Dec()))
		}),
		airdrop.OnRetrieved(func(e airdrop.Retrieved) {
			count(e)
			log.Info("Unclaimed tokens retrieved",
				slog.String("administrator", e.Administrator.Hex()),
				slog.String("amount", e.Amount.Dec()))
		}),
		airdrop.OnMerkleRootUpdated(func(e airdrop.MerkleRootUpdated) {
			count(e)
			log.Warn("Merkle root replaced", slog.String("root", e.Root.Hex()))
		}),
		airdrop.OnExpirationUpdated(func(e airdrop.ExpirationUpdated) {
			count(e)
			log.Warn("Expiration updated", slog.Uint64("expiration", e.ExpirationTimestamp))
		}),
	)
}
