package rockgate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/neogan74/rockgate/internal/engine"
	"github.com/neogan74/rockgate/internal/logger"
	"github.com/neogan74/rockgate/internal/metrics"
)

// UpdateFeed is a live, ordered subscription to the engine's write stream.
// Next delivers change batches in engine write order with contiguous
// sequence numbers; a gap is a protocol violation fatal to this feed only.
// A feed cannot be rewound; to resume from an earlier sequence, create a
// new one.
type UpdateFeed struct {
	db  *DB
	id  uint64
	sub engine.Subscription

	// mu serializes Next calls and lets Close await an in-flight Next.
	mu      sync.Mutex
	lastSeq uint64
	failed  error

	closed    atomic.Bool
	closeOnce sync.Once
}

// Updates opens a feed of changes after opts.Since. With a zero-valued
// options struct the feed starts at the current sequence and carries both
// keys and values.
func (db *DB) Updates(opts UpdateOptions) (*UpdateFeed, error) {
	if err := db.requireOpen(); err != nil {
		return nil, err
	}

	if !opts.Keys && !opts.Values {
		opts.Keys, opts.Values = true, true
	}
	since := opts.Since
	if since == 0 && !opts.SinceStart {
		since = db.eng.CurrentSequence()
	}
	// A start point past the write stream would make the first live batch
	// look like a gap; reject it up front.
	if cur := db.eng.CurrentSequence(); since > cur {
		metrics.DBOperationsTotal.WithLabelValues("updates", "error").Inc()
		return nil, fmt.Errorf("%w: since %d, current %d", ErrInvalidSequence, since, cur)
	}

	sub, err := db.eng.Subscribe(engine.SubscribeOptions{
		Since:  since,
		Keys:   opts.Keys,
		Values: opts.Values,
	})
	if err != nil {
		metrics.DBOperationsTotal.WithLabelValues("updates", "error").Inc()
		return nil, err
	}

	feed := &UpdateFeed{db: db, sub: sub, lastSeq: since}
	id, attachErr := db.tracker.attach("feed", feed)
	if attachErr != nil {
		_ = sub.Close()
		return nil, attachErr
	}
	feed.id = id
	metrics.DBOperationsTotal.WithLabelValues("updates", "success").Inc()

	db.log.Debug("update feed opened", logger.Uint64("since", since))
	return feed, nil
}

// Next blocks until the engine delivers at least one batch of changes, then
// returns it. A closed or exhausted feed yields an empty batch and no
// error. After a sequence gap every call returns the same SequenceGapError.
func (f *UpdateFeed) Next(ctx context.Context) (UpdateBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failed != nil {
		return UpdateBatch{}, f.failed
	}
	if f.closed.Load() {
		return UpdateBatch{}, nil
	}

	batch, err := f.sub.Next(ctx)
	if err != nil {
		return UpdateBatch{}, err
	}
	if batch.Count == 0 {
		// The subscription was closed underneath us.
		return UpdateBatch{}, nil
	}

	// Contiguity: the first record must directly extend what this feed has
	// already delivered. A hole means the engine's write stream and this
	// feed have diverged, which nothing downstream can repair.
	if first := batch.FirstSequence(); first != f.lastSeq+1 {
		f.failed = &SequenceGapError{Expected: f.lastSeq + 1, Got: first}
		metrics.FeedSequenceGaps.Inc()
		f.db.log.Error("update feed sequence gap",
			logger.Uint64("expected", f.lastSeq+1),
			logger.Uint64("got", first))
		return UpdateBatch{}, f.failed
	}
	f.lastSeq = batch.Sequence
	metrics.FeedBatchesTotal.Inc()

	rows := make([]ChangeRow, len(batch.Records))
	for i, rec := range batch.Records {
		row := ChangeRow{Sequence: rec.Sequence}
		if rec.Kind == engine.OpDelete {
			row.Type = OpTypeDelete
		}
		row.Key = rec.Key
		row.Value = rec.Value
		rows[i] = row
	}
	return UpdateBatch{Rows: rows, Sequence: batch.Sequence, Count: batch.Count}, nil
}

// Sequence returns the sequence number the feed has been delivered up to.
func (f *UpdateFeed) Sequence() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSeq
}

// Close tears the feed down. It first unblocks and awaits any in-flight
// Next call (whose outcome is logged, never propagated here), then releases
// the engine-side subscription. Database close forces this same path.
func (f *UpdateFeed) Close() error {
	f.closeOnce.Do(func() {
		f.closed.Store(true)

		// Closing the subscription wakes a Next blocked inside it.
		if err := f.sub.Close(); err != nil {
			f.db.log.Warn("update feed subscription close failed", logger.Error(err))
		}

		// Wait for an in-flight Next to settle before declaring the feed
		// closed; its error, if any, belongs to that caller.
		f.mu.Lock()
		f.mu.Unlock() //nolint:staticcheck // acquire-release is the settle barrier

		f.db.tracker.detach(f.id)
		f.db.log.Debug("update feed closed")
	})
	return nil
}

func (f *UpdateFeed) forceClose() {
	_ = f.Close()
}
