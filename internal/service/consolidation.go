package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cloo-solutions/remind/internal/corpus"
	"github.com/cloo-solutions/remind/internal/domain"
	"github.com/cloo-solutions/remind/internal/telemetry"
)

// LedgerStore is the processed-state ledger as seen by consolidation.
type LedgerStore interface {
	FetchUnprocessed(ctx context.Context) ([]domain.LedgerRecord, error)
	MarkProcessed(ctx context.Context, refs []domain.RecordRef) error
	RecordDeadLetter(ctx context.Context, path, stage string, cause error) error
}

// CorpusWriter persists the delta and full corpus.
type CorpusWriter interface {
	// LockCycle excludes consolidation cycles in other processes until the
	// returned func is called.
	LockCycle(ctx context.Context) (func(), error)
	Commit(delta domain.Corpus) (int, error)
	ReadFullRaw() ([]byte, error)
}

// SnapshotArchiver uploads a copy of the full corpus after a successful cycle.
type SnapshotArchiver interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// ConsolidationResult summarises one cycle.
type ConsolidationResult struct {
	Fetched int `json:"fetched"`
	Skipped int `json:"skipped"`
	Buckets int `json:"buckets"`
	Added   int `json:"added"`
	Marked  int `json:"marked"`
}

// Consolidator folds unprocessed ledger rows into the corpus files. Only one
// cycle runs at a time, however many timers, commands or processes trigger it.
type Consolidator struct {
	ledger   LedgerStore
	corpus   CorpusWriter
	archiver SnapshotArchiver
	now      func() time.Time

	mu sync.Mutex
}

func NewConsolidator(ledger LedgerStore, corpus CorpusWriter) *Consolidator {
	return &Consolidator{ledger: ledger, corpus: corpus, now: time.Now}
}

// WithArchiver enables the optional snapshot upload.
func (c *Consolidator) WithArchiver(a SnapshotArchiver) *Consolidator {
	c.archiver = a
	return c
}

// Consolidate runs fetch, group, write full corpus, write delta, mark processed.
// Any failure before the final step leaves every fetched row unprocessed, so the
// next cycle retries the whole batch; the corpus merge ignores entries it already
// holds. Rows missing a date or time never reach the corpus: they are moved to
// the dead letters and marked processed with the rest of the batch.
func (c *Consolidator) Consolidate(ctx context.Context) (*ConsolidationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	release, err := c.corpus.LockCycle(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start consolidation: %w", err)
	}
	defer release()

	records, err := c.ledger.FetchUnprocessed(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unprocessed records: %w", err)
	}
	res := &ConsolidationResult{Fetched: len(records)}
	if len(records) == 0 {
		return res, nil
	}

	delta, skipped := corpus.Group(records)
	res.Skipped = len(skipped)
	res.Buckets = len(delta)

	added, err := c.corpus.Commit(delta)
	if err != nil {
		return nil, fmt.Errorf("failed to write corpus: %w", err)
	}
	res.Added = added

	for _, rec := range skipped {
		if err := c.ledger.RecordDeadLetter(ctx, rec.Ref().String(), domain.StageConsolidate, domain.ErrMalformedRecord); err != nil {
			return nil, err
		}
	}

	refs := make([]domain.RecordRef, 0, len(records))
	for _, rec := range records {
		refs = append(refs, rec.Ref())
	}
	if err := c.ledger.MarkProcessed(ctx, refs); err != nil {
		return nil, fmt.Errorf("failed to mark records processed: %w", err)
	}
	res.Marked = len(refs) - len(skipped)

	c.archive(ctx)
	return res, nil
}

// archive is best effort; the local corpus is the source of truth.
func (c *Consolidator) archive(ctx context.Context) {
	if c.archiver == nil {
		return
	}
	data, err := c.corpus.ReadFullRaw()
	if err != nil {
		log.Printf("consolidate: snapshot read failed: %v", err)
		return
	}
	now := c.now()
	key := fmt.Sprintf("snapshots/%s/all_texts-%s.json", now.Format(domain.DateLayout), now.Format("150405"))
	if err := c.archiver.PutObject(ctx, key, data, "application/json"); err != nil {
		log.Printf("consolidate: snapshot upload failed: %v", err)
		telemetry.CaptureError(ctx, err)
		return
	}
}

// Run implements jobs.Task.
func (c *Consolidator) Run(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "consolidate")
	defer span.Finish()

	res, err := c.Consolidate(ctx)
	if err != nil {
		span.SetError(err)
		return err
	}
	span.SetData("records", res.Fetched)
	if res.Fetched > 0 {
		log.Printf("consolidate: fetched %d, added %d entries in %d buckets, marked %d, dead-lettered %d",
			res.Fetched, res.Added, res.Buckets, res.Marked, res.Skipped)
	}
	return nil
}
