package digest

import (
	"context"
	"log/slog"
	"sync"

	"offload/internal/inventory"
	"offload/internal/logging"
)

// Result pairs one inventory record with its digest outcome. Err is set when
// the file could not be read; such records stay in the workflow surfaced as
// "could not verify" rather than disappearing.
type Result struct {
	Record inventory.FileRecord
	Err    error
}

// Pool hashes inventory records with bounded concurrency. Records are unique
// by path in a single scan, so no two workers ever hash the same identity.
type Pool struct {
	workers int
	cache   Cache
	logger  *slog.Logger
}

// NewPool builds a hashing pool. workers values below one are clamped to one.
func NewPool(workers int, cache Cache, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if cache == nil {
		cache = NopCache()
	}
	return &Pool{
		workers: workers,
		cache:   cache,
		logger:  logging.NewComponentLogger(logger, "hasher"),
	}
}

// HashAll digests every record, consulting the cache first and storing fresh
// digests back. The returned slice preserves input order. Cache write
// failures are surfaced on the result so callers can decide whether they are
// fatal (ledger-backed caches make them persistence errors).
func (p *Pool) HashAll(ctx context.Context, records []inventory.FileRecord) []Result {
	results := make([]Result, len(records))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = p.hashOne(ctx, records[idx])
			}
		}()
	}

	for idx := range records {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			idx := idx
			for ; idx < len(records); idx++ {
				results[idx] = Result{Record: records[idx], Err: ctx.Err()}
			}
			close(jobs)
			wg.Wait()
			return results
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

func (p *Pool) hashOne(ctx context.Context, record inventory.FileRecord) Result {
	if cached, ok, err := p.cache.LookupDigest(ctx, record.Path, record.Size, record.ModTime); err != nil {
		return Result{Record: record, Err: err}
	} else if ok {
		record.Digest = cached
		return Result{Record: record}
	}

	digest, err := Compute(ctx, record.Path)
	if err != nil {
		p.logger.Warn("could not hash file; excluded from verification",
			logging.String(logging.FieldPath, record.Path),
			logging.Error(err))
		return Result{Record: record, Err: err}
	}
	record.Digest = digest

	if err := p.cache.StoreDigest(ctx, record.Path, record.Size, record.ModTime, digest); err != nil {
		return Result{Record: record, Err: err}
	}
	return Result{Record: record}
}
