package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/solracnyc/gasrag"
	"github.com/solracnyc/gasrag/bloom"
	"github.com/solracnyc/gasrag/fs"
	"golang.org/x/sync/errgroup"
)

// ingestSummary counts the outcome of an ingest run.
type ingestSummary struct {
	Pages      int
	Skipped    int
	Chunks     int
	Duplicates int
	Failed     int
	Written    int
}

// Run executes the ingest command. Pages are processed concurrently;
// every embedding call draws from the pipeline's shared request budget.
func (c *IngestCmd) Run(deps *Dependencies) error {
	pages, err := fs.ReadPages(c.Path)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", gasrag.ErrorMessage(err))
		return err
	}
	if len(pages) == 0 {
		return gasrag.Errorf(gasrag.EINVALID, "no pages found in %s", c.Path)
	}

	concurrency := c.Concurrency
	if concurrency <= 0 {
		concurrency = deps.Config.Ingest.Concurrency
	}
	batchSize := c.BatchSize
	if batchSize <= 0 {
		batchSize = deps.Config.Ingest.BatchSize
	}
	var filter *bloom.Filter
	if deps.Config.Ingest.Dedup && !c.NoDedup {
		filter = bloom.NewFilter(uint(len(pages))*20, 0.001)
	}

	bar := newProgressBar(deps, len(pages), "Ingesting")
	var (
		mu      sync.Mutex
		summary = ingestSummary{Pages: len(pages)}
	)

	g, ctx := errgroup.WithContext(deps.Ctx)
	g.SetLimit(concurrency)
	for _, page := range pages {
		g.Go(func() error {
			defer func() {
				if bar != nil {
					_ = bar.Add(1)
				}
			}()

			chunks, err := deps.Chunker.Chunk(ctx, page)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				deps.Logger.Warn("skipping page", "url", page.URL, "err", gasrag.ErrorMessage(err))
				mu.Lock()
				summary.Skipped++
				mu.Unlock()
				return nil
			}
			produced := len(chunks)
			if filter != nil {
				chunks = filter.Unique(chunks)
			}

			res, err := deps.Embedder.EmbedAll(ctx, chunks, batchSize, nil)
			if err != nil {
				return err
			}

			var written int
			if len(res.Embedded) > 0 {
				wr, err := deps.Store.Insert(ctx, res.Embedded)
				if err != nil {
					return fmt.Errorf("store chunks of %s: %w", page.URL, err)
				}
				written = wr.Written
			}

			mu.Lock()
			summary.Chunks += produced
			summary.Duplicates += produced - len(chunks)
			summary.Failed += len(res.Failed)
			summary.Written += written
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()

	fmt.Fprintf(deps.Stdout, "Ingested %d pages (%d skipped): %d chunks, %d duplicates, %d failed, %d written\n",
		summary.Pages, summary.Skipped, summary.Chunks, summary.Duplicates, summary.Failed, summary.Written)

	if err != nil {
		var opErr *gasrag.OpError
		if errors.As(err, &opErr) {
			fmt.Fprintf(deps.Stderr, "error: vector store %s failed: %s\n", opErr.Op, gasrag.ErrorMessage(opErr.Err))
		} else {
			fmt.Fprintf(deps.Stderr, "error: %s\n", gasrag.ErrorMessage(err))
		}
		return err
	}
	return nil
}
