package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/solracnyc/gasrag"
)

// Run executes the search command.
func (c *SearchCmd) Run(deps *Dependencies) error {
	opts := gasrag.SearchOptions{Threshold: c.Threshold, Count: c.Count}
	if len(c.Filter) > 0 {
		opts.Filter = make(map[string]any, len(c.Filter))
		for k, v := range c.Filter {
			opts.Filter[k] = v
		}
	}

	results, err := deps.search(c.Query, opts, c.Hybrid)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", gasrag.ErrorMessage(err))
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(deps.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	if len(results) == 0 {
		fmt.Fprintln(deps.Stdout, "No results.")
		return nil
	}
	fmt.Fprintln(deps.Stdout, gasrag.FormatResults(results))
	return nil
}

// Run executes the ask command.
func (c *AskCmd) Run(deps *Dependencies) error {
	results, err := deps.search(c.Question, gasrag.SearchOptions{Threshold: c.Threshold, Count: c.Count}, false)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", gasrag.ErrorMessage(err))
		return err
	}

	answer, err := deps.Asker.Ask(deps.Ctx, c.Question, results)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", gasrag.ErrorMessage(err))
		return err
	}

	fmt.Fprintln(deps.Stdout, answer)
	fmt.Fprintln(deps.Stdout)
	fmt.Fprintln(deps.Stdout, "Sources:")
	seen := make(map[string]bool)
	for _, r := range results {
		src := gasrag.ResultTitle(r)
		if u, ok := r.Metadata["source_url"].(string); ok && u != "" && !strings.Contains(src, u) {
			src += " <" + u + ">"
		}
		if seen[src] {
			continue
		}
		seen[src] = true
		fmt.Fprintf(deps.Stdout, "- %s\n", src)
	}
	return nil
}

// search embeds query and runs it against the store. Plain similarity
// searches go through the semantic cache, persisted per option set.
func (deps *Dependencies) search(query string, opts gasrag.SearchOptions, hybrid bool) ([]gasrag.SearchResult, error) {
	ctx := deps.Ctx
	embedding, err := deps.Embedder.EmbedText(ctx, query, gasrag.TaskQuery)
	if err != nil {
		return nil, err
	}

	cacheable := deps.Cache != nil && !hybrid && len(opts.Filter) == 0
	var snapshots gasrag.CacheSnapshotStore
	if cacheable {
		if deps.Snapshots != nil {
			snapshots = deps.Snapshots(fmt.Sprintf("search:%d:%.3f", opts.Count, opts.Threshold))
			if err := deps.Cache.Load(ctx, snapshots); err != nil {
				deps.Logger.Warn("failed to load semantic cache", "err", err)
			}
		}
		if results, sim, ok := deps.Cache.Get(embedding); ok {
			deps.Logger.Debug("semantic cache hit", "similarity", sim)
			return results, nil
		}
	}

	var results []gasrag.SearchResult
	if hybrid {
		results, err = deps.Store.HybridSearch(ctx, query, embedding, gasrag.HybridOptions{
			Threshold: opts.Threshold,
			Count:     opts.Count,
		})
	} else {
		results, err = deps.Store.SimilaritySearch(ctx, embedding, opts)
	}
	if err != nil {
		return nil, err
	}

	if cacheable {
		deps.Cache.Set(embedding, results, 0)
		if snapshots != nil {
			if err := deps.Cache.Save(ctx, snapshots); err != nil {
				deps.Logger.Warn("failed to save semantic cache", "err", err)
			}
		}
	}
	return results, nil
}
