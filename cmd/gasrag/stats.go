package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/solracnyc/gasrag"
)

// Run executes the stats command.
func (c *StatsCmd) Run(deps *Dependencies) error {
	stats, err := deps.Store.Stats(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", gasrag.ErrorMessage(err))
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(deps.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Fprintf(deps.Stdout, "Documents:  %d\n", stats.TotalDocuments)
	fmt.Fprintf(deps.Stdout, "Chunks:     %d\n", stats.TotalChunks)
	fmt.Fprintf(deps.Stdout, "Avg tokens: %.1f\n", stats.AvgChunkTokens)
	fmt.Fprintf(deps.Stdout, "Storage:    %s\n", stats.StorageSize)
	if stats.OldestChunk != nil {
		fmt.Fprintf(deps.Stdout, "Oldest:     %s\n", stats.OldestChunk.Format(time.RFC3339))
	}
	if stats.NewestChunk != nil {
		fmt.Fprintf(deps.Stdout, "Newest:     %s\n", stats.NewestChunk.Format(time.RFC3339))
	}
	return nil
}

// Run executes the health command. An unhealthy database is an error.
func (c *HealthCmd) Run(deps *Dependencies) error {
	h := deps.Store.HealthCheck(deps.Ctx)

	fmt.Fprintf(deps.Stdout, "Status:  %s\n", h.Status)
	fmt.Fprintf(deps.Stdout, "Latency: %s\n", h.Latency.Round(time.Millisecond))
	fmt.Fprintf(deps.Stdout, "Circuit: %s\n", h.CircuitState)
	if h.Error != "" {
		fmt.Fprintf(deps.Stdout, "Error:   %s\n", h.Error)
	}

	if h.Status == gasrag.HealthUnhealthy {
		return gasrag.Errorf(gasrag.EUNAVAILABLE, "vector database unhealthy")
	}
	return nil
}
