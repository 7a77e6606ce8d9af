// Package gasrag ingests crawled documentation pages into a vector database
// and serves nearest-neighbor search over them. Pages are split into chunks,
// embedded by a remote embedding service and upserted through a
// fault-tolerant store client.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, gemini/, bolt/) or after
// the pipeline stage they implement (chunk/, embed/, migrate/).
package gasrag

// Dimension is the fixed length of every embedding handled by the system.
const Dimension = 768
