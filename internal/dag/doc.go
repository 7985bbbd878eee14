// Package dag is a small, concurrency-safe directed acyclic graph keyed by
// string IDs. The frame executor uses it to plan tick units: an edge a -> b
// means b runs after a. Every listing is sorted so plans are reproducible
// from one frame to the next.
package dag
