// Package metrics defines the Prometheus instrumentation for the speech
// generation pipeline: generation throughput and latency, chunking, assembly,
// prompt downloads, and the HTTP API.
package metrics
