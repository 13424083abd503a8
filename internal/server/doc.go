// Package server implements the HTTP synthesis API. It exposes the full
// pipeline (chunking, context-conditioned generation, assembly) behind a
// single POST endpoint, plus the usual operational endpoints: health,
// stats, sanitized config, and Prometheus metrics.
package server
