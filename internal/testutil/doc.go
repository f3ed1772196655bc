// Package testutil provides deterministic helpers for tests and the
// scenario harness: reproducible descriptor IDs and a silent logger.
package testutil
