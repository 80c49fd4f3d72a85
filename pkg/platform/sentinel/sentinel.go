// Package sentinel defines sentinel errors for infrastructure facts. Stores
// return these (optionally wrapped) so services can translate them into coded
// domain errors without knowing which backend produced them.
//
// These represent factual states about resources, not validation failures:
//   - ErrNotFound: entity does not exist in the store
//   - ErrConflict: write rejected by a uniqueness or ordering constraint
//   - ErrStale: write carried versions older than the last committed ones
//   - ErrInvalidState: entity in the wrong state for the requested operation
//   - ErrUnavailable: backend temporarily unreachable; eligible for retry
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
package sentinel

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrStale        = errors.New("stale write")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
