/*
store.go - Persistence interface for account timelines

PURPOSE:
  The engine produces mutations; something has to durably hold timelines
  between transactions. This interface is all the engine's callers need:
  read one account's full timeline, apply one transaction's mutations
  atomically.

ATOMICITY CONTRACT:
  Apply persists a whole mutation set or none of it. A failed Apply must
  leave the stored timeline exactly as it was; the error taxonomy in
  errors.go assumes no partial timeline mutation is ever committed.

SERIALIZATION CONTRACT:
  The engine's read-modify-write of multiple spans is not safe under
  concurrent mutation of the same account. Callers serialize per account;
  implementations are free to add their own locking but may not rely on
  it replacing the caller's.

IMPLEMENTATIONS:
  - enrollment/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: SQLite, for the service
*/
package enrollment

import "context"

// TimelineStore persists account timelines.
type TimelineStore interface {
	// Timeline returns the account's full current timeline. An account
	// with no spans yet yields an empty timeline, not an error.
	Timeline(ctx context.Context, accountID AccountID) (*Timeline, error)

	// Apply upserts every record in the mutation set atomically.
	Apply(ctx context.Context, accountID AccountID, muts *Mutations) error
}
