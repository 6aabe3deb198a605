// Package ledger persists the decision ledger: the durable mapping from file
// identity key to operator decision and execution status, plus the digest
// cache that lets hashing resume across restarts.
//
// The store is backed by SQLite in WAL mode so interrupted writes never
// corrupt committed entries. It is the engine's single source of truth for
// resume: decisions are authoritative once recorded, and execution statuses
// only ever move forward through their transition chain.
package ledger
