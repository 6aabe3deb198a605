package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"offload/internal/logging"
	"offload/internal/services"
)

const entryColumns = "identity_key, path, size_bytes, mtime_ns, digest, verdict, verdict_evidence, decision, status, error_message, moved_path, created_at, updated_at"

// UpsertScan records scan-phase metadata for an identity key. It refreshes
// path, size, mtime, digest, and verdict fields but never touches a recorded
// decision or execution status.
func (s *Store) UpsertScan(ctx context.Context, record Record) error {
	if record.IdentityKey == "" {
		return services.Wrap(services.ErrValidation, "ledger", "upsert", "identity key is empty", nil)
	}
	now := timestamp(time.Now())
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO ledger_entries (
            identity_key, path, size_bytes, mtime_ns, digest,
            verdict, verdict_evidence, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(identity_key) DO UPDATE SET
            path = excluded.path,
            size_bytes = excluded.size_bytes,
            mtime_ns = excluded.mtime_ns,
            digest = excluded.digest,
            verdict = excluded.verdict,
            verdict_evidence = excluded.verdict_evidence,
            updated_at = excluded.updated_at`,
		record.IdentityKey,
		record.Path,
		record.Size,
		record.ModTime.UnixNano(),
		record.Digest,
		record.Verdict,
		record.VerdictEvidence,
		string(StatusPending),
		now,
		now,
	)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "ledger", "upsert", "failed to persist scan record", err)
	}
	return nil
}

// Rekey migrates an entry from a path-fallback key to its digest key once
// hashing succeeds, preserving any recorded decision. When the digest key
// already exists the path-fallback row is dropped in its favor.
func (s *Store) Rekey(ctx context.Context, oldKey, newKey string) error {
	if oldKey == newKey {
		return nil
	}
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return services.Wrap(services.ErrPersistence, "ledger", "rekey", "begin transaction", err)
		}
		defer func() { _ = tx.Rollback() }()

		var exists int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM ledger_entries WHERE identity_key = ?", newKey,
		).Scan(&exists); err != nil {
			return services.Wrap(services.ErrPersistence, "ledger", "rekey", "probe digest key", err)
		}

		if exists > 0 {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM ledger_entries WHERE identity_key = ?", oldKey,
			); err != nil {
				return services.Wrap(services.ErrPersistence, "ledger", "rekey", "drop path fallback", err)
			}
		} else {
			if _, err := tx.ExecContext(ctx,
				"UPDATE ledger_entries SET identity_key = ?, updated_at = ? WHERE identity_key = ?",
				newKey, timestamp(time.Now()), oldKey,
			); err != nil {
				return services.Wrap(services.ErrPersistence, "ledger", "rekey", "migrate key", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return services.Wrap(services.ErrPersistence, "ledger", "rekey", "commit", err)
		}
		return nil
	})
}

// RecordDecision durably records the operator's decision for an identity key.
// It is idempotent and overwrites any prior decision for the same key. The
// execution status is reset to pending so a changed decision restarts the
// chain.
func (s *Store) RecordDecision(ctx context.Context, identityKey string, decision Decision) error {
	if _, ok := ParseDecision(string(decision)); !ok {
		return services.Wrap(services.ErrValidation, "ledger", "record decision", fmt.Sprintf("unknown decision %q", decision), nil)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE ledger_entries
         SET decision = ?, status = ?, error_message = '', updated_at = ?
         WHERE identity_key = ?`,
		string(decision),
		string(StatusPending),
		timestamp(time.Now()),
		identityKey,
	)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "ledger", "record decision", "failed to persist decision", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return services.Wrap(services.ErrPersistence, "ledger", "record decision", "rows affected", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "ledger", "record decision", fmt.Sprintf("no entry for identity key %s", identityKey), nil)
	}
	return nil
}

// RecordStatus transitions an entry's execution status. Transitions are
// monotonic: the chain never moves backward, and nothing leaves moved.
func (s *Store) RecordStatus(ctx context.Context, identityKey string, status Status) error {
	return s.recordStatus(ctx, identityKey, status, "", "")
}

// RecordFailure marks an entry failed with a reason.
func (s *Store) RecordFailure(ctx context.Context, identityKey, reason string) error {
	return s.recordStatus(ctx, identityKey, StatusFailed, reason, "")
}

// RecordSkip marks an entry skipped with a reason.
func (s *Store) RecordSkip(ctx context.Context, identityKey, reason string) error {
	return s.recordStatus(ctx, identityKey, StatusSkipped, reason, "")
}

// RecordMoved marks an entry moved and remembers the destination path.
func (s *Store) RecordMoved(ctx context.Context, identityKey, movedPath string) error {
	return s.recordStatus(ctx, identityKey, StatusMoved, "", movedPath)
}

func (s *Store) recordStatus(ctx context.Context, identityKey string, status Status, errorMessage, movedPath string) error {
	if _, ok := ParseStatus(string(status)); !ok {
		return services.Wrap(services.ErrValidation, "ledger", "record status", fmt.Sprintf("unknown status %q", status), nil)
	}
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return services.Wrap(services.ErrPersistence, "ledger", "record status", "begin transaction", err)
		}
		defer func() { _ = tx.Rollback() }()

		var currentRaw string
		err = tx.QueryRowContext(ctx,
			"SELECT status FROM ledger_entries WHERE identity_key = ?", identityKey,
		).Scan(&currentRaw)
		if errors.Is(err, sql.ErrNoRows) {
			return services.Wrap(services.ErrNotFound, "ledger", "record status", fmt.Sprintf("no entry for identity key %s", identityKey), nil)
		}
		if err != nil {
			return services.Wrap(services.ErrPersistence, "ledger", "record status", "read current status", err)
		}

		current, ok := ParseStatus(currentRaw)
		if !ok {
			current = StatusPending
		}
		if !CanTransition(current, status) {
			return services.Wrap(services.ErrValidation, "ledger", "record status",
				fmt.Sprintf("illegal transition %s -> %s for %s", current, status, identityKey), nil)
		}

		query := "UPDATE ledger_entries SET status = ?, updated_at = ?, error_message = ?"
		args := []any{string(status), timestamp(time.Now()), errorMessage}
		if movedPath != "" {
			query += ", moved_path = ?"
			args = append(args, movedPath)
		}
		query += " WHERE identity_key = ?"
		args = append(args, identityKey)

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return services.Wrap(services.ErrPersistence, "ledger", "record status", "write status", err)
		}
		if err := tx.Commit(); err != nil {
			return services.Wrap(services.ErrPersistence, "ledger", "record status", "commit", err)
		}
		return nil
	})
}

// Get fetches a single entry by identity key, or nil when absent.
func (s *Store) Get(ctx context.Context, identityKey string) (*Record, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+entryColumns+` FROM ledger_entries WHERE identity_key = ?`, identityKey)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "ledger", "get", "read entry", err)
	}
	return record, nil
}

// Decisions returns the full persisted decision mapping. Rows with unknown
// decisions or statuses are dropped with a warning rather than trusted.
func (s *Store) Decisions(ctx context.Context) (map[string]Decision, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT identity_key, decision FROM ledger_entries WHERE decision != ''`)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "ledger", "load decisions", "query", err)
	}
	defer rows.Close()

	decisions := make(map[string]Decision)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, services.Wrap(services.ErrPersistence, "ledger", "load decisions", "scan row", err)
		}
		decision, ok := ParseDecision(raw)
		if !ok {
			s.logger.Warn("dropping corrupt ledger decision",
				logging.String(logging.FieldIdentityKey, key),
				logging.String("decision", raw))
			continue
		}
		decisions[key] = decision
	}
	return decisions, rows.Err()
}

// List returns entries filtered by status set (or all entries when no status
// is provided), ordered by path for stable output.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]Record, error) {
	baseQuery := `SELECT ` + entryColumns + ` FROM ledger_entries`
	orderClause := ` ORDER BY path`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ensureContext(ctx), baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = string(status)
		}
		rows, err = s.db.QueryContext(ensureContext(ctx),
			baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "ledger", "list", "query", err)
	}
	defer rows.Close()

	return collectRecords(s, rows)
}

// Undecided returns entries that still need an operator decision, ordered by
// path so review order is stable across resumes.
func (s *Store) Undecided(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+entryColumns+` FROM ledger_entries WHERE decision = '' ORDER BY path`)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "ledger", "undecided", "query", err)
	}
	defer rows.Close()

	return collectRecords(s, rows)
}

// PendingWork returns the actionable entries for the batch executor:
// remove/import-then-remove decisions whose status has not reached moved or
// skipped. Failed entries are included so a later run retries them from the
// start of their chain.
func (s *Store) PendingWork(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+entryColumns+` FROM ledger_entries
         WHERE decision IN (?, ?) AND status IN (?, ?, ?, ?)
         ORDER BY path`,
		string(DecisionRemove),
		string(DecisionImportThenRemove),
		string(StatusPending),
		string(StatusImported),
		string(StatusVerified),
		string(StatusFailed),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "ledger", "pending work", "query", err)
	}
	defer rows.Close()

	return collectRecords(s, rows)
}

// RetryFailed moves failed entries back to pending for reprocessing. With no
// keys, all failed entries are reset.
func (s *Store) RetryFailed(ctx context.Context, keys ...string) (int64, error) {
	now := timestamp(time.Now())
	if len(keys) == 0 {
		res, err := s.execWithRetry(ctx,
			`UPDATE ledger_entries SET status = ?, error_message = '', updated_at = ? WHERE status = ?`,
			string(StatusPending), now, string(StatusFailed))
		if err != nil {
			return 0, services.Wrap(services.ErrPersistence, "ledger", "retry failed", "update", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(keys))
	args := make([]any, 0, len(keys)+3)
	args = append(args, string(StatusPending), now, string(StatusFailed))
	for _, key := range keys {
		args = append(args, key)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE ledger_entries SET status = ?, error_message = '', updated_at = ?
         WHERE status = ? AND identity_key IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "ledger", "retry failed", "update selected", err)
	}
	return res.RowsAffected()
}

// ClearFailed deletes failed entries outright, for files the operator has
// dealt with outside the engine.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM ledger_entries WHERE status = ?`, string(StatusFailed))
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "ledger", "clear failed", "delete", err)
	}
	return res.RowsAffected()
}

// Remove deletes an entry by identity key.
func (s *Store) Remove(ctx context.Context, identityKey string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM ledger_entries WHERE identity_key = ?`, identityKey)
	if err != nil {
		return false, services.Wrap(services.ErrPersistence, "ledger", "remove", "delete", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, services.Wrap(services.ErrPersistence, "ledger", "remove", "rows affected", err)
	}
	return affected > 0, nil
}

// Stats returns aggregate counts for status output.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		ByStatus: make(map[Status]int),
		ByChoice: make(map[Decision]int),
	}

	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT status, decision, COUNT(1) FROM ledger_entries GROUP BY status, decision`)
	if err != nil {
		return stats, services.Wrap(services.ErrPersistence, "ledger", "stats", "query", err)
	}
	defer rows.Close()

	for rows.Next() {
		var statusRaw, decisionRaw string
		var count int
		if err := rows.Scan(&statusRaw, &decisionRaw, &count); err != nil {
			return stats, services.Wrap(services.ErrPersistence, "ledger", "stats", "scan row", err)
		}
		stats.Total += count
		if status, ok := ParseStatus(statusRaw); ok {
			stats.ByStatus[status] += count
		}
		if decisionRaw == "" {
			stats.Undecided += count
		} else if decision, ok := ParseDecision(decisionRaw); ok {
			stats.ByChoice[decision] += count
		}
	}
	return stats, rows.Err()
}

func collectRecords(s *Store, rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrPersistence, "ledger", "scan", "scan row", err)
		}
		if record.Status == "" {
			s.logger.Warn("dropping corrupt ledger entry",
				logging.String(logging.FieldIdentityKey, record.IdentityKey))
			continue
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		identityKey string
		path        string
		size        int64
		mtimeNS     int64
		digest      string
		verdict     string
		evidence    string
		decisionRaw string
		statusRaw   string
		errMessage  string
		movedPath   string
		createdRaw  string
		updatedRaw  string
	)

	if err := scanner.Scan(
		&identityKey,
		&path,
		&size,
		&mtimeNS,
		&digest,
		&verdict,
		&evidence,
		&decisionRaw,
		&statusRaw,
		&errMessage,
		&movedPath,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	record := &Record{
		IdentityKey:     identityKey,
		Path:            path,
		Size:            size,
		ModTime:         time.Unix(0, mtimeNS),
		Digest:          digest,
		Verdict:         verdict,
		VerdictEvidence: evidence,
		ErrorMessage:    errMessage,
		MovedPath:       movedPath,
		CreatedAt:       parseTimestamp(createdRaw),
		UpdatedAt:       parseTimestamp(updatedRaw),
	}
	if decisionRaw != "" {
		if decision, ok := ParseDecision(decisionRaw); ok {
			record.Decision = decision
		}
	}
	if status, ok := ParseStatus(statusRaw); ok {
		record.Status = status
	}
	return record, nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
