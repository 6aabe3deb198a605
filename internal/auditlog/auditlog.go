// Package auditlog appends one JSON line per engine action to a durable
// audit trail. The log is the record of what actually happened to the
// operator's files, so a failed append is fatal: no action proceeds without
// its audit entry on disk.
package auditlog

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"offload/internal/config"
	"offload/internal/services"
)

// Action names what an audit event records.
type Action string

const (
	ActionRunStarted       Action = "run_started"
	ActionRunFinished      Action = "run_finished"
	ActionHashComputed     Action = "hash_computed"
	ActionMatchFound       Action = "match_found"
	ActionDecisionRecorded Action = "decision_recorded"
	ActionImportAttempted  Action = "import_attempted"
	ActionVerification     Action = "verification"
	ActionMove             Action = "move"
	ActionBatchRefused     Action = "batch_refused"
)

// Event is one audit log line.
type Event struct {
	Timestamp   time.Time `json:"ts"`
	RunID       string    `json:"run_id"`
	Action      Action    `json:"action"`
	IdentityKey string    `json:"identity_key,omitempty"`
	Path        string    `json:"path,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Log appends events for one run. Every append is synced before returning.
type Log struct {
	mu    sync.Mutex
	file  *os.File
	runID string
}

// Open appends to the audit log at the configured location and assigns a
// fresh run ID.
func Open(cfg *config.Config) (*Log, error) {
	file, err := os.OpenFile(cfg.AuditLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "audit", "open", "open audit log", err)
	}
	return &Log{
		file:  file,
		runID: uuid.NewString(),
	}, nil
}

// RunID returns the identifier stamped on every event of this log.
func (l *Log) RunID() string {
	return l.runID
}

// Append writes one event line and syncs it to disk.
func (l *Log) Append(ctx context.Context, action Action, identityKey, path, detail string, actionErr error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	event := Event{
		Timestamp:   time.Now().UTC(),
		RunID:       l.runID,
		Action:      action,
		IdentityKey: identityKey,
		Path:        path,
		Detail:      detail,
	}
	if actionErr != nil {
		event.Error = actionErr.Error()
	}

	line, err := json.Marshal(event)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "audit", "append", "encode event", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(line); err != nil {
		return services.Wrap(services.ErrPersistence, "audit", "append", "write event", err)
	}
	if err := l.file.Sync(); err != nil {
		return services.Wrap(services.ErrPersistence, "audit", "append", "sync event", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
