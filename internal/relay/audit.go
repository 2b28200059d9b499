package relay

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"notifyrelay/internal/types"
)

// AuditOutcome is the terminal, non-delivered outcome being archived.
type AuditOutcome string

const (
	AuditSkipped          AuditOutcome = "skipped"
	AuditPermanentFailure AuditOutcome = "permanent_failure"
)

// AuditEntry is one archived record: a notification that left the pipeline
// without being delivered, plus why.
type AuditEntry struct {
	Timestamp        time.Time    `json:"timestamp"`
	MessageID        string       `json:"message_id"`
	NotificationID   string       `json:"notification_id,omitempty"`
	NotificationType string       `json:"notification_type,omitempty"`
	Outcome          AuditOutcome `json:"outcome"`
	Reason           string       `json:"reason"`
	Body             string       `json:"body,omitempty"`
}

// FailureArchive is the durable audit trail for skipped and permanently
// failed notifications. Archive errors must not fail message processing;
// callers log and continue.
type FailureArchive interface {
	Record(entry AuditEntry) error
	Close() error
}

// ZstdArchive appends audit entries to a file as zstd-compressed NDJSON.
// Each Record writes one self-contained compressed frame; frames
// concatenate into a valid stream, so the file survives process restarts
// and crashes mid-run lose at most the entry being written.
type ZstdArchive struct {
	mu      sync.Mutex
	file    *os.File
	encoder *zstd.Encoder
}

// NewZstdArchive opens (or creates) the archive file at path for appending.
func NewZstdArchive(path string) (*ZstdArchive, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit archive: open %s: %w", path, err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("audit archive: init encoder: %w", err)
	}
	return &ZstdArchive{file: f, encoder: enc}, nil
}

// Record appends one entry as a compressed NDJSON line.
func (a *ZstdArchive) Record(entry AuditEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit archive: marshal entry: %w", err)
	}
	line = append(line, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()
	frame := a.encoder.EncodeAll(line, nil)
	if _, err := a.file.Write(frame); err != nil {
		return fmt.Errorf("audit archive: write: %w", err)
	}
	return nil
}

// Close releases the encoder and the underlying file.
func (a *ZstdArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.encoder.Close()
	return a.file.Close()
}

// NoopArchive discards audit entries. Used when no archive path is
// configured.
type NoopArchive struct{}

func (NoopArchive) Record(AuditEntry) error { return nil }
func (NoopArchive) Close() error            { return nil }

// auditEntryFor builds an entry from whatever envelope data is available.
// env may be nil when the body never parsed.
func auditEntryFor(now time.Time, messageID string, env *types.NotificationEnvelope, outcome AuditOutcome, reason string, body string) AuditEntry {
	entry := AuditEntry{
		Timestamp: now,
		MessageID: messageID,
		Outcome:   outcome,
		Reason:    reason,
		Body:      body,
	}
	if env != nil {
		entry.NotificationID = env.Metadata.NotificationID
		entry.NotificationType = string(env.NotificationType)
	}
	return entry
}
