package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"meridian-hq/meridian/pkg/audit"
)

// Config contains configuration for the audit recorder.
type Config struct {
	// WriteTimeout bounds each storage write.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder appends hash-chained entries to the audit trail.
type Recorder struct {
	storage audit.Storage
	config  *Config
	logger  *slog.Logger

	// mu serializes appends so the hash chain has a single tail.
	mu       sync.Mutex
	lastHash string
	loaded   bool
}

// NewRecorder creates a recorder backed by the provided storage.
func NewRecorder(storage audit.Storage, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	return &Recorder{
		storage: storage,
		config:  config,
		logger:  slog.Default().With("component", "audit.recorder"),
	}
}

// Record fills in the entry's identity, timestamp, and hash chain fields and
// writes it to storage. It blocks until the write completes and returns any
// storage error wrapped in a RecordError.
func (r *Recorder) Record(ctx context.Context, entry *audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		last, err := r.storage.Last(ctx)
		if err != nil {
			return &audit.RecordError{Action: entry.Action, Cause: err}
		}
		if last != nil {
			r.lastHash = last.Hash
		}
		r.loaded = true
	}

	entry.ID = uuid.New().String()
	entry.Timestamp = time.Now().UTC()
	if entry.Status == "" {
		entry.Status = audit.StatusSuccess
	}
	entry.PrevHash = r.lastHash
	entry.Hash = entryHash(entry)

	writeCtx, cancel := context.WithTimeout(ctx, r.config.WriteTimeout)
	defer cancel()

	if err := r.storage.Store(writeCtx, entry); err != nil {
		r.logger.Error("audit write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID,
			"error", err,
		)
		return &audit.RecordError{Action: entry.Action, Cause: err}
	}

	r.lastHash = entry.Hash
	return nil
}

// Verify walks every entry in the trail oldest-first and checks that each
// entry's hash is correct and links to its predecessor. Returns a ChainError
// at the first broken link.
func (r *Recorder) Verify(ctx context.Context) error {
	entries, errCh, err := r.storage.QueryStream(ctx, &audit.Query{
		SortOrder: "asc",
		Limit:     -1,
	})
	if err != nil {
		return err
	}

	prevHash := ""
	for e := range entries {
		if e.PrevHash != prevHash {
			return &audit.ChainError{EntryID: e.ID, Reason: "previous hash mismatch"}
		}
		if entryHash(e) != e.Hash {
			return &audit.ChainError{EntryID: e.ID, Reason: "entry hash mismatch"}
		}
		prevHash = e.Hash
	}
	return <-errCh
}
