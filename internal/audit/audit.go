// Package audit provides the append-only, tamper-evident record of every
// sensitive operation in the compliance core.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Entry is a single audit record. Entries are never edited or deleted.
type Entry struct {
	ID           uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	Timestamp    time.Time      `json:"timestamp" gorm:"not null;index"`
	Action       string         `json:"action" gorm:"not null;index"`
	InvestorID   string         `json:"investor_id" gorm:"index"`
	PerformedBy  string         `json:"performed_by" gorm:"not null"`
	Details      map[string]any `json:"details" gorm:"serializer:json"`
	Outcome      *bool          `json:"outcome,omitempty"`
	RiskLevel    string         `json:"risk_level"`
	Hash         string         `json:"hash" gorm:"not null"`
	PreviousHash string         `json:"previous_hash"`
}

// TableName sets the gorm table for audit entries
func (Entry) TableName() string { return "audit_log" }

// Config tunes the asynchronous persistence path.
type Config struct {
	QueueSize     int           `mapstructure:"queue_size" yaml:"queue_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`
}

// DefaultConfig returns the stock audit configuration.
func DefaultConfig() Config {
	return Config{QueueSize: 256, FlushInterval: 5 * time.Second}
}

// Log is an append-only, hash-chained audit log. The in-memory chain is
// authoritative; database persistence is asynchronous and best-effort.
type Log struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	db       *gorm.DB // optional
	entries  []*Entry
	lastHash string

	queue chan *Entry
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewLog creates an audit log. db may be nil for in-memory-only operation.
func NewLog(logger *zap.Logger, db *gorm.DB, cfg Config) *Log {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	l := &Log{
		logger: logger,
		db:     db,
		done:   make(chan struct{}),
	}
	if db != nil {
		l.queue = make(chan *Entry, cfg.QueueSize)
		l.wg.Add(1)
		go l.drain(cfg.FlushInterval)
	}
	return l
}

func entryHash(e *Entry) string {
	hashData := struct {
		ID           uuid.UUID
		Timestamp    time.Time
		Action       string
		InvestorID   string
		PerformedBy  string
		Outcome      *bool
		PreviousHash string
	}{e.ID, e.Timestamp, e.Action, e.InvestorID, e.PerformedBy, e.Outcome, e.PreviousHash}

	data, err := json.Marshal(hashData)
	if err != nil {
		// Marshalling of the fixed struct above cannot fail; keep the chain
		// moving with a hash of the raw id if it somehow does.
		data = []byte(e.ID.String())
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Append records an entry, chaining its hash to the previous entry.
func (l *Log) Append(ctx context.Context, entry *Entry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	entry.PreviousHash = l.lastHash
	entry.Hash = entryHash(entry)
	l.lastHash = entry.Hash
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	if l.queue != nil {
		select {
		case l.queue <- entry:
		default:
			// Queue full: persist synchronously rather than drop the record.
			l.logger.Warn("audit queue full, storing synchronously")
			l.store(entry)
		}
	}
}

// Event is a convenience wrapper for appending a named action.
func (l *Log) Event(ctx context.Context, action, investorID, performedBy string, outcome *bool, riskLevel string, details map[string]any) {
	l.Append(ctx, &Entry{
		Action:      action,
		InvestorID:  investorID,
		PerformedBy: performedBy,
		Outcome:     outcome,
		RiskLevel:   riskLevel,
		Details:     details,
	})
}

// Entries returns a snapshot copy of the log, optionally filtered by
// investor id ("" matches all).
func (l *Log) Entries(investorID string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if investorID != "" && e.InvestorID != investorID {
			continue
		}
		out = append(out, *e)
	}
	return out
}

// Len returns the number of entries appended so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// IntegrityIssue describes one broken link found by VerifyIntegrity.
type IntegrityIssue struct {
	EntryID     uuid.UUID `json:"entry_id"`
	IssueType   string    `json:"issue_type"`
	Description string    `json:"description"`
}

// VerifyIntegrity walks the hash chain and reports every mismatch.
func (l *Log) VerifyIntegrity() []IntegrityIssue {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var issues []IntegrityIssue
	prevHash := ""
	for _, e := range l.entries {
		if e.PreviousHash != prevHash {
			issues = append(issues, IntegrityIssue{
				EntryID:     e.ID,
				IssueType:   "chain_break",
				Description: "previous hash does not match the preceding entry",
			})
		}
		if entryHash(e) != e.Hash {
			issues = append(issues, IntegrityIssue{
				EntryID:     e.ID,
				IssueType:   "hash_mismatch",
				Description: "entry hash does not match its contents",
			})
		}
		prevHash = e.Hash
	}
	return issues
}

func (l *Log) store(entry *Entry) {
	if l.db == nil {
		return
	}
	if err := l.db.Create(entry).Error; err != nil {
		l.logger.Error("failed to persist audit entry",
			zap.String("entry_id", entry.ID.String()),
			zap.String("action", entry.Action),
			zap.Error(err))
	}
}

// drain persists queued entries in batches until Close.
func (l *Log) drain(flushInterval time.Duration) {
	defer l.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	var batch []*Entry
	flush := func() {
		for _, e := range batch {
			l.store(e)
		}
		batch = batch[:0]
	}

	for {
		select {
		case e := <-l.queue:
			batch = append(batch, e)
			if len(batch) >= 64 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-l.done:
			for {
				select {
				case e := <-l.queue:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close flushes pending writes and stops the persistence goroutine.
func (l *Log) Close() {
	if l.queue != nil {
		close(l.done)
		l.wg.Wait()
	}
}
