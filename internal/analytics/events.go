// Package analytics records order intake events as JSONL objects in an
// object store, for offline analysis. Event logging is best-effort and never
// fails an order submission.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

// Event names emitted by the intake pipeline.
const (
	EventOrderPosted       = "OrderPosted"
	EventOrderCancelled    = "OrderCancelled"
	EventInsufficientFunds = "InsufficientFunds"
)

// Event is a single analytics record. One event serialises to one JSONL line.
type Event struct {
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`

	OrderHash string `json:"orderHash"`
	OrderType string `json:"orderType,omitempty"`
	ChainID   uint64 `json:"chainId,omitempty"`
	Offerer   string `json:"offerer,omitempty"`
	Filler    string `json:"filler,omitempty"`
	QuoteID   string `json:"quoteId,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Deadline  int64  `json:"deadline,omitempty"`

	BlockNumber uint64 `json:"blockNumber,omitempty"`
}

// Logger buffers events in memory and flushes them to the object store as
// batched JSONL objects, either when the buffer fills or on the flush
// interval. Safe for concurrent use.
type Logger struct {
	writer  domain.BlobWriter
	log     *slog.Logger
	maxSize int

	mu  sync.Mutex
	buf []Event
}

// Config tunes the event logger.
type Config struct {
	// BatchSize is the number of events that triggers an immediate flush.
	BatchSize int
	// FlushInterval is how often buffered events are flushed regardless of
	// batch size.
	FlushInterval time.Duration
}

// Defaults fills in zero values.
func (c *Config) Defaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 30 * time.Second
	}
}

// NewLogger creates an event Logger writing to the given blob writer.
func NewLogger(writer domain.BlobWriter, cfg Config, log *slog.Logger) *Logger {
	cfg.Defaults()
	return &Logger{
		writer:  writer,
		log:     log,
		maxSize: cfg.BatchSize,
	}
}

// OrderPosted records a successful intake admission.
func (l *Logger) OrderPosted(ctx context.Context, o *domain.Order) {
	l.record(ctx, Event{
		EventType: EventOrderPosted,
		OrderHash: o.Hash,
		OrderType: string(o.Type),
		ChainID:   o.ChainID,
		Offerer:   o.Offerer,
		Filler:    o.ExclusiveFiller(),
		QuoteID:   o.QuoteID,
		RequestID: o.RequestID,
		Deadline:  o.Deadline,
	})
}

// OrderCancelled records a status transition to cancelled.
func (l *Logger) OrderCancelled(ctx context.Context, o *domain.Order) {
	l.record(ctx, Event{
		EventType: EventOrderCancelled,
		OrderHash: o.Hash,
		OrderType: string(o.Type),
		ChainID:   o.ChainID,
		Offerer:   o.Offerer,
	})
}

// InsufficientFunds records an order observed without cover for its input.
func (l *Logger) InsufficientFunds(ctx context.Context, o *domain.Order) {
	l.record(ctx, Event{
		EventType: EventInsufficientFunds,
		OrderHash: o.Hash,
		OrderType: string(o.Type),
		ChainID:   o.ChainID,
		Offerer:   o.Offerer,
	})
}

func (l *Logger) record(ctx context.Context, ev Event) {
	ev.EventID = uuid.NewString()
	ev.Timestamp = time.Now().UTC()

	l.mu.Lock()
	l.buf = append(l.buf, ev)
	full := len(l.buf) >= l.maxSize
	l.mu.Unlock()

	if full {
		if err := l.Flush(ctx); err != nil {
			l.log.Warn("analytics flush failed", slog.Any("error", err))
		}
	}
}

// Flush uploads all buffered events as one JSONL object. A failed upload
// returns the buffered events to the front of the buffer for the next
// attempt.
func (l *Logger) Flush(ctx context.Context) error {
	l.mu.Lock()
	batch := l.buf
	l.buf = nil
	l.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, ev := range batch {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("analytics: encode event %s: %w", ev.EventID, err)
		}
	}

	path := batchPath(time.Now().UTC())
	if err := l.writer.Put(ctx, path, &buf, "application/x-ndjson"); err != nil {
		l.mu.Lock()
		l.buf = append(batch, l.buf...)
		l.mu.Unlock()
		return fmt.Errorf("analytics: upload batch %s: %w", path, err)
	}
	return nil
}

// Run flushes on the configured interval until the context is cancelled,
// then performs a final flush.
func (l *Logger) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.Flush(flushCtx); err != nil {
				l.log.Warn("analytics final flush failed", slog.Any("error", err))
			}
			return
		case <-ticker.C:
			if err := l.Flush(ctx); err != nil {
				l.log.Warn("analytics flush failed", slog.Any("error", err))
			}
		}
	}
}

// batchPath builds the S3 key for a batch, partitioned by day.
//
//	events/2025-01-15/9f2d....jsonl
func batchPath(now time.Time) string {
	return fmt.Sprintf("events/%s/%s.jsonl", now.Format("2006-01-02"), uuid.NewString())
}
