package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// AttackEventsDDL creates the table the writer inserts into.
const AttackEventsDDL = `
CREATE TABLE IF NOT EXISTS attack_events (
	request_id      String,
	app_id          String,
	timestamp       DateTime64(3),
	hook            LowCardinality(String),
	action          Enum8('ignore' = 0, 'log' = 1, 'block' = 2),
	response_action Enum8('ignore' = 0, 'log' = 1, 'block' = 2),
	is_shadow       UInt8,
	message         String,
	confidence      UInt8,
	url             String,
	method          LowCardinality(String),
	params_preview  String,
	params_hash     FixedString(32),
	language        LowCardinality(String),
	server_os       LowCardinality(String),
	latency_ms      Float32,
	source          LowCardinality(String)
) ENGINE = MergeTree
PARTITION BY toYYYYMM(timestamp)
ORDER BY (app_id, timestamp)
TTL toDateTime(timestamp) + INTERVAL 90 DAY`

const (
	bufferSize    = 10_000
	flushInterval = 100 * time.Millisecond
	flushBatch    = 1000
	drainTimeout  = 2 * time.Second
)

// ClickHouseWriter writes attack events to ClickHouse asynchronously.
// Write() is non-blocking: events are buffered and batch-inserted in a
// background goroutine.
type ClickHouseWriter struct {
	conn    driver.Conn
	buffer  chan *AttackEvent
	done    chan struct{}
	flushed chan struct{} // closed by flushLoop when it returns
	logger  *zap.Logger
}

// NewClickHouseWriter creates a ClickHouseWriter and starts the background
// flush loop. secure forces TLS when the DSN does not ask for it.
func NewClickHouseWriter(dsn string, secure bool, logger *zap.Logger) (*ClickHouseWriter, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewClickHouseWriter: %w", err)
	}

	if secure && opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewClickHouseWriter: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewClickHouseWriter: %w", err)
	}

	return newClickHouseWriter(conn, logger), nil
}

func newClickHouseWriter(conn driver.Conn, logger *zap.Logger) *ClickHouseWriter {
	w := &ClickHouseWriter{
		conn:    conn,
		buffer:  make(chan *AttackEvent, bufferSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		logger:  logger,
	}

	go w.flushLoop()
	return w
}

// EnsureTable creates attack_events if it does not exist.
func (w *ClickHouseWriter) EnsureTable(ctx context.Context) error {
	if err := w.conn.Exec(ctx, AttackEventsDDL); err != nil {
		return fmt.Errorf("EnsureTable: %w", err)
	}
	return nil
}

// Write queues an attack event for async insertion.
// Non-blocking: drops the event if the buffer is full.
func (w *ClickHouseWriter) Write(event *AttackEvent) {
	select {
	case w.buffer <- event:
	default:
		w.logger.Warn("clickhouse buffer full, dropping event",
			zap.String("request_id", event.RequestID),
		)
	}
}

// Close signals the flush loop to drain remaining events, waits for it to
// finish (up to drainTimeout), and then returns. Safe to call once.
func (w *ClickHouseWriter) Close() {
	close(w.done)
	<-w.flushed
}

func (w *ClickHouseWriter) flushLoop() {
	defer close(w.flushed)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*AttackEvent, 0, flushBatch)

	for {
		select {
		case event := <-w.buffer:
			batch = append(batch, event)
			if len(batch) >= flushBatch {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-w.done:
			// Drain remaining events from buffer
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
		drainLoop:
			for {
				select {
				case event := <-w.buffer:
					batch = append(batch, event)
				case <-drainCtx.Done():
					break drainLoop
				default:
					break drainLoop
				}
			}
			if len(batch) > 0 {
				w.flush(batch)
			}
			return
		}
	}
}

func (w *ClickHouseWriter) flush(events []*AttackEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batch, err := w.conn.PrepareBatch(ctx, `
		INSERT INTO attack_events (
			request_id, app_id, timestamp, hook,
			action, response_action, is_shadow, message, confidence,
			url, method, params_preview, params_hash,
			language, server_os, latency_ms, source
		)
	`)
	if err != nil {
		w.logger.Error("clickhouse prepare batch failed", zap.Error(err))
		return
	}

	for _, e := range events {
		var isShadowUint8 uint8
		if e.IsShadow {
			isShadowUint8 = 1
		}

		if err := batch.Append(
			e.RequestID,
			e.AppID,
			e.Timestamp,
			e.Hook,
			e.Action,
			e.ResponseAction,
			isShadowUint8,
			e.Message,
			e.Confidence,
			e.URL,
			e.Method,
			e.ParamsPreview,
			e.ParamsHash,
			e.Language,
			e.ServerOS,
			e.LatencyMs,
			e.Source,
		); err != nil {
			w.logger.Error("clickhouse append event failed",
				zap.String("request_id", e.RequestID),
				zap.Error(err),
			)
		}
	}

	if err := batch.Send(); err != nil {
		w.logger.Error("clickhouse batch send failed",
			zap.Int("batch_size", len(events)),
			zap.Error(err),
		)
	}
}

// LogWriter is a fallback EventWriter for local development.
// It logs events as structured JSON to stdout via zap.
type LogWriter struct {
	logger *zap.Logger
}

// NewLogWriter creates a LogWriter that outputs events to the given logger.
func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Write(event *AttackEvent) {
	w.logger.Info("attack_event",
		zap.String("request_id", event.RequestID),
		zap.String("app_id", event.AppID),
		zap.String("hook", event.Hook),
		zap.String("action", event.Action),
		zap.String("response_action", event.ResponseAction),
		zap.Bool("is_shadow", event.IsShadow),
		zap.String("message", event.Message),
		zap.Uint8("confidence", event.Confidence),
		zap.String("url", event.URL),
		zap.Float32("latency_ms", event.LatencyMs),
		zap.String("params_preview", event.ParamsPreview),
	)
}

func (w *LogWriter) Close() {}
