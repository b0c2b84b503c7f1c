package chread

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// Reader provides read access to the ClickHouse attack_events table.
type Reader struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewReader opens a ClickHouse connection for read queries.
func NewReader(dsn string, secure bool, logger *zap.Logger) (*Reader, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if secure && opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}

	return &Reader{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (r *Reader) Close() error {
	return r.conn.Close()
}

// EventRow represents a single row from the attack_events table.
type EventRow struct {
	RequestID      string    `json:"request_id"`
	AppID          string    `json:"app_id"`
	Timestamp      time.Time `json:"timestamp"`
	Hook           string    `json:"hook"`
	Action         string    `json:"action"`
	ResponseAction string    `json:"response_action"`
	IsShadow       bool      `json:"is_shadow"`
	Message        string    `json:"message"`
	Confidence     uint8     `json:"confidence"`
	URL            string    `json:"url"`
	Method         string    `json:"method"`
	ParamsPreview  string    `json:"params_preview"`
	ParamsHash     string    `json:"params_hash"` // hex
	Language       string    `json:"language"`
	ServerOS       string    `json:"server_os"`
	LatencyMs      float32   `json:"latency_ms"`
	Source         string    `json:"source"`
}

const eventColumns = "request_id, app_id, timestamp, hook, action, response_action, " +
	"is_shadow, message, confidence, url, method, params_preview, params_hash, " +
	"language, server_os, latency_ms, source"

func scanEvent(row interface{ Scan(dest ...any) error }) (EventRow, error) {
	var e EventRow
	var isShadow uint8
	var hash string
	err := row.Scan(
		&e.RequestID, &e.AppID, &e.Timestamp, &e.Hook, &e.Action, &e.ResponseAction,
		&isShadow, &e.Message, &e.Confidence, &e.URL, &e.Method, &e.ParamsPreview, &hash,
		&e.Language, &e.ServerOS, &e.LatencyMs, &e.Source,
	)
	e.IsShadow = isShadow == 1
	e.ParamsHash = hex.EncodeToString([]byte(hash))
	return e, err
}

// ListEventsParams holds filters and pagination for event listing.
type ListEventsParams struct {
	AppID     string
	Hook      *string
	Action    *string
	IsShadow  *bool
	StartTime *time.Time
	EndTime   *time.Time
	Page      int
	PageSize  int
}

// where builds the WHERE clause and its named arguments.
func (p ListEventsParams) where() (string, []any) {
	conditions := []string{"app_id = @app_id"}
	args := []any{clickhouse.Named("app_id", p.AppID)}

	if p.Hook != nil {
		conditions = append(conditions, "hook = @hook")
		args = append(args, clickhouse.Named("hook", *p.Hook))
	}
	if p.Action != nil {
		conditions = append(conditions, "action = @action")
		args = append(args, clickhouse.Named("action", *p.Action))
	}
	if p.IsShadow != nil {
		var v uint8
		if *p.IsShadow {
			v = 1
		}
		conditions = append(conditions, "is_shadow = @is_shadow")
		args = append(args, clickhouse.Named("is_shadow", v))
	}
	if p.StartTime != nil {
		conditions = append(conditions, "timestamp >= @start_time")
		args = append(args, clickhouse.Named("start_time", *p.StartTime))
	}
	if p.EndTime != nil {
		conditions = append(conditions, "timestamp <= @end_time")
		args = append(args, clickhouse.Named("end_time", *p.EndTime))
	}
	return strings.Join(conditions, " AND "), args
}

// ListEvents returns paginated, filtered attack events and the total count.
func (r *Reader) ListEvents(ctx context.Context, params ListEventsParams) ([]EventRow, int, error) {
	where, args := params.where()
	offset := (params.Page - 1) * params.PageSize

	var total uint64
	countQuery := fmt.Sprintf("SELECT count() FROM attack_events WHERE %s", where)
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListEvents count: %w", err)
	}

	dataQuery := fmt.Sprintf(
		"SELECT %s FROM attack_events WHERE %s ORDER BY timestamp DESC LIMIT @limit OFFSET @offset",
		eventColumns, where,
	)
	args = append(args,
		clickhouse.Named("limit", uint32(params.PageSize)),
		clickhouse.Named("offset", uint32(offset)),
	)

	rows, err := r.conn.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListEvents query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []EventRow
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListEvents scan: %w", err)
		}
		events = append(events, e)
	}

	return events, int(total), rows.Err()
}

// GetEvent returns a single event by app ID and request ID, or nil if not found.
func (r *Reader) GetEvent(ctx context.Context, appID, requestID string) (*EventRow, error) {
	rows, err := r.conn.Query(ctx,
		"SELECT "+eventColumns+" FROM attack_events "+
			"WHERE app_id = @app_id AND request_id = @request_id LIMIT 1",
		clickhouse.Named("app_id", appID),
		clickhouse.Named("request_id", requestID),
	)
	if err != nil {
		return nil, fmt.Errorf("GetEvent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, rows.Err()
	}
	e, err := scanEvent(rows)
	if err != nil {
		return nil, fmt.Errorf("GetEvent: %w", err)
	}
	return &e, nil
}

// SummaryStats holds aggregate counts by real action.
type SummaryStats struct {
	Total  int `json:"total"`
	Blocks int `json:"blocks"`
	Logs   int `json:"logs"`
	Shadow int `json:"shadow"` // blocks downgraded by shadow mode
}

// TimeSeriesBucket holds an hourly count.
type TimeSeriesBucket struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// HookCount holds a hook and its count.
type HookCount struct {
	Hook  string `json:"hook"`
	Count int    `json:"count"`
}

// LatencyStats holds latency percentiles.
type LatencyStats struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// StatsResult holds all attack aggregations for one app.
type StatsResult struct {
	Summary            SummaryStats       `json:"summary"`
	BlocksOverTime     []TimeSeriesBucket `json:"blocks_over_time"`
	TopHooks           []HookCount        `json:"top_hooks"`
	LatencyPercentiles LatencyStats       `json:"latency_percentiles"`
}

// GetStats returns aggregated attack statistics for an app over the given
// number of days.
func (r *Reader) GetStats(ctx context.Context, appID string, days int) (*StatsResult, error) {
	rangeStart := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	baseArgs := []any{
		clickhouse.Named("app_id", appID),
		clickhouse.Named("range_start", rangeStart),
	}

	result := &StatsResult{}

	var total, blocks, logs, shadow uint64
	err := r.conn.QueryRow(ctx,
		"SELECT count(), "+
			"countIf(action = 'block'), "+
			"countIf(action = 'log'), "+
			"countIf(is_shadow = 1) "+
			"FROM attack_events "+
			"WHERE app_id = @app_id AND timestamp >= @range_start",
		baseArgs...,
	).Scan(&total, &blocks, &logs, &shadow)
	if err != nil {
		return nil, fmt.Errorf("GetStats summary: %w", err)
	}
	result.Summary = SummaryStats{
		Total:  int(total),
		Blocks: int(blocks),
		Logs:   int(logs),
		Shadow: int(shadow),
	}

	botRows, err := r.conn.Query(ctx,
		"SELECT toStartOfHour(timestamp) AS hour, count() AS count "+
			"FROM attack_events "+
			"WHERE app_id = @app_id AND action = 'block' AND timestamp >= @range_start "+
			"GROUP BY hour ORDER BY hour",
		baseArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetStats blocks_over_time: %w", err)
	}
	defer func() { _ = botRows.Close() }()
	for botRows.Next() {
		var hour time.Time
		var count uint64
		if err := botRows.Scan(&hour, &count); err != nil {
			return nil, fmt.Errorf("GetStats blocks_over_time scan: %w", err)
		}
		result.BlocksOverTime = append(result.BlocksOverTime, TimeSeriesBucket{
			Hour:  hour.Format(time.RFC3339),
			Count: int(count),
		})
	}

	hookRows, err := r.conn.Query(ctx,
		"SELECT hook, count() AS count "+
			"FROM attack_events "+
			"WHERE app_id = @app_id AND timestamp >= @range_start "+
			"GROUP BY hook ORDER BY count DESC LIMIT 13",
		baseArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetStats top_hooks: %w", err)
	}
	defer func() { _ = hookRows.Close() }()
	for hookRows.Next() {
		var hook string
		var count uint64
		if err := hookRows.Scan(&hook, &count); err != nil {
			return nil, fmt.Errorf("GetStats top_hooks scan: %w", err)
		}
		result.TopHooks = append(result.TopHooks, HookCount{Hook: hook, Count: int(count)})
	}

	var p50, p95, p99 float64
	err = r.conn.QueryRow(ctx,
		"SELECT quantile(0.5)(latency_ms), quantile(0.95)(latency_ms), quantile(0.99)(latency_ms) "+
			"FROM attack_events "+
			"WHERE app_id = @app_id AND timestamp >= @range_start",
		baseArgs...,
	).Scan(&p50, &p95, &p99)
	if err != nil {
		return nil, fmt.Errorf("GetStats latency: %w", err)
	}
	result.LatencyPercentiles = LatencyStats{
		P50: safeFloat(p50), P95: safeFloat(p95), P99: safeFloat(p99),
	}

	if result.BlocksOverTime == nil {
		result.BlocksOverTime = []TimeSeriesBucket{}
	}
	if result.TopHooks == nil {
		result.TopHooks = []HookCount{}
	}
	return result, nil
}

// safeFloat replaces NaN/Inf with 0.0.
// ClickHouse returns NaN for quantile() on empty result sets.
func safeFloat(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0.0
	}
	return f
}
