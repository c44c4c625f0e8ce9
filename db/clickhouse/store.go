// Package clickhouse provides the staging/reporting warehouse for
// reconciliation runs. Optimized for columnar analytics over normalized
// records and reconciled rows, keyed by run id.
package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"booking-recon/pkg/api"
	recerrors "booking-recon/pkg/errors"
	"booking-recon/pkg/platform"
)

// Config holds ClickHouse connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig reads connection settings from the environment, falling
// back to local development defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:     platform.GetEnv("CLICKHOUSE_HOST", "localhost"),
		Port:     platform.GetEnvInt("CLICKHOUSE_PORT", 9000),
		Database: platform.GetEnv("CLICKHOUSE_DATABASE", "bookingrecon"),
		Username: platform.GetEnv("CLICKHOUSE_USER", "default"),
		Password: platform.GetEnv("CLICKHOUSE_PASSWORD", ""),
		Debug:    platform.GetEnvBool("CLICKHOUSE_DEBUG", false),
	}
}

// Store is the warehouse client.
type Store struct {
	conn clickhouse.Conn
	cfg  *Config
}

// NewStore connects to ClickHouse over the native protocol. A nil cfg
// uses DefaultConfig.
func NewStore(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	return &Store{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// EnsureSchema creates the staging and reporting tables if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS staging_analytics_records (
			run_id            UUID,
			key               String,
			occurred_at       DateTime64(6, 'UTC'),
			amount            Decimal(18, 2),
			attribution_token String,
			source_tag        String,
			campaign          String,
			actor_id          String,
			is_synthetic_test UInt8,
			created_at        DateTime DEFAULT now()
		) ENGINE = MergeTree()
		ORDER BY (run_id, key)`,

		`CREATE TABLE IF NOT EXISTS staging_crm_records (
			run_id            UUID,
			key               String,
			occurred_at       DateTime64(6, 'UTC'),
			amount            Decimal(18, 2),
			attribution_token String,
			source_tag        String,
			status            LowCardinality(String),
			opportunity_id    String,
			property_name     String,
			nights            UInt8,
			created_at        DateTime DEFAULT now()
		) ENGINE = MergeTree()
		ORDER BY (run_id, key)`,

		`CREATE TABLE IF NOT EXISTS reporting_reconciled_rows (
			run_id             UUID,
			date               Date,
			key                String,
			match_status       LowCardinality(String),
			attribution_status LowCardinality(String),
			time_skew_minutes  Nullable(Int64),
			likely_reason      LowCardinality(String),
			channel            String,
			analytics_amount   Nullable(Decimal(18, 2)),
			crm_amount         Nullable(Decimal(18, 2)),
			created_at         DateTime DEFAULT now()
		) ENGINE = MergeTree()
		ORDER BY (run_id, key)`,

		`CREATE TABLE IF NOT EXISTS reporting_run_summaries (
			run_id         UUID,
			total_rows     UInt64,
			matched_rows   UInt64,
			match_rate_pct Float64,
			summary_json   String,
			created_at     DateTime DEFAULT now()
		) ENGINE = MergeTree()
		ORDER BY run_id`,
	}

	for _, q := range ddl {
		if err := s.conn.Exec(ctx, q); err != nil {
			return recerrors.NewStorageFailure("ensure schema", err)
		}
	}
	return nil
}

// InsertAnalyticsRecords batch-inserts normalized analytics records.
func (s *Store) InsertAnalyticsRecords(ctx context.Context, runID uuid.UUID, recs []api.SourceRecord) error {
	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO staging_analytics_records
		(run_id, key, occurred_at, amount, attribution_token, source_tag, campaign, actor_id, is_synthetic_test, created_at)`)
	if err != nil {
		return recerrors.NewStorageFailure("prepare analytics batch", err)
	}
	now := time.Now()
	for _, r := range recs {
		if err := batch.Append(
			runID, r.Key, r.OccurredAt, r.Amount, r.AttributionToken,
			r.SourceTag, r.Campaign, r.ActorID, boolToUInt8(r.IsSyntheticTest), now,
		); err != nil {
			return recerrors.NewStorageFailure("append analytics record", err)
		}
	}
	if err := batch.Send(); err != nil {
		return recerrors.NewStorageFailure("send analytics batch", err)
	}
	return nil
}

// InsertCrmRecords batch-inserts normalized CRM records.
func (s *Store) InsertCrmRecords(ctx context.Context, runID uuid.UUID, recs []api.SourceRecord) error {
	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO staging_crm_records
		(run_id, key, occurred_at, amount, attribution_token, source_tag, status, opportunity_id, property_name, nights, created_at)`)
	if err != nil {
		return recerrors.NewStorageFailure("prepare crm batch", err)
	}
	now := time.Now()
	for _, r := range recs {
		if err := batch.Append(
			runID, r.Key, r.OccurredAt, r.Amount, r.AttributionToken,
			r.SourceTag, r.Status, r.OpportunityID, r.PropertyName, uint8(r.Nights), now,
		); err != nil {
			return recerrors.NewStorageFailure("append crm record", err)
		}
	}
	if err := batch.Send(); err != nil {
		return recerrors.NewStorageFailure("send crm batch", err)
	}
	return nil
}

// InsertReconciledRows batch-inserts classified rows into reporting.
func (s *Store) InsertReconciledRows(ctx context.Context, runID uuid.UUID, rows []api.ReconciledRow) error {
	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO reporting_reconciled_rows
		(run_id, date, key, match_status, attribution_status, time_skew_minutes, likely_reason, channel, analytics_amount, crm_amount, created_at)`)
	if err != nil {
		return recerrors.NewStorageFailure("prepare rows batch", err)
	}
	now := time.Now()
	for _, row := range rows {
		if err := batch.Append(
			runID,
			row.Date,
			row.Key,
			string(row.MatchStatus),
			string(row.AttributionStatus),
			row.TimeSkewMinutes,
			string(row.LikelyReason),
			row.Channel,
			sideAmount(row.Analytics),
			sideAmount(row.Crm),
			now,
		); err != nil {
			return recerrors.NewStorageFailure("append reconciled row", err)
		}
	}
	if err := batch.Send(); err != nil {
		return recerrors.NewStorageFailure("send rows batch", err)
	}
	return nil
}

// SaveSummary persists the aggregate output for a run.
func (s *Store) SaveSummary(ctx context.Context, runID uuid.UUID, summary *api.ReconciliationSummary) error {
	blob, err := json.Marshal(summary)
	if err != nil {
		return recerrors.NewStorageFailure("marshal summary", err)
	}

	var matched uint64
	var matchRate float64
	for _, sc := range summary.StatusDistribution {
		if sc.Status == api.MatchStatusMatched {
			matched = uint64(sc.Count)
			matchRate = sc.Percentage
		}
	}

	query := `INSERT INTO reporting_run_summaries
		(run_id, total_rows, matched_rows, match_rate_pct, summary_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	if err := s.conn.Exec(ctx, query,
		runID, uint64(summary.TotalRows), matched, matchRate, string(blob), time.Now(),
	); err != nil {
		return recerrors.NewStorageFailure("insert run summary", err)
	}
	return nil
}

// MatchStatusCounts reads back per-status row counts for a run, used to
// verify persisted output against the in-memory aggregate.
func (s *Store) MatchStatusCounts(ctx context.Context, runID uuid.UUID) (map[string]uint64, error) {
	query := `SELECT match_status, count() AS n
		FROM reporting_reconciled_rows
		WHERE run_id = ?
		GROUP BY match_status`
	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, recerrors.NewStorageFailure("query status counts", err)
	}
	defer rows.Close()

	counts := make(map[string]uint64)
	for rows.Next() {
		var status string
		var n uint64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, recerrors.NewStorageFailure("scan status count", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func sideAmount(rec *api.SourceRecord) *decimal.Decimal {
	if rec == nil {
		return nil
	}
	amt := rec.Amount
	return &amt
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
