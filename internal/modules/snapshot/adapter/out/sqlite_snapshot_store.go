package out

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"batteryusage/internal/modules/snapshot/domain"
	apperrors "batteryusage/internal/platform/errors"

	_ "modernc.org/sqlite"
)

type SQLiteSnapshotStore struct {
	db *sql.DB
}

func NewSQLiteSnapshotStore(dbPath string) (*SQLiteSnapshotStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return NewSnapshotStoreFromDB(db)
}

func NewSnapshotStoreFromDB(db *sql.DB) (*SQLiteSnapshotStore, error) {
	s := &SQLiteSnapshotStore{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSnapshotStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteSnapshotStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS snapshots (
  timestamp INTEGER NOT NULL,
  consumer_key TEXT NOT NULL,
  consumer_kind TEXT NOT NULL,
  consumer_id INTEGER NOT NULL,
  user_id INTEGER NOT NULL,
  package_name TEXT NOT NULL,
  label TEXT NOT NULL,
  zone_id TEXT NOT NULL,
  boot_timestamp INTEGER NOT NULL,
  battery_level INTEGER NOT NULL,
  battery_status INTEGER NOT NULL,
  battery_health INTEGER NOT NULL,
  power_mah REAL NOT NULL,
  foreground_ms INTEGER NOT NULL,
  foreground_service_ms INTEGER NOT NULL,
  background_ms INTEGER NOT NULL,
  is_hidden INTEGER NOT NULL,
  PRIMARY KEY (timestamp, consumer_key)
);
CREATE INDEX IF NOT EXISTS idx_snapshots_status ON snapshots(battery_status, timestamp);
CREATE TABLE IF NOT EXISTS usage_periods (
  user_id INTEGER NOT NULL,
  package_name TEXT NOT NULL,
  start_ms INTEGER NOT NULL,
  end_ms INTEGER NOT NULL,
  PRIMARY KEY (user_id, package_name, start_ms)
);
CREATE INDEX IF NOT EXISTS idx_usage_periods_end ON usage_periods(end_ms);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create snapshot tables: %w", err)
	}
	return nil
}

func (s *SQLiteSnapshotStore) AppendSnapshots(ctx context.Context, snapshots []domain.Snapshot) (int, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}
	const stmt = `
INSERT INTO snapshots (
  timestamp, consumer_key, consumer_kind, consumer_id, user_id, package_name, label,
  zone_id, boot_timestamp, battery_level, battery_status, battery_health,
  power_mah, foreground_ms, foreground_service_ms, background_ms, is_hidden
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(timestamp, consumer_key) DO UPDATE SET
  consumer_kind = excluded.consumer_kind,
  consumer_id = excluded.consumer_id,
  user_id = excluded.user_id,
  package_name = excluded.package_name,
  label = excluded.label,
  zone_id = excluded.zone_id,
  boot_timestamp = excluded.boot_timestamp,
  battery_level = excluded.battery_level,
  battery_status = excluded.battery_status,
  battery_health = excluded.battery_health,
  power_mah = excluded.power_mah,
  foreground_ms = excluded.foreground_ms,
  foreground_service_ms = excluded.foreground_service_ms,
  background_ms = excluded.background_ms,
  is_hidden = excluded.is_hidden;
`
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin snapshot insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, snap := range snapshots {
		kind, id, userID, pkg := encodeConsumer(snap.Consumer)
		if _, err := tx.ExecContext(ctx, stmt,
			snap.Timestamp, snap.Key(), kind, id, userID, pkg, snap.Label,
			snap.ZoneID, snap.BootTimestamp, snap.BatteryLevel, snap.BatteryStatus, snap.BatteryHealth,
			snap.PowerMah, snap.ForegroundMs, snap.ForegroundServiceMs, snap.BackgroundMs, boolToInt(snap.IsHidden),
		); err != nil {
			return 0, fmt.Errorf("upsert snapshot %d/%s: %w", snap.Timestamp, snap.Key(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot insert: %w", err)
	}
	return len(snapshots), nil
}

func (s *SQLiteSnapshotStore) SnapshotsSince(ctx context.Context, since int64) ([]domain.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT timestamp, consumer_kind, consumer_id, user_id, package_name, label,
  zone_id, boot_timestamp, battery_level, battery_status, battery_health,
  power_mah, foreground_ms, foreground_service_ms, background_ms, is_hidden
FROM snapshots
WHERE timestamp >= ?
ORDER BY timestamp ASC, consumer_key ASC;
`, since)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Snapshot, 0)
	for rows.Next() {
		var (
			snap   domain.Snapshot
			kind   string
			id     int64
			userID int64
			pkg    string
			hidden int
		)
		if err := rows.Scan(
			&snap.Timestamp, &kind, &id, &userID, &pkg, &snap.Label,
			&snap.ZoneID, &snap.BootTimestamp, &snap.BatteryLevel, &snap.BatteryStatus, &snap.BatteryHealth,
			&snap.PowerMah, &snap.ForegroundMs, &snap.ForegroundServiceMs, &snap.BackgroundMs, &hidden,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		consumer, err := decodeConsumer(kind, id, userID, pkg)
		if err != nil {
			return nil, err
		}
		snap.Consumer = consumer
		snap.IsHidden = hidden != 0
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// LastFullChargeTimestamp returns when the device last reached full: the
// first sample of the most recent continuous run of full samples.
func (s *SQLiteSnapshotStore) LastFullChargeTimestamp(ctx context.Context) (int64, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
WITH last_full AS (
  SELECT MAX(timestamp) AS ts FROM snapshots
  WHERE battery_status = ?1 OR battery_level >= 100
), last_not_full AS (
  SELECT MAX(timestamp) AS ts FROM snapshots
  WHERE battery_status <> ?1 AND battery_level < 100
    AND timestamp < (SELECT ts FROM last_full)
)
SELECT MIN(timestamp) FROM snapshots
WHERE (battery_status = ?1 OR battery_level >= 100)
  AND timestamp > COALESCE((SELECT ts FROM last_not_full), -1)
  AND timestamp <= (SELECT ts FROM last_full);
`, domain.StatusFull).Scan(&ts)
	if err != nil {
		return 0, fmt.Errorf("query last full charge: %w", err)
	}
	if !ts.Valid {
		return 0, fmt.Errorf("%w: no full charge recorded", apperrors.ErrNotFound)
	}
	return ts.Int64, nil
}

func (s *SQLiteSnapshotStore) AppendUsagePeriods(ctx context.Context, periods []domain.UsagePeriod) (int, error) {
	if len(periods) == 0 {
		return 0, nil
	}
	const stmt = `
INSERT INTO usage_periods (user_id, package_name, start_ms, end_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(user_id, package_name, start_ms) DO UPDATE SET end_ms = excluded.end_ms;
`
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin usage period insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, p := range periods {
		if _, err := tx.ExecContext(ctx, stmt, p.UserID, p.PackageName, p.StartMs, p.EndMs); err != nil {
			return 0, fmt.Errorf("upsert usage period %s@%d: %w", p.PackageName, p.StartMs, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit usage period insert: %w", err)
	}
	return len(periods), nil
}

func (s *SQLiteSnapshotStore) UsagePeriodsSince(ctx context.Context, since int64) ([]domain.UsagePeriod, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT user_id, package_name, start_ms, end_ms
FROM usage_periods
WHERE end_ms >= ?
ORDER BY start_ms ASC, package_name ASC;
`, since)
	if err != nil {
		return nil, fmt.Errorf("query usage periods: %w", err)
	}
	defer rows.Close()

	out := make([]domain.UsagePeriod, 0)
	for rows.Next() {
		p := domain.UsagePeriod{}
		if err := rows.Scan(&p.UserID, &p.PackageName, &p.StartMs, &p.EndMs); err != nil {
			return nil, fmt.Errorf("scan usage period: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage periods: %w", err)
	}
	return out, nil
}

func (s *SQLiteSnapshotStore) DeleteBefore(ctx context.Context, cutoff int64) (int64, int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE timestamp < ?;`, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("delete snapshots: %w", err)
	}
	snaps, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("count deleted snapshots: %w", err)
	}
	res, err = s.db.ExecContext(ctx, `DELETE FROM usage_periods WHERE end_ms < ?;`, cutoff)
	if err != nil {
		return snaps, 0, fmt.Errorf("delete usage periods: %w", err)
	}
	periods, err := res.RowsAffected()
	if err != nil {
		return snaps, 0, fmt.Errorf("count deleted usage periods: %w", err)
	}
	return snaps, periods, nil
}

func (s *SQLiteSnapshotStore) Stats(ctx context.Context) (domain.StoreStats, error) {
	var (
		stats       domain.StoreStats
		first, last sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*), COUNT(DISTINCT timestamp), MIN(timestamp), MAX(timestamp)
FROM snapshots;
`).Scan(&stats.Snapshots, &stats.Timestamps, &first, &last)
	if err != nil {
		return domain.StoreStats{}, fmt.Errorf("query snapshot stats: %w", err)
	}
	stats.First = first.Int64
	stats.Last = last.Int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM usage_periods;`).Scan(&stats.UsagePeriods); err != nil {
		return domain.StoreStats{}, fmt.Errorf("query usage period stats: %w", err)
	}
	full, err := s.LastFullChargeTimestamp(ctx)
	if err == nil {
		stats.LastFullCharge = full
	}
	return stats, nil
}

func encodeConsumer(ref domain.ConsumerRef) (kind string, id int64, userID int64, pkg string) {
	switch c := ref.(type) {
	case nil:
		return "", 0, 0, ""
	case domain.App:
		return string(domain.KindApp), c.UID, c.UserID, c.PackageName
	case domain.SystemComponent:
		return string(domain.KindSystem), int64(c.DrainType), 0, ""
	case domain.User:
		return string(domain.KindUser), c.UserID, c.UserID, ""
	default:
		panic(fmt.Sprintf("unhandled consumer type %T", ref))
	}
}

func decodeConsumer(kind string, id, userID int64, pkg string) (domain.ConsumerRef, error) {
	if kind == "" {
		return nil, nil
	}
	parsed, err := domain.ParseKind(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: stored consumer: %v", apperrors.ErrMalformedSnapshot, err)
	}
	switch parsed {
	case domain.KindApp:
		return domain.App{UID: id, UserID: userID, PackageName: pkg}, nil
	case domain.KindSystem:
		return domain.SystemComponent{DrainType: int(id)}, nil
	case domain.KindUser:
		return domain.User{UserID: id}, nil
	default:
		panic(fmt.Sprintf("unhandled consumer kind %q", parsed))
	}
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
