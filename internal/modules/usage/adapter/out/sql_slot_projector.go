package out

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"batteryusage/internal/modules/usage/domain"
	apperrors "batteryusage/internal/platform/errors"

	_ "modernc.org/sqlite"
)

// SQLSlotProjector keeps every run and the flattened slots it produced. Reads
// always come from the most recent run.
type SQLSlotProjector struct {
	db *sql.DB
}

func NewSQLSlotProjector(dbPath string) (*SQLSlotProjector, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	p := NewSQLSlotProjectorFromDB(db)
	if err := p.EnsureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func NewSQLSlotProjectorFromDB(db *sql.DB) *SQLSlotProjector {
	return &SQLSlotProjector{db: db}
}

func (p *SQLSlotProjector) Close() error {
	return p.db.Close()
}

func (p *SQLSlotProjector) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS usage_runs (
  id TEXT PRIMARY KEY,
  created_at INTEGER NOT NULL,
  mode TEXT NOT NULL,
  location TEXT NOT NULL,
  start_ts INTEGER NOT NULL,
  end_ts INTEGER NOT NULL,
  periods INTEGER NOT NULL,
  skipped INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS usage_slots (
  run_id TEXT NOT NULL,
  day INTEGER NOT NULL,
  hour INTEGER NOT NULL,
  label TEXT NOT NULL,
  start_ts INTEGER NOT NULL,
  end_ts INTEGER NOT NULL,
  start_level INTEGER,
  end_level INTEGER,
  screen_on_ms INTEGER NOT NULL,
  total_power REAL NOT NULL,
  entries_json TEXT NOT NULL,
  PRIMARY KEY (run_id, day, hour)
);
`
	if _, err := p.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create usage tables: %w", err)
	}
	return nil
}

func (p *SQLSlotProjector) SaveRun(ctx context.Context, run domain.Run) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	location := ""
	if run.Location != nil {
		location = run.Location.String()
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO usage_runs (id, created_at, mode, location, start_ts, end_ts, periods, skipped)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`, run.ID, run.CreatedAt.UnixMilli(), run.Mode.String(), location,
		run.Result.Timeline.Start(), run.Result.Timeline.End(), run.Result.Usage.Len(), len(run.Result.Skipped),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for _, slot := range run.Slots() {
		entries, err := json.Marshal(slot.Entries)
		if err != nil {
			return fmt.Errorf("marshal slot entries: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO usage_slots (run_id, day, hour, label, start_ts, end_ts, start_level, end_level, screen_on_ms, total_power, entries_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, slot.RunID, slot.Day, slot.Hour, slot.Label, slot.StartTimestamp, slot.EndTimestamp,
			nullableLevel(slot.StartLevel), nullableLevel(slot.EndLevel), slot.ScreenOnMs, slot.TotalPower, string(entries),
		); err != nil {
			return fmt.Errorf("insert slot %d/%d: %w", slot.Day, slot.Hour, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

func (p *SQLSlotProjector) LatestSlot(ctx context.Context, key domain.PeriodKey) (domain.StoredSlot, error) {
	var (
		slot       domain.StoredSlot
		startLevel sql.NullInt64
		endLevel   sql.NullInt64
		entries    string
	)
	err := p.db.QueryRowContext(ctx, `
SELECT s.run_id, s.day, s.hour, s.label, s.start_ts, s.end_ts, s.start_level, s.end_level, s.screen_on_ms, s.total_power, s.entries_json
FROM usage_slots s
JOIN usage_runs r ON r.id = s.run_id
WHERE s.day = ? AND s.hour = ?
  AND r.id = (SELECT id FROM usage_runs ORDER BY created_at DESC, id DESC LIMIT 1);
`, key.Day, key.Hour).Scan(
		&slot.RunID, &slot.Day, &slot.Hour, &slot.Label, &slot.StartTimestamp, &slot.EndTimestamp,
		&startLevel, &endLevel, &slot.ScreenOnMs, &slot.TotalPower, &entries,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StoredSlot{}, fmt.Errorf("%w: period %d/%d in latest run", apperrors.ErrNotFound, key.Day, key.Hour)
		}
		return domain.StoredSlot{}, fmt.Errorf("query slot: %w", err)
	}
	slot.StartLevel = levelPtr(startLevel)
	slot.EndLevel = levelPtr(endLevel)
	if err := json.Unmarshal([]byte(entries), &slot.Entries); err != nil {
		return domain.StoredSlot{}, fmt.Errorf("decode slot entries: %w", err)
	}
	return slot, nil
}

func nullableLevel(level *int) any {
	if level == nil {
		return nil
	}
	return *level
}

func levelPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	level := int(v.Int64)
	return &level
}
