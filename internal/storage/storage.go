// Package storage provides SQLite-backed persistence for analysis checkpoints and alerts.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rewired-gh/tickwatch/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db        *sql.DB
	maxAlerts int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/tickwatch/data.db.
func New(maxAlerts int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "tickwatch", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if maxAlerts <= 0 {
		maxAlerts = 1000
	}
	s := &Storage{db: db, maxAlerts: maxAlerts}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) init() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := s.db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := s.createTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_state (
			asset           TEXT PRIMARY KEY,
			bias            TEXT NOT NULL,
			regime          TEXT NOT NULL,
			last_structure  TEXT NOT NULL,
			support         REAL NOT NULL DEFAULT 0,
			support_set     INTEGER NOT NULL DEFAULT 0,
			resistance      REAL NOT NULL DEFAULT 0,
			resistance_set  INTEGER NOT NULL DEFAULT 0,
			recent_highs    TEXT NOT NULL DEFAULT '[]',
			recent_lows     TEXT NOT NULL DEFAULT '[]',
			atr             REAL NOT NULL DEFAULT 0,
			last_alert_time INTEGER NOT NULL DEFAULT 0,
			saved_at        INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS window_ticks (
			asset     TEXT NOT NULL REFERENCES analysis_state(asset) ON DELETE CASCADE,
			seq       INTEGER NOT NULL,
			ts        INTEGER NOT NULL,
			price     REAL NOT NULL,
			bid       REAL NOT NULL,
			ask       REAL NOT NULL,
			volume    REAL NOT NULL,
			high      REAL NOT NULL,
			low       REAL NOT NULL,
			PRIMARY KEY (asset, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id                 TEXT PRIMARY KEY,
			asset              TEXT NOT NULL,
			rule               TEXT NOT NULL,
			event              TEXT NOT NULL,
			bias               TEXT NOT NULL,
			price              REAL NOT NULL,
			trigger_level      REAL NOT NULL,
			invalidation_level REAL NOT NULL,
			probability        INTEGER NOT NULL,
			risk_note          TEXT,
			detected_at        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_asset_detected_at ON alerts(asset, detected_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveCheckpoint replaces the stored state and window for cp.Asset in one
// transaction.
func (s *Storage) SaveCheckpoint(cp models.Checkpoint) error {
	highsJSON, err := json.Marshal(cp.State.RecentHighs)
	if err != nil {
		return fmt.Errorf("failed to marshal recent highs: %w", err)
	}
	lowsJSON, err := json.Marshal(cp.State.RecentLows)
	if err != nil {
		return fmt.Errorf("failed to marshal recent lows: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	st := cp.State
	_, err = tx.Exec(`
		INSERT OR REPLACE INTO analysis_state
			(asset, bias, regime, last_structure, support, support_set, resistance, resistance_set,
			 recent_highs, recent_lows, atr, last_alert_time, saved_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		cp.Asset, string(st.Bias), string(st.Regime), string(st.LastStructure),
		st.KeyLevels.Support.Price, boolToInt(st.KeyLevels.Support.Set),
		st.KeyLevels.Resistance.Price, boolToInt(st.KeyLevels.Resistance.Set),
		string(highsJSON), string(lowsJSON), st.ATR,
		unixNano(st.LastAlertTime), unixNano(cp.SavedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM window_ticks WHERE asset = ?`, cp.Asset); err != nil {
		return fmt.Errorf("failed to clear window: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO window_ticks (asset, seq, ts, price, bid, ask, volume, high, low)
		VALUES (?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare window insert: %w", err)
	}
	defer stmt.Close()
	for i, t := range cp.Window {
		if _, err := stmt.Exec(cp.Asset, i, t.Timestamp.UnixNano(), t.Price, t.Bid, t.Ask, t.Volume, t.High, t.Low); err != nil {
			return fmt.Errorf("failed to save window tick %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// LoadCheckpoint returns the stored checkpoint for asset, or nil when none exists.
func (s *Storage) LoadCheckpoint(asset string) (*models.Checkpoint, error) {
	row := s.db.QueryRow(`
		SELECT bias, regime, last_structure, support, support_set, resistance, resistance_set,
		       recent_highs, recent_lows, atr, last_alert_time, saved_at
		FROM analysis_state WHERE asset = ?`, asset)

	var (
		cp                      = models.Checkpoint{Asset: asset}
		bias, regime, structure string
		supportSet, resSet      int
		highsJSON, lowsJSON     string
		lastAlertNano, savedAt  int64
	)
	err := row.Scan(
		&bias, &regime, &structure,
		&cp.State.KeyLevels.Support.Price, &supportSet,
		&cp.State.KeyLevels.Resistance.Price, &resSet,
		&highsJSON, &lowsJSON, &cp.State.ATR, &lastAlertNano, &savedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	cp.State.Bias = models.Bias(bias)
	cp.State.Regime = models.Regime(regime)
	cp.State.LastStructure = models.Structure(structure)
	cp.State.KeyLevels.Support.Set = supportSet != 0
	cp.State.KeyLevels.Resistance.Set = resSet != 0
	if err := json.Unmarshal([]byte(highsJSON), &cp.State.RecentHighs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recent highs: %w", err)
	}
	if err := json.Unmarshal([]byte(lowsJSON), &cp.State.RecentLows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recent lows: %w", err)
	}
	cp.State.LastAlertTime = fromUnixNano(lastAlertNano)
	cp.SavedAt = fromUnixNano(savedAt)

	rows, err := s.db.Query(`
		SELECT ts, price, bid, ask, volume, high, low
		FROM window_ticks WHERE asset = ? ORDER BY seq`, asset)
	if err != nil {
		return nil, fmt.Errorf("failed to query window: %w", err)
	}
	defer rows.Close()

	cp.Window = []models.Tick{}
	for rows.Next() {
		var t models.Tick
		var tsNano int64
		if err := rows.Scan(&tsNano, &t.Price, &t.Bid, &t.Ask, &t.Volume, &t.High, &t.Low); err != nil {
			return nil, fmt.Errorf("failed to scan window tick: %w", err)
		}
		t.Timestamp = fromUnixNano(tsNano)
		cp.Window = append(cp.Window, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &cp, nil
}

// DeleteCheckpoint removes the state and window stored for asset.
func (s *Storage) DeleteCheckpoint(asset string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM window_ticks WHERE asset = ?`, asset); err != nil {
		return fmt.Errorf("failed to delete window: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM analysis_state WHERE asset = ?`, asset); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return tx.Commit()
}

// AddAlert journals an alert. Replayed alerts share their id and are ignored.
// Only the newest maxAlerts rows are kept.
func (s *Storage) AddAlert(alert *models.Alert) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT OR IGNORE INTO alerts
			(id, asset, rule, event, bias, price, trigger_level, invalidation_level,
			 probability, risk_note, detected_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		alert.ID, alert.Asset, string(alert.Rule), alert.Event, string(alert.Bias),
		alert.Price, alert.TriggerLevel, alert.InvalidationLevel,
		alert.Probability, alert.RiskNote, alert.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	if _, err = tx.Exec(`
		DELETE FROM alerts WHERE id NOT IN (
			SELECT id FROM alerts ORDER BY detected_at DESC LIMIT ?
		)`, s.maxAlerts); err != nil {
		return fmt.Errorf("failed to enforce alert cap: %w", err)
	}

	return tx.Commit()
}

// RecentAlerts returns up to limit alerts for asset, most recent first.
func (s *Storage) RecentAlerts(asset string, limit int) ([]models.Alert, error) {
	rows, err := s.db.Query(`
		SELECT id, asset, rule, event, bias, price, trigger_level, invalidation_level,
		       probability, risk_note, detected_at
		FROM alerts WHERE asset = ? ORDER BY detected_at DESC LIMIT ?`, asset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.Alert{}
	for rows.Next() {
		var a models.Alert
		var rule, bias string
		var riskNote sql.NullString
		var detectedAtNano int64

		err := rows.Scan(
			&a.ID, &a.Asset, &rule, &a.Event, &bias, &a.Price, &a.TriggerLevel, &a.InvalidationLevel,
			&a.Probability, &riskNote, &detectedAtNano,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		a.Rule = models.Rule(rule)
		a.Bias = models.Bias(bias)
		a.RiskNote = riskNote.String
		a.Timestamp = fromUnixNano(detectedAtNano)
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

func (s *Storage) ClearAlerts() error {
	if _, err := s.db.Exec(`DELETE FROM alerts`); err != nil {
		return fmt.Errorf("failed to clear alerts: %w", err)
	}
	return nil
}

func (s *Storage) Name() string { return "storage" }

// Deliver journals alert so the history survives restarts.
func (s *Storage) Deliver(_ context.Context, alert models.Alert) error {
	return s.AddAlert(&alert)
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
