// Package collector persists record batches received from interaction
// loggers into a local SQLite database.
package collector

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vislab/vislog/internal/models"
	_ "modernc.org/sqlite" // CGO-free SQLite
)

// ErrInvalidBatch marks validation failures. The whole batch is rejected;
// nothing from it is stored.
var ErrInvalidBatch = errors.New("invalid batch")

type Store struct {
	db         *sql.DB
	validKinds map[string]bool
}

func NewStore(databasePath string) (*Store, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", databasePath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db: db,
		validKinds: map[string]bool{
			models.KindMouseEnter: true,
			models.KindMouseLeave: true,
			models.KindBrushStart: true,
			models.KindBrushEnd:   true,
			models.KindBrush:      true,
		},
	}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS batches(
	  id           TEXT PRIMARY KEY,
	  userid       TEXT,
	  taskid       TEXT,
	  received_utc INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS interactions(
	  id              INTEGER PRIMARY KEY,
	  batch_id        TEXT NOT NULL REFERENCES batches(id),
	  view            TEXT NOT NULL,
	  name            TEXT NOT NULL CHECK (name IN ('mouseenter','mouseleave','brushStart','brushEnd','brush')),
	  ts_utc          INTEGER NOT NULL,
	  brush_start     REAL,
	  brush_end       REAL,
	  pix_brush_start REAL,
	  pix_brush_end   REAL
	);
	CREATE TABLE IF NOT EXISTS pointer_samples(
	  id       INTEGER PRIMARY KEY,
	  batch_id TEXT NOT NULL REFERENCES batches(id),
	  ts_utc   INTEGER NOT NULL,
	  page_x   REAL NOT NULL,
	  page_y   REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_ts   ON interactions(ts_utc);
	CREATE INDEX IF NOT EXISTS idx_interactions_view ON interactions(view);
	CREATE INDEX IF NOT EXISTS idx_pointer_ts        ON pointer_samples(ts_utc);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ValidateInteraction(rec models.InteractionRecord) error {
	if rec.View == "" {
		return fmt.Errorf("%w: view cannot be empty", ErrInvalidBatch)
	}
	if !s.validKinds[rec.Name] {
		return fmt.Errorf("%w: invalid interaction name: %q", ErrInvalidBatch, rec.Name)
	}
	if rec.Timestamp <= 0 {
		return fmt.Errorf("%w: timestamp must be positive", ErrInvalidBatch)
	}
	hasAny := rec.BrushStart != nil || rec.BrushEnd != nil || rec.PixBrushStart != nil || rec.PixBrushEnd != nil
	if hasAny && !rec.HasBrush() {
		return fmt.Errorf("%w: partial brush range on %q record", ErrInvalidBatch, rec.Name)
	}
	if hasAny && (rec.Name == models.KindMouseEnter || rec.Name == models.KindMouseLeave) {
		return fmt.Errorf("%w: brush range on %q record", ErrInvalidBatch, rec.Name)
	}
	return nil
}

func (s *Store) ValidatePointer(rec models.PointerRecord) error {
	if rec.Name != models.KindMouse {
		return fmt.Errorf("%w: invalid pointer sample name: %q", ErrInvalidBatch, rec.Name)
	}
	if rec.Timestamp <= 0 {
		return fmt.Errorf("%w: timestamp must be positive", ErrInvalidBatch)
	}
	return nil
}

// InsertBatch stores a batch and all its records in one transaction and
// returns the generated batch identifier.
func (s *Store) InsertBatch(batch models.Batch) (string, error) {
	batchID := uuid.NewString()

	transaction, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := transaction.Exec(
		`INSERT INTO batches(id, userid, taskid, received_utc) VALUES(?,?,?,?)`,
		batchID, batch.UserID, batch.TaskID, time.Now().UnixMilli(),
	); err != nil {
		_ = transaction.Rollback()
		return "", fmt.Errorf("failed to insert batch: %w", err)
	}

	interactionStmt, err := transaction.Prepare(
		`INSERT INTO interactions(batch_id, view, name, ts_utc, brush_start, brush_end, pix_brush_start, pix_brush_end)
		 VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		_ = transaction.Rollback()
		return "", fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer interactionStmt.Close()

	for _, rec := range batch.Log {
		if err := s.ValidateInteraction(rec); err != nil {
			_ = transaction.Rollback()
			return "", err
		}
		if _, err := interactionStmt.Exec(
			batchID, rec.View, rec.Name, rec.Timestamp,
			rec.BrushStart, rec.BrushEnd, rec.PixBrushStart, rec.PixBrushEnd,
		); err != nil {
			_ = transaction.Rollback()
			return "", fmt.Errorf("failed to insert interaction: %w", err)
		}
	}

	pointerStmt, err := transaction.Prepare(
		`INSERT INTO pointer_samples(batch_id, ts_utc, page_x, page_y) VALUES(?,?,?,?)`)
	if err != nil {
		_ = transaction.Rollback()
		return "", fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer pointerStmt.Close()

	for _, rec := range batch.MouseLog {
		if err := s.ValidatePointer(rec); err != nil {
			_ = transaction.Rollback()
			return "", err
		}
		if _, err := pointerStmt.Exec(batchID, rec.Timestamp, rec.PageX, rec.PageY); err != nil {
			_ = transaction.Rollback()
			return "", fmt.Errorf("failed to insert pointer sample: %w", err)
		}
	}

	if err := transaction.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return batchID, nil
}
