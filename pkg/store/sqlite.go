package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/advledger/pkg/models"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// We use TEXT for amounts so no decimal precision is lost.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	type TEXT NOT NULL CHECK (type IN ('advance', 'payment')),
	amount TEXT NOT NULL,
	date_created TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_date ON events (date_created, seq);
`

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the logger used by the store.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.log = l
		}
	}
}

// CreateDB creates a new database file at path with the events schema.
func CreateDB(ctx context.Context, path string, opts ...Option) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s: %w", path, ErrAlreadyExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not stat database: %w", err)
	}

	s, err := NewSQLiteStore(ctx, path, opts...)
	if err != nil {
		return err
	}
	return s.Close()
}

// DropDB deletes the database file at path.
func DropDB(path string) error {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrNotInitialized)
		}
		return fmt.Errorf("could not delete database: %w", err)
	}
	// WAL side files may or may not exist.
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
	return nil
}

// OpenSQLiteStore opens an existing database, failing with ErrNotInitialized
// when the file does not exist.
func OpenSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotInitialized)
		}
		return nil, fmt.Errorf("could not stat database: %w", err)
	}
	return NewSQLiteStore(ctx, path, opts...)
}

// NewSQLiteStore opens (creating if needed) the database and initializes the schema.
func NewSQLiteStore(ctx context.Context, dataSourceName string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := newStore(db, opts...)
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	s.log.Debug("database connection established", zap.String("path", dataSourceName))
	return s, nil
}

func newStore(db *sql.DB, opts ...Option) *SQLiteStore {
	s := &SQLiteStore{db: db, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const insertEvent = `INSERT INTO events (id, type, amount, date_created, created_at) VALUES (?, ?, ?, ?, ?)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func createEvent(ctx context.Context, ex execer, event *models.Event) error {
	if !event.Kind.Valid() {
		return fmt.Errorf("cannot store event with kind %s", event.Kind)
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	event.Date = models.Day(event.Date)

	_, err := ex.ExecContext(ctx, insertEvent,
		event.ID.String(), event.Kind.String(), event.Amount, event.Date.Format(models.DateLayout), event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// CreateEvent inserts a single event, assigning an ID if it has none.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *models.Event) error {
	return createEvent(ctx, s.db, event)
}

// CreateEvents inserts all events within one transaction.
func (s *SQLiteStore) CreateEvents(ctx context.Context, events []*models.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, event := range events {
		if err := createEvent(ctx, tx, event); err != nil {
			return fmt.Errorf("event %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	s.log.Debug("events stored", zap.Int("count", len(events)))
	return nil
}

// GetEventsAsOf retrieves the events dated on or before asOf in processing order.
func (s *SQLiteStore) GetEventsAsOf(ctx context.Context, asOf time.Time) ([]*models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, amount, date_created, created_at FROM events WHERE date_created <= ? ORDER BY date_created ASC, seq ASC`,
		models.Day(asOf).Format(models.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var event models.Event
		var idStr, kindStr, dateStr string
		if err := rows.Scan(&idStr, &kindStr, &event.Amount, &dateStr, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		if event.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("invalid event id %q: %w", idStr, err)
		}
		if event.Kind, err = models.ParseEventKind(kindStr); err != nil {
			return nil, fmt.Errorf("event %s: %w", idStr, err)
		}
		if event.Date, err = models.ParseDate(dateStr); err != nil {
			return nil, fmt.Errorf("event %s: %w", idStr, err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return events, nil
}

// CountEvents returns the number of stored events.
func (s *SQLiteStore) CountEvents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
