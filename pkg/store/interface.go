package store

import (
	"context"
	"errors"
	"time"

	"github.com/mcclellann/advledger/pkg/models"
)

var (
	// ErrNotInitialized is returned when the database file does not exist yet.
	ErrNotInitialized = errors.New("database not initialized")
	// ErrAlreadyExists is returned when creating a database that already exists.
	ErrAlreadyExists = errors.New("database already exists")
)

// Storage defines the interface for persisting advance and payment events.
type Storage interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	// CreateEvents stores all events in a single transaction.
	CreateEvents(ctx context.Context, events []*models.Event) error
	// GetEventsAsOf returns the events dated on or before asOf, ordered by date
	// and then by insertion order.
	GetEventsAsOf(ctx context.Context, asOf time.Time) ([]*models.Event, error)
	CountEvents(ctx context.Context) (int, error)

	Close() error
}
