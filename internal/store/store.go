// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/clopfocus/focusd/internal/domain"
)

// Repository defines the interface for persisting sessions, their event
// history, and user preferences.
type Repository interface {
	// SaveSession creates or updates a session record.
	SaveSession(ctx context.Context, s *domain.Session) error

	// GetSession retrieves a session by ID. It returns (nil, nil) when
	// no session with that ID exists.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// ListSessions returns up to limit sessions, newest first.
	ListSessions(ctx context.Context, limit int) ([]*domain.Session, error)

	// AppendEvent adds one entry to a session's event history.
	AppendEvent(ctx context.Context, e *domain.SessionEvent) error

	// ListEvents returns a session's events in chronological order.
	ListEvents(ctx context.Context, sessionID string) ([]*domain.SessionEvent, error)

	// GetPreferences returns the stored preferences, or defaults when
	// none have been saved yet.
	GetPreferences(ctx context.Context) (*domain.Preferences, error)

	// SavePreferences persists p, stamping its UpdatedAt.
	SavePreferences(ctx context.Context, p *domain.Preferences) error

	// Stats aggregates the stored session history.
	Stats(ctx context.Context) (*domain.Stats, error)

	// PruneHistory deletes sessions that ended before the cutoff,
	// along with their events. It returns the number of sessions
	// removed.
	PruneHistory(ctx context.Context, olderThan time.Time) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
