package ingest

import (
	"context"

	"github.com/PratikDhanave/showmojo-webhook-service/internal/models"
)

// Store runs one unit of work. Implementations must commit only when fn
// returns nil and roll back on every other exit path, including panics and
// context cancellation.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of writes the engine needs inside a unit of work.
//
// Get* methods return (nil, nil) when the row does not exist and lock the row
// when it does. Insert* methods return an error wrapping ErrUniqueViolation
// when a concurrent writer inserted the same key first.
type Tx interface {
	// InsertEvent reports false when event_id already exists; the stored row
	// is left untouched in that case.
	InsertEvent(ctx context.Context, e models.Event) (bool, error)

	GetShowing(ctx context.Context, uid string) (*models.Showing, error)
	InsertShowing(ctx context.Context, s models.Showing) error
	UpdateShowing(ctx context.Context, s models.Showing) error

	GetListing(ctx context.Context, uid string) (*models.Listing, error)
	InsertListing(ctx context.Context, l models.Listing) error
	UpdateListing(ctx context.Context, l models.Listing) error

	GetProspect(ctx context.Context, email string) (*models.Prospect, error)
	InsertProspect(ctx context.Context, p models.Prospect) error
	UpdateProspect(ctx context.Context, p models.Prospect) error
}
