package store

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/PratikDhanave/showmojo-webhook-service/internal/ingest"
)

// ErrNotFound is returned by the read API when a single row is missing.
var ErrNotFound = errors.New("not found")

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// classify maps driver errors onto the ingest error vocabulary. Errors it
// does not recognize are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == uniqueViolation:
			return fmt.Errorf("%w: %s", ingest.ErrUniqueViolation, pgErr.ConstraintName)
		case pgErr.Code == serializationFailure, pgErr.Code == deadlockDetected:
			return fmt.Errorf("%w: %s", ingest.ErrTxAborted, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "22"):
			// data exception: the value can never be stored, so resending it is pointless
			field := pgErr.ColumnName
			if field == "" {
				field = "payload"
			}
			return &ingest.ValidationError{Field: field, Reason: pgErr.Message}
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01", pgErr.Code == "57P03":
			// connection exception, admin shutdown, cannot connect now
			return unavailable(err)
		}
		return err
	}

	return unavailableIfConn(err)
}

func unavailableIfConn(err error) error {
	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) {
		return unavailable(err)
	}
	return err
}

// unavailable wraps err so errors.Is(err, ingest.ErrStoreUnavailable) holds
// while the driver message is kept.
func unavailable(err error) error {
	if errors.Is(err, ingest.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ingest.ErrStoreUnavailable, err)
}
