package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/showmojo-webhook-service/internal/ingest"
)

func TestClassify(t *testing.T) {
	wrap := func(code string) error {
		return fmt.Errorf("exec: %w", &pgconn.PgError{Code: code, Message: "msg " + code})
	}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique violation", wrap("23505"), ingest.ErrUniqueViolation},
		{"deadlock", wrap("40P01"), ingest.ErrTxAborted},
		{"serialization failure", wrap("40001"), ingest.ErrTxAborted},
		{"connection failure", wrap("08006"), ingest.ErrStoreUnavailable},
		{"admin shutdown", wrap("57P01"), ingest.ErrStoreUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.err), tt.want)
		})
	}
}

func TestClassifyDataExceptionIsValidation(t *testing.T) {
	for _, code := range []string{"22021", "22003", "22P05"} {
		t.Run(code, func(t *testing.T) {
			err := classify(&pgconn.PgError{Code: code, Message: "bad value", ColumnName: "notes"})

			var verr *ingest.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "notes", verr.Field)
			assert.Equal(t, "bad value", verr.Reason)
		})
	}

	err := classify(&pgconn.PgError{Code: "22021", Message: "invalid byte sequence"})
	var verr *ingest.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "payload", verr.Field)
}

func TestClassifyPassesThroughUnknownErrors(t *testing.T) {
	assert.NoError(t, classify(nil))

	other := errors.New("boom")
	assert.Same(t, other, classify(other))

	check := &pgconn.PgError{Code: "23514"}
	assert.Same(t, check, classify(check))
}
