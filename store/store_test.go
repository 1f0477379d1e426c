package store

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyServerError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "22001", Message: "value too long for type character varying(255)"}

	err := classify(pgErr, "job-42")

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "job-42", storeErr.ExternalID)
	assert.ErrorIs(t, err, pgErr)
	assert.Contains(t, storeErr.Error(), "job-42")
	assert.Contains(t, storeErr.Error(), "value too long")
}

func TestClassifyWrappedServerError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23502", Message: "null value in column"}
	wrapped := errors.Join(errors.New("exec"), pgErr)

	err := classify(wrapped, "job-7")

	var storeErr *StoreError
	assert.ErrorAs(t, err, &storeErr)
}

func TestClassifyConnectionFault(t *testing.T) {
	connErr := errors.New("conn closed")

	err := classify(connErr, "job-1")

	var storeErr *StoreError
	assert.False(t, errors.As(err, &storeErr))
	assert.Same(t, connErr, err)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "created", OutcomeCreated.String())
	assert.Equal(t, "updated", OutcomeUpdated.String())
}
