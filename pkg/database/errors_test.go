package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstraintClassification(t *testing.T) {
	slot := fmt.Errorf("insert event: %w", &pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: "events_active_slot_key"})

	assert.True(t, IsUniqueViolation(slot, ""))
	assert.True(t, IsUniqueViolation(slot, "events_active_slot_key"))
	assert.False(t, IsUniqueViolation(slot, "registrations_event_user_key"))
	assert.False(t, IsCheckViolation(slot, ""))

	check := &pgconn.PgError{Code: CodeCheckViolation, ConstraintName: "resource_types_available_bounds"}
	assert.True(t, IsCheckViolation(check, "resource_types_available_bounds"))
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: CodeForeignKeyViolation}))
}

func TestIsUnavailable(t *testing.T) {
	assert.False(t, IsUnavailable(nil))
	assert.False(t, IsUnavailable(errors.New("syntax error")))
	assert.False(t, IsUnavailable(&pgconn.PgError{Code: CodeUniqueViolation}))
	assert.True(t, IsUnavailable(context.DeadlineExceeded))
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: connection refused")}
	assert.True(t, IsUnavailable(fmt.Errorf("failed to connect to `host=db`: %w", refused)))
	assert.True(t, IsUnavailable(&pgconn.PgError{Code: "08006"}))
	assert.True(t, IsUnavailable(&pgconn.PgError{Code: "57P01"}))
	assert.True(t, IsUnavailable(&pgconn.PgError{Code: "53300"}))
}

func TestMigrationNamesSorted(t *testing.T) {
	names, err := MigrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_schema.sql", names[0])
}
