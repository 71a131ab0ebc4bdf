package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unievents/backend/internal/app"
)

var errOffline = errors.New("database offline")

func testRoot(t *testing.T) (*RootOptions, func(args ...string) (string, error)) {
	t.Helper()
	opts := &RootOptions{
		Logger:   zap.NewNop(),
		OpenPool: func(context.Context) (*pgxpool.Pool, error) { return nil, errOffline },
		OpenDeps: func(context.Context) (*app.Deps, error) { return nil, errOffline },
	}
	run := func(args ...string) (string, error) {
		cmd := newRoot(opts)
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		err := cmd.ExecuteContext(context.Background())
		return out.String(), err
	}
	return opts, run
}

func TestArgumentValidation(t *testing.T) {
	_, run := testRoot(t)

	_, err := run("create-admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"email" not set`)

	_, err = run("seed")
	assert.Error(t, err)

	_, err = run("seed", "does-not-exist.yaml")
	require.Error(t, err)
	assert.NotErrorIs(t, err, errOffline)

	_, err = run("send-reminders", "--date", "14/03/2025")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}

func TestCommandsOpenConnections(t *testing.T) {
	_, run := testRoot(t)

	for _, args := range [][]string{
		{"migrate"},
		{"create-admin", "--email", "root@campus.edu"},
		{"seed", "../seed/testdata/seed.yaml"},
		{"send-reminders", "--date", "2025-03-14"},
	} {
		_, err := run(args...)
		assert.ErrorIs(t, err, errOffline, args[0])
	}
}
