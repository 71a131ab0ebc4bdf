// Package postgres implements store.Store on PostgreSQL with pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/store"
	"github.com/unievents/backend/pkg/database"
)

const (
	constraintSlot          = "events_active_slot_key"
	constraintRegistration  = "registrations_event_user_key"
	constraintResourceName  = "resource_types_name_key"
	constraintAllocationKey = "event_resources_event_type_key"
)

// Store runs units of work in READ COMMITTED transactions. Shared counters are
// protected by SELECT ... FOR UPDATE row locks and guarded UPDATEs.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New creates a Postgres-backed store.
func New(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}
}

// InTx begins a transaction, runs fn and commits. Any error from fn rolls back.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify(fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		if rbErr := pgTx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
	}()

	if err := fn(&tx{tx: pgTx}); err != nil {
		return classify(err)
	}
	if err := pgTx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// classify turns infrastructure failures into apperr.StoreUnavailable and leaves
// typed or store-level errors untouched.
func classify(err error) error {
	if err == nil || apperr.KindOf(err) != "" {
		return err
	}
	if database.IsUnavailable(err) {
		return apperr.StoreUnavailable(err)
	}
	return err
}

// tx implements store.Tx over one pgx transaction.
type tx struct {
	tx pgx.Tx
}

var _ store.Tx = (*tx)(nil)

// noRows maps pgx.ErrNoRows to apperr.NotFound for the given entity.
func noRows(err error, entity string, id any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(entity, id)
	}
	return err
}
