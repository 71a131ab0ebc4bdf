package resources

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/internal/store"
	"github.com/unievents/backend/internal/store/storetest"
)

var admin = models.Actor{ID: uuid.New(), Role: models.RoleAdmin}

type fixture struct {
	mem *storetest.Memory
	svc *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := storetest.New()
	return &fixture{mem: mem, svc: NewService(mem, nil)}
}

func (f *fixture) event(t *testing.T, venue string, status models.EventStatus) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	e := &models.Event{
		Title: "Event at " + venue, Date: "2025-06-01", Time: "10:00", Venue: venue,
		Category: models.CategoryWorkshop, Capacity: 30, Status: models.EventStatusPending,
		OrganizerID: uuid.New(),
	}
	require.NoError(t, f.mem.InTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertEvent(ctx, e); err != nil {
			return err
		}
		if status != models.EventStatusPending {
			return tx.SetEventStatus(ctx, e.ID, status)
		}
		return nil
	}))
	return e.ID
}

func (f *fixture) projectors(t *testing.T, total int) *models.ResourceType {
	t.Helper()
	rt, err := f.svc.CreateType(context.Background(), TypeInput{Name: "Projector", TotalQuantity: total})
	require.NoError(t, err)
	return rt
}

func (f *fixture) available(t *testing.T, id uuid.UUID) int {
	t.Helper()
	rt, ok := f.mem.ResourceType(id)
	require.True(t, ok)
	return rt.AvailableQuantity
}

func TestCreateTypeSeedsAvailable(t *testing.T) {
	f := newFixture(t)
	rt := f.projectors(t, 10)
	assert.Equal(t, 10, rt.TotalQuantity)
	assert.Equal(t, 10, rt.AvailableQuantity)

	_, err := f.svc.CreateType(context.Background(), TypeInput{Name: "Chairs", TotalQuantity: -1})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = f.svc.CreateType(context.Background(), TypeInput{Name: "Projector", TotalQuantity: 2})
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	zero, err := f.svc.CreateType(context.Background(), TypeInput{Name: "Stage", TotalQuantity: 0})
	require.NoError(t, err)
	assert.Zero(t, zero.AvailableQuantity)
}

func TestAllocateDecrementsPool(t *testing.T) {
	f := newFixture(t)
	rt := f.projectors(t, 10)
	x := f.event(t, "Hall 1", models.EventStatusPending)

	a, err := f.svc.Allocate(context.Background(), admin, x, AllocateInput{ResourceTypeID: rt.ID, Quantity: 4, Notes: "front row"})

	require.NoError(t, err)
	assert.Equal(t, 4, a.Quantity)
	assert.Equal(t, "Projector", a.ResourceTypeName)
	require.NotNil(t, a.AllocatedBy)
	assert.Equal(t, admin.ID, *a.AllocatedBy)
	assert.Equal(t, 6, f.available(t, rt.ID))
}

func TestReallocateReplacesQuantity(t *testing.T) {
	f := newFixture(t)
	rt := f.projectors(t, 10)
	x := f.event(t, "Hall 1", models.EventStatusPending)
	ctx := context.Background()

	first, err := f.svc.Allocate(ctx, admin, x, AllocateInput{ResourceTypeID: rt.ID, Quantity: 4})
	require.NoError(t, err)
	second, err := f.svc.Allocate(ctx, admin, x, AllocateInput{ResourceTypeID: rt.ID, Quantity: 3})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same (event, resource type) pair keeps one row")
	assert.Equal(t, 7, f.available(t, rt.ID))
	allocs := f.mem.Allocations(x)
	require.Len(t, allocs, 1)
	assert.Equal(t, 3, allocs[0].Quantity)

	// Growing counts the units already held: 7 free + 3 held covers 10.
	_, err = f.svc.Allocate(ctx, admin, x, AllocateInput{ResourceTypeID: rt.ID, Quantity: 10})
	require.NoError(t, err)
	assert.Zero(t, f.available(t, rt.ID))
	require.NoError(t, f.mem.CheckInvariants())
}

func TestAllocateInsufficient(t *testing.T) {
	f := newFixture(t)
	rt := f.projectors(t, 10)
	x := f.event(t, "Hall 1", models.EventStatusPending)

	_, err := f.svc.Allocate(context.Background(), admin, x, AllocateInput{ResourceTypeID: rt.ID, Quantity: 11})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInsufficientResource))
	assert.Equal(t, "only 10 Projector available (requested 11)", apperr.Message(err))
	assert.Equal(t, 10, f.available(t, rt.ID))
	assert.Empty(t, f.mem.Allocations(x))
}

func TestAllocateInsufficientAcrossEvents(t *testing.T) {
	f := newFixture(t)
	rt := f.projectors(t, 10)
	x := f.event(t, "Hall 1", models.EventStatusPending)
	y := f.event(t, "Hall 2", models.EventStatusPending)
	ctx := context.Background()

	_, err := f.svc.Allocate(ctx, admin, x, AllocateInput{ResourceTypeID: rt.ID, Quantity: 4})
	require.NoError(t, err)
	_, err = f.svc.Allocate(ctx, admin, y, AllocateInput{ResourceTypeID: rt.ID, Quantity: 8})

	assert.True(t, errors.Is(err, apperr.ErrInsufficientResource))
	assert.Contains(t, err.Error(), "only 6 Projector available")
	assert.Equal(t, 6, f.available(t, rt.ID))
}

func TestAllocateRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	rt := f.projectors(t, 10)
	x := f.event(t, "Hall 1", models.EventStatusPending)
	ctx := context.Background()

	_, err := f.svc.Allocate(ctx, admin, x, AllocateInput{ResourceTypeID: rt.ID, Quantity: 0})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = f.svc.Allocate(ctx, admin, uuid.New(), AllocateInput{ResourceTypeID: rt.ID, Quantity: 1})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = f.svc.Allocate(ctx, admin, x, AllocateInput{ResourceTypeID: uuid.New(), Quantity: 1})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	rejected := f.event(t, "Hall 3", models.EventStatusRejected)
	_, err = f.svc.Allocate(ctx, admin, rejected, AllocateInput{ResourceTypeID: rt.ID, Quantity: 1})
	assert.True(t, errors.Is(err, apperr.ErrPreconditionFailed))

	assert.Equal(t, 10, f.available(t, rt.ID))
}

func TestDeallocateRestoresPool(t *testing.T) {
	f := newFixture(t)
	rt := f.projectors(t, 10)
	x := f.event(t, "Hall 1", models.EventStatusPending)
	ctx := context.Background()

	a, err := f.svc.Allocate(ctx, admin, x, AllocateInput{ResourceTypeID: rt.ID, Quantity: 4})
	require.NoError(t, err)
	require.Equal(t, 6, f.available(t, rt.ID))

	require.NoError(t, f.svc.Deallocate(ctx, a.ID, DeallocateInput{ResourceTypeID: rt.ID, Quantity: 4}))

	assert.Equal(t, 10, f.available(t, rt.ID))
	assert.Empty(t, f.mem.Allocations(x))

	err = f.svc.Deallocate(ctx, a.ID, DeallocateInput{ResourceTypeID: rt.ID, Quantity: 4})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestDeallocateChecksCallerValues(t *testing.T) {
	f := newFixture(t)
	rt := f.projectors(t, 10)
	x := f.event(t, "Hall 1", models.EventStatusPending)
	ctx := context.Background()
	a, err := f.svc.Allocate(ctx, admin, x, AllocateInput{ResourceTypeID: rt.ID, Quantity: 4})
	require.NoError(t, err)

	err = f.svc.Deallocate(ctx, a.ID, DeallocateInput{ResourceTypeID: rt.ID, Quantity: 5})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Contains(t, err.Error(), "holds 4 Projector")

	err = f.svc.Deallocate(ctx, a.ID, DeallocateInput{ResourceTypeID: uuid.New(), Quantity: 4})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	assert.Equal(t, 6, f.available(t, rt.ID))
	assert.Len(t, f.mem.Allocations(x), 1)
}

func TestDeallocateKeepsApprovedEventAllocated(t *testing.T) {
	f := newFixture(t)
	rt := f.projectors(t, 10)
	chairs, err := f.svc.CreateType(context.Background(), TypeInput{Name: "Chair", TotalQuantity: 50})
	require.NoError(t, err)
	x := f.event(t, "Hall 1", models.EventStatusPending)
	ctx := context.Background()

	a, err := f.svc.Allocate(ctx, admin, x, AllocateInput{ResourceTypeID: rt.ID, Quantity: 2})
	require.NoError(t, err)
	b, err := f.svc.Allocate(ctx, admin, x, AllocateInput{ResourceTypeID: chairs.ID, Quantity: 20})
	require.NoError(t, err)
	require.NoError(t, f.mem.InTx(ctx, func(tx store.Tx) error {
		return tx.SetEventStatus(ctx, x, models.EventStatusApproved)
	}))

	require.NoError(t, f.svc.Deallocate(ctx, a.ID, DeallocateInput{ResourceTypeID: rt.ID, Quantity: 2}))
	err = f.svc.Deallocate(ctx, b.ID, DeallocateInput{ResourceTypeID: chairs.ID, Quantity: 20})

	assert.True(t, errors.Is(err, apperr.ErrPreconditionFailed))
	require.NoError(t, f.mem.CheckInvariants())
	assert.Equal(t, 30, f.available(t, chairs.ID))
}

func TestUpdateTypeShiftsAvailable(t *testing.T) {
	f := newFixture(t)
	rt := f.projectors(t, 10)
	x := f.event(t, "Hall 1", models.EventStatusPending)
	ctx := context.Background()
	_, err := f.svc.Allocate(ctx, admin, x, AllocateInput{ResourceTypeID: rt.ID, Quantity: 4})
	require.NoError(t, err)

	total := 15
	updated, err := f.svc.UpdateType(ctx, rt.ID, TypeUpdate{TotalQuantity: &total})
	require.NoError(t, err)
	assert.Equal(t, 11, updated.AvailableQuantity)

	total = 3
	_, err = f.svc.UpdateType(ctx, rt.ID, TypeUpdate{TotalQuantity: &total})
	assert.True(t, errors.Is(err, apperr.ErrPreconditionFailed))
	assert.Contains(t, err.Error(), "4 are currently allocated")

	total = 4
	updated, err = f.svc.UpdateType(ctx, rt.ID, TypeUpdate{TotalQuantity: &total})
	require.NoError(t, err)
	assert.Zero(t, updated.AvailableQuantity)
	require.NoError(t, f.mem.CheckInvariants())
}

func TestListAllocations(t *testing.T) {
	f := newFixture(t)
	rt := f.projectors(t, 10)
	x := f.event(t, "Hall 1", models.EventStatusPending)
	ctx := context.Background()

	list, err := f.svc.ListAllocations(ctx, x)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)

	_, err = f.svc.Allocate(ctx, admin, x, AllocateInput{ResourceTypeID: rt.ID, Quantity: 1})
	require.NoError(t, err)
	list, err = f.svc.ListAllocations(ctx, x)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Projector", list[0].ResourceTypeName)

	_, err = f.svc.ListAllocations(ctx, uuid.New())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestConcurrentAllocationsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	rt := f.projectors(t, 10)
	const events = 8
	ids := make([]uuid.UUID, events)
	for i := range ids {
		ids[i] = f.event(t, "Hall "+uuid.NewString(), models.EventStatusPending)
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.Allocate(context.Background(), admin, id, AllocateInput{ResourceTypeID: rt.ID, Quantity: 3})
			if err == nil {
				mu.Lock()
				got += 3
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, apperr.ErrInsufficientResource), err)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 9, got)
	assert.Equal(t, 1, f.available(t, rt.ID))
	require.NoError(t, f.mem.CheckInvariants())
}
