// Package storetest provides an in-memory store.Store for tests.
//
// Transactions are fully serialized and work on a copy of the state that is
// published only when fn succeeds, so a failed unit of work leaves no trace.
// Unique keys and counter bounds mirror the Postgres schema.
package storetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/internal/store"
)

// errRestrict mirrors an ON DELETE RESTRICT foreign key failure.
var errRestrict = errors.New("storetest: row is still referenced")

type state struct {
	events        map[uuid.UUID]models.Event
	types         map[uuid.UUID]models.ResourceType
	allocations   map[uuid.UUID]models.Allocation
	requests      map[uuid.UUID]models.ResourceRequest
	registrations map[uuid.UUID]models.Registration
}

func newState() *state {
	return &state{
		events:        make(map[uuid.UUID]models.Event),
		types:         make(map[uuid.UUID]models.ResourceType),
		allocations:   make(map[uuid.UUID]models.Allocation),
		requests:      make(map[uuid.UUID]models.ResourceRequest),
		registrations: make(map[uuid.UUID]models.Registration),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		events:        cloneMap(s.events),
		types:         cloneMap(s.types),
		allocations:   cloneMap(s.allocations),
		requests:      cloneMap(s.requests),
		registrations: cloneMap(s.registrations),
	}
}

// Memory is an in-memory store.Store.
type Memory struct {
	mu    sync.Mutex
	st    *state
	fail  error
	clock time.Time
	txs   int
}

// New returns an empty store.
func New() *Memory {
	return &Memory{st: newState(), clock: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
}

// FailWith makes every following InTx return err without running fn. Pass nil to recover.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Transactions returns how many units of work have committed.
func (m *Memory) Transactions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txs
}

// InTx implements store.Store.
func (m *Memory) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.fail != nil {
		return m.fail
	}
	work := m.st.clone()
	if err := fn(&memTx{st: work, m: m}); err != nil {
		return err
	}
	m.st = work
	m.txs++
	return nil
}

// Event returns the committed copy of an event.
func (m *Memory) Event(id uuid.UUID) (models.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.st.events[id]
	return e, ok
}

// ResourceType returns the committed copy of a resource type.
func (m *Memory) ResourceType(id uuid.UUID) (models.ResourceType, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.st.types[id]
	return rt, ok
}

// Allocations returns the committed allocations of an event.
func (m *Memory) Allocations(eventID uuid.UUID) []models.Allocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Allocation
	for _, a := range m.st.allocations {
		if a.EventID == eventID {
			out = append(out, a)
		}
	}
	return out
}

// CheckInvariants returns an error describing the first broken store invariant.
func (m *Memory) CheckInvariants() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rt := range m.st.types {
		if rt.AvailableQuantity < 0 || rt.AvailableQuantity > rt.TotalQuantity {
			return errors.New("available quantity out of bounds for " + rt.Name)
		}
	}
	for _, e := range m.st.events {
		if e.Status != models.EventStatusApproved {
			continue
		}
		found := false
		for _, a := range m.st.allocations {
			if a.EventID == e.ID {
				found = true
				break
			}
		}
		if !found {
			return errors.New("approved event without allocation: " + e.Title)
		}
	}
	return nil
}

func (m *Memory) now() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

type memTx struct {
	st *state
	m  *Memory
}

var _ store.Tx = (*memTx)(nil)

// Events

func (t *memTx) GetEvent(_ context.Context, id uuid.UUID) (*models.Event, error) {
	e, ok := t.st.events[id]
	if !ok {
		return nil, apperr.NotFound("event", id)
	}
	return &e, nil
}

func (t *memTx) LockEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return t.GetEvent(ctx, id)
}

func (t *memTx) ListEvents(_ context.Context, f models.EventFilter) ([]models.Event, error) {
	var out []models.Event
	for _, e := range t.st.events {
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.OrganizerID != nil && e.OrganizerID != *f.OrganizerID {
			continue
		}
		if f.DateFrom != "" && e.Date < f.DateFrom {
			continue
		}
		if f.DateTo != "" && e.Date > f.DateTo {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (t *memTx) slotHolder(date, venue string, exclude uuid.UUID) *models.Event {
	for _, e := range t.st.events {
		if e.ID != exclude && e.Date == date && e.Venue == venue && e.Status.OccupiesSlot() {
			return &e
		}
	}
	return nil
}

func (t *memTx) FindSlotConflict(_ context.Context, date, venue string, excludeID *uuid.UUID) (*models.Event, error) {
	var exclude uuid.UUID
	if excludeID != nil {
		exclude = *excludeID
	}
	return t.slotHolder(date, venue, exclude), nil
}

func (t *memTx) InsertEvent(_ context.Context, e *models.Event) error {
	if e.Status.OccupiesSlot() && t.slotHolder(e.Date, e.Venue, uuid.Nil) != nil {
		return store.ErrSlotTaken
	}
	e.ID = uuid.New()
	e.RegisteredCount, e.AttendedCount = 0, 0
	e.CreatedAt = t.m.now()
	e.UpdatedAt = e.CreatedAt
	t.st.events[e.ID] = *e
	return nil
}

func (t *memTx) UpdateEvent(_ context.Context, e *models.Event) error {
	cur, ok := t.st.events[e.ID]
	if !ok {
		return apperr.NotFound("event", e.ID)
	}
	if cur.Status.OccupiesSlot() && t.slotHolder(e.Date, e.Venue, e.ID) != nil {
		return store.ErrSlotTaken
	}
	if e.Capacity < cur.RegisteredCount {
		return store.ErrOutOfBounds
	}
	cur.Title, cur.Description, cur.Date, cur.Time, cur.Venue = e.Title, e.Description, e.Date, e.Time, e.Venue
	cur.Category, cur.Capacity, cur.ImageURL = e.Category, e.Capacity, e.ImageURL
	cur.UpdatedAt = t.m.now()
	e.UpdatedAt = cur.UpdatedAt
	t.st.events[e.ID] = cur
	return nil
}

func (t *memTx) SetEventStatus(_ context.Context, id uuid.UUID, status models.EventStatus) error {
	e, ok := t.st.events[id]
	if !ok {
		return apperr.NotFound("event", id)
	}
	if status.OccupiesSlot() && !e.Status.OccupiesSlot() && t.slotHolder(e.Date, e.Venue, id) != nil {
		return store.ErrSlotTaken
	}
	e.Status = status
	e.UpdatedAt = t.m.now()
	t.st.events[id] = e
	return nil
}

func (t *memTx) DeleteEvent(_ context.Context, id uuid.UUID) error {
	if _, ok := t.st.events[id]; !ok {
		return apperr.NotFound("event", id)
	}
	for _, a := range t.st.allocations {
		if a.EventID == id {
			return errRestrict
		}
	}
	for rid, r := range t.st.registrations {
		if r.EventID == id {
			delete(t.st.registrations, rid)
		}
	}
	for rid, r := range t.st.requests {
		if r.EventID == id {
			delete(t.st.requests, rid)
		}
	}
	delete(t.st.events, id)
	return nil
}

func (t *memTx) AdjustEventCounts(_ context.Context, id uuid.UUID, registeredDelta, attendedDelta int) error {
	e, ok := t.st.events[id]
	if !ok {
		return store.ErrOutOfBounds
	}
	reg, att := e.RegisteredCount+registeredDelta, e.AttendedCount+attendedDelta
	if reg < 0 || reg > e.Capacity || att < 0 || att > reg {
		return store.ErrOutOfBounds
	}
	e.RegisteredCount, e.AttendedCount = reg, att
	t.st.events[id] = e
	return nil
}

// Resources

func (t *memTx) ListResourceTypes(_ context.Context) ([]models.ResourceType, error) {
	out := make([]models.ResourceType, 0, len(t.st.types))
	for _, rt := range t.st.types {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *memTx) GetResourceType(_ context.Context, id uuid.UUID) (*models.ResourceType, error) {
	rt, ok := t.st.types[id]
	if !ok {
		return nil, apperr.NotFound("resource type", id)
	}
	return &rt, nil
}

func (t *memTx) LockResourceType(ctx context.Context, id uuid.UUID) (*models.ResourceType, error) {
	return t.GetResourceType(ctx, id)
}

func (t *memTx) InsertResourceType(_ context.Context, rt *models.ResourceType) error {
	for _, other := range t.st.types {
		if other.Name == rt.Name {
			return store.ErrDuplicate
		}
	}
	if rt.TotalQuantity < 0 || rt.AvailableQuantity < 0 || rt.AvailableQuantity > rt.TotalQuantity {
		return store.ErrOutOfBounds
	}
	rt.ID = uuid.New()
	rt.CreatedAt = t.m.now()
	t.st.types[rt.ID] = *rt
	return nil
}

func (t *memTx) UpdateResourceType(_ context.Context, rt *models.ResourceType) error {
	cur, ok := t.st.types[rt.ID]
	if !ok {
		return apperr.NotFound("resource type", rt.ID)
	}
	for _, other := range t.st.types {
		if other.ID != rt.ID && other.Name == rt.Name {
			return store.ErrDuplicate
		}
	}
	if rt.TotalQuantity < 0 || rt.AvailableQuantity < 0 || rt.AvailableQuantity > rt.TotalQuantity {
		return store.ErrOutOfBounds
	}
	cur.Name, cur.Description = rt.Name, rt.Description
	cur.TotalQuantity, cur.AvailableQuantity = rt.TotalQuantity, rt.AvailableQuantity
	t.st.types[rt.ID] = cur
	return nil
}

func (t *memTx) AdjustAvailable(_ context.Context, id uuid.UUID, delta int) (int, error) {
	rt, ok := t.st.types[id]
	if !ok {
		return 0, store.ErrOutOfBounds
	}
	next := rt.AvailableQuantity + delta
	if next < 0 || next > rt.TotalQuantity {
		return 0, store.ErrOutOfBounds
	}
	rt.AvailableQuantity = next
	t.st.types[id] = rt
	return next, nil
}

func (t *memTx) withName(a models.Allocation) models.Allocation {
	a.ResourceTypeName = t.st.types[a.ResourceTypeID].Name
	return a
}

func (t *memTx) FindAllocation(_ context.Context, eventID, resourceTypeID uuid.UUID) (*models.Allocation, error) {
	for _, a := range t.st.allocations {
		if a.EventID == eventID && a.ResourceTypeID == resourceTypeID {
			a = t.withName(a)
			return &a, nil
		}
	}
	return nil, nil
}

func (t *memTx) GetAllocation(_ context.Context, id uuid.UUID) (*models.Allocation, error) {
	a, ok := t.st.allocations[id]
	if !ok {
		return nil, apperr.NotFound("allocation", id)
	}
	a = t.withName(a)
	return &a, nil
}

func (t *memTx) LockAllocation(ctx context.Context, id uuid.UUID) (*models.Allocation, error) {
	return t.GetAllocation(ctx, id)
}

func (t *memTx) UpsertAllocation(ctx context.Context, a *models.Allocation) error {
	if _, ok := t.st.events[a.EventID]; !ok {
		return apperr.NotFound("event", a.EventID)
	}
	if _, ok := t.st.types[a.ResourceTypeID]; !ok {
		return apperr.NotFound("resource type", a.ResourceTypeID)
	}
	if a.Quantity <= 0 {
		return store.ErrOutOfBounds
	}
	existing, err := t.FindAllocation(ctx, a.EventID, a.ResourceTypeID)
	if err != nil {
		return err
	}
	if existing != nil {
		a.ID = existing.ID
	} else {
		a.ID = uuid.New()
	}
	a.AllocatedAt = t.m.now()
	stored := *a
	stored.ResourceTypeName = ""
	t.st.allocations[a.ID] = stored
	return nil
}

func (t *memTx) DeleteAllocation(_ context.Context, id uuid.UUID) error {
	if _, ok := t.st.allocations[id]; !ok {
		return apperr.NotFound("allocation", id)
	}
	delete(t.st.allocations, id)
	return nil
}

func (t *memTx) ListAllocations(_ context.Context, eventID uuid.UUID) ([]models.Allocation, error) {
	var out []models.Allocation
	for _, a := range t.st.allocations {
		if a.EventID == eventID {
			out = append(out, t.withName(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResourceTypeName < out[j].ResourceTypeName })
	return out, nil
}

func (t *memTx) CountAllocations(_ context.Context, eventID uuid.UUID) (int, error) {
	n := 0
	for _, a := range t.st.allocations {
		if a.EventID == eventID {
			n++
		}
	}
	return n, nil
}

// Resource requests

func (t *memTx) InsertResourceRequests(_ context.Context, reqs []*models.ResourceRequest) error {
	for _, r := range reqs {
		if _, ok := t.st.events[r.EventID]; !ok {
			return apperr.NotFound("event", r.EventID)
		}
		rt, ok := t.st.types[r.ResourceTypeID]
		if !ok {
			return apperr.NotFound("resource type", r.ResourceTypeID)
		}
		r.ID = uuid.New()
		r.RequestedAt = t.m.now()
		r.ResourceTypeName = rt.Name
		stored := *r
		stored.ResourceTypeName = ""
		t.st.requests[r.ID] = stored
	}
	return nil
}

func (t *memTx) ListResourceRequests(_ context.Context, eventID *uuid.UUID) ([]models.ResourceRequest, error) {
	var out []models.ResourceRequest
	for _, r := range t.st.requests {
		if eventID != nil && r.EventID != *eventID {
			continue
		}
		r.ResourceTypeName = t.st.types[r.ResourceTypeID].Name
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (t *memTx) LockResourceRequest(_ context.Context, id uuid.UUID) (*models.ResourceRequest, error) {
	r, ok := t.st.requests[id]
	if !ok {
		return nil, apperr.NotFound("resource request", id)
	}
	r.ResourceTypeName = t.st.types[r.ResourceTypeID].Name
	return &r, nil
}

func (t *memTx) SetResourceRequestStatus(_ context.Context, id uuid.UUID, status models.ResourceRequestStatus, reviewer uuid.UUID, at time.Time) error {
	r, ok := t.st.requests[id]
	if !ok {
		return apperr.NotFound("resource request", id)
	}
	r.Status = status
	r.ReviewedBy = &reviewer
	r.ReviewedAt = &at
	t.st.requests[id] = r
	return nil
}

// Registrations

func (t *memTx) InsertRegistration(_ context.Context, r *models.Registration) error {
	if _, ok := t.st.events[r.EventID]; !ok {
		return apperr.NotFound("event", r.EventID)
	}
	for _, other := range t.st.registrations {
		if other.EventID == r.EventID && other.UserID == r.UserID {
			return store.ErrDuplicate
		}
	}
	r.ID = uuid.New()
	r.Attended = false
	r.RegisteredAt = t.m.now()
	t.st.registrations[r.ID] = *r
	return nil
}

func (t *memTx) GetRegistration(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	r, ok := t.st.registrations[id]
	if !ok {
		return nil, apperr.NotFound("registration", id)
	}
	return &r, nil
}

func (t *memTx) LockRegistration(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return t.GetRegistration(ctx, id)
}

func (t *memTx) FindRegistration(_ context.Context, eventID, userID uuid.UUID) (*models.Registration, error) {
	for _, r := range t.st.registrations {
		if r.EventID == eventID && r.UserID == userID {
			return &r, nil
		}
	}
	return nil, nil
}

func (t *memTx) DeleteRegistration(_ context.Context, id uuid.UUID) error {
	if _, ok := t.st.registrations[id]; !ok {
		return apperr.NotFound("registration", id)
	}
	delete(t.st.registrations, id)
	return nil
}

func (t *memTx) SetAttendance(_ context.Context, id uuid.UUID, attended bool, at *time.Time) error {
	r, ok := t.st.registrations[id]
	if !ok {
		return apperr.NotFound("registration", id)
	}
	r.Attended, r.AttendedAt = attended, at
	t.st.registrations[id] = r
	return nil
}

func (t *memTx) listRegistrations(keep func(models.Registration) bool) []models.Registration {
	var out []models.Registration
	for _, r := range t.st.registrations {
		if keep(r) {
			if e, ok := t.st.events[r.EventID]; ok {
				r.EventTitle, r.EventDate = e.Title, e.Date
			}
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.After(out[j].RegisteredAt) })
	return out
}

func (t *memTx) ListRegistrationsByEvent(_ context.Context, eventID uuid.UUID) ([]models.Registration, error) {
	return t.listRegistrations(func(r models.Registration) bool { return r.EventID == eventID }), nil
}

func (t *memTx) ListRegistrationsByUser(_ context.Context, userID uuid.UUID) ([]models.Registration, error) {
	return t.listRegistrations(func(r models.Registration) bool { return r.UserID == userID }), nil
}
