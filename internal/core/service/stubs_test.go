package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/hms/hospital-auth/internal/core/domain"
	"github.com/hms/hospital-auth/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Credential repository
// ---------------------------------------------------------------------------

type stubCredRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.User
	nextID  int
	findErr error
	lookups int
}

func newStubCredRepo() *stubCredRepo {
	return &stubCredRepo{byID: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func (r *stubCredRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	for _, u := range r.byID {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubCredRepo) FindActiveByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.find(func(u *domain.User) bool { return u.Username == username && u.IsActive })
}

func (r *stubCredRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r *stubCredRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubCredRepo) List(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *stubCredRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Username == user.Username {
			return nil, domain.ErrUserExists
		}
	}
	r.nextID++
	c := cloneUser(user)
	c.ID = strconv.Itoa(r.nextID)
	r.byID[c.ID] = c
	return cloneUser(c), nil
}

func (r *stubCredRepo) update(id string, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(u)
	return nil
}

func (r *stubCredRepo) UpdateUsername(_ context.Context, id, username string) error {
	r.mu.Lock()
	for _, u := range r.byID {
		if u.Username == username && u.ID != id {
			r.mu.Unlock()
			return domain.ErrUserExists
		}
	}
	r.mu.Unlock()
	return r.update(id, func(u *domain.User) { u.Username = username })
}

func (r *stubCredRepo) UpdateRole(_ context.Context, id string, role domain.Role) error {
	return r.update(id, func(u *domain.User) { u.Role = role })
}

func (r *stubCredRepo) UpdateStatus(_ context.Context, id string, active bool) error {
	return r.update(id, func(u *domain.User) { u.IsActive = active })
}

func (r *stubCredRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return r.update(id, func(u *domain.User) { u.PasswordHash = hash })
}

func (r *stubCredRepo) ReplacePasswordHash(_ context.Context, id, current, next string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok || u.PasswordHash != current {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = next
	return nil
}

func (r *stubCredRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *domain.User) { u.LastLogin = &at })
}

func (r *stubCredRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *stubCredRepo) lookupCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups
}

// ---------------------------------------------------------------------------
// Audit repository
// ---------------------------------------------------------------------------

type stubAuditRepo struct {
	mu        sync.Mutex
	events    []*domain.AuditEvent
	insertErr error
}

func (r *stubAuditRepo) Insert(_ context.Context, ev *domain.AuditEvent) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *ev
	r.events = append(r.events, &c)
	return nil
}

func (r *stubAuditRepo) List(_ context.Context, f ports.AuditFilter) ([]*domain.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AuditEvent
	for i := len(r.events) - 1; i >= 0 && len(out) < f.Limit; i-- {
		out = append(out, r.events[i])
	}
	return out, nil
}

func (r *stubAuditRepo) types() []domain.AuditEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func (r *stubAuditRepo) count(t domain.AuditEventType) int {
	n := 0
	for _, got := range r.types() {
		if got == t {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Misc
// ---------------------------------------------------------------------------

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.SessionEvent
}

func (n *recordingNotifier) Notify(ev domain.SessionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) ofType(t domain.SessionEventType) []domain.SessionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.SessionEvent
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type recordingLastLogin struct {
	mu    sync.Mutex
	calls map[string]time.Time
}

func (r *recordingLastLogin) RecordLastLogin(userID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string]time.Time)
	}
	r.calls[userID] = at
}

type recordingUpgrader struct {
	mu    sync.Mutex
	repo  *stubCredRepo
	calls int
	errs  []error
}

// UpgradePasswordHash applies the rehash inline, as the dispatcher would.
func (u *recordingUpgrader) UpgradePasswordHash(userID, current string, hash func() (string, error)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	next, err := hash()
	if err == nil {
		err = u.repo.ReplacePasswordHash(context.Background(), userID, current, next)
	}
	u.errs = append(u.errs, err)
}

func (u *recordingUpgrader) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

type failingSessionStore struct{}

var errStoreDown = errors.New("connection refused")

func (failingSessionStore) Save(context.Context, *domain.Session, time.Duration) error {
	return errStoreDown
}
func (failingSessionStore) Get(context.Context, string) (*domain.Session, error) {
	return nil, errStoreDown
}
func (failingSessionStore) Delete(context.Context, string) error { return errStoreDown }
func (failingSessionStore) List(context.Context) ([]*domain.Session, error) {
	return nil, errStoreDown
}
func (failingSessionStore) MarkWarned(context.Context, string, time.Time) (bool, error) {
	return false, errStoreDown
}

// touchingSessionStore runs onList after each List snapshot is taken, to
// interleave a request with the monitor tick.
type touchingSessionStore struct {
	ports.SessionStore
	onList func()
}

func (s *touchingSessionStore) List(ctx context.Context) ([]*domain.Session, error) {
	out, err := s.SessionStore.List(ctx)
	if s.onList != nil {
		s.onList()
	}
	return out, err
}
