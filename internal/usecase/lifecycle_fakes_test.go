package usecase

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/THEROER/DoubleLife/internal/core/domain"
	"github.com/THEROER/DoubleLife/internal/repository"
)

var errFakeBackend = errors.New("fake backend failure")

type fakeGrantClient struct {
	mu          sync.Mutex
	groups      map[uuid.UUID][]string
	created     map[string]bool
	permissions map[string][]string
	permExpiry  map[string]time.Duration
	members     map[uuid.UUID]map[string]time.Duration
	cleared     []uuid.UUID
	calls       []string
	failOn      map[string]error
}

func newFakeGrantClient() *fakeGrantClient {
	return &fakeGrantClient{
		groups:      make(map[uuid.UUID][]string),
		created:     make(map[string]bool),
		permissions: make(map[string][]string),
		permExpiry:  make(map[string]time.Duration),
		members:     make(map[uuid.UUID]map[string]time.Duration),
		failOn:      make(map[string]error),
	}
}

func (f *fakeGrantClient) record(op string) error {
	f.calls = append(f.calls, op)
	return f.failOn[op]
}

func (f *fakeGrantClient) CreateGroup(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("create_group"); err != nil {
		return err
	}
	f.created[name] = true
	return nil
}

func (f *fakeGrantClient) DeleteGroup(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("delete_group"); err != nil {
		return err
	}
	delete(f.created, name)
	delete(f.permissions, name)
	return nil
}

func (f *fakeGrantClient) AddPermissions(_ context.Context, group string, permissions []string, expiry time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("add_permissions"); err != nil {
		return err
	}
	f.permissions[group] = slices.Clone(permissions)
	f.permExpiry[group] = expiry
	return nil
}

func (f *fakeGrantClient) AddMembership(_ context.Context, id uuid.UUID, group string, expiry time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("add_membership"); err != nil {
		return err
	}
	if f.members[id] == nil {
		f.members[id] = make(map[string]time.Duration)
	}
	f.members[id][group] = expiry
	return nil
}

func (f *fakeGrantClient) RemoveMembership(_ context.Context, id uuid.UUID, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("remove_membership"); err != nil {
		return err
	}
	delete(f.members[id], group)
	return nil
}

func (f *fakeGrantClient) ClearExpiringGrants(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("clear_expiring"); err != nil {
		return err
	}
	f.cleared = append(f.cleared, id)
	return nil
}

func (f *fakeGrantClient) CurrentGroups(_ context.Context, id uuid.UUID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("current_groups"); err != nil {
		return nil, err
	}
	return slices.Clone(f.groups[id]), nil
}

func (f *fakeGrantClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeGrantClient) membership(id uuid.UUID, group string) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.members[id][group]
	return d, ok
}

func (f *fakeGrantClient) opCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeGrantClient) hasCall(op string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.calls, op)
}

type fakeSessionStore struct {
	mu      sync.Mutex
	data    map[uuid.UUID]domain.Session
	loadErr error
	saveErr error
	saves   int
	deletes int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{data: make(map[uuid.UUID]domain.Session)}
}

func (f *fakeSessionStore) Save(_ context.Context, s domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.data[s.PrincipalID] = s.Clone()
	return nil
}

func (f *fakeSessionStore) Load(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	s, ok := f.data[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := s.Clone()
	return &out, nil
}

func (f *fakeSessionStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	delete(f.data, id)
	return nil
}

func (f *fakeSessionStore) get(id uuid.UUID) (domain.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.data[id]
	return s, ok
}

type fakeGateway struct {
	mu         sync.Mutex
	offline    map[uuid.UUID]bool
	onlineErr  error
	snapshot   domain.Snapshot
	captureErr error
	maxHealth  float64
	worlds     map[string]bool
	resets     int
	restores   []domain.RestoreTarget
	told       map[uuid.UUID][]string
	commands   []string
	statuses   int
	removed    int
	calls      int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		offline: make(map[uuid.UUID]bool),
		snapshot: domain.Snapshot{
			Inventory: []domain.Item{{Slot: 0, Data: "c3dvcmQ="}},
			GameMode:  "SURVIVAL",
			Location:  &domain.Location{World: "world", X: 1, Y: 64, Z: 1},
			Health:    18,
			FoodLevel: 17,
			Level:     5,
		},
		maxHealth: 20,
		worlds:    map[string]bool{"world": true},
		told:      make(map[uuid.UUID][]string),
	}
}

func (f *fakeGateway) IsOnline(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.onlineErr != nil {
		return false, f.onlineErr
	}
	return !f.offline[id], nil
}

func (f *fakeGateway) Capture(context.Context, uuid.UUID) (domain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.captureErr != nil {
		return domain.Snapshot{}, f.captureErr
	}
	return f.snapshot.Clone(), nil
}

func (f *fakeGateway) Reset(context.Context, uuid.UUID, domain.Baseline) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.resets++
	return nil
}

func (f *fakeGateway) Restore(_ context.Context, _ uuid.UUID, target domain.RestoreTarget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.restores = append(f.restores, target)
	return nil
}

func (f *fakeGateway) MaxHealth(context.Context, uuid.UUID) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.maxHealth, nil
}

func (f *fakeGateway) WorldExists(_ context.Context, world string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.worlds[world], nil
}

func (f *fakeGateway) Tell(_ context.Context, id uuid.UUID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.told[id] = append(f.told[id], message)
	return nil
}

func (f *fakeGateway) DispatchCommand(_ context.Context, command string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.commands = append(f.commands, command)
	return nil
}

func (f *fakeGateway) ShowStatus(context.Context, uuid.UUID, domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.statuses++
	return nil
}

func (f *fakeGateway) RemoveStatus(context.Context, uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.removed++
	return nil
}

func (f *fakeGateway) setOffline(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline[id] = true
}

func (f *fakeGateway) messages(id uuid.UUID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.told[id])
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEventPublisher struct {
	mu             sync.Mutex
	started        []domain.SessionStartedEvent
	ended          []domain.SessionEndedEvent
	expiredOffline []domain.SessionExpiredOfflineEvent
	restored       []domain.SessionRestoredEvent
}

func (f *fakeEventPublisher) PublishSessionStarted(_ context.Context, e domain.SessionStartedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, e)
	return nil
}

func (f *fakeEventPublisher) PublishSessionEnded(_ context.Context, e domain.SessionEndedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, e)
	return nil
}

func (f *fakeEventPublisher) PublishSessionExpiredOffline(_ context.Context, e domain.SessionExpiredOfflineEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expiredOffline = append(f.expiredOffline, e)
	return nil
}

func (f *fakeEventPublisher) PublishSessionRestored(_ context.Context, e domain.SessionRestoredEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored = append(f.restored, e)
	return nil
}

type endedNotice struct {
	session domain.Session
	reason  string
}

type fakeNotifier struct {
	mu      sync.Mutex
	started []domain.Session
	ended   []endedNotice
	actions []domain.ActionEvent
	closed  bool
}

func (f *fakeNotifier) SessionStarted(s domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, s)
	return nil
}

func (f *fakeNotifier) SessionEnded(s domain.Session, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, endedNotice{session: s, reason: reason})
	return nil
}

func (f *fakeNotifier) Action(e domain.ActionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrDispatcherClosed
	}
	f.actions = append(f.actions, e)
	return nil
}

func (f *fakeNotifier) SystemEnabled(string) error  { return nil }
func (f *fakeNotifier) SystemDisabled(string) error { return nil }

func (f *fakeNotifier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}
