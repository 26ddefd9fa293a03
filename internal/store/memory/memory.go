// Package memory implements store.Store with maps guarded by a single
// RWMutex. It mirrors the SQLite backend's uniqueness and cascade rules and
// is used for development runs and tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dukerupert/smartcart/internal/model"
	"github.com/dukerupert/smartcart/internal/store"
)

var _ store.Store = (*Store)(nil)

type memberKey struct {
	householdID int64
	userID      int64
}

type purchase struct {
	rec model.PurchaseRecord
	key string
}

type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	lastID map[string]int64

	users        map[int64]*model.User
	usersByEmail map[string]int64

	households  map[int64]*model.Household
	inviteCodes map[string]int64
	members     map[memberKey]*model.HouseholdMember

	items   map[int64]*model.Item
	history []purchase

	subs           map[int64]*model.PushSubscription
	subsByEndpoint map[string]int64
}

type Option func(*Store)

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		now:            time.Now,
		lastID:         make(map[string]int64),
		users:          make(map[int64]*model.User),
		usersByEmail:   make(map[string]int64),
		households:     make(map[int64]*model.Household),
		inviteCodes:    make(map[string]int64),
		members:        make(map[memberKey]*model.HouseholdMember),
		items:          make(map[int64]*model.Item),
		subs:           make(map[int64]*model.PushSubscription),
		subsByEndpoint: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Close() error {
	return nil
}

// nextID must be called with mu held for writing.
func (s *Store) nextID(table string) int64 {
	s.lastID[table]++
	return s.lastID[table]
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

func duplicate(what string) error {
	return fmt.Errorf("%s: %w", what, store.ErrDuplicate)
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

// --- Users ---

func (s *Store) CreateUser(_ context.Context, name, email, passwordHash string) (*model.User, error) {
	email = store.NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByEmail[email]; ok {
		return nil, duplicate("insert user")
	}
	u := &model.User{
		ID:           s.nextID("users"),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    s.timestamp(),
	}
	s.users[u.ID] = u
	s.usersByEmail[email] = u.ID
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	id, ok := s.usersByEmail[store.NormalizeEmail(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s.GetUserByID(ctx, id)
}

// --- Push subscriptions ---

func (s *Store) SaveSubscription(_ context.Context, userID int64, endpoint, p256dh, auth string) (*model.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.subsByEndpoint[endpoint]; ok {
		sub := s.subs[id]
		sub.UserID = userID
		sub.P256dhKey = p256dh
		sub.AuthKey = auth
		cp := *sub
		return &cp, nil
	}
	sub := &model.PushSubscription{
		ID:        s.nextID("push_subscriptions"),
		UserID:    userID,
		Endpoint:  endpoint,
		P256dhKey: p256dh,
		AuthKey:   auth,
		CreatedAt: s.timestamp(),
	}
	s.subs[sub.ID] = sub
	s.subsByEndpoint[endpoint] = sub.ID
	cp := *sub
	return &cp, nil
}

func (s *Store) DeleteSubscription(_ context.Context, userID, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok || sub.UserID != userID {
		return false, nil
	}
	delete(s.subs, id)
	delete(s.subsByEndpoint, sub.Endpoint)
	return true, nil
}

func (s *Store) DeleteSubscriptionByEndpoint(_ context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.subsByEndpoint[endpoint]; ok {
		delete(s.subs, id)
		delete(s.subsByEndpoint, endpoint)
	}
	return nil
}

func (s *Store) ListSubscriptionsForHousehold(_ context.Context, householdID int64) ([]model.PushSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var subs []model.PushSubscription
	for _, sub := range s.subs {
		if _, ok := s.members[memberKey{householdID, sub.UserID}]; ok {
			subs = append(subs, *sub)
		}
	}
	slices.SortFunc(subs, func(a, b model.PushSubscription) int { return cmp.Compare(a.ID, b.ID) })
	return subs, nil
}
