// Package memory is an in-process store.Store guarded by a single mutex.
package memory

import (
	"context"
	"sync"

	"github.com/MrEthical07/goSession/store"
)

type tokenKey struct {
	family store.Family
	id     string
}

// Store keeps users and tokens in maps. Records are copied on the way in and
// out so callers never share memory with the store.
type Store struct {
	mu      sync.Mutex
	users   map[string]*store.User
	byEmail map[string]string
	tokens  map[tokenKey]store.TokenRecord
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:   make(map[string]*store.User),
		byEmail: make(map[string]string),
		tokens:  make(map[tokenKey]store.TokenRecord),
	}
}

func (s *Store) CreateUser(_ context.Context, user *store.User) error {
	email := store.NormalizeEmail(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[email]; taken {
		return store.ErrUserExists
	}
	if _, taken := s.users[user.ID]; taken {
		return store.ErrUserExists
	}

	c := user.Clone()
	c.Email = email
	s.users[c.ID] = c
	s.byEmail[email] = c.ID
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[store.NormalizeEmail(email)]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return s.users[id].Clone(), nil
}

func (s *Store) UpdateUser(_ context.Context, user *store.User) error {
	email := store.NormalizeEmail(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[user.ID]
	if !ok {
		return store.ErrUserNotFound
	}
	if owner, taken := s.byEmail[email]; taken && owner != user.ID {
		return store.ErrUserExists
	}

	delete(s.byEmail, current.Email)
	c := user.Clone()
	c.Email = email
	s.users[c.ID] = c
	s.byEmail[email] = c.ID
	return nil
}

func (s *Store) SaveToken(_ context.Context, family store.Family, rec *store.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[tokenKey{family, rec.ID}] = *rec
	return nil
}

func (s *Store) GetToken(_ context.Context, family store.Family, id string) (*store.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tokens[tokenKey{family, id}]
	if !ok {
		return nil, store.ErrTokenNotFound
	}
	return &rec, nil
}

func (s *Store) DeleteToken(_ context.Context, family store.Family, id string) (*store.TokenRecord, error) {
	key := tokenKey{family, id}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tokens[key]
	if !ok {
		return nil, store.ErrTokenNotFound
	}
	delete(s.tokens, key)
	return &rec, nil
}

// TokenCount returns the number of stored records in family.
func (s *Store) TokenCount(family store.Family) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.tokens {
		if k.family == family {
			n++
		}
	}
	return n
}
