package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bookstore/auth-service/internal/domain"
)

// MemoryStore implements UserRepository and RoleRepository in process
// memory. It backs the service when no Postgres DSN is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]*domain.User
	roles  map[string]domain.Role
	grants map[string]map[string]struct{}
	now    func() time.Time
}

var (
	_ UserRepository = (*MemoryStore)(nil)
	_ RoleRepository = (*MemoryStore)(nil)
)

// NewMemoryStore returns a store seeded with the given role names.
func NewMemoryStore(roleNames ...string) *MemoryStore {
	s := &MemoryStore{
		users:  make(map[string]*domain.User),
		roles:  make(map[string]domain.Role),
		grants: make(map[string]map[string]struct{}),
		now:    time.Now,
	}
	for _, name := range roleNames {
		s.roles[name] = domain.Role{ID: uuid.NewString(), Name: name}
	}
	return s
}

func (s *MemoryStore) LookupRoleByName(_ context.Context, name string) (*domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &role, nil
}

func (s *MemoryStore) LookupCredential(_ context.Context, username string) (*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return &domain.Credential{
				Username:     u.Username,
				PasswordHash: u.PasswordHash,
				Roles:        s.roleNamesLocked(u.ID),
			}, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) LookupIdentityByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return s.identityLocked(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.identityLocked(u), nil
}

func (s *MemoryStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username || u.Email == user.Email || (user.Phone != "" && u.Phone == user.Phone) {
			return ErrConflict
		}
	}

	now := s.now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	stored.Roles = nil
	s.users[user.ID] = &stored

	granted := make(map[string]struct{}, len(user.Roles))
	for _, name := range user.Roles {
		if role, ok := s.roles[name]; ok {
			granted[role.ID] = struct{}{}
		}
	}
	s.grants[user.ID] = granted
	return nil
}

func (s *MemoryStore) UpdatePasswordByEmail(_ context.Context, email, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			u.PasswordHash = passwordHash
			u.UpdatedAt = s.now()
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) AssignRole(_ context.Context, userID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return ErrNotFound
	}
	known := false
	for _, role := range s.roles {
		if role.ID == roleID {
			known = true
			break
		}
	}
	if !known {
		return ErrNotFound
	}
	s.grants[userID][roleID] = struct{}{}
	return nil
}

func (s *MemoryStore) identityLocked(u *domain.User) *domain.User {
	out := *u
	out.PasswordHash = ""
	out.Roles = s.roleNamesLocked(u.ID)
	return &out
}

func (s *MemoryStore) roleNamesLocked(userID string) []string {
	names := make([]string, 0, len(s.grants[userID]))
	for _, role := range s.roles {
		if _, ok := s.grants[userID][role.ID]; ok {
			names = append(names, role.Name)
		}
	}
	sort.Strings(names)
	return names
}
