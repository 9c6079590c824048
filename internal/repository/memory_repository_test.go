package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bookstore/auth-service/internal/domain"
)

func newSeededStore() *MemoryStore {
	return NewMemoryStore(domain.RoleEmployee, domain.RoleBookManager, domain.RoleAdmin)
}

func TestMemoryStoreCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore()

	user := &domain.User{
		Username:     "alice",
		Name:         "Alice",
		Phone:        "555-0100",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		Roles:        []string{domain.RoleEmployee, "UNKNOWN"},
	}
	require.NoError(t, store.Create(ctx, user))
	require.NotEmpty(t, user.ID)

	cred, err := store.LookupCredential(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "hash", cred.PasswordHash)
	require.Equal(t, []string{domain.RoleEmployee}, cred.Roles)

	identity, err := store.LookupIdentityByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, identity.ID)
	require.Empty(t, identity.PasswordHash)

	byID, err := store.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", byID.Username)
}

func TestMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore()

	_, err := store.LookupCredential(ctx, "ghost")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.LookupIdentityByEmail(ctx, "ghost@example.com")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetByID(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.LookupRoleByName(ctx, "employee")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, store.UpdatePasswordByEmail(ctx, "ghost@example.com", "x"), ErrNotFound)
}

func TestMemoryStoreRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore()

	require.NoError(t, store.Create(ctx, &domain.User{Username: "alice", Email: "a@example.com"}))

	err := store.Create(ctx, &domain.User{Username: "alice", Email: "other@example.com"})
	require.ErrorIs(t, err, ErrConflict)
	err = store.Create(ctx, &domain.User{Username: "bob", Email: "a@example.com"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestMemoryStoreAssignRoleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore()

	user := &domain.User{Username: "alice", Email: "a@example.com", Roles: []string{domain.RoleEmployee}}
	require.NoError(t, store.Create(ctx, user))

	admin, err := store.LookupRoleByName(ctx, domain.RoleAdmin)
	require.NoError(t, err)

	require.NoError(t, store.AssignRole(ctx, user.ID, admin.ID))
	require.NoError(t, store.AssignRole(ctx, user.ID, admin.ID))

	got, err := store.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, []string{domain.RoleAdmin, domain.RoleEmployee}, got.Roles)

	require.ErrorIs(t, store.AssignRole(ctx, "missing", admin.ID), ErrNotFound)
	require.ErrorIs(t, store.AssignRole(ctx, user.ID, "missing"), ErrNotFound)
}

func TestMemoryStoreUpdatePassword(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore()
	require.NoError(t, store.Create(ctx, &domain.User{Username: "alice", Email: "a@example.com", PasswordHash: "old"}))

	require.NoError(t, store.UpdatePasswordByEmail(ctx, "a@example.com", "new"))

	cred, err := store.LookupCredential(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "new", cred.PasswordHash)
}
