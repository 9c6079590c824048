package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var got []string
	d.Subscribe(EventLoginSucceeded, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.Subject)
		return nil
	})
	d.Subscribe(EventLoginSucceeded, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.Subject)
		return nil
	})
	d.Subscribe(EventLoginFailed, func(context.Context, Event) error {
		t.Fatal("unexpected delivery")
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), New(EventLoginSucceeded, "alice", time.Now(), nil)))
	require.Equal(t, []string{"first:alice", "second:alice"}, got)
}

func TestDispatcherRunsAllHandlersAndJoinsErrors(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("boom")

	calls := 0
	d.Subscribe(EventTokenRevoked, func(context.Context, Event) error {
		calls++
		return boom
	})
	d.Subscribe(EventTokenRevoked, func(context.Context, Event) error {
		calls++
		return nil
	})

	err := d.Publish(context.Background(), New(EventTokenRevoked, "alice", time.Now(), nil))
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, calls)
}

func TestNewAssignsDistinctIDs(t *testing.T) {
	now := time.Now()
	a := New(EventRoleAssigned, "alice", now, RoleAssignedPayload{UserID: "1", Role: "ADMIN"})
	b := New(EventRoleAssigned, "alice", now, nil)
	require.NotEqual(t, a.ID, b.ID)
	require.Equal(t, now, a.Timestamp)
}
