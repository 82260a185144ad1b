package broker_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskrooms/taskrooms/internal/broker"
	"github.com/taskrooms/taskrooms/internal/model"
)

func TestRegistrySubscribeAndSnapshot(t *testing.T) {
	r := broker.NewRegistry()
	a := &fakeConn{id: "a", user: &model.User{ID: 1, Username: "a"}}
	b := &fakeConn{id: "b", user: &model.User{ID: 2, Username: "b"}}

	r.Subscribe(a, "one")
	r.Subscribe(a, "one") // repeat is a no-op
	r.Subscribe(a, "two")
	r.Subscribe(b, "one")

	require.Len(t, r.SubscribersOf("one"), 2)
	require.Len(t, r.SubscribersOf("two"), 1)
	require.Empty(t, r.SubscribersOf("three"))
	require.ElementsMatch(t, []string{"one", "two"}, r.Rooms(a))
	require.ElementsMatch(t, []string{"one"}, r.Rooms(b))
}

func TestRegistryUnsubscribeAll(t *testing.T) {
	r := broker.NewRegistry()
	a := &fakeConn{id: "a", user: &model.User{ID: 1, Username: "a"}}
	b := &fakeConn{id: "b", user: &model.User{ID: 2, Username: "b"}}
	r.Subscribe(a, "one")
	r.Subscribe(a, "two")
	r.Subscribe(b, "one")

	r.UnsubscribeAll(a)

	require.Empty(t, r.Rooms(a))
	require.Len(t, r.SubscribersOf("one"), 1)
	require.Equal(t, "b", r.SubscribersOf("one")[0].ID())
	require.Empty(t, r.SubscribersOf("two"))

	// Removing an unknown connection is harmless.
	r.UnsubscribeAll(a)
}

func TestRegistryConcurrentChurn(t *testing.T) {
	r := broker.NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := &fakeConn{id: fmt.Sprintf("c%d", n), user: &model.User{ID: int64(n)}}
			for j := 0; j < 50; j++ {
				r.Subscribe(c, "busy")
				_ = r.SubscribersOf("busy")
				_ = r.Rooms(c)
				r.UnsubscribeAll(c)
			}
		}(i)
	}
	wg.Wait()
	require.Empty(t, r.SubscribersOf("busy"))
}
