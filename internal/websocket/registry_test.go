package websocket

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	conn := &fakeTransport{}

	_, ok := r.Lookup("u1")
	require.False(t, ok)
	require.False(t, r.IsOnline("u1"))

	r.Register("u1", conn)

	got, ok := r.Lookup("u1")
	require.True(t, ok)
	require.Same(t, conn, got.(*fakeTransport))
	require.True(t, r.IsOnline("u1"))
	require.Equal(t, 1, r.Count())
}

func TestRegistryRegisterClosesSupersededTransport(t *testing.T) {
	r := NewRegistry()
	first := &fakeTransport{}
	second := &fakeTransport{}

	r.Register("u1", first)
	r.Register("u1", second)

	require.True(t, first.isClosed())
	require.False(t, second.isClosed())

	got, ok := r.Lookup("u1")
	require.True(t, ok)
	require.Same(t, second, got.(*fakeTransport))
	require.Equal(t, 1, r.Count())
}

func TestRegistryUnregisterIgnoresStaleHandle(t *testing.T) {
	r := NewRegistry()
	first := &fakeTransport{}
	second := &fakeTransport{}

	r.Register("u1", first)
	r.Register("u1", second)

	// The superseded connection's teardown must not evict the new one.
	require.False(t, r.Unregister("u1", first))
	require.True(t, r.IsOnline("u1"))

	require.True(t, r.Unregister("u1", second))
	require.False(t, r.IsOnline("u1"))
	require.False(t, r.Unregister("u1", second))
}

func TestRegistryListOnline(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", &fakeTransport{})
	r.Register("u2", &fakeTransport{})
	r.Register("u3", &fakeTransport{})
	require.True(t, r.Unregister("u2", mustLookup(t, r, "u2")))

	require.ElementsMatch(t, []string{"u1", "u3"}, r.ListOnline())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("u%d", i%8)
			conn := &fakeTransport{}
			r.Register(id, conn)
			r.IsOnline(id)
			r.ListOnline()
			r.Unregister(id, conn)
		}(i)
	}
	wg.Wait()

	require.Equal(t, len(r.ListOnline()), r.Count())
}

func mustLookup(t *testing.T, r *Registry, userID string) Transport {
	t.Helper()
	conn, ok := r.Lookup(userID)
	require.True(t, ok)
	return conn
}
