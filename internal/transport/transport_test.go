package transport

import (
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector накапливает кадры из горутин транспорта
type collector struct {
	mu     sync.Mutex
	frames []string
}

func (c *collector) handle(frame []byte) {
	c.mu.Lock()
	c.frames = append(c.frames, string(frame))
	c.mu.Unlock()
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func (c *collector) waitFor(t *testing.T, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool { return len(c.snapshot()) >= n }, 2*time.Second, 5*time.Millisecond)
	return c.snapshot()
}

func TestMemoryHubDeliversInOrder(t *testing.T) {
	hub := NewMemoryHub(8)
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var a, b collector
	require.NoError(t, hub.Subscribe(ctx, a.handle))
	require.NoError(t, hub.Subscribe(ctx, b.handle))

	for _, f := range []string{"one", "two", "three"} {
		require.NoError(t, hub.Publish(ctx, []byte(f)))
	}

	assert.Equal(t, []string{"one", "two", "three"}, a.waitFor(t, 3))
	assert.Equal(t, []string{"one", "two", "three"}, b.waitFor(t, 3))
	assert.Equal(t, uint64(3), hub.Stats().Published)
}

func TestMemoryHubUnsubscribeOnCancel(t *testing.T) {
	hub := NewMemoryHub(8)
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var c collector
	require.NoError(t, hub.Subscribe(ctx, c.handle))
	require.NoError(t, hub.Publish(context.Background(), []byte("before")))
	c.waitFor(t, 1)

	cancel()
	require.Eventually(t, func() bool {
		hub.subMu.RLock()
		defer hub.subMu.RUnlock()
		return len(hub.subscribers) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), []byte("after")))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"before"}, c.snapshot(), "после отмены контекста кадры не доставляются")
}

func TestMemoryHubClosed(t *testing.T) {
	hub := NewMemoryHub(1)
	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close(), "повторное закрытие безопасно")

	assert.ErrorIs(t, hub.Publish(context.Background(), []byte("x")), ErrClosed)
	assert.ErrorIs(t, hub.Subscribe(context.Background(), func([]byte) {}), ErrClosed)
}

func TestMemoryHubCopiesFrame(t *testing.T) {
	hub := NewMemoryHub(4)
	defer hub.Close()

	var c collector
	require.NoError(t, hub.Subscribe(context.Background(), c.handle))

	buf := []byte("abc")
	require.NoError(t, hub.Publish(context.Background(), buf))
	buf[0] = 'z'
	assert.Equal(t, []string{"abc"}, c.waitFor(t, 1))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketHubRelaysBetweenClients(t *testing.T) {
	hub := NewWebSocketHub(16)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice, err := DialWebSocket(ctx, wsURL(srv))
	require.NoError(t, err)
	defer alice.Close()
	bob, err := DialWebSocket(ctx, wsURL(srv))
	require.NoError(t, err)
	defer bob.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 5*time.Millisecond)

	var atHub, atAlice, atBob collector
	require.NoError(t, hub.Subscribe(ctx, atHub.handle))
	require.NoError(t, alice.Subscribe(ctx, atAlice.handle))
	require.NoError(t, bob.Subscribe(ctx, atBob.handle))

	require.NoError(t, alice.Publish(ctx, []byte("from-alice")))
	assert.Equal(t, []string{"from-alice"}, atBob.waitFor(t, 1))
	assert.Equal(t, []string{"from-alice"}, atHub.waitFor(t, 1))

	require.NoError(t, hub.Publish(ctx, []byte("from-hub")))
	assert.Contains(t, atAlice.waitFor(t, 1), "from-hub")
	assert.Contains(t, atBob.waitFor(t, 2), "from-hub")
	assert.NotContains(t, atAlice.snapshot(), "from-alice", "клиент не получает собственный кадр")
}

func TestWebSocketHubClose(t *testing.T) {
	hub := NewWebSocketHub(4)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	client, err := DialWebSocket(context.Background(), wsURL(srv))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Close())
	assert.Equal(t, 0, hub.Clients())
	assert.ErrorIs(t, hub.Publish(context.Background(), []byte("x")), ErrClosed)

	require.Eventually(t, func() bool {
		return client.Subscribe(context.Background(), func([]byte) {}) != nil
	}, 2*time.Second, 10*time.Millisecond, "клиент замечает закрытие соединения хабом")
}

func TestDialWebSocketFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := DialWebSocket(ctx, "ws://127.0.0.1:1/ws")
	assert.Error(t, err)
}

func TestNATSConnectFails(t *testing.T) {
	_, err := NewNATSBus(NATSConfig{URL: "nats://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	assert.Error(t, err)
}

func TestRedisBadURL(t *testing.T) {
	_, err := NewRedisBus(context.Background(), RedisConfig{URL: "not-a-url"})
	assert.Error(t, err)
}

func TestNATSRoundTrip(t *testing.T) {
	url := os.Getenv("VOXEL_TEST_NATS_URL")
	if url == "" {
		t.Skip("VOXEL_TEST_NATS_URL не задан")
	}
	bus, err := NewNATSBus(NATSConfig{URL: url, Subject: "voxel.test." + t.Name()})
	require.NoError(t, err)
	defer bus.Close()

	var c collector
	require.NoError(t, bus.Subscribe(context.Background(), c.handle))
	require.NoError(t, bus.conn.Flush())
	require.NoError(t, bus.Publish(context.Background(), []byte("ping")))
	assert.Equal(t, []string{"ping"}, c.waitFor(t, 1))
}

func TestRedisRoundTrip(t *testing.T) {
	url := os.Getenv("VOXEL_TEST_REDIS_URL")
	if url == "" {
		t.Skip("VOXEL_TEST_REDIS_URL не задан")
	}
	ctx := context.Background()
	bus, err := NewRedisBus(ctx, RedisConfig{URL: url, Channel: "voxel.test." + t.Name()})
	require.NoError(t, err)
	defer bus.Close()

	var c collector
	require.NoError(t, bus.Subscribe(ctx, c.handle))
	require.NoError(t, bus.Publish(ctx, []byte("ping")))
	assert.Equal(t, []string{"ping"}, c.waitFor(t, 1))
}
