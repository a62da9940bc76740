package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dollhouse/pkg/bot"
	"dollhouse/pkg/channel"
	"dollhouse/pkg/config"
	"dollhouse/pkg/logger"
	"dollhouse/pkg/store"
	"dollhouse/pkg/store/sqlite"

	"github.com/stretchr/testify/require"
)

type scriptedAdapter struct {
	name    string
	inbound []channel.Inbound

	mu      sync.Mutex
	replies []channel.Reply
	done    chan struct{}
}

func (a *scriptedAdapter) Name() string {
	return a.name
}

func (a *scriptedAdapter) Run(ctx context.Context, handler channel.Handler) error {
	for _, inbound := range a.inbound {
		reply, _ := handler(ctx, inbound)

		a.mu.Lock()
		a.replies = append(a.replies, reply)
		a.mu.Unlock()
	}

	close(a.done)

	<-ctx.Done()
	return nil
}

func (a *scriptedAdapter) snapshot() []channel.Reply {
	a.mu.Lock()
	defer a.mu.Unlock()

	replies := make([]channel.Reply, len(a.replies))
	copy(replies, a.replies)
	return replies
}

type toggledPinger struct {
	mu  sync.Mutex
	err error
}

func (p *toggledPinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *toggledPinger) set(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "dollhouse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestGatewayServiceRunE2EBridgesIntoStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := openStore(t)
	catalog, err := bot.DefaultCatalog()
	require.NoError(t, err)
	bridge := channel.NewBridge(st, catalog, logger.Discard())

	adapter := &scriptedAdapter{
		name: "telegram",
		inbound: []channel.Inbound{
			{Channel: "telegram", SenderID: "100", SenderName: "Ada", Content: "/start"},
			{Channel: "telegram", SenderID: "100", SenderName: "Ada", Content: "one"},
			{Channel: "telegram", SenderID: "100", SenderName: "Ada", Content: "two"},
			{Channel: "telegram", SenderID: "200", SenderName: "Bo", Content: "three"},
		},
		done: make(chan struct{}),
	}

	port := freeTCPPort(t)
	svc, err := NewService(config.GatewayConfig{Host: "127.0.0.1", Port: port}, st, bridge.Handle, []channel.Adapter{adapter}, logger.Discard())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Run(ctx)
	}()

	select {
	case <-adapter.done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for adapter scripted messages")
	}

	readyURL := fmt.Sprintf("http://127.0.0.1:%d/readyz", port)
	require.Equal(t, http.StatusOK, waitHTTPStatus(t, readyURL, 2*time.Second))

	response, err := http.Get(readyURL)
	require.NoError(t, err)
	var status statusResponse
	require.NoError(t, json.NewDecoder(response.Body).Decode(&status))
	require.NoError(t, response.Body.Close())
	require.Equal(t, "ready", status.Status)
	require.Equal(t, int64(4), status.Bridged)
	require.True(t, status.Channels["telegram"].Running)

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for service run to exit")
	}

	replies := adapter.snapshot()
	require.Len(t, replies, 4)
	require.Contains(t, replies[0].Content, "Welcome")

	characters, err := st.FetchCharacters(context.Background())
	require.NoError(t, err)
	require.Len(t, characters, 2)

	messages, err := st.FetchRecentMessages(context.Background(), store.DefaultRecentMessages)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	require.Equal(t, "three", messages[0].Content)
	require.Equal(t, "Bo", messages[0].Character.Name)
	require.Equal(t, messages[1].CharacterID, messages[2].CharacterID)
}

func TestGatewayServiceRunFailsWhenStoreIsDown(t *testing.T) {
	pinger := &toggledPinger{err: fmt.Errorf("database is locked")}
	adapter := &scriptedAdapter{name: "telegram", done: make(chan struct{})}
	handler := func(context.Context, channel.Inbound) (channel.Reply, error) { return channel.Reply{}, nil }

	svc, err := NewService(config.GatewayConfig{Host: "127.0.0.1", Port: freeTCPPort(t)}, pinger, handler, []channel.Adapter{adapter}, logger.Discard())
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.ErrorContains(t, err, "database is locked")
}

func TestGatewayServiceReadyzTransitionsOnStoreHealthRecovery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pinger := &toggledPinger{}
	port := freeTCPPort(t)
	adapter := &scriptedAdapter{name: "telegram", done: make(chan struct{})}
	handler := func(context.Context, channel.Inbound) (channel.Reply, error) { return channel.Reply{}, nil }

	svc, err := NewService(config.GatewayConfig{Host: "127.0.0.1", Port: port}, pinger, handler, []channel.Adapter{adapter}, logger.Discard())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Run(ctx)
	}()

	select {
	case <-adapter.done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for adapter to start")
	}

	readyURL := fmt.Sprintf("http://127.0.0.1:%d/readyz", port)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/healthz", port)
	require.Equal(t, http.StatusOK, waitHTTPStatus(t, readyURL, 2*time.Second))

	pinger.set(fmt.Errorf("temporary outage"))
	require.Error(t, svc.checkStoreHealth(context.Background()))
	require.Equal(t, http.StatusServiceUnavailable, waitHTTPStatus(t, readyURL, 2*time.Second))
	require.Equal(t, http.StatusOK, waitHTTPStatus(t, healthURL, 2*time.Second))

	pinger.set(nil)
	require.NoError(t, svc.checkStoreHealth(context.Background()))
	require.Equal(t, http.StatusOK, waitHTTPStatus(t, readyURL, 2*time.Second))

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for service run to exit")
	}
}

func waitHTTPStatus(t *testing.T, url string, timeout time.Duration) int {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		response, err := http.Get(url)
		if err == nil {
			statusCode := response.StatusCode
			require.NoError(t, response.Body.Close())
			return statusCode
		}

		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s: %v", url, err)
		}

		time.Sleep(25 * time.Millisecond)
	}
}

func freeTCPPort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	addr, ok := listener.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return addr.Port
}
