package bubble

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Set(ms int64) { c.now = epoch.Add(time.Duration(ms) * time.Millisecond) }

func newTestManager() (*Manager, *fakeClock) {
	clock := &fakeClock{now: epoch}
	return NewManager(WithClock(clock.Now)), clock
}

func TestPostOverwritesPreviousBubble(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager()
	m.Post("alice", "first")
	messages := m.Post("alice", "second")

	require.Len(t, messages, 1)
	require.Equal(t, "second", messages["alice"].Content)
	require.Equal(t, 1.0, messages["alice"].Opacity)
}

func TestPostResetsTimer(t *testing.T) {
	t.Parallel()

	m, clock := newTestManager()
	m.Post("alice", "first")

	clock.Set(6000)
	m.Post("alice", "second")

	clock.Set(8000)
	messages, _ := m.Tick()
	require.Equal(t, "second", messages["alice"].Content)
	require.Equal(t, 1.0, messages["alice"].Opacity)
}

func TestPostAcceptsBlankContent(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager()
	messages := m.Post("alice", "  ")
	require.Contains(t, messages, "alice")
}

func TestTickFadeCurve(t *testing.T) {
	t.Parallel()

	m, clock := newTestManager()
	m.Post("alice", "hello")

	previous := 2.0
	for ms := int64(0); ms <= 7500; ms += 100 {
		clock.Set(ms)
		messages, _ := m.Tick()
		msg, ok := messages["alice"]

		switch {
		case ms < 5000:
			require.True(t, ok, "bubble missing at %dms", ms)
			require.Equal(t, 1.0, msg.Opacity, "opacity at %dms", ms)
		case ms < 7000:
			require.True(t, ok, "bubble missing at %dms", ms)
			require.Less(t, msg.Opacity, previous, "opacity must decrease at %dms", ms)
			previous = msg.Opacity
		default:
			require.False(t, ok, "bubble still present at %dms", ms)
		}
		if ms == 4900 {
			previous = 1.0 + 1e-9
		}
	}
}

func TestTickReportsChanges(t *testing.T) {
	t.Parallel()

	m, clock := newTestManager()
	m.Post("alice", "hello")

	clock.Set(1000)
	_, changed := m.Tick()
	require.False(t, changed, "fully opaque bubble must not report a change")

	clock.Set(6000)
	messages, changed := m.Tick()
	require.True(t, changed)
	require.InDelta(t, 0.5, messages["alice"].Opacity, 1e-9)

	_, changed = m.Tick()
	require.False(t, changed, "same instant must not report a change")

	clock.Set(7000)
	messages, changed = m.Tick()
	require.True(t, changed)
	require.Empty(t, messages)
}

func TestTickOnlyLatestMessageVisible(t *testing.T) {
	t.Parallel()

	m, clock := newTestManager()
	m.Post("alice", "one")
	clock.Set(100)
	m.Post("bob", "hi")
	m.Post("alice", "two")

	messages, _ := m.Tick()
	require.Len(t, messages, 2)
	require.Equal(t, "two", messages["alice"].Content)
}

func TestCustomDisplayDuration(t *testing.T) {
	t.Parallel()

	m, clock := newTestManager()
	m.SetDisplayDuration(3 * time.Second)
	require.Equal(t, 3*time.Second, m.DisplayDuration())

	m.Post("alice", "short")
	clock.Set(999)
	messages, _ := m.Tick()
	require.Equal(t, 1.0, messages["alice"].Opacity)

	clock.Set(2000)
	messages, _ = m.Tick()
	require.InDelta(t, 0.5, messages["alice"].Opacity, 1e-9)

	clock.Set(3000)
	messages, _ = m.Tick()
	require.NotContains(t, messages, "alice")
}

func TestMessagesReturnsCopy(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager()
	m.Post("alice", "hello")

	snapshot := m.Messages()
	delete(snapshot, "alice")

	require.Contains(t, m.Messages(), "alice")
}

func TestOpacity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		age  time.Duration
		want float64
	}{
		{0, 1},
		{7 * time.Second, 1},
		{8500 * time.Millisecond, 0.5},
		{10 * time.Second, 0},
		{11 * time.Second, 0},
	}
	for _, tc := range cases {
		if got := Opacity(tc.age, 10*time.Second, 3*time.Second); got < tc.want-1e-9 || got > tc.want+1e-9 {
			t.Fatalf("Opacity(%s) = %v, want %v", tc.age, got, tc.want)
		}
	}
}
