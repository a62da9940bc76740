package channel

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"dollhouse/pkg/bot"
	"dollhouse/pkg/logger"
	"dollhouse/pkg/mocks"
	"dollhouse/pkg/room"
)

func newTestBridge(t *testing.T) (*Bridge, *mocks.MockStore) {
	t.Helper()

	catalog, err := bot.DefaultCatalog()
	require.NoError(t, err)

	st := mocks.NewMockStore(gomock.NewController(t))
	return NewBridge(st, catalog, logger.Discard()), st
}

func inbound(content string) Inbound {
	return Inbound{Channel: "telegram", SenderID: "42", SenderName: "Ada", ChatID: "42", Content: content}
}

func TestBridgeStartReplies(t *testing.T) {
	t.Parallel()

	b, _ := newTestBridge(t)

	reply, err := b.Handle(context.Background(), inbound("/start"))
	require.NoError(t, err)
	require.Contains(t, reply.Content, "Welcome")
}

func TestBridgeFirstLineCreatesCharacter(t *testing.T) {
	t.Parallel()

	b, st := newTestBridge(t)
	ctx := context.Background()

	gomock.InOrder(
		st.EXPECT().InsertCharacter(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, c room.Character) (room.Character, error) {
				if c.Name != "Ada" {
					t.Fatalf("name = %q, want Ada", c.Name)
				}
				if c.Avatar.Body == "" || c.Avatar.Hair == "" {
					t.Fatalf("avatar = %+v, want body and hair", c.Avatar)
				}
				c.ID = "c1"
				return c, nil
			}),
		st.EXPECT().InsertMessage(gomock.Any(), room.Message{CharacterID: "c1", Content: "hello"}).
			Return(room.Message{ID: "m1", CharacterID: "c1", Content: "hello"}, nil),
		st.EXPECT().InsertMessage(gomock.Any(), room.Message{CharacterID: "c1", Content: "again"}).
			Return(room.Message{ID: "m2", CharacterID: "c1", Content: "again"}, nil),
	)

	reply, err := b.Handle(ctx, inbound("  hello "))
	require.NoError(t, err)
	require.Empty(t, reply.Content)

	_, err = b.Handle(ctx, inbound("again"))
	require.NoError(t, err)
}

func TestBridgeNameStartsFreshCharacter(t *testing.T) {
	t.Parallel()

	b, st := newTestBridge(t)
	ctx := context.Background()

	var names []string
	st.EXPECT().InsertCharacter(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c room.Character) (room.Character, error) {
			names = append(names, c.Name)
			c.ID = "c" + c.Name
			return c, nil
		}).Times(2)
	st.EXPECT().InsertMessage(gomock.Any(), gomock.Any()).Return(room.Message{ID: "m"}, nil).Times(2)

	_, err := b.Handle(ctx, inbound("one"))
	require.NoError(t, err)

	reply, err := b.Handle(ctx, inbound("/name Lady Byron"))
	require.NoError(t, err)
	require.Equal(t, "You will appear as Lady Byron.", reply.Content)

	_, err = b.Handle(ctx, inbound("two"))
	require.NoError(t, err)
	require.Equal(t, []string{"Ada", "Lady Byron"}, names)
}

func TestBridgeNameWithoutArgumentShowsUsage(t *testing.T) {
	t.Parallel()

	b, _ := newTestBridge(t)

	reply, err := b.Handle(context.Background(), inbound("/name   "))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(reply.Content, "Usage"))
}

func TestBridgeIgnoresBlankLines(t *testing.T) {
	t.Parallel()

	b, _ := newTestBridge(t)

	reply, err := b.Handle(context.Background(), inbound("  \n "))
	require.NoError(t, err)
	require.Equal(t, Reply{}, reply)
}

func TestBridgeTruncatesToRoomLimits(t *testing.T) {
	t.Parallel()

	b, st := newTestBridge(t)
	in := inbound(strings.Repeat("é", room.MaxContentLength+10))
	in.SenderName = ""

	st.EXPECT().InsertCharacter(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c room.Character) (room.Character, error) {
			require.Equal(t, "Visitor", c.Name)
			c.ID = "v"
			return c, nil
		})
	st.EXPECT().InsertMessage(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, m room.Message) (room.Message, error) {
			require.Equal(t, room.MaxContentLength, utf8.RuneCountInString(m.Content))
			return m, nil
		})

	_, err := b.Handle(context.Background(), in)
	require.NoError(t, err)
}

func TestBridgeStoreErrorsPropagate(t *testing.T) {
	t.Parallel()

	b, st := newTestBridge(t)
	boom := errors.New("disk full")
	st.EXPECT().InsertCharacter(gomock.Any(), gomock.Any()).Return(room.Character{}, boom)

	_, err := b.Handle(context.Background(), inbound("hi"))
	require.ErrorIs(t, err, boom)

	// The failed sender is retried on the next line.
	st.EXPECT().InsertCharacter(gomock.Any(), gomock.Any()).Return(room.Character{ID: "c"}, nil)
	st.EXPECT().InsertMessage(gomock.Any(), gomock.Any()).Return(room.Message{}, boom)

	_, err = b.Handle(context.Background(), inbound("hi"))
	require.ErrorIs(t, err, boom)
}

func TestTruncateCountsRunes(t *testing.T) {
	t.Parallel()

	if got := truncate("héllo", 2); got != "hé" {
		t.Fatalf("truncate = %q, want %q", got, "hé")
	}
	if got := truncate("short", 20); got != "short" {
		t.Fatalf("truncate = %q, want %q", got, "short")
	}
}
