package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"dollhouse/pkg/bot"
	"dollhouse/pkg/bubble"
	"dollhouse/pkg/chaos"
	"dollhouse/pkg/config"
	"dollhouse/pkg/logger"
	"dollhouse/pkg/mocks"
	"dollhouse/pkg/room"
	"dollhouse/pkg/store/sqlite"
)

func TestChaosConfigConvertsUnits(t *testing.T) {
	t.Parallel()

	got := chaosConfig(config.EventConfig{
		InitialBots:       5,
		SpawnIntervalMS:   1500,
		RampSeconds:       60,
		MinFraction:       0.2,
		PopupDelaySeconds: 30,
		PopupFadeMS:       250,
		DeadlineSeconds:   90,
	})

	require.Equal(t, 5, got.InitialBots)
	require.Equal(t, 1500*time.Millisecond, got.SpawnInterval)
	require.Equal(t, time.Minute, got.RampHorizon)
	require.Equal(t, 0.2, got.MinFraction)
	require.Equal(t, 30*time.Second, got.PopupDelay)
	require.Equal(t, 250*time.Millisecond, got.PopupFade)
	require.Equal(t, 90*time.Second, got.Deadline)
	require.Zero(t, got.MaxBots)
}

func TestCreateCharacterPicksCatalogAvatar(t *testing.T) {
	t.Parallel()

	catalog, err := bot.DefaultCatalog()
	require.NoError(t, err)

	st := mocks.NewMockStore(gomock.NewController(t))
	st.EXPECT().InsertCharacter(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c room.Character) (room.Character, error) {
			require.NoError(t, catalog.Check(c.Avatar))
			c.ID = "c1"
			return c, nil
		})

	got, err := createCharacter(context.Background(), st, catalog, "Ada", room.AvatarConfig{})
	require.NoError(t, err)
	require.Equal(t, "c1", got.ID)
	require.Equal(t, "Ada", got.Name)
}

func TestCreateCharacterRejectsForeignAvatar(t *testing.T) {
	t.Parallel()

	catalog, err := bot.DefaultCatalog()
	require.NoError(t, err)

	st := mocks.NewMockStore(gomock.NewController(t))
	_, err = createCharacter(context.Background(), st, catalog, "Ada", room.AvatarConfig{Body: "nope", Hair: "nope"})
	require.ErrorContains(t, err, "invalid avatar")
}

func TestSayAsInsertsMessage(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	st := mocks.NewMockStore(gomock.NewController(t))
	gomock.InOrder(
		st.EXPECT().InsertMessage(gomock.Any(), room.Message{CharacterID: "c1", Content: "hi"}).Return(room.Message{ID: "m1"}, nil),
		st.EXPECT().InsertMessage(gomock.Any(), gomock.Any()).Return(room.Message{}, boom),
	)

	say := sayAs(st, "c1")
	require.NoError(t, say(context.Background(), "hi"))
	require.ErrorIs(t, say(context.Background(), "again"), boom)
}

func TestWriteCharacters(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	writeCharacters(&out, []room.Character{
		{ID: "c2", Name: "Bo", Avatar: room.AvatarConfig{Body: "aqua", Hair: "1", Outfit: "221"}, CreatedAt: time.Now()},
		{ID: "c1", Name: "Ada", Avatar: room.AvatarConfig{Body: "aqua", Hair: "2"}, CreatedAt: time.Now()},
	})

	text := out.String()
	require.Contains(t, text, "NAME")
	require.Less(t, strings.Index(text, "Bo"), strings.Index(text, "Ada"))
	require.Contains(t, text, "221")
}

func TestRenderStats(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	renderStats(&out, chaos.Stats{State: chaos.Terminal, Bots: 42, MessagesSent: 7, PopupsShown: 3})

	text := out.String()
	require.Contains(t, text, "terminal")
	require.Contains(t, text, "42")
	require.Contains(t, text, "MESSAGES")
}

func TestChatterLogForwardsToBubbles(t *testing.T) {
	t.Parallel()

	bubbles := bubble.NewManager()
	poster := chatterLog{next: bubbles, log: logger.Discard()}

	got := poster.Post("bot_1", "beep")
	require.Equal(t, "beep", got["bot_1"].Content)
	require.Equal(t, "beep", bubbles.Messages()["bot_1"].Content)
}

func TestRoomStackSeesOtherWriters(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "dollhouse.db")
	cfg.Store.PollIntervalMS = 10
	cfg.Event.Seed = 7

	stack, err := openRoomStack(cfg, logger.Discard(), true)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, stack.start(ctx))
	t.Cleanup(stack.close)
	require.NoError(t, stack.presence.LoadInitial(ctx))

	// The watcher only reports rows inserted after it read its cursor.
	time.Sleep(100 * time.Millisecond)

	writer, err := sqlite.Open(cfg.Store.Path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	ada, err := writer.InsertCharacter(ctx, room.Character{Name: "Ada", Avatar: room.AvatarConfig{Body: "aqua", Hair: "1"}})
	require.NoError(t, err)
	_, err = writer.InsertMessage(ctx, room.Message{CharacterID: ada.ID, Content: "hello from elsewhere"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		frame := stack.presence.ComputeFrame(stack.sched.Now())
		return len(frame.VisibleCharacters) == 1 && frame.DisplayMessages[ada.ID].Content == "hello from elsewhere"
	}, 3*time.Second, 20*time.Millisecond)

	frame := stack.presence.ComputeFrame(stack.sched.Now())
	require.Len(t, frame.VisibleBots, chaos.DefaultConfig().InitialBots)
	require.Equal(t, chaos.Running, stack.event.State())
}
