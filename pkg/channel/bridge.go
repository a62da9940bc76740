package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"dollhouse/pkg/bot"
	"dollhouse/pkg/room"
	"dollhouse/pkg/store"
)

const (
	commandStart = "/start"
	commandName  = "/name"
)

// Bridge turns inbound lines into stored characters and messages.
type Bridge struct {
	store   store.Store
	catalog bot.Catalog
	log     *slog.Logger

	mu       sync.Mutex
	speakers map[string]room.Character
	names    map[string]string
}

func NewBridge(st store.Store, catalog bot.Catalog, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{
		store:    st,
		catalog:  catalog,
		log:      log.With("component", "channel.bridge"),
		speakers: make(map[string]room.Character),
		names:    make(map[string]string),
	}
}

// Handle is a Handler.
func (b *Bridge) Handle(ctx context.Context, in Inbound) (Reply, error) {
	content := strings.TrimSpace(in.Content)
	key := senderKey(in)

	switch {
	case content == commandStart:
		return Reply{Content: "Welcome to the dollhouse! Everything you type here appears in the room. Use /name to pick a display name."}, nil
	case content == commandName || strings.HasPrefix(content, commandName+" "):
		name := truncate(strings.TrimSpace(strings.TrimPrefix(content, commandName)), room.MaxNameLength)
		if name == "" {
			return Reply{Content: "Usage: /name <display name>"}, nil
		}
		b.rename(key, name)
		return Reply{Content: fmt.Sprintf("You will appear as %s.", name)}, nil
	case content == "":
		return Reply{}, nil
	}

	speaker, err := b.speaker(ctx, key, in.SenderName)
	if err != nil {
		return Reply{}, err
	}

	msg, err := b.store.InsertMessage(ctx, room.Message{
		CharacterID: speaker.ID,
		Content:     truncate(content, room.MaxContentLength),
	})
	if err != nil {
		return Reply{}, fmt.Errorf("post message: %w", err)
	}
	b.log.Debug("Bridged message", "channel", in.Channel, "character_id", speaker.ID, "message_id", msg.ID)
	return Reply{}, nil
}

// speaker returns the character for key, creating it on first use.
func (b *Bridge) speaker(ctx context.Context, key, senderName string) (room.Character, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.speakers[key]; ok {
		return c, nil
	}

	name := b.names[key]
	if name == "" {
		name = truncate(strings.TrimSpace(senderName), room.MaxNameLength)
	}
	if name == "" {
		name = "Visitor"
	}

	c, err := b.store.InsertCharacter(ctx, room.Character{
		Name:   name,
		Avatar: bot.AvatarFor(b.catalog, key),
	})
	if err != nil {
		return room.Character{}, fmt.Errorf("create character for %s: %w", key, err)
	}
	b.speakers[key] = c
	b.log.Info("Created character for sender", "sender", key, "character_id", c.ID, "name", c.Name)
	return c, nil
}

// rename makes the sender's next line come from a fresh character, since
// stored characters never change.
func (b *Bridge) rename(key, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.names[key] = name
	delete(b.speakers, key)
}

func senderKey(in Inbound) string {
	return strings.TrimSpace(in.Channel) + ":" + strings.TrimSpace(in.SenderID)
}

// truncate cuts s to at most limit runes.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:limit]))
}
