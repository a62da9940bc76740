// Package store defines the persistence contract for characters and
// messages.
package store

//go:generate mockgen -destination=../mocks/mock_store.go -package=mocks dollhouse/pkg/store Store

import (
	"context"
	"errors"

	"dollhouse/pkg/room"
)

var ErrNotFound = errors.New("record not found")

// DefaultRecentMessages is how much history a room loads on open.
const DefaultRecentMessages = 50

// Store reads and writes room records. Both fetches return the newest
// records first. Inserts assign the id and creation time.
type Store interface {
	FetchCharacters(ctx context.Context) ([]room.Character, error)
	// FetchRecentMessages returns at most limit messages, each joined with
	// its speaker.
	FetchRecentMessages(ctx context.Context, limit int) ([]room.Message, error)
	FetchCharacter(ctx context.Context, id string) (room.Character, error)
	InsertCharacter(ctx context.Context, character room.Character) (room.Character, error)
	InsertMessage(ctx context.Context, message room.Message) (room.Message, error)
}
