// Package room holds the shared data model of the dollhouse: characters,
// messages, bot actors and the frame handed to renderers.
package room

import (
	"strings"
	"time"
)

const (
	MaxNameLength    = 20
	MaxContentLength = 255

	// BotIDPrefix namespaces synthetic bot ids away from store-issued ids.
	BotIDPrefix = "bot_"
)

// AvatarConfig selects one asset id per avatar layer. Outfit may be empty.
type AvatarConfig struct {
	Body   string `json:"body" validate:"required"`
	Hair   string `json:"hair" validate:"required"`
	Outfit string `json:"outfit"`
}

// Character is a user-created avatar. It is immutable once stored.
type Character struct {
	ID        string       `json:"id"`
	Name      string       `json:"name" validate:"required,max=20"`
	Avatar    AvatarConfig `json:"avatar_config"`
	CreatedAt time.Time    `json:"created_at"`
}

// Message is one chat utterance tied to a character.
type Message struct {
	ID          string    `json:"id"`
	CharacterID string    `json:"character_id" validate:"required"`
	Content     string    `json:"content" validate:"required,max=255"`
	CreatedAt   time.Time `json:"created_at"`

	// Character is the joined speaker record when the source provides it.
	Character *Character `json:"character,omitempty" validate:"-"`
}

// DisplayMessage is the on-screen bubble for one character.
type DisplayMessage struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Opacity   float64   `json:"opacity"`
}

// ActivityRecord is the last time a character was seen doing something.
type ActivityRecord struct {
	CharacterID  string    `json:"character_id"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Position places a sprite in the room. Left and Bottom are percentages of
// the room size, Z is the stacking order.
type Position struct {
	Left   int `json:"left"`
	Bottom int `json:"bottom"`
	Z      int `json:"z"`
}

// BotActor is a synthetic, never persisted character.
type BotActor struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Avatar   AvatarConfig `json:"avatar_config"`
	Position Position     `json:"position"`
}

// Popup is a decorative error window emitted while a chaos event runs.
type Popup struct {
	ID        string    `json:"id"`
	Left      int       `json:"left"`
	Top       int       `json:"top"`
	Scale     float64   `json:"scale"`
	Rotation  int       `json:"rotation"`
	Opacity   float64   `json:"opacity"`
	CreatedAt time.Time `json:"created_at"`
}

// Frame is everything a renderer needs to draw the room at one instant.
type Frame struct {
	At                time.Time                 `json:"at"`
	VisibleCharacters []Character               `json:"visible_characters"`
	VisibleBots       []BotActor                `json:"visible_bots"`
	DisplayMessages   map[string]DisplayMessage `json:"display_messages"`
	Popups            []Popup                   `json:"popups,omitempty"`
	Terminal          bool                      `json:"terminal"`
	Err               string                    `json:"error,omitempty"`
}

// IsBotID reports whether id was issued by the bot generator.
func IsBotID(id string) bool {
	return strings.HasPrefix(id, BotIDPrefix)
}
