package feed

import (
	"time"

	"dollhouse/pkg/room"
)

// Table names a stream of inserts.
type Table string

const (
	TableCharacters Table = "characters"
	TableMessages   Table = "messages"
)

// Insert is one row-created notification. Exactly one of Character or
// Message is set, matching Table.
type Insert struct {
	Table     Table           `json:"table"`
	At        time.Time       `json:"at"`
	Character *room.Character `json:"character,omitempty"`
	Message   *room.Message   `json:"message,omitempty"`
}

func CharacterInserted(c room.Character) Insert {
	return Insert{Table: TableCharacters, Character: &c}
}

func MessageInserted(m room.Message) Insert {
	return Insert{Table: TableMessages, Message: &m}
}
