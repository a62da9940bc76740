package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dollhouse/pkg/feed"
	"dollhouse/pkg/room"
)

// DefaultPollInterval is how often Watch looks for new rows.
const DefaultPollInterval = 500 * time.Millisecond

// Watch publishes every character and message inserted after the call, by
// any process sharing the database file, until ctx ends. Rows are read in
// insertion order, so a character is always published before the first
// message that references it.
func (s *Store) Watch(ctx context.Context, bus *feed.Bus, interval time.Duration, log *slog.Logger) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "store.watch")

	cursor, err := s.latestCursor(ctx)
	if err != nil {
		return err
	}
	log.Debug("Watching for inserts", "characters_after", cursor.characters, "messages_after", cursor.messages)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		next, err := s.poll(ctx, bus, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("Poll failed", "error", err)
			continue
		}
		cursor = next
	}
}

type watchCursor struct {
	characters int64
	messages   int64
}

func (s *Store) latestCursor(ctx context.Context) (watchCursor, error) {
	var cursor watchCursor
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT (SELECT COALESCE(MAX(seq), 0) FROM characters),
		        (SELECT COALESCE(MAX(seq), 0) FROM messages)`,
	)
	if err := row.Scan(&cursor.characters, &cursor.messages); err != nil {
		return watchCursor{}, fmt.Errorf("read watch cursor: %w", err)
	}
	return cursor, nil
}

func (s *Store) poll(ctx context.Context, bus *feed.Bus, cursor watchCursor) (watchCursor, error) {
	characters, err := s.charactersAfter(ctx, cursor.characters)
	if err != nil {
		return cursor, err
	}
	for _, row := range characters {
		bus.Publish(ctx, feed.Insert{Table: feed.TableCharacters, At: row.character.CreatedAt, Character: &row.character})
		cursor.characters = row.seq
	}

	messages, err := s.messagesAfter(ctx, cursor.messages)
	if err != nil {
		return cursor, err
	}
	for _, row := range messages {
		bus.Publish(ctx, feed.Insert{Table: feed.TableMessages, At: row.message.CreatedAt, Message: &row.message})
		cursor.messages = row.seq
	}
	return cursor, nil
}

type characterRow struct {
	seq       int64
	character room.Character
}

type messageRow struct {
	seq     int64
	message room.Message
}

func (s *Store) charactersAfter(ctx context.Context, seq int64) ([]characterRow, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT c.seq, `+characterColumns+`
		   FROM characters c
		  WHERE c.seq > ?
		  ORDER BY c.seq ASC`,
		seq,
	)
	if err != nil {
		return nil, fmt.Errorf("poll characters: %w", err)
	}
	defer rows.Close()

	var out []characterRow
	for rows.Next() {
		var r characterRow
		var createdAt int64
		c := &r.character
		if err := rows.Scan(&r.seq, &c.ID, &c.Name, &c.Avatar.Body, &c.Avatar.Hair, &c.Avatar.Outfit, &createdAt); err != nil {
			return nil, fmt.Errorf("poll characters: %w", err)
		}
		c.CreatedAt = fromMillis(createdAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("poll characters: %w", err)
	}
	return out, nil
}

func (s *Store) messagesAfter(ctx context.Context, seq int64) ([]messageRow, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT m.seq, m.id, m.character_id, m.content, m.created_at, `+characterColumns+`
		   FROM messages m
		   JOIN characters c ON c.id = m.character_id
		  WHERE m.seq > ?
		  ORDER BY m.seq ASC`,
		seq,
	)
	if err != nil {
		return nil, fmt.Errorf("poll messages: %w", err)
	}
	defer rows.Close()

	var out []messageRow
	for rows.Next() {
		var r messageRow
		var speaker room.Character
		var createdAt, speakerCreatedAt int64
		if err := rows.Scan(
			&r.seq,
			&r.message.ID,
			&r.message.CharacterID,
			&r.message.Content,
			&createdAt,
			&speaker.ID,
			&speaker.Name,
			&speaker.Avatar.Body,
			&speaker.Avatar.Hair,
			&speaker.Avatar.Outfit,
			&speakerCreatedAt,
		); err != nil {
			return nil, fmt.Errorf("poll messages: %w", err)
		}
		r.message.CreatedAt = fromMillis(createdAt)
		speaker.CreatedAt = fromMillis(speakerCreatedAt)
		r.message.Character = &speaker
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("poll messages: %w", err)
	}
	return out, nil
}
