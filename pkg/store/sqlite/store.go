// Package sqlite provides a SQLite-backed room store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"dollhouse/pkg/room"
	"dollhouse/pkg/store"
)

//go:embed schema.sql
var schema string

// Store persists characters and messages in SQLite.
type Store struct {
	sqlDB *sql.DB
	clock func() time.Time
	newID func() string
}

// Option customises a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp inserted records.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite room store and applies the embedded schema.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{
		sqlDB: sqlDB,
		clock: time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// Ping reports whether the database still answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.sqlDB.PingContext(ctx)
}

// InsertCharacter validates and stores a new character, assigning its id
// and creation time.
func (s *Store) InsertCharacter(ctx context.Context, c room.Character) (room.Character, error) {
	if err := s.ready(ctx); err != nil {
		return room.Character{}, err
	}
	c.Name = strings.TrimSpace(c.Name)
	if err := room.ValidateCharacter(c); err != nil {
		return room.Character{}, err
	}

	c.ID = s.newID()
	c.CreatedAt = s.clock().UTC().Truncate(time.Millisecond)

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO characters (id, name, body, hair, outfit, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.Name,
		c.Avatar.Body,
		c.Avatar.Hair,
		c.Avatar.Outfit,
		toMillis(c.CreatedAt),
	)
	if err != nil {
		return room.Character{}, fmt.Errorf("insert character: %w", err)
	}
	return c, nil
}

// InsertMessage validates and stores a new message. The speaker must exist.
// The returned message carries the joined speaker record.
func (s *Store) InsertMessage(ctx context.Context, m room.Message) (room.Message, error) {
	if err := s.ready(ctx); err != nil {
		return room.Message{}, err
	}
	m.Content = strings.TrimSpace(m.Content)
	m.CharacterID = strings.TrimSpace(m.CharacterID)
	if err := room.ValidateMessage(m); err != nil {
		return room.Message{}, err
	}

	speaker, err := s.FetchCharacter(ctx, m.CharacterID)
	if err != nil {
		return room.Message{}, fmt.Errorf("insert message: speaker %q: %w", m.CharacterID, err)
	}

	m.ID = s.newID()
	m.CreatedAt = s.clock().UTC().Truncate(time.Millisecond)
	m.Character = &speaker

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO messages (id, character_id, content, created_at)
		 VALUES (?, ?, ?, ?)`,
		m.ID,
		m.CharacterID,
		m.Content,
		toMillis(m.CreatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return room.Message{}, fmt.Errorf("insert message: speaker %q: %w", m.CharacterID, store.ErrNotFound)
		}
		return room.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

const characterColumns = `c.id, c.name, c.body, c.hair, c.outfit, c.created_at`

// FetchCharacter returns one character by id.
func (s *Store) FetchCharacter(ctx context.Context, id string) (room.Character, error) {
	if err := s.ready(ctx); err != nil {
		return room.Character{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return room.Character{}, fmt.Errorf("character id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+characterColumns+`
		   FROM characters c
		  WHERE c.id = ?`,
		id,
	)
	c, err := scanCharacter(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return room.Character{}, store.ErrNotFound
		}
		return room.Character{}, fmt.Errorf("fetch character: %w", err)
	}
	return c, nil
}

// FetchCharacters returns every character, newest first.
func (s *Store) FetchCharacters(ctx context.Context) ([]room.Character, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+characterColumns+`
		   FROM characters c
		  ORDER BY c.created_at DESC, c.seq DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch characters: %w", err)
	}
	defer rows.Close()

	characters := make([]room.Character, 0)
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("fetch characters: %w", err)
		}
		characters = append(characters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch characters: %w", err)
	}
	return characters, nil
}

// FetchRecentMessages returns up to limit messages joined with their
// speakers, newest first.
func (s *Store) FetchRecentMessages(ctx context.Context, limit int) ([]room.Message, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT m.id, m.character_id, m.content, m.created_at, `+characterColumns+`
		   FROM messages m
		   JOIN characters c ON c.id = m.character_id
		  ORDER BY m.created_at DESC, m.seq DESC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch recent messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, fmt.Errorf("fetch recent messages: %w", err)
	}
	return messages, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCharacter(row scanner) (room.Character, error) {
	var c room.Character
	var createdAt int64
	if err := row.Scan(&c.ID, &c.Name, &c.Avatar.Body, &c.Avatar.Hair, &c.Avatar.Outfit, &createdAt); err != nil {
		return room.Character{}, err
	}
	c.CreatedAt = fromMillis(createdAt)
	return c, nil
}

func scanMessages(rows *sql.Rows) ([]room.Message, error) {
	messages := make([]room.Message, 0)
	for rows.Next() {
		var m room.Message
		var speaker room.Character
		var createdAt, speakerCreatedAt int64
		if err := rows.Scan(
			&m.ID,
			&m.CharacterID,
			&m.Content,
			&createdAt,
			&speaker.ID,
			&speaker.Name,
			&speaker.Avatar.Body,
			&speaker.Avatar.Hair,
			&speaker.Avatar.Outfit,
			&speakerCreatedAt,
		); err != nil {
			return nil, err
		}
		m.CreatedAt = fromMillis(createdAt)
		speaker.CreatedAt = fromMillis(speakerCreatedAt)
		m.Character = &speaker
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

var _ store.Store = (*Store)(nil)
