// Package sqlitestore is a database/sql-backed ConversationStore, using
// mattn/go-sqlite3 as the driver. Grounded on the pack's own SQLite
// conversation store (Eunho-J-codex-troller/internal/server/council_store.go):
// same schema-per-table-with-JSON-blob-columns style, transactional
// append, per-conversation serialization via an in-process lock rather
// than relying on SQLite's own locking to also cover read-modify-write
// races within one process.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/councilhq/orchestrator/internal/council"
	"github.com/councilhq/orchestrator/internal/councilid"
	"github.com/councilhq/orchestrator/internal/store"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a SQLite-backed ConversationStore. locks holds one *sync.Mutex
// per conversation id so AppendTurn is serialized per-conversation (spec
// §5, "Shared resources") without blocking unrelated conversations against
// each other.
type Store struct {
	db *sql.DB

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Open creates or opens the SQLite database at path and ensures its schema
// exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlitestore: creating directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: opening database: %w", err)
	}
	s := &Store{db: db, locks: make(map[string]*sync.Mutex)}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS conversation_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			ordinal INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_messages_conv ON conversation_messages(conversation_id, ordinal);`,
		`CREATE TABLE IF NOT EXISTS council_turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			turn_id TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			turn_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_council_turns_conv ON council_turns(conversation_id, ordinal);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlitestore: applying schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Load implements store.ConversationStore.
func (s *Store) Load(ctx context.Context, id string) (council.Conversation, error) {
	var c council.Conversation
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `SELECT id, created_at, updated_at FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return council.Conversation{}, store.ErrNotFound
	}
	if err != nil {
		return council.Conversation{}, fmt.Errorf("sqlitestore: loading conversation: %w", err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	messages, err := s.loadMessages(ctx, id)
	if err != nil {
		return council.Conversation{}, err
	}
	c.Messages = messages

	turns, err := s.loadTurns(ctx, id)
	if err != nil {
		return council.Conversation{}, err
	}
	c.Turns = turns

	return c, nil
}

func (s *Store) loadMessages(ctx context.Context, id string) ([]council.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, timestamp_ms FROM conversation_messages WHERE conversation_id = ? ORDER BY ordinal ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: loading messages: %w", err)
	}
	defer rows.Close()

	out := []council.ChatMessage{}
	for rows.Next() {
		var m council.ChatMessage
		if err := rows.Scan(&m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("sqlitestore: scanning message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) loadTurns(ctx context.Context, id string) ([]council.CouncilTurn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT turn_json FROM council_turns WHERE conversation_id = ? ORDER BY ordinal ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: loading turns: %w", err)
	}
	defer rows.Close()

	out := []council.CouncilTurn{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("sqlitestore: scanning turn: %w", err)
		}
		var t council.CouncilTurn
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("sqlitestore: decoding turn: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Create implements store.ConversationStore.
func (s *Store) Create(ctx context.Context) (council.Conversation, error) {
	now := time.Now().UTC()
	c := council.Conversation{ID: councilid.NewConversationID(), CreatedAt: now, UpdatedAt: now}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations(id, created_at, updated_at) VALUES(?, ?, ?)`,
		c.ID, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return council.Conversation{}, fmt.Errorf("sqlitestore: creating conversation: %w", err)
	}
	return c, nil
}

// AppendTurn implements store.ConversationStore. It is the critical
// section spec §5 requires to be serialized per-conversation.
func (s *Store) AppendTurn(ctx context.Context, id string, userMsg, assistantMsg council.ChatMessage, turn council.CouncilTurn) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("sqlitestore: checking conversation existence: %w", err)
	}
	if exists == 0 {
		return store.ErrNotFound
	}

	var msgOrdinal int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(ordinal), -1) + 1 FROM conversation_messages WHERE conversation_id = ?`, id).Scan(&msgOrdinal); err != nil {
		return fmt.Errorf("sqlitestore: computing message ordinal: %w", err)
	}
	for i, m := range []council.ChatMessage{userMsg, assistantMsg} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_messages(conversation_id, role, content, timestamp_ms, ordinal) VALUES(?, ?, ?, ?, ?)`,
			id, m.Role, m.Content, m.Timestamp, msgOrdinal+i,
		); err != nil {
			return fmt.Errorf("sqlitestore: inserting message: %w", err)
		}
	}

	var turnOrdinal int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(ordinal), -1) + 1 FROM council_turns WHERE conversation_id = ?`, id).Scan(&turnOrdinal); err != nil {
		return fmt.Errorf("sqlitestore: computing turn ordinal: %w", err)
	}
	turnJSON, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("sqlitestore: encoding turn: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO council_turns(conversation_id, turn_id, ordinal, turn_json) VALUES(?, ?, ?, ?)`,
		id, turn.TurnID, turnOrdinal, string(turnJSON),
	); err != nil {
		return fmt.Errorf("sqlitestore: inserting turn: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), id,
	); err != nil {
		return fmt.Errorf("sqlitestore: touching conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitestore: committing turn: %w", err)
	}
	return nil
}

// Delete implements store.ConversationStore.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM council_turns WHERE conversation_id = ?`,
		`DELETE FROM conversation_messages WHERE conversation_id = ?`,
		`DELETE FROM conversations WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("sqlitestore: deleting conversation: %w", err)
		}
	}
	return tx.Commit()
}

// List implements store.ConversationStore, most recently updated first.
func (s *Store) List(ctx context.Context) ([]council.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: listing conversations: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlitestore: scanning conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	out := make([]council.Conversation, 0, len(ids))
	for _, id := range ids {
		c, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}
