package sidecar

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Transcript is the archived conversation log of one sidebar session.
type Transcript struct {
	SessionID uuid.UUID     `json:"session_id"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"created_at"`
}

// TranscriptStore archives session transcripts. Sessions work entirely
// in-memory and only write here when a store is supplied, so conversation
// state stays process-lifetime by default.
type TranscriptStore interface {
	// CreateTranscript initializes an empty transcript for a new session.
	CreateTranscript(ctx context.Context) (*Transcript, error)

	// AppendMessage adds a message to an existing transcript.
	AppendMessage(ctx context.Context, sessionID uuid.UUID, message ChatMessage) error

	// GetTranscript retrieves a transcript by session ID.
	GetTranscript(ctx context.Context, sessionID uuid.UUID) (*Transcript, error)

	// ListTranscripts returns all archived transcripts.
	ListTranscripts(ctx context.Context) ([]Transcript, error)

	// DeleteTranscript removes a transcript by session ID.
	DeleteTranscript(ctx context.Context, sessionID uuid.UUID) error
}

// InMemoryTranscriptStore is an in-memory implementation of TranscriptStore.
type InMemoryTranscriptStore struct {
	transcripts map[uuid.UUID]*Transcript
	mu          sync.RWMutex
}

// NewInMemoryTranscriptStore creates a new instance of
// InMemoryTranscriptStore.
func NewInMemoryTranscriptStore() *InMemoryTranscriptStore {
	return &InMemoryTranscriptStore{
		transcripts: make(map[uuid.UUID]*Transcript),
	}
}

// CreateTranscript initializes an empty transcript.
func (s *InMemoryTranscriptStore) CreateTranscript(ctx context.Context) (*Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	transcript := &Transcript{
		SessionID: uuid.New(),
		Messages:  []ChatMessage{},
		CreatedAt: time.Now(),
	}

	s.transcripts[transcript.SessionID] = transcript
	return transcript, nil
}

// AppendMessage adds a message to an existing transcript.
func (s *InMemoryTranscriptStore) AppendMessage(ctx context.Context, sessionID uuid.UUID, message ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	transcript, exists := s.transcripts[sessionID]
	if !exists {
		return fmt.Errorf("transcript for session %s not found", sessionID)
	}

	transcript.Messages = append(transcript.Messages, message)
	return nil
}

// GetTranscript retrieves a transcript by session ID.
func (s *InMemoryTranscriptStore) GetTranscript(ctx context.Context, sessionID uuid.UUID) (*Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transcript, exists := s.transcripts[sessionID]
	if !exists {
		return nil, fmt.Errorf("transcript for session %s not found", sessionID)
	}

	return transcript, nil
}

// ListTranscripts returns all archived transcripts.
func (s *InMemoryTranscriptStore) ListTranscripts(ctx context.Context) ([]Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transcripts := make([]Transcript, 0, len(s.transcripts))
	for _, transcript := range s.transcripts {
		transcripts = append(transcripts, *transcript)
	}

	return transcripts, nil
}

// DeleteTranscript removes a transcript by session ID.
func (s *InMemoryTranscriptStore) DeleteTranscript(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transcripts[sessionID]; !exists {
		return fmt.Errorf("transcript for session %s not found", sessionID)
	}

	delete(s.transcripts, sessionID)
	return nil
}

// SQLiteTranscriptStore is a SQLite-backed implementation of TranscriptStore
// for hosts that opt into archiving conversations across launches.
type SQLiteTranscriptStore struct {
	db     *sql.DB
	logger Logger
}

// NewSQLiteTranscriptStore opens (or creates) the archive database at
// databasePath and ensures the schema exists.
func NewSQLiteTranscriptStore(databasePath string, logger Logger) (*SQLiteTranscriptStore, error) {
	db, err := sql.Open("sqlite3", databasePath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if logger == nil {
		logger = NewNullLogger()
	}

	store := &SQLiteTranscriptStore{
		db:     db,
		logger: logger,
	}

	if err := store.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}

	return store, nil
}

// NewSQLiteTranscriptStoreWithDB wraps an existing database handle. The
// schema must already exist; tests use this with a mock connection.
func NewSQLiteTranscriptStoreWithDB(db *sql.DB, logger Logger) *SQLiteTranscriptStore {
	if logger == nil {
		logger = NewNullLogger()
	}
	return &SQLiteTranscriptStore{db: db, logger: logger}
}

func (s *SQLiteTranscriptStore) initSchema(ctx context.Context) error {
	createSessionsSQL := `
    CREATE TABLE IF NOT EXISTS sessions (
        session_id TEXT PRIMARY KEY,
        created_at DATETIME NOT NULL
    );`

	createMessagesSQL := `
    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY,
        session_id TEXT NOT NULL,
        role TEXT NOT NULL,
        content TEXT NOT NULL,
        timestamp DATETIME NOT NULL,
        FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
    );`

	createIndexSQL := `
    CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages (session_id);`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for schema init: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{createSessionsSQL, createMessagesSQL, createIndexSQL} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create archive schema: %w", err)
		}
	}

	return tx.Commit()
}

// CreateTranscript initializes an empty transcript row.
func (s *SQLiteTranscriptStore) CreateTranscript(ctx context.Context) (*Transcript, error) {
	transcript := &Transcript{
		SessionID: uuid.New(),
		Messages:  []ChatMessage{},
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, created_at) VALUES (?, ?)`,
		transcript.SessionID.String(), transcript.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session %s: %w", transcript.SessionID, err)
	}

	return transcript, nil
}

// AppendMessage adds a message row for the session.
func (s *SQLiteTranscriptStore) AppendMessage(ctx context.Context, sessionID uuid.UUID, message ChatMessage) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, timestamp)
         SELECT ?, session_id, ?, ?, ? FROM sessions WHERE session_id = ?`,
		message.ID.String(), string(message.Role), message.Content, message.Timestamp,
		sessionID.String())
	if err != nil {
		return fmt.Errorf("failed to insert message for session %s: %w", sessionID, err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("transcript for session %s not found", sessionID)
	}
	return nil
}

// GetTranscript retrieves a transcript and its ordered messages.
func (s *SQLiteTranscriptStore) GetTranscript(ctx context.Context, sessionID uuid.UUID) (*Transcript, error) {
	transcript := &Transcript{SessionID: sessionID, Messages: []ChatMessage{}}

	err := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM sessions WHERE session_id = ?`, sessionID.String()).
		Scan(&transcript.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transcript for session %s not found", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session %s: %w", sessionID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, timestamp FROM messages WHERE session_id = ? ORDER BY timestamp, id`,
		sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idStr   string
			roleStr string
			message ChatMessage
		)
		if err := rows.Scan(&idStr, &roleStr, &message.Content, &message.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		message.ID, err = uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse message id %q: %w", idStr, err)
		}
		message.Role = MessageRole(roleStr)
		transcript.Messages = append(transcript.Messages, message)
	}

	return transcript, rows.Err()
}

// ListTranscripts returns all archived transcripts with their messages.
func (s *SQLiteTranscriptStore) ListTranscripts(ctx context.Context) ([]Transcript, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id FROM sessions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse session id %q: %w", idStr, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	transcripts := make([]Transcript, 0, len(ids))
	for _, id := range ids {
		transcript, err := s.GetTranscript(ctx, id)
		if err != nil {
			return nil, err
		}
		transcripts = append(transcripts, *transcript)
	}

	return transcripts, nil
}

// DeleteTranscript removes a transcript and its messages.
func (s *SQLiteTranscriptStore) DeleteTranscript(ctx context.Context, sessionID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID.String()); err != nil {
		return fmt.Errorf("failed to delete messages for session %s: %w", sessionID, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID.String())
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("transcript for session %s not found", sessionID)
	}

	return tx.Commit()
}

// Close releases the underlying database handle.
func (s *SQLiteTranscriptStore) Close() error {
	return s.db.Close()
}
