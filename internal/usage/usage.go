// Package usage records completed tasks so users can revisit past results.
//
// History listings return metadata only; the stored output is decrypted just
// for the single-entry detail view.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexora-ai/lexora/internal/cipher"
)

// Task types recorded in history.
const (
	TaskDrafting   = "drafting"
	TaskCompliance = "compliance"
	TaskAnalysis   = "clause_analysis"
	TaskResearch   = "research"
	TaskSummary    = "summarize"
	TaskChat       = "chat"
)

// HistoryLimit caps how many entries a history listing returns.
const HistoryLimit = 50

// UnreadableContent replaces stored output that can no longer be decrypted.
const UnreadableContent = "[content unreadable: decryption failed]"

// ErrNotFound indicates no entry with the given ID belongs to the user.
var ErrNotFound = errors.New("usage entry not found")

// Entry is one recorded task. Content is populated by Detail only.
type Entry struct {
	ID        string            `json:"id"`
	UserID    string            `json:"-"`
	TaskType  string            `json:"task_type"`
	Title     string            `json:"title"`
	Content   string            `json:"content,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Store persists usage entries. A nil cipher box stores plaintext.
// Safe for concurrent use.
type Store struct {
	pool   *pgxpool.Pool
	box    *cipher.Box
	logger *slog.Logger
}

// NewStore creates a usage store. box may be nil to disable encryption.
func NewStore(pool *pgxpool.Pool, box *cipher.Box, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, box: box, logger: logger}
}

// Record stores a completed task and returns the entry ID.
func (s *Store) Record(ctx context.Context, userID, taskType, title, content string, metadata map[string]string) (string, error) {
	payload, version, err := s.seal(content)
	if err != nil {
		return "", err
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshaling metadata: %w", err)
	}

	id := uuid.NewString()
	_, err = s.pool.Exec(ctx, `
INSERT INTO usage_history (id, user_id, task_type, title, content, encryption_version, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, userID, taskType, title, payload, version, metadataJSON, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("inserting usage entry: %w", err)
	}

	s.logger.Debug("usage recorded", "user_id", userID, "task_type", taskType, "entry_id", id)
	return id, nil
}

// History returns the user's most recent entries, newest first, without
// stored content. At most HistoryLimit entries are returned.
func (s *Store) History(ctx context.Context, userID string) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, task_type, title, metadata, created_at
FROM usage_history
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2`, userID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("querying usage history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry        Entry
			metadataJSON []byte
		)
		if err := rows.Scan(&entry.ID, &entry.TaskType, &entry.Title, &metadataJSON, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning usage entry: %w", err)
		}
		entry.UserID = userID
		entry.Metadata = s.parseMetadata(entry.ID, metadataJSON)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading usage history: %w", err)
	}
	return entries, nil
}

// Detail returns one entry with its stored content decrypted. Content that
// cannot be decrypted is replaced by UnreadableContent rather than failing
// the whole lookup.
func (s *Store) Detail(ctx context.Context, userID, id string) (Entry, error) {
	var (
		entry        Entry
		payload      []byte
		version      int16
		metadataJSON []byte
	)
	err := s.pool.QueryRow(ctx, `
SELECT id, task_type, title, content, encryption_version, metadata, created_at
FROM usage_history
WHERE user_id = $1 AND id = $2`, userID, id).
		Scan(&entry.ID, &entry.TaskType, &entry.Title, &payload, &version, &metadataJSON, &entry.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("querying usage entry: %w", err)
	}

	entry.UserID = userID
	entry.Metadata = s.parseMetadata(entry.ID, metadataJSON)
	entry.Content = s.open(entry.ID, payload, version)
	return entry, nil
}

func (s *Store) seal(content string) ([]byte, int16, error) {
	if s.box == nil {
		return []byte(content), 0, nil
	}
	sealed, err := s.box.Seal(content)
	if err != nil {
		return nil, 0, fmt.Errorf("encrypting content: %w", err)
	}
	return sealed, cipher.Version, nil
}

func (s *Store) open(id string, payload []byte, version int16) string {
	if version == 0 {
		return string(payload)
	}
	if s.box == nil {
		s.logger.Warn("encrypted entry but no content key configured", "entry_id", id)
		return UnreadableContent
	}
	content, err := s.box.Open(payload)
	if err != nil {
		s.logger.Warn("failed to decrypt usage entry", "entry_id", id, "error", err)
		return UnreadableContent
	}
	return content
}

func (s *Store) parseMetadata(id string, data []byte) map[string]string {
	if len(data) == 0 {
		return nil
	}
	var metadata map[string]string
	if err := json.Unmarshal(data, &metadata); err != nil {
		s.logger.Warn("unparseable usage metadata", "entry_id", id, "error", err)
		return nil
	}
	if len(metadata) == 0 {
		return nil
	}
	return metadata
}
