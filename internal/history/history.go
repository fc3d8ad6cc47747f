// Package history stores chat conversation messages, encrypted at rest when a
// content key is configured.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexora-ai/lexora/internal/cipher"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// UnreadableContent replaces message content that can no longer be decrypted,
// e.g. after a key rotation without re-encryption.
const UnreadableContent = "[content unreadable: decryption failed]"

// Message is one chat turn.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists chat messages. A nil cipher box stores plaintext;
// otherwise content is sealed with AES-256-GCM before it reaches the database.
// Safe for concurrent use.
type Store struct {
	pool   *pgxpool.Pool
	box    *cipher.Box
	logger *slog.Logger
}

// NewStore creates a message store. box may be nil to disable encryption.
func NewStore(pool *pgxpool.Pool, box *cipher.Box, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, box: box, logger: logger}
}

// Append stores one message and returns it with its generated ID.
func (s *Store) Append(ctx context.Context, userID, role, content string) (Message, error) {
	if role != RoleUser && role != RoleAssistant {
		return Message{}, fmt.Errorf("invalid role %q", role)
	}

	payload, version, err := s.seal(content)
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO chat_messages (id, user_id, role, content, encryption_version, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.UserID, msg.Role, payload, version, msg.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("inserting chat message: %w", err)
	}
	return msg, nil
}

// Recent returns the user's last limit messages in chronological order.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx, `
SELECT id, role, content, encryption_version, created_at
FROM chat_messages
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying chat messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			msg     Message
			payload []byte
			version int16
		)
		if err := rows.Scan(&msg.ID, &msg.Role, &payload, &version, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}
		msg.UserID = userID
		msg.Content = s.open(msg.ID, payload, version)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chat messages: %w", err)
	}

	// Newest-first from the query; callers want chronological.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Clear deletes all of the user's messages.
func (s *Store) Clear(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM chat_messages WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clearing chat messages: %w", err)
	}
	return nil
}

func (s *Store) seal(content string) ([]byte, int16, error) {
	if s.box == nil {
		return []byte(content), 0, nil
	}
	sealed, err := s.box.Seal(content)
	if err != nil {
		return nil, 0, fmt.Errorf("encrypting message: %w", err)
	}
	return sealed, cipher.Version, nil
}

// open never fails: rows that cannot be decrypted surface as UnreadableContent
// so one bad row does not break the whole history.
func (s *Store) open(id string, payload []byte, version int16) string {
	if version == 0 {
		return string(payload)
	}
	if s.box == nil {
		s.logger.Warn("encrypted message but no content key configured", "message_id", id)
		return UnreadableContent
	}
	content, err := s.box.Open(payload)
	if err != nil {
		s.logger.Warn("failed to decrypt message", "message_id", id, "error", err)
		return UnreadableContent
	}
	return content
}
