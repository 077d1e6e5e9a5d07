package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	domain "github.com/muzaffarmhd/mindscape/internal/domain/sentiments"
)

type SentimentRepository struct {
	db *sql.DB
}

func NewSentimentRepository(db *sql.DB) *SentimentRepository {
	return &SentimentRepository{db: db}
}

// AddSentiment inserts an analysis record, overwriting by record ID. Two
// concurrent writes for the same uid land as independent rows unless they
// share an ID, so last-write-wins applies per record, not per user.
func (r *SentimentRepository) AddSentiment(ctx context.Context, uid string, a *domain.Analysis) error {
	const q = `
INSERT INTO sentiments
  (id, uid, type, content, payload_json, created_at)
VALUES (?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  uid=VALUES(uid), type=VALUES(type), content=VALUES(content), payload_json=VALUES(payload_json);
`
	// Ensure non-nullable fields have safe defaults
	uid = stringOrDash(uid)
	payload, err := encodePayload(a.Payload)
	if err != nil {
		return err
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = r.db.ExecContext(ctx, q, a.ID, uid, a.Source, a.Content, payload, createdAt)
	return err
}

// GetPost fetches a post entity by composite key (room + post).
func (r *SentimentRepository) GetPost(ctx context.Context, roomID, postID string) (*domain.Entity, error) {
	const q = `
SELECT user_id, content, created_at
FROM posts
WHERE room_id=? AND post_id=?;
`
	return scanEntity(r.db.QueryRowContext(ctx, q, roomID, postID))
}

// GetNote fetches a note entity by composite key (user + note).
func (r *SentimentRepository) GetNote(ctx context.Context, userID, noteID string) (*domain.Entity, error) {
	const q = `
SELECT user_id, content, created_at
FROM notes
WHERE user_id=? AND note_id=?;
`
	return scanEntity(r.db.QueryRowContext(ctx, q, userID, noteID))
}

// GetChatHistory returns the user's recent chat messages, oldest first,
// read back from the stored chat analyses.
func (r *SentimentRepository) GetChatHistory(ctx context.Context, uid string, limit int) ([]*domain.Entity, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
SELECT content, created_at
FROM sentiments
WHERE uid=? AND type='chat'
ORDER BY created_at DESC, id DESC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, uid, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Entity
	for rows.Next() {
		var e domain.Entity
		if err := rows.Scan(&e.Content, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.UID = uid
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// reverse to oldest-first for prompt assembly
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Paginate returns a page of analysis records ordered by created_at desc
func (r *SentimentRepository) Paginate(ctx context.Context, uid string, page, pageSize int) ([]*domain.Analysis, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT id, uid, type, content, payload_json, created_at
FROM sentiments
WHERE uid=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, uid, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row *sql.Row) (*domain.Entity, error) {
	var e domain.Entity
	var created sql.NullTime
	if err := row.Scan(&e.UserID, &e.Content, &created); err != nil {
		return nil, err
	}
	if created.Valid {
		e.CreatedAt = created.Time
	}
	return &e, nil
}

func scanAnalysis(row rowScanner) (*domain.Analysis, error) {
	var a domain.Analysis
	var payload string
	var created time.Time
	if err := row.Scan(&a.ID, &a.UID, &a.Source, &a.Content, &payload, &created); err != nil {
		return nil, err
	}
	a.CreatedAt = created
	if strings.TrimSpace(payload) != "" {
		if err := json.Unmarshal([]byte(payload), &a.Payload); err != nil {
			return nil, fmt.Errorf("decode payload for id=%s: %w", a.ID, err)
		}
	}
	return &a, nil
}

func encodePayload(payload map[string]any) (string, error) {
	if len(payload) == 0 {
		// payload_json column requires valid JSON; use empty object
		return "{}", nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(b), nil
}
