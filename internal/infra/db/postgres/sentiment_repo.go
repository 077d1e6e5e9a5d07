package postgres

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

// AddSentiment inserts or updates an analysis record, keyed by record ID.
func (r *SentimentRepository) AddSentiment(ctx context.Context, uid string, a *domain.Analysis) error {
	const q = `
INSERT INTO sentiments
  (id, uid, type, content, payload_json, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
  uid=EXCLUDED.uid,
  type=EXCLUDED.type,
  content=EXCLUDED.content,
  payload_json=EXCLUDED.payload_json;
`
	if strings.TrimSpace(uid) == "" {
		uid = "-"
	}
	payload := "{}"
	if len(a.Payload) > 0 {
		b, err := json.Marshal(a.Payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		payload = string(b)
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, a.ID, uid, a.Source, a.Content, payload, createdAt)
	return err
}

func (r *SentimentRepository) GetPost(ctx context.Context, roomID, postID string) (*domain.Entity, error) {
	const q = `
SELECT user_id, content, created_at
FROM posts
WHERE room_id=$1 AND post_id=$2;
`
	return scanEntity(r.db.QueryRowContext(ctx, q, roomID, postID))
}

func (r *SentimentRepository) GetNote(ctx context.Context, userID, noteID string) (*domain.Entity, error) {
	const q = `
SELECT user_id, content, created_at
FROM notes
WHERE user_id=$1 AND note_id=$2;
`
	return scanEntity(r.db.QueryRowContext(ctx, q, userID, noteID))
}

func (r *SentimentRepository) GetChatHistory(ctx context.Context, uid string, limit int) ([]*domain.Entity, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
SELECT content, created_at
FROM sentiments
WHERE uid=$1 AND type='chat'
ORDER BY created_at DESC, id DESC
LIMIT $2;
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
WHERE uid=$1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;
`
	rows, err := r.db.QueryContext(ctx, q, uid, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Analysis
	for rows.Next() {
		var a domain.Analysis
		var payload string
		var created time.Time
		if err := rows.Scan(&a.ID, &a.UID, &a.Source, &a.Content, &payload, &created); err != nil {
			return nil, err
		}
		a.CreatedAt = created
		if strings.TrimSpace(payload) != "" {
			if err := json.Unmarshal([]byte(payload), &a.Payload); err != nil {
				return nil, fmt.Errorf("decode payload for id=%s: %w", a.ID, err)
			}
		}
		out = append(out, &a)
	}
	return out, rows.Err()
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
