package sentiments

import "context"
import "io"

// Repository port (interface untuk persistence)
type Repository interface {
	AddSentiment(ctx context.Context, uid string, a *Analysis) error
	GetPost(ctx context.Context, roomID, postID string) (*Entity, error)
	GetNote(ctx context.Context, userID, noteID string) (*Entity, error)
	GetChatHistory(ctx context.Context, uid string, limit int) ([]*Entity, error)

	// tambahan paginate
	Paginate(ctx context.Context, uid string, page, pageSize int) ([]*Analysis, error)
}

// Analyzer port: maps raw text to a scored attribute mapping. Backed by an
// LLM provider; failures propagate to the task runner's fault channel.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (map[string]any, error)
}

// MediaStore port (interface untuk penyimpanan media upload)
type MediaStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}
