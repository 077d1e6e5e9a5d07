package ai

import (
	"context"
	"io"
)

// Completer generates a reply from a system prompt plus user text.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}

// Moderator returns the provider's moderation verdict for a piece of text.
type Moderator interface {
	Moderate(ctx context.Context, text string) (string, error)
}

// ImageAnalyzer scores an image reachable at a URL.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, imageURL string) (map[string]any, error)
}

// Transcriber turns uploaded audio into text for downstream analysis.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, r io.Reader) (string, error)
}
