package sentiments

import (
	"time"
)

// AnalysisID tipe untuk Analysis
type AnalysisID string

// Source enum: where the analyzed text came from
type Source string

const (
	SourceChat  Source = "chat"
	SourcePost  Source = "post"
	SourceNote  Source = "note"
	SourceImage Source = "image"
	SourceAudio Source = "audio"
)

// Status enum
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFail    Status = "fail"
)

// Entity is a piece of user content eligible for analysis: a chat message,
// a post, or a note. UID and UserID are alias identity keys; UID wins when
// both are set. A zero CreatedAt means the entity carries no timestamp and
// the processing time is substituted.
type Entity struct {
	UID       string    `json:"uid,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// ResolveUID returns the effective identity, preferring UID over UserID.
func (e Entity) ResolveUID() string {
	if e.UID != "" {
		return e.UID
	}
	return e.UserID
}

// Aggregate Root: Analysis
// One analysis record per background task invocation: written once, never
// mutated. Bookkeeping fields (UID, Source, CreatedAt, Content) live as
// named columns; the analyzer's free-form output lives in Payload.
type Analysis struct {
	ID        AnalysisID     `json:"id"`
	UID       string         `json:"uid"`
	Source    Source         `json:"type"`
	Content   string         `json:"content,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// bookkeeping keys that always win on collision with analyzer output
var reservedKeys = []string{"uid", "type", "createdAt", "content"}

// MergePayload returns a copy of the analyzer payload with any key that
// collides with a bookkeeping field removed. The typed fields on Analysis
// are the single source of truth for those keys.
func MergePayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	for _, k := range reservedKeys {
		delete(out, k)
	}
	return out
}
