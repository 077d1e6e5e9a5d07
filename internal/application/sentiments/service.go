package sentiments

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/muzaffarmhd/mindscape/internal/application"
	"github.com/muzaffarmhd/mindscape/internal/domain/ai"
	domain "github.com/muzaffarmhd/mindscape/internal/domain/sentiments"
)

// Service implements use-cases for sentiment analysis.
// Service is designed to be used concurrently and is thread-safe as long as
// its collaborators are. Images and Transcriber are optional; they are only
// reached by the media endpoints.
type Service struct {
	Repo        domain.Repository
	Analyzer    domain.Analyzer
	Images      ai.ImageAnalyzer
	Transcriber ai.Transcriber
	Clock       application.Clock
}

//
// ==== USE CASES ====
//

// Process runs the post-processing pipeline over one entity: resolve the
// identity, score the content, stamp bookkeeping fields, persist. The only
// validation is the identity check; analyzer and persistence failures
// propagate to the caller (normally the task dispatcher's fault channel).
//
// Two Process calls for the same uid may run concurrently; each write is an
// independent upsert by record ID, last write wins.
func (s *Service) Process(ctx context.Context, entity domain.Entity, source domain.Source) (domain.Status, error) {
	uid := entity.ResolveUID()
	if uid == "" {
		return domain.StatusFail, domain.ErrMissingIdentity
	}

	payload, err := s.Analyzer.Analyze(ctx, entity.Content)
	if err != nil {
		return domain.StatusFail, fmt.Errorf("analyze content for uid=%s: %w", uid, err)
	}

	createdAt := entity.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.Clock.Now()
	}

	analysis := &domain.Analysis{
		ID:        domain.AnalysisID(fmt.Sprintf("%s-%s", uuid.New().String(), source)),
		UID:       uid,
		Source:    source,
		Content:   entity.Content,
		CreatedAt: createdAt,
		Payload:   domain.MergePayload(payload),
	}

	if err := s.Repo.AddSentiment(ctx, uid, analysis); err != nil {
		return domain.StatusFail, fmt.Errorf("persist analysis for uid=%s: %w", uid, err)
	}

	log.Printf("analysis stored: id=%s uid=%s type=%s created_at=%s payload_keys=%d",
		analysis.ID, analysis.UID, analysis.Source,
		analysis.CreatedAt.Format(time.RFC3339), len(analysis.Payload))

	return domain.StatusSuccess, nil
}

// ProcessUntilDone runs Process with context.Background(); meant to be
// submitted to the dispatcher so an already-finished HTTP request can't
// cancel the analysis.
func (s *Service) ProcessUntilDone(entity domain.Entity, source domain.Source) (domain.Status, error) {
	return s.Process(context.Background(), entity, source)
}

// ProcessImage scores an uploaded image already stored at imageURL and
// persists the result as a type=image record. Content carries the image URL
// so the record stays traceable to the upload.
func (s *Service) ProcessImage(ctx context.Context, uid, imageURL string) (domain.Status, error) {
	if uid == "" {
		return domain.StatusFail, domain.ErrMissingIdentity
	}

	payload, err := s.Images.AnalyzeImage(ctx, imageURL)
	if err != nil {
		return domain.StatusFail, fmt.Errorf("analyze image for uid=%s: %w", uid, err)
	}

	analysis := &domain.Analysis{
		ID:        domain.AnalysisID(fmt.Sprintf("%s-%s", uuid.New().String(), domain.SourceImage)),
		UID:       uid,
		Source:    domain.SourceImage,
		Content:   imageURL,
		CreatedAt: s.Clock.Now(),
		Payload:   domain.MergePayload(payload),
	}

	if err := s.Repo.AddSentiment(ctx, uid, analysis); err != nil {
		return domain.StatusFail, fmt.Errorf("persist image analysis for uid=%s: %w", uid, err)
	}

	log.Printf("analysis stored: id=%s uid=%s type=%s payload_keys=%d",
		analysis.ID, analysis.UID, analysis.Source, len(analysis.Payload))

	return domain.StatusSuccess, nil
}

// ProcessImageUntilDone is the dispatcher-facing variant of ProcessImage.
func (s *Service) ProcessImageUntilDone(uid, imageURL string) (domain.Status, error) {
	return s.ProcessImage(context.Background(), uid, imageURL)
}

// ProcessAudio transcribes uploaded audio and runs the text pipeline over
// the transcript, persisting the result as a type=audio record.
func (s *Service) ProcessAudio(ctx context.Context, uid, filename string, audio []byte) (domain.Status, error) {
	if uid == "" {
		return domain.StatusFail, domain.ErrMissingIdentity
	}

	transcript, err := s.Transcriber.Transcribe(ctx, filename, bytes.NewReader(audio))
	if err != nil {
		return domain.StatusFail, fmt.Errorf("transcribe audio for uid=%s: %w", uid, err)
	}

	return s.Process(ctx, domain.Entity{UID: uid, Content: transcript}, domain.SourceAudio)
}

// ProcessAudioUntilDone is the dispatcher-facing variant of ProcessAudio.
func (s *Service) ProcessAudioUntilDone(uid, filename string, audio []byte) (domain.Status, error) {
	return s.ProcessAudio(context.Background(), uid, filename, audio)
}

// FetchPost loads a post entity by composite key for fetch-then-defer handlers.
func (s *Service) FetchPost(ctx context.Context, roomID, postID string) (*domain.Entity, error) {
	return s.Repo.GetPost(ctx, roomID, postID)
}

// FetchNote loads a note entity by composite key.
func (s *Service) FetchNote(ctx context.Context, userID, noteID string) (*domain.Entity, error) {
	return s.Repo.GetNote(ctx, userID, noteID)
}

// History returns recent chat entities for a user, oldest first, for folding
// into the reflect prompt.
func (s *Service) History(ctx context.Context, uid string, limit int) ([]*domain.Entity, error) {
	return s.Repo.GetChatHistory(ctx, uid, limit)
}

// List returns a page of stored analyses for a user.
func (s *Service) List(ctx context.Context, uid string, page, pageSize int) ([]*domain.Analysis, error) {
	return s.Repo.Paginate(ctx, uid, page, pageSize)
}
