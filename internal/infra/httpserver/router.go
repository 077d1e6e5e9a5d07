package httpserver

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	appsentiments "github.com/muzaffarmhd/mindscape/internal/application/sentiments"
	"github.com/muzaffarmhd/mindscape/internal/directory"
	domai "github.com/muzaffarmhd/mindscape/internal/domain/ai"
	domain "github.com/muzaffarmhd/mindscape/internal/domain/sentiments"
	"github.com/muzaffarmhd/mindscape/internal/infra/ai/prompt"
	"github.com/muzaffarmhd/mindscape/internal/middleware"
)

const maxUploadBytes = 10 << 20

var (
	statusRunning = map[string]string{"status": string(domain.StatusRunning)}
	statusSuccess = map[string]string{"status": string(domain.StatusSuccess)}
)

// AI is the synchronous LLM surface the handlers call on the request path.
type AI interface {
	domai.Completer
	domai.Moderator
}

// Scheduler admits background tasks; satisfied by tasks.Dispatcher.
type Scheduler interface {
	Submit(name string, run func() error) error
}

type Router struct {
	sentiments *appsentiments.Service
	ai         AI
	media      domain.MediaStore
	dir        *directory.Service
	tasks      Scheduler
}

func NewRouter(svc *appsentiments.Service, aiClient AI, media domain.MediaStore, dir *directory.Service, sched Scheduler, checkers map[string]middleware.HealthChecker) http.Handler {
	r := &Router{sentiments: svc, ai: aiClient, media: media, dir: dir, tasks: sched}
	mux := chi.NewRouter()

	// the journal frontend talks to this service cross-origin
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)

	mux.Get("/", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, statusSuccess)
	})
	mux.Get("/health", middleware.HealthHandler(checkers))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Post("/reflect", r.wrap(r.handleReflect))
	mux.Post("/analyze_post", r.wrap(r.handleAnalyzePost))
	mux.Post("/analyze_note", r.wrap(r.handleAnalyzeNote))
	mux.Post("/moderate", r.wrap(r.handleModerate))
	mux.Post("/analyze_image", r.wrap(r.handleAnalyzeImage))
	mux.Post("/analyze_audio", r.wrap(r.handleAnalyzeAudio))
	mux.Get("/therapists", r.wrap(r.handleTherapists))
	mux.Get("/sentiments", r.wrap(r.handleListSentiments))

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequestError marks client-side input problems for the wrap dispatcher.
type badRequestError struct{ err error }

func (e badRequestError) Error() string { return e.err.Error() }
func (e badRequestError) Unwrap() error { return e.err }

func badRequest(err error) error { return badRequestError{err: err} }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var br badRequestError
			if errors.As(err, &br) {
				http.Error(w, br.Error(), http.StatusBadRequest)
				return
			}
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			if errors.Is(err, domai.ErrQuotaExceeded) {
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// schedule hands work to the dispatcher and keeps the analysis counters
// honest. Admission failure is logged only: the caller already has (or is
// about to get) its response and never observes task outcomes.
func (r *Router) schedule(name string, run func() error) {
	err := r.tasks.Submit(name, func() error {
		middleware.IncrementAnalyses()
		middleware.IncrementAnalysesRunning()
		defer middleware.DecrementAnalysesRunning()
		if err := run(); err != nil {
			middleware.IncrementAnalysesFailed()
			return err
		}
		return nil
	})
	if err != nil {
		middleware.IncrementAnalysesFailed()
		log.Printf("schedule task failed: task=%s err=%v", name, err)
	}
}

// POST /reflect
// Body: {"prompt": "...", "user_id": "..."}
// Returns the LLM reply synchronously; sentiment analysis of the prompt runs
// in the background tagged type=chat.
func (r *Router) handleReflect(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Prompt string `json:"prompt"`
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest(err)
	}
	if err := middleware.ValidateUserID(body.UserID); err != nil {
		return badRequest(fmt.Errorf("user_id: %w", err))
	}
	if err := middleware.ValidateText(body.Prompt, 8192); err != nil {
		return badRequest(fmt.Errorf("prompt: %w", err))
	}

	history, err := r.sentiments.History(req.Context(), body.UserID, middleware.ValidateHistoryLimit(0))
	if err != nil {
		return fmt.Errorf("load chat history: %w", err)
	}
	var lines []string
	for _, h := range history {
		lines = append(lines, h.Content)
	}

	reply, err := r.ai.Complete(req.Context(),
		prompt.GetReflectSystemPrompt(),
		prompt.FormatReflectUserPrompt(lines, body.Prompt))
	if err != nil {
		return err
	}

	entity := domain.Entity{UID: body.UserID, Content: body.Prompt}
	r.schedule("process-chat", func() error {
		_, err := r.sentiments.ProcessUntilDone(entity, domain.SourceChat)
		return err
	})

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(reply)
}

// POST /analyze_post
// Body: {"room_id": "...", "post_id": "..."}
// The post is fetched synchronously; its analysis is deferred.
func (r *Router) handleAnalyzePost(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		RoomID string `json:"room_id"`
		PostID string `json:"post_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest(err)
	}
	if err := middleware.ValidateUserID(body.RoomID); err != nil {
		return badRequest(fmt.Errorf("room_id: %w", err))
	}
	if err := middleware.ValidateUserID(body.PostID); err != nil {
		return badRequest(fmt.Errorf("post_id: %w", err))
	}

	post, err := r.sentiments.FetchPost(req.Context(), body.RoomID, body.PostID)
	if err != nil {
		return err
	}

	entity := *post
	r.schedule("process-post", func() error {
		_, err := r.sentiments.ProcessUntilDone(entity, domain.SourcePost)
		return err
	})

	return writeJSON(w, statusRunning)
}

// POST /analyze_note
// Body: {"user_id": "...", "note_id": "..."}
func (r *Router) handleAnalyzeNote(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		UserID string `json:"user_id"`
		NoteID string `json:"note_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest(err)
	}
	if err := middleware.ValidateUserID(body.UserID); err != nil {
		return badRequest(fmt.Errorf("user_id: %w", err))
	}
	if err := middleware.ValidateUserID(body.NoteID); err != nil {
		return badRequest(fmt.Errorf("note_id: %w", err))
	}

	note, err := r.sentiments.FetchNote(req.Context(), body.UserID, body.NoteID)
	if err != nil {
		return err
	}

	entity := *note
	r.schedule("process-note", func() error {
		_, err := r.sentiments.ProcessUntilDone(entity, domain.SourceNote)
		return err
	})

	return writeJSON(w, statusRunning)
}

// POST /moderate
// Body: {"text": "..."}
// Pass-through: the provider's verdict is returned verbatim, nothing is
// persisted and nothing runs in the background.
func (r *Router) handleModerate(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest(err)
	}
	if err := middleware.ValidateText(body.Text, 8192); err != nil {
		return badRequest(fmt.Errorf("text: %w", err))
	}

	verdict, err := r.ai.Moderate(req.Context(), body.Text)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(verdict)
}

// POST /analyze_image
// multipart form: user_id, file
// The upload lands in the media store synchronously so the vision model can
// reach it by URL after the request is gone; scoring is deferred.
func (r *Router) handleAnalyzeImage(w http.ResponseWriter, req *http.Request) error {
	userID, file, header, err := parseUpload(req, []string{".png", ".jpg", ".jpeg", ".gif", ".webp"})
	if err != nil {
		return err
	}
	defer file.Close()

	key := uploadKey(userID, header.Filename)
	url, err := r.media.Put(req.Context(), key, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("store image upload: %w", err)
	}

	r.schedule("process-image", func() error {
		_, err := r.sentiments.ProcessImageUntilDone(userID, url)
		return err
	})

	return writeJSON(w, statusRunning)
}

// POST /analyze_audio
// multipart form: user_id, file
// Audio bytes are buffered before the response is sent: the background task
// needs them for transcription once the request body is gone.
func (r *Router) handleAnalyzeAudio(w http.ResponseWriter, req *http.Request) error {
	userID, file, header, err := parseUpload(req, []string{".wav", ".mp3", ".m4a", ".ogg", ".flac", ".webm"})
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read audio upload: %w", err)
	}

	key := uploadKey(userID, header.Filename)
	if _, err := r.media.Put(req.Context(), key, bytes.NewReader(data), int64(len(data)), header.Header.Get("Content-Type")); err != nil {
		return fmt.Errorf("store audio upload: %w", err)
	}

	filename := header.Filename
	r.schedule("process-audio", func() error {
		_, err := r.sentiments.ProcessAudioUntilDone(userID, filename, data)
		return err
	})

	return writeJSON(w, statusRunning)
}

// GET /therapists
func (r *Router) handleTherapists(w http.ResponseWriter, req *http.Request) error {
	list, err := r.dir.Therapists()
	if err != nil {
		return err
	}
	return writeJSON(w, map[string]any{"therapists": list})
}

// GET /sentiments?user_id=&page=&page_size=
func (r *Router) handleListSentiments(w http.ResponseWriter, req *http.Request) error {
	userID := req.URL.Query().Get("user_id")
	if err := middleware.ValidateUserID(userID); err != nil {
		return badRequest(fmt.Errorf("user_id: %w", err))
	}
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.sentiments.List(req.Context(), userID, page, middleware.ValidatePageSize(size))
	if err != nil {
		return err
	}
	return writeJSON(w, list)
}

func parseUpload(req *http.Request, allowedExt []string) (string, multipart.File, *multipart.FileHeader, error) {
	if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", nil, nil, badRequest(fmt.Errorf("parse multipart form: %w", err))
	}
	userID := req.FormValue("user_id")
	if err := middleware.ValidateUserID(userID); err != nil {
		return "", nil, nil, badRequest(fmt.Errorf("user_id: %w", err))
	}
	file, header, err := req.FormFile("file")
	if err != nil {
		return "", nil, nil, badRequest(fmt.Errorf("file: %w", err))
	}
	if err := middleware.ValidateUploadExt(header.Filename, allowedExt); err != nil {
		file.Close()
		return "", nil, nil, badRequest(err)
	}
	return userID, file, header, nil
}

func uploadKey(userID, filename string) string {
	return fmt.Sprintf("%s/%s%s", userID, uuid.New().String(), strings.ToLower(filepath.Ext(filename)))
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}
