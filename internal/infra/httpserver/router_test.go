package httpserver

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/muzaffarmhd/mindscape/internal/application"
	appsentiments "github.com/muzaffarmhd/mindscape/internal/application/sentiments"
	"github.com/muzaffarmhd/mindscape/internal/directory"
	domain "github.com/muzaffarmhd/mindscape/internal/domain/sentiments"
	"github.com/muzaffarmhd/mindscape/internal/middleware"
)

type fakeRepo struct {
	post         *domain.Entity
	postErr      error
	note         *domain.Entity
	history      []*domain.Entity
	getPostCalls int
	added        []*domain.Analysis
}

func (f *fakeRepo) AddSentiment(ctx context.Context, uid string, a *domain.Analysis) error {
	f.added = append(f.added, a)
	return nil
}

func (f *fakeRepo) GetPost(ctx context.Context, roomID, postID string) (*domain.Entity, error) {
	f.getPostCalls++
	if f.postErr != nil {
		return nil, f.postErr
	}
	return f.post, nil
}

func (f *fakeRepo) GetNote(ctx context.Context, userID, noteID string) (*domain.Entity, error) {
	return f.note, nil
}

func (f *fakeRepo) GetChatHistory(ctx context.Context, uid string, limit int) ([]*domain.Entity, error) {
	return f.history, nil
}

func (f *fakeRepo) Paginate(ctx context.Context, uid string, page, pageSize int) ([]*domain.Analysis, error) {
	return f.added, nil
}

type fakeAnalyzer struct {
	payload map[string]any
	calls   []string
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, text string) (map[string]any, error) {
	f.calls = append(f.calls, text)
	return f.payload, nil
}

type fakeAI struct {
	reply       string
	verdict     string
	completeErr error
	moderateErr error
	completed   []string
}

func (f *fakeAI) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	f.completed = append(f.completed, userText)
	if f.completeErr != nil {
		return "", f.completeErr
	}
	return f.reply, nil
}

func (f *fakeAI) Moderate(ctx context.Context, text string) (string, error) {
	if f.moderateErr != nil {
		return "", f.moderateErr
	}
	return f.verdict, nil
}

type fakeImages struct {
	calls   []string
	payload map[string]any
}

func (f *fakeImages) AnalyzeImage(ctx context.Context, imageURL string) (map[string]any, error) {
	f.calls = append(f.calls, imageURL)
	return f.payload, nil
}

type fakeMedia struct {
	keys []string
}

func (f *fakeMedia) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	f.keys = append(f.keys, key)
	return "http://media.local/bucket/" + key, nil
}

// fakeScheduler captures tasks instead of running them, so tests can prove
// the response was written before any background work happened.
type fakeScheduler struct {
	tasks []func() error
}

func (f *fakeScheduler) Submit(name string, run func() error) error {
	f.tasks = append(f.tasks, run)
	return nil
}

func (f *fakeScheduler) runAll(t *testing.T) {
	t.Helper()
	for _, run := range f.tasks {
		if err := run(); err != nil {
			t.Fatalf("background task: %v", err)
		}
	}
}

type testDeps struct {
	repo     *fakeRepo
	analyzer *fakeAnalyzer
	ai       *fakeAI
	images   *fakeImages
	media    *fakeMedia
	sched    *fakeScheduler
	handler  http.Handler
}

func newTestRouter(t *testing.T) *testDeps {
	t.Helper()
	d := &testDeps{
		repo:     &fakeRepo{},
		analyzer: &fakeAnalyzer{payload: map[string]any{"score": 0.7}},
		ai:       &fakeAI{reply: "you sound upbeat", verdict: "clean"},
		images:   &fakeImages{payload: map[string]any{"primary_emotion": "joy"}},
		media:    &fakeMedia{},
		sched:    &fakeScheduler{},
	}
	svc := &appsentiments.Service{
		Repo:     d.repo,
		Analyzer: d.analyzer,
		Images:   d.images,
		Clock:    application.SystemClock{},
	}
	dirPath := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(dirPath, []byte(`[{"name":"Dr. A","specialty":"CBT"}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	d.handler = NewRouter(svc, d.ai, d.media, directory.NewService(dirPath), d.sched, map[string]middleware.HealthChecker{})
	return d
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHome(t *testing.T) {
	d := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	d.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["status"] != "success" {
		t.Errorf("status field = %q, want success", got["status"])
	}
}

func TestAnalyzePostRespondsBeforeTask(t *testing.T) {
	d := newTestRouter(t)
	d.repo.post = &domain.Entity{UserID: "author1", Content: "hello world"}

	w := postJSON(t, d.handler, "/analyze_post", map[string]string{"room_id": "r1", "post_id": "p1"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var got map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["status"] != "running" {
		t.Errorf("status field = %q, want running", got["status"])
	}
	if d.repo.getPostCalls != 1 {
		t.Errorf("GetPost calls = %d, want 1 (synchronous fetch)", d.repo.getPostCalls)
	}
	if len(d.sched.tasks) != 1 {
		t.Fatalf("scheduled tasks = %d, want 1", len(d.sched.tasks))
	}
	// response already written, analysis not yet run
	if len(d.repo.added) != 0 {
		t.Fatal("analysis persisted before the background task ran")
	}

	d.sched.runAll(t)

	if len(d.repo.added) != 1 {
		t.Fatalf("persisted records = %d, want 1", len(d.repo.added))
	}
	rec := d.repo.added[0]
	if rec.UID != "author1" {
		t.Errorf("uid = %q, want author1", rec.UID)
	}
	if rec.Source != domain.SourcePost {
		t.Errorf("source = %q, want post", rec.Source)
	}
	if len(d.analyzer.calls) != 1 || d.analyzer.calls[0] != "hello world" {
		t.Errorf("analyzer calls = %v, want [hello world]", d.analyzer.calls)
	}
}

func TestAnalyzePostNotFound(t *testing.T) {
	d := newTestRouter(t)
	d.repo.postErr = sql.ErrNoRows

	w := postJSON(t, d.handler, "/analyze_post", map[string]string{"room_id": "r1", "post_id": "p1"})

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if len(d.sched.tasks) != 0 {
		t.Error("task scheduled for a missing post")
	}
}

func TestAnalyzeNote(t *testing.T) {
	d := newTestRouter(t)
	d.repo.note = &domain.Entity{UserID: "u9", Content: "dear diary", CreatedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)}

	w := postJSON(t, d.handler, "/analyze_note", map[string]string{"user_id": "u9", "note_id": "n3"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	d.sched.runAll(t)

	if len(d.repo.added) != 1 {
		t.Fatalf("persisted records = %d, want 1", len(d.repo.added))
	}
	rec := d.repo.added[0]
	if rec.Source != domain.SourceNote {
		t.Errorf("source = %q, want note", rec.Source)
	}
	// the note's own timestamp survives
	if !rec.CreatedAt.Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("createdAt = %v, want the note's timestamp", rec.CreatedAt)
	}
}

func TestReflect(t *testing.T) {
	d := newTestRouter(t)
	d.repo.history = []*domain.Entity{{UID: "u1", Content: "yesterday was hard"}}

	w := postJSON(t, d.handler, "/reflect", map[string]string{"prompt": "I feel great", "user_id": "u1"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var reply string
	if err := json.Unmarshal(w.Body.Bytes(), &reply); err != nil {
		t.Fatal(err)
	}
	if reply != "you sound upbeat" {
		t.Errorf("reply = %q", reply)
	}
	// history folded into the completion prompt
	if len(d.ai.completed) != 1 || !strings.Contains(d.ai.completed[0], "yesterday was hard") {
		t.Errorf("completion prompt missing history: %v", d.ai.completed)
	}

	d.sched.runAll(t)
	if len(d.repo.added) != 1 {
		t.Fatalf("persisted records = %d, want 1", len(d.repo.added))
	}
	rec := d.repo.added[0]
	if rec.UID != "u1" || rec.Source != domain.SourceChat || rec.Content != "I feel great" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestReflectValidation(t *testing.T) {
	d := newTestRouter(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{name: "missing user_id", body: map[string]string{"prompt": "hi"}},
		{name: "missing prompt", body: map[string]string{"user_id": "u1"}},
		{name: "bad user_id", body: map[string]string{"prompt": "hi", "user_id": "has spaces"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, d.handler, "/reflect", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
	if len(d.sched.tasks) != 0 {
		t.Error("tasks scheduled for invalid requests")
	}
}

func TestModerate(t *testing.T) {
	d := newTestRouter(t)
	d.ai.verdict = "flagged: self-harm"

	w := postJSON(t, d.handler, "/moderate", map[string]string{"text": "some text"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var verdict string
	if err := json.Unmarshal(w.Body.Bytes(), &verdict); err != nil {
		t.Fatal(err)
	}
	if verdict != "flagged: self-harm" {
		t.Errorf("verdict = %q", verdict)
	}
	// pass-through endpoint: nothing scheduled, nothing persisted
	if len(d.sched.tasks) != 0 || len(d.repo.added) != 0 {
		t.Error("moderation must not schedule or persist anything")
	}
}

func TestAnalyzeImageUpload(t *testing.T) {
	d := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("user_id", "u1"); err != nil {
		t.Fatal(err)
	}
	fw, err := mw.CreateFormFile("file", "selfie.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("png-bytes")); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/analyze_image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	d.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if len(d.media.keys) != 1 || !strings.HasPrefix(d.media.keys[0], "u1/") {
		t.Errorf("media keys = %v", d.media.keys)
	}

	d.sched.runAll(t)
	if len(d.images.calls) != 1 {
		t.Fatalf("image analyzer calls = %d, want 1", len(d.images.calls))
	}
	if len(d.repo.added) != 1 || d.repo.added[0].Source != domain.SourceImage {
		t.Errorf("unexpected records: %+v", d.repo.added)
	}
}

func TestAnalyzeImageRejectsBadExtension(t *testing.T) {
	d := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("user_id", "u1")
	fw, _ := mw.CreateFormFile("file", "payload.exe")
	fw.Write([]byte("not an image"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/analyze_image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	d.handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestTherapists(t *testing.T) {
	d := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/therapists", nil)
	w := httptest.NewRecorder()
	d.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got map[string][]directory.Therapist
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got["therapists"]) != 1 || got["therapists"][0].Name != "Dr. A" {
		t.Errorf("therapists = %+v", got)
	}
}

func TestListSentiments(t *testing.T) {
	d := newTestRouter(t)
	d.repo.added = []*domain.Analysis{{ID: "x-chat", UID: "u1", Source: domain.SourceChat}}

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/sentiments?user_id=%s", "u1"), nil)
	w := httptest.NewRecorder()
	d.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got []domain.Analysis
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].UID != "u1" {
		t.Errorf("list = %+v", got)
	}
}
