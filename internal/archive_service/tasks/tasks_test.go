package tasks

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/indexer"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/store"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"
	"github.com/ikaraev-code/Intelligent-archive-02-22/pkg/logger"
)

// fakeTaskStore mirrors the terminal-once guarantees of the Mongo task store
// and signals on done when a record reaches a terminal status.
type fakeTaskStore struct {
	mu             sync.Mutex
	records        map[string]*models.TaskRecord
	done           chan struct{}
	cancelOnCreate bool
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{records: map[string]*models.TaskRecord{}, done: make(chan struct{})}
}

func (f *fakeTaskStore) Create(_ context.Context, task *models.TaskRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := *task
	rec.Cancelled = f.cancelOnCreate
	f.records[task.ID] = &rec
	return nil
}

func (f *fakeTaskStore) GetByID(_ context.Context, id string) (*models.TaskRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	snapshot := *rec
	return &snapshot, nil
}

func (f *fakeTaskStore) UpdateProgress(_ context.Context, id string, processed int, currentItem string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok || rec.Status.Terminal() {
		return store.ErrTaskFinished
	}
	rec.Processed = processed
	rec.CurrentItem = currentItem
	return nil
}

func (f *fakeTaskStore) AppendError(_ context.Context, id, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok || rec.Status.Terminal() {
		return store.ErrTaskFinished
	}
	rec.Errors = append(rec.Errors, message)
	return nil
}

func (f *fakeTaskStore) finish(id string, status models.TaskStatus, resultID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok || rec.Status.Terminal() {
		return store.ErrTaskFinished
	}
	now := time.Now().UTC()
	rec.Status = status
	rec.ResultID = resultID
	rec.Error = errMsg
	rec.CompletedAt = &now
	close(f.done)
	return nil
}

func (f *fakeTaskStore) Complete(_ context.Context, id, resultID string) error {
	return f.finish(id, models.TaskStatusCompleted, resultID, "")
}

func (f *fakeTaskStore) Fail(_ context.Context, id, errMsg string) error {
	return f.finish(id, models.TaskStatusFailed, "", errMsg)
}

func (f *fakeTaskStore) RequestCancel(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return store.ErrNotFound
	}
	if rec.Status.Terminal() {
		return store.ErrTaskFinished
	}
	rec.Cancelled = true
	return nil
}

func (f *fakeTaskStore) DeleteFinishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for id, rec := range f.records {
		if rec.Status.Terminal() && rec.CompletedAt != nil && rec.CompletedAt.Before(cutoff) {
			delete(f.records, id)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeTaskStore) wait(t *testing.T) *models.TaskRecord {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not reach a terminal state")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		snapshot := *rec
		return &snapshot
	}
	t.Fatal("no task record found")
	return nil
}

// --- reindex fakes ---

type reindexDocs struct {
	store.DocumentStore
	mu     sync.Mutex
	docs   []*models.Document
	states map[string]models.EmbeddingStatus
}

func (f *reindexDocs) ListForReindex(_ context.Context, _ string, _ store.IndexFilter) ([]*models.Document, error) {
	return f.docs, nil
}

func (f *reindexDocs) SetEmbeddingState(_ context.Context, id string, status models.EmbeddingStatus, _ int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.states == nil {
		f.states = map[string]models.EmbeddingStatus{}
	}
	f.states[id] = status
	return nil
}

type reindexChunks struct {
	store.ChunkStore
	mu       sync.Mutex
	replaced map[string]int
}

func (f *reindexChunks) ReplaceForDocument(_ context.Context, documentID string, chunks []models.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaced == nil {
		f.replaced = map[string]int{}
	}
	f.replaced[documentID] = len(chunks)
	return nil
}

type flakyEmbedder struct {
	failOn string // substring of an input that triggers the error
}

func (f *flakyEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	for _, text := range texts {
		if f.failOn != "" && strings.Contains(text, f.failOn) {
			return nil, errors.New("insufficient_quota: billing hard limit reached")
		}
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = []float32{1, 0}
	}
	return vectors, nil
}

func testLogger() *logger.Logger { return logger.New("tasks-test", "", "") }

func newReindexFixture(failOn string) (*fakeTaskStore, *reindexDocs, *reindexChunks, *ReindexRunner) {
	taskStore := newFakeTaskStore()
	docs := &reindexDocs{docs: []*models.Document{
		{ID: "d1", Filename: "alpha.txt", ContentText: "alpha body text"},
		{ID: "d2", Filename: "beta.txt", ContentText: "beta body text"},
		{ID: "d3", Filename: "gamma.txt", ContentText: "gamma body text"},
	}}
	chunks := &reindexChunks{}
	chunker, _ := indexer.NewChunker(1000, 200)
	ix := indexer.NewIndexer(docs, chunks, &flakyEmbedder{failOn: failOn}, chunker, 100, testLogger())
	orch := NewOrchestrator(taskStore, testLogger())
	return taskStore, docs, chunks, NewReindexRunner(docs, ix, orch)
}

func TestReindex_PerDocumentFailures(t *testing.T) {
	taskStore, docs, chunks, runner := newReindexFixture("beta body")

	taskID, total, err := runner.Start(context.Background(), "u-1", store.IndexFilterAll)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}

	rec := taskStore.wait(t)
	if rec.ID != taskID {
		t.Errorf("record id = %s, want %s", rec.ID, taskID)
	}
	if rec.Status != models.TaskStatusCompleted {
		t.Fatalf("status = %s, want completed (one bad file must not abort the batch)", rec.Status)
	}
	if rec.Processed != 3 {
		t.Errorf("processed = %d, want 3", rec.Processed)
	}
	if len(rec.Errors) != 1 || !strings.Contains(rec.Errors[0], "beta.txt") || !strings.Contains(rec.Errors[0], "insufficient_quota") {
		t.Errorf("errors = %v, want one entry naming beta.txt with the verbatim provider message", rec.Errors)
	}

	docs.mu.Lock()
	defer docs.mu.Unlock()
	if docs.states["d2"] != models.EmbeddingStatusFailed {
		t.Errorf("d2 state = %s, want failed", docs.states["d2"])
	}
	if docs.states["d1"] != models.EmbeddingStatusCompleted || docs.states["d3"] != models.EmbeddingStatusCompleted {
		t.Error("healthy documents did not complete")
	}
	chunks.mu.Lock()
	defer chunks.mu.Unlock()
	if _, ok := chunks.replaced["d2"]; ok {
		t.Error("failed document's chunk set was replaced")
	}
}

func TestReindex_Idempotent(t *testing.T) {
	var counts []map[string]int
	for run := 0; run < 2; run++ {
		taskStore, _, chunks, runner := newReindexFixture("")
		if _, _, err := runner.Start(context.Background(), "u-1", store.IndexFilterAll); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		rec := taskStore.wait(t)
		if rec.Status != models.TaskStatusCompleted {
			t.Fatalf("run %d status = %s, want completed", run, rec.Status)
		}
		chunks.mu.Lock()
		counts = append(counts, chunks.replaced)
		chunks.mu.Unlock()
	}
	for id, n := range counts[0] {
		if counts[1][id] != n {
			t.Errorf("document %s chunk count changed between runs: %d vs %d", id, n, counts[1][id])
		}
	}
}

func TestReindex_CooperativeCancel(t *testing.T) {
	taskStore, _, _, runner := newReindexFixture("")
	taskStore.cancelOnCreate = true

	if _, _, err := runner.Start(context.Background(), "u-1", store.IndexFilterAll); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	rec := taskStore.wait(t)
	if rec.Status != models.TaskStatusFailed || !strings.Contains(rec.Error, "cancelled") {
		t.Errorf("record = %s/%q, want failed with a cancel message", rec.Status, rec.Error)
	}
	if rec.Processed != 0 {
		t.Errorf("processed = %d, want 0 when cancelled before the first item", rec.Processed)
	}
}

func TestCancel_FinishedTask(t *testing.T) {
	taskStore := newFakeTaskStore()
	orch := NewOrchestrator(taskStore, testLogger())

	id, err := orch.Start(context.Background(), "u-1", models.TaskKindReindex, 0, func(context.Context, *Reporter) (string, error) {
		return "", nil
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if rec := taskStore.wait(t); rec.Status != models.TaskStatusCompleted {
		t.Fatalf("status = %s, want completed", rec.Status)
	}

	if err := orch.Cancel(context.Background(), id, "u-1"); !errors.Is(err, store.ErrTaskFinished) {
		t.Errorf("Cancel() after completion = %v, want ErrTaskFinished", err)
	}
}

// --- translate fakes ---

type fakeStories struct {
	store.StoryStore
	mu       sync.Mutex
	story    *models.Story
	chapters []*models.Chapter

	insertedStories  []*models.Story
	insertedChapters []*models.Chapter
}

func (f *fakeStories) GetByID(_ context.Context, id, _ string) (*models.Story, error) {
	if f.story == nil || f.story.ID != id {
		return nil, store.ErrNotFound
	}
	return f.story, nil
}

func (f *fakeStories) ListChapters(_ context.Context, _ string) ([]*models.Chapter, error) {
	return f.chapters, nil
}

func (f *fakeStories) Insert(_ context.Context, story *models.Story) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertedStories = append(f.insertedStories, story)
	return nil
}

func (f *fakeStories) InsertChapter(_ context.Context, chapter *models.Chapter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertedChapters = append(f.insertedChapters, chapter)
	return nil
}

func (f *fakeStories) Delete(_ context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.insertedStories[:0]
	found := false
	for _, s := range f.insertedStories {
		if s.ID == id && s.UserID == userID {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	f.insertedStories = kept
	if !found {
		return store.ErrNotFound
	}
	chapters := f.insertedChapters[:0]
	for _, ch := range f.insertedChapters {
		if ch.StoryID != id {
			chapters = append(chapters, ch)
		}
	}
	f.insertedChapters = chapters
	return nil
}

type upperTranslator struct{ err error }

func (u upperTranslator) Generate(_ context.Context, prompt string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	// The block text is the last prompt paragraph.
	parts := strings.Split(prompt, "\n\n")
	return "[de] " + strings.ToUpper(parts[len(parts)-1]), nil
}

func translateFixture() *fakeStories {
	textA, _ := models.NewTextBlock("b1", "first paragraph")
	image, _ := models.NewMediaBlock("b2", models.BlockTypeImage, "images/cover.png", "cover")
	textB, _ := models.NewTextBlock("b3", "second paragraph")
	return &fakeStories{
		story: &models.Story{
			ID:          "st-1",
			UserID:      "u-1",
			Name:        "Field Notes",
			DocumentIDs: []string{"d1"},
			Status:      models.StoryStatusActive,
		},
		chapters: []*models.Chapter{
			{ID: "ch-1", StoryID: "st-1", Number: 1, Name: "Spring", ContentBlocks: []models.ContentBlock{textA, image}},
			{ID: "ch-2", StoryID: "st-1", Number: 2, Name: "Summer", ContentBlocks: []models.ContentBlock{textB}},
		},
	}
}

func TestTranslate_IndependentCopy(t *testing.T) {
	stories := translateFixture()
	taskStore := newFakeTaskStore()
	runner := NewTranslateRunner(stories, upperTranslator{}, NewOrchestrator(taskStore, testLogger()))

	_, total, err := runner.Start(context.Background(), "u-1", "st-1", "German")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3 blocks", total)
	}

	rec := taskStore.wait(t)
	if rec.Status != models.TaskStatusCompleted || rec.Processed != 3 {
		t.Fatalf("record = %s processed=%d, want completed/3", rec.Status, rec.Processed)
	}

	stories.mu.Lock()
	defer stories.mu.Unlock()
	if len(stories.insertedStories) != 1 {
		t.Fatalf("inserted %d stories, want 1", len(stories.insertedStories))
	}
	created := stories.insertedStories[0]
	if created.ID == "st-1" || created.ID == "" {
		t.Error("translated story must get a fresh identity")
	}
	if rec.ResultID != created.ID {
		t.Errorf("result id = %s, want the new story id %s", rec.ResultID, created.ID)
	}
	if created.Language != "German" || !strings.Contains(created.Name, "German") {
		t.Errorf("created story = %q lang=%q", created.Name, created.Language)
	}

	if len(stories.insertedChapters) != 2 {
		t.Fatalf("inserted %d chapters, want 2", len(stories.insertedChapters))
	}
	first := stories.insertedChapters[0]
	if first.ID == "ch-1" || first.StoryID != created.ID {
		t.Error("translated chapter must get a fresh identity under the new story")
	}
	if got := first.ContentBlocks[0]; got.ID == "b1" || got.Content != "[de] FIRST PARAGRAPH" {
		t.Errorf("text block = %+v, want fresh id and translated content", got)
	}
	if got := first.ContentBlocks[1]; got.ObjectName != "images/cover.png" || got.ID == "b2" {
		t.Errorf("media block = %+v, want same object reference under a fresh id", got)
	}
}

func TestTranslate_ProviderFailure(t *testing.T) {
	stories := translateFixture()
	taskStore := newFakeTaskStore()
	providerErr := errors.New("model_overloaded: please retry later")
	runner := NewTranslateRunner(stories, upperTranslator{err: providerErr}, NewOrchestrator(taskStore, testLogger()))

	if _, _, err := runner.Start(context.Background(), "u-1", "st-1", "German"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	rec := taskStore.wait(t)
	if rec.Status != models.TaskStatusFailed {
		t.Fatalf("status = %s, want failed", rec.Status)
	}
	if rec.Error != "model_overloaded: please retry later" {
		t.Errorf("error = %q, want the verbatim provider message", rec.Error)
	}
	// The failed run must not leave a partial target story behind.
	stories.mu.Lock()
	defer stories.mu.Unlock()
	if len(stories.insertedStories) != 0 {
		t.Errorf("failed translation left %d target story record(s) behind", len(stories.insertedStories))
	}
	if len(stories.insertedChapters) != 0 {
		t.Errorf("failed translation left %d chapter(s) behind", len(stories.insertedChapters))
	}
}

func TestTranslate_RequiresProvider(t *testing.T) {
	runner := NewTranslateRunner(translateFixture(), nil, NewOrchestrator(newFakeTaskStore(), testLogger()))
	if _, _, err := runner.Start(context.Background(), "u-1", "st-1", "German"); err == nil {
		t.Fatal("Start() accepted a nil translator")
	}
}

// --- export audio fakes ---

type markerSynth struct{ calls int }

func (m *markerSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	m.calls++
	return []byte("<" + text[:6] + ">"), nil
}

type memArtifacts struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (m *memArtifacts) Put(_ context.Context, objectName, contentType string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
		m.types = map[string]string{}
	}
	m.objects[objectName] = data
	m.types[objectName] = contentType
	return nil
}

func (m *memArtifacts) Get(_ context.Context, objectName string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[objectName]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

func (m *memArtifacts) Delete(_ context.Context, objectName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectName)
	return nil
}

func TestExportAudio_SingleArtifact(t *testing.T) {
	stories := translateFixture()
	taskStore := newFakeTaskStore()
	artifacts := &memArtifacts{}
	synth := &markerSynth{}
	runner := NewExportAudioRunner(stories, synth, artifacts, NewOrchestrator(taskStore, testLogger()))

	_, total, err := runner.Start(context.Background(), "u-1", "st-1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	wantTotal := len([]rune("first paragraph")) + len([]rune("second paragraph"))
	if total != wantTotal {
		t.Errorf("total = %d, want %d characters", total, wantTotal)
	}

	rec := taskStore.wait(t)
	if rec.Status != models.TaskStatusCompleted || rec.Processed != wantTotal {
		t.Fatalf("record = %s processed=%d, want completed/%d", rec.Status, rec.Processed, wantTotal)
	}
	if rec.ResultID == "" || !strings.HasPrefix(rec.ResultID, "exports/st-1-") {
		t.Fatalf("result id = %q, want an exports/ object name", rec.ResultID)
	}
	if synth.calls != 2 {
		t.Errorf("synthesizer called %d times, want once per chapter", synth.calls)
	}

	data, err := artifacts.Get(context.Background(), rec.ResultID)
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	if !bytes.Equal(data, []byte("<first ><second>")) {
		t.Errorf("artifact = %q, want chapter audio concatenated in order", data)
	}
	if artifacts.types[rec.ResultID] != "audio/mpeg" {
		t.Errorf("content type = %q, want audio/mpeg", artifacts.types[rec.ResultID])
	}
}

func TestExportAudio_NoText(t *testing.T) {
	image, _ := models.NewMediaBlock("b1", models.BlockTypeImage, "images/only.png", "")
	stories := &fakeStories{
		story:    &models.Story{ID: "st-2", UserID: "u-1", Name: "Pictures"},
		chapters: []*models.Chapter{{ID: "ch", StoryID: "st-2", ContentBlocks: []models.ContentBlock{image}}},
	}
	runner := NewExportAudioRunner(stories, &markerSynth{}, &memArtifacts{}, NewOrchestrator(newFakeTaskStore(), testLogger()))
	if _, _, err := runner.Start(context.Background(), "u-1", "st-2"); err == nil {
		t.Fatal("Start() accepted a story with no narratable text")
	}
}

func TestRetentionSweep(t *testing.T) {
	taskStore := newFakeTaskStore()
	old := time.Now().UTC().Add(-48 * time.Hour)
	taskStore.records["stale"] = &models.TaskRecord{
		ID: "stale", Status: models.TaskStatusCompleted, CompletedAt: &old,
	}
	taskStore.records["live"] = &models.TaskRecord{
		ID: "live", Status: models.TaskStatusRunning,
	}

	removed, err := taskStore.DeleteFinishedBefore(context.Background(), time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteFinishedBefore() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, ok := taskStore.records["live"]; !ok {
		t.Error("running record was swept")
	}
}
