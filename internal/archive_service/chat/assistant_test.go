package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/search"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/store"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/llm"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"
	"github.com/ikaraev-code/Intelligent-archive-02-22/pkg/logger"
)

type fakeRetriever struct {
	chunks     []search.ScoredChunk
	restrictTo []string
	priority   []string
	err        error
}

func (f *fakeRetriever) RetrieveChunks(_ context.Context, _, _ string, restrictTo, priorityIDs []string, limit int) ([]search.ScoredChunk, error) {
	f.restrictTo = restrictTo
	f.priority = priorityIDs
	if f.err != nil {
		return nil, f.err
	}
	if len(f.chunks) > limit {
		return f.chunks[:limit], nil
	}
	return f.chunks, nil
}

type fakeDocs struct {
	store.DocumentStore
	docs map[string]*models.Document
}

func (f *fakeDocs) BatchStatus(_ context.Context, _ string, ids []string) ([]*models.Document, error) {
	var out []*models.Document
	for _, id := range ids {
		if d, ok := f.docs[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeSessions struct {
	turns map[string][]store.SessionMessage
}

func (f *fakeSessions) Append(_ context.Context, sessionID string, msgs ...store.SessionMessage) error {
	if f.turns == nil {
		f.turns = map[string][]store.SessionMessage{}
	}
	f.turns[sessionID] = append(f.turns[sessionID], msgs...)
	return nil
}

func (f *fakeSessions) History(_ context.Context, sessionID string) ([]store.SessionMessage, error) {
	return f.turns[sessionID], nil
}

func (f *fakeSessions) Clear(_ context.Context, sessionID string) error {
	delete(f.turns, sessionID)
	return nil
}

type fakeStories struct {
	store.StoryStore
	story     *models.Story
	messages  []*models.StoryMessage
	persisted []*models.StoryMessage
}

func (f *fakeStories) GetByID(_ context.Context, id, _ string) (*models.Story, error) {
	if f.story == nil || f.story.ID != id {
		return nil, store.ErrNotFound
	}
	return f.story, nil
}

func (f *fakeStories) ListMessages(_ context.Context, _ string) ([]*models.StoryMessage, error) {
	return f.messages, nil
}

func (f *fakeStories) AppendMessage(_ context.Context, msg *models.StoryMessage) error {
	f.persisted = append(f.persisted, msg)
	return nil
}

type fakeGenerator struct {
	received []llm.Message
	reply    string
	err      error
}

func (f *fakeGenerator) Chat(_ context.Context, messages []llm.Message) (string, error) {
	f.received = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func chunk(docID, text string, sim float64) search.ScoredChunk {
	return search.ScoredChunk{
		Chunk:      models.Chunk{ID: docID + "-" + text[:3], DocumentID: docID, Text: text},
		Similarity: sim,
	}
}

func newTestAssistant(r Retriever, docs *fakeDocs, stories *fakeStories, sessions *fakeSessions, gen TextGenerator) *Assistant {
	if sessions == nil {
		sessions = &fakeSessions{}
	}
	return NewAssistant(r, docs, stories, sessions, gen, logger.New("chat-test", "", ""))
}

func TestAsk_SourceDedup(t *testing.T) {
	retriever := &fakeRetriever{chunks: []search.ScoredChunk{
		chunk("X", "first passage from X", 0.9),
		chunk("X", "second passage from X", 0.8),
		chunk("Y", "passage from Y", 0.6),
		chunk("X", "third passage from X", 0.55),
	}}
	docs := &fakeDocs{docs: map[string]*models.Document{
		"X": {ID: "X", Filename: "handbook.pdf", FileType: "pdf"},
		"Y": {ID: "Y", Filename: "notes.txt", FileType: "text"},
	}}
	gen := &fakeGenerator{reply: "answer"}

	reply, err := newTestAssistant(retriever, docs, nil, nil, gen).
		Ask(context.Background(), "u-1", "s-1", "what does the handbook say?", nil)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if len(reply.Sources) != 2 {
		t.Fatalf("got %d sources, want 2 (one per document)", len(reply.Sources))
	}
	if reply.Sources[0].DocumentID != "X" || reply.Sources[1].DocumentID != "Y" {
		t.Errorf("sources = [%s %s], want [X Y]", reply.Sources[0].DocumentID, reply.Sources[1].DocumentID)
	}
	// The representative excerpt is the best-scoring passage of X.
	if reply.Sources[0].Excerpt != "first passage from X" {
		t.Errorf("excerpt = %q, want the 0.9 passage", reply.Sources[0].Excerpt)
	}
	if reply.Sources[0].Relevance != 0.9 {
		t.Errorf("relevance = %v, want 0.9", reply.Sources[0].Relevance)
	}

	// All retrieved passages still reach the model.
	system := gen.received[0].Content
	for _, want := range []string{"first passage from X", "second passage from X", "passage from Y"} {
		if !strings.Contains(system, want) {
			t.Errorf("system prompt missing passage %q", want)
		}
	}
}

func TestAsk_DeletedSourceDropped(t *testing.T) {
	retriever := &fakeRetriever{chunks: []search.ScoredChunk{
		chunk("X", "live passage here", 0.9),
		chunk("Z", "ghost passage orphan", 0.8), // document deleted after retrieval
	}}
	docs := &fakeDocs{docs: map[string]*models.Document{
		"X": {ID: "X", Filename: "alive.txt", FileType: "text"},
	}}
	gen := &fakeGenerator{reply: "answer"}

	reply, err := newTestAssistant(retriever, docs, nil, nil, gen).
		Ask(context.Background(), "u-1", "s-1", "q", nil)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if len(reply.Sources) != 1 || reply.Sources[0].DocumentID != "X" {
		t.Fatalf("sources = %+v, want only X", reply.Sources)
	}
	if strings.Contains(gen.received[0].Content, "ghost passage") {
		t.Error("deleted document's passage leaked into the prompt")
	}
}

func TestAsk_NotConfigured(t *testing.T) {
	a := newTestAssistant(&fakeRetriever{}, &fakeDocs{}, nil, nil, nil)
	if _, err := a.Ask(context.Background(), "u-1", "", "q", nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Ask() error = %v, want ErrNotConfigured", err)
	}
}

func TestAsk_SessionFlow(t *testing.T) {
	sessions := &fakeSessions{turns: map[string][]store.SessionMessage{
		"s-1": {
			{Role: llm.RoleUser, Content: "earlier question"},
			{Role: llm.RoleAssistant, Content: "earlier answer"},
		},
	}}
	gen := &fakeGenerator{reply: "fresh answer"}

	reply, err := newTestAssistant(&fakeRetriever{}, &fakeDocs{}, nil, sessions, gen).
		Ask(context.Background(), "u-1", "s-1", "new question", nil)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	// system + two history turns + the new question
	if len(gen.received) != 4 {
		t.Fatalf("model saw %d messages, want 4", len(gen.received))
	}
	if gen.received[1].Content != "earlier question" || gen.received[2].Content != "earlier answer" {
		t.Error("history turns not replayed in order")
	}
	if gen.received[3].Role != llm.RoleUser || gen.received[3].Content != "new question" {
		t.Errorf("last message = %+v, want the new question", gen.received[3])
	}

	stored := sessions.turns["s-1"]
	if len(stored) != 4 || stored[3].Content != "fresh answer" {
		t.Errorf("session after Ask has %d turns, want both new turns appended", len(stored))
	}
	if reply.SessionID != "s-1" {
		t.Errorf("SessionID = %q, want s-1", reply.SessionID)
	}
}

func TestAsk_GeneratesSessionID(t *testing.T) {
	gen := &fakeGenerator{reply: "hello"}
	reply, err := newTestAssistant(&fakeRetriever{}, &fakeDocs{}, nil, nil, gen).
		Ask(context.Background(), "u-1", "", "hi", nil)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !strings.HasPrefix(reply.SessionID, "chat-u-1-") {
		t.Errorf("SessionID = %q, want a generated chat-u-1-* id", reply.SessionID)
	}
}

func TestAskStory_RestrictsRetrievalAndPersists(t *testing.T) {
	retriever := &fakeRetriever{chunks: []search.ScoredChunk{
		chunk("A", "scoped passage", 0.7),
	}}
	docs := &fakeDocs{docs: map[string]*models.Document{
		"A": {ID: "A", Filename: "chapter-notes.md", FileType: "text"},
	}}
	stories := &fakeStories{story: &models.Story{
		ID:          "st-1",
		UserID:      "u-1",
		Name:        "Research",
		DocumentIDs: []string{"A", "B"},
		Status:      models.StoryStatusActive,
	}}
	gen := &fakeGenerator{reply: "scoped answer"}

	reply, err := newTestAssistant(retriever, docs, stories, nil, gen).
		AskStory(context.Background(), "u-1", "st-1", "summarize")
	if err != nil {
		t.Fatalf("AskStory() error = %v", err)
	}

	if len(retriever.restrictTo) != 2 {
		t.Errorf("retrieval restricted to %v, want the story's two documents", retriever.restrictTo)
	}
	if len(stories.persisted) != 2 {
		t.Fatalf("persisted %d story messages, want user+assistant", len(stories.persisted))
	}
	if stories.persisted[0].Role != llm.RoleUser || stories.persisted[1].Role != llm.RoleAssistant {
		t.Error("persisted turns out of order")
	}
	if len(stories.persisted[1].Sources) != 1 {
		t.Errorf("assistant turn has %d sources, want 1", len(stories.persisted[1].Sources))
	}
	if reply.Response != "scoped answer" {
		t.Errorf("Response = %q", reply.Response)
	}
}

func TestAskStory_UnknownStory(t *testing.T) {
	a := newTestAssistant(&fakeRetriever{}, &fakeDocs{}, &fakeStories{}, nil, &fakeGenerator{reply: "x"})
	if _, err := a.AskStory(context.Background(), "u-1", "missing", "q"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("AskStory() error = %v, want ErrNotFound", err)
	}
}
