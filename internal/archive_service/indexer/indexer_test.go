package indexer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/store"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"
	"github.com/ikaraev-code/Intelligent-archive-02-22/pkg/logger"
)

type stateChange struct {
	status models.EmbeddingStatus
	count  int
	errMsg string
}

// fakeDocs implements only the DocumentStore methods the indexer touches;
// anything else panics via the embedded nil interface.
type fakeDocs struct {
	store.DocumentStore
	changes []stateChange
}

func (f *fakeDocs) SetEmbeddingState(_ context.Context, _ string, status models.EmbeddingStatus, count int, errMsg string) error {
	f.changes = append(f.changes, stateChange{status, count, errMsg})
	return nil
}

func (f *fakeDocs) last() stateChange {
	return f.changes[len(f.changes)-1]
}

type fakeChunks struct {
	store.ChunkStore
	replaced map[string][]models.Chunk
}

func (f *fakeChunks) ReplaceForDocument(_ context.Context, documentID string, chunks []models.Chunk) error {
	if f.replaced == nil {
		f.replaced = make(map[string][]models.Chunk)
	}
	f.replaced[documentID] = chunks
	return nil
}

type fakeEmbedder struct {
	batches [][]string
	err     error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 1, 0}
	}
	return vectors, nil
}

func testLogger() *logger.Logger {
	return logger.New("indexer-test", "", "")
}

func newTestIndexer(docs *fakeDocs, chunks *fakeChunks, emb Embedder, batchSize int) *Indexer {
	c, _ := NewChunker(50, 10)
	return NewIndexer(docs, chunks, emb, c, batchSize, testLogger())
}

func TestIndex_Completed(t *testing.T) {
	docs := &fakeDocs{}
	chunks := &fakeChunks{}
	emb := &fakeEmbedder{}
	ix := newTestIndexer(docs, chunks, emb, 100)

	doc := &models.Document{
		ID:          "doc-1",
		UserID:      "u-1",
		Filename:    "report.pdf",
		Tags:        []string{"finance", "q3"},
		ContentText: strings.Repeat("the quick brown fox jumps over the lazy dog. ", 10),
	}

	if err := ix.Index(context.Background(), doc); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	if got := docs.changes[0].status; got != models.EmbeddingStatusProcessing {
		t.Errorf("first transition = %s, want processing", got)
	}
	final := docs.last()
	if final.status != models.EmbeddingStatusCompleted {
		t.Fatalf("final status = %s (%q), want completed", final.status, final.errMsg)
	}

	stored := chunks.replaced["doc-1"]
	if len(stored) == 0 {
		t.Fatal("no chunks were stored")
	}
	if final.count != len(stored) {
		t.Errorf("embedding count = %d, want %d", final.count, len(stored))
	}
	for i, ch := range stored {
		if ch.Position != i {
			t.Errorf("chunk %d has position %d, want %d", i, ch.Position, i)
		}
		if ch.DocumentID != "doc-1" {
			t.Errorf("chunk %d owned by %q, want doc-1", i, ch.DocumentID)
		}
		if len(ch.Embedding) != 3 {
			t.Errorf("chunk %d missing vector", i)
		}
		if ch.CreatedAt.IsZero() {
			t.Errorf("chunk %d has a zero created timestamp", i)
		}
	}

	// the provider sees the header, the store keeps the raw window
	first := emb.batches[0][0]
	if !strings.HasPrefix(first, "File: report.pdf\nTags: finance, q3\n") {
		t.Errorf("embed input missing header: %q", first)
	}
	if strings.HasPrefix(stored[0].Text, "File:") {
		t.Errorf("stored chunk text carries the embed header: %q", stored[0].Text)
	}
}

func TestIndex_BatchesRequests(t *testing.T) {
	docs := &fakeDocs{}
	chunks := &fakeChunks{}
	emb := &fakeEmbedder{}
	ix := newTestIndexer(docs, chunks, emb, 4)

	// 50-rune windows with step 40 over 400 runes -> 10 windows -> batches 4,4,2
	doc := &models.Document{ID: "doc-2", Filename: "big.txt", ContentText: strings.Repeat("abcdefghij", 40)}
	if err := ix.Index(context.Background(), doc); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	sizes := make([]int, len(emb.batches))
	for i, b := range emb.batches {
		sizes[i] = len(b)
	}
	want := []int{4, 4, 2}
	if len(sizes) != len(want) {
		t.Fatalf("batch sizes = %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Fatalf("batch sizes = %v, want %v", sizes, want)
		}
	}
}

func TestIndex_ProviderFailure(t *testing.T) {
	docs := &fakeDocs{}
	chunks := &fakeChunks{}
	emb := &fakeEmbedder{err: errors.New("429: rate limit exceeded for text-embedding-3-small")}
	ix := newTestIndexer(docs, chunks, emb, 100)

	doc := &models.Document{
		ID:             "doc-3",
		Filename:       "notes.txt",
		ContentText:    "some text worth embedding",
		EmbeddingCount: 7, // from an earlier successful pass
	}

	err := ix.Index(context.Background(), doc)
	if err == nil {
		t.Fatal("Index() returned nil error on provider failure")
	}

	final := docs.last()
	if final.status != models.EmbeddingStatusFailed {
		t.Fatalf("final status = %s, want failed", final.status)
	}
	if !strings.Contains(final.errMsg, "429: rate limit exceeded for text-embedding-3-small") {
		t.Errorf("provider message not preserved verbatim: %q", final.errMsg)
	}
	if final.count != 7 {
		t.Errorf("embedding count = %d, want previous count 7 preserved", final.count)
	}
	if len(chunks.replaced) != 0 {
		t.Error("chunk set was replaced despite the failed pass")
	}
}

func TestIndex_NoText(t *testing.T) {
	docs := &fakeDocs{}
	ix := newTestIndexer(docs, &fakeChunks{}, &fakeEmbedder{}, 100)

	doc := &models.Document{ID: "doc-4", Filename: "photo.png", ContentText: "   "}
	if err := ix.Index(context.Background(), doc); err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	final := docs.last()
	if final.status != models.EmbeddingStatusSkipped || final.count != 0 {
		t.Errorf("final = %+v, want skipped with count 0", final)
	}
}

func TestIndex_NoProvider(t *testing.T) {
	docs := &fakeDocs{}
	ix := newTestIndexer(docs, &fakeChunks{}, nil, 100)

	doc := &models.Document{ID: "doc-5", Filename: "notes.txt", ContentText: "plenty of text"}
	if err := ix.Index(context.Background(), doc); err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	final := docs.last()
	if final.status != models.EmbeddingStatusDisabled {
		t.Errorf("final status = %s, want disabled", final.status)
	}
}

func TestIndex_VectorCountMismatch(t *testing.T) {
	docs := &fakeDocs{}
	chunks := &fakeChunks{}
	ix := newTestIndexer(docs, chunks, &shortEmbedder{}, 100)

	doc := &models.Document{ID: "doc-6", Filename: "a.txt", ContentText: strings.Repeat("word ", 40)}
	if err := ix.Index(context.Background(), doc); err == nil {
		t.Fatal("Index() accepted a short vector batch")
	}
	if docs.last().status != models.EmbeddingStatusFailed {
		t.Errorf("final status = %s, want failed", docs.last().status)
	}
	if len(chunks.replaced) != 0 {
		t.Error("chunk set was replaced despite a short vector batch")
	}
}

type shortEmbedder struct{}

func (shortEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)-1), nil
}
