package search

import (
	"context"
	"math"
	"sort"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/store"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/config"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"
	"github.com/ikaraev-code/Intelligent-archive-02-22/pkg/logger"
)

// Match types reported alongside each search result.
const (
	MatchKeyword  = "keyword"
	MatchSemantic = "semantic"
)

const (
	lexicalCandidateLimit = 50
	// Raw mongo text scores below this are very weak matches and only add
	// noise to the merged list.
	minLexicalScore = 2.0
	// Text scores typically land in 0-20; dividing by 10 maps the useful
	// range onto 0-1 before boosts are applied.
	lexicalScoreScale = 10.0
)

// QueryEmbedder produces the vector for a search query. Satisfied by the
// OpenAI embedding client; nil when no provider is configured, in which case
// the engine degrades to lexical-only search.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Result is one ranked document with its fused relevance score.
type Result struct {
	Document   *models.Document `json:"file"`
	Score      float64          `json:"score"`
	MatchTypes []string         `json:"match_types"`
	// Semantic holds the best chunk similarity when the semantic pass hit
	// this document.
	Semantic float64 `json:"semantic_similarity,omitempty"`
}

// Page is a paginated slice of search results.
type Page struct {
	Results         []Result `json:"files"`
	Total           int      `json:"total"`
	Page            int      `json:"page"`
	Pages           int      `json:"pages"`
	SemanticEnabled bool     `json:"semantic_enabled"`
}

// Options shape one search call.
type Options struct {
	FileType string
	// RestrictTo limits scoring to the given document ids (story-scoped
	// chat). Empty means the whole visible corpus.
	RestrictTo []string
	// PriorityIDs mark documents that should surface even with thin overlap,
	// such as files attached earlier in the same conversation.
	PriorityIDs []string
	// LexicalOnly skips the semantic pass even when a provider is
	// configured, for callers that want cheap keyword matching.
	LexicalOnly bool
	Pagination  Pagination
}

// Pagination is 1-based; a zero value means the first page of 20.
type Pagination struct {
	Page  int
	Limit int
}

func (p Pagination) normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 20
	}
	return p
}

// Engine merges a weighted full-text pass with a cosine-similarity pass over
// chunk vectors into a single ranked list.
type Engine struct {
	documents store.DocumentStore
	chunks    store.ChunkStore
	embedder  QueryEmbedder
	cfg       config.SearchConfig
	logger    *logger.Logger
}

// NewEngine creates an Engine. A nil embedder disables the semantic pass.
func NewEngine(documents store.DocumentStore, chunks store.ChunkStore, embedder QueryEmbedder, cfg config.SearchConfig, log *logger.Logger) *Engine {
	return &Engine{
		documents: documents,
		chunks:    chunks,
		embedder:  embedder,
		cfg:       cfg,
		logger:    log,
	}
}

// SemanticEnabled reports whether an embedding provider is configured.
func (e *Engine) SemanticEnabled() bool { return e.embedder != nil }

// Search runs both passes, fuses the candidates and returns one page of
// results sorted by score, then by most recent upload.
func (e *Engine) Search(ctx context.Context, userID, query string, opts Options) (*Page, error) {
	pg := opts.Pagination.normalize()
	if query == "" {
		return &Page{Results: []Result{}, Page: 1, SemanticEnabled: e.SemanticEnabled()}, nil
	}

	merged := make(map[string]*Result)
	restrict := toSet(opts.RestrictTo)

	// Lexical pass. A failure here (no text index yet, bad query syntax) is
	// logged and the semantic pass still runs, matching the degraded modes
	// users actually hit.
	lexical, err := e.documents.TextSearch(ctx, userID, query, opts.FileType, lexicalCandidateLimit)
	if err != nil {
		e.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Lexical search pass failed")
	}
	for i := range lexical {
		doc := lexical[i].Document
		if lexical[i].Score < minLexicalScore {
			continue
		}
		if restrict != nil && !restrict[doc.ID] {
			continue
		}
		score := math.Min(lexical[i].Score/lexicalScoreScale, 1.0) * e.cfg.KeywordBoost
		merged[doc.ID] = &Result{
			Document:   &doc,
			Score:      score,
			MatchTypes: []string{MatchKeyword},
		}
	}

	// Semantic pass.
	if e.embedder != nil && !opts.LexicalOnly {
		if err := e.semanticPass(ctx, userID, query, opts, merged); err != nil {
			e.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Semantic search pass failed")
		}
	}

	results := make([]Result, 0, len(merged))
	for _, r := range merged {
		if isPriority(r.Document.ID, opts.PriorityIDs) {
			// The cap applies to the boost, not the score: a dual match
			// already above 1.0 keeps its score rather than being clamped
			// down to the cap.
			if boosted := math.Min(r.Score+e.cfg.PriorityBoost, 1.0); boosted > r.Score {
				r.Score = boosted
			}
		}
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.UploadedAt.After(results[j].Document.UploadedAt)
	})

	total := len(results)
	start := (pg.Page - 1) * pg.Limit
	if start > total {
		start = total
	}
	end := start + pg.Limit
	if end > total {
		end = total
	}

	pages := 0
	if total > 0 {
		pages = (total + pg.Limit - 1) / pg.Limit
	}
	return &Page{
		Results:         results[start:end],
		Total:           total,
		Page:            pg.Page,
		Pages:           pages,
		SemanticEnabled: e.SemanticEnabled(),
	}, nil
}

// semanticPass folds the best chunk similarity per document into merged.
// Documents found by both passes keep the higher of the two scores with a
// dual-match boost; semantic-only documents must clear a higher threshold
// before they are included at all.
func (e *Engine) semanticPass(ctx context.Context, userID, query string, opts Options, merged map[string]*Result) error {
	similarities, err := e.bestSimilarityPerDocument(ctx, userID, query, opts.RestrictTo)
	if err != nil {
		return err
	}

	var semanticOnly []string
	for id, sim := range similarities {
		if sim < e.cfg.SemanticThreshold {
			continue
		}
		if r, ok := merged[id]; ok {
			r.Score = math.Max(r.Score, sim) * e.cfg.DualMatchBoost
			r.MatchTypes = append(r.MatchTypes, MatchSemantic)
			r.Semantic = sim
		} else {
			semanticOnly = append(semanticOnly, id)
		}
	}
	if len(semanticOnly) == 0 {
		return nil
	}

	docs, err := e.documents.BatchStatus(ctx, userID, semanticOnly)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if opts.FileType != "" && opts.FileType != "all" && doc.FileType != opts.FileType {
			continue
		}
		sim := similarities[doc.ID]
		merged[doc.ID] = &Result{
			Document:   doc,
			Score:      sim,
			MatchTypes: []string{MatchSemantic},
			Semantic:   sim,
		}
	}
	return nil
}

// ScoredChunk is one retrieved passage with its similarity to the query.
type ScoredChunk struct {
	Chunk      models.Chunk
	Similarity float64
}

// RetrieveChunks returns the top passages for a query, most similar first.
// Chunks from priority documents get an additive boost before the final
// ranking, capped so a boosted weak match cannot outrank a genuinely perfect
// one. Used by the answering service to assemble context.
func (e *Engine) RetrieveChunks(ctx context.Context, userID, query string, restrictTo, priorityIDs []string, limit int) ([]ScoredChunk, error) {
	if e.embedder == nil {
		return nil, nil
	}
	scored, err := e.scoreChunks(ctx, userID, query, restrictTo)
	if err != nil {
		return nil, err
	}

	for i := range scored {
		if isPriority(scored[i].Chunk.DocumentID, priorityIDs) {
			scored[i].Similarity = math.Min(scored[i].Similarity+e.cfg.PriorityBoost, 1.0)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// scoreChunks embeds the query once and scores every chunk the user may see,
// dropping anything below the similarity floor.
func (e *Engine) scoreChunks(ctx context.Context, userID, query string, restrictTo []string) ([]ScoredChunk, error) {
	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	ids := restrictTo
	if len(ids) == 0 {
		ids, err = e.documents.VisibleIDs(ctx, userID)
		if err != nil {
			return nil, err
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	chunks, err := e.chunks.ForDocuments(ctx, ids)
	if err != nil {
		return nil, err
	}

	var scored []ScoredChunk
	for _, ch := range chunks {
		sim, ok := cosineSimilarity(queryVec, ch.Embedding)
		if !ok || sim <= e.cfg.SimilarityFloor {
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: ch, Similarity: sim})
	}
	return scored, nil
}

// bestSimilarityPerDocument collapses chunk similarities to the maximum per
// owning document.
func (e *Engine) bestSimilarityPerDocument(ctx context.Context, userID, query string, restrictTo []string) (map[string]float64, error) {
	scored, err := e.scoreChunks(ctx, userID, query, restrictTo)
	if err != nil {
		return nil, err
	}
	best := make(map[string]float64, len(scored))
	for _, s := range scored {
		if s.Similarity > best[s.Chunk.DocumentID] {
			best[s.Chunk.DocumentID] = s.Similarity
		}
	}
	return best, nil
}

// cosineSimilarity returns the cosine of the angle between a and b. The
// second return is false when either vector is empty, zero or of a different
// dimensionality.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

func toSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func isPriority(id string, priorityIDs []string) bool {
	for _, p := range priorityIDs {
		if p == id {
			return true
		}
	}
	return false
}
