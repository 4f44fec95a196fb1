package chat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/search"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/store"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/llm"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"
	"github.com/ikaraev-code/Intelligent-archive-02-22/pkg/logger"

	"github.com/google/uuid"
)

// ErrNotConfigured is returned when no text-generation provider is set up.
// Handlers map it to 503 so clients can show a clear banner instead of a
// generic failure.
var ErrNotConfigured = errors.New("AI service is not configured")

const (
	// retrieveLimit chunks come back from the engine; after priority
	// re-ranking only contextLimit of them make it into the prompt.
	retrieveLimit = 8
	contextLimit  = 5

	// excerptLimit bounds the passage preview attached to each source.
	excerptLimit = 300

	// historyLimit is the number of prior turns replayed to the model.
	historyLimit = 20
)

const systemPrompt = `You are the AI Archivist, an intelligent assistant for a multimedia archive application.
You help users find, summarize and discuss the content of their archived files.
Be helpful, concise, and reference specific files when relevant. When answering questions about
file content, use the RELEVANT CONTENT section provided - it contains the most pertinent
information from the user's archive. Always cite which file the information comes from.`

// TextGenerator produces an assistant reply from a conversation. Satisfied
// by the OpenAI chat client.
type TextGenerator interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

// Retriever returns the best-matching passages for a query. Satisfied by
// the search engine.
type Retriever interface {
	RetrieveChunks(ctx context.Context, userID, query string, restrictTo, priorityIDs []string, limit int) ([]search.ScoredChunk, error)
}

// Reply is one assistant answer with its citations.
type Reply struct {
	Response  string              `json:"response"`
	SessionID string              `json:"session_id,omitempty"`
	Sources   []models.ChatSource `json:"sources"`
}

// Assistant answers questions against the archive: it retrieves relevant
// passages, grounds the model on them and returns the answer with one
// deduplicated source per originating document.
type Assistant struct {
	retriever Retriever
	documents store.DocumentStore
	stories   store.StoryStore
	sessions  store.SessionStore
	generator TextGenerator
	logger    *logger.Logger
}

// NewAssistant creates an Assistant. A nil generator means the text provider
// is unconfigured and every chat call returns ErrNotConfigured.
func NewAssistant(retriever Retriever, documents store.DocumentStore, stories store.StoryStore, sessions store.SessionStore, generator TextGenerator, log *logger.Logger) *Assistant {
	return &Assistant{
		retriever: retriever,
		documents: documents,
		stories:   stories,
		sessions:  sessions,
		generator: generator,
		logger:    log,
	}
}

// Ask answers a general assistant question against the whole visible corpus.
// An empty sessionID starts a new session; the reply carries the id to keep
// the conversation going.
func (a *Assistant) Ask(ctx context.Context, userID, sessionID, message string, priorityIDs []string) (*Reply, error) {
	if a.generator == nil {
		return nil, ErrNotConfigured
	}
	if sessionID == "" {
		sessionID = fmt.Sprintf("chat-%s-%s", userID, uuid.NewString())
	}

	ragContext, sources, err := a.buildContext(ctx, userID, message, nil, priorityIDs)
	if err != nil {
		// Retrieval trouble degrades to an answer without archive grounding.
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Context retrieval failed, answering without archive context")
	}

	system := systemPrompt
	if ragContext != "" {
		system += "\n\n" + ragContext
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: system}}
	history, err := a.sessions.History(ctx, sessionID)
	if err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to load session history")
	}
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})

	response, err := a.generator.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}

	if err := a.sessions.Append(ctx, sessionID,
		store.SessionMessage{Role: llm.RoleUser, Content: message},
		store.SessionMessage{Role: llm.RoleAssistant, Content: response},
	); err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to persist session history")
	}

	return &Reply{Response: response, SessionID: sessionID, Sources: sources}, nil
}

// AskStory answers inside one story, with retrieval restricted to the
// story's documents and the exchange persisted to the story's chat history.
func (a *Assistant) AskStory(ctx context.Context, userID, storyID, message string) (*Reply, error) {
	if a.generator == nil {
		return nil, ErrNotConfigured
	}
	story, err := a.stories.GetByID(ctx, storyID, userID)
	if err != nil {
		return nil, err
	}

	var ragContext string
	var sources []models.ChatSource
	if len(story.DocumentIDs) > 0 {
		ragContext, sources, err = a.buildContext(ctx, userID, message, story.DocumentIDs, nil)
		if err != nil {
			a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Context retrieval failed, answering without archive context")
		}
	}

	system := a.storyPrompt(ctx, story)
	if ragContext != "" {
		system += "\n\n" + ragContext
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: system}}
	prior, err := a.stories.ListMessages(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if len(prior) > historyLimit {
		prior = prior[len(prior)-historyLimit:]
	}
	for _, turn := range prior {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})

	response, err := a.generator.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	userMsg := &models.StoryMessage{
		ID:        uuid.NewString(),
		StoryID:   storyID,
		Role:      llm.RoleUser,
		Content:   message,
		CreatedAt: now,
	}
	assistantMsg := &models.StoryMessage{
		ID:        uuid.NewString(),
		StoryID:   storyID,
		Role:      llm.RoleAssistant,
		Content:   response,
		Sources:   sources,
		CreatedAt: now,
	}
	if err := a.stories.AppendMessage(ctx, userMsg); err != nil {
		return nil, err
	}
	if err := a.stories.AppendMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}

	return &Reply{Response: response, Sources: sources}, nil
}

// SessionHistory returns the stored turns of a general assistant session.
func (a *Assistant) SessionHistory(ctx context.Context, sessionID string) ([]store.SessionMessage, error) {
	if sessionID == "" {
		return []store.SessionMessage{}, nil
	}
	return a.sessions.History(ctx, sessionID)
}

// ClearSession drops a general assistant session.
func (a *Assistant) ClearSession(ctx context.Context, sessionID string) error {
	return a.sessions.Clear(ctx, sessionID)
}

// storyPrompt builds the system message for story-scoped chat, listing the
// story's documents so the model can reference them by name.
func (a *Assistant) storyPrompt(ctx context.Context, story *models.Story) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the AI Archivist working on the collection %q.\n", story.Name)
	if story.Description != "" {
		fmt.Fprintf(&b, "Collection description: %s\n", story.Description)
	}
	fmt.Fprintf(&b, "\nThis collection has %d selected file(s):\n", len(story.DocumentIDs))

	if len(story.DocumentIDs) > 0 {
		docs, err := a.documents.BatchStatus(ctx, story.UserID, story.DocumentIDs)
		if err != nil {
			a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to list collection documents for prompt")
		}
		for _, d := range docs {
			tags := "no tags"
			if len(d.Tags) > 0 {
				tags = strings.Join(d.Tags, ", ")
			}
			fmt.Fprintf(&b, "- %s (%s): tags=[%s]\n", d.Filename, d.FileType, tags)
		}
	}
	b.WriteString("\nYou help the user analyze, summarize, and discuss the content of these files.\n")
	b.WriteString("Be helpful, concise, and always cite which file the information comes from.")
	return b.String()
}

// buildContext retrieves the top passages for the query, formats them into a
// prompt section and collapses them into at most one source per document.
// Passages whose document has been deleted since retrieval are dropped
// silently.
func (a *Assistant) buildContext(ctx context.Context, userID, query string, restrictTo, priorityIDs []string) (string, []models.ChatSource, error) {
	scored, err := a.retriever.RetrieveChunks(ctx, userID, query, restrictTo, priorityIDs, retrieveLimit)
	if err != nil {
		return "", nil, err
	}
	if len(scored) == 0 {
		return "", nil, nil
	}
	if len(scored) > contextLimit {
		scored = scored[:contextLimit]
	}

	ids := make([]string, 0, len(scored))
	seen := map[string]bool{}
	for _, s := range scored {
		if !seen[s.Chunk.DocumentID] {
			seen[s.Chunk.DocumentID] = true
			ids = append(ids, s.Chunk.DocumentID)
		}
	}
	docs, err := a.documents.BatchStatus(ctx, userID, ids)
	if err != nil {
		return "", nil, err
	}
	byID := make(map[string]*models.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	var b strings.Builder
	b.WriteString("Relevant content from the archive (use this to answer the user's question). IMPORTANT: When citing information, reference the source file name.")

	var sources []models.ChatSource
	cited := map[string]bool{}
	for _, s := range scored {
		doc, ok := byID[s.Chunk.DocumentID]
		if !ok {
			continue
		}
		if !cited[doc.ID] {
			fmt.Fprintf(&b, "\n\n--- From: %s (relevance: %.2f) ---", doc.Filename, s.Similarity)
			cited[doc.ID] = true
			sources = append(sources, models.ChatSource{
				DocumentID: doc.ID,
				Filename:   doc.Filename,
				FileType:   doc.FileType,
				Excerpt:    excerpt(s.Chunk.Text),
				Relevance:  math.Round(s.Similarity*100) / 100,
			})
		}
		b.WriteString("\n")
		b.WriteString(s.Chunk.Text)
	}
	if len(sources) == 0 {
		return "", nil, nil
	}
	return b.String(), sources, nil
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLimit {
		return text
	}
	return string(runes[:excerptLimit])
}
