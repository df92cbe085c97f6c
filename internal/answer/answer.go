// Package answer turns a question plus retrieved document chunks into a
// grounded LLM answer with citations. The generator is only ever shown text
// that came out of the document library; when retrieval finds nothing
// relevant enough, no generation call is made at all.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/oraculo-labs/oraculo-go/internal/budget"
	"github.com/oraculo-labs/oraculo-go/internal/logging"
	"github.com/oraculo-labs/oraculo-go/internal/rag"
)

// ErrNoRelevantContent indicates that no indexed chunk scored at or above
// the relevance threshold for the question. The caller should surface this
// as "not found in the library", never as a generated answer.
var ErrNoRelevantContent = errors.New("answer: no relevant content in the document library")

// systemPrompt establishes the grounding contract: the model answers from
// the supplied document excerpts and nothing else.
const systemPrompt = `You are Oraculo, an assistant that answers questions about an organization's document library.

Rules you must always follow:
- Answer EXCLUSIVELY from the document excerpts provided below. Never use outside knowledge.
- If the excerpts do not contain the answer, say clearly that the information was not found in the available documents. Do not guess.
- When the excerpts disagree, say so and present both versions with their sources.
- Answer in the same language the question was asked in.
- Cite the source document of each fact using the [n] markers that label the excerpts.`

// Citation points a statement in the answer back at an indexed chunk.
type Citation struct {
	// Identity names the source document.
	Identity string `json:"identity"`
	// Page is the 1-based page the chunk came from.
	Page int `json:"page"`
	// Position is the chunk's sequence number within the document.
	Position int `json:"position"`
	// Score is the retrieval similarity score of the chunk.
	Score float32 `json:"score"`
}

// Record is the full result of answering one question.
type Record struct {
	// Question is the question as asked.
	Question string `json:"question"`
	// Answer is the generated grounded answer.
	Answer string `json:"answer"`
	// Retrieved lists every chunk that met the relevance threshold,
	// best-first, with its similarity score. It includes chunks the token
	// budget later dropped from the prompt.
	Retrieved []Citation `json:"retrieved"`
	// Citations lists the chunks that were actually shown to the model,
	// best-first. Chunks dropped by the token budget are not cited.
	Citations []Citation `json:"citations"`
	// AnsweredAt is when generation completed.
	AnsweredAt time.Time `json:"answered_at"`
}

// Config tunes the answering pipeline. Zero values select the defaults.
type Config struct {
	// TopK is how many chunks retrieval returns. Defaults to 5.
	TopK int

	// Threshold is the minimum similarity score a chunk needs to count as
	// relevant. Defaults to 0.5.
	Threshold float32

	// MaxContextTokens caps the estimated token size of the excerpt context.
	// Defaults to budget.DefaultMaxContextTokens.
	MaxContextTokens int
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.Threshold <= 0 {
		c.Threshold = 0.5
	}
	if c.MaxContextTokens <= 0 {
		c.MaxContextTokens = budget.DefaultMaxContextTokens
	}
	return c
}

// Answerer answers questions over the indexed document library.
type Answerer struct {
	model     model.BaseChatModel
	retriever rag.Retriever
	cfg       Config
	logger    *slog.Logger
}

// New constructs an Answerer.
func New(chatModel model.BaseChatModel, retriever rag.Retriever, cfg Config, logger *slog.Logger) (*Answerer, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("answer: chat model must not be nil")
	}
	if retriever == nil {
		return nil, fmt.Errorf("answer: retriever must not be nil")
	}
	return &Answerer{
		model:     chatModel,
		retriever: retriever,
		cfg:       cfg.withDefaults(),
		logger:    logging.WithComponent(logger, "answer"),
	}, nil
}

// Ask retrieves context for the question and generates a grounded answer.
// When every retrieved chunk scores below the threshold, Ask returns
// ErrNoRelevantContent without calling the model. An empty index propagates
// rag.ErrEmptyIndex unchanged.
func (a *Answerer) Ask(ctx context.Context, question string) (*Record, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("answer: question must not be empty")
	}

	scored, err := a.retriever.Retrieve(ctx, question, a.cfg.TopK)
	if err != nil {
		return nil, err
	}

	relevant := scored[:0:0]
	for _, sc := range scored {
		if sc.Score >= a.cfg.Threshold {
			relevant = append(relevant, sc)
		}
	}
	if len(relevant) == 0 {
		a.logger.InfoContext(ctx, "no chunk met the relevance threshold",
			"retrieved", len(scored), "threshold", a.cfg.Threshold)
		return nil, ErrNoRelevantContent
	}

	packed := budget.PackChunks(relevant, a.cfg.MaxContextTokens)
	a.logger.DebugContext(ctx, "packed retrieval context",
		"relevant", len(relevant), "packed", len(packed))

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(buildPrompt(question, packed)),
	}

	resp, err := a.model.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("answer: generate: %w", err)
	}

	return &Record{
		Question:   question,
		Answer:     resp.Content,
		Retrieved:  toCitations(relevant),
		Citations:  toCitations(packed),
		AnsweredAt: time.Now().UTC(),
	}, nil
}

// toCitations projects scored chunks onto their citation references.
func toCitations(scored []rag.ScoredChunk) []Citation {
	citations := make([]Citation, 0, len(scored))
	for _, sc := range scored {
		citations = append(citations, Citation{
			Identity: sc.Chunk.Identity,
			Page:     sc.Chunk.Page,
			Position: sc.Chunk.Position,
			Score:    sc.Score,
		})
	}
	return citations
}

// buildPrompt formats the packed excerpts and the question into the user
// message. Each excerpt carries a [n] marker the model cites by.
func buildPrompt(question string, packed []rag.ScoredChunk) string {
	var sb strings.Builder
	sb.WriteString("Document excerpts:\n\n")
	for i, sc := range packed {
		fmt.Fprintf(&sb, "[%d] %s (page %d)\n%s\n\n", i+1, sc.Chunk.Identity, sc.Chunk.Page, sc.Chunk.Text)
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	return sb.String()
}
