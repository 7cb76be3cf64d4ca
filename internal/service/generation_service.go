package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/paperbotai/paperbot/internal/ai"
	"github.com/paperbotai/paperbot/internal/config"
	"github.com/paperbotai/paperbot/internal/model"
	appErr "github.com/paperbotai/paperbot/internal/pkg/errors"
	"github.com/paperbotai/paperbot/internal/repo"
)

const (
	SummaryTypeShort       = "short"
	SummaryTypeDetailed    = "detailed"
	SummaryTypeRelatedWork = "related_work"
)

const (
	citationProbeLen = 50
	citationSnippet  = 200
	historyWindow    = 5
)

// CitationMatcher decides which retrieved chunks an answer actually drew
// from.
type CitationMatcher interface {
	Match(answer string, chunks []ScoredChunk) []model.Citation
}

// SummaryResult is the outcome of a multi-document summarization.
// RelatedWork is empty unless the related_work summary type was requested
// and the response contained the section.
type SummaryResult struct {
	Summary     string           `json:"summary"`
	RelatedWork string           `json:"related_work,omitempty"`
	Citations   []model.Citation `json:"citations"`
}

type generationConfigStore interface {
	GetActiveGeneration(ctx context.Context) (*model.GenerationModelConfig, error)
}

type GenerationService struct {
	models    generationConfigStore
	providers map[string]ai.IAIProvider
	timeout   time.Duration
	matcher   CitationMatcher
}

func NewGenerationService(models *repo.ModelConfigRepo, cfg config.GenerationConfig) (*GenerationService, error) {
	providers := make(map[string]ai.IAIProvider, len(cfg.Providers))
	for name, args := range cfg.Providers {
		provider, err := ai.NewProvider(name, args)
		if err != nil {
			return nil, fmt.Errorf("init generation provider %s: %w", name, err)
		}
		providers[strings.ToLower(name)] = provider
	}
	return &GenerationService{
		models:    models,
		providers: providers,
		timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		matcher:   heuristicMatcher{},
	}, nil
}

// SetMatcher swaps the citation matcher, mainly for tests.
func (s *GenerationService) SetMatcher(m CitationMatcher) {
	if m != nil {
		s.matcher = m
	}
}

// Answer runs retrieval-augmented generation over the given chunks and
// attributes the response back to its likely sources.
func (s *GenerationService) Answer(ctx context.Context, query string, chunks []ScoredChunk, history []model.ChatMessage) (string, []model.Citation, error) {
	prompt := buildQAPrompt(query, chunks, history)
	answer, err := s.generate(ctx, prompt)
	if err != nil {
		return "", nil, err
	}
	citations := s.matcher.Match(answer, chunks)
	return answer, citations, nil
}

// Summarize produces a multi-document summary over all chunks of the
// selected documents. Citations are deduplicated to one per document in
// first-seen order.
func (s *GenerationService) Summarize(ctx context.Context, chunks []ScoredChunk, summaryType string) (*SummaryResult, error) {
	switch summaryType {
	case SummaryTypeShort, SummaryTypeDetailed, SummaryTypeRelatedWork:
	case "":
		summaryType = SummaryTypeShort
	default:
		return nil, appErr.ErrInvalid
	}
	prompt := buildSummaryPrompt(chunks, summaryType)
	response, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result := &SummaryResult{Summary: response}
	if summaryType == SummaryTypeRelatedWork {
		parts := strings.SplitN(response, "Related Work:", 2)
		result.Summary = strings.TrimSpace(parts[0])
		if len(parts) > 1 {
			result.RelatedWork = strings.TrimSpace(parts[1])
		}
	}
	seen := make(map[string]bool)
	for _, sc := range chunks {
		if seen[sc.Chunk.DocumentID] {
			continue
		}
		seen[sc.Chunk.DocumentID] = true
		result.Citations = append(result.Citations, citationFor(sc))
	}
	if result.Citations == nil {
		result.Citations = []model.Citation{}
	}
	return result, nil
}

func (s *GenerationService) generate(ctx context.Context, prompt string) (string, error) {
	mc, err := s.models.GetActiveGeneration(ctx)
	if err != nil {
		if appErr.IsNotFound(err) {
			return "", appErr.ErrNoActiveModel
		}
		return "", err
	}
	provider, ok := s.providers[strings.ToLower(mc.Provider)]
	if !ok {
		return "", fmt.Errorf("%w: %s", appErr.ErrUnsupportedProvider, mc.Provider)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	answer, err := provider.Generate(ctx, mc.ModelID, prompt)
	if err != nil {
		if errors.Is(err, ai.ErrUnavailable) {
			return "", appErr.ErrModelUnavailable
		}
		return "", err
	}
	logutil.GetLogger(ctx).Debug("generation done",
		zap.String("provider", mc.Provider), zap.String("model", mc.ModelID), zap.Int("chars", len(answer)))
	return answer, nil
}

func contextText(chunks []ScoredChunk) string {
	blocks := make([]string, 0, len(chunks))
	for _, sc := range chunks {
		page := "N/A"
		if sc.Chunk.PageNumber > 0 {
			page = fmt.Sprintf("%d", sc.Chunk.PageNumber)
		}
		blocks = append(blocks, fmt.Sprintf("[Document: %s, Page: %s]\n%s", sc.DocumentTitle, page, sc.Chunk.Text))
	}
	return strings.Join(blocks, "\n\n")
}

func buildQAPrompt(query string, chunks []ScoredChunk, history []model.ChatMessage) string {
	const systemPrompt = `You are a research assistant that answers questions based on provided document excerpts.
Always cite your sources using the format [Document: title, Page: X] when referencing information from the context.
If the answer cannot be found in the context, say so clearly.`

	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n\n")
	if historyText := formatHistory(history); historyText != "" {
		sb.WriteString("Previous conversation:\n")
		sb.WriteString(historyText)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Context from documents:\n")
	sb.WriteString(contextText(chunks))
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(query)
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}

// formatHistory renders the last few user/assistant exchanges. Messages
// are paired in order; a trailing unanswered user message is dropped.
func formatHistory(history []model.ChatMessage) string {
	type exchange struct {
		user      string
		assistant string
	}
	var exchanges []exchange
	var pendingUser *string
	for i := range history {
		switch history[i].Role {
		case model.RoleUser:
			content := history[i].Content
			pendingUser = &content
		case model.RoleAssistant:
			if pendingUser == nil {
				continue
			}
			exchanges = append(exchanges, exchange{user: *pendingUser, assistant: history[i].Content})
			pendingUser = nil
		}
	}
	if len(exchanges) > historyWindow {
		exchanges = exchanges[len(exchanges)-historyWindow:]
	}
	lines := make([]string, 0, len(exchanges))
	for _, ex := range exchanges {
		lines = append(lines, fmt.Sprintf("User: %s\nAssistant: %s", ex.user, ex.assistant))
	}
	return strings.Join(lines, "\n")
}

func buildSummaryPrompt(chunks []ScoredChunk, summaryType string) string {
	context := contextText(chunks)
	if summaryType == SummaryTypeRelatedWork {
		return fmt.Sprintf(`Summarize the following research documents, focusing on related work and methodology.

Documents:
%s

Provide:
1. A brief summary (2-3 sentences)
2. A detailed "Related Work" section with inline citations in the format [Document: title, Page: X]

Summary:`, context)
	}
	kind := "brief"
	if summaryType == SummaryTypeDetailed {
		kind = "detailed"
	}
	return fmt.Sprintf(`Provide a %s summary of the following research documents.

Documents:
%s

Summary:`, kind, context)
}

// heuristicMatcher attributes a chunk when the answer mentions its document
// title or repeats one of the chunk's opening words.
type heuristicMatcher struct{}

func (heuristicMatcher) Match(answer string, chunks []ScoredChunk) []model.Citation {
	citations := make([]model.Citation, 0, len(chunks))
	for _, sc := range chunks {
		if sc.DocumentTitle != "" && strings.Contains(answer, sc.DocumentTitle) {
			citations = append(citations, citationFor(sc))
			continue
		}
		probe := truncate(sc.Chunk.Text, citationProbeLen)
		words := strings.Fields(probe)
		if len(words) > 5 {
			words = words[:5]
		}
		for _, word := range words {
			if strings.Contains(answer, word) {
				citations = append(citations, citationFor(sc))
				break
			}
		}
	}
	return citations
}

func citationFor(sc ScoredChunk) model.Citation {
	return model.Citation{
		DocumentID:    sc.Chunk.DocumentID,
		DocumentTitle: sc.DocumentTitle,
		ChunkID:       sc.Chunk.ID,
		PageNumber:    sc.Chunk.PageNumber,
		Snippet:       truncate(sc.Chunk.Text, citationSnippet),
		Score:         nil,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
