package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperbotai/paperbot/internal/ai"
	"github.com/paperbotai/paperbot/internal/model"
	appErr "github.com/paperbotai/paperbot/internal/pkg/errors"
)

type fakeGenStore struct {
	mc  *model.GenerationModelConfig
	err error
}

func (f *fakeGenStore) GetActiveGeneration(ctx context.Context) (*model.GenerationModelConfig, error) {
	return f.mc, f.err
}

type scriptedProvider struct {
	response string
	prompts  []string
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(ctx context.Context, modelID string, prompt string) (string, error) {
	p.prompts = append(p.prompts, prompt)
	return p.response, nil
}

func newScriptedService(response string) (*GenerationService, *scriptedProvider) {
	provider := &scriptedProvider{response: response}
	svc := &GenerationService{
		models:    &fakeGenStore{mc: &model.GenerationModelConfig{ID: "g1", Provider: "scripted", ModelID: "test-model"}},
		providers: map[string]ai.IAIProvider{"scripted": provider},
		matcher:   heuristicMatcher{},
	}
	return svc, provider
}

func sourceChunk(docID, title, text string) ScoredChunk {
	return ScoredChunk{
		Chunk:         model.Chunk{ID: "chunk-" + docID, DocumentID: docID, Text: text, PageNumber: 3},
		DocumentTitle: title,
	}
}

func TestHeuristicMatcherTitleMatch(t *testing.T) {
	chunks := []ScoredChunk{sourceChunk("d1", "Attention Is All You Need", "zzz qqq xxx")}
	citations := heuristicMatcher{}.Match("As shown in Attention Is All You Need, ...", chunks)
	require.Len(t, citations, 1)
	assert.Equal(t, "d1", citations[0].DocumentID)
	assert.Equal(t, "chunk-d1", citations[0].ChunkID)
	assert.Nil(t, citations[0].Score)
}

func TestHeuristicMatcherOpeningWords(t *testing.T) {
	chunks := []ScoredChunk{sourceChunk("d1", "Untitled", "transformers rely on self-attention mechanisms entirely")}
	citations := heuristicMatcher{}.Match("The paper discusses transformers in depth.", chunks)
	require.Len(t, citations, 1)
	assert.Equal(t, "transformers rely on self-attention mechanisms entirely", citations[0].Snippet)
}

func TestHeuristicMatcherNoMatch(t *testing.T) {
	chunks := []ScoredChunk{sourceChunk("d1", "Some Paper", "alpha beta gamma delta epsilon")}
	citations := heuristicMatcher{}.Match("completely unrelated response", chunks)
	assert.Empty(t, citations)
}

func TestAnswerPromptLayout(t *testing.T) {
	svc, provider := newScriptedService("the answer")
	chunks := []ScoredChunk{sourceChunk("d1", "Paper One", "relevant excerpt text")}
	history := []model.ChatMessage{
		{Role: model.RoleUser, Content: "earlier question"},
		{Role: model.RoleAssistant, Content: "earlier answer"},
	}
	answer, _, err := svc.Answer(context.Background(), "what now?", chunks, history)
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)

	require.Len(t, provider.prompts, 1)
	prompt := provider.prompts[0]
	assert.Contains(t, prompt, "You are a research assistant")
	assert.Contains(t, prompt, "Previous conversation:\nUser: earlier question\nAssistant: earlier answer")
	assert.Contains(t, prompt, "[Document: Paper One, Page: 3]\nrelevant excerpt text")
	assert.Contains(t, prompt, "Question: what now?")
}

func TestFormatHistoryWindow(t *testing.T) {
	var history []model.ChatMessage
	for i := 0; i < 8; i++ {
		history = append(history,
			model.ChatMessage{Role: model.RoleUser, Content: string(rune('a' + i))},
			model.ChatMessage{Role: model.RoleAssistant, Content: string(rune('A' + i))},
		)
	}
	text := formatHistory(history)
	// Only the last five exchanges survive.
	assert.NotContains(t, text, "User: a")
	assert.NotContains(t, text, "User: c")
	assert.Contains(t, text, "User: d")
	assert.Contains(t, text, "User: h\nAssistant: H")
}

func TestFormatHistoryDropsUnansweredTail(t *testing.T) {
	history := []model.ChatMessage{
		{Role: model.RoleUser, Content: "q1"},
		{Role: model.RoleAssistant, Content: "a1"},
		{Role: model.RoleUser, Content: "pending"},
	}
	text := formatHistory(history)
	assert.Contains(t, text, "q1")
	assert.NotContains(t, text, "pending")
}

func TestSummarizeRelatedWorkSplit(t *testing.T) {
	svc, _ := newScriptedService("A short overview.\n\nRelated Work:\nPrior systems did X.")
	chunks := []ScoredChunk{sourceChunk("d1", "Paper One", "some text")}
	result, err := svc.Summarize(context.Background(), chunks, SummaryTypeRelatedWork)
	require.NoError(t, err)
	assert.Equal(t, "A short overview.", result.Summary)
	assert.Equal(t, "Prior systems did X.", result.RelatedWork)
}

func TestSummarizeRelatedWorkMarkerAbsent(t *testing.T) {
	svc, _ := newScriptedService("Just a plain summary with no section marker.")
	chunks := []ScoredChunk{sourceChunk("d1", "Paper One", "some text")}
	result, err := svc.Summarize(context.Background(), chunks, SummaryTypeRelatedWork)
	require.NoError(t, err)
	assert.Equal(t, "Just a plain summary with no section marker.", result.Summary)
	assert.Empty(t, result.RelatedWork)
}

func TestSummarizeCitationsOnePerDocument(t *testing.T) {
	svc, _ := newScriptedService("summary text")
	chunks := []ScoredChunk{
		sourceChunk("d1", "Paper One", "first chunk of paper one"),
		{Chunk: model.Chunk{ID: "chunk-d1-2", DocumentID: "d1", Text: "second chunk"}, DocumentTitle: "Paper One"},
		sourceChunk("d2", "Paper Two", "chunk of paper two"),
	}
	result, err := svc.Summarize(context.Background(), chunks, SummaryTypeShort)
	require.NoError(t, err)
	require.Len(t, result.Citations, 2)
	assert.Equal(t, "d1", result.Citations[0].DocumentID)
	assert.Equal(t, "chunk-d1", result.Citations[0].ChunkID)
	assert.Equal(t, "d2", result.Citations[1].DocumentID)
}

func TestSummarizeRejectsUnknownType(t *testing.T) {
	svc, _ := newScriptedService("whatever")
	_, err := svc.Summarize(context.Background(), nil, "haiku")
	assert.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestGenerateNoActiveModel(t *testing.T) {
	svc := &GenerationService{
		models:    &fakeGenStore{err: appErr.ErrNotFound},
		providers: map[string]ai.IAIProvider{},
		matcher:   heuristicMatcher{},
	}
	_, _, err := svc.Answer(context.Background(), "q", nil, nil)
	assert.ErrorIs(t, err, appErr.ErrNoActiveModel)
}

func TestGenerateUnknownProvider(t *testing.T) {
	svc := &GenerationService{
		models:    &fakeGenStore{mc: &model.GenerationModelConfig{Provider: "mystery"}},
		providers: map[string]ai.IAIProvider{},
		matcher:   heuristicMatcher{},
	}
	_, _, err := svc.Answer(context.Background(), "q", nil, nil)
	assert.ErrorIs(t, err, appErr.ErrUnsupportedProvider)
}
