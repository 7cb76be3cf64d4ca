package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/paperbotai/paperbot/internal/model"
	appErr "github.com/paperbotai/paperbot/internal/pkg/errors"
	"github.com/paperbotai/paperbot/internal/repo"
)

type ChatService struct {
	sessions   *repo.ChatRepo
	workspaces *repo.WorkspaceRepo
	models     *repo.ModelConfigRepo
	retrieval  *RetrievalService
	generation *GenerationService
	audit      *AuditService
}

func NewChatService(sessions *repo.ChatRepo, workspaces *repo.WorkspaceRepo, models *repo.ModelConfigRepo,
	retrieval *RetrievalService, generation *GenerationService, audit *AuditService) *ChatService {
	return &ChatService{
		sessions:   sessions,
		workspaces: workspaces,
		models:     models,
		retrieval:  retrieval,
		generation: generation,
		audit:      audit,
	}
}

func (s *ChatService) CreateSession(ctx context.Context, userID, workspaceID, title string) (*model.ChatSession, error) {
	if _, err := s.workspaces.GetByOwner(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "New chat"
	}
	now := time.Now().Unix()
	session := &model.ChatSession{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		UserID:      userID,
		Title:       title,
		Ctime:       now,
		Mtime:       now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) ListSessions(ctx context.Context, userID, workspaceID string) ([]model.ChatSession, error) {
	if _, err := s.workspaces.GetByOwner(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	return s.sessions.ListSessions(ctx, userID, workspaceID)
}

func (s *ChatService) GetSession(ctx context.Context, userID, sessionID string) (*model.ChatSession, []model.ChatMessage, error) {
	session, err := s.sessions.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.sessions.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session, messages, nil
}

// SendMessageResult pairs the stored user turn with the generated
// assistant turn.
type SendMessageResult struct {
	UserMessage      model.ChatMessage `json:"user_message"`
	AssistantMessage model.ChatMessage `json:"assistant_message"`
	Chunks           []ScoredChunk     `json:"chunks"`
}

// SendMessage records the user turn, retrieves context in the session's
// workspace and generates the assistant reply with the prior conversation
// folded into the prompt.
func (s *ChatService) SendMessage(ctx context.Context, userID, sessionID, content string, topK int) (*SendMessageResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, appErr.ErrInvalid
	}
	session, err := s.sessions.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	history, err := s.sessions.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	userMsg := model.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      model.RoleUser,
		Content:   content,
		Ctime:     now,
	}
	if err := s.sessions.CreateMessage(ctx, &userMsg); err != nil {
		return nil, err
	}

	chunks, err := s.retrieval.Retrieve(ctx, userID, session.WorkspaceID, content, topK)
	if err != nil {
		return nil, err
	}
	answer, citations, err := s.generation.Answer(ctx, content, chunks, history)
	if err != nil {
		return nil, err
	}

	chunkIDs := make([]string, 0, len(chunks))
	for _, sc := range chunks {
		chunkIDs = append(chunkIDs, sc.Chunk.ID)
	}
	assistantMsg := model.ChatMessage{
		ID:                uuid.NewString(),
		SessionID:         sessionID,
		Role:              model.RoleAssistant,
		Content:           answer,
		Citations:         citations,
		RetrievedChunkIDs: chunkIDs,
		ModelConfigID:     s.activeGenerationID(ctx),
		Ctime:             time.Now().Unix(),
	}
	if err := s.sessions.CreateMessage(ctx, &assistantMsg); err != nil {
		return nil, err
	}
	if err := s.sessions.TouchSession(ctx, sessionID, assistantMsg.Ctime); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, userID, model.AuditChat, "chat_session", sessionID, map[string]interface{}{
		"workspace_id": session.WorkspaceID,
	})
	return &SendMessageResult{UserMessage: userMsg, AssistantMessage: assistantMsg, Chunks: chunks}, nil
}

func (s *ChatService) activeGenerationID(ctx context.Context) string {
	mc, err := s.models.GetActiveGeneration(ctx)
	if err != nil {
		return ""
	}
	return mc.ID
}
