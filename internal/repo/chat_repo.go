package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/paperbotai/paperbot/internal/model"
	appErr "github.com/paperbotai/paperbot/internal/pkg/errors"
)

type ChatRepo struct {
	db *sql.DB
}

func NewChatRepo(db *sql.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

func (r *ChatRepo) CreateSession(ctx context.Context, session *model.ChatSession) error {
	const query = `
		INSERT INTO chat_sessions (id, workspace_id, user_id, title, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.WorkspaceID, session.UserID, session.Title, session.Ctime, session.Mtime)
	return err
}

func (r *ChatRepo) GetSession(ctx context.Context, userID, id string) (*model.ChatSession, error) {
	const query = `
		SELECT id, workspace_id, user_id, title, ctime, mtime
		FROM chat_sessions
		WHERE id = $1 AND user_id = $2
	`
	row := r.db.QueryRowContext(ctx, query, id, userID)
	var session model.ChatSession
	if err := row.Scan(&session.ID, &session.WorkspaceID, &session.UserID, &session.Title,
		&session.Ctime, &session.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *ChatRepo) ListSessions(ctx context.Context, userID, workspaceID string) ([]model.ChatSession, error) {
	const query = `
		SELECT id, workspace_id, user_id, title, ctime, mtime
		FROM chat_sessions
		WHERE user_id = $1 AND workspace_id = $2
		ORDER BY mtime DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.ChatSession
	for rows.Next() {
		var session model.ChatSession
		if err := rows.Scan(&session.ID, &session.WorkspaceID, &session.UserID, &session.Title,
			&session.Ctime, &session.Mtime); err != nil {
			return nil, err
		}
		results = append(results, session)
	}
	return results, rows.Err()
}

func (r *ChatRepo) TouchSession(ctx context.Context, id string, mtime int64) error {
	const query = `UPDATE chat_sessions SET mtime = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, mtime, id)
	return err
}

func (r *ChatRepo) CreateMessage(ctx context.Context, msg *model.ChatMessage) error {
	citations, err := json.Marshal(msg.Citations)
	if err != nil {
		return err
	}
	chunkIDs, err := json.Marshal(msg.RetrievedChunkIDs)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO chat_messages (id, session_id, role, content, citations, retrieved_chunk_ids, model_config_id, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, query,
		msg.ID, msg.SessionID, msg.Role, msg.Content, citations, chunkIDs, msg.ModelConfigID, msg.Ctime)
	return err
}

// ListMessages returns the session history in chronological order.
func (r *ChatRepo) ListMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	const query = `
		SELECT id, session_id, role, content, citations, retrieved_chunk_ids, model_config_id, ctime
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY ctime
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.ChatMessage
	for rows.Next() {
		var msg model.ChatMessage
		var citations, chunkIDs []byte
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content,
			&citations, &chunkIDs, &msg.ModelConfigID, &msg.Ctime); err != nil {
			return nil, err
		}
		if len(citations) > 0 {
			if err := json.Unmarshal(citations, &msg.Citations); err != nil {
				return nil, err
			}
		}
		if len(chunkIDs) > 0 {
			if err := json.Unmarshal(chunkIDs, &msg.RetrievedChunkIDs); err != nil {
				return nil, err
			}
		}
		results = append(results, msg)
	}
	return results, rows.Err()
}
