package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/paperbotai/paperbot/internal/middleware"
)

type RouterDeps struct {
	Auth       *AuthHandler
	Workspaces *WorkspaceHandler
	Documents  *DocumentHandler
	Queries    *QueryHandler
	Chats      *ChatHandler
	Models     *ModelHandler
	Audit      *AuditHandler
	JWTSecret  []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.GET("/auth/me", deps.Auth.Me)

	authGroup.POST("/workspaces", deps.Workspaces.Create)
	authGroup.GET("/workspaces", deps.Workspaces.List)
	authGroup.GET("/workspaces/:id", deps.Workspaces.Get)
	authGroup.DELETE("/workspaces/:id", deps.Workspaces.Delete)

	authGroup.POST("/workspaces/:id/documents", deps.Documents.Upload)
	authGroup.GET("/workspaces/:id/documents", deps.Documents.List)
	authGroup.GET("/workspaces/:id/documents/:doc_id", deps.Documents.Get)
	authGroup.GET("/workspaces/:id/documents/:doc_id/runs", deps.Documents.Runs)
	authGroup.POST("/workspaces/:id/documents/:doc_id/reprocess", deps.Documents.Reprocess)
	authGroup.DELETE("/workspaces/:id/documents/:doc_id", deps.Documents.Delete)
	authGroup.POST("/workspaces/:id/reindex", deps.Documents.Reindex)

	authGroup.POST("/workspaces/:id/query", deps.Queries.Query)
	authGroup.POST("/workspaces/:id/search", deps.Queries.Search)
	authGroup.POST("/workspaces/:id/summarize", deps.Queries.Summarize)

	authGroup.POST("/chat/sessions", deps.Chats.CreateSession)
	authGroup.GET("/chat/sessions", deps.Chats.ListSessions)
	authGroup.GET("/chat/sessions/:id", deps.Chats.GetSession)
	authGroup.POST("/chat/sessions/:id/messages", deps.Chats.SendMessage)

	authGroup.GET("/models/embedding", deps.Models.ListEmbedding)
	authGroup.POST("/models/embedding", deps.Models.CreateEmbedding)
	authGroup.PUT("/models/embedding/:id/activate", deps.Models.ActivateEmbedding)
	authGroup.GET("/models/generation", deps.Models.ListGeneration)
	authGroup.POST("/models/generation", deps.Models.CreateGeneration)
	authGroup.PUT("/models/generation/:id/activate", deps.Models.ActivateGeneration)

	authGroup.GET("/audit", deps.Audit.List)
}
