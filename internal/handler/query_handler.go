package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/paperbotai/paperbot/internal/pkg/errcode"
	"github.com/paperbotai/paperbot/internal/pkg/response"
	"github.com/paperbotai/paperbot/internal/service"
)

type QueryHandler struct {
	queries   *service.QueryService
	retrieval *service.RetrievalService
}

func NewQueryHandler(queries *service.QueryService, retrieval *service.RetrievalService) *QueryHandler {
	return &QueryHandler{queries: queries, retrieval: retrieval}
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// Query answers a question over the workspace with citations.
func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.queries.Query(c.Request.Context(), getUserID(c), c.Param("id"), req.Query, req.TopK)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

// Search returns the raw retrieval hits without generation.
func (h *QueryHandler) Search(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	chunks, err := h.retrieval.Retrieve(c.Request.Context(), getUserID(c), c.Param("id"), req.Query, req.TopK)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chunks)
}

type summarizeRequest struct {
	DocumentIDs []string `json:"document_ids"`
	SummaryType string   `json:"summary_type"`
}

func (h *QueryHandler) Summarize(c *gin.Context) {
	var req summarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.queries.Summarize(c.Request.Context(), getUserID(c), c.Param("id"), req.DocumentIDs, req.SummaryType)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
