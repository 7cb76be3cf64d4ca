package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/paperbotai/paperbot/internal/pkg/errcode"
	"github.com/paperbotai/paperbot/internal/pkg/response"
	"github.com/paperbotai/paperbot/internal/service"
)

type ModelHandler struct {
	models *service.ModelService
}

func NewModelHandler(models *service.ModelService) *ModelHandler {
	return &ModelHandler{models: models}
}

type embeddingModelRequest struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	ModelID   string `json:"model_id"`
	Dimension int    `json:"dimension"`
}

func (h *ModelHandler) ListEmbedding(c *gin.Context) {
	list, err := h.models.ListEmbedding(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, list)
}

func (h *ModelHandler) CreateEmbedding(c *gin.Context) {
	var req embeddingModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	mc, err := h.models.CreateEmbedding(c.Request.Context(), req.Name, req.Version, req.ModelID, req.Dimension)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, mc)
}

func (h *ModelHandler) ActivateEmbedding(c *gin.Context) {
	if err := h.models.ActivateEmbedding(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nil)
}

type generationModelRequest struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Provider string `json:"provider"`
	ModelID  string `json:"model_id"`
}

func (h *ModelHandler) ListGeneration(c *gin.Context) {
	list, err := h.models.ListGeneration(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, list)
}

func (h *ModelHandler) CreateGeneration(c *gin.Context) {
	var req generationModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	mc, err := h.models.CreateGeneration(c.Request.Context(), req.Name, req.Version, req.Provider, req.ModelID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, mc)
}

func (h *ModelHandler) ActivateGeneration(c *gin.Context) {
	if err := h.models.ActivateGeneration(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nil)
}
