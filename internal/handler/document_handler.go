package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/paperbotai/paperbot/internal/pkg/errcode"
	"github.com/paperbotai/paperbot/internal/pkg/response"
	"github.com/paperbotai/paperbot/internal/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
}

func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Upload accepts a multipart form with a "file" part and an optional
// "title" field. Ingestion runs in the background; the response carries the
// document in uploaded state.
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "open uploaded file failed")
		return
	}
	defer file.Close()

	doc, err := h.documents.Upload(c.Request.Context(), getUserID(c), service.UploadRequest{
		WorkspaceID: c.Param("id"),
		Title:       c.PostForm("title"),
		Filename:    fileHeader.Filename,
		MimeType:    fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Content:     file,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), getUserID(c), c.Param("id"), c.Param("doc_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Runs(c *gin.Context) {
	runs, err := h.documents.Runs(c.Request.Context(), getUserID(c), c.Param("id"), c.Param("doc_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, runs)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), getUserID(c), c.Param("id"), c.Param("doc_id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *DocumentHandler) Reprocess(c *gin.Context) {
	jobID, err := h.documents.Reprocess(c.Request.Context(), getUserID(c), c.Param("id"), c.Param("doc_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"job_id": jobID})
}

func (h *DocumentHandler) Reindex(c *gin.Context) {
	jobID, err := h.documents.Reindex(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"job_id": jobID})
}
