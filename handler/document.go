package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/CharlyTlelo/abc-exprezo-contratos/model"
	"github.com/CharlyTlelo/abc-exprezo-contratos/service"
	"github.com/gin-gonic/gin"
)

// MaxUploadSize bounds a single PDF upload.
const MaxUploadSize = 32 << 20

type DocumentHandler struct {
	workflow *service.Workflow
}

func NewDocumentHandler(workflow *service.Workflow) *DocumentHandler {
	return &DocumentHandler{workflow: workflow}
}

type ReadyRequest struct {
	Ready *bool `json:"ready" binding:"required"`
}

// List returns the documents of a contract grouped by section, or those of
// one section with ?section=
func (h *DocumentHandler) List(c *gin.Context) {
	folio := c.Param("folio")

	if key := c.Query("section"); key != "" {
		section, err := model.ParseSection(key)
		if err != nil {
			respondError(c, fmt.Errorf("%w: %q", service.ErrInvalidSection, key))
			return
		}
		docs, err := h.workflow.SectionDocuments(c.Request.Context(), folio, section)
		if err != nil {
			respondError(c, err)
			return
		}
		if docs == nil {
			docs = []model.Document{}
		}
		c.JSON(http.StatusOK, gin.H{"section": section, "documents": docs})
		return
	}

	sections, err := h.workflow.Documents(c.Request.Context(), folio)
	if err != nil {
		respondError(c, err)
		return
	}
	for sec, docs := range sections {
		if docs == nil {
			sections[sec] = []model.Document{}
		}
	}

	c.JSON(http.StatusOK, gin.H{"sections": sections})
}

// Upload adds a PDF to a section
func (h *DocumentHandler) Upload(c *gin.Context) {
	section, err := model.ParseSection(c.Param("section"))
	if err != nil {
		respondError(c, fmt.Errorf("%w: %q", service.ErrInvalidSection, c.Param("section")))
		return
	}

	content, ok := readUpload(c)
	if !ok {
		return
	}

	result, err := h.workflow.Upload(c.Request.Context(), c.Param("folio"), section, content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Replace swaps the payload of a document
func (h *DocumentHandler) Replace(c *gin.Context) {
	content, ok := readUpload(c)
	if !ok {
		return
	}

	result, err := h.workflow.Replace(c.Request.Context(), c.Param("folio"), c.Param("id"), content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SetReady toggles the ready flag of a document
func (h *DocumentHandler) SetReady(c *gin.Context) {
	var req ReadyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.workflow.SetReady(c.Request.Context(), c.Param("folio"), c.Param("id"), *req.Ready)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Delete removes a document
func (h *DocumentHandler) Delete(c *gin.Context) {
	contract, err := h.workflow.RemoveDocument(c.Request.Context(), c.Param("folio"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Document deleted", "contract": contract})
}

// Content serves the PDF, redirecting to the blob store when it can presign
func (h *DocumentHandler) Content(c *gin.Context) {
	ctx := c.Request.Context()
	folio, id := c.Param("folio"), c.Param("id")

	url, ok, err := h.workflow.DownloadURL(ctx, folio, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if ok {
		c.Redirect(http.StatusTemporaryRedirect, url)
		return
	}

	doc, data, err := h.workflow.Content(ctx, folio, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": doc.Name}))
	c.Data(http.StatusOK, doc.ContentType, data)
}

// readUpload reads the multipart "file" field. It writes the error response
// itself and reports false when the upload is unusable.
func readUpload(c *gin.Context) (model.Content, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+1<<20)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return model.Content{}, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return model.Content{}, false
	}
	defer file.Close()

	if header.Size > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return model.Content{}, false
	}

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return model.Content{}, false
	}

	return model.Content{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, true
}
