package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/arjunpratapdas/contractiq/middleware"
	"github.com/arjunpratapdas/contractiq/model"
	"github.com/arjunpratapdas/contractiq/service"
	"github.com/gin-gonic/gin"
)

type ToolsHandler struct {
	tools *service.ToolsService
}

func NewToolsHandler(tools *service.ToolsService) *ToolsHandler {
	return &ToolsHandler{tools: tools}
}

// UploadDocument attaches the multipart "file" to the session
func (h *ToolsHandler) UploadDocument(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "No file provided")
		return
	}
	defer file.Close()

	if header.Size > model.MaxUploadSize {
		respondError(c, &service.ValidationError{Field: "file", Message: model.ErrFileTooLarge.Error(), Err: model.ErrFileTooLarge})
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, model.MaxUploadSize+1))
	if err != nil {
		badRequest(c, "Failed to read file")
		return
	}

	session, err := h.tools.AttachDocument(c.Request.Context(), middleware.GetSessionID(c), model.UploadedFile{
		Name:      header.Filename,
		Size:      int64(len(content)),
		MediaType: header.Header.Get("Content-Type"),
		Content:   content,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "document": session.Document})
}

// DetachDocument removes the attached document
func (h *ToolsHandler) DetachDocument(c *gin.Context) {
	if _, err := h.tools.DetachDocument(c.Request.Context(), middleware.GetSessionID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Document removed"})
}

type AnalyzeRequest struct {
	Question *string `json:"question"`
}

// Analyze asks the analysis back end about the attached document.
// Without a question in the body the pending question of the session is used.
func (h *ToolsHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.tools.AnalyzeDocument(c.Request.Context(), middleware.GetSessionID(c), req.Question)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analysis": result})
}

type ClausesRequest struct {
	ClauseTypes []string `json:"clause_types"`
}

type ComplianceRequest struct {
	Regulations []string `json:"regulations"`
}

// bindOptionalJSON binds the body into req; an empty body leaves req alone
func bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request")
		return false
	}
	return true
}

// ExtractClauses lists the sentences of the attached document that match
// each requested clause type
func (h *ToolsHandler) ExtractClauses(c *gin.Context) {
	var req ClausesRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	report, err := h.tools.ExtractClauses(c.Request.Context(), middleware.GetSessionID(c), req.ClauseTypes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// CheckCompliance scores the attached document against regulations
func (h *ToolsHandler) CheckCompliance(c *gin.Context) {
	var req ComplianceRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	report, err := h.tools.CheckCompliance(c.Request.Context(), middleware.GetSessionID(c), req.Regulations)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GenerateContract drafts a contract from the session form
func (h *ToolsHandler) GenerateContract(c *gin.Context) {
	contract, err := h.tools.GenerateContract(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "contract": contract})
}

// ExportContract downloads the latest contract as html or rtf
func (h *ToolsHandler) ExportContract(c *gin.Context) {
	format, err := service.ParseExportFormat(c.Param("format"))
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.tools.ExportContract(c.Request.Context(), middleware.GetSessionID(c), format)
	if err != nil {
		respondError(c, err)
		return
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": result.Filename})
	if disposition == "" {
		disposition = fmt.Sprintf("attachment; filename=contract.%s", format)
	}
	c.Header("Content-Disposition", disposition)
	if result.ArchiveURL != "" {
		c.Header("X-Archive-URL", result.ArchiveURL)
	}
	c.Data(http.StatusOK, result.ContentType, result.Body)
}
