package handler

import (
	"net/http"

	"github.com/arjunpratapdas/contractiq/service"
	"github.com/gin-gonic/gin"
)

// GenerateHandler serves one-off generation requests that carry their own jurisdiction
type GenerateHandler struct {
	tools *service.ToolsService
}

func NewGenerateHandler(tools *service.ToolsService) *GenerateHandler {
	return &GenerateHandler{tools: tools}
}

type GenerateResponse struct {
	Success      bool   `json:"success"`
	ContractText string `json:"contract_text"`
	DocumentType string `json:"document_type"`
	Provider     string `json:"provider"`
}

func (h *GenerateHandler) Generate(c *gin.Context) {
	var req service.DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	contract, err := h.tools.DraftContract(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenerateResponse{
		Success:      true,
		ContractText: contract.Text,
		DocumentType: contract.DocumentLabel,
		Provider:     contract.Provider,
	})
}
