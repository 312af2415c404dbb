package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/arjunpratapdas/contractiq/service"
	"github.com/gin-gonic/gin"
)

func TestGenerateHandler(t *testing.T) {
	env := newTestEnv(t)
	router := gin.New()
	router.POST("/generate-contract", NewGenerateHandler(env.tools).Generate)

	w := doJSON(router, "POST", "/generate-contract", map[string]string{
		"document_type": "freelance",
		"jurisdiction":  "Ontario, Canada",
		"requirements":  "Six month engagement",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response GenerateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if !response.Success || response.ContractText != "CONTRACT TEXT" || response.DocumentType != "Legal Document" || response.Provider != "stub" {
		t.Errorf("Unexpected response %+v", response)
	}
}

func TestGenerateHandlerReturnsDocumentLabel(t *testing.T) {
	env := newTestEnv(t)
	router := gin.New()
	router.POST("/generate-contract", NewGenerateHandler(env.tools).Generate)

	w := doJSON(router, "POST", "/generate-contract", map[string]string{
		"document_type": "non-disclosure",
		"jurisdiction":  "France",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response GenerateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response.DocumentType != "Non-Disclosure Agreement" {
		t.Errorf("Expected document type %q, got %q", "Non-Disclosure Agreement", response.DocumentType)
	}
}

func TestGenerateHandlerErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   map[string]string
		genErr error
		status int
		kind   string
	}{
		{"missing jurisdiction", map[string]string{"document_type": "non-disclosure"}, nil, http.StatusBadRequest, "validation"},
		{"upstream 503", map[string]string{"jurisdiction": "France"}, &service.GenerationServiceError{Provider: "stub", StatusCode: 503, Body: "overloaded"}, http.StatusBadGateway, "transport"},
		{"malformed", map[string]string{"jurisdiction": "France"}, &service.MalformedResponseError{Service: "stub", Reason: "no candidates"}, http.StatusBadGateway, "malformed_response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.generator.err = tt.genErr
			router := gin.New()
			router.POST("/generate-contract", NewGenerateHandler(env.tools).Generate)

			assertEnvelope(t, doJSON(router, "POST", "/generate-contract", tt.body), tt.status, tt.kind)
		})
	}
}
