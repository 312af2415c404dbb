package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arjunpratapdas/contractiq/model"
	"github.com/arjunpratapdas/contractiq/service"
	"github.com/gin-gonic/gin"
)

func newToolsRouter(env *testEnv) *gin.Engine {
	handler := NewToolsHandler(env.tools)
	router := gin.New()
	router.PUT("/session/document", env.withSession(handler.UploadDocument))
	router.DELETE("/session/document", env.withSession(handler.DetachDocument))
	router.POST("/session/analysis", env.withSession(handler.Analyze))
	router.POST("/session/clauses", env.withSession(handler.ExtractClauses))
	router.POST("/session/compliance", env.withSession(handler.CheckCompliance))
	router.POST("/session/contract", env.withSession(handler.GenerateContract))
	router.GET("/session/contract/export/:format", env.withSession(handler.ExportContract))
	return router
}

func upload(t *testing.T, router *gin.Engine, filename, contentType string, content []byte) *httptest.ResponseRecorder {
	body, formType := multipartUpload(t, filename, contentType, content)
	req := httptest.NewRequest("PUT", "/session/document", body)
	req.Header.Set("Content-Type", formType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestToolsHandlerUploadDocument(t *testing.T) {
	env := newTestEnv(t)
	router := newToolsRouter(env)

	tests := []struct {
		name           string
		filename       string
		contentType    string
		size           int
		expectedStatus int
		mediaType      string
	}{
		{"pdf", "nda.pdf", "application/pdf", 1024, http.StatusOK, model.MediaTypePDF},
		{"docx by extension", "lease.docx", "application/octet-stream", 1024, http.StatusOK, model.MediaTypeDOCX},
		{"exactly 10 MiB", "big.pdf", "application/pdf", model.MaxUploadSize, http.StatusOK, model.MediaTypePDF},
		{"over 10 MiB", "huge.pdf", "application/pdf", model.MaxUploadSize + 1, http.StatusBadRequest, ""},
		{"png", "scan.png", "image/png", 1024, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := upload(t, router, tt.filename, tt.contentType, bytes.Repeat([]byte("a"), tt.size))
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedStatus != http.StatusOK {
				assertEnvelope(t, w, tt.expectedStatus, "validation")
				return
			}
			doc := env.session(t).Document
			if doc == nil || doc.Name != tt.filename || doc.MediaType != tt.mediaType {
				t.Errorf("Unexpected document %+v", doc)
			}
		})
	}

	if env.session(t).Document.Name != "big.pdf" {
		t.Error("Expected rejected uploads to keep the last accepted document")
	}
}

func TestToolsHandlerUploadWithoutFile(t *testing.T) {
	env := newTestEnv(t)
	router := newToolsRouter(env)

	w := doRaw(router, "PUT", "/session/document", "application/json", "{}")
	assertEnvelope(t, w, http.StatusBadRequest, "validation")
}

func TestToolsHandlerDetachDocument(t *testing.T) {
	env := newTestEnv(t)
	router := newToolsRouter(env)

	upload(t, router, "nda.pdf", "application/pdf", []byte("%PDF-1.4"))
	if w := doJSON(router, "DELETE", "/session/document", nil); w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if env.session(t).HasDocument() {
		t.Error("Expected document detached")
	}
}

func TestToolsHandlerAnalyze(t *testing.T) {
	env := newTestEnv(t)
	router := newToolsRouter(env)

	assertEnvelope(t, doJSON(router, "POST", "/session/analysis", map[string]string{"question": "Term?"}), http.StatusBadRequest, "validation")

	upload(t, router, "nda.pdf", "application/pdf", []byte("%PDF-1.4"))
	assertEnvelope(t, doJSON(router, "POST", "/session/analysis", map[string]string{"question": "   "}), http.StatusBadRequest, "validation")
	assertEnvelope(t, doJSON(router, "POST", "/session/analysis", nil), http.StatusBadRequest, "validation")
	if env.analyzer.calls != 0 {
		t.Fatalf("Expected no analysis calls before preconditions hold, got %d", env.analyzer.calls)
	}

	w := doJSON(router, "POST", "/session/analysis", map[string]string{"question": "How long is the term?"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	analysis := decodeBody(t, w)["analysis"].(map[string]any)
	if analysis["text"] != "Looks fine." {
		t.Errorf("Unexpected analysis %v", analysis)
	}
	if env.session(t).Question != "" {
		t.Error("Expected question cleared after a successful analysis")
	}
}

func TestToolsHandlerAnalyzeUsesPendingQuestion(t *testing.T) {
	env := newTestEnv(t)
	router := newToolsRouter(env)
	question := "Who are the parties?"
	env.tools.UpdateForm(context.Background(), env.sessionID, service.FormUpdate{Question: &question})
	upload(t, router, "nda.pdf", "application/pdf", []byte("%PDF-1.4"))

	w := doJSON(router, "POST", "/session/analysis", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if env.analyzer.calls != 1 {
		t.Errorf("Expected 1 analysis call, got %d", env.analyzer.calls)
	}
}

func TestToolsHandlerAnalyzeServerError(t *testing.T) {
	env := newTestEnv(t)
	env.analyzer.err = &service.AnalysisError{StatusCode: 500, Detail: "AI service unavailable"}
	router := newToolsRouter(env)
	upload(t, router, "nda.pdf", "application/pdf", []byte("%PDF-1.4"))

	w := doJSON(router, "POST", "/session/analysis", map[string]string{"question": "Term?"})
	assertEnvelope(t, w, http.StatusBadGateway, "server_reported")
	if decodeBody(t, w)["error"] != "AI service unavailable" {
		t.Errorf("Expected server detail, got %s", w.Body.String())
	}
	if env.session(t).Question != "Term?" {
		t.Error("Expected question kept after a failed analysis")
	}
}

func TestToolsHandlerExtractClauses(t *testing.T) {
	env := newTestEnv(t)
	router := newToolsRouter(env)

	assertEnvelope(t, doJSON(router, "POST", "/session/clauses", nil), http.StatusBadRequest, "validation")
	if env.analyzer.calls != 0 {
		t.Fatalf("Expected no calls without a document, got %d", env.analyzer.calls)
	}

	upload(t, router, "lease.pdf", "application/pdf", []byte("%PDF-1.4"))
	w := doJSON(router, "POST", "/session/clauses", map[string][]string{"clause_types": {" termination ", "", "payment"}})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	response := decodeBody(t, w)
	if response["success"] != true || response["filename"] != "lease.pdf" {
		t.Errorf("Unexpected response %v", response)
	}
	clauses := response["extracted_clauses"].(map[string]any)
	if termination := clauses["termination"].(map[string]any); termination["found"] != true {
		t.Errorf("Expected termination clause found, got %v", termination)
	}
	if strings.Join(env.analyzer.clauseTypes, ",") != "termination,payment" {
		t.Errorf("Expected trimmed clause types, got %v", env.analyzer.clauseTypes)
	}
}

func TestToolsHandlerCheckCompliance(t *testing.T) {
	env := newTestEnv(t)
	router := newToolsRouter(env)
	upload(t, router, "policy.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", []byte("PK"))

	w := doJSON(router, "POST", "/session/compliance", map[string][]string{"regulations": {"GDPR"}})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	response := decodeBody(t, w)
	results := response["compliance_results"].(map[string]any)
	if results["overall_score"] != 62.5 {
		t.Errorf("Expected overall score 62.5, got %v", results["overall_score"])
	}
	if checked := response["regulations_checked"].([]any); len(checked) != 1 || checked[0] != "GDPR" {
		t.Errorf("Unexpected regulations %v", checked)
	}

	assertEnvelope(t, doRaw(router, "POST", "/session/compliance", "application/json", `{"regulations":"GDPR"}`), http.StatusBadRequest, "validation")
}

func TestToolsHandlerCheckComplianceServerError(t *testing.T) {
	env := newTestEnv(t)
	env.analyzer.err = &service.AnalysisError{StatusCode: 500, Detail: "Compliance check failed: boom"}
	router := newToolsRouter(env)
	upload(t, router, "nda.pdf", "application/pdf", []byte("%PDF-1.4"))

	w := doJSON(router, "POST", "/session/compliance", nil)
	assertEnvelope(t, w, http.StatusBadGateway, "server_reported")
	if decodeBody(t, w)["error"] != "Compliance check failed: boom" {
		t.Errorf("Expected server detail, got %s", w.Body.String())
	}
}

func TestToolsHandlerGenerateContract(t *testing.T) {
	env := newTestEnv(t)
	router := newToolsRouter(env)

	assertEnvelope(t, doJSON(router, "POST", "/session/contract", nil), http.StatusBadRequest, "validation")

	country := "uk"
	env.tools.UpdateForm(context.Background(), env.sessionID, service.FormUpdate{Country: &country})

	w := doJSON(router, "POST", "/session/contract", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	contract := decodeBody(t, w)["contract"].(map[string]any)
	if contract["text"] != "CONTRACT TEXT" || contract["provider"] != "stub" {
		t.Errorf("Unexpected contract %v", contract)
	}

	env.generator.err = &service.MalformedResponseError{Service: "stub", Reason: "empty text"}
	assertEnvelope(t, doJSON(router, "POST", "/session/contract", nil), http.StatusBadGateway, "malformed_response")
	if env.session(t).Contract.Text != "CONTRACT TEXT" {
		t.Error("Expected previous contract kept after a malformed response")
	}
}

func TestToolsHandlerExportContract(t *testing.T) {
	env := newTestEnv(t)
	router := newToolsRouter(env)

	assertEnvelope(t, doJSON(router, "GET", "/session/contract/export/html", nil), http.StatusBadRequest, "validation")

	docType := model.DocumentNonDisclosure
	country := "sg"
	env.tools.UpdateForm(context.Background(), env.sessionID, service.FormUpdate{DocumentType: &docType, Country: &country})
	env.generator.text = "Terms <b>&</b> conditions"
	doJSON(router, "POST", "/session/contract", nil)

	tests := []struct {
		format      string
		contentType string
		filename    string
		contains    string
	}{
		{"html", service.ContentTypeHTML, "Non-Disclosure Agreement-2026-03-05.html", "Terms &lt;b&gt;&amp;&lt;/b&gt; conditions"},
		{"RTF", service.ContentTypeRTF, "Non-Disclosure Agreement-2026-03-05.rtf", `{\rtf1`},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			w := doJSON(router, "GET", "/session/contract/export/"+tt.format, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
			}
			if got := w.Header().Get("Content-Type"); got != tt.contentType {
				t.Errorf("Expected content type %s, got %s", tt.contentType, got)
			}
			if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="`+tt.filename+`"` {
				t.Errorf("Unexpected Content-Disposition %s", got)
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("Expected body to contain %q", tt.contains)
			}
		})
	}

	assertEnvelope(t, doJSON(router, "GET", "/session/contract/export/pdf", nil), http.StatusBadRequest, "validation")
}
