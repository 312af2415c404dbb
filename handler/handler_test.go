package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/arjunpratapdas/contractiq/model"
	"github.com/arjunpratapdas/contractiq/service"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGenerator struct {
	text string
	err  error
}

func (g *stubGenerator) Provider() string { return "stub" }

func (g *stubGenerator) Generate(context.Context, string) (string, error) {
	return g.text, g.err
}

type stubAnalyzer struct {
	mu          sync.Mutex
	calls       int
	reply       *service.AnalysisReply
	err         error
	clauseTypes []string
	regulations []string
}

func (a *stubAnalyzer) Analyze(context.Context, model.UploadedFile, string) (*service.AnalysisReply, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.reply, a.err
}

func (a *stubAnalyzer) ExtractClauses(_ context.Context, file model.UploadedFile, clauseTypes []string) (*service.ClauseReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.clauseTypes = clauseTypes
	if a.err != nil {
		return nil, a.err
	}
	clauses := map[string]service.ClauseMatch{}
	for _, ct := range clauseTypes {
		clauses[ct] = service.ClauseMatch{Found: ct == "termination", TextSegments: []string{}, Count: 0}
	}
	return &service.ClauseReport{Success: true, Filename: file.Name, Clauses: clauses, ClauseTypes: clauseTypes, Provider: "stub"}, nil
}

func (a *stubAnalyzer) CheckCompliance(_ context.Context, file model.UploadedFile, regulations []string) (*service.ComplianceReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.regulations = regulations
	if a.err != nil {
		return nil, a.err
	}
	return &service.ComplianceReport{
		Success:     true,
		Filename:    file.Name,
		Results:     &service.ComplianceResults{OverallScore: 62.5, Recommendations: []string{"Review and address identified risk factors"}},
		Regulations: regulations,
		Provider:    "stub",
	}, nil
}

type testEnv struct {
	tools     *service.ToolsService
	generator *stubGenerator
	analyzer  *stubAnalyzer
	sessionID string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		generator: &stubGenerator{text: "CONTRACT TEXT"},
		analyzer:  &stubAnalyzer{reply: &service.AnalysisReply{Success: true, Analysis: "Looks fine.", Provider: "deepseek"}},
	}
	clock := func() time.Time { return time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC) }
	env.tools = service.NewToolsService(service.NewMemorySessionStore(10), env.generator, env.analyzer, service.WithClock(clock))

	session, err := env.tools.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	env.sessionID = session.ID
	return env
}

// withSession stands in for SessionAuth
func (e *testEnv) withSession(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("session_id", e.sessionID)
		h(c)
	}
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var response map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	return response
}

func multipartUpload(t *testing.T, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("Failed to create part: %v", err)
	}
	part.Write(content)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func assertEnvelope(t *testing.T, w *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("Expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
	response := decodeBody(t, w)
	if response["success"] != false {
		t.Errorf("Expected success false, got %v", response["success"])
	}
	if response["kind"] != kind {
		t.Errorf("Expected kind %s, got %v", kind, response["kind"])
	}
}

func (e *testEnv) session(t *testing.T) *model.Session {
	t.Helper()
	s, err := e.tools.Session(context.Background(), e.sessionID)
	if err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}
	return s
}

func doJSONWithToken(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doRaw(router *gin.Engine, method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
