package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/arjunpratapdas/contractiq/config"
	"github.com/arjunpratapdas/contractiq/model"
	"github.com/xeipuuv/gojsonschema"
)

// AnalysisTypeGeneral is the only analysis mode the tools page requests
const AnalysisTypeGeneral = "general"

// Sets the analysis back end falls back to when a request names none
var (
	DefaultClauseTypes = []string{"liability", "termination", "payment", "confidentiality"}
	DefaultRegulations = []string{"GDPR", "CCPA", "SOX"}
)

// DocumentAnalyzer sends uploaded documents to the analysis back end
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, file model.UploadedFile, question string) (*AnalysisReply, error)
	ExtractClauses(ctx context.Context, file model.UploadedFile, clauseTypes []string) (*ClauseReport, error)
	CheckCompliance(ctx context.Context, file model.UploadedFile, regulations []string) (*ComplianceReport, error)
}

// AnalysisReply is the success envelope of the analysis back end
type AnalysisReply struct {
	Success  bool   `json:"success"`
	Analysis string `json:"analysis"`
	Provider string `json:"provider,omitempty"`
}

// ClauseMatch lists up to three sentences that matched a clause type
type ClauseMatch struct {
	Found        bool     `json:"found"`
	TextSegments []string `json:"text_segments"`
	Count        int      `json:"count"`
}

// ClauseReport is the success envelope of clause extraction
type ClauseReport struct {
	Success     bool                   `json:"success"`
	Filename    string                 `json:"filename"`
	Clauses     map[string]ClauseMatch `json:"extracted_clauses"`
	ClauseTypes []string               `json:"clause_types_requested"`
	Provider    string                 `json:"provider,omitempty"`
}

// RegulationResult is the outcome for one regulation; Score runs from 0 to 100
type RegulationResult struct {
	Regulation          string   `json:"regulation"`
	Score               float64  `json:"score"`
	FoundRequirements   []string `json:"found_requirements"`
	MissingRequirements []string `json:"missing_requirements"`
	RiskFactors         []string `json:"risk_factors"`
	ProhibitedFound     []string `json:"prohibited_found"`
}

type ComplianceResults struct {
	OverallScore        float64                     `json:"overall_score"`
	Regulations         map[string]RegulationResult `json:"regulations"`
	MissingRequirements []string                    `json:"missing_requirements"`
	RiskFactors         []string                    `json:"risk_factors"`
	Recommendations     []string                    `json:"recommendations"`
}

// ComplianceReport is the success envelope of a compliance check
type ComplianceReport struct {
	Success     bool               `json:"success"`
	Filename    string             `json:"filename"`
	Results     *ComplianceResults `json:"compliance_results"`
	Regulations []string           `json:"regulations_checked"`
	Provider    string             `json:"provider,omitempty"`
}

// The envelope schemas accept both the success and the error shapes;
// success must always be present as a boolean
const analysisEnvelopeSchema = `{
  "type": "object",
  "required": ["success"],
  "properties": {
    "success":  {"type": "boolean"},
    "analysis": {"type": "string"},
    "provider": {"type": "string"},
    "detail":   {}
  }
}`

const clauseEnvelopeSchema = `{
  "type": "object",
  "required": ["success"],
  "properties": {
    "success":  {"type": "boolean"},
    "filename": {"type": "string"},
    "extracted_clauses": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["found"],
        "properties": {
          "found":         {"type": "boolean"},
          "text_segments": {"type": "array", "items": {"type": "string"}},
          "count":         {"type": "integer", "minimum": 0}
        }
      }
    },
    "clause_types_requested": {"type": "array", "items": {"type": "string"}},
    "provider": {"type": "string"},
    "detail":   {}
  }
}`

const complianceEnvelopeSchema = `{
  "type": "object",
  "required": ["success"],
  "properties": {
    "success":  {"type": "boolean"},
    "filename": {"type": "string"},
    "compliance_results": {
      "type": "object",
      "required": ["overall_score"],
      "properties": {
        "overall_score":   {"type": "number"},
        "regulations":     {"type": "object"},
        "recommendations": {"type": "array", "items": {"type": "string"}}
      }
    },
    "regulations_checked": {"type": "array", "items": {"type": "string"}},
    "provider": {"type": "string"},
    "detail":   {}
  }
}`

var (
	analysisSchema   = gojsonschema.NewStringLoader(analysisEnvelopeSchema)
	clauseSchema     = gojsonschema.NewStringLoader(clauseEnvelopeSchema)
	complianceSchema = gojsonschema.NewStringLoader(complianceEnvelopeSchema)
)

// AnalysisClient posts documents to the analysis back end
type AnalysisClient struct {
	endpoint           string
	clausesEndpoint    string
	complianceEndpoint string
	httpClient         *http.Client
}

func NewAnalysisClient(cfg *config.AnalysisConfig) *AnalysisClient {
	return &AnalysisClient{
		endpoint:           cfg.Endpoint,
		clausesEndpoint:    cfg.ClausesURL(),
		complianceEndpoint: cfg.ComplianceURL(),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Analyze uploads the file with the question. Callers must check that a
// file is present and the question is not blank before calling.
func (c *AnalysisClient) Analyze(ctx context.Context, file model.UploadedFile, question string) (*AnalysisReply, error) {
	var reply AnalysisReply
	if err := c.post(ctx, c.endpoint, analysisSchema, file, &reply, func(w *multipart.Writer) error {
		if err := w.WriteField("question", question); err != nil {
			return err
		}
		return w.WriteField("analysis_type", AnalysisTypeGeneral)
	}); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reply.Analysis) == "" {
		return nil, &MalformedResponseError{Service: "analysis", Reason: "success without analysis text"}
	}
	return &reply, nil
}

// ExtractClauses asks for the sentences that match each clause type.
// An empty clauseTypes sends DefaultClauseTypes.
func (c *AnalysisClient) ExtractClauses(ctx context.Context, file model.UploadedFile, clauseTypes []string) (*ClauseReport, error) {
	if len(clauseTypes) == 0 {
		clauseTypes = DefaultClauseTypes
	}
	var report ClauseReport
	if err := c.post(ctx, c.clausesEndpoint, clauseSchema, file, &report, repeatedField("clause_types", clauseTypes)); err != nil {
		return nil, err
	}
	if report.Clauses == nil {
		return nil, &MalformedResponseError{Service: "analysis", Reason: "success without extracted clauses"}
	}
	return &report, nil
}

// CheckCompliance scores the document against each regulation.
// An empty regulations sends DefaultRegulations.
func (c *AnalysisClient) CheckCompliance(ctx context.Context, file model.UploadedFile, regulations []string) (*ComplianceReport, error) {
	if len(regulations) == 0 {
		regulations = DefaultRegulations
	}
	var report ComplianceReport
	if err := c.post(ctx, c.complianceEndpoint, complianceSchema, file, &report, repeatedField("regulations", regulations)); err != nil {
		return nil, err
	}
	if report.Results == nil {
		return nil, &MalformedResponseError{Service: "analysis", Reason: "success without compliance results"}
	}
	return &report, nil
}

func repeatedField(name string, values []string) func(*multipart.Writer) error {
	return func(w *multipart.Writer) error {
		for _, v := range values {
			if err := w.WriteField(name, v); err != nil {
				return err
			}
		}
		return nil
	}
}

// post sends file plus the fields written by writeFields to endpoint and
// decodes a validated success envelope into out. out must carry a Success field.
func (c *AnalysisClient) post(ctx context.Context, endpoint string, schema gojsonschema.JSONLoader, file model.UploadedFile, out interface{ succeeded() bool }, writeFields func(*multipart.Writer) error) error {
	body, contentType, err := buildAnalysisForm(file, writeFields)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &AnalysisError{Detail: DefaultAnalysisDetail, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &AnalysisError{StatusCode: resp.StatusCode, Detail: DefaultAnalysisDetail, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &AnalysisError{StatusCode: resp.StatusCode, Detail: extractDetail(raw)}
	}

	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(raw))
	if err != nil || !result.Valid() {
		return &AnalysisError{StatusCode: resp.StatusCode, Detail: extractDetail(raw)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &AnalysisError{StatusCode: resp.StatusCode, Detail: DefaultAnalysisDetail}
	}
	if !out.succeeded() {
		return &AnalysisError{StatusCode: resp.StatusCode, Detail: extractDetail(raw)}
	}
	return nil
}

func (r *AnalysisReply) succeeded() bool    { return r.Success }
func (r *ClauseReport) succeeded() bool     { return r.Success }
func (r *ComplianceReport) succeeded() bool { return r.Success }

func buildAnalysisForm(file model.UploadedFile, writeFields func(*multipart.Writer) error) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	header.Set("Content-Type", file.MediaType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Content); err != nil {
		return nil, "", err
	}
	if err := writeFields(w); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// extractDetail reads the "detail" field of an error body. FastAPI validation
// errors carry a list there, which is returned as raw JSON.
func extractDetail(raw []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Detail) == 0 {
		return DefaultAnalysisDetail
	}
	var detail string
	if err := json.Unmarshal(envelope.Detail, &detail); err == nil {
		if strings.TrimSpace(detail) == "" {
			return DefaultAnalysisDetail
		}
		return detail
	}
	if string(envelope.Detail) == "null" {
		return DefaultAnalysisDetail
	}
	return string(envelope.Detail)
}
