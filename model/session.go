package model

import (
	"strings"
	"time"
)

// Operation names a long-running call a session can have in flight
type Operation string

const (
	OperationGenerate Operation = "generate"
	OperationAnalyze  Operation = "analyze"
)

// ContractForm holds the generator inputs as the visitor edits them
type ContractForm struct {
	DocumentType    DocumentType `json:"document_type"`
	Country         string       `json:"country"`
	Subdivision     string       `json:"subdivision"`
	ProjectLocation string       `json:"project_location"`
	Requirements    string       `json:"requirements"`
}

// GeneratedContract is the latest successful generation
type GeneratedContract struct {
	Text          string       `json:"text"`
	DocumentType  DocumentType `json:"document_type"`
	DocumentLabel string       `json:"document_label"`
	Jurisdiction  string       `json:"jurisdiction"`
	Provider      string       `json:"provider"`
	GeneratedAt   time.Time    `json:"generated_at"`
}

// AnalysisResult is the latest successful document analysis
type AnalysisResult struct {
	Text       string    `json:"text"`
	Provider   string    `json:"provider,omitempty"`
	Question   string    `json:"question"`
	Document   string    `json:"document"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// Session is the per-visitor state of the tools page.
// Every field is a last-write-wins cell; mutate it only through the methods below.
type Session struct {
	ID        string             `json:"id"`
	Form      ContractForm       `json:"form"`
	Document  *UploadedFile      `json:"document,omitempty"`
	Question  string             `json:"question"`
	Contract  *GeneratedContract `json:"contract,omitempty"`
	Analysis  *AnalysisResult    `json:"analysis,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// NewSession returns an empty session
func NewSession(id string, now time.Time) *Session {
	return &Session{ID: id, CreatedAt: now, UpdatedAt: now}
}

// SetCountry selects a country. A different country clears the subdivision.
func (s *Session) SetCountry(code string) {
	if code != s.Form.Country {
		s.Form.Subdivision = ""
	}
	s.Form.Country = code
}

func (s *Session) SetSubdivision(code string) {
	s.Form.Subdivision = code
}

func (s *Session) SetProjectLocation(location string) {
	s.Form.ProjectLocation = location
}

func (s *Session) SetDocumentType(docType DocumentType) {
	s.Form.DocumentType = docType
}

func (s *Session) SetRequirements(requirements string) {
	s.Form.Requirements = requirements
}

func (s *Session) SetQuestion(question string) {
	s.Question = question
}

// AttachDocument validates f and replaces the current document.
// A rejected file leaves the previous document in place.
func (s *Session) AttachDocument(f UploadedFile) error {
	mediaType, err := ValidateUpload(f.Name, f.Size, f.MediaType)
	if err != nil {
		return err
	}
	f.MediaType = mediaType
	s.Document = &f
	return nil
}

func (s *Session) DetachDocument() {
	s.Document = nil
}

// HasDocument reports whether a document is attached
func (s *Session) HasDocument() bool {
	return s.Document != nil
}

// HasQuestion reports whether the pending question has non-blank text
func (s *Session) HasQuestion() bool {
	return strings.TrimSpace(s.Question) != ""
}

func (s *Session) RecordContract(c GeneratedContract) {
	s.Contract = &c
}

// RecordAnalysis stores the result. The pending question is cleared only
// when it is still the one that was answered.
func (s *Session) RecordAnalysis(a AnalysisResult) {
	s.Analysis = &a
	if strings.TrimSpace(s.Question) == a.Question {
		s.Question = ""
	}
}

// Touch marks the session as used at now
func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now
}

// Clone returns a copy that shares no mutable cells with s.
// Document content bytes are shared since they are never written in place.
func (s *Session) Clone() *Session {
	c := *s
	if s.Document != nil {
		d := *s.Document
		c.Document = &d
	}
	if s.Contract != nil {
		g := *s.Contract
		c.Contract = &g
	}
	if s.Analysis != nil {
		a := *s.Analysis
		c.Analysis = &a
	}
	return &c
}
