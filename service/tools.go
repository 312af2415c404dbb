package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arjunpratapdas/contractiq/model"
	"github.com/arjunpratapdas/contractiq/pkg/logger"
	"github.com/arjunpratapdas/contractiq/pkg/metrics"
	"github.com/google/uuid"
)

// ToolsService runs the contract generator and document analyzer on behalf of visitor sessions
type ToolsService struct {
	store     SessionStore
	generator Generator
	analyzer  DocumentAnalyzer
	archive   Archiver
	now       func() time.Time
	// bounds generate and analyze calls; 0 = unbounded
	opTimeout time.Duration
}

type ToolsOption func(*ToolsService)

// WithArchive keeps a copy of uploads and exports
func WithArchive(a Archiver) ToolsOption {
	return func(s *ToolsService) { s.archive = a }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) ToolsOption {
	return func(s *ToolsService) { s.now = now }
}

// WithOperationTimeout bounds each upstream generate or analyze call
func WithOperationTimeout(d time.Duration) ToolsOption {
	return func(s *ToolsService) { s.opTimeout = d }
}

// lockExpirer is a store whose in-flight markers expire on their own
type lockExpirer interface {
	LockTTL() time.Duration
}

// NewToolsService builds the service. Against a store with expiring locks the
// operation timeout defaults to the lock TTL, so no call outlives its marker.
func NewToolsService(store SessionStore, generator Generator, analyzer DocumentAnalyzer, opts ...ToolsOption) *ToolsService {
	s := &ToolsService{
		store:     store,
		generator: generator,
		analyzer:  analyzer,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if expirer, ok := store.(lockExpirer); ok && s.opTimeout == 0 {
		s.opTimeout = expirer.LockTTL()
	}
	return s
}

// FormUpdate carries the form fields a client changed; nil fields are left alone
type FormUpdate struct {
	DocumentType    *model.DocumentType `json:"document_type"`
	Country         *string             `json:"country"`
	Subdivision     *string             `json:"subdivision"`
	ProjectLocation *string             `json:"project_location"`
	Requirements    *string             `json:"requirements"`
	Question        *string             `json:"question"`
}

// DraftRequest is a one-off generation outside any session
type DraftRequest struct {
	DocumentType model.DocumentType `json:"document_type"`
	Jurisdiction string             `json:"jurisdiction"`
	Requirements string             `json:"requirements"`
}

// ExportResult is an encoded contract plus its archive location, if archived
type ExportResult struct {
	*Artifact
	ArchiveURL string
}

func (s *ToolsService) CreateSession(ctx context.Context) (*model.Session, error) {
	session := model.NewSession(uuid.New().String(), s.now())
	if err := s.store.Create(ctx, session); err != nil {
		return nil, err
	}
	metrics.SessionsCreated.Inc()
	logger.Info(logger.WithSession(ctx, session.ID), "session created")
	return session, nil
}

func (s *ToolsService) Session(ctx context.Context, id string) (*model.Session, error) {
	return s.store.Get(ctx, id)
}

func (s *ToolsService) EndSession(ctx context.Context, id string) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// UpdateForm applies the changed fields. A new country clears the subdivision
// before a subdivision in the same update is applied.
func (s *ToolsService) UpdateForm(ctx context.Context, id string, update FormUpdate) (*model.Session, error) {
	return s.store.Update(ctx, id, func(session *model.Session) error {
		if update.DocumentType != nil {
			if *update.DocumentType != "" && !update.DocumentType.Known() {
				return newValidationError("document_type", fmt.Sprintf("unknown document type %q", *update.DocumentType))
			}
			session.SetDocumentType(*update.DocumentType)
		}
		if update.Country != nil {
			if *update.Country != "" {
				if _, ok := LookupCountry(*update.Country); !ok {
					return newValidationError("country", fmt.Sprintf("unknown country %q", *update.Country))
				}
			}
			session.SetCountry(*update.Country)
		}
		if update.Subdivision != nil {
			if *update.Subdivision != "" && !ValidSubdivision(session.Form.Country, *update.Subdivision) {
				return newValidationError("subdivision", fmt.Sprintf("unknown subdivision %q for country %q", *update.Subdivision, session.Form.Country))
			}
			session.SetSubdivision(*update.Subdivision)
		}
		if update.ProjectLocation != nil {
			session.SetProjectLocation(*update.ProjectLocation)
		}
		if update.Requirements != nil {
			session.SetRequirements(*update.Requirements)
		}
		if update.Question != nil {
			session.SetQuestion(*update.Question)
		}
		session.Touch(s.now())
		return nil
	})
}

// AttachDocument validates and stores an upload. A rejected file leaves the previous one attached.
func (s *ToolsService) AttachDocument(ctx context.Context, id string, file model.UploadedFile) (*model.Session, error) {
	file.UploadedAt = s.now()
	session, err := s.store.Update(ctx, id, func(session *model.Session) error {
		if err := session.AttachDocument(file); err != nil {
			return &ValidationError{Field: "file", Message: err.Error(), Err: err}
		}
		session.Touch(s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = logger.WithSession(ctx, id)
	logger.Info(ctx, "document attached", "filename", file.Name, "size", file.Size, "media_type", session.Document.MediaType)
	if s.archive != nil {
		objectName := fmt.Sprintf("documents/%s/%s/%s", id, uuid.New().String(), file.Name)
		if _, err := s.archive.Archive(ctx, objectName, file.Content, session.Document.MediaType); err != nil {
			logger.Warn(ctx, "failed to archive document", "object", objectName, "error", err)
		}
	}
	return session, nil
}

func (s *ToolsService) DetachDocument(ctx context.Context, id string) (*model.Session, error) {
	return s.store.Update(ctx, id, func(session *model.Session) error {
		session.DetachDocument()
		session.Touch(s.now())
		return nil
	})
}

// GenerateContract drafts a contract from the session form. At most one
// generation runs per session; a failure leaves the previous contract in place.
func (s *ToolsService) GenerateContract(ctx context.Context, id string) (*model.GeneratedContract, error) {
	ctx = logger.WithSession(ctx, id)
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	form := session.Form
	jurisdiction := Resolve(form.Country, form.Subdivision, form.ProjectLocation)
	now := s.now()
	prompt, err := BuildPrompt(form.DocumentType, jurisdiction, form.Requirements, now)
	if err != nil {
		s.countRejected(err)
		return nil, err
	}

	opCtx, done, err := s.acquire(ctx, id, model.OperationGenerate)
	if err != nil {
		s.countRejected(err)
		return nil, err
	}
	defer done()

	contract, err := s.generate(opCtx, form.DocumentType, jurisdiction, prompt, now)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Update(ctx, id, func(session *model.Session) error {
		session.RecordContract(*contract)
		session.Touch(s.now())
		return nil
	}); err != nil {
		return nil, err
	}
	return contract, nil
}

// DraftContract generates a contract without touching any session
func (s *ToolsService) DraftContract(ctx context.Context, req DraftRequest) (*model.GeneratedContract, error) {
	now := s.now()
	prompt, err := BuildPrompt(req.DocumentType, req.Jurisdiction, req.Requirements, now)
	if err != nil {
		s.countRejected(err)
		return nil, err
	}
	return s.generate(ctx, req.DocumentType, strings.TrimSpace(req.Jurisdiction), prompt, now)
}

func (s *ToolsService) generate(ctx context.Context, docType model.DocumentType, jurisdiction, prompt string, now time.Time) (*model.GeneratedContract, error) {
	if s.generator == nil {
		return nil, ErrGeneratorNotConfigured
	}
	provider := s.generator.Provider()
	start := time.Now()
	text, err := s.generator.Generate(ctx, prompt)
	metrics.GenerationDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	metrics.GenerationRequests.WithLabelValues(provider, outcomeFor(err)).Inc()
	if err != nil {
		logger.Warn(ctx, "contract generation failed", "provider", provider, "error", err)
		return nil, err
	}

	logger.Info(ctx, "contract generated",
		"provider", provider,
		"document_type", docType,
		"jurisdiction", jurisdiction,
		"length", len(text),
	)
	return &model.GeneratedContract{
		Text:          text,
		DocumentType:  docType,
		DocumentLabel: docType.Label(),
		Jurisdiction:  jurisdiction,
		Provider:      provider,
		GeneratedAt:   now,
	}, nil
}

// AnalyzeDocument asks the analysis back end about the attached document.
// When question is non-nil it replaces the pending question first.
// Preconditions are checked before any network call.
func (s *ToolsService) AnalyzeDocument(ctx context.Context, id string, question *string) (*model.AnalysisResult, error) {
	ctx = logger.WithSession(ctx, id)

	var session *model.Session
	var err error
	if question != nil {
		session, err = s.store.Update(ctx, id, func(session *model.Session) error {
			session.SetQuestion(*question)
			session.Touch(s.now())
			return nil
		})
	} else {
		session, err = s.store.Get(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	if !session.HasDocument() {
		err := newValidationError("file", "upload a document before asking a question")
		metrics.AnalysisRequests.WithLabelValues(metrics.AnalysisQuestion, outcomeFor(err)).Inc()
		return nil, err
	}
	if !session.HasQuestion() {
		err := newValidationError("question", "enter a question about the document")
		metrics.AnalysisRequests.WithLabelValues(metrics.AnalysisQuestion, outcomeFor(err)).Inc()
		return nil, err
	}

	opCtx, done, err := s.acquire(ctx, id, model.OperationAnalyze)
	if err != nil {
		metrics.AnalysisRequests.WithLabelValues(metrics.AnalysisQuestion, outcomeFor(err)).Inc()
		return nil, err
	}
	defer done()

	asked := strings.TrimSpace(session.Question)
	reply, err := s.analyzer.Analyze(opCtx, *session.Document, asked)
	metrics.AnalysisRequests.WithLabelValues(metrics.AnalysisQuestion, outcomeFor(err)).Inc()
	if err != nil {
		logger.Warn(ctx, "document analysis failed", "filename", session.Document.Name, "error", err)
		return nil, err
	}

	result := model.AnalysisResult{
		Text:       reply.Analysis,
		Provider:   reply.Provider,
		Question:   asked,
		Document:   session.Document.Name,
		AnalyzedAt: s.now(),
	}
	if _, err := s.store.Update(ctx, id, func(session *model.Session) error {
		session.RecordAnalysis(result)
		session.Touch(s.now())
		return nil
	}); err != nil {
		return nil, err
	}
	logger.Info(ctx, "document analyzed", "filename", result.Document, "provider", result.Provider)
	return &result, nil
}

// ExtractClauses finds the sentences of the session document that match each
// clause type. It shares the analyze slot, so it cannot overlap a question.
func (s *ToolsService) ExtractClauses(ctx context.Context, id string, clauseTypes []string) (*ClauseReport, error) {
	ctx = logger.WithSession(ctx, id)
	var report *ClauseReport
	err := s.inspect(ctx, id, metrics.AnalysisClauses, func(ctx context.Context, file model.UploadedFile) error {
		var err error
		report, err = s.analyzer.ExtractClauses(ctx, file, trimAll(clauseTypes))
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "clauses extracted", "filename", report.Filename, "clause_types", len(report.Clauses))
	return report, nil
}

// CheckCompliance scores the session document against each regulation
func (s *ToolsService) CheckCompliance(ctx context.Context, id string, regulations []string) (*ComplianceReport, error) {
	ctx = logger.WithSession(ctx, id)
	var report *ComplianceReport
	err := s.inspect(ctx, id, metrics.AnalysisCompliance, func(ctx context.Context, file model.UploadedFile) error {
		var err error
		report, err = s.analyzer.CheckCompliance(ctx, file, trimAll(regulations))
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "compliance checked", "filename", report.Filename, "overall_score", report.Results.OverallScore)
	return report, nil
}

// inspect runs call against the session document under the analyze slot
func (s *ToolsService) inspect(ctx context.Context, id, kind string, call func(context.Context, model.UploadedFile) error) error {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !session.HasDocument() {
		err := newValidationError("file", "upload a document first")
		metrics.AnalysisRequests.WithLabelValues(kind, outcomeFor(err)).Inc()
		return err
	}

	opCtx, done, err := s.acquire(ctx, id, model.OperationAnalyze)
	if err != nil {
		metrics.AnalysisRequests.WithLabelValues(kind, outcomeFor(err)).Inc()
		return err
	}
	defer done()

	err = call(opCtx, *session.Document)
	metrics.AnalysisRequests.WithLabelValues(kind, outcomeFor(err)).Inc()
	if err != nil {
		logger.Warn(ctx, "document inspection failed", "kind", kind, "filename", session.Document.Name, "error", err)
		return err
	}

	_, err = s.store.Update(ctx, id, func(session *model.Session) error {
		session.Touch(s.now())
		return nil
	})
	return err
}

// trimAll drops blank entries and surrounding whitespace
func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ExportContract encodes the latest contract of the session
func (s *ToolsService) ExportContract(ctx context.Context, id string, format ExportFormat) (*ExportResult, error) {
	ctx = logger.WithSession(ctx, id)
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Contract == nil {
		return nil, newValidationError("contract", "generate a contract before exporting")
	}

	artifact, err := Export(format, session.Contract.Text, session.Contract.DocumentLabel, s.now())
	if err != nil {
		return nil, err
	}
	metrics.Exports.WithLabelValues(string(format)).Inc()

	result := &ExportResult{Artifact: artifact}
	if s.archive != nil {
		objectName := fmt.Sprintf("exports/%s/%s", id, artifact.Filename)
		url, err := s.archive.Archive(ctx, objectName, artifact.Body, artifact.ContentType)
		if err != nil {
			logger.Warn(ctx, "failed to archive export", "object", objectName, "error", err)
		} else {
			result.ArchiveURL = url
		}
	}
	return result, nil
}

// SweepIdle removes sessions unused for longer than idle
func (s *ToolsService) SweepIdle(ctx context.Context, idle time.Duration) (int, error) {
	removed, err := s.store.Sweep(ctx, s.now().Add(-idle))
	if removed > 0 {
		metrics.SessionsSwept.Add(float64(removed))
	}
	return removed, err
}

func (s *ToolsService) countRejected(err error) {
	provider := "none"
	if s.generator != nil {
		provider = s.generator.Provider()
	}
	metrics.GenerationRequests.WithLabelValues(provider, outcomeFor(err)).Inc()
}

// acquire marks op in flight and returns the context the upstream call runs
// under. done must be called once the call has returned.
func (s *ToolsService) acquire(ctx context.Context, id string, op model.Operation) (context.Context, func(), error) {
	token, err := s.store.Acquire(ctx, id, op)
	if err != nil {
		return nil, nil, err
	}
	opCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.opTimeout > 0 {
		opCtx, cancel = context.WithTimeout(ctx, s.opTimeout)
	}
	return opCtx, func() {
		cancel()
		s.release(ctx, id, op, token)
	}, nil
}

func (s *ToolsService) release(ctx context.Context, id string, op model.Operation, token string) {
	if err := s.store.Release(context.WithoutCancel(ctx), id, op, token); err != nil && !errors.Is(err, ErrSessionNotFound) {
		logger.Error(ctx, "failed to release operation", "operation", op, "error", err)
	}
}
