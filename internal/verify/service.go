// Package verify runs document verification end to end: record lookup, extraction,
// field comparison, identity cross-check, and lab range analysis.
package verify

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/docverify/internal/compare"
	"github.com/hyperjump/docverify/internal/identity"
	"github.com/hyperjump/docverify/internal/idp"
	"github.com/hyperjump/docverify/internal/models"
	"github.com/hyperjump/docverify/internal/ranges"
	"github.com/hyperjump/docverify/internal/storage"
	"github.com/hyperjump/docverify/internal/stream"
)

// FinanceRequest compares supplied fields against a proposer. Fields are read from
// Extraction when ExtractedFields is empty.
type FinanceRequest struct {
	DocumentType    string                 `json:"document_type"`
	ExtractedFields models.ExtractedFields `json:"extracted_fields"`
	Extraction      map[string]any         `json:"extraction,omitempty"`
	Proposer        *models.Proposer       `json:"proposer,omitempty"`
	ProposerID      int64                  `json:"proposer_id,omitempty"`
}

// MedicalRequest analyses a lab report extraction. Without a proposer the identity
// check is skipped.
type MedicalRequest struct {
	Extraction map[string]any   `json:"extraction"`
	Proposer   *models.Proposer `json:"proposer,omitempty"`
	ProposerID int64            `json:"proposer_id,omitempty"`
}

// Service orchestrates verification. Extractors may be nil when only direct comparison is used.
type Service struct {
	store       storage.Store
	medical     idp.MedicalExtractor
	finance     idp.FinanceExtractor
	comparator  *compare.Comparator
	classifier  *ranges.Classifier
	verifier    *identity.Verifier
	reassembler *stream.Reassembler
	logger      *zap.Logger
}

// NewService creates a verification service with the given dependencies.
func NewService(
	store storage.Store,
	medical idp.MedicalExtractor,
	finance idp.FinanceExtractor,
	comparator *compare.Comparator,
	classifier *ranges.Classifier,
	verifier *identity.Verifier,
	reassembler *stream.Reassembler,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       store,
		medical:     medical,
		finance:     finance,
		comparator:  comparator,
		classifier:  classifier,
		verifier:    verifier,
		reassembler: reassembler,
		logger:      logger,
	}
}

// GetProposer returns a stored proposer.
func (s *Service) GetProposer(ctx context.Context, id int64) (*models.Proposer, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: no record store", ErrNotConfigured)
	}
	return s.store.GetProposer(ctx, id)
}

// ListDocuments returns a proposer's document records; the proposer must exist.
func (s *Service) ListDocuments(ctx context.Context, proposerID int64) ([]*models.DocumentRecord, error) {
	if _, err := s.GetProposer(ctx, proposerID); err != nil {
		return nil, err
	}
	return s.store.ListDocumentsByProposer(ctx, proposerID)
}

// MatchingPolicy returns the thresholds finance comparisons run with.
func (s *Service) MatchingPolicy() compare.Policy {
	return s.comparator.Policy()
}

// ComparePAN compares two PAN numbers with the diagnostic tiers.
func (s *Service) ComparePAN(extracted, database string) models.PANComparison {
	return compare.ComparePAN(extracted, database)
}

// CompareFinance compares supplied fields against a supplied or stored proposer.
func (s *Service) CompareFinance(ctx context.Context, req FinanceRequest) (*models.FinanceReport, error) {
	if strings.TrimSpace(req.DocumentType) == "" {
		return nil, fmt.Errorf("%w: document_type is required", ErrInvalidRequest)
	}
	proposer, err := s.resolveProposer(ctx, req.Proposer, req.ProposerID)
	if err != nil {
		return nil, err
	}
	if proposer == nil {
		return nil, fmt.Errorf("%w: proposer or proposer_id is required", ErrInvalidRequest)
	}
	fields := req.ExtractedFields
	if fields == (models.ExtractedFields{}) && req.Extraction != nil {
		fields = compare.ExtractFields(req.Extraction, req.DocumentType)
	}
	return s.financeReport(0, req.DocumentType, fields, proposer), nil
}

// ProcessFinanceDocument extracts a stored document through the finance service and
// compares it with the proposer.
func (s *Service) ProcessFinanceDocument(ctx context.Context, documentID, proposerID int64) (*models.FinanceReport, error) {
	if s.finance == nil {
		return nil, fmt.Errorf("%w: finance extractor", ErrNotConfigured)
	}
	if proposerID == 0 {
		return nil, fmt.Errorf("%w: proposer_id is required for comparison", ErrInvalidRequest)
	}
	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.ProposalNumber == "" {
		return nil, fmt.Errorf("%w: no proposal number found for document %d", ErrInvalidRequest, documentID)
	}
	s.logger.Info("processing finance document",
		zap.Int64("document_id", documentID),
		zap.String("document_type", doc.DocumentType),
		zap.String("proposal_number", doc.ProposalNumber),
	)

	extraction, err := s.finance.ExtractFinance(ctx, doc.ProposalNumber)
	if err != nil {
		return nil, fmt.Errorf("finance extraction: %w", err)
	}
	proposer, err := s.store.GetProposer(ctx, proposerID)
	if err != nil {
		return nil, err
	}

	fields := compare.ExtractFields(extraction, doc.DocumentType)
	return s.financeReport(doc.ID, doc.DocumentType, fields, proposer), nil
}

func (s *Service) financeReport(documentID int64, docType string, fields models.ExtractedFields, proposer *models.Proposer) *models.FinanceReport {
	cmp := s.comparator.CompareDocument(fields, *proposer, docType)
	verified := s.comparator.Verified(cmp)
	pct := int(math.Round(cmp.OverallScore * 100))

	report := &models.FinanceReport{
		RunID:           uuid.NewString(),
		DocumentID:      documentID,
		DocumentType:    docType,
		ExtractedFields: fields,
		Proposer:        proposer,
		Comparison:      cmp,
		OverallMatch:    verified,
		ConfidenceScore: cmp.OverallScore,
	}
	if verified {
		report.Message = fmt.Sprintf("Document verified successfully! %d%% match confidence.", pct)
	} else {
		report.Message = fmt.Sprintf("Document verification failed. Only %d%% match confidence.", pct)
	}
	s.logger.Info("document comparison completed",
		zap.String("run_id", report.RunID),
		zap.String("document_type", docType),
		zap.Float64("overall_score", cmp.OverallScore),
		zap.Int("fields_compared", cmp.FieldsCompared),
		zap.Bool("verified", verified),
	)
	return report
}

// AnalyzeMedical runs identity verification and range analysis over a supplied extraction.
func (s *Service) AnalyzeMedical(ctx context.Context, req MedicalRequest) (*models.MedicalReport, error) {
	if req.Extraction == nil {
		return nil, fmt.Errorf("%w: extraction is required", ErrInvalidRequest)
	}
	proposer, err := s.resolveProposer(ctx, req.Proposer, req.ProposerID)
	if err != nil {
		return nil, err
	}
	return s.medicalReport(0, req.Extraction, proposer, ""), nil
}

// ProcessMedicalDocument extracts a stored lab report through the streaming medical
// service and analyses the combined pages.
func (s *Service) ProcessMedicalDocument(ctx context.Context, documentID, proposerID int64) (*models.MedicalReport, error) {
	if s.medical == nil {
		return nil, fmt.Errorf("%w: medical extractor", ErrNotConfigured)
	}
	if proposerID == 0 {
		return nil, fmt.Errorf("%w: proposer_id is required", ErrInvalidRequest)
	}
	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.SourceURL == "" {
		return nil, fmt.Errorf("%w: document %d has no source URL", ErrInvalidRequest, documentID)
	}
	proposer, err := s.store.GetProposer(ctx, proposerID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("extracting medical document", zap.Int64("document_id", documentID), zap.Int64("proposer_id", proposerID))
	res, err := s.medical.ExtractMedical(ctx, doc.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("medical extraction: %w", err)
	}
	return s.medicalReport(doc.ID, res.Document, proposer, res.Status), nil
}

// ReassembleFile combines the pages of a saved extraction stream.
func (s *Service) ReassembleFile(ctx context.Context, path string) (*stream.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	res, err := s.reassembler.Reassemble(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("reassembling %s: %w", path, err)
	}
	return res, nil
}

// AnalyzeFile reassembles a saved extraction stream and analyses it like a fresh extraction.
func (s *Service) AnalyzeFile(ctx context.Context, path string, proposer *models.Proposer) (*models.MedicalReport, error) {
	res, err := s.ReassembleFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.medicalReport(0, res.Document, proposer, res.Status), nil
}

func (s *Service) medicalReport(documentID int64, extraction map[string]any, proposer *models.Proposer, status stream.Status) *models.MedicalReport {
	report := &models.MedicalReport{
		RunID:         uuid.NewString(),
		DocumentID:    documentID,
		Proposer:      proposer,
		ExtractedData: extraction,
		StreamStatus:  string(status),
		TotalPages:    totalPages(extraction),
	}

	if patient, ok := models.PatientInfoFromExtraction(extraction); ok && proposer != nil {
		iv := s.verifier.Verify(patient, proposer)
		report.IdentityVerification = &iv
		s.logger.Info("identity verification completed",
			zap.String("run_id", report.RunID),
			zap.Int("confidence", iv.Confidence),
			zap.Int("issues", len(iv.Issues)),
		)
	} else {
		s.logger.Debug("skipping identity verification", zap.String("run_id", report.RunID), zap.Bool("has_patient_info", ok))
	}

	report.RangeAnalysis = s.classifier.AnalyzeTestResults(extraction)
	s.logger.Info("range analysis completed",
		zap.String("run_id", report.RunID),
		zap.Int("total_params", report.RangeAnalysis.TotalParams),
		zap.Int("out_of_range", len(report.RangeAnalysis.OutOfRangeParams)),
		zap.Int("skipped", report.RangeAnalysis.SkippedParams),
	)

	switch {
	case status == stream.StatusPartial:
		report.Message = fmt.Sprintf("Partial document data extracted from %d pages", report.TotalPages)
	case hasTotalPages(extraction):
		report.Message = fmt.Sprintf("Document data extracted successfully from %d pages", report.TotalPages)
	default:
		report.Message = "Document data extracted successfully"
	}
	return report
}

func (s *Service) resolveProposer(ctx context.Context, p *models.Proposer, id int64) (*models.Proposer, error) {
	if p != nil {
		return p, nil
	}
	if id == 0 {
		return nil, nil
	}
	return s.GetProposer(ctx, id)
}

func (s *Service) getDocument(ctx context.Context, id int64) (*models.DocumentRecord, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: no record store", ErrNotConfigured)
	}
	return s.store.GetDocument(ctx, id)
}

func hasTotalPages(doc map[string]any) bool {
	_, ok := doc["total_pages"]
	return ok
}

// totalPages reads total_pages whether it came from CombinePages (int) or JSON (float64).
func totalPages(doc map[string]any) int {
	switch v := doc["total_pages"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 1
	}
}
