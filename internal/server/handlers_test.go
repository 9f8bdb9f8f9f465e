package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/docverify/internal/compare"
	"github.com/hyperjump/docverify/internal/config"
	"github.com/hyperjump/docverify/internal/identity"
	"github.com/hyperjump/docverify/internal/idp"
	"github.com/hyperjump/docverify/internal/models"
	"github.com/hyperjump/docverify/internal/ranges"
	"github.com/hyperjump/docverify/internal/storage"
	"github.com/hyperjump/docverify/internal/stream"
	"github.com/hyperjump/docverify/internal/verify"
)

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

type mockMedical struct {
	err error
}

func (m *mockMedical) ExtractMedical(context.Context, string) (*stream.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	doc, _ := stream.CombinePages([]map[string]any{{
		"patient_info": map[string]any{"Name": "Anil Kumar", "Age": "40", "Sex": "Male"},
		"results": []any{
			map[string]any{"test_name": "Glucose", "value": "150", "reference_range": "70 - 110 mg/dl"},
		},
	}})
	return &stream.Result{Status: stream.StatusDone, Document: doc, Pages: 1}, nil
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func newTestServer(t *testing.T, medical idp.MedicalExtractor, watch WatchService) *Server {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "records.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	if err := store.UpsertProposer(ctx, &models.Proposer{
		ProposerID:   1,
		CustomerName: "Anil Kumar",
		PANNumber:    strPtr("ABCDE1234F"),
		Age:          intPtr(40),
		Sex:          strPtr("Male"),
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateDocument(ctx, &models.DocumentRecord{ID: 5, ProposerID: 1, DocumentType: "lab_report", SourceURL: "s3://b/lab.pdf"}); err != nil {
		t.Fatal(err)
	}

	logger := zap.NewNop()
	svc := verify.NewService(
		store,
		medical,
		nil,
		compare.NewComparator(compare.DefaultPolicy(), logger),
		ranges.NewClassifier(logger),
		identity.NewVerifier(logger),
		stream.NewReassembler(stream.DefaultOptions(), logger),
		logger,
	)
	appCfg := &config.Config{Storage: config.StorageConfig{DatabasePath: filepath.Join(dir, "records.db")}}
	return NewServer(svc, store, &config.ServerConfig{Port: 8080}, logger, watch, "", appCfg)
}

func do(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	w := do(t, srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t, nil, &mockWatchService{dirs: []string{"/tmp/inbox"}})
	w := do(t, srv, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["proposers"] != float64(1) || out["documents"] != float64(1) {
		t.Errorf("counts: got %v", out)
	}
	if _, ok := out["database_bytes"]; !ok {
		t.Error("database_bytes missing")
	}
	matching, ok := out["matching"].(map[string]interface{})
	if !ok {
		t.Fatalf("matching missing: %v", out)
	}
	if matching["verification_threshold"] != 0.8 || matching["salary_tolerance"] != 0.1 {
		t.Errorf("matching: got %v", matching)
	}
}

func TestHandleFinanceCompare(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	w := do(t, srv, http.MethodPost, "/api/v1/finance/compare", map[string]interface{}{
		"document_type":    "pan_card",
		"extracted_fields": map[string]string{"name": "Anil Kumar", "pan": "ABCDE1234F"},
		"proposer_id":      1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	var report models.FinanceReport
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if !report.OverallMatch || report.Comparison.FieldsCompared != 2 {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.Comparison.Comparisons["pan"].Details == nil {
		t.Error("pan details missing")
	}
}

func TestHandleFinanceCompare_Errors(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	w := do(t, srv, http.MethodPost, "/api/v1/finance/compare", map[string]interface{}{"document_type": "pan_card", "proposer_id": 42})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown proposer: got %d", w.Code)
	}

	w = do(t, srv, http.MethodPost, "/api/v1/finance/compare", map[string]interface{}{"proposer_id": 1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing document_type: got %d", w.Code)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/v1/finance/compare", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, r)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: got %d", rec.Code)
	}
}

func TestHandleComparePAN(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	w := do(t, srv, http.MethodPost, "/api/v1/finance/pan", panRequest{Extracted: "ABCDE1234F", Database: "ABCDE1234G"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out models.PANComparison
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Match || out.ExactMatch || out.Confidence < 0.9 {
		t.Errorf("unexpected comparison: %+v", out)
	}

	w = do(t, srv, http.MethodPost, "/api/v1/finance/pan", panRequest{Extracted: "ABCDE1234F"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing database: got %d", w.Code)
	}
}

func TestHandleFinanceProcess_NotConfigured(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	w := do(t, srv, http.MethodPost, "/api/v1/finance/documents/5/process", documentRequest{ProposerID: 1})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d", w.Code)
	}

	w = do(t, srv, http.MethodPost, "/api/v1/finance/documents/abc/process", documentRequest{ProposerID: 1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id: got %d", w.Code)
	}
}

func TestHandleMedicalAnalyze(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	w := do(t, srv, http.MethodPost, "/api/v1/medical/analyze", map[string]interface{}{
		"extraction": map[string]interface{}{
			"results": []interface{}{
				map[string]interface{}{"test_name": "HDL", "value": "35", "reference_range": "> 40 mg/dL"},
			},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	var report models.MedicalReport
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if len(report.RangeAnalysis.OutOfRangeParams) != 1 || report.RangeAnalysis.OutOfRangeParams[0].Reason != models.OutOfRangeReason {
		t.Errorf("unexpected range analysis: %+v", report.RangeAnalysis)
	}
}

func TestHandleMedicalExtract(t *testing.T) {
	srv := newTestServer(t, &mockMedical{}, nil)
	w := do(t, srv, http.MethodPost, "/api/v1/medical/documents/5/extract", documentRequest{ProposerID: 1})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	var report models.MedicalReport
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.IdentityVerification == nil || report.IdentityVerification.Confidence != 100 {
		t.Errorf("identity verification: %+v", report.IdentityVerification)
	}
	if report.StreamStatus != "done" || report.TotalPages != 1 {
		t.Errorf("stream status %q pages %d", report.StreamStatus, report.TotalPages)
	}

	w = do(t, srv, http.MethodPost, "/api/v1/medical/documents/5/extract", documentRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing proposer: got %d", w.Code)
	}
}

func TestHandleMedicalExtract_Timeout(t *testing.T) {
	srv := newTestServer(t, &mockMedical{err: idp.ErrTimeout}, nil)
	w := do(t, srv, http.MethodPost, "/api/v1/medical/documents/5/extract", documentRequest{ProposerID: 1})
	if w.Code != http.StatusRequestTimeout {
		t.Fatalf("status: got %d", w.Code)
	}
	out := decodeError(t, w)
	if !out.Retryable {
		t.Error("timeout should be retryable")
	}
	if out.Error != "Document processing timed out - please try again" {
		t.Errorf("message: %q", out.Error)
	}
}

func TestHandleProposers(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	w := do(t, srv, http.MethodGet, "/api/v1/proposers/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var p models.Proposer
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.CustomerName != "Anil Kumar" {
		t.Errorf("got %+v", p)
	}

	w = do(t, srv, http.MethodGet, "/api/v1/proposers/1/documents", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("documents status: got %d", w.Code)
	}
	var out struct {
		Documents []models.DocumentRecord `json:"documents"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Documents) != 1 {
		t.Errorf("expected 1 document, got %d", len(out.Documents))
	}

	w = do(t, srv, http.MethodGet, "/api/v1/proposers/9", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing proposer: got %d", w.Code)
	}
	if decodeError(t, w).Retryable {
		t.Error("not found should not be retryable")
	}
}

func TestHandleWatchDirectories(t *testing.T) {
	mock := &mockWatchService{dirs: []string{"/tmp/inbox"}}
	srv := newTestServer(t, nil, mock)

	w := do(t, srv, http.MethodGet, "/api/v1/watch/directories", nil)
	if w.Code != http.StatusOK {
		t.Errorf("list status: got %d", w.Code)
	}

	dir := t.TempDir()
	w = do(t, srv, http.MethodPost, "/api/v1/watch/directories", watchAddRequest{Path: dir})
	if w.Code != http.StatusCreated {
		t.Fatalf("add status: got %d", w.Code)
	}
	if len(mock.dirs) != 2 {
		t.Errorf("expected 2 dirs, got %v", mock.dirs)
	}

	w = do(t, srv, http.MethodPost, "/api/v1/watch/directories", watchAddRequest{Path: filepath.Join(dir, "missing")})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing dir: got %d", w.Code)
	}

	w = do(t, srv, http.MethodDelete, "/api/v1/watch/directories?path="+dir, nil)
	if w.Code != http.StatusOK {
		t.Errorf("remove status: got %d", w.Code)
	}
	if len(mock.dirs) != 1 {
		t.Errorf("expected 1 dir, got %v", mock.dirs)
	}
}

func TestHandleWatchDirectories_NotEnabled(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	w := do(t, srv, http.MethodGet, "/api/v1/watch/directories", nil)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d", w.Code)
	}
}
