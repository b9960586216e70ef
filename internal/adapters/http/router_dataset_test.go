package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/config"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/domain"
)

type ingestorFake struct {
	result  *domain.LoadResult
	stageFP string
	err     error
	files   []domain.FileBuffer
}

func (f *ingestorFake) Load(_ context.Context, files []domain.FileBuffer) (*domain.LoadResult, error) {
	f.files = files
	return f.result, f.err
}

func (f *ingestorFake) Stage(_ context.Context, files []domain.FileBuffer) (string, error) {
	f.files = files
	return f.stageFP, f.err
}

func (f *ingestorFake) LoadStaged(context.Context, string) (*domain.LoadResult, error) {
	return f.result, f.err
}

type querierFake struct {
	lastSQL string
	result  *domain.QueryResult
	summary *domain.DatasetSummary
	err     error
}

func (f *querierFake) Query(_ context.Context, _ string, sqlText string) (*domain.QueryResult, error) {
	f.lastSQL = sqlText
	return f.result, f.err
}

func (f *querierFake) Summary(context.Context, string) (*domain.DatasetSummary, error) {
	return f.summary, f.err
}

type readerFake struct {
	ds  *domain.Dataset
	err error
}

func (f *readerFake) GetByFingerprint(context.Context, string) (*domain.Dataset, error) {
	return f.ds, f.err
}

type managerFake struct {
	deleted []string
	err     error
}

func (f *managerFake) Delete(_ context.Context, fingerprint string) error {
	f.deleted = append(f.deleted, fingerprint)
	return f.err
}

type reportsFake struct {
	reports []domain.Report
	result  *domain.QueryResult
	err     error
	lastRun string
}

func (f *reportsFake) List() []domain.Report { return f.reports }

func (f *reportsFake) Run(_ context.Context, _ string, name string) (*domain.QueryResult, error) {
	f.lastRun = name
	return f.result, f.err
}

type exporterFake struct {
	data []byte
	err  error
}

func (f *exporterFake) Export(*domain.QueryResult) ([]byte, error) { return f.data, f.err }

type routerFakes struct {
	ingestor *ingestorFake
	querier  *querierFake
	reader   *readerFake
	manager  *managerFake
	reports  *reportsFake
	exporter *exporterFake
}

func newTestHandler(cfg config.Config, fakes routerFakes) http.Handler {
	if fakes.ingestor == nil {
		fakes.ingestor = &ingestorFake{result: &domain.LoadResult{Fingerprint: "fp1"}}
	}
	if fakes.querier == nil {
		fakes.querier = &querierFake{result: &domain.QueryResult{Columns: []string{"n"}}}
	}
	if fakes.reader == nil {
		fakes.reader = &readerFake{ds: &domain.Dataset{Fingerprint: "fp1", Status: domain.StatusLoaded}}
	}
	if fakes.manager == nil {
		fakes.manager = &managerFake{}
	}
	if fakes.reports == nil {
		fakes.reports = &reportsFake{result: &domain.QueryResult{}}
	}
	if fakes.exporter == nil {
		fakes.exporter = &exporterFake{data: []byte("xlsx")}
	}
	return NewRouter(cfg, fakes.ingestor, fakes.querier, fakes.reader, fakes.manager, fakes.reports, fakes.exporter, nil).Handler()
}

func multipartUpload(t *testing.T, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, name := range names {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := part.Write([]byte("<Faturamento/>")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(config.Config{}, routerFakes{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestCreateDatasetSyncLoad(t *testing.T) {
	ingestor := &ingestorFake{result: &domain.LoadResult{Fingerprint: "fp1", RecordCount: 2500}}
	handler := newTestHandler(config.Config{}, routerFakes{ingestor: ingestor})

	body, contentType := multipartUpload(t, "jan.xml", "feb.xml")
	req := httptest.NewRequest(http.MethodPost, "/v1/datasets", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(ingestor.files) != 2 {
		t.Fatalf("expected both files forwarded, got %d", len(ingestor.files))
	}

	var resp domain.LoadResult
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RecordCount != 2500 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCreateDatasetAsyncStages(t *testing.T) {
	ingestor := &ingestorFake{stageFP: "fp1"}
	handler := newTestHandler(config.Config{}, routerFakes{ingestor: ingestor})

	body, contentType := multipartUpload(t, "jan.xml")
	req := httptest.NewRequest(http.MethodPost, "/v1/datasets?mode=async", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["fingerprint"] != "fp1" || resp["status"] != "staged" {
		t.Fatalf("unexpected response %v", resp)
	}
}

func TestCreateDatasetWithoutFiles(t *testing.T) {
	handler := newTestHandler(config.Config{}, routerFakes{})

	req := httptest.NewRequest(http.MethodPost, "/v1/datasets", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestCreateDatasetMapsMalformedXMLTo422(t *testing.T) {
	ingestor := &ingestorFake{err: domain.WrapError(domain.ErrMalformedXML, "parse document", errors.New("unexpected EOF"))}
	handler := newTestHandler(config.Config{}, routerFakes{ingestor: ingestor})

	body, contentType := multipartUpload(t, "broken.xml")
	req := httptest.NewRequest(http.MethodPost, "/v1/datasets", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}
}

func TestGetDatasetReturns404ForUnknownFingerprint(t *testing.T) {
	reader := &readerFake{err: domain.WrapError(domain.ErrDatasetNotFound, "get dataset", errors.New("fingerprint missing"))}
	handler := newTestHandler(config.Config{}, routerFakes{reader: reader})

	req := httptest.NewRequest(http.MethodGet, "/v1/datasets/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestQueryAppendsRowCap(t *testing.T) {
	querier := &querierFake{result: &domain.QueryResult{}}
	handler := newTestHandler(config.Config{QueryLimitCap: true, QueryMaxRows: 1000}, routerFakes{querier: querier})

	payload, _ := json.Marshal(map[string]string{"sql": "SELECT * FROM invoice_items"})
	req := httptest.NewRequest(http.MethodPost, "/v1/datasets/fp1/query", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if querier.lastSQL != "SELECT * FROM invoice_items LIMIT 1000" {
		t.Fatalf("expected appended cap, got %q", querier.lastSQL)
	}
}

func TestQueryKeepsExplicitLimit(t *testing.T) {
	querier := &querierFake{result: &domain.QueryResult{}}
	handler := newTestHandler(config.Config{QueryLimitCap: true, QueryMaxRows: 1000}, routerFakes{querier: querier})

	payload, _ := json.Marshal(map[string]string{"sql": "SELECT * FROM invoice_items LIMIT 5"})
	req := httptest.NewRequest(http.MethodPost, "/v1/datasets/fp1/query", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if querier.lastSQL != "SELECT * FROM invoice_items LIMIT 5" {
		t.Fatalf("explicit limit must survive, got %q", querier.lastSQL)
	}
}

func TestDeleteDatasetReturns204(t *testing.T) {
	manager := &managerFake{}
	handler := newTestHandler(config.Config{}, routerFakes{manager: manager})

	req := httptest.NewRequest(http.MethodDelete, "/v1/datasets/fp1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if len(manager.deleted) != 1 || manager.deleted[0] != "fp1" {
		t.Fatalf("expected delete for fp1, got %v", manager.deleted)
	}
}

func TestRunReportByName(t *testing.T) {
	reports := &reportsFake{result: &domain.QueryResult{Columns: []string{"cfop_code"}}}
	handler := newTestHandler(config.Config{}, routerFakes{reports: reports})

	req := httptest.NewRequest(http.MethodPost, "/v1/datasets/fp1/reports/cfop_breakdown", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if reports.lastRun != "cfop_breakdown" {
		t.Fatalf("expected report name forwarded, got %q", reports.lastRun)
	}
}

func TestExportSetsWorkbookHeaders(t *testing.T) {
	handler := newTestHandler(config.Config{}, routerFakes{exporter: &exporterFake{data: []byte("PK")}})

	req := httptest.NewRequest(http.MethodPost, "/v1/datasets/fp1/export", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("content type = %q", got)
	}
	if res.Header().Get("Content-Disposition") == "" {
		t.Fatalf("expected attachment disposition")
	}
}
