package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/config"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/domain"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/ports"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/observability/metrics"
)

type Router struct {
	cfg      config.Config
	ingestor ports.DatasetIngestor
	querier  ports.DatasetQueryService
	reader   ports.DatasetReader
	manager  ports.DatasetManager
	reports  ports.ReportRunner
	exporter ports.ResultExporter
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	ingestor ports.DatasetIngestor,
	querier ports.DatasetQueryService,
	reader ports.DatasetReader,
	manager ports.DatasetManager,
	reports ports.ReportRunner,
	exporter ports.ResultExporter,
	serverMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:      cfg,
		ingestor: ingestor,
		querier:  querier,
		reader:   reader,
		manager:  manager,
		reports:  reports,
		exporter: exporter,
		metrics:  serverMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/reports", rt.listReports)
	mux.HandleFunc("/v1/datasets", rt.createDataset)
	mux.HandleFunc("/v1/datasets/", rt.datasetSubtree)

	var handler http.Handler = mux
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
		handler = rt.metrics.Middleware(rt.cfg.ServiceName, handler)
	}
	if rt.cfg.APIMaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxConcurrent, 100*time.Millisecond)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) listReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": rt.reports.List()})
}

// createDataset accepts a multipart file set and either loads it
// synchronously or stages it for a worker (mode=async).
func (rt *Router) createDataset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}
	files, err := readMultipartFiles(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if r.URL.Query().Get("mode") == "async" {
		fingerprint, err := rt.ingestor.Stage(r.Context(), files)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"fingerprint": fingerprint,
			"status":      "staged",
		})
		return
	}

	start := time.Now()
	result, err := rt.ingestor.Load(r.Context(), files)
	if rt.metrics != nil {
		var records, invoicesSkipped, itemsSkipped int64
		if result != nil {
			records = result.RecordCount
			invoicesSkipped = result.InvoicesSkipped
			itemsSkipped = result.ItemsSkipped
		}
		rt.metrics.RecordLoad(rt.cfg.ServiceName, time.Since(start), records, invoicesSkipped, itemsSkipped, err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// datasetSubtree dispatches /v1/datasets/{fingerprint}[/...] routes.
func (rt *Router) datasetSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/datasets/")
	parts := strings.SplitN(rest, "/", 3)
	fingerprint := parts[0]
	if fingerprint == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "dataset fingerprint is required"})
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			rt.getDataset(w, r, fingerprint)
		case http.MethodDelete:
			rt.deleteDataset(w, r, fingerprint)
		default:
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		}
		return
	}

	switch parts[1] {
	case "summary":
		rt.datasetSummary(w, r, fingerprint)
	case "query":
		rt.queryDataset(w, r, fingerprint)
	case "export":
		rt.exportDataset(w, r, fingerprint)
	case "reports":
		name := ""
		if len(parts) == 3 {
			name = parts[2]
		}
		rt.runReport(w, r, fingerprint, name)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown dataset operation"})
	}
}

func (rt *Router) getDataset(w http.ResponseWriter, r *http.Request, fingerprint string) {
	ds, err := rt.reader.GetByFingerprint(r.Context(), fingerprint)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (rt *Router) deleteDataset(w http.ResponseWriter, r *http.Request, fingerprint string) {
	if err := rt.manager.Delete(r.Context(), fingerprint); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) datasetSummary(w http.ResponseWriter, r *http.Request, fingerprint string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	summary, err := rt.querier.Summary(r.Context(), fingerprint)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (rt *Router) queryDataset(w http.ResponseWriter, r *http.Request, fingerprint string) {
	sqlText, ok := rt.readSQLRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	result, err := rt.querier.Query(r.Context(), fingerprint, rt.capQuery(sqlText))
	if rt.metrics != nil {
		rt.metrics.RecordQuery(rt.cfg.ServiceName, time.Since(start), err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) exportDataset(w http.ResponseWriter, r *http.Request, fingerprint string) {
	sqlText, ok := rt.readSQLRequest(w, r)
	if !ok {
		return
	}

	result, err := rt.querier.Query(r.Context(), fingerprint, rt.capQuery(sqlText))
	if err != nil {
		if rt.metrics != nil {
			rt.metrics.RecordExport(rt.cfg.ServiceName, err)
		}
		writeError(w, err)
		return
	}

	data, err := rt.exporter.Export(result)
	if rt.metrics != nil {
		rt.metrics.RecordExport(rt.cfg.ServiceName, err)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "dataset_"+fingerprint+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (rt *Router) runReport(w http.ResponseWriter, r *http.Request, fingerprint, name string) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "report name is required"})
		return
	}
	result, err := rt.reports.Run(r.Context(), fingerprint, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// readSQLRequest decodes the {"sql": ...} body shared by query and
// export. An empty body falls back to a full-table select.
func (rt *Router) readSQLRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return "", false
	}

	var req struct {
		SQL string `json:"sql"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return "", false
		}
	}
	if strings.TrimSpace(req.SQL) == "" {
		req.SQL = "SELECT * FROM invoice_items"
	}
	return req.SQL, true
}

// capQuery appends a row cap unless the statement already carries its
// own LIMIT clause.
func (rt *Router) capQuery(sqlText string) string {
	if !rt.cfg.QueryLimitCap || rt.cfg.QueryMaxRows <= 0 {
		return sqlText
	}
	trimmed := strings.TrimRight(strings.TrimSpace(sqlText), ";")
	if strings.Contains(strings.ToUpper(trimmed), "LIMIT") {
		return trimmed
	}
	return fmt.Sprintf("%s LIMIT %d", trimmed, rt.cfg.QueryMaxRows)
}

func readMultipartFiles(r *http.Request) ([]domain.FileBuffer, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, errors.New("multipart form with field 'files' is required")
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return nil, errors.New("at least one file in field 'files' is required")
	}

	files := make([]domain.FileBuffer, 0, len(headers))
	for _, fh := range headers {
		buf, err := readPart(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, buf)
	}
	return files, nil
}

func readPart(fh *multipart.FileHeader) (domain.FileBuffer, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.FileBuffer{}, fmt.Errorf("open uploaded file %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return domain.FileBuffer{}, fmt.Errorf("read uploaded file %s: %w", fh.Filename, err)
	}
	return domain.FileBuffer{Name: fh.Filename, Size: fh.Size, Data: data}, nil
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
