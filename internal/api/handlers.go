package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/adkeyword-cli/internal/aggregate"
	"github.com/sells-group/adkeyword-cli/internal/export"
	"github.com/sells-group/adkeyword-cli/internal/model"
	"github.com/sells-group/adkeyword-cli/internal/pipeline"
	"github.com/sells-group/adkeyword-cli/internal/report"
	"github.com/sells-group/adkeyword-cli/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// uploadResponse is returned by the upload endpoint.
type uploadResponse struct {
	Table         model.KeywordTable  `json:"table"`
	ReportSummary model.ReportSummary `json:"report_summary"`
}

// recommendationRequest scores rows that were already aggregated.
type recommendationRequest struct {
	Data     []model.KeywordRow `json:"data" validate:"required,min=1"`
	Criteria criteria           `json:"criteria"`
}

type criteria struct {
	// TargetROAS, when omitted, selects the configured benchmark.
	TargetROAS *float64 `json:"target_roas" validate:"omitempty,gt=0"`
}

func (c criteria) target() float64 {
	if c.TargetROAS == nil {
		return 0
	}
	return *c.TargetROAS
}

// updateRunRequest edits a saved run; omitted fields stay unchanged.
type updateRunRequest struct {
	Name *string  `json:"name" validate:"omitempty,max=200"`
	Memo *string  `json:"memo" validate:"omitempty,max=2000"`
	Tags []string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
}

type runsResponse struct {
	Runs []model.Run `json:"runs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	raw, err := s.pipeline.ParseReport(r.Context(), name, data)
	if err != nil {
		writeParseError(w, err)
		return
	}
	table, summary, err := s.pipeline.Aggregate(raw)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Table: table, ReportSummary: summary})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	table, _, err := s.pipeline.Aggregate(aggregate.AsRaw(model.KeywordTable{Rows: req.Data}))
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.pipeline.Score(table, req.Criteria.target()))
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	name, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	opts, err := analyzeOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if opts.Save && s.pipeline.Store() == nil {
		writeError(w, http.StatusServiceUnavailable, "run store is not configured", nil)
		return
	}

	raw, err := s.pipeline.ParseReport(r.Context(), name, data)
	if err != nil {
		writeParseError(w, err)
		return
	}
	a, err := s.pipeline.AnalyzeTable(r.Context(), raw, opts)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	status := http.StatusOK
	if a.RunID != "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, a)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	st := s.runStore(w)
	if st == nil {
		return
	}
	filter, err := runFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	runs, err := st.ListRuns(r.Context(), filter)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runsResponse{Runs: runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	st := s.runStore(w)
	if st == nil {
		return
	}
	run, err := st.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleUpdateRun(w http.ResponseWriter, r *http.Request) {
	st := s.runStore(w)
	if st == nil {
		return
	}
	var req updateRunRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	upd := store.RunUpdate{Name: req.Name, Memo: req.Memo, Tags: req.Tags}
	if upd.IsEmpty() {
		writeError(w, http.StatusBadRequest, "set at least one of name, memo or tags", nil)
		return
	}
	if err := st.UpdateRun(r.Context(), id, upd); err != nil {
		writePipelineError(w, err)
		return
	}
	run, err := st.GetRun(r.Context(), id)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleCompareRuns(w http.ResponseWriter, r *http.Request) {
	if s.runStore(w) == nil {
		return
	}
	q := r.URL.Query()
	current, previous := q.Get("a"), q.Get("b")
	if current == "" || previous == "" {
		writeError(w, http.StatusBadRequest, "query parameters a and b are required", nil)
		return
	}
	withInsights := false
	if v := q.Get("insights"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("insights must be a boolean (got %q)", v), nil)
			return
		}
		withInsights = b
	}

	c, err := s.pipeline.Compare(r.Context(), current, previous, withInsights)
	if errors.Is(err, pipeline.ErrSameRun) {
		writeError(w, http.StatusBadRequest, "a and b must be different runs", nil)
		return
	}
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	st := s.runStore(w)
	if st == nil {
		return
	}
	if err := st.DeleteRun(r.Context(), chi.URLParam(r, "id")); err != nil {
		writePipelineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportRun(w http.ResponseWriter, r *http.Request) {
	st := s.runStore(w)
	if st == nil {
		return
	}
	run, err := st.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writePipelineError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, pipeline.ResultOf(run)); err != nil {
		writePipelineError(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="run-%s.xlsx"`, run.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) runStore(w http.ResponseWriter) store.Store {
	st := s.pipeline.Store()
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "run store is not configured", nil)
	}
	return st
}

// readUpload reads the multipart "file" field. It writes the error response
// itself and returns ok=false on failure.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	limit := s.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit", nil)
			return "", nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form", nil)
		return "", nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required", nil)
		return "", nil, false
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload", nil)
		return "", nil, false
	}
	return header.Filename, data, true
}

func analyzeOptions(r *http.Request) (pipeline.Options, error) {
	opts := pipeline.Options{Name: r.FormValue("name")}

	if v := r.FormValue("target_roas"); v != "" {
		target, err := strconv.ParseFloat(v, 64)
		if err != nil || target <= 0 {
			return opts, fmt.Errorf("target_roas must be a number > 0 (got %q)", v)
		}
		opts.TargetROAS = target
	}
	for field, dst := range map[string]*bool{"save": &opts.Save, "insights": &opts.Insights} {
		v := r.FormValue(field)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("%s must be a boolean (got %q)", field, v)
		}
		*dst = b
	}
	return opts, nil
}

func runFilter(r *http.Request) (store.RunFilter, error) {
	q := r.URL.Query()
	filter := store.RunFilter{Source: q.Get("source")}

	for field, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(field)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("%s must be a non-negative integer (got %q)", field, v)
		}
		*dst = n
	}

	if v := q.Get("since"); v != "" {
		since, err := parseSince(v)
		if err != nil {
			return filter, fmt.Errorf("since must be RFC3339 or YYYY-MM-DD (got %q)", v)
		}
		filter.Since = since
	}
	return filter, nil
}

func parseSince(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func writeBodyError(w http.ResponseWriter, err error) {
	var verr *validationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error(), verr.fields)
		return
	}
	writeError(w, http.StatusBadRequest, "invalid request body", map[string]string{"error": err.Error()})
}

// writeParseError reports a report that could not be read. Every parse
// failure is a client error.
func writeParseError(w http.ResponseWriter, err error) {
	if errors.Is(err, report.ErrUnsupportedFormat) {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported report format; upload .xlsx or .csv", nil)
		return
	}
	writeError(w, http.StatusBadRequest, "could not parse report", map[string]string{"error": err.Error()})
}

func writePipelineError(w http.ResponseWriter, err error) {
	var (
		schemaErr *aggregate.SchemaError
		valueErr  *aggregate.ValueError
	)
	switch {
	case errors.As(err, &schemaErr):
		writeError(w, http.StatusUnprocessableEntity, "missing required columns", map[string][]string{"missing": schemaErr.Missing})
	case errors.As(err, &valueErr):
		writeError(w, http.StatusUnprocessableEntity, "negative values are not allowed", map[string]any{
			"row":     valueErr.Row,
			"keyword": valueErr.Keyword,
			"column":  valueErr.Column,
		})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "run not found", nil)
	default:
		zap.L().Error("api: request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}
