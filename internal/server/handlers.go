package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ginjaninja78/invoice-dashboard/internal/assistant"
	"github.com/ginjaninja78/invoice-dashboard/internal/dataset"
	"github.com/ginjaninja78/invoice-dashboard/internal/filter"
	"github.com/ginjaninja78/invoice-dashboard/internal/kpi"
	"github.com/ginjaninja78/invoice-dashboard/internal/reportwriter"
	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
	"github.com/ginjaninja78/invoice-dashboard/internal/session"
	"github.com/ginjaninja78/invoice-dashboard/internal/validation"
	"github.com/ginjaninja78/invoice-dashboard/pkg/utils"
)

// multipartMemory is the part of an upload kept in memory before spilling
// to temporary files.
const multipartMemory = 32 << 20

// =============================================================================
// SESSIONS
// =============================================================================

// sessionSummary is the JSON shape of a session.
type sessionSummary struct {
	ID       string               `json:"id"`
	Created  time.Time            `json:"created"`
	LastSeen time.Time            `json:"last_seen"`
	Source   string               `json:"source,omitempty"`
	Rows     int                  `json:"rows"`
	ViewRows int                  `json:"view_rows"`
	Mapping  schema.ColumnMapping `json:"mapping"`
	Unused   []string             `json:"unused_headers"`
	Missing  []schema.Field       `json:"missing_fields"`
	Quality  *validation.Report   `json:"quality,omitempty"`
	Filters  filter.State         `json:"filters"`
	History  int                  `json:"history"`
}

func summarize(sess *session.Session) sessionSummary {
	out := sessionSummary{
		ID:       sess.ID,
		Created:  sess.Created,
		LastSeen: sess.LastSeen(),
		Filters:  sess.Filters.State(),
		History:  len(sess.History()),
	}
	ds, view, err := sess.Filters.Snapshot()
	if err != nil {
		return out
	}
	out.Source = ds.Source
	out.Rows = ds.Len()
	out.ViewRows = view.Len()
	out.Mapping = ds.Mapping
	out.Unused = ds.Mapping.Unused()
	out.Missing = ds.Mapping.Missing()
	out.Quality = ds.Quality
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithPayload(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"sessions":  s.store.Len(),
		"assistant": s.assistant != nil,
	})
}

// handleCreateSession loads the uploaded file and opens a session on it. No
// session is created when the file cannot be loaded.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ds, err := s.readUpload(w, r)
	if err != nil {
		s.respondWithError(w, err)
		return
	}

	sess := s.store.Create()
	sess.Filters.Load(ds)
	s.logger.Info("session created",
		zap.String("session", sess.ID),
		zap.String("source", ds.Source),
		zap.Int("rows", ds.Len()),
	)
	respondWithPayload(w, http.StatusCreated, summarize(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithPayload(w, http.StatusOK, summarize(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.Delete(id); err != nil {
		s.respondWithError(w, err)
		return
	}
	s.logger.Info("session deleted", zap.String("session", id))
	respondWithPayload(w, http.StatusOK, map[string]string{"id": id})
}

// handleReplaceDataset swaps the session's dataset. Filters return to the
// full extent of the new data and the conversation starts over.
func (s *Server) handleReplaceDataset(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	ds, err := s.readUpload(w, r)
	if err != nil {
		s.respondWithError(w, err)
		return
	}

	sess.Filters.Load(ds)
	sess.ClearHistory()
	s.logger.Info("dataset replaced",
		zap.String("session", sess.ID),
		zap.String("source", ds.Source),
		zap.Int("rows", ds.Len()),
	)
	respondWithPayload(w, http.StatusOK, summarize(sess))
}

// readUpload reads the "file" part of a multipart request into a dataset.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*dataset.Dataset, error) {
	if s.conv == nil {
		return nil, errors.New("no converter configured")
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, badRequest{fmt.Errorf("invalid upload: %w", err)}
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, badRequest{fmt.Errorf("missing \"file\" part: %w", err)}
	}
	defer file.Close()

	ds, err := s.conv.LoadReader(r.Context(), header.Filename, file)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			return nil, badRequest{err}
		}
		return nil, err
	}
	return ds, nil
}

func (s *Server) session(r *http.Request) (*session.Session, error) {
	return s.store.Get(mux.Vars(r)["id"])
}

// =============================================================================
// FILTERS
// =============================================================================

func (s *Server) handleGetFilters(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	if !sess.Filters.Loaded() {
		s.respondWithError(w, filter.ErrNotLoaded)
		return
	}
	respondWithPayload(w, http.StatusOK, map[string]any{
		"state":   sess.Filters.State(),
		"options": sess.Filters.Defaults(),
	})
}

func (s *Server) handleResetFilters(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	if err := sess.Filters.Reset(); err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithPayload(w, http.StatusOK, sess.Filters.State())
}

// filterRequest is the body of PUT /filters/{field}. Which members apply
// depends on the field: values for categorical fields, from/to for dates,
// min/max for delay_days.
type filterRequest struct {
	Values         []string         `json:"values"`
	From           string           `json:"from"`
	To             string           `json:"to"`
	Min            *decimal.Decimal `json:"min"`
	Max            *decimal.Decimal `json:"max"`
	IncludeMissing bool             `json:"include_missing"`
}

func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondWithError(w, err)
		return
	}

	name := mux.Vars(r)["field"]
	f, ok := schema.Parse(name)
	if !ok {
		s.respondWithError(w, fmt.Errorf("%w: unknown field %q", filter.ErrNotFilterable, name))
		return
	}

	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, badRequest{fmt.Errorf("invalid filter body: %w", err)})
		return
	}

	value, err := filterValue(f, req, sess.Filters.Defaults())
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	if err := sess.Filters.SetFilter(f, value); err != nil {
		s.respondWithError(w, err)
		return
	}

	view, err := sess.Filters.View()
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	payload := map[string]any{"state": sess.Filters.State(), "view_rows": view.Len()}
	if view.Empty() {
		respondWithWarning(w, kpi.ErrEmptyView.Error(), payload)
		return
	}
	respondWithPayload(w, http.StatusOK, payload)
}

// filterValue turns req into the predicate type of f. Omitted range bounds
// fall back to the dataset's full extent.
func filterValue(f schema.Field, req filterRequest, defaults filter.State) (any, error) {
	switch f.Kind() {
	case schema.KindText:
		return filter.CategoryFilter{Values: req.Values, IncludeMissing: req.IncludeMissing}, nil

	case schema.KindDate:
		full := defaults.Dates[f]
		from, err := parseDay(req.From, full.From)
		if err != nil {
			return nil, err
		}
		to, err := parseDay(req.To, full.To)
		if err != nil {
			return nil, err
		}
		if to.Before(from) {
			return nil, badRequest{fmt.Errorf("%s: from %s is after to %s", f, req.From, req.To)}
		}
		return filter.DateRange{From: from, To: to, IncludeMissing: req.IncludeMissing}, nil

	case schema.KindInteger:
		var full filter.NumberRange
		if defaults.Delay != nil {
			full = *defaults.Delay
		}
		nr := filter.NumberRange{Min: full.Min, Max: full.Max, IncludeMissing: req.IncludeMissing}
		if req.Min != nil {
			nr.Min = *req.Min
		}
		if req.Max != nil {
			nr.Max = *req.Max
		}
		if nr.Max.LessThan(nr.Min) {
			return nil, badRequest{fmt.Errorf("%s: min %s is above max %s", f, nr.Min, nr.Max)}
		}
		return nr, nil
	}
	return nil, fmt.Errorf("%w: %s", filter.ErrNotFilterable, f)
}

// parseDay reads "2006-01-02" or RFC 3339. An empty string returns def.
func parseDay(s string, def time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, badRequest{fmt.Errorf("invalid date %q", s)}
}

// =============================================================================
// ANALYTICS
// =============================================================================

// handleView returns the filtered records. limit and offset page through
// them; the total is always reported.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	view, err := s.view(r)
	if err != nil {
		s.respondWithError(w, err)
		return
	}

	q := r.URL.Query()
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	limit, err := intParam(q.Get("limit"), view.Len())
	if err != nil {
		s.respondWithError(w, err)
		return
	}

	records := view.Records
	if offset > len(records) {
		offset = len(records)
	}
	records = records[offset:]
	if limit < len(records) {
		records = records[:limit]
	}
	if records == nil {
		records = []dataset.Record{}
	}

	payload := map[string]any{
		"total":   view.Len(),
		"offset":  offset,
		"records": records,
	}
	if view.Empty() {
		respondWithWarning(w, kpi.ErrEmptyView.Error(), payload)
		return
	}
	respondWithPayload(w, http.StatusOK, payload)
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	view, err := s.view(r)
	if err != nil {
		s.respondWithError(w, err)
		return
	}

	set, err := kpi.Summarize(view, s.kpiOpts)
	if errors.Is(err, kpi.ErrEmptyView) {
		respondWithWarning(w, err.Error(), kpi.KPISet{})
		return
	}
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithPayload(w, http.StatusOK, set)
}

// handleSeries answers ?dimension=client&metric=outstanding_amount&agg=sum&top=5.
// metric defaults to invoice_amount and agg to sum.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	view, err := s.view(r)
	if err != nil {
		s.respondWithError(w, err)
		return
	}

	q := r.URL.Query()
	dim, err := kpi.ParseDimension(q.Get("dimension"))
	if err != nil {
		s.respondWithError(w, badRequest{err})
		return
	}
	metric, err := kpi.ParseMetric(orDefault(q.Get("metric"), string(schema.InvoiceAmount)))
	if err != nil {
		s.respondWithError(w, badRequest{err})
		return
	}
	agg, err := kpi.ParseAggregator(orDefault(q.Get("agg"), string(kpi.Sum)))
	if err != nil {
		s.respondWithError(w, badRequest{err})
		return
	}
	top, err := intParam(q.Get("top"), -1)
	if err != nil {
		s.respondWithError(w, err)
		return
	}

	series, err := kpi.GroupBy(view, dim, metric, agg)
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	if top >= 0 {
		series = kpi.TopN(series, top)
	}
	if series.Points == nil {
		series.Points = []kpi.Point{}
	}
	if view.Empty() {
		respondWithWarning(w, kpi.ErrEmptyView.Error(), series)
		return
	}
	respondWithPayload(w, http.StatusOK, series)
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	view, err := s.view(r)
	if err != nil {
		s.respondWithError(w, err)
		return
	}

	charts, err := kpi.Charts(view, s.kpiOpts)
	if errors.Is(err, kpi.ErrEmptyView) {
		respondWithWarning(w, err.Error(), []kpi.Chart{})
		return
	}
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithPayload(w, http.StatusOK, charts)
}

// handleExport streams the filtered view as ?format=xlsx (default) or xml.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	ds, view, err := sess.Filters.Snapshot()
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	name := utils.SourceName(ds.Source)
	if name == "" || name == "." {
		name = "invoices"
	}

	var (
		body        bytes.Buffer
		contentType string
		ext         string
	)
	switch format := orDefault(r.URL.Query().Get("format"), "xlsx"); format {
	case "xlsx":
		wb := reportwriter.Workbook{View: view, Quality: ds.Quality}
		wb.KPIs, err = kpi.Summarize(view, s.kpiOpts)
		if errors.Is(err, kpi.ErrEmptyView) {
			wb.Warning = err.Error()
		} else if err != nil {
			s.respondWithError(w, err)
			return
		}
		if !view.Empty() {
			if wb.Charts, err = kpi.Charts(view, s.kpiOpts); err != nil {
				s.respondWithError(w, err)
				return
			}
		}
		if err := reportwriter.WriteXLSX(&body, wb); err != nil {
			s.respondWithError(w, err)
			return
		}
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		ext = ".xlsx"

	case "xml":
		out, err := reportwriter.GenerateXML(view, ds.Source)
		if err != nil {
			s.respondWithError(w, err)
			return
		}
		body.Write(out)
		contentType = "application/xml"
		ext = ".xml"

	default:
		s.respondWithError(w, badRequest{fmt.Errorf("unknown export format %q", format)})
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+ext))
	w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = body.WriteTo(w)
}

// =============================================================================
// ASSISTANT
// =============================================================================

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Markdown string              `json:"markdown"`
	HTML     string              `json:"html"`
	History  []assistant.Message `json:"history"`
}

// handleAsk answers a question about the filtered view. The exchange is
// kept in the session only when the model answered.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.assistant == nil {
		s.respondWithError(w, ErrAssistantDisabled)
		return
	}
	sess, err := s.session(r)
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	view, err := sess.Filters.View()
	if err != nil {
		s.respondWithError(w, err)
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, badRequest{fmt.Errorf("invalid question body: %w", err)})
		return
	}

	answer, turns, err := s.assistant.Ask(r.Context(), view, sess.History(), req.Question)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			s.logger.Warn("assistant failed", zap.String("session", sess.ID), zap.Error(err))
			writeJSON(w, http.StatusBadGateway, map[string]any{"success": false, "error": err.Error()})
			return
		}
		s.respondWithError(w, err)
		return
	}
	sess.AppendHistory(turns...)

	respondWithPayload(w, http.StatusOK, askResponse{
		Markdown: answer.Markdown,
		HTML:     answer.HTML,
		History:  sess.History(),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// view returns the filtered view of the request's session.
func (s *Server) view(r *http.Request) (dataset.View, error) {
	sess, err := s.session(r)
	if err != nil {
		return dataset.View{}, err
	}
	return sess.Filters.View()
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, badRequest{fmt.Errorf("invalid number %q", s)}
	}
	return n, nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
