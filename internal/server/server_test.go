package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/invoice-dashboard/internal/assistant"
	"github.com/ginjaninja78/invoice-dashboard/internal/config"
	"github.com/ginjaninja78/invoice-dashboard/internal/converter"
	"github.com/ginjaninja78/invoice-dashboard/internal/kpi"
	"github.com/ginjaninja78/invoice-dashboard/internal/server"
	"github.com/ginjaninja78/invoice-dashboard/internal/session"
)

const sampleCSV = `Invoice Number,Customer,Amount,Paid,Status,Issue Date
INV-1,Acme,1000,1000,Paid,2025-01-15
INV-2,Beta,500,0,Unpaid,2025-02-01
INV-3,Acme,300,100,Unpaid,2025-02-10
`

type envelope struct {
	Success bool            `json:"success"`
	Warning string          `json:"warning"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(context.Context, string, string) (string, error) {
	return f.reply, f.err
}

func newServer(t *testing.T, c assistant.Completer) *server.Server {
	t.Helper()
	conv, err := converter.New(config.Default(), nil)
	if err != nil {
		t.Fatal(err)
	}
	opts := server.Options{
		Store:     session.NewStore(0),
		Converter: conv,
		KPI:       kpi.DefaultOptions(),
	}
	if c != nil {
		opts.Assistant = assistant.New(c, 0, kpi.DefaultOptions(), nil)
	}
	return server.New(opts)
}

func upload(t *testing.T, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, mw.FormDataContentType()
}

func do(t *testing.T, h http.Handler, method, path string, body *bytes.Buffer, contentType string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: invalid JSON %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, env
}

func putJSON(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, envelope) {
	return do(t, h, http.MethodPut, path, bytes.NewBufferString(body), "application/json")
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	body, ct := upload(t, "q1.csv", sampleCSV)
	rec, env := do(t, h, http.MethodPost, "/api/sessions", body, ct)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", rec.Code, rec.Body.String())
	}
	var sum struct {
		ID       string `json:"id"`
		Rows     int    `json:"rows"`
		ViewRows int    `json:"view_rows"`
	}
	if err := json.Unmarshal(env.Data, &sum); err != nil {
		t.Fatal(err)
	}
	if sum.ID == "" || sum.Rows != 3 || sum.ViewRows != 3 {
		t.Fatalf("summary = %+v", sum)
	}
	return sum.ID
}

func outstanding(t *testing.T, h http.Handler, id string) decimal.Decimal {
	t.Helper()
	rec, env := do(t, h, http.MethodGet, "/api/sessions/"+id+"/kpis", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("kpis: status %d", rec.Code)
	}
	var set kpi.KPISet
	if err := json.Unmarshal(env.Data, &set); err != nil {
		t.Fatal(err)
	}
	k, ok := set.Get(kpi.TotalOutstanding)
	if !ok {
		t.Fatalf("no %s in %s", kpi.TotalOutstanding, env.Data)
	}
	return k.Value
}

func TestSessionLifecycle(t *testing.T) {
	h := newServer(t, nil)
	id := createSession(t, h)

	if rec, _ := do(t, h, http.MethodGet, "/api/sessions/"+id, nil, ""); rec.Code != http.StatusOK {
		t.Errorf("get: status %d", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodGet, "/api/health", nil, ""); rec.Code != http.StatusOK {
		t.Errorf("health: status %d", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodDelete, "/api/sessions/"+id, nil, ""); rec.Code != http.StatusOK {
		t.Errorf("delete: status %d", rec.Code)
	}

	rec, env := do(t, h, http.MethodGet, "/api/sessions/"+id+"/kpis", nil, "")
	if rec.Code != http.StatusNotFound || env.Success || env.Error == "" {
		t.Errorf("after delete: status %d, envelope %+v", rec.Code, env)
	}
}

func TestCreateSessionErrors(t *testing.T) {
	h := newServer(t, nil)

	body, ct := upload(t, "invoices.pdf", "%PDF-1.4")
	if rec, env := do(t, h, http.MethodPost, "/api/sessions", body, ct); rec.Code != http.StatusUnsupportedMediaType || env.Success {
		t.Errorf("pdf upload: status %d", rec.Code)
	}

	rec, _ := do(t, h, http.MethodPost, "/api/sessions", bytes.NewBufferString("{}"), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("no multipart: status %d", rec.Code)
	}

	if rec, env := do(t, h, http.MethodGet, "/api/health", nil, ""); rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"sessions":0`) {
		t.Errorf("failed uploads must not create sessions: %s", env.Data)
	}
}

func TestFilters(t *testing.T) {
	h := newServer(t, nil)
	id := createSession(t, h)
	base := "/api/sessions/" + id

	if got := outstanding(t, h, id); !got.Equal(decimal.NewFromInt(700)) {
		t.Errorf("outstanding = %s, want 700", got)
	}

	rec, env := putJSON(t, h, base+"/filters/client", `{"values":["Beta"]}`)
	if rec.Code != http.StatusOK || env.Warning != "" {
		t.Fatalf("set client: status %d, envelope %+v", rec.Code, env)
	}
	if got := outstanding(t, h, id); !got.Equal(decimal.NewFromInt(500)) {
		t.Errorf("outstanding for Beta = %s, want 500", got)
	}

	rec, env = putJSON(t, h, base+"/filters/client", `{"values":[]}`)
	if rec.Code != http.StatusOK || env.Warning == "" {
		t.Errorf("empty selection: status %d, envelope %+v", rec.Code, env)
	}
	rec, env = do(t, h, http.MethodGet, base+"/kpis", nil, "")
	if rec.Code != http.StatusOK || env.Warning == "" || string(env.Data) != "[]" {
		t.Errorf("kpis on empty view: status %d, envelope %+v", rec.Code, env)
	}

	if rec, _ := do(t, h, http.MethodPost, base+"/filters/reset", nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("reset: status %d", rec.Code)
	}

	rec, env = putJSON(t, h, base+"/filters/issue_date", `{"from":"2025-02-01"}`)
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"view_rows":2`) {
		t.Errorf("date filter: status %d, data %s", rec.Code, env.Data)
	}
	if got := outstanding(t, h, id); !got.Equal(decimal.NewFromInt(700)) {
		t.Errorf("outstanding from February = %s, want 700", got)
	}
}

func TestSetFilterErrors(t *testing.T) {
	h := newServer(t, nil)
	base := "/api/sessions/" + createSession(t, h)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"unknown field", "/filters/colour", `{}`, http.StatusBadRequest},
		{"amount is not filterable", "/filters/invoice_amount", `{}`, http.StatusBadRequest},
		{"unmapped dimension", "/filters/due_date", `{"from":"2025-01-01"}`, http.StatusBadRequest},
		{"bad date", "/filters/issue_date", `{"from":"yesterday"}`, http.StatusBadRequest},
		{"reversed range", "/filters/issue_date", `{"from":"2025-03-01","to":"2025-01-01"}`, http.StatusBadRequest},
		{"bad body", "/filters/client", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := putJSON(t, h, base+tt.path, tt.body)
			if rec.Code != tt.want || env.Success {
				t.Errorf("status %d, envelope %+v", rec.Code, env)
			}
		})
	}
}

func TestSeries(t *testing.T) {
	h := newServer(t, nil)
	base := "/api/sessions/" + createSession(t, h)

	rec, env := do(t, h, http.MethodGet, base+"/series?dimension=client&metric=outstanding_amount&top=1", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("series: status %d, body %s", rec.Code, rec.Body.String())
	}
	var s kpi.Series
	if err := json.Unmarshal(env.Data, &s); err != nil {
		t.Fatal(err)
	}
	if len(s.Points) != 1 || s.Points[0].Label != "Beta" || !s.Points[0].Value.Equal(decimal.NewFromInt(500)) {
		t.Errorf("points = %+v", s.Points)
	}

	for _, q := range []string{"", "?dimension=client&agg=median", "?dimension=client&top=x"} {
		if rec, _ := do(t, h, http.MethodGet, base+"/series"+q, nil, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("series%s: status %d", q, rec.Code)
		}
	}
	if rec, _ := do(t, h, http.MethodGet, base+"/series?dimension=payment_method", nil, ""); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unmapped dimension: status %d", rec.Code)
	}
}

func TestViewAndExport(t *testing.T) {
	h := newServer(t, nil)
	base := "/api/sessions/" + createSession(t, h)

	rec, env := do(t, h, http.MethodGet, base+"/view?offset=1&limit=1", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("view: status %d", rec.Code)
	}
	var page struct {
		Total   int              `json:"total"`
		Records []map[string]any `json:"records"`
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 || len(page.Records) != 1 || page.Records[0]["client"] != "Beta" {
		t.Errorf("page = %+v", page)
	}

	rec, _ = do(t, h, http.MethodGet, base+"/export?format=xml", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<invoices") {
		t.Errorf("xml export: status %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `"q1.xml"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rec, _ = do(t, h, http.MethodGet, base+"/export", nil, "")
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Errorf("xlsx export: status %d", rec.Code)
	}

	if rec, _ := do(t, h, http.MethodGet, base+"/export?format=csv", nil, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format: status %d", rec.Code)
	}
}

func TestAsk(t *testing.T) {
	fake := &fakeCompleter{reply: "Beta owes **500 SAR**."}
	h := newServer(t, fake)
	base := "/api/sessions/" + createSession(t, h)

	rec, env := do(t, h, http.MethodPost, base+"/ask", bytes.NewBufferString(`{"question":"Who owes the most?"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("ask: status %d, body %s", rec.Code, rec.Body.String())
	}
	var ans struct {
		HTML    string              `json:"html"`
		History []assistant.Message `json:"history"`
	}
	if err := json.Unmarshal(env.Data, &ans); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ans.HTML, "<strong>500 SAR</strong>") || len(ans.History) != 2 {
		t.Errorf("answer = %+v", ans)
	}

	fake.err = errors.New("upstream unavailable")
	rec, _ = do(t, h, http.MethodPost, base+"/ask", bytes.NewBufferString(`{"question":"And now?"}`), "application/json")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("model failure: status %d", rec.Code)
	}
	rec, _ = do(t, h, http.MethodPost, base+"/ask", bytes.NewBufferString(`{"question":"  "}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank question: status %d", rec.Code)
	}

	_, env = do(t, h, http.MethodGet, base, nil, "")
	if !strings.Contains(string(env.Data), `"history":2`) {
		t.Errorf("failed asks must not change history: %s", env.Data)
	}
}

func TestAskDisabled(t *testing.T) {
	h := newServer(t, nil)
	base := "/api/sessions/" + createSession(t, h)

	rec, _ := do(t, h, http.MethodPost, base+"/ask", bytes.NewBufferString(`{"question":"hi"}`), "application/json")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status %d, want 503", rec.Code)
	}
}
