package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/starford/historian/internal/graphstore"
	"github.com/starford/historian/internal/historian"
	"github.com/starford/historian/internal/layout"
	"github.com/starford/historian/internal/loader"
	"github.com/starford/historian/internal/testutil"
)

const testSecret = "s3cret"

var quietLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// testEnv sets up a temp documents dir, SQLite store, service and router.
func testEnv(t *testing.T, files map[string]string) (*historian.Service, http.Handler) {
	t.Helper()
	_, src := testutil.TestDocs(t, files)
	store := testutil.TestStore(t)
	svc := historian.NewService(store, loader.New(src, loader.WithLogger(quietLogger)),
		historian.WithAdminSecret(testSecret), historian.WithLogger(quietLogger))
	router := NewRouter(svc, Options{Documents: src, Schedulers: TickerSchedulers(1000)})
	return svc, router
}

// seededEnv ingests a two-event chain before returning.
func seededEnv(t *testing.T) (*historian.Service, http.Handler) {
	t.Helper()
	svc, router := testEnv(t, map[string]string{
		"2026-02-01.A.md": "---\ntags: [tls]\n---\nalpha",
		"2026-02-10.B.md": "---\ntags: [tls]\n---\nbeta",
		"notes.txt":       "ignored",
	})
	if _, err := svc.Ingest(context.Background(), historian.IngestOptions{Max: 10}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	return svc, router
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestListEvents(t *testing.T) {
	_, h := seededEnv(t)
	rec := doRequest(t, h, http.MethodGet, "/events?limit=10", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	resp := decode[EventListResponse](t, rec)
	if len(resp.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(resp.Events))
	}
	if resp.Events[0].Created != "2026-02-10" {
		t.Errorf("first = %q, want newest first", resp.Events[0].Created)
	}
}

func TestGetEvent(t *testing.T) {
	_, h := seededEnv(t)

	rec := doRequest(t, h, http.MethodGet, "/events/"+url.PathEscape("historian:2026-02-01:A"), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"title":"A"`) {
		t.Errorf("body = %s", rec.Body)
	}

	rec = doRequest(t, h, http.MethodGet, "/events/historian:2026-09-09:Nope", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing event status = %d, want 404", rec.Code)
	}
}

func TestGraph_Unconfigured(t *testing.T) {
	svc := historian.NewService(graphstore.Unconfigured{}, nil, historian.WithLogger(quietLogger))
	h := NewRouter(svc, Options{})

	for _, path := range []string{"/graph", "/graph/layout", "/stats", "/events"} {
		rec := doRequest(t, h, http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", path, rec.Code)
		}
	}
}

func TestGraph(t *testing.T) {
	_, h := seededEnv(t)
	rec := doRequest(t, h, http.MethodGet, "/graph", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	g := decode[GraphResponse](t, rec)
	if len(g.Events()) != 2 {
		t.Errorf("events = %d", len(g.Events()))
	}
	var next int
	for _, e := range g.Edges {
		if e.Type == "NEXT" {
			next++
		}
	}
	if next != 1 {
		t.Errorf("NEXT edges = %d, want 1", next)
	}
}

func TestIngestEvent_Auth(t *testing.T) {
	_, h := testEnv(t, nil)
	body := IngestEventRequest{Event: EventInput{Created: "2026-03-01", Title: "Launch", Tags: []string{"ops"}}}

	rec := doRequest(t, h, http.MethodPost, "/events", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no credential status = %d, want 401", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/events", body, map[string]string{AdminHeader: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong credential status = %d, want 401", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/events", body, map[string]string{AdminHeader: testSecret})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	res := decode[IngestEventResponse](t, rec)
	if res.ID != "historian:2026-03-01:Launch" {
		t.Errorf("id = %q", res.ID)
	}

	rec = doRequest(t, h, http.MethodPost, "/events", body, map[string]string{"Authorization": "Bearer " + testSecret})
	if rec.Code != http.StatusCreated {
		t.Errorf("bearer status = %d, want 201", rec.Code)
	}
}

func TestIngestEvent_BadInput(t *testing.T) {
	_, h := testEnv(t, nil)
	auth := map[string]string{AdminHeader: testSecret}

	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("{not json"))
	req.Header.Set(AdminHeader, testSecret)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/events", IngestEventRequest{Event: EventInput{Created: "yesterday", Title: "X"}}, auth)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", rec.Code)
	}
}

func TestIngestEvent_PredecessorWarning(t *testing.T) {
	_, h := seededEnv(t)
	body := IngestEventRequest{
		Event:           EventInput{Created: "2026-03-01", Title: "C"},
		PreviousEventID: "historian:1999-01-01:Missing",
	}
	rec := doRequest(t, h, http.MethodPost, "/events", body, map[string]string{AdminHeader: testSecret})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	res := decode[IngestEventResponse](t, rec)
	if len(res.Warnings) == 0 {
		t.Error("expected a warning for the missing predecessor")
	}
}

func TestLayout(t *testing.T) {
	_, h := seededEnv(t)
	rec := doRequest(t, h, http.MethodGet, "/graph/layout?width=400&height=300&selected=tag:tls&seed=7", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	res := decode[LayoutResponse](t, rec)
	if len(res.Positions) != len(res.Nodes) {
		t.Errorf("positions = %d, nodes = %d", len(res.Positions), len(res.Nodes))
	}
	if res.Width != 400 || res.Height != 300 {
		t.Errorf("size = %vx%v", res.Width, res.Height)
	}
	if res.Selected != "tag:tls" || len(res.Highlighted) != 3 {
		t.Errorf("selected = %q, highlighted = %v", res.Selected, res.Highlighted)
	}
}

func TestLayout_NonFiniteSize(t *testing.T) {
	_, h := seededEnv(t)
	rec := doRequest(t, h, http.MethodGet, "/graph/layout?width=NaN&height=Inf&seed=7", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	res := decode[LayoutResponse](t, rec)
	if res.Width != historian.DefaultLayoutWidth || res.Height != historian.DefaultLayoutHeight {
		t.Errorf("size = %vx%v", res.Width, res.Height)
	}
	if len(res.Positions) != len(res.Nodes) {
		t.Errorf("positions = %d, nodes = %d", len(res.Positions), len(res.Nodes))
	}
}

func TestStats(t *testing.T) {
	_, h := seededEnv(t)
	rec := doRequest(t, h, http.MethodGet, "/stats", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	st := decode[StatsResponse](t, rec)
	if st.TotalNodes() == 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestDocuments(t *testing.T) {
	_, h := seededEnv(t)

	rec := doRequest(t, h, http.MethodGet, "/documents", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	list := decode[DocumentListResponse](t, rec)
	accepted := 0
	for _, d := range list.Documents {
		if d.Accepted {
			accepted++
		}
	}
	if accepted != 2 {
		t.Errorf("accepted = %d, want 2 (%+v)", accepted, list.Documents)
	}

	rec = doRequest(t, h, http.MethodGet, "/documents/2026-02-01.A.md", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "alpha") {
		t.Errorf("serve status = %d, body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("content type = %q", ct)
	}

	rec = doRequest(t, h, http.MethodGet, "/documents/2026-01-01.Gone.md", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/documents/"+url.PathEscape("../secret.md"), nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("traversal status = %d, want 400", rec.Code)
	}
}

func TestLayoutStream_Settles(t *testing.T) {
	_, h := seededEnv(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/graph/layout/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	s := string(body)
	for _, want := range []string{"event: graph", "event: positions", "event: settled"} {
		if !strings.Contains(s, want) {
			t.Errorf("stream missing %q", want)
		}
	}
}

// eagerScheduler runs each frame on its own goroutine as soon as it is
// requested, so frames outpace the stream writer.
type eagerScheduler struct{}

func (eagerScheduler) RequestFrame(fn func(time.Time)) layout.CancelFunc {
	go fn(time.Now())
	return func() {}
}

type streamFrame struct {
	kind string
	data []byte
}

func readStream(t *testing.T, body string) []streamFrame {
	t.Helper()
	var frames []streamFrame
	for _, block := range strings.Split(body, "\n\n") {
		var f streamFrame
		for _, line := range strings.Split(block, "\n") {
			if v, ok := strings.CutPrefix(line, "event: "); ok {
				f.kind = v
			}
			if v, ok := strings.CutPrefix(line, "data: "); ok {
				f.data = []byte(v)
			}
		}
		if f.kind != "" {
			frames = append(frames, f)
		}
	}
	return frames
}

func TestLayoutStream_SettledMatchesLastPositions(t *testing.T) {
	svc, _ := seededEnv(t)
	h := NewRouter(svc, Options{Schedulers: func() (layout.FrameScheduler, func()) {
		return eagerScheduler{}, func() {}
	}})
	srv := httptest.NewServer(h)
	defer srv.Close()

	for range 5 {
		resp, err := http.Get(srv.URL + "/graph/layout/stream?width=NaN")
		if err != nil {
			t.Fatal(err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatal(err)
		}

		frames := readStream(t, string(body))
		if len(frames) < 3 || frames[len(frames)-1].kind != "settled" {
			t.Fatalf("stream = %s", body)
		}
		var last layout.Snapshot
		for _, f := range frames {
			if f.kind == "positions" {
				if err := json.Unmarshal(f.data, &last); err != nil {
					t.Fatalf("positions: %v", err)
				}
			}
		}
		var settled struct {
			Frame uint64 `json:"frame"`
		}
		if err := json.Unmarshal(frames[len(frames)-1].data, &settled); err != nil {
			t.Fatal(err)
		}
		if settled.Frame != last.Frame {
			t.Fatalf("settled frame = %d, last positions frame = %d", settled.Frame, last.Frame)
		}
	}
}

func TestLayoutStream_Unconfigured(t *testing.T) {
	svc := historian.NewService(graphstore.Unconfigured{}, nil, historian.WithLogger(quietLogger))
	h := NewRouter(svc, Options{Schedulers: TickerSchedulers(60)})
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/graph/layout/stream")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestBodyLimit(t *testing.T) {
	_, h := testEnv(t, nil)
	big := IngestEventRequest{Event: EventInput{Created: "2026-03-01", Title: "Big", Content: strings.Repeat("x", maxBodyBytes+1)}}
	rec := doRequest(t, h, http.MethodPost, "/events", big, map[string]string{AdminHeader: testSecret})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
