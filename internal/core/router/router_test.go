package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/wfs-clickmap/internal/mapengine"
	"github.com/mohammed-shakir/wfs-clickmap/internal/mapview"
	"github.com/mohammed-shakir/wfs-clickmap/internal/session"
)

const parks = `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[100,200]},"properties":{"name":"Park"}}]}`

type recordingFetcher struct {
	mu      sync.Mutex
	body    string
	queries []string
}

func (f *recordingFetcher) FetchFeatures(_ context.Context, _ string, query string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return json.RawMessage(f.body), nil
}

type testState struct {
	Attached bool `json:"attached"`
	View     struct {
		Resolution float64 `json:"resolution"`
		Zoom       float64 `json:"zoom"`
	} `json:"view"`
	TileLayer *struct {
		URL    string            `json:"url"`
		Params map[string]string `json:"params"`
	} `json:"tileLayer"`
	Vectors []struct {
		Name     string `json:"name"`
		Features struct {
			Features []json.RawMessage `json:"features"`
		} `json:"features"`
	} `json:"vectors"`
	Overlay struct {
		Visible  bool       `json:"visible"`
		Position [2]float64 `json:"position"`
		HTML     string     `json:"html"`
	} `json:"overlay"`
}

func newAPI(t *testing.T, body string) (http.Handler, *session.Registry, *recordingFetcher) {
	t.Helper()
	f := &recordingFetcher{body: body}
	cfg := mapview.Config{
		WFSURL:    "http://gs/wfs",
		TypeName:  "demo:parks",
		WMSURL:    "http://gs/wms",
		WMSLayers: "demo:parks",
	}
	reg := session.New(8, time.Minute, session.NewFactory(cfg, mapengine.View{Zoom: 12}, f, nil))
	t.Cleanup(reg.Close)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		Mount(r, slog.New(slog.DiscardHandler), reg)
	})
	return r, reg, f
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func createSession(t *testing.T, h http.Handler) (string, testState) {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/api/sessions", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		ID    string    `json:"id"`
		State testState `json:"state"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("empty session id")
	}
	return resp.ID, resp.State
}

func TestCreateSession_RendersLayers(t *testing.T) {
	h, reg, _ := newAPI(t, parks)
	_, st := createSession(t, h)

	if reg.Len() != 1 {
		t.Fatalf("registry len=%d", reg.Len())
	}
	if !st.Attached || st.TileLayer == nil || st.TileLayer.URL != "http://gs/wms" {
		t.Fatalf("state got %+v", st)
	}
	if st.TileLayer.Params["LAYERS"] != "demo:parks" || st.TileLayer.Params["TILED"] != "true" {
		t.Fatalf("tile params got %v", st.TileLayer.Params)
	}
	if len(st.Vectors) != 1 || st.Vectors[0].Name != mapview.HighlightLayer {
		t.Fatalf("vectors got %+v", st.Vectors)
	}
	if st.View.Resolution <= 0 {
		t.Fatalf("view resolution got %v", st.View.Resolution)
	}
}

func TestClick_RunsQueryAndReturnsState(t *testing.T) {
	h, _, f := newAPI(t, parks)
	id, _ := createSession(t, h)

	rr := do(t, h, http.MethodPost, "/api/sessions/"+id+"/click", `{"coordinate":[100,200],"resolution":2}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("click status=%d body=%s", rr.Code, rr.Body.String())
	}
	var st testState
	if err := json.Unmarshal(rr.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(f.queries) != 1 || !strings.Contains(f.queries[0], "bbox=90%2C190%2C110%2C210%2CEPSG%3A3857") {
		t.Fatalf("queries got %v", f.queries)
	}
	if !st.Overlay.Visible || st.Overlay.Position != [2]float64{100, 200} {
		t.Fatalf("overlay got %+v", st.Overlay)
	}
	if !strings.Contains(st.Overlay.HTML, "Park") {
		t.Fatalf("overlay html got %q", st.Overlay.HTML)
	}
	if len(st.Vectors) != 1 || len(st.Vectors[0].Features.Features) != 1 {
		t.Fatalf("highlight got %+v", st.Vectors)
	}
	if st.View.Resolution != 2 {
		t.Fatalf("view resolution got %v", st.View.Resolution)
	}

	rr = do(t, h, http.MethodGet, "/api/sessions/"+id, "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Park") {
		t.Fatalf("get status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestClick_EmptyResult(t *testing.T) {
	h, _, _ := newAPI(t, `{"type":"FeatureCollection","features":[]}`)
	id, _ := createSession(t, h)

	rr := do(t, h, http.MethodPost, "/api/sessions/"+id+"/click", `{"coordinate":[1,2]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var st testState
	if err := json.Unmarshal(rr.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Overlay.HTML != mapview.NothingFound {
		t.Fatalf("overlay got %q", st.Overlay.HTML)
	}
}

func TestClick_BadBody(t *testing.T) {
	h, _, f := newAPI(t, parks)
	id, _ := createSession(t, h)

	cases := []struct {
		name string
		body string
	}{
		{"not json", `nope`},
		{"unknown field", `{"coordinate":[1,2],"zoom":3}`},
		{"short coordinate", `{"coordinate":"x"}`},
		{"negative resolution", `{"coordinate":[1,2],"resolution":-1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/api/sessions/"+id+"/click", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d want 400", rr.Code)
			}
		})
	}
	if len(f.queries) != 0 {
		t.Fatalf("bad bodies must not reach the fetcher, got %v", f.queries)
	}
}

func TestUnknownSession(t *testing.T) {
	h, _, _ := newAPI(t, parks)
	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/sessions/nope", ""},
		{http.MethodPost, "/api/sessions/nope/click", `{"coordinate":[1,2]}`},
		{http.MethodPost, "/api/sessions/nope/view", `{"center":[0,0],"zoom":3}`},
		{http.MethodDelete, "/api/sessions/nope", ""},
	} {
		if rr := do(t, h, tc.method, tc.path, tc.body); rr.Code != http.StatusNotFound {
			t.Fatalf("%s %s status=%d want 404", tc.method, tc.path, rr.Code)
		}
	}
}

func TestDeleteSession(t *testing.T) {
	h, reg, _ := newAPI(t, parks)
	id, _ := createSession(t, h)

	if rr := do(t, h, http.MethodDelete, "/api/sessions/"+id, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if reg.Len() != 0 {
		t.Fatalf("registry len=%d", reg.Len())
	}
	if rr := do(t, h, http.MethodGet, "/api/sessions/"+id, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", rr.Code)
	}
}

func TestSetView_DerivesResolution(t *testing.T) {
	h, reg, _ := newAPI(t, parks)
	id, _ := createSession(t, h)

	if rr := do(t, h, http.MethodPost, "/api/sessions/"+id+"/view", `{"center":[10,20],"zoom":3}`); rr.Code != http.StatusNoContent {
		t.Fatalf("view status=%d body=%s", rr.Code, rr.Body.String())
	}
	s, _ := reg.Get(id)
	res, ok := s.Engine.CurrentResolution()
	if !ok || res != mapengine.ResolutionForZoom(3) {
		t.Fatalf("resolution got %v %v", res, ok)
	}
}

type detachedSessions struct{ s *session.Session }

func (d detachedSessions) Create() *session.Session { return d.s }
func (d detachedSessions) Get(string) (*session.Session, bool) {
	return d.s, true
}
func (d detachedSessions) Delete(string) bool { return true }

func TestClick_DetachedEngineIsGone(t *testing.T) {
	eng := mapengine.New(mapengine.View{Zoom: 1})
	eng.Detach()
	r := chi.NewRouter()
	Mount(r, slog.New(slog.DiscardHandler), detachedSessions{&session.Session{ID: "x", Engine: eng}})

	rr := do(t, r, http.MethodPost, "/sessions/x/click", `{"coordinate":[1,2]}`)
	if rr.Code != http.StatusGone {
		t.Fatalf("status=%d want 410", rr.Code)
	}
}

func TestParseClick(t *testing.T) {
	ev, err := ParseClick(strings.NewReader(`{"coordinate":[1.5,-2],"resolution":0.5}`))
	if err != nil {
		t.Fatalf("ParseClick: %v", err)
	}
	if ev.Coordinate != [2]float64{1.5, -2} || ev.Resolution != 0.5 {
		t.Fatalf("event got %+v", ev)
	}
	if _, err := ParseClick(strings.NewReader(``)); err == nil {
		t.Fatal("empty body should fail")
	}
}
