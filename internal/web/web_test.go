package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cmscal/internal/calendar"
	"cmscal/internal/config"
	"cmscal/internal/model"
	"cmscal/internal/printdoc"
)

var fixedNow = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

type stubRefresher struct {
	state *calendar.Shared
	calls int
}

func (r *stubRefresher) Refresh(context.Context) {
	r.calls++
	r.state.Update(func(v *calendar.View) {
		v.SetEvents([]model.RawEvent{
			{ID: 1, ACF: model.RawEventACF{Title: "Gala night", DateFrom: "2024-01-10", Time: "19:00", Category: "Gala"}},
			{ID: 2, ACF: model.RawEventACF{Title: "Dinner", DateFrom: "2024-02-01", Category: "Dinner"}},
		})
		v.SetCategories([]model.RawCategory{
			{ID: 1, Name: "Gala", Colour: "#f00"},
			{ID: 2, Name: "Dinner", Colour: "#0f0"},
		})
	})
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *stubRefresher) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	state := calendar.NewShared(calendar.NewView(time.UTC, calendar.SortLegacy))
	ref := &stubRefresher{state: state}
	ref.Refresh(context.Background())
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewServer(cfg, state, ref, opts...), ref
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) stateResponse {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var st stateResponse
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return st
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestStateReady(t *testing.T) {
	s, _ := newTestServer(t)
	st := decodeState(t, do(t, s.Handler(), http.MethodGet, "/api/state", ""))

	if st.Status != string(calendar.StatusReady) {
		t.Errorf("status = %q", st.Status)
	}
	if len(st.Visible) != 2 || st.Visible[0].ID != 1 || st.Visible[0].Color != "#f00" {
		t.Errorf("visible = %+v", st.Visible)
	}
	if st.PanelOpen || st.SelectedID != nil {
		t.Errorf("fresh view should have no panel and no selection: %+v", st)
	}
	if len(st.Palette) != 2 {
		t.Errorf("palette = %+v", st.Palette)
	}
}

func TestCategoryThenEventSelection(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	st := decodeState(t, do(t, h, http.MethodPost, "/api/category", `{"category":"Gala"}`))
	if st.Filter != "Gala" || !st.PanelOpen || len(st.Visible) != 1 {
		t.Fatalf("after category: %+v", st)
	}

	st = decodeState(t, do(t, h, http.MethodPost, "/api/select", `{"id":1}`))
	if st.SelectedID == nil || *st.SelectedID != 1 || !st.Visible[0].Active {
		t.Fatalf("after select: %+v", st)
	}
	if st.Panel.Detail == nil || st.Panel.Detail.Title != "Gala night" {
		t.Errorf("panel detail = %+v", st.Panel.Detail)
	}

	st = decodeState(t, do(t, h, http.MethodPost, "/api/back", ""))
	if st.SelectedID != nil || st.Visible[0].Active || !st.PanelOpen {
		t.Errorf("after back: %+v", st)
	}
	if len(st.Panel.Timeline) != 1 {
		t.Errorf("timeline = %+v", st.Panel.Timeline)
	}

	st = decodeState(t, do(t, h, http.MethodPost, "/api/outside-click", ""))
	if st.PanelOpen || st.Filter != "Gala" {
		t.Errorf("after outside click: %+v", st)
	}

	st = decodeState(t, do(t, h, http.MethodPost, "/api/view-all", ""))
	if !st.PanelOpen {
		t.Error("view-all should open the panel")
	}

	st = decodeState(t, do(t, h, http.MethodPost, "/api/category", `{"category":"all"}`))
	if st.Filter != "" || len(st.Visible) != 2 {
		t.Errorf("after all: %+v", st)
	}
}

func TestSelectAcceptsStringID(t *testing.T) {
	s, _ := newTestServer(t)
	st := decodeState(t, do(t, s.Handler(), http.MethodPost, "/api/select", `{"id":"2"}`))
	if st.SelectedID == nil || *st.SelectedID != 2 {
		t.Errorf("selected = %v", st.SelectedID)
	}
}

func TestBadBody(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodPost, "/api/category", `{`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	s, ref := newTestServer(t)
	st := decodeState(t, do(t, s.Handler(), http.MethodPost, "/api/refresh", ""))
	if ref.calls != 2 || st.Status != string(calendar.StatusReady) {
		t.Errorf("calls = %d, status = %q", ref.calls, st.Status)
	}
}

func TestPrintDocument(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/print", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"All Calendar Events", "Gala night", "window.print()"} {
		if !strings.Contains(body, want) {
			t.Errorf("print document missing %q", want)
		}
	}
}

func TestPrintWithoutSurfaceWarns(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodPost, "/api/print", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), printdoc.UnavailableWarning) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

type recordingSurface struct {
	doc []byte
}

func (s *recordingSurface) Write(_ context.Context, doc []byte) error {
	s.doc = doc
	return nil
}

func (s *recordingSurface) Print(context.Context) (string, error) { return "out.pdf", nil }
func (s *recordingSurface) Close() error                         { return nil }

type surfaceProvider struct {
	surface *recordingSurface
	err     error
}

func (p *surfaceProvider) Open(context.Context) (printdoc.Surface, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.surface, nil
}

func TestPrintOnSurface(t *testing.T) {
	surface := &recordingSurface{}
	s, _ := newTestServer(t, WithPrinter(&surfaceProvider{surface: surface}))

	rec := do(t, s.Handler(), http.MethodPost, "/api/print", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp printResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Output != "out.pdf" {
		t.Errorf("response = %+v, %v", resp, err)
	}
	if !strings.Contains(string(surface.doc), "Gala night") {
		t.Error("surface did not receive the document")
	}
}

func TestPrintSurfaceRefused(t *testing.T) {
	s, _ := newTestServer(t, WithPrinter(&surfaceProvider{err: errors.New("blocked")}))
	rec := do(t, s.Handler(), http.MethodPost, "/api/print", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestICSExport(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/calendar.ics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "BEGIN:VCALENDAR") || !strings.Contains(body, "SUMMARY:Gala night") {
		t.Errorf("ics body = %s", body)
	}
}

func TestBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		password string
	}{
		{"plain", "secret"},
		{"bcrypt", string(hash)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			s.cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: tt.password}
			h := s.Handler()

			if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
				t.Errorf("health should bypass auth, got %d", rec.Code)
			}
			if rec := do(t, h, http.MethodGet, "/api/state", ""); rec.Code != http.StatusUnauthorized {
				t.Errorf("unauthenticated = %d, want 401", rec.Code)
			}

			req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
			req.SetBasicAuth("admin", "secret")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Errorf("authenticated = %d, want 200", rec.Code)
			}

			req = httptest.NewRequest(http.MethodGet, "/api/state", nil)
			req.SetBasicAuth("admin", "wrong")
			rec = httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("wrong password = %d, want 401", rec.Code)
			}
		})
	}
}
