package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cmscal/internal/calendar"
	"cmscal/internal/config"
	"cmscal/internal/ics"
	appLog "cmscal/internal/log"
	"cmscal/internal/model"
	"cmscal/internal/printdoc"
)

// Refresher reloads both backend lists into the view.
type Refresher interface {
	Refresh(ctx context.Context)
}

// Server exposes the view's callbacks and derived documents over HTTP.
// The rendering layer treats the POST endpoints as its only way to change
// state.
type Server struct {
	cfg       *config.Config
	state     *calendar.Shared
	refresher Refresher
	printer   printdoc.SurfaceProvider
	now       func() time.Time
	mux       *http.ServeMux
}

// Option customises a Server.
type Option func(*Server)

// WithPrinter enables POST /api/print on the given surface provider.
func WithPrinter(p printdoc.SurfaceProvider) Option {
	return func(s *Server) { s.printer = p }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, state *calendar.Shared, refresher Refresher, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		state:     state,
		refresher: refresher,
		now:       time.Now,
		mux:       http.NewServeMux(),
	}
	for _, o := range opts {
		o(s)
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password means disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !passwordMatches(password, p) {
			w.Header().Set("WWW-Authenticate", `Basic realm="cmscal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// passwordMatches accepts a bcrypt hash or a plain configured password.
func passwordMatches(configured, given string) bool {
	if strings.HasPrefix(configured, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(given)) == nil
	}
	return secureCompare(given, configured)
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/categories", s.handleCategories)

	s.mux.HandleFunc("POST /api/category", s.handleCategorySelect)
	s.mux.HandleFunc("POST /api/select", s.handleEventSelect)
	s.mux.HandleFunc("POST /api/back", s.mutate(func(v *calendar.View) { v.Back() }))
	s.mux.HandleFunc("POST /api/view-all", s.mutate(func(v *calendar.View) { v.ViewAll() }))
	s.mux.HandleFunc("POST /api/outside-click", s.mutate(func(v *calendar.View) { v.CloseOnOutsideInteraction() }))
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/print", s.handlePrint)

	s.mux.HandleFunc("GET /print", s.handlePrintDocument)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// stateResponse is the JSON shape of the view state.
type stateResponse struct {
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	Filter     string            `json:"filter,omitempty"`
	SelectedID *int              `json:"selected_id,omitempty"`
	PanelOpen  bool              `json:"panel_open"`
	Visible    []model.Event     `json:"visible"`
	Panel      calendar.Panel    `json:"panel"`
	Palette    []calendar.Swatch `json:"palette"`
}

func (s *Server) snapshot(v *calendar.View) stateResponse {
	resp := stateResponse{
		Status:    string(v.Status()),
		Filter:    v.Filter(),
		PanelOpen: v.PanelOpen(),
		Visible:   v.Visible(),
		Panel:     v.Panel(s.now().In(v.Location())),
		Palette:   v.Palette(),
	}
	if err := v.Err(); err != nil {
		resp.Error = err.Error()
	}
	if sel, ok := v.Selected(); ok {
		id := sel.ID
		resp.SelectedID = &id
	}
	if resp.Visible == nil {
		resp.Visible = []model.Event{}
	}
	return resp
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	var resp stateResponse
	s.state.Read(func(v *calendar.View) { resp = s.snapshot(v) })
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	var palette []calendar.Swatch
	s.state.Read(func(v *calendar.View) { palette = v.Palette() })
	if palette == nil {
		palette = []calendar.Swatch{}
	}
	writeJSON(w, http.StatusOK, palette)
}

// mutate runs fn on the view and answers with the resulting state.
func (s *Server) mutate(fn func(v *calendar.View)) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		var resp stateResponse
		s.state.Update(func(v *calendar.View) {
			fn(v)
			resp = s.snapshot(v)
		})
		writeJSON(w, http.StatusOK, resp)
	}
}

type categoryRequest struct {
	Category string `json:"category"`
}

func (s *Server) handleCategorySelect(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.mutate(func(v *calendar.View) { v.SelectCategory(req.Category) })(w, r)
}

// selectRequest accepts the id as a JSON string or number.
type selectRequest struct {
	ID json.RawMessage `json:"id"`
}

func (r selectRequest) id() string {
	var str string
	if err := json.Unmarshal(r.ID, &str); err == nil {
		return str
	}
	var n json.Number
	if err := json.Unmarshal(r.ID, &n); err == nil {
		return n.String()
	}
	return ""
}

func (s *Server) handleEventSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := req.id()
	s.mutate(func(v *calendar.View) { v.SelectEvent(id) })(w, r)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh not configured")
		return
	}
	s.refresher.Refresh(r.Context())
	s.mutate(func(*calendar.View) {})(w, r)
}

func (s *Server) printOptions() printdoc.Options {
	return printdoc.Options{
		Title:      s.cfg.Print.Title,
		Heading:    s.cfg.Print.Heading,
		CloseDelay: s.cfg.CloseDelay(),
	}
}

// buildPrintDocument renders the document for the current visible list.
func (s *Server) buildPrintDocument() ([]byte, error) {
	var (
		visible []model.Event
		today   time.Time
	)
	s.state.Read(func(v *calendar.View) {
		visible = v.Visible()
		today = s.now().In(v.Location())
	})
	return printdoc.Build(visible, today, s.printOptions())
}

// handlePrintDocument serves the print document to a browser, which runs
// the embedded print script itself.
func (s *Server) handlePrintDocument(w http.ResponseWriter, _ *http.Request) {
	doc, err := s.buildPrintDocument()
	if err != nil {
		appLog.Error("print document build failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build print document")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

type printResponse struct {
	Output string `json:"output,omitempty"`
}

// handlePrint prints on the headless surface. A missing surface yields 503
// with the user-facing warning and leaves all state untouched.
func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	doc, err := s.buildPrintDocument()
	if err != nil {
		appLog.Error("print document build failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build print document")
		return
	}

	ref, err := printdoc.Print(r.Context(), s.printer, doc, s.cfg.CloseDelay())
	if err != nil {
		var ue *printdoc.UnavailableError
		if errors.As(err, &ue) {
			writeError(w, http.StatusServiceUnavailable, ue.Warning)
			return
		}
		appLog.Error("print failed", err)
		writeError(w, http.StatusInternalServerError, "failed to print")
		return
	}
	writeJSON(w, http.StatusOK, printResponse{Output: ref})
}

func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	var visible []model.Event
	s.state.Read(func(v *calendar.View) { visible = v.Visible() })

	body := ics.Export(visible, s.cfg.Print.Heading, s.now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// decodeJSON reads a small JSON body; an empty body decodes to the zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
