package visualization

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nvandessel/sisweep/internal/store"
)

// Server serves stored sweeps: an HTML index, SVG plots and JSON records.
type Server struct {
	store      store.ResultStore
	logger     *slog.Logger
	index      *template.Template
	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
	addr       string
}

// NewServer creates a result browser over rs.
func NewServer(rs store.ResultStore, logger *slog.Logger) (*Server, error) {
	tmplBytes, err := templates.ReadFile("templates/index.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("read index template: %w", err)
	}
	index, err := template.New("index").Funcs(template.FuncMap{"short": shortID}).Parse(string(tmplBytes))
	if err != nil {
		return nil, fmt.Errorf("parse index template: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{store: rs, logger: logger, index: index}, nil
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /sweeps/{id}", s.handleIndex)
	mux.HandleFunc("GET /sweeps/{id}/plot.svg", s.handlePlot)
	mux.HandleFunc("GET /api/sweeps", s.handleList)
	mux.HandleFunc("GET /api/sweeps/{id}", s.handleGet)
	return mux
}

// ListenAndServe starts the HTTP server on addr ("localhost:0" lets the OS
// pick a port) and blocks until ctx is cancelled. Returns nil on clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = "localhost:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.mu.Unlock()

	s.logger.Info("result browser listening", "addr", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type indexData struct {
	Sweeps   []store.Summary
	Selected *store.Summary
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sums, err := s.store.ListSweeps(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data := indexData{Sweeps: sums}

	if id := r.PathValue("id"); id != "" {
		rec, err := s.store.GetSweep(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		for i := range sums {
			if sums[i].ID == rec.ID {
				data.Selected = &sums[i]
			}
		}
	}

	var buf bytes.Buffer
	if err := s.index.Execute(&buf, data); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetSweep(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	svg, err := RenderSVG(rec.Table, rec.Topology.Kind, rec.Topology.Params)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(svg)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	sums, err := s.store.ListSweeps(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, sums)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetSweep(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, rec)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrAmbiguousID):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
