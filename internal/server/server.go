// Package server exposes the backlog engine over HTTP.
//
// Every response is a JSON envelope {ok, data, error, meta}; the engine's
// result structs serialize directly into data. The server binds to
// localhost only, it is a local workspace viewer, not a shared deployment.
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/calvinalkan/backlog-webview/internal/backlog"
)

//go:embed index.html
var indexHTML []byte

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Server serves the backlog API on a localhost listener.
type Server struct {
	svc      *backlog.Service
	logger   *log.Logger
	addr     string
	listener net.Listener
	server   *http.Server
}

// New creates a server for svc listening on 127.0.0.1:port.
func New(svc *backlog.Service, port int, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "backlogd: ", log.LstdFlags)
	}

	return &Server{
		svc:    svc,
		logger: logger,
		addr:   fmt.Sprintf("127.0.0.1:%d", port),
	}
}

// Addr returns the bound address. Valid after Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}

	return s.addr
}

// Start binds the listener and begins serving in a background goroutine.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		serveErr := s.server.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Printf("serve: %v", serveErr)
		}
	}()

	s.logger.Printf("listening on http://%s", s.Addr())

	return nil
}

// Shutdown stops the server, waiting up to shutdownTimeout for in-flight
// requests.
func (s *Server) Shutdown() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

// Handler returns the route table, exported for httptest use.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/workspace/info", s.handleWorkspaceInfo)
	mux.HandleFunc("GET /api/workspace/switch", s.handleWorkspaceSwitch)
	mux.HandleFunc("GET /api/products", s.handleProducts)
	mux.HandleFunc("GET /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/items", s.handleItems)
	mux.HandleFunc("GET /api/items/{id}", s.handleItem)
	mux.HandleFunc("GET /api/tree", s.handleTree)
	mux.HandleFunc("GET /api/kanban", s.handleKanban)

	return mux
}

// envelope is the wire shape of every API response.
type envelope struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	Meta  meta   `json:"meta"`
}

type meta struct {
	ProductsRoot string `json:"products_root"`
}

func (s *Server) writeData(w http.ResponseWriter, data any) {
	s.writeEnvelope(w, http.StatusOK, envelope{OK: true, Data: data})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, backlog.ErrItemNotFound),
		errors.Is(err, backlog.ErrProductNotFound):
		status = http.StatusNotFound
	case errors.Is(err, backlog.ErrInvalidProductName),
		errors.Is(err, backlog.ErrMissingWorkspace),
		errors.Is(err, backlog.ErrWorkspaceNotFound):
		status = http.StatusBadRequest
	}

	s.writeEnvelope(w, status, envelope{OK: false, Error: err.Error()})
}

func (s *Server) writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	env.Meta = meta{ProductsRoot: s.svc.WorkspaceInfo().ProductsRoot}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(env)
	if err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeData(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleWorkspaceInfo(w http.ResponseWriter, _ *http.Request) {
	s.writeData(w, s.svc.WorkspaceInfo())
}

func (s *Server) handleWorkspaceSwitch(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.SwitchWorkspace(r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.logger.Printf("workspace switched to %s", info.ProductsRoot)
	s.writeData(w, info)
}

func (s *Server) handleProducts(w http.ResponseWriter, _ *http.Request) {
	s.writeData(w, s.svc.ListProducts())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Refresh(r.URL.Query().Get("product"))
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeData(w, result)
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	result, err := s.svc.ListItems(query.Get("product"), refreshParam(r))
	if err != nil {
		s.writeError(w, err)

		return
	}

	if q := query.Get("q"); q != "" {
		result.Items = filterItems(result.Items, q)
	}

	s.writeData(w, result)
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.GetItem(r.URL.Query().Get("product"), r.PathValue("id"), refreshParam(r))
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeData(w, result)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.BuildTree(r.URL.Query().Get("product"), refreshParam(r))
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeData(w, result)
}

func (s *Server) handleKanban(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.BuildKanban(r.URL.Query().Get("product"), refreshParam(r))
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeData(w, result)
}

// refreshParam reports whether the request forces a cache rebuild.
func refreshParam(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("refresh")) {
	case "1", "true", "yes":
		return true
	}

	return false
}

// filterItems keeps items whose id or title contains q, case-insensitively.
func filterItems(items []backlog.ItemView, q string) []backlog.ItemView {
	needle := strings.ToLower(q)
	filtered := []backlog.ItemView{}

	for _, item := range items {
		if strings.Contains(strings.ToLower(item.ID), needle) ||
			strings.Contains(strings.ToLower(item.Title), needle) {
			filtered = append(filtered, item)
		}
	}

	return filtered
}
