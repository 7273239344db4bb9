package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/oda/rowstore"
	"github.com/oda/rowstore/internal/config"
	"github.com/oda/rowstore/internal/statement"
	"github.com/oda/rowstore/pkg/metrics"
)

// Server holds the open table and provides HTTP handlers.
// Every handler takes the same mutex, so the table sees one caller at a time.
type Server struct {
	table   *rowstore.Table
	path    string
	cfg     config.Config
	metrics *metrics.Metrics
	logger  *zap.Logger
	mu      sync.Mutex
}

// Response is a generic JSON response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// StatusResponse contains database status information.
type StatusResponse struct {
	Connected bool   `json:"connected"`
	Path      string `json:"path,omitempty"`
	Count     uint32 `json:"count"`
}

// RowJSON is the wire form of a row.
type RowJSON struct {
	ID       uint32 `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// InsertRequest is the request body for insert. ID is signed so that a
// negative id reaches validation instead of failing to decode.
type InsertRequest struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// OpenRequest is the request body for opening a database.
type OpenRequest struct {
	Path string `json:"path"`
}

// SelectResult contains the rows of a select.
type SelectResult struct {
	Rows  []RowJSON `json:"rows"`
	Count int       `json:"count"`
}

// NewServer creates a server that opens tables with the settings in cfg.
func NewServer(cfg config.Config, m *metrics.Metrics, logger *zap.Logger) *Server {
	return &Server{
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/open", s.handleOpen)
	mux.HandleFunc("/api/close", s.handleClose)
	mux.HandleFunc("/api/insert", s.handleInsert)
	mux.HandleFunc("/api/select", s.handleSelect)
	mux.HandleFunc("/api/find", s.handleFind)
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	return mux
}

// Open opens the table at path, closing any table already open.
func (s *Server) Open(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked(path)
}

func (s *Server) openLocked(path string) error {
	// The file lock is per open, so reopening the current path must close it first.
	if s.table != nil && path == s.path {
		if err := s.closeLocked(); err != nil {
			s.logger.Warn("failed to close previous table", zap.String("path", path), zap.Error(err))
		}
	}

	table, err := rowstore.Open(path,
		rowstore.WithLogger(s.logger),
		rowstore.WithMetrics(s.metrics),
		rowstore.WithMaxPages(s.cfg.MaxPages),
		rowstore.WithSyncOnClose(s.cfg.SyncOnClose),
		rowstore.WithSortedInsert(s.cfg.SortedInsert),
	)
	if err != nil {
		return err
	}

	if s.table != nil {
		if err := s.closeLocked(); err != nil {
			s.logger.Warn("failed to close previous table", zap.String("path", s.path), zap.Error(err))
		}
	}

	s.table = table
	s.path = path
	return nil
}

func (s *Server) closeLocked() error {
	err := s.table.Close()
	s.table = nil
	s.path = ""
	return err
}

// Close flushes and closes the open table, if any.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.table == nil {
		return nil
	}
	return s.closeLocked()
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func toJSON(r rowstore.Row) RowJSON {
	return RowJSON{
		ID:       r.ID,
		Username: r.UsernameString(),
		Email:    r.EmailString(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := StatusResponse{
		Connected: s.table != nil,
		Path:      s.path,
	}

	if s.table != nil {
		count, err := s.table.Count()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, Response{Error: fmt.Sprintf("count failed: %v", err)})
			return
		}
		status.Count = count
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: status})
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, Response{Error: "method not allowed"})
		return
	}

	var req OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "invalid request body"})
		return
	}

	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, Response{Error: "path is required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.openLocked(req.Path); err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{Error: fmt.Sprintf("failed to open database: %v", err)})
		return
	}

	count, _ := s.table.Count()
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: StatusResponse{
			Connected: true,
			Path:      req.Path,
			Count:     count,
		},
	})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, Response{Error: "method not allowed"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.table == nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "no database open"})
		return
	}

	if err := s.closeLocked(); err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{Error: fmt.Sprintf("failed to close: %v", err)})
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, Response{Error: "method not allowed"})
		return
	}

	var req InsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "invalid request body"})
		return
	}

	// Same validation as the shell.
	stmt, err := statement.NewInsert(req.ID, req.Username, req.Email)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.table == nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "no database open"})
		return
	}

	err = s.table.Insert(stmt.Row)
	switch {
	case err == nil:
	case errors.Is(err, rowstore.ErrTableFull), errors.Is(err, rowstore.ErrDuplicateKey):
		writeJSON(w, http.StatusConflict, Response{Error: err.Error()})
		return
	default:
		writeJSON(w, http.StatusInternalServerError, Response{Error: fmt.Sprintf("insert failed: %v", err)})
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    toJSON(stmt.Row),
	})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, Response{Error: "method not allowed"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.table == nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "no database open"})
		return
	}

	rows, err := s.table.Select()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{Error: fmt.Sprintf("select failed: %v", err)})
		return
	}

	items := make([]RowJSON, 0, len(rows))
	for _, row := range rows {
		items = append(items, toJSON(row))
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    SelectResult{Rows: items, Count: len(items)},
	})
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, Response{Error: "method not allowed"})
		return
	}

	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		writeJSON(w, http.StatusBadRequest, Response{Error: "id is required"})
		return
	}

	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "invalid id format"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.table == nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "no database open"})
		return
	}

	row, found, err := s.table.Find(uint32(id))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{Error: fmt.Sprintf("find failed: %v", err)})
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, Response{Error: "row not found"})
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: toJSON(row)})
}
