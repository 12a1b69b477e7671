package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/classmate/internal/engine"
	"github.com/fentz26/classmate/internal/ingest"
	"github.com/fentz26/classmate/internal/models"
	"github.com/fentz26/classmate/internal/timetable"
	"github.com/fentz26/classmate/internal/writeback"
)

// Version is reported by the health endpoint.
var Version = "dev"

// Pinger checks the backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK       bool            `json:"ok"`
	DB       string          `json:"db"`
	Version  string          `json:"version"`
	Time     string          `json:"time"`
	Sessions int             `json:"sessions"`
	Writer   writeback.Stats `json:"writer"`
}

// Server provides the HTTP API for classmate.
type Server struct {
	service *Service
	db      Pinger
	addr    string
	server  *http.Server
	logger  *slog.Logger
}

// NewServer creates a new HTTP server.
func NewServer(service *Service, db Pinger, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		service: service,
		db:      db,
		addr:    addr,
		logger:  logger.With("component", "api"),
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ingest/preview", s.handlePreview)
	mux.HandleFunc("/users/", s.handleUser)

	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("starting classmate daemon", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := HealthResponse{
		OK:       true,
		DB:       "ok",
		Version:  Version,
		Time:     time.Now().UTC().Format(time.RFC3339),
		Sessions: s.service.SessionCount(),
		Writer:   s.service.WriterStats(),
	}
	status := http.StatusOK
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			health.OK = false
			health.DB = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, health)
}

// --- Ingestion Handlers ---

type ingestRequest struct {
	Text string         `json:"text"`
	Grid timetable.Grid `json:"grid"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req ingestRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Grid != nil {
		writeJSON(w, http.StatusOK, s.service.PreviewGrid(req.Grid))
		return
	}
	writeJSON(w, http.StatusOK, s.service.Preview(req.Text))
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request, userID string) {
	var req ingestRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	var (
		pv  ingest.Preview
		err error
	)
	if req.Grid != nil {
		pv, err = s.service.IngestGrid(r.Context(), userID, req.Grid)
	} else {
		pv, err = s.service.Ingest(r.Context(), userID, req.Text)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ingestResponse{Days: pv.Days(), Slots: len(pv.Slots)})
}

type ingestResponse struct {
	Days  []models.Weekday `json:"days"`
	Slots int              `json:"slots"`
}

// --- User Routes ---

// handleUser dispatches /users/{user}/...
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	parts, err := pathParts(r.URL, "/users/")
	if err != nil || len(parts) < 2 || parts[0] == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	userID, rest := parts[0], parts[1:]

	if rest[0] == "ingest" && len(rest) == 1 && r.Method == http.MethodPost {
		s.ingest(w, r, userID)
		return
	}
	if rest[0] == "audit" && len(rest) == 1 && r.Method == http.MethodGet {
		s.listAudit(w, r, userID)
		return
	}
	if rest[0] == "scans" && len(rest) == 1 && r.Method == http.MethodGet {
		s.listScans(w, r, userID)
		return
	}

	sess, err := s.service.Session(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	switch rest[0] {
	case "week":
		if len(rest) == 1 && r.Method == http.MethodGet {
			s.getWeek(w, r, sess)
			return
		}
	case "tasks":
		if s.routeTasks(w, r, sess, rest[1:]) {
			return
		}
	case "days":
		if s.routeDays(w, r, sess, rest[1:]) {
			return
		}
	case "subjects":
		if s.routeSubjects(w, r, sess, rest[1:]) {
			return
		}
	case "advice":
		if len(rest) == 1 && r.Method == http.MethodGet {
			s.getAdvice(w, r, sess)
			return
		}
	}
	http.Error(w, "not found", http.StatusNotFound)
}

// pathParts splits the escaped path after prefix and unescapes each segment,
// so subject names may contain spaces.
func pathParts(u *url.URL, prefix string) ([]string, error) {
	raw := strings.TrimPrefix(u.EscapedPath(), prefix)
	raw = strings.TrimSuffix(raw, "/")
	parts := strings.Split(raw, "/")
	for i, p := range parts {
		v, err := url.PathUnescape(p)
		if err != nil {
			return nil, err
		}
		parts[i] = v
	}
	return parts, nil
}

// --- Week & Task Handlers ---

func (s *Server) getWeek(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	view, err := sess.View(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type addTaskRequest struct {
	Label string `json:"label"`
}

type moveTaskRequest struct {
	Day string `json:"day"`
}

func (s *Server) routeTasks(w http.ResponseWriter, r *http.Request, sess *engine.Session, rest []string) bool {
	ctx := r.Context()
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			view, err := sess.View(ctx)
			if err != nil {
				s.writeError(w, err)
				return true
			}
			writeJSON(w, http.StatusOK, view.Tasks)
			return true
		case http.MethodPost:
			var req addTaskRequest
			if err := decode(r, &req); err != nil {
				s.writeError(w, err)
				return true
			}
			if strings.TrimSpace(req.Label) == "" {
				s.writeError(w, fmt.Errorf("%w: label is required", ErrBadRequest))
				return true
			}
			task, err := sess.AddTask(ctx, req.Label)
			if err != nil {
				s.writeError(w, err)
				return true
			}
			writeJSON(w, http.StatusCreated, task)
			return true
		}
		return false
	}

	taskID, err := parseID(rest[0])
	if err != nil {
		s.writeError(w, err)
		return true
	}
	action := ""
	if len(rest) > 1 {
		action = rest[1]
	}

	switch {
	case action == "" && r.Method == http.MethodDelete:
		if err := sess.DeleteTask(ctx, taskID); err != nil {
			s.writeError(w, err)
			return true
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	case action == "move" && r.Method == http.MethodPost:
		var req moveTaskRequest
		if err := decode(r, &req); err != nil {
			s.writeError(w, err)
			return true
		}
		day, err := parseDay(req.Day)
		if err != nil {
			s.writeError(w, err)
			return true
		}
		entry, err := sess.MoveTask(ctx, taskID, day)
		if err != nil {
			s.writeError(w, err)
			return true
		}
		writeJSON(w, http.StatusOK, entry)
	case action == "complete" && r.Method == http.MethodPost:
		task, err := sess.CompleteTask(ctx, taskID)
		if err != nil {
			s.writeError(w, err)
			return true
		}
		writeJSON(w, http.StatusOK, task)
	default:
		return false
	}
	return true
}

// --- Day Handlers ---

type statusRequest struct {
	Action  string `json:"action"`
	EntryID int64  `json:"entry_id,omitempty"`
	Subject string `json:"subject,omitempty"`
}

func (s *Server) routeDays(w http.ResponseWriter, r *http.Request, sess *engine.Session, rest []string) bool {
	if len(rest) < 2 || r.Method != http.MethodPost {
		return false
	}
	ctx := r.Context()
	day, err := parseDay(rest[0])
	if err != nil {
		s.writeError(w, err)
		return true
	}

	if len(rest) == 2 && rest[1] == "status" {
		var req statusRequest
		if err := decode(r, &req); err != nil {
			s.writeError(w, err)
			return true
		}
		action, err := models.ParseAction(req.Action)
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: %v", ErrBadRequest, err))
			return true
		}
		if req.EntryID == 0 && strings.TrimSpace(req.Subject) == "" {
			s.writeError(w, fmt.Errorf("%w: entry_id or subject is required", ErrBadRequest))
			return true
		}
		tr, err := sess.UpdateEntryStatus(ctx, day, engine.EntryRef{ID: req.EntryID, Subject: req.Subject}, action)
		if err != nil {
			s.writeError(w, err)
			return true
		}
		writeJSON(w, http.StatusOK, tr)
		return true
	}

	if len(rest) != 4 || rest[1] != "entries" {
		return false
	}
	entryID, err := parseID(rest[2])
	if err != nil {
		s.writeError(w, err)
		return true
	}

	var entry models.ScheduleEntry
	switch rest[3] {
	case "replace":
		entry, err = sess.ReplaceTaskWithNext(ctx, day, entryID)
	case "restore":
		entry, err = sess.RestoreEntry(ctx, day, entryID)
	default:
		return false
	}
	if err != nil {
		s.writeError(w, err)
		return true
	}
	writeJSON(w, http.StatusOK, entry)
	return true
}

// --- Subject Handlers ---

type addSubjectRequest struct {
	Name string `json:"name"`
}

type setSubjectRequest struct {
	Attended int `json:"attended"`
	Total    int `json:"total"`
}

func (s *Server) routeSubjects(w http.ResponseWriter, r *http.Request, sess *engine.Session, rest []string) bool {
	ctx := r.Context()
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			target, err := s.target(r)
			if err != nil {
				s.writeError(w, err)
				return true
			}
			standings, err := sess.Standings(ctx, target)
			if err != nil {
				s.writeError(w, err)
				return true
			}
			writeJSON(w, http.StatusOK, standings)
			return true
		case http.MethodPost:
			var req addSubjectRequest
			if err := decode(r, &req); err != nil {
				s.writeError(w, err)
				return true
			}
			row, err := sess.AddSubject(ctx, req.Name)
			if err != nil {
				s.writeError(w, err)
				return true
			}
			writeJSON(w, http.StatusCreated, row)
			return true
		}
		return false
	}

	name := rest[0]
	switch {
	case len(rest) == 1 && r.Method == http.MethodPut:
		var req setSubjectRequest
		if err := decode(r, &req); err != nil {
			s.writeError(w, err)
			return true
		}
		row, err := sess.UpdateSubjectAttendance(ctx, name, req.Attended, req.Total)
		if err != nil {
			s.writeError(w, err)
			return true
		}
		writeJSON(w, http.StatusOK, row)
	case len(rest) == 1 && r.Method == http.MethodDelete:
		if err := sess.DeleteSubject(ctx, name); err != nil {
			s.writeError(w, err)
			return true
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	case len(rest) == 2 && rest[1] == "reset" && r.Method == http.MethodPost:
		row, err := sess.ResetSubject(ctx, name)
		if err != nil {
			s.writeError(w, err)
			return true
		}
		writeJSON(w, http.StatusOK, row)
	default:
		return false
	}
	return true
}

func (s *Server) getAdvice(w http.ResponseWriter, r *http.Request, sess *engine.Session) {
	target, err := s.target(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	advice, err := sess.Advice(r.Context(), target)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, advice)
}

// --- History Handlers ---

func (s *Server) listAudit(w http.ResponseWriter, r *http.Request, userID string) {
	recs, err := s.service.Audit(r.Context(), userID, limitParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if recs == nil {
		recs = []models.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) listScans(w http.ResponseWriter, r *http.Request, userID string) {
	recs, err := s.service.Scans(r.Context(), userID, limitParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if recs == nil {
		recs = []models.ScanRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// --- Helpers ---

func (s *Server) target(r *http.Request) (float64, error) {
	v := r.URL.Query().Get("target")
	if v == "" {
		return s.service.Target(), nil
	}
	target, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid target %q", ErrBadRequest, v)
	}
	return target, nil
}

func limitParam(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return n
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id %q", ErrBadRequest, s)
	}
	return id, nil
}

func parseDay(s string) (models.Weekday, error) {
	day, err := models.ParseDay(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", engine.ErrUnknownDay, err)
	}
	return day, nil
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json", ErrBadRequest)
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError && !errors.Is(err, context.Canceled) {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
