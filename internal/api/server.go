package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pbaille/tiku/internal/catalog"
	"github.com/pbaille/tiku/internal/domain"
	"github.com/pbaille/tiku/internal/ingest"
)

// Store is the read side of the question store
type Store interface {
	GetConfig(ctx context.Context, name string) (string, bool, error)
	GetQuestion(ctx context.Context, id int64) (*domain.Question, error)
	ListQuestions(ctx context.Context, limit, offset int) ([]domain.Question, error)
	CountQuestions(ctx context.Context) (int, error)
}

// Server exposes stored questions over a read-only JSON API
type Server struct {
	store  Store
	addr   string
	logger *slog.Logger
}

// New creates a new API server
func New(s Store, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: s, addr: addr, logger: logger}
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /questions", s.listQuestions)
	mux.HandleFunc("GET /questions/{id}", s.getQuestion)
	mux.HandleFunc("GET /catalog", s.getCatalog)
	mux.HandleFunc("GET /health", s.health)

	return withCORS(mux)
}

// Run starts the HTTP server
func (s *Server) Run() error {
	s.logger.Info("starting server", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid question id")
		return
	}

	q, err := s.store.GetQuestion(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "question not found")
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}

	// Serve the payload exactly as it was ingested
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	payload, _ := q.Payload()
	w.Write(payload)
}

func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}

	questions, err := s.store.ListQuestions(r.Context(), limit, offset)
	if err != nil {
		s.fail(w, err)
		return
	}
	total, err := s.store.CountQuestions(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	payloads := make([]json.RawMessage, 0, len(questions))
	for i := range questions {
		payload, err := questions[i].Payload()
		if err != nil {
			s.fail(w, err)
			return
		}
		payloads = append(payloads, payload)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"questions": payloads,
		"limit":     limit,
		"offset":    offset,
		"total":     total,
	})
}

func (s *Server) getCatalog(w http.ResponseWriter, r *http.Request) {
	raw, ok, err := s.store.GetConfig(r.Context(), ingest.CatalogKey)
	if err != nil {
		s.fail(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no catalog synced yet")
		return
	}

	tree, err := catalog.Parse([]byte(raw))
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keypoints":    tree,
		"question_ids": len(catalog.Flatten(tree)),
	})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", "err", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
