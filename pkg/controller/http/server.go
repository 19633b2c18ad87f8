package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"github.com/secmon-lab/syllabus/pkg/utils/errutil"
	"github.com/secmon-lab/syllabus/pkg/utils/logging"
	"github.com/secmon-lab/syllabus/pkg/utils/metrics"
)

const (
	serviceName     = "syllabus"
	maxRequestBytes = 1 << 20

	DefaultQueryTimeout = 60 * time.Second
)

// Messages sent to clients instead of error details.
const (
	msgEmptyQuery      = "query must not be empty"
	msgGenerationError = "Sorry, I couldn't generate an answer right now. Please try again later."
	msgInternalError   = "internal error"
)

// QueryUseCase is the application surface served over HTTP.
type QueryUseCase interface {
	Ask(ctx context.Context, sessionID model.SessionID, question string) (*model.Answer, error)
	Courses(ctx context.Context) (*model.CatalogStats, error)
	ClearSession(ctx context.Context, sessionID model.SessionID) error
}

type Server struct {
	router       *chi.Mux
	query        QueryUseCase
	queryTimeout time.Duration
}

type Options func(*Server)

// WithQueryTimeout bounds a single query, including both LLM calls and tool execution.
func WithQueryTimeout(d time.Duration) Options {
	return func(s *Server) {
		s.queryTimeout = d
	}
}

func New(query QueryUseCase, opts ...Options) (*Server, error) {
	if query == nil {
		return nil, goerr.New("query use case is required")
	}

	r := chi.NewRouter()

	s := &Server{
		router:       r,
		query:        query,
		queryTimeout: DefaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Get("/courses", s.handleCourses)
		r.Delete("/session/{id}", s.handleClearSession)
	})

	r.Get("/health", handleHealth)
	r.Handle("/metrics", metrics.Handler())

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		logger := logging.Default().With("request_id", middleware.GetReqID(r.Context()))
		ctx := logging.With(r.Context(), logger)

		defer func() {
			logger.Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r.WithContext(ctx))
	})
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type sourceResponse struct {
	Label string `json:"label"`
	Link  string `json:"link,omitempty"`
}

type queryResponse struct {
	Answer    string           `json:"answer"`
	Sources   []sourceResponse `json:"sources"`
	SessionID string           `json:"session_id"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to decode query request"), http.StatusBadRequest, "invalid request body")
		return
	}

	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	answer, err := s.query.Ask(ctx, model.SessionID(req.SessionID), req.Query)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidArgument):
			errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest, msgEmptyQuery)
		case errors.Is(err, model.ErrGeneration):
			errutil.HandleHTTP(ctx, w, err, http.StatusBadGateway, msgGenerationError)
		default:
			errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError, msgInternalError)
		}
		return
	}

	resp := queryResponse{
		Answer:    answer.Text,
		Sources:   make([]sourceResponse, len(answer.Sources)),
		SessionID: answer.SessionID.String(),
	}
	for i, src := range answer.Sources {
		resp.Sources[i] = sourceResponse{Label: src.Label(), Link: src.Link}
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}

type coursesResponse struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := s.query.Courses(ctx)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError, msgInternalError)
		return
	}

	titles := stats.CourseTitles
	if titles == nil {
		titles = []string{}
	}
	writeJSON(ctx, w, http.StatusOK, coursesResponse{
		TotalCourses: stats.TotalCourses,
		CourseTitles: titles,
	})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := s.query.ClearSession(ctx, model.SessionID(id)); err != nil {
		if errors.Is(err, model.ErrInvalidArgument) {
			errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest, "session id must not be empty")
			return
		}
		errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError, msgInternalError)
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError, msgInternalError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data) //nolint:errcheck // header already committed
}
