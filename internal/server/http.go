package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/timeslotseeker/internal/finder"
	"github.com/teemow/timeslotseeker/internal/format"
	"github.com/teemow/timeslotseeker/internal/logging"
)

const (
	// DefaultAPIAddr is the default listen address of the HTTP API.
	DefaultAPIAddr = ":8080"

	// maxRequestBody caps the size of a search request body.
	maxRequestBody = 1 << 20

	// KindRateLimited and KindUnavailable complement the finder error kinds
	// in ErrorResponse.Kind.
	KindRateLimited = "rate_limited"
	KindUnavailable = "unavailable"
	KindBadRequest  = "bad_request"
)

// APIConfig configures the HTTP API.
type APIConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string

	// RateLimit is the number of requests allowed per client IP per minute.
	// Zero disables rate limiting.
	RateLimit int

	// CORSOrigins lists allowed origins (default: all).
	CORSOrigins []string

	// PreviewLimit caps /test-slots output (default: format.DefaultPreviewLimit).
	PreviewLimit int

	// MCPHandler, when set, is mounted at /mcp.
	MCPHandler http.Handler
}

// SearchRequest is the body of POST /find-timeslot and POST /test-slots.
type SearchRequest struct {
	Participants []string `json:"participants" validate:"required,min=1,dive,required,max=254"`
	SlotLength   int      `json:"slot_length" validate:"required,gt=0"`
	Weeks        int      `json:"weeks" validate:"required,gt=0"`
	Account      string   `json:"account,omitempty" validate:"omitempty,max=64"`
}

// SearchResponse is the body of a successful POST /find-timeslot.
type SearchResponse struct {
	SearchID    string            `json:"search_id"`
	WindowStart string            `json:"window_start"`
	WindowEnd   string            `json:"window_end"`
	Slots       []format.SlotJSON `json:"slots"`
}

// PreviewResponse is the body of a successful POST /test-slots.
type PreviewResponse struct {
	SearchID     string              `json:"search_id"`
	PreviewSlots []format.PreviewRow `json:"preview_slots"`
}

// APIServer serves the free slot search over HTTP.
type APIServer struct {
	sc       *ServerContext
	health   *HealthChecker
	config   APIConfig
	validate *validator.Validate
	handler  http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// NewAPIServer builds the router. health may be nil to omit the probe
// endpoints.
func NewAPIServer(sc *ServerContext, health *HealthChecker, config APIConfig) (*APIServer, error) {
	if sc == nil {
		return nil, fmt.Errorf("server context is required")
	}
	if config.Addr == "" {
		config.Addr = DefaultAPIAddr
	}
	if len(config.CORSOrigins) == 0 {
		config.CORSOrigins = []string{"*"}
	}
	if config.PreviewLimit <= 0 {
		config.PreviewLimit = format.DefaultPreviewLimit
	}

	s := &APIServer{
		sc:       sc,
		health:   health,
		config:   config,
		validate: newValidator(),
	}
	s.handler = otelhttp.NewHandler(s.routes(), "timeslotseeker.api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	return s, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *APIServer) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.metricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Mcp-Session-Id"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
		MaxAge:         300,
	}))

	if s.health != nil {
		s.health.RegisterHealthEndpoints(r)
	}

	r.Group(func(r chi.Router) {
		if s.config.RateLimit > 0 {
			r.Use(httprate.Limit(s.config.RateLimit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					writeError(w, http.StatusTooManyRequests, KindRateLimited, "too many requests")
				}),
			))
		}
		r.Post("/find-timeslot", s.handleFindTimeslot)
		r.Post("/test-slots", s.handleTestSlots)
		if s.config.MCPHandler != nil {
			r.Handle("/mcp", s.config.MCPHandler)
		}
	})

	return r
}

// metricsMiddleware records one http_requests_total sample per request,
// labeled with the route pattern rather than the raw path.
func (s *APIServer) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.sc.Metrics().RecordHTTPRequest(r.Context(), r.Method, path, status, time.Since(start))
	})
}

// Handler returns the instrumented router.
func (s *APIServer) Handler() http.Handler {
	return s.handler
}

func (s *APIServer) handleFindTimeslot(w http.ResponseWriter, r *http.Request) {
	res, ok := s.search(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		SearchID:    res.SearchID,
		WindowStart: res.Window.Start.UTC().Format(time.RFC3339),
		WindowEnd:   res.Window.End.UTC().Format(time.RFC3339),
		Slots:       format.JSON(res.Slots),
	})
}

func (s *APIServer) handleTestSlots(w http.ResponseWriter, r *http.Request) {
	res, ok := s.search(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{
		SearchID:     res.SearchID,
		PreviewSlots: format.Preview(res.Slots, s.sc.Location(), s.config.PreviewLimit),
	})
}

// search decodes and runs a request, writing the error response itself when
// it returns false.
func (s *APIServer) search(w http.ResponseWriter, r *http.Request) (finder.Result, bool) {
	ctx := logging.AppendCtx(r.Context(), slog.String("request_id", middleware.GetReqID(r.Context())))
	logger := logging.WithOperation(s.sc.Logger(), "api"+r.URL.Path)

	var req SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, KindBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return finder.Result{}, false
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, finder.KindInvalidArgument.String(), validationMessage(err))
		return finder.Result{}, false
	}

	svc, err := s.sc.FinderForAccount(req.Account)
	if err != nil {
		logger.ErrorContext(ctx, "busy source unavailable", logging.Err(err))
		writeError(w, http.StatusServiceUnavailable, KindUnavailable, "calendar access is not configured for this account")
		return finder.Result{}, false
	}

	res, err := svc.FindFreeSlots(ctx, finder.Request{
		Participants:      req.Participants,
		SlotLengthMinutes: req.SlotLength,
		SpanWeeks:         req.Weeks,
	})
	if err != nil {
		kind := finder.KindOf(err)
		writeError(w, statusForKind(kind), kind.String(), err.Error())
		return finder.Result{}, false
	}
	return res, true
}

func statusForKind(k finder.Kind) int {
	switch k {
	case finder.KindInvalidArgument:
		return http.StatusBadRequest
	case finder.KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "SearchRequest.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// Start listens on the configured address and serves until Shutdown.
func (s *APIServer) Start() error {
	return s.StartWithReadySignal(nil)
}

// StartWithReadySignal is Start, closing ready once the listener is bound.
func (s *APIServer) StartWithReadySignal(ready chan<- struct{}) error {
	l, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.sc.Context() },
	}

	s.mu.Lock()
	s.httpServer = srv
	s.listener = l
	s.mu.Unlock()

	s.sc.Logger().Info("starting API server", "addr", l.Addr().String())
	if ready != nil {
		close(ready)
	}
	return srv.Serve(l)
}

// Addr returns the bound address once started, the configured one before.
func (s *APIServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

// Shutdown gracefully stops the API server.
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.sc.Logger().Info("shutting down API server")
	return srv.Shutdown(ctx)
}
