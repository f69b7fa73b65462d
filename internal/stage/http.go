package stage

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/your-org/speechflow/internal/pipeline"
)

// Decoder turns an inbound request into the event a stage handles.
type Decoder func(r *http.Request) (pipeline.Event, error)

type HTTPOptions struct {
	Decoder      Decoder
	MaxBodyBytes int64
	Timeout      time.Duration
	// EventPaths are extra POST routes accepted besides "/".
	EventPaths []string
	// Routes mounts additional endpoints on the router.
	Routes func(r chi.Router)
}

// HTTPHandler exposes a stage as a bus sink.
type HTTPHandler struct {
	runner *Runner
	logger *zap.Logger
	opts   HTTPOptions
	router chi.Router
}

// NewHTTPHandler constructs the HTTP handler and wires routes.
func NewHTTPHandler(runner *Runner, logger *zap.Logger, opts HTTPOptions) *HTTPHandler {
	if opts.Decoder == nil {
		opts.Decoder = pipeline.DecodeHTTP
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 8 << 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	h := &HTTPHandler{
		runner: runner,
		logger: logger,
		opts:   opts,
	}
	h.buildRouter()
	return h
}

func (h *HTTPHandler) buildRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.opts.Timeout))

	r.Get("/", h.handleLiveness)
	r.Get("/healthz", h.handleHealth)
	r.Post("/", h.handleEvent)
	for _, p := range h.opts.EventPaths {
		r.Post(p, h.handleEvent)
	}
	if h.opts.Routes != nil {
		h.opts.Routes(r)
	}

	h.router = r
}

// Router exposes the configured chi router.
func (h *HTTPHandler) Router() http.Handler {
	return h.router
}

func (h *HTTPHandler) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "%s service is running\n", h.runner.Name())
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *HTTPHandler) handleEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	ev, err := h.opts.Decoder(r)
	if err != nil {
		h.logger.Warn("rejecting malformed event", zap.Error(err))
		WriteError(w, err)
		return
	}

	res, err := h.runner.Process(ctx, ev)
	if err != nil {
		WriteError(w, err)
		return
	}

	message := "Processing complete"
	if res.Duplicate {
		message = "Already processed"
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"message":    message,
		"artifacts":  emptyIfNil(res.Artifacts),
		"emitted":    res.Emitted,
		"suppressed": res.Suppressed,
	})
}

// StatusFor maps a stage failure to its HTTP status. Only malformed input is
// a client error; everything else is a 500 the bus may retry.
func StatusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case pipeline.IsKind(err, pipeline.KindMalformedInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as {"error", "kind"} with the status from StatusFor.
func WriteError(w http.ResponseWriter, err error) {
	body := map[string]string{"error": err.Error()}
	if kind := pipeline.KindOf(err); kind != "" {
		body["kind"] = string(kind)
	}
	WriteJSON(w, StatusFor(err), body)
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// WriteJSON encodes payload as the response body.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
