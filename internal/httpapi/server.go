// Package httpapi exposes the form mail pipeline over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/shineum/formmail-lite/internal/formmail"
	"github.com/shineum/formmail-lite/internal/submission"
)

// Request headers read by the endpoint.
const (
	HeaderAppID     = "X-Appid"
	HeaderMailDebug = "X-Mail-Debug"
	HeaderRequestID = "X-Request-Id"
)

// requestOverhead is the body allowance for form fields and multipart framing
// on top of the per-file upload limit.
const requestOverhead = 1 << 20

// MsgRequestTooLarge is returned when the request body exceeds the limit.
const MsgRequestTooLarge = "Request entity too large"

// Processor runs one submission through the pipeline.
type Processor interface {
	Process(ctx context.Context, req formmail.Request) formmail.Outcome
}

// Config holds the HTTP surface settings.
type Config struct {
	// MaxUploadSize is the per-file limit. The whole body may exceed it by
	// requestOverhead.
	MaxUploadSize int64
	// CORSOrigins are the origins browsers may post from.
	CORSOrigins []string
}

// handler serves the form endpoint.
type handler struct {
	cfg       Config
	processor Processor
}

// New returns the endpoint handler: the router wrapped in CORS and panic
// recovery.
func New(cfg Config, p Processor) http.Handler {
	h := &handler{cfg: cfg, processor: p}

	router := &httprouter.Router{
		RedirectTrailingSlash: true,
		RedirectFixedPath:     true,
		HandleOPTIONS:         true,
		NotFound: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]string{"message": "endpoint not found"}, http.StatusNotFound)
		}),
	}

	// Every method reaches the form handler; the pipeline answers non-POST
	// requests itself.
	for _, path := range []string{"/", "/sendmail"} {
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
			router.Handle(method, path, h.sendMail)
		}
	}
	router.GET("/health", h.health)

	withCORS := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", HeaderAppID, HeaderMailDebug},
		ExposedHeaders: []string{HeaderRequestID},
	}).Handler(router)

	return recoverer(withCORS)
}

func (h *handler) sendMail(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	id := uuid.NewString()
	w.Header().Set(HeaderRequestID, id)

	sub, err := h.decode(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Warn("request body too large", "request_id", id, "limit", tooLarge.Limit)
			writeJSON(w, formmail.Response{Error: MsgRequestTooLarge}, http.StatusRequestEntityTooLarge)
			return
		}
		slog.Debug("form body not decoded", "request_id", id, "error", err)
		sub = &submission.Submission{}
	}

	out := h.processor.Process(r.Context(), formmail.Request{
		ID:          id,
		Method:      r.Method,
		Identity:    r.Header.Get(HeaderAppID),
		DebugHeader: r.Header.Get(HeaderMailDebug),
		Submission:  sub,
	})

	writeJSON(w, out.Response, out.StatusCode)
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request) (*submission.Submission, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return &submission.Submission{}, nil
	}
	body := http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize+requestOverhead)
	return submission.Decode(r.Header.Get("Content-Type"), body, h.cfg.MaxUploadSize)
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				slog.Error("panic while handling request", "because", rvr, "stack", string(debug.Stack()))
				writeJSON(w, formmail.Response{Error: "Internal server error"}, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
