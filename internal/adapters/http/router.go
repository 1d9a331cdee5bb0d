package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/neurovision/internal/config"
	"github.com/kirillkom/neurovision/internal/core/domain"
	"github.com/kirillkom/neurovision/internal/core/ports"
	"github.com/kirillkom/neurovision/internal/infrastructure/imagefile"
	"github.com/kirillkom/neurovision/internal/observability/metrics"
)

const (
	serviceName           = "api"
	backpressureQueueWait = 50 * time.Millisecond
)

type Router struct {
	session        ports.DiagnosticSession
	metrics        *metrics.HTTPServerMetrics
	uploadMaxBytes int64
	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
}

func NewRouter(cfg config.Config, session ports.DiagnosticSession, httpMetrics *metrics.HTTPServerMetrics) *Router {
	uploadMaxBytes := cfg.UploadMaxBytes
	if uploadMaxBytes <= 0 {
		uploadMaxBytes = imagefile.DefaultMaxBytes
	}
	return &Router{
		session:        session,
		metrics:        httpMetrics,
		uploadMaxBytes: uploadMaxBytes,
		rateLimitRPS:   cfg.APIRateLimitRPS,
		rateLimitBurst: cfg.APIRateLimitBurst,
		maxInFlight:    cfg.APIMaxInFlight,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPIDocument)
	mux.HandleFunc("GET /v1/session", rt.getSession)
	mux.HandleFunc("POST /v1/session/file", rt.selectFile)
	mux.HandleFunc("POST /v1/session/submit", rt.submit)
	mux.HandleFunc("POST /v1/session/reset", rt.reset)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	onReject := func(reason string) {
		if rt.metrics != nil {
			rt.metrics.RecordRejected(serviceName, reason)
		}
	}

	var handler http.Handler = mux
	handler = openAPIValidationMiddleware(handler)
	handler = backpressureMiddleware(handler, rt.maxInFlight, backpressureQueueWait, onReject)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst, onReject)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPIDocument(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPIYAML)
}

func (rt *Router) getSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.session.Snapshot())
}

func (rt *Router) selectFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.uploadMaxBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "image exceeds upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), "failed to read uploaded image")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "uploaded image is empty")
		return
	}

	contentType := strings.TrimSpace(fileHeader.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = imagefile.DetectContentType(fileHeader.Filename, data)
	}

	image := domain.SelectedImage{
		Filename:    fileHeader.Filename,
		ContentType: contentType,
		Data:        data,
	}
	if err := rt.session.SelectFile(r.Context(), image); err != nil {
		slog.Error("select_file_failed",
			"request_id", requestIDFromContext(r.Context()),
			"filename", fileHeader.Filename,
			"error", err,
		)
		writeError(w, mapErrorToHTTPStatus(err), "preview could not be prepared")
		return
	}
	writeJSON(w, http.StatusOK, rt.session.Snapshot())
}

func (rt *Router) submit(w http.ResponseWriter, r *http.Request) {
	wait := false
	if raw := r.URL.Query().Get("wait"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "wait must be a boolean")
			return
		}
		wait = parsed
	}

	if !rt.session.Submit(r.Context()) {
		writeJSON(w, http.StatusConflict, submitRejection{
			Error:    "session is not ready for submission",
			Snapshot: rt.session.Snapshot(),
		})
		return
	}

	if wait {
		if err := rt.session.WaitSettled(r.Context()); err != nil {
			slog.Warn("submit_wait_interrupted",
				"request_id", requestIDFromContext(r.Context()),
				"error", err,
			)
		}
	}
	writeJSON(w, http.StatusAccepted, rt.session.Snapshot())
}

func (rt *Router) reset(w http.ResponseWriter, r *http.Request) {
	rt.session.Reset(r.Context())
	writeJSON(w, http.StatusOK, rt.session.Snapshot())
}

type submitRejection struct {
	Error    string          `json:"error"`
	Snapshot domain.Snapshot `json:"snapshot"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
