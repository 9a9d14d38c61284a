package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ajay73588/autopod/internal/domain"
	"github.com/Ajay73588/autopod/internal/repository"
	"github.com/Ajay73588/autopod/internal/runtime"
	"github.com/Ajay73588/autopod/internal/service/source"
	"github.com/Ajay73588/autopod/internal/ws"
)

// Deployer runs the webhook-triggered deployment pipeline.
type Deployer interface {
	Deploy(ctx context.Context, payload []byte) (domain.Outcome, error)
}

// Resyncer refreshes the database mirror from the runtime.
type Resyncer interface {
	Resync(ctx context.Context) (int, error)
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	deployer Deployer
	resyncer Resyncer
	gateway  runtime.Gateway
	repo     repository.MirrorRepository
	hub      *ws.Hub
	upgrader websocket.Upgrader
	limiter  RateLimiter
	dbHealth func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	deployResults      *prometheus.CounterVec
	syncResults        *prometheus.CounterVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitWebhook   = 30
	rateLimitManage    = 60
	rateLimitRead      = 120
	rateLimitWebsocket = 30
	healthCheckTimeout = 2 * time.Second

	defaultLogLimit = 200
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, deployer Deployer, resyncer Resyncer, gateway runtime.Gateway, repo repository.MirrorRepository, hub *ws.Hub, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		deployer: deployer,
		resyncer: resyncer,
		gateway:  gateway,
		repo:     repo,
		hub:      hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  limiter,
		dbHealth: dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/webhook", r.audit("webhook", r.withRateLimit("webhook", rateLimitWebhook, rateWindowDefault, r.handleWebhook)))
	r.mux.HandleFunc("/api/status", r.audit("status", r.withRateLimit("status", rateLimitRead, rateWindowDefault, r.handleStatus)))
	r.mux.HandleFunc("/api/logs", r.audit("logs", r.withRateLimit("logs", rateLimitRead, rateWindowDefault, r.handleLogs)))
	r.mux.HandleFunc("/api/sync", r.audit("sync", r.withRateLimit("sync", rateLimitManage, rateWindowDefault, r.handleSync)))
	r.mux.HandleFunc("/api/containers", r.audit("containers", r.withRateLimit("containers", rateLimitRead, rateWindowDefault, r.handleContainers)))
	r.mux.HandleFunc("/api/containers/", r.audit("container_action", r.withRateLimit("container_action", rateLimitManage, rateWindowDefault, r.handleContainerAction)))
	r.mux.HandleFunc("/ws/events", r.audit("ws_events", r.withRateLimit("ws_events", rateLimitWebsocket, rateWindowRealtime, r.handleEventsWS)))
}

func (r *Router) handleWebhook(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}
	outcome, err := r.deployer.Deploy(req.Context(), body)
	if err != nil {
		r.recordDeployResult(domain.OutcomeError)
		status := http.StatusInternalServerError
		if errors.Is(err, source.ErrInvalidPayload) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, outcome)
		return
	}
	r.recordDeployResult(domain.OutcomeSuccess)
	writeJSON(w, http.StatusOK, outcome)
}

func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	rows, err := r.repo.ListContainers(req.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []domain.ContainerRecord{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (r *Router) handleLogs(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	container := strings.TrimSpace(req.URL.Query().Get("container"))
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultLogLimit
	}
	rows, err := r.repo.ListLogs(req.Context(), container, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []domain.LogRecord{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (r *Router) handleSync(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	count, err := r.resyncer.Resync(req.Context())
	if err != nil {
		r.recordSyncResult(domain.OutcomeError)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	r.recordSyncResult(domain.OutcomeSuccess)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"containers": count,
	})
}

func (r *Router) handleContainers(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	containers, err := r.gateway.List(req.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if containers == nil {
		containers = []domain.RuntimeContainer{}
	}
	writeJSON(w, http.StatusOK, containers)
}

func (r *Router) handleContainerAction(w http.ResponseWriter, req *http.Request) {
	action := strings.TrimPrefix(req.URL.Path, "/api/containers/")
	if action == "" || strings.Contains(action, "/") {
		r.notFound(w)
		return
	}
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		ContainerName string `json:"container_name"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	name := strings.TrimSpace(payload.ContainerName)
	if name == "" {
		writeError(w, http.StatusBadRequest, "container_name is required")
		return
	}

	var err error
	switch action {
	case "start":
		err = r.gateway.Start(req.Context(), name)
	case "stop":
		err = r.gateway.Stop(req.Context(), name)
	case "restart":
		err = r.gateway.Restart(req.Context(), name)
	case "remove":
		err = r.gateway.Remove(req.Context(), name)
	default:
		r.notFound(w)
		return
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, runtime.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	if _, err := r.resyncer.Resync(req.Context()); err != nil {
		r.logger.Warn("post-action resync failed", "action", action, "container", name, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":         "ok",
		"action":         action,
		"container_name": name,
	})
}

func (r *Router) handleEventsWS(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	channel := strings.TrimSpace(req.URL.Query().Get("channel"))
	if channel == "" {
		channel = "deployments"
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(channel, client)
	go func() {
		defer func() {
			r.hub.Unregister(channel, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
	defer cancel()
	if r.dbHealth != nil {
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	if r.gateway != nil {
		if err := r.gateway.Ping(ctx); err != nil {
			status = "degraded"
			components["runtime"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["runtime"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		r.recordRequest(req.Method, route, status, duration)

		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
