package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"log/slog"

	"github.com/Ajay73588/autopod/internal/domain"
	"github.com/Ajay73588/autopod/internal/runtime"
	"github.com/Ajay73588/autopod/internal/service/source"
	"github.com/Ajay73588/autopod/internal/ws"
)

type fakeDeployer struct {
	outcome domain.Outcome
	err     error
	calls   int
}

func (d *fakeDeployer) Deploy(ctx context.Context, payload []byte) (domain.Outcome, error) {
	d.calls++
	return d.outcome, d.err
}

type fakeResyncer struct {
	count int
	err   error
	calls int
}

func (r *fakeResyncer) Resync(ctx context.Context) (int, error) {
	r.calls++
	return r.count, r.err
}

type fakeRepo struct {
	containers []domain.ContainerRecord
	logs       []domain.LogRecord
}

func (r *fakeRepo) ReplaceMirror(ctx context.Context, containers []domain.ContainerRecord, logs []domain.LogRecord) error {
	return nil
}

func (r *fakeRepo) ListContainers(ctx context.Context) ([]domain.ContainerRecord, error) {
	return r.containers, nil
}

func (r *fakeRepo) ListLogs(ctx context.Context, containerName string, limit int) ([]domain.LogRecord, error) {
	return r.logs, nil
}

type fakeGateway struct {
	runtime.Stub
	startErr error
	started  []string
}

func (g *fakeGateway) Start(ctx context.Context, name string) error {
	g.started = append(g.started, name)
	return g.startErr
}

func newTestRouter(t *testing.T, deployer Deployer, resyncer Resyncer, gateway runtime.Gateway, repo *fakeRepo) *Router {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(log, deployer, resyncer, gateway, repo, ws.NewHub(), NewMemoryRateLimiter(), func(context.Context) error { return nil })
	t.Cleanup(router.Close)
	return router
}

func TestWebhookSuccess(t *testing.T) {
	deployer := &fakeDeployer{outcome: domain.Outcome{
		Status:        domain.OutcomeSuccess,
		ContainerName: "autopod-app-container",
		Port:          8081,
	}}
	router := newTestRouter(t, deployer, &fakeResyncer{}, &fakeGateway{}, &fakeRepo{})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"repository":{"clone_url":"https://x/y.git"}}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var outcome domain.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.Status != domain.OutcomeSuccess || outcome.Port != 8081 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if deployer.calls != 1 {
		t.Fatalf("expected one deploy call, got %d", deployer.calls)
	}
}

func TestWebhookInvalidPayloadIsBadRequest(t *testing.T) {
	deployer := &fakeDeployer{
		outcome: domain.Outcome{Status: domain.OutcomeError, Message: "payload classification failed"},
		err:     fmt.Errorf("%w: missing repository descriptor", source.ErrInvalidPayload),
	}
	router := newTestRouter(t, deployer, &fakeResyncer{}, &fakeGateway{}, &fakeRepo{})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWebhookDeployFailureIsServerError(t *testing.T) {
	deployer := &fakeDeployer{
		outcome: domain.Outcome{Status: domain.OutcomeError, Message: "build failed: exit 1"},
		err:     errors.New("build failed: exit 1"),
	}
	router := newTestRouter(t, deployer, &fakeResyncer{}, &fakeGateway{}, &fakeRepo{})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"test":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var outcome domain.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.Status != domain.OutcomeError {
		t.Fatalf("error body should carry the outcome, got %+v", outcome)
	}
}

func TestWebhookRejectsGet(t *testing.T) {
	router := newTestRouter(t, &fakeDeployer{}, &fakeResyncer{}, &fakeGateway{}, &fakeRepo{})

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	repo := &fakeRepo{containers: []domain.ContainerRecord{{ContainerName: "web", Status: "Running"}}}
	router := newTestRouter(t, &fakeDeployer{}, &fakeResyncer{}, &fakeGateway{}, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var rows []domain.ContainerRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if len(rows) != 1 || rows[0].ContainerName != "web" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestSyncEndpoint(t *testing.T) {
	resyncer := &fakeResyncer{count: 3}
	router := newTestRouter(t, &fakeDeployer{}, resyncer, &fakeGateway{}, &fakeRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Status     string `json:"status"`
		Containers int    `json:"containers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ok" || body.Containers != 3 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestContainerActionStart(t *testing.T) {
	gateway := &fakeGateway{}
	resyncer := &fakeResyncer{}
	router := newTestRouter(t, &fakeDeployer{}, resyncer, gateway, &fakeRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/containers/start", strings.NewReader(`{"container_name":"web"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(gateway.started) != 1 || gateway.started[0] != "web" {
		t.Fatalf("start not forwarded to gateway: %v", gateway.started)
	}
	if resyncer.calls != 1 {
		t.Fatalf("management action should trigger a resync, got %d", resyncer.calls)
	}
}

func TestContainerActionMissingName(t *testing.T) {
	router := newTestRouter(t, &fakeDeployer{}, &fakeResyncer{}, &fakeGateway{}, &fakeRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/containers/stop", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestContainerActionUnknownContainer(t *testing.T) {
	gateway := &fakeGateway{startErr: runtime.ErrNotFound}
	router := newTestRouter(t, &fakeDeployer{}, &fakeResyncer{}, gateway, &fakeRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/containers/start", strings.NewReader(`{"container_name":"ghost"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestContainerActionUnknownAction(t *testing.T) {
	router := newTestRouter(t, &fakeDeployer{}, &fakeResyncer{}, &fakeGateway{}, &fakeRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/containers/explode", strings.NewReader(`{"container_name":"web"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestWebhookRateLimit(t *testing.T) {
	deployer := &fakeDeployer{outcome: domain.Outcome{Status: domain.OutcomeSuccess}}
	router := newTestRouter(t, deployer, &fakeResyncer{}, &fakeGateway{}, &fakeRepo{})

	var lastCode int
	for i := 0; i < rateLimitWebhook+1; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"test":true}`))
		req.RemoteAddr = "203.0.113.7:4242"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after %d requests, got %d", rateLimitWebhook+1, lastCode)
	}
	if deployer.calls != rateLimitWebhook {
		t.Fatalf("expected %d deploys before throttling, got %d", rateLimitWebhook, deployer.calls)
	}
}

func TestMemoryRateLimiterWindowReset(t *testing.T) {
	rl := NewMemoryRateLimiter()
	defer rl.Close()

	first := rl.Allow("ip:10.0.0.1", 1, 0)
	if !first.allowed {
		t.Fatalf("first request should pass")
	}
	second := rl.Allow("ip:10.0.0.1", 1, 0)
	if second.allowed {
		t.Fatalf("second request should be throttled")
	}
	other := rl.Allow("ip:10.0.0.2", 1, 0)
	if !other.allowed {
		t.Fatalf("different key should have its own window")
	}
}
