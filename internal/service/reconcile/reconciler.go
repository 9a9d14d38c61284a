// Package reconcile mirrors live container-runtime state into the datastore
// the dashboard reads.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/Ajay73588/autopod/internal/domain"
	"github.com/Ajay73588/autopod/internal/repository"
)

const (
	defaultLogTail   = 50
	resyncTimeout    = 15 * time.Second
	syncEventChannel = "sync"
)

// Gateway is the slice of runtime capability the reconciler consumes.
type Gateway interface {
	List(ctx context.Context) ([]domain.RuntimeContainer, error)
	Logs(ctx context.Context, nameOrID string, tail int) (string, error)
}

// Broadcaster publishes events to streaming dashboard clients.
type Broadcaster interface {
	Broadcast(channel string, payload []byte)
}

// Reconciler rewrites the mirror tables from the runtime's current listing.
// Resync is single-writer: concurrent calls serialize on an internal mutex so
// the delete-then-insert replace never interleaves with itself.
type Reconciler struct {
	mu       sync.Mutex
	gateway  Gateway
	repo     repository.MirrorRepository
	hub      Broadcaster
	logger   *slog.Logger
	tailSize int
	now      func() time.Time
}

// New constructs a Reconciler. hub may be nil when no dashboard stream is
// attached.
func New(gateway Gateway, repo repository.MirrorRepository, hub Broadcaster, logger *slog.Logger, tailSize int) *Reconciler {
	if tailSize <= 0 {
		tailSize = defaultLogTail
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reconcile")
	return &Reconciler{
		gateway:  gateway,
		repo:     repo,
		hub:      hub,
		logger:   logger,
		tailSize: tailSize,
		now:      time.Now,
	}
}

// Resync pulls the full container listing and atomically replaces the
// persisted mirror, returning the number of containers synced. After a
// resync the mirror's container set matches the listing 1:1.
func (r *Reconciler) Resync(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	listed, err := r.gateway.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list containers: %w", err)
	}

	syncedAt := r.now().UTC()
	containers := make([]domain.ContainerRecord, 0, len(listed))
	logs := make([]domain.LogRecord, 0, len(listed))

	for _, c := range listed {
		name := ExtractName(c.Names)
		status := NormalizeStatus(c.Status, c.State)
		containers = append(containers, domain.ContainerRecord{
			ContainerName: name,
			Status:        status,
			CreatedAt:     syncedAt,
		})
		logs = append(logs, r.collectLogs(ctx, c, name, status, syncedAt)...)
	}

	if err := r.repo.ReplaceMirror(ctx, containers, logs); err != nil {
		return 0, fmt.Errorf("replace mirror: %w", err)
	}

	r.logger.Info("runtime state synced", "containers", len(containers), "log_lines", len(logs))
	r.broadcastSync(len(containers), syncedAt)
	return len(containers), nil
}

// collectLogs builds the mirrored log rows for one container: a bounded tail
// for running containers, exactly one placeholder row otherwise. A failed
// fetch becomes a single synthetic error row instead of aborting the resync.
func (r *Reconciler) collectLogs(ctx context.Context, c domain.RuntimeContainer, name, status string, syncedAt time.Time) []domain.LogRecord {
	if !strings.EqualFold(strings.TrimSpace(c.State), "running") {
		return []domain.LogRecord{{
			ContainerName: name,
			Log:           fmt.Sprintf("container %s is %s; logs unavailable until started", name, status),
			Timestamp:     syncedAt,
		}}
	}

	ref := c.ID
	if ref == "" {
		ref = name
	}
	text, err := r.gateway.Logs(ctx, ref, r.tailSize)
	if err != nil {
		r.logger.Warn("log fetch failed during resync", "container", name, "error", err)
		return []domain.LogRecord{{
			ContainerName: name,
			Log:           fmt.Sprintf("failed to fetch logs: %v", err),
			Timestamp:     syncedAt,
		}}
	}

	var rows []domain.LogRecord
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, domain.LogRecord{ContainerName: name, Log: line, Timestamp: syncedAt})
	}
	return rows
}

func (r *Reconciler) broadcastSync(count int, syncedAt time.Time) {
	if r.hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"event":      "sync_completed",
		"containers": count,
		"timestamp":  syncedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return
	}
	r.hub.Broadcast(syncEventChannel, payload)
}

// Run executes resync on a fixed interval until the context is cancelled.
// Interval must be positive.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("reconcile loop started", "interval", interval)
	r.runIteration(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconcile loop stopped")
			return
		case <-ticker.C:
			r.runIteration(ctx)
		}
	}
}

func (r *Reconciler) runIteration(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, resyncTimeout)
	defer cancel()
	if _, err := r.Resync(ctx); err != nil {
		r.logger.Warn("periodic resync failed", "error", err)
	}
}
