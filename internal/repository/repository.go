package repository

import (
	"context"

	"github.com/Ajay73588/autopod/internal/domain"
)

// MirrorRepository persists the runtime-state mirror read by the dashboard.
// The mirror is a full replace-on-sync snapshot: after every successful
// ReplaceMirror the persisted set matches the runtime listing exactly, with
// at most one container row per name and no rows surviving from earlier syncs.
type MirrorRepository interface {
	ReplaceMirror(ctx context.Context, containers []domain.ContainerRecord, logs []domain.LogRecord) error
	ListContainers(ctx context.Context) ([]domain.ContainerRecord, error)
	ListLogs(ctx context.Context, containerName string, limit int) ([]domain.LogRecord, error)
}
