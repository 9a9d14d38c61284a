package runtime

import (
	"context"

	"github.com/Ajay73588/autopod/internal/domain"
)

// BuildOutputCallback is invoked with incremental build messages.
type BuildOutputCallback func(string)

// ContainerInfo captures minimal runtime details about a started container.
type ContainerInfo struct {
	ID       string
	HostPort int
}

// Gateway is the full capability set consumed from the container runtime.
// Implementations back it with a real daemon (Docker) or nothing (Stub);
// capabilities are never attached to a live instance after construction.
type Gateway interface {
	Ping(ctx context.Context) error

	Build(ctx context.Context, dir, tag string, onOutput BuildOutputCallback) error
	Run(ctx context.Context, name, image string, hostPort, containerPort int) (ContainerInfo, error)
	Stop(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
	Start(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error

	List(ctx context.Context) ([]domain.RuntimeContainer, error)
	Logs(ctx context.Context, nameOrID string, tail int) (string, error)
	Inspect(ctx context.Context, name string) (domain.ContainerDetails, error)
	Stats(ctx context.Context, nameOrID string) (domain.ContainerStats, error)

	Images(ctx context.Context) ([]domain.ImageSummary, error)
	PullImage(ctx context.Context, ref string) error
	PushImage(ctx context.Context, ref string) error
	TagImage(ctx context.Context, source, target string) error
	RemoveImage(ctx context.Context, ref string) error
}

// Stub is a Gateway with no backing runtime. Mutations succeed as no-ops and
// queries return empty results, which keeps dashboards usable when the daemon
// is unreachable.
type Stub struct{}

var _ Gateway = Stub{}

func (Stub) Ping(context.Context) error { return nil }

func (Stub) Build(context.Context, string, string, BuildOutputCallback) error { return nil }

func (Stub) Run(context.Context, string, string, int, int) (ContainerInfo, error) {
	return ContainerInfo{}, nil
}

func (Stub) Stop(context.Context, string) error    { return nil }
func (Stub) Remove(context.Context, string) error  { return nil }
func (Stub) Start(context.Context, string) error   { return nil }
func (Stub) Restart(context.Context, string) error { return nil }

func (Stub) List(context.Context) ([]domain.RuntimeContainer, error) { return nil, nil }
func (Stub) Logs(context.Context, string, int) (string, error)       { return "", nil }

func (Stub) Inspect(context.Context, string) (domain.ContainerDetails, error) {
	return domain.ContainerDetails{}, ErrNotFound
}

func (Stub) Stats(context.Context, string) (domain.ContainerStats, error) {
	return domain.ContainerStats{}, ErrNotFound
}

func (Stub) Images(context.Context) ([]domain.ImageSummary, error) { return nil, nil }
func (Stub) PullImage(context.Context, string) error               { return nil }
func (Stub) PushImage(context.Context, string) error               { return nil }
func (Stub) TagImage(context.Context, string, string) error        { return nil }
func (Stub) RemoveImage(context.Context, string) error             { return nil }
