// Package deploy drives the webhook-triggered build and deploy sequence.
package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/Ajay73588/autopod/internal/domain"
	"github.com/Ajay73588/autopod/internal/runtime"
	"github.com/Ajay73588/autopod/internal/service/source"
	"github.com/Ajay73588/autopod/internal/workspace"
	"github.com/Ajay73588/autopod/pkg/config"
)

// containerPort is the port the deployed workload listens on inside the
// container; the synthesized demo project serves on it too.
const containerPort = 80

const deployEventChannel = "deployments"

// Gateway is the slice of runtime capability the orchestrator consumes.
type Gateway interface {
	Build(ctx context.Context, dir, tag string, onOutput runtime.BuildOutputCallback) error
	Run(ctx context.Context, name, image string, hostPort, containerPort int) (runtime.ContainerInfo, error)
	Stop(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
}

// Materializer produces build-ready source for a classified request.
type Materializer interface {
	Fetch(ctx context.Context, req source.Request, dir string) (bool, error)
}

// Resyncer refreshes the persisted runtime-state mirror.
type Resyncer interface {
	Resync(ctx context.Context) (int, error)
}

// Broadcaster publishes deployment events to streaming clients.
type Broadcaster interface {
	Broadcast(channel string, payload []byte)
}

// Service coordinates the deployment state machine: materialize source,
// build the image, replace the previous container, start the new one on an
// allocated port, then refresh the mirror.
type Service struct {
	gateway   Gateway
	source    Materializer
	workspace *workspace.Manager
	resync    Resyncer
	hub       Broadcaster
	logger    *slog.Logger
	cfg       config.AutopodConfig
	allocate  func(preferred int) int

	// targetLocks serializes deployments that converge on the same
	// container name; concurrent webhooks for distinct targets still run
	// in parallel.
	targetLocks *sync.Map
}

// New creates a deployment service.
func New(gateway Gateway, materializer Materializer, ws *workspace.Manager, resyncer Resyncer, hub Broadcaster, allocate func(int) int, logger *slog.Logger, cfg config.AutopodConfig) Service {
	return Service{
		gateway:     gateway,
		source:      materializer,
		workspace:   ws,
		resync:      resyncer,
		hub:         hub,
		logger:      logger,
		cfg:         cfg,
		allocate:    allocate,
		targetLocks: &sync.Map{},
	}
}

// Deploy executes the full sequence for one webhook payload and returns a
// structured outcome. Only payload classification, image build and container
// start failures abort the deployment; teardown of a missing previous
// container, port exhaustion and a failed post-deploy resync are absorbed.
func (s Service) Deploy(ctx context.Context, payload []byte) (domain.Outcome, error) {
	req, err := source.ParseRequest(payload)
	if err != nil {
		s.logger.Warn("webhook payload rejected", "error", err)
		return domain.Outcome{
			Status:  domain.OutcomeError,
			Message: fmt.Sprintf("payload classification failed: %v", err),
		}, err
	}

	target := domain.NewBuildTarget(req.RepositoryName)
	unlock := s.lockTarget(target.ContainerName)
	defer unlock()

	if s.workspace == nil {
		return s.fail(target, "workspace", fmt.Errorf("workspace manager not initialised"))
	}
	workdir, err := s.workspace.Prepare(uuid.NewString())
	if err != nil {
		return s.fail(target, "workspace", err)
	}
	target.WorkingDir = workdir
	defer func() {
		if err := s.workspace.Cleanup(workdir); err != nil {
			s.logger.Error("workspace cleanup failed", "container", target.ContainerName, "error", err)
		}
	}()

	s.logger.Info("deployment received",
		"repository", req.RepositoryName, "image", target.ImageName, "container", target.ContainerName)
	s.emit("deployment_received", target, nil)

	usedDemo, err := s.source.Fetch(ctx, req, workdir)
	if err != nil {
		return s.fail(target, "source", err)
	}
	if usedDemo {
		s.logger.Info("demo project synthesized", "repository", req.RepositoryName)
	}

	buildCtx, cancel := context.WithTimeout(ctx, s.buildTimeout())
	defer cancel()
	s.emit("build_started", target, nil)
	err = s.gateway.Build(buildCtx, workdir, target.ImageName, func(line string) {
		s.logger.Debug("build output", "image", target.ImageName, "line", line)
	})
	if err != nil {
		return s.fail(target, "build", err)
	}
	s.emit("build_completed", target, nil)

	// Tearing down the previous instance is best effort: on a first deploy
	// there is nothing to stop, and a stale survivor makes the run below
	// fail loudly on the name conflict anyway.
	if err := s.gateway.Stop(ctx, target.ContainerName); err != nil {
		s.logger.Warn("stop previous container failed", "container", target.ContainerName, "error", err)
	}
	if err := s.gateway.Remove(ctx, target.ContainerName); err != nil {
		s.logger.Warn("remove previous container failed", "container", target.ContainerName, "error", err)
	}

	port := s.allocate(s.cfg.PreferredPort)

	info, err := s.gateway.Run(ctx, target.ContainerName, target.ImageName, port, containerPort)
	if err != nil {
		return s.fail(target, "run", err)
	}

	if _, err := s.resync.Resync(ctx); err != nil {
		// The container is already running; a stale dashboard is degraded
		// behavior, not a failed deployment.
		s.logger.Warn("post-deploy resync failed", "container", target.ContainerName, "error", err)
	}

	accessURL := fmt.Sprintf("http://localhost:%d", port)
	s.logger.Info("deployment completed",
		"container", target.ContainerName, "container_id", info.ID, "port", port, "url", accessURL)
	s.emit("deployment_ready", target, map[string]any{"port": port, "url": accessURL})

	return domain.Outcome{
		Status:         domain.OutcomeSuccess,
		Message:        fmt.Sprintf("deployed %s on port %d", req.RepositoryName, port),
		ContainerName:  target.ContainerName,
		ImageName:      target.ImageName,
		Port:           port,
		AccessURL:      accessURL,
		RepositoryName: req.RepositoryName,
	}, nil
}

func (s Service) buildTimeout() time.Duration {
	if s.cfg.BuildTimeout > 0 {
		return s.cfg.BuildTimeout
	}
	return 10 * time.Minute
}

func (s Service) lockTarget(containerName string) func() {
	value, _ := s.targetLocks.LoadOrStore(containerName, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s Service) fail(target domain.BuildTarget, stage string, err error) (domain.Outcome, error) {
	s.logger.Error("deployment stage failed",
		"stage", stage, "container", target.ContainerName, "error", err)
	s.emit("deployment_failed", target, map[string]any{"stage": stage, "error": err.Error()})
	wrapped := fmt.Errorf("%s failed: %w", stage, err)
	return domain.Outcome{
		Status:         domain.OutcomeError,
		Message:        wrapped.Error(),
		ContainerName:  target.ContainerName,
		ImageName:      target.ImageName,
		RepositoryName: target.RepositoryName,
	}, wrapped
}

func (s Service) emit(event string, target domain.BuildTarget, extra map[string]any) {
	if s.hub == nil {
		return
	}
	body := map[string]any{
		"event":      event,
		"repository": target.RepositoryName,
		"container":  target.ContainerName,
		"image":      target.ImageName,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range extra {
		body[k] = v
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return
	}
	s.hub.Broadcast(deployEventChannel, payload)
}
