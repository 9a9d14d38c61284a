package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/Ajay73588/autopod/internal/domain"
)

// Run creates and starts a container publishing hostPort -> containerPort.
func (d *Docker) Run(ctx context.Context, name, image string, hostPort, containerPort int) (ContainerInfo, error) {
	if strings.TrimSpace(name) == "" {
		return ContainerInfo{}, fmt.Errorf("container name cannot be empty")
	}
	if strings.TrimSpace(image) == "" {
		return ContainerInfo{}, fmt.Errorf("image name cannot be empty")
	}

	port, err := nat.NewPort("tcp", strconv.Itoa(containerPort))
	if err != nil {
		return ContainerInfo{}, fmt.Errorf("container port: %w", err)
	}

	cfg := &container.Config{
		Image:        image,
		ExposedPorts: nat.PortSet{port: struct{}{}},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(hostPort)}},
		},
		RestartPolicy: container.RestartPolicy{Name: "always"},
	}

	r, err := d.inner.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		return ContainerInfo{}, fmt.Errorf("container create: %w", err)
	}
	if err := d.inner.ContainerStart(ctx, r.ID, container.StartOptions{}); err != nil {
		return ContainerInfo{}, fmt.Errorf("container start: %w", err)
	}
	return ContainerInfo{ID: r.ID, HostPort: hostPort}, nil
}

// Stop stops a container; a missing container is not an error.
func (d *Docker) Stop(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("container name cannot be empty")
	}
	if err := d.inner.ContainerStop(ctx, name, container.StopOptions{}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("stop container: %w", err)
	}
	return nil
}

// Remove force-removes a container; a missing container is not an error.
func (d *Docker) Remove(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("container name cannot be empty")
	}
	if err := d.inner.ContainerRemove(ctx, name, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove container: %w", err)
	}
	return nil
}

// Start starts a stopped container.
func (d *Docker) Start(ctx context.Context, name string) error {
	if err := d.inner.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		if client.IsErrNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("start container: %w", err)
	}
	return nil
}

// Restart restarts a container.
func (d *Docker) Restart(ctx context.Context, name string) error {
	if err := d.inner.ContainerRestart(ctx, name, container.StopOptions{}); err != nil {
		if client.IsErrNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("restart container: %w", err)
	}
	return nil
}

// List returns every container known to the daemon, running or not.
func (d *Docker) List(ctx context.Context) ([]domain.RuntimeContainer, error) {
	listed, err := d.inner.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	containers := make([]domain.RuntimeContainer, 0, len(listed))
	for _, c := range listed {
		containers = append(containers, domain.RuntimeContainer{
			ID:      c.ID,
			Names:   c.Names,
			Image:   c.Image,
			Status:  c.Status,
			State:   c.State,
			Created: c.Created,
		})
	}
	return containers, nil
}

// Logs fetches a bounded log tail. Stdout and stderr are demultiplexed and
// concatenated in arrival order.
func (d *Docker) Logs(ctx context.Context, nameOrID string, tail int) (string, error) {
	if strings.TrimSpace(nameOrID) == "" {
		return "", fmt.Errorf("container reference cannot be empty")
	}
	opts := container.LogsOptions{ShowStdout: true, ShowStderr: true}
	if tail > 0 {
		opts.Tail = strconv.Itoa(tail)
	}
	rc, err := d.inner.ContainerLogs(ctx, nameOrID, opts)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("container logs: %w", err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, rc); err != nil {
		return "", fmt.Errorf("read container logs: %w", err)
	}
	return buf.String(), nil
}

// Inspect returns structured metadata for a container.
func (d *Docker) Inspect(ctx context.Context, name string) (domain.ContainerDetails, error) {
	info, err := d.inner.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return domain.ContainerDetails{}, ErrNotFound
		}
		return domain.ContainerDetails{}, fmt.Errorf("inspect container: %w", err)
	}

	details := domain.ContainerDetails{
		ID:           info.ID,
		Name:         strings.TrimPrefix(info.Name, "/"),
		RestartCount: info.RestartCount,
	}
	if info.Config != nil {
		details.Image = info.Config.Image
	}
	if info.State != nil {
		details.State = info.State.Status
		details.StartedAt = info.State.StartedAt
		if info.State.Health != nil {
			details.Health = info.State.Health.Status
		}
	}
	if info.NetworkSettings != nil && info.NetworkSettings.Ports != nil {
		details.Ports = make(map[string]string)
		for port, bindings := range info.NetworkSettings.Ports {
			if len(bindings) > 0 {
				details.Ports[string(port)] = bindings[0].HostPort
			}
		}
	}
	return details, nil
}

// Stats returns a one-shot resource usage sample.
func (d *Docker) Stats(ctx context.Context, nameOrID string) (domain.ContainerStats, error) {
	resp, err := d.inner.ContainerStatsOneShot(ctx, nameOrID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return domain.ContainerStats{}, ErrNotFound
		}
		return domain.ContainerStats{}, fmt.Errorf("container stats: %w", err)
	}
	defer resp.Body.Close()

	var stats types.StatsJSON
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return domain.ContainerStats{}, fmt.Errorf("decode container stats: %w", err)
	}

	return domain.ContainerStats{
		CPUPercent:  cpuPercent(stats),
		MemoryUsage: stats.MemoryStats.Usage,
		MemoryLimit: stats.MemoryStats.Limit,
	}, nil
}

func cpuPercent(stats types.StatsJSON) float64 {
	cpuDelta := float64(stats.CPUStats.CPUUsage.TotalUsage) - float64(stats.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(stats.CPUStats.SystemUsage) - float64(stats.PreCPUStats.SystemUsage)
	if cpuDelta <= 0 || systemDelta <= 0 {
		return 0
	}
	onlineCPUs := float64(stats.CPUStats.OnlineCPUs)
	if onlineCPUs == 0 {
		onlineCPUs = float64(len(stats.CPUStats.CPUUsage.PercpuUsage))
	}
	if onlineCPUs == 0 {
		onlineCPUs = 1
	}
	return cpuDelta / systemDelta * onlineCPUs * 100
}
