package runtime

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"
)

// Docker implements Gateway on the Docker-compatible engine API. Podman
// serves the same API on its socket, so either daemon works.
type Docker struct {
	inner *client.Client
}

var _ Gateway = (*Docker)(nil)

// NewDocker creates a gateway using environment defaults, optionally
// overriding the daemon host.
func NewDocker(host string) (*Docker, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	inner, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create runtime client: %w", err)
	}
	return &Docker{inner: inner}, nil
}

// Ping validates connectivity to the daemon.
func (d *Docker) Ping(ctx context.Context) error {
	if d == nil || d.inner == nil {
		return fmt.Errorf("runtime client not initialized")
	}
	ping, err := d.inner.Ping(ctx)
	if err != nil {
		return fmt.Errorf("runtime ping: %w", err)
	}
	if ping.APIVersion == "" {
		return fmt.Errorf("runtime ping returned empty API version")
	}
	return nil
}

// Close releases resources held by the client.
func (d *Docker) Close() error {
	if d.inner == nil {
		return nil
	}
	return d.inner.Close()
}
