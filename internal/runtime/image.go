package runtime

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"

	"github.com/Ajay73588/autopod/internal/domain"
)

// Images lists local images.
func (d *Docker) Images(ctx context.Context) ([]domain.ImageSummary, error) {
	listed, err := d.inner.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	images := make([]domain.ImageSummary, 0, len(listed))
	for _, img := range listed {
		images = append(images, domain.ImageSummary{
			ID:      img.ID,
			Tags:    img.RepoTags,
			Size:    img.Size,
			Created: img.Created,
		})
	}
	return images, nil
}

// PullImage pulls an image reference, draining the progress stream.
func (d *Docker) PullImage(ctx context.Context, ref string) error {
	if strings.TrimSpace(ref) == "" {
		return fmt.Errorf("image reference cannot be empty")
	}
	rc, err := d.inner.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image: %w", err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("pull image stream: %w", err)
	}
	return nil
}

// PushImage pushes an image reference to its registry.
func (d *Docker) PushImage(ctx context.Context, ref string) error {
	if strings.TrimSpace(ref) == "" {
		return fmt.Errorf("image reference cannot be empty")
	}
	// The daemon requires the auth header even for anonymous pushes.
	auth := base64.URLEncoding.EncodeToString([]byte("{}"))
	rc, err := d.inner.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: auth})
	if err != nil {
		return fmt.Errorf("push image: %w", err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("push image stream: %w", err)
	}
	return nil
}

// TagImage applies target as an additional tag on source.
func (d *Docker) TagImage(ctx context.Context, source, target string) error {
	if strings.TrimSpace(source) == "" || strings.TrimSpace(target) == "" {
		return fmt.Errorf("source and target references are required")
	}
	if err := d.inner.ImageTag(ctx, source, target); err != nil {
		return fmt.Errorf("tag image: %w", err)
	}
	return nil
}

// RemoveImage removes an image reference.
func (d *Docker) RemoveImage(ctx context.Context, ref string) error {
	if strings.TrimSpace(ref) == "" {
		return fmt.Errorf("image reference cannot be empty")
	}
	if _, err := d.inner.ImageRemove(ctx, ref, image.RemoveOptions{PruneChildren: true}); err != nil {
		if client.IsErrNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}
