package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"log/slog"

	"github.com/Ajay73588/autopod/internal/git"
)

// Build descriptor filenames the runtime accepts interchangeably. The
// synthesized demo writes both for maximum compatibility.
var descriptorNames = []string{"Containerfile", "Dockerfile"}

const demoDescriptor = `FROM nginx:alpine
COPY index.html /usr/share/nginx/html/index.html
EXPOSE 80
CMD ["nginx", "-g", "daemon off;"]
`

const demoPageTemplate = `<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body>
  <h1>%s</h1>
  <p>Deployed by autopod.</p>
  <p>Generated at %s.</p>
</body>
</html>
`

// Materializer produces a build-ready directory for a classified request,
// cloning the real repository when possible and synthesizing a demo project
// otherwise.
type Materializer struct {
	gitTimeout time.Duration
	logger     *slog.Logger
	clone      func(ctx context.Context, repoURL, dest string) error
	now        func() time.Time
}

// NewMaterializer constructs a Materializer with the provided clone timeout.
func NewMaterializer(gitTimeout time.Duration, logger *slog.Logger) *Materializer {
	if gitTimeout <= 0 {
		gitTimeout = 120 * time.Second
	}
	return &Materializer{
		gitTimeout: gitTimeout,
		logger:     logger,
		clone:      git.Clone,
		now:        time.Now,
	}
}

// Fetch fills dir with buildable source for the request. Cloning is a
// best-effort enhancement: any clone failure, and any cloned tree without a
// build descriptor, degrades to the synthesized demo project rather than
// failing the deployment. The returned bool reports whether the demo path
// was taken.
func (m *Materializer) Fetch(ctx context.Context, req Request, dir string) (bool, error) {
	cloned := false
	if req.CloneURL != "" {
		cloneCtx, cancel := context.WithTimeout(ctx, m.gitTimeout)
		err := m.clone(cloneCtx, req.CloneURL, dir)
		cancel()
		if err != nil {
			m.logger.Warn("clone failed, falling back to demo project",
				"repository", req.RepositoryName, "url", req.CloneURL, "error", err)
			if err := clearDir(dir); err != nil {
				return false, fmt.Errorf("reset workspace after failed clone: %w", err)
			}
		} else {
			cloned = true
		}
	}

	if cloned && hasBuildDescriptor(dir) {
		return false, nil
	}
	if cloned {
		m.logger.Info("cloned repository has no build descriptor, synthesizing demo project",
			"repository", req.RepositoryName)
	}

	if err := m.writeDemoProject(dir, req.RepositoryName); err != nil {
		return false, fmt.Errorf("synthesize demo project: %w", err)
	}
	return true, nil
}

func (m *Materializer) writeDemoProject(dir, repositoryName string) error {
	page := fmt.Sprintf(demoPageTemplate, repositoryName, repositoryName, m.now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(page), 0o644); err != nil {
		return err
	}
	for _, name := range descriptorNames {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(demoDescriptor), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func hasBuildDescriptor(dir string) bool {
	for _, name := range descriptorNames {
		info, err := os.Stat(filepath.Join(dir, name))
		if err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
