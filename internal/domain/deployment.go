package domain

import "strings"

const imageNamePrefix = "autopod-"

// BuildTarget names the image and container a deployment converges on. Both
// names are pure functions of the repository slug, so redeploys of the same
// logical app always tear down and replace the same container.
type BuildTarget struct {
	RepositoryName string
	ImageName      string
	ContainerName  string
	WorkingDir     string
}

// NewBuildTarget derives deterministic image and container names for a slug.
func NewBuildTarget(slug string) BuildTarget {
	image := imageNamePrefix + strings.ToLower(strings.TrimSpace(slug))
	return BuildTarget{
		RepositoryName: slug,
		ImageName:      image,
		ContainerName:  image + "-container",
	}
}

// Deployment outcome statuses.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Outcome is the structured result returned to the webhook handler.
type Outcome struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	ContainerName  string `json:"container_name,omitempty"`
	ImageName      string `json:"image_name,omitempty"`
	Port           int    `json:"port,omitempty"`
	AccessURL      string `json:"access_url,omitempty"`
	RepositoryName string `json:"repository_name,omitempty"`
}
