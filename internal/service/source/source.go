// Package source turns webhook payloads into build-ready directories.
package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPayload marks a payload that names no deployable source. This is
// the only materialization failure that aborts a deployment.
var ErrInvalidPayload = errors.New("invalid webhook payload")

const (
	// defaultSlug is used when a clone URL yields no usable repository name.
	defaultSlug = "demo-app"
	// testSlug is the fixed identity assigned to test-marker payloads.
	testSlug = "test-deploy"
)

// Request is the classified form of a webhook payload.
type Request struct {
	CloneURL       string
	RepositoryName string
}

type webhookPayload struct {
	Repository *struct {
		CloneURL string `json:"clone_url"`
		Name     string `json:"name"`
	} `json:"repository"`
	Test bool `json:"test"`
}

// ParseRequest classifies a raw webhook payload. It performs no side effects:
// a payload with neither a repository descriptor nor a test marker is
// rejected before any filesystem or runtime mutation happens.
func ParseRequest(payload []byte) (Request, error) {
	var body webhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if body.Repository != nil && strings.TrimSpace(body.Repository.CloneURL) != "" {
		url := strings.TrimSpace(body.Repository.CloneURL)
		return Request{CloneURL: url, RepositoryName: Slug(url)}, nil
	}
	if body.Test {
		return Request{RepositoryName: testSlug}, nil
	}
	return Request{}, fmt.Errorf("%w: missing repository descriptor", ErrInvalidPayload)
}

// Slug derives an identifier-safe short name from a clone URL: the path
// segment after the owner, without the .git suffix, lower-cased, with spaces
// and underscores collapsed to hyphens and every other non-alphanumeric rune
// dropped. Extraction failures fall back to the default slug.
func Slug(cloneURL string) string {
	trimmed := strings.TrimSpace(cloneURL)
	trimmed = strings.TrimSuffix(trimmed, "/")

	// Strip scheme and host; what remains is owner/repo for both HTTPS and
	// scp-like SSH remotes.
	if idx := strings.Index(trimmed, "://"); idx >= 0 {
		trimmed = trimmed[idx+3:]
	}
	trimmed = strings.TrimPrefix(trimmed, "git@")
	trimmed = strings.ReplaceAll(trimmed, ":", "/")

	segments := strings.Split(trimmed, "/")
	name := segments[len(segments)-1]
	name = strings.TrimSuffix(name, ".git")
	name = strings.ToLower(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ' ', r == '_':
			b.WriteRune('-')
		}
	}
	slug := b.String()
	if slug == "" {
		return defaultSlug
	}
	return slug
}
