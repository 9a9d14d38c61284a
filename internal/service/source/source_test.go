package source

import (
	"errors"
	"testing"
)

func TestParseRequestRepositoryPayload(t *testing.T) {
	payload := []byte(`{"repository":{"clone_url":"https://github.com/owner/WIDGET_Factory.git","name":"WIDGET_Factory"}}`)

	req, err := ParseRequest(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.CloneURL != "https://github.com/owner/WIDGET_Factory.git" {
		t.Fatalf("unexpected clone URL: %q", req.CloneURL)
	}
	if req.RepositoryName != "widget-factory" {
		t.Fatalf("expected slug widget-factory, got %q", req.RepositoryName)
	}
}

func TestParseRequestTestMarker(t *testing.T) {
	req, err := ParseRequest([]byte(`{"test":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.CloneURL != "" {
		t.Fatalf("test request should carry no clone URL, got %q", req.CloneURL)
	}
	if req.RepositoryName != testSlug {
		t.Fatalf("expected %q, got %q", testSlug, req.RepositoryName)
	}
}

func TestParseRequestRejectsUnknownPayload(t *testing.T) {
	cases := map[string]string{
		"empty object":     `{}`,
		"blank clone url":  `{"repository":{"clone_url":"  "}}`,
		"unrelated fields": `{"action":"opened"}`,
		"malformed json":   `{"repository":`,
	}
	for name, body := range cases {
		if _, err := ParseRequest([]byte(body)); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("%s: expected ErrInvalidPayload, got %v", name, err)
		}
	}
}

func TestSlug(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://github.com/owner/WIDGET_Factory.git", "widget-factory"},
		{"https://github.com/owner/repo", "repo"},
		{"https://github.com/owner/repo/", "repo"},
		{"git@github.com:owner/My Repo.git", "my-repo"},
		{"https://gitlab.com/group/sub/Another.App.git", "anotherapp"},
		{"https://github.com/owner/!!!.git", defaultSlug},
		{"", defaultSlug},
	}
	for _, tc := range cases {
		if got := Slug(tc.url); got != tc.want {
			t.Fatalf("Slug(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
