package domain

import "time"

// Canonical container statuses persisted in the mirror. Anything the
// normalizer cannot recognize passes through verbatim.
const (
	StatusRunning = "Running"
	StatusExited  = "Exited"
	StatusCreated = "Created"
	StatusUnknown = "unknown"
)

// ContainerRecord is one row of the container mirror table. CreatedAt is the
// sync timestamp, not the container's own creation time.
type ContainerRecord struct {
	ContainerName string    `json:"container_name"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// LogRecord is one mirrored log line owned by a container.
type LogRecord struct {
	ContainerName string    `json:"container_name"`
	Log           string    `json:"log"`
	Timestamp     time.Time `json:"timestamp"`
}

// RuntimeContainer is a container as listed by the runtime daemon.
type RuntimeContainer struct {
	ID      string   `json:"id"`
	Names   []string `json:"names"`
	Image   string   `json:"image"`
	Status  string   `json:"status"`
	State   string   `json:"state"`
	Created int64    `json:"created"`
}

// ContainerDetails is the inspect view of a single container.
type ContainerDetails struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Image        string            `json:"image"`
	State        string            `json:"state"`
	Health       string            `json:"health,omitempty"`
	RestartCount int               `json:"restart_count"`
	StartedAt    string            `json:"started_at,omitempty"`
	Ports        map[string]string `json:"ports,omitempty"`
}

// ContainerStats is a one-shot resource usage sample.
type ContainerStats struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryUsage uint64  `json:"memory_usage"`
	MemoryLimit uint64  `json:"memory_limit"`
}

// ImageSummary describes a local image.
type ImageSummary struct {
	ID      string   `json:"id"`
	Tags    []string `json:"tags"`
	Size    int64    `json:"size"`
	Created int64    `json:"created"`
}
