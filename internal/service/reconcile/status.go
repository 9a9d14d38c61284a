package reconcile

import (
	"strings"

	"github.com/Ajay73588/autopod/internal/domain"
)

// clockBugMarker appears in status strings when the runtime reports a zero
// creation time ("Created 292 years ago" style output). The status text is
// useless in that case, so the raw state decides.
const clockBugMarker = "292 years"

// NormalizeStatus maps a runtime status string onto the canonical mirror
// statuses. Unrecognized non-empty strings pass through verbatim; an empty
// status becomes "unknown".
func NormalizeStatus(status, rawState string) string {
	s := strings.TrimSpace(status)

	if strings.Contains(s, clockBugMarker) {
		if strings.EqualFold(strings.TrimSpace(rawState), "running") {
			return domain.StatusRunning
		}
		return domain.StatusExited
	}

	switch {
	case strings.Contains(s, "Exited"):
		return domain.StatusExited
	case strings.Contains(s, "Up"):
		return domain.StatusRunning
	case strings.Contains(s, "Created"):
		return domain.StatusCreated
	}

	if s == "" {
		return domain.StatusUnknown
	}
	return s
}

// ExtractName picks the canonical container name from a runtime listing:
// the first entry of the names list with any leading slash removed, or
// "unknown" when the runtime reported no names.
func ExtractName(names []string) string {
	for _, name := range names {
		trimmed := strings.TrimPrefix(strings.TrimSpace(name), "/")
		if trimmed != "" {
			return trimmed
		}
	}
	return "unknown"
}
