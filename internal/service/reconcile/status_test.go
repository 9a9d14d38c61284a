package reconcile

import "testing"

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		name     string
		status   string
		rawState string
		want     string
	}{
		{"up maps to running", "Up 3 hours", "running", "Running"},
		{"exited maps to exited", "Exited (0) 2 days ago", "exited", "Exited"},
		{"created maps to created", "Created", "created", "Created"},
		{"clock bug running", "Up 292 years", "running", "Running"},
		{"clock bug not running", "Exited (137) 292 years ago", "exited", "Exited"},
		{"clock bug trusts raw state over text", "Up 292 years", "exited", "Exited"},
		{"empty becomes unknown", "", "", "unknown"},
		{"unrecognized passes through", "Restarting (1) 5 seconds ago", "restarting", "Restarting (1) 5 seconds ago"},
	}
	for _, tc := range cases {
		if got := NormalizeStatus(tc.status, tc.rawState); got != tc.want {
			t.Fatalf("%s: NormalizeStatus(%q, %q) = %q, want %q", tc.name, tc.status, tc.rawState, got, tc.want)
		}
	}
}

func TestExtractName(t *testing.T) {
	cases := []struct {
		names []string
		want  string
	}{
		{[]string{"/autopod-demo-app-container"}, "autopod-demo-app-container"},
		{[]string{"plain-name"}, "plain-name"},
		{[]string{"", "/second"}, "second"},
		{[]string{}, "unknown"},
		{nil, "unknown"},
	}
	for _, tc := range cases {
		if got := ExtractName(tc.names); got != tc.want {
			t.Fatalf("ExtractName(%v) = %q, want %q", tc.names, got, tc.want)
		}
	}
}
