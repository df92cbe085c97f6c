package audit

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func Test_SanitiseKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key   string
		value string
		want  string
	}{
		{"GRAPH_CLIENT_SECRET", "super-secret", "set"},
		{"GRAPH_CLIENT_SECRET", "", "unset"},
		{"OPENAI_API_KEY", "sk-abc", "set"},
		{"QDRANT_API_KEY", "qk-abc", "set"},
		{"ORACULO_API_KEY", "", "unset"},
		{"GRAPH_TENANT_ID", "tenant-1", "tenant-1"},
		{"OLLAMA_HOST", "", "unset"},
	}
	for _, tc := range cases {
		if got := SanitiseKey(tc.key, tc.value); got != tc.want {
			t.Errorf("SanitiseKey(%q, %q) = %q, want %q", tc.key, tc.value, got, tc.want)
		}
	}
}

// Test_LogCommandStart_RedactsSecrets verifies that secret env values never
// appear in the emitted log line.
func Test_LogCommandStart_RedactsSecrets(t *testing.T) {
	t.Setenv("GRAPH_CLIENT_SECRET", "super-secret-value")
	t.Setenv("OPENAI_API_KEY", "sk-very-secret")
	t.Setenv("GRAPH_TENANT_ID", "tenant-visible")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	LogCommandStart(log, "ingest", "/etc/oraculo/config.yaml")

	out := buf.String()
	if strings.Contains(out, "super-secret-value") || strings.Contains(out, "sk-very-secret") {
		t.Fatalf("secret value leaked into audit log: %s", out)
	}
	if !strings.Contains(out, `"GRAPH_CLIENT_SECRET":"set"`) {
		t.Errorf("secret presence not recorded: %s", out)
	}
	if !strings.Contains(out, "tenant-visible") {
		t.Errorf("non-secret value missing: %s", out)
	}
	if !strings.Contains(out, `"command":"ingest"`) {
		t.Errorf("command name missing: %s", out)
	}
}

func Test_SanitiseConfigPath(t *testing.T) {
	t.Parallel()

	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("empty path: got %q, want none", got)
	}
	if got := sanitiseConfigPath("/etc/oraculo.yaml"); got != "/etc/oraculo.yaml" {
		t.Errorf("absolute path altered: %q", got)
	}
}
