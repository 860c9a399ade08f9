package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/respfilter/runtime/pkg/response"
)

// testFixturePath returns the path to test fixtures
func testFixturePath(filename string) string {
	return filepath.Join("..", "..", "internal", "config", "testdata", filename)
}

// runCLI runs the CLI in-process and returns stdout, stderr, and exit code
func runCLI(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	exitCode = execute(context.Background(), args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), exitCode
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func readBatch(t *testing.T, path string) response.Batch {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	var file response.File
	if err := json.Unmarshal(data, &file); err != nil {
		t.Fatalf("decoding %s: %v\n%s", path, err, data)
	}
	return file.Resps
}

func TestCLI_Help(t *testing.T) {
	stdout, _, exitCode := runCLI(t, "--help")

	if exitCode != ExitSuccess {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	for _, cmd := range []string{"validate", "run", "apply", "filters", "version"} {
		if !strings.Contains(stdout, cmd) {
			t.Errorf("help output missing command %q", cmd)
		}
	}
}

func TestCLI_Version(t *testing.T) {
	stdout, _, exitCode := runCLI(t, "version")

	if exitCode != ExitSuccess {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	if !strings.Contains(stdout, "Version: dev") {
		t.Errorf("unexpected version output: %s", stdout)
	}
}

func TestCLI_Filters(t *testing.T) {
	stdout, _, exitCode := runCLI(t, "filters")

	if exitCode != ExitSuccess {
		t.Fatalf("expected exit code 0, got %d", exitCode)
	}
	for _, name := range []string{"lowercase", "uppercase", "map", "first_clause", "gqa_pretrain_llama", "vizwiz_vicuna_pretrain"} {
		if !strings.Contains(stdout, name+"\n") {
			t.Errorf("filters output missing %q:\n%s", name, stdout)
		}
	}
}

func TestCLI_Validate(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{
			name:       "valid JSON",
			args:       []string{"validate", testFixturePath("valid-chain.json")},
			wantCode:   ExitSuccess,
			wantStdout: "Configuration is valid (format: json)",
		},
		{
			name:       "valid YAML verbose",
			args:       []string{"validate", "-v", testFixturePath("valid-chain.yaml")},
			wantCode:   ExitSuccess,
			wantStdout: "Chain: gqa-eval",
		},
		{
			name:       "syntax error",
			args:       []string{"validate", testFixturePath("invalid-syntax.json")},
			wantCode:   ExitParseError,
			wantStderr: "Parse errors",
		},
		{
			name:       "schema violation",
			args:       []string{"validate", testFixturePath("missing-filters.json")},
			wantCode:   ExitValidationError,
			wantStderr: "Validation errors",
		},
		{
			name:       "missing file",
			args:       []string{"validate", "does-not-exist.json"},
			wantCode:   ExitParseError,
			wantStderr: "Parse errors",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, code := runCLI(t, tt.args...)
			if code != tt.wantCode {
				t.Fatalf("exit code = %d, want %d\nstdout: %s\nstderr: %s", code, tt.wantCode, stdout, stderr)
			}
			if tt.wantStdout != "" && !strings.Contains(stdout, tt.wantStdout) {
				t.Errorf("stdout missing %q:\n%s", tt.wantStdout, stdout)
			}
			if tt.wantStderr != "" && !strings.Contains(stderr, tt.wantStderr) {
				t.Errorf("stderr missing %q:\n%s", tt.wantStderr, stderr)
			}
		})
	}
}

func TestCLI_ValidateUnknownFilter(t *testing.T) {
	path := writeFile(t, t.TempDir(), "chain.yaml", `schemaVersion: "1.0.0"
chain:
  name: broken
  version: "1.0.0"
  filters:
    - type: titlecase
`)

	_, stderr, code := runCLI(t, "validate", path)
	if code != ExitValidationError {
		t.Fatalf("exit code = %d, want %d", code, ExitValidationError)
	}
	if !strings.Contains(stderr, "titlecase") {
		t.Errorf("stderr does not name the unknown filter:\n%s", stderr)
	}
}

func TestCLI_Apply(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.json", `{"resps": [["Yes, it is", "No."], ["Unanswerable, blurry"]]}`)
	out := filepath.Join(dir, "out.json")

	_, stderr, code := runCLI(t, "apply", "first_clause", "vizwiz_vicuna_pretrain", "-i", in, "-o", out)
	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}

	want := response.Batch{{"Yes", "no"}, {`Unanswerable"`}}
	if got := readBatch(t, out); !reflect.DeepEqual(got, want) {
		t.Errorf("output = %#v, want %#v", got, want)
	}
}

func TestCLI_ApplyUnknownFilter(t *testing.T) {
	in := writeFile(t, t.TempDir(), "in.json", `{"resps": [["a"]]}`)

	_, stderr, code := runCLI(t, "apply", "titlecase", "-i", in, "--dry-run")
	if code != ExitValidationError {
		t.Fatalf("exit code = %d, want %d", code, ExitValidationError)
	}
	if !strings.Contains(stderr, "Failed to create modules") {
		t.Errorf("unexpected stderr: %s", stderr)
	}
}

func TestCLI_ApplyRejectsConfiguredFilters(t *testing.T) {
	in := writeFile(t, t.TempDir(), "in.json", `{"resps": [["a"]]}`)

	for _, filterType := range []string{"map", "condition", "script"} {
		t.Run(filterType, func(t *testing.T) {
			stdout, stderr, code := runCLI(t, "apply", "lowercase", filterType, "-i", in)
			if code != ExitRuntimeError {
				t.Fatalf("exit code = %d, want %d", code, ExitRuntimeError)
			}
			if !strings.Contains(stderr, "needs configuration") {
				t.Errorf("unexpected stderr: %s", stderr)
			}
			if stdout != "" {
				t.Errorf("stdout should be empty, got %q", stdout)
			}
		})
	}
}

func TestCLI_RunWithOverrides(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.jsonl", "{\"resps\": [\"YES\"]}\n{\"resps\": [\"maybe\"]}\n")
	out := filepath.Join(dir, "out.json")
	cfg := writeFile(t, dir, "chain.yaml", `schemaVersion: "1.0.0"
chain:
  name: scores
  version: "1.0.0"
  filters:
    - type: lowercase
    - type: map
      config:
        mapping:
          "yes": 1
        default: 0
`)

	stdout, stderr, code := runCLI(t, "run", cfg, "--input", in, "--output", out)
	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Documents processed: 2") {
		t.Errorf("stdout missing summary:\n%s", stdout)
	}

	want := response.Batch{{float64(1)}, {float64(0)}}
	if got := readBatch(t, out); !reflect.DeepEqual(got, want) {
		t.Errorf("output = %#v, want %#v", got, want)
	}
}

func TestCLI_RunDryRun(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "chain.yaml", `schemaVersion: "1.0.0"
chain:
  name: preview
  version: "1.0.0"
  input:
    type: inline
    config:
      resps:
        - ["Unanswerable, too dark"]
  filters:
    - type: vizwiz_vicuna_pretrain
  output:
    type: file
    config:
      path: `+filepath.Join(dir, "never.json")+`
`)

	stdout, stderr, code := runCLI(t, "run", cfg, "--dry-run")
	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, `"Unanswerable, too dark" -> "Unanswerable\""`) {
		t.Errorf("stdout missing preview:\n%s", stdout)
	}
	if _, err := os.Stat(filepath.Join(dir, "never.json")); !os.IsNotExist(err) {
		t.Errorf("dry run wrote output (stat err = %v)", err)
	}
}

func TestCLI_RunFilterFailure(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.json", `{"resps": [[3]]}`)
	cfg := writeFile(t, dir, "chain.yaml", `schemaVersion: "1.0.0"
chain:
  name: bad-input
  version: "1.0.0"
  filters:
    - type: uppercase
`)

	_, stderr, code := runCLI(t, "run", cfg, "-i", in, "-o", filepath.Join(dir, "out.json"))
	if code != ExitRuntimeError {
		t.Fatalf("exit code = %d, want %d", code, ExitRuntimeError)
	}
	if !strings.Contains(stderr, "Chain execution failed") {
		t.Errorf("stderr missing failure:\n%s", stderr)
	}
}

func TestCLI_BadLogFormat(t *testing.T) {
	_, _, code := runCLI(t, "--log-format", "xml", "filters")
	if code != ExitRuntimeError {
		t.Errorf("exit code = %d, want %d", code, ExitRuntimeError)
	}
}

func TestCLI_UsageError(t *testing.T) {
	_, stderr, code := runCLI(t, "validate")
	if code != ExitRuntimeError {
		t.Errorf("exit code = %d, want %d", code, ExitRuntimeError)
	}
	if !strings.Contains(stderr, "Error:") {
		t.Errorf("usage error not reported: %q", stderr)
	}
}

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "RESPFILTER_LOG_FORMAT=human\nRESPFILTER_LOG_MAX_SIZE_MB=25\n")
	t.Setenv("RESPFILTER_LOG_LEVEL", "debug")
	t.Setenv("RESPFILTER_CONFIG_DIR", dir)
	// godotenv does not override variables already present
	t.Setenv("RESPFILTER_LOG_FORMAT", "")
	os.Unsetenv("RESPFILTER_LOG_FORMAT")
	t.Setenv("RESPFILTER_LOG_MAX_SIZE_MB", "")
	os.Unsetenv("RESPFILTER_LOG_MAX_SIZE_MB")

	s, err := loadSettings(envFile)
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	want := settings{LogLevel: "debug", LogFormat: "human", LogMaxSizeMB: 25, ConfigDir: dir}
	if s != want {
		t.Errorf("settings = %+v, want %+v", s, want)
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	s, err := loadSettings(filepath.Join(t.TempDir(), "absent.env"))
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if s.LogMaxSizeMB == 0 || s.LogLevel == "" {
		t.Errorf("defaults not applied: %+v", s)
	}
}

func TestWritesStdout(t *testing.T) {
	if writesStdout(nil) {
		t.Error("nil output reported as stdout")
	}
}
