package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	// Server section absent; every field falls back to its default.
	p := writeConfig(t, `other:
  key: value
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Server.GRPCPort != DefaultGRPCPort {
		t.Errorf("grpc_port: got %d, want %d", cfg.Server.GRPCPort, DefaultGRPCPort)
	}
	if cfg.Server.Log.Level != DefaultLogLevel || cfg.Server.Log.Format != DefaultLogFormat {
		t.Errorf("log: got %+v, want info/json", cfg.Server.Log)
	}
	if cfg.Server.WS.ReadLimit != DefaultWSReadLimit {
		t.Errorf("ws.read_limit: got %d, want %d", cfg.Server.WS.ReadLimit, DefaultWSReadLimit)
	}
}

func TestLoad_FullServer(t *testing.T) {
	p := writeConfig(t, `server:
  http_port: 9091
  grpc_port: 9090
  auth:
    mode: apikey
    key_env: MY_KEY
    header: X-Metage-Key
  log:
    level: debug
    format: text
  ws:
    read_limit: 1024
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 9091 {
		t.Errorf("http_port: got %d, want 9091", cfg.Server.HTTPPort)
	}
	if cfg.Server.Auth.Mode != "apikey" {
		t.Errorf("auth.mode: got %q, want apikey", cfg.Server.Auth.Mode)
	}
	if h := cfg.Server.Auth.EffectiveHeader(); h != "x-metage-key" {
		t.Errorf("header: got %q, want x-metage-key", h)
	}
	if lvl := cfg.Server.Log.SlogLevel(); lvl != slog.LevelDebug {
		t.Errorf("log level: got %v, want DEBUG", lvl)
	}
	if cfg.Server.WS.ReadLimit != 1024 {
		t.Errorf("ws.read_limit: got %d, want 1024", cfg.Server.WS.ReadLimit)
	}
}

func TestLoad_DefaultHeader(t *testing.T) {
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: K
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h := cfg.Server.Auth.EffectiveHeader(); h != "x-api-key" {
		t.Errorf("EffectiveHeader: got %q, want x-api-key", h)
	}
}

func TestLoad_KeyEnvResolution(t *testing.T) {
	t.Setenv("TEST_SERVER_KEY", "supersecret")
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: TEST_SERVER_KEY
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if k := cfg.Server.Auth.Key(); k != "supersecret" {
		t.Errorf("Key(): got %q, want supersecret", k)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown auth mode", "server:\n  auth:\n    mode: oauth2\n"},
		{"apikey without key_env", "server:\n  auth:\n    mode: apikey\n"},
		{"http port out of range", "server:\n  http_port: 70000\n"},
		{"grpc port zero", "server:\n  grpc_port: -1\n"},
		{"ports collide", "server:\n  http_port: 9000\n  grpc_port: 9000\n"},
		{"unknown log level", "server:\n  log:\n    level: verbose\n"},
		{"unknown log format", "server:\n  log:\n    format: xml\n"},
		{"non-positive read limit", "server:\n  ws:\n    read_limit: 0\n"},
		{"malformed yaml", "server: [unclosed\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.content)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte("METAGE_TEST_ENV_KEY=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("METAGE_TEST_ENV_KEY", "")
	os.Unsetenv("METAGE_TEST_ENV_KEY")

	if err := LoadEnvFile(p); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("METAGE_TEST_ENV_KEY"); got != "from-file" {
		t.Errorf("env: got %q, want from-file", got)
	}
}

func TestLoadEnvFile_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte("METAGE_TEST_PRESET=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("METAGE_TEST_PRESET", "from-process")

	if err := LoadEnvFile(p); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("METAGE_TEST_PRESET"); got != "from-process" {
		t.Errorf("env: got %q, want from-process", got)
	}
}

func TestLoadEnvFile_MissingIsNotError(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("LoadEnvFile on missing file: %v", err)
	}
	if err := LoadEnvFile(""); err != nil {
		t.Fatalf("LoadEnvFile on empty path: %v", err)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	p := writeConfig(t, "server:\n  log:\n    level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan *Config, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, p, func(c *Config) { changed <- c }, nil)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(p, []byte("server:\n  log:\n    level: debug\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	// WriteFile truncates first, so an intermediate reload of the empty file
	// (all defaults) may arrive before the final one.
	deadline := time.After(3 * time.Second)
	for reloaded := false; !reloaded; {
		select {
		case c := <-changed:
			reloaded = c.Server.Log.Level == "debug"
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_InvalidReloadKeepsPrevious(t *testing.T) {
	p := writeConfig(t, "server:\n  log:\n    level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan *Config, 16)
	failed := make(chan error, 16)
	go Watch(ctx, p, func(c *Config) { changed <- c }, func(err error) { failed <- err }) //nolint:errcheck

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(p, []byte("server:\n  log:\n    level: shouting\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case <-failed:
			return
		case c := <-changed:
			// Only the truncated intermediate file may load successfully.
			if c.Server.Log.Level != DefaultLogLevel {
				t.Fatalf("onChange called with invalid config %+v", c.Server.Log)
			}
		case <-deadline:
			t.Fatal("timed out waiting for reload failure")
		}
	}
}

// atomicSave replaces p the way editors and config managers do: write a
// sibling temp file, then rename it over p.
func atomicSave(t *testing.T, p, content string) {
	t.Helper()
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		t.Fatalf("rename temp config: %v", err)
	}
}

func TestWatch_FollowsAtomicRenameSaves(t *testing.T) {
	p := writeConfig(t, "server:\n  log:\n    level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan *Config, 16)
	go Watch(ctx, p, func(c *Config) { changed <- c }, nil) //nolint:errcheck
	time.Sleep(100 * time.Millisecond)

	waitFor := func(level string) {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			select {
			case c := <-changed:
				if c.Server.Log.Level == level {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for reload with level %q", level)
			}
		}
	}

	// The second save only reloads if the first rename did not end the watch.
	atomicSave(t, p, "server:\n  log:\n    level: debug\n")
	waitFor("debug")
	atomicSave(t, p, "server:\n  log:\n    level: error\n")
	waitFor("error")
}

func TestWatch_IgnoresSiblingFiles(t *testing.T) {
	p := writeConfig(t, "server:\n  log:\n    level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan *Config, 16)
	go Watch(ctx, p, func(c *Config) { changed <- c }, nil) //nolint:errcheck
	time.Sleep(100 * time.Millisecond)

	other := filepath.Join(filepath.Dir(p), "notes.txt")
	if err := os.WriteFile(other, []byte("unrelated"), 0o600); err != nil {
		t.Fatalf("write sibling: %v", err)
	}

	select {
	case c := <-changed:
		t.Fatalf("reload triggered by sibling file: %+v", c.Server.Log)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(context.Background(), "/nonexistent/config.yaml", func(*Config) {}, nil)
	if err == nil {
		t.Fatal("expected error watching a missing file")
	}
}
