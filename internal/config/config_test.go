package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// writeConfig writes data to a fresh config.toml and returns its path.
func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadData(t *testing.T, data string) (*Config, error) {
	t.Helper()
	return Load(&CLI{Config: writeConfig(t, data)})
}

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := loadData(t, `
[server]
host = "127.0.0.1"
port = 9000
public_url = "https://relay.example.com/"

[server.cors]
allowed_origins = ["https://player.example.com"]

[server.rate_limit]
enabled = true
requests_per_second = 50.0

[upstream]
timeout_seconds = 30
max_response_bytes = 1048576
insecure_skip_verify = false
user_agent = "custom-agent/1.0"

[upstream.headers]
Referer = "https://site.example.com/"

[log]
level = "debug"
format = "text"

[metrics]
enabled = true
path = "/custom-metrics"
`)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.Server.Addr(); got != "127.0.0.1:9000" {
		t.Errorf("Server.Addr() = %q, want %q", got, "127.0.0.1:9000")
	}
	if cfg.Server.PublicURL != "https://relay.example.com" {
		t.Errorf("Server.PublicURL = %q, want trailing slash trimmed", cfg.Server.PublicURL)
	}
	if o := cfg.Server.CORS.AllowedOrigins; len(o) != 1 || o[0] != "https://player.example.com" {
		t.Errorf("Server.CORS.AllowedOrigins = %v", o)
	}
	if !cfg.Server.RateLimit.Enabled || cfg.Server.RateLimit.RequestsPerSecond != 50 {
		t.Errorf("Server.RateLimit = %+v, want enabled at 50 rps", cfg.Server.RateLimit)
	}
	if cfg.Upstream.TimeoutSeconds != 30 {
		t.Errorf("Upstream.TimeoutSeconds = %d, want %d", cfg.Upstream.TimeoutSeconds, 30)
	}
	if cfg.Upstream.MaxResponseBytes != 1048576 {
		t.Errorf("Upstream.MaxResponseBytes = %d, want %d", cfg.Upstream.MaxResponseBytes, 1048576)
	}
	if cfg.Upstream.SkipTLSVerify() {
		t.Error("Upstream.SkipTLSVerify() = true, want false when explicitly disabled")
	}
	if cfg.Upstream.UserAgent != "custom-agent/1.0" {
		t.Errorf("Upstream.UserAgent = %q, want %q", cfg.Upstream.UserAgent, "custom-agent/1.0")
	}
	if cfg.Upstream.Headers["Referer"] != "https://site.example.com/" {
		t.Errorf("Upstream.Headers[Referer] = %q", cfg.Upstream.Headers["Referer"])
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v, want debug/text", cfg.Log)
	}
	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/custom-metrics")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadData(t, "[metrics]\nenabled = true\n")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"Server.Host", cfg.Server.Host, "0.0.0.0"},
		{"Server.Port", cfg.Server.Port, 3000},
		{"Server.BodyMaxBytes", cfg.Server.BodyMaxBytes, int64(1024 * 1024)},
		{"Server.CORS.AllowedOrigins", strings.Join(cfg.Server.CORS.AllowedOrigins, ","), "*"},
		{"Server.RateLimit.Enabled", cfg.Server.RateLimit.Enabled, false},
		{"Upstream.TimeoutSeconds", cfg.Upstream.TimeoutSeconds, 60},
		{"Upstream.IdleConnections", cfg.Upstream.IdleConnections, 100},
		{"Upstream.MaxResponseBytes", cfg.Upstream.MaxResponseBytes, int64(512 * 1024 * 1024)},
		{"Upstream.SkipTLSVerify", cfg.Upstream.SkipTLSVerify(), true},
		{"Upstream.UserAgent", cfg.Upstream.UserAgent, DefaultUserAgent},
		{"Log.Level", cfg.Log.Level, "info"},
		{"Log.Format", cfg.Log.Format, "json"},
		{"Metrics.Path", cfg.Metrics.Path, "/metrics"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("default %s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestLoad_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"relative public_url", "[server]\npublic_url = \"/relay\"\n", "public_url"},
		{"public_url without scheme", "[server]\npublic_url = \"relay.example.com\"\n", "public_url"},
		{"ftp public_url", "[server]\npublic_url = \"ftp://relay.example.com\"\n", "public_url"},
		{"public_url with query", "[server]\npublic_url = \"https://relay.example.com/?a=1\"\n", "public_url"},
		{"negative port", "[server]\nport = -1\n", "server.port"},
		{"negative body_max_bytes", "[server]\nbody_max_bytes = -1\n", "body_max_bytes"},
		{"negative timeout", "[upstream]\ntimeout_seconds = -5\n", "timeout_seconds"},
		{"negative idle_connections", "[upstream]\nidle_connections = -1\n", "idle_connections"},
		{"negative max_response_bytes", "[upstream]\nmax_response_bytes = -1\n", "max_response_bytes"},
		{"invalid upstream header name", "[upstream.headers]\n\"Bad Header\" = \"x\"\n", "invalid header name"},
		{"invalid upstream header value", "[upstream.headers]\nX-Test = \"a\\r\\nb\"\n", "invalid value"},
		{"missing static_dir", "[server]\nstatic_dir = \"/nonexistent/hls-relay-static\"\n", "static_dir"},
		{"zero rate limit", "[server.rate_limit]\nenabled = true\nrequests_per_second = 0\n", "requests_per_second"},
		{"invalid log level", "[log]\nlevel = \"verbose\"\n", "log.level"},
		{"invalid log format", "[log]\nformat = \"xml\"\n", "log.format"},
		{"metrics path without slash", "[metrics]\nenabled = true\npath = \"metrics\"\n", "metrics.path"},
		{"metrics path on /proxy", "[metrics]\nenabled = true\npath = \"/proxy\"\n", "conflicts"},
		{"metrics path under /proxy", "[metrics]\nenabled = true\npath = \"/proxy/metrics\"\n", "conflicts"},
		{"metrics path on /health", "[metrics]\nenabled = true\npath = \"/health\"\n", "conflicts"},
		{"metrics path on /status", "[metrics]\nenabled = true\npath = \"/status\"\n", "conflicts"},
		{"malformed toml", "[server\nport = 1\n", "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadData(t, tt.data)
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MetricsDisabledSkipsPathValidation(t *testing.T) {
	if _, err := loadData(t, "[metrics]\nenabled = false\npath = \"bad-no-slash\"\n"); err != nil {
		t.Fatalf("Load() error = %v; disabled metrics should skip path validation", err)
	}
}

func TestLoad_StaticDir(t *testing.T) {
	dir := filepath.ToSlash(t.TempDir())
	cfg, err := loadData(t, "[server]\nstatic_dir = \""+dir+"\"\n")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.StaticDir != dir {
		t.Errorf("Server.StaticDir = %q, want %q", cfg.Server.StaticDir, dir)
	}

	file := writeConfig(t, "# not a directory")
	if _, err := loadData(t, "[server]\nstatic_dir = \""+filepath.ToSlash(file)+"\"\n"); err == nil {
		t.Fatal("Load() expected error when static_dir is a file, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(&CLI{Config: "/nonexistent/config.toml"}); err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	if findConfig() != "" {
		t.Skip("a system-wide config file exists")
	}

	cfg, err := Load(&CLI{Port: 8081})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8081)
	}
	if cfg.Upstream.UserAgent != DefaultUserAgent {
		t.Errorf("Upstream.UserAgent = %q, want default", cfg.Upstream.UserAgent)
	}
}

func TestLoad_CLIOverrides(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "0.0.0.0"
port = 8000
public_url = "http://toml.example.com"

[log]
level = "info"
`)

	cfg, err := Load(&CLI{
		Config:    path,
		Host:      "127.0.0.1",
		Port:      3001,
		PublicURL: "https://cli.example.com/",
		LogLevel:  "debug",
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.Server.Addr(); got != "127.0.0.1:3001" {
		t.Errorf("Server.Addr() = %q, want CLI override %q", got, "127.0.0.1:3001")
	}
	if cfg.Server.PublicURL != "https://cli.example.com" {
		t.Errorf("Server.PublicURL = %q, want CLI override", cfg.Server.PublicURL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want CLI override %q", cfg.Log.Level, "debug")
	}
}

func TestLoad_CLIPublicURLValidated(t *testing.T) {
	_, err := Load(&CLI{Config: writeConfig(t, "# defaults only\n"), PublicURL: "relay.example.com"})
	if err == nil || !strings.Contains(err.Error(), "public_url") {
		t.Fatalf("Load() error = %v, want public_url validation error", err)
	}
}

func TestWarnPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on Windows")
	}

	tests := []struct {
		name     string
		mode     os.FileMode
		wantWarn bool
	}{
		{"group readable", 0o644, true},
		{"owner only", 0o600, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "# test")
			if err := os.Chmod(path, tt.mode); err != nil {
				t.Fatal(err)
			}

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
			(&Config{filePath: path}).WarnPermissions(logger)

			if got := strings.Contains(buf.String(), "readable by group/others"); got != tt.wantWarn {
				t.Errorf("warned = %v, want %v (log: %q)", got, tt.wantWarn, buf.String())
			}
		})
	}
}

func TestFindConfigInPaths(t *testing.T) {
	first := writeConfig(t, "# first")
	second := writeConfig(t, "# second")

	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{"first existing wins", []string{"/nonexistent/a.toml", first, second}, first},
		{"none exist", []string{"/nonexistent/a.toml", "/nonexistent/b.toml"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findConfigInPaths(tt.paths); got != tt.want {
				t.Errorf("findConfigInPaths() = %q, want %q", got, tt.want)
			}
		})
	}
}
