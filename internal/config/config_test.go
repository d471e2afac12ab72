package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/livetree-dev/livetree/internal/errors"
	"github.com/livetree-dev/livetree/pkg/server"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func code(err error) string {
	if e, ok := err.(*errors.Error); ok {
		return e.Code
	}
	return ""
}

func TestNew(t *testing.T) {
	cfg := New()
	if cfg.Server.Address != DefaultAddress {
		t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, DefaultAddress)
	}
	if cfg.Export.Target != TargetFile || cfg.Export.Dir != DefaultExportDir {
		t.Errorf("Export = %+v", cfg.Export)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(dir); code(err) != "E202" {
		t.Errorf("Load() without a file = %v, want E202", err)
	}

	writeFile(t, dir, ConfigFileName, `{
  "title": "Builds",
  "width": 900,
  "style": {"background": "black"},
  "server": {"address": "127.0.0.1:9000", "heartbeatInterval": "5s", "maxQueue": 32},
  "export": {"target": "s3", "bucket": "pages", "prefix": "builds/"}
}`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Title != "Builds" || cfg.Width != 900 || cfg.Style["background"] != "black" {
		t.Errorf("page settings = %q %d %v", cfg.Title, cfg.Width, cfg.Style)
	}
	want := ExportConfig{Target: TargetS3, Bucket: "pages", Prefix: "builds/"}
	if diff := cmp.Diff(want, cfg.Export); diff != "" {
		t.Errorf("Export mismatch (-want +got):\n%s", diff)
	}
	// An S3 config has no export directory; a --target file override falls
	// back to the default one.
	if got, want := cfg.ExportDir(), filepath.Join(dir, DefaultExportDir); got != want {
		t.Errorf("ExportDir() = %q, want %q", got, want)
	}
	if cfg.Log.Level != "info" || cfg.Path() != filepath.Join(dir, ConfigFileName) {
		t.Errorf("defaults not applied: log %+v path %q", cfg.Log, cfg.Path())
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, YAMLConfigFileName, `
title: Builds
offline: true
server:
  address: ":9001"
  staticDir: assets
log:
  level: debug
  format: json
`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Offline || cfg.Server.Address != ":9001" || cfg.Log.Format != "json" {
		t.Errorf("cfg = %+v", cfg)
	}
	level, err := cfg.LogLevel()
	if err != nil || level.String() != "DEBUG" {
		t.Errorf("LogLevel() = %v, %v", level, err)
	}
	srv, err := cfg.ServerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if srv.StaticDir != filepath.Join(dir, "assets") {
		t.Errorf("StaticDir = %q, want it resolved against the config dir", srv.StaticDir)
	}
	if cfg.Export.Target != TargetFile || cfg.Export.Dir != DefaultExportDir {
		t.Errorf("Export = %+v, want the file target defaults", cfg.Export)
	}
}

func TestLoadPrefersJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, `{"title": "json"}`)
	writeFile(t, dir, YAMLConfigFileName, "title: yaml\n")
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Title != "json" {
		t.Errorf("Title = %q, want json", cfg.Title)
	}
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		code    string
	}{
		{"malformed json", "a.json", `{"title":`, "E201"},
		{"unknown field", "a.json", `{"port": 8080}`, "E201"},
		{"malformed yaml", "a.yaml", "server: [", "E201"},
		{"bad address", "a.json", `{"server": {"address": "8080"}}`, "E203"},
		{"port out of range", "a.json", `{"server": {"address": ":70000"}}`, "E203"},
		{"bad duration", "a.json", `{"server": {"readTimeout": "soon"}}`, "E201"},
		{"unknown target", "a.json", `{"export": {"target": "ftp"}}`, "E204"},
		{"s3 without bucket", "a.yaml", "export:\n  target: s3\n", "E204"},
		{"bad log level", "a.json", `{"log": {"level": "loud"}}`, "E201"},
		{"bad log format", "a.json", `{"log": {"format": "xml"}}`, "E201"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)
			_, err := LoadFile(path)
			if got := code(err); got != tt.code {
				t.Errorf("LoadFile() = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestServerConfig(t *testing.T) {
	cfg := New()
	cfg.Server = ServerConfig{
		Address:           ":9000",
		HeartbeatInterval: "5s",
		ShutdownTimeout:   "2s",
		MaxQueue:          8,
		SendQueue:         16,
		MaxMessageSize:    1024,
		ClientScript:      "/js/app.js",
		AnyOrigin:         true,
	}
	srv, err := cfg.ServerConfig()
	if err != nil {
		t.Fatal(err)
	}
	d := server.DefaultConfig()
	if srv.Address != ":9000" || srv.HeartbeatInterval != 5*time.Second || srv.ShutdownTimeout != 2*time.Second {
		t.Errorf("server config = %+v", srv)
	}
	if srv.ReadTimeout != d.ReadTimeout || srv.WriteTimeout != d.WriteTimeout {
		t.Errorf("unset timeouts changed: read %v write %v", srv.ReadTimeout, srv.WriteTimeout)
	}
	if srv.MaxQueue != 8 || srv.SendQueue != 16 || srv.MaxMessageSize != 1024 || srv.ClientScript != "/js/app.js" {
		t.Errorf("server config = %+v", srv)
	}
	if !srv.CheckOrigin(nil) {
		t.Error("AnyOrigin not applied")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"out.json", "out.yaml"} {
		t.Run(name, func(t *testing.T) {
			cfg := New()
			cfg.Title = "Saved"
			cfg.Export = ExportConfig{Target: TargetS3, Bucket: "b"}
			path := filepath.Join(t.TempDir(), name)
			if err := cfg.SaveTo(path); err != nil {
				t.Fatal(err)
			}
			got, err := LoadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if got.Title != "Saved" || got.Export.Bucket != "b" {
				t.Errorf("loaded %+v", got)
			}
		})
	}
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, YAMLConfigFileName, "title: x\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatal(err)
	}
	if got != root {
		t.Errorf("FindProjectRoot() = %q, want %q", got, root)
	}
}
