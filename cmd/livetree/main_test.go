package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/livetree-dev/livetree/internal/config"
	lterrors "github.com/livetree-dev/livetree/internal/errors"
	"github.com/livetree-dev/livetree/pkg/export"
	"github.com/livetree-dev/livetree/pkg/page"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"3", float64(3)},
		{"true", true},
		{`{"a":1}`, map[string]any{"a": float64(1)}},
		{"all green", "all green"},
		{`"quoted"`, "quoted"},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, parseValue(tt.in)); diff != "" {
			t.Errorf("parseValue(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestClient(t *testing.T) {
	p := page.New()
	if err := p.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	ts := httptest.NewServer(p.Handler())
	defer ts.Close()

	c := newClient(ts.URL)
	ctx := context.Background()

	var created map[string]any
	body := map[string]any{"obj": "Text: {$: message}", "inputs": map[string]any{"message": "deploying"}}
	if err := c.do(ctx, http.MethodPut, "/elements/banner", body, &created); err != nil {
		t.Fatalf("push: %v", err)
	}
	e, ok := p.Element("banner")
	if !ok || e.Data()["text"] != "deploying" {
		t.Fatalf("element = %v, %v", e, ok)
	}

	if err := c.do(ctx, http.MethodPut, "/variables/count", map[string]any{"value": 1}, nil); err != nil {
		t.Fatalf("create variable: %v", err)
	}

	err := c.do(ctx, http.MethodGet, "/elements/missing", nil, nil)
	var coded *lterrors.Error
	if !errors.As(err, &coded) || coded.Code != "E301" {
		t.Errorf("missing element = %v, want E301", err)
	}

	if err := c.do(ctx, http.MethodDelete, "/elements/banner", nil, nil); err != nil {
		t.Fatalf("rm: %v", err)
	}
	if _, ok := p.Element("banner"); ok {
		t.Error("element survived rm")
	}
}

func TestClientPlainError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer ts.Close()

	err := newClient(ts.URL).do(context.Background(), http.MethodGet, "/status", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "gateway down") {
		t.Errorf("do() = %v, want the response text", err)
	}
}

func TestRunExportToDirectory(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "page.yaml")
	if err := os.WriteFile(source, []byte("Card: [Text: hello, Divider]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.New()
	cfg.Title = "Exported"
	cfg.Export.Dir = filepath.Join(dir, "out")
	if err := runExport(context.Background(), cfg, source, nil); err != nil {
		t.Fatalf("runExport() error: %v", err)
	}

	html, err := os.ReadFile(filepath.Join(dir, "out", export.IndexName))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"<title>Exported</title>", "window.frozenState", `"hello"`} {
		if !strings.Contains(string(html), want) {
			t.Errorf("export missing %q", want)
		}
	}
}

func TestNewSink(t *testing.T) {
	cfg := config.New()
	sink, _, err := newSink(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sink.(export.FileSink); !ok {
		t.Errorf("sink = %T, want FileSink", sink)
	}

	t.Setenv("AWS_ACCESS_KEY_ID", "key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	cfg.Export = config.ExportConfig{Target: config.TargetS3, Bucket: "pages", Prefix: "p/", Region: "us-east-1"}
	sink, where, err := newSink(cfg)
	if err != nil {
		t.Fatal(err)
	}
	s3, ok := sink.(*export.S3Sink)
	if !ok || s3.Bucket != "pages" || where != "s3://pages/p/" {
		t.Errorf("sink = %T %q", sink, where)
	}
}

func TestRunInit(t *testing.T) {
	tests := []struct {
		name   string
		asYAML bool
		file   string
	}{
		{"json", false, config.ConfigFileName},
		{"yaml", true, config.YAMLConfigFileName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "site")
			path, err := runInit(dir, "Status", tt.asYAML, false)
			if err != nil {
				t.Fatalf("runInit() error: %v", err)
			}
			if path != filepath.Join(dir, tt.file) {
				t.Errorf("path = %q, want %s", path, tt.file)
			}
			cfg, err := config.Load(dir)
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Title != "Status" || cfg.Server.Address != config.DefaultAddress {
				t.Errorf("loaded %+v", cfg)
			}

			_, err = runInit(dir, "Again", tt.asYAML, false)
			var coded *lterrors.Error
			if !errors.As(err, &coded) || coded.Code != "E205" {
				t.Errorf("second runInit() = %v, want E205", err)
			}
			if _, err := runInit(dir, "Again", tt.asYAML, true); err != nil {
				t.Errorf("runInit() with force error: %v", err)
			}
		})
	}
}
