package page

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/livetree-dev/livetree/pkg/export"
)

// Export writes a self-contained document of the current state to sink. When
// the server has a static directory its files are copied under static/.
func (p *Page) Export(ctx context.Context, sink export.Sink) error {
	snapshot := p.Snapshot()
	state, err := p.codec.Marshal(&snapshot)
	if err != nil {
		return fmt.Errorf("page: export: %w", err)
	}

	cfg := p.server.Config()
	doc, err := export.Render(export.Document{
		Title:        p.title,
		ClientScript: strings.TrimPrefix(cfg.ClientScript, "/"),
		CustomScript: p.CustomScript(),
		State:        state,
	})
	if err != nil {
		return err
	}
	if err := sink.Write(ctx, export.IndexName, doc); err != nil {
		return err
	}
	if cfg.StaticDir != "" {
		if err := copyStatic(ctx, cfg.StaticDir, sink); err != nil {
			return err
		}
	}
	p.logger.Info("page exported", "version", snapshot.Version)
	return nil
}

func copyStatic(ctx context.Context, dir string, sink export.Sink) error {
	return filepath.WalkDir(dir, func(file string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("page: export: %w", err)
		}
		return sink.Write(ctx, path.Join("static", filepath.ToSlash(rel)), data)
	})
}
