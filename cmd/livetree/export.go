package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/livetree-dev/livetree/internal/config"
	"github.com/livetree-dev/livetree/pkg/export"
)

func exportCmd() *cobra.Command {
	var (
		target string
		dir    string
		bucket string
		prefix string
		inputs map[string]string
	)

	cmd := &cobra.Command{
		Use:   "export page.yaml",
		Short: "Export a page to a static document",
		Long: `Build a page from a DSL document and write it as a self-contained
index.html, either to a directory or to an S3 bucket.

S3 credentials are read from AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY
and AWS_SESSION_TOKEN.

Examples:
  livetree export status.yaml --dir public
  livetree export status.yaml --target s3 --bucket pages --prefix status/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if target != "" {
				cfg.Export.Target = target
			}
			if dir != "" {
				cfg.Export.Dir = dir
			}
			if bucket != "" {
				cfg.Export.Bucket = bucket
			}
			if prefix != "" {
				cfg.Export.Prefix = prefix
			}
			return runExport(cmd.Context(), cfg, args[0], inputs)
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", `Export target, "file" or "s3" (default from config)`)
	cmd.Flags().StringVarP(&dir, "dir", "o", "", "Output directory of file exports")
	cmd.Flags().StringVar(&bucket, "bucket", "", "S3 bucket")
	cmd.Flags().StringVar(&prefix, "prefix", "", "S3 key prefix")
	cmd.Flags().StringToStringVarP(&inputs, "input", "i", nil, "DSL input values (name=value)")

	return cmd
}

func runExport(ctx context.Context, cfg *config.Config, source string, inputs map[string]string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.Offline = true

	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	opts, err := pageOptions(cfg, logger)
	if err != nil {
		return err
	}
	sink, where, err := newSink(cfg)
	if err != nil {
		return err
	}
	p, err := buildPage(source, inputs, opts...)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.Export(ctx, sink); err != nil {
		return err
	}
	success("Exported %s to %s", source, where)
	return nil
}

// newSink returns the sink selected by cfg and a description of where it
// writes.
func newSink(cfg *config.Config) (export.Sink, string, error) {
	if cfg.Export.Target != config.TargetS3 {
		dir := cfg.ExportDir()
		return export.FileSink{Dir: dir}, dir, nil
	}
	client, err := export.NewS3Client(export.S3Config{
		Region:    cfg.Export.Region,
		Endpoint:  cfg.Export.Endpoint,
		PathStyle: cfg.Export.PathStyle,
	})
	if err != nil {
		return nil, "", err
	}
	sink := &export.S3Sink{Client: client, Bucket: cfg.Export.Bucket, Prefix: cfg.Export.Prefix}
	return sink, "s3://" + cfg.Export.Bucket + "/" + cfg.Export.Prefix, nil
}
