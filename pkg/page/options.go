package page

import (
	"log/slog"
	"maps"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/livetree-dev/livetree/pkg/protocol"
	"github.com/livetree-dev/livetree/pkg/server"
)

// Defaults of a new page.
const (
	DefaultTitle = "livetree"
	DefaultWidth = 1200
)

// DefaultStyle returns the page style used when none is given.
func DefaultStyle() map[string]any {
	return map[string]any{
		"width":         DefaultWidth,
		"paddingTop":    "6px",
		"paddingBottom": "6px",
	}
}

type options struct {
	title        string
	width        int
	style        map[string]any
	offline      bool
	logger       *slog.Logger
	serializers  []protocol.Serializer
	registerer   prometheus.Registerer
	serverConfig *server.Config
	tracerName   string
}

// Option configures a Page.
type Option func(*options)

// WithTitle sets the document title.
func WithTitle(title string) Option {
	return func(o *options) {
		o.title = title
	}
}

// WithWidth sets the page width in pixels.
func WithWidth(width int) Option {
	return func(o *options) {
		o.width = width
	}
}

// WithStyle merges style over the default page style.
func WithStyle(style map[string]any) Option {
	return func(o *options) {
		if o.style == nil {
			o.style = map[string]any{}
		}
		maps.Copy(o.style, style)
	}
}

// WithOffline makes a page that never serves. Actions are counted but not
// sent; the page is meant to be exported.
func WithOffline(offline bool) Option {
	return func(o *options) {
		o.offline = offline
	}
}

// WithLogger sets the logger of the page and its components.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSerializers adds serializers tried before the built-in ones.
func WithSerializers(serializers ...protocol.Serializer) Option {
	return func(o *options) {
		o.serializers = append(o.serializers, serializers...)
	}
}

// WithRegisterer sets the Prometheus registerer for the page metrics.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}

// WithServerConfig sets the server configuration.
func WithServerConfig(c *server.Config) Option {
	return func(o *options) {
		o.serverConfig = c
	}
}

// WithTracerName sets the OpenTelemetry tracer name.
func WithTracerName(name string) Option {
	return func(o *options) {
		o.tracerName = name
	}
}
