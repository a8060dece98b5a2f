// Package tracing sets up OpenTelemetry for dockyard. Spans cover storage
// round trips so slow or failing backends show up next to the log.
package tracing

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/dockyard/internal/log"
)

const (
	DefaultServiceName  = "dockyard"
	DefaultOTLPEndpoint = "localhost:4317"
)

// Exporter names accepted in tracing.exporter.
const (
	ExporterNone   = "none"
	ExporterFile   = "file"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Exporters lists every accepted exporter name.
var Exporters = []string{ExporterNone, ExporterFile, ExporterStdout, ExporterOTLP}

// KnownExporter reports whether name selects an exporter. The empty name
// means none.
func KnownExporter(name string) bool {
	return name == "" || slices.Contains(Exporters, name)
}

// Config is the tracing section of the config file.
type Config struct {
	// Off by default; a disabled config never touches the global provider.
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"`
	FilePath     string  `mapstructure:"file_path"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"` // 0 or unset samples everything
	ServiceName  string  `mapstructure:"service_name"`
}

// DefaultConfig leaves tracing off with the file exporter selected, so
// turning it on only needs enabled and file_path.
func DefaultConfig() Config {
	return Config{
		Exporter:     ExporterFile,
		OTLPEndpoint: DefaultOTLPEndpoint,
		SampleRate:   1.0,
		ServiceName:  DefaultServiceName,
	}
}

type exporterFactory func(Config) (sdktrace.SpanExporter, error)

var exporterFactories = map[string]exporterFactory{
	ExporterNone: func(Config) (sdktrace.SpanExporter, error) { return nil, nil },
	ExporterFile: func(cfg Config) (sdktrace.SpanExporter, error) {
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("file_path required for file exporter")
		}
		return NewFileExporter(cfg.FilePath)
	},
	ExporterStdout: func(Config) (sdktrace.SpanExporter, error) {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	},
	ExporterOTLP: func(cfg Config) (sdktrace.SpanExporter, error) {
		endpoint := cfg.OTLPEndpoint
		if endpoint == "" {
			endpoint = DefaultOTLPEndpoint
		}
		return otlptracegrpc.New(context.Background(),
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
	},
}

// Provider hands out the tracer used for store spans.
type Provider struct {
	sdk    *sdktrace.TracerProvider // nil when disabled
	tracer trace.Tracer
}

// NewProvider builds the provider cfg describes and installs it globally.
// A disabled cfg gets a no-op tracer.
func NewProvider(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{tracer: noop.NewTracerProvider().Tracer(DefaultServiceName)}, nil
	}

	name := cfg.Exporter
	if name == "" {
		name = ExporterNone
	}
	factory, ok := exporterFactories[name]
	if !ok {
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.Exporter)
	}
	exporter, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s exporter: %w", name, err)
	}

	service := cfg.ServiceName
	if service == "" {
		service = DefaultServiceName
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 1.0
	}

	opts := []sdktrace.TracerProviderOption{
		// Schemaless so the resource never conflicts with resource.Default().
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", service))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	sdk := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(sdk)
	log.Info(log.CatTrace, "tracing enabled", "exporter", name, "sample_rate", rate)

	return &Provider{sdk: sdk, tracer: sdk.Tracer(service)}, nil
}

func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Enabled is false for the no-op provider.
func (p *Provider) Enabled() bool { return p.sdk != nil }

// Shutdown exports buffered spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	if err := p.sdk.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down tracer provider: %w", err)
	}
	log.Debug(log.CatTrace, "tracing stopped")
	return nil
}
