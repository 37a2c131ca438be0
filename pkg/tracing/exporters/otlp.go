// Package exporters builds the span exporters fern ships traces through
package exporters

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

// exportTimeout bounds one batch upload to the collector
const exportTimeout = 10 * time.Second

// OTLPConfig selects the collector fern exports to
type OTLPConfig struct {
	Endpoint string
	Protocol string
	// Insecure sends spans in plaintext, for a collector sidecar
	Insecure bool
}

// DefaultOTLPConfig points at a plaintext gRPC collector on localhost
func DefaultOTLPConfig() OTLPConfig {
	return OTLPConfig{
		Endpoint: "localhost:4317",
		Protocol: ProtocolGRPC,
		Insecure: true,
	}
}

// NewOTLPExporter starts an exporter over the configured protocol
func NewOTLPExporter(ctx context.Context, config OTLPConfig) (*otlptrace.Exporter, error) {
	client, err := newClient(config)
	if err != nil {
		return nil, err
	}
	return otlptrace.New(ctx, client)
}

func newClient(config OTLPConfig) (otlptrace.Client, error) {
	switch config.Protocol {
	case ProtocolGRPC:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(config.Endpoint),
			otlptracegrpc.WithTimeout(exportTimeout),
		}
		if config.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		return otlptracegrpc.NewClient(opts...), nil
	case ProtocolHTTP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(config.Endpoint),
			otlptracehttp.WithTimeout(exportTimeout),
		}
		if config.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.NewClient(opts...), nil
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", config.Protocol)
	}
}
