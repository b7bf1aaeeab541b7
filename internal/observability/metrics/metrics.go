package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	ledgerEntries  metric.Int64Counter
	ledgerXP       metric.Int64Counter
	achievements   metric.Int64Counter
	cancellations  metric.Int64Counter
	softFailures   metric.Int64Counter
	lockContention metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "actionboard"
	}
	meter := provider.Meter(name)

	ledgerEntries, err := meter.Int64Counter("actionboard_ledger_entries_total")
	if err != nil {
		return nil, err
	}
	ledgerXP, err := meter.Int64Counter("actionboard_ledger_xp_total",
		metric.WithDescription("Absolute XP moved through the ledger."))
	if err != nil {
		return nil, err
	}
	achievements, err := meter.Int64Counter("actionboard_achievements_total")
	if err != nil {
		return nil, err
	}
	cancellations, err := meter.Int64Counter("actionboard_achievement_cancellations_total")
	if err != nil {
		return nil, err
	}
	softFailures, err := meter.Int64Counter("actionboard_soft_failures_total")
	if err != nil {
		return nil, err
	}
	lockContention, err := meter.Int64Counter("actionboard_submission_lock_contention_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ledgerEntries:  ledgerEntries,
		ledgerXP:       ledgerXP,
		achievements:   achievements,
		cancellations:  cancellations,
		softFailures:   softFailures,
		lockContention: lockContention,
	}, nil
}

// RecordLedgerEntry counts one ledger row and the XP it moved.
func (m *Metrics) RecordLedgerEntry(ctx context.Context, sourceType string, amount int64) {
	if m == nil {
		return
	}
	direction := "grant"
	if amount < 0 {
		direction = "revoke"
		amount = -amount
	}
	attrs := FilterAttributes(
		attribute.String("source_type", strings.TrimSpace(sourceType)),
		attribute.String("direction", direction),
	)
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.ledgerXP.Add(ctx, amount, metric.WithAttributes(attrs...))
}

// RecordAchievement counts Achieve outcomes per artifact type.
func (m *Metrics) RecordAchievement(ctx context.Context, artifactType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("artifact_type", strings.TrimSpace(artifactType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.achievements.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCancellation counts Cancel outcomes.
func (m *Metrics) RecordCancellation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.cancellations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSoftFailure counts logged-and-swallowed failures such as a lost bonus.
func (m *Metrics) RecordSoftFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.softFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLockContention counts submissions rejected because another one held the lock.
func (m *Metrics) RecordLockContention(ctx context.Context, backend string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("backend", strings.TrimSpace(backend)))
	m.lockContention.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// user_id and mission ids are deliberately absent.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":      {},
	"status_code":   {},
	"source_type":   {},
	"direction":     {},
	"artifact_type": {},
	"outcome":       {},
	"reason":        {},
	"backend":       {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
