// Package tsdb queries the Prometheus-compatible metrics backend. The
// metrics-analysis specialist pulls series through it for anomaly scoring
// and the correlation engine feeds on its range queries; the alert
// collector polls its active alerts endpoint.
package tsdb

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/resilience"
)

// Config contains the metrics backend settings.
type Config struct {
	// URL is the Prometheus base URL, e.g. http://prometheus:9090.
	URL string `yaml:"url"`
}

// Point is one sample in a series.
type Point struct {
	T time.Time
	V float64
}

// Sample is one instant-query result.
type Sample struct {
	Labels map[string]string
	Point  Point
}

// Series is one range-query result stream.
type Series struct {
	Labels map[string]string
	Points []Point
}

// FiringAlert is one alert reported by the backend's alerts endpoint.
type FiringAlert struct {
	Labels      map[string]string
	Annotations map[string]string
	State       string
	ActiveAt    time.Time
	Value       float64
}

// Querier is the shared metrics client. Safe for concurrent use.
type Querier struct {
	api    promv1.API
	exec   *resilience.Executor
	logger *slog.Logger
}

// NewQuerier creates a metrics querier for the configured backend.
func NewQuerier(cfg Config, exec *resilience.Executor, logger *slog.Logger) (*Querier, error) {
	if cfg.URL == "" {
		return nil, faults.New(faults.KindValidationFailed, "tsdb.NewQuerier", "metrics URL is required")
	}
	client, err := api.NewClient(api.Config{Address: cfg.URL})
	if err != nil {
		return nil, faults.Wrap(faults.KindValidationFailed, "tsdb.NewQuerier", "create client", err)
	}
	return &Querier{
		api:    promv1.NewAPI(client),
		exec:   exec,
		logger: logger,
	}, nil
}

// Instant evaluates a PromQL expression at a single timestamp.
func (q *Querier) Instant(ctx context.Context, query string, ts time.Time) ([]Sample, error) {
	var samples []Sample
	err := q.exec.Do(ctx, "tsdb.Instant", func(ctx context.Context) error {
		val, warnings, err := q.api.Query(ctx, query, ts)
		if err != nil {
			return err
		}
		q.logWarnings("Instant", query, warnings)
		samples, err = flattenInstant(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return samples, nil
}

// Range evaluates a PromQL expression over [start, end] at the given step.
func (q *Querier) Range(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]Series, error) {
	var series []Series
	err := q.exec.Do(ctx, "tsdb.Range", func(ctx context.Context) error {
		val, warnings, err := q.api.QueryRange(ctx, query, promv1.Range{
			Start: start,
			End:   end,
			Step:  step,
		})
		if err != nil {
			return err
		}
		q.logWarnings("Range", query, warnings)
		matrix, ok := val.(model.Matrix)
		if !ok {
			return faults.Newf(faults.KindValidationFailed, "tsdb.Range",
				"unexpected result type %s", val.Type())
		}
		series = make([]Series, 0, len(matrix))
		for _, stream := range matrix {
			s := Series{
				Labels: metricToLabels(stream.Metric),
				Points: make([]Point, 0, len(stream.Values)),
			}
			for _, pair := range stream.Values {
				s.Points = append(s.Points, Point{T: pair.Timestamp.Time(), V: float64(pair.Value)})
			}
			series = append(series, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return series, nil
}

// ActiveAlerts returns the alerts currently known to the backend.
func (q *Querier) ActiveAlerts(ctx context.Context) ([]FiringAlert, error) {
	var alerts []FiringAlert
	err := q.exec.Do(ctx, "tsdb.ActiveAlerts", func(ctx context.Context) error {
		result, err := q.api.Alerts(ctx)
		if err != nil {
			return err
		}
		alerts = make([]FiringAlert, 0, len(result.Alerts))
		for _, a := range result.Alerts {
			value, _ := strconv.ParseFloat(a.Value, 64)
			alerts = append(alerts, FiringAlert{
				Labels:      labelSetToMap(a.Labels),
				Annotations: labelSetToMap(a.Annotations),
				State:       string(a.State),
				ActiveAt:    a.ActiveAt,
				Value:       value,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// Snapshot exposes the resilience counters for health reporting.
func (q *Querier) Snapshot() resilience.Snapshot {
	return q.exec.Snapshot()
}

func (q *Querier) logWarnings(op, query string, warnings promv1.Warnings) {
	if len(warnings) > 0 {
		q.logger.Warn("Metrics query returned warnings", "op", op, "query", query, "warnings", warnings)
	}
}

func flattenInstant(val model.Value) ([]Sample, error) {
	switch v := val.(type) {
	case model.Vector:
		samples := make([]Sample, 0, len(v))
		for _, s := range v {
			samples = append(samples, Sample{
				Labels: metricToLabels(s.Metric),
				Point:  Point{T: s.Timestamp.Time(), V: float64(s.Value)},
			})
		}
		return samples, nil
	case *model.Scalar:
		return []Sample{{Point: Point{T: v.Timestamp.Time(), V: float64(v.Value)}}}, nil
	default:
		return nil, faults.Newf(faults.KindValidationFailed, "tsdb.Instant",
			"unexpected result type %s", val.Type())
	}
}

func metricToLabels(m model.Metric) map[string]string {
	labels := make(map[string]string, len(m))
	for k, v := range m {
		labels[string(k)] = string(v)
	}
	return labels
}

func labelSetToMap(ls model.LabelSet) map[string]string {
	labels := make(map[string]string, len(ls))
	for k, v := range ls {
		labels[string(k)] = string(v)
	}
	return labels
}
