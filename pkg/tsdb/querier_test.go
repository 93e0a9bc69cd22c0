package tsdb

import (
	"testing"
	"time"

	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/strands/pkg/faults"
)

func TestFlattenInstant(t *testing.T) {
	t.Run("vector", func(t *testing.T) {
		now := model.TimeFromUnix(1700000000)
		val := model.Vector{
			&model.Sample{
				Metric:    model.Metric{"__name__": "up", "service": "checkout"},
				Value:     1,
				Timestamp: now,
			},
		}

		samples, err := flattenInstant(val)

		require.NoError(t, err)
		require.Len(t, samples, 1)
		assert.Equal(t, "checkout", samples[0].Labels["service"])
		assert.Equal(t, 1.0, samples[0].Point.V)
		assert.Equal(t, now.Time(), samples[0].Point.T)
	})

	t.Run("scalar", func(t *testing.T) {
		val := &model.Scalar{Value: 42, Timestamp: model.TimeFromUnix(1700000000)}

		samples, err := flattenInstant(val)

		require.NoError(t, err)
		require.Len(t, samples, 1)
		assert.Equal(t, 42.0, samples[0].Point.V)
	})

	t.Run("matrix rejected", func(t *testing.T) {
		_, err := flattenInstant(model.Matrix{})

		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.KindValidationFailed))
	})
}

func TestMetricToLabels(t *testing.T) {
	labels := metricToLabels(model.Metric{
		"__name__": "http_requests_total",
		"service":  "payments",
		"code":     "500",
	})

	assert.Equal(t, map[string]string{
		"__name__": "http_requests_total",
		"service":  "payments",
		"code":     "500",
	}, labels)
}

func TestNewQuerier_RequiresURL(t *testing.T) {
	_, err := NewQuerier(Config{}, nil, nil)

	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindValidationFailed))
}

func TestPointTimestamps(t *testing.T) {
	ts := model.TimeFromUnix(1700000123)
	assert.Equal(t, time.Unix(1700000123, 0).UTC(), ts.Time().UTC())
}
