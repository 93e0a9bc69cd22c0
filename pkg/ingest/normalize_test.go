package ingest

import (
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/strands/pkg/models"
)

func testNormalizer() *Normalizer {
	return NewNormalizer(DefaultNormalizerConfig(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// stubMasker rewrites secret-<n> values to a fixed placeholder.
type stubMasker struct{}

var stubSecret = regexp.MustCompile(`secret-\d+`)

func (stubMasker) MaskText(text string) string {
	return stubSecret.ReplaceAllString(text, "__MASKED__")
}

func (stubMasker) MaskLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = stubMasker{}.MaskText(v)
	}
	return out
}

func TestNormalizer_Normalize(t *testing.T) {
	n := testNormalizer()
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	t.Run("maps provider severity", func(t *testing.T) {
		recipe := Recipe{SeverityMap: map[string]models.Severity{"p1": models.SeverityCritical}}
		raw := RawAlert{
			Severity:    "P1",
			Description: "checkout is down",
			Labels:      map[string]string{"service": "checkout"},
		}

		a := n.Normalize(raw, recipe, "grafana", now)

		assert.Equal(t, models.ValidationValid, a.ValidationStatus)
		assert.Equal(t, models.SeverityCritical, a.Severity)
		assert.Equal(t, "checkout", a.Service)
		assert.Equal(t, "grafana", a.Provider)
	})

	t.Run("canonical severity needs no map", func(t *testing.T) {
		raw := RawAlert{Severity: "warning", Description: "slow responses"}

		a := n.Normalize(raw, Recipe{}, "prometheus", now)

		assert.Equal(t, models.ValidationValid, a.ValidationStatus)
		assert.Equal(t, models.SeverityWarning, a.Severity)
	})

	t.Run("unmapped severity is rejected", func(t *testing.T) {
		raw := RawAlert{Severity: "disaster", Description: "text"}

		a := n.Normalize(raw, Recipe{}, "prometheus", now)

		assert.Equal(t, models.ValidationRejected, a.ValidationStatus)
		assert.Contains(t, a.RejectionReason, "unmapped severity")
	})

	t.Run("missing severity is rejected", func(t *testing.T) {
		raw := RawAlert{Description: "text"}

		a := n.Normalize(raw, Recipe{}, "prometheus", now)

		assert.Equal(t, models.ValidationRejected, a.ValidationStatus)
	})

	t.Run("empty alert is rejected", func(t *testing.T) {
		raw := RawAlert{Severity: "critical"}

		a := n.Normalize(raw, Recipe{}, "prometheus", now)

		assert.Equal(t, models.ValidationRejected, a.ValidationStatus)
		assert.Equal(t, "empty alert", a.RejectionReason)
	})

	t.Run("service from description pattern", func(t *testing.T) {
		recipe := Recipe{ServicePatterns: []*regexp.Regexp{
			regexp.MustCompile(`service=(\S+)`),
		}}
		raw := RawAlert{Severity: "high", Description: "latency on service=payments rising"}

		a := n.Normalize(raw, recipe, "prometheus", now)

		assert.Equal(t, "payments", a.Service)
	})

	t.Run("unknown service fallback", func(t *testing.T) {
		raw := RawAlert{Severity: "high", Description: "something odd"}

		a := n.Normalize(raw, Recipe{}, "prometheus", now)

		assert.Equal(t, UnknownService, a.Service)
	})

	t.Run("provider fingerprint wins", func(t *testing.T) {
		raw := RawAlert{
			Severity:    "high",
			Description: "text",
			Fingerprint: "abc123",
		}

		a := n.Normalize(raw, Recipe{}, "grafana", now)

		assert.Equal(t, "abc123", a.Fingerprint)
	})

	t.Run("fingerprint computed deterministically", func(t *testing.T) {
		raw := RawAlert{
			Severity:    "high",
			Description: "oom kill",
			Labels:      map[string]string{"service": "checkout", "pod": "checkout-1"},
		}

		a1 := n.Normalize(raw, Recipe{}, "prometheus", now)
		a2 := n.Normalize(raw, Recipe{}, "prometheus", now.Add(time.Hour))

		assert.NotEmpty(t, a1.Fingerprint)
		assert.Equal(t, a1.Fingerprint, a2.Fingerprint)
		assert.Len(t, a1.Fingerprint, 64)
	})

	t.Run("starts-at pins received time", func(t *testing.T) {
		startsAt := now.Add(-10 * time.Minute)
		raw := RawAlert{Severity: "high", Description: "text", StartsAt: startsAt}

		a := n.Normalize(raw, Recipe{}, "prometheus", now)

		assert.Equal(t, startsAt, a.ReceivedAt)
	})

	t.Run("resolved status carried through", func(t *testing.T) {
		raw := RawAlert{Severity: "info", Description: "text", Status: "Resolved"}

		a := n.Normalize(raw, Recipe{}, "prometheus", now)

		assert.Equal(t, models.AlertResolved, a.Status)
	})

	t.Run("masker scrubs before fingerprinting", func(t *testing.T) {
		masked := NewNormalizer(DefaultNormalizerConfig(), stubMasker{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

		mk := func(secret string) RawAlert {
			return RawAlert{
				Severity:    "high",
				Description: "auth failing with " + secret,
				Labels:      map[string]string{"service": "auth", "leak": secret},
				Annotations: map[string]string{"note": "uses " + secret},
			}
		}

		a1 := masked.Normalize(mk("secret-111"), Recipe{}, "prometheus", now)
		a2 := masked.Normalize(mk("secret-222"), Recipe{}, "prometheus", now)

		assert.NotContains(t, a1.Description, "secret-111")
		assert.Equal(t, "__MASKED__", a1.Labels["leak"])
		assert.Equal(t, "uses __MASKED__", a1.Annotations["note"])
		assert.Equal(t, a1.Fingerprint, a2.Fingerprint, "rotated secrets must not change the fingerprint")
	})
}

func TestNormalizer_Deduplicate(t *testing.T) {
	n := testNormalizer()
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	alert := func(fp string) models.NormalizedAlert {
		return models.NormalizedAlert{Alert: models.Alert{Fingerprint: fp}}
	}

	kept, dropped := n.Deduplicate([]models.NormalizedAlert{alert("a"), alert("b"), alert("a")}, now)
	assert.Len(t, kept, 2)
	assert.Equal(t, 1, dropped)

	// Inside the window the same fingerprint stays suppressed.
	kept, dropped = n.Deduplicate([]models.NormalizedAlert{alert("a")}, now.Add(30*time.Second))
	assert.Empty(t, kept)
	assert.Equal(t, 1, dropped)

	// Past the window it fires again.
	kept, dropped = n.Deduplicate([]models.NormalizedAlert{alert("a")}, now.Add(2*time.Minute))
	assert.Len(t, kept, 1)
	assert.Zero(t, dropped)

	assert.Equal(t, uint64(2), n.DuplicateCount())
}

func TestFingerprint_LabelOrderIndependent(t *testing.T) {
	a := Fingerprint("svc", map[string]string{"x": "1", "y": "2"}, "high", "desc")
	b := Fingerprint("svc", map[string]string{"y": "2", "x": "1"}, "high", "desc")
	c := Fingerprint("svc", map[string]string{"y": "2", "x": "9"}, "high", "desc")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestFingerprint_TruncatesDescription(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	base := string(long[:descriptionFingerprintLimit])

	a := Fingerprint("svc", nil, "high", base+"AAAA")
	b := Fingerprint("svc", nil, "high", base+"BBBB")

	require.Equal(t, a, b, "tails beyond the limit must not change the fingerprint")
}

func TestClusterAlerts(t *testing.T) {
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	mk := func(service string, at time.Time) models.NormalizedAlert {
		return models.NormalizedAlert{Alert: models.Alert{
			Service:    service,
			ReceivedAt: at,
			Severity:   models.SeverityHigh,
		}}
	}

	clusters := clusterAlerts([]models.NormalizedAlert{
		mk("checkout", base.Add(1*time.Minute)),
		mk("checkout", base.Add(3*time.Minute)),
		mk("checkout", base.Add(7*time.Minute)), // next window
		mk("payments", base.Add(2*time.Minute)),
	})

	require.Len(t, clusters, 3)
	// Ordered by id.
	assert.Equal(t, "checkout", clusters[0].Service)
	assert.Len(t, clusters[0].Members, 2)
	assert.Equal(t, base.Add(1*time.Minute), clusters[0].EarliestAt)
	assert.Equal(t, base.Add(3*time.Minute), clusters[0].LatestAt)
	assert.Equal(t, ClusterTypeServiceWindow, clusters[0].ClusterType)

	assert.Equal(t, "checkout", clusters[1].Service)
	assert.Len(t, clusters[1].Members, 1)

	assert.Equal(t, "payments", clusters[2].Service)
}

func TestClusterAlerts_DeterministicIDs(t *testing.T) {
	at := time.Date(2026, 8, 25, 12, 3, 0, 0, time.UTC)
	a := models.NormalizedAlert{Alert: models.Alert{Service: "checkout", ReceivedAt: at}}

	c1 := clusterAlerts([]models.NormalizedAlert{a})
	c2 := clusterAlerts([]models.NormalizedAlert{a})

	require.Len(t, c1, 1)
	assert.Equal(t, c1[0].ID, c2[0].ID)
}
