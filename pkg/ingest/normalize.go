package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codeready-toolchain/strands/pkg/models"
)

// UnknownService is assigned when no service can be extracted.
const UnknownService = "unknown"

// descriptionFingerprintLimit bounds how much of the description feeds the
// fingerprint, so trailing diagnostic noise does not defeat deduplication.
const descriptionFingerprintLimit = 256

// NormalizerConfig contains the normalisation settings.
type NormalizerConfig struct {
	// DedupWindow is how long a fingerprint suppresses duplicates.
	DedupWindow time.Duration `yaml:"dedup_window"`
}

// DefaultNormalizerConfig returns the built-in normalisation defaults.
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{DedupWindow: 60 * time.Second}
}

// alertMasker scrubs secrets from alert text and labels. A nil masker
// disables masking.
type alertMasker interface {
	MaskText(text string) string
	MaskLabels(labels map[string]string) map[string]string
}

// Normalizer converts raw alerts into canonical ones and suppresses
// duplicates inside the dedup window. Safe for concurrent use.
type Normalizer struct {
	cfg    NormalizerConfig
	masker alertMasker
	logger *slog.Logger

	mu         sync.Mutex
	lastSeen   map[string]time.Time
	duplicates uint64
}

// NewNormalizer creates a normaliser. masker may be nil.
func NewNormalizer(cfg NormalizerConfig, masker alertMasker, logger *slog.Logger) *Normalizer {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultNormalizerConfig().DedupWindow
	}
	return &Normalizer{
		cfg:      cfg,
		masker:   masker,
		logger:   logger,
		lastSeen: map[string]time.Time{},
	}
}

// Normalize applies the provider recipe to one raw alert. A malformed alert
// comes back with ValidationStatus REJECTED and a reason; it never aborts
// the cycle.
func (n *Normalizer) Normalize(raw RawAlert, recipe Recipe, provider string, now time.Time) models.NormalizedAlert {
	// Masking runs before fingerprinting so a rotated secret does not
	// change the fingerprint and defeat deduplication.
	if n.masker != nil {
		raw.Description = n.masker.MaskText(raw.Description)
		raw.Labels = n.masker.MaskLabels(raw.Labels)
		raw.Annotations = n.masker.MaskLabels(raw.Annotations)
	}

	out := models.NormalizedAlert{
		Alert: models.Alert{
			ReceivedAt:  now.UTC(),
			Provider:    provider,
			Labels:      raw.Labels,
			Annotations: raw.Annotations,
			Description: raw.Description,
			Status:      models.AlertFiring,
		},
		ValidationStatus: models.ValidationValid,
	}
	if !raw.StartsAt.IsZero() {
		out.ReceivedAt = raw.StartsAt.UTC()
	}
	if raw.Status != "" && strings.EqualFold(raw.Status, string(models.AlertResolved)) {
		out.Status = models.AlertResolved
	}

	severity, ok := mapSeverity(raw.Severity, recipe.SeverityMap)
	if !ok {
		return reject(out, "unmapped severity "+raw.Severity)
	}
	out.Severity = severity

	if raw.Description == "" && len(raw.Labels) == 0 {
		return reject(out, "empty alert")
	}

	out.Service = extractService(raw, recipe.ServicePatterns)

	out.Fingerprint = raw.Fingerprint
	if out.Fingerprint == "" {
		out.Fingerprint = Fingerprint(out.Service, raw.Labels, string(severity), raw.Description)
	}
	return out
}

// Deduplicate drops alerts whose fingerprint was already seen inside the
// dedup window, returning the survivors and the number dropped.
func (n *Normalizer) Deduplicate(alerts []models.NormalizedAlert, now time.Time) ([]models.NormalizedAlert, int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for fp, seen := range n.lastSeen {
		if now.Sub(seen) > n.cfg.DedupWindow {
			delete(n.lastSeen, fp)
		}
	}

	kept := make([]models.NormalizedAlert, 0, len(alerts))
	dropped := 0
	for _, a := range alerts {
		if seen, ok := n.lastSeen[a.Fingerprint]; ok && now.Sub(seen) <= n.cfg.DedupWindow {
			dropped++
			continue
		}
		n.lastSeen[a.Fingerprint] = now
		kept = append(kept, a)
	}
	if dropped > 0 {
		n.duplicates += uint64(dropped)
		n.logger.Debug("Dropped duplicate alerts", "count", dropped, "window", n.cfg.DedupWindow)
	}
	return kept, dropped
}

// DuplicateCount reports the running total of suppressed duplicates.
func (n *Normalizer) DuplicateCount() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.duplicates
}

// Fingerprint computes the canonical alert fingerprint for providers that
// do not supply one.
func Fingerprint(service string, labels map[string]string, severity, description string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(service))
	h.Write([]byte{0x1f})
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(labels[k]))
		h.Write([]byte{0x1e})
	}
	h.Write([]byte(severity))
	h.Write([]byte{0x1f})
	desc := description
	if len(desc) > descriptionFingerprintLimit {
		desc = desc[:descriptionFingerprintLimit]
	}
	h.Write([]byte(desc))
	return hex.EncodeToString(h.Sum(nil))
}

func mapSeverity(raw string, severityMap map[string]models.Severity) (models.Severity, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", false
	}
	if len(severityMap) > 0 {
		if mapped, ok := severityMap[key]; ok && mapped.Valid() {
			return mapped, true
		}
	}
	if s := models.Severity(key); s.Valid() {
		return s, true
	}
	return "", false
}

func extractService(raw RawAlert, patterns []*regexp.Regexp) string {
	if svc := strings.TrimSpace(raw.Labels["service"]); svc != "" {
		return svc
	}
	for _, re := range patterns {
		m := re.FindStringSubmatch(raw.Description)
		if m == nil {
			continue
		}
		if len(m) > 1 && m[1] != "" {
			return m[1]
		}
		if m[0] != "" {
			return m[0]
		}
	}
	return UnknownService
}

func reject(a models.NormalizedAlert, reason string) models.NormalizedAlert {
	a.ValidationStatus = models.ValidationRejected
	a.RejectionReason = reason
	return a
}
