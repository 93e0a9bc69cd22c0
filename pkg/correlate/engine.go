// Package correlate implements the statistical correlation engine: lagged
// Pearson correlation over aligned metric series, significance testing, and
// a Bayesian posterior that discounts spurious matches. Downstream, the
// decision engine treats the posterior as the confidence of the correlator
// specialist.
package correlate

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/codeready-toolchain/strands/pkg/models"
)

// Likelihoods for the spurious-correlation posterior. A significant p-value
// is strong evidence for a real dependency; an insignificant one points the
// other way but does not rule it out.
const (
	likelihoodRealSignificant   = 0.95
	likelihoodRealInsignificant = 0.40
	likelihoodSpurSignificant   = 0.05
	likelihoodSpurInsignificant = 0.60
)

// DegenerateReason marks series that cannot support a correlation verdict.
const DegenerateReason = "degenerate-series"

// Config contains the engine thresholds.
type Config struct {
	// MaxLag is the lag search radius in steps. Lags from -MaxLag to
	// +MaxLag are scanned; positive lag means the first series leads.
	MaxLag int `yaml:"max_lag"`

	// MinSampleSize is the minimum overlap (after lag shift) required
	// to attempt a correlation.
	MinSampleSize int `yaml:"min_sample_size"`

	// Prior is the prior probability that an observed correlation
	// reflects a real dependency.
	Prior float64 `yaml:"prior"`

	// Alpha is the significance threshold on the p-value.
	Alpha float64 `yaml:"alpha"`

	// AnomalyZ is the |z-score| above which a point counts as anomalous.
	AnomalyZ float64 `yaml:"anomaly_z"`

	// NoisyFraction is the anomalous-point share above which a series is
	// classified as noisy.
	NoisyFraction float64 `yaml:"noisy_fraction"`
}

// DefaultConfig returns the built-in engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxLag:        5,
		MinSampleSize: 20,
		Prior:         0.3,
		Alpha:         0.05,
		AnomalyZ:      3.0,
		NoisyFraction: 0.05,
	}
}

// Point is one sample of a metric series.
type Point struct {
	T time.Time
	V float64
}

// Series is a named metric series, ordered by time.
type Series struct {
	Name   string
	Points []Point
}

// Result is the verdict for one series pair.
type Result struct {
	A            string                     `json:"a"`
	B            string                     `json:"b"`
	SampleSize   int                        `json:"sample_size"`
	Lag          int                        `json:"lag"`
	R            float64                    `json:"r"`
	PValue       float64                    `json:"p_value"`
	Posterior    float64                    `json:"posterior"`
	Strength     models.CorrelationStrength `json:"strength"`
	Significance models.SignificanceBand    `json:"significance"`
	Degenerate   bool                       `json:"degenerate"`
	Reason       string                     `json:"reason,omitempty"`
}

// Engine runs correlations. Stateless and safe for concurrent use.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates a correlation engine.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if cfg.MaxLag <= 0 {
		cfg.MaxLag = DefaultConfig().MaxLag
	}
	if cfg.MinSampleSize <= 0 {
		cfg.MinSampleSize = DefaultConfig().MinSampleSize
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Correlate aligns two series on their timestamps, detrends and normalizes
// them, scans the lag window for the strongest Pearson coefficient, and
// reports the Bayesian posterior that the dependency is real.
//
// Series that cannot support a verdict (too few overlapping points, or no
// variance after detrending) come back degenerate: posterior 0, VERY_WEAK,
// never an error.
func (e *Engine) Correlate(a, b Series) Result {
	res := Result{A: a.Name, B: b.Name}

	av, bv := align(a.Points, b.Points)
	res.SampleSize = len(av)
	if len(av) < e.cfg.MinSampleSize {
		return e.degenerate(res)
	}

	ad, okA := zscore(detrend(av))
	bd, okB := zscore(detrend(bv))
	if !okA || !okB {
		return e.degenerate(res)
	}

	best, found := e.scanLags(ad, bd)
	if !found {
		return e.degenerate(res)
	}

	res.Lag = best.lag
	res.R = best.r
	res.SampleSize = best.n
	res.PValue = pValue(best.r, best.n)
	res.Posterior = e.posterior(res.PValue)
	res.Strength = models.StrengthForPosterior(res.Posterior)
	res.Significance = models.BandForPValue(res.PValue)
	return res
}

type lagCandidate struct {
	lag int
	r   float64
	n   int
}

// scanLags visits lags in the order 0, +1, -1, +2, -2, ... so that a strict
// improvement test yields the tie-break policy: strongest |r|, then smallest
// |lag|, then the positive lag.
func (e *Engine) scanLags(a, b []float64) (lagCandidate, bool) {
	var best lagCandidate
	found := false
	for _, lag := range lagOrder(e.cfg.MaxLag) {
		pa, pb := shift(a, b, lag)
		if len(pa) < e.cfg.MinSampleSize {
			continue
		}
		r, ok := pearson(pa, pb)
		if !ok {
			continue
		}
		if !found || math.Abs(r) > math.Abs(best.r) {
			best = lagCandidate{lag: lag, r: r, n: len(pa)}
			found = true
		}
	}
	return best, found
}

func (e *Engine) posterior(p float64) float64 {
	lr, ls := likelihoodRealInsignificant, likelihoodSpurInsignificant
	if p < e.cfg.Alpha {
		lr, ls = likelihoodRealSignificant, likelihoodSpurSignificant
	}
	num := lr * e.cfg.Prior
	den := num + ls*(1-e.cfg.Prior)
	if den == 0 {
		return 0
	}
	return num / den
}

func (e *Engine) degenerate(res Result) Result {
	res.Degenerate = true
	res.Reason = DegenerateReason
	res.Posterior = 0
	res.Strength = models.StrengthVeryWeak
	res.Significance = models.NotSignificant
	res.PValue = 1
	if e.logger != nil {
		e.logger.Debug("Correlation degenerate", "a", res.A, "b", res.B, "samples", res.SampleSize)
	}
	return res
}

// Anomalies returns the indices of points whose |z-score| exceeds the
// configured threshold. A constant series has no anomalies.
func (e *Engine) Anomalies(points []Point) []int {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.V
	}
	z, ok := zscore(values)
	if !ok {
		return nil
	}
	var idx []int
	for i, v := range z {
		if math.Abs(v) > e.cfg.AnomalyZ {
			idx = append(idx, i)
		}
	}
	return idx
}

// IsNoisy reports whether the anomalous share of the series exceeds the
// noisy-fraction threshold.
func (e *Engine) IsNoisy(points []Point) bool {
	if len(points) == 0 {
		return false
	}
	n := len(e.Anomalies(points))
	return float64(n)/float64(len(points)) > e.cfg.NoisyFraction
}

// Chains derives causal chains from pairwise results: an edge X->Y exists
// when X leads Y (positive lag) with posterior at or above minPosterior.
// Returned chains have at least three services, start at a root (no
// incoming edge), and are sorted for deterministic output.
func Chains(results []Result, minPosterior float64) [][]string {
	adj := map[string][]string{}
	hasIncoming := map[string]bool{}
	nodes := map[string]bool{}
	for _, r := range results {
		if r.Degenerate || r.Posterior < minPosterior || r.Lag == 0 {
			continue
		}
		from, to := r.A, r.B
		if r.Lag < 0 {
			from, to = r.B, r.A
		}
		adj[from] = append(adj[from], to)
		hasIncoming[to] = true
		nodes[from], nodes[to] = true, true
	}
	for from := range adj {
		sort.Strings(adj[from])
	}

	var roots []string
	for n := range nodes {
		if !hasIncoming[n] && len(adj[n]) > 0 {
			roots = append(roots, n)
		}
	}
	sort.Strings(roots)

	var chains [][]string
	var walk func(path []string, seen map[string]bool)
	walk = func(path []string, seen map[string]bool) {
		last := path[len(path)-1]
		extended := false
		for _, next := range adj[last] {
			if seen[next] {
				continue
			}
			seen[next] = true
			walk(append(path, next), seen)
			delete(seen, next)
			extended = true
		}
		if !extended && len(path) >= 3 {
			chain := make([]string, len(path))
			copy(chain, path)
			chains = append(chains, chain)
		}
	}
	for _, root := range roots {
		walk([]string{root}, map[string]bool{root: true})
	}
	sort.Slice(chains, func(i, j int) bool {
		for k := 0; k < len(chains[i]) && k < len(chains[j]); k++ {
			if chains[i][k] != chains[j][k] {
				return chains[i][k] < chains[j][k]
			}
		}
		return len(chains[i]) < len(chains[j])
	})
	return chains
}

// align inner-joins two series on their timestamps, preserving time order.
func align(a, b []Point) ([]float64, []float64) {
	bByTime := make(map[int64]float64, len(b))
	for _, p := range b {
		bByTime[p.T.Unix()] = p.V
	}
	var av, bv []float64
	for _, p := range a {
		if v, ok := bByTime[p.T.Unix()]; ok {
			av = append(av, p.V)
			bv = append(bv, v)
		}
	}
	return av, bv
}

// shift pairs a[i] with b[i+lag]; positive lag means a leads b.
func shift(a, b []float64, lag int) ([]float64, []float64) {
	n := len(a)
	switch {
	case lag > 0:
		if lag >= n {
			return nil, nil
		}
		return a[:n-lag], b[lag:]
	case lag < 0:
		k := -lag
		if k >= n {
			return nil, nil
		}
		return a[k:], b[:n-k]
	default:
		return a, b
	}
}

// lagOrder returns 0, 1, -1, 2, -2, ..., maxLag, -maxLag.
func lagOrder(maxLag int) []int {
	order := make([]int, 0, 2*maxLag+1)
	order = append(order, 0)
	for l := 1; l <= maxLag; l++ {
		order = append(order, l, -l)
	}
	return order
}
