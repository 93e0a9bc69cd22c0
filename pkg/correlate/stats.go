package correlate

import "math"

// neumaierSum accumulates values with Neumaier's compensated summation so
// long low-magnitude tails are not swallowed by earlier large terms.
type neumaierSum struct {
	sum float64
	c   float64
}

func (s *neumaierSum) add(v float64) {
	t := s.sum + v
	if math.Abs(s.sum) >= math.Abs(v) {
		s.c += (s.sum - t) + v
	} else {
		s.c += (v - t) + s.sum
	}
	s.sum = t
}

func (s *neumaierSum) value() float64 {
	return s.sum + s.c
}

func sum(values []float64) float64 {
	var s neumaierSum
	for _, v := range values {
		s.add(v)
	}
	return s.value()
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

// variance returns the sample variance (n-1 denominator).
func variance(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	m := mean(values)
	var s neumaierSum
	for _, v := range values {
		d := v - m
		s.add(d * d)
	}
	return s.value() / float64(n-1)
}

// detrend removes the least-squares linear trend in place-free fashion,
// returning a new slice. Index is the independent variable.
func detrend(values []float64) []float64 {
	n := len(values)
	if n < 2 {
		out := make([]float64, n)
		copy(out, values)
		return out
	}
	// Least squares over x = 0..n-1.
	xMean := float64(n-1) / 2
	yMean := mean(values)
	var sxy, sxx neumaierSum
	for i, v := range values {
		dx := float64(i) - xMean
		sxy.add(dx * (v - yMean))
		sxx.add(dx * dx)
	}
	slope := 0.0
	if sxx.value() != 0 {
		slope = sxy.value() / sxx.value()
	}
	intercept := yMean - slope*xMean
	out := make([]float64, n)
	for i, v := range values {
		out[i] = v - (intercept + slope*float64(i))
	}
	return out
}

// zscore normalizes to zero mean and unit standard deviation. Returns
// (nil, false) when the series has no variance.
func zscore(values []float64) ([]float64, bool) {
	n := len(values)
	if n < 2 {
		return nil, false
	}
	v := variance(values)
	if v <= 0 {
		return nil, false
	}
	m := mean(values)
	sd := math.Sqrt(v)
	out := make([]float64, n)
	for i, x := range values {
		out[i] = (x - m) / sd
	}
	return out, true
}

// pearson computes the correlation coefficient between equal-length slices.
// Returns (0, false) when either side is constant.
func pearson(a, b []float64) (float64, bool) {
	n := len(a)
	if n != len(b) || n < 2 {
		return 0, false
	}
	am, bm := mean(a), mean(b)
	var sab, saa, sbb neumaierSum
	for i := 0; i < n; i++ {
		da := a[i] - am
		db := b[i] - bm
		sab.add(da * db)
		saa.add(da * da)
		sbb.add(db * db)
	}
	den := math.Sqrt(saa.value()) * math.Sqrt(sbb.value())
	if den == 0 {
		return 0, false
	}
	r := sab.value() / den
	// Floating error can push |r| marginally above 1.
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r, true
}

// pValue returns the two-sided p-value for a Pearson coefficient r over n
// samples, from the t statistic t = r*sqrt((n-2)/(1-r^2)) against the
// Student-t distribution with n-2 degrees of freedom.
func pValue(r float64, n int) float64 {
	if n <= 2 {
		return 1
	}
	rr := r * r
	if rr >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := math.Abs(r) * math.Sqrt(df/(1-rr))
	// Two-sided survival of the t distribution.
	return regIncBeta(df/2, 0.5, df/(df+t*t))
}

// regIncBeta is the regularized incomplete beta function I_x(a, b),
// evaluated with the continued-fraction expansion.
func regIncBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	lgA, _ := math.Lgamma(a)
	lgB, _ := math.Lgamma(b)
	lgAB, _ := math.Lgamma(a + b)
	front := math.Exp(lgAB - lgA - lgB + a*math.Log(x) + b*math.Log(1-x))
	if x < (a+1)/(a+b+2) {
		return front * betaCF(a, b, x) / a
	}
	return 1 - front*betaCF(b, a, 1-x)/b
}

// betaCF evaluates the continued fraction for the incomplete beta function
// using the modified Lentz method.
func betaCF(a, b, x float64) float64 {
	const (
		maxIter = 200
		eps     = 3e-14
		fpmin   = 1e-300
	)
	qab := a + b
	qap := a + 1
	qam := a - 1
	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < fpmin {
		d = fpmin
	}
	d = 1 / d
	h := d
	for m := 1; m <= maxIter; m++ {
		fm := float64(m)
		m2 := 2 * fm
		aa := fm * (b - fm) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < fpmin {
			d = fpmin
		}
		c = 1 + aa/c
		if math.Abs(c) < fpmin {
			c = fpmin
		}
		d = 1 / d
		h *= d * c
		aa = -(a + fm) * (qab + fm) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < fpmin {
			d = fpmin
		}
		c = 1 + aa/c
		if math.Abs(c) < fpmin {
			c = fpmin
		}
		d = 1 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < eps {
			break
		}
	}
	return h
}
