// Package signals implements the signal library of spec §4.8: SMA, EMA,
// RSI, Bollinger, MACD, order imbalance, and spread dynamics indicators.
// Each indicator exposes Update/Value following the teacher's composable
// indicator shape (internal/signals/aggregator.go), generalized to the
// spec's exact formulas.
package signals

import "math"

// SMA is a simple moving average over the last n samples.
type SMA struct {
	n       int
	window  []float64
}

func NewSMA(n int) *SMA { return &SMA{n: n, window: make([]float64, 0, n)} }

func (s *SMA) Update(sample float64) {
	s.window = append(s.window, sample)
	if len(s.window) > s.n {
		s.window = s.window[len(s.window)-s.n:]
	}
}

func (s *SMA) Value() (float64, bool) {
	if len(s.window) < s.n {
		return 0, false
	}
	var sum float64
	for _, v := range s.window {
		sum += v
	}
	return sum / float64(s.n), true
}

// EMA is an exponential moving average, alpha = 2/(n+1), seeded from the
// first n samples' SMA.
type EMA struct {
	n     int
	alpha float64
	seed  *SMA
	value float64
	ready bool
}

func NewEMA(n int) *EMA {
	return &EMA{n: n, alpha: 2.0 / float64(n+1), seed: NewSMA(n)}
}

func (e *EMA) Update(sample float64) {
	if !e.ready {
		e.seed.Update(sample)
		if v, ok := e.seed.Value(); ok {
			e.value = v
			e.ready = true
		}
		return
	}
	e.value = e.alpha*sample + (1-e.alpha)*e.value
}

func (e *EMA) Value() (float64, bool) {
	if !e.ready {
		return 0, false
	}
	return e.value, true
}

// RSI is Wilder's relative strength index over n periods.
type RSI struct {
	n            int
	prev         float64
	hasPrev      bool
	avgGain      float64
	avgLoss      float64
	count        int
	ready        bool
}

func NewRSI(n int) *RSI { return &RSI{n: n} }

func (r *RSI) Update(sample float64) {
	if !r.hasPrev {
		r.prev = sample
		r.hasPrev = true
		return
	}
	change := sample - r.prev
	r.prev = sample

	var gain, loss float64
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	if r.count < r.n {
		r.avgGain += gain
		r.avgLoss += loss
		r.count++
		if r.count == r.n {
			r.avgGain /= float64(r.n)
			r.avgLoss /= float64(r.n)
			r.ready = true
		}
		return
	}

	r.avgGain = (r.avgGain*float64(r.n-1) + gain) / float64(r.n)
	r.avgLoss = (r.avgLoss*float64(r.n-1) + loss) / float64(r.n)
}

func (r *RSI) Value() (float64, bool) {
	if !r.ready {
		return 0, false
	}
	if r.avgLoss == 0 {
		return 100, true
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs), true
}

// Bollinger computes the middle/upper/lower bands over n samples at k
// standard deviations.
type Bollinger struct {
	n      int
	k      float64
	window []float64
}

func NewBollinger(n int, k float64) *Bollinger {
	return &Bollinger{n: n, k: k, window: make([]float64, 0, n)}
}

func (b *Bollinger) Update(sample float64) {
	b.window = append(b.window, sample)
	if len(b.window) > b.n {
		b.window = b.window[len(b.window)-b.n:]
	}
}

// BollingerBands is the (middle, upper, lower) triple.
type BollingerBands struct {
	Middle, Upper, Lower float64
}

func (b *Bollinger) Value() (BollingerBands, bool) {
	if len(b.window) < b.n {
		return BollingerBands{}, false
	}
	var sum float64
	for _, v := range b.window {
		sum += v
	}
	mean := sum / float64(b.n)

	var sqSum float64
	for _, v := range b.window {
		d := v - mean
		sqSum += d * d
	}
	sigma := math.Sqrt(sqSum / float64(b.n))

	return BollingerBands{Middle: mean, Upper: mean + b.k*sigma, Lower: mean - b.k*sigma}, true
}

// MACD computes macd = EMA(fast) - EMA(slow), signal = EMA(signalN) of macd.
type MACD struct {
	fast, slow, signal *EMA
}

// NewMACD with the standard (12,26,9) periods, parameterizable per spec §4.8.
func NewMACD(fastN, slowN, signalN int) *MACD {
	return &MACD{fast: NewEMA(fastN), slow: NewEMA(slowN), signal: NewEMA(signalN)}
}

func (m *MACD) Update(sample float64) {
	m.fast.Update(sample)
	m.slow.Update(sample)
	fastV, fastOK := m.fast.Value()
	slowV, slowOK := m.slow.Value()
	if fastOK && slowOK {
		m.signal.Update(fastV - slowV)
	}
}

// MACDValue is the (macd, signal) pair.
type MACDValue struct {
	MACD, Signal float64
}

func (m *MACD) Value() (MACDValue, bool) {
	fastV, fastOK := m.fast.Value()
	slowV, slowOK := m.slow.Value()
	if !fastOK || !slowOK {
		return MACDValue{}, false
	}
	macd := fastV - slowV
	sigV, sigOK := m.signal.Value()
	if !sigOK {
		return MACDValue{}, false
	}
	return MACDValue{MACD: macd, Signal: sigV}, true
}

// OrderImbalance computes (bid_vol - ask_vol)/(bid_vol + ask_vol) over the
// top k levels of a book snapshot.
func OrderImbalance(bidVolumes, askVolumes []float64, k int) (float64, bool) {
	bidSum := sumTopK(bidVolumes, k)
	askSum := sumTopK(askVolumes, k)
	total := bidSum + askSum
	if total == 0 {
		return 0, false
	}
	return (bidSum - askSum) / total, true
}

func sumTopK(xs []float64, k int) float64 {
	if k > len(xs) {
		k = len(xs)
	}
	var s float64
	for i := 0; i < k; i++ {
		s += xs[i]
	}
	return s
}

// SpreadDynamics tracks the rolling mean and stdev of (ask_1 - bid_1).
type SpreadDynamics struct {
	n      int
	window []float64
}

func NewSpreadDynamics(n int) *SpreadDynamics {
	return &SpreadDynamics{n: n, window: make([]float64, 0, n)}
}

func (s *SpreadDynamics) Update(bid1, ask1 float64) {
	spread := ask1 - bid1
	s.window = append(s.window, spread)
	if len(s.window) > s.n {
		s.window = s.window[len(s.window)-s.n:]
	}
}

// SpreadStats is the (mean, stdev) pair.
type SpreadStats struct {
	Mean, Stdev float64
}

func (s *SpreadDynamics) Value() (SpreadStats, bool) {
	if len(s.window) < s.n {
		return SpreadStats{}, false
	}
	var sum float64
	for _, v := range s.window {
		sum += v
	}
	mean := sum / float64(s.n)
	var sqSum float64
	for _, v := range s.window {
		d := v - mean
		sqSum += d * d
	}
	return SpreadStats{Mean: mean, Stdev: math.Sqrt(sqSum / float64(s.n))}, true
}

// Composite aggregates child signals by weighted sum, clamped to [-1,1].
type Composite struct {
	weights []float64
	signals []func() (float64, bool)
}

// NewComposite builds a composite over a fixed set of (weight, source) pairs.
func NewComposite(weights []float64, sources []func() (float64, bool)) *Composite {
	return &Composite{weights: weights, signals: sources}
}

func (c *Composite) Value() float64 {
	var total float64
	for i, src := range c.signals {
		v, ok := src()
		if !ok {
			continue
		}
		total += v * c.weights[i]
	}
	if total > 1 {
		return 1
	}
	if total < -1 {
		return -1
	}
	return total
}
