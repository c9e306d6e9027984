package scoring

import (
	"fmt"
	"math"
	"sort"

	"WalletScore/internal/domain/service"
)

// Method names accepted by NewNormalizer.
const (
	MethodMinMax     = "minmax"
	MethodPercentile = "percentile"
)

// Range is the integer output scale and the score given to degenerate populations.
type Range struct {
	Min      int
	Max      int
	Fallback int
}

func DefaultRange() Range {
	return Range{Min: 0, Max: 1000, Fallback: 500}
}

func (r Range) validate() error {
	if r.Min >= r.Max {
		return fmt.Errorf("%w: normalization range [%d, %d] is empty", ErrInvalidConfig, r.Min, r.Max)
	}
	if r.Fallback < r.Min || r.Fallback > r.Max {
		return fmt.Errorf("%w: fallback %d outside [%d, %d]", ErrInvalidConfig, r.Fallback, r.Min, r.Max)
	}
	return nil
}

// NewNormalizer builds the normalizer registered under method.
func NewNormalizer(method string, r Range) (service.Normalizer, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	switch method {
	case "", MethodMinMax:
		return &MinMax{r: r}, nil
	case MethodPercentile:
		return &Percentile{r: r}, nil
	default:
		return nil, fmt.Errorf("%w: unknown normalization method %q", ErrInvalidConfig, method)
	}
}

// MinMax rescales the observed raw range linearly onto the output range.
type MinMax struct {
	r Range
}

func (m *MinMax) Name() string { return MethodMinMax }

func (m *MinMax) Normalize(raw []float64) []int {
	out := make([]int, len(raw))
	if len(raw) == 0 {
		return out
	}
	lo, hi := raw[0], raw[0]
	for _, v := range raw[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if !(span > 0) || math.IsInf(span, 0) {
		fill(out, m.r.Fallback)
		return out
	}
	width := float64(m.r.Max - m.r.Min)
	for i, v := range raw {
		out[i] = m.r.clamp(float64(m.r.Min) + (v-lo)/span*width)
	}
	return out
}

// Percentile maps each score to its average-rank fraction, so ties share a value.
type Percentile struct {
	r Range
}

func (p *Percentile) Name() string { return MethodPercentile }

func (p *Percentile) Normalize(raw []float64) []int {
	out := make([]int, len(raw))
	n := len(raw)
	if n == 0 {
		return out
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return raw[idx[a]] < raw[idx[b]] })

	if raw[idx[0]] == raw[idx[n-1]] {
		fill(out, p.r.Fallback)
		return out
	}

	width := float64(p.r.Max - p.r.Min)
	for start := 0; start < n; {
		end := start
		for end+1 < n && raw[idx[end+1]] == raw[idx[start]] {
			end++
		}
		rank := float64(start+end) / 2
		score := p.r.clamp(float64(p.r.Min) + rank/float64(n-1)*width)
		for k := start; k <= end; k++ {
			out[idx[k]] = score
		}
		start = end + 1
	}
	return out
}

func (r Range) clamp(v float64) int {
	x := int(math.Round(v))
	if x < r.Min {
		return r.Min
	}
	if x > r.Max {
		return r.Max
	}
	return x
}

func fill(out []int, v int) {
	for i := range out {
		out[i] = v
	}
}
