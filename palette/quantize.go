package palette

import "errors"

// Reduction selects the color reduction algorithm used by Quantize.
type Reduction int

const (
	ReductionOctree Reduction = iota
	ReductionWu
	ReductionKMeans
	// ReductionMedianCut is known-unstable and intentionally not wired.
	ReductionMedianCut
)

var ErrUnsupportedReduction = errors.New("unsupported color reduction algorithm")

// Quantize reduces input to at most maxTarget representative colors written
// into target. It returns the number of colors produced. The output order is
// implementation-defined per algorithm but stable for a given input.
func Quantize(target []RGBA, maxTarget int, input []RGBA, algo Reduction) (int, error) {
	if maxTarget <= 0 || maxTarget > len(target) {
		maxTarget = len(target)
	}
	if len(input) == 0 {
		return 0, nil
	}
	switch algo {
	case ReductionOctree:
		return quantizeOctree(target, maxTarget, input), nil
	case ReductionWu:
		return quantizeWu(target, maxTarget, input), nil
	case ReductionKMeans:
		return quantizeKMeans(target, maxTarget, input), nil
	default:
		return 0, ErrUnsupportedReduction
	}
}

// FromColors builds a palette from arbitrary samples, reducing them when they
// exceed MaxColors. Entry 0 stays clear for formats that reserve it for air.
func FromColors(input []RGBA, algo Reduction) (*Palette, error) {
	p := New()
	distinct := distinctColors(input)
	if len(distinct) < MaxColors {
		p.SetColor(0, RGBA{})
		for _, c := range distinct {
			p.AddColor(c, false)
		}
		return p, nil
	}
	buf := make([]RGBA, MaxColors)
	n, err := Quantize(buf, MaxColors-1, input, algo)
	if err != nil {
		return nil, err
	}
	p.SetColor(0, RGBA{})
	for _, c := range buf[:n] {
		p.AddColor(c, false)
	}
	return p, nil
}

func distinctColors(input []RGBA) []RGBA {
	seen := make(map[RGBA]struct{}, len(input))
	out := make([]RGBA, 0, len(input))
	for _, c := range input {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
