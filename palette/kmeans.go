package palette

import (
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"
)

const kmeansIterations = 10

// quantizeKMeans clusters the distinct input colors in Lab space with
// deterministic seeding: the distinct colors are sorted by packed RGBA value
// and the initial centers are spread evenly across that ordering.
func quantizeKMeans(target []RGBA, maxTarget int, input []RGBA) int {
	distinct := distinctColors(input)
	sort.Slice(distinct, func(i, j int) bool {
		return packRGBA(distinct[i]) < packRGBA(distinct[j])
	})
	if len(distinct) <= maxTarget {
		return copy(target, distinct)
	}

	type lab struct{ l, a, b float64 }
	points := make([]lab, len(distinct))
	for i, c := range distinct {
		cc := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
		l, a, b := cc.Lab()
		points[i] = lab{l, a, b}
	}

	k := maxTarget
	centers := make([]lab, k)
	for i := 0; i < k; i++ {
		centers[i] = points[i*len(points)/k]
	}

	assign := make([]int, len(points))
	for iter := 0; iter < kmeansIterations; iter++ {
		changed := false
		for i, pt := range points {
			best := 0
			bestDist := -1.0
			for j, c := range centers {
				dl := pt.l - c.l
				da := pt.a - c.a
				db := pt.b - c.b
				d := dl*dl + da*da + db*db
				if bestDist < 0 || d < bestDist {
					bestDist = d
					best = j
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}
		sums := make([]lab, k)
		counts := make([]int, k)
		for i, pt := range points {
			j := assign[i]
			sums[j].l += pt.l
			sums[j].a += pt.a
			sums[j].b += pt.b
			counts[j]++
		}
		for j := range centers {
			if counts[j] == 0 {
				continue // empty cluster keeps its center
			}
			centers[j] = lab{
				sums[j].l / float64(counts[j]),
				sums[j].a / float64(counts[j]),
				sums[j].b / float64(counts[j]),
			}
		}
	}

	// average the original RGBA members per cluster so alpha survives
	rs := make([]int64, k)
	gs := make([]int64, k)
	bs := make([]int64, k)
	as := make([]int64, k)
	cnt := make([]int64, k)
	for i, c := range distinct {
		j := assign[i]
		rs[j] += int64(c.R)
		gs[j] += int64(c.G)
		bs[j] += int64(c.B)
		as[j] += int64(c.A)
		cnt[j]++
	}
	n := 0
	for j := 0; j < k; j++ {
		if cnt[j] == 0 {
			continue
		}
		target[n] = RGBA{
			R: uint8(rs[j] / cnt[j]),
			G: uint8(gs[j] / cnt[j]),
			B: uint8(bs[j] / cnt[j]),
			A: uint8(as[j] / cnt[j]),
		}
		n++
	}
	return n
}

func packRGBA(c RGBA) uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}
