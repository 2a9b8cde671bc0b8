package palette

// Wu's color quantizer: a 32×32×32 moment histogram is split greedily along
// the axis position maximizing variance reduction. Exact for the histogram
// resolution and fully deterministic.

const wuBits = 5
const wuSide = (1 << wuBits) + 1 // moments are cumulative, one extra plane

type wuBox struct {
	r0, r1, g0, g1, b0, b1 int
	vol                    int
}

type wuMoments struct {
	wt [wuSide][wuSide][wuSide]int64
	mr [wuSide][wuSide][wuSide]int64
	mg [wuSide][wuSide][wuSide]int64
	mb [wuSide][wuSide][wuSide]int64
	m2 [wuSide][wuSide][wuSide]float64
}

func quantizeWu(target []RGBA, maxTarget int, input []RGBA) int {
	m := &wuMoments{}
	m.histogram(input)
	m.cumulate()

	cubes := make([]wuBox, 1, maxTarget)
	cubes[0] = wuBox{r1: wuSide - 1, g1: wuSide - 1, b1: wuSide - 1}
	cubes[0].vol = (wuSide - 1) * (wuSide - 1) * (wuSide - 1)
	vv := make([]float64, 1, maxTarget)
	vv[0] = m.variance(&cubes[0])

	for len(cubes) < maxTarget {
		// split the cube with the highest positive variance; a cube whose
		// variance is zero holds one histogram cell and cannot split
		next := -1
		var maxVar float64
		for i := range cubes {
			if cubes[i].vol > 1 && vv[i] > maxVar {
				next = i
				maxVar = vv[i]
			}
		}
		if next < 0 {
			break
		}
		var b wuBox
		if !m.cut(&cubes[next], &b) {
			vv[next] = 0 // cannot split further
			continue
		}
		cubes = append(cubes, b)
		vv = append(vv, 0)
		if cubes[next].vol > 1 {
			vv[next] = m.variance(&cubes[next])
		} else {
			vv[next] = 0
		}
		if b.vol > 1 {
			vv[len(vv)-1] = m.variance(&b)
		}
	}

	n := 0
	for i := range cubes {
		w := m.volume(&cubes[i], &m.wt)
		if w <= 0 {
			continue
		}
		target[n] = RGBA{
			R: uint8(m.volume(&cubes[i], &m.mr) / w),
			G: uint8(m.volume(&cubes[i], &m.mg) / w),
			B: uint8(m.volume(&cubes[i], &m.mb) / w),
			A: 255,
		}
		n++
	}
	return n
}

func (m *wuMoments) histogram(input []RGBA) {
	shift := uint(8 - wuBits)
	for _, c := range input {
		r := int(c.R>>shift) + 1
		g := int(c.G>>shift) + 1
		b := int(c.B>>shift) + 1
		m.wt[r][g][b]++
		m.mr[r][g][b] += int64(c.R)
		m.mg[r][g][b] += int64(c.G)
		m.mb[r][g][b] += int64(c.B)
		m.m2[r][g][b] += float64(c.R)*float64(c.R) +
			float64(c.G)*float64(c.G) + float64(c.B)*float64(c.B)
	}
}

// cumulate converts the histogram into cumulative moments so any box sum is
// an eight-corner lookup.
func (m *wuMoments) cumulate() {
	for r := 1; r < wuSide; r++ {
		var area, areaR, areaG, areaB [wuSide]int64
		var area2 [wuSide]float64
		for g := 1; g < wuSide; g++ {
			var line, lineR, lineG, lineB int64
			var line2 float64
			for b := 1; b < wuSide; b++ {
				line += m.wt[r][g][b]
				lineR += m.mr[r][g][b]
				lineG += m.mg[r][g][b]
				lineB += m.mb[r][g][b]
				line2 += m.m2[r][g][b]
				area[b] += line
				areaR[b] += lineR
				areaG[b] += lineG
				areaB[b] += lineB
				area2[b] += line2
				m.wt[r][g][b] = m.wt[r-1][g][b] + area[b]
				m.mr[r][g][b] = m.mr[r-1][g][b] + areaR[b]
				m.mg[r][g][b] = m.mg[r-1][g][b] + areaG[b]
				m.mb[r][g][b] = m.mb[r-1][g][b] + areaB[b]
				m.m2[r][g][b] = m.m2[r-1][g][b] + area2[b]
			}
		}
	}
}

func (m *wuMoments) volume(c *wuBox, mom *[wuSide][wuSide][wuSide]int64) int64 {
	return mom[c.r1][c.g1][c.b1] - mom[c.r1][c.g1][c.b0] -
		mom[c.r1][c.g0][c.b1] + mom[c.r1][c.g0][c.b0] -
		mom[c.r0][c.g1][c.b1] + mom[c.r0][c.g1][c.b0] +
		mom[c.r0][c.g0][c.b1] - mom[c.r0][c.g0][c.b0]
}

func (m *wuMoments) volumeFloat(c *wuBox) float64 {
	return m.m2[c.r1][c.g1][c.b1] - m.m2[c.r1][c.g1][c.b0] -
		m.m2[c.r1][c.g0][c.b1] + m.m2[c.r1][c.g0][c.b0] -
		m.m2[c.r0][c.g1][c.b1] + m.m2[c.r0][c.g1][c.b0] +
		m.m2[c.r0][c.g0][c.b1] - m.m2[c.r0][c.g0][c.b0]
}

// bottom and top are the partial box sums used while scanning cut positions.
func bottom(c *wuBox, dir int, mom *[wuSide][wuSide][wuSide]int64) int64 {
	switch dir {
	case 0: // red
		return -mom[c.r0][c.g1][c.b1] + mom[c.r0][c.g1][c.b0] +
			mom[c.r0][c.g0][c.b1] - mom[c.r0][c.g0][c.b0]
	case 1: // green
		return -mom[c.r1][c.g0][c.b1] + mom[c.r1][c.g0][c.b0] +
			mom[c.r0][c.g0][c.b1] - mom[c.r0][c.g0][c.b0]
	default: // blue
		return -mom[c.r1][c.g1][c.b0] + mom[c.r1][c.g0][c.b0] +
			mom[c.r0][c.g1][c.b0] - mom[c.r0][c.g0][c.b0]
	}
}

func top(c *wuBox, dir, pos int, mom *[wuSide][wuSide][wuSide]int64) int64 {
	switch dir {
	case 0:
		return mom[pos][c.g1][c.b1] - mom[pos][c.g1][c.b0] -
			mom[pos][c.g0][c.b1] + mom[pos][c.g0][c.b0]
	case 1:
		return mom[c.r1][pos][c.b1] - mom[c.r1][pos][c.b0] -
			mom[c.r0][pos][c.b1] + mom[c.r0][pos][c.b0]
	default:
		return mom[c.r1][c.g1][pos] - mom[c.r1][c.g0][pos] -
			mom[c.r0][c.g1][pos] + mom[c.r0][c.g0][pos]
	}
}

func (m *wuMoments) variance(c *wuBox) float64 {
	dr := float64(m.volume(c, &m.mr))
	dg := float64(m.volume(c, &m.mg))
	db := float64(m.volume(c, &m.mb))
	xx := m.volumeFloat(c)
	w := float64(m.volume(c, &m.wt))
	if w == 0 {
		return 0
	}
	return xx - (dr*dr+dg*dg+db*db)/w
}

// maximize finds the cut position along dir with the largest variance gain.
func (m *wuMoments) maximize(c *wuBox, dir, first, last int,
	wholeR, wholeG, wholeB, wholeW int64) (float64, int) {
	baseR := bottom(c, dir, &m.mr)
	baseG := bottom(c, dir, &m.mg)
	baseB := bottom(c, dir, &m.mb)
	baseW := bottom(c, dir, &m.wt)
	var max float64
	cut := -1
	for i := first; i < last; i++ {
		halfR := baseR + top(c, dir, i, &m.mr)
		halfG := baseG + top(c, dir, i, &m.mg)
		halfB := baseB + top(c, dir, i, &m.mb)
		halfW := baseW + top(c, dir, i, &m.wt)
		if halfW == 0 {
			continue
		}
		temp := (float64(halfR)*float64(halfR) + float64(halfG)*float64(halfG) +
			float64(halfB)*float64(halfB)) / float64(halfW)
		halfR = wholeR - halfR
		halfG = wholeG - halfG
		halfB = wholeB - halfB
		halfW = wholeW - halfW
		if halfW == 0 {
			continue
		}
		temp += (float64(halfR)*float64(halfR) + float64(halfG)*float64(halfG) +
			float64(halfB)*float64(halfB)) / float64(halfW)
		if temp > max {
			max = temp
			cut = i
		}
	}
	return max, cut
}

func (m *wuMoments) cut(set1, set2 *wuBox) bool {
	wholeR := m.volume(set1, &m.mr)
	wholeG := m.volume(set1, &m.mg)
	wholeB := m.volume(set1, &m.mb)
	wholeW := m.volume(set1, &m.wt)

	maxR, cutR := m.maximize(set1, 0, set1.r0+1, set1.r1, wholeR, wholeG, wholeB, wholeW)
	maxG, cutG := m.maximize(set1, 1, set1.g0+1, set1.g1, wholeR, wholeG, wholeB, wholeW)
	maxB, cutB := m.maximize(set1, 2, set1.b0+1, set1.b1, wholeR, wholeG, wholeB, wholeW)

	var dir int
	if maxR >= maxG && maxR >= maxB {
		if cutR < 0 {
			return false
		}
		dir = 0
	} else if maxG >= maxR && maxG >= maxB {
		dir = 1
	} else {
		dir = 2
	}

	*set2 = *set1
	switch dir {
	case 0:
		set1.r1 = cutR
		set2.r0 = cutR
	case 1:
		set1.g1 = cutG
		set2.g0 = cutG
	default:
		set1.b1 = cutB
		set2.b0 = cutB
	}
	set1.vol = (set1.r1 - set1.r0) * (set1.g1 - set1.g0) * (set1.b1 - set1.b0)
	set2.vol = (set2.r1 - set2.r0) * (set2.g1 - set2.g0) * (set2.b1 - set2.b0)
	return true
}
