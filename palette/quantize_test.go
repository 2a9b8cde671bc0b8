package palette

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleColors builds a deterministic spread of n distinct colors.
func sampleColors(n int) []RGBA {
	out := make([]RGBA, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, RGBA{
			R: uint8(i * 7),
			G: uint8(255 - i*3),
			B: uint8(i * 13),
			A: 255,
		})
	}
	return out
}

func TestQuantizeRespectsTarget(t *testing.T) {
	input := sampleColors(1000)
	for _, algo := range []Reduction{ReductionOctree, ReductionWu, ReductionKMeans} {
		for _, max := range []int{8, 64, 255} {
			target := make([]RGBA, MaxColors)
			n, err := Quantize(target, max, input, algo)
			require.NoError(t, err, "algo %d", algo)
			assert.LessOrEqual(t, n, max, "algo %d max %d", algo, max)
			assert.Greater(t, n, 0)
		}
	}
}

func TestQuantizeDeterministic(t *testing.T) {
	input := sampleColors(512)
	for _, algo := range []Reduction{ReductionOctree, ReductionWu, ReductionKMeans} {
		a := make([]RGBA, MaxColors)
		b := make([]RGBA, MaxColors)
		na, err := Quantize(a, 64, input, algo)
		require.NoError(t, err)
		nb, err := Quantize(b, 64, input, algo)
		require.NoError(t, err)
		require.Equal(t, na, nb, "algo %d", algo)
		assert.Equal(t, a[:na], b[:nb], "algo %d output differs between runs", algo)
	}
}

func TestQuantizeOctreeFoldsSiblingLeaves(t *testing.T) {
	// 16 pairs of colors differing only in the lowest red bit share a parent
	// at the deepest tree level, so reducing to 16 folds each pair into its
	// integer average.
	var input []RGBA
	var want []RGBA
	for g := 0; g < 16; g++ {
		base := uint8(8 * g)
		input = append(input, RGBA{R: base, A: 255}, RGBA{R: base + 1, A: 255})
		want = append(want, RGBA{R: base, A: 255})
	}
	target := make([]RGBA, MaxColors)
	n, err := Quantize(target, 16, input, ReductionOctree)
	require.NoError(t, err)
	require.Equal(t, 16, n)
	assert.ElementsMatch(t, want, target[:n])
}

func TestQuantizeWuSplitsToDistinctCells(t *testing.T) {
	// eight colors in separate histogram cells along the red axis split into
	// one box each and come back exactly
	var input []RGBA
	for i := 0; i < 8; i++ {
		input = append(input, RGBA{R: uint8(i * 32), A: 255})
	}
	target := make([]RGBA, MaxColors)
	n, err := Quantize(target, 8, input, ReductionWu)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	assert.ElementsMatch(t, input, target[:n])
}

func TestQuantizeWuMergesWithinHistogramCell(t *testing.T) {
	// R=10 and R=12 land in the same 5-bit histogram cell and average
	input := []RGBA{{R: 10, A: 255}, {R: 12, A: 255}}
	target := make([]RGBA, MaxColors)
	n, err := Quantize(target, 8, input, ReductionWu)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, RGBA{R: 11, A: 255}, target[0])
}

func TestQuantizeKMeansClustersSeparatedPairs(t *testing.T) {
	// four well-separated pairs with k=4: even seeding puts one center per
	// pair, so each cluster averages its pair
	var input []RGBA
	var want []RGBA
	for i := 0; i < 4; i++ {
		r := uint8(i * 80)
		input = append(input, RGBA{R: r, A: 255}, RGBA{R: r, B: 16, A: 255})
		want = append(want, RGBA{R: r, B: 8, A: 255})
	}
	target := make([]RGBA, MaxColors)
	n, err := Quantize(target, 4, input, ReductionKMeans)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	assert.ElementsMatch(t, want, target[:n])
}

func TestQuantizeKMeansKeepsDistinctUnderTarget(t *testing.T) {
	input := []RGBA{
		{R: 40, A: 255}, {G: 80, A: 255}, {B: 120, A: 255},
		{R: 40, A: 255}, {G: 80, A: 255}, // duplicates collapse
	}
	target := make([]RGBA, MaxColors)
	n, err := Quantize(target, 8, input, ReductionKMeans)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	assert.ElementsMatch(t, input[:3], target[:n])
}

func TestQuantizeSmallInputPassesThrough(t *testing.T) {
	input := []RGBA{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 255},
	}
	target := make([]RGBA, MaxColors)
	n, err := Quantize(target, 255, input, ReductionOctree)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.ElementsMatch(t, input, target[:n])
}

func TestQuantizeEmptyInput(t *testing.T) {
	target := make([]RGBA, MaxColors)
	n, err := Quantize(target, 255, nil, ReductionWu)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestQuantizeMedianCutUnsupported(t *testing.T) {
	target := make([]RGBA, MaxColors)
	_, err := Quantize(target, 255, sampleColors(10), ReductionMedianCut)
	assert.ErrorIs(t, err, ErrUnsupportedReduction)
}

func TestFromColors(t *testing.T) {
	p, err := FromColors(sampleColors(10), ReductionOctree)
	require.NoError(t, err)
	assert.Equal(t, RGBA{}, p.Color(0), "entry 0 stays clear for air")
	assert.Equal(t, 11, p.ColorCount())

	// oversized input still fits the table
	big, err := FromColors(sampleColors(4000), ReductionWu)
	require.NoError(t, err)
	assert.LessOrEqual(t, big.ColorCount(), MaxColors)
}
