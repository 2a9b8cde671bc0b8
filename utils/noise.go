// Package utils holds development helpers outside the conversion core, such
// as procedural test scene generation.
package utils

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/voxelforge/voxconv/format"
	"github.com/voxelforge/voxconv/palette"
	"github.com/voxelforge/voxconv/scenegraph"
	"github.com/voxelforge/voxconv/voxel"

	_ "github.com/voxelforge/voxconv/format/vxck"
)

const noiseSize = 32

// generateNoiseVolume fills the given percentage of a 32x32x32 volume with
// random palette indices in [1..63]. Remaining voxels stay empty.
func generateNoiseVolume(percentage float64, r *rand.Rand) (*voxel.Volume, error) {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}
	total := noiseSize * noiseSize * noiseSize
	want := int(float64(total)*(percentage/100.0) + 0.5)
	if want > total {
		want = total
	}

	vol, err := voxel.NewVolume(voxel.CubeRegion(0, noiseSize-1))
	if err != nil {
		return nil, err
	}

	idx := make([]int, total)
	for i := range idx {
		idx[i] = i
	}
	// Fisher-Yates shuffle only the first 'want' items for efficiency
	for i := 0; i < want; i++ {
		j := i + r.Intn(total-i)
		idx[i], idx[j] = idx[j], idx[i]
	}

	for k := 0; k < want; k++ {
		i := idx[k]
		y := i / (noiseSize * noiseSize)
		rem := i % (noiseSize * noiseSize)
		x := rem / noiseSize
		z := rem % noiseSize
		// random color 1..63 (0 is empty)
		color := uint8(1 + r.Intn(63))
		vol.SetVoxel(int32(x), int32(y), int32(z), color)
	}
	return vol, nil
}

// RunGenerateNoise creates 'amount' scene files named 0.vxck..(amount-1).vxck
// in outDir, each with a random fill percentage uniformly sampled in
// [percentageMin, percentageMax].
func RunGenerateNoise(percentageMin, percentageMax float64, amount int, outDir string) error {
	if amount < 0 {
		amount = 0
	}
	if outDir == "" {
		outDir = "."
	}
	if percentageMin < 0 {
		percentageMin = 0
	}
	if percentageMax > 100 {
		percentageMax = 100
	}
	if percentageMax < percentageMin {
		percentageMin, percentageMax = percentageMax, percentageMin
	}
	a := format.NewDirArchive(outDir)

	// Seed base once and derive per-file seeds deterministically
	baseSeed := uint64(time.Now().UnixNano())
	for i := 0; i < amount; i++ {
		// derive a seed per file using a Weyl-like progression (unsigned math)
		const weyl = uint64(0x9e3779b97f4a7c15)
		seed := baseSeed ^ (uint64(i)+1)*weyl
		r := rand.New(rand.NewSource(int64(seed & 0x7fffffffffffffff)))

		perc := percentageMin
		if percentageMax > percentageMin {
			perc = percentageMin + r.Float64()*(percentageMax-percentageMin)
		}

		vol, err := generateNoiseVolume(perc, r)
		if err != nil {
			return err
		}
		g := scenegraph.New()
		n := scenegraph.NewNode(scenegraph.NodeTypeModel)
		n.SetName(fmt.Sprintf("noise-%d", i))
		n.SetVolume(vol)
		n.SetPalette(palette.Default())
		if _, err := g.Emplace(n, scenegraph.RootNodeID); err != nil {
			return err
		}
		name := fmt.Sprintf("%d.vxck", i)
		if err := format.Save(g, name, a, nil); err != nil {
			return fmt.Errorf("saving %s: %w", name, err)
		}
	}
	return nil
}
