package mcworld

import "github.com/voxelforge/voxconv/palette"

// blockColors maps the common block states onto representative colors. The
// table is intentionally small; unknown blocks fall back to a neutral gray.
var blockColors = map[string]palette.RGBA{
	"minecraft:stone":             {R: 125, G: 125, B: 125, A: 255},
	"minecraft:cobblestone":       {R: 110, G: 110, B: 110, A: 255},
	"minecraft:granite":           {R: 153, G: 114, B: 99, A: 255},
	"minecraft:diorite":           {R: 189, G: 188, B: 189, A: 255},
	"minecraft:andesite":          {R: 136, G: 136, B: 137, A: 255},
	"minecraft:deepslate":         {R: 80, G: 80, B: 82, A: 255},
	"minecraft:bedrock":           {R: 60, G: 60, B: 60, A: 255},
	"minecraft:dirt":              {R: 134, G: 96, B: 67, A: 255},
	"minecraft:grass_block":       {R: 99, G: 150, B: 64, A: 255},
	"minecraft:sand":              {R: 219, G: 207, B: 163, A: 255},
	"minecraft:gravel":            {R: 131, G: 127, B: 126, A: 255},
	"minecraft:sandstone":         {R: 217, G: 205, B: 158, A: 255},
	"minecraft:clay":              {R: 159, G: 164, B: 177, A: 255},
	"minecraft:oak_log":           {R: 107, G: 84, B: 51, A: 255},
	"minecraft:oak_planks":        {R: 158, G: 132, B: 79, A: 255},
	"minecraft:oak_leaves":        {R: 60, G: 110, B: 30, A: 255},
	"minecraft:spruce_log":        {R: 82, G: 64, B: 38, A: 255},
	"minecraft:spruce_leaves":     {R: 50, G: 85, B: 50, A: 255},
	"minecraft:birch_log":         {R: 216, G: 215, B: 210, A: 255},
	"minecraft:water":             {R: 49, G: 88, B: 189, A: 200},
	"minecraft:lava":              {R: 217, G: 104, B: 27, A: 255},
	"minecraft:ice":               {R: 145, G: 184, B: 253, A: 220},
	"minecraft:snow":              {R: 240, G: 247, B: 247, A: 255},
	"minecraft:snow_block":        {R: 240, G: 247, B: 247, A: 255},
	"minecraft:coal_ore":          {R: 105, G: 105, B: 105, A: 255},
	"minecraft:iron_ore":          {R: 135, G: 125, B: 115, A: 255},
	"minecraft:gold_ore":          {R: 143, G: 139, B: 111, A: 255},
	"minecraft:diamond_ore":       {R: 125, G: 141, B: 142, A: 255},
	"minecraft:obsidian":          {R: 20, G: 16, B: 38, A: 255},
	"minecraft:netherrack":        {R: 111, G: 54, B: 52, A: 255},
	"minecraft:glass":             {R: 200, G: 220, B: 225, A: 120},
	"minecraft:bricks":            {R: 150, G: 97, B: 83, A: 255},
	"minecraft:stone_bricks":      {R: 122, G: 122, B: 122, A: 255},
	"minecraft:mossy_cobblestone": {R: 100, G: 118, B: 100, A: 255},
	"minecraft:terracotta":        {R: 152, G: 94, B: 67, A: 255},
	"minecraft:wool":              {R: 222, G: 222, B: 222, A: 255},
	"minecraft:podzol":            {R: 90, G: 63, B: 24, A: 255},
	"minecraft:mycelium":          {R: 111, G: 99, B: 105, A: 255},
	"minecraft:mud":               {R: 60, G: 57, B: 60, A: 255},
	"minecraft:calcite":           {R: 223, G: 224, B: 220, A: 255},
	"minecraft:tuff":              {R: 108, G: 109, B: 102, A: 255},
}

var defaultBlockColor = palette.RGBA{R: 150, G: 150, B: 150, A: 255}

// airBlocks never produce voxels.
var airBlocks = map[string]struct{}{
	"minecraft:air":      {},
	"minecraft:cave_air": {},
	"minecraft:void_air": {},
}

func isAir(name string) bool {
	_, ok := airBlocks[name]
	return ok
}

func blockColor(name string) palette.RGBA {
	if c, ok := blockColors[name]; ok {
		return c
	}
	return defaultBlockColor
}
