package voxel

// Morton keys interleave the bits of three 21-bit coordinates. Container
// formats use them to name per-chunk entries so that spatially close chunks
// sort together.

func Morton3D64(x, y, z uint32) uint64 {
	return part1By2(uint64(x)) |
		(part1By2(uint64(y)) << 1) |
		(part1By2(uint64(z)) << 2)
}

func MortonDecode3D64(key uint64) (x, y, z uint32) {
	x = uint32(compact1By2(key))
	y = uint32(compact1By2(key >> 1))
	z = uint32(compact1By2(key >> 2))
	return
}

func part1By2(x uint64) uint64 {
	x &= 0x1fffff
	x = (x | (x << 32)) & 0x1f00000000ffff
	x = (x | (x << 16)) & 0x1f0000ff0000ff
	x = (x | (x << 8)) & 0x100f00f00f00f00f
	x = (x | (x << 4)) & 0x10c30c30c30c30c3
	x = (x | (x << 2)) & 0x1249249249249249
	return x
}

func compact1By2(x uint64) uint64 {
	x &= 0x1249249249249249
	x = (x ^ (x >> 2)) & 0x10c30c30c30c30c3
	x = (x ^ (x >> 4)) & 0x100f00f00f00f00f
	x = (x ^ (x >> 8)) & 0x1f0000ff0000ff
	x = (x ^ (x >> 16)) & 0x1f00000000ffff
	x = (x ^ (x >> 32)) & 0x1fffff
	return x
}
