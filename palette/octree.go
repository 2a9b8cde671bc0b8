package palette

// Octree color reduction: colors are inserted into a depth-limited octree
// keyed by interleaved RGB bits; the deepest most-populated levels are folded
// upward until the leaf count fits the target.

const octreeDepth = 8

type octreeNode struct {
	children   [8]*octreeNode
	r, g, b, a uint64
	refs       uint64
	leaf       bool
}

type octree struct {
	root   octreeNode
	levels [octreeDepth][]*octreeNode
	leaves int
}

func childIndex(c RGBA, level int) int {
	shift := uint(7 - level)
	i := 0
	if c.R>>shift&1 != 0 {
		i |= 4
	}
	if c.G>>shift&1 != 0 {
		i |= 2
	}
	if c.B>>shift&1 != 0 {
		i |= 1
	}
	return i
}

func (t *octree) insert(c RGBA) {
	n := &t.root
	for level := 0; level < octreeDepth; level++ {
		if n.leaf {
			break
		}
		i := childIndex(c, level)
		if n.children[i] == nil {
			child := &octreeNode{}
			if level == octreeDepth-1 {
				child.leaf = true
				t.leaves++
			} else {
				t.levels[level] = append(t.levels[level], child)
			}
			n.children[i] = child
		}
		n = n.children[i]
	}
	n.r += uint64(c.R)
	n.g += uint64(c.G)
	n.b += uint64(c.B)
	n.a += uint64(c.A)
	n.refs++
}

// reduce folds all children of one interior node into it, deepest level
// first, until the leaf count fits.
func (t *octree) reduce(max int) {
	for level := octreeDepth - 2; level >= 0 && t.leaves > max; level-- {
		nodes := t.levels[level]
		for _, n := range nodes {
			if t.leaves <= max {
				break
			}
			if n.leaf {
				continue
			}
			folded := 0
			for i, ch := range n.children {
				if ch == nil || !ch.leaf {
					continue
				}
				n.r += ch.r
				n.g += ch.g
				n.b += ch.b
				n.a += ch.a
				n.refs += ch.refs
				n.children[i] = nil
				folded++
			}
			if folded > 0 {
				n.leaf = true
				t.leaves -= folded - 1
			}
		}
	}
}

func (t *octree) emit(out []RGBA) int {
	n := 0
	var walk func(node *octreeNode)
	walk = func(node *octreeNode) {
		if node.leaf {
			if n < len(out) && node.refs > 0 {
				out[n] = RGBA{
					R: uint8(node.r / node.refs),
					G: uint8(node.g / node.refs),
					B: uint8(node.b / node.refs),
					A: uint8(node.a / node.refs),
				}
				n++
			}
			return
		}
		for _, ch := range node.children {
			if ch != nil {
				walk(ch)
			}
		}
	}
	walk(&t.root)
	return n
}

func quantizeOctree(target []RGBA, maxTarget int, input []RGBA) int {
	t := &octree{}
	for _, c := range input {
		t.insert(c)
	}
	t.reduce(maxTarget)
	return t.emit(target[:maxTarget])
}
