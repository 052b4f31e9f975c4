package linkage

// disjointSet is a union-find over input positions. The root of every set is
// its lowest index, so group anchors never depend on traversal order.
type disjointSet struct {
	parent []int
}

func newDisjointSet(n int) *disjointSet {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &disjointSet{parent: parent}
}

// find returns the root of i, compressing the path on the way back.
func (d *disjointSet) find(i int) int {
	root := i
	for d.parent[root] != root {
		root = d.parent[root]
	}
	for d.parent[i] != root {
		next := d.parent[i]
		d.parent[i] = root
		i = next
	}
	return root
}

// union joins the sets holding a and b and reports whether they were
// previously disjoint.
func (d *disjointSet) union(a, b int) bool {
	ra, rb := d.find(a), d.find(b)
	if ra == rb {
		return false
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	d.parent[rb] = ra
	return true
}

func (d *disjointSet) same(a, b int) bool {
	return d.find(a) == d.find(b)
}

// groups returns the member lists of every set, each in input order, ordered
// by their lowest member.
func (d *disjointSet) groups() [][]int {
	byRoot := make(map[int]int, len(d.parent))
	var out [][]int
	for i := range d.parent {
		r := d.find(i)
		pos, ok := byRoot[r]
		if !ok {
			pos = len(out)
			byRoot[r] = pos
			out = append(out, nil)
		}
		out[pos] = append(out[pos], i)
	}
	return out
}
