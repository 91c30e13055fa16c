package grouping

// DisjointSet is a union-find structure over the row indices [0, n).
type DisjointSet struct {
	parent []int
}

// NewDisjointSet returns n singleton sets.
func NewDisjointSet(n int) *DisjointSet {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &DisjointSet{parent: parent}
}

// Len is the number of elements.
func (d *DisjointSet) Len() int { return len(d.parent) }

// Find returns the root of x and points every node on the path directly at
// it. It runs iteratively: one walk to the root, one walk to compress.
func (d *DisjointSet) Find(x int) int {
	root := x
	for d.parent[root] != root {
		root = d.parent[root]
	}
	for d.parent[x] != root {
		next := d.parent[x]
		d.parent[x] = root
		x = next
	}
	return root
}

// Union merges the sets of a and b. The root of b's set is attached under the
// root of a's set.
func (d *DisjointSet) Union(a, b int) {
	ra, rb := d.Find(a), d.Find(b)
	if ra != rb {
		d.parent[rb] = ra
	}
}

// Link builds the disjoint sets for n rows: for every bucket of k ≥ 2 rows the
// first row is united with each of the others.
func Link(n int, buckets Buckets) *DisjointSet {
	d := NewDisjointSet(n)
	for _, rows := range buckets {
		for _, r := range rows[1:] {
			d.Union(rows[0], r)
		}
	}
	return d
}

// Components returns the members of every set holding at least minSize
// elements. Members are ascending and sets are ordered by their smallest
// member.
func (d *DisjointSet) Components(minSize int) [][]int {
	n := len(d.parent)
	roots := make([]int, n)
	size := make([]int, n)
	for i := 0; i < n; i++ {
		roots[i] = d.Find(i)
		size[roots[i]]++
	}

	slot := make(map[int]int)
	var out [][]int
	for i, root := range roots {
		if size[root] < minSize {
			continue
		}
		j, ok := slot[root]
		if !ok {
			j = len(out)
			slot[root] = j
			out = append(out, make([]int, 0, size[root]))
		}
		out[j] = append(out[j], i)
	}
	return out
}
