package l3grid

import (
	"math"
	"sort"
)

// superScale places the enclosing super triangle's vertices this many
// half-extents away from the normalised point set.
const superScale = 1e3

// tri is a counter-clockwise triangle. n[i] is the neighbour across the edge
// opposite v[i], or -1 on the outer boundary.
type tri struct {
	v    [3]int
	n    [3]int
	dead bool
}

// triangulation is an incremental Bowyer-Watson Delaunay triangulation over
// coordinates normalised to roughly [-1, 1]. The last three vertices are the
// super triangle.
type triangulation struct {
	xs, ys []float64
	tris   []tri
	last   int
	nReal  int
}

// mesh is the finished triangulation in source coordinates.
type mesh struct {
	xs, ys, zs []float64
	tris       [][3]int
}

// point2 is a deduplicated input sample.
type point2 struct {
	x, y, z float64
}

// dedupe removes samples with identical planimetric coordinates; the first
// occurrence wins.
func dedupe(pts []point2) []point2 {
	seen := make(map[[2]float64]bool, len(pts))
	out := pts[:0:0]
	for _, p := range pts {
		k := [2]float64{p.x, p.y}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return out
}

// delaunay triangulates pts. It returns a mesh with no triangles when the
// input is collinear or has fewer than three distinct samples.
func delaunay(pts []point2) *mesh {
	pts = dedupe(pts)
	m := &mesh{
		xs: make([]float64, len(pts)),
		ys: make([]float64, len(pts)),
		zs: make([]float64, len(pts)),
	}
	for i, p := range pts {
		m.xs[i], m.ys[i], m.zs[i] = p.x, p.y, p.z
	}
	if len(pts) < 3 {
		return m
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.x), math.Max(maxX, p.x)
		minY, maxY = math.Min(minY, p.y), math.Max(maxY, p.y)
	}
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	half := math.Max(maxX-minX, maxY-minY) / 2
	if half == 0 {
		return m
	}

	n := len(pts)
	t := &triangulation{
		xs:    make([]float64, n+3),
		ys:    make([]float64, n+3),
		nReal: n,
	}
	for i, p := range pts {
		t.xs[i] = (p.x - cx) / half
		t.ys[i] = (p.y - cy) / half
	}
	t.xs[n], t.ys[n] = -superScale, -superScale
	t.xs[n+1], t.ys[n+1] = superScale, -superScale
	t.xs[n+2], t.ys[n+2] = 0, superScale
	t.tris = append(t.tris, tri{v: [3]int{n, n + 1, n + 2}, n: [3]int{-1, -1, -1}})

	// Insertion order along a coarse spatial sort keeps walks short.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		ka, kb := cellKey(t.xs[ia], t.ys[ia]), cellKey(t.xs[ib], t.ys[ib])
		return ka < kb
	})
	for _, i := range order {
		t.insert(i)
	}

	for _, tr := range t.tris {
		if tr.dead || tr.v[0] >= n || tr.v[1] >= n || tr.v[2] >= n {
			continue
		}
		m.tris = append(m.tris, tr.v)
	}
	return m
}

// cellKey orders points by a 64x64 serpentine grid.
func cellKey(x, y float64) int {
	const cells = 64
	cx := int((x + 1) / 2 * (cells - 1))
	cy := int((y + 1) / 2 * (cells - 1))
	if cy%2 == 1 {
		cx = cells - 1 - cx
	}
	return cy*cells + cx
}

func orient(ax, ay, bx, by, cx, cy float64) float64 {
	return (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
}

// inCircle is positive when d lies inside the circumcircle of the
// counter-clockwise triangle abc.
func inCircle(ax, ay, bx, by, cx, cy, dx, dy float64) float64 {
	adx, ady := ax-dx, ay-dy
	bdx, bdy := bx-dx, by-dy
	cdx, cdy := cx-dx, cy-dy
	ad := adx*adx + ady*ady
	bd := bdx*bdx + bdy*bdy
	cd := cdx*cdx + cdy*cdy
	return adx*(bdy*cd-bd*cdy) - ady*(bdx*cd-bd*cdx) + ad*(bdx*cdy-bdy*cdx)
}

func (t *triangulation) edgeOrient(ti, i, p int) float64 {
	tr := &t.tris[ti]
	a, b := tr.v[(i+1)%3], tr.v[(i+2)%3]
	return orient(t.xs[a], t.ys[a], t.xs[b], t.ys[b], t.xs[p], t.ys[p])
}

func (t *triangulation) contains(ti, p int) bool {
	for i := 0; i < 3; i++ {
		if t.edgeOrient(ti, i, p) < 0 {
			return false
		}
	}
	return true
}

// locate finds a live triangle containing vertex p by walking from the last
// created triangle, falling back to a scan if the walk stalls.
func (t *triangulation) locate(p int) int {
	cur := t.last
	for steps := 0; steps < len(t.tris)+3; steps++ {
		moved := false
		for i := 0; i < 3; i++ {
			if t.edgeOrient(cur, i, p) < 0 {
				if nb := t.tris[cur].n[i]; nb >= 0 {
					cur = nb
					moved = true
					break
				}
			}
		}
		if !moved {
			if t.contains(cur, p) {
				return cur
			}
			break
		}
	}
	for ti := range t.tris {
		if !t.tris[ti].dead && t.contains(ti, p) {
			return ti
		}
	}
	return -1
}

func (t *triangulation) circumcontains(ti, p int) bool {
	v := t.tris[ti].v
	return inCircle(
		t.xs[v[0]], t.ys[v[0]],
		t.xs[v[1]], t.ys[v[1]],
		t.xs[v[2]], t.ys[v[2]],
		t.xs[p], t.ys[p],
	) > 0
}

type boundaryEdge struct {
	a, b  int
	outer int
	from  int
}

// cavity collects the triangles whose circumcircle contains p, connected to
// seed, and trims it until every boundary edge is visible from p.
func (t *triangulation) cavity(seed, p int) (map[int]bool, []boundaryEdge) {
	bad := map[int]bool{seed: true}
	stack := []int{seed}
	for len(stack) > 0 {
		ti := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, nb := range t.tris[ti].n {
			if nb < 0 || bad[nb] || !t.circumcontains(nb, p) {
				continue
			}
			bad[nb] = true
			stack = append(stack, nb)
		}
	}

	for {
		edges := t.boundary(bad)
		drop := -1
		for _, e := range edges {
			if e.from == seed {
				continue
			}
			if orient(t.xs[e.a], t.ys[e.a], t.xs[e.b], t.ys[e.b], t.xs[p], t.ys[p]) <= 0 {
				drop = e.from
				break
			}
		}
		if drop < 0 {
			return bad, edges
		}
		delete(bad, drop)
		bad = t.reachable(seed, bad)
	}
}

func (t *triangulation) boundary(bad map[int]bool) []boundaryEdge {
	var edges []boundaryEdge
	for ti := range bad {
		tr := t.tris[ti]
		for i := 0; i < 3; i++ {
			if nb := tr.n[i]; nb >= 0 && bad[nb] {
				continue
			}
			edges = append(edges, boundaryEdge{
				a:     tr.v[(i+1)%3],
				b:     tr.v[(i+2)%3],
				outer: tr.n[i],
				from:  ti,
			})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].a != edges[j].a {
			return edges[i].a < edges[j].a
		}
		return edges[i].b < edges[j].b
	})
	return edges
}

// reachable keeps the members of set connected to seed through set.
func (t *triangulation) reachable(seed int, set map[int]bool) map[int]bool {
	out := map[int]bool{seed: true}
	stack := []int{seed}
	for len(stack) > 0 {
		ti := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, nb := range t.tris[ti].n {
			if nb >= 0 && set[nb] && !out[nb] {
				out[nb] = true
				stack = append(stack, nb)
			}
		}
	}
	return out
}

func (t *triangulation) insert(p int) {
	seed := t.locate(p)
	if seed < 0 {
		return
	}
	bad, edges := t.cavity(seed, p)

	byStart := make(map[int]int, len(edges))
	byEnd := make(map[int]int, len(edges))
	created := make([]int, 0, len(edges))
	for _, e := range edges {
		id := len(t.tris)
		t.tris = append(t.tris, tri{v: [3]int{p, e.a, e.b}, n: [3]int{e.outer, -1, -1}})
		if e.outer >= 0 {
			on := &t.tris[e.outer].n
			for j := 0; j < 3; j++ {
				if on[j] == e.from {
					on[j] = id
					break
				}
			}
		}
		byStart[e.a] = id
		byEnd[e.b] = id
		created = append(created, id)
	}
	for _, id := range created {
		tr := &t.tris[id]
		a, b := tr.v[1], tr.v[2]
		if nb, ok := byStart[b]; ok {
			tr.n[1] = nb
		}
		if nb, ok := byEnd[a]; ok {
			tr.n[2] = nb
		}
	}
	for ti := range bad {
		t.tris[ti].dead = true
	}
	if len(created) > 0 {
		t.last = created[0]
	}
}

// neighbours returns, per vertex, the sorted set of vertices sharing an edge.
func (m *mesh) neighbours() [][]int {
	sets := make([]map[int]bool, len(m.xs))
	for _, tr := range m.tris {
		for i := 0; i < 3; i++ {
			a, b := tr[i], tr[(i+1)%3]
			if sets[a] == nil {
				sets[a] = map[int]bool{}
			}
			if sets[b] == nil {
				sets[b] = map[int]bool{}
			}
			sets[a][b] = true
			sets[b][a] = true
		}
	}
	out := make([][]int, len(m.xs))
	for i, s := range sets {
		for v := range s {
			out[i] = append(out[i], v)
		}
		sort.Ints(out[i])
	}
	return out
}
