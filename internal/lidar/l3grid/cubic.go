package l3grid

import (
	"gonum.org/v1/gonum/mat"
)

// cubicPatch holds the ten Bézier control ordinates of one triangle.
// Index names give the barycentric exponents (u, v, w).
type cubicPatch struct {
	b300, b030, b003 float64
	b210, b120       float64
	b021, b012       float64
	b102, b201       float64
	b111             float64
}

func (p cubicPatch) eval(u, v, w float64) float64 {
	return p.b300*u*u*u + p.b030*v*v*v + p.b003*w*w*w +
		3*p.b210*u*u*v + 3*p.b120*u*v*v +
		3*p.b021*v*v*w + 3*p.b012*v*w*w +
		3*p.b102*u*w*w + 3*p.b201*u*u*w +
		6*p.b111*u*v*w
}

// buildPatches fits a C0 cubic Bézier patch to every mesh triangle. Vertex
// gradients are shared between adjacent patches, so the surface matches
// vertex values and slopes across edges.
func buildPatches(m *mesh) []cubicPatch {
	gx, gy := vertexGradients(m)
	patches := make([]cubicPatch, len(m.tris))
	for ti, tr := range m.tris {
		i, j, k := tr[0], tr[1], tr[2]
		// along returns f_a + grad_a · (P_b - P_a) / 3.
		along := func(a, b int) float64 {
			return m.zs[a] + (gx[a]*(m.xs[b]-m.xs[a])+gy[a]*(m.ys[b]-m.ys[a]))/3
		}
		p := cubicPatch{
			b300: m.zs[i], b030: m.zs[j], b003: m.zs[k],
			b210: along(i, j), b201: along(i, k),
			b120: along(j, i), b021: along(j, k),
			b102: along(k, i), b012: along(k, j),
		}
		edge := (p.b210 + p.b201 + p.b120 + p.b021 + p.b102 + p.b012) / 6
		vert := (p.b300 + p.b030 + p.b003) / 3
		p.b111 = edge + (edge-vert)/2
		patches[ti] = p
	}
	return patches
}

// vertexGradients estimates ∂z/∂x and ∂z/∂y at each vertex by inverse
// squared distance weighted least squares over its mesh neighbours. A
// vertex whose neighbours do not span the plane gets a zero gradient.
func vertexGradients(m *mesh) (gx, gy []float64) {
	nbrs := m.neighbours()
	gx = make([]float64, len(m.xs))
	gy = make([]float64, len(m.xs))

	a := mat.NewSymDense(2, nil)
	b := mat.NewVecDense(2, nil)
	var g mat.VecDense
	for i, ns := range nbrs {
		if len(ns) < 2 {
			continue
		}
		var sxx, sxy, syy, sxz, syz float64
		for _, n := range ns {
			dx, dy := m.xs[n]-m.xs[i], m.ys[n]-m.ys[i]
			dz := m.zs[n] - m.zs[i]
			w := 1 / (dx*dx + dy*dy)
			sxx += w * dx * dx
			sxy += w * dx * dy
			syy += w * dy * dy
			sxz += w * dx * dz
			syz += w * dy * dz
		}
		a.SetSym(0, 0, sxx)
		a.SetSym(0, 1, sxy)
		a.SetSym(1, 1, syy)
		b.SetVec(0, sxz)
		b.SetVec(1, syz)

		if mat.Det(a) <= 1e-12*(sxx*syy) {
			continue
		}
		if err := g.SolveVec(a, b); err != nil {
			continue
		}
		gx[i], gy[i] = g.AtVec(0), g.AtVec(1)
	}
	return gx, gy
}
