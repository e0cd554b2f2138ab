package l3grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meshArea(m *mesh) float64 {
	var area float64
	for _, tr := range m.tris {
		a, b, c := tr[0], tr[1], tr[2]
		area += orient(m.xs[a], m.ys[a], m.xs[b], m.ys[b], m.xs[c], m.ys[c]) / 2
	}
	return area
}

func TestDelaunay_CoversHullCounterClockwise(t *testing.T) {
	cloud := scatter(30, 20, 150, planeZ)
	pts := make([]point2, len(cloud.Points))
	for i, p := range cloud.Points {
		pts[i] = point2{p.X, p.Y, p.Z}
	}
	m := delaunay(pts)

	require.NotEmpty(t, m.tris)
	for _, tr := range m.tris {
		a, b, c := tr[0], tr[1], tr[2]
		assert.Greater(t, orient(m.xs[a], m.ys[a], m.xs[b], m.ys[b], m.xs[c], m.ys[c]), 0.0)
	}
	// Triangles tile the rectangular hull without overlap.
	assert.InDelta(t, 600.0, meshArea(m), 1e-6)
	// Euler: a triangulation of n points with h on the hull has 2n-2-h triangles.
	assert.Len(t, m.tris, 2*len(m.xs)-2-4)
}

func TestDelaunay_EmptyCircumcircles(t *testing.T) {
	cloud := scatter(10, 10, 60, planeZ)
	pts := make([]point2, len(cloud.Points))
	for i, p := range cloud.Points {
		pts[i] = point2{p.X, p.Y, p.Z}
	}
	m := delaunay(pts)

	for _, tr := range m.tris {
		a, b, c := tr[0], tr[1], tr[2]
		for d := range m.xs {
			if d == a || d == b || d == c {
				continue
			}
			v := inCircle(m.xs[a], m.ys[a], m.xs[b], m.ys[b], m.xs[c], m.ys[c], m.xs[d], m.ys[d])
			assert.LessOrEqual(t, v, 1e-6, "vertex %d inside circumcircle of %v", d, tr)
		}
	}
}

func TestDelaunay_Dedupe(t *testing.T) {
	m := delaunay([]point2{{0, 0, 1}, {0, 0, 9}, {1, 0, 2}, {0, 1, 3}})
	require.Len(t, m.xs, 3)
	assert.Equal(t, 1.0, m.zs[0], "first duplicate wins")
	assert.Len(t, m.tris, 1)
	assert.InDelta(t, 0.5, math.Abs(meshArea(m)), 1e-12)
}

func TestMesh_Neighbours(t *testing.T) {
	m := delaunay([]point2{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}})
	nb := m.neighbours()
	require.Len(t, nb, 4)
	for i, ns := range nb {
		assert.GreaterOrEqual(t, len(ns), 2, "vertex %d", i)
		assert.NotContains(t, ns, i)
	}
}
