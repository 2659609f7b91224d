/*
Copyright (C) 2019 the overlay authors.
This file is part of overlay.

overlay is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

overlay is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with overlay.  If not, see <http://www.gnu.org/licenses/>.
*/

package overlay

import (
	"math"
	"sort"

	"github.com/ctessum/geom"
)

// asMultiPolygon returns a copy of g as a MultiPolygon, or false if g is not
// polygonal.
func asMultiPolygon(g geom.Geom) (geom.MultiPolygon, bool) {
	switch t := g.(type) {
	case geom.Polygon:
		return geom.MultiPolygon{copyPolygon(t)}, true
	case geom.MultiPolygon:
		o := make(geom.MultiPolygon, len(t))
		for i, p := range t {
			o[i] = copyPolygon(p)
		}
		return o, true
	default:
		return nil, false
	}
}

func copyPolygon(p geom.Polygon) geom.Polygon {
	o := make(geom.Polygon, len(p))
	for i, r := range p {
		o[i] = make([]geom.Point, len(r))
		copy(o[i], r)
	}
	return o
}

// signedArea returns the signed area of ring r, which is positive for
// counter-clockwise rings. r may be open or closed.
func signedArea(r []geom.Point) float64 {
	if len(r) < 3 {
		return 0
	}
	a := 0.
	for i := range r {
		j := (i + 1) % len(r)
		a += r[i].X*r[j].Y - r[j].X*r[i].Y
	}
	return a / 2
}

// perimeter returns the length of ring r, treating it as closed.
func perimeter(r []geom.Point) float64 {
	l := 0.
	for i := range r {
		j := (i + 1) % len(r)
		l += math.Hypot(r[j].X-r[i].X, r[j].Y-r[i].Y)
	}
	return l
}

// polygonArea returns the area of p, assuming that p[0] is the
// outer ring and any other rings are holes.
func polygonArea(p geom.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	a := math.Abs(signedArea(p[0]))
	for _, h := range p[1:] {
		a -= math.Abs(signedArea(h))
	}
	return a
}

func multiPolygonArea(mp geom.MultiPolygon) float64 {
	a := 0.
	for _, p := range mp {
		a += polygonArea(p)
	}
	return a
}

func multiPolygonPerimeter(mp geom.MultiPolygon) float64 {
	l := 0.
	for _, p := range mp {
		for _, r := range p {
			l += perimeter(r)
		}
	}
	return l
}

// closeRing returns r with its first point appended to the end if it
// is not already closed.
func closeRing(r []geom.Point) []geom.Point {
	if len(r) > 0 && r[0] != r[len(r)-1] {
		return append(r, r[0])
	}
	return r
}

// normalize converts the output of a clipping operation, where outer rings
// and holes can appear in any order within a single polygon, into a
// MultiPolygon where each polygon has its outer ring first followed by its
// holes. Rings with fewer than three distinct vertices or zero area are
// dropped, and if tol > 0 polygons whose mean width (2 * area / perimeter)
// is less than tol are dropped as slivers.
func normalize(p geom.Polygon, tol float64) geom.MultiPolygon {
	type ring struct {
		pts   []geom.Point
		area  float64
		depth int
	}
	rings := make([]*ring, 0, len(p))
	for _, r := range p {
		r = closeRing(dedupe(r, 0))
		if len(r) < 4 {
			continue
		}
		a := math.Abs(signedArea(r))
		if a == 0 {
			continue
		}
		rings = append(rings, &ring{pts: r, area: a})
	}
	if len(rings) == 0 {
		return nil
	}
	// Sort by decreasing area so that containing rings come first.
	sort.SliceStable(rings, func(i, j int) bool { return rings[i].area > rings[j].area })

	parent := make([]int, len(rings))
	for i, r := range rings {
		parent[i] = -1
		// Only larger rings can contain r; the smallest container is the
		// direct parent.
		for j := i - 1; j >= 0; j-- {
			if ringContainsRing(rings[j].pts, r.pts) {
				if parent[i] == -1 {
					parent[i] = j
				}
				r.depth++
			}
		}
	}

	var out geom.MultiPolygon
	outerIndex := make(map[int]int)
	for i, r := range rings {
		if r.depth%2 == 0 {
			outerIndex[i] = len(out)
			out = append(out, geom.Polygon{r.pts})
		}
	}
	for i, r := range rings {
		if r.depth%2 == 1 {
			o, ok := outerIndex[parent[i]]
			if !ok {
				continue
			}
			out[o] = append(out[o], r.pts)
		}
	}
	if tol <= 0 {
		return out
	}
	filtered := out[:0]
	for _, pp := range out {
		a := polygonArea(pp)
		l := 0.
		for _, r := range pp {
			l += perimeter(r)
		}
		if a <= 0 || 2*a/l < tol {
			continue
		}
		filtered = append(filtered, pp)
	}
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}

// Nest groups the rings of p, which may hold several outer rings and
// their holes in any order, into a MultiPolygon where each polygon has its
// outer ring first followed by its holes. Rings are nested by containment,
// so ring orientation is not used. Rings with fewer than three distinct
// vertices or zero area are dropped.
func Nest(p geom.Polygon) geom.MultiPolygon {
	return normalize(p, 0)
}

// ringContainsRing determines whether inner is inside outer, assuming that
// the rings do not cross each other. Vertices of inner that lie on the edge
// of outer are not conclusive, so the first vertex that is strictly inside or
// outside is used.
func ringContainsRing(outer, inner []geom.Point) bool {
	po := geom.Polygon{outer}
	for _, pt := range inner {
		switch pt.Within(po) {
		case geom.Inside:
			return true
		case geom.Outside:
			return false
		}
	}
	// All vertices are on the edge of outer; check the edge midpoints.
	for i := 0; i < len(inner)-1; i++ {
		mid := geom.Point{X: (inner[i].X + inner[i+1].X) / 2, Y: (inner[i].Y + inner[i+1].Y) / 2}
		switch mid.Within(po) {
		case geom.Inside:
			return true
		case geom.Outside:
			return false
		}
	}
	return false
}
