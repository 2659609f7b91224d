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

	"github.com/ctessum/geom"
)

// Snap returns a copy of g with every vertex rounded to the nearest multiple
// of tol. Consecutive vertices that become identical are merged, and rings
// that collapse to fewer than three distinct vertices are removed, as are
// polygons whose outer ring collapses. If tol <= 0, an unmodified copy is
// returned.
func Snap(g geom.Polygonal, tol float64) geom.MultiPolygon {
	mp, _ := asMultiPolygon(g)
	if mp == nil {
		mp = geom.MultiPolygon(g.Polygons())
	}
	return snapMultiPolygon(mp, tol)
}

func snapMultiPolygon(mp geom.MultiPolygon, tol float64) geom.MultiPolygon {
	o := make(geom.MultiPolygon, 0, len(mp))
	for _, p := range mp {
		sp := snapPolygon(p, tol)
		if len(sp) == 0 {
			continue
		}
		o = append(o, sp)
	}
	return o
}

// snapPolygon snaps the rings of p. If the outer ring collapses, the
// result is empty.
func snapPolygon(p geom.Polygon, tol float64) geom.Polygon {
	o := make(geom.Polygon, 0, len(p))
	for i, r := range p {
		sr := snapRing(r, tol)
		if len(sr) < 4 {
			if i == 0 {
				return nil
			}
			continue
		}
		o = append(o, sr)
	}
	return o
}

func snapRing(r []geom.Point, tol float64) []geom.Point {
	o := make([]geom.Point, len(r))
	for i, pt := range r {
		o[i] = snapPoint(pt, tol)
	}
	return closeRing(dedupe(o, 0))
}

func snapPoint(p geom.Point, tol float64) geom.Point {
	if tol <= 0 {
		return p
	}
	return geom.Point{X: snapValue(p.X, tol), Y: snapValue(p.Y, tol)}
}

func snapValue(v, tol float64) float64 {
	s := math.Round(v/tol) * tol
	if s == 0 {
		return 0 // Avoid negative zero so output is identical across runs.
	}
	return s
}

// dedupe removes consecutive vertices of r that are within tol of each
// other. The closing vertex of a closed ring is retained.
func dedupe(r []geom.Point, tol float64) []geom.Point {
	if len(r) == 0 {
		return r
	}
	closed := len(r) > 1 && r[0] == r[len(r)-1]
	o := make([]geom.Point, 0, len(r))
	for _, pt := range r {
		if len(o) > 0 && near(o[len(o)-1], pt, tol) {
			continue
		}
		o = append(o, pt)
	}
	if closed {
		// Remove trailing vertices that duplicate the start, then re-close.
		for len(o) > 1 && near(o[len(o)-1], o[0], tol) {
			o = o[:len(o)-1]
		}
		o = append(o, o[0])
	}
	return o
}

func near(a, b geom.Point, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol
}
