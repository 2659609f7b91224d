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
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/twpayne/go-geos"
)

// RingError describes an invalid ring.
type RingError struct {
	// Polygon is the index of the polygon within a MultiPolygon.
	Polygon int

	// Ring is the index of the ring within the polygon, or -1 if the
	// problem is with the polygon as a whole.
	Ring int

	Reason string
}

func (e *RingError) Error() string {
	if e.Ring < 0 {
		return fmt.Sprintf("polygon %d: %s", e.Polygon, e.Reason)
	}
	return fmt.Sprintf("polygon %d ring %d: %s", e.Polygon, e.Ring, e.Reason)
}

// ValidatePolygon checks that every ring in p is closed, has at least three
// distinct vertices (vertices closer than tol are considered identical)
// and has non-zero area, and that p is valid according to GEOS: rings must
// not intersect themselves and holes must lie inside the outer ring. It
// returns a *RingError describing the first problem found, or nil.
func ValidatePolygon(p geom.Polygon, tol float64) error {
	if len(p) == 0 {
		return &RingError{Ring: -1, Reason: "polygon has no rings"}
	}
	for i, r := range p {
		if reason := ringProblem(r, tol); reason != "" {
			return &RingError{Ring: i, Reason: reason}
		}
	}
	ctx := geos.NewContext()
	// Rings are checked on their own first so that a problem can be tied
	// to a ring.
	for i, r := range p {
		if reason := geosProblem(ctx, geom.Polygon{r}); reason != "" {
			return &RingError{Ring: i, Reason: reason}
		}
	}
	if len(p) > 1 {
		if reason := geosProblem(ctx, p); reason != "" {
			return &RingError{Ring: -1, Reason: reason}
		}
	}
	return nil
}

func validateMultiPolygon(mp geom.MultiPolygon, tol float64) error {
	if len(mp) == 0 {
		return &RingError{Ring: -1, Reason: "geometry has no polygons"}
	}
	for i, p := range mp {
		if err := ValidatePolygon(p, tol); err != nil {
			err.(*RingError).Polygon = i
			return err
		}
	}
	return nil
}

// ringProblem checks the parts of ring validity that must hold before a
// ring can be passed to GEOS.
func ringProblem(r []geom.Point, tol float64) string {
	if len(r) == 0 {
		return "ring is empty"
	}
	if !finite(r) {
		return "ring has non-finite coordinates"
	}
	if r[0] != r[len(r)-1] {
		return "ring is not closed"
	}
	if d := dedupe(r, tol); len(d) < 4 {
		return "ring has fewer than three distinct vertices"
	}
	if signedArea(r) == 0 {
		return "ring has zero area"
	}
	return ""
}

func finite(r []geom.Point) bool {
	for _, pt := range r {
		if math.IsNaN(pt.X) || math.IsNaN(pt.Y) || math.IsInf(pt.X, 0) || math.IsInf(pt.Y, 0) {
			return false
		}
	}
	return true
}

// geosProblem returns the reason p is not valid according to GEOS, or an
// empty string if it is valid.
func geosProblem(ctx *geos.Context, p geom.Polygon) (reason string) {
	defer func() {
		if r := recover(); r != nil {
			reason = fmt.Sprintf("geos: %v", r)
		}
	}()
	g := ctx.NewPolygon(toGEOS(p))
	if g.IsValid() {
		return ""
	}
	return g.IsValidReason()
}

func toGEOS(p geom.Polygon) [][][]float64 {
	o := make([][][]float64, len(p))
	for i, r := range p {
		o[i] = make([][]float64, len(r))
		for j, pt := range r {
			o[i][j] = []float64{pt.X, pt.Y}
		}
	}
	return o
}

// fromGEOS returns the polygons in g, which may be a Polygon, a
// MultiPolygon, or a GeometryCollection. Other geometry types, such as
// the lines left over when a ring collapses, are ignored.
func fromGEOS(g *geos.Geom) geom.MultiPolygon {
	if g.IsEmpty() {
		return nil
	}
	switch g.TypeID() {
	case geos.TypeIDPolygon:
		p := geom.Polygon{ringFromGEOS(g.ExteriorRing())}
		for i := 0; i < g.NumInteriorRings(); i++ {
			p = append(p, ringFromGEOS(g.InteriorRing(i)))
		}
		return geom.MultiPolygon{p}
	case geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		var o geom.MultiPolygon
		for i := 0; i < g.NumGeometries(); i++ {
			o = append(o, fromGEOS(g.Geometry(i))...)
		}
		return o
	default:
		return nil
	}
}

func ringFromGEOS(r *geos.Geom) []geom.Point {
	coords := r.CoordSeq().ToCoords()
	o := make([]geom.Point, len(coords))
	for i, c := range coords {
		o[i] = geom.Point{X: c[0], Y: c[1]}
	}
	return o
}

// RepairPolygon attempts to make p valid. Rings are closed, consecutive
// vertices closer than tol are merged, and holes that collapse are removed.
// If the result is still invalid, it is passed to the GEOS MakeValid
// function, which, for example, splits a figure-eight ring into two
// polygons and moves holes listed before their outer ring into place.
// An error is returned if the result is still invalid or empty.
func RepairPolygon(p geom.Polygon, tol float64) (geom.MultiPolygon, error) {
	fixed := make(geom.Polygon, 0, len(p))
	for i, r := range p {
		if !finite(r) {
			return nil, &RingError{Ring: i, Reason: "ring has non-finite coordinates"}
		}
		r = closeRing(dedupe(r, tol))
		if len(r) < 4 {
			if i == 0 {
				return nil, &RingError{Ring: 0, Reason: "outer ring collapses during repair"}
			}
			continue
		}
		fixed = append(fixed, r)
	}
	if len(fixed) == 0 {
		return nil, &RingError{Ring: -1, Reason: "polygon has no rings"}
	}
	out, err := makeValid(fixed)
	if err != nil {
		return nil, &RingError{Ring: -1, Reason: err.Error()}
	}
	if len(out) == 0 {
		return nil, &RingError{Ring: -1, Reason: "polygon is empty after repair"}
	}
	if err := validateMultiPolygon(out, tol); err != nil {
		return nil, err
	}
	return out, nil
}

// makeValid returns p unchanged if GEOS considers it valid, or otherwise
// the polygons making up the GEOS repair of p.
func makeValid(p geom.Polygon) (mp geom.MultiPolygon, err error) {
	defer func() {
		if r := recover(); r != nil {
			mp, err = nil, fmt.Errorf("geos: %v", r)
		}
	}()
	ctx := geos.NewContext()
	g := ctx.NewPolygon(toGEOS(p))
	if g.IsValid() {
		return geom.MultiPolygon{p}, nil
	}
	return fromGEOS(g.MakeValid()), nil
}
