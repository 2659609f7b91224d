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

	"github.com/cenkalti/backoff"
	"github.com/ctessum/geom"
)

type clipOp int

const (
	opIntersection clipOp = iota
	opDifference
	opUnion
)

func (op clipOp) String() string {
	switch op {
	case opIntersection:
		return "intersection"
	case opDifference:
		return "difference"
	case opUnion:
		return "union"
	default:
		panic(fmt.Errorf("overlay: invalid clip operation %d", int(op)))
	}
}

// clipFunc performs a single clipping operation.
type clipFunc func(subject, clipping geom.MultiPolygon, op clipOp) (geom.Polygon, error)

// clipPolygons performs a single clipping operation, converting any panic
// in the clipping library into an error.
func clipPolygons(subject, clipping geom.MultiPolygon, op clipOp) (p geom.Polygon, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = fmt.Errorf("clipping library: %v", r)
		}
	}()
	var g geom.Polygonal
	switch op {
	case opIntersection:
		g = subject.Intersection(clipping)
	case opDifference:
		g = subject.Difference(clipping)
	case opUnion:
		g = subject.Union(clipping)
	default:
		panic(fmt.Errorf("overlay: invalid clip operation %d", int(op)))
	}
	if g == nil {
		return nil, nil
	}
	p, ok := g.(geom.Polygon)
	if !ok {
		return nil, fmt.Errorf("clipping library returned %T", g)
	}
	return p, nil
}

// checkClip makes sure the result of a clipping operation is plausible:
// every coordinate must be finite, and the area must be consistent with the
// areas of the operands. slack is the allowable area error.
func checkClip(subject, clipping, result geom.MultiPolygon, op clipOp, slack float64) error {
	for _, p := range result {
		for _, r := range p {
			for _, pt := range r {
				if math.IsNaN(pt.X) || math.IsNaN(pt.Y) || math.IsInf(pt.X, 0) || math.IsInf(pt.Y, 0) {
					return fmt.Errorf("%v result has non-finite coordinates", op)
				}
			}
		}
	}
	as, ac, ar := multiPolygonArea(subject), multiPolygonArea(clipping), multiPolygonArea(result)
	switch op {
	case opIntersection:
		if ar > math.Min(as, ac)+slack {
			return fmt.Errorf("intersection area %g is larger than operand areas %g and %g", ar, as, ac)
		}
	case opDifference:
		if ar > as+slack || ar < as-ac-slack {
			return fmt.Errorf("difference area %g is inconsistent with operand areas %g and %g", ar, as, ac)
		}
	case opUnion:
		if ar > as+ac+slack || ar < math.Max(as, ac)-slack {
			return fmt.Errorf("union area %g is inconsistent with operand areas %g and %g", ar, as, ac)
		}
	}
	return nil
}

// clipper performs clipping operations with retries.
type clipper struct {
	tolerance  float64
	maxRetries int

	// f is the clipping function; clipPolygons is used if it is nil.
	f clipFunc
}

// retryTolerance returns the snapping grid size for the given retry
// attempt, which starts at one. Each attempt uses a grid ten times coarser
// than the last. When the configured tolerance is zero, the grid starts
// at 1e-12 times the extent of the operands.
func (c *clipper) retryTolerance(attempt int, subject, clipping geom.MultiPolygon) float64 {
	b := subject.Bounds()
	b.Extend(clipping.Bounds())
	extent := math.Max(b.Max.X-b.Min.X, b.Max.Y-b.Min.Y)
	base := math.Max(c.tolerance, 1e-12*extent)
	return base * math.Pow(10, float64(attempt))
}

// clip computes op between subject and clipping. If the computation fails,
// it is retried up to c.maxRetries times with both operands snapped to a
// progressively coarser grid. It returns the normalized result and the
// number of attempts made.
func (c *clipper) clip(subject, clipping geom.MultiPolygon, op clipOp) (geom.MultiPolygon, int, error) {
	attempts := 0
	var out geom.MultiPolygon
	operation := func() error {
		s, cl := subject, clipping
		if attempts > 0 {
			tol := c.retryTolerance(attempts, subject, clipping)
			s, cl = snapMultiPolygon(subject, tol), snapMultiPolygon(clipping, tol)
		}
		attempts++
		f := c.f
		if f == nil {
			f = clipPolygons
		}
		r, err := f(s, cl, op)
		if err != nil {
			return err
		}
		result := normalize(r, c.tolerance)
		slack := 1e-9*(multiPolygonArea(s)+multiPolygonArea(cl)) +
			c.tolerance*(multiPolygonPerimeter(s)+multiPolygonPerimeter(cl))
		if err := checkClip(s, cl, result, op, slack); err != nil {
			return err
		}
		out = result
		return nil
	}
	b := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(c.maxRetries))
	if err := backoff.Retry(operation, b); err != nil {
		return nil, attempts, err
	}
	return out, attempts, nil
}
