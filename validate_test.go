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
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/gonum/floats"
)

func TestValidatePolygon(t *testing.T) {
	tests := []struct {
		name    string
		p       geom.Polygon
		invalid bool
		ring    int
		reason  string // prefix of the expected reason
	}{
		{
			name: "valid",
			p:    square(0, 0, 1, 1),
		},
		{
			name: "with hole",
			p:    geom.Polygon{square(0, 0, 4, 4)[0], square(1, 1, 2, 2)[0]},
		},
		{
			name:    "no rings",
			p:       geom.Polygon{},
			invalid: true,
			ring:    -1,
			reason:  "polygon has no rings",
		},
		{
			name:    "open",
			p:       geom.Polygon{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}},
			invalid: true,
			reason:  "ring is not closed",
		},
		{
			name:    "too few vertices",
			p:       geom.Polygon{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 0}}},
			invalid: true,
			reason:  "ring has fewer than three distinct vertices",
		},
		{
			name:    "zero area",
			p:       geom.Polygon{{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 0, Y: 0}}},
			invalid: true,
			reason:  "ring has zero area",
		},
		{
			name:    "non-finite",
			p:       geom.Polygon{{{X: 0, Y: 0}, {X: math.NaN(), Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 0}}},
			invalid: true,
			reason:  "ring has non-finite coordinates",
		},
		{
			name:    "bowtie",
			p:       bowtie(0, 0),
			invalid: true,
			reason:  "Self-intersection",
		},
		{
			name:    "invalid hole",
			p:       geom.Polygon{square(0, 0, 4, 4)[0], bowtie(1, 1)[0]},
			invalid: true,
			ring:    1,
			reason:  "Self-intersection",
		},
		{
			name: "fold back",
			// The second edge doubles back along the first.
			p:       geom.Polygon{{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 0}}},
			invalid: true,
		},
		{
			name:    "hole outside shell",
			p:       geom.Polygon{square(0, 0, 1, 1)[0], square(5, 5, 6, 6)[0]},
			invalid: true,
			ring:    -1,
			reason:  "Hole lies outside shell",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := ValidatePolygon(test.p, DefaultTolerance)
			if !test.invalid {
				if err != nil {
					t.Fatal(err)
				}
				return
			}
			re, ok := err.(*RingError)
			if !ok {
				t.Fatalf("have error %v (%T), want *RingError", err, err)
			}
			if !strings.HasPrefix(re.Reason, test.reason) || re.Ring != test.ring {
				t.Errorf("have ring %d %q, want ring %d %q", re.Ring, re.Reason, test.ring, test.reason)
			}
		})
	}
}

func TestRepairPolygon(t *testing.T) {
	t.Run("unclosed with duplicates", func(t *testing.T) {
		p := geom.Polygon{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}}
		r, err := RepairPolygon(p, DefaultTolerance)
		if err != nil {
			t.Fatal(err)
		}
		if len(r) != 1 || len(r[0]) != 1 || len(r[0][0]) != 5 {
			t.Errorf("unexpected result %v", r)
		}
		if !floats.EqualWithinAbs(r.Area(), 1, testTolerance) {
			t.Errorf("area %g, want 1", r.Area())
		}
	})
	t.Run("collapsed hole", func(t *testing.T) {
		p := geom.Polygon{square(0, 0, 4, 4)[0], {{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 1, Y: 1}}}
		r, err := RepairPolygon(p, DefaultTolerance)
		if err != nil {
			t.Fatal(err)
		}
		if len(r) != 1 || len(r[0]) != 1 {
			t.Errorf("hole should have been removed: %v", r)
		}
	})
	t.Run("collapsed outer", func(t *testing.T) {
		p := geom.Polygon{{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 0}}}
		if _, err := RepairPolygon(p, DefaultTolerance); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("figure eight", func(t *testing.T) {
		r, err := RepairPolygon(bowtie(0, 0), DefaultTolerance)
		if err != nil {
			t.Fatal(err)
		}
		if len(r) != 2 {
			t.Fatalf("have %d polygons, want 2: %v", len(r), r)
		}
		// The two lobes of the ring meet at (1.2, 1.2).
		want := 0.5*2*0.8 + 0.5*3*1.2
		if !floats.EqualWithinAbs(r.Area(), want, testTolerance) {
			t.Errorf("area %g, want %g", r.Area(), want)
		}
	})
	t.Run("non-finite", func(t *testing.T) {
		p := geom.Polygon{{{X: 0, Y: 0}, {X: math.Inf(1), Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 0}}}
		if _, err := RepairPolygon(p, DefaultTolerance); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("out-of-order hole", func(t *testing.T) {
		p := geom.Polygon{square(1, 1, 2, 2)[0], square(0, 0, 4, 4)[0]}
		r, err := RepairPolygon(p, DefaultTolerance)
		if err != nil {
			t.Fatal(err)
		}
		if len(r) != 1 || len(r[0]) != 2 {
			t.Fatalf("want one polygon with a hole, have %v", r)
		}
		if !floats.EqualWithinAbs(r.Area(), 15, testTolerance) {
			t.Errorf("area %g, want 15", r.Area())
		}
	})
}

func TestNormalize(t *testing.T) {
	// Two outer rings with a hole in the larger one and an island in the hole.
	p := geom.Polygon{
		square(2, 2, 3, 3)[0],
		square(0, 0, 10, 10)[0],
		square(20, 0, 21, 1)[0],
		square(1, 1, 5, 5)[0],
	}
	mp := normalize(p, 0)
	if len(mp) != 3 {
		t.Fatalf("have %d polygons, want 3: %v", len(mp), mp)
	}
	if len(mp[0]) != 2 {
		t.Errorf("largest polygon should have one hole: %v", mp[0])
	}
	if !floats.EqualWithinAbs(multiPolygonArea(mp), 100-16+1+1, testTolerance) {
		t.Errorf("area %g, want 86", multiPolygonArea(mp))
	}
}

func TestNormalize_slivers(t *testing.T) {
	p := geom.Polygon{
		square(0, 0, 1, 1)[0],
		square(5, 0, 6, 1e-7)[0],
	}
	if mp := normalize(p, 0); len(mp) != 2 {
		t.Errorf("without tolerance: have %d polygons, want 2", len(mp))
	}
	if mp := normalize(p, 1e-6); len(mp) != 1 {
		t.Errorf("with tolerance: have %d polygons, want 1", len(mp))
	}
}

func TestSnap(t *testing.T) {
	p := geom.Polygon{{
		{X: 0.04, Y: -0.04}, {X: 1.01, Y: 0}, {X: 0.98, Y: 1.02}, {X: 0, Y: 0.97}, {X: 0.04, Y: -0.04},
	}}
	have := Snap(p, 0.1)
	want := geom.MultiPolygon{square(0, 0, 1, 1)}
	if !have.Similar(want, 1e-12) {
		t.Errorf("have %v, want %v", have, want)
	}
	if have[0][0][0].Y != 0 || math.Signbit(have[0][0][0].Y) {
		t.Errorf("coordinate should be positive zero: %v", have[0][0][0])
	}

	// A polygon smaller than the grid collapses.
	if small := Snap(square(0.01, 0.01, 0.02, 0.02), 0.1); len(small) != 0 {
		t.Errorf("small polygon should collapse, have %v", small)
	}

	// Zero tolerance returns an unchanged copy.
	orig := square(0.123, 0, 1, 1)
	c := Snap(orig, 0)
	c[0][0][0].X = 5
	if orig[0][0].X != 0.123 {
		t.Error("input was modified")
	}
}

func TestRetryTolerance(t *testing.T) {
	c := &clipper{tolerance: 0, maxRetries: 3}
	a := geom.MultiPolygon{square(0, 0, 100, 50)}
	b := geom.MultiPolygon{square(50, 0, 200, 50)}
	if have, want := c.retryTolerance(1, a, b), 2e-9; !floats.EqualWithinRel(have, want, 1e-9) {
		t.Errorf("zero tolerance: have %g, want %g", have, want)
	}
	c.tolerance = 1e-6
	if have, want := c.retryTolerance(2, a, b), 1e-4; !floats.EqualWithinRel(have, want, 1e-9) {
		t.Errorf("have %g, want %g", have, want)
	}
}

func TestCheckClip(t *testing.T) {
	a := geom.MultiPolygon{square(0, 0, 2, 2)}
	b := geom.MultiPolygon{square(1, 1, 3, 3)}
	tooBig := geom.MultiPolygon{square(0, 0, 3, 3)}
	if err := checkClip(a, b, tooBig, opIntersection, 1e-9); err == nil {
		t.Error("intersection larger than operands should fail")
	}
	if err := checkClip(a, b, tooBig, opDifference, 1e-9); err == nil {
		t.Error("difference larger than subject should fail")
	}
	if err := checkClip(a, b, geom.MultiPolygon{square(1, 1, 2, 2)}, opIntersection, 1e-9); err != nil {
		t.Error(err)
	}
	nan := geom.MultiPolygon{{{{X: math.NaN(), Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: math.NaN(), Y: 0}}}}
	if err := checkClip(a, b, nan, opUnion, 1e-9); err == nil {
		t.Error("non-finite result should fail")
	}
}

func TestClipperRetry(t *testing.T) {
	a := geom.MultiPolygon{square(0, 0, 2.0004, 2)}
	b := geom.MultiPolygon{square(1, 1, 3, 3)}

	t.Run("coarser grid", func(t *testing.T) {
		var subjects []geom.MultiPolygon
		c := &clipper{tolerance: 1e-4, maxRetries: 3}
		// The clip fails until the vertex at x=2.0004 is snapped away.
		c.f = func(s, cl geom.MultiPolygon, op clipOp) (geom.Polygon, error) {
			subjects = append(subjects, s)
			if s.Bounds().Max.X > 2.0001 {
				return nil, errors.New("failed")
			}
			return clipPolygons(s, cl, op)
		}
		r, attempts, err := c.clip(a, b, opIntersection)
		if err != nil {
			t.Fatal(err)
		}
		if attempts != 2 || len(subjects) != 2 {
			t.Errorf("have %d attempts and %d calls, want 2", attempts, len(subjects))
		}
		if !floats.EqualWithinAbs(r.Area(), 1, testTolerance) {
			t.Errorf("area %g, want 1", r.Area())
		}
	})

	t.Run("implausible result", func(t *testing.T) {
		c := &clipper{tolerance: 1e-4, maxRetries: 3}
		calls := 0
		c.f = func(s, cl geom.MultiPolygon, op clipOp) (geom.Polygon, error) {
			calls++
			if calls == 1 {
				return square(0, 0, 5, 5), nil
			}
			return clipPolygons(s, cl, op)
		}
		r, attempts, err := c.clip(a, b, opIntersection)
		if err != nil {
			t.Fatal(err)
		}
		if attempts != 2 {
			t.Errorf("have %d attempts, want 2", attempts)
		}
		if !floats.EqualWithinAbs(r.Area(), 1, testTolerance) {
			t.Errorf("area %g, want 1", r.Area())
		}
	})

	t.Run("out of retries", func(t *testing.T) {
		c := &clipper{tolerance: 1e-4, maxRetries: 3}
		calls := 0
		c.f = func(s, cl geom.MultiPolygon, op clipOp) (geom.Polygon, error) {
			calls++
			return nil, errors.New("failed")
		}
		r, attempts, err := c.clip(a, b, opDifference)
		if err == nil {
			t.Fatal("expected error")
		}
		if r != nil {
			t.Errorf("have result %v, want nil", r)
		}
		if attempts != 4 || calls != 4 {
			t.Errorf("have %d attempts and %d calls, want 4", attempts, calls)
		}
	})
}
