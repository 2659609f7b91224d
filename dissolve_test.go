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
	"context"
	"errors"
	"testing"

	"github.com/ctessum/geom"
	"github.com/gonum/floats"
	"github.com/kr/pretty"
)

func dissolveLayer() *Layer {
	return NewLayer("counties", nil,
		&Feature{Geom: square(0, 0, 1, 1), Attributes: map[string]interface{}{"state": "WA", "name": "a"}},
		&Feature{Geom: square(5, 0, 6, 1), Attributes: map[string]interface{}{"state": "OR", "name": "b"}},
		&Feature{Geom: square(1, 0, 2, 1), Attributes: map[string]interface{}{"state": "WA", "name": "c"}},
		&Feature{Geom: square(0.5, 0.5, 1.5, 2), Attributes: map[string]interface{}{"state": "WA", "name": "d"}},
		&Feature{Geom: square(6, 0, 7, 1), Attributes: map[string]interface{}{"state": "OR", "name": "e"}},
	)
}

func TestDissolve(t *testing.T) {
	l := dissolveLayer()
	d, diags, err := Dissolve(context.Background(), l, "state", AggregateFirst, quietOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}
	if len(d.Features) != 2 {
		t.Fatalf("have %d features, want 2", len(d.Features))
	}
	wantStates := []string{"WA", "OR"}
	wantNames := []string{"a", "b"}
	wantAreas := []float64{2 + 0.5 + 0.5, 2}
	for i, f := range d.Features {
		if f.Attributes["state"] != wantStates[i] || f.Attributes["name"] != wantNames[i] {
			t.Errorf("feature %d: have attributes %v", i, f.Attributes)
		}
		if a := f.Geom.(interface{ Area() float64 }).Area(); !floats.EqualWithinAbs(a, wantAreas[i], testTolerance) {
			t.Errorf("feature %d: area %g, want %g", i, a, wantAreas[i])
		}
	}
	if !floats.EqualWithinAbs(d.Area(), 5, testTolerance) {
		t.Errorf("total area %g, want 5", d.Area())
	}
}

func TestDissolve_all(t *testing.T) {
	d, _, err := Dissolve(context.Background(), dissolveLayer(), "", AggregateFirst, quietOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Features) != 1 {
		t.Fatalf("have %d features, want 1", len(d.Features))
	}
	if !floats.EqualWithinAbs(d.Area(), 5, testTolerance) {
		t.Errorf("area %g, want 5", d.Area())
	}
}

func TestDissolve_typedKeys(t *testing.T) {
	l := NewLayer("l", nil,
		&Feature{Geom: square(0, 0, 1, 1), Attributes: map[string]interface{}{"k": 1}},
		&Feature{Geom: square(1, 0, 2, 1), Attributes: map[string]interface{}{"k": "1"}},
	)
	d, _, err := Dissolve(context.Background(), l, "k", AggregateFirst, quietOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Features) != 2 {
		t.Errorf("have %d features, want 2", len(d.Features))
	}
}

func TestDissolve_missingAttribute(t *testing.T) {
	l := dissolveLayer()
	delete(l.Features[2].Attributes, "state")
	if _, _, err := Dissolve(context.Background(), l, "state", AggregateFirst, quietOptions()); err == nil {
		t.Error("expected error")
	}
}

func TestDissolve_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d, _, err := Dissolve(ctx, dissolveLayer(), "state", AggregateFirst, quietOptions())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("have error %v, want ErrCancelled", err)
	}
	if len(d.Features) != 0 {
		t.Errorf("have %d features, want 0", len(d.Features))
	}
}

func TestDissolve_diagnostics(t *testing.T) {
	l := NewLayer("l", nil,
		&Feature{Geom: square(0, 0, 1, 1), Attributes: map[string]interface{}{"k": "x"}},
		&Feature{Geom: geom.Polygon{{{X: 5, Y: 5}, {X: 6, Y: 6}, {X: 5, Y: 5}}}, Attributes: map[string]interface{}{"k": "y"}},
	)
	d, diags, err := Dissolve(context.Background(), l, "k", AggregateFirst, quietOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Features) != 1 {
		t.Errorf("have %d features, want 1", len(d.Features))
	}
	if len(diags) != 1 {
		t.Fatalf("have %d diagnostics, want 1: %v", len(diags), diags)
	}
	var ferr *FeatureError
	if !errors.As(diags[0], &ferr) || !errors.Is(diags[0], ErrInvalidRing) || ferr.Feature != 1 || ferr.Repaired {
		t.Errorf("diagnostic %v should report that feature 1 was skipped", diags[0])
	}

	o := quietOptions()
	o.Validity = Strict
	if _, _, err := Dissolve(context.Background(), l, "k", AggregateFirst, o); !errors.Is(err, ErrInvalidRing) {
		t.Errorf("strict: have error %v, want ErrInvalidRing", err)
	}
}

func TestDissolve_aggregate(t *testing.T) {
	l := NewLayer("l", nil,
		&Feature{Geom: square(0, 0, 1, 1), Attributes: map[string]interface{}{"k": "x", "n": 1, "v": 2.5, "s": "a"}},
		&Feature{Geom: square(1, 0, 2, 1), Attributes: map[string]interface{}{"k": "x", "n": 4, "v": nil, "s": "b"}},
		&Feature{Geom: square(2, 0, 3, 1), Attributes: map[string]interface{}{"k": "x", "n": 7, "v": 0.5, "s": "c"}},
		&Feature{Geom: square(5, 0, 6, 1), Attributes: map[string]interface{}{"k": "y", "n": 3, "v": nil, "s": "d"}},
	)
	tests := []struct {
		agg  Aggregation
		want []map[string]interface{}
	}{
		{
			agg: AggregateFirst,
			want: []map[string]interface{}{
				{"k": "x", "n": 1, "v": 2.5, "s": "a"},
				{"k": "y", "n": 3, "v": nil, "s": "d"},
			},
		},
		{
			agg: AggregateSum,
			want: []map[string]interface{}{
				{"k": "x", "n": 12, "v": 3.0, "s": "a"},
				{"k": "y", "n": 3, "v": nil, "s": "d"},
			},
		},
		{
			agg: AggregateMean,
			want: []map[string]interface{}{
				{"k": "x", "n": 4.0, "v": 1.5, "s": "a"},
				{"k": "y", "n": 3.0, "v": nil, "s": "d"},
			},
		},
		{
			agg: AggregateMin,
			want: []map[string]interface{}{
				{"k": "x", "n": 1, "v": 0.5, "s": "a"},
				{"k": "y", "n": 3, "v": nil, "s": "d"},
			},
		},
		{
			agg: AggregateMax,
			want: []map[string]interface{}{
				{"k": "x", "n": 7, "v": 2.5, "s": "a"},
				{"k": "y", "n": 3, "v": nil, "s": "d"},
			},
		},
	}
	for _, test := range tests {
		t.Run(test.agg.String(), func(t *testing.T) {
			d, _, err := Dissolve(context.Background(), l, "k", test.agg, quietOptions())
			if err != nil {
				t.Fatal(err)
			}
			if len(d.Features) != len(test.want) {
				t.Fatalf("have %d features, want %d", len(d.Features), len(test.want))
			}
			for i, f := range d.Features {
				if diff := pretty.Diff(f.Attributes, test.want[i]); len(diff) != 0 {
					t.Errorf("feature %d: %v", i, diff)
				}
			}
		})
	}
}

func TestParseAggregation(t *testing.T) {
	for _, name := range []string{"first", "sum", "mean", "min", "max"} {
		a, err := ParseAggregation(name)
		if err != nil {
			t.Fatal(err)
		}
		if a.String() != name {
			t.Errorf("have %v, want %s", a, name)
		}
	}
	if a, err := ParseAggregation(" SUM "); err != nil || a != AggregateSum {
		t.Errorf("have %v (%v), want sum", a, err)
	}
	if _, err := ParseAggregation("median"); err == nil {
		t.Error("expected error")
	}
}
