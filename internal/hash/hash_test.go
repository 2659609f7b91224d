/*
Copyright © 2019 the overlay authors.
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

package hash

import (
	"math"
	"testing"

	"github.com/ctessum/geom"
)

type stringer string

func (s stringer) String() string { return string(s) }

func TestKey(t *testing.T) {
	if k := Key(stringer("abc")); k != "abc" {
		t.Errorf("stringer key %q", k)
	}
	a, b := Key("layer.shp"), Key("layer.shp")
	if a != b {
		t.Errorf("keys differ: %s != %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("key %s has length %d", a, len(a))
	}
	if Key("a.shp") == Key("b.shp") {
		t.Error("different objects should have different keys")
	}
	// NaN values cannot be gob encoded.
	if k := Key([]float64{math.NaN()}); k == "" {
		t.Error("empty key")
	}
}

type feature struct {
	Geom       geom.Polygonal
	Attributes map[string]interface{}
}

func TestDigest(t *testing.T) {
	f := func(keys ...string) []*feature {
		attrs := make(map[string]interface{})
		for _, k := range keys {
			attrs[k] = k
		}
		return []*feature{{
			Geom:       geom.Polygon{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 0}}},
			Attributes: attrs,
		}}
	}
	a := Digest(f("a", "b", "c", "d", "e", "f"))
	b := Digest(f("f", "e", "d", "c", "b", "a"))
	if a != b {
		t.Errorf("digests differ: %s != %s", a, b)
	}
	if c := Digest(f("a", "b")); c == a {
		t.Error("different contents should have different digests")
	}
}
