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
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// Feature is a geometry with a set of attributes. Attribute values should be
// scalars: string, float64, int, bool, or nil.
type Feature struct {
	Geom       geom.Geom
	Attributes map[string]interface{}
}

// Layer is an ordered collection of features that share a spatial reference.
type Layer struct {
	// Name is used in log messages and diagnostics.
	Name string

	// SR is the spatial reference of the layer. It is not used for any
	// calculations, but the spatial references of two layers must be equal
	// for them to be overlaid.
	SR *proj.SR

	// Projection is the text that SR was parsed from, in PROJ.4 or WKT
	// format. It is written alongside the layer when it is saved to a file.
	Projection string

	// Fields optionally specifies the order of the attribute columns.
	// If it is empty, the sorted union of the feature attribute names is used.
	Fields []string

	Features []*Feature
}

// NewLayer creates a new layer from the given features.
func NewLayer(name string, sr *proj.SR, features ...*Feature) *Layer {
	return &Layer{Name: name, SR: sr, Features: features}
}

// Columns returns the attribute column names of l in order.
func (l *Layer) Columns() []string {
	if len(l.Fields) > 0 {
		o := make([]string, len(l.Fields))
		copy(o, l.Fields)
		return o
	}
	names := make(map[string]struct{})
	for _, f := range l.Features {
		for k := range f.Attributes {
			names[k] = struct{}{}
		}
	}
	o := make([]string, 0, len(names))
	for k := range names {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

// Area returns the total area of the polygonal features in l.
func (l *Layer) Area() float64 {
	a := 0.
	for _, f := range l.Features {
		if p, ok := f.Geom.(geom.Polygonal); ok {
			a += p.Area()
		}
	}
	return a
}

// Bounds returns the extent of all of the features in l.
func (l *Layer) Bounds() *geom.Bounds {
	b := geom.NewBounds()
	for _, f := range l.Features {
		if f.Geom != nil {
			b.Extend(f.Geom.Bounds())
		}
	}
	return b
}

// Len returns the number of features in l.
func (l *Layer) Len() int { return len(l.Features) }

func (l *Layer) name() string {
	if l.Name == "" {
		return "unnamed"
	}
	return l.Name
}
