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

// ResultFeature is a feature in an overlay result. Its geometry is always
// a geom.MultiPolygon.
type ResultFeature struct {
	Feature

	// A and B are the indices of the input features in the first and
	// second layers that the feature was created from, or -1 if
	// the layer did not contribute.
	A, B int
}

// Result holds the output of an overlay.
type Result struct {
	Mode       Mode
	SR         *proj.SR
	Projection string

	// Fields holds the attribute columns of the output features, in order.
	Fields []string

	Features []*ResultFeature

	// Diagnostics holds non-fatal problems that occurred during the overlay,
	// such as repaired or skipped features and failed pairwise computations.
	// Each diagnostic is a *FeatureError.
	Diagnostics []error

	// Cancelled is true if the overlay was stopped before it finished.
	// In that case, Features holds the results of the completed work.
	Cancelled bool
}

// Area returns the total area of the features in r.
func (r *Result) Area() float64 {
	a := 0.
	for _, f := range r.Features {
		a += f.Geom.(geom.Polygonal).Area()
	}
	return a
}

// Layer returns the features in r as a layer so they can be used as input
// to further operations. The layer shares its geometry and attributes with r.
func (r *Result) Layer(name string) *Layer {
	l := &Layer{
		Name:       name,
		SR:         r.SR,
		Projection: r.Projection,
		Fields:     append([]string{}, r.Fields...),
		Features:   make([]*Feature, len(r.Features)),
	}
	for i, f := range r.Features {
		ff := f.Feature
		l.Features[i] = &ff
	}
	return l
}

// sortFeatures orders fs by the index of the feature from the first layer,
// then by the index of the feature from the second layer, with the part of
// a first-layer feature not covered by the second layer after its
// intersections. Features with no first-layer source come last.
func sortFeatures(fs []*ResultFeature) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if (a.A < 0) != (b.A < 0) {
			return a.A >= 0
		}
		if a.A != b.A {
			return a.A < b.A
		}
		if (a.B < 0) != (b.B < 0) {
			return a.B >= 0
		}
		return a.B < b.B
	})
}
