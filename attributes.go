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

// schema maps the attribute columns of the input layers to the columns
// of an overlay result.
type schema struct {
	fields []string

	aCols, aOut []string
	bCols, bOut []string
}

// newSchema creates the output columns for an overlay of a and b. Columns
// from a come first. When a column name is present in both layers, the
// corresponding suffix is appended to each; the suffix is repeated if the
// suffixed name is also taken.
func newSchema(a, b *Layer, mode Mode, suffixes [2]string) *schema {
	s := new(schema)
	s.aCols = a.Columns()
	if mode.keepsB() {
		s.bCols = b.Columns()
	}
	inA := make(map[string]bool, len(s.aCols))
	for _, c := range s.aCols {
		inA[c] = true
	}
	inB := make(map[string]bool, len(s.bCols))
	for _, c := range s.bCols {
		inB[c] = true
	}
	taken := make(map[string]bool)
	for _, c := range s.aCols {
		taken[c] = true
	}
	for _, c := range s.bCols {
		taken[c] = true
	}
	rename := func(c, suffix string) string {
		name := c + suffix
		for taken[name] {
			name += suffix
		}
		taken[name] = true
		return name
	}
	s.aOut = make([]string, len(s.aCols))
	for i, c := range s.aCols {
		if inB[c] {
			s.aOut[i] = rename(c, suffixes[0])
		} else {
			s.aOut[i] = c
		}
	}
	s.bOut = make([]string, len(s.bCols))
	for i, c := range s.bCols {
		if inA[c] {
			s.bOut[i] = rename(c, suffixes[1])
		} else {
			s.bOut[i] = c
		}
	}
	s.fields = append(append([]string{}, s.aOut...), s.bOut...)
	return s
}

// merge returns the attributes of an output feature created from fa and fb,
// either of which may be nil. Columns that the contributing features do not
// define are set to nil.
func (s *schema) merge(fa, fb *Feature) map[string]interface{} {
	o := make(map[string]interface{}, len(s.fields))
	for _, f := range s.fields {
		o[f] = nil
	}
	if fa != nil {
		for i, c := range s.aCols {
			if v, ok := fa.Attributes[c]; ok {
				o[s.aOut[i]] = v
			}
		}
	}
	if fb != nil {
		for i, c := range s.bCols {
			if v, ok := fb.Attributes[c]; ok {
				o[s.bOut[i]] = v
			}
		}
	}
	return o
}
