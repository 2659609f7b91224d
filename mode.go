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
	"strings"
)

// Mode specifies which overlay operation to perform.
type Mode int

const (
	// Intersection keeps the areas covered by both layers.
	Intersection Mode = iota + 1

	// Union keeps all areas covered by either layer, split along the
	// boundaries of both layers.
	Union

	// Difference keeps the areas of the first layer that are not covered
	// by the second layer.
	Difference

	// SymmetricDifference keeps the areas covered by exactly one of the layers.
	SymmetricDifference

	// Identity keeps the area of the first layer, split along the
	// boundaries of the second layer.
	Identity
)

// Modes lists all of the valid overlay modes.
var Modes = []Mode{Intersection, Union, Difference, SymmetricDifference, Identity}

func (m Mode) String() string {
	switch m {
	case Intersection:
		return "intersection"
	case Union:
		return "union"
	case Difference:
		return "difference"
	case SymmetricDifference:
		return "symmetric_difference"
	case Identity:
		return "identity"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode returns the mode corresponding to name.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "intersection", "intersect":
		return Intersection, nil
	case "union":
		return Union, nil
	case "difference":
		return Difference, nil
	case "symmetric_difference", "symdiff", "xor":
		return SymmetricDifference, nil
	case "identity":
		return Identity, nil
	default:
		return 0, fmt.Errorf("overlay: invalid mode %q; valid options are %v", name, Modes)
	}
}

// Valid returns whether m is one of the defined modes.
func (m Mode) Valid() bool {
	return m >= Intersection && m <= Identity
}

// the parts of the computation each mode needs.
func (m Mode) needsIntersections() bool {
	return m == Intersection || m == Union || m == Identity
}

func (m Mode) needsResidualA() bool {
	return m == Union || m == Difference || m == SymmetricDifference || m == Identity
}

func (m Mode) needsResidualB() bool {
	return m == Union || m == SymmetricDifference
}

// attributes from layer B are kept unless only layer A can contribute.
func (m Mode) keepsB() bool {
	return m != Difference
}
