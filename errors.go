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
	"fmt"
	"strings"
)

var (
	// ErrCRSMismatch is returned when two layers do not share a spatial reference.
	ErrCRSMismatch = errors.New("overlay: layer spatial references do not match")

	// ErrUnsupportedGeometry is returned when a feature is not a Polygon or
	// MultiPolygon.
	ErrUnsupportedGeometry = errors.New("overlay: unsupported geometry type")

	// ErrInvalidRing indicates an unclosed, collapsed, or self-intersecting ring.
	ErrInvalidRing = errors.New("overlay: invalid ring")

	// ErrPairFailure indicates that a set operation between two features
	// could not be computed.
	ErrPairFailure = errors.New("overlay: pairwise computation failed")

	// ErrCancelled is returned when the context is cancelled or its deadline
	// passes before the overlay is complete.
	ErrCancelled = errors.New("overlay: cancelled")
)

// FeatureError describes a problem with an individual feature or pair of
// features. Kind is one of the Err* values in this package, so errors.Is
// can be used to check which kind of problem occurred.
type FeatureError struct {
	Kind error

	// Layer is the name of the layer holding Feature.
	Layer string

	// Feature is the index of the feature in its layer.
	Feature int

	// Other is the index of the feature in the other layer for
	// pairwise problems, or -1.
	Other int

	// Op is the set operation being computed, if any.
	Op string

	// Attempts is the number of times the operation was tried.
	Attempts int

	// Repaired is true if the problem was fixed and the feature kept.
	Repaired bool

	Err error
}

func (e *FeatureError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	fmt.Fprintf(&b, ": layer %s feature %d", e.Layer, e.Feature)
	if e.Other >= 0 {
		fmt.Fprintf(&b, " with feature %d", e.Other)
	}
	if e.Op != "" {
		fmt.Fprintf(&b, " (%s", e.Op)
		if e.Attempts > 0 {
			fmt.Fprintf(&b, ", %d attempts", e.Attempts)
		}
		b.WriteString(")")
	}
	if e.Repaired {
		b.WriteString(" [repaired]")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap allows errors.Is and errors.As to match both the kind of the error
// and its cause.
func (e *FeatureError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// cancelledError wraps ErrCancelled and the context error.
type cancelledError struct {
	cause error
	done  int
	total int
}

func (e *cancelledError) Error() string {
	return fmt.Sprintf("%v after %d of %d work units: %v", ErrCancelled, e.done, e.total, e.cause)
}

func (e *cancelledError) Unwrap() []error { return []error{ErrCancelled, e.cause} }
