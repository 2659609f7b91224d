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
	"runtime"

	"github.com/sirupsen/logrus"
)

// ValidityPolicy specifies how invalid rings in the input are handled.
type ValidityPolicy int

const (
	// Lenient repairs invalid rings where possible and skips features that
	// cannot be repaired, reporting them as diagnostics.
	Lenient ValidityPolicy = iota

	// Strict aborts the overlay when any ring is invalid.
	Strict
)

func (v ValidityPolicy) String() string {
	if v == Strict {
		return "strict"
	}
	return "lenient"
}

// DefaultTolerance is the default snapping tolerance, in the units of the
// layer spatial reference.
const DefaultTolerance = 1e-9

// Options holds the configuration for overlay operations.
type Options struct {
	// Tolerance is the size of the grid that vertices are snapped to before
	// clipping. Output polygons whose mean width is smaller than Tolerance
	// are discarded as slivers. Zero disables snapping and sliver removal.
	Tolerance float64

	// Validity specifies how invalid input rings are handled.
	Validity ValidityPolicy

	// Strict causes the overlay to fail if any pairwise computation fails
	// after all retries, rather than reporting it as a diagnostic.
	Strict bool

	// MaxRetries is the number of times a failed pairwise computation is
	// retried with a coarser snapping grid.
	MaxRetries int

	// Workers is the number of concurrent workers. If it is <= 0,
	// runtime.GOMAXPROCS(0) is used.
	Workers int

	// BatchSize is the number of work units processed between checks
	// for cancellation.
	BatchSize int

	// Suffixes are appended to attribute names that appear in both
	// input layers: Suffixes[0] for the first layer and Suffixes[1] for
	// the second.
	Suffixes [2]string

	// Log receives progress and diagnostic messages.
	Log logrus.FieldLogger
}

// DefaultOptions returns the default overlay options.
func DefaultOptions() *Options {
	return &Options{
		Tolerance:  DefaultTolerance,
		Validity:   Lenient,
		MaxRetries: 3,
		BatchSize:  256,
		Suffixes:   [2]string{"_1", "_2"},
		Log:        logrus.StandardLogger(),
	}
}

// withDefaults returns a copy of o with unset values filled in.
func (o *Options) withDefaults() (*Options, error) {
	d := DefaultOptions()
	if o == nil {
		return d, nil
	}
	oo := *o
	if oo.Tolerance < 0 {
		return nil, fmt.Errorf("overlay: tolerance must not be negative, but is %g", oo.Tolerance)
	}
	if oo.MaxRetries < 0 {
		return nil, fmt.Errorf("overlay: MaxRetries must not be negative, but is %d", oo.MaxRetries)
	}
	if oo.BatchSize <= 0 {
		oo.BatchSize = d.BatchSize
	}
	if oo.Suffixes[0] == "" && oo.Suffixes[1] == "" {
		oo.Suffixes = d.Suffixes
	}
	if oo.Suffixes[0] == oo.Suffixes[1] {
		return nil, fmt.Errorf("overlay: attribute suffixes must differ, but both are %q", oo.Suffixes[0])
	}
	if oo.Log == nil {
		oo.Log = d.Log
	}
	return &oo, nil
}

func (o *Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}
