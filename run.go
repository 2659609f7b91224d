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
	"sync"

	"github.com/sirupsen/logrus"
)

// run calls f for every work unit in [0, n), in batches of
// e.o.BatchSize units. Within a batch, units are divided among the
// workers so that worker pp handles units pp, pp+nprocs, and so on. f
// must only write to state belonging to its own unit.
//
// ctx is checked before each batch starts; a batch that has started is
// always finished. run returns the number of units completed, which is
// always a whole number of batches, and an error wrapping ErrCancelled if
// ctx was done before all units were completed.
func (e *engine) run(ctx context.Context, n int, f func(i int)) (int, error) {
	nprocs := e.o.workers()
	var wg sync.WaitGroup
	for start := 0; start < n; start += e.o.BatchSize {
		if err := ctx.Err(); err != nil {
			return start, &cancelledError{cause: err, done: start, total: n}
		}
		end := start + e.o.BatchSize
		if end > n {
			end = n
		}
		wg.Add(nprocs)
		for pp := 0; pp < nprocs; pp++ {
			go func(pp int) {
				for ii := start + pp; ii < end; ii += nprocs {
					f(ii)
				}
				wg.Done()
			}(pp)
		}
		wg.Wait()
		e.log.WithFields(logrus.Fields{"done": end, "total": n}).Debug("finished batch")
	}
	return n, nil
}
