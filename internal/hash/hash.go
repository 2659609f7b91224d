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

// Package hash computes cache keys and content digests.
package hash

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"
	"io"

	"github.com/davecgh/go-spew/spew"
)

// printer writes values in a form that does not depend on map
// iteration order or pointer addresses.
var printer = spew.ConfigState{
	Indent:                  " ",
	SortKeys:                true,
	DisableMethods:          true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Key returns a hash key for the specified object. Objects that
// implement fmt.Stringer are keyed by their string.
func Key(object interface{}) string {
	if s, ok := object.(fmt.Stringer); ok {
		return s.String()
	}
	h := fnv.New128a()
	if err := gob.NewEncoder(h).Encode(object); err == nil {
		return sum(h)
	}
	// If there is an error (e.g., the object holds interface
	// values that are not registered with gob) use spew instead.
	h.Reset()
	printer.Fprintf(h, "%#v", object)
	return sum(h)
}

// Digest returns a hash of the contents of object. Maps are hashed
// in key order, so objects with equal contents have equal digests,
// which is not guaranteed by Key.
func Digest(object interface{}) string {
	h := fnv.New128a()
	printer.Fprintf(h, "%#v", object)
	return sum(h)
}

type summer interface {
	io.Writer
	Sum([]byte) []byte
	Size() int
}

func sum(h summer) string {
	b := h.Sum([]byte{})
	return fmt.Sprintf("%x", b[0:h.Size()])
}
